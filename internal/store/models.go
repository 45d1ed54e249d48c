package store

import "time"

// Server is a saved connection profile. The password is never stored;
// CredentialRef is an opaque sealed token resolved by package secrets.
type Server struct {
	ID            string    `gorm:"primaryKey;size:36" json:"id"`
	Name          string    `gorm:"not null" json:"name"`
	Host          string    `gorm:"index;not null" json:"host"`
	Port          int       `gorm:"not null;default:22" json:"port"`
	Username      string    `gorm:"not null" json:"username"`
	CredentialRef string    `json:"-"`
	KeyPath       string    `json:"key_path,omitempty"`
	CreatedAt     time.Time `gorm:"autoCreateTime" json:"created_at"`
	UpdatedAt     time.Time `gorm:"autoUpdateTime" json:"updated_at"`
}

// HasPassword reports whether a sealed password is attached.
func (s *Server) HasPassword() bool {
	return s.CredentialRef != ""
}
