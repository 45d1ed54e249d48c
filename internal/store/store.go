// Package store persists server profiles in sqlite through gorm.
package store

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/google/uuid"
	"github.com/rileyhilliard/myssh/internal/errors"
	"github.com/rileyhilliard/myssh/internal/logger"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	gormlogger "gorm.io/gorm/logger"
)

// Store is an open profile database.
type Store struct {
	db  *gorm.DB
	log logger.Logger
}

// Open opens (creating if needed) the sqlite database at path and migrates
// the schema. ":memory:" opens a throwaway database.
func Open(path string, log logger.Logger) (*Store, error) {
	if log == nil {
		log = logger.Noop()
	}
	if path != ":memory:" {
		if err := os.MkdirAll(filepath.Dir(path), 0o700); err != nil {
			return nil, errors.WrapWithCode(err, errors.ErrStore,
				fmt.Sprintf("Can't create data directory %s", filepath.Dir(path)),
				"Check permissions or set store.data_dir in your config")
		}
	}

	db, err := gorm.Open(sqlite.Open(path), &gorm.Config{
		Logger: gormlogger.Default.LogMode(gormlogger.Warn),
	})
	if err != nil {
		return nil, errors.WrapWithCode(err, errors.ErrStore,
			fmt.Sprintf("Can't open database %s", path), "")
	}

	if path == ":memory:" {
		// Every pooled connection would get its own empty database.
		if sqlDB, err := db.DB(); err == nil {
			sqlDB.SetMaxOpenConns(1)
		}
	} else if err := db.Exec("PRAGMA journal_mode=WAL").Error; err != nil {
		log.Warn("failed to enable WAL mode: %v", err)
	}

	if err := db.AutoMigrate(&Server{}); err != nil {
		return nil, errors.WrapWithCode(err, errors.ErrStore, "Database migration failed", "")
	}

	return &Store{db: db, log: logger.With(log, "store")}, nil
}

// Close releases the underlying connection pool.
func (s *Store) Close() error {
	sqlDB, err := s.db.DB()
	if err != nil {
		return err
	}
	return sqlDB.Close()
}

// ListServers returns every profile ordered by name.
func (s *Store) ListServers() ([]Server, error) {
	var servers []Server
	if err := s.db.Order("name, id").Find(&servers).Error; err != nil {
		return nil, storeErr(err, "list servers")
	}
	return servers, nil
}

// GetServer loads one profile by id.
func (s *Store) GetServer(id string) (*Server, error) {
	var srv Server
	if err := s.db.First(&srv, "id = ?", id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, notFound(id)
		}
		return nil, storeErr(err, "load server "+id)
	}
	return &srv, nil
}

// CreateServer validates srv, assigns an id when it has none, and inserts it.
func (s *Store) CreateServer(srv *Server) error {
	if err := validate(srv); err != nil {
		return err
	}
	if srv.ID == "" {
		srv.ID = uuid.NewString()
	}
	if err := s.db.Create(srv).Error; err != nil {
		if strings.Contains(err.Error(), "UNIQUE") {
			return errors.New(errors.ErrAlreadyExists,
				fmt.Sprintf("Server %s already exists", srv.ID), "Use update_server to change it")
		}
		return storeErr(err, "create server")
	}
	s.log.Debug("created server %s (%s)", srv.ID, logger.Sanitize(srv.Host))
	return nil
}

// UpdateServer overwrites an existing profile.
func (s *Store) UpdateServer(srv *Server) error {
	if err := validate(srv); err != nil {
		return err
	}
	existing, err := s.GetServer(srv.ID)
	if err != nil {
		return err
	}
	srv.CreatedAt = existing.CreatedAt
	if err := s.db.Save(srv).Error; err != nil {
		return storeErr(err, "update server "+srv.ID)
	}
	return nil
}

// DeleteServer removes a profile. Deleting a missing id is an error.
func (s *Store) DeleteServer(id string) error {
	res := s.db.Delete(&Server{}, "id = ?", id)
	if res.Error != nil {
		return storeErr(res.Error, "delete server "+id)
	}
	if res.RowsAffected == 0 {
		return notFound(id)
	}
	s.log.Debug("deleted server %s", id)
	return nil
}

func validate(srv *Server) error {
	switch {
	case strings.TrimSpace(srv.Host) == "":
		return errors.New(errors.ErrInvalidArgument, "Server host is required", "")
	case strings.TrimSpace(srv.Username) == "":
		return errors.New(errors.ErrInvalidArgument, "Server username is required", "")
	case srv.Port < 0 || srv.Port > 65535:
		return errors.Newf(errors.ErrInvalidArgument, "Port %d is out of range", srv.Port)
	}
	if srv.Port == 0 {
		srv.Port = 22
	}
	if srv.Name == "" {
		srv.Name = srv.Host
	}
	return nil
}

func notFound(id string) error {
	return errors.New(errors.ErrPathNotFound,
		fmt.Sprintf("No saved server with id %s", id),
		"List saved servers with: myssh server list")
}

func storeErr(err error, what string) error {
	return errors.WrapWithCode(err, errors.ErrStore, "Database error during "+what, "")
}
