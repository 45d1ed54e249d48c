package sshutil

// Credential is an opaque authentication secret. It is held in memory only;
// String and GoString never reveal it, so it is safe to pass through loggers
// and %v formatting.
type Credential struct {
	password   string
	keyPath    string
	passphrase string
}

// PasswordCredential authenticates with a password (and keyboard-interactive
// prompts answered with the same password).
func PasswordCredential(password string) Credential {
	return Credential{password: password}
}

// KeyCredential authenticates with a private key file. The passphrase may be
// empty for unencrypted keys.
func KeyCredential(keyPath, passphrase string) Credential {
	return Credential{keyPath: keyPath, passphrase: passphrase}
}

// IsZero reports whether no secret was supplied.
func (c Credential) IsZero() bool {
	return c.password == "" && c.keyPath == ""
}

// Password returns the password, or "".
func (c Credential) Password() string { return c.password }

// KeyPath returns the private key path, or "".
func (c Credential) KeyPath() string { return c.keyPath }

// Passphrase returns the key passphrase, or "".
func (c Credential) Passphrase() string { return c.passphrase }

// Method names the auth method for logs: "password", "key", or "agent".
func (c Credential) Method() string {
	switch {
	case c.password != "":
		return "password"
	case c.keyPath != "":
		return "key"
	default:
		return "agent"
	}
}

func (c Credential) String() string {
	return "credential(" + c.Method() + ", redacted)"
}

func (c Credential) GoString() string {
	return c.String()
}
