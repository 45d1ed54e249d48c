// Package secrets seals credentials for storage and resolves sealed
// references back into in-memory credentials.
//
// Sealed references are fernet tokens. The key comes from config or from a
// key file generated on first use. Plaintext secrets only ever exist inside a
// sshutil.Credential, which redacts itself when formatted.
package secrets

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/fernet/fernet-go"
	"github.com/rileyhilliard/myssh/internal/errors"
	"github.com/rileyhilliard/myssh/pkg/sshutil"
)

// KeyFileName is the generated key file inside the data directory.
const KeyFileName = "secret.key"

// Resolver seals and opens credential references.
type Resolver struct {
	key *fernet.Key
}

// New builds a Resolver from an encoded key. An empty key loads, or
// generates, dataDir/secret.key.
func New(encodedKey, dataDir string) (*Resolver, error) {
	if encodedKey != "" {
		key, err := fernet.DecodeKey(encodedKey)
		if err != nil {
			return nil, errors.WrapWithCode(err, errors.ErrConfig, "secrets.key is not a valid fernet key",
				"Generate one with: openssl rand -base64 32")
		}
		return &Resolver{key: key}, nil
	}

	key, err := loadOrGenerate(filepath.Join(dataDir, KeyFileName))
	if err != nil {
		return nil, err
	}
	return &Resolver{key: key}, nil
}

func loadOrGenerate(path string) (*fernet.Key, error) {
	data, err := os.ReadFile(path)
	if err == nil {
		key, err := fernet.DecodeKey(strings.TrimSpace(string(data)))
		if err != nil {
			return nil, errors.WrapWithCode(err, errors.ErrConfig,
				fmt.Sprintf("Key file %s is corrupt", path),
				"Restore it from backup; sealed passwords can't be opened without it")
		}
		return key, nil
	}
	if !os.IsNotExist(err) {
		return nil, errors.WrapWithCode(err, errors.ErrConfig, fmt.Sprintf("Can't read key file %s", path), "")
	}

	var key fernet.Key
	if err := key.Generate(); err != nil {
		return nil, errors.WrapWithCode(err, errors.ErrConfig, "Can't generate secret key", "")
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o700); err != nil {
		return nil, errors.WrapWithCode(err, errors.ErrConfig, fmt.Sprintf("Can't create %s", filepath.Dir(path)), "")
	}
	if err := os.WriteFile(path, []byte(key.Encode()+"\n"), 0o600); err != nil {
		return nil, errors.WrapWithCode(err, errors.ErrConfig, fmt.Sprintf("Can't write key file %s", path), "")
	}
	return &key, nil
}

// Seal encrypts a password or key passphrase into an opaque reference.
// An empty secret seals to "".
func (r *Resolver) Seal(secret string) (string, error) {
	if secret == "" {
		return "", nil
	}
	tok, err := fernet.EncryptAndSign([]byte(secret), r.key)
	if err != nil {
		return "", errors.WrapWithCode(err, errors.ErrStore, "Can't seal credential", "")
	}
	return string(tok), nil
}

func (r *Resolver) open(ref string) (string, error) {
	msg := fernet.VerifyAndDecrypt([]byte(ref), 0*time.Second, []*fernet.Key{r.key})
	if msg == nil {
		return "", errors.New(errors.ErrAuthFailed, "Stored credential can't be decrypted",
			"The secret key changed since the server was saved; save the server again with its password")
	}
	return string(msg), nil
}

// Resolve turns a stored reference into a Credential. With a key path the
// sealed value is the key passphrase; without one it is the password. With
// neither, the zero Credential falls back to the SSH agent.
func (r *Resolver) Resolve(ref, keyPath string) (sshutil.Credential, error) {
	var secret string
	if ref != "" {
		s, err := r.open(ref)
		if err != nil {
			return sshutil.Credential{}, err
		}
		secret = s
	}
	if keyPath != "" {
		return sshutil.KeyCredential(keyPath, secret), nil
	}
	if secret != "" {
		return sshutil.PasswordCredential(secret), nil
	}
	return sshutil.Credential{}, nil
}

// Mask hides all but the last four characters of a value for display.
func Mask(value string) string {
	if value == "" {
		return ""
	}
	if len(value) > 4 {
		return "****" + value[len(value)-4:]
	}
	return "****"
}
