// Package credential manages the bearer token used to authenticate against
// the training-platform backend.
//
// The token is written exactly once per sign-in (or sign-up) and cleared at
// sign-out; every other component only reads it. It lives in a state file
// under the configured state directory, with the SIMCOACH_TOKEN environment
// variable taking priority for one-off overrides. Writes go through a temp
// file plus rename, guarded with file locking via [github.com/gofrs/flock],
// so concurrent commands never observe a torn token.
//
// Claims decoded from the token are for display gating only. The backend
// enforces authorization; nothing here is a security boundary.
package credential

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/gofrs/flock"
	"github.com/golang-jwt/jwt/v5"
)

const (
	tokenFile = "token"
	lockFile  = "token.lock"

	// EnvToken overrides the stored token when set.
	EnvToken = "SIMCOACH_TOKEN"
)

// Access levels as the backend assigns them.
const (
	AccessLevelManager = 5
	AccessLevelAdmin   = 9
)

var (
	// ErrNoToken indicates no token is stored and no override is set.
	ErrNoToken = errors.New("no credential stored")

	// ErrMalformedToken indicates the stored token cannot be decoded.
	ErrMalformedToken = errors.New("malformed credential token")
)

// Claims are the fields the backend encodes into the bearer token.
// They are decoded without signature verification: the client only reflects
// them for gating what it shows, never for granting anything.
type Claims struct {
	UserID      string `json:"user_id"`
	AccessLevel int    `json:"access_level"`
	jwt.RegisteredClaims
}

// IsAdmin reports whether the claims carry the admin access level.
func (c *Claims) IsAdmin() bool { return c.AccessLevel == AccessLevelAdmin }

// IsManager reports whether the claims carry at least manager access.
func (c *Claims) IsManager() bool { return c.AccessLevel >= AccessLevelManager }

// Store persists the bearer token in a state directory.
// The zero value is not useful; use New.
type Store struct {
	dir string
}

// New creates a credential store rooted at dir, creating it if needed.
func New(dir string) (*Store, error) {
	if dir == "" {
		return nil, errors.New("state directory is required")
	}
	if err := os.MkdirAll(dir, 0o750); err != nil {
		return nil, fmt.Errorf("creating state directory: %w", err)
	}
	return &Store{dir: dir}, nil
}

// Save stores the token, replacing any previous one.
func (s *Store) Save(token string) error {
	token = strings.TrimSpace(token)
	if token == "" {
		return errors.New("token is empty")
	}

	lock := flock.New(filepath.Join(s.dir, lockFile))
	if err := lock.Lock(); err != nil {
		return fmt.Errorf("locking credential file: %w", err)
	}
	defer func() { _ = lock.Unlock() }()

	// Write-then-rename keeps readers from seeing a partial token.
	tmp, err := os.CreateTemp(s.dir, tokenFile+".*")
	if err != nil {
		return fmt.Errorf("creating temp credential file: %w", err)
	}
	tmpName := tmp.Name()
	if _, err := tmp.WriteString(token); err != nil {
		_ = tmp.Close()
		_ = os.Remove(tmpName)
		return fmt.Errorf("writing credential file: %w", err)
	}
	if err := tmp.Close(); err != nil {
		_ = os.Remove(tmpName)
		return fmt.Errorf("closing credential file: %w", err)
	}
	if err := os.Chmod(tmpName, 0o600); err != nil {
		_ = os.Remove(tmpName)
		return fmt.Errorf("setting credential file mode: %w", err)
	}
	if err := os.Rename(tmpName, filepath.Join(s.dir, tokenFile)); err != nil {
		_ = os.Remove(tmpName)
		return fmt.Errorf("installing credential file: %w", err)
	}
	return nil
}

// Load returns the current token. The SIMCOACH_TOKEN environment variable
// takes priority over the state file. Returns ErrNoToken when neither is set.
func (s *Store) Load() (string, error) {
	if env := strings.TrimSpace(os.Getenv(EnvToken)); env != "" {
		return env, nil
	}

	data, err := os.ReadFile(filepath.Join(s.dir, tokenFile))
	if err != nil {
		if os.IsNotExist(err) {
			return "", ErrNoToken
		}
		return "", fmt.Errorf("reading credential file: %w", err)
	}

	token := strings.TrimSpace(string(data))
	if token == "" {
		return "", ErrNoToken
	}
	return token, nil
}

// Clear removes the stored token. Clearing an empty store is not an error.
func (s *Store) Clear() error {
	err := os.Remove(filepath.Join(s.dir, tokenFile))
	if err != nil && !os.IsNotExist(err) {
		return fmt.Errorf("removing credential file: %w", err)
	}
	return nil
}

// Claims decodes the stored token's claims without verifying the signature.
func (s *Store) Claims() (*Claims, error) {
	token, err := s.Load()
	if err != nil {
		return nil, err
	}
	return DecodeClaims(token)
}

// Authenticated reports whether a token is stored and not yet expired.
// A token without an expiry claim counts as authenticated; the backend
// rejects it if it disagrees.
func (s *Store) Authenticated(now time.Time) bool {
	claims, err := s.Claims()
	if err != nil {
		return false
	}
	if claims.ExpiresAt == nil {
		return true
	}
	return now.Before(claims.ExpiresAt.Time)
}

// DecodeClaims decodes a bearer token's claims without verification.
func DecodeClaims(token string) (*Claims, error) {
	var claims Claims
	parser := jwt.NewParser()
	if _, _, err := parser.ParseUnverified(token, &claims); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrMalformedToken, err)
	}
	return &claims, nil
}
