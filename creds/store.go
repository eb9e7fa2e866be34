// Package creds keeps the logged-in user's token on disk between runs.
package creds

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"gopkg.in/yaml.v3"
)

var ErrNone = errors.New("no stored credentials")

type User struct {
	ID       int64  `yaml:"id"`
	Fullname string `yaml:"fullname"`
	Email    string `yaml:"email"`
}

type Credentials struct {
	Token   string    `yaml:"token"`
	User    User      `yaml:"user"`
	SavedAt time.Time `yaml:"saved_at"`
}

// Expiry reads the token's exp claim without verifying the signature; the
// backend verifies. ok is false for opaque tokens or tokens without exp.
func (c *Credentials) Expiry() (exp time.Time, ok bool) {
	if c == nil || c.Token == "" {
		return time.Time{}, false
	}
	claims := jwt.MapClaims{}
	if _, _, err := jwt.NewParser().ParseUnverified(c.Token, claims); err != nil {
		return time.Time{}, false
	}
	t, err := claims.GetExpirationTime()
	if err != nil || t == nil {
		return time.Time{}, false
	}
	return t.Time, true
}

// Valid reports whether the token is present and not known to be expired.
func (c *Credentials) Valid(now time.Time) bool {
	if c == nil || c.Token == "" {
		return false
	}
	if exp, ok := c.Expiry(); ok && !now.Before(exp) {
		return false
	}
	return true
}

type Store struct {
	Path string
}

func NewStore(path string) *Store { return &Store{Path: path} }

func (s *Store) Load() (*Credentials, error) {
	f, err := os.Open(s.Path)
	if errors.Is(err, os.ErrNotExist) {
		return nil, ErrNone
	}
	if err != nil {
		return nil, err
	}
	defer f.Close()

	var c Credentials
	if err := yaml.NewDecoder(f).Decode(&c); err != nil {
		return nil, fmt.Errorf("creds decode %s: %w", s.Path, err)
	}
	if c.Token == "" {
		return nil, ErrNone
	}
	return &c, nil
}

func (s *Store) Save(c Credentials) error {
	if c.Token == "" {
		return errors.New("creds: refusing to save empty token")
	}
	if c.SavedAt.IsZero() {
		c.SavedAt = time.Now().UTC()
	}
	if err := os.MkdirAll(filepath.Dir(s.Path), 0o700); err != nil {
		return err
	}
	b, err := yaml.Marshal(c)
	if err != nil {
		return err
	}
	tmp := s.Path + ".tmp"
	if err := os.WriteFile(tmp, b, 0o600); err != nil {
		return err
	}
	return os.Rename(tmp, s.Path)
}

func (s *Store) Clear() error {
	err := os.Remove(s.Path)
	if errors.Is(err, os.ErrNotExist) {
		return nil
	}
	return err
}
