// Package store persists small JSON documents (search templates, command
// history) under the configured directory.
package store

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"sync"

	"loginsight/internal/errors"
	"loginsight/internal/util/logx"
)

var validKey = regexp.MustCompile(`^[A-Za-z0-9_.-]+$`)

type Store struct {
	dir string
	mu  sync.Mutex
}

// Open creates dir if needed.
func Open(dir string) (*Store, error) {
	if dir == "" {
		return nil, fmt.Errorf("%w: empty store directory", errors.ErrInvalidConfig)
	}
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("%w: %w", errors.ErrIO, err)
	}
	return &Store{dir: dir}, nil
}

func (s *Store) Dir() string { return s.dir }

func (s *Store) path(key string) (string, error) {
	if !validKey.MatchString(key) {
		return "", fmt.Errorf("%w: store key %q", errors.ErrInvalidConfig, key)
	}
	return filepath.Join(s.dir, key+".json"), nil
}

// Load decodes the document stored under key into v. found is false when no
// document exists yet.
func (s *Store) Load(key string, v any) (found bool, err error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.load(key, v)
}

func (s *Store) load(key string, v any) (bool, error) {
	p, err := s.path(key)
	if err != nil {
		return false, err
	}
	f, err := os.Open(p)
	if err != nil {
		if os.IsNotExist(err) {
			return false, nil
		}
		return false, fmt.Errorf("%w: %w", errors.ErrIO, err)
	}
	defer f.Close()
	if err := json.NewDecoder(f).Decode(v); err != nil {
		return false, fmt.Errorf("%w: %s: %w", errors.ErrParse, p, err)
	}
	return true, nil
}

// Save replaces the document under key. The write goes to a temporary file
// that is renamed into place, so readers never see a partial document.
func (s *Store) Save(key string, v any) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.save(key, v)
}

func (s *Store) save(key string, v any) error {
	p, err := s.path(key)
	if err != nil {
		return err
	}
	tmp := p + ".tmp"
	f, err := os.Create(tmp)
	if err != nil {
		return fmt.Errorf("%w: %w", errors.ErrIO, err)
	}
	enc := json.NewEncoder(f)
	enc.SetIndent("", "  ")
	if err := enc.Encode(v); err != nil {
		f.Close()
		_ = os.Remove(tmp)
		return err
	}
	if err := f.Close(); err != nil {
		_ = os.Remove(tmp)
		return fmt.Errorf("%w: %w", errors.ErrIO, err)
	}
	if err := os.Rename(tmp, p); err != nil {
		return fmt.Errorf("%w: %w", errors.ErrIO, err)
	}
	logx.Debugf("store: saved %s", p)
	return nil
}

// Update loads key into v, applies fn and saves the result while holding
// the store lock.
func (s *Store) Update(key string, v any, fn func() error) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, err := s.load(key, v); err != nil {
		return err
	}
	if err := fn(); err != nil {
		return err
	}
	return s.save(key, v)
}

func (s *Store) Delete(key string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	p, err := s.path(key)
	if err != nil {
		return err
	}
	if err := os.Remove(p); err != nil && !os.IsNotExist(err) {
		return fmt.Errorf("%w: %w", errors.ErrIO, err)
	}
	return nil
}
