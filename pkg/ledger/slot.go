package ledger

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"github.com/gofrs/flock"

	"github.com/kerbaras/mangacache/pkg/data"
)

// StoreSlot keeps the ledger in a key/value table of the cache store. The
// store is owned by one process, so the ledger's own mutex serializes updates.
type StoreSlot struct {
	kv  data.KV
	key string
}

func NewStoreSlot(kv data.KV, key string) *StoreSlot {
	if key == "" {
		key = DefaultKey
	}
	return &StoreSlot{kv: kv, key: key}
}

func (s *StoreSlot) Load() ([]byte, error) {
	value, found, err := s.kv.GetValue(context.Background(), s.key)
	if err != nil || !found {
		return nil, err
	}
	return []byte(value), nil
}

func (s *StoreSlot) Update(fn func([]byte) ([]byte, error)) error {
	current, err := s.Load()
	if err != nil {
		return err
	}
	next, err := fn(current)
	if err != nil || next == nil {
		return err
	}
	return s.kv.SetValue(context.Background(), s.key, string(next))
}

// FileSlot keeps the ledger in a JSON file. An advisory lock on a sibling
// .lock file lets several processes share one ledger: Update holds it
// exclusively from read to rename.
type FileSlot struct {
	path string
	lock *flock.Flock
}

func NewFileSlot(path string) (*FileSlot, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, fmt.Errorf("failed to create ledger directory: %w", err)
	}
	return &FileSlot{path: path, lock: flock.New(path + ".lock")}, nil
}

// Shared is always true; any process may open the same path.
func (s *FileSlot) Shared() bool { return true }

func (s *FileSlot) Load() ([]byte, error) {
	if err := s.lock.RLock(); err != nil {
		return nil, fmt.Errorf("failed to lock ledger: %w", err)
	}
	defer s.lock.Unlock()
	return s.read()
}

func (s *FileSlot) Update(fn func([]byte) ([]byte, error)) error {
	if err := s.lock.Lock(); err != nil {
		return fmt.Errorf("failed to lock ledger: %w", err)
	}
	defer s.lock.Unlock()

	current, err := s.read()
	if err != nil {
		return err
	}
	next, err := fn(current)
	if err != nil || next == nil {
		return err
	}
	return s.write(next)
}

func (s *FileSlot) read() ([]byte, error) {
	raw, err := os.ReadFile(s.path)
	if errors.Is(err, os.ErrNotExist) {
		return nil, nil
	}
	return raw, err
}

func (s *FileSlot) write(raw []byte) error {
	tmp, err := os.CreateTemp(filepath.Dir(s.path), filepath.Base(s.path)+".*.tmp")
	if err != nil {
		return err
	}
	defer os.Remove(tmp.Name())

	if _, err := tmp.Write(raw); err != nil {
		tmp.Close()
		return err
	}
	if err := tmp.Close(); err != nil {
		return err
	}
	return os.Rename(tmp.Name(), s.path)
}
