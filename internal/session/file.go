package session

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sync"

	"github.com/alanyoungcy/tontine/internal/crypto"
	"github.com/alanyoungcy/tontine/internal/domain"
)

// FileStore keeps sessions in a single password-sealed file, so the bearer
// token survives process restarts without sitting on disk in clear text.
type FileStore struct {
	path     string
	password string
	sealer   crypto.Sealer
	mu       sync.Mutex
}

// NewFileStore creates a FileStore at path sealed with password.
func NewFileStore(path, password string, sealer crypto.Sealer) *FileStore {
	return &FileStore{path: path, password: password, sealer: sealer}
}

func (s *FileStore) Get(_ context.Context, id string) (domain.Session, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	all, err := s.load()
	if err != nil {
		return domain.Session{}, err
	}
	sess, ok := all[id]
	if !ok {
		return domain.Session{}, domain.ErrNotFound
	}
	return sess, nil
}

func (s *FileStore) Save(_ context.Context, sess domain.Session) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	all, err := s.load()
	if err != nil {
		return err
	}
	all[sess.ID] = sess
	return s.store(all)
}

func (s *FileStore) Delete(_ context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	all, err := s.load()
	if err != nil {
		return err
	}
	if _, ok := all[id]; !ok {
		return nil
	}
	delete(all, id)
	return s.store(all)
}

func (s *FileStore) load() (map[string]domain.Session, error) {
	sealed, err := os.ReadFile(s.path)
	if errors.Is(err, fs.ErrNotExist) {
		return make(map[string]domain.Session), nil
	}
	if err != nil {
		return nil, fmt.Errorf("session: read %s: %w", s.path, err)
	}

	plain, err := s.sealer.Open(sealed, s.password)
	if err != nil {
		return nil, fmt.Errorf("session: open %s: %w", s.path, err)
	}

	all := make(map[string]domain.Session)
	if err := json.Unmarshal(plain, &all); err != nil {
		return nil, fmt.Errorf("session: decode %s: %w", s.path, err)
	}
	return all, nil
}

func (s *FileStore) store(all map[string]domain.Session) error {
	plain, err := json.Marshal(all)
	if err != nil {
		return fmt.Errorf("session: encode: %w", err)
	}
	sealed, err := s.sealer.Seal(plain, s.password)
	if err != nil {
		return fmt.Errorf("session: seal: %w", err)
	}

	if err := os.MkdirAll(filepath.Dir(s.path), 0o700); err != nil {
		return fmt.Errorf("session: create dir: %w", err)
	}
	tmp := s.path + ".tmp"
	if err := os.WriteFile(tmp, sealed, 0o600); err != nil {
		return fmt.Errorf("session: write %s: %w", tmp, err)
	}
	if err := os.Rename(tmp, s.path); err != nil {
		return fmt.Errorf("session: replace %s: %w", s.path, err)
	}
	return nil
}

var _ domain.SessionStore = (*FileStore)(nil)
