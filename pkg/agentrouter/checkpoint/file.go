package checkpoint

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"
)

const fileExt = ".checkpoint.json"

// ErrInvalidID indicates a workflow id that can't be used as a file name.
var ErrInvalidID = errors.New("invalid workflow id")

// FileStore keeps one file per workflow in a directory.
// Every save is an atomic replace, so a crash mid-write leaves the
// previous checkpoint intact.
type FileStore struct {
	dir    string
	mu     sync.RWMutex
	closed bool
}

// fileRecord is the on-disk layout. Data is base64 via encoding/json.
type fileRecord struct {
	Revision  int       `json:"revision"`
	UpdatedAt time.Time `json:"updated_at"`
	Data      []byte    `json:"data"`
}

// NewFileStore creates the directory if needed and returns a store over it.
func NewFileStore(dir string) (*FileStore, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("create checkpoint dir: %w", err)
	}
	return &FileStore{dir: dir}, nil
}

func (s *FileStore) path(workflowID string) (string, error) {
	if workflowID == "" {
		return "", ErrEmptyID
	}
	if workflowID != filepath.Base(workflowID) || strings.ContainsAny(workflowID, `/\`) || workflowID == "." || workflowID == ".." {
		return "", fmt.Errorf("%w: %q", ErrInvalidID, workflowID)
	}
	return filepath.Join(s.dir, workflowID+fileExt), nil
}

func (s *FileStore) read(path string) (*fileRecord, error) {
	raw, err := os.ReadFile(path)
	if errors.Is(err, fs.ErrNotExist) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("read checkpoint: %w", err)
	}
	var rec fileRecord
	if err := json.Unmarshal(raw, &rec); err != nil {
		return nil, fmt.Errorf("decode checkpoint file %s: %w", filepath.Base(path), err)
	}
	return &rec, nil
}

// Save implements Store.
func (s *FileStore) Save(_ context.Context, workflowID string, data []byte) error {
	path, err := s.path(workflowID)
	if err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return ErrStoreClosed
	}

	revision := 1
	if prev, err := s.read(path); err == nil {
		revision = prev.Revision + 1
	} else if !errors.Is(err, ErrNotFound) {
		return err
	}

	raw, err := json.Marshal(fileRecord{
		Revision:  revision,
		UpdatedAt: time.Now().UTC(),
		Data:      data,
	})
	if err != nil {
		return fmt.Errorf("encode checkpoint: %w", err)
	}
	if err := atomicWriteFile(path, raw, 0o644); err != nil {
		return fmt.Errorf("save checkpoint: %w", err)
	}
	return nil
}

// Load implements Store.
func (s *FileStore) Load(_ context.Context, workflowID string) ([]byte, error) {
	path, err := s.path(workflowID)
	if err != nil {
		return nil, err
	}

	s.mu.RLock()
	defer s.mu.RUnlock()

	if s.closed {
		return nil, ErrStoreClosed
	}

	rec, err := s.read(path)
	if err != nil {
		return nil, err
	}
	return rec.Data, nil
}

// List implements Store.
func (s *FileStore) List(_ context.Context) ([]Info, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if s.closed {
		return nil, ErrStoreClosed
	}

	entries, err := os.ReadDir(s.dir)
	if err != nil {
		return nil, fmt.Errorf("list checkpoints: %w", err)
	}

	infos := []Info{}
	for _, e := range entries {
		if e.IsDir() || !strings.HasSuffix(e.Name(), fileExt) {
			continue
		}
		rec, err := s.read(filepath.Join(s.dir, e.Name()))
		if err != nil {
			// Removed between ReadDir and read.
			if errors.Is(err, ErrNotFound) {
				continue
			}
			return nil, err
		}
		infos = append(infos, Info{
			WorkflowID: strings.TrimSuffix(e.Name(), fileExt),
			Revision:   rec.Revision,
			UpdatedAt:  rec.UpdatedAt,
			Size:       int64(len(rec.Data)),
		})
	}
	sortInfos(infos)
	return infos, nil
}

// Delete implements Store.
func (s *FileStore) Delete(_ context.Context, workflowID string) error {
	path, err := s.path(workflowID)
	if err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return ErrStoreClosed
	}

	if err := os.Remove(path); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return fmt.Errorf("delete checkpoint: %w", err)
	}
	return nil
}

// Close implements Store. The directory is left in place.
func (s *FileStore) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.closed = true
	return nil
}
