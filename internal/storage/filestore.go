package storage

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"

	"vodforge/internal/models"
)

// FileStore keeps the catalog in memory and optionally mirrors it to a JSON
// file with atomic writes. With an empty path it behaves as a pure in-memory
// store, which is what most tests use.
type FileStore struct {
	mu       sync.RWMutex
	filePath string
	assets   map[string]models.VideoAsset
	// persistOverride allows tests to intercept persist operations.
	persistOverride func(map[string]models.VideoAsset) error
}

type fileStoreSnapshot struct {
	Assets map[string]models.VideoAsset `json:"assets"`
}

// NewFileStore opens (or initialises) a catalog at path. An empty path skips
// persistence entirely.
func NewFileStore(path string) (*FileStore, error) {
	store := &FileStore{
		filePath: strings.TrimSpace(path),
		assets:   make(map[string]models.VideoAsset),
	}
	if store.filePath == "" {
		return store, nil
	}
	data, err := os.ReadFile(store.filePath)
	if errors.Is(err, os.ErrNotExist) {
		return store, nil
	}
	if err != nil {
		return nil, fmt.Errorf("read catalog file: %w", err)
	}
	var snapshot fileStoreSnapshot
	if err := json.Unmarshal(data, &snapshot); err != nil {
		return nil, fmt.Errorf("decode catalog file %s: %w", store.filePath, err)
	}
	if snapshot.Assets != nil {
		store.assets = snapshot.Assets
	}
	return store, nil
}

func (s *FileStore) CreateAsset(ctx context.Context, asset models.VideoAsset) error {
	id := strings.TrimSpace(asset.ID)
	if id == "" {
		return fmt.Errorf("asset id is required")
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, exists := s.assets[id]; exists {
		return fmt.Errorf("%w: %s", ErrDuplicateID, id)
	}
	s.assets[id] = cloneAsset(asset)
	if err := s.persistLocked(); err != nil {
		delete(s.assets, id)
		return err
	}
	return nil
}

func (s *FileStore) ListAssets(ctx context.Context) ([]models.VideoAsset, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	assets := make([]models.VideoAsset, 0, len(s.assets))
	for _, asset := range s.assets {
		assets = append(assets, cloneAsset(asset))
	}
	sort.Slice(assets, func(i, j int) bool {
		if assets[i].CreatedAt.Equal(assets[j].CreatedAt) {
			return assets[i].ID > assets[j].ID
		}
		return assets[i].CreatedAt.After(assets[j].CreatedAt)
	})
	return assets, nil
}

func (s *FileStore) GetAsset(ctx context.Context, id string) (models.VideoAsset, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	asset, ok := s.assets[id]
	if !ok {
		return models.VideoAsset{}, fmt.Errorf("%w: %s", ErrNotFound, id)
	}
	return cloneAsset(asset), nil
}

func (s *FileStore) DeleteAsset(ctx context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	asset, ok := s.assets[id]
	if !ok {
		return fmt.Errorf("%w: %s", ErrNotFound, id)
	}
	delete(s.assets, id)
	if err := s.persistLocked(); err != nil {
		s.assets[id] = asset
		return err
	}
	return nil
}

func (s *FileStore) Ping(ctx context.Context) error {
	return nil
}

func (s *FileStore) Close(ctx context.Context) error {
	return nil
}

func (s *FileStore) persistLocked() error {
	if s.persistOverride != nil {
		return s.persistOverride(s.assets)
	}
	if s.filePath == "" {
		return nil
	}
	return writeJSONFile(s.filePath, fileStoreSnapshot{Assets: s.assets})
}

func writeJSONFile(path string, payload any) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fmt.Errorf("prepare catalog dir: %w", err)
	}
	tmp, err := os.CreateTemp(filepath.Dir(path), "catalog-*.tmp")
	if err != nil {
		return fmt.Errorf("create catalog temp file: %w", err)
	}
	encoder := json.NewEncoder(tmp)
	encoder.SetIndent("", "  ")
	if err := encoder.Encode(payload); err != nil {
		tmp.Close()
		os.Remove(tmp.Name())
		return fmt.Errorf("encode catalog: %w", err)
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmp.Name())
		return err
	}
	return os.Rename(tmp.Name(), path)
}

var _ Repository = (*FileStore)(nil)
