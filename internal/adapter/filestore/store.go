// Package filestore persists resolved regions in a local JSON file.
package filestore

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"sync"

	"github.com/couchcryptid/metar-etl/internal/domain"
)

// DefaultPath is the cache file used when none is configured.
const DefaultPath = "bounding_box.json"

// Store implements domain.RegionStore on a JSON document mapping lower-cased
// identifiers to [west, east, south, north] arrays. Every read-modify-write
// runs under one mutex and the file is replaced atomically, so concurrent
// merges of different keys never lose each other's entries.
type Store struct {
	path   string
	mu     sync.Mutex
	logger *slog.Logger
}

// New creates a Store backed by path. The file is created on first merge.
func New(path string, logger *slog.Logger) *Store {
	if path == "" {
		path = DefaultPath
	}
	return &Store{path: path, logger: logger}
}

// Load returns the region stored under key.
func (s *Store) Load(_ context.Context, key string) (domain.BoundingRegion, bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	doc, err := s.read()
	if err != nil {
		return domain.BoundingRegion{}, false, err
	}
	v, ok := doc[key]
	if !ok {
		return domain.BoundingRegion{}, false, nil
	}
	return domain.BoundingRegion{West: v[0], East: v[1], South: v[2], North: v[3]}, true, nil
}

// Merge writes key into the document, keeping every other entry.
func (s *Store) Merge(_ context.Context, key string, region domain.BoundingRegion) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	doc, err := s.read()
	if err != nil {
		return err
	}
	doc[key] = [4]float64{region.West, region.East, region.South, region.North}

	data, err := json.MarshalIndent(doc, "", "    ")
	if err != nil {
		return fmt.Errorf("encode region cache: %w", err)
	}
	if err := s.replace(data); err != nil {
		return err
	}
	s.logger.Debug("region cache updated", "path", s.path, "key", key, "entries", len(doc))
	return nil
}

// Keys returns every stored identifier.
func (s *Store) Keys() ([]string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	doc, err := s.read()
	if err != nil {
		return nil, err
	}
	keys := make([]string, 0, len(doc))
	for k := range doc {
		keys = append(keys, k)
	}
	return keys, nil
}

func (s *Store) read() (map[string][4]float64, error) {
	data, err := os.ReadFile(s.path)
	if errors.Is(err, fs.ErrNotExist) {
		return map[string][4]float64{}, nil
	}
	if err != nil {
		return nil, fmt.Errorf("read region cache: %w", err)
	}
	doc := map[string][4]float64{}
	if len(data) == 0 {
		return doc, nil
	}
	if err := json.Unmarshal(data, &doc); err != nil {
		return nil, fmt.Errorf("decode region cache %s: %w", s.path, err)
	}
	return doc, nil
}

// replace writes data to a temp file in the same directory and renames it
// over the cache file.
func (s *Store) replace(data []byte) error {
	dir := filepath.Dir(s.path)
	tmp, err := os.CreateTemp(dir, ".region-cache-*")
	if err != nil {
		return fmt.Errorf("create temp region cache: %w", err)
	}
	tmpName := tmp.Name()

	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		os.Remove(tmpName)
		return fmt.Errorf("write region cache: %w", err)
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmpName)
		return fmt.Errorf("close region cache: %w", err)
	}
	if err := os.Rename(tmpName, s.path); err != nil {
		os.Remove(tmpName)
		return fmt.Errorf("replace region cache: %w", err)
	}
	return nil
}
