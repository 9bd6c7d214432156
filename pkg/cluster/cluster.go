// Package cluster loads and saves data clusters as JSON and serializes
// access to a shared cluster.
package cluster

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sync"

	"github.com/sanonone/kektorflow/pkg/core/types"
)

// Load reads a cluster from path. A missing file yields an empty cluster.
func Load(path string) (*types.DataCluster, error) {
	data, err := os.ReadFile(path)
	if errors.Is(err, os.ErrNotExist) {
		return &types.DataCluster{}, nil
	}
	if err != nil {
		return nil, fmt.Errorf("read cluster: %w", err)
	}

	var c types.DataCluster
	if err := json.Unmarshal(data, &c); err != nil {
		return nil, fmt.Errorf("decode cluster %s: %w", path, err)
	}
	return &c, nil
}

// Save writes c to path atomically: a temp file in the same directory is
// renamed over the target.
func Save(path string, c *types.DataCluster) error {
	if c == nil {
		return errors.New("cannot save a nil cluster")
	}
	data, err := json.MarshalIndent(c, "", "  ")
	if err != nil {
		return fmt.Errorf("encode cluster: %w", err)
	}

	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return err
	}
	tmp, err := os.CreateTemp(dir, filepath.Base(path)+".tmp-*")
	if err != nil {
		return err
	}
	tmpName := tmp.Name()
	defer os.Remove(tmpName)

	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		return err
	}
	if err := tmp.Sync(); err != nil {
		tmp.Close()
		return err
	}
	if err := tmp.Close(); err != nil {
		return err
	}
	return os.Rename(tmpName, path)
}

// Store guards one cluster shared by concurrent task runs. When it has a
// path, every successful Update is persisted.
type Store struct {
	mu      sync.Mutex
	cluster *types.DataCluster
	path    string
}

// NewStore wraps c. An empty path keeps the cluster in memory only.
func NewStore(c *types.DataCluster, path string) *Store {
	if c == nil {
		c = &types.DataCluster{}
	}
	return &Store{cluster: c, path: path}
}

// Open loads the cluster at path into a new Store.
func Open(path string) (*Store, error) {
	c, err := Load(path)
	if err != nil {
		return nil, err
	}
	return NewStore(c, path), nil
}

// Update runs fn with exclusive access and saves the cluster if fn succeeds.
func (s *Store) Update(fn func(*types.DataCluster) error) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := fn(s.cluster); err != nil {
		return err
	}
	if s.path == "" {
		return nil
	}
	return Save(s.path, s.cluster)
}

// View runs fn with exclusive access. fn must not retain the cluster.
func (s *Store) View(fn func(*types.DataCluster)) {
	s.mu.Lock()
	defer s.mu.Unlock()
	fn(s.cluster)
}

// Replace swaps the stored cluster and persists it.
func (s *Store) Replace(c *types.DataCluster) error {
	if c == nil {
		return errors.New("cannot store a nil cluster")
	}
	return s.Update(func(cur *types.DataCluster) error {
		*cur = *c
		return nil
	})
}

// Stats returns the current cluster stats.
func (s *Store) Stats() types.Stats {
	var st types.Stats
	s.View(func(c *types.DataCluster) { st = c.Stats() })
	return st
}

// Path returns where the store persists, or "".
func (s *Store) Path() string { return s.path }
