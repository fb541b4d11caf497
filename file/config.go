// Package file persists sync configurations as YAML files, one tenant per
// file. The layout mirrors the credentials the interactive authorization
// flow writes: provider app info, provider tokens and the calendar pairs.
package file

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/larksync/larksync/internal"
)

// Store reads and writes one configuration file. Saves are atomic (temp
// file plus rename) and serialized per store, so concurrent token
// refreshes on different configurations never corrupt unrelated files.
type Store struct {
	path string

	mu sync.Mutex
}

func NewStore(path string) *Store {
	return &Store{path: path}
}

func (s *Store) Path() string {
	return s.path
}

// Load parses the configuration file. The configuration ID is derived from
// the file name.
func (s *Store) Load(ctx context.Context) (*internal.Config, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	data, err := os.ReadFile(s.path)
	if err != nil {
		return nil, fmt.Errorf("reading config %s: %w", s.path, err)
	}

	cfg := new(internal.Config)
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, &internal.ValidationError{
			ConfigID: ConfigID(s.path),
			Reason:   fmt.Sprintf("invalid YAML: %v", err),
		}
	}
	cfg.ID = ConfigID(s.path)
	return cfg, nil
}

// Save writes cfg back to disk. Tokens are secrets, so the file is written
// 0600 and replaced atomically.
func (s *Store) Save(ctx context.Context, cfg *internal.Config) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	data, err := yaml.Marshal(cfg)
	if err != nil {
		return fmt.Errorf("encoding config %s: %w", cfg.ID, err)
	}

	tmp := s.path + ".tmp"
	if err := os.WriteFile(tmp, data, 0o600); err != nil {
		return fmt.Errorf("writing config %s: %w", cfg.ID, err)
	}
	if err := os.Rename(tmp, s.path); err != nil {
		os.Remove(tmp)
		return fmt.Errorf("replacing config %s: %w", cfg.ID, err)
	}
	return nil
}

// ConfigID derives a configuration ID from its file name.
func ConfigID(path string) string {
	name := filepath.Base(path)
	return strings.TrimSuffix(name, filepath.Ext(name))
}

// Status is the discovery outcome for one configuration file. Err is nil
// only for configurations that are fully runnable.
type Status struct {
	Name   string
	Store  *Store
	Config *internal.Config
	Err    error
}

// Discover loads every *.yaml/*.yml file under dir and validates each one
// independently. Invalid configurations are reported through their Status,
// never as a discovery failure; results are sorted by name so startup
// reports are stable.
func Discover(ctx context.Context, dir string, now time.Time) ([]Status, error) {
	entries, err := os.ReadDir(dir)
	if errors.Is(err, fs.ErrNotExist) {
		return nil, fmt.Errorf("config directory %s does not exist", dir)
	}
	if err != nil {
		return nil, fmt.Errorf("reading config directory %s: %w", dir, err)
	}

	var statuses []Status
	for _, entry := range entries {
		if entry.IsDir() {
			continue
		}
		switch filepath.Ext(entry.Name()) {
		case ".yaml", ".yml":
		default:
			continue
		}

		store := NewStore(filepath.Join(dir, entry.Name()))
		status := Status{
			Name:  ConfigID(store.Path()),
			Store: store,
		}
		cfg, err := store.Load(ctx)
		if err == nil {
			err = cfg.Validate(now)
		}
		if err != nil {
			status.Err = err
		} else {
			status.Config = cfg
		}
		statuses = append(statuses, status)
	}

	sort.Slice(statuses, func(i, j int) bool {
		return statuses[i].Name < statuses[j].Name
	})
	return statuses, nil
}
