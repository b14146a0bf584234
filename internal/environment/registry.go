package environment

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"

	"github.com/envctl/envctl/internal/output"
)

// Registry indexes the environments materialized under one directory.
// It is safe for concurrent use.
type Registry struct {
	dir string

	mu   sync.RWMutex
	envs map[string]*Environment
}

// NewRegistry creates a registry for dir and loads it.
func NewRegistry(dir string) (*Registry, error) {
	r := &Registry{dir: dir, envs: map[string]*Environment{}}
	if err := r.Reload(); err != nil {
		return nil, err
	}
	return r, nil
}

// Dir returns the environments directory.
func (r *Registry) Dir() string { return r.dir }

// Reload rescans the environments directory. A missing directory yields an
// empty registry. Unreadable environments are skipped with a warning.
func (r *Registry) Reload() error {
	entries, err := os.ReadDir(r.dir)
	if err != nil && !errors.Is(err, fs.ErrNotExist) {
		return fmt.Errorf("reading environments directory: %w", err)
	}

	envs := make(map[string]*Environment, len(entries))
	for _, entry := range entries {
		if !entry.IsDir() || strings.HasPrefix(entry.Name(), ".") {
			continue
		}
		env, err := load(entry.Name(), filepath.Join(r.dir, entry.Name()))
		if err != nil {
			output.Warn("skipping environment", "env", entry.Name(), "err", err)
			continue
		}
		envs[env.Name()] = env
	}

	r.mu.Lock()
	r.envs = envs
	r.mu.Unlock()

	output.Debug("loaded environments", "dir", r.dir, "count", len(envs))
	return nil
}

// Get returns the named environment.
func (r *Registry) Get(name string) (*Environment, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	env, ok := r.envs[name]
	return env, ok
}

// List returns all environments ordered by name.
func (r *Registry) List() []*Environment {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]*Environment, 0, len(r.envs))
	for _, env := range r.envs {
		out = append(out, env)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].name < out[j].name })
	return out
}

// Put adds env or replaces the environment of the same name.
func (r *Registry) Put(env *Environment) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.envs[env.Name()] = env
}
