// Package environment materializes skeletons into environment directories and
// models the components they contain.
package environment

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"slices"
	"strings"

	oerrors "github.com/envctl/envctl/internal/errors"
)

// VersionFile records the skeleton version an environment was built from.
const VersionFile = "VERSION"

// Environment is a materialized environment directory and its components.
type Environment struct {
	name       string
	version    string
	dir        string
	components []*Component
}

// Load reads the environment stored in dir. The environment is named after
// the directory.
func Load(dir string) (*Environment, error) {
	return load(filepath.Base(dir), dir)
}

func load(name, dir string) (*Environment, error) {
	info, err := os.Stat(dir)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil, oerrors.Wrapf(oerrors.ErrNotFound, "environment %q", name)
		}
		return nil, fmt.Errorf("reading environment %q: %w", name, err)
	}
	if !info.IsDir() {
		return nil, fmt.Errorf("reading environment %q: %s is not a directory", name, dir)
	}

	env := &Environment{name: name, dir: dir}

	version, err := os.ReadFile(filepath.Join(dir, VersionFile))
	switch {
	case err == nil:
		env.version = strings.TrimSpace(string(version))
	case !errors.Is(err, fs.ErrNotExist):
		return nil, fmt.Errorf("reading environment %q version: %w", name, err)
	}

	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, fmt.Errorf("reading environment %q: %w", name, err)
	}
	for _, entry := range entries {
		if !isComponentFile(entry) {
			continue
		}
		env.components = append(env.components, newComponent(env, filepath.Join(dir, entry.Name())))
	}

	return env, nil
}

// isComponentFile reports whether a directory entry becomes a component.
// VERSION and hidden files are reserved.
func isComponentFile(entry fs.DirEntry) bool {
	name := entry.Name()
	if name == VersionFile || strings.HasPrefix(name, ".") {
		return false
	}
	return entry.Type().IsRegular()
}

// Name returns the environment name.
func (e *Environment) Name() string { return e.name }

// Version returns the skeleton version, or "" when VERSION is missing.
func (e *Environment) Version() string { return e.version }

// Dir returns the environment directory.
func (e *Environment) Dir() string { return e.dir }

// Component returns the component with the given name. When two files share
// a base name the first in directory order wins.
func (e *Environment) Component(name string) (*Component, bool) {
	for _, c := range e.components {
		if c.name == name {
			return c, true
		}
	}
	return nil, false
}

// Components returns the components of the given kinds, or all of them when
// no kind is passed. The result is ordered by file name.
func (e *Environment) Components(kinds ...Kind) []*Component {
	out := make([]*Component, 0, len(e.components))
	for _, c := range e.components {
		if len(kinds) == 0 || slices.Contains(kinds, c.kind) {
			out = append(out, c)
		}
	}
	return out
}

// HasInfrastructure reports whether any component is consumed by the provisioning tool.
func (e *Environment) HasInfrastructure() bool {
	return len(e.Components(KindInfrastructure)) > 0
}

func (e *Environment) String() string {
	return e.name
}
