package environment

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	oerrors "github.com/envctl/envctl/internal/errors"
	"github.com/envctl/envctl/internal/manifest"
)

// Kind classifies a component by the tool that consumes its specification.
type Kind string

const (
	// KindWorkload components are resource specifications for the control plane.
	KindWorkload Kind = "workload"

	// KindInfrastructure components are consumed by the provisioning tool.
	KindInfrastructure Kind = "infrastructure"
)

// KindForFile derives a component kind from its file extension.
func KindForFile(name string) Kind {
	switch strings.ToLower(filepath.Ext(name)) {
	case ".yaml", ".yml":
		return KindWorkload
	default:
		return KindInfrastructure
	}
}

// Component is one specification file of a materialized environment.
type Component struct {
	name string
	kind Kind
	file string
	env  *Environment
}

func newComponent(env *Environment, file string) *Component {
	base := filepath.Base(file)
	return &Component{
		name: strings.TrimSuffix(base, filepath.Ext(base)),
		kind: KindForFile(base),
		file: file,
		env:  env,
	}
}

// Name returns the file base name without its extension.
func (c *Component) Name() string { return c.name }

// Kind returns the component kind.
func (c *Component) Kind() Kind { return c.kind }

// File returns the path of the specification file.
func (c *Component) File() string { return c.file }

// Environment returns the environment the component belongs to.
func (c *Component) Environment() *Environment { return c.env }

// IsWorkload reports whether the component is consumed by the control plane.
func (c *Component) IsWorkload() bool { return c.kind == KindWorkload }

// Manifest returns the raw specification bytes.
func (c *Component) Manifest() ([]byte, error) {
	data, err := os.ReadFile(c.file)
	if err != nil {
		return nil, fmt.Errorf("reading component %q: %w", c.name, err)
	}
	return data, nil
}

// Document decodes the specification of a workload component.
func (c *Component) Document() (*manifest.Document, error) {
	if !c.IsWorkload() {
		return nil, fmt.Errorf("component %q: %w", c.name, oerrors.ErrNotWorkload)
	}
	data, err := c.Manifest()
	if err != nil {
		return nil, err
	}
	doc, err := manifest.Decode(data)
	if err != nil {
		return nil, fmt.Errorf("component %q: %w", c.name, err)
	}
	return doc, nil
}

// Image returns the managed image reference. It reports false for
// infrastructure components and for workloads without a managed image.
// A reference without a tag is returned with an empty Tag.
func (c *Component) Image() (manifest.ImageReference, bool, error) {
	if !c.IsWorkload() {
		return manifest.ImageReference{}, false, nil
	}
	doc, err := c.Document()
	if err != nil {
		return manifest.ImageReference{}, false, err
	}
	raw, ok := doc.ImageReference()
	if !ok {
		return manifest.ImageReference{}, false, nil
	}
	ref, _ := manifest.ParseImageReference(raw)
	return ref, true, nil
}

// ImageName returns the full image reference.
func (c *Component) ImageName() (string, bool, error) {
	ref, ok, err := c.Image()
	if err != nil || !ok {
		return "", false, err
	}
	return ref.String(), true, nil
}

// ImageTag returns the tag portion of the image reference.
func (c *Component) ImageTag() (string, bool, error) {
	ref, ok, err := c.Image()
	if err != nil || !ok {
		return "", false, err
	}
	return ref.Tag, ref.Tag != "", nil
}

// ImageBasename returns the registry and repository portion of the image reference.
func (c *Component) ImageBasename() (string, bool, error) {
	ref, ok, err := c.Image()
	if err != nil || !ok {
		return "", false, err
	}
	return ref.Name, ref.Name != "", nil
}

// SetImageTag rewrites the specification with a new image tag. The file is
// replaced atomically, so it is left untouched on any error.
func (c *Component) SetImageTag(tag string) error {
	if tag == "" {
		return oerrors.ErrInvalidTag
	}
	doc, err := c.Document()
	if err != nil {
		return err
	}
	if _, ok := doc.ImageReference(); !ok {
		return nil
	}
	if err := doc.SetImageTag(tag); err != nil {
		return fmt.Errorf("component %q: %w", c.name, err)
	}
	data, err := doc.Encode()
	if err != nil {
		return err
	}
	return writeFileAtomic(c.file, data)
}

// String returns "name [kind]: file".
func (c *Component) String() string {
	return fmt.Sprintf("%s [%s]: %s", c.name, c.kind, c.file)
}

// writeFileAtomic replaces path with data through a hidden sibling temp file.
func writeFileAtomic(path string, data []byte) error {
	mode := os.FileMode(0o644)
	if info, err := os.Stat(path); err == nil {
		mode = info.Mode().Perm()
	}

	tmp, err := os.CreateTemp(filepath.Dir(path), "."+filepath.Base(path)+".tmp-*")
	if err != nil {
		return fmt.Errorf("writing %s: %w", path, err)
	}
	tmpName := tmp.Name()
	defer os.Remove(tmpName) //nolint:errcheck // gone after a successful rename

	if _, err := tmp.Write(data); err != nil {
		tmp.Close() //nolint:errcheck,gosec // write error takes precedence
		return fmt.Errorf("writing %s: %w", path, err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("writing %s: %w", path, err)
	}
	if err := os.Chmod(tmpName, mode); err != nil {
		return fmt.Errorf("writing %s: %w", path, err)
	}
	if err := os.Rename(tmpName, path); err != nil {
		return fmt.Errorf("writing %s: %w", path, err)
	}
	return nil
}
