// Package testutil provides fixture writers shared by package tests.
package testutil

import (
	"fmt"
	"os"
	"path/filepath"
	"testing"
)

// WriteFile creates a file with the given content in the specified directory.
func WriteFile(t *testing.T, dir, name, content string) string {
	t.Helper()
	path := filepath.Join(dir, name)
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		t.Fatalf("failed to create parent dirs for %s: %v", path, err)
	}
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatalf("failed to write file %s: %v", path, err)
	}
	return path
}

// ReadFile returns the content of path as a string.
func ReadFile(t *testing.T, path string) string {
	t.Helper()
	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("failed to read file %s: %v", path, err)
	}
	return string(data)
}

// WorkloadSpec returns a ReplicationController specification named after
// name in namespace ENV_NAME running image.
func WorkloadSpec(name, image string) string {
	return fmt.Sprintf(`apiVersion: v1
kind: ReplicationController
metadata:
  name: %[1]s
  namespace: ENV_NAME
  labels:
    app: %[1]s
spec:
  replicas: 1
  selector:
    app: %[1]s
  template:
    metadata:
      labels:
        app: %[1]s
    spec:
      containers:
        - name: %[1]s
          image: %[2]s
`, name, image)
}

// InfraSpec returns a small terraform file referencing ENV_NAME.
func InfraSpec(name string) string {
	return fmt.Sprintf(`resource "null_resource" "%s" {
  triggers = {
    environment = "ENV_NAME"
  }
}
`, name)
}

// Workspace is a temporary skeletons/environments layout.
type Workspace struct {
	Root            string
	SkeletonsDir    string
	EnvironmentsDir string
}

// NewWorkspace creates an empty workspace under t.TempDir.
func NewWorkspace(t *testing.T) *Workspace {
	t.Helper()
	root := t.TempDir()
	ws := &Workspace{
		Root:            root,
		SkeletonsDir:    filepath.Join(root, "skeletons"),
		EnvironmentsDir: filepath.Join(root, "environments"),
	}
	for _, dir := range []string{ws.SkeletonsDir, ws.EnvironmentsDir} {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			t.Fatalf("failed to create %s: %v", dir, err)
		}
	}
	return ws
}

// Skeleton writes a skeleton version with the given file contents.
func (w *Workspace) Skeleton(t *testing.T, version string, files map[string]string) string {
	t.Helper()
	dir := filepath.Join(w.SkeletonsDir, version)
	for name, content := range files {
		WriteFile(t, dir, name, content)
	}
	return dir
}

// EnvDir returns the directory of the named environment.
func (w *Workspace) EnvDir(name string) string {
	return filepath.Join(w.EnvironmentsDir, name)
}
