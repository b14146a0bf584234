package environment

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"

	oerrors "github.com/envctl/envctl/internal/errors"
	"github.com/envctl/envctl/internal/output"
)

// DefaultPlaceholder is replaced with the environment name in skeleton files.
const DefaultPlaceholder = "ENV_NAME"

// Materializer turns skeleton versions into environment directories.
//
// Every write goes to a hidden staging directory next to the environment and
// is renamed into place, so readers never observe a half-written environment.
type Materializer struct {
	// SkeletonsDir holds one directory per skeleton version.
	SkeletonsDir string

	// EnvironmentsDir holds one directory per environment.
	EnvironmentsDir string

	// Placeholder is the token substituted with the environment name.
	// Empty means DefaultPlaceholder.
	Placeholder string
}

// PreservationRecord is the image state of a workload captured before a refresh.
type PreservationRecord struct {
	Component string `json:"component"`
	Basename  string `json:"basename"`
	Tag       string `json:"tag"`
}

// RefreshReport describes what a refresh did with each preserved image tag.
type RefreshReport struct {
	Environment string `json:"environment"`
	FromVersion string `json:"fromVersion"`
	ToVersion   string `json:"toVersion"`

	// Restored records had their tag reapplied.
	Restored []PreservationRecord `json:"restored"`

	// Skipped records belong to components whose image basename changed.
	Skipped []PreservationRecord `json:"skipped"`

	// Dropped records belong to components that no longer exist.
	Dropped []PreservationRecord `json:"dropped"`
}

// Table implements output.Tabular.
func (r *RefreshReport) Table() *output.Table {
	t := output.NewTable("COMPONENT", "IMAGE", "TAG", "RESULT")
	add := func(records []PreservationRecord, status string) {
		for _, rec := range records {
			t.Row(rec.Component, rec.Basename, rec.Tag, output.StatusStyle(status).Render(status))
		}
	}
	add(r.Restored, output.StatusRestored)
	add(r.Skipped, output.StatusSkipped)
	add(r.Dropped, output.StatusDropped)
	return t
}

// Dir returns the directory of the named environment.
func (m *Materializer) Dir(name string) string {
	return filepath.Join(m.EnvironmentsDir, name)
}

// SkeletonDir returns the directory of a skeleton version.
func (m *Materializer) SkeletonDir(version string) string {
	return filepath.Join(m.SkeletonsDir, version)
}

func (m *Materializer) placeholder() string {
	if m.Placeholder == "" {
		return DefaultPlaceholder
	}
	return m.Placeholder
}

// Create materializes a new environment from a skeleton version.
func (m *Materializer) Create(ctx context.Context, name, version string) (*Environment, error) {
	dir := m.Dir(name)
	if exists(dir) {
		return nil, oerrors.Wrapf(oerrors.ErrAlreadyExists, "environment %q", name)
	}

	staging, err := m.stage(ctx, name, version)
	if err != nil {
		return nil, err
	}

	if err := os.Rename(staging, dir); err != nil {
		os.RemoveAll(staging) //nolint:errcheck,gosec // best-effort cleanup
		if exists(dir) {
			return nil, oerrors.Wrapf(oerrors.ErrAlreadyExists, "environment %q", name)
		}
		return nil, fmt.Errorf("creating environment %q: %w", name, err)
	}

	output.Debug("materialized environment", "env", name, "version", version, "dir", dir)
	return load(name, dir)
}

// Refresh re-materializes env from version and reapplies the image tag of
// every workload whose image basename is unchanged. The live directory is
// swapped only once the new one is complete.
func (m *Materializer) Refresh(ctx context.Context, env *Environment, version string) (*Environment, *RefreshReport, error) {
	if version == "" {
		version = env.Version()
	}

	records, err := snapshot(env)
	if err != nil {
		return nil, nil, err
	}

	staging, err := m.stage(ctx, env.Name(), version)
	if err != nil {
		return nil, nil, err
	}
	defer os.RemoveAll(staging) //nolint:errcheck // no-op after a successful swap

	staged, err := load(env.Name(), staging)
	if err != nil {
		return nil, nil, err
	}

	report, err := reconcile(staged, records)
	if err != nil {
		return nil, nil, err
	}
	report.Environment = env.Name()
	report.FromVersion = env.Version()
	report.ToVersion = version

	if err := m.swap(env.Name(), staging); err != nil {
		return nil, nil, err
	}

	refreshed, err := load(env.Name(), m.Dir(env.Name()))
	if err != nil {
		return nil, nil, err
	}
	return refreshed, report, nil
}

// ValidateVersion rejects versions that do not name a single directory
// under the skeletons directory.
func ValidateVersion(version string) error {
	switch {
	case version == "":
		return oerrors.NewValidationError("skeleton version is empty", "", "version",
			"pass a version explicitly or restore the environment's VERSION file")
	case version == "." || version == ".." || filepath.Base(version) != version ||
		strings.ContainsAny(version, `/\`):
		return oerrors.NewValidationError(fmt.Sprintf("invalid skeleton version %q", version), "", "version",
			"a version is the name of a directory under the skeletons directory")
	}
	return nil
}

// stage writes a complete environment into a new hidden directory and
// returns its path.
func (m *Materializer) stage(ctx context.Context, name, version string) (string, error) {
	if err := ValidateVersion(version); err != nil {
		return "", err
	}

	skeleton := m.SkeletonDir(version)
	info, err := os.Stat(skeleton)
	if err != nil || !info.IsDir() {
		return "", oerrors.Wrapf(oerrors.ErrNotFound, "skeleton version %q", version)
	}

	if err := os.MkdirAll(m.EnvironmentsDir, 0o755); err != nil {
		return "", fmt.Errorf("creating environments directory: %w", err)
	}

	staging, err := os.MkdirTemp(m.EnvironmentsDir, "."+name+".staging-")
	if err != nil {
		return "", fmt.Errorf("creating staging directory: %w", err)
	}

	if err := m.render(ctx, skeleton, staging, name, version); err != nil {
		os.RemoveAll(staging) //nolint:errcheck,gosec // best-effort cleanup
		return "", err
	}
	return staging, nil
}

func (m *Materializer) render(ctx context.Context, skeleton, dst, name, version string) error {
	entries, err := os.ReadDir(skeleton)
	if err != nil {
		return fmt.Errorf("reading skeleton %q: %w", version, err)
	}

	token := []byte(m.placeholder())
	for _, entry := range entries {
		if err := ctx.Err(); err != nil {
			return err
		}
		if !isComponentFile(entry) {
			continue
		}

		src := filepath.Join(skeleton, entry.Name())
		data, err := os.ReadFile(src)
		if err != nil {
			return fmt.Errorf("reading skeleton file %s: %w", entry.Name(), err)
		}
		info, err := entry.Info()
		if err != nil {
			return fmt.Errorf("reading skeleton file %s: %w", entry.Name(), err)
		}

		data = bytes.ReplaceAll(data, token, []byte(name))
		if err := os.WriteFile(filepath.Join(dst, entry.Name()), data, info.Mode().Perm()); err != nil {
			return fmt.Errorf("writing %s: %w", entry.Name(), err)
		}
	}

	if err := os.WriteFile(filepath.Join(dst, VersionFile), []byte(version+"\n"), 0o644); err != nil { //nolint:gosec // not secret
		return fmt.Errorf("writing %s: %w", VersionFile, err)
	}
	return nil
}

// swap replaces the live environment directory with staging. The previous
// directory is restored if staging cannot be moved into place.
func (m *Materializer) swap(name, staging string) error {
	live := m.Dir(name)
	backup := strings.Replace(staging, ".staging-", ".backup-", 1)

	if err := os.Rename(live, backup); err != nil {
		return fmt.Errorf("moving environment %q aside: %w", name, err)
	}
	if err := os.Rename(staging, live); err != nil {
		if restoreErr := os.Rename(backup, live); restoreErr != nil {
			return fmt.Errorf("replacing environment %q: %w (restore failed, previous state kept in %s: %v)",
				name, err, backup, restoreErr)
		}
		return fmt.Errorf("replacing environment %q: %w", name, err)
	}
	if err := os.RemoveAll(backup); err != nil {
		output.Warn("could not remove previous environment directory", "env", name, "dir", backup, "err", err)
	}
	return nil
}

// snapshot captures the image basename and tag of every workload that has one.
// A workload whose specification cannot be read fails the snapshot, since
// refreshing over it would lose its deployed tag.
func snapshot(env *Environment) ([]PreservationRecord, error) {
	var records []PreservationRecord
	for _, c := range env.Components(KindWorkload) {
		ref, ok, err := c.Image()
		if err != nil {
			return nil, fmt.Errorf("reading image of %q in environment %q: %w", c.Name(), env.Name(), err)
		}
		if !ok || ref.Name == "" {
			continue
		}
		records = append(records, PreservationRecord{
			Component: c.Name(),
			Basename:  ref.Name,
			Tag:       ref.Tag,
		})
	}
	return records, nil
}

// reconcile reapplies preserved tags to a freshly staged environment.
func reconcile(staged *Environment, records []PreservationRecord) (*RefreshReport, error) {
	report := &RefreshReport{
		Restored: []PreservationRecord{},
		Skipped:  []PreservationRecord{},
		Dropped:  []PreservationRecord{},
	}

	for _, rec := range records {
		c, ok := staged.Component(rec.Component)
		if !ok || !c.IsWorkload() {
			report.Dropped = append(report.Dropped, rec)
			continue
		}

		ref, ok, err := c.Image()
		if err != nil {
			return nil, err
		}
		if !ok || ref.Name != rec.Basename || rec.Tag == "" {
			report.Skipped = append(report.Skipped, rec)
			continue
		}

		if err := c.SetImageTag(rec.Tag); err != nil {
			return nil, err
		}
		report.Restored = append(report.Restored, rec)
	}
	return report, nil
}

// exists reports whether path exists.
func exists(path string) bool {
	_, err := os.Stat(path)
	return !errors.Is(err, fs.ErrNotExist)
}
