package environment

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/gonvenience/ytbx"
	"github.com/homeport/dyff/pkg/dyff"

	"github.com/envctl/envctl/internal/output"
)

// FileDiff is the difference of one component file between the live and the
// refreshed environment.
type FileDiff struct {
	File string `json:"file"`
	Diff string `json:"diff"`
}

// Preview is the outcome of a refresh that was computed but not applied.
type Preview struct {
	Report   *RefreshReport `json:"report"`
	Added    []string       `json:"added"`
	Removed  []string       `json:"removed"`
	Modified []FileDiff     `json:"modified"`
}

// HasChanges reports whether applying the refresh would change any file.
func (p *Preview) HasChanges() bool {
	return len(p.Added) > 0 || len(p.Removed) > 0 || len(p.Modified) > 0
}

// String renders the preview for the terminal.
func (p *Preview) String() string {
	modified := make([]output.ModifiedItem, 0, len(p.Modified))
	for _, m := range p.Modified {
		modified = append(modified, output.ModifiedItem{Name: m.File, Diff: m.Diff})
	}
	styles := output.DefaultDiffStyles()
	if !output.IsTTY() {
		styles = output.NoColorDiffStyles()
	}
	return output.RenderDiff(p.Added, p.Removed, modified, styles)
}

// Preview computes what Refresh would do without touching the live directory.
func (m *Materializer) Preview(ctx context.Context, env *Environment, version string) (*Preview, error) {
	if version == "" {
		version = env.Version()
	}

	records, err := snapshot(env)
	if err != nil {
		return nil, err
	}

	staging, err := m.stage(ctx, env.Name(), version)
	if err != nil {
		return nil, err
	}
	defer os.RemoveAll(staging) //nolint:errcheck // throwaway

	staged, err := load(env.Name(), staging)
	if err != nil {
		return nil, err
	}
	report, err := reconcile(staged, records)
	if err != nil {
		return nil, err
	}
	report.Environment = env.Name()
	report.FromVersion = env.Version()
	report.ToVersion = version

	preview, err := compareDirs(env.Dir(), staging)
	if err != nil {
		return nil, err
	}
	preview.Report = report
	return preview, nil
}

// compareDirs diffs the component files of two environment directories.
func compareDirs(live, staged string) (*Preview, error) {
	liveFiles, err := componentFiles(live)
	if err != nil {
		return nil, err
	}
	stagedFiles, err := componentFiles(staged)
	if err != nil {
		return nil, err
	}

	p := &Preview{Added: []string{}, Removed: []string{}, Modified: []FileDiff{}}
	for name := range stagedFiles {
		if _, ok := liveFiles[name]; !ok {
			p.Added = append(p.Added, name)
		}
	}
	for name := range liveFiles {
		if _, ok := stagedFiles[name]; !ok {
			p.Removed = append(p.Removed, name)
		}
	}

	for name := range liveFiles {
		if _, ok := stagedFiles[name]; !ok {
			continue
		}
		before, err := os.ReadFile(filepath.Join(live, name))
		if err != nil {
			return nil, fmt.Errorf("reading %s: %w", name, err)
		}
		after, err := os.ReadFile(filepath.Join(staged, name))
		if err != nil {
			return nil, fmt.Errorf("reading %s: %w", name, err)
		}
		if bytes.Equal(before, after) {
			continue
		}

		diff := "content changed"
		if KindForFile(name) == KindWorkload {
			diff, err = diffYAML(name, before, after)
			if err != nil {
				return nil, err
			}
			if diff == "" {
				continue
			}
		}
		p.Modified = append(p.Modified, FileDiff{File: name, Diff: diff})
	}

	sort.Strings(p.Added)
	sort.Strings(p.Removed)
	sort.Slice(p.Modified, func(i, j int) bool { return p.Modified[i].File < p.Modified[j].File })
	return p, nil
}

func componentFiles(dir string) (map[string]struct{}, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, fmt.Errorf("reading %s: %w", dir, err)
	}
	files := make(map[string]struct{}, len(entries))
	for _, entry := range entries {
		if isComponentFile(entry) {
			files[entry.Name()] = struct{}{}
		}
	}
	return files, nil
}

// diffYAML returns a human dyff report, or "" when the documents are
// semantically equal (formatting-only changes).
func diffYAML(name string, before, after []byte) (string, error) {
	from, err := yamlInput(name+" (live)", before)
	if err != nil {
		return "", fmt.Errorf("parsing %s: %w", name, err)
	}
	to, err := yamlInput(name+" (refreshed)", after)
	if err != nil {
		return "", fmt.Errorf("parsing %s: %w", name, err)
	}

	report, err := dyff.CompareInputFiles(from, to)
	if err != nil {
		return "", fmt.Errorf("comparing %s: %w", name, err)
	}
	if len(report.Diffs) == 0 {
		return "", nil
	}

	var buf bytes.Buffer
	writer := &dyff.HumanReport{
		Report:            report,
		DoNotInspectCerts: true,
		NoTableStyle:      true,
		OmitHeader:        true,
	}
	if err := writer.WriteReport(io.Writer(&buf)); err != nil {
		return "", fmt.Errorf("writing report: %w", err)
	}

	lines := strings.Split(buf.String(), "\n")
	for i, line := range lines {
		lines[i] = strings.TrimRight(line, " \t")
	}
	return strings.TrimSpace(strings.Join(lines, "\n")), nil
}

func yamlInput(location string, data []byte) (ytbx.InputFile, error) {
	data = bytes.TrimSpace(data)
	if len(data) == 0 {
		return ytbx.InputFile{Location: location}, nil
	}
	docs, err := ytbx.LoadYAMLDocuments(data)
	if err != nil {
		return ytbx.InputFile{}, err
	}
	return ytbx.InputFile{Location: location, Documents: docs}, nil
}
