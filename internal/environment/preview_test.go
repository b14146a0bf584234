package environment

import (
	"context"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/envctl/envctl/internal/testutil"
)

func TestPreview(t *testing.T) {
	ws, m, env := refreshFixture(t)
	ws.Skeleton(t, "v2", map[string]string{
		"api.yaml":     strings.Replace(testutil.WorkloadSpec("api", "registry/api:v1"), "replicas: 1", "replicas: 3", 1),
		"worker.yaml":  testutil.WorkloadSpec("worker", "registry/worker:v1"),
		"metrics.yaml": testutil.WorkloadSpec("metrics", "registry/metrics:v1"),
	})
	before := testutil.ReadFile(t, filepath.Join(env.Dir(), "api.yaml"))

	preview, err := m.Preview(context.Background(), env, "v2")
	require.NoError(t, err)

	assert.True(t, preview.HasChanges())
	assert.Equal(t, []string{"metrics.yaml"}, preview.Added)
	assert.Equal(t, []string{"net.tf"}, preview.Removed)
	require.Len(t, preview.Modified, 1)
	assert.Equal(t, "api.yaml", preview.Modified[0].File)
	assert.Contains(t, preview.Modified[0].Diff, "replicas")
	assert.NotContains(t, preview.Modified[0].Diff, "image", "preserved tag must not show as a change")

	assert.Len(t, preview.Report.Restored, 2)
	assert.Equal(t, "v2", preview.Report.ToVersion)

	assert.Equal(t, before, testutil.ReadFile(t, filepath.Join(env.Dir(), "api.yaml")), "live directory untouched")
	assertNoStaging(t, ws)

	rendered := stripANSI(preview.String())
	assert.Contains(t, rendered, "+ metrics.yaml")
	assert.Contains(t, rendered, "- net.tf")
	assert.Contains(t, rendered, "~ api.yaml")
}

func TestPreview_NoChanges(t *testing.T) {
	ws, m, env := refreshFixture(t)

	preview, err := m.Preview(context.Background(), env, "")
	require.NoError(t, err)
	assert.False(t, preview.HasChanges())
	assert.Equal(t, "No changes detected.", preview.String())
	assertNoStaging(t, ws)
}

func TestPreview_InfrastructureChange(t *testing.T) {
	ws, m, env := refreshFixture(t)
	ws.Skeleton(t, "v2", map[string]string{
		"api.yaml":    testutil.WorkloadSpec("api", "registry/api:v1"),
		"worker.yaml": testutil.WorkloadSpec("worker", "registry/worker:v1"),
		"net.tf":      testutil.InfraSpec("net2"),
	})

	preview, err := m.Preview(context.Background(), env, "v2")
	require.NoError(t, err)
	require.Len(t, preview.Modified, 1)
	assert.Equal(t, FileDiff{File: "net.tf", Diff: "content changed"}, preview.Modified[0])
}

// stripANSI removes ANSI escape sequences for content assertions.
func stripANSI(s string) string {
	var b strings.Builder
	inEscape := false
	for i := 0; i < len(s); i++ {
		switch {
		case s[i] == '\033':
			inEscape = true
		case inEscape:
			if s[i] == 'm' {
				inEscape = false
			}
		default:
			b.WriteByte(s[i])
		}
	}
	return b.String()
}
