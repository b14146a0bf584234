package orchestrator

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	oerrors "github.com/envctl/envctl/internal/errors"
	"github.com/envctl/envctl/internal/kubernetes"
	"github.com/envctl/envctl/internal/task"
	"github.com/envctl/envctl/internal/testutil"
)

func TestComponentImage(t *testing.T) {
	f := newFixture(t)
	f.create(t, "staging")

	image, err := f.o.ComponentImage("staging", "api")
	require.NoError(t, err)
	assert.Equal(t, &ImageInfo{
		Environment: "staging",
		Component:   "api",
		Image:       "registry/api:v1",
		Basename:    "registry/api",
		Tag:         "v1",
	}, image)

	_, err = f.o.ComponentImage("staging", "net")
	assert.ErrorIs(t, err, oerrors.ErrNotWorkload)

	_, err = f.o.ComponentImage("staging", "missing")
	assert.ErrorIs(t, err, oerrors.ErrNotFound)
}

func TestUpdateComponent(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	f.create(t, "staging")
	f.cp.rolloutDelay = make(chan struct{})

	h, err := f.o.UpdateComponent(ctx, "staging", "api", "v2")
	require.NoError(t, err)

	// The local edit is done before the rollout runs.
	assert.Contains(t, testutil.ReadFile(t, f.componentFile("staging", "api")), "image: registry/api:v2")
	assert.NotEqual(t, task.StatusSucceeded, h.Status())

	close(f.cp.rolloutDelay)
	result, err := h.Wait(ctx)
	require.NoError(t, err)
	assert.Equal(t, []string{"api-abcde"}, result.(*kubernetes.RolloutResult).Replaced)

	_, _, _, rolled := f.cp.snapshot()
	assert.Equal(t, []appliedObject{
		{Namespace: "staging", Kind: "ReplicationController", Name: "api", Image: "registry/api:v2"},
	}, rolled)

	info, err := f.o.Task(h.ID())
	require.NoError(t, err)
	assert.Equal(t, task.StatusSucceeded, info.Status)
	assert.Len(t, f.o.ListTasks(), 1)
}

func TestUpdateComponent_Rejections(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	f.create(t, "staging")
	before := testutil.ReadFile(t, f.componentFile("staging", "api"))

	tests := []struct {
		name      string
		env, comp string
		tag       string
		want      error
	}{
		{"empty tag", "staging", "api", "", oerrors.ErrInvalidTag},
		{"infrastructure", "staging", "net", "v2", oerrors.ErrNotWorkload},
		{"unknown component", "staging", "web", "v2", oerrors.ErrNotFound},
		{"unknown environment", "prod", "api", "v2", oerrors.ErrNotFound},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := f.o.UpdateComponent(ctx, tt.env, tt.comp, tt.tag)
			assert.ErrorIs(t, err, tt.want)
		})
	}

	assert.Equal(t, before, testutil.ReadFile(t, f.componentFile("staging", "api")))
	assert.Empty(t, f.o.ListTasks())
}

func TestUpdateComponent_MalformedReference(t *testing.T) {
	f := newFixture(t)
	f.create(t, "staging")
	path := f.componentFile("staging", "api")
	testutil.WriteFile(t, f.ws.EnvDir("staging"), "api.yaml", testutil.WorkloadSpec("api", "registry/api"))
	before := testutil.ReadFile(t, path)

	_, err := f.o.UpdateComponent(context.Background(), "staging", "api", "v2")
	assert.ErrorIs(t, err, oerrors.ErrMalformedImageReference)
	assert.Equal(t, before, testutil.ReadFile(t, path))
}

func TestRecreateComponent(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	f.create(t, "staging")
	f.cp.deleteErr = errors.New("replicationcontrollers \"api\" not found")

	h, err := f.o.RecreateComponent(ctx, "staging", "api")
	require.NoError(t, err)
	_, err = h.Wait(ctx)
	require.NoError(t, err, "a failed delete is tolerated")

	_, created, deleted, _ := f.cp.snapshot()
	assert.Len(t, deleted, 1)
	assert.Equal(t, []appliedObject{
		{Namespace: "staging", Kind: "ReplicationController", Name: "api", Image: "registry/api:v1"},
	}, created)
}

func TestRecreateComponent_CreateFailureFailsTask(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	f.create(t, "staging")
	f.cp.createErr = errors.New("admission webhook denied the request")

	h, err := f.o.RecreateComponent(ctx, "staging", "api")
	require.NoError(t, err)
	_, err = h.Wait(ctx)
	assert.ErrorContains(t, err, "admission webhook denied the request")
	assert.Equal(t, task.StatusFailed, h.Status())

	_, err = f.o.RecreateComponent(ctx, "staging", "net")
	assert.ErrorIs(t, err, oerrors.ErrNotWorkload)
}

func TestBulkUpdateImage(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	f.create(t, "staging")
	f.create(t, "qa")
	testutil.WriteFile(t, f.ws.EnvDir("qa"), "worker.yaml", testutil.WorkloadSpec("worker", "registry/worker:v1"))
	_, err := f.o.Reload()
	require.NoError(t, err)

	report, err := f.o.BulkUpdateImage(ctx, "registry/api", "v7")
	require.NoError(t, err)
	require.NoError(t, f.o.Tasks().Wait(ctx))

	assert.Empty(t, report.Failed)
	require.Len(t, report.Updated, 2)
	assert.Equal(t, "qa", report.Updated[0].Environment)
	assert.Equal(t, "staging", report.Updated[1].Environment)
	for _, u := range report.Updated {
		assert.NotEmpty(t, u.Task)
		image, err := f.o.ComponentImage(u.Environment, "api")
		require.NoError(t, err)
		assert.Equal(t, "v7", image.Tag)
	}

	worker, err := f.o.ComponentImage("qa", "worker")
	require.NoError(t, err)
	assert.Equal(t, "v1", worker.Tag)

	require.Len(t, f.sink.messages, 1)
	assert.Contains(t, f.sink.messages[0], "registry/api updated to v7 in 2 component(s)")
	assert.Contains(t, f.sink.messages[0], "- qa/api")
}

func TestBulkUpdateImage_NoMatches(t *testing.T) {
	f := newFixture(t)
	f.create(t, "staging")

	report, err := f.o.BulkUpdateImage(context.Background(), "registry/other", "v7")
	require.NoError(t, err)
	assert.Empty(t, report.Updated)
	assert.Empty(t, f.sink.messages)

	_, err = f.o.BulkUpdateImage(context.Background(), "registry/api", "")
	assert.ErrorIs(t, err, oerrors.ErrInvalidTag)
}

func TestComponentStatusAndLogs(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	f.create(t, "staging")
	f.cp.pods["staging/api"] = &kubernetes.PodInfo{Name: "api-x1y2z", Phase: "Running", Ready: true, Uptime: 90 * time.Second}
	f.cp.logs["staging/api-x1y2z"] = "listening on :8080\n"

	status, err := f.o.ComponentStatus(ctx, "staging", "api")
	require.NoError(t, err)
	assert.Equal(t, "api-x1y2z", status.Name)
	assert.Equal(t, "Running", status.Phase)
	assert.Contains(t, status.Table().String(), "1m30s")

	logs, err := f.o.ComponentLogs(ctx, "staging", "api", 100)
	require.NoError(t, err)
	assert.Equal(t, "listening on :8080\n", logs)

	_, err = f.o.ComponentStatus(ctx, "staging", "net")
	assert.ErrorIs(t, err, oerrors.ErrNotFound, "no pod serves an infrastructure component")

	_, err = f.o.ComponentLogs(ctx, "staging", "missing", 0)
	assert.ErrorIs(t, err, oerrors.ErrNotFound)
}

func TestTask_Unknown(t *testing.T) {
	f := newFixture(t)
	_, err := f.o.Task("nope")
	assert.ErrorIs(t, err, oerrors.ErrNotFound)
}
