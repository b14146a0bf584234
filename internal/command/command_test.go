package command

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/envctl/envctl/internal/environment"
	oerrors "github.com/envctl/envctl/internal/errors"
	"github.com/envctl/envctl/internal/orchestrator"
	"github.com/envctl/envctl/internal/testutil"
)

func newOrchestrator(t *testing.T) *orchestrator.Orchestrator {
	t.Helper()
	ws := testutil.NewWorkspace(t)
	ws.Skeleton(t, "v1", map[string]string{
		"api.yaml": testutil.WorkloadSpec("api", "registry/api:v1"),
		"net.tf":   testutil.InfraSpec("net"),
	})
	registry, err := environment.NewRegistry(ws.EnvironmentsDir)
	require.NoError(t, err)
	return orchestrator.New(orchestrator.Options{
		Registry:     registry,
		Materializer: &environment.Materializer{SkeletonsDir: ws.SkeletonsDir, EnvironmentsDir: ws.EnvironmentsDir},
	})
}

func TestRegistry_NamesAreUnique(t *testing.T) {
	seen := map[string]bool{}
	for _, op := range List() {
		assert.False(t, seen[op.Name], "duplicate operation %s", op.Name)
		seen[op.Name] = true
		assert.NotEmpty(t, op.Description, op.Name)
		assert.NotNil(t, op.Run, op.Name)
	}
	for _, name := range []string{
		"list-envs", "create", "provision", "refresh", "teardown",
		"set-image-tag", "recreate", "get-image-tag", "create-endpoints",
	} {
		_, ok := Lookup(name)
		assert.True(t, ok, name)
	}
}

func TestOperation_Usage(t *testing.T) {
	op, ok := Lookup("logs")
	require.True(t, ok)
	assert.Equal(t, "<env> <component> [tail]", op.Usage())
}

func TestOperation_Bind(t *testing.T) {
	op, ok := Lookup("logs")
	require.True(t, ok)

	t.Run("defaults", func(t *testing.T) {
		args, err := op.Bind(Args{"env": "staging", "component": "api"})
		require.NoError(t, err)
		assert.Equal(t, Args{"env": "staging", "component": "api", "tail": DefaultLogTail}, args)
	})

	t.Run("missing required", func(t *testing.T) {
		_, err := op.Bind(Args{"env": "staging"})
		require.ErrorIs(t, err, oerrors.ErrValidation)
		assert.Contains(t, err.Error(), "missing required argument(s): component")
	})

	t.Run("empty counts as missing", func(t *testing.T) {
		_, err := op.Bind(Args{"env": "staging", "component": ""})
		assert.ErrorIs(t, err, oerrors.ErrValidation)
	})

	t.Run("unknown", func(t *testing.T) {
		_, err := op.Bind(Args{"env": "staging", "component": "api", "follow": "true"})
		require.ErrorIs(t, err, oerrors.ErrValidation)
		assert.Contains(t, err.Error(), "unknown argument(s): follow")
	})
}

func TestArgs_Int64(t *testing.T) {
	n, err := Args{"tail": "25"}.Int64("tail")
	require.NoError(t, err)
	assert.Equal(t, int64(25), n)

	n, err = Args{}.Int64("tail")
	require.NoError(t, err)
	assert.Zero(t, n)

	_, err = Args{"tail": "lots"}.Int64("tail")
	assert.ErrorIs(t, err, oerrors.ErrValidation)
}

func TestInvoke(t *testing.T) {
	ctx := context.Background()
	o := newOrchestrator(t)

	_, err := Invoke(ctx, o, "create", Args{"env": "staging", "version": "v1"})
	require.NoError(t, err)

	result, err := Invoke(ctx, o, "list-envs", nil)
	require.NoError(t, err)
	envs, ok := result.(orchestrator.Environments)
	require.True(t, ok)
	require.Len(t, envs, 1)
	assert.Equal(t, "staging", envs[0].Name)

	tag, err := Invoke(ctx, o, "get-image-tag", Args{"env": "staging", "component": "api"})
	require.NoError(t, err)
	assert.Equal(t, "v1", tag)

	name, err := Invoke(ctx, o, "get-image-name", Args{"env": "staging", "component": "api"})
	require.NoError(t, err)
	assert.Equal(t, "registry/api:v1", name)

	_, err = Invoke(ctx, o, "no-such-op", nil)
	assert.ErrorIs(t, err, oerrors.ErrNotFound)

	_, err = Invoke(ctx, o, "show-env", Args{"env": "prod"})
	assert.ErrorIs(t, err, oerrors.ErrNotFound)
}

func TestInvoke_TerraformArgs(t *testing.T) {
	o := newOrchestrator(t)
	_, err := Invoke(context.Background(), o, "tf", Args{"env": "staging", "args": `plan -var "name=unterminated`})
	assert.ErrorIs(t, err, oerrors.ErrValidation)
}

func TestOperations_Table(t *testing.T) {
	ops := List()
	assert.Equal(t, len(ops), ops.Table().Len())
}
