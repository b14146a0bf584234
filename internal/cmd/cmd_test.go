package cmd

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/envctl/envctl/internal/command"
	"github.com/envctl/envctl/internal/testutil"
)

// cli is a workspace with a config file pointing at it.
type cli struct {
	ws         *testutil.Workspace
	configPath string
}

func newCLI(t *testing.T) *cli {
	t.Helper()

	t.Setenv("HOME", t.TempDir())
	for _, name := range []string{"ENVCTL_CONFIG", "ENVCTL_WORKDIR", "ENVCTL_OUTPUT", "ENVCTL_KUBECONFIG", "ENVCTL_CONTEXT"} {
		t.Setenv(name, "")
	}

	ws := testutil.NewWorkspace(t)
	ws.Skeleton(t, "v1", map[string]string{
		"api.yaml": testutil.WorkloadSpec("api", "registry.example.com/api:v1"),
		"net.tf":   testutil.InfraSpec("net"),
	})

	return &cli{
		ws:         ws,
		configPath: testutil.WriteFile(t, ws.Root, "config.yaml", "workdir: "+ws.Root+"\n"),
	}
}

func (c *cli) run(t *testing.T, args ...string) (string, error) {
	t.Helper()

	root := NewRootCmd()
	var out bytes.Buffer
	root.SetOut(&out)
	root.SetErr(&bytes.Buffer{})
	root.SetArgs(append([]string{"--config", c.configPath}, args...))

	err := root.ExecuteContext(context.Background())
	return out.String(), err
}

func exitCode(t *testing.T, err error) int {
	t.Helper()
	var exitErr *ExitError
	require.True(t, errors.As(err, &exitErr), "expected ExitError, got %T: %v", err, err)
	return exitErr.Code
}

func TestOperationCommands(t *testing.T) {
	c := newCLI(t)

	_, err := c.run(t, "create", "staging", "v1")
	require.NoError(t, err)
	assert.FileExists(t, filepath.Join(c.ws.EnvDir("staging"), "VERSION"))

	out, err := c.run(t, "get-image-tag", "staging", "api")
	require.NoError(t, err)
	assert.Equal(t, "v1\n", out)

	out, err = c.run(t, "-o", "json", "list-components", "staging", "--kind", "infrastructure")
	require.NoError(t, err)
	var comps []map[string]any
	require.NoError(t, json.Unmarshal([]byte(out), &comps))
	require.Len(t, comps, 1)
	assert.Equal(t, "net", comps[0]["name"])

	out, err = c.run(t, "-o", "json", "list-envs")
	require.NoError(t, err)
	assert.Contains(t, out, `"staging"`)
}

func TestOperationErrors(t *testing.T) {
	c := newCLI(t)
	_, err := c.run(t, "create", "staging", "v1")
	require.NoError(t, err)

	tests := []struct {
		name string
		args []string
		code int
	}{
		{"unknown environment", []string{"get-image-tag", "qa", "api"}, ExitNotFound},
		{"unknown version", []string{"create", "qa", "v9"}, ExitNotFound},
		{"duplicate environment", []string{"create", "staging", "v1"}, ExitValidationError},
		{"invalid name", []string{"create", "Bad_Name", "v1"}, ExitValidationError},
		{"infrastructure image update", []string{"set-image-tag", "staging", "net", "v2"}, ExitValidationError},
		{"bad tail", []string{"logs", "staging", "api", "--tail", "many"}, ExitValidationError},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := c.run(t, tt.args...)
			require.Error(t, err)
			assert.Equal(t, tt.code, exitCode(t, err))
		})
	}
}

func TestOperationUnreadableConfig(t *testing.T) {
	c := newCLI(t)
	require.NoError(t, os.WriteFile(c.configPath, []byte("dns: [unclosed\n"), 0o644))

	_, err := c.run(t, "list-envs")
	require.Error(t, err)
	assert.Equal(t, ExitValidationError, exitCode(t, err))
}

func TestOperationCmdShape(t *testing.T) {
	byName := map[string]command.Operation{}
	for _, op := range command.List() {
		byName[op.Name] = op
	}

	tf := newOperationCmd(byName["tf"])
	assert.Equal(t, "tf <env> <args>...", tf.Use)
	assert.NoError(t, tf.Args(tf, []string{"staging", "plan", "-var", "x=1"}))
	assert.Error(t, tf.Args(tf, []string{"staging"}))

	logs := newOperationCmd(byName["logs"])
	assert.Equal(t, "logs <env> <component>", logs.Use)
	flag := logs.Flags().Lookup("tail")
	require.NotNil(t, flag)
	assert.Equal(t, command.DefaultLogTail, flag.DefValue)

	assert.Len(t, NewOperationCmds(), len(command.List()))
}

func TestOpsCmd(t *testing.T) {
	c := newCLI(t)

	out, err := c.run(t, "-o", "json", "ops")
	require.NoError(t, err)

	var ops []command.Operation
	require.NoError(t, json.Unmarshal([]byte(out), &ops))
	names := make([]string, 0, len(ops))
	for _, op := range ops {
		names = append(names, op.Name)
	}
	assert.Contains(t, names, "bulk-update-image")
	assert.Contains(t, names, "provision")
}

func TestVersionCmd(t *testing.T) {
	c := newCLI(t)

	out, err := c.run(t, "-o", "json", "version")
	require.NoError(t, err)
	assert.Contains(t, out, `"goVersion"`)
}

func TestConfigInitAndVet(t *testing.T) {
	c := newCLI(t)
	c.configPath = filepath.Join(c.ws.Root, "conf", "envctl.yaml")

	out, err := c.run(t, "config", "init")
	require.NoError(t, err)
	assert.Contains(t, out, c.configPath)

	info, err := os.Stat(c.configPath)
	require.NoError(t, err)
	assert.Equal(t, os.FileMode(0o600), info.Mode().Perm())
	content := testutil.ReadFile(t, c.configPath)
	assert.Contains(t, content, "environmentsDir: environments")
	assert.Contains(t, content, "placeholder: ENV_NAME")

	_, err = c.run(t, "config", "init")
	require.Error(t, err)
	assert.Equal(t, ExitValidationError, ExitCodeFromError(err))

	_, err = c.run(t, "config", "init", "--force")
	require.NoError(t, err)

	out, err = c.run(t, "config", "vet")
	require.NoError(t, err)
	assert.Contains(t, out, "Configuration is valid")
}

func TestConfigVet(t *testing.T) {
	t.Run("missing file", func(t *testing.T) {
		c := newCLI(t)
		c.configPath = filepath.Join(c.ws.Root, "missing.yaml")

		_, err := c.run(t, "config", "vet")
		require.Error(t, err)
		assert.Equal(t, ExitNotFound, ExitCodeFromError(err))
	})

	t.Run("schema violation", func(t *testing.T) {
		c := newCLI(t)
		require.NoError(t, os.WriteFile(c.configPath, []byte("workdir: "+c.ws.Root+"\ndns:\n  ttl: 5\n"), 0o644))

		_, err := c.run(t, "config", "vet")
		require.Error(t, err)
		assert.Equal(t, ExitValidationError, ExitCodeFromError(err))
		assert.Contains(t, err.Error(), "ttl")
	})

	t.Run("invalid environment name", func(t *testing.T) {
		c := newCLI(t)
		require.NoError(t, os.MkdirAll(filepath.Join(c.ws.EnvironmentsDir, "Bad_Name"), 0o755))

		_, err := c.run(t, "config", "vet")
		require.Error(t, err)
		assert.Equal(t, ExitValidationError, ExitCodeFromError(err))
		assert.Contains(t, err.Error(), "Bad_Name")
	})
}

func TestGetConfigAppliesResolvedValues(t *testing.T) {
	c := newCLI(t)

	_, err := c.run(t, "--workdir", "/srv/envctl", "--context", "prod", "version")
	require.NoError(t, err)

	cfg, err := GetConfig()
	require.NoError(t, err)
	assert.Equal(t, "/srv/envctl", cfg.Workdir)
	assert.Equal(t, "prod", cfg.Kubernetes.Context)
	assert.Equal(t, filepath.Join("/srv/envctl", "environments"), cfg.EnvironmentsPath())
}

func TestConfigShow(t *testing.T) {
	c := newCLI(t)
	t.Setenv("ENVCTL_CONTEXT", "kind-dev")

	out, err := c.run(t, "-o", "json", "config", "show")
	require.NoError(t, err)

	var values []map[string]any
	require.NoError(t, json.Unmarshal([]byte(out), &values))

	byKey := map[string]map[string]any{}
	for _, v := range values {
		byKey[v["key"].(string)] = v
	}
	require.Contains(t, byKey, "kubernetes.context")
	assert.Equal(t, "kind-dev", byKey["kubernetes.context"]["value"])
	assert.Equal(t, "env", byKey["kubernetes.context"]["source"])
	assert.Equal(t, "flag", byKey["config"]["source"])
	assert.Equal(t, "json", byKey["output"]["value"])
}
