package kubernetes

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	metav1 "k8s.io/apimachinery/pkg/apis/meta/v1"
	"k8s.io/apimachinery/pkg/apis/meta/v1/unstructured"
	"k8s.io/apimachinery/pkg/labels"

	"github.com/envctl/envctl/internal/output"
)

func TestRollingUpdate_ReplacesOutdatedPods(t *testing.T) {
	ctx := context.Background()
	start := metav1.Now()
	client := newFakeClient(t,
		pod("staging", "api-1", "api", "registry/api:v1", start, true),
		pod("staging", "api-2", "api", "registry/api:v1", start, true),
		pod("staging", "api-3", "api", "registry/api:v2", start, true),
		pod("staging", "worker-1", "worker", "registry/worker:v1", start, true),
	)
	require.NoError(t, client.Create(ctx, replicationController("api", "registry/api:v1"), "staging"))

	result, err := client.RollingUpdate(ctx, replicationController("api", "registry/api:v2"), "staging", RolloutOptions{})
	require.NoError(t, err)
	assert.Equal(t, output.StatusConfigured, result.Status)
	assert.ElementsMatch(t, []string{"api-1", "api-2"}, result.Replaced)

	pods, err := client.Clientset.CoreV1().Pods("staging").List(ctx, metav1.ListOptions{})
	require.NoError(t, err)
	var names []string
	for _, p := range pods.Items {
		names = append(names, p.Name)
	}
	assert.ElementsMatch(t, []string{"api-3", "worker-1"}, names)
}

func TestRollingUpdate_NewObjectIsCreated(t *testing.T) {
	client := newFakeClient(t)

	result, err := client.RollingUpdate(context.Background(), replicationController("api", "registry/api:v2"), "staging", RolloutOptions{})
	require.NoError(t, err)
	assert.Equal(t, output.StatusCreated, result.Status)
	assert.Empty(t, result.Replaced)
}

func TestRollingUpdate_WaitsForReplacement(t *testing.T) {
	ctx := context.Background()
	start := metav1.Now()
	client := newFakeClient(t,
		pod("staging", "api-1", "api", "registry/api:v1", start, true),
		pod("staging", "api-2", "api", "registry/api:v1", start, true),
		pod("staging", "api-new", "api", "registry/api:v2", start, true),
	)
	require.NoError(t, client.Create(ctx, replicationController("api", "registry/api:v1"), "staging"))

	opts := RolloutOptions{ReadyTimeout: 100 * time.Millisecond, PollInterval: 10 * time.Millisecond}
	result, err := client.RollingUpdate(ctx, replicationController("api", "registry/api:v2"), "staging", opts)

	// Only one ready pod runs v2, so the wait after the second replacement
	// times out.
	require.Error(t, err)
	assert.ErrorIs(t, err, context.DeadlineExceeded)
	assert.Len(t, result.Replaced, 2)
}

func TestPodSelector(t *testing.T) {
	rc := replicationController("api", "registry/api:v1")
	assert.Equal(t, labels.Set{"app": "api"}, podSelector(rc))

	unstructured.RemoveNestedField(rc.Object, "spec", "selector")
	unstructured.RemoveNestedField(rc.Object, "spec", "template", "metadata")
	assert.Equal(t, labels.Set{"app": "api"}, podSelector(rc))

	rc = replicationController("api", "registry/api:v1")
	require.NoError(t, unstructured.SetNestedStringMap(rc.Object, map[string]string{"tier": "backend"}, "spec", "selector"))
	assert.Equal(t, labels.Set{"tier": "backend"}, podSelector(rc))
}

func TestTemplateImage(t *testing.T) {
	assert.Equal(t, "registry/api:v1", templateImage(replicationController("api", "registry/api:v1")))
	assert.Equal(t, "", templateImage(&unstructured.Unstructured{Object: map[string]interface{}{}}))
}
