package kubernetes

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	corev1 "k8s.io/api/core/v1"
	metav1 "k8s.io/apimachinery/pkg/apis/meta/v1"

	oerrors "github.com/envctl/envctl/internal/errors"
)

func TestNewestPod(t *testing.T) {
	now := time.Now()
	older := metav1.NewTime(now.Add(-2 * time.Hour))
	newer := metav1.NewTime(now.Add(-10 * time.Minute))

	client := newFakeClient(t,
		pod("staging", "api-a", "api", "registry/api:v1", older, true),
		pod("staging", "api-b", "api", "registry/api:v2", newer, false),
		pod("staging", "worker-a", "worker", "registry/worker:v1", newer, true),
		pod("prod", "api-c", "api", "registry/api:v9", metav1.NewTime(now), true),
	)

	info, err := client.NewestPod(context.Background(), "staging", "api")
	require.NoError(t, err)
	assert.Equal(t, "api-b", info.Name)
	assert.Equal(t, "registry/api:v2", info.Image)
	assert.Equal(t, "Running", info.Phase)
	assert.False(t, info.Ready)
	assert.InDelta(t, (10 * time.Minute).Seconds(), info.Uptime.Seconds(), 5)

	_, err = client.NewestPod(context.Background(), "staging", "missing")
	assert.ErrorIs(t, err, oerrors.ErrNotFound)
}

func TestPodInfo_Restarts(t *testing.T) {
	start := metav1.NewTime(time.Unix(1000, 0))
	p := pod("staging", "api-a", "api", "registry/api:v1", start, true)
	p.Status.ContainerStatuses = []corev1.ContainerStatus{{RestartCount: 2}, {RestartCount: 1}}

	info := podInfo(p, time.Unix(1090, 0))
	assert.Equal(t, int32(3), info.Restarts)
	assert.Equal(t, 90*time.Second, info.Uptime)
	assert.True(t, info.Ready)
}

func TestLogs(t *testing.T) {
	client := newFakeClient(t, pod("staging", "api-a", "api", "registry/api:v1", metav1.Now(), true))

	logs, err := client.Logs(context.Background(), "staging", "api-a", 50)
	require.NoError(t, err)
	assert.Equal(t, "fake logs", logs)
}

func TestLoadBalancerTargets(t *testing.T) {
	lb := func(name string, ingress ...corev1.LoadBalancerIngress) *corev1.Service {
		return &corev1.Service{
			ObjectMeta: metav1.ObjectMeta{Name: name, Namespace: "staging"},
			Spec:       corev1.ServiceSpec{Type: corev1.ServiceTypeLoadBalancer},
			Status:     corev1.ServiceStatus{LoadBalancer: corev1.LoadBalancerStatus{Ingress: ingress}},
		}
	}
	client := newFakeClient(t,
		lb("web", corev1.LoadBalancerIngress{IP: "203.0.113.10"}),
		lb("api", corev1.LoadBalancerIngress{Hostname: "api.lb.example.net"}),
		lb("pending"),
		&corev1.Service{
			ObjectMeta: metav1.ObjectMeta{Name: "internal", Namespace: "staging"},
			Spec:       corev1.ServiceSpec{Type: corev1.ServiceTypeClusterIP},
		},
	)

	targets, err := client.LoadBalancerTargets(context.Background(), "staging")
	require.NoError(t, err)
	assert.Equal(t, map[string]string{
		"web": "203.0.113.10",
		"api": "api.lb.example.net",
	}, targets)
}
