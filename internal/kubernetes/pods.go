package kubernetes

import (
	"context"
	"fmt"
	"time"

	corev1 "k8s.io/api/core/v1"
	metav1 "k8s.io/apimachinery/pkg/apis/meta/v1"
	"k8s.io/apimachinery/pkg/labels"

	oerrors "github.com/envctl/envctl/internal/errors"
)

// PodInfo summarizes the pod that currently serves a component.
type PodInfo struct {
	Name     string        `json:"name"`
	Phase    string        `json:"phase"`
	Ready    bool          `json:"ready"`
	Image    string        `json:"image"`
	Restarts int32         `json:"restarts"`
	Started  time.Time     `json:"started"`
	Uptime   time.Duration `json:"uptime"`
}

// NewestPod returns the most recently started pod labelled app=<app> in ns.
func (c *Client) NewestPod(ctx context.Context, ns, app string) (*PodInfo, error) {
	selector := labels.SelectorFromSet(labels.Set{LabelApp: app}).String()
	list, err := c.Clientset.CoreV1().Pods(ns).List(ctx, metav1.ListOptions{LabelSelector: selector})
	if err != nil {
		return nil, fmt.Errorf("listing pods of %s: %w", app, err)
	}

	var newest *corev1.Pod
	for i := range list.Items {
		pod := &list.Items[i]
		if newest == nil || startTime(pod).After(startTime(newest)) {
			newest = pod
		}
	}
	if newest == nil {
		return nil, oerrors.Wrapf(oerrors.ErrNotFound, "pod for %q in namespace %q", app, ns)
	}
	return podInfo(newest, time.Now()), nil
}

// Logs returns the last tail lines of the first container of pod. A tail of
// zero or less returns the whole log.
func (c *Client) Logs(ctx context.Context, ns, pod string, tail int64) (string, error) {
	opts := &corev1.PodLogOptions{}
	if tail > 0 {
		opts.TailLines = &tail
	}
	data, err := c.Clientset.CoreV1().Pods(ns).GetLogs(pod, opts).DoRaw(ctx)
	if err != nil {
		return "", fmt.Errorf("reading logs of %s: %w", pod, err)
	}
	return string(data), nil
}

// startTime prefers the kubelet start time and falls back to creation.
func startTime(pod *corev1.Pod) time.Time {
	if pod.Status.StartTime != nil {
		return pod.Status.StartTime.Time
	}
	return pod.CreationTimestamp.Time
}

func podInfo(pod *corev1.Pod, now time.Time) *PodInfo {
	info := &PodInfo{
		Name:    pod.Name,
		Phase:   string(pod.Status.Phase),
		Ready:   isPodReady(pod),
		Started: startTime(pod),
	}
	if len(pod.Spec.Containers) > 0 {
		info.Image = pod.Spec.Containers[0].Image
	}
	for _, cs := range pod.Status.ContainerStatuses {
		info.Restarts += cs.RestartCount
	}
	if !info.Started.IsZero() {
		info.Uptime = now.Sub(info.Started).Truncate(time.Second)
	}
	return info
}

func isPodReady(pod *corev1.Pod) bool {
	for _, cond := range pod.Status.Conditions {
		if cond.Type == corev1.PodReady {
			return cond.Status == corev1.ConditionTrue
		}
	}
	return false
}

// LoadBalancerTargets returns the external address of every LoadBalancer
// service in ns, keyed by service name. Services without an ingress yet are
// left out.
func (c *Client) LoadBalancerTargets(ctx context.Context, ns string) (map[string]string, error) {
	list, err := c.Clientset.CoreV1().Services(ns).List(ctx, metav1.ListOptions{})
	if err != nil {
		return nil, fmt.Errorf("listing services: %w", err)
	}

	targets := map[string]string{}
	for i := range list.Items {
		svc := &list.Items[i]
		if svc.Spec.Type != corev1.ServiceTypeLoadBalancer {
			continue
		}
		for _, ingress := range svc.Status.LoadBalancer.Ingress {
			switch {
			case ingress.IP != "":
				targets[svc.Name] = ingress.IP
			case ingress.Hostname != "":
				targets[svc.Name] = ingress.Hostname
			default:
				continue
			}
			break
		}
	}
	return targets, nil
}
