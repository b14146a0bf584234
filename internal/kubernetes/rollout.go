package kubernetes

import (
	"context"
	"fmt"
	"time"

	corev1 "k8s.io/api/core/v1"
	apierrors "k8s.io/apimachinery/pkg/api/errors"
	metav1 "k8s.io/apimachinery/pkg/apis/meta/v1"
	"k8s.io/apimachinery/pkg/apis/meta/v1/unstructured"
	"k8s.io/apimachinery/pkg/labels"

	"github.com/envctl/envctl/internal/output"
)

// RolloutOptions configures RollingUpdate.
type RolloutOptions struct {
	// ReadyTimeout bounds the wait for each replacement pod. Zero replaces
	// pods without waiting.
	ReadyTimeout time.Duration

	// PollInterval is the delay between readiness checks. Zero means one second.
	PollInterval time.Duration
}

// RolloutResult reports what a rolling update did.
type RolloutResult struct {
	Status   string   `json:"status"`
	Replaced []string `json:"replaced"`
}

// RollingUpdate applies obj and, for a ReplicationController, replaces its
// pods one at a time so they pick up the new template. Other kinds roll out
// through their own controller once applied.
func (c *Client) RollingUpdate(ctx context.Context, obj *unstructured.Unstructured, ns string, opts RolloutOptions) (*RolloutResult, error) {
	status, err := c.Apply(ctx, obj, ns)
	if err != nil {
		return nil, err
	}
	result := &RolloutResult{Status: status, Replaced: []string{}}
	if obj.GetKind() != "ReplicationController" || status == output.StatusCreated {
		return result, nil
	}

	ns = namespaceFor(obj, ns)
	selector := labels.SelectorFromSet(podSelector(obj)).String()
	image := templateImage(obj)

	pods, err := c.Clientset.CoreV1().Pods(ns).List(ctx, metav1.ListOptions{LabelSelector: selector})
	if err != nil {
		return nil, fmt.Errorf("listing pods of %s: %w", obj.GetName(), err)
	}

	for i := range pods.Items {
		pod := &pods.Items[i]
		if len(pod.Spec.Containers) > 0 && pod.Spec.Containers[0].Image == image {
			continue
		}

		err := c.Clientset.CoreV1().Pods(ns).Delete(ctx, pod.Name, metav1.DeleteOptions{})
		if err != nil && !apierrors.IsNotFound(err) {
			return result, fmt.Errorf("replacing pod %s: %w", pod.Name, err)
		}
		result.Replaced = append(result.Replaced, pod.Name)
		output.Debug("replaced pod", "namespace", ns, "pod", pod.Name)

		if opts.ReadyTimeout > 0 {
			if err := c.waitForImage(ctx, ns, selector, image, len(result.Replaced), opts); err != nil {
				return result, err
			}
		}
	}
	return result, nil
}

// waitForImage polls until want ready pods run image.
func (c *Client) waitForImage(ctx context.Context, ns, selector, image string, want int, opts RolloutOptions) error {
	interval := opts.PollInterval
	if interval <= 0 {
		interval = time.Second
	}
	ctx, cancel := context.WithTimeout(ctx, opts.ReadyTimeout)
	defer cancel()

	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		pods, err := c.Clientset.CoreV1().Pods(ns).List(ctx, metav1.ListOptions{LabelSelector: selector})
		if err == nil && countReady(pods.Items, image) >= want {
			return nil
		}
		select {
		case <-ctx.Done():
			return fmt.Errorf("waiting for %d ready pod(s) running %s: %w", want, image, ctx.Err())
		case <-ticker.C:
		}
	}
}

func countReady(pods []corev1.Pod, image string) int {
	n := 0
	for i := range pods {
		pod := &pods[i]
		if pod.DeletionTimestamp != nil || len(pod.Spec.Containers) == 0 {
			continue
		}
		if pod.Spec.Containers[0].Image == image && isPodReady(pod) {
			n++
		}
	}
	return n
}

// podSelector returns the pod selector of a ReplicationController. It falls
// back to the template labels and finally to app=<name>.
func podSelector(obj *unstructured.Unstructured) labels.Set {
	if sel, found, _ := unstructured.NestedStringMap(obj.Object, "spec", "selector"); found && len(sel) > 0 {
		return sel
	}
	if sel, found, _ := unstructured.NestedStringMap(obj.Object, "spec", "template", "metadata", "labels"); found && len(sel) > 0 {
		return sel
	}
	return labels.Set{LabelApp: obj.GetName()}
}

// templateImage returns the first container image of the pod template.
func templateImage(obj *unstructured.Unstructured) string {
	containers, found, _ := unstructured.NestedSlice(obj.Object, "spec", "template", "spec", "containers")
	if !found || len(containers) == 0 {
		return ""
	}
	first, ok := containers[0].(map[string]interface{})
	if !ok {
		return ""
	}
	image, _ := first["image"].(string)
	return image
}
