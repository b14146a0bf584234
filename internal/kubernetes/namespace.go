package kubernetes

import (
	"context"
	"fmt"
	"sort"
	"time"

	corev1 "k8s.io/api/core/v1"
	apierrors "k8s.io/apimachinery/pkg/api/errors"
	metav1 "k8s.io/apimachinery/pkg/apis/meta/v1"

	"github.com/envctl/envctl/internal/output"
)

// NamespaceInfo describes an environment namespace found in the cluster.
type NamespaceInfo struct {
	Name    string    `json:"name"`
	Version string    `json:"version"`
	Phase   string    `json:"phase"`
	Created time.Time `json:"created"`
}

// CreateNamespace creates the namespace of an environment labelled with its
// skeleton version. An existing namespace has its labels updated.
func (c *Client) CreateNamespace(ctx context.Context, name, version string) (string, error) {
	labels := map[string]string{
		LabelManagedBy:   labelManagedByValue,
		LabelEnvironment: name,
		LabelVersion:     version,
	}

	ns := &corev1.Namespace{ObjectMeta: metav1.ObjectMeta{Name: name, Labels: labels}}
	_, err := c.Clientset.CoreV1().Namespaces().Create(ctx, ns, metav1.CreateOptions{FieldManager: fieldManagerName})
	if err == nil {
		return output.StatusCreated, nil
	}
	if !apierrors.IsAlreadyExists(err) {
		return "", fmt.Errorf("creating namespace %s: %w", name, err)
	}

	existing, err := c.Clientset.CoreV1().Namespaces().Get(ctx, name, metav1.GetOptions{})
	if err != nil {
		return "", fmt.Errorf("reading namespace %s: %w", name, err)
	}
	if existing.Labels == nil {
		existing.Labels = map[string]string{}
	}
	for k, v := range labels {
		existing.Labels[k] = v
	}
	if _, err := c.Clientset.CoreV1().Namespaces().Update(ctx, existing, metav1.UpdateOptions{FieldManager: fieldManagerName}); err != nil {
		return "", fmt.Errorf("updating namespace %s: %w", name, err)
	}
	return output.StatusConfigured, nil
}

// DeleteNamespace deletes a namespace. It reports false when it does not exist.
func (c *Client) DeleteNamespace(ctx context.Context, name string) (bool, error) {
	err := c.Clientset.CoreV1().Namespaces().Delete(ctx, name, metav1.DeleteOptions{})
	switch {
	case apierrors.IsNotFound(err):
		return false, nil
	case err != nil:
		return false, fmt.Errorf("deleting namespace %s: %w", name, err)
	}
	return true, nil
}

// ListEnvironmentNamespaces returns the namespaces that carry a version
// label, ordered by name.
func (c *Client) ListEnvironmentNamespaces(ctx context.Context) ([]NamespaceInfo, error) {
	list, err := c.Clientset.CoreV1().Namespaces().List(ctx, metav1.ListOptions{LabelSelector: LabelVersion})
	if err != nil {
		return nil, fmt.Errorf("listing namespaces: %w", err)
	}

	out := make([]NamespaceInfo, 0, len(list.Items))
	for i := range list.Items {
		ns := &list.Items[i]
		out = append(out, NamespaceInfo{
			Name:    ns.Name,
			Version: ns.Labels[LabelVersion],
			Phase:   string(ns.Status.Phase),
			Created: ns.CreationTimestamp.Time,
		})
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out, nil
}
