package kubernetes

import (
	"context"
	"encoding/json"
	"fmt"

	apierrors "k8s.io/apimachinery/pkg/api/errors"
	metav1 "k8s.io/apimachinery/pkg/apis/meta/v1"
	"k8s.io/apimachinery/pkg/apis/meta/v1/unstructured"
	"k8s.io/apimachinery/pkg/types"

	"github.com/envctl/envctl/internal/output"
)

// Apply server-side applies obj in namespace ns with the envctl field
// manager, taking ownership of conflicting fields. Fields owned by other
// managers are left alone. Objects that declare their own namespace keep it.
// The returned status is output.StatusCreated, output.StatusConfigured or
// output.StatusUnchanged.
func (c *Client) Apply(ctx context.Context, obj *unstructured.Unstructured, ns string) (string, error) {
	obj = obj.DeepCopy()
	ns = namespaceFor(obj, ns)
	if ns != "" {
		obj.SetNamespace(ns)
	}
	injectLabels(obj)

	rc := c.resourceClient(obj, ns)

	// The live resource version tells created, configured and unchanged apart.
	found := true
	var existingVersion string
	existing, err := rc.Get(ctx, obj.GetName(), metav1.GetOptions{})
	switch {
	case err == nil:
		existingVersion = existing.GetResourceVersion()
	case apierrors.IsNotFound(err):
		found = false
	default:
		return "", fmt.Errorf("reading %s/%s: %w", obj.GetKind(), obj.GetName(), err)
	}

	data, err := json.Marshal(obj)
	if err != nil {
		return "", fmt.Errorf("marshaling %s/%s: %w", obj.GetKind(), obj.GetName(), err)
	}

	result, err := rc.Patch(ctx, obj.GetName(), types.ApplyPatchType, data, metav1.PatchOptions{
		FieldManager: fieldManagerName,
		Force:        boolPtr(true),
	})
	if err != nil {
		return "", fmt.Errorf("applying %s/%s: %w", obj.GetKind(), obj.GetName(), err)
	}

	switch {
	case !found:
		return output.StatusCreated, nil
	case result != nil && existingVersion != "" && result.GetResourceVersion() == existingVersion:
		return output.StatusUnchanged, nil
	default:
		return output.StatusConfigured, nil
	}
}

// Create creates obj in namespace ns and fails if it already exists.
func (c *Client) Create(ctx context.Context, obj *unstructured.Unstructured, ns string) error {
	obj = obj.DeepCopy()
	ns = namespaceFor(obj, ns)
	if ns != "" {
		obj.SetNamespace(ns)
	}
	injectLabels(obj)

	if _, err := c.resourceClient(obj, ns).Create(ctx, obj, metav1.CreateOptions{FieldManager: fieldManagerName}); err != nil {
		return fmt.Errorf("creating %s/%s: %w", obj.GetKind(), obj.GetName(), err)
	}
	return nil
}

// injectLabels marks obj as managed by envctl.
func injectLabels(obj *unstructured.Unstructured) {
	labels := obj.GetLabels()
	if labels == nil {
		labels = make(map[string]string)
	}
	labels[LabelManagedBy] = labelManagedByValue
	obj.SetLabels(labels)
}

func boolPtr(b bool) *bool {
	return &b
}
