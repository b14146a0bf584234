package kubernetes

import (
	"context"
	"fmt"

	apierrors "k8s.io/apimachinery/pkg/api/errors"
	metav1 "k8s.io/apimachinery/pkg/apis/meta/v1"
	"k8s.io/apimachinery/pkg/apis/meta/v1/unstructured"
)

// Delete removes obj from namespace ns with background propagation. It
// reports false without error when the object does not exist.
func (c *Client) Delete(ctx context.Context, obj *unstructured.Unstructured, ns string) (bool, error) {
	ns = namespaceFor(obj, ns)
	propagation := metav1.DeletePropagationBackground

	err := c.resourceClient(obj, ns).Delete(ctx, obj.GetName(), metav1.DeleteOptions{
		PropagationPolicy: &propagation,
	})
	switch {
	case apierrors.IsNotFound(err):
		return false, nil
	case err != nil:
		return false, fmt.Errorf("deleting %s/%s: %w", obj.GetKind(), obj.GetName(), err)
	}
	return true, nil
}
