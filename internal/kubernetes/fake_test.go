package kubernetes

import (
	"fmt"
	"strconv"
	"testing"

	corev1 "k8s.io/api/core/v1"
	"k8s.io/apimachinery/pkg/api/equality"
	apierrors "k8s.io/apimachinery/pkg/api/errors"
	metav1 "k8s.io/apimachinery/pkg/apis/meta/v1"
	"k8s.io/apimachinery/pkg/apis/meta/v1/unstructured"
	"k8s.io/apimachinery/pkg/runtime"
	"k8s.io/apimachinery/pkg/runtime/schema"
	"k8s.io/apimachinery/pkg/types"
	fakedynamic "k8s.io/client-go/dynamic/fake"
	"k8s.io/client-go/kubernetes/fake"
	k8stesting "k8s.io/client-go/testing"
)

var (
	rcGVR      = schema.GroupVersionResource{Version: "v1", Resource: "replicationcontrollers"}
	serviceGVR = schema.GroupVersionResource{Version: "v1", Resource: "services"}
	configGVR  = schema.GroupVersionResource{Version: "v1", Resource: "configmaps"}
)

// newFakeClient returns a Client backed by fake dynamic and typed clients.
func newFakeClient(t *testing.T, typed ...runtime.Object) *Client {
	t.Helper()
	dyn := fakedynamic.NewSimpleDynamicClientWithCustomListKinds(runtime.NewScheme(),
		map[schema.GroupVersionResource]string{
			rcGVR:      "ReplicationControllerList",
			serviceGVR: "ServiceList",
			configGVR:  "ConfigMapList",
		})
	dyn.PrependReactor("patch", "*", applyReactor(dyn))
	return &Client{Dynamic: dyn, Clientset: fake.NewClientset(typed...)}
}

// applyReactor answers apply patches the way the API server does for a
// single field manager: missing objects are created, existing ones get the
// applied fields merged over them so fields set by other writers survive,
// and the resource version only moves when something changed.
func applyReactor(dyn *fakedynamic.FakeDynamicClient) k8stesting.ReactionFunc {
	return func(action k8stesting.Action) (bool, runtime.Object, error) {
		patch, ok := action.(k8stesting.PatchAction)
		if !ok || patch.GetPatchType() != types.ApplyPatchType {
			return false, nil, nil
		}

		applied := &unstructured.Unstructured{}
		if err := applied.UnmarshalJSON(patch.GetPatch()); err != nil {
			return true, nil, err
		}

		gvr, ns, tracker := patch.GetResource(), patch.GetNamespace(), dyn.Tracker()
		current, err := tracker.Get(gvr, ns, patch.GetName())
		if apierrors.IsNotFound(err) {
			applied.SetResourceVersion("1")
			return true, applied, tracker.Create(gvr, applied, ns)
		}
		if err != nil {
			return true, nil, err
		}

		live, ok := current.(*unstructured.Unstructured)
		if !ok {
			return true, nil, fmt.Errorf("unexpected tracked type %T", current)
		}
		merged := live.DeepCopy()
		mergeFields(merged.Object, applied.Object)
		if equality.Semantic.DeepEqual(merged.Object, live.Object) {
			return true, live, nil
		}

		rv, _ := strconv.Atoi(live.GetResourceVersion())
		merged.SetResourceVersion(strconv.Itoa(rv + 1))
		return true, merged, tracker.Update(gvr, merged, ns)
	}
}

func mergeFields(dst, src map[string]interface{}) {
	for k, v := range src {
		if sv, ok := v.(map[string]interface{}); ok {
			if dv, ok := dst[k].(map[string]interface{}); ok {
				mergeFields(dv, sv)
				continue
			}
		}
		dst[k] = v
	}
}

// replicationController builds an RC named name running image.
func replicationController(name, image string) *unstructured.Unstructured {
	return &unstructured.Unstructured{Object: map[string]interface{}{
		"apiVersion": "v1",
		"kind":       "ReplicationController",
		"metadata": map[string]interface{}{
			"name":   name,
			"labels": map[string]interface{}{"app": name},
		},
		"spec": map[string]interface{}{
			"replicas": int64(2),
			"selector": map[string]interface{}{"app": name},
			"template": map[string]interface{}{
				"metadata": map[string]interface{}{
					"labels": map[string]interface{}{"app": name},
				},
				"spec": map[string]interface{}{
					"containers": []interface{}{
						map[string]interface{}{"name": name, "image": image},
					},
				},
			},
		},
	}}
}

// pod builds a pod of app in ns running image, started at start.
func pod(ns, name, app, image string, start metav1.Time, ready bool) *corev1.Pod {
	status := corev1.ConditionFalse
	if ready {
		status = corev1.ConditionTrue
	}
	return &corev1.Pod{
		ObjectMeta: metav1.ObjectMeta{
			Name:      name,
			Namespace: ns,
			Labels:    map[string]string{LabelApp: app},
		},
		Spec: corev1.PodSpec{
			Containers: []corev1.Container{{Name: app, Image: image}},
		},
		Status: corev1.PodStatus{
			Phase:     corev1.PodRunning,
			StartTime: &start,
			Conditions: []corev1.PodCondition{
				{Type: corev1.PodReady, Status: status},
			},
		},
	}
}
