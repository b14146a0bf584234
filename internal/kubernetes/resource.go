package kubernetes

import (
	"strings"

	"k8s.io/apimachinery/pkg/apis/meta/v1/unstructured"
	"k8s.io/apimachinery/pkg/runtime/schema"
	"k8s.io/client-go/dynamic"
)

// gvrFromObject derives GroupVersionResource from an unstructured object.
func gvrFromObject(obj *unstructured.Unstructured) schema.GroupVersionResource {
	gvk := obj.GroupVersionKind()
	return schema.GroupVersionResource{
		Group:    gvk.Group,
		Version:  gvk.Version,
		Resource: kindToResource(gvk.Kind),
	}
}

// knownKindResources maps Kind to its plural resource name for well-known types.
// This avoids incorrect heuristic pluralization (e.g., Endpoints -> endpointses).
var knownKindResources = map[string]string{
	"Namespace":                "namespaces",
	"ServiceAccount":           "serviceaccounts",
	"Secret":                   "secrets",
	"ConfigMap":                "configmaps",
	"PersistentVolume":         "persistentvolumes",
	"PersistentVolumeClaim":    "persistentvolumeclaims",
	"Service":                  "services",
	"Endpoints":                "endpoints",
	"ClusterRole":              "clusterroles",
	"ClusterRoleBinding":       "clusterrolebindings",
	"Role":                     "roles",
	"RoleBinding":              "rolebindings",
	"StorageClass":             "storageclasses",
	"ReplicationController":    "replicationcontrollers",
	"Deployment":               "deployments",
	"StatefulSet":              "statefulsets",
	"DaemonSet":                "daemonsets",
	"ReplicaSet":               "replicasets",
	"Job":                      "jobs",
	"CronJob":                  "cronjobs",
	"Ingress":                  "ingresses",
	"NetworkPolicy":            "networkpolicies",
	"HorizontalPodAutoscaler":  "horizontalpodautoscalers",
	"PodDisruptionBudget":      "poddisruptionbudgets",
	"CustomResourceDefinition": "customresourcedefinitions",
	"ResourceQuota":            "resourcequotas",
	"LimitRange":               "limitranges",
	"Pod":                      "pods",
	"Node":                     "nodes",
	"PriorityClass":            "priorityclasses",
}

// clusterScopedKinds never take a namespace.
var clusterScopedKinds = map[string]bool{
	"Namespace":                true,
	"PersistentVolume":         true,
	"ClusterRole":              true,
	"ClusterRoleBinding":       true,
	"StorageClass":             true,
	"CustomResourceDefinition": true,
	"Node":                     true,
	"PriorityClass":            true,
}

// kindToResource converts a Kind to its plural resource name.
// Uses a known lookup table for common types, falls back to heuristic.
func kindToResource(kind string) string {
	if resource, ok := knownKindResources[kind]; ok {
		return resource
	}
	return heuristicPluralize(kind)
}

// heuristicPluralize applies simple English pluralization rules.
func heuristicPluralize(kind string) string {
	lower := strings.ToLower(kind)
	switch {
	case strings.HasSuffix(lower, "ss") || strings.HasSuffix(lower, "sh") || strings.HasSuffix(lower, "ch") || strings.HasSuffix(lower, "x"):
		return lower + "es"
	case strings.HasSuffix(lower, "s"):
		return lower
	case len(lower) > 1 && strings.HasSuffix(lower, "y") && !isVowel(lower[len(lower)-2]):
		return lower[:len(lower)-1] + "ies"
	default:
		return lower + "s"
	}
}

func isVowel(b byte) bool {
	return b == 'a' || b == 'e' || b == 'i' || b == 'o' || b == 'u'
}

// namespaceFor returns the namespace obj should live in: its own, or ns
// when it declares none. Cluster-scoped kinds get "".
func namespaceFor(obj *unstructured.Unstructured, ns string) string {
	if clusterScopedKinds[obj.GetKind()] {
		return ""
	}
	if obj.GetNamespace() != "" {
		return obj.GetNamespace()
	}
	return ns
}

// resourceClient returns the dynamic client for obj in namespace ns.
func (c *Client) resourceClient(obj *unstructured.Unstructured, ns string) dynamic.ResourceInterface {
	gvr := gvrFromObject(obj)
	if ns != "" {
		return c.Dynamic.Resource(gvr).Namespace(ns)
	}
	return c.Dynamic.Resource(gvr)
}
