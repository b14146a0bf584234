package kubernetes

import (
	"sort"

	"k8s.io/apimachinery/pkg/apis/meta/v1/unstructured"
)

// Kinds with a lower weight are applied first. Unlisted kinds get
// weightDefault.
var kindWeights = map[string]int{
	"CustomResourceDefinition": -100,
	"Namespace":                0,
	"ServiceAccount":           10,
	"Role":                     10,
	"RoleBinding":              10,
	"Secret":                   15,
	"ConfigMap":                15,
	"PersistentVolumeClaim":    20,
	"Service":                  50,
	"ReplicationController":    100,
	"Deployment":               100,
	"StatefulSet":              100,
	"DaemonSet":                100,
	"Job":                      110,
	"CronJob":                  110,
	"Ingress":                  150,
	"NetworkPolicy":            150,
	"HorizontalPodAutoscaler":  200,
	"PodDisruptionBudget":      200,
}

const weightDefault = 1000

// Weight returns the apply weight of kind.
func Weight(kind string) int {
	if w, ok := kindWeights[kind]; ok {
		return w
	}
	return weightDefault
}

// SortForApply orders resources so dependencies such as secrets and config
// maps are applied before the workloads that mount them. The sort is stable.
func SortForApply(resources []*unstructured.Unstructured) {
	sort.SliceStable(resources, func(i, j int) bool {
		return Weight(resources[i].GetKind()) < Weight(resources[j].GetKind())
	})
}
