package kubernetes

// Labels applied to envctl-managed objects.
const (
	LabelManagedBy      = "app.kubernetes.io/managed-by"
	labelManagedByValue = "envctl"

	// LabelEnvironment names the environment a namespace belongs to.
	LabelEnvironment = "envctl.io/environment"

	// LabelVersion records the skeleton version a namespace was provisioned from.
	LabelVersion = "envctl.io/version"

	// LabelApp selects the pods of a component.
	LabelApp = "app"
)

// fieldManagerName is the field manager recorded on writes.
const fieldManagerName = "envctl"
