// Package cmd provides the envctl command line.
package cmd

// Exit codes returned by envctl.
const (
	// ExitSuccess indicates the command completed successfully.
	ExitSuccess = 0

	// ExitGeneralError indicates an unspecified error occurred.
	ExitGeneralError = 1

	// ExitValidationError indicates invalid arguments, configuration or specifications.
	ExitValidationError = 2

	// ExitConnectivityError indicates the cluster or another collaborator was unreachable.
	ExitConnectivityError = 3

	// ExitNotFound indicates an unknown environment, component, version or task.
	ExitNotFound = 5

	// ExitExternalError indicates an external command or API call failed.
	ExitExternalError = 7
)

// ExitCodeName returns the name of the exit code.
func ExitCodeName(code int) string {
	switch code {
	case ExitSuccess:
		return "Success"
	case ExitGeneralError:
		return "General Error"
	case ExitValidationError:
		return "Validation Error"
	case ExitConnectivityError:
		return "Connectivity Error"
	case ExitNotFound:
		return "Not Found"
	case ExitExternalError:
		return "External Error"
	default:
		return "Unknown"
	}
}
