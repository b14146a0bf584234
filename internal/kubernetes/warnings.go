package kubernetes

import (
	"github.com/envctl/envctl/internal/output"
)

// Levels accepted by ClientOptions.APIWarnings.
const (
	WarningsWarn     = "warn"
	WarningsDebug    = "debug"
	WarningsSuppress = "suppress"
)

// warningHandler implements rest.WarningHandler to route API server warnings
// through the envctl logger instead of klog.
type warningHandler struct {
	level string
}

// HandleWarningHeader implements rest.WarningHandler.
func (h *warningHandler) HandleWarningHeader(code int, agent string, text string) {
	switch h.level {
	case WarningsSuppress:
		return
	case WarningsDebug:
		output.Debug("kubernetes API warning", "warning", text)
	default:
		output.Warn("kubernetes API warning", "warning", text)
	}
}
