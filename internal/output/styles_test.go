package output

import (
	"strings"
	"testing"

	"github.com/charmbracelet/lipgloss"
	"github.com/stretchr/testify/assert"
)

func TestStatusStyle(t *testing.T) {
	tests := []struct {
		name     string
		status   string
		wantBold bool
		wantFG   lipgloss.Color
		wantDim  bool
	}{
		{name: "created returns green", status: StatusCreated, wantFG: ColorGreen},
		{name: "restored returns green", status: StatusRestored, wantFG: ColorGreen},
		{name: "configured returns yellow", status: StatusConfigured, wantFG: ColorYellow},
		{name: "skipped returns yellow", status: StatusSkipped, wantFG: ColorYellow},
		{name: "unchanged returns faint", status: StatusUnchanged, wantDim: true},
		{name: "deleted returns red", status: StatusDeleted, wantFG: ColorRed},
		{name: "dropped returns red", status: StatusDropped, wantFG: ColorRed},
		{name: "failed returns bold red", status: StatusFailed, wantBold: true, wantFG: ColorBoldRed},
		{name: "unknown returns default unstyled", status: "unknown-value"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			style := StatusStyle(tt.status)
			if tt.wantBold {
				assert.True(t, style.GetBold(), "expected bold")
			}
			if tt.wantFG != "" {
				assert.Equal(t, tt.wantFG, style.GetForeground(), "foreground color mismatch")
			}
			if tt.wantDim {
				assert.True(t, style.GetFaint(), "expected faint")
			}
		})
	}
}

func TestFormatComponentLine(t *testing.T) {
	result := FormatComponentLine("staging", "api", StatusCreated)
	stripped := stripAnsi(result)

	assert.Contains(t, stripped, "staging/api")
	assert.Contains(t, stripped, StatusCreated)
	assert.True(t, strings.HasPrefix(stripped, "c:"), "should start with c: prefix")

	t.Run("alignment consistency", func(t *testing.T) {
		line1 := stripAnsi(FormatComponentLine("staging", "api", StatusRestored))
		line2 := stripAnsi(FormatComponentLine("production", "worker-queue", StatusRestored))

		assert.Equal(t,
			strings.Index(line1, StatusRestored),
			strings.Index(line2, StatusRestored),
			"status words should align to same column")
	})
}

func TestFormatCheckmark(t *testing.T) {
	result := FormatCheckmark("Environment created")
	assert.Contains(t, result, "✔")
	assert.Contains(t, result, "Environment created")
}

func TestFormatVetCheck(t *testing.T) {
	t.Run("without detail has no trailing whitespace", func(t *testing.T) {
		stripped := stripAnsi(FormatVetCheck("Schema validation passed", ""))
		assert.Contains(t, stripped, "Schema validation passed")
		assert.False(t, strings.HasSuffix(stripped, " "))
	})

	t.Run("detail aligns across lines", func(t *testing.T) {
		line1 := stripAnsi(FormatVetCheck("Config file found", "~/.envctl/config.yaml"))
		line2 := stripAnsi(FormatVetCheck("Skeletons directory found", "/srv/skeletons"))

		assert.Equal(t,
			strings.Index(line1, "~/.envctl/config.yaml"),
			strings.Index(line2, "/srv/skeletons"))
	})
}

// stripAnsi removes ANSI escape sequences for content assertions.
func stripAnsi(s string) string {
	var result strings.Builder
	inEscape := false
	for i := 0; i < len(s); i++ {
		if s[i] == '\033' {
			inEscape = true
			continue
		}
		if inEscape {
			if s[i] == 'm' {
				inEscape = false
			}
			continue
		}
		result.WriteByte(s[i])
	}
	return result.String()
}
