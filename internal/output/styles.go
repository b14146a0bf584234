package output

import (
	"fmt"
	"strings"

	"github.com/charmbracelet/lipgloss"
)

// Color palette. Use these instead of inline lipgloss.Color literals.
var (
	// ColorCyan is used for identifiable nouns: environments, components, images.
	ColorCyan = lipgloss.Color("14")

	// ColorGreen is used for the "created" and "restored" statuses.
	ColorGreen = lipgloss.Color("82")

	// ColorYellow is used for the "configured" and "skipped" statuses.
	ColorYellow = lipgloss.Color("220")

	// ColorRed is used for the "deleted" and "dropped" statuses.
	ColorRed = lipgloss.Color("196")

	// ColorBoldRed is used for the "failed" status (matches ERROR level).
	ColorBoldRed = lipgloss.Color("204")

	// ColorGreenCheck is used for the completion checkmark.
	ColorGreenCheck = lipgloss.Color("10")

	// ColorDimGray is used for borders and other structural chrome.
	ColorDimGray = lipgloss.Color("240")

	// ColorBlue is used for table headers.
	ColorBlue = lipgloss.Color("12")
)

// Semantic styles.
var (
	// StyleNoun styles identifiable nouns (environment, component and image names).
	StyleNoun = lipgloss.NewStyle().Foreground(ColorCyan)

	// StyleAction styles action verbs (provisioning, refreshing, rolling).
	StyleAction = lipgloss.NewStyle().Bold(true)

	// StyleDim styles structural chrome (scope prefixes, separators).
	StyleDim = lipgloss.NewStyle().Faint(true)

	// StyleSummary styles completion and summary lines.
	StyleSummary = lipgloss.NewStyle().Bold(true)
)

// Status constants shared by components, tasks and refresh reports.
const (
	StatusCreated    = "created"
	StatusConfigured = "configured"
	StatusUnchanged  = "unchanged"
	StatusDeleted    = "deleted"
	StatusFailed     = "failed"
	StatusRestored   = "restored"
	StatusSkipped    = "skipped"
	StatusDropped    = "dropped"
)

// StatusStyle returns the lipgloss style for a status string.
// Unknown statuses return an unstyled default.
func StatusStyle(status string) lipgloss.Style {
	switch status {
	case StatusCreated, StatusRestored:
		return lipgloss.NewStyle().Foreground(ColorGreen)
	case StatusConfigured, StatusSkipped:
		return lipgloss.NewStyle().Foreground(ColorYellow)
	case StatusUnchanged:
		return lipgloss.NewStyle().Faint(true)
	case StatusDeleted, StatusDropped:
		return lipgloss.NewStyle().Foreground(ColorRed)
	case StatusFailed:
		return lipgloss.NewStyle().Bold(true).Foreground(ColorBoldRed)
	default:
		return lipgloss.NewStyle()
	}
}

// minComponentColumnWidth keeps status words aligned across lines.
const minComponentColumnWidth = 40

// FormatComponentLine renders a component identifier with a right-aligned,
// color-coded status suffix.
//
// Format: c:<env>/<component>  <status>
func FormatComponentLine(env, component, status string) string {
	path := fmt.Sprintf("%s/%s", env, component)

	padding := minComponentColumnWidth - len(path)
	if padding < 2 {
		padding = 2
	}

	return StyleDim.Render("c:") +
		StyleNoun.Render(path) +
		strings.Repeat(" ", padding) +
		StatusStyle(status).Render(status)
}

// FormatCheckmark renders a green checkmark with a message for stdout output.
func FormatCheckmark(msg string) string {
	check := lipgloss.NewStyle().Foreground(ColorGreenCheck).Render("✔")
	return check + " " + msg
}

// DiffStyles holds the styles used when rendering refresh previews.
type DiffStyles struct {
	Added    lipgloss.Style
	Removed  lipgloss.Style
	Modified lipgloss.Style
}

// DefaultDiffStyles returns colored diff styles.
func DefaultDiffStyles() *DiffStyles {
	return &DiffStyles{
		Added:    lipgloss.NewStyle().Foreground(ColorGreen),
		Removed:  lipgloss.NewStyle().Foreground(ColorRed),
		Modified: lipgloss.NewStyle().Foreground(ColorYellow),
	}
}

// NoColorDiffStyles returns unstyled diff styles for tests and pipes.
func NoColorDiffStyles() *DiffStyles {
	return &DiffStyles{
		Added:    lipgloss.NewStyle(),
		Removed:  lipgloss.NewStyle(),
		Modified: lipgloss.NewStyle(),
	}
}

// vetLabelWidth aligns the detail column of FormatVetCheck lines.
const vetLabelWidth = 30

// FormatVetCheck renders a passed validation check with an optional dim detail.
func FormatVetCheck(label, detail string) string {
	line := FormatCheckmark(label)
	if detail == "" {
		return line
	}
	padding := vetLabelWidth - len(label)
	if padding < 2 {
		padding = 2
	}
	return line + strings.Repeat(" ", padding) + StyleDim.Render(detail)
}
