package output

import (
	"encoding/json"
	"fmt"
	"io"
	"strings"

	"sigs.k8s.io/yaml"
)

// OutputFormat specifies the output format.
type OutputFormat string

const (
	// FormatYAML outputs in YAML format.
	FormatYAML OutputFormat = "yaml"

	// FormatJSON outputs in JSON format.
	FormatJSON OutputFormat = "json"

	// FormatTable outputs in table format.
	FormatTable OutputFormat = "table"
)

// String returns the string representation of the output format.
func (f OutputFormat) String() string {
	return string(f)
}

// IsValid checks if the output format is valid.
func (f OutputFormat) IsValid() bool {
	switch f {
	case FormatYAML, FormatJSON, FormatTable:
		return true
	default:
		return false
	}
}

// ParseOutputFormat parses a string into an OutputFormat.
// Returns FormatTable if the string is empty or invalid.
func ParseOutputFormat(s string) OutputFormat {
	switch strings.ToLower(s) {
	case "yaml", "yml":
		return FormatYAML
	case "json":
		return FormatJSON
	default:
		return FormatTable
	}
}

// ValidFormats returns a slice of valid output format strings.
func ValidFormats() []string {
	return []string{"table", "yaml", "json"}
}

// Tabular is implemented by results that know how to render themselves as a table.
type Tabular interface {
	Table() *Table
}

// Render writes v to w in the requested format. When a table is requested,
// values that implement neither Tabular nor fmt.Stringer fall back to YAML.
// Strings are written as-is.
func Render(w io.Writer, format OutputFormat, v any) error {
	if v == nil {
		return nil
	}

	switch format {
	case FormatJSON:
		data, err := json.MarshalIndent(v, "", "  ")
		if err != nil {
			return fmt.Errorf("encoding json: %w", err)
		}
		_, err = fmt.Fprintln(w, string(data))
		return err
	case FormatTable:
		switch t := v.(type) {
		case Tabular:
			_, err := fmt.Fprintln(w, t.Table().String())
			return err
		case string:
			_, err := fmt.Fprintln(w, t)
			return err
		case fmt.Stringer:
			_, err := fmt.Fprintln(w, t.String())
			return err
		}
	}

	if s, ok := v.(string); ok {
		_, err := fmt.Fprintln(w, s)
		return err
	}

	data, err := yaml.Marshal(v)
	if err != nil {
		return fmt.Errorf("encoding yaml: %w", err)
	}
	_, err = w.Write(data)
	return err
}
