package healthcheck

import (
	"encoding/json"
	"fmt"
	"io"
	"strings"

	"sigs.k8s.io/yaml"
)

// Output formats accepted by WriteResult.
const (
	OutputTable = "table"
	OutputJSON  = "json"
	OutputYAML  = "yaml"
)

// ValidateOutputFormat rejects unknown -o values.
func ValidateOutputFormat(format string) error {
	switch strings.ToLower(format) {
	case OutputTable, OutputJSON, OutputYAML:
		return nil
	default:
		return fmt.Errorf("unsupported output format %q (table, json, yaml)", format)
	}
}

// WriteResult encodes res as JSON or YAML. The table format is rendered by
// ConsoleReporter, so it writes nothing here.
func WriteResult(w io.Writer, format string, res *RunResult) error {
	switch strings.ToLower(format) {
	case OutputJSON:
		data, err := json.MarshalIndent(res, "", "  ")
		if err != nil {
			return fmt.Errorf("failed to encode result: %w", err)
		}
		_, err = fmt.Fprintln(w, string(data))
		return err
	case OutputYAML:
		data, err := yaml.Marshal(res)
		if err != nil {
			return fmt.Errorf("failed to encode result: %w", err)
		}
		_, err = w.Write(data)
		return err
	case OutputTable:
		return nil
	default:
		return ValidateOutputFormat(format)
	}
}
