package server

// In this file: response output formatting. Responses default to a compact
// text rendering that is cheaper for agents to consume; JSON output can be
// forced with MCP_OUTPUT_FORMAT=json.

import (
	"encoding/json"
	"os"
)

// OutputFormat specifies the response output format.
type OutputFormat string

const (
	OutputFormatJSON    OutputFormat = "json"
	OutputFormatCompact OutputFormat = "compact"
)

// outputFormat controls the default output format for tool responses.
var outputFormat = OutputFormatCompact

func init() {
	if os.Getenv("MCP_OUTPUT_FORMAT") == "json" {
		outputFormat = OutputFormatJSON
	}
}

// CompactMarshaler is implemented by responses that support compact text
// output.
type CompactMarshaler interface {
	MarshalCompact() string
}

// marshalResponse marshals a value to string, using compact format if
// available.
func marshalResponse(v any) (string, error) {
	if outputFormat == OutputFormatCompact {
		if cm, ok := v.(CompactMarshaler); ok {
			return cm.MarshalCompact(), nil
		}
	}
	data, err := json.Marshal(v)
	return string(data), err
}
