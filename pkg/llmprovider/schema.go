package llmprovider

import "github.com/google/jsonschema-go/jsonschema"

// SchemaFor reflects a Go struct type into a JSON Schema describing a tool's
// input object, using the same struct-tag-driven reflection the langgraphgo
// pack entry's MCP adapter pulls in via google/jsonschema-go, rather than a
// hand-maintained map[string]any literal per tool.
func SchemaFor[T any]() (*jsonschema.Schema, error) {
	return jsonschema.For[T](nil)
}
