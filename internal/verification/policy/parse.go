package policy

import (
	"bytes"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"gopkg.in/yaml.v3"
)

// Format is a policy document encoding.
type Format string

const (
	FormatYAML Format = "yaml"
	FormatJSON Format = "json"
)

// FormatFromPath infers the document format from a file extension.
func FormatFromPath(path string) (Format, bool) {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".yaml", ".yml":
		return FormatYAML, true
	case ".json":
		return FormatJSON, true
	}
	return "", false
}

// Parse decodes a policy document, checks it against the document schema,
// applies aggregation defaults for omitted parameters and validates the
// result.
func Parse(data []byte, format Format) (*Policy, error) {
	var doc any
	switch format {
	case FormatYAML:
		if err := yaml.Unmarshal(data, &doc); err != nil {
			return nil, &PolicyError{Reason: fmt.Sprintf("decode yaml: %v", err)}
		}
	case FormatJSON:
		if err := json.Unmarshal(data, &doc); err != nil {
			return nil, &PolicyError{Reason: fmt.Sprintf("decode json: %v", err)}
		}
	default:
		return nil, fmt.Errorf("unsupported policy format %q", format)
	}

	// YAML and JSON documents share one typed decode path through JSON so
	// literals have the same Go types regardless of source encoding.
	canonical, err := json.Marshal(doc)
	if err != nil {
		return nil, &PolicyError{Reason: fmt.Sprintf("document is not JSON compatible: %v", err)}
	}
	var generic any
	if err := json.Unmarshal(canonical, &generic); err != nil {
		return nil, &PolicyError{Reason: fmt.Sprintf("decode document: %v", err)}
	}
	if err := validateDocument(generic); err != nil {
		return nil, err
	}

	p := &Policy{Aggregation: DefaultAggregationParams()}
	dec := json.NewDecoder(bytes.NewReader(canonical))
	dec.DisallowUnknownFields()
	if err := dec.Decode(p); err != nil {
		return nil, &PolicyError{PolicyID: documentID(generic), Reason: fmt.Sprintf("decode policy: %v", err)}
	}
	if err := Validate(p); err != nil {
		return nil, err
	}
	return p, nil
}

// ParseFile reads and parses a policy document, inferring the format from
// the file extension.
func ParseFile(path string) (*Policy, error) {
	format, ok := FormatFromPath(path)
	if !ok {
		return nil, fmt.Errorf("policy file %s: unknown extension", path)
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read policy file: %w", err)
	}
	return Parse(data, format)
}

// Encode renders p in the given format.
func Encode(p *Policy, format Format) ([]byte, error) {
	switch format {
	case FormatYAML:
		return yaml.Marshal(p)
	case FormatJSON:
		return json.MarshalIndent(p, "", "  ")
	}
	return nil, fmt.Errorf("unsupported policy format %q", format)
}
