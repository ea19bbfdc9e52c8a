package policy

import (
	_ "embed"
	"fmt"
	"strings"
	"sync"

	"github.com/santhosh-tekuri/jsonschema/v5"
)

//go:embed policy.schema.json
var documentSchema string

const schemaURL = "policy.schema.json"

var (
	schemaOnce     sync.Once
	compiledSchema *jsonschema.Schema
	schemaErr      error
)

func loadSchema() (*jsonschema.Schema, error) {
	schemaOnce.Do(func() {
		c := jsonschema.NewCompiler()
		if err := c.AddResource(schemaURL, strings.NewReader(documentSchema)); err != nil {
			schemaErr = fmt.Errorf("add policy schema: %w", err)
			return
		}
		compiledSchema, schemaErr = c.Compile(schemaURL)
	})
	return compiledSchema, schemaErr
}

// validateDocument checks a JSON-decoded policy document against the
// embedded document schema.
func validateDocument(doc any) error {
	schema, err := loadSchema()
	if err != nil {
		return err
	}
	if err := schema.Validate(doc); err != nil {
		return &PolicyError{PolicyID: documentID(doc), Reason: "document does not match schema: " + err.Error()}
	}
	return nil
}

func documentID(doc any) string {
	if m, ok := doc.(map[string]any); ok {
		if id, ok := m["id"].(string); ok {
			return id
		}
	}
	return ""
}
