package llm

import (
	"bytes"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/santhosh-tekuri/jsonschema/v5"
)

// ValidateFields checks the sanitized field map against the invoice schema.
// The error distinguishes a missing required field from a malformed value,
// since only the caller's wording changes; neither is retried.
func ValidateFields(fields map[string]interface{}) (missing []string, err error) {
	for _, key := range requiredFields {
		v, ok := fields[key]
		if !ok {
			missing = append(missing, key)
			continue
		}
		if s, isStr := v.(string); isStr && strings.TrimSpace(s) == "" {
			missing = append(missing, key)
		}
	}
	if len(missing) > 0 {
		return missing, fmt.Errorf("missing required fields: %s", strings.Join(missing, ", "))
	}

	schemaBytes, err := json.Marshal(BuildInvoiceSchema())
	if err != nil {
		return nil, fmt.Errorf("marshal schema: %w", err)
	}

	compiler := jsonschema.NewCompiler()
	if err := compiler.AddResource("invoice.json", bytes.NewReader(schemaBytes)); err != nil {
		return nil, fmt.Errorf("add schema resource: %w", err)
	}
	schema, err := compiler.Compile("invoice.json")
	if err != nil {
		return nil, fmt.Errorf("compile schema: %w", err)
	}

	if err := schema.Validate(fields); err != nil {
		return nil, fmt.Errorf("schema validation: %w", err)
	}
	return nil, nil
}
