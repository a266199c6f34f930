package llm

import "github.com/awhitfield/invoice-cataloger/constants"

// decimalPattern accepts plain decimal strings such as "89.95" or "-12.00".
// Thousands separators and currency symbols are stripped during sanitization
// before validation runs.
const decimalPattern = `^-?\d+(\.\d{1,4})?$`

// BuildInvoiceSchema returns the JSON schema the model output is validated
// against. Category hints are constrained to the known category names so a
// creative model cannot invent new ones.
func BuildInvoiceSchema() map[string]interface{} {
	return map[string]interface{}{
		"$schema": "https://json-schema.org/draft/2020-12/schema",
		"type":    "object",
		"properties": map[string]interface{}{
			"vendor": map[string]interface{}{
				"type":      "string",
				"minLength": 1,
			},
			"vendor_abn": map[string]interface{}{
				"type": "string",
			},
			"document_number": map[string]interface{}{
				"type": "string",
			},
			"document_date": map[string]interface{}{
				"type":    "string",
				"pattern": `^\d{4}-\d{2}-\d{2}$`,
			},
			"currency": map[string]interface{}{
				"type":    "string",
				"pattern": `^[A-Z]{3}$`,
			},
			"subtotal": map[string]interface{}{
				"type":    "string",
				"pattern": decimalPattern,
			},
			"tax": map[string]interface{}{
				"type":    "string",
				"pattern": decimalPattern,
			},
			"total_amount": map[string]interface{}{
				"type":    "string",
				"pattern": decimalPattern,
			},
			"description": map[string]interface{}{
				"type": "string",
			},
			"category_hint": map[string]interface{}{
				"type": "string",
				"enum": categoryHintEnum(),
			},
		},
		"required":             requiredFields,
		"additionalProperties": true,
	}
}

// categoryHintEnum is the category names plus "" so the model can decline to
// guess without tripping validation.
func categoryHintEnum() []interface{} {
	names := constants.AsStringSlice()
	enum := make([]interface{}, 0, len(names)+1)
	enum = append(enum, "")
	for _, n := range names {
		enum = append(enum, n)
	}
	return enum
}
