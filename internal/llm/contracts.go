package llm

import "context"

// InvoiceFields is the normalized shape we want back from the model. The
// field set is the single contract boundary with the provider: anything that
// honors it can be swapped in without touching downstream components.
type InvoiceFields struct {
	Vendor         string `json:"vendor"`
	VendorABN      string `json:"vendor_abn,omitempty"`
	DocumentNumber string `json:"document_number,omitempty"`
	DocumentDate   string `json:"document_date"` // YYYY-MM-DD
	Currency       string `json:"currency"`      // ISO 4217
	Subtotal       string `json:"subtotal,omitempty"` // decimal
	Tax            string `json:"tax,omitempty"`      // decimal
	TotalAmount    string `json:"total_amount"`       // decimal
	Description    string `json:"description,omitempty"`
	CategoryHint   string `json:"category_hint,omitempty"` // advisory only
}

// requiredFields must be present and non-empty in every response; absence is
// a missing_field structuring failure, never guess-filled.
var requiredFields = []string{"vendor", "document_date", "total_amount", "currency"}

// Structurer is the interface the pipeline depends on.
type Structurer interface {
	Structure(ctx context.Context, text string) (InvoiceFields, []byte /*rawJSON*/, error)
}
