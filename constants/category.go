package constants

import (
	"strings"
)

type Category string

const (
	BankFees                Category = "BankFees"
	Communications          Category = "Communications"
	Dining                  Category = "Dining"
	Entertainment           Category = "Entertainment"
	Equipment               Category = "Equipment"
	Groceries               Category = "Groceries"
	Health                  Category = "Health"
	Income                  Category = "Income"
	Insurance               Category = "Insurance"
	ProfessionalDevelopment Category = "ProfessionalDevelopment"
	ProfessionalMembership  Category = "ProfessionalMembership"
	Shopping                Category = "Shopping"
	SoftwareSubscriptions   Category = "SoftwareSubscriptions"
	Transfer                Category = "Transfer"
	Transport               Category = "Transport"
	Utilities               Category = "Utilities"
	Other                   Category = "Other"
)

var allCategories = []Category{
	BankFees,
	Communications,
	Dining,
	Entertainment,
	Equipment,
	Groceries,
	Health,
	Income,
	Insurance,
	ProfessionalDevelopment,
	ProfessionalMembership,
	Shopping,
	SoftwareSubscriptions,
	Transfer,
	Transport,
	Utilities,
	Other,
}

func AllCategories() []Category {
	out := make([]Category, len(allCategories))
	copy(out, allCategories)
	return out
}

func AsStringSlice() []string {
	result := make([]string, len(allCategories))
	for i, cat := range allCategories {
		result[i] = string(cat)
	}
	return result
}

// Canonicalize maps a free-form label (typically the LLM category hint)
// onto the closed category set. The hint is advisory only; the rule-based
// categorizer makes the final determination.
func Canonicalize(input string) (Category, bool) {
	if input == "" {
		return Other, false
	}

	normalized := strings.ToLower(strings.TrimSpace(input))

	// synonyms map
	synonyms := map[string]Category{
		"food":           Groceries,
		"grocery":        Groceries,
		"supermarket":    Groceries,
		"restaurant":     Dining,
		"meals":          Dining,
		"cafe":           Dining,
		"travel":         Transport,
		"fuel":           Transport,
		"electricity":    Utilities,
		"power":          Utilities,
		"water":          Utilities,
		"internet":       Communications,
		"phone":          Communications,
		"mobile":         Communications,
		"telco":          Communications,
		"saas":           SoftwareSubscriptions,
		"software":       SoftwareSubscriptions,
		"subscription":   SoftwareSubscriptions,
		"hardware":       Equipment,
		"computer":       Equipment,
		"course":         ProfessionalDevelopment,
		"training":       ProfessionalDevelopment,
		"membership":     ProfessionalMembership,
		"association":    ProfessionalMembership,
		"medical":        Health,
		"pharmacy":       Health,
		"bank fees":      BankFees,
		"banking":        BankFees,
		"salary":         Income,
		"wages":          Income,
		"internal":       Transfer,
		"streaming":      Entertainment,
		"retail":         Shopping,
		"clothing":       Shopping,
		"policy":         Insurance,
		"communication":  Communications,
		"utility":        Utilities,
		"transportation": Transport,
	}

	if cat, ok := synonyms[normalized]; ok {
		return cat, true
	}

	// check if it matches any category string
	for _, cat := range allCategories {
		if normalized == strings.ToLower(string(cat)) {
			return cat, true
		}
	}

	return Other, false
}
