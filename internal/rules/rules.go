// Package rules implements deterministic keyword categorization. The model's
// category hint is advisory: the rule table always has the final say, so the
// same document text categorizes identically on every run.
package rules

import (
	"fmt"
	"strings"

	"github.com/awhitfield/invoice-cataloger/constants"
)

// Rule binds a category to its trigger keywords. Matching is case-insensitive
// substring search over the combined vendor and description text.
type Rule struct {
	Category constants.Category `yaml:"category"`
	Keywords []string           `yaml:"keywords"`
}

// Table is an ordered rule list. Declaration order is priority order: the
// first rule with a matching keyword wins, and later rules are not consulted.
type Table []Rule

// Validate rejects tables with unknown categories or empty keyword lists.
func (t Table) Validate() error {
	known := make(map[constants.Category]bool, len(constants.AllCategories()))
	for _, c := range constants.AllCategories() {
		known[c] = true
	}
	for i, rule := range t {
		if !known[rule.Category] {
			return fmt.Errorf("rule %d: unknown category %q", i, rule.Category)
		}
		if len(rule.Keywords) == 0 {
			return fmt.Errorf("rule %d (%s): no keywords", i, rule.Category)
		}
		for _, kw := range rule.Keywords {
			if strings.TrimSpace(kw) == "" {
				return fmt.Errorf("rule %d (%s): blank keyword", i, rule.Category)
			}
		}
	}
	return nil
}

// Categorizer assigns categories from a rule table.
type Categorizer struct {
	table Table
}

func NewCategorizer(table Table) (*Categorizer, error) {
	if len(table) == 0 {
		table = DefaultTable()
	}
	if err := table.Validate(); err != nil {
		return nil, err
	}
	// lowercase once up front so Categorize stays allocation-light
	normalized := make(Table, len(table))
	for i, rule := range table {
		keywords := make([]string, len(rule.Keywords))
		for j, kw := range rule.Keywords {
			keywords[j] = strings.ToLower(strings.TrimSpace(kw))
		}
		normalized[i] = Rule{Category: rule.Category, Keywords: keywords}
	}
	return &Categorizer{table: normalized}, nil
}

// Categorize scans the rule table in order against the vendor and description
// text. When no rule matches, a canonicalizable model hint is used; otherwise
// the result is Other.
func (c *Categorizer) Categorize(vendor, description, hint string) constants.Category {
	search := strings.ToLower(vendor + " " + description)

	for _, rule := range c.table {
		for _, kw := range rule.Keywords {
			if strings.Contains(search, kw) {
				return rule.Category
			}
		}
	}

	if cat, ok := constants.Canonicalize(hint); ok {
		return cat
	}
	return constants.Other
}
