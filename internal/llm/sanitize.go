package llm

import (
	"encoding/json"
	"fmt"
	"regexp"
	"strconv"
	"strings"
	"time"
)

var (
	reCodeFence = regexp.MustCompile("(?s)```(?:json)?\\s*(.*?)\\s*```")
	reAmount    = regexp.MustCompile(`-?\d[\d,]*(?:\.\d+)?`)
)

// ExtractJSON pulls a JSON object out of a chat completion. Local models
// routinely wrap the payload in a markdown code fence or pad it with prose;
// we take the fenced block when present, otherwise the outermost braces.
func ExtractJSON(content string) (string, error) {
	content = strings.TrimSpace(content)
	if content == "" {
		return "", fmt.Errorf("empty completion")
	}

	if m := reCodeFence.FindStringSubmatch(content); m != nil {
		content = strings.TrimSpace(m[1])
	}

	start := strings.IndexByte(content, '{')
	end := strings.LastIndexByte(content, '}')
	if start < 0 || end <= start {
		return "", fmt.Errorf("completion contains no JSON object")
	}
	return content[start : end+1], nil
}

// SanitizeFields parses the JSON object and normalizes the loose shapes
// local models produce: numeric amounts become decimal strings, currency
// symbols and thousands separators are stripped, string fields are trimmed.
// Returns the cleaned field map ready for schema validation.
func SanitizeFields(jsonText string) (map[string]interface{}, error) {
	var fields map[string]interface{}
	dec := json.NewDecoder(strings.NewReader(jsonText))
	dec.UseNumber()
	if err := dec.Decode(&fields); err != nil {
		return nil, fmt.Errorf("parse completion JSON: %w", err)
	}

	for _, key := range []string{"subtotal", "tax", "total_amount"} {
		if v, ok := fields[key]; ok {
			fields[key] = normalizeAmount(v)
		}
	}
	for key, v := range fields {
		if s, ok := v.(string); ok {
			fields[key] = strings.TrimSpace(s)
		}
	}
	if v, ok := fields["currency"].(string); ok {
		fields["currency"] = strings.ToUpper(v)
	}
	if v, ok := fields["document_date"].(string); ok {
		fields["document_date"] = normalizeDate(v)
	}
	return fields, nil
}

// normalizeAmount turns whatever the model produced for an amount field into
// a bare decimal string: json numbers are stringified, "$1,234.50" becomes
// "1234.50". Anything unrecognizable passes through and fails validation.
func normalizeAmount(v interface{}) interface{} {
	switch t := v.(type) {
	case json.Number:
		return t.String()
	case float64:
		return strconv.FormatFloat(t, 'f', -1, 64)
	case string:
		s := strings.TrimSpace(t)
		if m := reAmount.FindString(s); m != "" {
			return strings.ReplaceAll(m, ",", "")
		}
		return s
	default:
		return v
	}
}

// normalizeDate accepts the common date shapes models emit and returns
// YYYY-MM-DD when it can; otherwise the input is returned untouched for
// validation to reject.
func normalizeDate(s string) string {
	s = strings.TrimSpace(s)
	if reISODate.MatchString(s) {
		return s
	}
	for _, layout := range altDateLayouts {
		if t, err := parseDate(layout, s); err == nil {
			return t
		}
	}
	return s
}

var reISODate = regexp.MustCompile(`^\d{4}-\d{2}-\d{2}$`)

var altDateLayouts = []string{
	"02/01/2006",
	"2/1/2006",
	"02-01-2006",
	"2 January 2006",
	"2 Jan 2006",
	"January 2, 2006",
	"Jan 2, 2006",
	"2006/01/02",
}

func parseDate(layout, s string) (string, error) {
	t, err := time.Parse(layout, s)
	if err != nil {
		return "", err
	}
	return t.Format("2006-01-02"), nil
}
