package utils

import "strings"

// -----------------------------------------------------------------------------

// NormalizeSymbol returns the canonical form of one symbol (trimmed, upper case).
func NormalizeSymbol(symbol string) string {
	return strings.ToUpper(strings.TrimSpace(symbol))
}

// -----------------------------------------------------------------------------

// NormalizeSymbols turns raw client input into a deduplicated list of canonical symbols.
// Accepted inputs are a comma separated string, a []string or a []interface{} of strings
// (what encoding/json produces for an array). Anything else yields an empty list.
// First-seen order is preserved and the function is idempotent.
func NormalizeSymbols(input interface{}) []string {
	var raw []string

	switch v := input.(type) {
	case string:
		raw = strings.Split(v, ",")
	case []string:
		raw = v
	case []interface{}:
		for _, item := range v {
			if s, ok := item.(string); ok {
				raw = append(raw, s)
			}
		}
	default:
		return []string{}
	}

	seen := make(map[string]struct{}, len(raw))
	result := make([]string, 0, len(raw))
	for _, r := range raw {
		sym := NormalizeSymbol(r)
		if sym == "" {
			continue
		}
		if _, dup := seen[sym]; dup {
			continue
		}
		seen[sym] = struct{}{}
		result = append(result, sym)
	}
	return result
}
