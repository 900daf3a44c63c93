package services

import (
	"encoding/json"
	"fmt"
	"regexp"
	"sort"
	"strings"
)

// parseOrRaw attempts a strict JSON parse of the response text. Unparseable
// responses are carried forward under raw_response instead of failing, so
// the cleanup step can have a go at them.
func parseOrRaw(text string) map[string]any {
	var m map[string]any
	if err := json.Unmarshal([]byte(text), &m); err == nil {
		return m
	}
	return map[string]any{"raw_response": text}
}

var (
	leadingFenceRe  = regexp.MustCompile("(?i)```(?:json)?\\s*")
	trailingFenceRe = regexp.MustCompile("\\s*```$")
)

// cleanFencedResponse strips markdown code fences from a raw response and
// re-attempts the parse. If the text still is not valid JSON, the cleaned
// text stays wrapped under raw_response rather than raising.
func cleanFencedResponse(result map[string]any) map[string]any {
	raw, ok := result["raw_response"]
	if !ok {
		return result
	}
	clean := leadingFenceRe.ReplaceAllString(fmt.Sprintf("%v", raw), "")
	clean = trailingFenceRe.ReplaceAllString(clean, "")
	clean = strings.TrimSpace(clean)

	var m map[string]any
	if err := json.Unmarshal([]byte(clean), &m); err == nil {
		return m
	}
	return map[string]any{"raw_response": clean}
}

var (
	bseWordRe   = regexp.MustCompile(`\bbse\b`)
	nseWordRe   = regexp.MustCompile(`\bnse\b`)
	bseNameRe   = regexp.MustCompile(`bombay stock exchange`)
	nseNameRe   = regexp.MustCompile(`national stock exchange`)
	listSplitRe = regexp.MustCompile(`[,;/\\\n]+|\s+`)
)

// listingNoiseWords are filler tokens that carry no exchange information and
// are dropped from the normalized listing value.
var listingNoiseWords = map[string]struct{}{
	"LIMITED": {}, "LTD": {}, "OF": {}, "INDIA": {}, "THE": {},
	"AND": {}, "ON": {}, "IN": {}, "AT": {}, "LISTED": {},
}

// normalizeStockExchangeListing canonicalizes entity_details.stock_exchange_listing:
// only BSE -> "BSE", only NSE -> "NSE", both -> "BSENSE", with any other
// exchange tokens appended uppercased in first-seen order.
func normalizeStockExchangeListing(result map[string]any) {
	ent, ok := result["entity_details"].(map[string]any)
	if !ok {
		return
	}
	val, ok := ent["stock_exchange_listing"]
	if !ok || val == nil {
		return
	}

	raw := coerceListingString(val)
	s := strings.TrimSpace(raw)
	if s == "" {
		ent["stock_exchange_listing"] = ""
		return
	}

	lowered := strings.ToLower(s)
	bsePresent := bseWordRe.MatchString(lowered) || strings.Contains(lowered, "bombay")
	nsePresent := nseWordRe.MatchString(lowered) || strings.Contains(lowered, "national stock exchange")

	cleaned := bseNameRe.ReplaceAllString(lowered, "")
	cleaned = bseWordRe.ReplaceAllString(cleaned, "")
	cleaned = nseNameRe.ReplaceAllString(cleaned, "")
	cleaned = nseWordRe.ReplaceAllString(cleaned, "")

	var tokens []string
	if bsePresent && nsePresent {
		tokens = append(tokens, "BSENSE")
	} else if bsePresent {
		tokens = append(tokens, "BSE")
	} else if nsePresent {
		tokens = append(tokens, "NSE")
	}

	seen := make(map[string]struct{}, len(tokens))
	for _, t := range tokens {
		seen[t] = struct{}{}
	}
	for _, part := range listSplitRe.Split(cleaned, -1) {
		token := strings.ToUpper(strings.TrimSpace(part))
		if token == "" || token == "BSE" || token == "NSE" {
			continue
		}
		if _, noise := listingNoiseWords[token]; noise {
			continue
		}
		if _, dup := seen[token]; dup {
			continue
		}
		seen[token] = struct{}{}
		tokens = append(tokens, token)
	}

	ent["stock_exchange_listing"] = strings.Join(tokens, " ")
}

// coerceListingString flattens list or object listing values to a single
// space-joined string before normalization.
func coerceListingString(val any) string {
	switch v := val.(type) {
	case string:
		return v
	case []any:
		parts := make([]string, 0, len(v))
		for _, item := range v {
			parts = append(parts, fmt.Sprintf("%v", item))
		}
		return strings.Join(parts, " ")
	case map[string]any:
		keys := make([]string, 0, len(v))
		for k := range v {
			keys = append(keys, k)
		}
		sort.Strings(keys)
		parts := make([]string, 0, len(v))
		for _, k := range keys {
			parts = append(parts, fmt.Sprintf("%v", v[k]))
		}
		return strings.Join(parts, " ")
	default:
		return fmt.Sprintf("%v", v)
	}
}
