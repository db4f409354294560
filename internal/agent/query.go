package agent

import (
	"regexp"
	"strings"
)

// Common misspellings and Bangla product words mapped to catalog
// keywords. Applied before tokenizing so a buyer typing "smarwatch"
// or "ঘড়ি" still hits the right products.
var asciiFixups = []struct {
	pattern *regexp.Regexp
	repl    string
}{
	{regexp.MustCompile(`\bsshirt\b`), "shirt"},
	{regexp.MustCompile(`\btshart\b`), "tshirt"},
	{regexp.MustCompile(`\bt-shirt\b`), "tshirt"},
	{regexp.MustCompile(`\bsmarwatch\b`), "smartwatch"},
	{regexp.MustCompile(`\bearbud\b`), "earbuds"},
	{regexp.MustCompile(`\bairbud\b`), "earbuds"},
	{regexp.MustCompile(`\bmobil\b`), "mobile"},
}

var banglaFixups = []struct{ from, to string }{
	{"মোবাইল", "mobile"},
	{"ঘড়ি", "watch"},
	{"ঘড়ী", "watch"},
	{"শার্ট", "shirt"},
}

var tokenSplit = regexp.MustCompile(`[^a-z0-9]+`)

// NormalizeQuery lowercases a buyer query, fixes common misspellings,
// translates known Bangla product words, and reduces the result to
// deduplicated ASCII keywords. An empty result means the query had no
// usable keywords.
func NormalizeQuery(q string) string {
	s := strings.ToLower(strings.TrimSpace(q))
	for _, f := range banglaFixups {
		s = strings.ReplaceAll(s, f.from, f.to)
	}
	for _, f := range asciiFixups {
		s = f.pattern.ReplaceAllString(s, f.repl)
	}

	seen := make(map[string]bool)
	var tokens []string
	for _, tok := range tokenSplit.Split(s, -1) {
		if len(tok) < 2 || seen[tok] {
			continue
		}
		seen[tok] = true
		tokens = append(tokens, tok)
	}
	return strings.Join(tokens, " ")
}

// ExpandVariants returns the query plus known alternate spellings, in
// search order. The caller tries each until it has enough results.
func ExpandVariants(q string) []string {
	variants := []string{q}
	if strings.Contains(q, "tshirt") {
		variants = append(variants, strings.ReplaceAll(q, "tshirt", "t shirt"))
	}
	if strings.Contains(q, "watch") && !strings.Contains(q, "smartwatch") {
		variants = append(variants, strings.ReplaceAll(q, "watch", "smartwatch"))
	}
	if strings.Contains(q, "earbuds") {
		variants = append(variants, strings.ReplaceAll(q, "earbuds", "earbud"))
	}
	return variants
}

var banglaDigits = map[rune]rune{
	'0': '০', '1': '১', '2': '২', '3': '৩', '4': '৪',
	'5': '৫', '6': '৬', '7': '৭', '8': '৮', '9': '৯',
	'.': '।',
}

// ToBanglaDigits converts ASCII digits (and the decimal point) to
// Bengali numerals for price display.
func ToBanglaDigits(s string) string {
	return strings.Map(func(r rune) rune {
		if b, ok := banglaDigits[r]; ok {
			return b
		}
		return r
	}, s)
}
