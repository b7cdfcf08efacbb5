// Package search builds Google News RSS queries and executes them
// through a circuit breaker and a per-host rate limiter.
package search

import (
	"sort"
	"strings"
	"unicode"

	"github.com/jeffrey/intellinieuws/internal/models"
)

// Complexity buckets a query by keyword count, used to pick a rate-limit
// delay the way the original engine scaled delay with query size.
type Complexity string

const (
	ComplexitySimple  Complexity = "simple"
	ComplexityMedium  Complexity = "medium"
	ComplexityComplex Complexity = "complex"
)

// ClassifyComplexity buckets by total keyword count: <=2 simple, <=5
// medium, otherwise complex.
func ClassifyComplexity(keywords, excludeKeywords []string) Complexity {
	total := len(keywords) + len(excludeKeywords)
	switch {
	case total <= 2:
		return ComplexitySimple
	case total <= 5:
		return ComplexityMedium
	default:
		return ComplexityComplex
	}
}

// BuildQuery renders keywords/excludeKeywords into a Google News query
// string: OR-joined, quoted keywords, optionally parenthesized, followed
// by quoted minus-prefixed exclusions. Example:
//
//	keywords=["machine learning","AI"], exclude=["crypto"]
//	-> `("machine learning" OR "AI") -"crypto"`
func BuildQuery(keywords, excludeKeywords []string) string {
	cleanedKeywords := sanitizeKeywords(keywords)
	if len(cleanedKeywords) == 0 {
		return ""
	}

	var base string
	if len(cleanedKeywords) == 1 {
		base = `"` + cleanedKeywords[0] + `"`
	} else {
		quoted := make([]string, len(cleanedKeywords))
		for i, kw := range cleanedKeywords {
			quoted[i] = `"` + kw + `"`
		}
		base = "(" + strings.Join(quoted, " OR ") + ")"
	}

	cleanedExcludes := sanitizeKeywords(excludeKeywords)
	if len(cleanedExcludes) == 0 {
		return base
	}

	parts := make([]string, len(cleanedExcludes))
	for i, kw := range cleanedExcludes {
		parts[i] = `-"` + kw + `"`
	}
	return base + " " + strings.Join(parts, " ")
}

// sanitizeKeywords trims, strips disallowed characters, normalizes
// whitespace, drops anything over MaxKeywordLength, and dedupes
// case-insensitively while preserving first-seen order.
func sanitizeKeywords(keywords []string) []string {
	seen := make(map[string]bool, len(keywords))
	cleaned := make([]string, 0, len(keywords))

	for _, raw := range keywords {
		kw := strings.TrimSpace(raw)
		if kw == "" {
			continue
		}

		var b strings.Builder
		for _, r := range kw {
			if unicode.IsLetter(r) || unicode.IsDigit(r) || r == ' ' || r == '-' || r == '.' || r == '_' {
				b.WriteRune(r)
			}
		}
		sanitized := strings.Join(strings.Fields(b.String()), " ")
		if sanitized == "" || len(sanitized) > models.MaxKeywordLength {
			continue
		}

		key := strings.ToLower(sanitized)
		if seen[key] {
			continue
		}
		seen[key] = true
		cleaned = append(cleaned, sanitized)
	}
	return cleaned
}

// SortedCopy returns a sorted copy of keywords and leaves the input
// untouched; query building itself preserves input order since keyword
// order can matter for relevance debugging.
func SortedCopy(keywords []string) []string {
	out := append([]string{}, keywords...)
	sort.Strings(out)
	return out
}
