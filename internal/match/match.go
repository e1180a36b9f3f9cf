// Package match holds the pure title-matching helpers used to reconcile
// local catalog titles with remote list entries. Providers disagree on
// naming (regional titles, season suffixes, punctuation), so matching works
// on an ordered list of progressively looser query variants, each validated
// against all of a candidate's known titles.
package match

import (
	"regexp"
	"strings"
	"unicode"
)

var (
	seasonSuffixRe   = regexp.MustCompile(`(?i)\s+(season\s*\d+|\d+(st|nd|rd|th)\s+season|part\s*\d+|cour\s*\d+|final\s+season)\s*$`)
	punctuationRe    = regexp.MustCompile(`[!?.,;'"~*]`)
	trailingDigitsRe = regexp.MustCompile(`\s*\d+\s*$`)
	nonAlnumRe       = regexp.MustCompile(`[^a-zA-Z0-9 ]+`)
)

// Variants generates the ordered list of search variants for a title:
// original first, then progressively stripped forms. The result is
// deduplicated and contains no empty strings.
func Variants(title string) []string {
	title = strings.TrimSpace(title)
	if title == "" {
		return nil
	}

	stripped := strings.TrimSpace(seasonSuffixRe.ReplaceAllString(punctuationRe.ReplaceAllString(title, ""), ""))

	candidates := []string{
		title,
		stripped,
		strings.ReplaceAll(title, " ", ""),
		firstWord(title),
		before(title, ":"),
		before(title, "-"),
		strings.TrimSpace(trailingDigitsRe.ReplaceAllString(title, "")),
		strings.TrimSpace(nonAlnumRe.ReplaceAllString(title, "")),
	}

	seen := make(map[string]bool)
	var variants []string
	for _, v := range candidates {
		v = strings.TrimSpace(v)
		if v == "" || seen[strings.ToLower(v)] {
			continue
		}
		seen[strings.ToLower(v)] = true
		variants = append(variants, v)
	}
	return variants
}

func firstWord(s string) string {
	fields := strings.Fields(s)
	if len(fields) == 0 {
		return ""
	}
	return fields[0]
}

func before(s, sep string) string {
	if idx := strings.Index(s, sep); idx > 0 {
		return strings.TrimSpace(s[:idx])
	}
	return ""
}

// Normalize lowercases and trims a title for comparison.
func Normalize(title string) string {
	return strings.ToLower(strings.TrimSpace(title))
}

// ValidateCandidate reports whether any of a candidate's titles plausibly
// names the same show as query. A candidate is accepted when a normalized
// title is a substring of the normalized query (or vice versa), or when the
// token overlap is at least two tokens covering at least 70% of the shorter
// title. This rejects popularity-biased false positives while tolerating
// regional naming divergence.
func ValidateCandidate(query string, candidateTitles []string) bool {
	normQuery := Normalize(query)
	if normQuery == "" {
		return false
	}

	for _, title := range candidateTitles {
		normTitle := Normalize(title)
		if normTitle == "" {
			continue
		}
		if strings.Contains(normTitle, normQuery) || strings.Contains(normQuery, normTitle) {
			return true
		}
		if tokenOverlapMatches(normQuery, normTitle) {
			return true
		}
	}
	return false
}

// tokenOverlapMatches checks the word-overlap acceptance rule: >= 2 shared
// tokens and >= 70% of the shorter title's token count.
func tokenOverlapMatches(a, b string) bool {
	tokensA := tokenize(a)
	tokensB := tokenize(b)
	if len(tokensA) == 0 || len(tokensB) == 0 {
		return false
	}

	setA := make(map[string]bool, len(tokensA))
	for _, tok := range tokensA {
		setA[tok] = true
	}

	overlap := 0
	seen := make(map[string]bool)
	for _, tok := range tokensB {
		if setA[tok] && !seen[tok] {
			overlap++
			seen[tok] = true
		}
	}

	shorter := len(tokensA)
	if len(tokensB) < shorter {
		shorter = len(tokensB)
	}

	return overlap >= 2 && float64(overlap) >= 0.7*float64(shorter)
}

// tokenize splits text into lowercase word tokens.
func tokenize(text string) []string {
	return strings.FieldsFunc(strings.ToLower(text), func(r rune) bool {
		return !unicode.IsLetter(r) && !unicode.IsDigit(r)
	})
}
