package catalog

import (
	"bytes"
	"strings"

	"github.com/dfir-tools/cerberus/pkg/models"
)

// Matcher is a per-worker evaluation handle over the shared Catalog.
// Each worker constructs its own Matcher at startup and keeps it for
// the whole scan; the compiled catalog is borrowed, never copied, and
// the Matcher itself is not safe for concurrent use.
type Matcher struct {
	cat *Catalog
}

// NewMatcher creates an evaluation handle bound to this catalog
func (c *Catalog) NewMatcher() *Matcher {
	return &Matcher{cat: c}
}

// RuleMatch represents one signature rule firing
type RuleMatch struct {
	Rule     *models.Rule
	Position int
	Excerpt  string
}

// MatchContent matches content against all rules applicable to the
// target kind. Each rule fires at most once per target, at its first
// occurrence.
func (m *Matcher) MatchContent(content []byte, kind models.TargetKind) []RuleMatch {
	var results []RuleMatch

	contentLower := bytes.ToLower(content)

	for _, rule := range m.cat.rules {
		if !rule.Enabled || !rule.AppliesTo(kind) {
			continue
		}

		if rule.IsRegex {
			if loc := rule.CompiledRe.FindIndex(content); loc != nil {
				results = append(results, RuleMatch{
					Rule:     rule,
					Position: loc[0],
					Excerpt:  GetExcerpt(content, loc[0], loc[1]-loc[0]),
				})
			}
		} else {
			// Plain patterns match case-insensitively
			pattern := []byte(strings.ToLower(rule.Pattern))
			if pos := bytes.Index(contentLower, pattern); pos != -1 {
				results = append(results, RuleMatch{
					Rule:     rule,
					Position: pos,
					Excerpt:  GetExcerpt(content, pos, len(pattern)),
				})
			}
		}
	}

	return results
}

// PatternMatch represents one filename pattern hit
type PatternMatch struct {
	Expr    string
	Matched string
}

// MatchName tests path components against the compiled filename
// patterns. Each pattern fires at most once per target, against the
// first component it matches.
func (m *Matcher) MatchName(paths ...string) []PatternMatch {
	var results []PatternMatch

	for _, pattern := range m.cat.patterns {
		for _, p := range paths {
			if pattern.Re.MatchString(p) {
				results = append(results, PatternMatch{Expr: pattern.Expr, Matched: p})
				break
			}
		}
	}

	return results
}

// HashMatch represents one known-bad digest hit
type HashMatch struct {
	Algorithm string
	Digest    string
}

// MatchDigests checks each computed digest against the per-algorithm
// known-bad sets. Digests must be lowercase hex.
func (m *Matcher) MatchDigests(digests map[string]string) []HashMatch {
	var results []HashMatch

	for algorithm, digest := range digests {
		if m.cat.HasDigest(algorithm, digest) {
			results = append(results, HashMatch{Algorithm: algorithm, Digest: digest})
		}
	}

	return results
}

// GetExcerpt extracts a printable fragment around a match. Control
// characters are flattened so excerpts from binary content stay
// loggable.
func GetExcerpt(content []byte, position, length int) string {
	const margin = 40

	start := position - margin
	if start < 0 {
		start = 0
	}
	end := position + length + margin
	if end > len(content) {
		end = len(content)
	}

	fragment := make([]byte, end-start)
	for i, b := range content[start:end] {
		if b < 0x20 || b > 0x7e {
			fragment[i] = '.'
		} else {
			fragment[i] = b
		}
	}

	return string(fragment)
}
