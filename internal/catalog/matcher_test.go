package catalog

import (
	"regexp"
	"testing"

	"github.com/dfir-tools/cerberus/pkg/models"
)

func compileRule(r *models.Rule) (*regexp.Regexp, error) {
	return regexp.Compile(r.Pattern)
}

func mustPattern(t *testing.T, expr string) *FilenamePattern {
	t.Helper()
	re, err := regexp.Compile(expr)
	if err != nil {
		t.Fatalf("compile pattern %q: %v", expr, err)
	}
	return &FilenamePattern{Expr: expr, Re: re}
}

func testCatalog(t *testing.T) *Catalog {
	t.Helper()

	cat := newCatalog()
	rules := []*models.Rule{
		{
			ID:       "RULE-001",
			Name:     "Webshell Eval",
			Severity: models.SeverityHigh,
			Pattern:  `eval\s*\(`,
			IsRegex:  true,
			Enabled:  true,
			Kinds:    []string{"*"},
		},
		{
			ID:       "RULE-002",
			Name:     "Mimikatz String",
			Severity: models.SeverityCritical,
			Pattern:  "sekurlsa::logonpasswords",
			Enabled:  true,
			Kinds:    []string{"*"},
		},
		{
			ID:       "RULE-003",
			Name:     "Hive Only",
			Severity: models.SeverityMedium,
			Pattern:  "persistence",
			Enabled:  true,
			Kinds:    []string{string(models.KindRegistryHive)},
		},
	}
	for _, r := range rules {
		if r.IsRegex {
			var err error
			r.CompiledRe, err = compileRule(r)
			if err != nil {
				t.Fatalf("compile rule %s: %v", r.ID, err)
			}
		}
		cat.addRule(r)
	}

	cat.addDigest("sha256", "aa00000000000000000000000000000000000000000000000000000000000bb1")
	cat.addDigest("md5", "9e107d9d372bb6826bd81d3542a419d6")

	return cat
}

func TestMatchContent(t *testing.T) {
	cat := testCatalog(t)
	matcher := cat.NewMatcher()

	tests := []struct {
		name        string
		content     string
		kind        models.TargetKind
		expectedIDs []string
	}{
		{
			name:        "Regex rule fires",
			content:     "<?php eval($_GET['cmd']); ?>",
			kind:        models.KindPlain,
			expectedIDs: []string{"RULE-001"},
		},
		{
			name:        "Plain pattern is case-insensitive",
			content:     "privilege::debug SEKURLSA::LogonPasswords exit",
			kind:        models.KindPlain,
			expectedIDs: []string{"RULE-002"},
		},
		{
			name:        "Kind-restricted rule skipped on plain target",
			content:     "persistence mechanism",
			kind:        models.KindPlain,
			expectedIDs: nil,
		},
		{
			name:        "Kind-restricted rule fires on hive target",
			content:     "persistence mechanism",
			kind:        models.KindRegistryHive,
			expectedIDs: []string{"RULE-003"},
		},
		{
			name:        "No match",
			content:     "completely benign content",
			kind:        models.KindPlain,
			expectedIDs: nil,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			matches := matcher.MatchContent([]byte(tt.content), tt.kind)

			if len(matches) != len(tt.expectedIDs) {
				t.Fatalf("MatchContent() returned %d matches, want %d", len(matches), len(tt.expectedIDs))
			}
			for i, id := range tt.expectedIDs {
				if matches[i].Rule.ID != id {
					t.Errorf("match[%d] rule = %s, want %s", i, matches[i].Rule.ID, id)
				}
			}
		})
	}
}

func TestMatchContentExcerpt(t *testing.T) {
	cat := testCatalog(t)
	matcher := cat.NewMatcher()

	matches := matcher.MatchContent([]byte("prefix eval( suffix"), models.KindPlain)
	if len(matches) != 1 {
		t.Fatalf("expected one match, got %d", len(matches))
	}
	if matches[0].Excerpt == "" {
		t.Error("excerpt is empty")
	}
}

func TestMatchName(t *testing.T) {
	cat := testCatalog(t)
	cat.patterns = append(cat.patterns,
		mustPattern(t, `(?i)mimikatz`),
		mustPattern(t, `\.dmp$`),
	)
	matcher := cat.NewMatcher()

	tests := []struct {
		name     string
		paths    []string
		expected int
	}{
		{"Basename hit", []string{"/opt/tools/Mimikatz.exe", "Mimikatz.exe"}, 1},
		{"Virtual chain hit", []string{"/evidence/dump.zip!lsass.dmp", "lsass.dmp"}, 1},
		{"Both patterns hit once each", []string{"mimikatz.dmp"}, 2},
		{"No hit", []string{"/usr/bin/ls", "ls"}, 0},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			matches := matcher.MatchName(tt.paths...)
			if len(matches) != tt.expected {
				t.Errorf("MatchName(%v) = %d matches, want %d", tt.paths, len(matches), tt.expected)
			}
		})
	}
}

func TestMatchDigests(t *testing.T) {
	cat := testCatalog(t)
	matcher := cat.NewMatcher()

	matches := matcher.MatchDigests(map[string]string{
		"sha256": "aa00000000000000000000000000000000000000000000000000000000000bb1",
		"sha1":   "da39a3ee5e6b4b0d3255bfef95601890afd80709",
	})
	if len(matches) != 1 {
		t.Fatalf("expected one hash match, got %d", len(matches))
	}
	if matches[0].Algorithm != "sha256" {
		t.Errorf("match algorithm = %s, want sha256", matches[0].Algorithm)
	}

	if got := matcher.MatchDigests(map[string]string{"md5": "ffffffffffffffffffffffffffffffff"}); len(got) != 0 {
		t.Errorf("expected no match, got %d", len(got))
	}
}
