// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package publish

import (
	"slices"
	"testing"
)

func TestRulesExcluded(t *testing.T) {
	t.Parallel()

	if _, err := NewRules("translations", "/crawl-cache/"); err == nil {
		t.Fatal("NewRules accepted an absolute rule")
	}

	rules, err := NewRules("translations", "crawl-cache/", "assets/i18n")
	if err != nil {
		t.Fatalf("NewRules: %v", err)
	}
	if want := []string{"translations", "crawl-cache", "assets/i18n"}; !slices.Equal(rules.Prefixes(), want) {
		t.Errorf("Prefixes() = %v, want %v", rules.Prefixes(), want)
	}

	tests := map[string]bool{
		"translations":            true,
		"translations/ko.json":    true,
		"translationsx":           false,
		"translationsx/a":         false,
		"crawl-cache/page.html":   true,
		"assets/i18n/ko.js":       true,
		"assets/i18nx.js":         false,
		"assets/app.js":           false,
		".git":                    true,
		".git/HEAD":               true,
		".github/workflows/x.yml": false,
		"index.html":              false,
	}
	for relative, want := range tests {
		if got := rules.Excluded(relative); got != want {
			t.Errorf("Excluded(%q) = %v, want %v", relative, got, want)
		}
	}
}

func TestZeroRulesExcludeOnlyGit(t *testing.T) {
	t.Parallel()

	var rules Rules
	if !rules.Excluded(".git/config") {
		t.Error(".git not excluded by zero Rules")
	}
	if rules.Excluded("index.html") {
		t.Error("zero Rules excluded an ordinary path")
	}
}

func TestNewRulesRejectsEscapes(t *testing.T) {
	t.Parallel()

	for _, rule := range []string{"", ".", "..", "../outside", "a/../../b"} {
		if _, err := NewRules(rule); err == nil {
			t.Errorf("NewRules(%q) succeeded", rule)
		}
	}
}
