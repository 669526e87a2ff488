// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package publish

import (
	"fmt"
	"path"
	"slices"
	"strings"
)

// gitDirectory is always excluded from reconciliation.
const gitDirectory = ".git"

// Rules is a set of exclude rules. Each rule is a slash-separated path
// prefix matched on segment boundaries: "i18n" excludes "i18n" and
// "i18n/ko/site.json" but not "i18nx". The zero Rules excludes only
// the .git directory.
type Rules struct {
	prefixes []string
}

// NewRules validates and normalizes prefixes.
func NewRules(prefixes ...string) (Rules, error) {
	var rules Rules
	for _, prefix := range prefixes {
		cleaned := path.Clean(strings.Trim(prefix, "/"))
		if prefix == "" || cleaned == "." || cleaned == ".." || strings.HasPrefix(cleaned, "../") || strings.HasPrefix(prefix, "/") {
			return Rules{}, fmt.Errorf("invalid exclude rule %q: must be a relative path inside the destination", prefix)
		}
		if !slices.Contains(rules.prefixes, cleaned) {
			rules.prefixes = append(rules.prefixes, cleaned)
		}
	}
	return rules, nil
}

// Prefixes returns the configured rules, without the implicit .git
// rule.
func (r Rules) Prefixes() []string {
	return slices.Clone(r.prefixes)
}

// Excluded reports whether relative (slash-separated, relative to the
// destination root) falls under any rule.
func (r Rules) Excluded(relative string) bool {
	if matchPrefix(relative, gitDirectory) {
		return true
	}
	for _, prefix := range r.prefixes {
		if matchPrefix(relative, prefix) {
			return true
		}
	}
	return false
}

func matchPrefix(relative, prefix string) bool {
	return relative == prefix || strings.HasPrefix(relative, prefix+"/")
}
