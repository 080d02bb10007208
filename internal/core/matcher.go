package core

import (
	"sort"
	"strings"

	"golang.org/x/text/cases"
)

// KeywordMatch is the rule selected by the keyword matcher
type KeywordMatch struct {
	Rule            DurationRule
	MatchedKeywords []string
}

// FoldText case-folds text for case-insensitive comparison.
// A Caser is stateful, so a fresh one is used per call.
func FoldText(text string) string {
	return cases.Fold().String(text)
}

// EmailText builds the text that keyword rules are matched against
func EmailText(subject, content string) string {
	return FoldText(subject + " " + content)
}

// SplitKeywords splits a "|"-separated keyword set into folded phrases
func SplitKeywords(keywords string) []string {
	parts := strings.Split(keywords, "|")
	phrases := make([]string, 0, len(parts))
	for _, part := range parts {
		phrase := FoldText(strings.TrimSpace(part))
		if phrase != "" {
			phrases = append(phrases, phrase)
		}
	}
	return phrases
}

// ActiveRules returns the active rules that carry at least one keyword
func ActiveRules(rules []DurationRule) []DurationRule {
	active := make([]DurationRule, 0, len(rules))
	for _, rule := range rules {
		if rule.Active && len(SplitKeywords(rule.Keywords)) > 0 {
			active = append(active, rule)
		}
	}
	return active
}

// FindMatchingRule returns the highest-priority active rule with a keyword
// phrase contained in text, or nil. Scanning stops at the first matching
// rule. Rules sharing a priority keep their configured order.
func FindMatchingRule(text string, rules []DurationRule) *KeywordMatch {
	candidates := ActiveRules(rules)
	if len(candidates) == 0 {
		return nil
	}

	sort.SliceStable(candidates, func(i, j int) bool {
		return candidates[i].Priority > candidates[j].Priority
	})

	folded := FoldText(text)
	for _, rule := range candidates {
		var matched []string
		for _, phrase := range SplitKeywords(rule.Keywords) {
			if strings.Contains(folded, phrase) {
				matched = append(matched, phrase)
			}
		}
		if len(matched) > 0 {
			return &KeywordMatch{Rule: rule, MatchedKeywords: matched}
		}
	}

	return nil
}

// FindOverlappingRule returns the first rule whose keyword phrases overlap
// the given keywords in either direction
func FindOverlappingRule(keywords []string, rules []DurationRule) *DurationRule {
	folded := make([]string, 0, len(keywords))
	for _, keyword := range keywords {
		if k := FoldText(strings.TrimSpace(keyword)); k != "" {
			folded = append(folded, k)
		}
	}
	if len(folded) == 0 {
		return nil
	}

	for i := range rules {
		for _, phrase := range SplitKeywords(rules[i].Keywords) {
			for _, keyword := range folded {
				if strings.Contains(phrase, keyword) || strings.Contains(keyword, phrase) {
					return &rules[i]
				}
			}
		}
	}
	return nil
}

// dedupeKeywords merges keyword lists preserving first occurrence order
func dedupeKeywords(lists ...[]string) []string {
	seen := make(map[string]struct{})
	merged := make([]string, 0)
	for _, list := range lists {
		for _, keyword := range list {
			if _, ok := seen[keyword]; ok {
				continue
			}
			seen[keyword] = struct{}{}
			merged = append(merged, keyword)
		}
	}
	return merged
}
