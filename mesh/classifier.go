package mesh

import (
	"regexp"
	"strings"
)

// keywordGroup pairs a characteristic with the keywords that trigger it.
// Multi-word phrases match as a plain substring; single words match on a
// word boundary so e.g. "authentication" does not trigger "then" and
// "multiple" does not trigger on a prefix of an unrelated word.
type keywordGroup struct {
	characteristic TaskCharacteristic
	keywords       []string
}

// classificationOrder is fixed: parallel -> sequential -> exploratory ->
// complex. Keyword sets deliberately overlap (e.g. "multiple" is parallel,
// "multi-step" is complex); this order is what resolves the overlap, per
// the original classifier's comment about "authentication"/"then".
var classificationOrder = []keywordGroup{
	{Parallelizable, []string{"parallel", "batch", "concurrent", "multiple"}},
	{Sequential, []string{"step by step", "sequential", "then ", " then", "after that"}},
	{Exploratory, []string{"explore", "search", "find", "navigate", "discover"}},
	{Complex, []string{"complex", "multi-step", "architecture", "design"}},
}

// wordBoundaryPatterns precompiles every single-word keyword once at
// package init, so ClassifyTask itself never mutates shared state and is
// safe to call from any number of goroutines.
var wordBoundaryPatterns = func() map[string]*regexp.Regexp {
	patterns := make(map[string]*regexp.Regexp)
	for _, group := range classificationOrder {
		for _, kw := range group.keywords {
			if !strings.Contains(kw, " ") {
				patterns[kw] = regexp.MustCompile(`\b` + regexp.QuoteMeta(strings.TrimSpace(kw)) + `\b`)
			}
		}
	}
	return patterns
}()

func hasKeyword(descLower string, keywords []string) bool {
	for _, kw := range keywords {
		if strings.Contains(kw, " ") {
			if strings.Contains(descLower, kw) {
				return true
			}
			continue
		}
		if wordBoundaryPatterns[kw].MatchString(descLower) {
			return true
		}
	}
	return false
}

// ClassifyTask maps a natural-language task description to exactly one
// TaskCharacteristic, in the fixed match order above. Unmatched
// descriptions default to Parallelizable.
func ClassifyTask(description string) TaskCharacteristic {
	descLower := strings.ToLower(description)
	for _, group := range classificationOrder {
		if hasKeyword(descLower, group.keywords) {
			return group.characteristic
		}
	}
	return Parallelizable
}
