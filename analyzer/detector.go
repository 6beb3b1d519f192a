package analyzer

import (
	"fmt"
	"strings"

	"github.com/lexatlas/legalrisk/model"
)

// Detector scans normalized text against a RuleSet and emits one clause per
// non-overlapping pattern match. Detection is deterministic and idempotent:
// the same text always yields the same ordered clause list.
//
// Patterns from different categories are evaluated independently and matches
// are not deduplicated across categories, so one span of text may be claimed
// by more than one clause. That mirrors how overlapping provisions read in
// practice (a penalty sentence is also a liability statement) and is a known
// characteristic, not an accident.
type Detector struct {
	rules *RuleSet
}

// NewDetector creates a detector over the given rule set.
func NewDetector(rules *RuleSet) *Detector {
	return &Detector{rules: rules}
}

// Detect returns every clause matched in text, scored and leveled. Empty
// input yields an empty list, never an error.
func (d *Detector) Detect(text string) []model.Clause {
	clauses := []model.Clause{}
	if text == "" {
		return clauses
	}

	for _, rule := range d.rules.Rules() {
		for _, pattern := range rule.Patterns {
			for _, loc := range pattern.FindAllStringIndex(text, -1) {
				matched := text[loc[0]:loc[1]]
				score := d.scoreClause(matched, rule.BaseScore)
				level := LevelForScore(score)

				clauses = append(clauses, model.Clause{
					Category:        rule.Category,
					Start:           loc[0],
					End:             loc[1],
					Text:            matched,
					RiskScore:       score,
					RiskLevel:       level,
					Explanation:     rule.Explanation,
					RiskExplanation: riskExplanation(score, rule.Category),
				})
			}
		}
	}

	return clauses
}

// scoreClause applies keyword adjustments to the category base score and
// clamps the result to [0, 1].
func (d *Detector) scoreClause(matched string, base float64) float64 {
	score := base
	lower := strings.ToLower(matched)

	if containsAny(lower, d.rules.severity) {
		score += 0.1
	}
	if containsAny(lower, d.rules.immediacy) {
		score += 0.1
	}
	if containsAny(lower, d.rules.mitigating) {
		score -= 0.1
	}

	if score > 1.0 {
		score = 1.0
	}
	if score < 0.0 {
		score = 0.0
	}
	return score
}

// LevelForScore maps a risk score to its level by fixed thresholds.
func LevelForScore(score float64) model.RiskLevel {
	switch {
	case score >= 0.7:
		return model.RiskHigh
	case score >= 0.4:
		return model.RiskMedium
	default:
		return model.RiskLow
	}
}

func riskExplanation(score float64, category model.ClauseCategory) string {
	name := strings.ReplaceAll(string(category), "_", " ")
	switch {
	case score >= 0.7:
		return fmt.Sprintf("This %s clause poses significant risks and should be carefully reviewed.", name)
	case score >= 0.4:
		return fmt.Sprintf("This %s clause has moderate risks that should be considered.", name)
	default:
		return fmt.Sprintf("This %s clause has minimal risks.", name)
	}
}

func containsAny(text string, words []string) bool {
	for _, w := range words {
		if strings.Contains(text, w) {
			return true
		}
	}
	return false
}
