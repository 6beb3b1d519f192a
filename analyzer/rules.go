package analyzer

import (
	"regexp"

	"github.com/lexatlas/legalrisk/model"
)

// CategoryRule holds the compiled patterns and scoring inputs for one clause
// category.
type CategoryRule struct {
	Category    model.ClauseCategory
	Patterns    []*regexp.Regexp
	BaseScore   float64
	Explanation string
}

// RuleSet is the immutable pattern/score configuration the detector runs on.
// Build it once at startup and share it; it is safe for concurrent use.
type RuleSet struct {
	rules      []CategoryRule
	severity   []string
	immediacy  []string
	mitigating []string
}

// Rules returns the category rules in their fixed evaluation order.
func (r *RuleSet) Rules() []CategoryRule {
	return r.rules
}

const defaultBaseScore = 0.5

func compileAll(exprs ...string) []*regexp.Regexp {
	patterns := make([]*regexp.Regexp, len(exprs))
	for i, e := range exprs {
		patterns[i] = regexp.MustCompile(`(?i)` + e)
	}
	return patterns
}

// DefaultRuleSet returns the built-in clause detection rules. Category order
// is fixed so detection output is deterministic.
func DefaultRuleSet() *RuleSet {
	return &RuleSet{
		rules: []CategoryRule{
			{
				Category: model.CategoryPenalty,
				Patterns: compileAll(
					`penalty.*\$\d+`,
					`fine.*\$\d+`,
					`late.*fee.*\$\d+`,
					`default.*\$\d+`,
				),
				BaseScore:   0.9,
				Explanation: "This clause describes penalties or fines that may apply.",
			},
			{
				Category: model.CategoryAutoRenewal,
				Patterns: compileAll(
					`auto.*renew`,
					`automatic.*renewal`,
					`renew.*automatically`,
					`continue.*unless.*terminated`,
				),
				BaseScore:   0.6,
				Explanation: "This clause allows the agreement to automatically renew.",
			},
			{
				Category: model.CategoryTermination,
				Patterns: compileAll(
					`terminate.*\d+\s*days`,
					`termination.*notice`,
					`cancel.*\d+\s*days`,
					`end.*agreement`,
				),
				BaseScore:   0.7,
				Explanation: "This clause explains how the agreement can be ended.",
			},
			{
				Category: model.CategoryIndemnification,
				Patterns: compileAll(
					`indemnify`,
					`indemnification`,
					`hold.*harmless`,
					`defend.*against`,
				),
				BaseScore:   0.8,
				Explanation: "This clause requires one party to protect another from losses.",
			},
			{
				Category: model.CategoryLiability,
				Patterns: compileAll(
					`limitation.*liability`,
					`liability.*limited`,
					`exclude.*liability`,
					`no.*liability`,
				),
				BaseScore:   0.7,
				Explanation: "This clause limits or excludes liability for damages.",
			},
			{
				Category: model.CategoryConfidentiality,
				Patterns: compileAll(
					`confidential`,
					`confidentiality`,
					`non.*disclosure`,
					`proprietary.*information`,
				),
				BaseScore:   0.5,
				Explanation: "This clause protects sensitive information.",
			},
			{
				Category: model.CategoryIntellectualProperty,
				Patterns: compileAll(
					`intellectual.*property`,
					`work.*product.*owned`,
					`(?:patent|trademark|copyright)`,
				),
				BaseScore:   defaultBaseScore,
				Explanation: "This clause assigns ownership of intellectual property.",
			},
			{
				Category: model.CategoryGoverningLaw,
				Patterns: compileAll(
					`governing.*law`,
					`governed.*by.*laws`,
					`laws.*of.*the.*state`,
				),
				BaseScore:   defaultBaseScore,
				Explanation: "This clause selects which jurisdiction's law applies.",
			},
			{
				Category: model.CategoryDisputeResolution,
				Patterns: compileAll(
					`dispute.*resolution`,
					`arbitration`,
					`mediation`,
					`exclusive.*jurisdiction`,
				),
				BaseScore:   defaultBaseScore,
				Explanation: "This clause controls how disputes must be resolved.",
			},
		},
		severity:   []string{"penalty", "fine", "default"},
		immediacy:  []string{"immediate", "instant", "without notice"},
		mitigating: []string{"reasonable", "appropriate", "standard"},
	}
}
