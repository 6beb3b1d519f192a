package analyzer

import (
	"errors"
	"strings"

	"github.com/lexatlas/legalrisk/model"
)

// ErrUnknownScenario is returned when a simulation names a scenario that is
// not registered. Scenario selection is caller controlled and recoverable, so
// this surfaces as an error value, never a panic.
var ErrUnknownScenario = errors.New("unknown scenario")

// Simulator answers what-if queries against individual clauses. It holds the
// static scenario catalogue and no other state; a single instance is safe for
// concurrent use.
type Simulator struct {
	scenarios map[string]model.ScenarioTemplate
	order     []string
}

// NewSimulator builds a simulator over the given scenario templates,
// preserving their order for listing.
func NewSimulator(templates []model.ScenarioTemplate) *Simulator {
	s := &Simulator{scenarios: make(map[string]model.ScenarioTemplate, len(templates))}
	for _, t := range templates {
		if _, exists := s.scenarios[t.Key]; exists {
			continue
		}
		s.scenarios[t.Key] = t
		s.order = append(s.order, t.Key)
	}
	return s
}

// DefaultScenarios returns the built-in what-if scenario catalogue.
func DefaultScenarios() []model.ScenarioTemplate {
	return []model.ScenarioTemplate{
		{
			Key:         "penalty_modification",
			Name:        "Penalty Amount Modification",
			Description: "What if the penalty amount is reduced or increased?",
			Parameters:  []string{"penalty_amount", "payment_terms", "grace_period"},
			ImpactAreas: []string{"financial_risk", "compliance_risk", "operational_risk"},
		},
		{
			Key:         "termination_timing",
			Name:        "Termination Notice Period",
			Description: "What if the termination notice period is changed?",
			Parameters:  []string{"notice_period", "termination_reasons", "compensation"},
			ImpactAreas: []string{"operational_risk", "financial_risk", "legal_risk"},
		},
		{
			Key:         "liability_limits",
			Name:        "Liability Limit Changes",
			Description: "What if liability limits are modified?",
			Parameters:  []string{"liability_cap", "exclusions", "insurance_requirements"},
			ImpactAreas: []string{"financial_risk", "legal_risk", "reputation_risk"},
		},
		{
			Key:         "auto_renewal_terms",
			Name:        "Auto-Renewal Modification",
			Description: "What if auto-renewal terms are changed?",
			Parameters:  []string{"renewal_period", "cancellation_terms", "price_changes"},
			ImpactAreas: []string{"operational_risk", "financial_risk", "strategic_risk"},
		},
	}
}

// Scenarios returns the catalogue in registration order.
func (s *Simulator) Scenarios() []model.ScenarioTemplate {
	out := make([]model.ScenarioTemplate, 0, len(s.order))
	for _, key := range s.order {
		out = append(out, s.scenarios[key])
	}
	return out
}

// Simulate projects the risk impact of hypothetical modifications to a clause
// without mutating any stored state. Unrecognized modification parameters are
// ignored; an unrecognized scenario key fails with ErrUnknownScenario.
func (s *Simulator) Simulate(clause model.Clause, scenarioKey string, mods map[string]float64) (*model.SimulationResult, error) {
	template, ok := s.scenarios[scenarioKey]
	if !ok {
		return nil, ErrUnknownScenario
	}

	original := analyzeClauseRisk(clause)
	modified := applyModifications(original, mods)
	impact := calculateImpact(original, modified)

	return &model.SimulationResult{
		ScenarioName:        template.Name,
		ScenarioDescription: template.Description,
		Clause:              clause,
		Modifications:       mods,
		Original:            original,
		Modified:            modified,
		Impact:              impact,
		Recommendations:     recommendations(impact),
	}, nil
}

// analyzeClauseRisk decomposes a clause into four independent risk factors.
// The simulation overall risk is their unweighted mean and is deliberately
// independent of the clause's stored risk score.
func analyzeClauseRisk(clause model.Clause) model.ClauseRiskProfile {
	factors := model.RiskFactors{
		FinancialImpact:        assessFinancialImpact(clause.Text),
		LegalComplexity:        assessLegalComplexity(clause.Text),
		EnforcementRisk:        assessEnforcementRisk(clause.Text),
		ComplianceRequirements: assessComplianceRisk(clause.Text),
	}
	return model.ClauseRiskProfile{Factors: factors, OverallRisk: factors.Mean()}
}

func assessFinancialImpact(text string) float64 {
	lower := strings.ToLower(text)
	switch {
	case containsAny(lower, []string{"penalty", "fine", "damages", "$", "dollar"}):
		return 0.8
	case containsAny(lower, []string{"cost", "expense", "payment", "fee"}):
		return 0.6
	default:
		return 0.3
	}
}

func assessLegalComplexity(text string) float64 {
	lower := strings.ToLower(text)
	switch {
	case containsAny(lower, []string{"indemnification", "jurisdiction", "governing law", "arbitration"}):
		return 0.8
	case len(strings.Fields(text)) > 50:
		return 0.6
	default:
		return 0.4
	}
}

func assessEnforcementRisk(text string) float64 {
	lower := strings.ToLower(text)
	switch {
	case containsAny(lower, []string{"immediate", "instant", "without notice"}):
		return 0.9
	case containsAny(lower, []string{"reasonable", "appropriate", "standard"}):
		return 0.5
	default:
		return 0.7
	}
}

func assessComplianceRisk(text string) float64 {
	lower := strings.ToLower(text)
	switch {
	case containsAny(lower, []string{"compliance", "regulatory", "statutory", "law"}):
		return 0.8
	case containsAny(lower, []string{"standard", "industry", "best practice"}):
		return 0.6
	default:
		return 0.4
	}
}

// Modification thresholds: values on one side of the threshold read as a
// softening of the clause, values on the other as a hardening.
const (
	penaltyReducedBelow  = 1000
	noticeExtendedAbove  = 30
	liabilityRaisedAbove = 100000
)

func applyModifications(original model.ClauseRiskProfile, mods map[string]float64) model.ClauseRiskProfile {
	factors := original.Factors

	for param, value := range mods {
		switch param {
		case "penalty_amount":
			if value < penaltyReducedBelow {
				factors.FinancialImpact *= 0.7
			} else {
				factors.FinancialImpact *= 1.3
			}
		case "notice_period":
			if value > noticeExtendedAbove {
				factors.EnforcementRisk *= 0.8
			} else {
				factors.EnforcementRisk *= 1.2
			}
		case "liability_cap":
			if value > liabilityRaisedAbove {
				factors.FinancialImpact *= 1.4
			} else {
				factors.FinancialImpact *= 0.6
			}
		}
	}

	return model.ClauseRiskProfile{Factors: factors, OverallRisk: factors.Mean()}
}

func calculateImpact(original, modified model.ClauseRiskProfile) model.ImpactAnalysis {
	change := modified.OverallRisk - original.OverallRisk

	var changePct float64
	if original.OverallRisk > 0 {
		changePct = change / original.OverallRisk * 100
	}

	absPct := changePct
	if absPct < 0 {
		absPct = -absPct
	}

	level := model.RiskLow
	if absPct > 30 {
		level = model.RiskHigh
	} else if absPct > 15 {
		level = model.RiskMedium
	}

	direction := "decrease"
	if change > 0 {
		direction = "increase"
	}

	return model.ImpactAnalysis{
		RiskChange:        change,
		RiskChangePct:     changePct,
		ImpactLevel:       level,
		RiskDirection:     direction,
		SignificantChange: absPct > 15,
	}
}

func recommendations(impact model.ImpactAnalysis) []string {
	if impact.SignificantChange {
		if impact.RiskDirection == "increase" {
			return []string{
				"Consider negotiating more favorable terms to reduce risk exposure",
				"Review insurance coverage to ensure adequate protection",
				"Consult with legal counsel before proceeding with modifications",
			}
		}
		return []string{
			"Modification appears to reduce risk - consider implementing",
			"Monitor for any unintended consequences of changes",
		}
	}
	return []string{
		"Modification has minimal impact on overall risk profile",
		"Proceed with standard review procedures",
	}
}
