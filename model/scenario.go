package model

// ScenarioTemplate describes one named what-if scenario. Templates are static
// configuration loaded at startup; the simulator treats them as read-only.
type ScenarioTemplate struct {
	Key         string   `json:"key" yaml:"key"`
	Name        string   `json:"name" yaml:"name"`
	Description string   `json:"description" yaml:"description"`
	Parameters  []string `json:"parameters" yaml:"parameters"`
	ImpactAreas []string `json:"impact_areas" yaml:"impact_areas"`
}

// RiskFactors are the four orthogonal sub-scores used only within scenario
// simulation. Initial scores lie in [0, 1]; modification multipliers are
// applied without re-clamping.
type RiskFactors struct {
	FinancialImpact        float64 `json:"financial_impact"`
	LegalComplexity        float64 `json:"legal_complexity"`
	EnforcementRisk        float64 `json:"enforcement_risk"`
	ComplianceRequirements float64 `json:"compliance_requirements"`
}

// Mean returns the unweighted mean of the four factors.
func (f RiskFactors) Mean() float64 {
	return (f.FinancialImpact + f.LegalComplexity + f.EnforcementRisk + f.ComplianceRequirements) / 4
}

// ClauseRiskProfile is the factor breakdown of one clause, before or after
// modifications.
type ClauseRiskProfile struct {
	Factors     RiskFactors `json:"risk_factors"`
	OverallRisk float64     `json:"overall_risk"`
}

// ImpactAnalysis quantifies the effect of applied modifications.
type ImpactAnalysis struct {
	RiskChange        float64   `json:"risk_change"`
	RiskChangePct     float64   `json:"risk_change_percentage"`
	ImpactLevel       RiskLevel `json:"impact_level"`
	RiskDirection     string    `json:"risk_direction"` // increase or decrease
	SignificantChange bool      `json:"significant_change"`
}

// SimulationResult is a read-only projection of a hypothetical clause
// modification. It is never persisted as a clause.
type SimulationResult struct {
	ScenarioName        string             `json:"scenario_name"`
	ScenarioDescription string             `json:"scenario_description"`
	Clause              Clause             `json:"original_clause"`
	Modifications       map[string]float64 `json:"modifications_applied"`
	Original            ClauseRiskProfile  `json:"original_analysis"`
	Modified            ClauseRiskProfile  `json:"modified_analysis"`
	Impact              ImpactAnalysis     `json:"impact_analysis"`
	Recommendations     []string           `json:"recommendations"`
}
