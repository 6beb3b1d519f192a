package analyzer

import (
	"fmt"
	"math"

	"github.com/lexatlas/legalrisk/model"
)

// Risk level weights used when averaging clause scores into a document score.
const (
	weightHigh   = 1.0
	weightMedium = 0.6
	weightLow    = 0.2
)

// NoRiskSummary is the canned summary for documents with no detected clauses.
const NoRiskSummary = "No significant risk clauses detected."

// Aggregate computes the document-wide risk assessment for a clause list.
// It is a pure function: no state, safe to call repeatedly, identical input
// yields identical output.
//
// The overall score is the arithmetic mean of each clause's score multiplied
// by its level weight. The overall level is then decided with escalation
// overrides, first match wins:
//
//  1. high, if the score reaches 0.7 or at least 3 clauses are high risk
//  2. medium, if the score reaches 0.4 or at least 1 clause is high risk
//  3. low otherwise
//
// Overrides can only upgrade the level relative to the score thresholds,
// never downgrade it.
func Aggregate(clauses []model.Clause) model.RiskAssessment {
	if len(clauses) == 0 {
		return model.RiskAssessment{
			OverallScore: 0.0,
			OverallLevel: model.RiskLow,
			Summary:      NoRiskSummary,
		}
	}

	var highCount, mediumCount, lowCount int
	var totalWeighted float64

	for _, clause := range clauses {
		switch clause.RiskLevel {
		case model.RiskHigh:
			highCount++
			totalWeighted += clause.RiskScore * weightHigh
		case model.RiskMedium:
			mediumCount++
			totalWeighted += clause.RiskScore * weightMedium
		default:
			lowCount++
			totalWeighted += clause.RiskScore * weightLow
		}
	}

	overallScore := totalWeighted / float64(len(clauses))

	var overallLevel model.RiskLevel
	switch {
	case overallScore >= 0.7 || highCount >= 3:
		overallLevel = model.RiskHigh
	case overallScore >= 0.4 || highCount >= 1:
		overallLevel = model.RiskMedium
	default:
		overallLevel = model.RiskLow
	}

	return model.RiskAssessment{
		OverallScore: math.Round(overallScore*1000) / 1000,
		OverallLevel: overallLevel,
		HighCount:    highCount,
		MediumCount:  mediumCount,
		LowCount:     lowCount,
		Summary:      assessmentSummary(highCount, mediumCount, lowCount, overallLevel),
	}
}

func assessmentSummary(high, medium, low int, level model.RiskLevel) string {
	switch level {
	case model.RiskHigh:
		if high >= 3 {
			return fmt.Sprintf("This document contains %d high-risk clauses and poses significant legal risks. Professional legal review is strongly recommended.", high)
		}
		return fmt.Sprintf("This document contains %d high-risk clauses and should be carefully reviewed by legal professionals.", high)
	case model.RiskMedium:
		if high > 0 {
			return fmt.Sprintf("This document contains %d high-risk and %d medium-risk clauses. Legal review is recommended.", high, medium)
		}
		return fmt.Sprintf("This document contains %d medium-risk clauses. Some legal review may be beneficial.", medium)
	default:
		return fmt.Sprintf("This document contains mostly low-risk clauses (%d low, %d medium). Standard review procedures should be sufficient.", low, medium)
	}
}
