package model

// ClauseCategory identifies the kind of provision a clause was matched as.
// The set is closed; text that matches no category pattern yields no clause.
type ClauseCategory string

const (
	CategoryPenalty              ClauseCategory = "penalty"
	CategoryAutoRenewal          ClauseCategory = "auto_renewal"
	CategoryTermination          ClauseCategory = "termination"
	CategoryIndemnification      ClauseCategory = "indemnification"
	CategoryLiability            ClauseCategory = "liability"
	CategoryConfidentiality      ClauseCategory = "confidentiality"
	CategoryIntellectualProperty ClauseCategory = "intellectual_property"
	CategoryGoverningLaw         ClauseCategory = "governing_law"
	CategoryDisputeResolution    ClauseCategory = "dispute_resolution"
	CategoryOther                ClauseCategory = "other"
)

// RiskLevel is the discretization of a continuous risk score.
type RiskLevel string

const (
	RiskLow    RiskLevel = "low"
	RiskMedium RiskLevel = "medium"
	RiskHigh   RiskLevel = "high"
)

// Clause is a span of normalized document text matched against a category
// pattern. Immutable once created; owned by its document's clause collection.
type Clause struct {
	ID              string         `json:"id"`
	DocumentID      string         `json:"document_id,omitempty"`
	Category        ClauseCategory `json:"category"`
	Start           int            `json:"start"`
	End             int            `json:"end"`
	Text            string         `json:"text"`
	RiskScore       float64        `json:"risk_score"` // always within [0, 1]
	RiskLevel       RiskLevel      `json:"risk_level"`
	Explanation     string         `json:"explanation"`
	RiskExplanation string         `json:"risk_explanation"`
}

// RiskAssessment is the document-wide aggregate over all detected clauses.
// One per document, replaced wholesale on every processing run.
type RiskAssessment struct {
	OverallScore float64   `json:"overall_score"`
	OverallLevel RiskLevel `json:"overall_level"`
	HighCount    int       `json:"high_count"`
	MediumCount  int       `json:"medium_count"`
	LowCount     int       `json:"low_count"`
	Summary      string    `json:"summary"`
}
