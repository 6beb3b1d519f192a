package model

import (
	"time"
)

// Pipeline stages, in execution order.
const (
	StageExtraction      = "extraction"
	StageNormalization   = "normalization"
	StageClauseDetection = "clause_detection"
	StageRiskAggregation = "risk_aggregation"
)

// Stage statuses
const (
	StagePending    = "pending"
	StageProcessing = "processing"
	StageCompleted  = "completed"
	StageFailed     = "failed"
)

// StageResult records the lifecycle of one pipeline stage within a run.
type StageResult struct {
	Stage       string     `json:"stage"`
	Status      string     `json:"status"`
	StartedAt   *time.Time `json:"started_at,omitempty"`
	CompletedAt *time.Time `json:"completed_at,omitempty"`
	Error       string     `json:"error,omitempty"`
}

// ProcessingRun is the audit record of one pipeline execution. A document may
// accumulate many runs; only the latest materialized clause/assessment set is
// current.
type ProcessingRun struct {
	ID         string        `json:"id"`
	DocumentID string        `json:"document_id"`
	Stages     []StageResult `json:"stages"`
	StartedAt  time.Time     `json:"started_at"`
	FinishedAt *time.Time    `json:"finished_at,omitempty"`
	Failed     bool          `json:"failed"`
}

// StageOrder returns the pipeline stages in their fixed execution order.
func StageOrder() []string {
	return []string{StageExtraction, StageNormalization, StageClauseDetection, StageRiskAggregation}
}

// NewProcessingRun creates a run with every stage pending.
func NewProcessingRun(id, documentID string) *ProcessingRun {
	stages := StageOrder()
	results := make([]StageResult, len(stages))
	for i, s := range stages {
		results[i] = StageResult{Stage: s, Status: StagePending}
	}
	return &ProcessingRun{
		ID:         id,
		DocumentID: documentID,
		Stages:     results,
		StartedAt:  time.Now(),
	}
}
