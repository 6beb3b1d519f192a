package model

import (
	"time"
)

// Document represents an uploaded legal document
type Document struct {
	ID              string           `json:"id"`
	Filename        string           `json:"filename"`
	Tenant          string           `json:"tenant"`
	SourceURL       string           `json:"source_url,omitempty"`
	Status          string           `json:"status"` // pending, processing, completed, failed
	ExtractorTaskID string           `json:"extractor_task_id,omitempty"`
	RawText         string           `json:"-"`
	NormalizedText  string           `json:"-"`
	Summary         *DocumentSummary `json:"summary,omitempty"`
	ErrorMsg        string           `json:"error_msg,omitempty"`
	CreatedAt       time.Time        `json:"created_at"`
	UpdatedAt       time.Time        `json:"updated_at"`
}

// DocumentStatus constants
const (
	StatusPending    = "pending"
	StatusProcessing = "processing"
	StatusCompleted  = "completed"
	StatusFailed     = "failed"
)

// DocumentSummary is the extractive summary produced alongside the risk
// assessment. It is best effort: a failed summary never fails a run.
type DocumentSummary struct {
	PlainLanguageSummary string   `json:"plain_language_summary"`
	LegalSummary         string   `json:"legal_summary"`
	KeyPoints            []string `json:"key_points"`
	WordCount            int      `json:"word_count"`
}
