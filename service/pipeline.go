package service

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/lexatlas/legalrisk/analyzer"
	"github.com/lexatlas/legalrisk/model"
	"github.com/lexatlas/legalrisk/pkg/logger"
)

// TextProvider supplies the raw text for a document whose content is not yet
// in the store, typically by driving the external extraction service.
type TextProvider interface {
	ProvideText(ctx context.Context, doc *model.Document) (string, error)
}

// TextProviderFunc adapts a function to the TextProvider interface.
type TextProviderFunc func(ctx context.Context, doc *model.Document) (string, error)

func (f TextProviderFunc) ProvideText(ctx context.Context, doc *model.Document) (string, error) {
	return f(ctx, doc)
}

// PipelineRunner drives a document through the fixed processing stages:
// extraction, normalization, clause detection, risk aggregation. Each run is
// recorded stage by stage as an audit trail; a stage failure aborts the run
// and leaves the remaining stages pending.
//
// Runs are single-writer per document: a second Process call for a document
// already being processed fails with ErrRunInFlight.
type PipelineRunner struct {
	store    DocumentStore
	detector *analyzer.Detector
	provider TextProvider
	simCache *SimulationCache
}

// NewPipelineRunner wires a runner over the store and detector. provider may
// be nil when every document is expected to carry its raw text already.
func NewPipelineRunner(store DocumentStore, detector *analyzer.Detector, provider TextProvider) *PipelineRunner {
	return &PipelineRunner{
		store:    store,
		detector: detector,
		provider: provider,
	}
}

// WithSimulationCache makes the runner drop cached simulation results for
// clauses it replaces. Re-runs assign fresh clause IDs, so stale hits are
// already impossible; this frees the dead entries instead of letting the TTL
// collect them.
func (p *PipelineRunner) WithSimulationCache(cache *SimulationCache) *PipelineRunner {
	p.simCache = cache
	return p
}

// Process runs the full pipeline for the document. It returns the completed
// (or failed) run record; the store holds the materialized clauses, assessment
// and summary on success.
func (p *PipelineRunner) Process(ctx context.Context, documentID string) (*model.ProcessingRun, error) {
	if err := p.store.BeginRun(documentID); err != nil {
		return nil, err
	}
	defer p.store.EndRun(documentID)

	return p.process(ctx, documentID)
}

// ProcessAsync acquires the document's run slot synchronously, so callers see
// ErrRunInFlight immediately, then runs the pipeline in the background.
func (p *PipelineRunner) ProcessAsync(ctx context.Context, documentID string) error {
	if err := p.store.BeginRun(documentID); err != nil {
		return err
	}
	go func() {
		defer p.store.EndRun(documentID)
		if _, err := p.process(ctx, documentID); err != nil {
			logger.Error(ctx, "background processing run failed", "document_id", documentID, "error", err)
		}
	}()
	return nil
}

func (p *PipelineRunner) process(ctx context.Context, documentID string) (*model.ProcessingRun, error) {
	ctx = context.WithValue(ctx, logger.DocumentIDKey, documentID)

	doc, err := p.store.GetDocument(documentID)
	if err != nil {
		return nil, err
	}

	if err := p.store.UpdateStatus(documentID, model.StatusProcessing, ""); err != nil {
		return nil, err
	}

	run := model.NewProcessingRun(uuid.New().String(), documentID)
	if err := p.store.SaveRun(run); err != nil {
		return nil, err
	}
	logger.Info(ctx, "processing run started", "run_id", run.ID)

	var rawText, normalizedText string
	var degraded bool

	// Stage 1: extraction
	err = p.runStage(ctx, run, model.StageExtraction, func() error {
		text, err := p.extractText(ctx, doc)
		if err != nil {
			return err
		}
		rawText = text
		return p.store.SetText(documentID, rawText, "")
	})
	if err != nil {
		return run, p.abort(ctx, run, documentID, err)
	}

	// Stage 2: normalization. Insufficient text degrades the run instead of
	// failing it: the remaining stages complete against empty input.
	err = p.runStage(ctx, run, model.StageNormalization, func() error {
		text, ok := analyzer.Normalize(rawText)
		if !ok {
			degraded = true
			logger.Warn(ctx, "document text insufficient for analysis", "raw_length", len(rawText))
			return nil
		}
		normalizedText = text
		return p.store.SetText(documentID, "", normalizedText)
	})
	if err != nil {
		return run, p.abort(ctx, run, documentID, err)
	}

	// Stage 3: clause detection
	var clauses []model.Clause
	err = p.runStage(ctx, run, model.StageClauseDetection, func() error {
		clauses = p.detector.Detect(normalizedText)
		logger.Info(ctx, "clause detection finished", "clause_count", len(clauses))
		return nil
	})
	if err != nil {
		return run, p.abort(ctx, run, documentID, err)
	}

	// Stage 4: risk aggregation, materialized wholesale
	err = p.runStage(ctx, run, model.StageRiskAggregation, func() error {
		assessment := analyzer.Aggregate(clauses)
		if degraded {
			assessment.Summary = analyzer.InsufficientTextSummary
		}

		if p.simCache != nil {
			if old, err := p.store.GetClauses(documentID); err == nil {
				for _, c := range old {
					p.simCache.Invalidate(c.ID)
				}
			}
		}

		if err := p.store.ReplaceAnalysis(documentID, clauses, &assessment); err != nil {
			return err
		}

		// The summary is best effort: its failure never fails the run.
		if !degraded {
			summary := analyzer.Summarize(normalizedText)
			if err := p.store.SetSummary(documentID, &summary); err != nil {
				logger.Warn(ctx, "failed to store document summary", "error", err)
			}
		}
		return nil
	})
	if err != nil {
		return run, p.abort(ctx, run, documentID, err)
	}

	now := time.Now()
	run.FinishedAt = &now
	if err := p.store.SaveRun(run); err != nil {
		return run, err
	}
	if err := p.store.UpdateStatus(documentID, model.StatusCompleted, ""); err != nil {
		return run, err
	}

	logger.Info(ctx, "processing run completed", "run_id", run.ID, "degraded", degraded)
	return run, nil
}

// extractText resolves the document's raw text: stored text wins, otherwise
// the configured provider is asked.
func (p *PipelineRunner) extractText(ctx context.Context, doc *model.Document) (string, error) {
	if doc.RawText != "" {
		return doc.RawText, nil
	}
	if p.provider == nil {
		return "", fmt.Errorf("document has no text and no extractor is configured")
	}
	text, err := p.provider.ProvideText(ctx, doc)
	if err != nil {
		return "", fmt.Errorf("extraction failed: %w", err)
	}
	return text, nil
}

// runStage executes fn for the named stage, recording processing, completed or
// failed transitions on the run. A panic inside fn is converted into a stage
// failure rather than tearing down the process.
func (p *PipelineRunner) runStage(ctx context.Context, run *model.ProcessingRun, stage string, fn func() error) (err error) {
	idx := stageIndex(run, stage)
	if idx < 0 {
		return fmt.Errorf("unknown stage %q", stage)
	}

	now := time.Now()
	run.Stages[idx].Status = model.StageProcessing
	run.Stages[idx].StartedAt = &now
	if saveErr := p.store.SaveRun(run); saveErr != nil {
		return saveErr
	}

	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("stage %s panicked: %v", stage, r)
		}

		done := time.Now()
		run.Stages[idx].CompletedAt = &done
		if err != nil {
			run.Stages[idx].Status = model.StageFailed
			run.Stages[idx].Error = err.Error()
			logger.Error(ctx, "pipeline stage failed", "stage", stage, "error", err)
		} else {
			run.Stages[idx].Status = model.StageCompleted
			logger.Debug(ctx, "pipeline stage completed", "stage", stage)
		}
		if saveErr := p.store.SaveRun(run); saveErr != nil && err == nil {
			err = saveErr
		}
	}()

	return fn()
}

// abort finalizes a failed run and flips the document to failed.
func (p *PipelineRunner) abort(ctx context.Context, run *model.ProcessingRun, documentID string, cause error) error {
	run.Failed = true
	now := time.Now()
	run.FinishedAt = &now
	if err := p.store.SaveRun(run); err != nil {
		logger.Error(ctx, "failed to persist aborted run", "run_id", run.ID, "error", err)
	}
	if err := p.store.UpdateStatus(documentID, model.StatusFailed, cause.Error()); err != nil {
		logger.Error(ctx, "failed to mark document failed", "error", err)
	}
	logger.Error(ctx, "processing run aborted", "run_id", run.ID, "error", cause)
	return cause
}

func stageIndex(run *model.ProcessingRun, stage string) int {
	for i := range run.Stages {
		if run.Stages[i].Stage == stage {
			return i
		}
	}
	return -1
}
