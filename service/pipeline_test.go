package service

import (
	"context"
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/lexatlas/legalrisk/analyzer"
	"github.com/lexatlas/legalrisk/model"
)

func newTestRunner(store DocumentStore, provider TextProvider) *PipelineRunner {
	return NewPipelineRunner(store, analyzer.NewDetector(analyzer.DefaultRuleSet()), provider)
}

func saveTestDocument(t *testing.T, store DocumentStore, id, rawText string) {
	t.Helper()
	err := store.SaveDocument(&model.Document{
		ID:        id,
		Filename:  "test.txt",
		Tenant:    "tenant1",
		Status:    model.StatusPending,
		RawText:   rawText,
		CreatedAt: time.Now(),
	})
	if err != nil {
		t.Fatalf("SaveDocument failed: %v", err)
	}
}

func TestPipelineProcessSuccess(t *testing.T) {
	store := newTestStore(100)
	runner := newTestRunner(store, nil)

	text := "This agreement requires termination with notice of thirty days. " +
		"All confidential information must be protected by the receiving party."
	saveTestDocument(t, store, "doc-1", text)

	run, err := runner.Process(context.Background(), "doc-1")
	if err != nil {
		t.Fatalf("Process failed: %v", err)
	}
	if run.Failed {
		t.Error("Expected run to succeed")
	}
	if run.FinishedAt == nil {
		t.Error("Expected run to be finished")
	}
	for _, stage := range run.Stages {
		if stage.Status != model.StageCompleted {
			t.Errorf("Expected stage %s completed, got %s", stage.Stage, stage.Status)
		}
	}

	doc, _ := store.GetDocument("doc-1")
	if doc.Status != model.StatusCompleted {
		t.Errorf("Expected document completed, got %s", doc.Status)
	}
	if doc.NormalizedText == "" {
		t.Error("Expected normalized text to be stored")
	}
	if doc.Summary == nil {
		t.Error("Expected document summary to be stored")
	}

	clauses, err := store.GetClauses("doc-1")
	if err != nil {
		t.Fatalf("GetClauses failed: %v", err)
	}
	if len(clauses) == 0 {
		t.Fatal("Expected clauses to be detected")
	}

	assessment, err := store.GetAssessment("doc-1")
	if err != nil {
		t.Fatalf("GetAssessment failed: %v", err)
	}
	if assessment.OverallLevel == "" {
		t.Error("Expected assessment level to be set")
	}

	runs, _ := store.GetRuns("doc-1")
	if len(runs) != 1 {
		t.Errorf("Expected 1 recorded run, got %d", len(runs))
	}
}

func TestPipelineProcessInsufficientText(t *testing.T) {
	store := newTestStore(100)
	runner := newTestRunner(store, nil)

	saveTestDocument(t, store, "doc-short", "short")

	run, err := runner.Process(context.Background(), "doc-short")
	if err != nil {
		t.Fatalf("Process failed: %v", err)
	}
	// Insufficient text degrades, it never fails
	if run.Failed {
		t.Error("Expected degraded run to succeed")
	}
	for _, stage := range run.Stages {
		if stage.Status != model.StageCompleted {
			t.Errorf("Expected stage %s completed, got %s", stage.Stage, stage.Status)
		}
	}

	doc, _ := store.GetDocument("doc-short")
	if doc.Status != model.StatusCompleted {
		t.Errorf("Expected document completed, got %s", doc.Status)
	}

	clauses, _ := store.GetClauses("doc-short")
	if len(clauses) != 0 {
		t.Errorf("Expected no clauses for insufficient text, got %d", len(clauses))
	}

	assessment, err := store.GetAssessment("doc-short")
	if err != nil {
		t.Fatalf("GetAssessment failed: %v", err)
	}
	if assessment.Summary != analyzer.InsufficientTextSummary {
		t.Errorf("Expected insufficient text summary, got %q", assessment.Summary)
	}
	if assessment.OverallScore != 0 || assessment.OverallLevel != model.RiskLow {
		t.Error("Expected zero-score low-risk assessment for insufficient text")
	}
}

func TestPipelineProcessNoCategoryMatches(t *testing.T) {
	store := newTestStore(100)
	runner := newTestRunner(store, nil)

	saveTestDocument(t, store, "doc-clean", "The parties will meet weekly to discuss project progress and schedule updates.")

	run, err := runner.Process(context.Background(), "doc-clean")
	if err != nil {
		t.Fatalf("Process failed: %v", err)
	}
	if run.Failed {
		t.Error("Expected run to succeed")
	}

	assessment, _ := store.GetAssessment("doc-clean")
	if assessment.Summary != analyzer.NoRiskSummary {
		t.Errorf("Expected no-risk summary, got %q", assessment.Summary)
	}
}

func TestPipelineProcessExtractionViaProvider(t *testing.T) {
	store := newTestStore(100)

	provided := "All confidential information must be protected by the receiving party at all times."
	provider := TextProviderFunc(func(ctx context.Context, doc *model.Document) (string, error) {
		return provided, nil
	})
	runner := newTestRunner(store, provider)

	saveTestDocument(t, store, "doc-pdf", "") // no stored text, extraction required

	run, err := runner.Process(context.Background(), "doc-pdf")
	if err != nil {
		t.Fatalf("Process failed: %v", err)
	}
	if run.Failed {
		t.Error("Expected run to succeed")
	}

	doc, _ := store.GetDocument("doc-pdf")
	if doc.RawText != provided {
		t.Error("Expected provider text to be stored as raw text")
	}
}

func TestPipelineProcessExtractionFailure(t *testing.T) {
	store := newTestStore(100)

	provider := TextProviderFunc(func(ctx context.Context, doc *model.Document) (string, error) {
		return "", fmt.Errorf("upstream unavailable")
	})
	runner := newTestRunner(store, provider)

	saveTestDocument(t, store, "doc-fail", "")

	run, err := runner.Process(context.Background(), "doc-fail")
	if err == nil {
		t.Fatal("Expected extraction failure to propagate")
	}
	if !run.Failed {
		t.Error("Expected run to be marked failed")
	}
	if run.FinishedAt == nil {
		t.Error("Expected failed run to be finished")
	}

	// Failed stage records the error, later stages stay pending
	if run.Stages[0].Status != model.StageFailed {
		t.Errorf("Expected extraction stage failed, got %s", run.Stages[0].Status)
	}
	if run.Stages[0].Error == "" {
		t.Error("Expected extraction stage to record the error")
	}
	for _, stage := range run.Stages[1:] {
		if stage.Status != model.StagePending {
			t.Errorf("Expected stage %s pending after abort, got %s", stage.Stage, stage.Status)
		}
	}

	doc, _ := store.GetDocument("doc-fail")
	if doc.Status != model.StatusFailed {
		t.Errorf("Expected document failed, got %s", doc.Status)
	}
	if doc.ErrorMsg == "" {
		t.Error("Expected document error message to be set")
	}
}

func TestPipelineProcessNoTextNoProvider(t *testing.T) {
	store := newTestStore(100)
	runner := newTestRunner(store, nil)

	saveTestDocument(t, store, "doc-none", "")

	run, err := runner.Process(context.Background(), "doc-none")
	if err == nil {
		t.Fatal("Expected error when no text and no extractor")
	}
	if !run.Failed {
		t.Error("Expected run to be marked failed")
	}
}

func TestPipelineProcessRunInFlight(t *testing.T) {
	store := newTestStore(100)
	runner := newTestRunner(store, nil)

	saveTestDocument(t, store, "doc-busy", "some text long enough to analyze")

	if err := store.BeginRun("doc-busy"); err != nil {
		t.Fatalf("BeginRun failed: %v", err)
	}

	_, err := runner.Process(context.Background(), "doc-busy")
	if !errors.Is(err, ErrRunInFlight) {
		t.Errorf("Expected ErrRunInFlight, got %v", err)
	}

	store.EndRun("doc-busy")
	if _, err := runner.Process(context.Background(), "doc-busy"); err != nil {
		t.Errorf("Expected Process to succeed after EndRun, got %v", err)
	}
}

func TestPipelineProcessUnknownDocument(t *testing.T) {
	store := newTestStore(100)
	runner := newTestRunner(store, nil)

	_, err := runner.Process(context.Background(), "missing")
	if !errors.Is(err, ErrNotFound) {
		t.Errorf("Expected ErrNotFound, got %v", err)
	}
}

func TestPipelineProcessReRunReplacesAnalysis(t *testing.T) {
	store := newTestStore(100)
	runner := newTestRunner(store, nil)

	saveTestDocument(t, store, "doc-rerun",
		"All confidential information must be protected by the receiving party.")

	if _, err := runner.Process(context.Background(), "doc-rerun"); err != nil {
		t.Fatalf("first Process failed: %v", err)
	}
	firstClauses, _ := store.GetClauses("doc-rerun")
	if len(firstClauses) == 0 {
		t.Fatal("Expected clauses from first run")
	}

	if _, err := runner.Process(context.Background(), "doc-rerun"); err != nil {
		t.Fatalf("second Process failed: %v", err)
	}
	secondClauses, _ := store.GetClauses("doc-rerun")
	if len(secondClauses) != len(firstClauses) {
		t.Errorf("Expected same clause count on re-run, got %d vs %d", len(secondClauses), len(firstClauses))
	}

	// Wholesale replacement assigns fresh IDs
	if secondClauses[0].ID == firstClauses[0].ID {
		t.Error("Expected re-run to replace clauses with fresh IDs")
	}

	runs, _ := store.GetRuns("doc-rerun")
	if len(runs) != 2 {
		t.Errorf("Expected 2 recorded runs, got %d", len(runs))
	}
}

func TestPipelineReRunEvictsSimulationCache(t *testing.T) {
	store := newTestStore(100)
	cache := NewSimulationCache()
	runner := newTestRunner(store, nil).WithSimulationCache(cache)

	saveTestDocument(t, store, "doc-cache",
		"All confidential information must be protected by the receiving party.")

	if _, err := runner.Process(context.Background(), "doc-cache"); err != nil {
		t.Fatalf("first Process failed: %v", err)
	}
	clauses, _ := store.GetClauses("doc-cache")
	if len(clauses) == 0 {
		t.Fatal("Expected clauses from first run")
	}

	// Simulation results cached against the current clause set
	for _, c := range clauses {
		cache.Put(c.ID, "penalty_modification", nil, &model.SimulationResult{ScenarioName: "Penalty Modification"})
	}
	if _, ok := cache.Get(clauses[0].ID, "penalty_modification", nil); !ok {
		t.Fatal("Expected cached result before re-run")
	}

	if _, err := runner.Process(context.Background(), "doc-cache"); err != nil {
		t.Fatalf("second Process failed: %v", err)
	}

	// The re-run replaced the clause set, so its cached results are gone
	for _, c := range clauses {
		if _, ok := cache.Get(c.ID, "penalty_modification", nil); ok {
			t.Errorf("Expected cached result for replaced clause %s to be evicted", c.ID)
		}
	}
}
