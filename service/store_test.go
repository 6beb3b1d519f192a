package service

import (
	"errors"
	"testing"
	"time"

	"github.com/lexatlas/legalrisk/config"
	"github.com/lexatlas/legalrisk/model"
)

func newTestStore(maxDocuments int) *MemoryStore {
	return NewMemoryStore(&config.StoreConfig{MaxDocuments: maxDocuments})
}

func TestMemoryStoreSaveAndGet(t *testing.T) {
	store := newTestStore(100)

	doc := &model.Document{
		ID:        "test-id-1",
		Filename:  "test.pdf",
		Tenant:    "tenant1",
		Status:    model.StatusPending,
		CreatedAt: time.Now(),
	}

	if err := store.SaveDocument(doc); err != nil {
		t.Fatalf("SaveDocument failed: %v", err)
	}

	retrieved, err := store.GetDocument("test-id-1")
	if err != nil {
		t.Fatalf("Expected to retrieve document, got %v", err)
	}
	if retrieved.Filename != "test.pdf" {
		t.Errorf("Expected filename test.pdf, got %s", retrieved.Filename)
	}

	// Non-existent document
	_, err = store.GetDocument("non-existent")
	if !errors.Is(err, ErrNotFound) {
		t.Errorf("Expected ErrNotFound, got %v", err)
	}
}

func TestMemoryStoreListByTenant(t *testing.T) {
	store := newTestStore(100)

	store.SaveDocument(&model.Document{ID: "1", Tenant: "tenant1", CreatedAt: time.Now()})
	store.SaveDocument(&model.Document{ID: "2", Tenant: "tenant1", CreatedAt: time.Now().Add(time.Second)})
	store.SaveDocument(&model.Document{ID: "3", Tenant: "tenant2", CreatedAt: time.Now()})

	tenant1Docs, err := store.ListByTenant("tenant1")
	if err != nil {
		t.Fatalf("ListByTenant failed: %v", err)
	}
	if len(tenant1Docs) != 2 {
		t.Errorf("Expected 2 documents for tenant1, got %d", len(tenant1Docs))
	}
	if tenant1Docs[0].ID != "1" {
		t.Errorf("Expected oldest document first, got %s", tenant1Docs[0].ID)
	}

	tenant2Docs, _ := store.ListByTenant("tenant2")
	if len(tenant2Docs) != 1 {
		t.Errorf("Expected 1 document for tenant2, got %d", len(tenant2Docs))
	}

	tenant3Docs, _ := store.ListByTenant("tenant3")
	if len(tenant3Docs) != 0 {
		t.Errorf("Expected 0 documents for tenant3, got %d", len(tenant3Docs))
	}
}

func TestMemoryStoreDelete(t *testing.T) {
	store := newTestStore(100)

	store.SaveDocument(&model.Document{ID: "delete-me", CreatedAt: time.Now()})
	store.ReplaceAnalysis("delete-me",
		[]model.Clause{{Category: model.CategoryPenalty, Text: "penalty of $500"}},
		&model.RiskAssessment{OverallLevel: model.RiskLow})

	if err := store.DeleteDocument("delete-me"); err != nil {
		t.Fatalf("DeleteDocument failed: %v", err)
	}

	if _, err := store.GetDocument("delete-me"); !errors.Is(err, ErrNotFound) {
		t.Error("Expected document to be deleted")
	}
	if _, err := store.GetClauses("delete-me"); !errors.Is(err, ErrNotFound) {
		t.Error("Expected clauses to be deleted with document")
	}
	if _, err := store.GetAssessment("delete-me"); !errors.Is(err, ErrNotFound) {
		t.Error("Expected assessment to be deleted with document")
	}
}

func TestMemoryStoreUpdateStatus(t *testing.T) {
	store := newTestStore(100)

	store.SaveDocument(&model.Document{
		ID:        "status-test",
		Status:    model.StatusPending,
		CreatedAt: time.Now(),
	})

	if err := store.UpdateStatus("status-test", model.StatusCompleted, ""); err != nil {
		t.Fatalf("UpdateStatus failed: %v", err)
	}

	doc, _ := store.GetDocument("status-test")
	if doc.Status != model.StatusCompleted {
		t.Errorf("Expected status %s, got %s", model.StatusCompleted, doc.Status)
	}

	// Update with error message
	store.UpdateStatus("status-test", model.StatusFailed, "test error")
	doc, _ = store.GetDocument("status-test")
	if doc.ErrorMsg != "test error" {
		t.Errorf("Expected error msg 'test error', got '%s'", doc.ErrorMsg)
	}

	// Non-existent document
	if err := store.UpdateStatus("non-existent", model.StatusCompleted, ""); !errors.Is(err, ErrNotFound) {
		t.Errorf("Expected ErrNotFound, got %v", err)
	}
}

func TestMemoryStoreSetText(t *testing.T) {
	store := newTestStore(100)

	store.SaveDocument(&model.Document{ID: "text-test", CreatedAt: time.Now()})

	if err := store.SetText("text-test", "raw text", "normalized text"); err != nil {
		t.Fatalf("SetText failed: %v", err)
	}

	doc, _ := store.GetDocument("text-test")
	if doc.RawText != "raw text" {
		t.Errorf("Expected raw text, got %q", doc.RawText)
	}
	if doc.NormalizedText != "normalized text" {
		t.Errorf("Expected normalized text, got %q", doc.NormalizedText)
	}

	// Empty arguments leave existing values alone
	store.SetText("text-test", "", "updated normalized")
	doc, _ = store.GetDocument("text-test")
	if doc.RawText != "raw text" {
		t.Errorf("Expected raw text preserved, got %q", doc.RawText)
	}
	if doc.NormalizedText != "updated normalized" {
		t.Errorf("Expected normalized text updated, got %q", doc.NormalizedText)
	}
}

func TestMemoryStoreSetSummary(t *testing.T) {
	store := newTestStore(100)

	store.SaveDocument(&model.Document{ID: "summary-test", CreatedAt: time.Now()})

	summary := &model.DocumentSummary{
		PlainLanguageSummary: "A short summary.",
		KeyPoints:            []string{"point one"},
		WordCount:            42,
	}
	if err := store.SetSummary("summary-test", summary); err != nil {
		t.Fatalf("SetSummary failed: %v", err)
	}

	doc, _ := store.GetDocument("summary-test")
	if doc.Summary == nil || doc.Summary.WordCount != 42 {
		t.Error("Expected summary to be stored")
	}

	if err := store.SetSummary("non-existent", summary); !errors.Is(err, ErrNotFound) {
		t.Errorf("Expected ErrNotFound, got %v", err)
	}
}

func TestMemoryStoreReplaceAnalysis(t *testing.T) {
	store := newTestStore(100)

	store.SaveDocument(&model.Document{ID: "doc-1", CreatedAt: time.Now()})

	first := []model.Clause{
		{Category: model.CategoryPenalty, Text: "penalty of $500", RiskScore: 0.9, RiskLevel: model.RiskHigh},
		{Category: model.CategoryTermination, Text: "terminate this agreement", RiskScore: 0.7, RiskLevel: model.RiskHigh},
	}
	assessment := &model.RiskAssessment{OverallScore: 0.8, OverallLevel: model.RiskHigh, HighCount: 2}

	if err := store.ReplaceAnalysis("doc-1", first, assessment); err != nil {
		t.Fatalf("ReplaceAnalysis failed: %v", err)
	}

	clauses, err := store.GetClauses("doc-1")
	if err != nil {
		t.Fatalf("GetClauses failed: %v", err)
	}
	if len(clauses) != 2 {
		t.Fatalf("Expected 2 clauses, got %d", len(clauses))
	}
	for _, c := range clauses {
		if c.ID == "" {
			t.Error("Expected clause ID to be assigned on persist")
		}
		if c.DocumentID != "doc-1" {
			t.Errorf("Expected document ID doc-1, got %s", c.DocumentID)
		}
	}

	// Clause lookup by ID
	clause, err := store.GetClause(clauses[0].ID)
	if err != nil {
		t.Fatalf("GetClause failed: %v", err)
	}
	if clause.Text != clauses[0].Text {
		t.Errorf("Expected clause text %q, got %q", clauses[0].Text, clause.Text)
	}

	// Re-run replaces wholesale, never merges
	second := []model.Clause{
		{Category: model.CategoryLiability, Text: "liability is limited", RiskScore: 0.7, RiskLevel: model.RiskHigh},
	}
	if err := store.ReplaceAnalysis("doc-1", second, &model.RiskAssessment{OverallScore: 0.7, OverallLevel: model.RiskHigh, HighCount: 1}); err != nil {
		t.Fatalf("ReplaceAnalysis re-run failed: %v", err)
	}

	clauses, _ = store.GetClauses("doc-1")
	if len(clauses) != 1 {
		t.Fatalf("Expected 1 clause after replacement, got %d", len(clauses))
	}
	if clauses[0].Category != model.CategoryLiability {
		t.Errorf("Expected liability clause, got %s", clauses[0].Category)
	}

	// Old clause IDs are gone
	if _, err := store.GetClause(clause.ID); !errors.Is(err, ErrNotFound) {
		t.Error("Expected old clause to be removed after replacement")
	}

	got, err := store.GetAssessment("doc-1")
	if err != nil {
		t.Fatalf("GetAssessment failed: %v", err)
	}
	if got.HighCount != 1 {
		t.Errorf("Expected replaced assessment with high count 1, got %d", got.HighCount)
	}

	// Unknown document
	if err := store.ReplaceAnalysis("non-existent", first, assessment); !errors.Is(err, ErrNotFound) {
		t.Errorf("Expected ErrNotFound, got %v", err)
	}
}

func TestMemoryStoreRuns(t *testing.T) {
	store := newTestStore(100)

	store.SaveDocument(&model.Document{ID: "doc-1", CreatedAt: time.Now()})

	run := model.NewProcessingRun("run-1", "doc-1")
	if err := store.SaveRun(run); err != nil {
		t.Fatalf("SaveRun failed: %v", err)
	}

	// Saving again with the same ID updates in place
	run.Failed = true
	now := time.Now()
	run.FinishedAt = &now
	if err := store.SaveRun(run); err != nil {
		t.Fatalf("SaveRun update failed: %v", err)
	}

	runs, err := store.GetRuns("doc-1")
	if err != nil {
		t.Fatalf("GetRuns failed: %v", err)
	}
	if len(runs) != 1 {
		t.Fatalf("Expected 1 run, got %d", len(runs))
	}
	if !runs[0].Failed {
		t.Error("Expected updated run to be marked failed")
	}
	if len(runs[0].Stages) != 4 {
		t.Errorf("Expected 4 stages, got %d", len(runs[0].Stages))
	}

	// Second run accumulates
	if err := store.SaveRun(model.NewProcessingRun("run-2", "doc-1")); err != nil {
		t.Fatalf("SaveRun failed: %v", err)
	}
	runs, _ = store.GetRuns("doc-1")
	if len(runs) != 2 {
		t.Errorf("Expected 2 runs, got %d", len(runs))
	}
}

func TestMemoryStoreBeginEndRun(t *testing.T) {
	store := newTestStore(100)

	if err := store.BeginRun("doc-1"); err != nil {
		t.Fatalf("BeginRun failed: %v", err)
	}

	// Second acquisition fails while the first is held
	if err := store.BeginRun("doc-1"); !errors.Is(err, ErrRunInFlight) {
		t.Errorf("Expected ErrRunInFlight, got %v", err)
	}

	// Other documents are unaffected
	if err := store.BeginRun("doc-2"); err != nil {
		t.Errorf("Expected BeginRun on other document to succeed, got %v", err)
	}

	store.EndRun("doc-1")
	if err := store.BeginRun("doc-1"); err != nil {
		t.Errorf("Expected BeginRun to succeed after EndRun, got %v", err)
	}
}

func TestMemoryStoreAutoCleanup(t *testing.T) {
	store := newTestStore(3) // Max 3 documents

	for i := 0; i < 5; i++ {
		store.SaveDocument(&model.Document{
			ID:        string(rune('a' + i)),
			CreatedAt: time.Now().Add(time.Duration(i) * time.Second),
		})
		time.Sleep(10 * time.Millisecond) // Ensure different timestamps
	}

	if store.Count() != 3 {
		t.Errorf("Expected 3 documents after cleanup, got %d", store.Count())
	}

	// Oldest documents should be removed
	if _, err := store.GetDocument("a"); !errors.Is(err, ErrNotFound) {
		t.Error("Expected oldest document 'a' to be removed")
	}
	if _, err := store.GetDocument("b"); !errors.Is(err, ErrNotFound) {
		t.Error("Expected second oldest document 'b' to be removed")
	}
}

func TestMemoryStoreUnlimitedDocuments(t *testing.T) {
	store := newTestStore(0) // Unlimited

	for i := 0; i < 10; i++ {
		store.SaveDocument(&model.Document{
			ID:        string(rune('a' + i)),
			CreatedAt: time.Now(),
		})
	}

	if store.Count() != 10 {
		t.Errorf("Expected 10 documents, got %d", store.Count())
	}
}

func TestMemoryStoreSetExtractorTask(t *testing.T) {
	store := newTestStore(100)

	store.SaveDocument(&model.Document{ID: "doc-1", CreatedAt: time.Now()})

	if err := store.SetExtractorTask("doc-1", "task-42"); err != nil {
		t.Fatalf("SetExtractorTask failed: %v", err)
	}

	doc, _ := store.GetDocument("doc-1")
	if doc.ExtractorTaskID != "task-42" {
		t.Errorf("Expected task ID task-42, got %q", doc.ExtractorTaskID)
	}

	if err := store.SetExtractorTask("non-existent", "task-42"); !errors.Is(err, ErrNotFound) {
		t.Errorf("Expected ErrNotFound, got %v", err)
	}
}

// The store hands out detached copies: a handler serializing a document while
// a background run updates its status must never observe the write, and
// mutating a returned struct must never leak back into the store.
func TestMemoryStoreGetDocumentReturnsCopy(t *testing.T) {
	store := newTestStore(100)

	store.SaveDocument(&model.Document{
		ID:        "doc-1",
		Status:    model.StatusPending,
		CreatedAt: time.Now(),
	})

	doc, _ := store.GetDocument("doc-1")
	doc.Status = model.StatusFailed
	doc.ErrorMsg = "mutated by caller"

	fresh, _ := store.GetDocument("doc-1")
	if fresh.Status != model.StatusPending || fresh.ErrorMsg != "" {
		t.Errorf("Caller mutation leaked into the store: status=%s error=%q", fresh.Status, fresh.ErrorMsg)
	}

	listed, _ := store.ListByTenant("")
	listed[0].Status = model.StatusFailed
	fresh, _ = store.GetDocument("doc-1")
	if fresh.Status != model.StatusPending {
		t.Errorf("ListByTenant mutation leaked into the store: status=%s", fresh.Status)
	}
}

func TestMemoryStoreSaveDocumentDetachesCaller(t *testing.T) {
	store := newTestStore(100)

	doc := &model.Document{ID: "doc-1", Status: model.StatusPending, CreatedAt: time.Now()}
	store.SaveDocument(doc)

	// Mutating the caller's struct after saving must not touch the store
	doc.Status = model.StatusFailed

	stored, _ := store.GetDocument("doc-1")
	if stored.Status != model.StatusPending {
		t.Errorf("Caller's struct is aliased by the store: status=%s", stored.Status)
	}
}

func TestMemoryStoreGetAssessmentReturnsCopy(t *testing.T) {
	store := newTestStore(100)

	store.SaveDocument(&model.Document{ID: "doc-1", CreatedAt: time.Now()})
	store.ReplaceAnalysis("doc-1", nil, &model.RiskAssessment{OverallScore: 0.5, OverallLevel: model.RiskMedium})

	a, _ := store.GetAssessment("doc-1")
	a.OverallScore = 0.99
	a.OverallLevel = model.RiskHigh

	fresh, _ := store.GetAssessment("doc-1")
	if fresh.OverallScore != 0.5 || fresh.OverallLevel != model.RiskMedium {
		t.Errorf("Caller mutation leaked into the store: score=%v level=%s", fresh.OverallScore, fresh.OverallLevel)
	}
}

func TestMemoryStoreRunsAreDetached(t *testing.T) {
	store := newTestStore(100)

	store.SaveDocument(&model.Document{ID: "doc-1", CreatedAt: time.Now()})

	run := model.NewProcessingRun("run-1", "doc-1")
	store.SaveRun(run)

	// Pipeline keeps mutating its run struct between saves; readers of the
	// store must only see the saved snapshots
	run.Stages[0].Status = model.StageFailed

	runs, _ := store.GetRuns("doc-1")
	if runs[0].Stages[0].Status != model.StagePending {
		t.Errorf("Caller's run is aliased by the store: stage status=%s", runs[0].Stages[0].Status)
	}

	// And mutating a returned run must not touch the store either
	runs[0].Failed = true
	runs[0].Stages[1].Status = model.StageFailed

	fresh, _ := store.GetRuns("doc-1")
	if fresh[0].Failed || fresh[0].Stages[1].Status != model.StagePending {
		t.Error("Reader mutation leaked into the store")
	}
}

func TestMemoryStoreCount(t *testing.T) {
	store := newTestStore(100)

	if store.Count() != 0 {
		t.Error("Expected 0 documents initially")
	}

	store.SaveDocument(&model.Document{ID: "1", CreatedAt: time.Now()})
	store.SaveDocument(&model.Document{ID: "2", CreatedAt: time.Now()})

	if store.Count() != 2 {
		t.Errorf("Expected 2 documents, got %d", store.Count())
	}
}
