package service

import (
	"errors"
	"log/slog"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/lexatlas/legalrisk/config"
	"github.com/lexatlas/legalrisk/model"
)

var (
	// ErrNotFound is returned when a document, clause or assessment does not exist.
	ErrNotFound = errors.New("not found")
	// ErrRunInFlight is returned by BeginRun while another pipeline run holds
	// the document. Processing is single-writer per document.
	ErrRunInFlight = errors.New("processing run already in flight for document")
)

// DocumentStore persists documents and their owned clause, assessment and run
// collections. Clauses and the assessment are replaced wholesale on every
// processing run; runs accumulate as an audit trail.
type DocumentStore interface {
	SaveDocument(doc *model.Document) error
	GetDocument(id string) (*model.Document, error)
	ListByTenant(tenant string) ([]*model.Document, error)
	DeleteDocument(id string) error
	UpdateStatus(id, status, errMsg string) error
	SetText(id, rawText, normalizedText string) error
	SetSummary(id string, summary *model.DocumentSummary) error
	SetExtractorTask(id, taskID string) error

	ReplaceAnalysis(documentID string, clauses []model.Clause, assessment *model.RiskAssessment) error
	GetClauses(documentID string) ([]model.Clause, error)
	GetClause(clauseID string) (*model.Clause, error)
	GetAssessment(documentID string) (*model.RiskAssessment, error)

	SaveRun(run *model.ProcessingRun) error
	GetRuns(documentID string) ([]*model.ProcessingRun, error)

	// BeginRun acquires the document's single-writer run slot; EndRun releases
	// it. A second BeginRun before EndRun fails with ErrRunInFlight.
	BeginRun(documentID string) error
	EndRun(documentID string)

	Close() error
}

// MemoryStore is an in-memory DocumentStore. It backs tests and small
// deployments; production setups use the SQLite store.
type MemoryStore struct {
	documents    map[string]*model.Document
	clauses      map[string][]model.Clause
	assessments  map[string]*model.RiskAssessment
	runs         map[string][]*model.ProcessingRun
	inflight     map[string]bool
	mu           sync.RWMutex
	maxDocuments int // Maximum documents to keep, 0 = unlimited
}

// NewMemoryStore creates an in-memory store honoring the configured document cap.
func NewMemoryStore(cfg *config.StoreConfig) *MemoryStore {
	maxDocuments := 0
	if cfg != nil && cfg.MaxDocuments > 0 {
		maxDocuments = cfg.MaxDocuments
	}
	slog.Info("memory document store initialized", "max_documents", maxDocuments)
	return &MemoryStore{
		documents:    make(map[string]*model.Document),
		clauses:      make(map[string][]model.Clause),
		assessments:  make(map[string]*model.RiskAssessment),
		runs:         make(map[string][]*model.ProcessingRun),
		inflight:     make(map[string]bool),
		maxDocuments: maxDocuments,
	}
}

// copyDocument detaches a stored document from its caller. Background
// pipeline runs mutate stored documents under the store lock; handing out
// the stored pointer would let handlers read those fields unsynchronized.
func copyDocument(doc *model.Document) *model.Document {
	cp := *doc
	if doc.Summary != nil {
		summary := *doc.Summary
		cp.Summary = &summary
	}
	return &cp
}

// copyRun detaches a run together with its stage results.
func copyRun(run *model.ProcessingRun) *model.ProcessingRun {
	cp := *run
	cp.Stages = append([]model.StageResult(nil), run.Stages...)
	return &cp
}

func (s *MemoryStore) SaveDocument(doc *model.Document) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	doc.UpdatedAt = time.Now()
	s.documents[doc.ID] = copyDocument(doc)

	s.cleanupIfNeeded()
	return nil
}

func (s *MemoryStore) GetDocument(id string) (*model.Document, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	doc, ok := s.documents[id]
	if !ok {
		return nil, ErrNotFound
	}
	return copyDocument(doc), nil
}

func (s *MemoryStore) ListByTenant(tenant string) ([]*model.Document, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var result []*model.Document
	for _, d := range s.documents {
		if d.Tenant == tenant {
			result = append(result, copyDocument(d))
		}
	}
	sort.Slice(result, func(i, j int) bool {
		return result[i].CreatedAt.Before(result[j].CreatedAt)
	})
	return result, nil
}

// DeleteDocument removes the document and everything it owns.
func (s *MemoryStore) DeleteDocument(id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	delete(s.documents, id)
	delete(s.clauses, id)
	delete(s.assessments, id)
	delete(s.runs, id)
	return nil
}

func (s *MemoryStore) UpdateStatus(id, status, errMsg string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	doc, ok := s.documents[id]
	if !ok {
		return ErrNotFound
	}
	doc.Status = status
	doc.ErrorMsg = errMsg
	doc.UpdatedAt = time.Now()
	return nil
}

func (s *MemoryStore) SetText(id, rawText, normalizedText string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	doc, ok := s.documents[id]
	if !ok {
		return ErrNotFound
	}
	if rawText != "" {
		doc.RawText = rawText
	}
	if normalizedText != "" {
		doc.NormalizedText = normalizedText
	}
	doc.UpdatedAt = time.Now()
	return nil
}

func (s *MemoryStore) SetSummary(id string, summary *model.DocumentSummary) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	doc, ok := s.documents[id]
	if !ok {
		return ErrNotFound
	}
	if summary != nil {
		cp := *summary
		doc.Summary = &cp
	} else {
		doc.Summary = nil
	}
	doc.UpdatedAt = time.Now()
	return nil
}

func (s *MemoryStore) SetExtractorTask(id, taskID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	doc, ok := s.documents[id]
	if !ok {
		return ErrNotFound
	}
	doc.ExtractorTaskID = taskID
	doc.UpdatedAt = time.Now()
	return nil
}

// ReplaceAnalysis swaps the document's clause set and assessment wholesale.
// Clause IDs are assigned here; a re-run never merges with previous results.
func (s *MemoryStore) ReplaceAnalysis(documentID string, clauses []model.Clause, assessment *model.RiskAssessment) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.documents[documentID]; !ok {
		return ErrNotFound
	}

	stored := make([]model.Clause, len(clauses))
	for i, c := range clauses {
		c.ID = uuid.New().String()
		c.DocumentID = documentID
		stored[i] = c
	}
	s.clauses[documentID] = stored
	cp := *assessment
	s.assessments[documentID] = &cp
	return nil
}

func (s *MemoryStore) GetClauses(documentID string) ([]model.Clause, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if _, ok := s.documents[documentID]; !ok {
		return nil, ErrNotFound
	}
	return append([]model.Clause{}, s.clauses[documentID]...), nil
}

func (s *MemoryStore) GetClause(clauseID string) (*model.Clause, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	for _, list := range s.clauses {
		for i := range list {
			if list[i].ID == clauseID {
				clause := list[i]
				return &clause, nil
			}
		}
	}
	return nil, ErrNotFound
}

func (s *MemoryStore) GetAssessment(documentID string) (*model.RiskAssessment, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	assessment, ok := s.assessments[documentID]
	if !ok {
		return nil, ErrNotFound
	}
	cp := *assessment
	return &cp, nil
}

func (s *MemoryStore) SaveRun(run *model.ProcessingRun) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	runs := s.runs[run.DocumentID]
	for i, existing := range runs {
		if existing.ID == run.ID {
			runs[i] = copyRun(run)
			return nil
		}
	}
	s.runs[run.DocumentID] = append(runs, copyRun(run))
	return nil
}

func (s *MemoryStore) GetRuns(documentID string) ([]*model.ProcessingRun, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	runs := make([]*model.ProcessingRun, 0, len(s.runs[documentID]))
	for _, run := range s.runs[documentID] {
		runs = append(runs, copyRun(run))
	}
	return runs, nil
}

func (s *MemoryStore) BeginRun(documentID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.inflight[documentID] {
		return ErrRunInFlight
	}
	s.inflight[documentID] = true
	return nil
}

func (s *MemoryStore) EndRun(documentID string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.inflight, documentID)
}

func (s *MemoryStore) Close() error {
	return nil
}

// Count returns the number of documents in the store
func (s *MemoryStore) Count() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.documents)
}

// cleanupIfNeeded removes oldest documents if the store exceeds maxDocuments
// Must be called with lock held
func (s *MemoryStore) cleanupIfNeeded() {
	if s.maxDocuments <= 0 {
		return // Unlimited
	}

	if len(s.documents) <= s.maxDocuments {
		return
	}

	// Sort documents by creation time
	docs := make([]*model.Document, 0, len(s.documents))
	for _, d := range s.documents {
		docs = append(docs, d)
	}
	sort.Slice(docs, func(i, j int) bool {
		return docs[i].CreatedAt.Before(docs[j].CreatedAt)
	})

	// Remove oldest documents together with what they own
	removeCount := len(docs) - s.maxDocuments
	for i := 0; i < removeCount; i++ {
		slog.Info("auto-cleaning old document",
			"document_id", docs[i].ID,
			"created_at", docs[i].CreatedAt,
		)
		delete(s.documents, docs[i].ID)
		delete(s.clauses, docs[i].ID)
		delete(s.assessments, docs[i].ID)
		delete(s.runs, docs[i].ID)
	}
}
