package service

import (
	"database/sql"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/lexatlas/legalrisk/model"

	_ "github.com/mattn/go-sqlite3" // SQLite driver
)

// SQLiteStore implements DocumentStore on SQLite. Documents own their clause,
// assessment and run rows; deleting a document removes all of them.
type SQLiteStore struct {
	db       *sql.DB
	dbPath   string
	inflight map[string]bool
	mu       sync.Mutex // guards inflight; SQLite serializes its own writes
}

const sqliteSchema = `
CREATE TABLE IF NOT EXISTS documents (
	id TEXT PRIMARY KEY,
	filename TEXT NOT NULL,
	tenant TEXT NOT NULL,
	source_url TEXT NOT NULL DEFAULT '',
	status TEXT NOT NULL,
	extractor_task_id TEXT NOT NULL DEFAULT '',
	raw_text TEXT NOT NULL DEFAULT '',
	normalized_text TEXT NOT NULL DEFAULT '',
	summary_json TEXT NOT NULL DEFAULT '',
	error_msg TEXT NOT NULL DEFAULT '',
	created_at TIMESTAMP NOT NULL,
	updated_at TIMESTAMP NOT NULL
);

CREATE TABLE IF NOT EXISTS clauses (
	id TEXT PRIMARY KEY,
	document_id TEXT NOT NULL REFERENCES documents(id) ON DELETE CASCADE,
	seq INTEGER NOT NULL,
	category TEXT NOT NULL,
	start_pos INTEGER NOT NULL,
	end_pos INTEGER NOT NULL,
	text TEXT NOT NULL,
	risk_score REAL NOT NULL,
	risk_level TEXT NOT NULL,
	explanation TEXT NOT NULL,
	risk_explanation TEXT NOT NULL
);
CREATE INDEX IF NOT EXISTS idx_clauses_document ON clauses(document_id, seq);

CREATE TABLE IF NOT EXISTS assessments (
	document_id TEXT PRIMARY KEY REFERENCES documents(id) ON DELETE CASCADE,
	overall_score REAL NOT NULL,
	overall_level TEXT NOT NULL,
	high_count INTEGER NOT NULL,
	medium_count INTEGER NOT NULL,
	low_count INTEGER NOT NULL,
	summary TEXT NOT NULL
);

CREATE TABLE IF NOT EXISTS runs (
	id TEXT PRIMARY KEY,
	document_id TEXT NOT NULL REFERENCES documents(id) ON DELETE CASCADE,
	started_at TIMESTAMP NOT NULL,
	finished_at TIMESTAMP,
	failed INTEGER NOT NULL DEFAULT 0
);
CREATE INDEX IF NOT EXISTS idx_runs_document ON runs(document_id, started_at);

CREATE TABLE IF NOT EXISTS stage_results (
	run_id TEXT NOT NULL REFERENCES runs(id) ON DELETE CASCADE,
	seq INTEGER NOT NULL,
	stage TEXT NOT NULL,
	status TEXT NOT NULL,
	started_at TIMESTAMP,
	completed_at TIMESTAMP,
	error TEXT NOT NULL DEFAULT '',
	PRIMARY KEY (run_id, seq)
);
`

// NewSQLiteStore opens (and if necessary creates) the database at dbPath.
func NewSQLiteStore(dbPath string) (*SQLiteStore, error) {
	if dbPath == "" {
		return nil, fmt.Errorf("sqlite store: empty database path")
	}

	// Ensure directory exists
	dir := filepath.Dir(dbPath)
	if err := os.MkdirAll(dir, 0750); err != nil {
		return nil, fmt.Errorf("failed to create database directory: %w", err)
	}

	db, err := sql.Open("sqlite3", dbPath+"?_journal_mode=WAL&_busy_timeout=5000&_foreign_keys=on")
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	// SQLite doesn't benefit from multiple connections
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)
	db.SetConnMaxLifetime(0)

	if err := db.Ping(); err != nil {
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}

	if _, err := db.Exec(sqliteSchema); err != nil {
		return nil, fmt.Errorf("failed to initialize schema: %w", err)
	}

	return &SQLiteStore{
		db:       db,
		dbPath:   dbPath,
		inflight: make(map[string]bool),
	}, nil
}

func (s *SQLiteStore) Close() error {
	return s.db.Close()
}

func (s *SQLiteStore) SaveDocument(doc *model.Document) error {
	doc.UpdatedAt = time.Now()

	summaryJSON := ""
	if doc.Summary != nil {
		data, err := json.Marshal(doc.Summary)
		if err != nil {
			return fmt.Errorf("failed to marshal summary: %w", err)
		}
		summaryJSON = string(data)
	}

	_, err := s.db.Exec(`
		INSERT INTO documents (id, filename, tenant, source_url, status, extractor_task_id,
			raw_text, normalized_text, summary_json, error_msg, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET
			filename = excluded.filename,
			source_url = excluded.source_url,
			status = excluded.status,
			extractor_task_id = excluded.extractor_task_id,
			raw_text = excluded.raw_text,
			normalized_text = excluded.normalized_text,
			summary_json = excluded.summary_json,
			error_msg = excluded.error_msg,
			updated_at = excluded.updated_at`,
		doc.ID, doc.Filename, doc.Tenant, doc.SourceURL, doc.Status, doc.ExtractorTaskID,
		doc.RawText, doc.NormalizedText, summaryJSON, doc.ErrorMsg, doc.CreatedAt, doc.UpdatedAt)
	if err != nil {
		return fmt.Errorf("failed to save document: %w", err)
	}
	return nil
}

func (s *SQLiteStore) GetDocument(id string) (*model.Document, error) {
	row := s.db.QueryRow(`
		SELECT id, filename, tenant, source_url, status, extractor_task_id,
			raw_text, normalized_text, summary_json, error_msg, created_at, updated_at
		FROM documents WHERE id = ?`, id)
	return scanDocument(row)
}

func (s *SQLiteStore) ListByTenant(tenant string) ([]*model.Document, error) {
	rows, err := s.db.Query(`
		SELECT id, filename, tenant, source_url, status, extractor_task_id,
			raw_text, normalized_text, summary_json, error_msg, created_at, updated_at
		FROM documents WHERE tenant = ? ORDER BY created_at`, tenant)
	if err != nil {
		return nil, fmt.Errorf("failed to list documents: %w", err)
	}
	defer rows.Close()

	var docs []*model.Document
	for rows.Next() {
		doc, err := scanDocument(rows)
		if err != nil {
			return nil, err
		}
		docs = append(docs, doc)
	}
	return docs, rows.Err()
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanDocument(row rowScanner) (*model.Document, error) {
	var doc model.Document
	var summaryJSON string
	err := row.Scan(&doc.ID, &doc.Filename, &doc.Tenant, &doc.SourceURL, &doc.Status,
		&doc.ExtractorTaskID, &doc.RawText, &doc.NormalizedText, &summaryJSON,
		&doc.ErrorMsg, &doc.CreatedAt, &doc.UpdatedAt)
	if err == sql.ErrNoRows {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to scan document: %w", err)
	}
	if summaryJSON != "" {
		var summary model.DocumentSummary
		if err := json.Unmarshal([]byte(summaryJSON), &summary); err == nil {
			doc.Summary = &summary
		}
	}
	return &doc, nil
}

func (s *SQLiteStore) DeleteDocument(id string) error {
	if _, err := s.db.Exec(`DELETE FROM documents WHERE id = ?`, id); err != nil {
		return fmt.Errorf("failed to delete document: %w", err)
	}
	return nil
}

func (s *SQLiteStore) UpdateStatus(id, status, errMsg string) error {
	res, err := s.db.Exec(`UPDATE documents SET status = ?, error_msg = ?, updated_at = ? WHERE id = ?`,
		status, errMsg, time.Now(), id)
	if err != nil {
		return fmt.Errorf("failed to update status: %w", err)
	}
	return requireRow(res)
}

func (s *SQLiteStore) SetText(id, rawText, normalizedText string) error {
	res, err := s.db.Exec(`
		UPDATE documents SET
			raw_text = CASE WHEN ? != '' THEN ? ELSE raw_text END,
			normalized_text = CASE WHEN ? != '' THEN ? ELSE normalized_text END,
			updated_at = ?
		WHERE id = ?`,
		rawText, rawText, normalizedText, normalizedText, time.Now(), id)
	if err != nil {
		return fmt.Errorf("failed to set text: %w", err)
	}
	return requireRow(res)
}

func (s *SQLiteStore) SetSummary(id string, summary *model.DocumentSummary) error {
	data, err := json.Marshal(summary)
	if err != nil {
		return fmt.Errorf("failed to marshal summary: %w", err)
	}
	res, err := s.db.Exec(`UPDATE documents SET summary_json = ?, updated_at = ? WHERE id = ?`,
		string(data), time.Now(), id)
	if err != nil {
		return fmt.Errorf("failed to set summary: %w", err)
	}
	return requireRow(res)
}

func (s *SQLiteStore) SetExtractorTask(id, taskID string) error {
	res, err := s.db.Exec(`UPDATE documents SET extractor_task_id = ?, updated_at = ? WHERE id = ?`,
		taskID, time.Now(), id)
	if err != nil {
		return fmt.Errorf("failed to set extractor task: %w", err)
	}
	return requireRow(res)
}

func requireRow(res sql.Result) error {
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to check affected rows: %w", err)
	}
	if n == 0 {
		return ErrNotFound
	}
	return nil
}

func (s *SQLiteStore) ReplaceAnalysis(documentID string, clauses []model.Clause, assessment *model.RiskAssessment) error {
	tx, err := s.db.Begin()
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	var exists int
	if err := tx.QueryRow(`SELECT COUNT(1) FROM documents WHERE id = ?`, documentID).Scan(&exists); err != nil {
		return fmt.Errorf("failed to check document: %w", err)
	}
	if exists == 0 {
		return ErrNotFound
	}

	if _, err := tx.Exec(`DELETE FROM clauses WHERE document_id = ?`, documentID); err != nil {
		return fmt.Errorf("failed to clear clauses: %w", err)
	}

	for i, c := range clauses {
		if _, err := tx.Exec(`
			INSERT INTO clauses (id, document_id, seq, category, start_pos, end_pos,
				text, risk_score, risk_level, explanation, risk_explanation)
			VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
			uuid.New().String(), documentID, i, string(c.Category), c.Start, c.End,
			c.Text, c.RiskScore, string(c.RiskLevel), c.Explanation, c.RiskExplanation); err != nil {
			return fmt.Errorf("failed to insert clause: %w", err)
		}
	}

	if _, err := tx.Exec(`
		INSERT INTO assessments (document_id, overall_score, overall_level, high_count, medium_count, low_count, summary)
		VALUES (?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(document_id) DO UPDATE SET
			overall_score = excluded.overall_score,
			overall_level = excluded.overall_level,
			high_count = excluded.high_count,
			medium_count = excluded.medium_count,
			low_count = excluded.low_count,
			summary = excluded.summary`,
		documentID, assessment.OverallScore, string(assessment.OverallLevel),
		assessment.HighCount, assessment.MediumCount, assessment.LowCount, assessment.Summary); err != nil {
		return fmt.Errorf("failed to save assessment: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit analysis: %w", err)
	}
	return nil
}

func (s *SQLiteStore) GetClauses(documentID string) ([]model.Clause, error) {
	var exists int
	if err := s.db.QueryRow(`SELECT COUNT(1) FROM documents WHERE id = ?`, documentID).Scan(&exists); err != nil {
		return nil, fmt.Errorf("failed to check document: %w", err)
	}
	if exists == 0 {
		return nil, ErrNotFound
	}

	rows, err := s.db.Query(`
		SELECT id, document_id, category, start_pos, end_pos, text,
			risk_score, risk_level, explanation, risk_explanation
		FROM clauses WHERE document_id = ? ORDER BY seq`, documentID)
	if err != nil {
		return nil, fmt.Errorf("failed to query clauses: %w", err)
	}
	defer rows.Close()

	clauses := []model.Clause{}
	for rows.Next() {
		var c model.Clause
		var category, level string
		if err := rows.Scan(&c.ID, &c.DocumentID, &category, &c.Start, &c.End, &c.Text,
			&c.RiskScore, &level, &c.Explanation, &c.RiskExplanation); err != nil {
			return nil, fmt.Errorf("failed to scan clause: %w", err)
		}
		c.Category = model.ClauseCategory(category)
		c.RiskLevel = model.RiskLevel(level)
		clauses = append(clauses, c)
	}
	return clauses, rows.Err()
}

func (s *SQLiteStore) GetClause(clauseID string) (*model.Clause, error) {
	row := s.db.QueryRow(`
		SELECT id, document_id, category, start_pos, end_pos, text,
			risk_score, risk_level, explanation, risk_explanation
		FROM clauses WHERE id = ?`, clauseID)

	var c model.Clause
	var category, level string
	err := row.Scan(&c.ID, &c.DocumentID, &category, &c.Start, &c.End, &c.Text,
		&c.RiskScore, &level, &c.Explanation, &c.RiskExplanation)
	if err == sql.ErrNoRows {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to scan clause: %w", err)
	}
	c.Category = model.ClauseCategory(category)
	c.RiskLevel = model.RiskLevel(level)
	return &c, nil
}

func (s *SQLiteStore) GetAssessment(documentID string) (*model.RiskAssessment, error) {
	row := s.db.QueryRow(`
		SELECT overall_score, overall_level, high_count, medium_count, low_count, summary
		FROM assessments WHERE document_id = ?`, documentID)

	var a model.RiskAssessment
	var level string
	err := row.Scan(&a.OverallScore, &level, &a.HighCount, &a.MediumCount, &a.LowCount, &a.Summary)
	if err == sql.ErrNoRows {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to scan assessment: %w", err)
	}
	a.OverallLevel = model.RiskLevel(level)
	return &a, nil
}

func (s *SQLiteStore) SaveRun(run *model.ProcessingRun) error {
	tx, err := s.db.Begin()
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	failed := 0
	if run.Failed {
		failed = 1
	}
	if _, err := tx.Exec(`
		INSERT INTO runs (id, document_id, started_at, finished_at, failed)
		VALUES (?, ?, ?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET
			finished_at = excluded.finished_at,
			failed = excluded.failed`,
		run.ID, run.DocumentID, run.StartedAt, run.FinishedAt, failed); err != nil {
		return fmt.Errorf("failed to save run: %w", err)
	}

	if _, err := tx.Exec(`DELETE FROM stage_results WHERE run_id = ?`, run.ID); err != nil {
		return fmt.Errorf("failed to clear stage results: %w", err)
	}
	for i, stage := range run.Stages {
		if _, err := tx.Exec(`
			INSERT INTO stage_results (run_id, seq, stage, status, started_at, completed_at, error)
			VALUES (?, ?, ?, ?, ?, ?, ?)`,
			run.ID, i, stage.Stage, stage.Status, stage.StartedAt, stage.CompletedAt, stage.Error); err != nil {
			return fmt.Errorf("failed to insert stage result: %w", err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit run: %w", err)
	}
	return nil
}

func (s *SQLiteStore) GetRuns(documentID string) ([]*model.ProcessingRun, error) {
	rows, err := s.db.Query(`
		SELECT id, document_id, started_at, finished_at, failed
		FROM runs WHERE document_id = ? ORDER BY started_at`, documentID)
	if err != nil {
		return nil, fmt.Errorf("failed to query runs: %w", err)
	}
	defer rows.Close()

	var runs []*model.ProcessingRun
	for rows.Next() {
		var run model.ProcessingRun
		var failed int
		if err := rows.Scan(&run.ID, &run.DocumentID, &run.StartedAt, &run.FinishedAt, &failed); err != nil {
			return nil, fmt.Errorf("failed to scan run: %w", err)
		}
		run.Failed = failed != 0
		runs = append(runs, &run)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	for _, run := range runs {
		stages, err := s.getStageResults(run.ID)
		if err != nil {
			return nil, err
		}
		run.Stages = stages
	}
	return runs, nil
}

func (s *SQLiteStore) getStageResults(runID string) ([]model.StageResult, error) {
	rows, err := s.db.Query(`
		SELECT stage, status, started_at, completed_at, error
		FROM stage_results WHERE run_id = ? ORDER BY seq`, runID)
	if err != nil {
		return nil, fmt.Errorf("failed to query stage results: %w", err)
	}
	defer rows.Close()

	var stages []model.StageResult
	for rows.Next() {
		var stage model.StageResult
		if err := rows.Scan(&stage.Stage, &stage.Status, &stage.StartedAt, &stage.CompletedAt, &stage.Error); err != nil {
			return nil, fmt.Errorf("failed to scan stage result: %w", err)
		}
		stages = append(stages, stage)
	}
	return stages, rows.Err()
}

// BeginRun and EndRun guard the single-writer-per-document contract. The
// guard is process local; the run history itself is persistent.
func (s *SQLiteStore) BeginRun(documentID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.inflight[documentID] {
		return ErrRunInFlight
	}
	s.inflight[documentID] = true
	return nil
}

func (s *SQLiteStore) EndRun(documentID string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.inflight, documentID)
}
