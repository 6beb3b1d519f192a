package service

import (
	"archive/zip"
	"bytes"
	"context"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/lexatlas/legalrisk/config"
	"github.com/lexatlas/legalrisk/model"
)

// ExtractorService talks to the external text extraction API. Documents are
// submitted by URL; the API either calls back with the extracted text or the
// caller polls the task until it completes.
type ExtractorService struct {
	config     *config.ExtractorConfig
	httpClient *http.Client
}

// ExtractTaskRequest represents the request to create an extraction task
type ExtractTaskRequest struct {
	URL      string `json:"url"`
	Callback string `json:"callback,omitempty"`
	Seed     string `json:"seed,omitempty"`
	DataID   string `json:"data_id,omitempty"`
}

// ExtractTaskResponse represents the response from task creation
type ExtractTaskResponse struct {
	Code    int    `json:"code"`
	Message string `json:"msg"`
	Data    struct {
		TaskID string `json:"task_id"`
	} `json:"data"`
}

// ExtractTaskStatusResponse represents the task status query response
type ExtractTaskStatusResponse struct {
	Code    int    `json:"code"`
	Message string `json:"msg"`
	TraceID string `json:"trace_id"`
	Data    struct {
		TaskID     string `json:"task_id"`
		DataID     string `json:"data_id"`
		State      string `json:"state"` // pending, running, done, failed
		ResultURL  string `json:"result_url,omitempty"`
		FullZipURL string `json:"full_zip_url,omitempty"`
		ErrorMsg   string `json:"err_msg,omitempty"`
	} `json:"data"`
}

// ExtractCallbackPayload represents the callback payload from the extractor
type ExtractCallbackPayload struct {
	Checksum string `json:"checksum"`
	Content  string `json:"content"`
}

func NewExtractorService(cfg *config.ExtractorConfig) *ExtractorService {
	return &ExtractorService{
		config: cfg,
		httpClient: &http.Client{
			Timeout: 60 * time.Second,
		},
	}
}

// CreateTask creates a new extraction task for the document at docURL
func (s *ExtractorService) CreateTask(docURL, dataID string) (*ExtractTaskResponse, error) {
	reqBody := ExtractTaskRequest{
		URL:    docURL,
		DataID: dataID,
	}

	if s.config.CallbackURL != "" {
		reqBody.Callback = s.config.CallbackURL
		reqBody.Seed = s.config.Seed
	}

	jsonData, err := json.Marshal(reqBody)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal request: %w", err)
	}

	req, err := http.NewRequest("POST", s.config.APIURL+"/extract/task", bytes.NewBuffer(jsonData))
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}

	req.Header.Set("Authorization", "Bearer "+s.config.APIToken)
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept", "*/*")

	resp, err := s.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("failed to send request: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("failed to read response: %w", err)
	}

	var result ExtractTaskResponse
	if err := json.Unmarshal(body, &result); err != nil {
		return nil, fmt.Errorf("failed to parse response: %w, body: %s", err, string(body))
	}

	if result.Code != 0 {
		return nil, fmt.Errorf("extractor API error: %s", result.Message)
	}

	return &result, nil
}

// GetTaskStatus queries the status of a task
func (s *ExtractorService) GetTaskStatus(taskID string) (*ExtractTaskStatusResponse, error) {
	req, err := http.NewRequest("GET", fmt.Sprintf("%s/extract/task/%s", s.config.APIURL, taskID), nil)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}

	req.Header.Set("Authorization", "Bearer "+s.config.APIToken)
	req.Header.Set("Accept", "*/*")

	resp, err := s.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("failed to send request: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("failed to read response: %w", err)
	}

	slog.Debug("extractor status response", "task_id", taskID, "body", string(body))

	var result ExtractTaskStatusResponse
	if err := json.Unmarshal(body, &result); err != nil {
		return nil, fmt.Errorf("failed to parse response: %w", err)
	}

	if result.Code != 0 {
		return nil, fmt.Errorf("extractor API error: %s", result.Message)
	}

	return &result, nil
}

// VerifyCallback verifies the callback checksum.
// Checksum = SHA256(uid + seed + content)
func (s *ExtractorService) VerifyCallback(checksum, content string, uid string) bool {
	data := uid + s.config.Seed + content
	hash := sha256.Sum256([]byte(data))
	expected := hex.EncodeToString(hash[:])
	return checksum == expected
}

// FetchTextResult fetches the extracted plain text from a direct URL
func (s *ExtractorService) FetchTextResult(textURL string) (string, error) {
	resp, err := s.httpClient.Get(textURL)
	if err != nil {
		return "", fmt.Errorf("failed to fetch text: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return "", fmt.Errorf("failed to fetch text: status %d", resp.StatusCode)
	}

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return "", fmt.Errorf("failed to read text: %w", err)
	}

	return string(body), nil
}

// FetchZipAndExtractText downloads the result ZIP and extracts the text content
func (s *ExtractorService) FetchZipAndExtractText(zipURL string) (string, error) {
	slog.Debug("downloading extraction result", "url", zipURL)

	resp, err := s.httpClient.Get(zipURL)
	if err != nil {
		return "", fmt.Errorf("failed to download ZIP: %w", err)
	}
	defer resp.Body.Close()

	zipData, err := io.ReadAll(resp.Body)
	if err != nil {
		return "", fmt.Errorf("failed to read ZIP: %w", err)
	}

	zipReader, err := zip.NewReader(bytes.NewReader(zipData), int64(len(zipData)))
	if err != nil {
		return "", fmt.Errorf("failed to open ZIP: %w", err)
	}

	// Prefer the dedicated text outputs, fall back to any .txt/.md file
	targets := []string{"full.txt", "content.txt", "content.md"}

	for _, file := range zipReader.File {
		for _, target := range targets {
			if strings.HasSuffix(file.Name, target) {
				return readZipEntry(file)
			}
		}
	}

	for _, file := range zipReader.File {
		if strings.HasSuffix(file.Name, ".txt") || strings.HasSuffix(file.Name, ".md") {
			return readZipEntry(file)
		}
	}

	return "", fmt.Errorf("no text file found in ZIP")
}

const (
	extractPollInterval = 5 * time.Second
	extractMaxAttempts  = 60 // 5 minutes with 5 second intervals
)

// ExtractorTextProvider drives an extraction task to completion for documents
// uploaded as PDF or DOCX: it submits the document's source URL, polls the
// task, and returns the extracted plain text.
type ExtractorTextProvider struct {
	extractor *ExtractorService
	store     DocumentStore
}

func NewExtractorTextProvider(extractor *ExtractorService, store DocumentStore) *ExtractorTextProvider {
	return &ExtractorTextProvider{extractor: extractor, store: store}
}

// ProvideText implements TextProvider.
func (p *ExtractorTextProvider) ProvideText(ctx context.Context, doc *model.Document) (string, error) {
	if doc.SourceURL == "" {
		return "", fmt.Errorf("document %s has no source URL to extract from", doc.ID)
	}

	resp, err := p.extractor.CreateTask(doc.SourceURL, doc.ID)
	if err != nil {
		return "", fmt.Errorf("failed to create extraction task: %w", err)
	}

	if err := p.store.SetExtractorTask(doc.ID, resp.Data.TaskID); err != nil {
		slog.Warn("failed to persist extractor task id", "document_id", doc.ID, "error", err)
	}

	return p.pollTask(ctx, resp.Data.TaskID)
}

func (p *ExtractorTextProvider) pollTask(ctx context.Context, taskID string) (string, error) {
	for i := 0; i < extractMaxAttempts; i++ {
		select {
		case <-ctx.Done():
			return "", ctx.Err()
		case <-time.After(extractPollInterval):
		}

		status, err := p.extractor.GetTaskStatus(taskID)
		if err != nil {
			slog.Warn("extraction poll attempt failed", "task_id", taskID, "attempt", i+1, "error", err)
			continue
		}

		switch status.Data.State {
		case "done":
			if status.Data.ResultURL != "" {
				return p.extractor.FetchTextResult(status.Data.ResultURL)
			}
			if status.Data.FullZipURL != "" {
				return p.extractor.FetchZipAndExtractText(status.Data.FullZipURL)
			}
			return "", fmt.Errorf("extraction task %s finished without a result", taskID)
		case "failed":
			return "", fmt.Errorf("extraction task %s failed: %s", taskID, status.Data.ErrorMsg)
		}
	}

	return "", fmt.Errorf("extraction task %s polling timeout", taskID)
}

func readZipEntry(file *zip.File) (string, error) {
	rc, err := file.Open()
	if err != nil {
		return "", fmt.Errorf("failed to open ZIP entry %s: %w", file.Name, err)
	}
	defer rc.Close()

	content, err := io.ReadAll(rc)
	if err != nil {
		return "", fmt.Errorf("failed to read ZIP entry %s: %w", file.Name, err)
	}
	return string(content), nil
}
