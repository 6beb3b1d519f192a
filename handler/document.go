package handler

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"path/filepath"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/lexatlas/legalrisk/middleware"
	"github.com/lexatlas/legalrisk/model"
	"github.com/lexatlas/legalrisk/pkg/logger"
	"github.com/lexatlas/legalrisk/service"
)

// maxUploadBytes caps inline text uploads; object storage handles the rest.
const maxUploadBytes = 10 << 20

type DocumentHandler struct {
	store        service.DocumentStore
	minioService *service.MinioService // nil when object storage is not configured
	runner       *service.PipelineRunner
}

func NewDocumentHandler(store service.DocumentStore, minioSvc *service.MinioService, runner *service.PipelineRunner) *DocumentHandler {
	return &DocumentHandler{
		store:        store,
		minioService: minioSvc,
		runner:       runner,
	}
}

// Upload handles document file upload. Plain text files carry their content
// directly; PDF and DOCX files go to object storage and are extracted during
// processing. Processing starts in the background immediately.
func (h *DocumentHandler) Upload(c *gin.Context) {
	tenant := middleware.GetTenant(c)

	file, header, err := c.Request.FormFile("file")
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "No file provided"})
		return
	}
	defer file.Close()

	ext := strings.ToLower(filepath.Ext(header.Filename))
	if ext != ".txt" && ext != ".pdf" && ext != ".docx" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Only TXT, PDF and DOCX files are allowed"})
		return
	}

	documentID := uuid.New().String()
	doc := &model.Document{
		ID:        documentID,
		Filename:  header.Filename,
		Tenant:    tenant,
		Status:    model.StatusPending,
		CreatedAt: time.Now(),
		UpdatedAt: time.Now(),
	}

	if ext == ".txt" {
		content, err := io.ReadAll(io.LimitReader(file, maxUploadBytes+1))
		if err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "Failed to read file"})
			return
		}
		if len(content) > maxUploadBytes {
			c.JSON(http.StatusBadRequest, gin.H{"error": "File too large"})
			return
		}
		doc.RawText = string(content)
	} else {
		if h.minioService == nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "Only TXT uploads are supported without object storage"})
			return
		}

		contentType := header.Header.Get("Content-Type")
		if contentType == "" || contentType == "application/octet-stream" {
			if ext == ".pdf" {
				contentType = "application/pdf"
			} else {
				contentType = "application/vnd.openxmlformats-officedocument.wordprocessingml.document"
			}
		}

		objectName := fmt.Sprintf("%s/%s/%s", tenant, documentID, header.Filename)
		if err := h.minioService.UploadFile(c.Request.Context(), objectName, file, header.Size, contentType); err != nil {
			c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to upload file: " + err.Error()})
			return
		}

		sourceURL, err := h.minioService.GetPresignedURL(c.Request.Context(), objectName)
		if err != nil {
			c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to generate URL: " + err.Error()})
			return
		}
		doc.SourceURL = sourceURL
	}

	if err := h.store.SaveDocument(doc); err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to save document"})
		return
	}

	// Background processing is detached from the request lifecycle
	if err := h.runner.ProcessAsync(context.Background(), documentID); err != nil {
		logger.Warn(c.Request.Context(), "failed to start processing after upload",
			"document_id", documentID, "error", err)
	}

	c.JSON(http.StatusOK, gin.H{
		"id":       documentID,
		"filename": header.Filename,
		"status":   model.StatusPending,
	})
}

// List returns all documents for the current tenant
func (h *DocumentHandler) List(c *gin.Context) {
	tenant := middleware.GetTenant(c)

	docs, err := h.store.ListByTenant(tenant)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to list documents"})
		return
	}

	result := make([]gin.H, len(docs))
	for i, doc := range docs {
		result[i] = gin.H{
			"id":         doc.ID,
			"filename":   doc.Filename,
			"status":     doc.Status,
			"created_at": doc.CreatedAt.Format(time.RFC3339),
			"updated_at": doc.UpdatedAt.Format(time.RFC3339),
		}
	}

	c.JSON(http.StatusOK, gin.H{"documents": result})
}

// getTenantDocument loads the document and enforces tenant ownership.
// Cross-tenant access reads as not found, never as forbidden.
func (h *DocumentHandler) getTenantDocument(c *gin.Context) (*model.Document, bool) {
	tenant := middleware.GetTenant(c)
	id := c.Param("id")

	doc, err := h.store.GetDocument(id)
	if err != nil || doc.Tenant != tenant {
		c.JSON(http.StatusNotFound, gin.H{"error": "Document not found"})
		return nil, false
	}
	return doc, true
}

// Get returns a single document
func (h *DocumentHandler) Get(c *gin.Context) {
	doc, ok := h.getTenantDocument(c)
	if !ok {
		return
	}
	c.JSON(http.StatusOK, doc)
}

// GetStatus returns the processing status of a document
func (h *DocumentHandler) GetStatus(c *gin.Context) {
	doc, ok := h.getTenantDocument(c)
	if !ok {
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"id":        doc.ID,
		"status":    doc.Status,
		"error_msg": doc.ErrorMsg,
	})
}

// Delete deletes a document and everything it owns
func (h *DocumentHandler) Delete(c *gin.Context) {
	doc, ok := h.getTenantDocument(c)
	if !ok {
		return
	}

	// Best effort: the object lives at tenant/id/filename (see Upload)
	if h.minioService != nil && doc.SourceURL != "" {
		objectName := fmt.Sprintf("%s/%s/%s", doc.Tenant, doc.ID, doc.Filename)
		if err := h.minioService.DeleteFile(c.Request.Context(), objectName); err != nil {
			logger.Warn(c.Request.Context(), "failed to delete stored object",
				"document_id", doc.ID, "object", objectName, "error", err)
		}
	}

	if err := h.store.DeleteDocument(doc.ID); err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to delete document"})
		return
	}

	c.JSON(http.StatusOK, gin.H{"message": "Document deleted"})
}

// Process triggers a new processing run for the document
func (h *DocumentHandler) Process(c *gin.Context) {
	doc, ok := h.getTenantDocument(c)
	if !ok {
		return
	}

	if err := h.runner.ProcessAsync(context.Background(), doc.ID); err != nil {
		if errors.Is(err, service.ErrRunInFlight) {
			c.JSON(http.StatusConflict, gin.H{"error": "Document is already being processed"})
			return
		}
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to start processing"})
		return
	}

	c.JSON(http.StatusAccepted, gin.H{
		"id":     doc.ID,
		"status": model.StatusProcessing,
	})
}

// GetClauses returns the detected clauses of a document
func (h *DocumentHandler) GetClauses(c *gin.Context) {
	doc, ok := h.getTenantDocument(c)
	if !ok {
		return
	}

	clauses, err := h.store.GetClauses(doc.ID)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to load clauses"})
		return
	}

	c.JSON(http.StatusOK, gin.H{"clauses": clauses, "count": len(clauses)})
}

// GetRisk returns the document-wide risk assessment
func (h *DocumentHandler) GetRisk(c *gin.Context) {
	doc, ok := h.getTenantDocument(c)
	if !ok {
		return
	}

	assessment, err := h.store.GetAssessment(doc.ID)
	if err != nil {
		if errors.Is(err, service.ErrNotFound) {
			c.JSON(http.StatusNotFound, gin.H{"error": "Document has not been analyzed yet"})
			return
		}
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to load assessment"})
		return
	}

	c.JSON(http.StatusOK, assessment)
}

// GetSummary returns the extractive document summary
func (h *DocumentHandler) GetSummary(c *gin.Context) {
	doc, ok := h.getTenantDocument(c)
	if !ok {
		return
	}

	if doc.Summary == nil {
		c.JSON(http.StatusNotFound, gin.H{"error": "Document has no summary yet"})
		return
	}

	c.JSON(http.StatusOK, doc.Summary)
}

// GetRuns returns the processing run history of a document
func (h *DocumentHandler) GetRuns(c *gin.Context) {
	doc, ok := h.getTenantDocument(c)
	if !ok {
		return
	}

	runs, err := h.store.GetRuns(doc.ID)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to load runs"})
		return
	}

	c.JSON(http.StatusOK, gin.H{"runs": runs, "count": len(runs)})
}
