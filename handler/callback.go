package handler

import (
	"context"
	"encoding/json"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/lexatlas/legalrisk/model"
	"github.com/lexatlas/legalrisk/pkg/logger"
	"github.com/lexatlas/legalrisk/service"
)

// CallbackHandler receives completion callbacks from the extraction service.
// The callback route is unauthenticated; the checksum is the trust boundary.
type CallbackHandler struct {
	extractorService *service.ExtractorService
	store            service.DocumentStore
	runner           *service.PipelineRunner
}

func NewCallbackHandler(extractorSvc *service.ExtractorService, store service.DocumentStore, runner *service.PipelineRunner) *CallbackHandler {
	return &CallbackHandler{
		extractorService: extractorSvc,
		store:            store,
		runner:           runner,
	}
}

type CallbackRequest struct {
	Checksum string `json:"checksum"`
	Content  string `json:"content"`
}

type CallbackContent struct {
	TaskID   string `json:"task_id"`
	DataID   string `json:"data_id"`
	State    string `json:"state"`
	Text     string `json:"text"`
	ErrorMsg string `json:"err_msg"`
}

// HandleCallback receives the extraction result for a document
func (h *CallbackHandler) HandleCallback(c *gin.Context) {
	var req CallbackRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid request"})
		return
	}

	var content CallbackContent
	if err := json.Unmarshal([]byte(req.Content), &content); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid content format"})
		return
	}

	// DataID carries our document ID
	doc, err := h.store.GetDocument(content.DataID)
	if err != nil {
		c.JSON(http.StatusNotFound, gin.H{"error": "Document not found"})
		return
	}

	if !h.extractorService.VerifyCallback(req.Checksum, req.Content, content.DataID) {
		logger.Warn(c.Request.Context(), "extraction callback checksum mismatch", "document_id", content.DataID)
		c.JSON(http.StatusUnauthorized, gin.H{"error": "Invalid checksum"})
		return
	}

	switch content.State {
	case "done":
		if content.Text == "" {
			h.store.UpdateStatus(doc.ID, model.StatusFailed, "Extraction returned no text")
			break
		}
		if err := h.store.SetText(doc.ID, content.Text, ""); err != nil {
			c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to store extracted text"})
			return
		}
		if err := h.runner.ProcessAsync(context.Background(), doc.ID); err != nil {
			// An in-flight run is already polling for this text; nothing to do
			logger.Info(c.Request.Context(), "callback did not start a run",
				"document_id", doc.ID, "reason", err)
		}
	case "failed":
		h.store.UpdateStatus(doc.ID, model.StatusFailed, content.ErrorMsg)
	}

	c.JSON(http.StatusOK, gin.H{"message": "Callback received"})
}
