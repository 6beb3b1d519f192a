package handler

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/lexatlas/legalrisk/analyzer"
	"github.com/lexatlas/legalrisk/middleware"
	"github.com/lexatlas/legalrisk/service"
)

type ScenarioHandler struct {
	store     service.DocumentStore
	simulator *analyzer.Simulator
	cache     *service.SimulationCache
}

func NewScenarioHandler(store service.DocumentStore, simulator *analyzer.Simulator, cache *service.SimulationCache) *ScenarioHandler {
	return &ScenarioHandler{
		store:     store,
		simulator: simulator,
		cache:     cache,
	}
}

// ListScenarios returns the what-if scenario catalogue
func (h *ScenarioHandler) ListScenarios(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"scenarios": h.simulator.Scenarios()})
}

type SimulateRequest struct {
	Scenario      string             `json:"scenario" binding:"required"`
	Modifications map[string]float64 `json:"modifications"`
}

// Simulate projects the risk impact of hypothetical clause modifications.
// Results are read-only: nothing in the store changes.
func (h *ScenarioHandler) Simulate(c *gin.Context) {
	tenant := middleware.GetTenant(c)
	clauseID := c.Param("id")

	var req SimulateRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid request"})
		return
	}

	clause, err := h.store.GetClause(clauseID)
	if err != nil {
		c.JSON(http.StatusNotFound, gin.H{"error": "Clause not found"})
		return
	}

	// Ownership runs through the clause's document
	doc, err := h.store.GetDocument(clause.DocumentID)
	if err != nil || doc.Tenant != tenant {
		c.JSON(http.StatusNotFound, gin.H{"error": "Clause not found"})
		return
	}

	if cached, ok := h.cache.Get(clauseID, req.Scenario, req.Modifications); ok {
		c.JSON(http.StatusOK, cached)
		return
	}

	result, err := h.simulator.Simulate(*clause, req.Scenario, req.Modifications)
	if err != nil {
		if errors.Is(err, analyzer.ErrUnknownScenario) {
			c.JSON(http.StatusBadRequest, gin.H{"error": "Unknown scenario: " + req.Scenario})
			return
		}
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Simulation failed"})
		return
	}

	h.cache.Put(clauseID, req.Scenario, req.Modifications, result)
	c.JSON(http.StatusOK, result)
}
