package handler

import (
	"context"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/timmy/layoffwatch/internal/domain"
	"github.com/timmy/layoffwatch/internal/logger"
)

// Orchestrator is the part of service.Orchestrator the admin API drives.
type Orchestrator interface {
	Registrations() []domain.AdapterRegistration
	RunAdapter(ctx context.Context, name string) domain.RunResult
	RunAll(ctx context.Context) *domain.RunSummary
	LastResults() map[string]domain.RunResult
}

// AdminHandler handles source listing and run triggers.
type AdminHandler struct {
	orchestrator Orchestrator
}

// NewAdminHandler creates a new admin handler.
// Parameters:
//   - o: orchestrator whose adapters are exposed.
//
// Returns:
//   - *AdminHandler: initialized handler.
func NewAdminHandler(o Orchestrator) *AdminHandler {
	return &AdminHandler{orchestrator: o}
}

// SourceResponse describes one registered adapter.
type SourceResponse struct {
	Name     string `json:"name"`
	Enabled  bool   `json:"enabled"`
	Interval string `json:"interval,omitempty"`
}

// ListSources returns the registered adapters in registration order.
func (h *AdminHandler) ListSources(c *gin.Context) {
	regs := h.orchestrator.Registrations()
	sources := make([]SourceResponse, 0, len(regs))
	for _, r := range regs {
		s := SourceResponse{Name: r.Name, Enabled: r.Enabled}
		if r.Interval > 0 {
			s.Interval = r.Interval.String()
		}
		sources = append(sources, s)
	}
	c.JSON(http.StatusOK, gin.H{"sources": sources})
}

// RunAll runs every adapter and returns the summary. A failed aggregate is a 502.
func (h *AdminHandler) RunAll(c *gin.Context) {
	ctx := c.Request.Context()
	logger.CtxInfo(ctx, "Manual run of all sources triggered")

	summary := h.orchestrator.RunAll(ctx)
	status := http.StatusOK
	if !summary.Success {
		status = http.StatusBadGateway
	}
	c.JSON(status, summary)
}

// RunSource runs the adapter named by the :source path parameter.
func (h *AdminHandler) RunSource(c *gin.Context) {
	ctx := c.Request.Context()
	name := c.Param("source")

	known := false
	for _, r := range h.orchestrator.Registrations() {
		if r.Name == name {
			known = true
			break
		}
	}

	res := h.orchestrator.RunAdapter(ctx, name)
	switch {
	case !known:
		c.JSON(http.StatusNotFound, res)
	case !res.Success:
		c.JSON(http.StatusBadGateway, res)
	default:
		c.JSON(http.StatusOK, res)
	}
}

// LastRuns returns the most recent result per adapter.
func (h *AdminHandler) LastRuns(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"results": h.orchestrator.LastResults()})
}
