package server

import (
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/harees/navguard/internal/history"
	"github.com/harees/navguard/internal/inspector"
	"github.com/harees/navguard/internal/logging"
)

type handlers struct {
	inspector *inspector.Inspector
	hist      *history.Log
	logger    *logging.Logger
}

func newHandlers(insp *inspector.Inspector, hist *history.Log, logger *logging.Logger) *handlers {
	return &handlers{inspector: insp, hist: hist, logger: logger}
}

// Health reports liveness.
func (h *handlers) Health(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"status": "ok"})
}

// Inspect runs a manual URL check. Invalid input is a 422 with the
// validation message; the classifier is never called for it.
func (h *handlers) Inspect(c *gin.Context) {
	var req inspector.Request
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid request body"})
		return
	}

	res := h.inspector.Check(c.Request.Context(), req)
	if res.Invalid {
		c.JSON(http.StatusUnprocessableEntity, res)
		return
	}
	c.JSON(http.StatusOK, res)
}

// History lists decision records, newest first. The optional limit query
// parameter truncates the response (the popup shows 5 at a time).
func (h *handlers) History(c *gin.Context) {
	limit := 0
	if raw := c.Query("limit"); raw != "" {
		parsed, err := strconv.Atoi(raw)
		if err != nil || parsed < 0 {
			c.JSON(http.StatusBadRequest, gin.H{"error": "limit must be a non-negative integer"})
			return
		}
		limit = parsed
	}

	records, err := h.hist.List(c.Request.Context(), limit)
	if err != nil {
		h.logger.Error("history read failed", zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "history unavailable"})
		return
	}
	if records == nil {
		records = []history.Record{}
	}
	c.JSON(http.StatusOK, gin.H{"history": records, "count": len(records)})
}

// LastVerdict returns the most recent verdict, or 404 when none exists yet.
func (h *handlers) LastVerdict(c *gin.Context) {
	v, ok, err := h.inspector.LastVerdict(c.Request.Context())
	if err != nil {
		h.logger.Error("last verdict read failed", zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "last verdict unavailable"})
		return
	}
	if !ok {
		c.JSON(http.StatusNotFound, gin.H{"error": "no verdict recorded yet"})
		return
	}
	c.JSON(http.StatusOK, v)
}
