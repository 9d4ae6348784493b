package handler

import (
	"context"
	"errors"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"
	"github.com/timmy/layoffwatch/internal/domain"
	"github.com/timmy/layoffwatch/internal/logger"
	"gorm.io/gorm"
)

const maxListLimit = 500

// RecordReader is the read side of the record store.
type RecordReader interface {
	GetByIdentityKey(ctx context.Context, key string) (*domain.NormalizedRecord, error)
	CountBySource(ctx context.Context) (map[string]int64, error)
	ListRecent(ctx context.Context, sourceID string, limit int) ([]domain.NormalizedRecord, error)
}

// RecordHandler serves stored records.
type RecordHandler struct {
	records RecordReader
}

// NewRecordHandler creates a new record handler.
func NewRecordHandler(records RecordReader) *RecordHandler {
	return &RecordHandler{records: records}
}

// ListRecords returns the newest records, optionally filtered by ?source=.
// ?limit= defaults to 50 and is capped at 500.
func (h *RecordHandler) ListRecords(c *gin.Context) {
	limit := 50
	if raw := c.Query("limit"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n <= 0 {
			c.JSON(http.StatusBadRequest, gin.H{"error": "limit must be a positive integer"})
			return
		}
		limit = min(n, maxListLimit)
	}

	ctx := c.Request.Context()
	recs, err := h.records.ListRecent(ctx, c.Query("source"), limit)
	if err != nil {
		logger.FromContext(ctx).WithError(err).Error("Failed to list records")
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to list records"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"records": recs, "count": len(recs)})
}

// GetRecord returns the record stored under the :key identity key.
func (h *RecordHandler) GetRecord(c *gin.Context) {
	ctx := c.Request.Context()
	rec, err := h.records.GetByIdentityKey(ctx, c.Param("key"))
	switch {
	case errors.Is(err, gorm.ErrRecordNotFound):
		c.JSON(http.StatusNotFound, gin.H{"error": "record not found"})
	case err != nil:
		logger.FromContext(ctx).WithError(err).Error("Failed to load record")
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to load record"})
	default:
		c.JSON(http.StatusOK, rec)
	}
}

// CountRecords returns the number of stored records per source.
func (h *RecordHandler) CountRecords(c *gin.Context) {
	ctx := c.Request.Context()
	counts, err := h.records.CountBySource(ctx)
	if err != nil {
		logger.FromContext(ctx).WithError(err).Error("Failed to count records")
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to count records"})
		return
	}
	var total int64
	for _, n := range counts {
		total += n
	}
	c.JSON(http.StatusOK, gin.H{"counts": counts, "total": total})
}
