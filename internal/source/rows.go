package source

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/timmy/layoffwatch/internal/domain"
	"github.com/timmy/layoffwatch/internal/logger"
)

// RowFunc parses one upstream row. Returning a nil record with a nil error
// skips the row silently (blank spacer rows, repeated headers).
type RowFunc func() (*domain.NormalizedRecord, error)

// Collector accumulates the records of one Normalize call. It canonicalizes
// every record, drops repeats of an entity already seen in this fetch and
// logs every skipped row with its reason.
type Collector struct {
	ctx      context.Context
	sourceID string
	seen     map[string]int
	records  []domain.NormalizedRecord
	skipped  int
}

// NewCollector starts a collection for sourceID.
func NewCollector(ctx context.Context, sourceID string) *Collector {
	return &Collector{
		ctx:      ctx,
		sourceID: sourceID,
		seen:     make(map[string]int),
	}
}

// Collect runs fn for row and keeps its record. A panic inside fn is recovered
// and treated as a malformed row, so one bad row never aborts the batch.
func (c *Collector) Collect(row int, fn RowFunc) {
	rec, err := c.safeCall(row, fn)
	c.Add(row, rec, err)
}

func (c *Collector) safeCall(row int, fn RowFunc) (rec *domain.NormalizedRecord, err error) {
	defer func() {
		if r := recover(); r != nil {
			rec, err = nil, RowErrorf(row, "panic: %v", r)
		}
	}()
	return fn()
}

// Add consumes one row result.
func (c *Collector) Add(row int, rec *domain.NormalizedRecord, err error) {
	if err != nil {
		c.skip(row, "Skipped malformed row", reason(err))
		return
	}
	if rec == nil {
		return
	}

	if rec.SourceID == "" {
		rec.SourceID = c.sourceID
	}
	rec.Normalize()
	if rec.EntityName == "" {
		c.skip(row, "Skipped malformed row", "missing entity name")
		return
	}

	key := strings.ToLower(rec.EntityName)
	if first, dup := c.seen[key]; dup {
		c.skip(row, "Skipped duplicate row", fmt.Sprintf("entity %q already seen at row %d", rec.EntityName, first))
		return
	}
	c.seen[key] = row
	c.records = append(c.records, *rec)
}

func (c *Collector) skip(row int, msg, why string) {
	c.skipped++
	logger.With(logger.Fields{
		logger.FieldRow:    row,
		logger.FieldReason: why,
	}).Info(c.ctx, "%s", msg)
}

// Records returns the kept records in input order.
func (c *Collector) Records() []domain.NormalizedRecord {
	return c.records
}

// Skipped returns the number of rows dropped.
func (c *Collector) Skipped() int {
	return c.skipped
}

// Finish logs a per-normalize summary and returns the records.
func (c *Collector) Finish() []domain.NormalizedRecord {
	logger.With(logger.Fields{
		logger.FieldCount: len(c.records),
		"skipped":         c.skipped,
	}).Info(c.ctx, "Normalized rows")
	return c.records
}

func reason(err error) string {
	var re *RowError
	if errors.As(err, &re) {
		return re.Reason
	}
	return err.Error()
}
