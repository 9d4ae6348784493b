package repository

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/timmy/layoffwatch/internal/domain"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// RecordRepository is the idempotent store for normalized layoff records.
type RecordRepository struct {
	db  *gorm.DB
	now func() time.Time
}

// NewRecordRepository creates a new RecordRepository.
// Parameters:
//   - db: GORM database handle used for queries.
//
// Returns:
//   - *RecordRepository: repository instance bound to db.
func NewRecordRepository(db *gorm.DB) *RecordRepository {
	return &RecordRepository{db: db, now: time.Now}
}

// Initialize creates or migrates the layoffs table. Safe to call repeatedly.
func (r *RecordRepository) Initialize(ctx context.Context) error {
	if err := r.db.WithContext(ctx).AutoMigrate(&domain.NormalizedRecord{}); err != nil {
		return fmt.Errorf("failed to migrate database: %w", err)
	}
	return nil
}

// Upsert inserts rec unless a record with the same identity key exists.
// Parameters:
//   - ctx: context for cancellation and deadlines.
//   - rec: normalized record; its ID and ScrapedAt are filled on insert.
//
// Returns:
//   - bool: true when a new row was written.
//   - error: non-nil only for unexpected storage failures.
func (r *RecordRepository) Upsert(ctx context.Context, rec *domain.NormalizedRecord) (bool, error) {
	row := *rec
	row.ID = 0
	if row.IdentityKey == "" {
		row.IdentityKey = domain.ComputeIdentityKey(row.EntityName, row.EventDate, row.SourceID)
	}
	row.ScrapedAt = r.now().UTC()

	// The insert and the conflict check are one statement, so two concurrent
	// upserts of the same key cannot both insert.
	res := r.db.WithContext(ctx).Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "identity_key"}},
		DoNothing: true,
	}).Create(&row)
	if res.Error != nil {
		if errors.Is(res.Error, gorm.ErrDuplicatedKey) {
			return false, nil
		}
		return false, fmt.Errorf("failed to insert record %s: %w", row.IdentityKey, res.Error)
	}
	if res.RowsAffected == 0 {
		return false, nil
	}

	rec.ID = row.ID
	rec.IdentityKey = row.IdentityKey
	rec.ScrapedAt = row.ScrapedAt
	return true, nil
}

// GetByIdentityKey retrieves a record by its identity key.
func (r *RecordRepository) GetByIdentityKey(ctx context.Context, key string) (*domain.NormalizedRecord, error) {
	var rec domain.NormalizedRecord
	if err := r.db.WithContext(ctx).Where("identity_key = ?", key).First(&rec).Error; err != nil {
		return nil, err
	}
	return &rec, nil
}

// CountBySource counts stored records per source id.
func (r *RecordRepository) CountBySource(ctx context.Context) (map[string]int64, error) {
	var rows []struct {
		SourceID string
		Count    int64
	}
	err := r.db.WithContext(ctx).
		Model(&domain.NormalizedRecord{}).
		Select("source_id, COUNT(*) AS count").
		Group("source_id").
		Scan(&rows).Error
	if err != nil {
		return nil, err
	}

	counts := make(map[string]int64, len(rows))
	for _, row := range rows {
		counts[row.SourceID] = row.Count
	}
	return counts, nil
}

// ListRecent returns the newest records by event date.
func (r *RecordRepository) ListRecent(ctx context.Context, sourceID string, limit int) ([]domain.NormalizedRecord, error) {
	if limit <= 0 {
		limit = 50
	}
	q := r.db.WithContext(ctx).Order("event_date DESC, id DESC").Limit(limit)
	if sourceID != "" {
		q = q.Where("source_id = ?", sourceID)
	}

	var recs []domain.NormalizedRecord
	if err := q.Find(&recs).Error; err != nil {
		return nil, err
	}
	return recs, nil
}
