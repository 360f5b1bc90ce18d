package repository

import (
	"context"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/souravOD/nutri-b2b-backend-sub001/internal/domain"
	"github.com/souravOD/nutri-b2b-backend-sub001/internal/observability"
)

// BronzeRepository lands raw records into a content-addressed table.
// Inserts carry ON CONFLICT (data_hash) DO NOTHING semantics: a hash that
// already exists silently does not re-land.
type BronzeRepository interface {
	// InsertBatch inserts records in one statement and returns how many
	// actually landed (conflicting hashes are skipped, not errors).
	InsertBatch(ctx context.Context, table string, records []domain.BronzeRecord) (int64, error)
	// InsertOne is the per-record degrade path after a failed batch.
	InsertOne(ctx context.Context, table string, record *domain.BronzeRecord) (bool, error)
	CountByRun(ctx context.Context, table, runID string) (int64, error)
}

type GormBronzeRepository struct{ db *gorm.DB }

func NewBronzeRepository(db *gorm.DB) BronzeRepository {
	return &GormBronzeRepository{db: db}
}

var dedupOnHash = clause.OnConflict{
	Columns:   []clause.Column{{Name: "data_hash"}},
	DoNothing: true,
}

func (r *GormBronzeRepository) InsertBatch(ctx context.Context, table string, records []domain.BronzeRecord) (int64, error) {
	if len(records) == 0 {
		return 0, nil
	}
	res := r.db.WithContext(ctx).Table(table).Clauses(dedupOnHash).Create(&records)
	if res.Error != nil {
		observability.RecordRepositoryOperation(ctx, "bronze", "insert_batch", "error")
		return 0, res.Error
	}
	observability.RecordRepositoryOperation(ctx, "bronze", "insert_batch", "success")
	return res.RowsAffected, nil
}

func (r *GormBronzeRepository) InsertOne(ctx context.Context, table string, record *domain.BronzeRecord) (bool, error) {
	res := r.db.WithContext(ctx).Table(table).Clauses(dedupOnHash).Create(record)
	if res.Error != nil {
		observability.RecordRepositoryOperation(ctx, "bronze", "insert_one", "error")
		return false, res.Error
	}
	observability.RecordRepositoryOperation(ctx, "bronze", "insert_one", "success")
	return res.RowsAffected == 1, nil
}

func (r *GormBronzeRepository) CountByRun(ctx context.Context, table, runID string) (int64, error) {
	var count int64
	err := r.db.WithContext(ctx).Table(table).Where("run_id = ?", runID).Count(&count).Error
	if err != nil {
		observability.RecordRepositoryOperation(ctx, "bronze", "count_by_run", "error")
		return 0, err
	}
	observability.RecordRepositoryOperation(ctx, "bronze", "count_by_run", "success")
	return count, nil
}
