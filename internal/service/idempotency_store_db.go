package service

import (
	"context"
	"errors"
	"time"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/souravOD/nutri-b2b-backend-sub001/internal/domain"
	"github.com/souravOD/nutri-b2b-backend-sub001/internal/observability"
)

const (
	idempotencyStatusNew       = "new"
	idempotencyStatusCompleted = "completed"
)

// DBIdempotencyStore persists idempotency records in the relational store.
// The unique index over (scope, key, fingerprint) is what makes concurrent
// identical requests safe: the insert either wins or conflicts, and a
// conflict means someone else is already handling this operation.
type DBIdempotencyStore struct {
	db *gorm.DB
}

func NewDBIdempotencyStore(db *gorm.DB) *DBIdempotencyStore {
	return &DBIdempotencyStore{db: db}
}

func (s *DBIdempotencyStore) Begin(ctx context.Context, scope, key, fingerprint string, ttl time.Duration) (IdempotencyBeginResult, error) {
	now := time.Now().UTC()
	record := domain.IdempotencyRecord{
		Scope:           scope,
		IdempotencyKey:  key,
		FingerprintHash: fingerprint,
		Status:          idempotencyStatusNew,
		ExpiresAt:       now.Add(ttl),
	}

	res := s.db.WithContext(ctx).Clauses(clause.OnConflict{DoNothing: true}).Create(&record)
	if res.Error != nil {
		observability.RecordRepositoryOperation(ctx, "idempotency", "begin", "error")
		return IdempotencyBeginResult{}, res.Error
	}
	if res.RowsAffected == 1 {
		observability.RecordIdempotencyEvent(ctx, string(IdempotencyStateNew))
		return IdempotencyBeginResult{State: IdempotencyStateNew}, nil
	}

	// Insert conflicted: an earlier request with this exact (key, body)
	// already created the record. Either its response is stored, or it is
	// still running.
	var existing domain.IdempotencyRecord
	err := s.db.WithContext(ctx).
		Where("scope = ? AND idempotency_key = ? AND fingerprint_hash = ?", scope, key, fingerprint).
		First(&existing).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			// Record expired and was cleaned between insert and read; treat
			// as a concurrent duplicate rather than silently re-executing.
			observability.RecordIdempotencyEvent(ctx, string(IdempotencyStateInProgress))
			return IdempotencyBeginResult{State: IdempotencyStateInProgress}, nil
		}
		observability.RecordRepositoryOperation(ctx, "idempotency", "begin", "error")
		return IdempotencyBeginResult{}, err
	}

	if existing.Status == idempotencyStatusCompleted {
		observability.RecordIdempotencyEvent(ctx, string(IdempotencyStateReplay))
		return IdempotencyBeginResult{
			State: IdempotencyStateReplay,
			Cached: &CachedHTTPResponse{
				StatusCode:  existing.ResponseStatus,
				ContentType: existing.ContentType,
				Body:        existing.ResponseBody,
			},
		}, nil
	}
	observability.RecordIdempotencyEvent(ctx, string(IdempotencyStateInProgress))
	return IdempotencyBeginResult{State: IdempotencyStateInProgress}, nil
}

func (s *DBIdempotencyStore) Complete(ctx context.Context, scope, key, fingerprint string, response CachedHTTPResponse, ttl time.Duration) error {
	res := s.db.WithContext(ctx).Model(&domain.IdempotencyRecord{}).
		Where("scope = ? AND idempotency_key = ? AND fingerprint_hash = ?", scope, key, fingerprint).
		Updates(map[string]any{
			"status":          idempotencyStatusCompleted,
			"response_status": response.StatusCode,
			"response_body":   response.Body,
			"content_type":    response.ContentType,
			"expires_at":      time.Now().UTC().Add(ttl),
		})
	if res.Error != nil {
		observability.RecordRepositoryOperation(ctx, "idempotency", "complete", "error")
		return res.Error
	}
	observability.RecordRepositoryOperation(ctx, "idempotency", "complete", "success")
	return nil
}

// CleanupExpired deletes up to batchSize expired records and reports how
// many went away. Intended for a periodic housekeeping job.
func (s *DBIdempotencyStore) CleanupExpired(ctx context.Context, now time.Time, batchSize int) (int64, error) {
	var ids []uint
	err := s.db.WithContext(ctx).Model(&domain.IdempotencyRecord{}).
		Where("expires_at < ?", now).
		Order("id asc").
		Limit(batchSize).
		Pluck("id", &ids).Error
	if err != nil {
		return 0, err
	}
	if len(ids) == 0 {
		return 0, nil
	}
	res := s.db.WithContext(ctx).Where("id IN ?", ids).Delete(&domain.IdempotencyRecord{})
	if res.Error != nil {
		observability.RecordRepositoryOperation(ctx, "idempotency", "cleanup", "error")
		return 0, res.Error
	}
	observability.RecordRepositoryOperation(ctx, "idempotency", "cleanup", "success")
	return res.RowsAffected, nil
}
