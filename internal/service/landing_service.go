package service

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"gorm.io/datatypes"

	"github.com/souravOD/nutri-b2b-backend-sub001/internal/domain"
	"github.com/souravOD/nutri-b2b-backend-sub001/internal/observability"
	"github.com/souravOD/nutri-b2b-backend-sub001/internal/repository"
)

// RawRecord is one inbound record as submitted by a connector.
type RawRecord struct {
	SourceRecordID string          `json:"source_record_id"`
	Payload        json.RawMessage `json:"payload"`
}

// LandError reports a single record that could not be landed. Index is the
// record's position in the submitted batch, starting at zero.
type LandError struct {
	Index   int    `json:"index"`
	Message string `json:"message"`
}

// LandResult summarizes one landing run. Every submitted record is accounted
// for exactly once: Received = Landed + Deduplicated + len(Errors).
type LandResult struct {
	RunID        string      `json:"run_id"`
	Received     int         `json:"received"`
	Landed       int         `json:"landed"`
	Deduplicated int         `json:"deduplicated"`
	Errors       []LandError `json:"errors,omitempty"`
}

// OrchestratorNotifier hands a completed run off to the downstream pipeline.
// The locator names where the landed rows live; the orchestrator answers
// with its own run identifier.
type OrchestratorNotifier interface {
	TriggerRun(ctx context.Context, tenantID, source, locator string) (string, error)
}

// LandingService writes raw connector payloads into the bronze tables,
// deduplicating on content hash and offloading oversized payloads to
// object storage.
type LandingService struct {
	bronze      repository.BronzeRepository
	store       ObjectStorage
	orch        OrchestratorNotifier
	logger      *slog.Logger
	batchSize   int
	inlineLimit int
	triggerWait time.Duration
}

func NewLandingService(bronze repository.BronzeRepository, store ObjectStorage, orch OrchestratorNotifier, logger *slog.Logger, batchSize, inlineLimit int) *LandingService {
	if batchSize <= 0 {
		batchSize = 500
	}
	if inlineLimit <= 0 {
		inlineLimit = 1 << 20
	}
	return &LandingService{
		bronze:      bronze,
		store:       store,
		orch:        orch,
		logger:      logger,
		batchSize:   batchSize,
		inlineLimit: inlineLimit,
		triggerWait: 10 * time.Second,
	}
}

type preparedRecord struct {
	index  int
	record *domain.BronzeRecord
}

// Land runs one landing pass for a tenant and source. Records that fail
// canonicalization or insertion are reported individually by index; the rest
// of the batch still lands. Duplicate content is silently skipped and counted.
func (s *LandingService) Land(ctx context.Context, tenantID, source string, records []RawRecord) (*LandResult, error) {
	table, ok := domain.LandingTableForSource(source)
	if !ok {
		return nil, fmt.Errorf("unknown landing source %q", source)
	}

	runID := uuid.New().String()
	result := &LandResult{RunID: runID, Received: len(records)}

	prepared := make([]preparedRecord, 0, len(records))
	for i, raw := range records {
		rec, err := s.prepare(ctx, tenantID, source, runID, i, raw)
		if err != nil {
			result.Errors = append(result.Errors, LandError{Index: i, Message: err.Error()})
			continue
		}
		prepared = append(prepared, preparedRecord{index: i, record: rec})
	}

	for start := 0; start < len(prepared); start += s.batchSize {
		end := start + s.batchSize
		if end > len(prepared) {
			end = len(prepared)
		}
		chunk := prepared[start:end]

		rows := make([]domain.BronzeRecord, len(chunk))
		for i, p := range chunk {
			rows[i] = *p.record
		}

		landed, err := s.bronze.InsertBatch(ctx, table, rows)
		if err == nil {
			result.Landed += int(landed)
			continue
		}

		// The batch insert failed as a unit. Retry each record on its own so
		// one bad row does not sink its neighbours, keeping original indices.
		s.logger.Warn("bronze batch insert failed, retrying per record",
			slog.String("run_id", runID),
			slog.String("source", source),
			slog.Int("batch_size", len(chunk)),
			slog.String("error", err.Error()))
		for _, p := range chunk {
			inserted, rerr := s.bronze.InsertOne(ctx, table, p.record)
			if rerr != nil {
				result.Errors = append(result.Errors, LandError{Index: p.index, Message: rerr.Error()})
				continue
			}
			if inserted {
				result.Landed++
			}
		}
	}

	result.Deduplicated = result.Received - result.Landed - len(result.Errors)

	observability.RecordLandingOutcome(ctx, source, "landed", int64(result.Landed))
	observability.RecordLandingOutcome(ctx, source, "deduplicated", int64(result.Deduplicated))
	observability.RecordLandingOutcome(ctx, source, "failed", int64(len(result.Errors)))

	if len(result.Errors) > 0 {
		s.publishErrorReport(ctx, tenantID, runID, result)
	}

	s.logger.Info("landing run complete",
		slog.String("run_id", runID),
		slog.String("tenant_id", tenantID),
		slog.String("source", source),
		slog.Int("received", result.Received),
		slog.Int("landed", result.Landed),
		slog.Int("deduplicated", result.Deduplicated),
		slog.Int("failed", len(result.Errors)))

	if result.Landed > 0 {
		s.triggerOrchestrator(ctx, tenantID, source, table, runID)
	}

	return result, nil
}

func (s *LandingService) prepare(ctx context.Context, tenantID, source, runID string, index int, raw RawRecord) (*domain.BronzeRecord, error) {
	if len(raw.Payload) == 0 {
		return nil, fmt.Errorf("empty payload")
	}

	canonical, err := CanonicalJSON(raw.Payload)
	if err != nil {
		return nil, fmt.Errorf("invalid payload: %w", err)
	}
	hash, err := ComputeDataHash(tenantID, raw.Payload)
	if err != nil {
		return nil, fmt.Errorf("invalid payload: %w", err)
	}

	rec := &domain.BronzeRecord{
		TenantID:       tenantID,
		SourceName:     source,
		SourceRecordID: raw.SourceRecordID,
		RunID:          runID,
		DataHash:       hash,
		PayloadBytes:   int64(len(canonical)),
	}

	if len(canonical) > s.inlineLimit {
		key := PayloadKey(tenantID, runID, index)
		if err := s.store.Upload(ctx, key, canonical, "application/json"); err != nil {
			return nil, fmt.Errorf("offload payload: %w", err)
		}
		rec.StorageKey = key
	} else {
		rec.RawPayload = datatypes.JSON(canonical)
	}

	return rec, nil
}

func (s *LandingService) publishErrorReport(ctx context.Context, tenantID, runID string, result *LandResult) {
	report, err := json.Marshal(result)
	if err != nil {
		s.logger.Error("marshal error report", slog.String("run_id", runID), slog.String("error", err.Error()))
		return
	}
	key := ErrorReportKey(tenantID, runID)
	if err := s.store.Upload(ctx, key, report, "application/json"); err != nil {
		s.logger.Error("publish error report", slog.String("run_id", runID), slog.String("error", err.Error()))
	}
}

// triggerOrchestrator hands the run off without blocking the caller's
// response. The notification is best effort; failures are logged with the
// run id so the run can be replayed by hand.
func (s *LandingService) triggerOrchestrator(ctx context.Context, tenantID, source, table, runID string) {
	if s.orch == nil {
		return
	}
	detached := context.WithoutCancel(ctx)
	go func() {
		tctx, cancel := context.WithTimeout(detached, s.triggerWait)
		defer cancel()
		orchRunID, err := s.orch.TriggerRun(tctx, tenantID, source, table)
		if err != nil {
			s.logger.Error("orchestrator trigger failed",
				slog.String("run_id", runID),
				slog.String("tenant_id", tenantID),
				slog.String("source", source),
				slog.String("error", err.Error()))
			return
		}
		s.logger.Info("orchestrator run triggered",
			slog.String("run_id", runID),
			slog.String("orchestrator_run_id", orchRunID),
			slog.String("source", source))
	}()
}
