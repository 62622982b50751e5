// Package ingest drives the fetch, normalize, write, checkpoint cycle for
// every registered source. One run touches one source; failures stay inside
// the run that caused them.
package ingest

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/price-etl/internal/errors"
	"github.com/price-etl/internal/logging"
	"github.com/price-etl/internal/models"
	"github.com/price-etl/internal/normalize"
	"github.com/price-etl/internal/source"
	"github.com/price-etl/internal/types"
)

// BatchWriter persists one batch atomically together with its checkpoint
type BatchWriter interface {
	WriteBatch(ctx context.Context, raws []*models.RawRecord, prices []*models.PriceRecord, cp *models.Checkpoint) (*models.UpsertResult, error)
}

// CheckpointReader loads the resume position for a source
type CheckpointReader interface {
	Get(ctx context.Context, src types.SourceID) (*models.Checkpoint, error)
}

// RunLedger records run lifecycle events
type RunLedger interface {
	Create(ctx context.Context, run *models.RunRecord) error
	Finish(ctx context.Context, run *models.RunRecord) error
}

// AnalyticsMirror receives committed prices for aggregate queries.
// Mirror writes are best effort and never affect run status.
type AnalyticsMirror interface {
	InsertPrices(ctx context.Context, prices []*models.PriceRecord) error
}

// CacheInvalidator drops cached reads that a run has made stale
type CacheInvalidator interface {
	InvalidateSource(ctx context.Context, src types.SourceID) error
}

// maxBatchesPerRun bounds how many pages a single run will consume, so a
// deep backlog is drained across runs instead of one unbounded run.
const maxBatchesPerRun = 50

// Orchestrator coordinates ingestion runs across registered sources
type Orchestrator struct {
	sources     map[types.SourceID]source.Source
	normalizer  *normalize.Registry
	checkpoints CheckpointReader
	store       BatchWriter
	runs        RunLedger
	analytics   AnalyticsMirror
	cache       CacheInvalidator
	logger      *logging.Logger

	mu       sync.Mutex
	inFlight map[types.SourceID]bool
}

// Config holds the orchestrator dependencies
type Config struct {
	Sources     []source.Source
	Normalizer  *normalize.Registry
	Checkpoints CheckpointReader
	Store       BatchWriter
	Runs        RunLedger
	Analytics   AnalyticsMirror
	Cache       CacheInvalidator
	Logger      *logging.Logger
}

// NewOrchestrator creates an orchestrator over the given sources
func NewOrchestrator(cfg *Config) *Orchestrator {
	sources := make(map[types.SourceID]source.Source, len(cfg.Sources))
	for _, src := range cfg.Sources {
		sources[src.ID()] = src
	}

	logger := cfg.Logger
	if logger == nil {
		logger = logging.GetGlobalLogger()
	}

	return &Orchestrator{
		sources:     sources,
		normalizer:  cfg.Normalizer,
		checkpoints: cfg.Checkpoints,
		store:       cfg.Store,
		runs:        cfg.Runs,
		analytics:   cfg.Analytics,
		cache:       cfg.Cache,
		logger:      logger.WithField("component", "orchestrator"),
	}
}

// Sources returns the registered source IDs in stable order
func (o *Orchestrator) Sources() []types.SourceID {
	ids := make([]types.SourceID, 0, len(o.sources))
	for id := range o.sources {
		ids = append(ids, id)
	}
	sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })
	return ids
}

// HasSource reports whether a source is registered
func (o *Orchestrator) HasSource(id types.SourceID) bool {
	_, ok := o.sources[id]
	return ok
}

// InProgress reports whether a run is currently active for a source
func (o *Orchestrator) InProgress(id types.SourceID) bool {
	o.mu.Lock()
	defer o.mu.Unlock()
	return o.inFlight[id]
}

// acquire marks a source as in flight; only one run per source at a time
func (o *Orchestrator) acquire(id types.SourceID) error {
	o.mu.Lock()
	defer o.mu.Unlock()

	if o.inFlight == nil {
		o.inFlight = make(map[types.SourceID]bool)
	}
	if o.inFlight[id] {
		return errors.NewRunInProgressError(id)
	}
	o.inFlight[id] = true
	return nil
}

func (o *Orchestrator) release(id types.SourceID) {
	o.mu.Lock()
	defer o.mu.Unlock()
	delete(o.inFlight, id)
}

// RunSource executes one ingestion run for a single source. A concurrent
// trigger for the same source is rejected with a conflict error; different
// sources may run concurrently. The returned run record is always
// finalized, even when the run failed.
func (o *Orchestrator) RunSource(ctx context.Context, id types.SourceID) (*models.RunRecord, error) {
	src, ok := o.sources[id]
	if !ok {
		return nil, errors.NewUnknownSourceError(string(id))
	}

	if err := o.acquire(id); err != nil {
		return nil, err
	}
	defer o.release(id)

	run := &models.RunRecord{
		RunID:     uuid.New().String(),
		Source:    id,
		StartTime: time.Now().UTC(),
		Status:    types.RunStatusRunning,
	}

	logger := o.logger.WithFields(map[string]interface{}{
		"source": string(id),
		"run_id": run.RunID,
	})

	if err := o.runs.Create(ctx, run); err != nil {
		return nil, err
	}

	logger.Info("ingestion run started")

	runErr := o.execute(ctx, src, run, logger)

	o.finalize(ctx, run, runErr, logger)

	if runErr != nil {
		return run, runErr
	}
	return run, nil
}

// execute drains batches from the source until it reports no further
// cursor or the per-run batch cap is hit. Panics from source adapters or
// normalizers are contained here so one broken source cannot take down
// the scheduler.
func (o *Orchestrator) execute(ctx context.Context, src source.Source, run *models.RunRecord, logger *logging.Logger) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = errors.NewUnexpectedError(fmt.Sprintf("panic during ingestion: %v", r), nil)
			logger.WithError(err).Error("ingestion run panicked")
		}
	}()

	cp, err := o.checkpoints.Get(ctx, src.ID())
	if err != nil {
		return err
	}

	cursor := ""
	if cp != nil {
		cursor = cp.Cursor
	}

	for batchNum := 0; batchNum < maxBatchesPerRun; batchNum++ {
		if ctx.Err() != nil {
			return errors.NewTransientFetchError(src.ID(), ctx.Err())
		}

		batch, err := src.Fetch(ctx, cursor)
		if err != nil {
			return err
		}

		if len(batch.Records) == 0 {
			logger.WithField("batches", batchNum).Debug("source drained, no records this cycle")
			return nil
		}

		run.RecordsFetched += len(batch.Records)

		raws := o.toRawRecords(src.ID(), batch.Records)
		result := o.normalizer.NormalizeBatch(raws)

		run.RecordsNormalized += len(result.Valid)
		run.RecordsRejected += len(result.Rejected)

		for _, rej := range result.Rejected {
			logger.WithError(rej.Err).WithField("coin_id", rej.Raw.CoinID).Warn("record rejected")
		}

		var nextCP *models.Checkpoint
		if batch.NextCursor != "" {
			nextCP = &models.Checkpoint{
				Source:        src.ID(),
				Cursor:        batch.NextCursor,
				LastSuccessAt: time.Now().UTC(),
			}
		}

		upserted, err := o.store.WriteBatch(ctx, raws, result.Valid, nextCP)
		if err != nil {
			return err
		}

		logger.WithFields(map[string]interface{}{
			"fetched":  len(batch.Records),
			"valid":    len(result.Valid),
			"rejected": len(result.Rejected),
			"inserted": upserted.Inserted,
			"updated":  upserted.Updated,
			"skipped":  upserted.Skipped,
		}).Info("batch written")

		o.afterCommit(ctx, src.ID(), result.Valid, logger)

		if batch.NextCursor == "" {
			return nil
		}
		cursor = batch.NextCursor
	}

	logger.WithField("batches", maxBatchesPerRun).Info("per-run batch cap reached, remainder left for next run")
	return nil
}

// afterCommit runs the best-effort post-commit hooks. Errors here are
// logged and swallowed, the batch is already durable in Postgres.
func (o *Orchestrator) afterCommit(ctx context.Context, id types.SourceID, prices []*models.PriceRecord, logger *logging.Logger) {
	if o.analytics != nil && len(prices) > 0 {
		if err := o.analytics.InsertPrices(ctx, prices); err != nil {
			logger.WithError(err).Warn("analytics mirror write failed")
		}
	}

	if o.cache != nil {
		if err := o.cache.InvalidateSource(ctx, id); err != nil {
			logger.WithError(err).Warn("cache invalidation failed")
		}
	}
}

// finalize closes the run ledger entry exactly once
func (o *Orchestrator) finalize(ctx context.Context, run *models.RunRecord, runErr error, logger *logging.Logger) {
	now := time.Now().UTC()
	run.EndTime = &now

	switch {
	case runErr != nil:
		run.Status = types.RunStatusFailed
		detail := runErr.Error()
		run.ErrorDetail = &detail
	case run.RecordsRejected > 0:
		run.Status = types.RunStatusPartial
	default:
		run.Status = types.RunStatusSuccess
	}

	if err := o.runs.Finish(ctx, run); err != nil {
		logger.WithError(err).Error("failed to finalize run record")
	}

	logger.WithFields(map[string]interface{}{
		"status":     string(run.Status),
		"fetched":    run.RecordsFetched,
		"normalized": run.RecordsNormalized,
		"rejected":   run.RecordsRejected,
		"duration":   run.Duration().String(),
	}).Info("ingestion run finished")
}

func (o *Orchestrator) toRawRecords(id types.SourceID, records []source.Raw) []*models.RawRecord {
	now := time.Now().UTC()
	raws := make([]*models.RawRecord, 0, len(records))
	for _, rec := range records {
		raws = append(raws, &models.RawRecord{
			Source:     id,
			CoinID:     rec.CoinID,
			Payload:    rec.Payload,
			IngestedAt: now,
		})
	}
	return raws
}

// RunAll executes one run per registered source, sequentially and in
// stable order. A failed source never prevents the remaining sources from
// running; the per-source results are returned together.
func (o *Orchestrator) RunAll(ctx context.Context) []*models.RunRecord {
	var results []*models.RunRecord

	for _, id := range o.Sources() {
		run, err := o.RunSource(ctx, id)
		if err != nil && run == nil {
			// Trigger rejected before a ledger row existed
			o.logger.WithError(err).WithField("source", string(id)).Warn("source run skipped")
			continue
		}
		results = append(results, run)
	}

	return results
}
