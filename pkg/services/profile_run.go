// Package services orchestrates profiling runs: fan-out over the configured
// tables, persistence of successful profiles, and the end-of-run summary.
package services

import (
	"context"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/ekaya-inc/lakeprofiler/pkg/models"
	"github.com/ekaya-inc/lakeprofiler/pkg/profiling"
	"github.com/ekaya-inc/lakeprofiler/pkg/report"
	"github.com/ekaya-inc/lakeprofiler/pkg/repositories"
)

// RunConfig carries the per-run profiling parameters.
type RunConfig struct {
	// Tables lists fully-qualified "catalog.schema.table" names to profile.
	Tables []string
	// MaxWaitSecs bounds how long each statement is polled for completion.
	MaxWaitSecs int
	// CallAnalyze controls whether statistics are recomputed before reading.
	CallAnalyze bool
	// IncludeColumns requests per-column statistics alongside table-level ones.
	IncludeColumns bool
	// MaxConcurrent bounds how many tables are profiled at once.
	MaxConcurrent int
	// StartWarehouse requests a warehouse start before profiling begins.
	StartWarehouse bool
}

// RunSummary aggregates the outcome of one profiling run.
type RunSummary struct {
	TablesRequested int
	TablesProfiled  int
	TablesPersisted int
	PersistFailures int
	Report          report.Snapshot
}

// ProfileRunService executes one profiling run over the configured tables.
type ProfileRunService interface {
	// Run profiles every configured table and returns the run summary.
	// When the context is canceled mid-run the summary covers whatever
	// completed and the context error is returned alongside it.
	Run(ctx context.Context) (*RunSummary, error)
}

type profileRunService struct {
	cfg      RunConfig
	profiler profiling.Profiler
	store    repositories.ProfileRepository // nil disables persistence
	report   *report.ProfilingReport
	pool     *WorkerPool
	logger   *zap.Logger
}

var _ ProfileRunService = (*profileRunService)(nil)

// NewProfileRunService creates a run service. Pass a nil store to profile
// without persisting.
func NewProfileRunService(
	cfg RunConfig,
	profiler profiling.Profiler,
	store repositories.ProfileRepository,
	rep *report.ProfilingReport,
	logger *zap.Logger,
) ProfileRunService {
	logger = logger.Named("profile-run")
	return &profileRunService{
		cfg:      cfg,
		profiler: profiler,
		store:    store,
		report:   rep,
		pool:     NewWorkerPool(WorkerPoolConfig{MaxConcurrent: cfg.MaxConcurrent}, logger),
		logger:   logger,
	}
}

// tableOutcome is the per-table result collected from the worker pool.
type tableOutcome struct {
	profile    *models.TableProfile
	persisted  bool
	persistErr error
}

func (s *profileRunService) Run(ctx context.Context) (*RunSummary, error) {
	refs, err := s.parseTables()
	if err != nil {
		return nil, err
	}

	if err := s.profiler.CheckConnectivity(ctx); err != nil {
		s.logger.Error("aborting run, lakehouse is unreachable", zap.Error(err))
		return nil, err
	}

	if s.cfg.StartWarehouse {
		if s.profiler.StartWarehouse(ctx) {
			s.logger.Info("requested warehouse start")
		}
	}

	s.logger.Info("starting profiling run",
		zap.Int("tables", len(refs)),
		zap.Int("max_concurrent", s.cfg.MaxConcurrent),
		zap.Bool("call_analyze", s.cfg.CallAnalyze),
		zap.Bool("include_columns", s.cfg.IncludeColumns))

	items := make([]WorkItem[*tableOutcome], 0, len(refs))
	for _, ref := range refs {
		items = append(items, WorkItem[*tableOutcome]{
			ID: ref.Qualified(),
			Execute: func(ctx context.Context) (*tableOutcome, error) {
				return s.profileAndStore(ctx, ref), nil
			},
		})
	}

	results := Process(ctx, s.pool, items, func(completed, total int) {
		s.logger.Info("profiling progress",
			zap.Int("completed", completed),
			zap.Int("total", total))
	})

	summary := &RunSummary{TablesRequested: len(refs)}
	for _, result := range results {
		outcome := result.Result
		if result.Err != nil || outcome == nil {
			continue // canceled before the worker started
		}
		if outcome.profile != nil {
			summary.TablesProfiled++
		}
		if outcome.persisted {
			summary.TablesPersisted++
		}
		if outcome.persistErr != nil {
			summary.PersistFailures++
		}
	}
	summary.Report = s.report.Snapshot()

	s.logSummary(summary)

	if err := ctx.Err(); err != nil {
		return summary, err
	}
	return summary, nil
}

// parseTables resolves the configured names, failing the run before any
// remote call when one is malformed.
func (s *profileRunService) parseTables() ([]models.TableReference, error) {
	if len(s.cfg.Tables) == 0 {
		return nil, fmt.Errorf("no tables configured")
	}

	refs := make([]models.TableReference, 0, len(s.cfg.Tables))
	for _, name := range s.cfg.Tables {
		ref, err := models.ParseTableReference(name)
		if err != nil {
			return nil, fmt.Errorf("invalid table in configuration: %w", err)
		}
		refs = append(refs, ref)
	}
	return refs, nil
}

// profileAndStore runs the per-table pipeline on a pool worker. A nil
// profile (timeout or remote failure, already recorded in the report) is a
// valid outcome and never fails the run.
func (s *profileRunService) profileAndStore(ctx context.Context, ref models.TableReference) *tableOutcome {
	profile := s.profiler.GetTableStats(ctx, ref,
		s.cfg.MaxWaitSecs, s.cfg.CallAnalyze, s.cfg.IncludeColumns)
	if profile == nil {
		return &tableOutcome{}
	}

	s.report.RecordProfiled()
	outcome := &tableOutcome{profile: profile}

	if s.store == nil {
		return outcome
	}

	rec := recordFromProfile(ref, profile)
	if err := s.store.Upsert(ctx, rec); err != nil {
		s.logger.Error("failed to persist profile",
			zap.String("table", ref.Qualified()),
			zap.Error(err))
		outcome.persistErr = err
		return outcome
	}

	outcome.persisted = true
	return outcome
}

// recordFromProfile maps a profiling result onto its persisted shape.
func recordFromProfile(ref models.TableReference, profile *models.TableProfile) *models.TableProfileRecord {
	rec := &models.TableProfileRecord{
		Catalog:        ref.Catalog,
		SchemaName:     ref.Schema,
		TableName:      ref.Table,
		DisplayName:    ref.DisplayName(),
		NumRows:        profile.NumRows,
		TotalSizeBytes: profile.TotalSize,
		NumColumns:     profile.NumColumns,
		ProfiledAt:     time.Now(),
	}

	for i, col := range profile.ColumnProfiles {
		rec.Columns = append(rec.Columns, models.ColumnProfileRecord{
			ColumnName:      col.Name,
			OrdinalPosition: i,
			NullCount:       col.NullCount,
			DistinctCount:   col.DistinctCount,
			MinValue:        col.Min,
			MaxValue:        col.Max,
			AvgLen:          col.AvgLen,
			MaxLen:          col.MaxLen,
			StatsVersion:    col.Version,
		})
	}

	return rec
}

func (s *profileRunService) logSummary(summary *RunSummary) {
	snap := summary.Report

	s.logger.Info("profiling run complete",
		zap.Int("tables_requested", summary.TablesRequested),
		zap.Int("tables_profiled", summary.TablesProfiled),
		zap.Int("tables_persisted", summary.TablesPersisted),
		zap.Int("persist_failures", summary.PersistFailures),
		zap.Int("timeouts", len(snap.Timeouts)+snap.TimeoutsDropped),
		zap.Int("timeout_samples_dropped", snap.TimeoutsDropped),
		zap.Int("failures", snap.ErrorCount()),
		zap.Int("error_classes", len(snap.Errors)),
		zap.Int64("unsupported_column_retries", snap.UnsupportedColumnRetries),
		zap.Int64("numeric_parse_failures", snap.NumericParseFailures))

	for key, class := range snap.Errors {
		s.logger.Warn("profiling failures",
			zap.String("class", key),
			zap.Int("count", class.Total),
			zap.Int("samples_dropped", class.Dropped),
			zap.Strings("samples", class.Samples))
	}
	if len(snap.Timeouts) > 0 {
		s.logger.Warn("profiling timeouts",
			zap.Strings("tables", snap.Timeouts),
			zap.Int("dropped", snap.TimeoutsDropped))
	}
}
