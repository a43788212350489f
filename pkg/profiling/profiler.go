// Package profiling computes table- and column-level statistical profiles
// for tables in a remote lakehouse catalog. It triggers a server-side
// ANALYZE statement, polls the asynchronous statement to completion under a
// wait budget, then reads the computed statistics back out of the table's
// property bag. Remote failures are classified and recorded in a run report
// rather than surfaced to the caller.
package profiling

import (
	"context"
	"fmt"

	"go.uber.org/zap"

	"github.com/ekaya-inc/lakeprofiler/pkg/lakehouse"
	"github.com/ekaya-inc/lakeprofiler/pkg/models"
	"github.com/ekaya-inc/lakeprofiler/pkg/report"
	"github.com/ekaya-inc/lakeprofiler/pkg/sql"
)

// Profiler produces statistical profiles for individual tables. Profiling is
// sequential per call; callers wanting concurrency run independent calls on
// separate workers.
type Profiler interface {
	// GetTableStats profiles one table. With callAnalyze it first submits a
	// statistics-computation statement and waits up to maxWaitSecs for it to
	// finish; includeColumns widens the computation and the extraction to
	// per-column statistics. It returns nil when the wait budget ran out or
	// a remote failure was recorded: all remote errors are classified into
	// the run report instead of raised, and an unsupported-column-type
	// failure is retried exactly once with column statistics excluded.
	GetTableStats(ctx context.Context, ref models.TableReference, maxWaitSecs int, callAnalyze, includeColumns bool) *models.TableProfile

	// CheckConnectivity performs a lightweight existence check against the
	// configured warehouse and fails if it is unreachable.
	CheckConnectivity(ctx context.Context) error

	// StartWarehouse asks the remote system to start the configured
	// warehouse. It reports false when the warehouse could not be started,
	// for example because it does not exist.
	StartWarehouse(ctx context.Context) bool
}

type profiler struct {
	executor    lakehouse.StatementExecutor
	tables      lakehouse.TableReader
	warehouses  lakehouse.WarehouseReader
	poller      *statementPoller
	extractor   *profileExtractor
	report      *report.ProfilingReport
	warehouseID string
	logger      *zap.Logger
}

var _ Profiler = (*profiler)(nil)

// NewProfiler creates a Profiler that runs statements on the given warehouse
// and records outcomes into rep.
func NewProfiler(
	executor lakehouse.StatementExecutor,
	tables lakehouse.TableReader,
	warehouses lakehouse.WarehouseReader,
	rep *report.ProfilingReport,
	warehouseID string,
	logger *zap.Logger,
) Profiler {
	logger = logger.Named("profiler")
	return &profiler{
		executor:    executor,
		tables:      tables,
		warehouses:  warehouses,
		poller:      newStatementPoller(executor, logger),
		extractor:   newProfileExtractor(rep, logger),
		report:      rep,
		warehouseID: warehouseID,
		logger:      logger,
	}
}

func (p *profiler) GetTableStats(ctx context.Context, ref models.TableReference, maxWaitSecs int, callAnalyze, includeColumns bool) *models.TableProfile {
	// columnsIncluded transitions true->false at most once, bounding the
	// unsupported-column retry to a single narrowed attempt.
	columnsIncluded := includeColumns
	for {
		profile, err := p.profileOnce(ctx, ref, maxWaitSecs, callAnalyze, columnsIncluded)
		if err == nil {
			return profile
		}

		msg := remoteMessage(err)
		p.report.RecordError(GroupingKey(msg), fmt.Sprintf("%s: %s", ref, msg))

		fields := []zap.Field{zap.String("table", ref.String()), zap.Error(err)}
		if remote := lakehouse.AsError(err); remote != nil {
			fields = append(fields, zap.String("error_code", remote.Code))
		}
		p.logger.Warn("profiling failed", fields...)

		if callAnalyze && columnsIncluded && IsUnsupportedColumnType(err) {
			p.logger.Info("retrying without column statistics",
				zap.String("table", ref.String()))
			p.report.IncUnsupportedColumnRetry()
			columnsIncluded = false
			continue
		}
		return nil
	}
}

// profileOnce runs a single analyze/poll/extract pass. A nil profile with a
// nil error means the wait budget ran out before the statement completed;
// the timeout has already been recorded.
func (p *profiler) profileOnce(ctx context.Context, ref models.TableReference, maxWaitSecs int, callAnalyze, includeColumns bool) (*models.TableProfile, error) {
	if callAnalyze {
		handle, err := p.analyzeTable(ctx, ref, includeColumns)
		if err != nil {
			return nil, err
		}
		succeeded, err := p.poller.WaitForCompletion(ctx, handle.ID, handle.Status, maxWaitSecs)
		if err != nil {
			return nil, err
		}
		if !succeeded {
			p.logger.Warn("statement did not complete within wait budget",
				zap.String("table", ref.String()),
				zap.Int("max_wait_secs", maxWaitSecs))
			p.report.RecordTimeout(ref.String())
			return nil, nil
		}
	}

	info, err := p.tables.GetTable(ctx, ref.Qualified())
	if err != nil {
		return nil, err
	}
	return p.extractor.Build(info, includeColumns), nil
}

// analyzeTable submits the statistics-computation statement for ref. The
// submission is asynchronous; a status that is already terminal-but-failed
// is raised immediately with the "analyze-table" tag.
func (p *profiler) analyzeTable(ctx context.Context, ref models.TableReference, includeColumns bool) (*lakehouse.StatementHandle, error) {
	statement, err := sql.BuildAnalyzeTable(ref.Schema, ref.Table, includeColumns)
	if err != nil {
		return nil, err
	}

	p.logger.Debug("submitting analyze statement",
		zap.String("table", ref.String()),
		zap.Bool("include_columns", includeColumns))
	handle, err := p.executor.ExecuteStatement(ctx, statement, ref.Catalog, p.warehouseID)
	if err != nil {
		return nil, err
	}
	if err := raiseIfTerminalFailure("analyze-table", handle.Status); err != nil {
		return nil, err
	}
	return handle, nil
}

func (p *profiler) CheckConnectivity(ctx context.Context) error {
	if _, err := p.warehouses.GetWarehouse(ctx, p.warehouseID); err != nil {
		return fmt.Errorf("profiling connectivity check failed: %w", err)
	}
	return nil
}

func (p *profiler) StartWarehouse(ctx context.Context) bool {
	if err := p.warehouses.StartWarehouse(ctx, p.warehouseID); err != nil {
		p.logger.Warn("unable to start warehouse, it may not exist",
			zap.String("warehouse_id", p.warehouseID),
			zap.Error(err))
		return false
	}
	return true
}

// raiseIfTerminalFailure converts a terminal-but-not-succeeded statement
// status into a structured error tagged with the observing operation.
func raiseIfTerminalFailure(op string, status lakehouse.StatementStatus) error {
	if status.State.IsTerminal() && status.State != lakehouse.StateSucceeded {
		return lakehouse.NewStatementError(op, status)
	}
	return nil
}
