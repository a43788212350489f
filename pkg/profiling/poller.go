package profiling

import (
	"context"
	"time"

	"go.uber.org/zap"

	"github.com/ekaya-inc/lakeprofiler/pkg/lakehouse"
)

// statementPoller waits for an asynchronous statement to finish, sleeping
// with exponential backoff between status checks.
type statementPoller struct {
	executor lakehouse.StatementExecutor
	logger   *zap.Logger

	// sleep is swapped out in tests for a recording stub.
	sleep func(ctx context.Context, d time.Duration) error
}

func newStatementPoller(executor lakehouse.StatementExecutor, logger *zap.Logger) *statementPoller {
	return &statementPoller{
		executor: executor,
		logger:   logger,
		sleep:    sleepContext,
	}
}

// WaitForCompletion polls the statement until it reaches SUCCEEDED or the
// wait budget runs out, returning true only for SUCCEEDED. Backoff starts at
// one second and doubles each iteration, with each sleep capped by the
// remaining budget. A polled status of FAILED, CANCELED, or CLOSED is raised
// as a structured error tagged "get-statement" regardless of remaining
// budget.
//
// Elapsed time accumulates in scheduled backoff units, not wall-clock time,
// so the final iteration can overshoot maxWaitSecs by less than one backoff
// step.
func (p *statementPoller) WaitForCompletion(ctx context.Context, statementID string, status lakehouse.StatementStatus, maxWaitSecs int) (bool, error) {
	backoffSecs := 1
	totalWaitSecs := 0
	for totalWaitSecs < maxWaitSecs && status.State != lakehouse.StateSucceeded {
		delay := time.Duration(min(backoffSecs, maxWaitSecs-totalWaitSecs)) * time.Second
		if err := p.sleep(ctx, delay); err != nil {
			return false, err
		}
		totalWaitSecs += backoffSecs
		backoffSecs *= 2

		refreshed, err := p.executor.GetStatement(ctx, statementID)
		if err != nil {
			return false, err
		}
		p.logger.Debug("polled statement status",
			zap.String("statement_id", statementID),
			zap.String("state", string(refreshed.State)),
			zap.Int("nominal_wait_secs", totalWaitSecs))
		if err := raiseIfTerminalFailure("get-statement", refreshed); err != nil {
			return false, err
		}
		status = refreshed
	}
	return status.State == lakehouse.StateSucceeded, nil
}

// sleepContext blocks for d or until ctx is done, whichever comes first.
func sleepContext(ctx context.Context, d time.Duration) error {
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}
