package cmd

import (
	"context"
	"time"

	"github.com/fulmenhq/gofulmen/errors"
	"github.com/fulmenhq/gofulmen/foundry"
	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/npmwatch/npmwatch/internal/core/watch"
	apperrors "github.com/npmwatch/npmwatch/internal/errors"
	"github.com/npmwatch/npmwatch/internal/metrics"
	"github.com/npmwatch/npmwatch/internal/observability"
)

// runResult describes one finished execution.
type runResult struct {
	ExecutionID string
	Err         error
}

// execute runs node over host under a fresh execution id. The error of an
// aborted run is returned in the result so callers can still render the
// records emitted before it.
func execute(ctx context.Context, node *watch.Node, host *watch.ItemsHost, source string) runResult {
	executionID := uuid.NewString()
	observability.CLILogger.Debug("Watch run started",
		zap.String("execution_id", executionID),
		zap.String("source", source))

	startedAt := time.Now()
	err := node.Execute(ctx, host)
	metrics.RecordRun("cli", err == nil)

	logger := observability.CLILogger
	fields := []zap.Field{
		zap.String("execution_id", executionID),
		zap.String("source", source),
		zap.Int("items", host.ItemCount()),
		zap.Int("records", len(host.Records)),
	}
	if err != nil {
		logger.Debug("Watch run aborted", append(fields, zap.Error(err))...)
	} else {
		logger.Debug("Watch run completed", fields...)
	}
	logThroughput(len(host.Records), startedAt)

	return runResult{ExecutionID: executionID, Err: err}
}

func logThroughput(count int, startedAt time.Time) {
	if count <= 0 {
		return
	}
	elapsed := time.Since(startedAt)
	if elapsed <= 0 {
		return
	}
	rate := float64(count) / elapsed.Seconds()
	observability.CLILogger.Debug(
		"Check throughput",
		zap.Int("lookups", count),
		zap.Duration("elapsed", elapsed),
		zap.Float64("rate_per_sec", rate),
	)
}

// runFailure converts an aborted run into an envelope and the exit code it
// should end the process with.
func runFailure(ctx context.Context, result runResult) (*errors.ErrorEnvelope, foundry.ExitCode) {
	envelope := apperrors.FromWatchError(ctx, result.Err).WithCorrelationID(result.ExecutionID)
	switch envelope.Code {
	case apperrors.CodeExternalService, apperrors.CodeLatestTagNotFound,
		apperrors.CodeRateLimited, apperrors.CodeTimeout:
		return envelope, foundry.ExitExternalServiceUnavailable
	default:
		return envelope, foundry.ExitFailure
	}
}
