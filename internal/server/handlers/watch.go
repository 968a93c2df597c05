package handlers

import (
	"context"
	"encoding/json"
	stderrors "errors"
	"fmt"
	"net/http"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/npmwatch/npmwatch/internal/core"
	"github.com/npmwatch/npmwatch/internal/core/watch"
	apperrors "github.com/npmwatch/npmwatch/internal/errors"
	"github.com/npmwatch/npmwatch/internal/metrics"
	"github.com/npmwatch/npmwatch/internal/observability"
)

const (
	// ExecutionIDHeader identifies one watch run in responses and logs.
	ExecutionIDHeader = "X-Execution-ID"

	defaultMaxItems     = 100
	defaultMaxBodyBytes = 1 << 20
)

// WatchRequest is the body of POST /v1/watch. Each item carries the node
// parameters for that item. ContinueOnFail falls back to the server default
// when omitted.
type WatchRequest struct {
	Items          []watch.Item `json:"items"`
	ContinueOnFail *bool        `json:"continueOnFail,omitempty"`
}

// WatchResponse lists emitted records in processing order.
type WatchResponse struct {
	Data []core.Record `json:"data"`
}

// WatchHandler executes a watch.Node against the items of a request.
type WatchHandler struct {
	Node *watch.Node

	ContinueOnFail bool
	MaxItems       int
	MaxBodyBytes   int64
}

func (h *WatchHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	executionID := uuid.New().String()
	w.Header().Set(ExecutionIDHeader, executionID)

	if h.Node == nil {
		respondWithError(w, r, apperrors.Wrap(r.Context(), apperrors.CodeServiceUnavailable,
			nil, "watch node is not configured"))
		return
	}

	req, err := h.decode(w, r)
	if err != nil {
		respondWithError(w, r, apperrors.WrapInvalidInput(r.Context(), err, err.Error()))
		return
	}

	continueOnFail := h.ContinueOnFail
	if req.ContinueOnFail != nil {
		continueOnFail = *req.ContinueOnFail
	}

	host := watch.NewItemsHost(req.Items, continueOnFail)
	started := time.Now()
	runErr := h.Node.Execute(r.Context(), host)
	metrics.RecordRun("http", runErr == nil)
	logRun(executionID, len(req.Items), len(host.Records), time.Since(started), runErr)

	if runErr != nil {
		if stderrors.Is(runErr, context.Canceled) && r.Context().Err() != nil {
			// The caller went away; nobody is left to read a response.
			return
		}
		respondWithError(w, r, apperrors.FromWatchError(r.Context(), runErr))
		return
	}

	records := host.Records
	if records == nil {
		records = []core.Record{}
	}
	writeJSON(w, WatchResponse{Data: records})
}

func (h *WatchHandler) decode(w http.ResponseWriter, r *http.Request) (*WatchRequest, error) {
	limit := h.MaxBodyBytes
	if limit <= 0 {
		limit = defaultMaxBodyBytes
	}
	maxItems := h.MaxItems
	if maxItems <= 0 {
		maxItems = defaultMaxItems
	}

	var req WatchRequest
	decoder := json.NewDecoder(http.MaxBytesReader(w, r.Body, limit))
	if err := decoder.Decode(&req); err != nil {
		return nil, fmt.Errorf("invalid request body: %w", err)
	}
	if len(req.Items) > maxItems {
		return nil, fmt.Errorf("too many items: %d (max %d)", len(req.Items), maxItems)
	}
	return &req, nil
}

func logRun(executionID string, items, records int, elapsed time.Duration, err error) {
	logger := observability.ServerLogger
	if logger == nil {
		return
	}

	fields := []zap.Field{
		zap.String("execution_id", executionID),
		zap.Int("items", items),
		zap.Int("records", records),
		zap.Duration("duration", elapsed),
	}
	if err != nil {
		logger.Warn("Watch run aborted", append(fields, zap.Error(err))...)
		return
	}
	logger.Info("Watch run completed", fields...)
}
