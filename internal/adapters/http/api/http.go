// Package api declares HTTP contracts and route registration helpers.
package api

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"

	"github.com/okian/area51/internal/adapters/mq/queue"
	"github.com/okian/area51/internal/domain/board"
	"github.com/okian/area51/internal/domain/ranking"
	"github.com/okian/area51/internal/domain/record"
	"github.com/okian/area51/internal/engine"
	"github.com/okian/area51/pkg/logger"
)

// Dependencies required by HTTP handlers. Using an interface bundle keeps
// the handler layer loosely coupled to implementations in other packages.
type Dependencies interface {
	// Board returns the ranked entries of a board.
	Board(ctx context.Context, tag board.Tag) ([]ranking.Entry, error)

	// Mutations. Each one returns the board after the change.
	Add(ctx context.Context, tag board.Tag, name string, score float64, idempotencyKey string) (engine.Result, error)
	Delete(ctx context.Context, tag board.Tag, c engine.Candidate) (engine.Result, error)
	Merge(ctx context.Context) (engine.Result, error)
	Reset(ctx context.Context, tag board.Tag) (engine.Result, error)

	// Edit session.
	BeginEdit(ctx context.Context, tag board.Tag) ([]record.Record, error)
	CommitEdit(ctx context.Context, tag board.Tag, rows []record.Record) (engine.Result, error)
	CancelEdit(ctx context.Context, tag board.Tag) error
}

// Server wires HTTP routes for the business API.
type Server struct {
	healthHandler *HealthHandler
	statsHandler  *StatsHandler
	boardsHandler *BoardsHandler
}

// NewServer creates a new API server with all handlers.
func NewServer(deps Dependencies, statsProvider StatsProvider) *Server {
	return &Server{
		healthHandler: NewHealthHandler(),
		statsHandler:  NewStatsHandler(statsProvider),
		boardsHandler: NewBoardsHandler(deps),
	}
}

// Register attaches all HTTP routes to mux.
func (s *Server) Register(_ context.Context, mux *http.ServeMux) {
	route := func(pattern, endpoint string, h http.HandlerFunc) {
		mux.HandleFunc(pattern, RequestIDMiddleware(MetricsMiddleware(h, endpoint)))
	}

	route("/healthz", "healthz", s.healthHandler.HandleHealth)
	route("/stats", "stats", s.statsHandler.HandleStats)

	route("POST /boards/merge", "merge", s.boardsHandler.HandleMerge)
	route("GET /boards/{board}", "board", s.boardsHandler.HandleGetBoard)
	route("POST /boards/{board}/records", "add", s.boardsHandler.HandleAdd)
	route("DELETE /boards/{board}/records", "delete", s.boardsHandler.HandleDelete)
	route("POST /boards/{board}/reset", "reset", s.boardsHandler.HandleReset)
	route("POST /boards/{board}/edit", "edit_begin", s.boardsHandler.HandleBeginEdit)
	route("PUT /boards/{board}/edit", "edit_commit", s.boardsHandler.HandleCommitEdit)
	route("DELETE /boards/{board}/edit", "edit_cancel", s.boardsHandler.HandleCancelEdit)
}

type errorResponse struct {
	Code    string `json:"code"`
	Message string `json:"message"`
	// Result is set when a mutation was applied in memory but the save failed.
	Result *engine.Result `json:"result,omitempty"`
}

// writeJSON encodes v before writing the header, so an unencodable value
// becomes a 500 instead of an empty success.
func writeJSON(w http.ResponseWriter, status int, v any) {
	body, err := json.Marshal(v)
	if err != nil {
		logger.Default().Named("api").Error(context.Background(), "encoding response failed",
			logger.Int("status", status),
			logger.Error(err),
		)
		status = http.StatusInternalServerError
		body, _ = json.Marshal(errorResponse{Code: "internal_error", Message: "response encoding failed"})
	}
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(status)
	_, _ = w.Write(append(body, '\n'))
}

func writeError(w http.ResponseWriter, status int, code string, err error) {
	msg := http.StatusText(status)
	if err != nil {
		msg = err.Error()
	}
	writeJSON(w, status, errorResponse{Code: code, Message: msg})
}

// writeFailure maps err onto a status and error code. A validation failure
// reports the user-facing message alone.
func writeFailure(w http.ResponseWriter, err error) {
	status, code := classify(err)
	var ve *record.ValidationError
	if errors.As(err, &ve) {
		writeJSON(w, status, errorResponse{Code: code, Message: ve.Message})
		return
	}
	writeError(w, status, code, err)
}

func classify(err error) (int, string) {
	switch {
	case errors.Is(err, record.ErrValidation):
		return http.StatusBadRequest, "validation"
	case errors.Is(err, ErrBadRequest):
		return http.StatusBadRequest, "bad_request"
	case errors.Is(err, board.ErrUnknownBoard):
		return http.StatusNotFound, "unknown_board"
	case errors.Is(err, engine.ErrNotEditing), errors.Is(err, engine.ErrAlreadyEditing):
		return http.StatusConflict, "edit_state"
	case errors.Is(err, queue.ErrQueueFull), errors.Is(err, ErrBackpressure):
		return http.StatusTooManyRequests, "backpressure"
	case errors.Is(err, queue.ErrStopped), errors.Is(err, ErrUnavailable):
		return http.StatusServiceUnavailable, "unavailable"
	case errors.Is(err, engine.ErrPersistFailed):
		return http.StatusBadGateway, "persist_failed"
	case errors.Is(err, context.DeadlineExceeded), errors.Is(err, context.Canceled):
		return http.StatusGatewayTimeout, "timeout"
	default:
		return http.StatusInternalServerError, "internal_error"
	}
}

// writeResult answers a mutation. A persist failure still carries the
// board, since the change was kept in memory.
func writeResult(w http.ResponseWriter, okStatus int, res engine.Result, err error) {
	if err == nil {
		writeJSON(w, okStatus, res)
		return
	}
	if errors.Is(err, engine.ErrPersistFailed) {
		writeJSON(w, http.StatusBadGateway, errorResponse{
			Code:    "persist_failed",
			Message: err.Error(),
			Result:  &res,
		})
		return
	}
	writeFailure(w, err)
}
