package api

import (
	"bytes"
	"encoding/json"
	"errors"
	"io"
	"net/http"

	"github.com/okian/area51/internal/domain/board"
	"github.com/okian/area51/internal/domain/ranking"
	"github.com/okian/area51/internal/domain/record"
	"github.com/okian/area51/internal/engine"
)

const (
	maxBodyBytes         = 1 << 20
	idempotencyKeyHeader = "Idempotency-Key"
)

// BoardsHandler serves the board routes.
type BoardsHandler struct {
	deps Dependencies
}

// NewBoardsHandler creates a new boards handler.
func NewBoardsHandler(deps Dependencies) *BoardsHandler {
	return &BoardsHandler{deps: deps}
}

type boardResponse struct {
	Board   board.Tag       `json:"board"`
	Entries []ranking.Entry `json:"entries"`
}

type editResponse struct {
	Board   board.Tag       `json:"board"`
	Records []record.Record `json:"records"`
}

// addRequest is the add form. Score may be a JSON number or the text the
// user typed.
type addRequest struct {
	Name  string          `json:"name"`
	Score json.RawMessage `json:"score"`
}

// editRow is one row of the edited table as the client read it back.
// Every cell may arrive as text.
type editRow struct {
	ID    json.RawMessage `json:"id"`
	Name  string          `json:"name"`
	Score json.RawMessage `json:"score"`
}

type commitRequest struct {
	Rows []editRow `json:"rows"`
}

// HandleGetBoard handles GET /boards/{board}.
func (h *BoardsHandler) HandleGetBoard(w http.ResponseWriter, r *http.Request) {
	const op = "api.get_board"
	tag, ok := pathBoard(w, r, op)
	if !ok {
		return
	}
	entries, err := h.deps.Board(r.Context(), tag)
	if err != nil {
		writeFailure(w, Wrap(op, err))
		return
	}
	writeJSON(w, http.StatusOK, boardResponse{Board: tag, Entries: entries})
}

// HandleAdd handles POST /boards/{board}/records.
func (h *BoardsHandler) HandleAdd(w http.ResponseWriter, r *http.Request) {
	const op = "api.add"
	tag, ok := pathBoard(w, r, op)
	if !ok {
		return
	}
	var req addRequest
	if !decode(w, r, op, &req) {
		return
	}
	score, err := record.ParseTime(cellText(req.Score))
	if err != nil {
		writeFailure(w, err)
		return
	}
	key := r.Header.Get(idempotencyKeyHeader)
	res, err := h.deps.Add(r.Context(), tag, req.Name, score, key)
	writeResult(w, http.StatusCreated, res, err)
}

// HandleDelete handles DELETE /boards/{board}/records. The body names the
// target by id, name and score.
func (h *BoardsHandler) HandleDelete(w http.ResponseWriter, r *http.Request) {
	const op = "api.delete"
	tag, ok := pathBoard(w, r, op)
	if !ok {
		return
	}
	var c engine.Candidate
	if !decode(w, r, op, &c) {
		return
	}
	res, err := h.deps.Delete(r.Context(), tag, c)
	writeResult(w, http.StatusOK, res, err)
}

// HandleMerge handles POST /boards/merge.
func (h *BoardsHandler) HandleMerge(w http.ResponseWriter, r *http.Request) {
	res, err := h.deps.Merge(r.Context())
	writeResult(w, http.StatusOK, res, err)
}

// HandleReset handles POST /boards/{board}/reset.
func (h *BoardsHandler) HandleReset(w http.ResponseWriter, r *http.Request) {
	const op = "api.reset"
	tag, ok := pathBoard(w, r, op)
	if !ok {
		return
	}
	res, err := h.deps.Reset(r.Context(), tag)
	writeResult(w, http.StatusOK, res, err)
}

// HandleBeginEdit handles POST /boards/{board}/edit.
func (h *BoardsHandler) HandleBeginEdit(w http.ResponseWriter, r *http.Request) {
	const op = "api.edit_begin"
	tag, ok := pathBoard(w, r, op)
	if !ok {
		return
	}
	rows, err := h.deps.BeginEdit(r.Context(), tag)
	if err != nil {
		writeFailure(w, Wrap(op, err))
		return
	}
	writeJSON(w, http.StatusOK, editResponse{Board: tag, Records: rows})
}

// HandleCommitEdit handles PUT /boards/{board}/edit.
func (h *BoardsHandler) HandleCommitEdit(w http.ResponseWriter, r *http.Request) {
	const op = "api.edit_commit"
	tag, ok := pathBoard(w, r, op)
	if !ok {
		return
	}
	var req commitRequest
	if !decode(w, r, op, &req) {
		return
	}
	rows := make([]record.Record, 0, len(req.Rows))
	for _, row := range req.Rows {
		rows = append(rows, record.FromCells(cellText(row.ID), row.Name, cellText(row.Score)))
	}
	res, err := h.deps.CommitEdit(r.Context(), tag, rows)
	writeResult(w, http.StatusOK, res, err)
}

// HandleCancelEdit handles DELETE /boards/{board}/edit.
func (h *BoardsHandler) HandleCancelEdit(w http.ResponseWriter, r *http.Request) {
	const op = "api.edit_cancel"
	tag, ok := pathBoard(w, r, op)
	if !ok {
		return
	}
	if err := h.deps.CancelEdit(r.Context(), tag); err != nil {
		writeFailure(w, Wrap(op, err))
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func pathBoard(w http.ResponseWriter, r *http.Request, op string) (board.Tag, bool) {
	tag, err := board.ParseTag(r.PathValue("board"))
	if err != nil {
		writeFailure(w, Wrap(op, err))
		return "", false
	}
	return tag, true
}

func decode(w http.ResponseWriter, r *http.Request, op string, v any) bool {
	dec := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxBodyBytes))
	if err := dec.Decode(v); err != nil && !errors.Is(err, io.EOF) {
		writeFailure(w, WrapKind(op, ErrBadRequest, err))
		return false
	}
	return true
}

// cellText returns a JSON string's contents, a number's literal text, or
// "" for null and absent values.
func cellText(raw json.RawMessage) string {
	raw = bytes.TrimSpace(raw)
	if len(raw) == 0 || bytes.Equal(raw, []byte("null")) {
		return ""
	}
	if raw[0] == '"' {
		var s string
		if err := json.Unmarshal(raw, &s); err != nil {
			return ""
		}
		return s
	}
	return string(raw)
}
