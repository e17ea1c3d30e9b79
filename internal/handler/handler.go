package handler

import (
	"context"
	"errors"
	"fmt"
	"math"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/goccy/go-json"
	"go.uber.org/zap"

	"bookmarksync/internal/domain"
	"bookmarksync/internal/driver"
	"bookmarksync/internal/service"
	"bookmarksync/internal/txn"
)

// maxBodyBytes caps a transaction request body
const maxBodyBytes = 1 << 20

// Handler serves the bookmarksync HTTP API
type Handler struct {
	svc *service.Service
	log *zap.Logger
}

// New creates a new handler
func New(svc *service.Service, logger *zap.Logger) *Handler {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Handler{svc: svc, log: logger.Named("http")}
}

// ErrorResponse is the body of every failed request
type ErrorResponse struct {
	Error   string `json:"error"`
	Details string `json:"details,omitempty"`
}

// Statement is one statement of a transaction request
type Statement struct {
	Statement string         `json:"statement"`
	Params    map[string]any `json:"params,omitempty"`
}

// TransactionRequest is the body of POST /api/databases/{db}/transactions
type TransactionRequest struct {
	Statements []Statement `json:"statements"`
}

// TransactionResponse carries one result list per statement and the
// bookmarks the commit produced
type TransactionResponse struct {
	TransactionID string            `json:"transaction_id"`
	Results       [][]driver.Record `json:"results"`
	Bookmarks     []string          `json:"bookmarks"`
}

// BookmarksResponse is the body of GET /api/databases/{db}/bookmarks
type BookmarksResponse struct {
	Database  string   `json:"database"`
	Bookmarks []string `json:"bookmarks"`
}

// ListDatabases returns every configured database
func (h *Handler) ListDatabases(w http.ResponseWriter, r *http.Request) {
	h.writeJSON(w, h.svc.Databases(), http.StatusOK)
}

// GetBookmarks returns the local bookmark set of one database
func (h *Handler) GetBookmarks(w http.ResponseWriter, r *http.Request) {
	database := chi.URLParam(r, "db")

	set, err := h.svc.Bookmarks(database)
	if err != nil {
		h.writeDomainError(w, "Failed to get bookmarks", err)
		return
	}

	h.writeJSON(w, BookmarksResponse{Database: database, Bookmarks: set.Values()}, http.StatusOK)
}

// RunTransaction executes the request's statements in one transaction
// seeded with the database's current bookmarks, then commits it
func (h *Handler) RunTransaction(w http.ResponseWriter, r *http.Request) {
	database := chi.URLParam(r, "db")

	var req TransactionRequest
	if err := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxBodyBytes)).Decode(&req); err != nil {
		h.writeError(w, "Invalid request body", err.Error(), http.StatusBadRequest)
		return
	}
	if len(req.Statements) == 0 {
		h.writeError(w, "Invalid request body", "at least one statement is required", http.StatusBadRequest)
		return
	}
	for i, st := range req.Statements {
		if st.Statement == "" {
			h.writeError(w, "Invalid request body", fmt.Sprintf("statement %d is empty", i), http.StatusBadRequest)
			return
		}
	}

	resp := TransactionResponse{Results: make([][]driver.Record, 0, len(req.Statements))}
	bookmarks, err := h.svc.Coordinator().ExecuteWrite(r.Context(), database, func(ctx context.Context, tx *txn.Transaction) error {
		resp.TransactionID = tx.ID()
		for _, st := range req.Statements {
			records, err := tx.Run(ctx, st.Statement, normalizeParams(st.Params))
			if err != nil {
				return err
			}
			if records == nil {
				records = []driver.Record{}
			}
			resp.Results = append(resp.Results, records)
		}
		return nil
	})
	if err != nil {
		h.log.Warn("transaction failed",
			zap.String("database", database),
			zap.String("tx", resp.TransactionID),
			zap.Error(err))
		h.writeDomainError(w, "Transaction failed", err)
		return
	}

	resp.Bookmarks = bookmarks.Values()
	h.writeJSON(w, resp, http.StatusOK)
}

// Helper methods

func (h *Handler) writeJSON(w http.ResponseWriter, data interface{}, statusCode int) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(statusCode)
	if err := json.NewEncoder(w).Encode(data); err != nil {
		h.log.Error("failed to encode JSON", zap.Error(err))
	}
}

func (h *Handler) writeError(w http.ResponseWriter, error, details string, statusCode int) {
	h.writeJSON(w, ErrorResponse{Error: error, Details: details}, statusCode)
}

func (h *Handler) writeDomainError(w http.ResponseWriter, msg string, err error) {
	h.writeError(w, msg, err.Error(), statusFor(err))
}

// statusFor maps an error kind onto an HTTP status
func statusFor(err error) int {
	switch {
	case domain.IsDatabaseSelection(err):
		return http.StatusNotFound
	case domain.IsConnection(err):
		return http.StatusServiceUnavailable
	case domain.IsCommitConflict(err):
		return http.StatusConflict
	case errors.Is(err, context.Canceled), errors.Is(err, context.DeadlineExceeded):
		return http.StatusServiceUnavailable
	default:
		return http.StatusInternalServerError
	}
}

// normalizeParams turns whole JSON numbers back into integers
func normalizeParams(params map[string]any) map[string]any {
	if params == nil {
		return nil
	}
	out := make(map[string]any, len(params))
	for k, v := range params {
		if f, ok := v.(float64); ok && f == math.Trunc(f) && math.Abs(f) < 1<<53 {
			out[k] = int64(f)
			continue
		}
		out[k] = v
	}
	return out
}
