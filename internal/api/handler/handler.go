package handler

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"

	mw "github.com/kiranshivaraju/logsink/internal/api/middleware"
	"github.com/kiranshivaraju/logsink/internal/api/response"
	"github.com/kiranshivaraju/logsink/internal/logs"
	"github.com/kiranshivaraju/logsink/internal/stats"
	"github.com/kiranshivaraju/logsink/pkg/models"
)

// LogService defines the log workflow the handlers depend on.
type LogService interface {
	Ingest(ctx context.Context, sub logs.Submission) error
	List(ctx context.Context, params logs.ListParams) (*logs.ListResult, error)
	Detail(ctx context.Context, hash string) (*logs.Detail, error)
	Complete(ctx context.Context, hash string) error
	Remove(ctx context.Context, hash string) error
	ClearCategory(ctx context.Context, logType string) (int, error)
	ReporterLogs(ctx context.Context, id int64) (string, error)
	CategoryListing(ctx context.Context, logType string, showHidden bool) (*logs.Listing, error)
}

// StatsService defines the statistics operations the handlers depend on.
type StatsService interface {
	Record(ctx context.Context, r stats.Report) error
	DailyCounts(ctx context.Context, cliType string) ([]models.DailyCount, error)
}

// decodeJSON reads the request body into v, answering 400 on failure.
func decodeJSON(w http.ResponseWriter, r *http.Request, v any) bool {
	if err := json.NewDecoder(r.Body).Decode(v); err != nil {
		response.Error(w, http.StatusBadRequest, "INVALID_REQUEST", "Invalid JSON body", nil)
		return false
	}
	return true
}

// storageError answers 500 with the underlying driver message attached.
func storageError(w http.ResponseWriter, r *http.Request, err error) {
	slog.Error("storage error",
		"error", err,
		"request_id", mw.GetRequestID(r),
		"path", r.URL.Path,
	)
	response.Error(w, http.StatusInternalServerError, "INTERNAL_ERROR", "storage error", err.Error())
}
