package handler

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	mw "github.com/kiranshivaraju/logsink/internal/api/middleware"
	"github.com/kiranshivaraju/logsink/internal/api/response"
	"github.com/kiranshivaraju/logsink/internal/stats"
	"github.com/kiranshivaraju/logsink/internal/web"
)

// NewUploadStatisticsHandler returns an http.HandlerFunc for
// POST /api/upload_statistics_cli_cfg.
func NewUploadStatisticsHandler(svc StatsService) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req struct {
			CliType           string `json:"cli_type"`
			User              string `json:"user"`
			Package           string `json:"package"`
			ConfigurationInfo string `json:"configuration_info"`
		}
		if !decodeJSON(w, r, &req) {
			return
		}

		err := svc.Record(r.Context(), stats.Report{
			CliType:           req.CliType,
			User:              req.User,
			Package:           req.Package,
			ConfigurationInfo: req.ConfigurationInfo,
			IP:                mw.ClientIP(r),
		})
		if err != nil {
			storageError(w, r, err)
			return
		}
		response.Ack(w)
	}
}

// NewStatisticsUsersHandler returns an http.HandlerFunc for
// GET /statistics_users/{cli_type}.
func NewStatisticsUsersHandler(svc StatsService) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		cliType := chi.URLParam(r, "cli_type")

		rows, err := svc.DailyCounts(r.Context(), cliType)
		if err != nil {
			storageError(w, r, err)
			return
		}

		body, err := web.RenderStatistics(web.StatisticsPage{CliType: cliType, Rows: rows})
		if err != nil {
			response.Error(w, http.StatusInternalServerError, "INTERNAL_ERROR", "render failed", err.Error())
			return
		}
		response.HTML(w, body)
	}
}
