package handler

import (
	"errors"
	"fmt"
	"net/http"
	"strings"

	mw "github.com/kiranshivaraju/logsink/internal/api/middleware"
	"github.com/kiranshivaraju/logsink/internal/api/response"
	"github.com/kiranshivaraju/logsink/internal/logs"
)

// reporterTimeLayout is how reporter times appear in the detail view.
const reporterTimeLayout = "01-02 15:04:05"

type hashRequest struct {
	Hash string `json:"hash"`
}

// NewUploadLogHandler returns an http.HandlerFunc for POST /api/upload_log.
func NewUploadLogHandler(svc LogService) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req struct {
			LogType string `json:"log_type"`
			Message string `json:"message"`
			User    string `json:"user"`
			Package string `json:"package"`
			NavURL  string `json:"nav_url"`
			Version string `json:"version"`
			Logs    string `json:"logs"`
		}
		if !decodeJSON(w, r, &req) {
			return
		}
		if req.LogType == "" {
			response.Error(w, http.StatusBadRequest, "INVALID_REQUEST", "log_type is required", nil)
			return
		}

		err := svc.Ingest(r.Context(), logs.Submission{
			LogType: req.LogType,
			Message: req.Message,
			User:    req.User,
			Package: req.Package,
			NavURL:  req.NavURL,
			Version: req.Version,
			Logs:    req.Logs,
			IP:      mw.ClientIP(r),
		})
		if err != nil {
			storageError(w, r, err)
			return
		}
		response.Ack(w)
	}
}

type logListItem struct {
	Hash       string `json:"hash"`
	FirstTime  int64  `json:"first_time"`
	LastTime   int64  `json:"last_time"`
	TotalCount int    `json:"total_count"`
	Status     int    `json:"status"`
	Message    string `json:"message"`
}

type logListResponse struct {
	Success    bool          `json:"success"`
	Total      int           `json:"total"`
	Pending    int           `json:"pending"`
	Solved     int           `json:"solved"`
	TotalPages int           `json:"total_pages"`
	IsAdmin    bool          `json:"is_admin"`
	Items      []logListItem `json:"items"`
}

// NewLogListHandler returns an http.HandlerFunc for POST /api/log_list.
func NewLogListHandler(svc LogService) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req struct {
			Page     int    `json:"page"`
			PageSize int    `json:"page_size"`
			LogType  string `json:"log_type"`
		}
		if !decodeJSON(w, r, &req) {
			return
		}

		res, err := svc.List(r.Context(), logs.ListParams{
			Page:     req.Page,
			PageSize: req.PageSize,
			LogType:  req.LogType,
		})
		if err != nil {
			storageError(w, r, err)
			return
		}

		items := make([]logListItem, 0, len(res.Groups))
		for _, g := range res.Groups {
			items = append(items, logListItem{
				Hash:       g.Hash,
				FirstTime:  g.FirstTime.Unix(),
				LastTime:   g.LastTime.Unix(),
				TotalCount: g.TotalCount,
				Status:     g.Status,
				Message:    g.Message,
			})
		}

		response.Raw(w, logListResponse{
			Success:    true,
			Total:      res.Total,
			Pending:    res.Pending,
			Solved:     res.Solved,
			TotalPages: res.TotalPages,
			IsAdmin:    mw.IsAdmin(r),
			Items:      items,
		})
	}
}

type reporterBrief struct {
	ID      int64  `json:"id"`
	Package string `json:"package"`
	NavURL  string `json:"nav_url"`
	Version string `json:"version"`
	User    string `json:"user"`
	IP      string `json:"ip"`
	Time    string `json:"time"`
}

type logContentResponse struct {
	Hash           string          `json:"hash"`
	UserList       []reporterBrief `json:"user_list"`
	FirstTime      int64           `json:"first_time"`
	LastTime       int64           `json:"last_time"`
	TotalCount     int             `json:"total_count"`
	Status         int             `json:"status"`
	ResolutionTime int64           `json:"resolution_time"`
	Message        string          `json:"message"`
	CanRemove      bool            `json:"can_remove"`
}

// NewLogContentHandler returns an http.HandlerFunc for POST /api/log_content.
// An unknown hash answers a plain-text message rather than an error.
func NewLogContentHandler(svc LogService) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req hashRequest
		if !decodeJSON(w, r, &req) {
			return
		}

		d, err := svc.Detail(r.Context(), req.Hash)
		if errors.Is(err, logs.ErrNotFound) {
			response.Text(w, fmt.Sprintf("no file: %s", req.Hash))
			return
		}
		if err != nil {
			storageError(w, r, err)
			return
		}

		users := make([]reporterBrief, 0, len(d.Reporters))
		for _, rep := range d.Reporters {
			users = append(users, reporterBrief{
				ID:      rep.ID,
				Package: rep.Package,
				NavURL:  rep.NavURL,
				Version: rep.Version,
				User:    rep.User,
				IP:      rep.IP,
				Time:    rep.Time.UTC().Format(reporterTimeLayout),
			})
		}

		g := d.Group
		response.Raw(w, logContentResponse{
			Hash:           g.Hash,
			UserList:       users,
			FirstTime:      g.FirstTime.Unix(),
			LastTime:       g.LastTime.Unix(),
			TotalCount:     g.TotalCount,
			Status:         g.Status,
			ResolutionTime: g.ResolutionTime.Unix(),
			Message:        g.Message,
			CanRemove:      g.Resolved() && mw.IsAdmin(r),
		})
	}
}

// NewLogCompleteHandler returns an http.HandlerFunc for POST /api/log_complete.
func NewLogCompleteHandler(svc LogService) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req hashRequest
		if !decodeJSON(w, r, &req) {
			return
		}
		if err := svc.Complete(r.Context(), req.Hash); err != nil {
			storageError(w, r, err)
			return
		}
		response.Ack(w)
	}
}

// NewLogRemoveHandler returns an http.HandlerFunc for POST /api/log_remove.
func NewLogRemoveHandler(svc LogService) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req hashRequest
		if !decodeJSON(w, r, &req) {
			return
		}
		if err := svc.Remove(r.Context(), req.Hash); err != nil {
			storageError(w, r, err)
			return
		}
		response.Ack(w)
	}
}

// NewClearLogHandler returns an http.HandlerFunc for POST /api/clear_log.
func NewClearLogHandler(svc LogService) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req struct {
			LogType string `json:"log_type"`
		}
		if !decodeJSON(w, r, &req) {
			return
		}
		if strings.TrimSpace(req.LogType) == "" {
			response.Error(w, http.StatusBadRequest, "INVALID_REQUEST", "log_type is required", nil)
			return
		}
		if _, err := svc.ClearCategory(r.Context(), req.LogType); err != nil {
			storageError(w, r, err)
			return
		}
		response.Ack(w)
	}
}

// NewUserLogHandler returns an http.HandlerFunc for POST /api/user_log.
func NewUserLogHandler(svc LogService) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req struct {
			ID int64 `json:"id"`
		}
		if !decodeJSON(w, r, &req) {
			return
		}

		text, err := svc.ReporterLogs(r.Context(), req.ID)
		if err != nil {
			storageError(w, r, err)
			return
		}
		response.Raw(w, struct {
			ID   int64  `json:"id"`
			Logs string `json:"logs"`
		}{ID: req.ID, Logs: text})
	}
}
