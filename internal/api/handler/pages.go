package handler

import (
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"
	mw "github.com/kiranshivaraju/logsink/internal/api/middleware"
	"github.com/kiranshivaraju/logsink/internal/api/response"
	"github.com/kiranshivaraju/logsink/internal/logs"
	"github.com/kiranshivaraju/logsink/internal/web"
)

// showHiddenParam in the query string reveals groups with hidden prefixes.
const showHiddenParam = "show_proto_err"

// NewIndexHandler returns an http.HandlerFunc for GET /{path}. It serves the
// favicon and the admin page and redirects everything else to the page.
func NewIndexHandler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		switch chi.URLParam(r, "*") {
		case "favicon.ico":
			w.Header().Set("Content-Type", "image/vnd.microsoft.icon")
			w.WriteHeader(http.StatusOK)
			w.Write(web.Favicon())
		case "index.html":
			response.HTML(w, web.IndexHTML())
		default:
			http.Redirect(w, r, "/index.html", http.StatusFound)
		}
	}
}

// NewLogContentPageHandler returns an http.HandlerFunc for
// GET /log_content/{log_type}.
func NewLogContentPageHandler(svc LogService) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		logType := chi.URLParam(r, "log_type")
		showHidden := strings.Contains(r.URL.RawQuery, showHiddenParam)

		listing, err := svc.CategoryListing(r.Context(), logType, showHidden)
		if err != nil {
			storageError(w, r, err)
			return
		}
		if listing.Total == 0 {
			response.HTML(w, web.EmptyListingHTML())
			return
		}

		page := web.LogContentPage{
			LogType: logType,
			IsAdmin: mw.IsAdmin(r),
			Items:   make([]web.MenuItem, 0, len(listing.Items)),
		}
		for _, it := range listing.Items {
			page.Items = append(page.Items, web.MenuItem{
				Hash:  it.Hash,
				Label: it.Label,
				Class: logs.StatusClass(it.Status),
			})
		}

		body, err := web.RenderLogContent(page)
		if err != nil {
			response.Error(w, http.StatusInternalServerError, "INTERNAL_ERROR", "render failed", err.Error())
			return
		}
		response.HTML(w, body)
	}
}

// NewQueryIPHandler returns an http.HandlerFunc for GET /api/query_ip/json.
func NewQueryIPHandler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ip := mw.ClientIP(r)
		if ip == "" {
			ip = "127.0.0.1"
		}
		response.Raw(w, struct {
			Status string `json:"status"`
			Query  string `json:"query"`
		}{Status: "success", Query: ip})
	}
}
