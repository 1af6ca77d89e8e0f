package handler_test

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/kiranshivaraju/logsink/internal/api"
	"github.com/kiranshivaraju/logsink/internal/api/handler"
	mw "github.com/kiranshivaraju/logsink/internal/api/middleware"
	"github.com/kiranshivaraju/logsink/internal/config"
	"github.com/kiranshivaraju/logsink/internal/grouping"
	"github.com/kiranshivaraju/logsink/internal/logs"
	"github.com/kiranshivaraju/logsink/internal/stats"
	"github.com/kiranshivaraju/logsink/internal/store"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// ─── test fixtures ───────────────────────────────────────────────────────────

var testCreds = config.AuthConfig{
	Username:      "viewer",
	Password:      "view-pass",
	AdminAccount:  "root",
	AdminPassword: "root-pass",
}

type tier int

const (
	anonymous tier = iota
	baseline
	admin
)

type stack struct {
	t      *testing.T
	router http.Handler
}

func newStack(t *testing.T) *stack {
	t.Helper()
	st, err := store.NewSQLiteStore(context.Background(), ":memory:")
	require.NoError(t, err)
	t.Cleanup(st.Close)

	logSvc := logs.NewService(st, []string{"LUA ERROR: type mismatch for"})
	statsSvc := stats.NewService(st, nil)

	router := api.NewRouter(api.Dependencies{
		Auth:             mw.NewAuth(testCreds),
		RateLimit:        mw.NewRateLimit(nil, 0),
		QueryIP:          handler.NewQueryIPHandler(),
		UploadLog:        handler.NewUploadLogHandler(logSvc),
		UploadStatistics: handler.NewUploadStatisticsHandler(statsSvc),
		UserLog:          handler.NewUserLogHandler(logSvc),
		LogList:          handler.NewLogListHandler(logSvc),
		LogContent:       handler.NewLogContentHandler(logSvc),
		LogComplete:      handler.NewLogCompleteHandler(logSvc),
		LogRemove:        handler.NewLogRemoveHandler(logSvc),
		ClearLog:         handler.NewClearLogHandler(logSvc),
		LogPage:          handler.NewLogContentPageHandler(logSvc),
		StatsPage:        handler.NewStatisticsUsersHandler(statsSvc),
		IndexHandler:     handler.NewIndexHandler(),
	})
	return &stack{t: t, router: router}
}

func (s *stack) do(method, path string, body any, as tier) *httptest.ResponseRecorder {
	s.t.Helper()
	var buf bytes.Buffer
	if body != nil {
		require.NoError(s.t, json.NewEncoder(&buf).Encode(body))
	}
	req := httptest.NewRequest(method, path, &buf)
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("X-Forwarded-For", "198.51.100.9")
	switch as {
	case baseline:
		req.SetBasicAuth(testCreds.Username, testCreds.Password)
	case admin:
		req.SetBasicAuth(testCreds.AdminAccount, testCreds.AdminPassword)
	}
	rec := httptest.NewRecorder()
	s.router.ServeHTTP(rec, req)
	return rec
}

func (s *stack) upload(logType, message, user string) string {
	s.t.Helper()
	rec := s.do(http.MethodPost, "/api/upload_log", map[string]string{
		"log_type": logType,
		"message":  message,
		"user":     user,
		"package":  "com.example.game",
		"version":  `{"game_id":0,"branch":"main"}`,
		"logs":     "log of " + user,
	}, anonymous)
	require.Equal(s.t, http.StatusOK, rec.Code, rec.Body.String())
	assert.JSONEq(s.t, `{"data":"ok"}`, rec.Body.String())
	return grouping.Key(message, logType)
}

func (s *stack) content(hash string, as tier) map[string]any {
	s.t.Helper()
	rec := s.do(http.MethodPost, "/api/log_content", map[string]string{"hash": hash}, as)
	require.Equal(s.t, http.StatusOK, rec.Code)
	var body map[string]any
	require.NoError(s.t, json.Unmarshal(rec.Body.Bytes(), &body), rec.Body.String())
	return body
}

func (s *stack) list(body map[string]any) map[string]any {
	s.t.Helper()
	rec := s.do(http.MethodPost, "/api/log_list", body, baseline)
	require.Equal(s.t, http.StatusOK, rec.Code)
	var out map[string]any
	require.NoError(s.t, json.Unmarshal(rec.Body.Bytes(), &out))
	return out
}

// ─── contract tests ──────────────────────────────────────────────────────────

func TestContract_DedupAcrossAddressesAndUsers(t *testing.T) {
	s := newStack(t)

	h1 := s.upload("error", "crash at 0xDEADBEEF", "alice")
	h2 := s.upload("error", "crash at 0x00ff", "bob")
	require.Equal(t, h1, h2)

	d := s.content(h1, baseline)
	assert.EqualValues(t, 2, d["total_count"])
	assert.Equal(t, "crash at 0xDEADBEEF", d["message"], "first message is kept")

	users := d["user_list"].([]any)
	require.Len(t, users, 2)
	assert.Equal(t, "alice", users[0].(map[string]any)["user"])
	assert.Equal(t, "198.51.100.9", users[0].(map[string]any)["ip"])
}

func TestContract_NonErrorTypeIsDropped(t *testing.T) {
	s := newStack(t)

	s.upload("warning", "something odd", "alice")

	out := s.list(map[string]any{"page": 1, "page_size": 20})
	assert.EqualValues(t, 0, out["total"])
}

func TestContract_MemberCap(t *testing.T) {
	s := newStack(t)

	var hash string
	for i := 0; i < 101; i++ {
		hash = s.upload("error", "capped", fmt.Sprintf("user-%d", i))
	}

	d := s.content(hash, baseline)
	assert.EqualValues(t, 101, d["total_count"])
	assert.Len(t, d["user_list"].([]any), 100)
}

func TestContract_ResolveAndReopen(t *testing.T) {
	s := newStack(t)
	hash := s.upload("error", "flaky", "alice")

	rec := s.do(http.MethodPost, "/api/log_complete", map[string]string{"hash": hash}, baseline)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `{"data":"ok"}`, rec.Body.String())

	d := s.content(hash, admin)
	assert.EqualValues(t, 1, d["status"])
	assert.Equal(t, true, d["can_remove"])
	assert.Equal(t, false, s.content(hash, baseline)["can_remove"])

	s.upload("error", "flaky", "bob")
	d = s.content(hash, admin)
	assert.EqualValues(t, -1, d["status"])
	assert.Equal(t, false, d["can_remove"])
}

func TestContract_ListPagination(t *testing.T) {
	s := newStack(t)
	for i := 0; i < 25; i++ {
		s.upload("error", fmt.Sprintf("distinct failure %d", i), "alice")
	}

	out := s.list(map[string]any{"page": 2, "page_size": 10, "log_type": "error"})
	assert.EqualValues(t, 25, out["total"])
	assert.EqualValues(t, 25, out["pending"])
	assert.EqualValues(t, 0, out["solved"])
	assert.EqualValues(t, 3, out["total_pages"])
	assert.Len(t, out["items"].([]any), 10)
	assert.Equal(t, false, out["is_admin"])
}

func TestContract_ListClampsPageSize(t *testing.T) {
	s := newStack(t)
	for i := 0; i < 3; i++ {
		s.upload("error", fmt.Sprintf("failure %d", i), "alice")
	}

	out := s.list(map[string]any{"page": 0, "page_size": 500})
	assert.EqualValues(t, 1, out["total_pages"])
	assert.Len(t, out["items"].([]any), 3)
}

func TestContract_UnknownHash(t *testing.T) {
	s := newStack(t)

	rec := s.do(http.MethodPost, "/api/log_content", map[string]string{"hash": "nope"}, baseline)

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "no file: nope", rec.Body.String())
}

func TestContract_RemoveRequiresAdmin(t *testing.T) {
	s := newStack(t)
	hash := s.upload("error", "doomed", "alice")

	rec := s.do(http.MethodPost, "/api/log_remove", map[string]string{"hash": hash}, baseline)
	assert.Equal(t, http.StatusForbidden, rec.Code)

	rec = s.do(http.MethodPost, "/api/log_remove", map[string]string{"hash": hash}, admin)
	require.Equal(t, http.StatusOK, rec.Code)

	rec = s.do(http.MethodPost, "/api/log_content", map[string]string{"hash": hash}, baseline)
	assert.Equal(t, "no file: "+hash, rec.Body.String())

	rec = s.do(http.MethodPost, "/api/user_log", map[string]int{"id": 1}, anonymous)
	assert.JSONEq(t, `{"id":1,"logs":"Not found user log for id 1"}`, rec.Body.String())
}

func TestContract_ClearCategory(t *testing.T) {
	s := newStack(t)
	s.upload("error", "a", "alice")
	s.upload("error", "b", "alice")
	kept := s.upload("error_native", "c", "alice")

	rec := s.do(http.MethodPost, "/api/clear_log", map[string]string{"log_type": "error"}, admin)
	require.Equal(t, http.StatusOK, rec.Code)

	out := s.list(map[string]any{"page": 1, "page_size": 20})
	assert.EqualValues(t, 1, out["total"])
	assert.Equal(t, kept, out["items"].([]any)[0].(map[string]any)["hash"])
}

func TestContract_UserLog(t *testing.T) {
	s := newStack(t)
	hash := s.upload("error", "with logs", "alice")

	d := s.content(hash, baseline)
	id := d["user_list"].([]any)[0].(map[string]any)["id"]

	rec := s.do(http.MethodPost, "/api/user_log", map[string]any{"id": id}, anonymous)
	require.Equal(t, http.StatusOK, rec.Code)
	var body map[string]any
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	assert.Equal(t, "log of alice", body["logs"])
}

func TestContract_AuthChallenge(t *testing.T) {
	s := newStack(t)

	rec := s.do(http.MethodPost, "/api/log_list", map[string]any{}, anonymous)
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
	assert.Equal(t, `Basic realm="logsink"`, rec.Header().Get("WWW-Authenticate"))

	out := s.list(map[string]any{})
	assert.Equal(t, true, out["success"])
}

func TestContract_CategoryPage(t *testing.T) {
	s := newStack(t)

	rec := s.do(http.MethodGet, "/log_content/error", nil, baseline)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.NotContains(t, rec.Body.String(), "Remove all")

	s.upload("error", "LUA ERROR: type mismatch for field x", "alice")
	s.upload("error", "visible failure", "alice")

	rec = s.do(http.MethodGet, "/log_content/error", nil, admin)
	require.Equal(t, http.StatusOK, rec.Code)
	page := rec.Body.String()
	assert.Contains(t, page, "Remove all")
	assert.Contains(t, page, "visible failure")
	assert.NotContains(t, page, "type mismatch")

	rec = s.do(http.MethodGet, "/log_content/error?show_proto_err", nil, baseline)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), "type mismatch")
	assert.NotContains(t, rec.Body.String(), "Remove all")
}

func TestContract_Statistics(t *testing.T) {
	s := newStack(t)

	for i := 0; i < 3; i++ {
		rec := s.do(http.MethodPost, "/api/upload_statistics_cli_cfg", map[string]string{
			"cli_type":           "android",
			"user":               fmt.Sprintf("u%d", i),
			"configuration_info": "{supports_ETC1: true}",
		}, anonymous)
		require.Equal(t, http.StatusOK, rec.Code)
	}

	rec := s.do(http.MethodGet, "/statistics_users/android", nil, baseline)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), "<td style=\"border: 1px solid black; padding: 8px;\">3</td>")
}

func TestContract_QueryIP(t *testing.T) {
	s := newStack(t)

	rec := s.do(http.MethodGet, "/api/query_ip/json", nil, anonymous)

	assert.JSONEq(t, `{"status":"success","query":"198.51.100.9"}`, rec.Body.String())
}

func TestContract_IndexRedirect(t *testing.T) {
	s := newStack(t)

	rec := s.do(http.MethodGet, "/whatever", nil, baseline)
	assert.Equal(t, http.StatusFound, rec.Code)
	assert.Equal(t, "/index.html", rec.Header().Get("Location"))

	rec = s.do(http.MethodGet, "/index.html", nil, baseline)
	assert.Equal(t, http.StatusOK, rec.Code)
}
