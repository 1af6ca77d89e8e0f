package logs

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/kiranshivaraju/logsink/internal/grouping"
	"github.com/kiranshivaraju/logsink/internal/store"
	"github.com/kiranshivaraju/logsink/pkg/models"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// --- helpers ---

func newTestService(t *testing.T) (*Service, store.Store) {
	t.Helper()
	st, err := store.NewSQLiteStore(context.Background(), ":memory:")
	require.NoError(t, err)
	t.Cleanup(st.Close)

	svc := NewService(st, []string{"LUA ERROR: type mismatch for"})
	clock := time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC)
	svc.now = func() time.Time {
		clock = clock.Add(time.Second)
		return clock
	}
	return svc, st
}

func submit(t *testing.T, svc *Service, logType, message string) string {
	t.Helper()
	require.NoError(t, svc.Ingest(context.Background(), Submission{
		LogType: logType,
		Message: message,
		User:    "player",
		Package: "com.example.game",
		Version: `{"game_id":0,"branch":"main"}`,
		Logs:    "trace",
		IP:      "10.1.2.3",
	}))
	return grouping.Key(message, logType)
}

func getGroup(t *testing.T, st store.Store, hash string) *models.LogGroup {
	t.Helper()
	g, err := st.GetGroup(context.Background(), hash)
	require.NoError(t, err)
	return g
}

// racingStore creates a competing group right before the first CreateGroup
// call, as a concurrent request would.
type racingStore struct {
	store.Store
	raced bool
}

func (r *racingStore) CreateGroup(ctx context.Context, g *models.LogGroup) error {
	if !r.raced {
		r.raced = true
		rival := *g
		if err := r.Store.CreateGroup(ctx, &rival); err != nil {
			return err
		}
	}
	return r.Store.CreateGroup(ctx, g)
}

// --- Ingest ---

func TestIngest_NonErrorTypeIgnored(t *testing.T) {
	svc, st := newTestService(t)

	submit(t, svc, "info", "hello")

	n, err := st.CountGroups(context.Background(), store.GroupFilter{})
	require.NoError(t, err)
	assert.Zero(t, n)
}

func TestIngest_CreatesGroup(t *testing.T) {
	svc, st := newTestService(t)

	hash := submit(t, svc, "error", "crash at 0xDEADBEEF\nstack")

	g := getGroup(t, st, hash)
	assert.Equal(t, "crash at 0xDEADBEEF\nstack", g.Message, "raw message is stored")
	assert.Equal(t, 1, g.TotalCount)
	assert.Equal(t, models.StatusOpen, g.Status)
	require.Len(t, g.Members, 1)
	assert.Equal(t, g.FirstTime, g.LastTime)

	r, err := st.GetReporter(context.Background(), g.Members[0])
	require.NoError(t, err)
	assert.Equal(t, "10.1.2.3", r.IP)
	assert.Equal(t, "trace", r.Logs)
}

func TestIngest_UnknownIP(t *testing.T) {
	svc, st := newTestService(t)
	ctx := context.Background()

	require.NoError(t, svc.Ingest(ctx, Submission{LogType: "error", Message: "boom"}))

	g := getGroup(t, st, grouping.Key("boom", "error"))
	r, err := st.GetReporter(ctx, g.Members[0])
	require.NoError(t, err)
	assert.Equal(t, UnknownIP, r.IP)
}

func TestIngest_AddressesShareGroup(t *testing.T) {
	svc, st := newTestService(t)

	a := submit(t, svc, "error", "crash at 0xDEADBEEF")
	b := submit(t, svc, "error", "crash at 0x1")
	c := submit(t, svc, "error", "different crash")

	assert.Equal(t, a, b)
	assert.NotEqual(t, a, c)

	g := getGroup(t, st, a)
	assert.Equal(t, 2, g.TotalCount)
	assert.Len(t, g.Members, 2)
	assert.Equal(t, "crash at 0xDEADBEEF", g.Message, "first-seen message is kept")
	assert.True(t, g.LastTime.After(g.FirstTime))
}

func TestIngest_CategoryIsPartOfKey(t *testing.T) {
	svc, _ := newTestService(t)

	a := submit(t, svc, "error", "boom")
	b := submit(t, svc, "error_lua", "boom")
	assert.NotEqual(t, a, b)
}

func TestIngest_MemberCap(t *testing.T) {
	svc, st := newTestService(t)

	var hash string
	for i := 0; i < 101; i++ {
		hash = submit(t, svc, "error", "capped")
	}

	g := getGroup(t, st, hash)
	assert.Equal(t, 101, g.TotalCount)
	assert.Len(t, g.Members, grouping.MaxMembers)

	reporters, err := st.GetReporters(context.Background(), g.Members)
	require.NoError(t, err)
	assert.Len(t, reporters, grouping.MaxMembers)
}

func TestIngest_StatusTransitions(t *testing.T) {
	svc, st := newTestService(t)
	ctx := context.Background()

	hash := submit(t, svc, "error", "flaky")
	submit(t, svc, "error", "flaky")
	assert.Equal(t, models.StatusOpen, getGroup(t, st, hash).Status, "open stays open")

	require.NoError(t, svc.Complete(ctx, hash))
	resolved := getGroup(t, st, hash)
	assert.Equal(t, models.StatusResolved, resolved.Status)

	submit(t, svc, "error", "flaky")
	reopened := getGroup(t, st, hash)
	assert.Equal(t, models.StatusReopened, reopened.Status)
	assert.Equal(t, resolved.ResolutionTime, reopened.ResolutionTime)

	submit(t, svc, "error", "flaky")
	assert.Equal(t, models.StatusReopened, getGroup(t, st, hash).Status, "reopened stays reopened")
}

func TestIngest_DuplicateCreateRetriesAsUpdate(t *testing.T) {
	base, err := store.NewSQLiteStore(context.Background(), ":memory:")
	require.NoError(t, err)
	t.Cleanup(base.Close)

	racing := &racingStore{Store: base}
	svc := NewService(racing, nil)

	hash := submit(t, svc, "error", "race")

	assert.True(t, racing.raced)
	g := getGroup(t, base, hash)
	assert.Equal(t, 2, g.TotalCount)
}

// --- List ---

func seedGroups(t *testing.T, svc *Service, logType string, n int) {
	t.Helper()
	for i := 0; i < n; i++ {
		submit(t, svc, logType, fmt.Sprintf("failure %d", i))
	}
}

func TestList_Pagination(t *testing.T) {
	svc, _ := newTestService(t)
	seedGroups(t, svc, "error", 25)
	seedGroups(t, svc, "error_other", 3)

	res, err := svc.List(context.Background(), ListParams{Page: 2, PageSize: 10, LogType: "error"})
	require.NoError(t, err)

	assert.Equal(t, 25, res.Total)
	assert.Equal(t, 3, res.TotalPages)
	assert.Equal(t, 25, res.Pending)
	assert.Zero(t, res.Solved)
	require.Len(t, res.Groups, 10)
	assert.Equal(t, "failure 14", res.Groups[0].Message, "most recent first")
}

func TestList_AllTypes(t *testing.T) {
	svc, _ := newTestService(t)
	seedGroups(t, svc, "error", 4)
	seedGroups(t, svc, "error_other", 3)

	res, err := svc.List(context.Background(), ListParams{Page: 1, PageSize: 20})
	require.NoError(t, err)
	assert.Equal(t, 7, res.Total)
	assert.Len(t, res.Groups, 7)
}

func TestList_Counts(t *testing.T) {
	svc, _ := newTestService(t)
	ctx := context.Background()

	a := submit(t, svc, "error", "a")
	b := submit(t, svc, "error", "b")
	submit(t, svc, "error", "c")
	require.NoError(t, svc.Complete(ctx, a))
	require.NoError(t, svc.Complete(ctx, b))
	submit(t, svc, "error", "b")

	res, err := svc.List(ctx, ListParams{Page: 1, PageSize: 10, LogType: "error"})
	require.NoError(t, err)
	assert.Equal(t, 3, res.Total)
	assert.Equal(t, 1, res.Pending)
	assert.Equal(t, 1, res.Solved, "reopened groups count as neither")
}

func TestList_ClampsPageSize(t *testing.T) {
	svc, _ := newTestService(t)
	seedGroups(t, svc, "error", 120)

	res, err := svc.List(context.Background(), ListParams{Page: 1, PageSize: 500, LogType: "error"})
	require.NoError(t, err)
	assert.Equal(t, MaxPageSize, res.PageSize)
	assert.Len(t, res.Groups, MaxPageSize)
	assert.Equal(t, 2, res.TotalPages)
}

func TestList_ClampsLowValues(t *testing.T) {
	svc, _ := newTestService(t)
	seedGroups(t, svc, "error", 3)

	res, err := svc.List(context.Background(), ListParams{Page: -4, PageSize: 0, LogType: "error"})
	require.NoError(t, err)
	assert.Equal(t, 1, res.Page)
	assert.Equal(t, 1, res.PageSize)
	assert.Len(t, res.Groups, 1)
	assert.Equal(t, 3, res.TotalPages)
}

func TestList_Empty(t *testing.T) {
	svc, _ := newTestService(t)

	res, err := svc.List(context.Background(), ListParams{Page: 1, PageSize: 10, LogType: "error"})
	require.NoError(t, err)
	assert.Zero(t, res.Total)
	assert.Zero(t, res.TotalPages)
	assert.Empty(t, res.Groups)
}

func TestTotalPages(t *testing.T) {
	tests := []struct {
		total, size, want int
	}{
		{0, 10, 0},
		{1, 10, 1},
		{10, 10, 1},
		{11, 10, 2},
		{25, 10, 3},
		{5, 0, 0},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, TotalPages(tt.total, tt.size), "TotalPages(%d, %d)", tt.total, tt.size)
	}
}

// --- Detail / lifecycle ---

func TestDetail_SkipsMissingReporters(t *testing.T) {
	svc, st := newTestService(t)
	ctx := context.Background()

	hash := submit(t, svc, "error", "detail")
	submit(t, svc, "error", "detail")

	g := getGroup(t, st, hash)
	g.Members = append(g.Members, 987654)
	require.NoError(t, st.UpdateGroup(ctx, g))

	d, err := svc.Detail(ctx, hash)
	require.NoError(t, err)
	assert.Equal(t, hash, d.Group.Hash)
	require.Len(t, d.Reporters, 2)
	assert.Equal(t, g.Members[0], d.Reporters[0].ID)
}

func TestDetail_NotFound(t *testing.T) {
	svc, _ := newTestService(t)

	_, err := svc.Detail(context.Background(), "missing")
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestComplete_UnknownIsNoop(t *testing.T) {
	svc, _ := newTestService(t)
	assert.NoError(t, svc.Complete(context.Background(), "missing"))
}

func TestRemove_DeletesReporters(t *testing.T) {
	svc, st := newTestService(t)
	ctx := context.Background()

	hash := submit(t, svc, "error", "remove me")
	submit(t, svc, "error", "remove me")
	members := getGroup(t, st, hash).Members

	require.NoError(t, svc.Remove(ctx, hash))

	reporters, err := st.GetReporters(ctx, members)
	require.NoError(t, err)
	assert.Empty(t, reporters)

	_, err = svc.Detail(ctx, hash)
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestRemove_UnknownIsNoop(t *testing.T) {
	svc, _ := newTestService(t)
	assert.NoError(t, svc.Remove(context.Background(), "missing"))
}

func TestClearCategory(t *testing.T) {
	svc, st := newTestService(t)
	ctx := context.Background()

	seedGroups(t, svc, "error_lua", 3)
	keep := submit(t, svc, "error", "keep")

	n, err := svc.ClearCategory(ctx, "error_lua")
	require.NoError(t, err)
	assert.Equal(t, 3, n)

	left, err := st.CountGroups(ctx, store.GroupFilter{})
	require.NoError(t, err)
	assert.Equal(t, 1, left)
	getGroup(t, st, keep)
}

func TestReporterLogs(t *testing.T) {
	svc, st := newTestService(t)
	ctx := context.Background()

	hash := submit(t, svc, "error", "with logs")
	id := getGroup(t, st, hash).Members[0]

	got, err := svc.ReporterLogs(ctx, id)
	require.NoError(t, err)
	assert.Equal(t, "trace", got)

	require.NoError(t, svc.Ingest(ctx, Submission{LogType: "error", Message: "no logs"}))
	empty := getGroup(t, st, grouping.Key("no logs", "error")).Members[0]
	got, err = svc.ReporterLogs(ctx, empty)
	require.NoError(t, err)
	assert.Equal(t, fmt.Sprintf("No logs for id %d", empty), got)

	got, err = svc.ReporterLogs(ctx, 424242)
	require.NoError(t, err)
	assert.Equal(t, "Not found user log for id 424242", got)
}
