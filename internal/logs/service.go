// Package logs implements the error log workflow: ingest with deduplication,
// admin listing and detail, and the resolve and delete lifecycle.
package logs

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/kiranshivaraju/logsink/internal/grouping"
	"github.com/kiranshivaraju/logsink/internal/store"
	"github.com/kiranshivaraju/logsink/pkg/models"
	"golang.org/x/sync/errgroup"
)

// ErrNotFound is returned when a group or reporter does not exist.
var ErrNotFound = store.ErrNotFound

// UnknownIP is recorded when the caller address cannot be derived.
const UnknownIP = "unknown"

const (
	DefaultPageSize = 20
	MaxPageSize     = 100
)

// Submission is one client-reported log.
type Submission struct {
	LogType string
	Message string
	User    string
	Package string
	NavURL  string
	Version string
	Logs    string
	IP      string
}

// ListParams selects one page of groups. LogType empty means every type.
type ListParams struct {
	Page     int
	PageSize int
	LogType  string
}

// ListResult is one page of groups plus the totals for the whole filter.
type ListResult struct {
	Page       int
	PageSize   int
	Total      int
	Pending    int
	Solved     int
	TotalPages int
	Groups     []*models.LogGroup
}

// Detail is a group with its surviving reporters in membership order.
type Detail struct {
	Group     *models.LogGroup
	Reporters []*models.Reporter
}

// Service runs the log workflow against a Store.
type Service struct {
	store          store.Store
	hiddenPrefixes []string
	now            func() time.Time
}

// NewService creates a Service. hiddenPrefixes lists first-line prefixes
// left out of category listings by default.
func NewService(st store.Store, hiddenPrefixes []string) *Service {
	return &Service{
		store:          st,
		hiddenPrefixes: hiddenPrefixes,
		now:            func() time.Time { return time.Now().UTC() },
	}
}

// Ingest records one submission. Log types outside the grouped family are
// accepted and dropped.
func (s *Service) Ingest(ctx context.Context, sub Submission) error {
	if !grouping.IsGrouped(sub.LogType) {
		return nil
	}

	hash := grouping.Key(sub.Message, sub.LogType)
	existing, err := s.store.GetGroup(ctx, hash)
	if errors.Is(err, store.ErrNotFound) {
		existing = nil
	} else if err != nil {
		return fmt.Errorf("looking up group: %w", err)
	}

	now := s.now()

	var reporterID int64
	if grouping.ShouldRecordReporter(existing) {
		reporterID, err = s.recordReporter(ctx, sub, now)
		if err != nil {
			return err
		}
	} else {
		slog.Warn("member cap reached, reporter not stored",
			"hash", hash,
			"log_type", sub.LogType,
			"total_count", existing.TotalCount,
		)
	}

	if existing != nil {
		return s.observe(ctx, *existing, reporterID, now)
	}

	group := grouping.NewGroup(hash, sub.LogType, sub.Message, reporterID, now)
	err = s.store.CreateGroup(ctx, &group)
	if errors.Is(err, store.ErrDuplicateKey) {
		// Another request created the group between lookup and insert.
		current, getErr := s.store.GetGroup(ctx, hash)
		if getErr != nil {
			return fmt.Errorf("reloading group: %w", getErr)
		}
		return s.observe(ctx, *current, reporterID, now)
	}
	if err != nil {
		return fmt.Errorf("creating group: %w", err)
	}

	slog.Info("log group created", "hash", hash, "log_type", sub.LogType, "id", group.ID)
	return nil
}

func (s *Service) recordReporter(ctx context.Context, sub Submission, now time.Time) (int64, error) {
	ip := sub.IP
	if ip == "" {
		ip = UnknownIP
	}
	reporter := &models.Reporter{
		Package: sub.Package,
		NavURL:  sub.NavURL,
		Version: sub.Version,
		User:    sub.User,
		Logs:    sub.Logs,
		IP:      ip,
		Time:    now,
	}
	if err := s.store.CreateReporter(ctx, reporter); err != nil {
		return 0, fmt.Errorf("storing reporter: %w", err)
	}
	return reporter.ID, nil
}

func (s *Service) observe(ctx context.Context, current models.LogGroup, reporterID int64, now time.Time) error {
	next := grouping.Observe(current, reporterID, now)
	if err := s.store.UpdateGroup(ctx, &next); err != nil {
		return fmt.Errorf("updating group: %w", err)
	}
	if current.Resolved() {
		slog.Info("log group reopened", "hash", current.Hash, "log_type", current.LogType)
	}
	return nil
}

// List returns one page of groups ordered by most recent submission. Page
// is raised to 1 and PageSize is clamped to [1, MaxPageSize].
func (s *Service) List(ctx context.Context, params ListParams) (*ListResult, error) {
	page := max(params.Page, 1)
	pageSize := min(max(params.PageSize, 1), MaxPageSize)

	base := store.GroupFilter{LogType: params.LogType}
	result := &ListResult{Page: page, PageSize: pageSize}

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		n, err := s.store.CountGroups(gctx, base)
		result.Total = n
		return err
	})
	g.Go(func() error {
		n, err := s.store.CountGroups(gctx, base.WithStatus(models.StatusOpen))
		result.Pending = n
		return err
	})
	g.Go(func() error {
		n, err := s.store.CountGroups(gctx, base.WithStatus(models.StatusResolved))
		result.Solved = n
		return err
	})
	g.Go(func() error {
		pageFilter := base
		pageFilter.Limit = pageSize
		pageFilter.Offset = (page - 1) * pageSize
		groups, err := s.store.ListGroups(gctx, pageFilter)
		result.Groups = groups
		return err
	})
	if err := g.Wait(); err != nil {
		return nil, fmt.Errorf("listing groups: %w", err)
	}

	result.TotalPages = TotalPages(result.Total, pageSize)
	return result, nil
}

// TotalPages is ceil(total/pageSize), or 0 when there is nothing to show.
func TotalPages(total, pageSize int) int {
	if total <= 0 || pageSize <= 0 {
		return 0
	}
	return (total + pageSize - 1) / pageSize
}

// Detail loads a group and the reporters it still links. Member ids whose
// reporter row is gone are skipped.
func (s *Service) Detail(ctx context.Context, hash string) (*Detail, error) {
	group, err := s.store.GetGroup(ctx, hash)
	if err != nil {
		return nil, err
	}
	reporters, err := s.store.GetReporters(ctx, group.Members)
	if err != nil {
		return nil, fmt.Errorf("loading reporters: %w", err)
	}
	return &Detail{Group: group, Reporters: reporters}, nil
}

// Complete marks a group resolved. Unknown hashes are ignored.
func (s *Service) Complete(ctx context.Context, hash string) error {
	group, err := s.store.GetGroup(ctx, hash)
	if errors.Is(err, store.ErrNotFound) {
		return nil
	}
	if err != nil {
		return fmt.Errorf("looking up group: %w", err)
	}

	next := grouping.Resolve(*group, s.now())
	if err := s.store.UpdateGroup(ctx, &next); err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return nil
		}
		return fmt.Errorf("resolving group: %w", err)
	}

	slog.Info("log group resolved", "hash", hash, "log_type", group.LogType)
	return nil
}

// Remove deletes a group and every reporter it links. Unknown hashes are
// ignored.
func (s *Service) Remove(ctx context.Context, hash string) error {
	err := s.store.DeleteGroup(ctx, hash)
	if errors.Is(err, store.ErrNotFound) {
		return nil
	}
	if err != nil {
		return fmt.Errorf("removing group: %w", err)
	}
	slog.Info("log group removed", "hash", hash)
	return nil
}

// ClearCategory deletes every group of logType and their reporters, and
// returns how many groups were removed.
func (s *Service) ClearCategory(ctx context.Context, logType string) (int, error) {
	n, err := s.store.DeleteGroupsByType(ctx, logType)
	if err != nil {
		return 0, fmt.Errorf("clearing log type: %w", err)
	}
	slog.Info("log type cleared", "log_type", logType, "groups", n)
	return n, nil
}

// ReporterLogs returns the raw log blob stored for reporter id, or a
// readable placeholder when there is none.
func (s *Service) ReporterLogs(ctx context.Context, id int64) (string, error) {
	reporter, err := s.store.GetReporter(ctx, id)
	if errors.Is(err, store.ErrNotFound) {
		return fmt.Sprintf("Not found user log for id %d", id), nil
	}
	if err != nil {
		return "", fmt.Errorf("looking up reporter: %w", err)
	}
	if reporter.Logs == "" {
		return fmt.Sprintf("No logs for id %d", id), nil
	}
	return reporter.Logs, nil
}
