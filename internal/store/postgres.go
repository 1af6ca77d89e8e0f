package store

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/kiranshivaraju/logsink/internal/grouping"
	"github.com/kiranshivaraju/logsink/pkg/models"
)

// PostgresStore implements the Store interface using pgx/v5.
type PostgresStore struct {
	pool *pgxpool.Pool
}

// NewPostgresStore creates a new PostgresStore.
func NewPostgresStore(pool *pgxpool.Pool) *PostgresStore {
	return &PostgresStore{pool: pool}
}

// Ping checks database connectivity.
func (s *PostgresStore) Ping(ctx context.Context) error {
	return s.pool.Ping(ctx)
}

func (s *PostgresStore) Close() {
	s.pool.Close()
}

// --- Log groups ---

const groupColumns = `id, hash, log_type, message, user_list, total_count, first_time, last_time, status, resolution_time`

func scanGroup(row pgx.Row) (*models.LogGroup, error) {
	var g models.LogGroup
	var userList string
	if err := row.Scan(&g.ID, &g.Hash, &g.LogType, &g.Message, &userList, &g.TotalCount,
		&g.FirstTime, &g.LastTime, &g.Status, &g.ResolutionTime); err != nil {
		return nil, err
	}
	g.Members = grouping.ParseMembers(userList)
	return &g, nil
}

func (s *PostgresStore) GetGroup(ctx context.Context, hash string) (*models.LogGroup, error) {
	g, err := scanGroup(s.pool.QueryRow(ctx,
		`SELECT `+groupColumns+` FROM upload_log WHERE hash = $1`, hash))
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("get log group: %w", err)
	}
	return g, nil
}

func (s *PostgresStore) CreateGroup(ctx context.Context, group *models.LogGroup) error {
	err := s.pool.QueryRow(ctx,
		`INSERT INTO upload_log (hash, log_type, message, user_list, total_count, first_time, last_time, status, resolution_time)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
		 RETURNING id`,
		group.Hash, group.LogType, group.Message, grouping.Members(group.Members).String(),
		group.TotalCount, group.FirstTime, group.LastTime, group.Status, group.ResolutionTime,
	).Scan(&group.ID)
	if err != nil {
		if isDuplicateKeyError(err) {
			return ErrDuplicateKey
		}
		return fmt.Errorf("create log group: %w", err)
	}
	return nil
}

func (s *PostgresStore) UpdateGroup(ctx context.Context, group *models.LogGroup) error {
	tag, err := s.pool.Exec(ctx,
		`UPDATE upload_log SET user_list = $2, total_count = $3, last_time = $4, status = $5, resolution_time = $6
		 WHERE hash = $1`,
		group.Hash, grouping.Members(group.Members).String(), group.TotalCount,
		group.LastTime, group.Status, group.ResolutionTime)
	if err != nil {
		return fmt.Errorf("update log group: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

// groupWhere builds the WHERE clause for filter, numbering placeholders from 1.
func groupWhere(filter GroupFilter) (string, []any) {
	var conditions []string
	var args []any

	if filter.LogType != "" {
		args = append(args, filter.LogType)
		conditions = append(conditions, fmt.Sprintf("log_type = $%d", len(args)))
	}
	if filter.Status != nil {
		args = append(args, *filter.Status)
		conditions = append(conditions, fmt.Sprintf("status = $%d", len(args)))
	}

	if len(conditions) == 0 {
		return "", args
	}
	return " WHERE " + strings.Join(conditions, " AND "), args
}

func (s *PostgresStore) CountGroups(ctx context.Context, filter GroupFilter) (int, error) {
	where, args := groupWhere(filter)
	var total int
	if err := s.pool.QueryRow(ctx, "SELECT COUNT(*) FROM upload_log"+where, args...).Scan(&total); err != nil {
		return 0, fmt.Errorf("count log groups: %w", err)
	}
	return total, nil
}

func (s *PostgresStore) ListGroups(ctx context.Context, filter GroupFilter) ([]*models.LogGroup, error) {
	where, args := groupWhere(filter)
	query := `SELECT ` + groupColumns + ` FROM upload_log` + where + ` ORDER BY last_time DESC, id DESC`
	if filter.Limit > 0 {
		query += fmt.Sprintf(" LIMIT $%d OFFSET $%d", len(args)+1, len(args)+2)
		args = append(args, filter.Limit, filter.Offset)
	}

	rows, err := s.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("list log groups: %w", err)
	}
	defer rows.Close()

	var groups []*models.LogGroup
	for rows.Next() {
		g, err := scanGroup(rows)
		if err != nil {
			return nil, fmt.Errorf("scan log group: %w", err)
		}
		groups = append(groups, g)
	}
	return groups, rows.Err()
}

// DeleteGroup removes a group and every reporter it links in one transaction.
func (s *PostgresStore) DeleteGroup(ctx context.Context, hash string) error {
	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("begin delete log group: %w", err)
	}
	defer tx.Rollback(ctx)

	var userList string
	err = tx.QueryRow(ctx, `SELECT user_list FROM upload_log WHERE hash = $1 FOR UPDATE`, hash).Scan(&userList)
	if errors.Is(err, pgx.ErrNoRows) {
		return ErrNotFound
	}
	if err != nil {
		return fmt.Errorf("lock log group: %w", err)
	}

	if ids := grouping.ParseMembers(userList); len(ids) > 0 {
		if _, err := tx.Exec(ctx, `DELETE FROM upload_user WHERE id = ANY($1)`, []int64(ids)); err != nil {
			return fmt.Errorf("delete reporters: %w", err)
		}
	}
	if _, err := tx.Exec(ctx, `DELETE FROM upload_log WHERE hash = $1`, hash); err != nil {
		return fmt.Errorf("delete log group: %w", err)
	}

	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("commit delete log group: %w", err)
	}
	return nil
}

// DeleteGroupsByType removes every group of logType and their reporters.
// Returns the number of groups removed.
func (s *PostgresStore) DeleteGroupsByType(ctx context.Context, logType string) (int, error) {
	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return 0, fmt.Errorf("begin clear log type: %w", err)
	}
	defer tx.Rollback(ctx)

	rows, err := tx.Query(ctx, `SELECT user_list FROM upload_log WHERE log_type = $1 FOR UPDATE`, logType)
	if err != nil {
		return 0, fmt.Errorf("select log groups: %w", err)
	}
	var ids []int64
	for rows.Next() {
		var userList string
		if err := rows.Scan(&userList); err != nil {
			rows.Close()
			return 0, fmt.Errorf("scan user list: %w", err)
		}
		ids = append(ids, grouping.ParseMembers(userList)...)
	}
	rows.Close()
	if err := rows.Err(); err != nil {
		return 0, fmt.Errorf("select log groups: %w", err)
	}

	if len(ids) > 0 {
		if _, err := tx.Exec(ctx, `DELETE FROM upload_user WHERE id = ANY($1)`, ids); err != nil {
			return 0, fmt.Errorf("delete reporters: %w", err)
		}
	}
	tag, err := tx.Exec(ctx, `DELETE FROM upload_log WHERE log_type = $1`, logType)
	if err != nil {
		return 0, fmt.Errorf("delete log groups: %w", err)
	}

	if err := tx.Commit(ctx); err != nil {
		return 0, fmt.Errorf("commit clear log type: %w", err)
	}
	return int(tag.RowsAffected()), nil
}

// --- Reporters ---

const reporterColumns = `id, package, nav_url, version, "user", logs, ip, "time"`

func (s *PostgresStore) CreateReporter(ctx context.Context, reporter *models.Reporter) error {
	err := s.pool.QueryRow(ctx,
		`INSERT INTO upload_user (package, nav_url, version, "user", logs, ip, "time")
		 VALUES ($1, $2, $3, $4, $5, $6, $7)
		 RETURNING id`,
		reporter.Package, reporter.NavURL, reporter.Version, reporter.User,
		reporter.Logs, reporter.IP, reporter.Time,
	).Scan(&reporter.ID)
	if err != nil {
		return fmt.Errorf("create reporter: %w", err)
	}
	return nil
}

func (s *PostgresStore) GetReporter(ctx context.Context, id int64) (*models.Reporter, error) {
	var r models.Reporter
	err := s.pool.QueryRow(ctx,
		`SELECT `+reporterColumns+` FROM upload_user WHERE id = $1`, id,
	).Scan(&r.ID, &r.Package, &r.NavURL, &r.Version, &r.User, &r.Logs, &r.IP, &r.Time)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("get reporter: %w", err)
	}
	return &r, nil
}

// GetReporters returns the reporters for ids in the order given. Ids with no
// row are skipped.
func (s *PostgresStore) GetReporters(ctx context.Context, ids []int64) ([]*models.Reporter, error) {
	if len(ids) == 0 {
		return []*models.Reporter{}, nil
	}

	rows, err := s.pool.Query(ctx,
		`SELECT `+reporterColumns+` FROM upload_user WHERE id = ANY($1)`, ids)
	if err != nil {
		return nil, fmt.Errorf("get reporters: %w", err)
	}
	defer rows.Close()

	found := make(map[int64]*models.Reporter, len(ids))
	for rows.Next() {
		var r models.Reporter
		if err := rows.Scan(&r.ID, &r.Package, &r.NavURL, &r.Version, &r.User, &r.Logs, &r.IP, &r.Time); err != nil {
			return nil, fmt.Errorf("scan reporter: %w", err)
		}
		found[r.ID] = &r
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("get reporters: %w", err)
	}
	return orderReporters(ids, found), nil
}

// --- Statistics ---

func (s *PostgresStore) CreateStatistics(ctx context.Context, rec *models.StatisticsRecord) error {
	err := s.pool.QueryRow(ctx,
		`INSERT INTO upload_statistics_cli_cfg (cli_type, "user", package, configuration_info, ip, "time")
		 VALUES ($1, $2, $3, $4, $5, $6)
		 RETURNING id`,
		rec.CliType, rec.User, rec.Package, rec.ConfigurationInfo, rec.IP, rec.Time,
	).Scan(&rec.ID)
	if err != nil {
		return fmt.Errorf("create statistics record: %w", err)
	}
	return nil
}

func (s *PostgresStore) DailyStatistics(ctx context.Context, cliType string) ([]models.DailyCount, error) {
	rows, err := s.pool.Query(ctx,
		`SELECT to_char(("time" AT TIME ZONE 'UTC')::date, 'YYYY-MM-DD') AS date, COUNT(*) AS count
		 FROM upload_statistics_cli_cfg
		 WHERE cli_type = $1
		 GROUP BY 1
		 ORDER BY 1`, cliType)
	if err != nil {
		return nil, fmt.Errorf("daily statistics: %w", err)
	}
	defer rows.Close()

	counts := []models.DailyCount{}
	for rows.Next() {
		var c models.DailyCount
		if err := rows.Scan(&c.Date, &c.Count); err != nil {
			return nil, fmt.Errorf("scan daily statistics: %w", err)
		}
		counts = append(counts, c)
	}
	return counts, rows.Err()
}

func (s *PostgresStore) EachConfiguration(ctx context.Context, fn func(cliType, configurationInfo string) error) error {
	rows, err := s.pool.Query(ctx,
		`SELECT cli_type, configuration_info FROM upload_statistics_cli_cfg ORDER BY id`)
	if err != nil {
		return fmt.Errorf("list configurations: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		var cliType, info string
		if err := rows.Scan(&cliType, &info); err != nil {
			return fmt.Errorf("scan configuration: %w", err)
		}
		if err := fn(cliType, info); err != nil {
			return err
		}
	}
	return rows.Err()
}

// isDuplicateKeyError checks if a pgx error is a unique constraint violation.
func isDuplicateKeyError(err error) bool {
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		return pgErr.Code == "23505" // unique_violation
	}
	return false
}

func orderReporters(ids []int64, found map[int64]*models.Reporter) []*models.Reporter {
	out := make([]*models.Reporter, 0, len(found))
	for _, id := range ids {
		if r, ok := found[id]; ok {
			out = append(out, r)
		}
	}
	return out
}
