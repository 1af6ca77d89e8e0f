package store

import (
	"context"
	"database/sql"
	"database/sql/driver"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/jmoiron/sqlx"
	"github.com/kiranshivaraju/logsink/internal/grouping"
	"github.com/kiranshivaraju/logsink/pkg/models"
	_ "modernc.org/sqlite"
)

// sqliteSchema mirrors migrations/000001_init.up.sql for SQLite.
const sqliteSchema = `
CREATE TABLE IF NOT EXISTS upload_user (
    id       INTEGER PRIMARY KEY AUTOINCREMENT,
    package  TEXT NOT NULL DEFAULT '',
    nav_url  TEXT NOT NULL DEFAULT '',
    version  TEXT NOT NULL DEFAULT '',
    user     TEXT NOT NULL DEFAULT '',
    logs     TEXT NOT NULL DEFAULT '',
    ip       TEXT NOT NULL DEFAULT '',
    time     TEXT NOT NULL
);

CREATE TABLE IF NOT EXISTS upload_log (
    id              INTEGER PRIMARY KEY AUTOINCREMENT,
    hash            TEXT    NOT NULL UNIQUE,
    log_type        TEXT    NOT NULL,
    message         TEXT    NOT NULL DEFAULT '',
    user_list       TEXT    NOT NULL DEFAULT '',
    total_count     INTEGER NOT NULL DEFAULT 0,
    first_time      TEXT    NOT NULL,
    last_time       TEXT    NOT NULL,
    status          INTEGER NOT NULL DEFAULT 0,
    resolution_time TEXT    NOT NULL
);

CREATE INDEX IF NOT EXISTS idx_upload_log_log_type ON upload_log(log_type);
CREATE INDEX IF NOT EXISTS idx_upload_log_last_time ON upload_log(last_time DESC);

CREATE TABLE IF NOT EXISTS upload_statistics_cli_cfg (
    id                 INTEGER PRIMARY KEY AUTOINCREMENT,
    cli_type           TEXT NOT NULL,
    user               TEXT NOT NULL DEFAULT '',
    package            TEXT NOT NULL DEFAULT '',
    configuration_info TEXT NOT NULL DEFAULT '',
    ip                 TEXT NOT NULL DEFAULT '',
    time               TEXT NOT NULL
);

CREATE INDEX IF NOT EXISTS idx_upload_statistics_cli_type_time ON upload_statistics_cli_cfg(cli_type, time);
`

const sqlitePragmas = `
PRAGMA busy_timeout = 10000;
PRAGMA foreign_keys = ON;
`

// sqliteTimeLayout sorts lexically and is understood by DATE().
const sqliteTimeLayout = "2006-01-02 15:04:05.000000"

// SQLiteStore implements the Store interface on a single SQLite connection.
type SQLiteStore struct {
	db *sqlx.DB
}

// NewSQLiteStore opens (creating if needed) the database at path and applies
// the schema. Use ":memory:" for a throwaway database.
func NewSQLiteStore(ctx context.Context, path string) (*SQLiteStore, error) {
	db, err := sqlx.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}

	// One connection serializes writes and keeps :memory: databases alive.
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)
	db.SetConnMaxLifetime(0)

	if _, err := db.ExecContext(ctx, sqlitePragmas); err != nil {
		db.Close()
		return nil, fmt.Errorf("set pragmas: %w", err)
	}
	if _, err := db.ExecContext(ctx, sqliteSchema); err != nil {
		db.Close()
		return nil, fmt.Errorf("create schema: %w", err)
	}

	return &SQLiteStore{db: db}, nil
}

func (s *SQLiteStore) Ping(ctx context.Context) error {
	return s.db.PingContext(ctx)
}

func (s *SQLiteStore) Close() {
	s.db.Close()
}

// sqliteTime stores timestamps as UTC text. Scan also accepts the native
// time values some drivers return for DATETIME columns.
type sqliteTime time.Time

func (t sqliteTime) Value() (driver.Value, error) {
	return time.Time(t).UTC().Format(sqliteTimeLayout), nil
}

func (t *sqliteTime) Scan(src any) error {
	switch v := src.(type) {
	case time.Time:
		*t = sqliteTime(v.UTC())
		return nil
	case string:
		return t.parse(v)
	case []byte:
		return t.parse(string(v))
	case int64:
		*t = sqliteTime(time.Unix(v, 0).UTC())
		return nil
	case nil:
		*t = sqliteTime(time.Time{})
		return nil
	}
	return fmt.Errorf("unsupported time value %T", src)
}

func (t *sqliteTime) parse(s string) error {
	for _, layout := range []string{sqliteTimeLayout, "2006-01-02 15:04:05.999999999", "2006-01-02 15:04:05", time.RFC3339Nano} {
		if parsed, err := time.ParseInLocation(layout, s, time.UTC); err == nil {
			*t = sqliteTime(parsed.UTC())
			return nil
		}
	}
	return fmt.Errorf("parse time %q", s)
}

type groupRow struct {
	ID             int64      `db:"id"`
	Hash           string     `db:"hash"`
	LogType        string     `db:"log_type"`
	Message        string     `db:"message"`
	UserList       string     `db:"user_list"`
	TotalCount     int        `db:"total_count"`
	FirstTime      sqliteTime `db:"first_time"`
	LastTime       sqliteTime `db:"last_time"`
	Status         int        `db:"status"`
	ResolutionTime sqliteTime `db:"resolution_time"`
}

func (r groupRow) model() *models.LogGroup {
	return &models.LogGroup{
		ID:             r.ID,
		Hash:           r.Hash,
		LogType:        r.LogType,
		Message:        r.Message,
		Members:        grouping.ParseMembers(r.UserList),
		TotalCount:     r.TotalCount,
		FirstTime:      time.Time(r.FirstTime),
		LastTime:       time.Time(r.LastTime),
		Status:         r.Status,
		ResolutionTime: time.Time(r.ResolutionTime),
	}
}

type reporterRow struct {
	ID      int64      `db:"id"`
	Package string     `db:"package"`
	NavURL  string     `db:"nav_url"`
	Version string     `db:"version"`
	User    string     `db:"user"`
	Logs    string     `db:"logs"`
	IP      string     `db:"ip"`
	Time    sqliteTime `db:"time"`
}

func (r reporterRow) model() *models.Reporter {
	return &models.Reporter{
		ID:      r.ID,
		Package: r.Package,
		NavURL:  r.NavURL,
		Version: r.Version,
		User:    r.User,
		Logs:    r.Logs,
		IP:      r.IP,
		Time:    time.Time(r.Time),
	}
}

// --- Log groups ---

func (s *SQLiteStore) GetGroup(ctx context.Context, hash string) (*models.LogGroup, error) {
	var row groupRow
	err := s.db.GetContext(ctx, &row, `SELECT `+groupColumns+` FROM upload_log WHERE hash = ?`, hash)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("get log group: %w", err)
	}
	return row.model(), nil
}

func (s *SQLiteStore) CreateGroup(ctx context.Context, group *models.LogGroup) error {
	res, err := s.db.ExecContext(ctx,
		`INSERT INTO upload_log (hash, log_type, message, user_list, total_count, first_time, last_time, status, resolution_time)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		group.Hash, group.LogType, group.Message, grouping.Members(group.Members).String(), group.TotalCount,
		sqliteTime(group.FirstTime), sqliteTime(group.LastTime), group.Status, sqliteTime(group.ResolutionTime))
	if err != nil {
		if isSQLiteConstraintError(err) {
			return ErrDuplicateKey
		}
		return fmt.Errorf("create log group: %w", err)
	}
	id, err := res.LastInsertId()
	if err != nil {
		return fmt.Errorf("create log group id: %w", err)
	}
	group.ID = id
	return nil
}

func (s *SQLiteStore) UpdateGroup(ctx context.Context, group *models.LogGroup) error {
	res, err := s.db.ExecContext(ctx,
		`UPDATE upload_log SET user_list = ?, total_count = ?, last_time = ?, status = ?, resolution_time = ?
		 WHERE hash = ?`,
		grouping.Members(group.Members).String(), group.TotalCount, sqliteTime(group.LastTime),
		group.Status, sqliteTime(group.ResolutionTime), group.Hash)
	if err != nil {
		return fmt.Errorf("update log group: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("update log group: %w", err)
	}
	if n == 0 {
		return ErrNotFound
	}
	return nil
}

func sqliteGroupWhere(filter GroupFilter) (string, []any) {
	var conditions []string
	var args []any

	if filter.LogType != "" {
		conditions = append(conditions, "log_type = ?")
		args = append(args, filter.LogType)
	}
	if filter.Status != nil {
		conditions = append(conditions, "status = ?")
		args = append(args, *filter.Status)
	}

	if len(conditions) == 0 {
		return "", args
	}
	return " WHERE " + strings.Join(conditions, " AND "), args
}

func (s *SQLiteStore) CountGroups(ctx context.Context, filter GroupFilter) (int, error) {
	where, args := sqliteGroupWhere(filter)
	var total int
	if err := s.db.GetContext(ctx, &total, "SELECT COUNT(*) FROM upload_log"+where, args...); err != nil {
		return 0, fmt.Errorf("count log groups: %w", err)
	}
	return total, nil
}

func (s *SQLiteStore) ListGroups(ctx context.Context, filter GroupFilter) ([]*models.LogGroup, error) {
	where, args := sqliteGroupWhere(filter)
	query := `SELECT ` + groupColumns + ` FROM upload_log` + where + ` ORDER BY last_time DESC, id DESC`
	if filter.Limit > 0 {
		query += " LIMIT ? OFFSET ?"
		args = append(args, filter.Limit, filter.Offset)
	}

	var rows []groupRow
	if err := s.db.SelectContext(ctx, &rows, query, args...); err != nil {
		return nil, fmt.Errorf("list log groups: %w", err)
	}
	groups := make([]*models.LogGroup, 0, len(rows))
	for _, r := range rows {
		groups = append(groups, r.model())
	}
	return groups, nil
}

func (s *SQLiteStore) DeleteGroup(ctx context.Context, hash string) error {
	tx, err := s.db.BeginTxx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin delete log group: %w", err)
	}
	defer tx.Rollback()

	var userList string
	err = tx.GetContext(ctx, &userList, `SELECT user_list FROM upload_log WHERE hash = ?`, hash)
	if errors.Is(err, sql.ErrNoRows) {
		return ErrNotFound
	}
	if err != nil {
		return fmt.Errorf("select log group: %w", err)
	}

	if err := deleteReporters(ctx, tx, grouping.ParseMembers(userList)); err != nil {
		return err
	}
	if _, err := tx.ExecContext(ctx, `DELETE FROM upload_log WHERE hash = ?`, hash); err != nil {
		return fmt.Errorf("delete log group: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit delete log group: %w", err)
	}
	return nil
}

func (s *SQLiteStore) DeleteGroupsByType(ctx context.Context, logType string) (int, error) {
	tx, err := s.db.BeginTxx(ctx, nil)
	if err != nil {
		return 0, fmt.Errorf("begin clear log type: %w", err)
	}
	defer tx.Rollback()

	var lists []string
	if err := tx.SelectContext(ctx, &lists, `SELECT user_list FROM upload_log WHERE log_type = ?`, logType); err != nil {
		return 0, fmt.Errorf("select log groups: %w", err)
	}
	var ids []int64
	for _, l := range lists {
		ids = append(ids, grouping.ParseMembers(l)...)
	}

	if err := deleteReporters(ctx, tx, ids); err != nil {
		return 0, err
	}
	res, err := tx.ExecContext(ctx, `DELETE FROM upload_log WHERE log_type = ?`, logType)
	if err != nil {
		return 0, fmt.Errorf("delete log groups: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("delete log groups: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return 0, fmt.Errorf("commit clear log type: %w", err)
	}
	return int(n), nil
}

// sqliteMaxVars keeps IN lists under SQLite's bound-parameter limit.
const sqliteMaxVars = 500

func deleteReporters(ctx context.Context, tx *sqlx.Tx, ids []int64) error {
	for start := 0; start < len(ids); start += sqliteMaxVars {
		end := min(start+sqliteMaxVars, len(ids))
		query, args, err := sqlx.In(`DELETE FROM upload_user WHERE id IN (?)`, ids[start:end])
		if err != nil {
			return fmt.Errorf("build reporter delete: %w", err)
		}
		if _, err := tx.ExecContext(ctx, tx.Rebind(query), args...); err != nil {
			return fmt.Errorf("delete reporters: %w", err)
		}
	}
	return nil
}

// --- Reporters ---

func (s *SQLiteStore) CreateReporter(ctx context.Context, reporter *models.Reporter) error {
	res, err := s.db.ExecContext(ctx,
		`INSERT INTO upload_user (package, nav_url, version, user, logs, ip, time)
		 VALUES (?, ?, ?, ?, ?, ?, ?)`,
		reporter.Package, reporter.NavURL, reporter.Version, reporter.User,
		reporter.Logs, reporter.IP, sqliteTime(reporter.Time))
	if err != nil {
		return fmt.Errorf("create reporter: %w", err)
	}
	id, err := res.LastInsertId()
	if err != nil {
		return fmt.Errorf("create reporter id: %w", err)
	}
	reporter.ID = id
	return nil
}

func (s *SQLiteStore) GetReporter(ctx context.Context, id int64) (*models.Reporter, error) {
	var row reporterRow
	err := s.db.GetContext(ctx, &row, `SELECT `+reporterColumns+` FROM upload_user WHERE id = ?`, id)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("get reporter: %w", err)
	}
	return row.model(), nil
}

func (s *SQLiteStore) GetReporters(ctx context.Context, ids []int64) ([]*models.Reporter, error) {
	if len(ids) == 0 {
		return []*models.Reporter{}, nil
	}

	found := make(map[int64]*models.Reporter, len(ids))
	for start := 0; start < len(ids); start += sqliteMaxVars {
		end := min(start+sqliteMaxVars, len(ids))
		query, args, err := sqlx.In(`SELECT `+reporterColumns+` FROM upload_user WHERE id IN (?)`, ids[start:end])
		if err != nil {
			return nil, fmt.Errorf("build reporter query: %w", err)
		}
		var rows []reporterRow
		if err := s.db.SelectContext(ctx, &rows, s.db.Rebind(query), args...); err != nil {
			return nil, fmt.Errorf("get reporters: %w", err)
		}
		for _, r := range rows {
			found[r.ID] = r.model()
		}
	}
	return orderReporters(ids, found), nil
}

// --- Statistics ---

func (s *SQLiteStore) CreateStatistics(ctx context.Context, rec *models.StatisticsRecord) error {
	res, err := s.db.ExecContext(ctx,
		`INSERT INTO upload_statistics_cli_cfg (cli_type, user, package, configuration_info, ip, time)
		 VALUES (?, ?, ?, ?, ?, ?)`,
		rec.CliType, rec.User, rec.Package, rec.ConfigurationInfo, rec.IP, sqliteTime(rec.Time))
	if err != nil {
		return fmt.Errorf("create statistics record: %w", err)
	}
	id, err := res.LastInsertId()
	if err != nil {
		return fmt.Errorf("create statistics record id: %w", err)
	}
	rec.ID = id
	return nil
}

func (s *SQLiteStore) DailyStatistics(ctx context.Context, cliType string) ([]models.DailyCount, error) {
	counts := []models.DailyCount{}
	err := s.db.SelectContext(ctx, &counts,
		`SELECT DATE(time) AS date, COUNT(*) AS count
		 FROM upload_statistics_cli_cfg
		 WHERE cli_type = ?
		 GROUP BY DATE(time)
		 ORDER BY DATE(time)`, cliType)
	if err != nil {
		return nil, fmt.Errorf("daily statistics: %w", err)
	}
	return counts, nil
}

func (s *SQLiteStore) EachConfiguration(ctx context.Context, fn func(cliType, configurationInfo string) error) error {
	rows, err := s.db.QueryxContext(ctx,
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

func isSQLiteConstraintError(err error) bool {
	return strings.Contains(err.Error(), "UNIQUE constraint failed")
}
