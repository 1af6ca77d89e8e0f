// Package models contains shared data models used across the logsink codebase.
package models

import "time"

// Group status values. A resolved group that receives a new submission is
// reopened rather than returned to open.
const (
	StatusOpen     = 0
	StatusResolved = 1
	StatusReopened = -1
)

// LogGroup is one deduplicated error signature. Hash is derived from the
// normalized message and the log type and is unique across the table.
type LogGroup struct {
	ID             int64     `db:"id"              json:"id"`
	Hash           string    `db:"hash"            json:"hash"`
	LogType        string    `db:"log_type"        json:"log_type"`
	Message        string    `db:"message"         json:"message"`
	Members        []int64   `db:"-"               json:"user_list"`
	TotalCount     int       `db:"total_count"     json:"total_count"`
	FirstTime      time.Time `db:"first_time"      json:"first_time"`
	LastTime       time.Time `db:"last_time"       json:"last_time"`
	Status         int       `db:"status"          json:"status"`
	ResolutionTime time.Time `db:"resolution_time" json:"resolution_time"`
}

// Resolved reports whether the group is currently marked resolved.
func (g *LogGroup) Resolved() bool {
	return g.Status == StatusResolved
}
