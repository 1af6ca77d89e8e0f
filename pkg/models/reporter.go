package models

import "time"

// Reporter is one accepted client submission. Rows are not deduplicated;
// each one belongs to at most one LogGroup.
type Reporter struct {
	ID      int64     `db:"id"      json:"id"`
	Package string    `db:"package" json:"package"`
	NavURL  string    `db:"nav_url" json:"nav_url"`
	Version string    `db:"version" json:"version"`
	User    string    `db:"user"    json:"user"`
	Logs    string    `db:"logs"    json:"logs"`
	IP      string    `db:"ip"      json:"ip"`
	Time    time.Time `db:"time"    json:"time"`
}
