package models

import "time"

// StatisticsRecord is an append-only client configuration report.
type StatisticsRecord struct {
	ID                int64     `db:"id"                 json:"id"`
	CliType           string    `db:"cli_type"           json:"cli_type"`
	User              string    `db:"user"               json:"user"`
	Package           string    `db:"package"            json:"package"`
	ConfigurationInfo string    `db:"configuration_info" json:"configuration_info"`
	IP                string    `db:"ip"                 json:"ip"`
	Time              time.Time `db:"time"               json:"time"`
}

// DailyCount is the number of statistics rows recorded on one calendar day.
type DailyCount struct {
	Date  string `db:"date"  json:"date"`
	Count int64  `db:"count" json:"count"`
}
