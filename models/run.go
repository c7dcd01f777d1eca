package models

import "time"

type RunStatus string

const (
	RunStatusRunning   RunStatus = "running"
	RunStatusCompleted RunStatus = "completed"
	RunStatusFailed    RunStatus = "failed"
)

type LogLevel string

const (
	LogLevelInfo  LogLevel = "info"
	LogLevelWarn  LogLevel = "warn"
	LogLevelError LogLevel = "error"
)

type ScrapeRun struct {
	ID                  string     `json:"id" db:"id"`
	Kind                Kind       `json:"kind" db:"kind"`
	StartedAt           time.Time  `json:"started_at" db:"started_at"`
	FinishedAt          *time.Time `json:"finished_at" db:"finished_at"`
	Status              RunStatus  `json:"status" db:"status"`
	ListingsFound       int        `json:"listings_found" db:"listings_found"`
	ListingsInserted    int        `json:"listings_inserted" db:"listings_inserted"`
	ListingsUpdated     int        `json:"listings_updated" db:"listings_updated"`
	ListingsDeactivated int        `json:"listings_deactivated" db:"listings_deactivated"`
	RowsAppended        int        `json:"rows_appended" db:"rows_appended"`
	CellsUpdated        int        `json:"cells_updated" db:"cells_updated"`
	ErrorsCount         int        `json:"errors_count" db:"errors_count"`
}

type ScrapeLog struct {
	ID        int64     `json:"id" db:"id"`
	RunID     string    `json:"run_id" db:"run_id"`
	Timestamp time.Time `json:"timestamp" db:"timestamp"`
	Level     LogLevel  `json:"level" db:"level"`
	Message   string    `json:"message" db:"message"`
	Kind      Kind      `json:"kind" db:"kind"`
}
