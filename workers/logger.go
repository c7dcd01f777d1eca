package workers

import "finnsync/models"

// LogFunc records a run-level message, typically into scrape_logs.
type LogFunc func(level models.LogLevel, kind models.Kind, message string)

// NoOpLogger does nothing (default)
var NoOpLogger LogFunc = func(level models.LogLevel, kind models.Kind, message string) {}
