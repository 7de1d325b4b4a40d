package core

import "time"

// LogEntry is a single console.log/warn/error/... captured from a Context.
type LogEntry struct {
	Level   string    `json:"level"`
	Message string    `json:"message"`
	Time    time.Time `json:"time"`
}

// EvalResult wraps the value produced by evaluating or awaiting script,
// carrying both the engine's string/JSON rendering of the value and any
// execution metadata the host cares about.
type EvalResult struct {
	JSON     string
	Duration time.Duration
	Logs     []LogEntry
	Error    error
}
