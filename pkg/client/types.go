package client

import (
	"fmt"
	"time"
)

// StartResponse is returned by POST /scheduler/start.
type StartResponse struct {
	Status string `json:"status"`
	Handle string `json:"handle,omitempty"`
	Error  string `json:"error,omitempty"`
}

// AlreadyRunning reports whether the daemon found the scheduler live and
// did not spawn a new one.
func (r StartResponse) AlreadyRunning() bool { return r.Status == "already_running" }

// SchedulerState is the detailed view served by GET /scheduler/state.
type SchedulerState struct {
	State     string    `json:"state"`
	Running   bool      `json:"running"`
	Handle    string    `json:"handle,omitempty"`
	StartedAt time.Time `json:"started_at,omitzero"`
	Mode      string    `json:"mode"`
}

// LogFiles lists the log files stored for one date.
type LogFiles struct {
	Files     []string `json:"files"`
	LocalPath string   `json:"local_path"`
}

// LogFileContent is the body of a single dated log file.
type LogFileContent struct {
	Filename  string `json:"filename"`
	Content   string `json:"content"`
	LocalPath string `json:"local_path"`
}

// Summary maps category -> outcome -> count.
type Summary map[string]map[string]int

// Total returns the number of classified lines.
func (s Summary) Total() int {
	n := 0
	for _, outcomes := range s {
		for _, v := range outcomes {
			n += v
		}
	}
	return n
}

type summaryResponse struct {
	Summary Summary `json:"summary"`
	Error   string  `json:"error,omitempty"`
}

// ErrorResponse is the JSON error body returned by the daemon.
type ErrorResponse struct {
	Status string `json:"status,omitempty"`
	Error  string `json:"error"`
}

// APIError is returned for any non-2xx response.
type APIError struct {
	StatusCode int
	Message    string
}

func (e *APIError) Error() string {
	if e.Message == "" {
		return fmt.Sprintf("HTTP %d", e.StatusCode)
	}
	return fmt.Sprintf("API error (HTTP %d): %s", e.StatusCode, e.Message)
}

// HistoryEvent is one lifecycle record returned by GET /scheduler/history.
type HistoryEvent struct {
	Type       string    `json:"type"`
	OccurredAt time.Time `json:"occurred_at"`
	Name       string    `json:"name"`
	Handle     string    `json:"handle,omitempty"`
	Mode       string    `json:"mode,omitempty"`
	Error      string    `json:"error,omitempty"`
}

type historyResponse struct {
	Events []HistoryEvent `json:"events"`
}
