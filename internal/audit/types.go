package audit

import "time"

// Status is the lifecycle state of a logged command.
type Status string

const (
	// StatusSubmitted means the command was written to the hub and no
	// result has been recorded yet.
	StatusSubmitted Status = "submitted"
	// StatusSucceeded means the hub accepted the call.
	StatusSucceeded Status = "succeeded"
	// StatusFailed means the hub answered with an error, or the connection
	// dropped before it answered.
	StatusFailed Status = "failed"
	// StatusRejected means the command never reached the hub.
	StatusRejected Status = "rejected"
	// StatusUnanswered means no result arrived within the timeout.
	StatusUnanswered Status = "unanswered"
)

// Entry is one row of the command log.
type Entry struct {
	ID          string         `json:"id"`
	RequestID   int64          `json:"request_id,omitempty"`
	Domain      string         `json:"domain"`
	Service     string         `json:"service"`
	EntityID    string         `json:"entity_id,omitempty"`
	Data        map[string]any `json:"service_data,omitempty"`
	Source      string         `json:"source"`
	Status      Status         `json:"status"`
	Error       string         `json:"error,omitempty"`
	CreatedAt   time.Time      `json:"created_at"`
	CompletedAt *time.Time     `json:"completed_at,omitempty"`
}

// Filter controls which entries List returns. Empty fields match anything.
type Filter struct {
	Domain   string
	Service  string
	EntityID string
	Status   Status
	Limit    int // default 50, max 200
	Offset   int
}

// ListResult is a page of entries, newest first.
type ListResult struct {
	Entries []Entry `json:"entries"`
	Total   int     `json:"total"`
	Limit   int     `json:"limit"`
	Offset  int     `json:"offset"`
}

// Completion is the final outcome of a submitted command.
type Completion struct {
	ID     string
	Status Status
	Error  string
	At     time.Time
}
