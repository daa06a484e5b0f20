package enums

import "fmt"

// OutboxStatus tracks a queued sale through the push lifecycle.
type OutboxStatus string

const (
	OutboxStatusPending OutboxStatus = "pending"
	OutboxStatusSyncing OutboxStatus = "syncing"
	// OutboxStatusCompleted is reported but never stored; confirmed entries are deleted.
	OutboxStatusCompleted OutboxStatus = "completed"
	OutboxStatusFailed    OutboxStatus = "failed"
	OutboxStatusRejected  OutboxStatus = "rejected"
)

var validOutboxStatuses = []OutboxStatus{
	OutboxStatusPending,
	OutboxStatusSyncing,
	OutboxStatusCompleted,
	OutboxStatusFailed,
	OutboxStatusRejected,
}

// DueOutboxStatuses are eligible for a push attempt once their retry time elapses.
var DueOutboxStatuses = []OutboxStatus{OutboxStatusPending, OutboxStatusFailed}

// StoredOutboxStatuses are the values a persisted row can hold.
var StoredOutboxStatuses = []OutboxStatus{
	OutboxStatusPending,
	OutboxStatusSyncing,
	OutboxStatusFailed,
	OutboxStatusRejected,
}

// IsValid reports whether the value matches a known outbox status.
func (s OutboxStatus) IsValid() bool {
	for _, candidate := range validOutboxStatuses {
		if candidate == s {
			return true
		}
	}
	return false
}

func (s OutboxStatus) String() string {
	return string(s)
}

// ParseOutboxStatus converts raw input into OutboxStatus.
func ParseOutboxStatus(value string) (OutboxStatus, error) {
	for _, candidate := range validOutboxStatuses {
		if string(candidate) == value {
			return candidate, nil
		}
	}
	return "", fmt.Errorf("invalid outbox status %q", value)
}
