package grievance

import "strings"

// Status represents the handling status of a grievance
type Status string

const (
	StatusPending    Status = "Pending"
	StatusInProgress Status = "In Progress"
	StatusResolved   Status = "Resolved"
	StatusRejected   Status = "Rejected"
)

// allowedTransitions is the default workflow. A forced change bypasses it.
var allowedTransitions = map[Status][]Status{
	StatusPending:    {StatusInProgress, StatusResolved, StatusRejected},
	StatusInProgress: {StatusPending, StatusResolved, StatusRejected},
	StatusResolved:   {StatusInProgress},
	StatusRejected:   {StatusPending},
}

// IsValid checks if the Status is a known value
func (s Status) IsValid() bool {
	_, ok := allowedTransitions[s]
	return ok
}

// String returns the wire representation of Status
func (s Status) String() string {
	return string(s)
}

// IsClosed reports whether the grievance is no longer being worked on
func (s Status) IsClosed() bool {
	return s == StatusResolved || s == StatusRejected
}

// CanTransitionTo checks if the workflow allows moving to target
func (s Status) CanTransitionTo(target Status) bool {
	for _, next := range allowedTransitions[s] {
		if next == target {
			return true
		}
	}
	return false
}

// NextStatuses returns the statuses reachable from s without forcing
func (s Status) NextStatuses() []Status {
	next := allowedTransitions[s]
	out := make([]Status, len(next))
	copy(out, next)
	return out
}

// AllStatuses returns every status in display order
func AllStatuses() []Status {
	return []Status{StatusPending, StatusInProgress, StatusResolved, StatusRejected}
}

// ParseStatus accepts the wire value and a few lenient spellings
// ("in_progress", "IN-PROGRESS", "resolved").
func ParseStatus(raw string) (Status, bool) {
	normalized := strings.ToLower(strings.TrimSpace(raw))
	normalized = strings.NewReplacer("_", " ", "-", " ").Replace(normalized)
	for _, s := range AllStatuses() {
		if strings.ToLower(string(s)) == normalized {
			return s, true
		}
	}
	return "", false
}
