package convo

import "strings"

// Status is the lifecycle state of a call session.
type Status int

const (
	StatusInitiated Status = iota
	StatusAnswered
	StatusListening
	StatusCompleted
	StatusFailed
)

// String returns the string representation of a Status.
func (s Status) String() string {
	switch s {
	case StatusInitiated:
		return "INITIATED"
	case StatusAnswered:
		return "ANSWERED"
	case StatusListening:
		return "LISTENING"
	case StatusCompleted:
		return "COMPLETED"
	case StatusFailed:
		return "FAILED"
	default:
		return "UNKNOWN"
	}
}

// Terminal reports whether no further transitions are allowed from s.
func (s Status) Terminal() bool {
	return s == StatusCompleted || s == StatusFailed
}

// validTransitions encodes the session lifecycle. FAILED is reachable from
// any non-terminal state; LISTENING loops on itself for each speech turn.
var validTransitions = map[Status][]Status{
	StatusInitiated: {StatusAnswered, StatusFailed},
	StatusAnswered:  {StatusListening, StatusFailed},
	StatusListening: {StatusListening, StatusCompleted, StatusFailed},
}

// ValidTransition reports whether from -> to is an allowed status change.
func ValidTransition(from, to Status) bool {
	for _, allowed := range validTransitions[from] {
		if allowed == to {
			return true
		}
	}
	return false
}

// Transition validates and returns the new status.
func Transition(from, to Status) (Status, error) {
	if !ValidTransition(from, to) {
		return from, &InvalidTransitionError{From: from, To: to}
	}
	return to, nil
}

// InvalidTransitionError represents an invalid status transition attempt.
type InvalidTransitionError struct {
	From Status
	To   Status
}

func (e *InvalidTransitionError) Error() string {
	return "invalid status transition from " + e.From.String() + " to " + e.To.String()
}

// Outcome is a normalized terminal call result reported by the provider.
type Outcome int

const (
	OutcomeNone Outcome = iota // non-terminal, nothing to do
	OutcomeCompleted
	OutcomeBusy
	OutcomeNoAnswer
	OutcomeCanceled
	OutcomeFailed
	OutcomeUnknown
)

// NormalizeCallStatus maps a provider call status to an Outcome. Statuses the
// provider vocabulary does not cover are treated as failed terminals.
func NormalizeCallStatus(raw string) Outcome {
	r := strings.ToLower(strings.TrimSpace(raw))
	if r == "" {
		return OutcomeNone
	}
	switch r {
	case "queued", "initiated", "ringing", "in-progress", "inprogress", "answered":
		return OutcomeNone
	case "completed", "call_ended", "call-ended", "hangup":
		return OutcomeCompleted
	case "busy":
		return OutcomeBusy
	case "no_answer", "noanswer", "no-answer":
		return OutcomeNoAnswer
	case "canceled", "cancelled":
		return OutcomeCanceled
	case "failed", "error":
		return OutcomeFailed
	default:
		return OutcomeUnknown
	}
}

// Terminal reports whether the outcome ends the call.
func (o Outcome) Terminal() bool {
	return o != OutcomeNone
}

// Completed reports a normal call completion.
func (o Outcome) Completed() bool {
	return o == OutcomeCompleted
}
