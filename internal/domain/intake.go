package domain

import (
	"strconv"
	"strings"
)

// ResultKind classifies the outcome of an intake attempt.
type ResultKind string

// Intake outcome kinds.
const (
	KindAccepted       ResultKind = "accepted"
	KindForbidden      ResultKind = "forbidden"
	KindInvalidInput   ResultKind = "invalid_input"
	KindQuotaExceeded  ResultKind = "quota_exceeded"
	KindDuplicateEmail ResultKind = "duplicate_email"
	KindStorageError   ResultKind = "storage_error"
)

// User-facing intake messages.
const (
	MessageForbidden      = "request origin could not be verified."
	MessageMissingField   = "name or email is missing."
	MessageInvalidField   = "name or email is invalid."
	MessageQuotaExceeded  = "submission quota is full; contact us with further queries."
	MessageDuplicateEmail = "email already exists; try a different email."
	MessageAccepted       = "application received; we will respond soon"
)

// IntakeRequest is a raw submission as received from the form.
// The Present flags distinguish an absent field from an empty one.
type IntakeRequest struct {
	Name          string
	NamePresent   bool
	Email         string
	EmailPresent  bool
	SecurityToken string
}

// IntakeResult is the terminal outcome of one intake attempt.
type IntakeResult struct {
	Success bool
	Message string

	// Balance is the number of remaining quota slots. Only meaningful on success,
	// and may be negative when the limit was lowered below the current count.
	Balance int

	Kind ResultKind

	// SubmissionID is set on success.
	SubmissionID string

	// Err carries the underlying cause of a failure for logging.
	Err error
}

// Failed builds a failure result of the given kind.
func Failed(kind ResultKind, message string, cause error) *IntakeResult {
	return &IntakeResult{
		Success: false,
		Message: message,
		Kind:    kind,
		Err:     cause,
	}
}

// Accepted builds a success result.
func Accepted(submissionID string, balance int) *IntakeResult {
	return &IntakeResult{
		Success:      true,
		Message:      MessageAccepted,
		Balance:      balance,
		Kind:         KindAccepted,
		SubmissionID: submissionID,
	}
}

// Balance returns the remaining slots once a submission is placed at position count.
// The result is not clamped.
func Balance(limit, count int) int {
	return limit - count - 1
}

// ParseApplicationsLimit reads a stored quota value. Blank, non-numeric and
// negative values read as fallback.
func ParseApplicationsLimit(raw string, fallback int) int {
	n, err := strconv.Atoi(strings.TrimSpace(raw))
	if err != nil || n < 0 {
		return fallback
	}

	return n
}

// QuotaStatus summarizes quota usage for operators.
type QuotaStatus struct {
	Limit     int
	Count     int
	Remaining int
}

// NewQuotaStatus reports usage of limit by count. Remaining is negative when
// the limit was lowered below the count.
func NewQuotaStatus(limit, count int) *QuotaStatus {
	return &QuotaStatus{Limit: limit, Count: count, Remaining: limit - count}
}
