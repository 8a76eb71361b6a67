// Package domain contains core business entities and rules.
package domain

import "time"

// SubmissionStatusAccepted is the status every new submission is created with.
const SubmissionStatusAccepted = "accepted"

// Submission is an applicant record accepted through the intake form.
// No two submissions share an email address.
type Submission struct {
	// ID is the unique identifier assigned on creation.
	ID string

	// Name is the sanitized applicant name.
	Name string

	// Email is the normalized applicant email.
	Email string

	// Status is always SubmissionStatusAccepted on creation.
	Status string

	// ReceivedAt is when the submission was stored.
	ReceivedAt time.Time
}

// NewSubmission creates an accepted submission for an already sanitized name and email.
func NewSubmission(id, name, email string, receivedAt time.Time) *Submission {
	return &Submission{
		ID:         id,
		Name:       name,
		Email:      email,
		Status:     SubmissionStatusAccepted,
		ReceivedAt: receivedAt,
	}
}

// ListQuery selects a page of submissions ordered newest first.
// When AfterID is set, only submissions strictly older than
// (AfterReceivedAt, AfterID) are returned.
type ListQuery struct {
	Limit           int
	AfterReceivedAt time.Time
	AfterID         string
}

// HasCursor reports whether the query continues from a previous page.
func (q ListQuery) HasCursor() bool {
	return q.AfterID != ""
}

// Before reports whether s sorts after the cursor position (newest first).
func (q ListQuery) Before(s *Submission) bool {
	if !q.HasCursor() {
		return true
	}

	if s.ReceivedAt.Equal(q.AfterReceivedAt) {
		return s.ID < q.AfterID
	}

	return s.ReceivedAt.Before(q.AfterReceivedAt)
}
