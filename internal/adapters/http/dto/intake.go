package dto

import (
	"errors"
	"fmt"
	"time"

	"github.com/jsamuelsen/application-intake/internal/domain"
)

// Form field names accepted by the intake endpoint.
const (
	FormFieldSecurityToken = "securityToken"
	FormFieldName          = "name"
	FormFieldEmail         = "email"
)

// CursorFieldReceivedAt names the sort field of submission listing cursors.
const CursorFieldReceivedAt = "received_at"

// IntakeResponse is the body of every intake answer.
// Balance is present only on success.
type IntakeResponse struct {
	Message string `json:"message"`
	Success bool   `json:"success"`
	Balance *int   `json:"balance,omitempty"`
}

// NewIntakeResponse converts an intake result to its wire form.
func NewIntakeResponse(result *domain.IntakeResult) IntakeResponse {
	resp := IntakeResponse{
		Message: result.Message,
		Success: result.Success,
	}

	if result.Success {
		balance := result.Balance
		resp.Balance = &balance
	}

	return resp
}

// FormTokenResponse carries what a form needs before submitting.
type FormTokenResponse struct {
	SecurityToken string `json:"securityToken"`
	SubmitURL     string `json:"submitUrl"`
}

// SubmissionRow is one line of the admin submission listing.
type SubmissionRow struct {
	ID        string    `json:"id"`
	Applicant string    `json:"applicant"`
	Email     string    `json:"email"`
	Status    string    `json:"status"`
	Received  time.Time `json:"received"`
}

// NewSubmissionRow converts a submission for the admin listing.
func NewSubmissionRow(s *domain.Submission) SubmissionRow {
	return SubmissionRow{
		ID:        s.ID,
		Applicant: s.Name,
		Email:     s.Email,
		Status:    s.Status,
		Received:  s.ReceivedAt.UTC(),
	}
}

// SubmissionCursor builds the cursor that continues after row.
func SubmissionCursor(row SubmissionRow) *CursorData {
	return NewCursor(CursorFieldReceivedAt, row.Received.Format(time.RFC3339Nano), row.ID)
}

// ListQueryFromCursor turns a pagination request into a store query.
// A missing cursor starts at the newest submission.
func ListQueryFromCursor(p *PaginationRequest) (domain.ListQuery, error) {
	query := domain.ListQuery{Limit: p.GetLimit()}

	cursor, err := p.DecodeCursor()
	if errors.Is(err, ErrNoCursor) {
		return query, nil
	}

	if err != nil {
		return query, err
	}

	if cursor.Field != CursorFieldReceivedAt || cursor.ID == "" {
		return query, ErrInvalidCursor
	}

	receivedAt, err := time.Parse(time.RFC3339Nano, cursor.Value)
	if err != nil {
		return query, fmt.Errorf("%w: %w", ErrInvalidCursor, err)
	}

	query.AfterReceivedAt = receivedAt
	query.AfterID = cursor.ID

	return query, nil
}

// QuotaSettingsResponse reports the quota, its usage, and what the caller
// may do with it.
type QuotaSettingsResponse struct {
	ApplicationsLimit int      `json:"applicationsLimit"`
	Count             int      `json:"count"`
	Remaining         int      `json:"remaining"`
	Capabilities      []string `json:"capabilities,omitempty"`
}

// NewQuotaSettingsResponse converts a quota status and the caller's
// granted capabilities.
func NewQuotaSettingsResponse(status *domain.QuotaStatus, capabilities []string) QuotaSettingsResponse {
	return QuotaSettingsResponse{
		ApplicationsLimit: status.Limit,
		Count:             status.Count,
		Remaining:         status.Remaining,
		Capabilities:      capabilities,
	}
}

// UpdateSettingsRequest changes the quota.
type UpdateSettingsRequest struct {
	ApplicationsLimit *int `json:"applicationsLimit" validate:"required,gte=0"`
}
