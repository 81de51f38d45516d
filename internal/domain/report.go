package domain

import (
	"encoding/json"
	"time"

	"github.com/google/uuid"
)

// ReportStatus is the lifecycle state of a report.
type ReportStatus string

// Possible report status values. Transitions only move forward:
// pending -> running -> completed|failed. A pending report may also fail
// directly when it can never be dispatched.
const (
	ReportStatusPending   ReportStatus = "pending"
	ReportStatusRunning   ReportStatus = "running"
	ReportStatusCompleted ReportStatus = "completed"
	ReportStatusFailed    ReportStatus = "failed"
)

// ParseReportStatus returns the status named by s.
func ParseReportStatus(s string) (ReportStatus, error) {
	status := ReportStatus(s)
	if !status.Valid() {
		return "", ErrInvalidReportStatus
	}
	return status, nil
}

// Valid reports whether s is one of the known statuses.
func (s ReportStatus) Valid() bool {
	switch s {
	case ReportStatusPending, ReportStatusRunning, ReportStatusCompleted, ReportStatusFailed:
		return true
	}
	return false
}

// IsTerminal reports whether no further transition is possible.
func (s ReportStatus) IsTerminal() bool {
	return s == ReportStatusCompleted || s == ReportStatusFailed
}

// CanTransitionTo reports whether next is a legal successor of s.
func (s ReportStatus) CanTransitionTo(next ReportStatus) bool {
	switch s {
	case ReportStatusPending:
		return next == ReportStatusRunning || next == ReportStatusFailed
	case ReportStatusRunning:
		return next == ReportStatusCompleted || next == ReportStatusFailed
	}
	return false
}

// Predecessors returns the statuses from which next can be reached.
// Stores use it to guard updates atomically.
func (s ReportStatus) Predecessors() []ReportStatus {
	var out []ReportStatus
	for _, from := range []ReportStatus{ReportStatusPending, ReportStatusRunning} {
		if from.CanTransitionTo(s) {
			out = append(out, from)
		}
	}
	return out
}

// Report is the persisted status record of one asynchronously built report.
//
// TaskID is empty until the executor accepts the work and never changes after.
// Once Status is terminal exactly one of ResultData and ErrorMessage is set.
type Report struct {
	ID           uuid.UUID       `json:"id"`
	UserID       uuid.UUID       `json:"user"`
	TaskID       string          `json:"task_id"`
	Status       ReportStatus    `json:"status"`
	CreatedAt    time.Time       `json:"created_at"`
	CompletedAt  *time.Time      `json:"completed_at"`
	ResultData   json.RawMessage `json:"result_data"`
	ErrorMessage *string         `json:"error_message"`
}

// NewReport creates a pending report owned by userID.
func NewReport(userID uuid.UUID) (*Report, error) {
	report := &Report{
		ID:        uuid.New(),
		UserID:    userID,
		Status:    ReportStatusPending,
		CreatedAt: time.Now().UTC(),
	}

	if err := report.Validate(); err != nil {
		return nil, err
	}
	return report, nil
}

// Validate checks the report's fields and the terminal-outcome invariant.
func (r *Report) Validate() error {
	if r.ID == uuid.Nil {
		return NewValidationError("id", "cannot be empty")
	}
	if r.UserID == uuid.Nil {
		return NewValidationError("user", "cannot be empty")
	}
	if !r.Status.Valid() {
		return NewValidationError("status", ErrInvalidReportStatus.Error())
	}
	if r.CreatedAt.IsZero() {
		return NewValidationError("created_at", "cannot be zero")
	}

	hasResult := r.ResultData != nil
	hasError := r.ErrorMessage != nil
	switch r.Status {
	case ReportStatusCompleted:
		if !hasResult || hasError {
			return NewValidationError("result_data", "completed report must carry a result and no error")
		}
	case ReportStatusFailed:
		if hasResult || !hasError {
			return NewValidationError("error_message", "failed report must carry an error and no result")
		}
	default:
		if hasResult || hasError {
			return NewValidationError("status", "non-terminal report cannot carry an outcome")
		}
		if r.CompletedAt != nil {
			return NewValidationError("completed_at", "set before the report finished")
		}
	}
	if r.Status.IsTerminal() && r.CompletedAt == nil {
		return NewValidationError("completed_at", "required once the report finished")
	}
	return nil
}
