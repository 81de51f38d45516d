package store

import (
	"context"
	"encoding/json"
	"time"

	"github.com/google/uuid"

	"github.com/phrazzld/webapp-api/internal/domain"
)

// Report listing bounds.
const (
	DefaultReportListLimit = 50
	MaxReportListLimit     = 100
)

// ReportFilter narrows List. A zero Status matches every status.
type ReportFilter struct {
	Status domain.ReportStatus
	Limit  int
}

// ReportStore persists report status records.
//
// Status updates are conditional on the current status, so a report can never
// be observed moving backwards. An update whose precondition does not hold
// returns ErrInvalidTransition; an unknown ID returns ErrReportNotFound.
type ReportStore interface {
	// Create inserts a pending report with an empty task ID.
	Create(ctx context.Context, report *domain.Report) error

	// Get loads a report by ID regardless of owner. Only the executor uses it.
	Get(ctx context.Context, id uuid.UUID) (*domain.Report, error)

	// GetForOwner loads a report only if it belongs to userID.
	// Returns ErrReportNotFound for both missing and foreign reports.
	GetForOwner(ctx context.Context, id, userID uuid.UUID) (*domain.Report, error)

	// AttachTaskID sets the executor reference once.
	// Returns ErrTaskIDAssigned if the report already has one.
	AttachTaskID(ctx context.Context, id uuid.UUID, taskID string) error

	// MarkRunning moves a pending report to running.
	MarkRunning(ctx context.Context, id uuid.UUID) error

	// Complete moves a running report to completed and stores its result.
	Complete(ctx context.Context, id uuid.UUID, result json.RawMessage, completedAt time.Time) error

	// Fail moves a pending or running report to failed and stores the message.
	Fail(ctx context.Context, id uuid.UUID, message string, completedAt time.Time) error

	// List returns userID's reports, newest first.
	List(ctx context.Context, userID uuid.UUID, filter ReportFilter) ([]*domain.Report, error)

	// ListByStatus returns every report in status, oldest first.
	ListByStatus(ctx context.Context, status domain.ReportStatus) ([]*domain.Report, error)
}

// ClampLimit applies the default and maximum list sizes.
func ClampLimit(limit int) int {
	if limit <= 0 {
		return DefaultReportListLimit
	}
	if limit > MaxReportListLimit {
		return MaxReportListLimit
	}
	return limit
}
