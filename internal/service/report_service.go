package service

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/google/uuid"

	"github.com/phrazzld/webapp-api/internal/domain"
	"github.com/phrazzld/webapp-api/internal/store"
)

// ReportQuery is the read side of the report pipeline. Every read is scoped
// to the caller: a report owned by someone else is reported as not found.
type ReportQuery interface {
	GetReport(ctx context.Context, id, ownerID uuid.UUID) (*domain.Report, error)
	ListReports(ctx context.Context, ownerID uuid.UUID, filter store.ReportFilter) ([]*domain.Report, error)
}

// ReportQueryService implements ReportQuery over a store.ReportStore.
type ReportQueryService struct {
	reports store.ReportStore
	logger  *slog.Logger
}

// NewReportQueryService creates a ReportQueryService.
func NewReportQueryService(reports store.ReportStore, logger *slog.Logger) *ReportQueryService {
	return &ReportQueryService{
		reports: reports,
		logger:  logger.With("component", "report_query"),
	}
}

var _ ReportQuery = (*ReportQueryService)(nil)

// GetReport returns store.ErrReportNotFound for missing and foreign reports alike.
func (s *ReportQueryService) GetReport(ctx context.Context, id, ownerID uuid.UUID) (*domain.Report, error) {
	report, err := s.reports.GetForOwner(ctx, id, ownerID)
	if err != nil {
		return nil, fmt.Errorf("failed to get report: %w", err)
	}
	return report, nil
}

// ListReports returns the owner's reports newest first. A zero limit means
// the default page size; larger limits are capped.
func (s *ReportQueryService) ListReports(
	ctx context.Context,
	ownerID uuid.UUID,
	filter store.ReportFilter,
) ([]*domain.Report, error) {
	if filter.Limit < 0 {
		return nil, ErrInvalidListLimit
	}
	if filter.Status != "" && !filter.Status.Valid() {
		return nil, fmt.Errorf("%w: %q", domain.ErrInvalidReportStatus, filter.Status)
	}
	filter.Limit = store.ClampLimit(filter.Limit)

	reports, err := s.reports.List(ctx, ownerID, filter)
	if err != nil {
		s.logger.Error("failed to list reports", "error", err, "user_id", ownerID)
		return nil, fmt.Errorf("failed to list reports: %w", err)
	}
	return reports, nil
}
