package mocks

import (
	"context"
	"sync"

	"github.com/google/uuid"

	"github.com/phrazzld/webapp-api/internal/domain"
	"github.com/phrazzld/webapp-api/internal/service"
	"github.com/phrazzld/webapp-api/internal/store"
)

// MockReportSubmitter records submissions and, by default, returns a
// pending report with a fresh task ID.
type MockReportSubmitter struct {
	SubmitFn func(ctx context.Context, userID uuid.UUID) (*domain.Report, error)

	mu        sync.Mutex
	Submitted []uuid.UUID
}

func (m *MockReportSubmitter) Submit(ctx context.Context, userID uuid.UUID) (*domain.Report, error) {
	m.mu.Lock()
	m.Submitted = append(m.Submitted, userID)
	m.mu.Unlock()

	if m.SubmitFn != nil {
		return m.SubmitFn(ctx, userID)
	}
	report, err := domain.NewReport(userID)
	if err != nil {
		return nil, err
	}
	report.TaskID = uuid.NewString()
	return report, nil
}

// MockReportQuery implements service.ReportQuery.
type MockReportQuery struct {
	GetReportFn   func(ctx context.Context, id, ownerID uuid.UUID) (*domain.Report, error)
	ListReportsFn func(ctx context.Context, ownerID uuid.UUID, filter store.ReportFilter) ([]*domain.Report, error)
}

var _ service.ReportQuery = (*MockReportQuery)(nil)

func (m *MockReportQuery) GetReport(ctx context.Context, id, ownerID uuid.UUID) (*domain.Report, error) {
	if m.GetReportFn != nil {
		return m.GetReportFn(ctx, id, ownerID)
	}
	return nil, store.ErrReportNotFound
}

func (m *MockReportQuery) ListReports(
	ctx context.Context,
	ownerID uuid.UUID,
	filter store.ReportFilter,
) ([]*domain.Report, error) {
	if m.ListReportsFn != nil {
		return m.ListReportsFn(ctx, ownerID, filter)
	}
	return []*domain.Report{}, nil
}
