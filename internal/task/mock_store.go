package task

import (
	"context"
	"encoding/json"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/phrazzld/webapp-api/internal/domain"
	"github.com/phrazzld/webapp-api/internal/store"
)

// MockReportStore is an in-memory store.ReportStore for tests. It enforces
// the same transition rules as the database and keeps every status a report
// has passed through. The Fn fields, when set, replace the default behavior.
type MockReportStore struct {
	mu      sync.RWMutex
	reports map[uuid.UUID]*domain.Report
	history map[uuid.UUID][]domain.ReportStatus

	CreateFn      func(ctx context.Context, report *domain.Report) error
	GetFn         func(ctx context.Context, id uuid.UUID) (*domain.Report, error)
	MarkRunningFn func(ctx context.Context, id uuid.UUID) error
	ListFn        func(ctx context.Context, userID uuid.UUID, filter store.ReportFilter) ([]*domain.Report, error)
}

// NewMockReportStore creates an empty MockReportStore.
func NewMockReportStore() *MockReportStore {
	return &MockReportStore{
		reports: make(map[uuid.UUID]*domain.Report),
		history: make(map[uuid.UUID][]domain.ReportStatus),
	}
}

var _ store.ReportStore = (*MockReportStore)(nil)

// Seed inserts report as is, bypassing Create's checks.
func (s *MockReportStore) Seed(report *domain.Report) {
	s.mu.Lock()
	defer s.mu.Unlock()
	cp := *report
	s.reports[report.ID] = &cp
	s.history[report.ID] = []domain.ReportStatus{report.Status}
}

// History returns the statuses report id has held, in order.
func (s *MockReportStore) History(id uuid.UUID) []domain.ReportStatus {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return append([]domain.ReportStatus(nil), s.history[id]...)
}

// Snapshot returns a copy of report id, or nil.
func (s *MockReportStore) Snapshot(id uuid.UUID) *domain.Report {
	s.mu.RLock()
	defer s.mu.RUnlock()
	r, ok := s.reports[id]
	if !ok {
		return nil
	}
	cp := *r
	return &cp
}

func (s *MockReportStore) Create(ctx context.Context, report *domain.Report) error {
	if s.CreateFn != nil {
		return s.CreateFn(ctx, report)
	}
	if err := report.Validate(); err != nil {
		return err
	}
	s.Seed(report)
	return nil
}

func (s *MockReportStore) Get(ctx context.Context, id uuid.UUID) (*domain.Report, error) {
	if s.GetFn != nil {
		return s.GetFn(ctx, id)
	}
	if r := s.Snapshot(id); r != nil {
		return r, nil
	}
	return nil, store.ErrReportNotFound
}

func (s *MockReportStore) GetForOwner(ctx context.Context, id, userID uuid.UUID) (*domain.Report, error) {
	r, err := s.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	if r.UserID != userID {
		return nil, store.ErrReportNotFound
	}
	return r, nil
}

func (s *MockReportStore) AttachTaskID(ctx context.Context, id uuid.UUID, taskID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	r, ok := s.reports[id]
	if !ok {
		return store.ErrReportNotFound
	}
	if r.TaskID != "" {
		return store.ErrTaskIDAssigned
	}
	r.TaskID = taskID
	return nil
}

func (s *MockReportStore) MarkRunning(ctx context.Context, id uuid.UUID) error {
	if s.MarkRunningFn != nil {
		return s.MarkRunningFn(ctx, id)
	}
	return s.transition(id, domain.ReportStatusRunning, func(r *domain.Report) {})
}

func (s *MockReportStore) Complete(ctx context.Context, id uuid.UUID, result json.RawMessage, completedAt time.Time) error {
	return s.transition(id, domain.ReportStatusCompleted, func(r *domain.Report) {
		r.ResultData = append(json.RawMessage(nil), result...)
		r.CompletedAt = &completedAt
	})
}

func (s *MockReportStore) Fail(ctx context.Context, id uuid.UUID, message string, completedAt time.Time) error {
	return s.transition(id, domain.ReportStatusFailed, func(r *domain.Report) {
		r.ErrorMessage = &message
		r.CompletedAt = &completedAt
	})
}

func (s *MockReportStore) transition(id uuid.UUID, next domain.ReportStatus, apply func(r *domain.Report)) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	r, ok := s.reports[id]
	if !ok {
		return store.ErrReportNotFound
	}
	if !r.Status.CanTransitionTo(next) {
		return store.NewStoreError("report", "transition", string(r.Status)+" -> "+string(next),
			store.ErrInvalidTransition)
	}
	r.Status = next
	apply(r)
	s.history[id] = append(s.history[id], next)
	return nil
}

func (s *MockReportStore) List(ctx context.Context, userID uuid.UUID, filter store.ReportFilter) ([]*domain.Report, error) {
	if s.ListFn != nil {
		return s.ListFn(ctx, userID, filter)
	}
	out := s.filter(func(r *domain.Report) bool {
		return r.UserID == userID && (filter.Status == "" || r.Status == filter.Status)
	})
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.After(out[j].CreatedAt) })
	if limit := store.ClampLimit(filter.Limit); len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

func (s *MockReportStore) ListByStatus(ctx context.Context, status domain.ReportStatus) ([]*domain.Report, error) {
	out := s.filter(func(r *domain.Report) bool { return r.Status == status })
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.Before(out[j].CreatedAt) })
	return out, nil
}

func (s *MockReportStore) filter(keep func(r *domain.Report) bool) []*domain.Report {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make([]*domain.Report, 0)
	for _, r := range s.reports {
		if keep(r) {
			cp := *r
			out = append(out, &cp)
		}
	}
	return out
}
