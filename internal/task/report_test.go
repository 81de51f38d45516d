package task

import (
	"context"
	"encoding/json"
	"errors"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/phrazzld/webapp-api/internal/domain"
	"github.com/phrazzld/webapp-api/internal/metrics"
	"github.com/phrazzld/webapp-api/internal/store"
)

func newTestExecutor(t *testing.T, builder ReportBuilder, timeLimit time.Duration) (*ReportExecutor, *MockReportStore) {
	t.Helper()

	reports := NewMockReportStore()
	runner := NewRunner(RunnerConfig{WorkerCount: 2, QueueSize: 50}, discardLogger())
	runner.Start()
	t.Cleanup(func() { _ = runner.Stop(context.Background()) })

	exec := NewReportExecutor(reports, runner, builder, metrics.NewNoopSink(), timeLimit, discardLogger())
	return exec, reports
}

func waitForStatus(t *testing.T, reports *MockReportStore, id uuid.UUID, want domain.ReportStatus) *domain.Report {
	t.Helper()
	require.Eventually(t, func() bool {
		r := reports.Snapshot(id)
		return r != nil && r.Status == want
	}, 2*time.Second, 5*time.Millisecond)
	return reports.Snapshot(id)
}

func TestReportExecutor_SubmitReturnsBeforeWorkFinishes(t *testing.T) {
	release := make(chan struct{})
	builder := ReportBuilderFunc(func(ctx context.Context, r *domain.Report) (json.RawMessage, error) {
		<-release
		return json.RawMessage(`{"foo":"bar"}`), nil
	})
	exec, reports := newTestExecutor(t, builder, time.Minute)
	defer close(release)

	owner := uuid.New()
	start := time.Now()
	report, err := exec.Submit(context.Background(), owner)
	elapsed := time.Since(start)

	require.NoError(t, err)
	assert.Less(t, elapsed, 500*time.Millisecond)
	assert.NotEmpty(t, report.TaskID)
	assert.Equal(t, domain.ReportStatusPending, report.Status)

	stored := waitForStatus(t, reports, report.ID, domain.ReportStatusRunning)
	assert.Equal(t, report.TaskID, stored.TaskID)
	assert.Equal(t, owner, stored.UserID)
	assert.Nil(t, stored.CompletedAt)
}

func TestReportExecutor_Completes(t *testing.T) {
	exec, reports := newTestExecutor(t, SimulatedReportBuilder{Delay: 10 * time.Millisecond}, time.Minute)

	report, err := exec.Submit(context.Background(), uuid.New())
	require.NoError(t, err)

	done := waitForStatus(t, reports, report.ID, domain.ReportStatusCompleted)
	assert.JSONEq(t, `{"foo":"bar"}`, string(done.ResultData))
	assert.Nil(t, done.ErrorMessage)
	require.NotNil(t, done.CompletedAt)
	assert.NoError(t, done.Validate())
	assert.Equal(t,
		[]domain.ReportStatus{domain.ReportStatusPending, domain.ReportStatusRunning, domain.ReportStatusCompleted},
		reports.History(report.ID))
}

func TestReportExecutor_BuildFailuresAreRecorded(t *testing.T) {
	tests := []struct {
		name      string
		builder   ReportBuilderFunc
		timeLimit time.Duration
		wantMsg   string
	}{
		{
			name: "error",
			builder: func(ctx context.Context, r *domain.Report) (json.RawMessage, error) {
				return nil, errors.New("upstream unavailable")
			},
			timeLimit: time.Minute,
			wantMsg:   "upstream unavailable",
		},
		{
			name: "panic",
			builder: func(ctx context.Context, r *domain.Report) (json.RawMessage, error) {
				panic("nil map write")
			},
			timeLimit: time.Minute,
			wantMsg:   "report builder panicked: nil map write",
		},
		{
			name: "time limit",
			builder: func(ctx context.Context, r *domain.Report) (json.RawMessage, error) {
				return SimulatedReportBuilder{Delay: time.Hour}.Build(ctx, r)
			},
			timeLimit: 20 * time.Millisecond,
			wantMsg:   "time limit of 20ms exceeded",
		},
		{
			name: "invalid json",
			builder: func(ctx context.Context, r *domain.Report) (json.RawMessage, error) {
				return json.RawMessage(`{not json`), nil
			},
			timeLimit: time.Minute,
			wantMsg:   "report builder returned invalid JSON",
		},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			exec, reports := newTestExecutor(t, tc.builder, tc.timeLimit)

			report, err := exec.Submit(context.Background(), uuid.New())
			require.NoError(t, err)

			failed := waitForStatus(t, reports, report.ID, domain.ReportStatusFailed)
			require.NotNil(t, failed.ErrorMessage)
			assert.Equal(t, tc.wantMsg, *failed.ErrorMessage)
			assert.Nil(t, failed.ResultData)
			assert.NoError(t, failed.Validate())
			assert.Equal(t,
				[]domain.ReportStatus{domain.ReportStatusPending, domain.ReportStatusRunning, domain.ReportStatusFailed},
				reports.History(report.ID))
		})
	}
}

func TestReportExecutor_MissingRecord(t *testing.T) {
	reports := NewMockReportStore()
	exec := NewReportExecutor(reports, NewRunner(DefaultRunnerConfig(), discardLogger()),
		SimulatedReportBuilder{}, metrics.NewNoopSink(), time.Minute, discardLogger())

	markCalled := false
	reports.MarkRunningFn = func(ctx context.Context, id uuid.UUID) error {
		markCalled = true
		return nil
	}

	err := exec.execute(context.Background(), uuid.New(), uuid.New())

	assert.NoError(t, err)
	assert.False(t, markCalled)
}

func TestReportExecutor_RunsAtMostOnce(t *testing.T) {
	calls := make(chan struct{}, 4)
	builder := ReportBuilderFunc(func(ctx context.Context, r *domain.Report) (json.RawMessage, error) {
		calls <- struct{}{}
		return json.RawMessage(`{}`), nil
	})
	reports := NewMockReportStore()
	exec := NewReportExecutor(reports, NewRunner(DefaultRunnerConfig(), discardLogger()),
		builder, metrics.NewNoopSink(), time.Minute, discardLogger())

	report, err := domain.NewReport(uuid.New())
	require.NoError(t, err)
	reports.Seed(report)

	require.NoError(t, exec.execute(context.Background(), report.ID, uuid.New()))
	err = exec.execute(context.Background(), report.ID, uuid.New())

	assert.ErrorIs(t, err, store.ErrInvalidTransition)
	assert.Len(t, calls, 1)
}

func TestReportExecutor_DispatchFailure(t *testing.T) {
	reports := NewMockReportStore()
	runner := NewRunner(DefaultRunnerConfig(), discardLogger())
	require.NoError(t, runner.Stop(context.Background()))

	exec := NewReportExecutor(reports, runner, SimulatedReportBuilder{}, metrics.NewNoopSink(),
		time.Minute, discardLogger())

	report, err := exec.Submit(context.Background(), uuid.New())

	assert.Nil(t, report)
	assert.ErrorIs(t, err, ErrRunnerStopped)

	failed, listErr := reports.ListByStatus(context.Background(), domain.ReportStatusFailed)
	require.NoError(t, listErr)
	require.Len(t, failed, 1)
	assert.Contains(t, *failed[0].ErrorMessage, NotScheduledPrefix)
	assert.Empty(t, failed[0].TaskID)
}

func TestReportExecutor_CreateFailure(t *testing.T) {
	exec, reports := newTestExecutor(t, SimulatedReportBuilder{}, time.Minute)
	reports.CreateFn = func(ctx context.Context, r *domain.Report) error {
		return errors.New("db down")
	}

	report, err := exec.Submit(context.Background(), uuid.New())

	assert.Nil(t, report)
	assert.ErrorContains(t, err, "db down")
}

func TestReportExecutor_Recover(t *testing.T) {
	exec, reports := newTestExecutor(t, SimulatedReportBuilder{}, time.Minute)
	owner := uuid.New()

	running, err := domain.NewReport(owner)
	require.NoError(t, err)
	running.Status = domain.ReportStatusRunning
	running.TaskID = uuid.NewString()
	reports.Seed(running)

	orphan, err := domain.NewReport(owner)
	require.NoError(t, err)
	reports.Seed(orphan)

	attached, err := domain.NewReport(owner)
	require.NoError(t, err)
	attached.TaskID = uuid.NewString()
	reports.Seed(attached)

	require.NoError(t, exec.Recover(context.Background()))

	interrupted := reports.Snapshot(running.ID)
	assert.Equal(t, domain.ReportStatusFailed, interrupted.Status)
	assert.Equal(t, InterruptedMessage, *interrupted.ErrorMessage)

	done := waitForStatus(t, reports, orphan.ID, domain.ReportStatusCompleted)
	assert.NotEmpty(t, done.TaskID)

	done = waitForStatus(t, reports, attached.ID, domain.ReportStatusCompleted)
	assert.Equal(t, attached.TaskID, done.TaskID)
}

func TestReportExecutor_ConcurrentSubmissionsReachTerminalState(t *testing.T) {
	builder := ReportBuilderFunc(func(ctx context.Context, r *domain.Report) (json.RawMessage, error) {
		if r.ID[0]%2 == 0 {
			return nil, errors.New("even")
		}
		return json.RawMessage(`{"ok":true}`), nil
	})
	exec, reports := newTestExecutor(t, builder, time.Minute)

	var ids []uuid.UUID
	for i := 0; i < 20; i++ {
		r, err := exec.Submit(context.Background(), uuid.New())
		require.NoError(t, err)
		ids = append(ids, r.ID)
	}

	for _, id := range ids {
		require.Eventually(t, func() bool {
			r := reports.Snapshot(id)
			return r.Status.IsTerminal()
		}, 2*time.Second, 5*time.Millisecond)

		r := reports.Snapshot(id)
		assert.NoError(t, r.Validate())

		history := reports.History(id)
		for i := 1; i < len(history); i++ {
			assert.True(t, history[i-1].CanTransitionTo(history[i]), "%v", history)
		}
	}
}
