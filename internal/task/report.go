package task

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/phrazzld/webapp-api/internal/domain"
	"github.com/phrazzld/webapp-api/internal/metrics"
	"github.com/phrazzld/webapp-api/internal/platform/logger"
	"github.com/phrazzld/webapp-api/internal/store"
)

// Messages recorded on reports that never ran to completion.
const (
	InterruptedMessage = "interrupted by restart"
	NotScheduledPrefix = "could not be scheduled: "
)

// persistTimeout bounds the final status write, which must succeed even
// when the task's own deadline has already passed.
const persistTimeout = 10 * time.Second

// ReportBuilder produces the result payload of a report.
type ReportBuilder interface {
	Build(ctx context.Context, report *domain.Report) (json.RawMessage, error)
}

// ReportBuilderFunc adapts a function to ReportBuilder.
type ReportBuilderFunc func(ctx context.Context, report *domain.Report) (json.RawMessage, error)

// Build calls f.
func (f ReportBuilderFunc) Build(ctx context.Context, report *domain.Report) (json.RawMessage, error) {
	return f(ctx, report)
}

// SimulatedReportBuilder stands in for slow external I/O: it waits Delay and
// returns fixed data.
type SimulatedReportBuilder struct {
	Delay time.Duration
}

// Build implements ReportBuilder.
func (b SimulatedReportBuilder) Build(ctx context.Context, report *domain.Report) (json.RawMessage, error) {
	timer := time.NewTimer(b.Delay)
	defer timer.Stop()

	select {
	case <-timer.C:
	case <-ctx.Done():
		return nil, ctx.Err()
	}

	return json.Marshal(map[string]string{"foo": "bar"})
}

// ReportExecutor creates report records and drives them through their
// lifecycle on the runner. After Submit returns, only the task dispatched for
// a report mutates that report.
type ReportExecutor struct {
	store      store.ReportStore
	dispatcher Dispatcher
	builder    ReportBuilder
	metrics    metrics.Sink
	timeLimit  time.Duration
	logger     *slog.Logger
	now        func() time.Time
}

// NewReportExecutor creates a ReportExecutor. timeLimit bounds one execution.
func NewReportExecutor(
	reports store.ReportStore,
	dispatcher Dispatcher,
	builder ReportBuilder,
	sink metrics.Sink,
	timeLimit time.Duration,
	logger *slog.Logger,
) *ReportExecutor {
	return &ReportExecutor{
		store:      reports,
		dispatcher: dispatcher,
		builder:    builder,
		metrics:    sink,
		timeLimit:  timeLimit,
		logger:     logger.With("component", "report_executor"),
		now:        func() time.Time { return time.Now().UTC() },
	}
}

// reportTask runs one report on a worker.
type reportTask struct {
	id       uuid.UUID
	reportID uuid.UUID
	exec     *ReportExecutor
}

func (t *reportTask) ID() uuid.UUID { return t.id }

func (t *reportTask) Type() string { return TaskTypeReport }

func (t *reportTask) Execute(ctx context.Context) error {
	return t.exec.execute(ctx, t.reportID, t.id)
}

// Submit persists a pending report for userID, dispatches its task and
// attaches the task ID. It returns as soon as the task is queued.
func (e *ReportExecutor) Submit(ctx context.Context, userID uuid.UUID) (*domain.Report, error) {
	log := logger.FromContextOrDefault(ctx, e.logger)

	report, err := domain.NewReport(userID)
	if err != nil {
		return nil, err
	}

	if err := e.store.Create(ctx, report); err != nil {
		return nil, fmt.Errorf("failed to create report: %w", err)
	}

	t := &reportTask{id: uuid.New(), reportID: report.ID, exec: e}
	if err := e.dispatcher.Submit(t); err != nil {
		// the report can never run; close it out instead of leaving it pending
		if failErr := e.store.Fail(ctx, report.ID, NotScheduledPrefix+err.Error(), e.now()); failErr != nil {
			log.Error("failed to mark undispatched report as failed",
				"report_id", report.ID, "error", failErr)
		}
		return nil, fmt.Errorf("failed to dispatch report task: %w", err)
	}

	if err := e.store.AttachTaskID(ctx, report.ID, t.id.String()); err != nil {
		// the task is already queued, so the report will still finish
		log.Error("failed to attach task id to report",
			"report_id", report.ID, "task_id", t.id, "error", err)
	}
	report.TaskID = t.id.String()

	e.metrics.ReportSubmitted()
	log.Info("queued report task", "report_id", report.ID, "task_id", t.id, "user_id", userID)

	return report, nil
}

// execute runs on a worker. Build failures are recorded on the report and
// never returned; only store failures are.
func (e *ReportExecutor) execute(ctx context.Context, reportID, taskID uuid.UUID) error {
	log := e.logger.With("report_id", reportID, "task_id", taskID)

	ctx, cancel := context.WithTimeout(ctx, e.timeLimit)
	defer cancel()
	ctx = logger.WithLogger(ctx, log)

	report, err := e.store.Get(ctx, reportID)
	if errors.Is(err, store.ErrReportNotFound) {
		log.Error("report not found, dropping task")
		return nil
	}
	if err != nil {
		return fmt.Errorf("failed to load report: %w", err)
	}

	if err := e.store.MarkRunning(ctx, reportID); err != nil {
		return fmt.Errorf("failed to mark report running: %w", err)
	}
	report.Status = domain.ReportStatusRunning
	started := e.now()

	log.Info("processing report", "user_id", report.UserID)

	result, buildErr := e.build(ctx, report)

	persistCtx, persistCancel := context.WithTimeout(context.WithoutCancel(ctx), persistTimeout)
	defer persistCancel()

	finished := e.now()
	if buildErr != nil {
		msg := buildErr.Error()
		if errors.Is(buildErr, context.DeadlineExceeded) {
			msg = fmt.Sprintf("time limit of %s exceeded", e.timeLimit)
		}
		log.Error("report build failed", "error", msg)

		if err := e.store.Fail(persistCtx, reportID, msg, finished); err != nil {
			return fmt.Errorf("failed to record report failure: %w", err)
		}
		e.metrics.ReportFinished(string(domain.ReportStatusFailed), finished.Sub(started))
		return nil
	}

	if err := e.store.Complete(persistCtx, reportID, result, finished); err != nil {
		return fmt.Errorf("failed to record report result: %w", err)
	}
	e.metrics.ReportFinished(string(domain.ReportStatusCompleted), finished.Sub(started))
	log.Info("completed report", "duration", finished.Sub(started))
	return nil
}

// build calls the builder and turns a panic into an error.
func (e *ReportExecutor) build(ctx context.Context, report *domain.Report) (result json.RawMessage, err error) {
	defer func() {
		if p := recover(); p != nil {
			err = fmt.Errorf("report builder panicked: %v", p)
		}
	}()

	result, err = e.builder.Build(ctx, report)
	if err == nil && !json.Valid(result) {
		err = errors.New("report builder returned invalid JSON")
	}
	return result, err
}

// Recover reconciles reports left unfinished by a previous process. Running
// reports lost their worker and are failed; pending reports are dispatched
// again, reusing an attached task ID when there is one.
//
// Recover assumes a single API instance owns the report table: run alongside
// another live instance, it would fail reports that instance is still running.
func (e *ReportExecutor) Recover(ctx context.Context) error {
	running, err := e.store.ListByStatus(ctx, domain.ReportStatusRunning)
	if err != nil {
		return fmt.Errorf("failed to list running reports: %w", err)
	}

	pending, err := e.store.ListByStatus(ctx, domain.ReportStatusPending)
	if err != nil {
		return fmt.Errorf("failed to list pending reports: %w", err)
	}

	e.logger.Info("recovering unfinished reports",
		"pending_count", len(pending),
		"running_count", len(running))

	interrupted := 0
	for _, r := range running {
		if err := e.store.Fail(ctx, r.ID, InterruptedMessage, e.now()); err != nil {
			e.logger.Error("failed to fail interrupted report", "report_id", r.ID, "error", err)
			continue
		}
		interrupted++
	}

	requeued := 0
	for _, r := range pending {
		id, err := uuid.Parse(r.TaskID)
		attach := err != nil
		if attach {
			id = uuid.New()
		}

		if err := e.dispatcher.Submit(&reportTask{id: id, reportID: r.ID, exec: e}); err != nil {
			e.logger.Error("failed to requeue pending report", "report_id", r.ID, "error", err)
			continue
		}
		if attach {
			if err := e.store.AttachTaskID(ctx, r.ID, id.String()); err != nil {
				e.logger.Error("failed to attach task id to report", "report_id", r.ID, "error", err)
			}
		}
		requeued++
	}

	e.metrics.ReportsRecovered(requeued, interrupted)
	return nil
}
