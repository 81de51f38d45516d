package postgres

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/phrazzld/webapp-api/internal/domain"
	"github.com/phrazzld/webapp-api/internal/platform/logger"
	"github.com/phrazzld/webapp-api/internal/store"
)

const reportColumns = `id, user_id, task_id, status, created_at, completed_at, result_data, error_message`

// PostgresReportStore implements store.ReportStore.
type PostgresReportStore struct {
	db store.DBTX
}

// NewPostgresReportStore creates a report store on a pool or transaction.
func NewPostgresReportStore(db store.DBTX) *PostgresReportStore {
	return &PostgresReportStore{db: db}
}

var _ store.ReportStore = (*PostgresReportStore)(nil)

// Create implements store.ReportStore.Create.
func (s *PostgresReportStore) Create(ctx context.Context, report *domain.Report) error {
	if err := report.Validate(); err != nil {
		return fmt.Errorf("%w: %w", store.ErrInvalidEntity, err)
	}
	if report.Status != domain.ReportStatusPending || report.TaskID != "" {
		return store.NewStoreError("report", "create", "new reports must be pending without a task id",
			store.ErrInvalidEntity)
	}

	_, err := s.db.ExecContext(ctx, `
		INSERT INTO reports (id, user_id, task_id, status, created_at)
		VALUES ($1, $2, '', $3, $4)`,
		report.ID, report.UserID, string(report.Status), report.CreatedAt,
	)
	if err != nil {
		logger.FromContext(ctx).Error("failed to insert report",
			"report_id", report.ID, "error", err)
		return MapError(err)
	}
	return nil
}

// Get implements store.ReportStore.Get.
func (s *PostgresReportStore) Get(ctx context.Context, id uuid.UUID) (*domain.Report, error) {
	row := s.db.QueryRowContext(ctx,
		`SELECT `+reportColumns+` FROM reports WHERE id = $1`, id)
	return scanReportRow(row)
}

// GetForOwner implements store.ReportStore.GetForOwner.
func (s *PostgresReportStore) GetForOwner(ctx context.Context, id, userID uuid.UUID) (*domain.Report, error) {
	row := s.db.QueryRowContext(ctx,
		`SELECT `+reportColumns+` FROM reports WHERE id = $1 AND user_id = $2`, id, userID)
	return scanReportRow(row)
}

// AttachTaskID implements store.ReportStore.AttachTaskID.
func (s *PostgresReportStore) AttachTaskID(ctx context.Context, id uuid.UUID, taskID string) error {
	if taskID == "" {
		return store.NewStoreError("report", "attach task id", "task id cannot be empty", store.ErrInvalidEntity)
	}

	result, err := s.db.ExecContext(ctx,
		`UPDATE reports SET task_id = $2 WHERE id = $1 AND task_id = ''`, id, taskID)
	if err != nil {
		return MapError(err)
	}

	n, err := rowsAffected(result)
	if err != nil {
		return err
	}
	if n == 0 {
		if _, err := s.Get(ctx, id); err != nil {
			return err
		}
		return store.ErrTaskIDAssigned
	}
	return nil
}

// MarkRunning implements store.ReportStore.MarkRunning.
func (s *PostgresReportStore) MarkRunning(ctx context.Context, id uuid.UUID) error {
	return s.transition(ctx, id, domain.ReportStatusRunning, "", nil)
}

// Complete implements store.ReportStore.Complete.
func (s *PostgresReportStore) Complete(
	ctx context.Context,
	id uuid.UUID,
	result json.RawMessage,
	completedAt time.Time,
) error {
	if result == nil {
		result = json.RawMessage(`{}`)
	}
	return s.transition(ctx, id, domain.ReportStatusCompleted,
		`, completed_at = $3, result_data = $4`, []any{completedAt.UTC(), []byte(result)})
}

// Fail implements store.ReportStore.Fail.
func (s *PostgresReportStore) Fail(ctx context.Context, id uuid.UUID, message string, completedAt time.Time) error {
	return s.transition(ctx, id, domain.ReportStatusFailed,
		`, completed_at = $3, error_message = $4`, []any{completedAt.UTC(), message})
}

// transition updates status to next only if the row is currently in one of
// next's predecessors. extraSet continues the SET clause from placeholder $3.
func (s *PostgresReportStore) transition(
	ctx context.Context,
	id uuid.UUID,
	next domain.ReportStatus,
	extraSet string,
	extraArgs []any,
) error {
	from := next.Predecessors()
	args := append([]any{id, string(next)}, extraArgs...)

	placeholders := make([]string, len(from))
	for i, status := range from {
		args = append(args, string(status))
		placeholders[i] = fmt.Sprintf("$%d", len(args))
	}

	query := fmt.Sprintf(`UPDATE reports SET status = $2%s WHERE id = $1 AND status IN (%s)`,
		extraSet, strings.Join(placeholders, ", "))

	result, err := s.db.ExecContext(ctx, query, args...)
	if err != nil {
		logger.FromContext(ctx).Error("failed to update report status",
			"report_id", id, "status", next, "error", err)
		return MapError(err)
	}

	n, err := rowsAffected(result)
	if err != nil {
		return err
	}
	if n == 0 {
		current, err := s.Get(ctx, id)
		if err != nil {
			return err
		}
		return store.NewStoreError("report", "transition",
			fmt.Sprintf("%s -> %s", current.Status, next), store.ErrInvalidTransition)
	}
	return nil
}

// List implements store.ReportStore.List.
func (s *PostgresReportStore) List(
	ctx context.Context,
	userID uuid.UUID,
	filter store.ReportFilter,
) ([]*domain.Report, error) {
	limit := store.ClampLimit(filter.Limit)

	var (
		rows *sql.Rows
		err  error
	)
	if filter.Status == "" {
		rows, err = s.db.QueryContext(ctx, `
			SELECT `+reportColumns+` FROM reports
			WHERE user_id = $1
			ORDER BY created_at DESC
			LIMIT $2`, userID, limit)
	} else {
		rows, err = s.db.QueryContext(ctx, `
			SELECT `+reportColumns+` FROM reports
			WHERE user_id = $1 AND status = $2
			ORDER BY created_at DESC
			LIMIT $3`, userID, string(filter.Status), limit)
	}
	if err != nil {
		return nil, MapError(err)
	}
	return scanReportRows(rows)
}

// ListByStatus implements store.ReportStore.ListByStatus.
func (s *PostgresReportStore) ListByStatus(ctx context.Context, status domain.ReportStatus) ([]*domain.Report, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT `+reportColumns+` FROM reports
		WHERE status = $1
		ORDER BY created_at ASC`, string(status))
	if err != nil {
		return nil, MapError(err)
	}
	return scanReportRows(rows)
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanReport(row rowScanner) (*domain.Report, error) {
	var (
		r           domain.Report
		status      string
		completedAt sql.NullTime
		resultData  []byte
		errorMsg    sql.NullString
	)

	err := row.Scan(&r.ID, &r.UserID, &r.TaskID, &status, &r.CreatedAt, &completedAt, &resultData, &errorMsg)
	if err != nil {
		return nil, err
	}

	r.Status = domain.ReportStatus(status)
	r.CreatedAt = r.CreatedAt.UTC()
	if completedAt.Valid {
		t := completedAt.Time.UTC()
		r.CompletedAt = &t
	}
	if resultData != nil {
		r.ResultData = json.RawMessage(resultData)
	}
	if errorMsg.Valid {
		msg := errorMsg.String
		r.ErrorMessage = &msg
	}
	return &r, nil
}

func scanReportRow(row *sql.Row) (*domain.Report, error) {
	r, err := scanReport(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, store.ErrReportNotFound
	}
	if err != nil {
		return nil, MapError(err)
	}
	return r, nil
}

func scanReportRows(rows *sql.Rows) ([]*domain.Report, error) {
	defer func() { _ = rows.Close() }()

	reports := make([]*domain.Report, 0)
	for rows.Next() {
		r, err := scanReport(rows)
		if err != nil {
			return nil, MapError(err)
		}
		reports = append(reports, r)
	}
	if err := rows.Err(); err != nil {
		return nil, MapError(err)
	}
	return reports, nil
}
