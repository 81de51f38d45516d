//go:build integration

package postgres_test

import (
	"context"
	"database/sql"
	"encoding/json"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/phrazzld/webapp-api/internal/domain"
	"github.com/phrazzld/webapp-api/internal/platform/postgres"
	"github.com/phrazzld/webapp-api/internal/store"
	"github.com/phrazzld/webapp-api/internal/testdb"
)

func createTestUser(t *testing.T, ctx context.Context, tx *sql.Tx) *domain.User {
	t.Helper()
	user, err := domain.NewUser(uuid.NewString()[:8]+"@example.com", "correct horse battery")
	require.NoError(t, err)
	require.NoError(t, postgres.NewPostgresUserStore(tx, 4).Create(ctx, user))
	return user
}

func createTestReport(t *testing.T, ctx context.Context, s *postgres.PostgresReportStore, owner uuid.UUID) *domain.Report {
	t.Helper()
	report, err := domain.NewReport(owner)
	require.NoError(t, err)
	require.NoError(t, s.Create(ctx, report))
	return report
}

func TestReportStoreLifecycle(t *testing.T) {
	db := testdb.Open(t)

	testdb.WithTx(t, db, func(t *testing.T, tx *sql.Tx) {
		ctx, cancel := context.WithTimeout(context.Background(), testdb.TestTimeout)
		defer cancel()

		s := postgres.NewPostgresReportStore(tx)
		owner := createTestUser(t, ctx, tx)
		report := createTestReport(t, ctx, s, owner.ID)

		got, err := s.GetForOwner(ctx, report.ID, owner.ID)
		require.NoError(t, err)
		assert.Equal(t, domain.ReportStatusPending, got.Status)
		assert.Empty(t, got.TaskID)
		assert.Nil(t, got.CompletedAt)

		require.NoError(t, s.AttachTaskID(ctx, report.ID, "task-1"))
		assert.ErrorIs(t, s.AttachTaskID(ctx, report.ID, "task-2"), store.ErrTaskIDAssigned)

		require.NoError(t, s.MarkRunning(ctx, report.ID))
		assert.ErrorIs(t, s.MarkRunning(ctx, report.ID), store.ErrInvalidTransition)

		done := time.Now().UTC()
		require.NoError(t, s.Complete(ctx, report.ID, json.RawMessage(`{"rows":3}`), done))

		got, err = s.Get(ctx, report.ID)
		require.NoError(t, err)
		assert.Equal(t, domain.ReportStatusCompleted, got.Status)
		assert.Equal(t, "task-1", got.TaskID)
		assert.JSONEq(t, `{"rows":3}`, string(got.ResultData))
		assert.Nil(t, got.ErrorMessage)
		require.NotNil(t, got.CompletedAt)
		assert.WithinDuration(t, done, *got.CompletedAt, time.Millisecond)

		assert.ErrorIs(t, s.Fail(ctx, report.ID, "late failure", time.Now()), store.ErrInvalidTransition)
		assert.NoError(t, got.Validate())
	})
}

func TestReportStoreFailFromPending(t *testing.T) {
	db := testdb.Open(t)

	testdb.WithTx(t, db, func(t *testing.T, tx *sql.Tx) {
		ctx := context.Background()
		s := postgres.NewPostgresReportStore(tx)
		owner := createTestUser(t, ctx, tx)
		report := createTestReport(t, ctx, s, owner.ID)

		require.NoError(t, s.Fail(ctx, report.ID, "queue full", time.Now()))

		got, err := s.Get(ctx, report.ID)
		require.NoError(t, err)
		assert.Equal(t, domain.ReportStatusFailed, got.Status)
		require.NotNil(t, got.ErrorMessage)
		assert.Equal(t, "queue full", *got.ErrorMessage)
		assert.Nil(t, got.ResultData)

		assert.ErrorIs(t, s.MarkRunning(ctx, report.ID), store.ErrInvalidTransition)
	})
}

func TestReportStoreOwnership(t *testing.T) {
	db := testdb.Open(t)

	testdb.WithTx(t, db, func(t *testing.T, tx *sql.Tx) {
		ctx := context.Background()
		s := postgres.NewPostgresReportStore(tx)
		owner := createTestUser(t, ctx, tx)
		other := createTestUser(t, ctx, tx)
		report := createTestReport(t, ctx, s, owner.ID)

		_, err := s.GetForOwner(ctx, report.ID, other.ID)
		assert.ErrorIs(t, err, store.ErrReportNotFound)

		_, err = s.GetForOwner(ctx, uuid.New(), owner.ID)
		assert.ErrorIs(t, err, store.ErrReportNotFound)

		assert.ErrorIs(t, s.MarkRunning(ctx, uuid.New()), store.ErrReportNotFound)
	})
}

func TestReportStoreList(t *testing.T) {
	db := testdb.Open(t)

	testdb.WithTx(t, db, func(t *testing.T, tx *sql.Tx) {
		ctx := context.Background()
		s := postgres.NewPostgresReportStore(tx)
		owner := createTestUser(t, ctx, tx)
		other := createTestUser(t, ctx, tx)

		var ids []uuid.UUID
		for i := 0; i < 3; i++ {
			r, err := domain.NewReport(owner.ID)
			require.NoError(t, err)
			r.CreatedAt = r.CreatedAt.Add(time.Duration(i) * time.Second)
			require.NoError(t, s.Create(ctx, r))
			ids = append(ids, r.ID)
		}
		createTestReport(t, ctx, s, other.ID)
		require.NoError(t, s.MarkRunning(ctx, ids[0]))

		all, err := s.List(ctx, owner.ID, store.ReportFilter{})
		require.NoError(t, err)
		require.Len(t, all, 3)
		assert.Equal(t, ids[2], all[0].ID, "newest first")

		running, err := s.List(ctx, owner.ID, store.ReportFilter{Status: domain.ReportStatusRunning})
		require.NoError(t, err)
		require.Len(t, running, 1)
		assert.Equal(t, ids[0], running[0].ID)

		limited, err := s.List(ctx, owner.ID, store.ReportFilter{Limit: 2})
		require.NoError(t, err)
		assert.Len(t, limited, 2)

		byStatus, err := s.ListByStatus(ctx, domain.ReportStatusRunning)
		require.NoError(t, err)
		assert.Len(t, byStatus, 1)
	})
}
