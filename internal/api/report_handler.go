package api

import (
	"context"
	"fmt"
	"net/http"
	"strconv"

	"github.com/google/uuid"

	"github.com/phrazzld/webapp-api/internal/api/shared"
	"github.com/phrazzld/webapp-api/internal/domain"
	"github.com/phrazzld/webapp-api/internal/platform/logger"
	"github.com/phrazzld/webapp-api/internal/service"
	"github.com/phrazzld/webapp-api/internal/store"
)

// ReportSubmitted is the acknowledgement message of POST /report.
const ReportSubmitted = "report task submitted successfully"

// ReportSubmitter queues a report for the caller and returns its record
// without waiting for the work.
type ReportSubmitter interface {
	Submit(ctx context.Context, userID uuid.UUID) (*domain.Report, error)
}

// ReportHandler serves the report submission and status endpoints.
type ReportHandler struct {
	submitter ReportSubmitter
	query     service.ReportQuery
}

// NewReportHandler creates a ReportHandler.
func NewReportHandler(submitter ReportSubmitter, query service.ReportQuery) *ReportHandler {
	return &ReportHandler{submitter: submitter, query: query}
}

// SubmitReport handles POST /report.
func (h *ReportHandler) SubmitReport(w http.ResponseWriter, r *http.Request) {
	userID, ok := requireUserID(w, r)
	if !ok {
		return
	}

	report, err := h.submitter.Submit(r.Context(), userID)
	if err != nil {
		HandleAPIError(w, r, err, "Failed to submit report")
		return
	}

	logger.FromContext(r.Context()).Info("report submitted",
		"report_id", report.ID,
		"task_id", report.TaskID)

	shared.RespondWithJSON(w, r, http.StatusOK, SubmitReportResponse{
		Msg:      ReportSubmitted,
		ReportID: report.ID,
		TaskID:   report.TaskID,
	})
}

// GetReport handles GET /report/{id}. Unknown, malformed and foreign IDs
// all answer 404.
func (h *ReportHandler) GetReport(w http.ResponseWriter, r *http.Request) {
	userID, ok := requireUserID(w, r)
	if !ok {
		return
	}

	reportID, err := getPathUUID(r, "id")
	if err != nil {
		HandleAPIError(w, r, fmt.Errorf("%w: %w", store.ErrReportNotFound, err), "")
		return
	}

	report, err := h.query.GetReport(r.Context(), reportID, userID)
	if err != nil {
		HandleAPIError(w, r, err, "")
		return
	}

	shared.RespondWithJSON(w, r, http.StatusOK, toReportResponse(report))
}

// ListReports handles GET /reports?status=&limit=.
func (h *ReportHandler) ListReports(w http.ResponseWriter, r *http.Request) {
	userID, ok := requireUserID(w, r)
	if !ok {
		return
	}

	q := ListReportsQuery{Status: r.URL.Query().Get("status")}
	if raw := r.URL.Query().Get("limit"); raw != "" {
		limit, err := strconv.Atoi(raw)
		if err != nil {
			shared.RespondWithErrorAndLog(w, r, http.StatusBadRequest, "Invalid limit", err)
			return
		}
		q.Limit = limit
	}
	if err := shared.ValidateRequest(q); err != nil {
		HandleAPIError(w, r, err, SanitizeValidationError(err))
		return
	}

	reports, err := h.query.ListReports(r.Context(), userID, store.ReportFilter{
		Status: domain.ReportStatus(q.Status),
		Limit:  q.Limit,
	})
	if err != nil {
		HandleAPIError(w, r, err, "")
		return
	}

	shared.RespondWithJSON(w, r, http.StatusOK, toReportListResponse(reports))
}
