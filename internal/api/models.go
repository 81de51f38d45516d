package api

import (
	"encoding/json"
	"time"

	"github.com/google/uuid"

	"github.com/phrazzld/webapp-api/internal/domain"
)

// RegisterRequest defines the payload for the user registration endpoint.
type RegisterRequest struct {
	Email    string `json:"email"    validate:"required,email"`
	Password string `json:"password" validate:"required,min=12,max=72"`
}

// LoginRequest defines the payload for the user login endpoint.
type LoginRequest struct {
	Email    string `json:"email"    validate:"required,email"`
	Password string `json:"password" validate:"required,min=1"`
}

// AuthResponse defines the successful response for authentication endpoints.
// The same token is also set as the access-token cookie.
type AuthResponse struct {
	UserID      uuid.UUID `json:"user_id"`
	AccessToken string    `json:"token"`

	// ExpiresAt is the RFC 3339 timestamp when the access token expires
	ExpiresAt string `json:"expires_at"`
}

// MessageResponse is the body of simple acknowledgements.
type MessageResponse struct {
	Message string `json:"message"`
}

// SubmitReportResponse acknowledges a queued report.
type SubmitReportResponse struct {
	Msg      string    `json:"msg"`
	ReportID uuid.UUID `json:"report_id"`
	TaskID   string    `json:"task_id"`
}

// ReportResponse is the full projection of one report.
type ReportResponse struct {
	ID           uuid.UUID       `json:"id"`
	TaskID       string          `json:"task_id"`
	User         uuid.UUID       `json:"user"`
	Status       string          `json:"status"`
	CreatedAt    time.Time       `json:"created_at"`
	CompletedAt  *time.Time      `json:"completed_at"`
	ResultData   json.RawMessage `json:"result_data"`
	ErrorMessage *string         `json:"error_message"`
}

// ReportListItem is the summary of a report in a listing.
type ReportListItem struct {
	ID          uuid.UUID  `json:"id"`
	TaskID      string     `json:"task_id"`
	Status      string     `json:"status"`
	CreatedAt   time.Time  `json:"created_at"`
	CompletedAt *time.Time `json:"completed_at"`
}

// ReportListResponse is the body of GET /reports.
type ReportListResponse struct {
	Reports []ReportListItem `json:"reports"`
	Count   int              `json:"count"`
}

// ListReportsQuery holds the validated query parameters of GET /reports.
type ListReportsQuery struct {
	Status string `validate:"omitempty,oneof=pending running completed failed"`
	Limit  int    `validate:"gte=0"`
}

// PublishEventRequest is the optional body of the event endpoints. Its
// fields are merged into the published event's data.
type PublishEventRequest struct {
	Data map[string]interface{} `json:"data"`
}

func toReportResponse(r *domain.Report) ReportResponse {
	resp := ReportResponse{
		ID:           r.ID,
		TaskID:       r.TaskID,
		User:         r.UserID,
		Status:       string(r.Status),
		CreatedAt:    r.CreatedAt,
		CompletedAt:  r.CompletedAt,
		ErrorMessage: r.ErrorMessage,
	}
	if len(r.ResultData) > 0 {
		resp.ResultData = r.ResultData
	} else {
		resp.ResultData = json.RawMessage("null")
	}
	return resp
}

func toReportListResponse(reports []*domain.Report) ReportListResponse {
	items := make([]ReportListItem, 0, len(reports))
	for _, r := range reports {
		items = append(items, ReportListItem{
			ID:          r.ID,
			TaskID:      r.TaskID,
			Status:      string(r.Status),
			CreatedAt:   r.CreatedAt,
			CompletedAt: r.CompletedAt,
		})
	}
	return ReportListResponse{Reports: items, Count: len(items)}
}
