package api

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"

	"github.com/phrazzld/webapp-api/internal/api/shared"
	"github.com/phrazzld/webapp-api/internal/events"
)

// Acknowledgements of the event endpoints.
const (
	BroadcastEventPublished = "Redis event published"
	DurableEventPublished   = "RabbitMQ event published"
	EventPublishFailed      = "Failed to publish event"
)

// EventPublisher validates and sends one event on a backend.
type EventPublisher interface {
	Publish(ctx context.Context, eventType string, data json.RawMessage, backend events.Backend) (*events.Event, error)
}

// EventHandler serves the event demonstration endpoints. Each endpoint
// publishes a fixed event type on a fixed backend.
type EventHandler struct {
	publisher EventPublisher
}

// NewEventHandler creates an EventHandler.
func NewEventHandler(publisher EventPublisher) *EventHandler {
	return &EventHandler{publisher: publisher}
}

// PublishBroadcast handles POST /redis-pubsub-event.
func (h *EventHandler) PublishBroadcast(w http.ResponseWriter, r *http.Request) {
	h.publish(w, r, events.TypeSimple, events.BackendBroadcast, BroadcastEventPublished)
}

// PublishDurable handles POST /rabbitmq-event.
func (h *EventHandler) PublishDurable(w http.ResponseWriter, r *http.Request) {
	h.publish(w, r, events.TypeComplex, events.BackendDurable, DurableEventPublished)
}

func (h *EventHandler) publish(
	w http.ResponseWriter,
	r *http.Request,
	eventType events.Type,
	backend events.Backend,
	ack string,
) {
	userID, ok := requireUserID(w, r)
	if !ok {
		return
	}

	data := map[string]interface{}{
		"a_field":       "a_value",
		"another_field": "another_value",
	}

	var req PublishEventRequest
	if err := shared.DecodeJSON(r, &req); err != nil && !errors.Is(err, shared.ErrEmptyBody) {
		shared.RespondWithErrorAndLog(w, r, http.StatusBadRequest, "Invalid request format", err)
		return
	}
	for k, v := range req.Data {
		data[k] = v
	}
	data["user_id"] = userID.String()

	body, err := json.Marshal(data)
	if err != nil {
		HandleAPIError(w, r, err, EventPublishFailed)
		return
	}

	if _, err := h.publisher.Publish(r.Context(), string(eventType), body, backend); err != nil {
		if errors.Is(err, events.ErrTransport) {
			HandleAPIError(w, r, err, EventPublishFailed)
			return
		}
		HandleAPIError(w, r, err, "")
		return
	}

	shared.RespondWithJSON(w, r, http.StatusOK, MessageResponse{Message: ack})
}
