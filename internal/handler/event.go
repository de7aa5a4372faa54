package handler

import (
    "net/http"
    "time"

    "github.com/labstack/echo/v4"
    "github.com/rs/zerolog"

    "github.com/iliyamo/live-event-booking/internal/model"
    "github.com/iliyamo/live-event-booking/internal/service"
)

// EventHandler drives the event lifecycle: creation, approvals,
// negotiation and closure.
type EventHandler struct {
    Lifecycle *service.LifecycleService
    Log       zerolog.Logger
}

// NewEventHandler wires an EventHandler and panics on a nil service.
func NewEventHandler(lifecycle *service.LifecycleService, log zerolog.Logger) *EventHandler {
    if lifecycle == nil {
        panic("nil lifecycle service passed to NewEventHandler")
    }
    return &EventHandler{Lifecycle: lifecycle, Log: log}
}

type createEventRequest struct {
    VenueID     uint64            `json:"venue_id"`
    Title       string            `json:"title"`
    StartsAt    time.Time         `json:"starts_at"`
    EndsAt      time.Time         `json:"ends_at"`
    SeatPricing map[string]uint32 `json:"seat_pricing"`
}

// CreateEvent handles POST /v1/events.  Times are RFC 3339.
func (h *EventHandler) CreateEvent(c echo.Context) error {
    who, ok := callerOf(c)
    if !ok {
        return unauthorized(c)
    }
    var body createEventRequest
    if err := c.Bind(&body); err != nil {
        return badRequest(c, "invalid request body")
    }
    e, err := h.Lifecycle.CreateEvent(c.Request().Context(), who, service.CreateEventInput{
        VenueID:     body.VenueID,
        Title:       body.Title,
        StartsAt:    body.StartsAt,
        EndsAt:      body.EndsAt,
        SeatPricing: body.SeatPricing,
    })
    if err != nil {
        return respondError(c, h.Log, err)
    }
    return c.JSON(http.StatusCreated, e)
}

// GetEvent handles GET /v1/events/:id.
func (h *EventHandler) GetEvent(c echo.Context) error {
    id, ok := pathID(c)
    if !ok {
        return badRequest(c, "invalid event id")
    }
    e, err := h.Lifecycle.GetEvent(c.Request().Context(), id)
    if err != nil {
        return respondError(c, h.Log, err)
    }
    return c.JSON(http.StatusOK, e)
}

type updateEventRequest struct {
    Title       *string           `json:"title"`
    SeatPricing map[string]uint32 `json:"seat_pricing"`
}

// UpdateEvent handles PATCH /v1/events/:id.  Omitted fields are left as is.
func (h *EventHandler) UpdateEvent(c echo.Context) error {
    var body updateEventRequest
    return h.mutate(c, &body, func(who model.Caller, id uint64) (*model.Event, error) {
        return h.Lifecycle.UpdateEventDetails(c.Request().Context(), who, id, model.EventUpdate{
            Title:       body.Title,
            SeatPricing: body.SeatPricing,
        })
    })
}

// ApproveByAdmin handles POST /v1/events/:id/approve-admin.
func (h *EventHandler) ApproveByAdmin(c echo.Context) error {
    return h.mutate(c, nil, func(who model.Caller, id uint64) (*model.Event, error) {
        return h.Lifecycle.ApproveByAdmin(c.Request().Context(), who, id)
    })
}

type offerRequest struct {
    PriceCents        uint32  `json:"price_cents"`
    CommissionPercent float64 `json:"commission_percent"`
}

// ProposeNegotiation handles POST /v1/events/:id/negotiation.
func (h *EventHandler) ProposeNegotiation(c echo.Context) error {
    var body offerRequest
    return h.mutate(c, &body, func(who model.Caller, id uint64) (*model.Event, error) {
        return h.Lifecycle.ProposeNegotiation(c.Request().Context(), who, id, body.PriceCents, body.CommissionPercent)
    })
}

// RespondToNegotiation handles POST /v1/events/:id/negotiation/respond.
// The body is {"response": "accept"|"reject"|"counter", ...offer}.
func (h *EventHandler) RespondToNegotiation(c echo.Context) error {
    var body service.RespondInput
    return h.mutate(c, &body, func(who model.Caller, id uint64) (*model.Event, error) {
        return h.Lifecycle.RespondToNegotiation(c.Request().Context(), who, id, body)
    })
}

// ApproveByVenueManager handles POST /v1/events/:id/approve-venue.
func (h *EventHandler) ApproveByVenueManager(c echo.Context) error {
    return h.mutate(c, nil, func(who model.Caller, id uint64) (*model.Event, error) {
        return h.Lifecycle.ApproveByVenueManager(c.Request().Context(), who, id)
    })
}

type reasonRequest struct {
    Reason string `json:"reason"`
}

// RejectEvent handles POST /v1/events/:id/reject.
func (h *EventHandler) RejectEvent(c echo.Context) error {
    var body reasonRequest
    return h.mutate(c, &body, func(who model.Caller, id uint64) (*model.Event, error) {
        return h.Lifecycle.RejectEvent(c.Request().Context(), who, id, body.Reason)
    })
}

// CancelEvent handles POST /v1/events/:id/cancel.  The reason is optional.
func (h *EventHandler) CancelEvent(c echo.Context) error {
    var body reasonRequest
    return h.mutate(c, &body, func(who model.Caller, id uint64) (*model.Event, error) {
        return h.Lifecycle.CancelEvent(c.Request().Context(), who, id, body.Reason)
    })
}

// CompleteEvent handles POST /v1/events/:id/complete.
func (h *EventHandler) CompleteEvent(c echo.Context) error {
    return h.mutate(c, nil, func(who model.Caller, id uint64) (*model.Event, error) {
        return h.Lifecycle.CompleteEvent(c.Request().Context(), who, id)
    })
}

// mutate does the shared parsing for event mutations: caller, :id and an
// optional JSON body decoded into body before op runs.
func (h *EventHandler) mutate(c echo.Context, body interface{}, op func(who model.Caller, id uint64) (*model.Event, error)) error {
    who, ok := callerOf(c)
    if !ok {
        return unauthorized(c)
    }
    id, ok := pathID(c)
    if !ok {
        return badRequest(c, "invalid event id")
    }
    if body != nil && c.Request().ContentLength != 0 {
        if err := c.Bind(body); err != nil {
            return badRequest(c, "invalid request body")
        }
    }
    e, err := op(who, id)
    if err != nil {
        return respondError(c, h.Log, err)
    }
    return c.JSON(http.StatusOK, e)
}
