package handler

import (
    "net/http"

    "github.com/labstack/echo/v4"
    "github.com/rs/zerolog"

    "github.com/iliyamo/live-event-booking/internal/model"
    "github.com/iliyamo/live-event-booking/internal/service"
)

// TicketHandler serves the ticket ledger.
type TicketHandler struct {
    Ledger *service.LedgerService
    Log    zerolog.Logger
}

// NewTicketHandler wires a TicketHandler and panics on a nil service.
func NewTicketHandler(ledger *service.LedgerService, log zerolog.Logger) *TicketHandler {
    if ledger == nil {
        panic("nil ledger service passed to NewTicketHandler")
    }
    return &TicketHandler{Ledger: ledger, Log: log}
}

// MyTickets handles GET /v1/my-tickets.
func (h *TicketHandler) MyTickets(c echo.Context) error {
    who, ok := callerOf(c)
    if !ok {
        return unauthorized(c)
    }
    ts, err := h.Ledger.ListMyTickets(c.Request().Context(), who)
    if err != nil {
        return respondError(c, h.Log, err)
    }
    return c.JSON(http.StatusOK, echo.Map{"tickets": nonNil(ts)})
}

// EventTickets handles GET /v1/events/:id/tickets.  With ?section=&seat=
// it returns the single active ticket holding that seat.
func (h *TicketHandler) EventTickets(c echo.Context) error {
    who, ok := callerOf(c)
    if !ok {
        return unauthorized(c)
    }
    eventID, ok := pathID(c)
    if !ok {
        return badRequest(c, "invalid event id")
    }
    ctx := c.Request().Context()
    section, seat := c.QueryParam("section"), c.QueryParam("seat")
    if section != "" || seat != "" {
        if section == "" || seat == "" {
            return badRequest(c, "section and seat must be given together")
        }
        t, err := h.Ledger.TicketForSeat(ctx, who, eventID, section, seat)
        if err != nil {
            return respondError(c, h.Log, err)
        }
        return c.JSON(http.StatusOK, t)
    }
    ts, err := h.Ledger.ListEventTickets(ctx, who, eventID)
    if err != nil {
        return respondError(c, h.Log, err)
    }
    return c.JSON(http.StatusOK, echo.Map{"tickets": nonNil(ts)})
}

// GetTicket handles GET /v1/tickets/:id.
func (h *TicketHandler) GetTicket(c echo.Context) error {
    return h.ticketOp(c, func(who model.Caller, id uint64) (*model.Ticket, error) {
        return h.Ledger.GetTicket(c.Request().Context(), who, id)
    })
}

// CancelTicket handles DELETE /v1/tickets/:id.
func (h *TicketHandler) CancelTicket(c echo.Context) error {
    return h.ticketOp(c, func(who model.Caller, id uint64) (*model.Ticket, error) {
        return h.Ledger.CancelTicket(c.Request().Context(), who, id)
    })
}

type checkInRequest struct {
    ValidationToken string `json:"validation_token"`
}

// CheckIn handles POST /v1/tickets/:id/check-in.
func (h *TicketHandler) CheckIn(c echo.Context) error {
    var body checkInRequest
    if err := c.Bind(&body); err != nil {
        return badRequest(c, "invalid request body")
    }
    return h.ticketOp(c, func(who model.Caller, id uint64) (*model.Ticket, error) {
        return h.Ledger.CheckIn(c.Request().Context(), who, id, body.ValidationToken)
    })
}

// MarkPaid handles POST /v1/tickets/:id/payment, the payment service's
// confirmation callback.
func (h *TicketHandler) MarkPaid(c echo.Context) error {
    return h.ticketOp(c, func(who model.Caller, id uint64) (*model.Ticket, error) {
        return h.Ledger.MarkPaid(c.Request().Context(), who, id)
    })
}

func (h *TicketHandler) ticketOp(c echo.Context, op func(who model.Caller, id uint64) (*model.Ticket, error)) error {
    who, ok := callerOf(c)
    if !ok {
        return unauthorized(c)
    }
    id, ok := pathID(c)
    if !ok {
        return badRequest(c, "invalid ticket id")
    }
    t, err := op(who, id)
    if err != nil {
        return respondError(c, h.Log, err)
    }
    return c.JSON(http.StatusOK, t)
}

func nonNil(ts []model.Ticket) []model.Ticket {
    if ts == nil {
        return []model.Ticket{}
    }
    return ts
}
