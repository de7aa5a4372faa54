package handler

import (
    "net/http"

    "github.com/labstack/echo/v4"
    "github.com/rs/zerolog"

    "github.com/iliyamo/live-event-booking/internal/service"
)

// BookingHandler books seats and serves the seat views of an event.
type BookingHandler struct {
    Booking *service.BookingService
    Log     zerolog.Logger
}

// NewBookingHandler wires a BookingHandler and panics on a nil service.
func NewBookingHandler(booking *service.BookingService, log zerolog.Logger) *BookingHandler {
    if booking == nil {
        panic("nil booking service passed to NewBookingHandler")
    }
    return &BookingHandler{Booking: booking, Log: log}
}

type bookSeatsRequest struct {
    Seats []service.SeatRequest `json:"seats"`
}

// seatUnavailableBody names the seat that sank a booking.
type seatUnavailableBody struct {
    errorBody
    SectionName string `json:"section_name"`
    SeatNumber  string `json:"seat_number"`
}

// BookSeats handles POST /v1/events/:id/bookings.  Every seat is booked or
// none is.  A taken seat and an event that is not on sale both answer 400,
// the former with code "seat_unavailable".
func (h *BookingHandler) BookSeats(c echo.Context) error {
    who, ok := callerOf(c)
    if !ok {
        return unauthorized(c)
    }
    eventID, ok := pathID(c)
    if !ok {
        return badRequest(c, "invalid event id")
    }
    var body bookSeatsRequest
    if err := c.Bind(&body); err != nil {
        return badRequest(c, "invalid request body")
    }

    res, err := h.Booking.BookSeats(c.Request().Context(), who.ID, eventID, body.Seats)
    if err != nil {
        if seat, ok := service.SeatOf(err); ok {
            return c.JSON(http.StatusBadRequest, seatUnavailableBody{
                errorBody:   errorBody{Error: err.Error(), Code: "seat_unavailable"},
                SectionName: seat.SectionName,
                SeatNumber:  seat.SeatNumber,
            })
        }
        if service.KindOf(err) == service.KindPreconditionFailed {
            return c.JSON(http.StatusBadRequest, errorBody{Error: err.Error(), Code: string(service.KindPreconditionFailed)})
        }
        return respondError(c, h.Log, err)
    }
    return c.JSON(http.StatusOK, res)
}

// AvailableSeats handles GET /v1/events/:id/seats/available.
func (h *BookingHandler) AvailableSeats(c echo.Context) error {
    eventID, ok := pathID(c)
    if !ok {
        return badRequest(c, "invalid event id")
    }
    out, err := h.Booking.GetAvailableSeats(c.Request().Context(), eventID)
    if err != nil {
        return respondError(c, h.Log, err)
    }
    return c.JSON(http.StatusOK, out)
}

// SeatLayout handles GET /v1/events/:id/seats/layout.
func (h *BookingHandler) SeatLayout(c echo.Context) error {
    eventID, ok := pathID(c)
    if !ok {
        return badRequest(c, "invalid event id")
    }
    out, err := h.Booking.GetVenueSeatLayout(c.Request().Context(), eventID)
    if err != nil {
        return respondError(c, h.Log, err)
    }
    return c.JSON(http.StatusOK, out)
}
