package handler

import (
    "net/http"

    "github.com/labstack/echo/v4"
    "github.com/rs/zerolog"

    "github.com/iliyamo/live-event-booking/internal/service"
)

// VenueHandler exposes venue creation and layout editing to venue managers.
type VenueHandler struct {
    Layout *service.LayoutService
    Log    zerolog.Logger
}

// NewVenueHandler wires a VenueHandler and panics on a nil service.
func NewVenueHandler(layout *service.LayoutService, log zerolog.Logger) *VenueHandler {
    if layout == nil {
        panic("nil layout service passed to NewVenueHandler")
    }
    return &VenueHandler{Layout: layout, Log: log}
}

type venueRequest struct {
    Name     string                `json:"name"`
    Sections []service.SectionSpec `json:"sections"`
}

// CreateVenue handles POST /v1/venues.
func (h *VenueHandler) CreateVenue(c echo.Context) error {
    who, ok := callerOf(c)
    if !ok {
        return unauthorized(c)
    }
    var body venueRequest
    if err := c.Bind(&body); err != nil {
        return badRequest(c, "invalid request body")
    }
    v, err := h.Layout.CreateVenue(c.Request().Context(), who, body.Name, body.Sections)
    if err != nil {
        return respondError(c, h.Log, err)
    }
    return c.JSON(http.StatusCreated, v)
}

// GetVenue handles GET /v1/venues/:id.  Sections are returned without
// their seat lists.
func (h *VenueHandler) GetVenue(c echo.Context) error {
    id, ok := pathID(c)
    if !ok {
        return badRequest(c, "invalid venue id")
    }
    v, err := h.Layout.GetVenue(c.Request().Context(), id)
    if err != nil {
        return respondError(c, h.Log, err)
    }
    for i := range v.Sections {
        v.Sections[i].Seats = nil
    }
    return c.JSON(http.StatusOK, v)
}

// EditLayout handles PUT /v1/venues/:id/layout.  Existing events keep the
// seat map they were created with.
func (h *VenueHandler) EditLayout(c echo.Context) error {
    who, ok := callerOf(c)
    if !ok {
        return unauthorized(c)
    }
    id, ok := pathID(c)
    if !ok {
        return badRequest(c, "invalid venue id")
    }
    var body venueRequest
    if err := c.Bind(&body); err != nil {
        return badRequest(c, "invalid request body")
    }
    v, err := h.Layout.EditLayout(c.Request().Context(), who, id, body.Sections)
    if err != nil {
        return respondError(c, h.Log, err)
    }
    return c.JSON(http.StatusOK, v)
}
