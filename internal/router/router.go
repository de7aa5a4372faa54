package router // package router defines how HTTP routes are registered for the API

import (
    "github.com/labstack/echo/v4"

    "github.com/iliyamo/live-event-booking/internal/handler"
    "github.com/iliyamo/live-event-booking/internal/middleware"
    "github.com/iliyamo/live-event-booking/internal/model"
)

// Handlers groups everything RegisterRoutes mounts.
type Handlers struct {
    Venues   *handler.VenueHandler
    Events   *handler.EventHandler
    Bookings *handler.BookingHandler
    Tickets  *handler.TicketHandler
    Health   echo.HandlerFunc
}

// Middleware carries the shared middleware built in main.
type Middleware struct {
    JWTSecret string
    // RateLimit wraps the booking route.
    RateLimit echo.MiddlewareFunc
    // SeatCache wraps the public seat reads.
    SeatCache echo.MiddlewareFunc
}

// RegisterRoutes mounts the API.  Seat reads and event lookups are public;
// everything else sits behind JWTAuth with per-route role checks.
// Ownership (this artist's event, this manager's venue) is checked by the
// services.
func RegisterRoutes(e *echo.Echo, h Handlers, mw Middleware) {
    if mw.RateLimit == nil {
        mw.RateLimit = passThrough
    }
    if mw.SeatCache == nil {
        mw.SeatCache = passThrough
    }

    e.GET("/healthz", h.Health)

    pub := e.Group("/v1")
    pub.GET("/venues/:id", h.Venues.GetVenue)
    pub.GET("/events/:id", h.Events.GetEvent)
    pub.GET("/events/:id/seats/available", h.Bookings.AvailableSeats, mw.SeatCache)
    pub.GET("/events/:id/seats/layout", h.Bookings.SeatLayout, mw.SeatCache)

    auth := e.Group("/v1", middleware.JWTAuth(mw.JWTSecret))
    admin := middleware.RequireRole(model.RoleAdmin)
    manager := middleware.RequireRole(model.RoleVenueManager)
    artist := middleware.RequireRole(model.RoleArtist)

    auth.POST("/venues", h.Venues.CreateVenue, manager)
    auth.PUT("/venues/:id/layout", h.Venues.EditLayout, manager)

    auth.POST("/events", h.Events.CreateEvent, artist)
    auth.PATCH("/events/:id", h.Events.UpdateEvent, artist)
    auth.POST("/events/:id/approve-admin", h.Events.ApproveByAdmin, admin)
    auth.POST("/events/:id/negotiation", h.Events.ProposeNegotiation, manager)
    auth.POST("/events/:id/negotiation/respond", h.Events.RespondToNegotiation,
        middleware.RequireRole(model.RoleArtist, model.RoleVenueManager))
    auth.POST("/events/:id/approve-venue", h.Events.ApproveByVenueManager, manager)
    auth.POST("/events/:id/reject", h.Events.RejectEvent,
        middleware.RequireRole(model.RoleAdmin, model.RoleVenueManager))
    auth.POST("/events/:id/cancel", h.Events.CancelEvent,
        middleware.RequireRole(model.RoleAdmin, model.RoleArtist))
    auth.POST("/events/:id/complete", h.Events.CompleteEvent, admin)

    auth.POST("/events/:id/bookings", h.Bookings.BookSeats,
        middleware.RequireRole(model.RoleUser), mw.RateLimit)

    auth.GET("/my-tickets", h.Tickets.MyTickets)
    auth.GET("/events/:id/tickets", h.Tickets.EventTickets,
        middleware.RequireRole(model.RoleAdmin, model.RoleVenueManager, model.RoleArtist))
    auth.GET("/tickets/:id", h.Tickets.GetTicket)
    auth.DELETE("/tickets/:id", h.Tickets.CancelTicket)
    auth.POST("/tickets/:id/check-in", h.Tickets.CheckIn,
        middleware.RequireRole(model.RoleAdmin, model.RoleVenueManager))
    auth.POST("/tickets/:id/payment", h.Tickets.MarkPaid, admin)
}

func passThrough(next echo.HandlerFunc) echo.HandlerFunc { return next }
