package middleware

import (
    "time"

    "github.com/google/uuid"
    "github.com/labstack/echo/v4"
    "github.com/rs/zerolog"

    "github.com/iliyamo/live-event-booking/internal/logging"
)

// RequestLogger assigns every request an id (reusing an incoming
// X-Request-ID), stores it in the request context for downstream loggers
// and writes one line per request once the handler returns.
func RequestLogger(log zerolog.Logger) echo.MiddlewareFunc {
    return func(next echo.HandlerFunc) echo.HandlerFunc {
        return func(c echo.Context) error {
            req := c.Request()
            id := req.Header.Get(echo.HeaderXRequestID)
            if id == "" {
                id = uuid.NewString()
            }
            c.Response().Header().Set(echo.HeaderXRequestID, id)
            c.SetRequest(req.WithContext(logging.WithRequestID(req.Context(), id)))

            start := time.Now()
            err := next(c)
            if err != nil {
                c.Error(err)
            }

            status := c.Response().Status
            ev := log.Info()
            switch {
            case status >= 500:
                ev = log.Error().Err(err)
            case status >= 400:
                ev = log.Warn()
            }
            ev.Str("request_id", id).
                Str("method", req.Method).
                Str("path", c.Path()).
                Int("status", status).
                Dur("duration", time.Since(start)).
                Str("user", userKey(c)).
                Msg("request")
            return nil
        }
    }
}
