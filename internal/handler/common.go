package handler // handler defines http handlers

import (
    "net/http"
    "strconv"

    "github.com/labstack/echo/v4"
    "github.com/rs/zerolog"

    "github.com/iliyamo/live-event-booking/internal/logging"
    "github.com/iliyamo/live-event-booking/internal/middleware"
    "github.com/iliyamo/live-event-booking/internal/model"
    "github.com/iliyamo/live-event-booking/internal/service"
)

// errorBody is the JSON shape of every failed response.
type errorBody struct {
    Error string `json:"error"`
    Code  string `json:"code"`
}

var kindStatus = map[service.Kind]int{
    service.KindNotFound:           http.StatusNotFound,
    service.KindValidation:         http.StatusBadRequest,
    service.KindConfiguration:      http.StatusBadRequest,
    service.KindPreconditionFailed: http.StatusPreconditionFailed,
    service.KindConflict:           http.StatusConflict,
    service.KindForbidden:          http.StatusForbidden,
    service.KindInternal:           http.StatusInternalServerError,
}

// respondError maps a service error to its HTTP status.  Internal errors
// are logged with their cause and reported without it.
func respondError(c echo.Context, log zerolog.Logger, err error) error {
    kind := service.KindOf(err)
    status, ok := kindStatus[kind]
    if !ok {
        status = http.StatusInternalServerError
    }
    if status == http.StatusInternalServerError {
        l := logging.FromContext(c.Request().Context(), log)
        l.Error().Err(err).Str("path", c.Path()).Msg("request failed")
        return c.JSON(status, errorBody{Error: "internal error", Code: string(service.KindInternal)})
    }
    return c.JSON(status, errorBody{Error: err.Error(), Code: string(kind)})
}

func badRequest(c echo.Context, msg string) error {
    return c.JSON(http.StatusBadRequest, errorBody{Error: msg, Code: string(service.KindValidation)})
}

func unauthorized(c echo.Context) error {
    return c.JSON(http.StatusUnauthorized, errorBody{Error: "unauthorized", Code: "unauthorized"})
}

// callerOf returns the authenticated caller; routes registered behind
// JWTAuth always have one.
func callerOf(c echo.Context) (model.Caller, bool) {
    return middleware.CallerFrom(c)
}

// pathID parses the :id route parameter.
func pathID(c echo.Context) (uint64, bool) {
    id, err := strconv.ParseUint(c.Param("id"), 10, 64)
    return id, err == nil && id > 0
}
