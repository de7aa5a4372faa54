package middleware

import (
    "strconv"

    "github.com/labstack/echo/v4"

    "github.com/iliyamo/live-event-booking/internal/model"
)

// CallerFrom returns the authenticated caller stored by JWTAuth.  ok is
// false on routes that did not pass through JWTAuth.
func CallerFrom(c echo.Context) (model.Caller, bool) {
    id, ok := c.Get(ctxUserID).(uint64)
    if !ok || id == 0 {
        return model.Caller{}, false
    }
    role, _ := c.Get(ctxRole).(string)
    return model.Caller{ID: id, Role: model.Role(role)}, true
}

// userKey identifies the caller in rate-limit keys and request logs.
func userKey(c echo.Context) string {
    if caller, ok := CallerFrom(c); ok {
        return strconv.FormatUint(caller.ID, 10)
    }
    return "anon"
}
