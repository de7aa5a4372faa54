package config

import (
    "strings"
    "time"
)

// Booking rate-limit keying strategies understood by the limiter.
const (
    RateKeyUserRoute = "user_route"
    RateKeyUser      = "user"
    RateKeyIP        = "ip"
    RateKeyIPUser    = "ip_user"
    RateKeyIPRoute   = "ip_route"
    RateKeyRoute     = "route"
)

var rateKeyStrategies = map[string]bool{
    RateKeyUserRoute: true,
    RateKeyUser:      true,
    RateKeyIP:        true,
    RateKeyIPUser:    true,
    RateKeyIPRoute:   true,
    RateKeyRoute:     true,
}

// RateLimitConfig sizes the per-buyer token bucket in front of
// POST /v1/events/:id/bookings.  A buyer may fire Capacity booking attempts
// back to back, then earns RefillTokens more every RefillInterval.
type RateLimitConfig struct {
    Enabled        bool
    Capacity       int
    RefillTokens   int
    RefillInterval time.Duration
    TTL            time.Duration // idle buckets are dropped from Redis after this
    KeyStrategy    string
    Prefix         string
    Debug          bool // expose the bucket key in X-RateLimit-Key
}

// LoadRateLimitConfig reads the RATE_LIMIT_* variables.  The defaults let a
// buyer retry a contested seat a few times in a row while keeping a bot
// sweeping the seat map to one attempt every two seconds.
// RATE_LIMIT_BURST and RATE_LIMIT_REFILL_EVERY are shorthands that win over
// RATE_LIMIT_CAPACITY and RATE_LIMIT_REFILL_*.
func LoadRateLimitConfig() RateLimitConfig {
    cfg := RateLimitConfig{
        Enabled:        envBool("RATE_LIMIT_ENABLED", true),
        Capacity:       envInt("RATE_LIMIT_CAPACITY", 10),
        RefillTokens:   envInt("RATE_LIMIT_REFILL_TOKENS", 1),
        RefillInterval: envDur("RATE_LIMIT_REFILL_INTERVAL", 2*time.Second),
        TTL:            envDur("RATE_LIMIT_TTL", 10*time.Minute),
        KeyStrategy:    strings.ToLower(envStr("RATE_LIMIT_KEY_STRATEGY", RateKeyUserRoute)),
        Prefix:         envStr("RATE_LIMIT_PREFIX", "rl"),
        Debug:          envBool("RATE_LIMIT_DEBUG", false),
    }
    if burst := envInt("RATE_LIMIT_BURST", 0); burst > 0 {
        cfg.Capacity = burst
    }
    if every := envDur("RATE_LIMIT_REFILL_EVERY", 0); every > 0 {
        cfg.RefillTokens = 1
        cfg.RefillInterval = every
    }
    if !rateKeyStrategies[cfg.KeyStrategy] {
        cfg.KeyStrategy = RateKeyUserRoute
    }
    cfg.Capacity = max(cfg.Capacity, 1)
    cfg.RefillTokens = max(cfg.RefillTokens, 1)
    if cfg.RefillInterval <= 0 {
        cfg.RefillInterval = time.Second
    }
    // a bucket must outlive a full refill cycle or buyers get a fresh burst
    cfg.TTL = max(cfg.TTL, 5*cfg.RefillInterval)
    return cfg
}
