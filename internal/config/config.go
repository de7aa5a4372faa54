package config // package config loads application configuration from environment variables

import (
    "os"
    "strings"
    "time"

    "github.com/rs/zerolog/log"
)

// Storage backends selectable with STORAGE.
const (
    StorageMySQL  = "mysql"
    StorageMemory = "memory"
)

// Config holds all runtime configuration values.  Each field corresponds to
// an environment variable.
type Config struct {
    Env     string // application environment (e.g. "dev", "prod")
    Port    string // HTTP port to listen on
    Storage string // "mysql" or "memory"

    DBUser string // database username
    DBPass string // database password (optional)
    DBHost string // database host address
    DBPort string // database port number
    DBName string // database name

    JWTSecret       string // secret shared with the identity service
    TokenBcryptCost int    // bcrypt cost for ticket validation tokens

    NegotiationTTL           time.Duration // 0 disables negotiation expiry
    NegotiationSweepInterval time.Duration // how often stale negotiations are reverted

    LogLevel  string // zerolog level name
    LogFormat string // "json" or "text"

    RabbitMQURL string // empty disables publishing and the audit consumer
}

// Load reads configuration values from environment variables.  Required
// variables are enforced by must(); database settings are only required
// when STORAGE is mysql.
func Load() Config {
    cfg := Config{
        Env:                      must("APP_ENV"),
        Port:                     must("APP_PORT"),
        Storage:                  strings.ToLower(envStr("STORAGE", StorageMySQL)),
        JWTSecret:                must("JWT_SECRET"),
        TokenBcryptCost:          envInt("TOKEN_BCRYPT_COST", 10),
        NegotiationTTL:           envDur("NEGOTIATION_TTL", 0),
        NegotiationSweepInterval: envDur("NEGOTIATION_SWEEP_INTERVAL", time.Minute),
        LogLevel:                 envStr("LOG_LEVEL", "info"),
        LogFormat:                envStr("LOG_FORMAT", "json"),
        RabbitMQURL:              os.Getenv("RABBITMQ_URL"),
    }
    switch cfg.Storage {
    case StorageMySQL:
        cfg.DBUser = must("DB_USER")
        cfg.DBPass = os.Getenv("DB_PASS") // empty allowed
        cfg.DBHost = must("DB_HOST")
        cfg.DBPort = must("DB_PORT")
        cfg.DBName = must("DB_NAME")
    case StorageMemory:
    default:
        log.Fatal().Str("storage", cfg.Storage).Msg("STORAGE must be mysql or memory")
    }
    if cfg.TokenBcryptCost < 4 || cfg.TokenBcryptCost > 31 {
        log.Fatal().Int("cost", cfg.TokenBcryptCost).Msg("TOKEN_BCRYPT_COST must be between 4 and 31")
    }
    return cfg
}

// must retrieves the value of a required environment variable.  If the
// variable is unset or empty, the application logs a fatal error and exits.
func must(key string) string {
    v, ok := os.LookupEnv(key)
    if !ok || v == "" {
        log.Fatal().Str("key", key).Msg("missing required env var")
    }
    return v
}
