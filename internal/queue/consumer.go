package queue

import (
    "context"
    "encoding/json"
    "errors"
    "fmt"
    "os"
    "path/filepath"
    "strings"
    "time"

    amqp "github.com/rabbitmq/amqp091-go"
    "github.com/rs/zerolog"
)

// Consumer listens to every booking-engine queue and appends one audit
// line per message to <LogDir>/booking.log.
type Consumer struct {
    URL    string
    LogDir string
    Log    zerolog.Logger
}

// Run dials the broker and consumes until ctx is cancelled.  Connection
// failures are retried with exponential backoff capped at 30s; a message
// that cannot be decoded is rejected without requeue so it cannot loop.
func (c *Consumer) Run(ctx context.Context) error {
    dir := c.LogDir
    if dir == "" {
        dir = "logs"
    }
    if err := os.MkdirAll(dir, 0o755); err != nil {
        return fmt.Errorf("mkdir logs: %w", err)
    }
    f, err := os.OpenFile(filepath.Join(dir, "booking.log"), os.O_CREATE|os.O_APPEND|os.O_WRONLY, 0o644)
    if err != nil {
        return fmt.Errorf("open log file: %w", err)
    }
    defer f.Close()
    audit := zerolog.New(f).With().Timestamp().Logger()

    backoff := time.Second
    for {
        if ctx.Err() != nil {
            return ctx.Err()
        }
        conn, err := amqp.Dial(c.URL)
        if err != nil {
            c.Log.Warn().Err(err).Dur("retry_in", backoff).Msg("booking-consumer: failed to dial broker")
            if !sleep(ctx, backoff) {
                return ctx.Err()
            }
            if backoff < 30*time.Second {
                backoff *= 2
            }
            continue
        }
        backoff = time.Second

        err = c.consumeLoop(ctx, conn, audit)
        _ = conn.Close()
        if ctx.Err() != nil {
            return ctx.Err()
        }
        c.Log.Warn().Err(err).Msg("booking-consumer: consume loop ended; reconnecting")
        if !sleep(ctx, 2*time.Second) {
            return ctx.Err()
        }
    }
}

func sleep(ctx context.Context, d time.Duration) bool {
    t := time.NewTimer(d)
    defer t.Stop()
    select {
    case <-ctx.Done():
        return false
    case <-t.C:
        return true
    }
}

type delivery struct {
    queue string
    msg   amqp.Delivery
}

func (c *Consumer) consumeLoop(ctx context.Context, conn *amqp.Connection, audit zerolog.Logger) error {
    ch, err := conn.Channel()
    if err != nil {
        return fmt.Errorf("channel open: %w", err)
    }
    defer func() { _ = ch.Close() }()

    if err := ch.Qos(50, 0, false); err != nil {
        c.Log.Warn().Err(err).Msg("booking-consumer: set QoS failed")
    }

    merged := make(chan delivery)
    for _, name := range Queues {
        if _, err := ch.QueueDeclare(name, true, false, false, false, nil); err != nil {
            return fmt.Errorf("queue declare %s: %w", name, err)
        }
        msgs, err := ch.Consume(name, "", false, false, false, false, nil)
        if err != nil {
            return fmt.Errorf("queue consume %s: %w", name, err)
        }
        go func(name string, msgs <-chan amqp.Delivery) {
            for d := range msgs {
                select {
                case merged <- delivery{queue: name, msg: d}:
                case <-ctx.Done():
                    return
                }
            }
        }(name, msgs)
    }

    closed := conn.NotifyClose(make(chan *amqp.Error, 1))
    for {
        select {
        case <-ctx.Done():
            return ctx.Err()
        case amqpErr := <-closed:
            if amqpErr != nil {
                return amqpErr
            }
            return errors.New("connection closed")
        case d := <-merged:
            if err := HandleMessage(audit, d.queue, d.msg.Body); err != nil {
                c.Log.Error().Err(err).Str("queue", d.queue).Msg("booking-consumer: handle message failed")
                _ = d.msg.Nack(false, false)
                continue
            }
            _ = d.msg.Ack(false)
        }
    }
}

// HandleMessage decodes a payload from the named queue and writes one
// audit entry for it.
func HandleMessage(audit zerolog.Logger, queue string, body []byte) error {
    switch queue {
    case BookingConfirmedQueue:
        var ev BookingConfirmedEvent
        if err := json.Unmarshal(body, &ev); err != nil {
            return fmt.Errorf("unmarshal: %w", err)
        }
        audit.Info().
            Str("kind", queue).
            Uint64("event_id", ev.EventID).
            Str("event", ev.EventTitle).
            Uint64("user_id", ev.UserID).
            Str("seats", "["+strings.Join(ev.SeatLabels, ",")+"]").
            Uint64("total_cents", ev.TotalAmountCents).
            Str("at", ev.ConfirmedAt).
            Msg("booking confirmed")
    case TicketCancelledQueue:
        var ev TicketCancelledEvent
        if err := json.Unmarshal(body, &ev); err != nil {
            return fmt.Errorf("unmarshal: %w", err)
        }
        audit.Info().
            Str("kind", queue).
            Uint64("ticket_id", ev.TicketID).
            Uint64("event_id", ev.EventID).
            Uint64("user_id", ev.UserID).
            Uint64("cancelled_by", ev.CancelledBy).
            Str("seat", ev.SeatLabel).
            Str("payment_status", ev.PaymentStatus).
            Str("at", ev.CancelledAt).
            Msg("ticket cancelled")
    case EventStatusChangedQueue:
        var ev EventStatusChangedEvent
        if err := json.Unmarshal(body, &ev); err != nil {
            return fmt.Errorf("unmarshal: %w", err)
        }
        audit.Info().
            Str("kind", queue).
            Uint64("event_id", ev.EventID).
            Str("from", ev.From).
            Str("to", ev.To).
            Uint64("actor_id", ev.ActorID).
            Str("actor_role", ev.ActorRole).
            Str("reason", ev.Reason).
            Str("at", ev.ChangedAt).
            Msg("event status changed")
    default:
        return fmt.Errorf("unknown queue %q", queue)
    }
    return nil
}
