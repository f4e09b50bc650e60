package queue

import (
    "context"
    "encoding/json"
    "errors"
    "fmt"
    "time"

    amqp "github.com/rabbitmq/amqp091-go"
    "github.com/rs/zerolog"
)

// UsageRefresher recomputes a talkgroup's recent usage counter.
// *repository.TalkGroupRepo implements it.
type UsageRefresher interface {
    RefreshRecentUsage(ctx context.Context, talkGroupID uint64, since time.Time) (int, error)
}

// UsageConsumer listens on ImportedQueue and keeps talkgroups.recent_usage
// at the number of transmissions seen within the configured window.
type UsageConsumer struct {
    url     string
    usage   UsageRefresher
    window  time.Duration
    log     zerolog.Logger
    now     func() time.Time
    timeout time.Duration
}

// NewUsageConsumer builds a consumer for the broker at url.
func NewUsageConsumer(url string, usage UsageRefresher, window time.Duration, log zerolog.Logger) *UsageConsumer {
    return &UsageConsumer{
        url:     url,
        usage:   usage,
        window:  window,
        log:     log.With().Str("component", "usage-consumer").Logger(),
        now:     func() time.Time { return time.Now().UTC() },
        timeout: 5 * time.Second,
    }
}

// Run connects, consumes and reconnects with exponential backoff until ctx
// is cancelled.  It only returns nil, after cancellation.
func (c *UsageConsumer) Run(ctx context.Context) error {
    backoff := time.Second
    for {
        conn, err := amqp.Dial(c.url)
        if err != nil {
            c.log.Warn().Err(err).Dur("retry_in", backoff).Msg("failed to dial broker")
            if !sleep(ctx, backoff) {
                return nil
            }
            if backoff < 30*time.Second {
                backoff *= 2
            }
            continue
        }
        backoff = time.Second

        err = c.consume(ctx, conn)
        _ = conn.Close()
        if ctx.Err() != nil {
            return nil
        }
        c.log.Warn().Err(err).Msg("consume loop ended; reconnecting")
        if !sleep(ctx, 2*time.Second) {
            return nil
        }
    }
}

func (c *UsageConsumer) consume(ctx context.Context, conn *amqp.Connection) error {
    ch, err := conn.Channel()
    if err != nil {
        return fmt.Errorf("channel open: %w", err)
    }
    defer func() { _ = ch.Close() }()

    if err := ch.Qos(50, 0, false); err != nil {
        c.log.Warn().Err(err).Msg("set QoS failed")
    }
    if _, err := ch.QueueDeclare(ImportedQueue, true, false, false, false, nil); err != nil {
        return fmt.Errorf("queue declare: %w", err)
    }
    msgs, err := ch.ConsumeWithContext(ctx, ImportedQueue, "", false, false, false, false, nil)
    if err != nil {
        return fmt.Errorf("queue consume: %w", err)
    }
    c.log.Info().Str("queue", ImportedQueue).Msg("consuming")

    for {
        select {
        case <-ctx.Done():
            return ctx.Err()
        case d, ok := <-msgs:
            if !ok {
                return errors.New("deliveries channel closed")
            }
            if err := c.Handle(ctx, d.Body); err != nil {
                c.log.Error().Err(err).Msg("handle message failed")
                _ = d.Nack(false, false) // reject, do not requeue to avoid tight loops
                continue
            }
            _ = d.Ack(false)
        }
    }
}

// Handle processes one message body.
func (c *UsageConsumer) Handle(ctx context.Context, body []byte) error {
    var ev TransmissionImportedEvent
    if err := json.Unmarshal(body, &ev); err != nil {
        return fmt.Errorf("unmarshal: %w", err)
    }
    if ev.TalkGroupID == 0 {
        return errors.New("event without talkgroup_id")
    }
    ctx, cancel := context.WithTimeout(ctx, c.timeout)
    defer cancel()
    n, err := c.usage.RefreshRecentUsage(ctx, ev.TalkGroupID, c.now().Add(-c.window))
    if err != nil {
        return fmt.Errorf("refresh recent usage of talkgroup %d: %w", ev.TalkGroupID, err)
    }
    c.log.Debug().Uint64("talkgroup_id", ev.TalkGroupID).Int("recent_usage", n).Msg("recent usage refreshed")
    return nil
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
