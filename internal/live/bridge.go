package live

import (
    "context"
    "encoding/json"
    "fmt"

    "github.com/redis/go-redis/v9"
    "github.com/rs/zerolog"
)

// Bridge is the broadcast component handed to the fan-out router.  With a
// Redis client every publish goes through the pub/sub topic and Run feeds
// received messages into the local hub, so connections on every server
// process see every transmission.  Without Redis, Publish delivers to the
// local hub directly.
type Bridge struct {
    hub   *Hub
    rdb   *redis.Client
    topic string
    log   zerolog.Logger
}

// NewBridge wires hub to rdb on topic.  rdb may be nil.
func NewBridge(hub *Hub, rdb *redis.Client, topic string, log zerolog.Logger) *Bridge {
    return &Bridge{hub: hub, rdb: rdb, topic: topic, log: log}
}

// Publish sends msg to every process.  It does not wait for delivery to
// individual connections.
func (b *Bridge) Publish(ctx context.Context, msg Message) error {
    if b.rdb == nil {
        b.hub.Broadcast(msg)
        return nil
    }
    data, err := json.Marshal(msg)
    if err != nil {
        return fmt.Errorf("encode live message: %w", err)
    }
    if err := b.rdb.Publish(ctx, b.topic, data).Err(); err != nil {
        return fmt.Errorf("publish %s: %w", b.topic, err)
    }
    return nil
}

// Run subscribes to the topic and dispatches into the hub until ctx is
// cancelled.  Without Redis it just waits for cancellation.
func (b *Bridge) Run(ctx context.Context) error {
    if b.rdb == nil {
        <-ctx.Done()
        return nil
    }
    sub := b.rdb.Subscribe(ctx, b.topic)
    defer func() { _ = sub.Close() }()

    // Receive once so a dead server is reported at startup instead of
    // after the first missed event.
    if _, err := sub.Receive(ctx); err != nil {
        if ctx.Err() != nil {
            return nil
        }
        return fmt.Errorf("subscribe %s: %w", b.topic, err)
    }
    b.log.Info().Str("topic", b.topic).Msg("live bridge subscribed")

    ch := sub.Channel()
    for {
        select {
        case <-ctx.Done():
            return nil
        case m, ok := <-ch:
            if !ok {
                return nil
            }
            var msg Message
            if err := json.Unmarshal([]byte(m.Payload), &msg); err != nil {
                b.log.Warn().Err(err).Msg("dropping malformed live message")
                continue
            }
            b.hub.Broadcast(msg)
        }
    }
}
