package queue

import (
    "context"
    "encoding/json"
    "errors"
    "fmt"
    "sync"
    "time"

    amqp "github.com/rabbitmq/amqp091-go"
    "github.com/rs/zerolog"

    "github.com/iliyamo/trunk-player/internal/model"
)

// channel is the part of *amqp.Channel the publisher uses.
type channel interface {
    QueueDeclare(name string, durable, autoDelete, exclusive, noWait bool, args amqp.Table) (amqp.Queue, error)
    PublishWithContext(ctx context.Context, exchange, key string, mandatory, immediate bool, msg amqp.Publishing) error
    Close() error
}

// ErrReconnecting is returned while another publish is still connecting to
// the broker.  The event is dropped instead of queueing behind the dial.
var ErrReconnecting = errors.New("broker reconnect in progress")

// defaultDialTimeout bounds a dial made without a context deadline.
const defaultDialTimeout = 30 * time.Second

// dialFunc opens a broker channel.  The returned closer releases the
// connection behind it.
type dialFunc func(ctx context.Context, url string) (channel, func() error, error)

// dialAMQP connects within ctx's deadline.  amqp.Dial does not take a
// context, so the deadline is turned into the connect timeout.
func dialAMQP(ctx context.Context, url string) (channel, func() error, error) {
    timeout := defaultDialTimeout
    if dl, ok := ctx.Deadline(); ok {
        timeout = time.Until(dl)
        if timeout <= 0 {
            return nil, nil, fmt.Errorf("dial broker: %w", context.DeadlineExceeded)
        }
    }
    conn, err := amqp.DialConfig(url, amqp.Config{Dial: amqp.DefaultDial(timeout)})
    if err != nil {
        return nil, nil, fmt.Errorf("dial broker: %w", err)
    }
    ch, err := conn.Channel()
    if err != nil {
        _ = conn.Close()
        return nil, nil, fmt.Errorf("channel open: %w", err)
    }
    return ch, conn.Close, nil
}

// Publisher sends TransmissionImportedEvent messages to ImportedQueue.
// The broker connection is opened on first use and dropped after any
// failure so the next publish reconnects.  Only one publish dials at a
// time; the others fail fast with ErrReconnecting.  Messages are
// persistent.
type Publisher struct {
    url  string
    dial dialFunc
    log  zerolog.Logger

    mu         sync.Mutex
    ch         channel
    closeConn  func() error
    connecting bool
    closed     bool
}

// NewPublisher returns a publisher for the broker at url.
func NewPublisher(url string, log zerolog.Logger) *Publisher {
    return &Publisher{url: url, dial: dialAMQP, log: log.With().Str("component", "queue-publisher").Logger()}
}

// PublishImported publishes the event for t.  It returns once ctx is done
// even when the broker does not answer.
func (p *Publisher) PublishImported(ctx context.Context, t *model.Transmission) error {
    body, err := json.Marshal(NewImportedEvent(t))
    if err != nil {
        return fmt.Errorf("marshal event: %w", err)
    }
    if err := p.ensureConnected(ctx); err != nil {
        return err
    }

    p.mu.Lock()
    defer p.mu.Unlock()
    if p.ch == nil {
        return ErrReconnecting
    }
    err = p.ch.PublishWithContext(ctx,
        "",            // default exchange
        ImportedQueue, // routing key = queue name
        false,         // mandatory
        false,         // immediate
        amqp.Publishing{
            ContentType:  "application/json",
            DeliveryMode: amqp.Persistent,
            Timestamp:    time.Now().UTC(),
            Body:         body,
        })
    if err != nil {
        p.reset()
        return fmt.Errorf("publish %s: %w", ImportedQueue, err)
    }
    return nil
}

// ensureConnected dials when there is no channel.  The dial runs without
// p.mu held and is abandoned when ctx ends first; a connection that comes
// up late is closed.
func (p *Publisher) ensureConnected(ctx context.Context) error {
    p.mu.Lock()
    switch {
    case p.closed:
        p.mu.Unlock()
        return errors.New("publisher closed")
    case p.ch != nil:
        p.mu.Unlock()
        return nil
    case p.connecting:
        p.mu.Unlock()
        return ErrReconnecting
    }
    p.connecting = true
    p.mu.Unlock()

    type result struct {
        ch        channel
        closeConn func() error
        err       error
    }
    done := make(chan result, 1)
    go func() {
        ch, closeConn, err := p.connect(ctx)
        done <- result{ch, closeConn, err}
    }()

    select {
    case r := <-done:
        p.mu.Lock()
        defer p.mu.Unlock()
        p.connecting = false
        if r.err != nil {
            return r.err
        }
        if p.closed {
            _ = r.ch.Close()
            _ = r.closeConn()
            return errors.New("publisher closed")
        }
        p.ch, p.closeConn = r.ch, r.closeConn
        p.log.Info().Str("queue", ImportedQueue).Msg("broker connected")
        return nil
    case <-ctx.Done():
        go func() {
            r := <-done
            if r.err == nil {
                _ = r.ch.Close()
                _ = r.closeConn()
            }
            p.mu.Lock()
            p.connecting = false
            p.mu.Unlock()
        }()
        return fmt.Errorf("dial broker: %w", ctx.Err())
    }
}

// connect dials and declares the queue.
func (p *Publisher) connect(ctx context.Context) (channel, func() error, error) {
    ch, closeConn, err := p.dial(ctx, p.url)
    if err != nil {
        return nil, nil, err
    }
    if _, err := ch.QueueDeclare(ImportedQueue, true, false, false, false, nil); err != nil {
        _ = ch.Close()
        _ = closeConn()
        return nil, nil, fmt.Errorf("queue declare: %w", err)
    }
    return ch, closeConn, nil
}

// reset must be called with p.mu held.
func (p *Publisher) reset() {
    if p.ch != nil {
        _ = p.ch.Close()
    }
    if p.closeConn != nil {
        _ = p.closeConn()
    }
    p.ch, p.closeConn = nil, nil
}

// Close releases the broker connection.
func (p *Publisher) Close() {
    p.mu.Lock()
    defer p.mu.Unlock()
    p.closed = true
    p.reset()
}
