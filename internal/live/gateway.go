package live

import (
    "context"
    "encoding/json"
    "net/http"
    "strings"
    "sync"
    "sync/atomic"
    "time"

    "github.com/google/uuid"
    "github.com/gorilla/websocket"
    "github.com/labstack/echo/v4"
    "github.com/rs/zerolog"

    "github.com/iliyamo/trunk-player/internal/metrics"
    "github.com/iliyamo/trunk-player/internal/model"
)

const (
    maxMessageSize = 1024
    maxChannelLen  = 200
)

// Authenticator turns a raw bearer token into a principal.
type Authenticator func(token string) (model.Principal, error)

// AccessFunc returns the talkgroup filter applied to a connection for its
// whole lifetime.
type AccessFunc func(ctx context.Context, p model.Principal) (func(talkGroupID uint64) bool, error)

// GatewayConfig tunes connection timing and buffering.
type GatewayConfig struct {
    WriteWait time.Duration // upper bound for one websocket write
    PongWait  time.Duration // idle time before a silent client is dropped
    Buffer    int           // outbound queue length per connection
}

func (c GatewayConfig) withDefaults() GatewayConfig {
    if c.WriteWait <= 0 {
        c.WriteWait = 10 * time.Second
    }
    if c.PongWait <= 0 {
        c.PongWait = 60 * time.Second
    }
    if c.Buffer <= 0 {
        c.Buffer = 64
    }
    return c
}

// Gateway upgrades HTTP requests to live connections.
type Gateway struct {
    hub      *Hub
    auth     Authenticator
    access   AccessFunc
    cfg      GatewayConfig
    upgrader websocket.Upgrader
    log      zerolog.Logger
    metrics  *metrics.Metrics
}

// NewGateway builds a gateway.  access may be nil, in which case every
// talkgroup is delivered.
func NewGateway(hub *Hub, auth Authenticator, access AccessFunc, cfg GatewayConfig, log zerolog.Logger, m *metrics.Metrics) *Gateway {
    return &Gateway{
        hub:    hub,
        auth:   auth,
        access: access,
        cfg:    cfg.withDefaults(),
        upgrader: websocket.Upgrader{
            ReadBufferSize:  1024,
            WriteBufferSize: 1024,
            // live pages are served from other origins (PWA, embedded players)
            CheckOrigin: func(*http.Request) bool { return true },
        },
        log:     log,
        metrics: m,
    }
}

// Handle serves GET /ws/ and GET /ws/:kind/:label/.
func (g *Gateway) Handle(c echo.Context) error {
    kind, label := c.Param("kind"), c.Param("label")
    channels := []string{model.DefaultChannel}
    if kind != "" || label != "" {
        if !model.ValidChannelKind(kind) {
            return c.JSON(http.StatusNotFound, echo.Map{"error": "unknown channel type"})
        }
        if !model.ValidChannelLabel(label) {
            return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid channel label"})
        }
        channels = append([]string{model.ChannelID(kind, label)}, channels...)
    }

    principal := model.Anonymous()
    if raw := bearerToken(c.Request()); raw != "" {
        p, err := g.auth(raw)
        if err != nil {
            return c.JSON(http.StatusUnauthorized, echo.Map{"error": "invalid token"})
        }
        principal = p
    }

    allow := func(uint64) bool { return true }
    if g.access != nil {
        f, err := g.access(c.Request().Context(), principal)
        if err != nil {
            g.log.Error().Err(err).Msg("resolve live access")
            return c.JSON(http.StatusInternalServerError, echo.Map{"error": "internal error"})
        }
        allow = f
    }

    ws, err := g.upgrader.Upgrade(c.Response(), c.Request(), nil)
    if err != nil {
        // the upgrader has already written the HTTP error
        g.log.Warn().Err(err).Msg("websocket upgrade failed")
        return nil
    }

    cl := newClient(g, ws, allow)
    cl.log = g.log.With().Str("conn", cl.id).Strs("channels", channels).Logger()
    cl.setState(StateOpen)
    for _, ch := range channels {
        cl.join(ch)
    }
    g.metrics.LiveConnected(1)
    cl.log.Debug().Uint64("user_id", principal.UserID).Msg("live connection open")

    go cl.writePump()
    cl.readPump()
    cl.close()
    return nil
}

// bearerToken reads "Authorization: Bearer <jwt>" or the ?token= query
// parameter browsers must use for websockets.
func bearerToken(r *http.Request) string {
    if auth := r.Header.Get("Authorization"); strings.HasPrefix(auth, "Bearer ") {
        return strings.TrimSpace(strings.TrimPrefix(auth, "Bearer "))
    }
    return r.URL.Query().Get("token")
}

// ConnState is the lifecycle of one live connection.
type ConnState int32

const (
    StateConnecting ConnState = iota
    StateOpen
    StateClosed
)

func (s ConnState) String() string {
    switch s {
    case StateConnecting:
        return "connecting"
    case StateOpen:
        return "open"
    case StateClosed:
        return "closed"
    }
    return "unknown"
}

// client is one websocket connection and a hub Member.  All writes to the
// socket happen on writePump; everything else enqueues on send.
type client struct {
    id    string
    gw    *Gateway
    ws    *websocket.Conn
    allow func(uint64) bool
    log   zerolog.Logger

    state     atomic.Int32
    send      chan []byte
    done      chan struct{}
    closeOnce sync.Once

    mu       sync.Mutex
    channels map[string]struct{}
}

func newClient(g *Gateway, ws *websocket.Conn, allow func(uint64) bool) *client {
    return &client{
        id:       uuid.NewString(),
        gw:       g,
        ws:       ws,
        allow:    allow,
        log:      g.log,
        send:     make(chan []byte, g.cfg.Buffer),
        done:     make(chan struct{}),
        channels: map[string]struct{}{},
    }
}

func (c *client) State() ConnState     { return ConnState(c.state.Load()) }
func (c *client) setState(s ConnState) { c.state.Store(int32(s)) }

// Deliver implements Member.  Messages for talkgroups outside the
// connection's access set are dropped, as are messages arriving while the
// outbound queue is full: a slow reader loses events rather than stalling
// the broadcaster.
func (c *client) Deliver(msg Message) bool {
    if c.State() != StateOpen {
        c.gw.metrics.RecordDropped("closed")
        return false
    }
    if !c.allow(msg.TalkGroupID) {
        c.gw.metrics.RecordDropped("filtered")
        return false
    }
    select {
    case <-c.done:
        c.gw.metrics.RecordDropped("closed")
        return false
    case c.send <- msg.Payload:
        return true
    default:
        c.gw.metrics.RecordDropped("buffer_full")
        c.log.Warn().Msg("live send buffer full, dropping message")
        return false
    }
}

func (c *client) join(channel string) {
    c.gw.hub.Join(channel, c)
    c.mu.Lock()
    c.channels[channel] = struct{}{}
    c.mu.Unlock()
}

func (c *client) leave(channel string) error {
    c.mu.Lock()
    delete(c.channels, channel)
    c.mu.Unlock()
    return c.gw.hub.Leave(channel, c)
}

// reply queues a control response.  Unlike broadcasts it waits up to
// WriteWait for room in the queue.
func (c *client) reply(v any) {
    data, err := json.Marshal(v)
    if err != nil {
        c.log.Error().Err(err).Msg("encode live reply")
        return
    }
    t := time.NewTimer(c.gw.cfg.WriteWait)
    defer t.Stop()
    select {
    case c.send <- data:
    case <-c.done:
    case <-t.C:
        c.log.Warn().Msg("live reply timed out")
    }
}

// controlMessage is a client-originated message.
type controlMessage struct {
    Type    string `json:"type"`
    Channel string `json:"channel,omitempty"`
}

func (c *client) handle(raw []byte) {
    var m controlMessage
    if err := json.Unmarshal(raw, &m); err != nil {
        c.log.Warn().Err(err).Msg("ignoring malformed live message")
        return
    }
    switch m.Type {
    case "ping":
        c.reply(controlMessage{Type: "pong"})
    case "subscribe":
        if !validChannel(m.Channel) {
            c.log.Warn().Str("channel", m.Channel).Msg("ignoring subscribe to invalid channel")
            return
        }
        c.join(m.Channel)
        c.reply(controlMessage{Type: "subscribed", Channel: m.Channel})
    case "unsubscribe":
        if !validChannel(m.Channel) {
            c.log.Warn().Str("channel", m.Channel).Msg("ignoring unsubscribe from invalid channel")
            return
        }
        // leaving a channel the client never joined is acknowledged as a no-op
        _ = c.leave(m.Channel)
        c.reply(controlMessage{Type: "unsubscribed", Channel: m.Channel})
    default:
        c.log.Warn().Str("type", m.Type).Msg("ignoring unknown live message type")
    }
}

func validChannel(ch string) bool {
    return ch != "" && len(ch) <= maxChannelLen && model.ValidChannelLabel(ch)
}

func (c *client) readPump() {
    c.ws.SetReadLimit(maxMessageSize)
    _ = c.ws.SetReadDeadline(time.Now().Add(c.gw.cfg.PongWait))
    c.ws.SetPongHandler(func(string) error {
        return c.ws.SetReadDeadline(time.Now().Add(c.gw.cfg.PongWait))
    })
    for {
        _, data, err := c.ws.ReadMessage()
        if err != nil {
            if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
                c.log.Debug().Err(err).Msg("live connection read error")
            }
            return
        }
        _ = c.ws.SetReadDeadline(time.Now().Add(c.gw.cfg.PongWait))
        c.handle(data)
    }
}

func (c *client) writePump() {
    pingPeriod := (c.gw.cfg.PongWait * 9) / 10
    ticker := time.NewTicker(pingPeriod)
    defer func() {
        ticker.Stop()
        _ = c.ws.Close()
    }()
    for {
        select {
        case <-c.done:
            _ = c.ws.SetWriteDeadline(time.Now().Add(c.gw.cfg.WriteWait))
            _ = c.ws.WriteMessage(websocket.CloseMessage, websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""))
            return
        case data := <-c.send:
            _ = c.ws.SetWriteDeadline(time.Now().Add(c.gw.cfg.WriteWait))
            if err := c.ws.WriteMessage(websocket.TextMessage, data); err != nil {
                c.log.Debug().Err(err).Msg("live write failed")
                // unblock readPump so the connection is torn down
                _ = c.ws.Close()
                return
            }
        case <-ticker.C:
            if err := c.ws.WriteControl(websocket.PingMessage, nil, time.Now().Add(c.gw.cfg.WriteWait)); err != nil {
                _ = c.ws.Close()
                return
            }
        }
    }
}

// close moves the connection to Closed and removes it from every channel.
// A failure leaving one channel is logged and the rest are still left.
func (c *client) close() {
    c.closeOnce.Do(func() {
        c.setState(StateClosed)
        close(c.done)

        c.mu.Lock()
        joined := make([]string, 0, len(c.channels))
        for ch := range c.channels {
            joined = append(joined, ch)
        }
        c.mu.Unlock()

        for _, ch := range joined {
            if err := c.leave(ch); err != nil {
                c.log.Warn().Err(err).Str("channel", ch).Msg("leave channel on close")
            }
        }
        c.gw.metrics.LiveConnected(-1)
        c.log.Debug().Msg("live connection closed")
    })
}
