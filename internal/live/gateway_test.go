package live

import (
    "context"
    "encoding/json"
    "errors"
    "net/http"
    "net/http/httptest"
    "strings"
    "testing"
    "time"

    "github.com/gorilla/websocket"
    "github.com/labstack/echo/v4"
    "github.com/rs/zerolog"
    "github.com/stretchr/testify/assert"
    "github.com/stretchr/testify/require"

    "github.com/iliyamo/trunk-player/internal/model"
)

const testToken = "good-token"

type gatewayFixture struct {
    hub *Hub
    srv *httptest.Server
}

func newGatewayFixture(t *testing.T, access AccessFunc) *gatewayFixture {
    t.Helper()
    hub := NewHub(nil)
    auth := func(token string) (model.Principal, error) {
        if token != testToken {
            return model.Principal{}, errors.New("bad token")
        }
        return model.UserPrincipal(1, "user"), nil
    }
    gw := NewGateway(hub, auth, access, GatewayConfig{WriteWait: time.Second, PongWait: 5 * time.Second, Buffer: 8},
        zerolog.Nop(), nil)

    e := echo.New()
    e.GET("/ws/", gw.Handle)
    e.GET("/ws/:kind/:label/", gw.Handle)
    srv := httptest.NewServer(e)
    t.Cleanup(srv.Close)
    return &gatewayFixture{hub: hub, srv: srv}
}

func (f *gatewayFixture) dial(t *testing.T, path string) *websocket.Conn {
    t.Helper()
    url := "ws" + strings.TrimPrefix(f.srv.URL, "http") + path
    ws, resp, err := websocket.DefaultDialer.Dial(url, nil)
    require.NoError(t, err)
    if resp != nil && resp.Body != nil {
        _ = resp.Body.Close()
    }
    t.Cleanup(func() {
        _ = ws.Close()
        // server side must notice and leave every channel
        assert.Eventually(t, func() bool { return f.hub.Members(model.DefaultChannel) == 0 },
            2*time.Second, 10*time.Millisecond)
    })
    require.Eventually(t, func() bool { return f.hub.Members(model.DefaultChannel) > 0 }, 2*time.Second, 5*time.Millisecond)
    return ws
}

func send(t *testing.T, ws *websocket.Conn, v any) {
    t.Helper()
    require.NoError(t, ws.WriteJSON(v))
}

func readJSON(t *testing.T, ws *websocket.Conn) map[string]any {
    t.Helper()
    require.NoError(t, ws.SetReadDeadline(time.Now().Add(2*time.Second)))
    var out map[string]any
    require.NoError(t, ws.ReadJSON(&out))
    return out
}

// expectNothingQueued proves no event is pending: a ping sent now must be
// answered before anything else.
func expectNothingQueued(t *testing.T, ws *websocket.Conn) {
    t.Helper()
    send(t, ws, map[string]string{"type": "ping"})
    assert.Equal(t, map[string]any{"type": "pong"}, readJSON(t, ws))
}

func event(channels []string, tg uint64, slug string) Message {
    payload, _ := json.Marshal(map[string]any{"type": "transmission", "data": map[string]any{"slug": slug}})
    return Message{Channels: channels, TalkGroupID: tg, Payload: payload}
}

func TestGatewayPingPong(t *testing.T) {
    f := newGatewayFixture(t, nil)
    ws := f.dial(t, "/ws/")

    send(t, ws, map[string]string{"type": "ping"})
    assert.Equal(t, map[string]any{"type": "pong"}, readJSON(t, ws))
}

func TestGatewayTalkGroupChannelReceivesEvent(t *testing.T) {
    f := newGatewayFixture(t, nil)
    ws := f.dial(t, "/ws/tg/metro-pddisp/")
    require.Equal(t, 1, f.hub.Members("tg-metro-pddisp"))

    // one event addressed to both joined channels arrives once
    f.hub.Broadcast(event([]string{"default", "tg-metro-pddisp"}, 1, "abc"))
    got := readJSON(t, ws)
    assert.Equal(t, "transmission", got["type"])
    assert.Equal(t, "abc", got["data"].(map[string]any)["slug"])
    expectNothingQueued(t, ws)
}

func TestGatewaySubscribeUnsubscribe(t *testing.T) {
    f := newGatewayFixture(t, nil)
    ws := f.dial(t, "/ws/")

    send(t, ws, map[string]string{"type": "subscribe", "channel": "scan-fire-ops"})
    assert.Equal(t, map[string]any{"type": "subscribed", "channel": "scan-fire-ops"}, readJSON(t, ws))

    f.hub.Broadcast(event([]string{"scan-fire-ops"}, 1, "one"))
    assert.Equal(t, "one", readJSON(t, ws)["data"].(map[string]any)["slug"])

    send(t, ws, map[string]string{"type": "unsubscribe", "channel": "scan-fire-ops"})
    assert.Equal(t, map[string]any{"type": "unsubscribed", "channel": "scan-fire-ops"}, readJSON(t, ws))

    f.hub.Broadcast(event([]string{"scan-fire-ops"}, 1, "two"))
    expectNothingQueued(t, ws)

    f.hub.Broadcast(event([]string{"default"}, 1, "three"))
    assert.Equal(t, "three", readJSON(t, ws)["data"].(map[string]any)["slug"])
}

func TestGatewayUnsubscribeNonMemberIsAcked(t *testing.T) {
    f := newGatewayFixture(t, nil)
    ws := f.dial(t, "/ws/")

    send(t, ws, map[string]string{"type": "unsubscribe", "channel": "tg-never"})
    assert.Equal(t, map[string]any{"type": "unsubscribed", "channel": "tg-never"}, readJSON(t, ws))
}

func TestGatewayIgnoresMalformedMessages(t *testing.T) {
    f := newGatewayFixture(t, nil)
    ws := f.dial(t, "/ws/")

    require.NoError(t, ws.WriteMessage(websocket.TextMessage, []byte("not json")))
    send(t, ws, map[string]string{"type": "dance"})
    send(t, ws, map[string]string{"type": "subscribe", "channel": "bad channel!"})
    send(t, ws, map[string]string{"type": "ping"})
    assert.Equal(t, map[string]any{"type": "pong"}, readJSON(t, ws))
}

func TestGatewayAccessFilter(t *testing.T) {
    access := func(_ context.Context, p model.Principal) (func(uint64) bool, error) {
        if p.Authenticated {
            return func(uint64) bool { return true }, nil
        }
        return func(id uint64) bool { return id == 1 }, nil
    }
    f := newGatewayFixture(t, access)
    ws := f.dial(t, "/ws/")

    f.hub.Broadcast(event([]string{"default"}, 2, "private"))
    f.hub.Broadcast(event([]string{"default"}, 1, "public"))
    assert.Equal(t, "public", readJSON(t, ws)["data"].(map[string]any)["slug"])
    expectNothingQueued(t, ws)
}

func TestGatewayAuthenticatedViaQueryToken(t *testing.T) {
    access := func(_ context.Context, p model.Principal) (func(uint64) bool, error) {
        return func(uint64) bool { return p.Authenticated }, nil
    }
    f := newGatewayFixture(t, access)
    ws := f.dial(t, "/ws/?token="+testToken)

    f.hub.Broadcast(event([]string{"default"}, 5, "seen"))
    assert.Equal(t, "seen", readJSON(t, ws)["data"].(map[string]any)["slug"])
}

func TestGatewayRejectsBeforeUpgrade(t *testing.T) {
    f := newGatewayFixture(t, nil)
    base := "ws" + strings.TrimPrefix(f.srv.URL, "http")

    cases := map[string]int{
        "/ws/?token=nope": http.StatusUnauthorized,
        "/ws/zz/metro/":   http.StatusNotFound,
    }
    for path, status := range cases {
        _, resp, err := websocket.DefaultDialer.Dial(base+path, nil)
        require.ErrorIs(t, err, websocket.ErrBadHandshake, path)
        require.NotNil(t, resp, path)
        assert.Equal(t, status, resp.StatusCode, path)
        _ = resp.Body.Close()
    }

    header := http.Header{"Authorization": []string{"Bearer nope"}}
    _, resp, err := websocket.DefaultDialer.Dial(base+"/ws/", header)
    require.ErrorIs(t, err, websocket.ErrBadHandshake)
    assert.Equal(t, http.StatusUnauthorized, resp.StatusCode)
    _ = resp.Body.Close()
    assert.Equal(t, 0, f.hub.Members(model.DefaultChannel))
}

func TestGatewayCloseLeavesAllChannels(t *testing.T) {
    f := newGatewayFixture(t, nil)
    url := "ws" + strings.TrimPrefix(f.srv.URL, "http") + "/ws/unit/metro-4521/"
    ws, _, err := websocket.DefaultDialer.Dial(url, nil)
    require.NoError(t, err)
    require.Eventually(t, func() bool { return f.hub.Members("unit-metro-4521") == 1 }, 2*time.Second, 5*time.Millisecond)

    send(t, ws, map[string]string{"type": "subscribe", "channel": "inc-fire"})
    readJSON(t, ws)
    require.Equal(t, 1, f.hub.Members("inc-fire"))

    require.NoError(t, ws.Close())
    assert.Eventually(t, func() bool {
        return f.hub.Members("unit-metro-4521") == 0 && f.hub.Members("inc-fire") == 0 &&
            f.hub.Members(model.DefaultChannel) == 0
    }, 2*time.Second, 10*time.Millisecond)
}
