// Package live delivers new transmissions to connected websocket clients.
//
// A Hub maps channel ids to member sets.  Each channel has its own lock, so
// broadcasts on unrelated channels never contend.  A Bridge publishes to
// the hub directly or, when Redis is configured, through a pub/sub topic so
// every server process delivers to its own connections.  The Gateway owns
// the websocket side.
package live

import (
    "encoding/json"
    "errors"
    "sync"

    "github.com/iliyamo/trunk-player/internal/metrics"
)

// ErrNotMember is returned by Leave when the member was not in the channel.
var ErrNotMember = errors.New("not a member of channel")

// Message is one live event addressed to a set of channels.  TalkGroupID
// lets each connection apply its own access filter.
type Message struct {
    Channels    []string        `json:"channels"`
    TalkGroupID uint64          `json:"talkgroup_id"`
    Payload     json.RawMessage `json:"payload"`
}

// Member receives broadcasts.  Deliver must not block; it reports whether
// the message was queued.
type Member interface {
    Deliver(msg Message) bool
}

type group struct {
    mu      sync.RWMutex
    members map[Member]struct{}
    dead    bool // removed from the hub; joiners must create a new group
}

// Hub is the in-process channel registry.  The zero value is not usable;
// construct it with NewHub.
type Hub struct {
    groups  sync.Map // channel id -> *group
    metrics *metrics.Metrics
}

// NewHub returns an empty hub.  m may be nil.
func NewHub(m *metrics.Metrics) *Hub {
    return &Hub{metrics: m}
}

// Join adds m to channel.  Joining twice is a no-op.
func (h *Hub) Join(channel string, m Member) {
    for {
        v, _ := h.groups.LoadOrStore(channel, &group{members: map[Member]struct{}{}})
        g := v.(*group)
        g.mu.Lock()
        if g.dead {
            // lost a race with the last Leave; retry against a fresh group
            g.mu.Unlock()
            continue
        }
        g.members[m] = struct{}{}
        g.mu.Unlock()
        return
    }
}

// Leave removes m from channel.  The channel entry is dropped once its last
// member leaves.
func (h *Hub) Leave(channel string, m Member) error {
    v, ok := h.groups.Load(channel)
    if !ok {
        return ErrNotMember
    }
    g := v.(*group)
    g.mu.Lock()
    defer g.mu.Unlock()
    if _, ok := g.members[m]; !ok {
        return ErrNotMember
    }
    delete(g.members, m)
    if len(g.members) == 0 {
        g.dead = true
        h.groups.CompareAndDelete(channel, g)
    }
    return nil
}

// Broadcast hands msg to every member of any of msg.Channels.  A member
// joined to several of the channels receives it once.  Delivery happens
// outside the channel locks, and a member that cannot take the message is
// skipped without affecting the others.  It returns the number of members
// that accepted the message.
func (h *Hub) Broadcast(msg Message) int {
    targets := make(map[Member]struct{})
    for _, ch := range msg.Channels {
        v, ok := h.groups.Load(ch)
        if !ok {
            continue
        }
        g := v.(*group)
        g.mu.RLock()
        for m := range g.members {
            targets[m] = struct{}{}
        }
        g.mu.RUnlock()
    }

    delivered := 0
    for m := range targets {
        if m.Deliver(msg) {
            delivered++
            h.metrics.RecordDelivered()
        }
    }
    return delivered
}

// Members returns the number of members in channel.
func (h *Hub) Members(channel string) int {
    v, ok := h.groups.Load(channel)
    if !ok {
        return 0
    }
    g := v.(*group)
    g.mu.RLock()
    defer g.mu.RUnlock()
    return len(g.members)
}
