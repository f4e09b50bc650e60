package service

import (
    "context"
    "encoding/json"
    "errors"
    "fmt"
    "time"

    "github.com/rs/zerolog"

    "github.com/iliyamo/trunk-player/internal/live"
    "github.com/iliyamo/trunk-player/internal/metrics"
    "github.com/iliyamo/trunk-player/internal/model"
)

// Publisher sends a live message to every server process.  *live.Bridge
// implements it.
type Publisher interface {
    Publish(ctx context.Context, msg live.Message) error
}

// ScanListLookup finds the scanlists currently containing a talkgroup.
type ScanListLookup interface {
    SlugsForTalkGroup(ctx context.Context, talkGroupID uint64) ([]string, error)
}

// Projection is the live event body: the fields a player needs to show and
// fetch the transmission, not the full record.
type Projection struct {
    Slug           string    `json:"slug"`
    StartDatetime  time.Time `json:"start_datetime"`
    TalkGroupSlug  string    `json:"talkgroup_slug"`
    TalkGroupDecID int64     `json:"talkgroup_dec_id"`
    TalkGroupName  string    `json:"talkgroup_name"`
    SystemName     string    `json:"system_name"`
    Emergency      bool      `json:"emergency"`
    PlayLength     float64   `json:"play_length"`
}

// Event is the server-to-client wire format for a transmission.
type Event struct {
    Type string     `json:"type"`
    Data Projection `json:"data"`
}

// NewEvent projects t into a live event.
func NewEvent(t *model.Transmission) Event {
    return Event{
        Type: "transmission",
        Data: Projection{
            Slug:           t.Slug,
            StartDatetime:  t.StartDatetime,
            TalkGroupSlug:  t.TalkGroupSlug,
            TalkGroupDecID: t.TalkGroupDecID,
            TalkGroupName:  t.TalkGroupName,
            SystemName:     t.SystemName,
            Emergency:      t.Emergency,
            PlayLength:     t.PlayLength,
        },
    }
}

// Router computes the live channels of a transmission and publishes it.
type Router struct {
    scanlists ScanListLookup
    pub       Publisher
    timeout   time.Duration
    log       zerolog.Logger
    metrics   *metrics.Metrics
}

// NewRouter builds a router.  timeout bounds one publish.
func NewRouter(scanlists ScanListLookup, pub Publisher, timeout time.Duration, log zerolog.Logger, m *metrics.Metrics) *Router {
    if timeout <= 0 {
        timeout = 2 * time.Second
    }
    return &Router{scanlists: scanlists, pub: pub, timeout: timeout, log: log, metrics: m}
}

// RouteTransmission returns the channels t is delivered to: the default
// channel, the talkgroup's channel and one channel per scanlist containing
// the talkgroup right now.  Incident channels are never derived here;
// incidents are curated after the fact.
func (r *Router) RouteTransmission(ctx context.Context, t *model.Transmission) ([]string, error) {
    channels := []string{model.DefaultChannel, model.TalkGroupChannel(t.TalkGroupSlug)}
    slugs, err := r.scanlists.SlugsForTalkGroup(ctx, t.TalkGroupID)
    if err != nil {
        return channels, fmt.Errorf("scanlists for talkgroup %d: %w", t.TalkGroupID, err)
    }
    for _, s := range slugs {
        channels = append(channels, model.ScanListChannel(s))
    }
    return channels, nil
}

// Publish routes t and hands one message addressed to every channel to the
// publisher.  A scanlist lookup failure still publishes to the default and
// talkgroup channels.  The publish is bounded by the router timeout.
func (r *Router) Publish(ctx context.Context, t *model.Transmission) error {
    ctx, cancel := context.WithTimeout(ctx, r.timeout)
    defer cancel()

    channels, routeErr := r.RouteTransmission(ctx, t)
    if routeErr != nil {
        r.log.Warn().Err(routeErr).Str("slug", t.Slug).Msg("partial live routing")
    }
    payload, err := json.Marshal(NewEvent(t))
    if err != nil {
        return fmt.Errorf("encode live event: %w", err)
    }
    err = r.pub.Publish(ctx, live.Message{Channels: channels, TalkGroupID: t.TalkGroupID, Payload: payload})
    switch {
    case err == nil:
        r.metrics.RecordFanout(metrics.ResultSuccess, len(channels))
    case errors.Is(err, context.DeadlineExceeded):
        r.metrics.RecordFanout(metrics.ResultTimeout, len(channels))
    default:
        r.metrics.RecordFanout(metrics.ResultError, len(channels))
    }
    if err != nil {
        return fmt.Errorf("publish %s: %w", t.Slug, err)
    }
    return nil
}

// Hook returns the router as a post-commit import hook.
func (r *Router) Hook() Hook {
    return Hook{Name: "fanout", Run: r.Publish}
}
