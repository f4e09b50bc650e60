// Package handler exposes the HTTP API: the recorder import endpoint and
// the read API over systems, talkgroups, units, transmissions and the
// user-owned scanlists and incidents.  Every transmission read goes through
// the access resolver.
package handler

import (
    "context"
    "database/sql"
    "errors"
    "net/http"
    "strconv"
    "time"

    "github.com/labstack/echo/v4"
    "github.com/rs/zerolog"

    "github.com/iliyamo/trunk-player/internal/middleware"
    "github.com/iliyamo/trunk-player/internal/model"
    "github.com/iliyamo/trunk-player/internal/repository"
    "github.com/iliyamo/trunk-player/internal/service"
)

// Options carries presentation settings.
type Options struct {
    AudioURLBase string         // prefix of audio_url
    Location     *time.Location // zone of local_start_datetime
}

// API bundles the repositories and services behind the read API.
type API struct {
    Systems        *repository.SystemRepo
    TalkGroups     *repository.TalkGroupRepo
    Units          *repository.UnitRepo
    Transmissions  *repository.TransmissionRepo
    Archive        *repository.ArchiveRepo
    Transcriptions *repository.TranscriptionRepo
    Access         *repository.AccessRepo
    ScanLists      *repository.ScanListRepo
    Incidents      *repository.IncidentRepo
    Resolver       *service.AccessResolver

    opts Options
    log  zerolog.Logger
    now  func() time.Time
}

// NewAPI constructs the API over db and panics if a dependency is nil.
func NewAPI(db *sql.DB, resolver *service.AccessResolver, opts Options, log zerolog.Logger) *API {
    if db == nil || resolver == nil {
        panic("nil dependency passed to NewAPI")
    }
    if opts.Location == nil {
        opts.Location = time.UTC
    }
    return &API{
        Systems:        repository.NewSystemRepo(db),
        TalkGroups:     repository.NewTalkGroupRepo(db),
        Units:          repository.NewUnitRepo(db),
        Transmissions:  repository.NewTransmissionRepo(db),
        Archive:        repository.NewArchiveRepo(db),
        Transcriptions: repository.NewTranscriptionRepo(db),
        Access:         repository.NewAccessRepo(db),
        ScanLists:      repository.NewScanListRepo(db),
        Incidents:      repository.NewIncidentRepo(db),
        Resolver:       resolver,
        opts:           opts,
        log:            log.With().Str("component", "api").Logger(),
        now:            func() time.Time { return time.Now().UTC() },
    }
}

// internalError logs err and answers 500 without leaking it.
func (h *API) internalError(c echo.Context, err error) error {
    h.log.Error().Err(err).Str("method", c.Request().Method).Str("path", c.Path()).Msg("request failed")
    return c.JSON(http.StatusInternalServerError, echo.Map{"error": "database error"})
}

func notFound(c echo.Context, what string) error {
    return c.JSON(http.StatusNotFound, echo.Map{"error": what + " not found"})
}

func badRequest(c echo.Context, msg string) error {
    return c.JSON(http.StatusBadRequest, echo.Map{"error": msg})
}

// visibility resolves what the request's principal may see.
func (h *API) visibility(c echo.Context) (service.Visibility, error) {
    return h.Resolver.Resolve(c.Request().Context(), middleware.PrincipalFrom(c))
}

// pageParams reads limit and offset, clamping them to the listing bounds.
func pageParams(c echo.Context) (limit, offset int) {
    limit, _ = strconv.Atoi(c.QueryParam("limit"))
    if limit < 1 {
        limit = repository.DefaultTransmissionLimit
    }
    if limit > repository.MaxTransmissionLimit {
        limit = repository.MaxTransmissionLimit
    }
    offset, _ = strconv.Atoi(c.QueryParam("offset"))
    if offset < 0 {
        offset = 0
    }
    return limit, offset
}

// systemParam resolves ?system=<slug>.  found is false for an unknown slug.
func (h *API) systemParam(ctx context.Context, slug string) (id *uint64, found bool, err error) {
    if slug == "" {
        return nil, true, nil
    }
    sys, err := h.Systems.GetBySlug(ctx, slug)
    if errors.Is(err, repository.ErrSystemNotFound) {
        return nil, false, nil
    }
    if err != nil {
        return nil, false, err
    }
    return &sys.ID, true, nil
}

// canSee reports whether the principal may read a user-owned object.
func canSee(p model.Principal, public bool, owner *uint64) bool {
    return public || (p.Authenticated && owner != nil && *owner == p.UserID)
}
