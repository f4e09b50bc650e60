package handler

import (
    "context"
    "errors"
    "net/http"
    "strings"
    "time"

    "github.com/labstack/echo/v4"

    "github.com/iliyamo/trunk-player/internal/middleware"
    "github.com/iliyamo/trunk-player/internal/model"
    "github.com/iliyamo/trunk-player/internal/repository"
    "github.com/iliyamo/trunk-player/internal/service"
)

// legacyLimit is the page size of the /tg, /unit, /scan and /inc endpoints.
const legacyLimit = 50

// ListTransmissions lists visible transmissions, newest first.
//
// Filters (all by slug): talkgroup, system, unit, scanlist, incident, plus
// emergency=true.  An unknown slug matches nothing.  The principal's
// accessible talkgroups and history window always apply.
func (h *API) ListTransmissions(c echo.Context) error {
    ctx := c.Request().Context()
    vis, err := h.visibility(c)
    if err != nil {
        return h.internalError(c, err)
    }
    now := h.now()
    limit, offset := pageParams(c)
    q := repository.TransmissionQuery{Scope: vis.Scope, Since: vis.Since(now), Limit: limit, Offset: offset}

    found, err := h.applyFilters(ctx, c, &q)
    if err != nil {
        return h.internalError(c, err)
    }
    out := []transmissionView{}
    var total int64
    if found {
        page, err := h.Transmissions.List(ctx, q)
        if err != nil {
            return h.internalError(c, err)
        }
        out = h.transmissionViews(page.Items, vis, now)
        total = page.Total
    }
    return c.JSON(http.StatusOK, echo.Map{"items": out, "total": total, "limit": limit, "offset": offset})
}

// applyFilters resolves the slug filters of a listing into q.  It returns
// false when a given slug does not exist.
func (h *API) applyFilters(ctx context.Context, c echo.Context, q *repository.TransmissionQuery) (bool, error) {
    if strings.EqualFold(c.QueryParam("emergency"), "true") {
        emergency := true
        q.Emergency = &emergency
    }
    sysID, found, err := h.systemParam(ctx, c.QueryParam("system"))
    if err != nil || !found {
        return false, err
    }
    q.SystemID = sysID

    if slug := c.QueryParam("talkgroup"); slug != "" {
        tg, err := h.TalkGroups.GetBySlug(ctx, slug)
        if errors.Is(err, repository.ErrTalkGroupNotFound) {
            return false, nil
        }
        if err != nil {
            return false, err
        }
        q.TalkGroupID = &tg.ID
    }
    if slug := c.QueryParam("unit"); slug != "" {
        u, err := h.Units.GetBySlug(ctx, slug)
        if errors.Is(err, repository.ErrUnitNotFound) {
            return false, nil
        }
        if err != nil {
            return false, err
        }
        q.UnitID = &u.ID
    }
    p := middleware.PrincipalFrom(c)
    if slug := c.QueryParam("scanlist"); slug != "" {
        s, err := h.ScanLists.GetBySlug(ctx, slug)
        if errors.Is(err, repository.ErrScanListNotFound) || (err == nil && !canSee(p, s.Public, &s.CreatedBy)) {
            return false, nil
        }
        if err != nil {
            return false, err
        }
        q.ScanListID = &s.ID
    }
    if slug := c.QueryParam("incident"); slug != "" {
        i, err := h.Incidents.GetBySlug(ctx, slug)
        if errors.Is(err, repository.ErrIncidentNotFound) || (err == nil && !canSee(p, i.Public, i.CreatedBy)) {
            return false, nil
        }
        if err != nil {
            return false, err
        }
        q.IncidentID = &i.ID
    }
    return true, nil
}

// GetTransmission returns one transmission by slug.  The history window
// does not hide it; it only withholds the audio reference.  Slugs moved to
// the archive are served from there.
func (h *API) GetTransmission(c echo.Context) error {
    ctx := c.Request().Context()
    vis, err := h.visibility(c)
    if err != nil {
        return h.internalError(c, err)
    }
    now := h.now()
    slug := c.Param("slug")

    t, err := h.Transmissions.GetBySlug(ctx, slug)
    switch {
    case errors.Is(err, repository.ErrTransmissionNotFound):
        return h.getArchived(c, slug, vis)
    case err != nil:
        return h.internalError(c, err)
    case !vis.Scope.Contains(t.TalkGroupID):
        return notFound(c, "transmission")
    }

    v := h.transmissionView(*t, vis, now)
    tr, err := h.Transcriptions.GetByTransmission(ctx, t.ID)
    switch {
    case err == nil:
        v.Transcription = newTranscriptionView(tr)
    case !errors.Is(err, repository.ErrTranscriptionNotFound):
        return h.internalError(c, err)
    }
    return c.JSON(http.StatusOK, v)
}

func (h *API) getArchived(c echo.Context, slug string, vis service.Visibility) error {
    a, err := h.Archive.GetBySlug(c.Request().Context(), slug)
    if errors.Is(err, repository.ErrArchiveNotFound) || (err == nil && !vis.Scope.Contains(a.TalkGroupID)) {
        return notFound(c, "transmission")
    }
    if err != nil {
        return h.internalError(c, err)
    }
    return c.JSON(http.StatusOK, h.archivedView(*a, vis, h.now()))
}

// legacy serves the 50 most recent visible transmissions matching q.
func (h *API) legacy(c echo.Context, vis service.Visibility, q repository.TransmissionQuery) error {
    now := h.now()
    q.Scope, q.Since, q.Limit = vis.Scope, vis.Since(now), legacyLimit
    page, err := h.Transmissions.List(c.Request().Context(), q)
    if err != nil {
        return h.internalError(c, err)
    }
    return c.JSON(http.StatusOK, h.transmissionViews(page.Items, vis, now))
}

func (h *API) transmissionViews(items []model.Transmission, vis service.Visibility, now time.Time) []transmissionView {
    out := make([]transmissionView, 0, len(items))
    for _, t := range items {
        out = append(out, h.transmissionView(t, vis, now))
    }
    return out
}

// RecentTransmissions serves GET /recent: the 50 newest visible
// transmissions.  With ?from= (and optionally ?to=, default now), both
// RFC 3339, it returns those that started in [from, to) instead.  The
// history window still applies.
func (h *API) RecentTransmissions(c echo.Context) error {
    ctx := c.Request().Context()
    vis, err := h.visibility(c)
    if err != nil {
        return h.internalError(c, err)
    }
    now := h.now()
    since := vis.Since(now)

    var items []model.Transmission
    fromRaw, toRaw := c.QueryParam("from"), c.QueryParam("to")
    if fromRaw == "" && toRaw == "" {
        items, err = h.Transmissions.Recent(ctx, vis.Scope, since, legacyLimit)
    } else {
        from, to, ok := parseRange(fromRaw, toRaw, now)
        if !ok {
            return badRequest(c, "from and to must be RFC 3339 timestamps")
        }
        if since != nil && from.Before(*since) {
            from = *since
        }
        items, err = h.Transmissions.InDateRange(ctx, vis.Scope, from, to, legacyLimit)
    }
    if err != nil {
        return h.internalError(c, err)
    }
    return c.JSON(http.StatusOK, h.transmissionViews(items, vis, now))
}

// parseRange reads a from/to pair.  from is required; to defaults to now.
func parseRange(fromRaw, toRaw string, now time.Time) (from, to time.Time, ok bool) {
    if fromRaw == "" {
        return from, to, false
    }
    from, err := time.Parse(time.RFC3339, fromRaw)
    if err != nil {
        return from, to, false
    }
    to = now
    if toRaw != "" {
        if to, err = time.Parse(time.RFC3339, toRaw); err != nil {
            return from, to, false
        }
    }
    return from.UTC(), to.UTC(), true
}

// TalkGroupTransmissions serves GET /tg/:slug.
func (h *API) TalkGroupTransmissions(c echo.Context) error {
    vis, err := h.visibility(c)
    if err != nil {
        return h.internalError(c, err)
    }
    tg, err := h.TalkGroups.GetBySlug(c.Request().Context(), c.Param("slug"))
    if errors.Is(err, repository.ErrTalkGroupNotFound) || (err == nil && !vis.Scope.Contains(tg.ID)) {
        return notFound(c, "talkgroup")
    }
    if err != nil {
        return h.internalError(c, err)
    }
    now := h.now()
    items, err := h.Transmissions.ForTalkGroup(c.Request().Context(), tg.ID, vis.Scope, vis.Since(now), legacyLimit)
    if err != nil {
        return h.internalError(c, err)
    }
    return c.JSON(http.StatusOK, h.transmissionViews(items, vis, now))
}

// UnitTransmissions serves GET /unit/:slug.
func (h *API) UnitTransmissions(c echo.Context) error {
    vis, err := h.visibility(c)
    if err != nil {
        return h.internalError(c, err)
    }
    u, err := h.Units.GetBySlug(c.Request().Context(), c.Param("slug"))
    if errors.Is(err, repository.ErrUnitNotFound) {
        return notFound(c, "unit")
    }
    if err != nil {
        return h.internalError(c, err)
    }
    return h.legacy(c, vis, repository.TransmissionQuery{UnitID: &u.ID})
}

// ScanListTransmissions serves GET /scan/:slug.
func (h *API) ScanListTransmissions(c echo.Context) error {
    vis, err := h.visibility(c)
    if err != nil {
        return h.internalError(c, err)
    }
    s, err := h.ScanLists.GetBySlug(c.Request().Context(), c.Param("slug"))
    if errors.Is(err, repository.ErrScanListNotFound) || (err == nil && !canSee(middleware.PrincipalFrom(c), s.Public, &s.CreatedBy)) {
        return notFound(c, "scanlist")
    }
    if err != nil {
        return h.internalError(c, err)
    }
    return h.legacy(c, vis, repository.TransmissionQuery{ScanListID: &s.ID})
}

// IncidentTransmissions serves GET /inc/:slug.
func (h *API) IncidentTransmissions(c echo.Context) error {
    vis, err := h.visibility(c)
    if err != nil {
        return h.internalError(c, err)
    }
    i, err := h.Incidents.GetBySlug(c.Request().Context(), c.Param("slug"))
    if errors.Is(err, repository.ErrIncidentNotFound) || (err == nil && !canSee(middleware.PrincipalFrom(c), i.Public, i.CreatedBy)) {
        return notFound(c, "incident")
    }
    if err != nil {
        return h.internalError(c, err)
    }
    return h.legacy(c, vis, repository.TransmissionQuery{IncidentID: &i.ID})
}
