package handler

import (
    "errors"
    "net/http"
    "strings"

    "github.com/labstack/echo/v4"

    "github.com/iliyamo/trunk-player/internal/middleware"
    "github.com/iliyamo/trunk-player/internal/model"
    "github.com/iliyamo/trunk-player/internal/repository"
)

// visibleTransmission loads a transmission by slug if the principal may
// see it.  ok is false after a response has been written.
func (h *API) visibleTransmission(c echo.Context) (t *model.Transmission, ok bool, err error) {
    vis, err := h.visibility(c)
    if err != nil {
        return nil, false, h.internalError(c, err)
    }
    t, err = h.Transmissions.GetBySlug(c.Request().Context(), c.Param("slug"))
    if errors.Is(err, repository.ErrTransmissionNotFound) || (err == nil && !vis.Scope.Contains(t.TalkGroupID)) {
        return nil, false, notFound(c, "transmission")
    }
    if err != nil {
        return nil, false, h.internalError(c, err)
    }
    return t, true, nil
}

// GetTranscription returns the transcription of transmission :slug.
func (h *API) GetTranscription(c echo.Context) error {
    t, ok, err := h.visibleTransmission(c)
    if !ok {
        return err
    }
    tr, err := h.Transcriptions.GetByTransmission(c.Request().Context(), t.ID)
    if errors.Is(err, repository.ErrTranscriptionNotFound) {
        return notFound(c, "transcription")
    }
    if err != nil {
        return h.internalError(c, err)
    }
    return c.JSON(http.StatusOK, newTranscriptionView(tr))
}

type transcriptionRequest struct {
    Text        string   `json:"text"`
    IsAutomated bool     `json:"is_automated"`
    Confidence  *float64 `json:"confidence"`
    Language    string   `json:"language"`
}

// PutTranscription creates or replaces the transcription of transmission
// :slug.  Requires an authenticated principal.
func (h *API) PutTranscription(c echo.Context) error {
    var req transcriptionRequest
    if err := c.Bind(&req); err != nil {
        return badRequest(c, "invalid JSON body")
    }
    if strings.TrimSpace(req.Text) == "" {
        return badRequest(c, "text is required")
    }
    if req.Confidence != nil && (*req.Confidence < 0 || *req.Confidence > 1) {
        return badRequest(c, "confidence must be between 0 and 1")
    }
    if req.Language == "" {
        req.Language = "en"
    }
    t, ok, err := h.visibleTransmission(c)
    if !ok {
        return err
    }
    tr := &model.Transcription{
        TransmissionID: t.ID,
        Text:           req.Text,
        IsAutomated:    req.IsAutomated,
        Confidence:     req.Confidence,
        Language:       req.Language,
        CreatedBy:      middleware.PrincipalFrom(c).UserIDPtr(),
    }
    if err := h.Transcriptions.Upsert(c.Request().Context(), tr); err != nil {
        return h.internalError(c, err)
    }
    return c.JSON(http.StatusOK, newTranscriptionView(tr))
}

// ListScanLists returns public scanlists plus the caller's own.
func (h *API) ListScanLists(c echo.Context) error {
    lists, err := h.ScanLists.ListVisible(c.Request().Context(), middleware.PrincipalFrom(c).UserIDPtr())
    if err != nil {
        return h.internalError(c, err)
    }
    out := make([]scanListView, 0, len(lists))
    for _, s := range lists {
        out = append(out, newScanListView(s))
    }
    return c.JSON(http.StatusOK, echo.Map{"items": out})
}

// GetScanList returns one scanlist with its talkgroups.
func (h *API) GetScanList(c echo.Context) error {
    s, err := h.ScanLists.GetBySlug(c.Request().Context(), c.Param("slug"))
    if errors.Is(err, repository.ErrScanListNotFound) || (err == nil && !canSee(middleware.PrincipalFrom(c), s.Public, &s.CreatedBy)) {
        return notFound(c, "scanlist")
    }
    if err != nil {
        return h.internalError(c, err)
    }
    return c.JSON(http.StatusOK, newScanListView(*s))
}

type scanListRequest struct {
    Name        string   `json:"name"`
    Description string   `json:"description"`
    Public      bool     `json:"public"`
    TalkGroups  []string `json:"talkgroups"` // talkgroup slugs
}

// CreateScanList creates a scanlist owned by the caller.  Live routing
// picks it up on the next transmission of any of its talkgroups.
func (h *API) CreateScanList(c echo.Context) error {
    ctx := c.Request().Context()
    var req scanListRequest
    if err := c.Bind(&req); err != nil {
        return badRequest(c, "invalid JSON body")
    }
    req.Name = strings.TrimSpace(req.Name)
    if req.Name == "" {
        return badRequest(c, "name is required")
    }
    ids := make([]uint64, 0, len(req.TalkGroups))
    for _, slug := range req.TalkGroups {
        tg, err := h.TalkGroups.GetBySlug(ctx, slug)
        if errors.Is(err, repository.ErrTalkGroupNotFound) {
            return badRequest(c, "unknown talkgroup: "+slug)
        }
        if err != nil {
            return h.internalError(c, err)
        }
        ids = append(ids, tg.ID)
    }
    s := &model.ScanList{
        CreatedBy:   middleware.PrincipalFrom(c).UserID,
        Name:        req.Name,
        Description: req.Description,
        Public:      req.Public,
    }
    err := h.ScanLists.Create(ctx, s, ids)
    if errors.Is(err, repository.ErrConflict) {
        return c.JSON(http.StatusConflict, echo.Map{"error": "scanlist name already exists"})
    }
    if err != nil {
        return h.internalError(c, err)
    }
    created, err := h.ScanLists.GetBySlug(ctx, s.Slug)
    if err != nil {
        return h.internalError(c, err)
    }
    return c.JSON(http.StatusCreated, newScanListView(*created))
}

// ListIncidents returns public incidents plus the caller's own.
func (h *API) ListIncidents(c echo.Context) error {
    incidents, err := h.Incidents.ListVisible(c.Request().Context(), middleware.PrincipalFrom(c).UserIDPtr())
    if err != nil {
        return h.internalError(c, err)
    }
    out := make([]incidentView, 0, len(incidents))
    for _, i := range incidents {
        out = append(out, newIncidentView(i))
    }
    return c.JSON(http.StatusOK, echo.Map{"items": out})
}

// GetIncident returns one incident with its visible transmissions.
func (h *API) GetIncident(c echo.Context) error {
    ctx := c.Request().Context()
    i, err := h.Incidents.GetBySlug(ctx, c.Param("slug"))
    if errors.Is(err, repository.ErrIncidentNotFound) || (err == nil && !canSee(middleware.PrincipalFrom(c), i.Public, i.CreatedBy)) {
        return notFound(c, "incident")
    }
    if err != nil {
        return h.internalError(c, err)
    }
    vis, err := h.visibility(c)
    if err != nil {
        return h.internalError(c, err)
    }
    now := h.now()
    page, err := h.Transmissions.List(ctx, repository.TransmissionQuery{
        Scope: vis.Scope, IncidentID: &i.ID, Limit: repository.MaxTransmissionLimit,
    })
    if err != nil {
        return h.internalError(c, err)
    }
    v := newIncidentView(*i)
    v.Transmissions = make([]transmissionView, 0, len(page.Items))
    for _, t := range page.Items {
        v.Transmissions = append(v.Transmissions, h.transmissionView(t, vis, now))
    }
    return c.JSON(http.StatusOK, v)
}

type incidentRequest struct {
    Name          string   `json:"name"`
    Description   string   `json:"description"`
    Public        bool     `json:"public"`
    Transmissions []string `json:"transmissions"` // transmission slugs
}

// CreateIncident creates an incident owned by the caller.  Adding
// transmissions to an incident never triggers live delivery.
func (h *API) CreateIncident(c echo.Context) error {
    ctx := c.Request().Context()
    var req incidentRequest
    if err := c.Bind(&req); err != nil {
        return badRequest(c, "invalid JSON body")
    }
    req.Name = strings.TrimSpace(req.Name)
    if req.Name == "" {
        return badRequest(c, "name is required")
    }
    ids, err := h.Transmissions.IDsBySlugs(ctx, req.Transmissions)
    if err != nil {
        return h.internalError(c, err)
    }
    if len(ids) != len(uniqueStrings(req.Transmissions)) {
        return badRequest(c, "unknown transmission in list")
    }
    i := &model.Incident{
        Name:        req.Name,
        Description: req.Description,
        Public:      req.Public,
        CreatedBy:   middleware.PrincipalFrom(c).UserIDPtr(),
    }
    err = h.Incidents.Create(ctx, i, ids)
    if errors.Is(err, repository.ErrConflict) {
        return c.JSON(http.StatusConflict, echo.Map{"error": "incident name already exists"})
    }
    if err != nil {
        return h.internalError(c, err)
    }
    return c.JSON(http.StatusCreated, newIncidentView(*i))
}

func uniqueStrings(in []string) []string {
    seen := make(map[string]bool, len(in))
    out := make([]string, 0, len(in))
    for _, s := range in {
        if !seen[s] {
            seen[s] = true
            out = append(out, s)
        }
    }
    return out
}
