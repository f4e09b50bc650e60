package handler

import (
    "errors"
    "net/http"
    "strconv"
    "strings"

    "github.com/labstack/echo/v4"

    "github.com/iliyamo/trunk-player/internal/model"
    "github.com/iliyamo/trunk-player/internal/repository"
)

// ListSystems returns every system.
func (h *API) ListSystems(c echo.Context) error {
    systems, err := h.Systems.List(c.Request().Context())
    if err != nil {
        return h.internalError(c, err)
    }
    out := make([]systemView, 0, len(systems))
    for _, s := range systems {
        out = append(out, newSystemView(s))
    }
    return c.JSON(http.StatusOK, echo.Map{"items": out})
}

// GetSystem returns one system by slug.
func (h *API) GetSystem(c echo.Context) error {
    sys, err := h.Systems.GetBySlug(c.Request().Context(), c.Param("slug"))
    if errors.Is(err, repository.ErrSystemNotFound) {
        return notFound(c, "system")
    }
    if err != nil {
        return h.internalError(c, err)
    }
    return c.JSON(http.StatusOK, newSystemView(*sys))
}

// ListTalkGroups returns the talkgroups the principal may see, optionally
// limited to ?system=<slug>.
func (h *API) ListTalkGroups(c echo.Context) error {
    ctx := c.Request().Context()
    vis, err := h.visibility(c)
    if err != nil {
        return h.internalError(c, err)
    }
    sysID, found, err := h.systemParam(ctx, c.QueryParam("system"))
    if err != nil {
        return h.internalError(c, err)
    }
    out := []talkGroupView{}
    if !found {
        return c.JSON(http.StatusOK, echo.Map{"items": out})
    }
    tgs, err := h.TalkGroups.List(ctx, repository.TalkGroupFilter{SystemID: sysID, Scope: vis.Scope})
    if err != nil {
        return h.internalError(c, err)
    }
    for _, tg := range tgs {
        out = append(out, newTalkGroupView(tg))
    }
    return c.JSON(http.StatusOK, echo.Map{"items": out})
}

// GetTalkGroup returns one visible talkgroup by slug.  Talkgroups outside
// the principal's access answer 404 like unknown ones.
func (h *API) GetTalkGroup(c echo.Context) error {
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
    return c.JSON(http.StatusOK, newTalkGroupView(*tg))
}

type talkGroupUpdateRequest struct {
    AlphaTag    *string `json:"alpha_tag"`
    CommonName  *string `json:"common_name"`
    Description *string `json:"description"`
    IsPublic    *bool   `json:"is_public"`
}

// UpdateTalkGroup edits a talkgroup's labels (admin only).  Absent fields
// keep their value.  The slug and the names already copied onto stored
// transmissions do not change.
func (h *API) UpdateTalkGroup(c echo.Context) error {
    ctx := c.Request().Context()
    var req talkGroupUpdateRequest
    if err := c.Bind(&req); err != nil {
        return badRequest(c, "invalid JSON body")
    }
    tg, err := h.TalkGroups.GetBySlug(ctx, c.Param("slug"))
    if errors.Is(err, repository.ErrTalkGroupNotFound) {
        return notFound(c, "talkgroup")
    }
    if err != nil {
        return h.internalError(c, err)
    }
    upd := repository.TalkGroupUpdate{
        AlphaTag: tg.AlphaTag, CommonName: tg.CommonName, Description: tg.Description, IsPublic: tg.IsPublic,
    }
    if req.AlphaTag != nil {
        upd.AlphaTag = strings.TrimSpace(*req.AlphaTag)
    }
    if req.CommonName != nil {
        upd.CommonName = strings.TrimSpace(*req.CommonName)
    }
    if req.Description != nil {
        upd.Description = *req.Description
    }
    if req.IsPublic != nil {
        upd.IsPublic = *req.IsPublic
    }
    if err := h.TalkGroups.Update(ctx, tg.ID, upd); err != nil {
        return h.internalError(c, err)
    }
    tg, err = h.TalkGroups.GetByID(ctx, tg.ID)
    if err != nil {
        return h.internalError(c, err)
    }
    return c.JSON(http.StatusOK, newTalkGroupView(*tg))
}

// ListUnits returns units, optionally limited to ?system=<slug>.
func (h *API) ListUnits(c echo.Context) error {
    ctx := c.Request().Context()
    sysID, found, err := h.systemParam(ctx, c.QueryParam("system"))
    if err != nil {
        return h.internalError(c, err)
    }
    out := []unitView{}
    if !found {
        return c.JSON(http.StatusOK, echo.Map{"items": out})
    }
    units, err := h.Units.List(ctx, sysID)
    if err != nil {
        return h.internalError(c, err)
    }
    for _, u := range units {
        out = append(out, newUnitView(u))
    }
    return c.JSON(http.StatusOK, echo.Map{"items": out})
}

// GetUnit returns one unit by slug.
func (h *API) GetUnit(c echo.Context) error {
    u, err := h.Units.GetBySlug(c.Request().Context(), c.Param("slug"))
    if errors.Is(err, repository.ErrUnitNotFound) {
        return notFound(c, "unit")
    }
    if err != nil {
        return h.internalError(c, err)
    }
    return c.JSON(http.StatusOK, newUnitView(*u))
}

// ListPlans returns every plan.
func (h *API) ListPlans(c echo.Context) error {
    plans, err := h.Access.ListPlans(c.Request().Context())
    if err != nil {
        return h.internalError(c, err)
    }
    out := make([]planView, 0, len(plans))
    for _, p := range plans {
        out = append(out, newPlanView(p))
    }
    return c.JSON(http.StatusOK, echo.Map{"items": out})
}

type planRequest struct {
    Name        string `json:"name"`
    Description string `json:"description"`
    History     int    `json:"history"`
    IsDefault   bool   `json:"is_default"`
}

// CreatePlan adds a plan (admin only).  Creating it as default clears the
// flag on every other plan.
func (h *API) CreatePlan(c echo.Context) error {
    var req planRequest
    if err := c.Bind(&req); err != nil {
        return badRequest(c, "invalid JSON body")
    }
    req.Name = strings.TrimSpace(req.Name)
    if req.Name == "" {
        return badRequest(c, "name is required")
    }
    if req.History < 0 {
        return badRequest(c, "history must not be negative")
    }
    p := &model.Plan{Name: req.Name, Description: req.Description, History: req.History, IsDefault: req.IsDefault}
    err := h.Access.CreatePlan(c.Request().Context(), p)
    if errors.Is(err, repository.ErrConflict) {
        return c.JSON(http.StatusConflict, echo.Map{"error": "plan name already exists"})
    }
    if err != nil {
        return h.internalError(c, err)
    }
    return c.JSON(http.StatusCreated, newPlanView(*p))
}

// SetDefaultPlan makes plan :id the default (admin only).
func (h *API) SetDefaultPlan(c echo.Context) error {
    id, err := strconv.ParseUint(c.Param("id"), 10, 64)
    if err != nil {
        return badRequest(c, "invalid plan id")
    }
    err = h.Access.SetDefaultPlan(c.Request().Context(), id)
    if errors.Is(err, repository.ErrPlanNotFound) {
        return notFound(c, "plan")
    }
    if err != nil {
        return h.internalError(c, err)
    }
    return c.NoContent(http.StatusNoContent)
}
