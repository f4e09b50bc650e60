package handler

import (
    "errors"
    "net/http"

    "github.com/labstack/echo/v4"

    "github.com/iliyamo/trunk-player/internal/middleware"
    "github.com/iliyamo/trunk-player/internal/model"
    "github.com/iliyamo/trunk-player/internal/repository"
)

type profileView struct {
    UserID      uint64    `json:"user_id"`
    Plan        *planView `json:"plan"`
    History     int       `json:"history"`
    ShowUnitIDs bool      `json:"show_unit_ids"`
    IsApproved  bool      `json:"is_approved"`
    AccessIDs   []uint64  `json:"talkgroup_access"`
    Favorites   []uint64  `json:"favorite_talkgroups"`
}

// profile returns the caller's profile, creating it on first use.  Users
// live outside this service, so the first authenticated request is the
// earliest point a profile can be seeded.
func (h *API) profile(c echo.Context) (*model.Profile, error) {
    ctx := c.Request().Context()
    uid := middleware.PrincipalFrom(c).UserID
    p, err := h.Access.GetProfileByUser(ctx, uid)
    if errors.Is(err, repository.ErrProfileNotFound) {
        return h.Access.CreateProfile(ctx, uid)
    }
    return p, err
}

// GetProfile returns the caller's profile.
func (h *API) GetProfile(c echo.Context) error {
    ctx := c.Request().Context()
    p, err := h.profile(c)
    if err != nil {
        return h.internalError(c, err)
    }
    groups, err := h.Access.ProfileGroupIDs(ctx, p.ID)
    if err != nil {
        return h.internalError(c, err)
    }
    favorites, err := h.Access.FavoriteTalkGroupIDs(ctx, p.ID)
    if err != nil {
        return h.internalError(c, err)
    }
    v := profileView{
        UserID:      p.UserID,
        History:     p.HistoryLimit(),
        ShowUnitIDs: p.ShowUnitIDs,
        IsApproved:  p.IsApproved,
        AccessIDs:   groups,
        Favorites:   favorites,
    }
    if p.Plan != nil {
        pv := newPlanView(*p.Plan)
        v.Plan = &pv
    }
    return c.JSON(http.StatusOK, v)
}

// AddFavorite marks talkgroup :slug as a favorite of the caller.
func (h *API) AddFavorite(c echo.Context) error {
    return h.favorite(c, true)
}

// RemoveFavorite unmarks talkgroup :slug.
func (h *API) RemoveFavorite(c echo.Context) error {
    return h.favorite(c, false)
}

func (h *API) favorite(c echo.Context, add bool) error {
    ctx := c.Request().Context()
    vis, err := h.visibility(c)
    if err != nil {
        return h.internalError(c, err)
    }
    tg, err := h.TalkGroups.GetBySlug(ctx, c.Param("slug"))
    if errors.Is(err, repository.ErrTalkGroupNotFound) || (err == nil && !vis.Scope.Contains(tg.ID)) {
        return notFound(c, "talkgroup")
    }
    if err != nil {
        return h.internalError(c, err)
    }
    p, err := h.profile(c)
    if err != nil {
        return h.internalError(c, err)
    }
    if add {
        err = h.Access.AddFavorite(ctx, p.ID, tg.ID)
    } else {
        err = h.Access.RemoveFavorite(ctx, p.ID, tg.ID)
    }
    if err != nil {
        return h.internalError(c, err)
    }
    return c.NoContent(http.StatusNoContent)
}
