package middleware // declare the middleware package; contains reusable HTTP middleware functions

import (
    "net/http" // HTTP status codes for responses
    "strings"  // string utilities for prefix checking and trimming

    "github.com/labstack/echo/v4" // Echo framework used for defining middleware and handlers

    "github.com/iliyamo/trunk-player/internal/model"
    "github.com/iliyamo/trunk-player/internal/utils"
)

const principalKey = "principal"

// Authenticate returns an Echo middleware that resolves the request's
// principal.  Users are managed outside this service, so a request without
// an Authorization header is simply anonymous.  A Bearer token that fails
// verification is rejected with 401 rather than downgraded to anonymous,
// so a client with an expired token finds out.
func Authenticate(secret string) echo.MiddlewareFunc {
    return func(next echo.HandlerFunc) echo.HandlerFunc {
        return func(c echo.Context) error {
            auth := c.Request().Header.Get("Authorization")
            if auth == "" {
                c.Set(principalKey, model.Anonymous())
                return next(c)
            }
            raw, ok := strings.CutPrefix(auth, "Bearer ")
            if !ok {
                // "Token ..." belongs to the import endpoint, which has its
                // own check.
                c.Set(principalKey, model.Anonymous())
                return next(c)
            }
            claims, err := utils.ParseAccessToken(secret, raw)
            if err != nil {
                return c.JSON(http.StatusUnauthorized, echo.Map{"error": "invalid token"})
            }
            c.Set(principalKey, model.UserPrincipal(claims.UserID, claims.Role))
            return next(c)
        }
    }
}

// PrincipalFrom returns the principal stored by Authenticate, or the
// anonymous principal when the middleware did not run.
func PrincipalFrom(c echo.Context) model.Principal {
    if p, ok := c.Get(principalKey).(model.Principal); ok {
        return p
    }
    return model.Anonymous()
}

// RequireUser rejects anonymous requests with 401.
func RequireUser() echo.MiddlewareFunc {
    return func(next echo.HandlerFunc) echo.HandlerFunc {
        return func(c echo.Context) error {
            if !PrincipalFrom(c).Authenticated {
                return c.JSON(http.StatusUnauthorized, echo.Map{"error": "authentication required"})
            }
            return next(c)
        }
    }
}

// ImportToken guards the recorder import endpoint.  authorize receives the
// raw Authorization header; any error answers 403 without reading the body.
func ImportToken(authorize func(header string) error) echo.MiddlewareFunc {
    return func(next echo.HandlerFunc) echo.HandlerFunc {
        return func(c echo.Context) error {
            if err := authorize(c.Request().Header.Get("Authorization")); err != nil {
                return c.JSON(http.StatusForbidden, echo.Map{"detail": "Invalid token."})
            }
            return next(c)
        }
    }
}
