package middleware

import (
	"context"
	"errors"
	"net/http"
	"strings"

	"mf-eats-backend/internal/models"

	"github.com/labstack/echo/v4"
)

// Context keys set by Authenticated.
const (
	ContextResolution = "resolution"
	ContextUserID     = "userID"
	ContextUserRole   = "userRole"
)

// ElevatedHeader carries the admin-override grant. It is a separate channel
// from the Authorization header and outranks it when both are present.
const ElevatedHeader = "X-Elevated-Grant"

// Resolver turns a credential into a Resolution. Satisfied by the identity
// service.
type Resolver interface {
	Resolve(ctx context.Context, src models.AuthSource) (models.Resolution, error)
}

// Authenticated resolves the request's identity and stores it in the echo
// context. An elevated grant is tried first; otherwise the standard bearer
// token. Requests with no resolvable identity get 401. A resolution that
// fails for transport reasons gets 503, never a silent deny-as-401: the
// caller should retry, not re-login.
func Authenticated(resolver Resolver) echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			src := sourceFrom(c)

			res, err := resolver.Resolve(c.Request().Context(), src)
			if err != nil {
				if errors.Is(err, models.ErrResolutionFailed) {
					c.Logger().Error("middleware.Authenticated: ", err)
					return c.JSON(http.StatusServiceUnavailable, models.ErrorResponse{Message: "Identity resolution is temporarily unavailable"})
				}
				c.Logger().Error("middleware.Authenticated: ", err)
				return c.JSON(http.StatusInternalServerError, models.ErrorResponse{Message: "Failed to resolve identity"})
			}
			if !res.Authenticated {
				return c.JSON(http.StatusUnauthorized, models.ErrorResponse{Message: "Authentication required"})
			}

			c.Set(ContextResolution, res)
			c.Set(ContextUserID, res.PrincipalID)
			c.Set(ContextUserRole, string(res.Role))
			return next(c)
		}
	}
}

// RequireRoles allows the request through only when the resolved role is one
// of the given roles. It must run after Authenticated. An authenticated
// principal with no role row is denied here, not treated as an error.
func RequireRoles(roles ...models.Role) echo.MiddlewareFunc {
	allowed := make(map[models.Role]struct{}, len(roles))
	for _, r := range roles {
		allowed[r] = struct{}{}
	}
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			res := ResolutionFrom(c)
			if !res.Authenticated {
				return c.JSON(http.StatusUnauthorized, models.ErrorResponse{Message: "Authentication required"})
			}
			if _, ok := allowed[res.Role]; !ok {
				return c.JSON(http.StatusForbidden, models.ErrorResponse{Message: "Access denied"})
			}
			return next(c)
		}
	}
}

// ResolutionFrom returns the Resolution stored by Authenticated, or the zero
// value when the route is unguarded.
func ResolutionFrom(c echo.Context) models.Resolution {
	if v, ok := c.Get(ContextResolution).(models.Resolution); ok {
		return v
	}
	return models.Resolution{}
}

func sourceFrom(c echo.Context) models.AuthSource {
	if grant := strings.TrimSpace(c.Request().Header.Get(ElevatedHeader)); grant != "" {
		return models.AuthSource{Kind: models.AuthElevated, Token: grant}
	}

	header := c.Request().Header.Get(echo.HeaderAuthorization)
	parts := strings.SplitN(header, " ", 2)
	if len(parts) == 2 && strings.EqualFold(parts[0], "Bearer") {
		return models.AuthSource{Kind: models.AuthStandard, Token: strings.TrimSpace(parts[1])}
	}
	return models.AuthSource{Kind: models.AuthStandard}
}
