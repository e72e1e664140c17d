package middleware

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"

	"mf-eats-backend/internal/models"

	"github.com/labstack/echo/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeResolver struct {
	res  models.Resolution
	err  error
	seen models.AuthSource
}

func (f *fakeResolver) Resolve(_ context.Context, src models.AuthSource) (models.Resolution, error) {
	f.seen = src
	return f.res, f.err
}

func run(t *testing.T, resolver Resolver, mw []echo.MiddlewareFunc, header http.Header) *httptest.ResponseRecorder {
	t.Helper()
	e := echo.New()
	req := httptest.NewRequest(http.MethodGet, "/guarded", nil)
	for k, vs := range header {
		for _, v := range vs {
			req.Header.Add(k, v)
		}
	}
	rec := httptest.NewRecorder()
	c := e.NewContext(req, rec)

	// Role guards run after authentication, so they wrap the handler and
	// Authenticated wraps the result.
	inner := func(c echo.Context) error { return c.NoContent(http.StatusOK) }
	for i := len(mw) - 1; i >= 0; i-- {
		inner = mw[i](inner)
	}
	chain := Authenticated(resolver)(inner)
	require.NoError(t, chain(c))
	return rec
}

func TestAuthenticatedRejectsMissingToken(t *testing.T) {
	resolver := &fakeResolver{res: models.Resolution{}}
	rec := run(t, resolver, nil, http.Header{})

	assert.Equal(t, http.StatusUnauthorized, rec.Code)
}

func TestAuthenticatedDeniesOnResolutionFailure(t *testing.T) {
	// A store outage must surface as unavailable, never as allowed and
	// never as "please log in again".
	resolver := &fakeResolver{err: models.ErrResolutionFailed}
	rec := run(t, resolver, nil, http.Header{"Authorization": {"Bearer sometoken"}})

	assert.Equal(t, http.StatusServiceUnavailable, rec.Code)
}

func TestAuthenticatedPrefersElevatedChannel(t *testing.T) {
	resolver := &fakeResolver{res: models.Resolution{
		Authenticated: true,
		PrincipalID:   "admin-1",
		Role:          models.RoleAdmin,
		Source:        models.AuthElevated,
	}}
	header := http.Header{
		"Authorization":  {"Bearer standard-session"},
		ElevatedHeader:   {"elevated-grant"},
		"X-Request-Test": {"1"},
	}
	rec := run(t, resolver, nil, header)

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, models.AuthElevated, resolver.seen.Kind)
	assert.Equal(t, "elevated-grant", resolver.seen.Token)
}

func TestRequireRolesDeniesWrongRole(t *testing.T) {
	resolver := &fakeResolver{res: models.Resolution{
		Authenticated: true,
		PrincipalID:   "client-1",
		Role:          models.RoleClient,
		Source:        models.AuthStandard,
	}}
	mw := []echo.MiddlewareFunc{RequireRoles(models.RoleRestaurant)}
	rec := run(t, resolver, mw, http.Header{"Authorization": {"Bearer session"}})

	assert.Equal(t, http.StatusForbidden, rec.Code)
}

func TestRequireRolesDeniesMissingRole(t *testing.T) {
	// Authenticated but no role row: a valid account state that simply
	// has no capabilities yet.
	resolver := &fakeResolver{res: models.Resolution{
		Authenticated: true,
		PrincipalID:   "user-1",
		Role:          "",
		Source:        models.AuthStandard,
	}}
	mw := []echo.MiddlewareFunc{RequireRoles(models.RoleClient, models.RoleRestaurant)}
	rec := run(t, resolver, mw, http.Header{"Authorization": {"Bearer session"}})

	assert.Equal(t, http.StatusForbidden, rec.Code)
}

func TestRequireRolesAllowsMatchingRole(t *testing.T) {
	resolver := &fakeResolver{res: models.Resolution{
		Authenticated: true,
		PrincipalID:   "rest-1",
		Role:          models.RoleRestaurant,
		Source:        models.AuthStandard,
	}}
	mw := []echo.MiddlewareFunc{RequireRoles(models.RoleRestaurant, models.RoleAdmin)}
	rec := run(t, resolver, mw, http.Header{"Authorization": {"Bearer session"}})

	assert.Equal(t, http.StatusOK, rec.Code)
}
