package middleware

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/clinigo/clinic-platform/shared/config"
	"github.com/clinigo/clinic-platform/shared/tenant"
)

// fakeConns serves canned descriptors and errors
type fakeConns struct {
	descs map[string]*tenant.Descriptor
	errs  map[string]error
}

func (f *fakeConns) Get(_ context.Context, key string) (*tenant.Descriptor, error) {
	if err, ok := f.errs[key]; ok {
		return nil, err
	}
	if d, ok := f.descs[key]; ok {
		return d, nil
	}
	return nil, tenant.ErrClinicNotFound
}

func guardRouter(conns ConnectionSource) *gin.Engine {
	gin.SetMode(gin.TestMode)

	resolver := tenant.NewResolver(&config.PlatformConfig{
		BaseDomain:       "example.com",
		DefaultClinicKey: "modelo",
		LocalHostMarkers: []string{"localhost"},
	})
	guard := NewTenantGuard(resolver, conns)

	r := gin.New()
	r.Use(guard.Middleware())
	r.GET("/ping", func(c *gin.Context) {
		tc, ok := GetClinicContext(c)
		if !ok {
			c.String(http.StatusInternalServerError, "no context")
			return
		}
		c.JSON(http.StatusOK, gin.H{"subdomain": tc.Subdomain, "mode": tc.Mode})
	})
	return r
}

func doRequest(r *gin.Engine, host string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(http.MethodGet, "/ping", nil)
	req.Host = host
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	return w
}

func TestTenantGuard_ResolvedClinicPassesThrough(t *testing.T) {
	conns := &fakeConns{descs: map[string]*tenant.Descriptor{
		"acme": {
			ClinicID:  uuid.New(),
			Subdomain: "acme",
			Mode:      tenant.ModeShared,
			Live:      true,
		},
	}}

	w := doRequest(guardRouter(conns), "acme.example.com")

	require.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), `"subdomain":"acme"`)
}

func TestTenantGuard_BareDomainRedirectsToDefaultClinic(t *testing.T) {
	conns := &fakeConns{}

	w := doRequest(guardRouter(conns), "example.com")

	require.Equal(t, http.StatusFound, w.Code)
	assert.Equal(t, "https://modelo.example.com/ping", w.Header().Get("Location"))
}

func TestTenantGuard_UnknownClinicIsBlocked(t *testing.T) {
	conns := &fakeConns{}

	w := doRequest(guardRouter(conns), "ghost.example.com")

	require.Equal(t, http.StatusNotFound, w.Code)
	assert.Contains(t, w.Body.String(), "Access restricted")
}

func TestTenantGuard_SuspendedClinicIsBlocked(t *testing.T) {
	conns := &fakeConns{errs: map[string]error{
		"frozen": tenant.ErrClinicSuspended,
	}}

	w := doRequest(guardRouter(conns), "frozen.example.com")

	require.Equal(t, http.StatusForbidden, w.Code)
	assert.Contains(t, w.Body.String(), "suspended")
}

func TestTenantGuard_TransientLookupFailureIs503(t *testing.T) {
	conns := &fakeConns{errs: map[string]error{
		"acme": errors.New("central store timeout"),
	}}

	w := doRequest(guardRouter(conns), "acme.example.com")

	assert.Equal(t, http.StatusServiceUnavailable, w.Code)
}
