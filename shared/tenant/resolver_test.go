package tenant

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/clinigo/clinic-platform/shared/config"
)

func testResolver() *Resolver {
	return NewResolver(&config.PlatformConfig{
		BaseDomain:       "example.com",
		DefaultClinicKey: "modelo",
		LocalHostMarkers: []string{"localhost", "127.0.0.1", "-preview."},
	})
}

func TestResolver_SubdomainHosts(t *testing.T) {
	r := testResolver()

	tests := []struct {
		host string
		key  string
	}{
		{"acme.example.com", "acme"},
		{"ACME.Example.Com", "acme"},
		{"acme.example.com:8080", "acme"},
		{"clinica-sul.example.com", "clinica-sul"},
	}

	for _, tt := range tests {
		res := r.Resolve(tt.host)
		assert.Equal(t, tt.key, res.Key, "host %q", tt.host)
		assert.False(t, res.Redirect, "host %q", tt.host)
	}
}

func TestResolver_BareBaseDomainRedirects(t *testing.T) {
	r := testResolver()

	for _, host := range []string{"example.com", "www.example.com", "example.com:443"} {
		res := r.Resolve(host)
		assert.True(t, res.Redirect, "host %q should redirect", host)
		assert.Equal(t, "modelo", res.Key)
	}
}

func TestResolver_LocalMarkersAlwaysDefault(t *testing.T) {
	r := testResolver()

	hosts := []string{
		"localhost",
		"localhost:3000",
		"127.0.0.1:8080",
		"acme-preview.something.dev",
		// Marker wins even when the host would otherwise match a tenant.
		"x-preview.example.com",
	}

	for _, host := range hosts {
		res := r.Resolve(host)
		assert.Equal(t, "modelo", res.Key, "host %q", host)
		assert.False(t, res.Redirect)
	}
}

func TestResolver_UnrecognizedHostsFallBack(t *testing.T) {
	r := testResolver()

	hosts := []string{
		"other.org",
		"acme.other.org",
		"deep.acme.example.org",
		"",
	}

	for _, host := range hosts {
		res := r.Resolve(host)
		assert.Equal(t, "modelo", res.Key, "host %q", host)
		assert.False(t, res.Redirect)
	}
}

func TestResolver_WwwSubdomainIsNotATenant(t *testing.T) {
	r := testResolver()

	// www.<base> redirects; a deeper www label falls back to the default.
	res := r.Resolve("www.acme.example.com")
	assert.Equal(t, "modelo", res.Key)
	assert.False(t, res.Redirect)
}
