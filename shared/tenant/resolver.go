package tenant

import (
	"strings"

	"github.com/clinigo/clinic-platform/shared/config"
)

// Resolution is the outcome of mapping a request host to a tenant key
type Resolution struct {
	// Key is the clinic subdomain the host resolved to.
	Key string
	// Redirect is set when the host is the bare base domain (or www) and
	// the caller should redirect to the default clinic's subdomain instead
	// of serving the request.
	Redirect bool
}

// Resolver derives a clinic key from a request host name
type Resolver struct {
	baseDomain string
	defaultKey string
	markers    []string
}

// NewResolver creates a resolver from platform configuration
func NewResolver(cfg *config.PlatformConfig) *Resolver {
	return &Resolver{
		baseDomain: strings.ToLower(cfg.BaseDomain),
		defaultKey: cfg.DefaultClinicKey,
		markers:    cfg.LocalHostMarkers,
	}
}

// DefaultKey returns the fallback clinic key
func (r *Resolver) DefaultKey() string {
	return r.defaultKey
}

// BaseDomain returns the production base domain
func (r *Resolver) BaseDomain() string {
	return r.baseDomain
}

// Resolve maps a host name to a clinic key. Hosts carrying a development
// or preview marker always resolve to the default key. The bare base
// domain (and www) signal a redirect to the default clinic's subdomain.
// A host of the form "<key>.<base-domain>" resolves to <key>. Anything
// else falls back to the default key; such hosts are indistinguishable
// from a legitimate default-clinic request.
func (r *Resolver) Resolve(host string) Resolution {
	host = normalizeHost(host)

	for _, marker := range r.markers {
		if marker != "" && strings.Contains(host, marker) {
			return Resolution{Key: r.defaultKey}
		}
	}

	if host == r.baseDomain || host == "www."+r.baseDomain {
		return Resolution{Key: r.defaultKey, Redirect: true}
	}

	if strings.HasSuffix(host, "."+r.baseDomain) {
		labels := strings.Split(host, ".")
		if len(labels) >= 3 && labels[0] != "www" && labels[0] != "" {
			return Resolution{Key: labels[0]}
		}
	}

	return Resolution{Key: r.defaultKey}
}

// normalizeHost lowercases the host and strips any port suffix
func normalizeHost(host string) string {
	host = strings.ToLower(strings.TrimSpace(host))
	if i := strings.LastIndex(host, ":"); i != -1 && !strings.Contains(host[i:], "]") {
		host = host[:i]
	}
	return host
}
