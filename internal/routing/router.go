// Package routing maps a domain name to the backend that serves it.
package routing

import (
	"strings"

	"registro/internal/backends"
	pstrings "registro/pkg/platform/strings"
)

// Router picks a backend per domain. Selection is a pure function of the
// domain's suffix against the configured local ccTLD family; anything not in
// the set routes to the international registrar.
type Router struct {
	local         backends.Backend
	international backends.Backend
	suffixes      []string
}

// New builds a Router. Suffixes are normalized to a leading dot and lower
// case once, so per-domain selection is a plain suffix scan.
func New(local, international backends.Backend, localSuffixes []string) *Router {
	return &Router{
		local:         local,
		international: international,
		suffixes:      pstrings.NormalizeSuffixes(localSuffixes),
	}
}

// SelectBackend returns the backend that owns the domain's suffix. Unknown
// suffixes default to the international backend.
func (r *Router) SelectBackend(domain string) backends.Backend {
	if r.IsLocal(domain) {
		return r.local
	}
	return r.international
}

// IsLocal reports whether the domain belongs to the operator's own registry.
func (r *Router) IsLocal(domain string) bool {
	name := strings.ToLower(strings.TrimSpace(domain))
	for _, suffix := range r.suffixes {
		if strings.HasSuffix(name, suffix) {
			return true
		}
	}
	return false
}
