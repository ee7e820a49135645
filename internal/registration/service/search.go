package service

import (
	"context"
	"sort"
	"strings"

	"registro/internal/backends"
	"registro/internal/registration/models"
)

// maxSearchSuffixes caps the fan-out of one search.
const maxSearchSuffixes = 20

// PriceList prices domains by suffix in minor units per year.
type PriceList struct {
	Currency string
	BySuffix map[string]int64
	Default  int64
}

// For returns the yearly price for a domain, falling back to the default
// when its suffix is unpriced.
func (p PriceList) For(domain string) int64 {
	domain = strings.ToLower(domain)
	// Longest suffix wins so ".co.rw" beats ".rw".
	best, bestLen := p.Default, 0
	for suffix, price := range p.BySuffix {
		if strings.HasSuffix(domain, suffix) && len(suffix) > bestLen {
			best, bestLen = price, len(suffix)
		}
	}
	return best
}

// SearchDomains fans a base name out across the active suffixes, resolves
// availability per owning backend, annotates with pricing and sorts the
// results available-first then by ascending price.
func (s *Service) SearchDomains(ctx context.Context, base string) []models.SearchResult {
	started := s.clock()
	defer func() {
		s.metrics.ObserveSearch(s.clock().Sub(started).Seconds())
	}()

	base = sanitizeBase(base)
	if base == "" {
		return nil
	}

	suffixes := s.suffixes
	if len(suffixes) > maxSearchSuffixes {
		suffixes = suffixes[:maxSearchSuffixes]
	}

	candidates := make([]string, 0, len(suffixes))
	for _, suffix := range suffixes {
		suffix = strings.ToLower(strings.TrimSpace(suffix))
		if suffix == "" {
			continue
		}
		if !strings.HasPrefix(suffix, ".") {
			suffix = "." + suffix
		}
		candidates = append(candidates, base+suffix)
	}

	verdicts := s.resolveAvailability(ctx, candidates)

	results := make([]models.SearchResult, 0, len(candidates))
	for _, domain := range candidates {
		v, ok := verdicts[domain]
		if !ok {
			v = backends.Availability{Domain: domain, Available: false, Reason: "No verdict"}
		}
		results = append(results, models.SearchResult{
			Domain:    domain,
			Available: v.Available,
			Reason:    v.Reason,
			Premium:   v.Premium,
			Price:     s.pricing.For(domain),
			Currency:  s.pricing.Currency,
		})
	}

	sort.SliceStable(results, func(i, j int) bool {
		if results[i].Available != results[j].Available {
			return results[i].Available
		}
		if results[i].Price != results[j].Price {
			return results[i].Price < results[j].Price
		}
		return results[i].Domain < results[j].Domain
	})
	return results
}

// resolveAvailability serves what it can from the cache and groups the rest
// by owning backend for one bulk check each.
func (s *Service) resolveAvailability(ctx context.Context, domains []string) map[string]backends.Availability {
	verdicts := make(map[string]backends.Availability, len(domains))
	byBackend := make(map[backends.Backend][]string)

	for _, domain := range domains {
		if s.cache != nil {
			if v, ok := s.cache.Get(ctx, domain); ok {
				s.metrics.IncCacheHit()
				verdicts[domain] = *v
				continue
			}
		}
		s.metrics.IncCacheMiss()
		backend := s.router.SelectBackend(domain)
		byBackend[backend] = append(byBackend[backend], domain)
	}

	for backend, group := range byBackend {
		fresh, err := backend.CheckAvailability(ctx, group)
		if err != nil {
			s.logger.WarnContext(ctx, "availability check failed",
				"provider", backend.Provider(),
				"domains", len(group),
				"error", err.Error(),
			)
			for _, domain := range group {
				verdicts[domain] = backends.Availability{
					Domain: domain,
					Reason: "Service temporarily unavailable",
				}
			}
			continue
		}
		for _, v := range fresh {
			verdicts[v.Domain] = v
			// Error-shaped verdicts are transient; caching them would hide
			// recovery for the TTL.
			if s.cache != nil && v.Reason != "Service temporarily unavailable" {
				s.cache.Set(ctx, v.Domain, v)
			}
		}
	}
	return verdicts
}

func sanitizeBase(base string) string {
	base = strings.ToLower(strings.TrimSpace(base))
	// A searched name may arrive with a suffix already attached; the fan-out
	// wants the bare label.
	if i := strings.IndexByte(base, '.'); i >= 0 {
		base = base[:i]
	}
	return strings.Map(func(r rune) rune {
		switch {
		case r >= 'a' && r <= 'z', r >= '0' && r <= '9', r == '-':
			return r
		default:
			return -1
		}
	}, base)
}
