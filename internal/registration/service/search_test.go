package service

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"registro/internal/backends"
)

type mapCache struct {
	entries map[string]backends.Availability
	hits    int
	sets    int
}

func newMapCache() *mapCache {
	return &mapCache{entries: make(map[string]backends.Availability)}
}

func (c *mapCache) Get(ctx context.Context, domain string) (*backends.Availability, bool) {
	v, ok := c.entries[domain]
	if !ok {
		return nil, false
	}
	c.hits++
	return &v, true
}

func (c *mapCache) Set(ctx context.Context, domain string, verdict backends.Availability) {
	c.sets++
	c.entries[domain] = verdict
}

func testPricing() PriceList {
	return PriceList{
		Currency: "USD",
		BySuffix: map[string]int64{
			".rw":    1500,
			".co.rw": 1200,
			".com":   1000,
			".net":   1100,
		},
		Default: 2000,
	}
}

func TestSearchDomainsSortsAvailableFirstThenPrice(t *testing.T) {
	local := &stubBackend{provider: backends.ProviderEPP,
		check: func(domains []string) ([]backends.Availability, error) {
			out := make([]backends.Availability, len(domains))
			for i, d := range domains {
				if d == "acme.rw" {
					out[i] = backends.Availability{Domain: d, Reason: "Domain taken"}
					continue
				}
				out[i] = backends.Availability{Domain: d, Available: true}
			}
			return out, nil
		}}
	international := &stubBackend{provider: backends.ProviderRegistrar}

	svc, _ := newTestService(t, local, international,
		WithSearchSuffixes([]string{".rw", ".co.rw", ".com", ".net"}),
		WithPricing(testPricing()))

	results := svc.SearchDomains(context.Background(), "acme")
	require.Len(t, results, 4)

	// Available results first, cheapest first; the taken .rw variant last.
	assert.Equal(t, "acme.com", results[0].Domain)
	assert.Equal(t, int64(1000), results[0].Price)
	assert.Equal(t, "acme.net", results[1].Domain)
	assert.Equal(t, "acme.co.rw", results[2].Domain)
	assert.False(t, results[3].Available)
	assert.Equal(t, "acme.rw", results[3].Domain)
	assert.Equal(t, "Domain taken", results[3].Reason)
	assert.Equal(t, "USD", results[0].Currency)
}

func TestSearchDomainsGroupsByBackend(t *testing.T) {
	local := &stubBackend{provider: backends.ProviderEPP}
	international := &stubBackend{provider: backends.ProviderRegistrar}
	svc, _ := newTestService(t, local, international,
		WithSearchSuffixes([]string{".rw", ".co.rw", ".com"}),
		WithPricing(testPricing()))

	results := svc.SearchDomains(context.Background(), "Acme Shop!")
	require.Len(t, results, 3)
	assert.Equal(t, 1, local.checkCalls, "one bulk call per backend")
	assert.Equal(t, 1, international.checkCalls)
	for _, r := range results {
		assert.Contains(t, r.Domain, "acmeshop.")
	}
}

func TestSearchDomainsCaps20Suffixes(t *testing.T) {
	suffixes := []string{
		".rw", ".co.rw", ".org.rw", ".net.rw", ".ac.rw",
		".com", ".net", ".org", ".io", ".dev", ".app", ".co", ".me", ".info",
		".biz", ".shop", ".store", ".online", ".site", ".tech", ".xyz",
		".cloud", ".digital", ".agency", ".africa",
	}
	require.Greater(t, len(suffixes), maxSearchSuffixes)

	svc, _ := newTestService(t, &stubBackend{provider: backends.ProviderEPP},
		&stubBackend{provider: backends.ProviderRegistrar},
		WithSearchSuffixes(suffixes), WithPricing(testPricing()))

	results := svc.SearchDomains(context.Background(), "acme")
	assert.Len(t, results, maxSearchSuffixes)
}

func TestSearchDomainsUsesCache(t *testing.T) {
	local := &stubBackend{provider: backends.ProviderEPP}
	cache := newMapCache()
	svc, _ := newTestService(t, local, &stubBackend{provider: backends.ProviderRegistrar},
		WithSearchSuffixes([]string{".rw", ".co.rw"}),
		WithPricing(testPricing()),
		WithCache(cache))

	first := svc.SearchDomains(context.Background(), "acme")
	require.Len(t, first, 2)
	assert.Equal(t, 1, local.checkCalls)
	assert.Equal(t, 2, cache.sets)

	second := svc.SearchDomains(context.Background(), "acme")
	require.Len(t, second, 2)
	assert.Equal(t, 1, local.checkCalls, "second search served from cache")
	assert.Equal(t, 2, cache.hits)
}

func TestSearchDomainsBackendOutageNotCached(t *testing.T) {
	local := &stubBackend{provider: backends.ProviderEPP,
		check: func(domains []string) ([]backends.Availability, error) {
			out := make([]backends.Availability, len(domains))
			for i, d := range domains {
				out[i] = backends.Availability{Domain: d, Reason: "Service temporarily unavailable"}
			}
			return out, nil
		}}
	cache := newMapCache()
	svc, _ := newTestService(t, local, &stubBackend{provider: backends.ProviderRegistrar},
		WithSearchSuffixes([]string{".rw"}),
		WithPricing(testPricing()),
		WithCache(cache))

	results := svc.SearchDomains(context.Background(), "acme")
	require.Len(t, results, 1)
	assert.False(t, results[0].Available)
	assert.Zero(t, cache.sets, "transient outage verdicts are not cached")
}

func TestSanitizeBase(t *testing.T) {
	assert.Equal(t, "acme", sanitizeBase(" Acme "))
	assert.Equal(t, "acme", sanitizeBase("acme.rw"))
	assert.Equal(t, "acme-shop", sanitizeBase("Acme-Shop"))
	assert.Equal(t, "", sanitizeBase("..."))
}

func TestPriceListLongestSuffixWins(t *testing.T) {
	p := testPricing()
	assert.Equal(t, int64(1200), p.For("acme.co.rw"))
	assert.Equal(t, int64(1500), p.For("acme.rw"))
	assert.Equal(t, int64(2000), p.For("acme.dev"))
}
