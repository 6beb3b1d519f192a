package service

import (
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/lexatlas/legalrisk/model"
	gocache "github.com/patrickmn/go-cache"
)

const (
	simCacheTTL     = 10 * time.Minute
	simCacheCleanup = 15 * time.Minute
)

// SimulationCache memoizes simulation results. Simulations are pure functions
// of (clause, scenario, modifications), so a cached result is always valid for
// the lifetime of the clause; the TTL only bounds memory.
type SimulationCache struct {
	cache *gocache.Cache
}

func NewSimulationCache() *SimulationCache {
	return &SimulationCache{
		cache: gocache.New(simCacheTTL, simCacheCleanup),
	}
}

// Get returns a previously cached result for the exact same request.
func (c *SimulationCache) Get(clauseID, scenarioKey string, mods map[string]float64) (*model.SimulationResult, bool) {
	v, ok := c.cache.Get(simCacheKey(clauseID, scenarioKey, mods))
	if !ok {
		return nil, false
	}
	result, ok := v.(*model.SimulationResult)
	return result, ok
}

// Put stores a result under the request's cache key.
func (c *SimulationCache) Put(clauseID, scenarioKey string, mods map[string]float64, result *model.SimulationResult) {
	c.cache.Set(simCacheKey(clauseID, scenarioKey, mods), result, gocache.DefaultExpiration)
}

// Invalidate drops every cached result for the clause, e.g. after a re-run
// replaced the clause set.
func (c *SimulationCache) Invalidate(clauseID string) {
	prefix := clauseID + "|"
	for key := range c.cache.Items() {
		if strings.HasPrefix(key, prefix) {
			c.cache.Delete(key)
		}
	}
}

// simCacheKey builds a deterministic key: modification order must not matter.
func simCacheKey(clauseID, scenarioKey string, mods map[string]float64) string {
	var b strings.Builder
	b.WriteString(clauseID)
	b.WriteString("|")
	b.WriteString(scenarioKey)

	keys := make([]string, 0, len(mods))
	for k := range mods {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	for _, k := range keys {
		fmt.Fprintf(&b, "|%s=%g", k, mods[k])
	}
	return b.String()
}
