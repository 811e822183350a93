// Package monitor tracks per-station data freshness. A read-through cache
// over the persisted monitoring state answers "how old is the freshest
// reading for X" without a store round trip on the hot path.
package monitor

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/rs/zerolog"
)

// Status is the health of one monitored (site, parameter) series.
type Status string

const (
	StatusActive   Status = "active"
	StatusDegraded Status = "degraded"
	StatusOffline  Status = "offline"
	StatusUnknown  Status = "unknown"
)

// Failure counts at which a series is downgraded.
const (
	DegradedFailureCount = 3
	OfflineFailureCount  = 12
)

// StatusForFailures maps a consecutive-failure count onto a health status.
// One or two failures are tolerated as transient.
func StatusForFailures(failures int) Status {
	switch {
	case failures >= OfflineFailureCount:
		return StatusOffline
	case failures >= DegradedFailureCount:
		return StatusDegraded
	default:
		return StatusActive
	}
}

// Entry is the in-memory projection of one monitoring-state row.
type Entry struct {
	SiteCode            string        `json:"site_code"`
	ParameterCode       string        `json:"parameter_code"`
	LatestReadingTime   *time.Time    `json:"latest_reading_time,omitempty"`
	LatestValue         *float64      `json:"latest_value,omitempty"`
	StalenessThreshold  time.Duration `json:"staleness_threshold"`
	Status              Status        `json:"status"`
	LastPollAttempt     *time.Time    `json:"last_poll_attempt,omitempty"`
	ConsecutiveFailures int           `json:"consecutive_failures"`
}

// IsStale reports whether the entry's freshest reading is older than its
// staleness threshold at the given instant. Entries with no reading at all
// are always stale.
func (e Entry) IsStale(now time.Time) bool {
	if e.LatestReadingTime == nil {
		return true
	}
	return now.Sub(*e.LatestReadingTime) > e.StalenessThreshold
}

// StateSource loads persisted monitoring state.
type StateSource interface {
	MonitoringState(ctx context.Context) ([]Entry, error)
}

// Cache is the hybrid staleness tracker: rebuilt from the store on startup,
// updated incrementally after each poll, refreshed wholesale on a schedule.
// It is never the sole source of truth.
type Cache struct {
	mu          sync.RWMutex
	entries     map[string]Entry
	lastRefresh time.Time

	source StateSource
	logger zerolog.Logger
}

// NewCache creates an empty cache backed by the given source.
func NewCache(source StateSource, logger zerolog.Logger) *Cache {
	return &Cache{
		entries: make(map[string]Entry),
		source:  source,
		logger:  logger.With().Str("component", "monitor").Logger(),
	}
}

func key(siteCode, parameterCode string) string {
	return siteCode + "|" + parameterCode
}

// Refresh rebuilds the cache from the store.
func (c *Cache) Refresh(ctx context.Context) error {
	state, err := c.source.MonitoringState(ctx)
	if err != nil {
		return fmt.Errorf("load monitoring state: %w", err)
	}

	entries := make(map[string]Entry, len(state))
	for _, entry := range state {
		entries[key(entry.SiteCode, entry.ParameterCode)] = entry
	}

	c.mu.Lock()
	c.entries = entries
	c.lastRefresh = time.Now()
	c.mu.Unlock()

	c.logger.Debug().Int("entries", len(entries)).Msg("staleness cache refreshed")
	return nil
}

// Get returns the cached entry for a series.
func (c *Cache) Get(siteCode, parameterCode string) (Entry, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	entry, ok := c.entries[key(siteCode, parameterCode)]
	return entry, ok
}

// Update replaces one entry after a poll, without a store round trip.
func (c *Cache) Update(entry Entry) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.entries[key(entry.SiteCode, entry.ParameterCode)] = entry
}

// IsStale reports whether a series is stale at the given instant. Series
// absent from the cache are maximally stale.
func (c *Cache) IsStale(siteCode, parameterCode string, now time.Time) bool {
	entry, ok := c.Get(siteCode, parameterCode)
	if !ok {
		return true
	}
	return entry.IsStale(now)
}

// Unhealthy returns the entries that are stale or not active, for the
// health surface.
func (c *Cache) Unhealthy(now time.Time) []Entry {
	c.mu.RLock()
	defer c.mu.RUnlock()

	var unhealthy []Entry
	for _, entry := range c.entries {
		if entry.IsStale(now) || entry.Status != StatusActive {
			unhealthy = append(unhealthy, entry)
		}
	}
	return unhealthy
}

// Entries returns a snapshot of all cached entries.
func (c *Cache) Entries() []Entry {
	c.mu.RLock()
	defer c.mu.RUnlock()

	entries := make([]Entry, 0, len(c.entries))
	for _, entry := range c.entries {
		entries = append(entries, entry)
	}
	return entries
}

// LastRefresh reports when the cache was last rebuilt from the store.
func (c *Cache) LastRefresh() time.Time {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.lastRefresh
}
