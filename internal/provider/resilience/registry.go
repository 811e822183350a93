package resilience

import (
	"sync"
	"time"

	"github.com/sony/gobreaker/v2"
)

// FeedHealth is the reported health of one upstream data feed.
type FeedHealth struct {
	// Name is the feed identifier (nwis, cwms, iem, peakflow).
	Name string

	// CircuitState is the feed's current breaker state.
	CircuitState gobreaker.State

	// Counts carries the breaker's request statistics.
	Counts gobreaker.Counts

	// LastSuccessAt is when the feed last answered successfully.
	LastSuccessAt *time.Time

	// LastFailureAt is when the feed last failed.
	LastFailureAt *time.Time

	// LastError is the most recent error message, if any.
	LastError string
}

// IsHealthy reports whether the feed's breaker is closed.
func (h *FeedHealth) IsHealthy() bool {
	return h.CircuitState == gobreaker.StateClosed
}

// IsDegraded reports whether the feed is probing out of an outage.
func (h *FeedHealth) IsDegraded() bool {
	return h.CircuitState == gobreaker.StateHalfOpen
}

// IsUnhealthy reports whether the feed's breaker is open.
func (h *FeedHealth) IsUnhealthy() bool {
	return h.CircuitState == gobreaker.StateOpen
}

// Registry tracks the resilient clients by feed name so the ops surface
// can report upstream health without reaching into each adapter.
type Registry struct {
	mu    sync.RWMutex
	feeds map[string]*registeredFeed
}

type registeredFeed struct {
	client        *Client
	lastSuccessAt *time.Time
	lastFailureAt *time.Time
	lastError     string
}

// GlobalRegistry is the default feed registry. Clients self-register on
// construction.
var GlobalRegistry = NewRegistry()

// NewRegistry creates an empty feed registry.
func NewRegistry() *Registry {
	return &Registry{feeds: make(map[string]*registeredFeed)}
}

// Register adds a feed client to the registry.
func (r *Registry) Register(name string, client *Client) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.feeds[name] = &registeredFeed{client: client}
}

// Unregister removes a feed from the registry.
func (r *Registry) Unregister(name string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	delete(r.feeds, name)
}

// RecordSuccess notes a successful request for a feed.
func (r *Registry) RecordSuccess(name string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if f, ok := r.feeds[name]; ok {
		now := time.Now()
		f.lastSuccessAt = &now
	}
}

// RecordFailure notes a failed request for a feed.
func (r *Registry) RecordFailure(name string, err error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if f, ok := r.feeds[name]; ok {
		now := time.Now()
		f.lastFailureAt = &now
		if err != nil {
			f.lastError = err.Error()
		}
	}
}

// GetHealth returns the health of one feed, or nil if unknown.
func (r *Registry) GetHealth(name string) *FeedHealth {
	r.mu.RLock()
	defer r.mu.RUnlock()

	f, ok := r.feeds[name]
	if !ok {
		return nil
	}
	return health(name, f)
}

// GetAllHealth returns the health of every registered feed.
func (r *Registry) GetAllHealth() []*FeedHealth {
	r.mu.RLock()
	defer r.mu.RUnlock()

	all := make([]*FeedHealth, 0, len(r.feeds))
	for name, f := range r.feeds {
		all = append(all, health(name, f))
	}
	return all
}

func health(name string, f *registeredFeed) *FeedHealth {
	return &FeedHealth{
		Name:          name,
		CircuitState:  f.client.CircuitBreakerState(),
		Counts:        f.client.CircuitBreakerCounts(),
		LastSuccessAt: f.lastSuccessAt,
		LastFailureAt: f.lastFailureAt,
		LastError:     f.lastError,
	}
}

// FeedNames returns the names of every registered feed.
func (r *Registry) FeedNames() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()

	names := make([]string, 0, len(r.feeds))
	for name := range r.feeds {
		names = append(names, name)
	}
	return names
}

// FeedCount returns the number of registered feeds.
func (r *Registry) FeedCount() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.feeds)
}
