// Package telemetry provides in-process counters for the triage server using
// only standard library constructs; a snapshot endpoint exposes them as JSON.
package telemetry

import (
	"net/http"
	"sort"
	"sync"

	"github.com/labstack/echo/v4"
)

// Counters is a concurrency-safe set of named monotonic counters.
type Counters struct {
	mu     sync.Mutex
	counts map[string]int64
}

func NewCounters() *Counters {
	return &Counters{counts: make(map[string]int64)}
}

// Inc increments the named counter by one.
func (c *Counters) Inc(name string) {
	c.mu.Lock()
	c.counts[name]++
	c.mu.Unlock()
}

// Snapshot returns a copy of all counters.
func (c *Counters) Snapshot() map[string]int64 {
	c.mu.Lock()
	defer c.mu.Unlock()
	out := make(map[string]int64, len(c.counts))
	for k, v := range c.counts {
		out[k] = v
	}
	return out
}

// Names returns the counter names in sorted order.
func (c *Counters) Names() []string {
	snap := c.Snapshot()
	names := make([]string, 0, len(snap))
	for k := range snap {
		names = append(names, k)
	}
	sort.Strings(names)
	return names
}

// Handler serves the counter snapshot as JSON.
func (c *Counters) Handler() echo.HandlerFunc {
	return func(ec echo.Context) error {
		return ec.JSON(http.StatusOK, c.Snapshot())
	}
}
