// Package metrics holds the service's Prometheus collectors. Each file
// declares its collectors and enqueues them from init(); the binary calls
// MustRegister once after startup wiring.
package metrics

import (
	"strings"
	"sync"

	"github.com/prometheus/client_golang/prometheus"
)

var (
	mu      sync.Mutex
	pending []prometheus.Collector
	done    bool
)

func register(cs ...prometheus.Collector) {
	mu.Lock()
	defer mu.Unlock()
	pending = append(pending, cs...)
}

// MustRegister installs every enqueued collector into the default registry.
// Safe to call more than once; only the first call registers.
func MustRegister() {
	mu.Lock()
	defer mu.Unlock()
	if done {
		return
	}
	done = true
	prometheus.MustRegister(pending...)
	pending = nil
}

func norm(s string) string { return strings.ToLower(strings.TrimSpace(s)) }
