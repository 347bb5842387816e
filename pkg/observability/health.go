package observability

import (
	"context"
	"sort"
	"sync"
	"time"
)

// HealthState is the coarse state of a dependency.
type HealthState string

const (
	HealthHealthy   HealthState = "healthy"
	HealthDegraded  HealthState = "degraded"
	HealthUnhealthy HealthState = "unhealthy"
)

// ComponentHealth is the outcome of one dependency check.
type ComponentHealth struct {
	Name     string        `json:"name"`
	State    HealthState   `json:"state"`
	Message  string        `json:"message,omitempty"`
	Duration time.Duration `json:"duration_ns"`
}

// HealthCheck probes one dependency.
type HealthCheck func(ctx context.Context) ComponentHealth

// PingCheck adapts a ping function. Optional dependencies report degraded
// instead of unhealthy when the ping fails.
func PingCheck(ping func(ctx context.Context) error, optional bool) HealthCheck {
	return func(ctx context.Context) ComponentHealth {
		if err := ping(ctx); err != nil {
			state := HealthUnhealthy
			if optional {
				state = HealthDegraded
			}
			return ComponentHealth{State: state, Message: err.Error()}
		}
		return ComponentHealth{State: HealthHealthy}
	}
}

// HealthRegistry runs the registered dependency checks.
type HealthRegistry struct {
	mu     sync.RWMutex
	checks map[string]HealthCheck
}

// NewHealthRegistry creates an empty registry.
func NewHealthRegistry() *HealthRegistry {
	return &HealthRegistry{checks: make(map[string]HealthCheck)}
}

// Register adds or replaces a check.
func (r *HealthRegistry) Register(name string, check HealthCheck) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.checks[name] = check
}

// Names returns the registered check names, sorted.
func (r *HealthRegistry) Names() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	names := make([]string, 0, len(r.checks))
	for name := range r.checks {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// Check runs every check concurrently and returns results sorted by name
// together with the aggregate state.
func (r *HealthRegistry) Check(ctx context.Context) ([]ComponentHealth, HealthState) {
	r.mu.RLock()
	checks := make(map[string]HealthCheck, len(r.checks))
	for k, v := range r.checks {
		checks[k] = v
	}
	r.mu.RUnlock()

	results := make([]ComponentHealth, 0, len(checks))
	var (
		mu sync.Mutex
		wg sync.WaitGroup
	)
	for name, check := range checks {
		wg.Add(1)
		go func(name string, check HealthCheck) {
			defer wg.Done()
			start := time.Now()
			res := check(ctx)
			res.Name = name
			res.Duration = time.Since(start)
			mu.Lock()
			results = append(results, res)
			mu.Unlock()
		}(name, check)
	}
	wg.Wait()

	sort.Slice(results, func(i, j int) bool { return results[i].Name < results[j].Name })

	overall := HealthHealthy
	for _, res := range results {
		switch res.State {
		case HealthUnhealthy:
			overall = HealthUnhealthy
		case HealthDegraded:
			if overall == HealthHealthy {
				overall = HealthDegraded
			}
		}
	}
	return results, overall
}
