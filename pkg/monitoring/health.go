package monitoring

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"net/http"
	"sort"
	"sync"
	"time"
)

// HealthStatus represents the health status of a component
type HealthStatus string

const (
	HealthStatusHealthy   HealthStatus = "healthy"
	HealthStatusUnhealthy HealthStatus = "unhealthy"
	HealthStatusDegraded  HealthStatus = "degraded"
)

// HealthCheck is the outcome of one dependency check
type HealthCheck struct {
	Name        string                 `json:"name"`
	Status      HealthStatus           `json:"status"`
	Message     string                 `json:"message,omitempty"`
	LastChecked time.Time              `json:"last_checked"`
	Duration    time.Duration          `json:"duration"`
	Details     map[string]interface{} `json:"details,omitempty"`
}

// HealthReport is the body of GET /health
type HealthReport struct {
	Status    HealthStatus   `json:"status"`
	Timestamp time.Time      `json:"timestamp"`
	Service   string         `json:"service"`
	Version   string         `json:"version"`
	Checks    []HealthCheck  `json:"checks"`
	Summary   map[string]int `json:"summary"`
}

type checkFunc func(ctx context.Context) HealthCheck

// HealthManager checks the server's backing stores. Each check gets its own
// deadline so one hung dependency cannot stall the report.
type HealthManager struct {
	serviceName    string
	serviceVersion string
	timeout        time.Duration

	mu     sync.RWMutex
	checks map[string]checkFunc
}

// NewHealthManager creates a health manager. A non-positive timeout falls back to five seconds.
func NewHealthManager(serviceName, serviceVersion string, timeout time.Duration) *HealthManager {
	if timeout <= 0 {
		timeout = 5 * time.Second
	}
	return &HealthManager{
		serviceName:    serviceName,
		serviceVersion: serviceVersion,
		timeout:        timeout,
		checks:         make(map[string]checkFunc),
	}
}

// RegisterPing adds a dependency that is healthy while ping succeeds.
// MongoDB and Redis are checked this way.
func (hm *HealthManager) RegisterPing(name string, ping func(ctx context.Context) error) {
	hm.register(name, func(ctx context.Context) HealthCheck {
		if err := ping(ctx); err != nil {
			return HealthCheck{Status: HealthStatusUnhealthy, Message: fmt.Sprintf("%s ping failed: %v", name, err)}
		}
		return HealthCheck{Status: HealthStatusHealthy, Message: fmt.Sprintf("%s reachable", name)}
	})
}

// RegisterSQL adds a relational pool. A pool within five connections of its
// limit reports degraded.
func (hm *HealthManager) RegisterSQL(name string, db *sql.DB) {
	hm.register(name, func(ctx context.Context) HealthCheck {
		if err := db.PingContext(ctx); err != nil {
			return HealthCheck{Status: HealthStatusUnhealthy, Message: fmt.Sprintf("%s connection failed: %v", name, err)}
		}

		stats := db.Stats()
		check := HealthCheck{
			Status:  HealthStatusHealthy,
			Message: fmt.Sprintf("%s connection healthy", name),
			Details: map[string]interface{}{
				"open_connections": stats.OpenConnections,
				"in_use":           stats.InUse,
				"idle":             stats.Idle,
				"wait_count":       stats.WaitCount,
			},
		}
		if stats.MaxOpenConnections > 0 && stats.OpenConnections >= stats.MaxOpenConnections-5 {
			check.Status = HealthStatusDegraded
			check.Message = fmt.Sprintf("%s connection pool nearly exhausted", name)
		}
		return check
	})
}

func (hm *HealthManager) register(name string, fn checkFunc) {
	hm.mu.Lock()
	defer hm.mu.Unlock()
	hm.checks[name] = fn
}

// CheckHealth runs every check concurrently. Checks are reported by name.
func (hm *HealthManager) CheckHealth(ctx context.Context) *HealthReport {
	hm.mu.RLock()
	names := make([]string, 0, len(hm.checks))
	fns := make([]checkFunc, 0, len(hm.checks))
	for name, fn := range hm.checks {
		names = append(names, name)
		fns = append(fns, fn)
	}
	hm.mu.RUnlock()

	results := make([]HealthCheck, len(fns))
	var wg sync.WaitGroup
	for i := range fns {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			checkCtx, cancel := context.WithTimeout(ctx, hm.timeout)
			defer cancel()

			start := time.Now()
			check := fns[i](checkCtx)
			check.Name = names[i]
			check.LastChecked = start
			check.Duration = time.Since(start)
			results[i] = check
		}(i)
	}
	wg.Wait()

	sort.Slice(results, func(a, b int) bool { return results[a].Name < results[b].Name })

	report := &HealthReport{
		Status:    HealthStatusHealthy,
		Timestamp: time.Now(),
		Service:   hm.serviceName,
		Version:   hm.serviceVersion,
		Checks:    results,
		Summary:   make(map[string]int),
	}
	for _, check := range results {
		report.Summary[string(check.Status)]++
	}
	switch {
	case report.Summary[string(HealthStatusUnhealthy)] > 0:
		report.Status = HealthStatusUnhealthy
	case report.Summary[string(HealthStatusDegraded)] > 0:
		report.Status = HealthStatusDegraded
	}
	return report
}

// HTTPHandler serves the report; only an unhealthy report is a 503
func (hm *HealthManager) HTTPHandler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		report := hm.CheckHealth(r.Context())

		w.Header().Set("Content-Type", "application/json")
		if report.Status == HealthStatusUnhealthy {
			w.WriteHeader(http.StatusServiceUnavailable)
		} else {
			w.WriteHeader(http.StatusOK)
		}
		json.NewEncoder(w).Encode(report)
	}
}
