package monitoring

import (
	"context"
	"sort"
	"sync"
	"time"
)

// Status de santé
const (
	StatusHealthy   = "healthy"
	StatusUnhealthy = "unhealthy"
	StatusDegraded  = "degraded"
)

// HealthStatus représente l'état de santé du service
type HealthStatus struct {
	Status    string           `json:"status"`
	Service   string           `json:"service"`
	Version   string           `json:"version"`
	Timestamp int64            `json:"timestamp"`
	Uptime    string           `json:"uptime"`
	Checks    map[string]Check `json:"checks"`
}

// Check représente une vérification de santé
type Check struct {
	Status   string `json:"status"`
	Message  string `json:"message,omitempty"`
	Latency  string `json:"latency"`
	Critical bool   `json:"critical"`
}

// CheckFunc vérifie une dépendance
type CheckFunc func(ctx context.Context) error

type namedCheck struct {
	name     string
	critical bool
	fn       CheckFunc
}

// HealthChecker gère les vérifications de santé
type HealthChecker struct {
	service string
	version string
	started time.Time
	timeout time.Duration

	mu     sync.RWMutex
	checks []namedCheck
}

// NewHealthChecker crée un nouveau checker de santé
func NewHealthChecker(service, version string) *HealthChecker {
	return &HealthChecker{
		service: service,
		version: version,
		started: time.Now(),
		timeout: 5 * time.Second,
	}
}

// AddCheck enregistre une dépendance. Une dépendance critique en échec rend le service unhealthy,
// les autres le rendent degraded.
func (h *HealthChecker) AddCheck(name string, critical bool, fn CheckFunc) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.checks = append(h.checks, namedCheck{name: name, critical: critical, fn: fn})
}

// GetHealthStatus effectue toutes les vérifications de santé
func (h *HealthChecker) GetHealthStatus(ctx context.Context) HealthStatus {
	h.mu.RLock()
	checks := make([]namedCheck, len(h.checks))
	copy(checks, h.checks)
	h.mu.RUnlock()

	sort.Slice(checks, func(i, j int) bool { return checks[i].name < checks[j].name })

	result := HealthStatus{
		Status:    StatusHealthy,
		Service:   h.service,
		Version:   h.version,
		Timestamp: time.Now().Unix(),
		Uptime:    time.Since(h.started).Round(time.Second).String(),
		Checks:    make(map[string]Check, len(checks)),
	}

	for _, nc := range checks {
		check := h.run(ctx, nc)
		result.Checks[nc.name] = check

		if check.Status == StatusHealthy {
			continue
		}
		if nc.critical {
			result.Status = StatusUnhealthy
		} else if result.Status == StatusHealthy {
			result.Status = StatusDegraded
		}
	}

	return result
}

// Ready indique si toutes les dépendances critiques répondent
func (h *HealthChecker) Ready(ctx context.Context) bool {
	return h.GetHealthStatus(ctx).Status != StatusUnhealthy
}

func (h *HealthChecker) run(ctx context.Context, nc namedCheck) Check {
	start := time.Now()

	ctx, cancel := context.WithTimeout(ctx, h.timeout)
	defer cancel()

	if err := nc.fn(ctx); err != nil {
		return Check{
			Status:   StatusUnhealthy,
			Message:  err.Error(),
			Latency:  time.Since(start).String(),
			Critical: nc.critical,
		}
	}

	return Check{
		Status:   StatusHealthy,
		Latency:  time.Since(start).String(),
		Critical: nc.critical,
	}
}
