package health

import (
	"context"
	"net/http"
	"sort"
	"sync"
	"sync/atomic"
	"time"

	"github.com/labstack/echo/v4"
)

const (
	StatusHealthy   = "healthy"
	StatusDegraded  = "degraded"
	StatusUnhealthy = "unhealthy"

	defaultCheckTimeout = 3 * time.Second
)

// Pinger reports whether a dependency is reachable
type Pinger func(ctx context.Context) error

type check struct {
	ping     Pinger
	required bool
}

// Checker serves liveness, readiness and dependency health. A failing required
// check makes the service unhealthy; a failing optional one only degrades it.
type Checker struct {
	checks    map[string]check
	version   string
	timeout   time.Duration
	startTime time.Time
	ready     atomic.Bool
}

// NewChecker creates a checker with the database as its one required check.
func NewChecker(database Pinger, version string) *Checker {
	return &Checker{
		checks:    map[string]check{"database": {ping: database, required: true}},
		version:   version,
		timeout:   defaultCheckTimeout,
		startTime: time.Now(),
	}
}

// AddCheck registers an optional dependency such as redis or the search index.
func (c *Checker) AddCheck(name string, ping Pinger) {
	c.checks[name] = check{ping: ping}
}

// AddRequiredCheck registers a dependency the service cannot serve without.
func (c *Checker) AddRequiredCheck(name string, ping Pinger) {
	c.checks[name] = check{ping: ping, required: true}
}

func (c *Checker) SetReady(ready bool) {
	c.ready.Store(ready)
}

func (c *Checker) RegisterRoutes(e *echo.Echo) {
	e.GET("/api/v1/health", c.Health)
	e.GET("/api/v1/health/live", c.Live)
	e.GET("/api/v1/health/ready", c.Ready)
}

type HealthStatus struct {
	Status     string                  `json:"status"`
	Version    string                  `json:"version"`
	Uptime     string                  `json:"uptime"`
	Checks     map[string]*CheckResult `json:"checks"`
	ReportedAt time.Time               `json:"reported_at"`
}

type CheckResult struct {
	Status   string `json:"status"`
	Required bool   `json:"required"`
	Message  string `json:"message,omitempty"`
	Latency  string `json:"latency,omitempty"`
}

// Run pings every dependency concurrently, each bounded by the check timeout.
func (c *Checker) Run(ctx context.Context) *HealthStatus {
	names := make([]string, 0, len(c.checks))
	for name := range c.checks {
		names = append(names, name)
	}
	sort.Strings(names)

	results := make([]*CheckResult, len(names))
	var wg sync.WaitGroup
	for i, name := range names {
		wg.Add(1)
		go func(i int, chk check) {
			defer wg.Done()
			results[i] = c.ping(ctx, chk)
		}(i, c.checks[name])
	}
	wg.Wait()

	status := &HealthStatus{
		Status:     StatusHealthy,
		Version:    c.version,
		Uptime:     time.Since(c.startTime).Round(time.Second).String(),
		Checks:     make(map[string]*CheckResult, len(names)),
		ReportedAt: time.Now().UTC(),
	}
	for i, name := range names {
		result := results[i]
		status.Checks[name] = result
		if result.Status == StatusHealthy {
			continue
		}
		if result.Required {
			status.Status = StatusUnhealthy
		} else if status.Status == StatusHealthy {
			status.Status = StatusDegraded
		}
	}
	return status
}

func (c *Checker) ping(ctx context.Context, chk check) *CheckResult {
	result := &CheckResult{Required: chk.required}
	if chk.ping == nil {
		result.Status = StatusUnhealthy
		result.Message = "not configured"
		return result
	}

	ctx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	start := time.Now()
	if err := chk.ping(ctx); err != nil {
		result.Status = StatusUnhealthy
		result.Message = err.Error()
		return result
	}
	result.Status = StatusHealthy
	result.Latency = time.Since(start).String()
	return result
}

// Health reports every dependency. Only an unhealthy required check yields 503.
func (c *Checker) Health(ctx echo.Context) error {
	status := c.Run(ctx.Request().Context())
	code := http.StatusOK
	if status.Status == StatusUnhealthy {
		code = http.StatusServiceUnavailable
	}
	return ctx.JSON(code, status)
}

func (c *Checker) Live(ctx echo.Context) error {
	return ctx.JSON(http.StatusOK, map[string]string{"status": "alive"})
}

// Ready is 200 once startup finished and every required dependency answers.
func (c *Checker) Ready(ctx echo.Context) error {
	if !c.ready.Load() {
		return ctx.JSON(http.StatusServiceUnavailable, map[string]string{"status": "starting"})
	}
	if c.Run(ctx.Request().Context()).Status == StatusUnhealthy {
		return ctx.JSON(http.StatusServiceUnavailable, map[string]string{"status": "not ready"})
	}
	return ctx.JSON(http.StatusOK, map[string]string{"status": "ready"})
}
