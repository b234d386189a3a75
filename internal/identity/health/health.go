package health

import (
	"context"
	"fmt"
	"net/http"
	"sync"
	"time"

	"github.com/aussiebroadwan/edoras/pkg/slogx"
)

// Status of a component or of the whole service.
type Status string

const (
	Healthy   Status = "healthy"
	Unhealthy Status = "unhealthy"
)

// DefaultProbeTimeout bounds a single probe when none is configured.
const DefaultProbeTimeout = 3 * time.Second

// Result is the outcome of one probe.
type Result struct {
	Status  Status `json:"status"`
	Message string `json:"message"`
}

// OK builds a healthy result.
func OK(msg string) Result { return Result{Status: Healthy, Message: msg} }

// Fail builds an unhealthy result.
func Fail(format string, args ...any) Result {
	return Result{Status: Unhealthy, Message: fmt.Sprintf(format, args...)}
}

// Checker is anything that can report its own health.
type Checker interface {
	HealthCheck(ctx context.Context) Result
}

// CheckerFunc adapts a function to Checker.
type CheckerFunc func(ctx context.Context) Result

func (f CheckerFunc) HealthCheck(ctx context.Context) Result { return f(ctx) }

// Meta is the service description stamped on every report.
type Meta struct {
	Service     string `json:"service"`
	Version     string `json:"version"`
	Environment string `json:"environment,omitempty"`
}

// Report is the rolled up health of the service.
type Report struct {
	Status Status `json:"status"`
	Meta
	Timestamp  time.Time         `json:"timestamp"`
	Components map[string]Result `json:"components,omitempty"`
}

// HTTPStatus is 200 for a healthy report and 503 otherwise.
func (r Report) HTTPStatus() int {
	if r.Status == Healthy {
		return http.StatusOK
	}
	return http.StatusServiceUnavailable
}

type probe struct {
	name    string
	checker Checker
}

// Aggregator runs registered probes concurrently and rolls them up. The
// service is healthy only when every probe is.
type Aggregator struct {
	meta    Meta
	timeout time.Duration
	probes  []probe
	now     func() time.Time
}

// NewAggregator returns an empty aggregator. A non-positive timeout falls back
// to DefaultProbeTimeout.
func NewAggregator(meta Meta, timeout time.Duration) *Aggregator {
	if timeout <= 0 {
		timeout = DefaultProbeTimeout
	}
	return &Aggregator{meta: meta, timeout: timeout, now: time.Now}
}

// Add registers a probe under name. Not safe to call concurrently with Check.
func (a *Aggregator) Add(name string, c Checker) *Aggregator {
	a.probes = append(a.probes, probe{name: name, checker: c})
	return a
}

// Live is the shallow liveness report: the process is up.
func (a *Aggregator) Live() Report {
	return Report{Status: Healthy, Meta: a.meta, Timestamp: a.now().UTC()}
}

// Check runs every probe and returns the combined report.
func (a *Aggregator) Check(ctx context.Context) Report {
	results := make([]Result, len(a.probes))

	var wg sync.WaitGroup
	for i, p := range a.probes {
		wg.Add(1)
		go func() {
			defer wg.Done()
			results[i] = a.run(ctx, p)
		}()
	}
	wg.Wait()

	report := Report{
		Status:     Healthy,
		Meta:       a.meta,
		Timestamp:  a.now().UTC(),
		Components: make(map[string]Result, len(a.probes)),
	}
	for i, p := range a.probes {
		report.Components[p.name] = results[i]
		if results[i].Status != Healthy {
			report.Status = Unhealthy
		}
	}
	return report
}

// CheckOne runs a single named probe.
func (a *Aggregator) CheckOne(ctx context.Context, name string) (Result, bool) {
	for _, p := range a.probes {
		if p.name == name {
			return a.run(ctx, p), true
		}
	}
	return Result{}, false
}

// run executes one probe under its own deadline. A probe that panics or
// outlives the deadline is reported unhealthy; its goroutine is left to
// finish on its own.
func (a *Aggregator) run(ctx context.Context, p probe) Result {
	ctx, cancel := context.WithTimeout(ctx, a.timeout)
	defer cancel()

	done := make(chan Result, 1)
	go func() {
		defer func() {
			if rec := recover(); rec != nil {
				slogx.FromContext(ctx).Error("health probe panicked", "probe", p.name, "panic", rec)
				done <- Fail("%s check panicked", p.name)
			}
		}()
		done <- normalize(p.checker.HealthCheck(ctx))
	}()

	select {
	case r := <-done:
		if r.Status != Healthy {
			slogx.FromContext(ctx).Warn("health probe failed", "probe", p.name, "message", r.Message)
		}
		return r
	case <-ctx.Done():
		slogx.FromContext(ctx).Warn("health probe timed out", "probe", p.name, "timeout", a.timeout)
		return Fail("%s check timed out after %s", p.name, a.timeout)
	}
}

func normalize(r Result) Result {
	if r.Status != Healthy {
		r.Status = Unhealthy
	}
	return r
}
