// Package health aggregates independent dependency probes into a
// single verdict. Probes run concurrently, each under its own timeout;
// a slow or stuck probe never delays or fails the others.
package health

import (
	"context"
	"time"
)

// Status is a probe or overall health verdict.
type Status string

const (
	StatusHealthy   Status = "healthy"
	StatusDegraded  Status = "degraded"
	StatusUnhealthy Status = "unhealthy"
)

// Result is one probe's outcome. Results are produced independently
// per probe and only merged once every probe has settled.
type Result struct {
	Status    Status `json:"status"`
	LatencyMs int64  `json:"latencyMs"`
	Detail    string `json:"detail,omitempty"`
}

// Report is the merged health view. It is immutable once produced; a
// fresh report is computed per request.
type Report struct {
	Status Status            `json:"status"`
	Probes map[string]Result `json:"probes"`
}

// Probe is one bounded check against a single dependency. Critical
// probes flip the overall verdict to unhealthy when they error or time
// out; non-critical ones only degrade it.
type Probe struct {
	Name     string
	Critical bool
	Check    func(ctx context.Context) Result
}

// Aggregator runs a fixed set of probes.
type Aggregator struct {
	probes  []Probe
	timeout time.Duration
}

func NewAggregator(timeout time.Duration, probes ...Probe) *Aggregator {
	if timeout <= 0 {
		timeout = 2 * time.Second
	}
	return &Aggregator{probes: probes, timeout: timeout}
}

// Check runs all probes concurrently and folds their results. A probe
// that does not return within its budget contributes an unhealthy entry
// instead of blocking the report.
func (a *Aggregator) Check(ctx context.Context) Report {
	type settled struct {
		name     string
		critical bool
		result   Result
	}

	results := make(chan settled, len(a.probes))

	for _, p := range a.probes {
		go func(p Probe) {
			probeCtx, cancel := context.WithTimeout(ctx, a.timeout)
			defer cancel()

			done := make(chan Result, 1)
			start := time.Now()
			go func() {
				done <- p.Check(probeCtx)
			}()

			select {
			case r := <-done:
				results <- settled{name: p.Name, critical: p.Critical, result: r}
			case <-probeCtx.Done():
				results <- settled{name: p.Name, critical: p.Critical, result: Result{
					Status:    StatusUnhealthy,
					LatencyMs: time.Since(start).Milliseconds(),
					Detail:    "probe timed out",
				}}
			}
		}(p)
	}

	report := Report{Status: StatusHealthy, Probes: make(map[string]Result, len(a.probes))}
	for range a.probes {
		s := <-results
		report.Probes[s.name] = s.result

		switch {
		case s.result.Status == StatusUnhealthy && s.critical:
			report.Status = StatusUnhealthy
		case s.result.Status != StatusHealthy && report.Status != StatusUnhealthy:
			report.Status = StatusDegraded
		}
	}

	return report
}
