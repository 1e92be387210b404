package health

import (
	"context"
	"testing"
	"time"
)

func staticProbe(name string, critical bool, status Status) Probe {
	return Probe{
		Name:     name,
		Critical: critical,
		Check: func(ctx context.Context) Result {
			return Result{Status: status, LatencyMs: 1}
		},
	}
}

func stuckProbe(name string, critical bool) Probe {
	return Probe{
		Name:     name,
		Critical: critical,
		Check: func(ctx context.Context) Result {
			<-ctx.Done()
			time.Sleep(time.Hour)
			return Result{Status: StatusHealthy}
		},
	}
}

func TestCheckAllHealthy(t *testing.T) {
	agg := NewAggregator(time.Second,
		staticProbe("cache", true, StatusHealthy),
		staticProbe("database", true, StatusHealthy),
		staticProbe("queues", false, StatusHealthy),
	)

	report := agg.Check(context.Background())
	if report.Status != StatusHealthy {
		t.Fatalf("overall = %s, want healthy", report.Status)
	}
	if len(report.Probes) != 3 {
		t.Fatalf("expected 3 probe entries, got %d", len(report.Probes))
	}
}

func TestCheckCriticalUnhealthyDominates(t *testing.T) {
	agg := NewAggregator(time.Second,
		staticProbe("cache", true, StatusUnhealthy),
		staticProbe("database", true, StatusHealthy),
		staticProbe("queues", false, StatusHealthy),
	)

	report := agg.Check(context.Background())
	if report.Status != StatusUnhealthy {
		t.Fatalf("overall = %s, want unhealthy", report.Status)
	}
}

func TestCheckNonCriticalOnlyDegrades(t *testing.T) {
	for _, status := range []Status{StatusDegraded, StatusUnhealthy} {
		agg := NewAggregator(time.Second,
			staticProbe("cache", true, StatusHealthy),
			staticProbe("queues", false, status),
		)

		report := agg.Check(context.Background())
		if report.Status != StatusDegraded {
			t.Fatalf("non-critical %s: overall = %s, want degraded", status, report.Status)
		}
	}
}

func TestCheckCriticalDegradedDoesNotGoUnhealthy(t *testing.T) {
	agg := NewAggregator(time.Second,
		staticProbe("cache", true, StatusDegraded),
		staticProbe("database", true, StatusHealthy),
	)

	report := agg.Check(context.Background())
	if report.Status != StatusDegraded {
		t.Fatalf("overall = %s, want degraded", report.Status)
	}
}

func TestCheckUnhealthyNotDowngradedByLaterDegraded(t *testing.T) {
	agg := NewAggregator(time.Second,
		staticProbe("cache", true, StatusUnhealthy),
		staticProbe("queues", false, StatusDegraded),
	)

	report := agg.Check(context.Background())
	if report.Status != StatusUnhealthy {
		t.Fatalf("overall = %s, want unhealthy", report.Status)
	}
}

func TestCheckTimedOutProbeSubstituted(t *testing.T) {
	agg := NewAggregator(50*time.Millisecond,
		stuckProbe("cache", true),
		staticProbe("database", true, StatusHealthy),
	)

	start := time.Now()
	report := agg.Check(context.Background())
	elapsed := time.Since(start)

	if elapsed > time.Second {
		t.Fatalf("report took %v; a stuck probe must not block the check", elapsed)
	}
	if report.Status != StatusUnhealthy {
		t.Fatalf("overall = %s, want unhealthy", report.Status)
	}
	probe, ok := report.Probes["cache"]
	if !ok {
		t.Fatal("timed-out probe missing from report")
	}
	if probe.Status != StatusUnhealthy || probe.Detail != "probe timed out" {
		t.Fatalf("unexpected substituted result: %+v", probe)
	}
	if db := report.Probes["database"]; db.Status != StatusHealthy {
		t.Fatalf("fast probe affected by slow one: %+v", db)
	}
}

func TestCheckTimedOutNonCriticalDegrades(t *testing.T) {
	agg := NewAggregator(50*time.Millisecond,
		staticProbe("cache", true, StatusHealthy),
		stuckProbe("queues", false),
	)

	report := agg.Check(context.Background())
	if report.Status != StatusDegraded {
		t.Fatalf("overall = %s, want degraded", report.Status)
	}
}

func TestCheckProbesRunConcurrently(t *testing.T) {
	slow := func(name string) Probe {
		return Probe{
			Name:     name,
			Critical: false,
			Check: func(ctx context.Context) Result {
				time.Sleep(80 * time.Millisecond)
				return Result{Status: StatusHealthy}
			},
		}
	}

	agg := NewAggregator(time.Second, slow("a"), slow("b"), slow("c"), slow("d"))

	start := time.Now()
	report := agg.Check(context.Background())
	elapsed := time.Since(start)

	if report.Status != StatusHealthy {
		t.Fatalf("overall = %s, want healthy", report.Status)
	}
	// Serial execution would take at least 320ms.
	if elapsed > 250*time.Millisecond {
		t.Fatalf("probes appear to run serially: %v", elapsed)
	}
}
