package metrics

import (
	"strings"
	"testing"
)

func TestExportIncludesRecordedSeries(t *testing.T) {
	RecordRequest("GET", "/admin/queues", 200, 12)
	RecordRequest("GET", "/admin/queues", 200, 8)
	RecordProbe("cache", "healthy", 3)
	RecordQuery("ok", 42)
	RecordRetry("ok")
	RecordRetry("INVALID_STATE")

	out := Export()

	for _, want := range []string{
		`opsdeck_http_requests_total{method="GET",path="/admin/queues",status="200"} 2`,
		`opsdeck_http_request_latency_ms_sum{method="GET",path="/admin/queues"} 20`,
		`opsdeck_health_probe_runs_total{probe="cache",status="healthy"} 1`,
		`opsdeck_gateway_queries_total{outcome="ok"} 1`,
		`opsdeck_job_retries_total{outcome="INVALID_STATE"} 1`,
	} {
		if !strings.Contains(out, want) {
			t.Errorf("export missing %q\n%s", want, out)
		}
	}
}

func TestExportWellFormed(t *testing.T) {
	RecordRequest("POST", "/admin/query", 400, 5)

	out := Export()
	for _, line := range strings.Split(strings.TrimSpace(out), "\n") {
		if strings.HasPrefix(line, "#") {
			continue
		}
		if !strings.HasPrefix(line, "opsdeck_") {
			t.Errorf("unexpected metric line %q", line)
		}
		if !strings.Contains(line, " ") {
			t.Errorf("metric line missing value: %q", line)
		}
	}
}
