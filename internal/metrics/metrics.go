package metrics

import (
	"fmt"
	"sort"
	"strings"
	"sync"
)

// Simple Prometheus-style metrics for the admin API.
// This is intentionally minimal and in-memory only.

var (
	mu             sync.RWMutex
	requestsTotal  = make(map[reqKey]int64)
	latencyMsSum   = make(map[latKey]int64)
	latencyMsCount = make(map[latKey]int64)

	probeRuns      = make(map[probeKey]int64)
	probeLatencyMs = make(map[string]int64)

	queriesTotal  = make(map[string]int64)
	queryRowsRead int64

	jobRetriesTotal = make(map[string]int64)
)

type reqKey struct {
	Method string
	Path   string
	Status int
}

type latKey struct {
	Method string
	Path   string
}

type probeKey struct {
	Probe  string
	Status string
}

// RecordRequest increments request counter and records latency.
func RecordRequest(method, path string, status int, latencyMs int64) {
	mu.Lock()
	defer mu.Unlock()

	rk := reqKey{Method: method, Path: path, Status: status}
	requestsTotal[rk]++

	lk := latKey{Method: method, Path: path}
	latencyMsSum[lk] += latencyMs
	latencyMsCount[lk]++
}

// RecordProbe records one health probe outcome.
func RecordProbe(probe, status string, latencyMs int64) {
	mu.Lock()
	defer mu.Unlock()

	probeRuns[probeKey{Probe: probe, Status: status}]++
	probeLatencyMs[probe] = latencyMs
}

// RecordQuery counts a gateway query by outcome and the rows it returned.
func RecordQuery(outcome string, rows int) {
	mu.Lock()
	defer mu.Unlock()

	queriesTotal[outcome]++
	queryRowsRead += int64(rows)
}

// RecordRetry counts a job retry by outcome.
func RecordRetry(outcome string) {
	mu.Lock()
	defer mu.Unlock()

	jobRetriesTotal[outcome]++
}

// Export renders all metrics in Prometheus text exposition format.
func Export() string {
	mu.RLock()
	defer mu.RUnlock()

	var b strings.Builder

	b.WriteString("# HELP opsdeck_http_requests_total Total HTTP requests.\n")
	b.WriteString("# TYPE opsdeck_http_requests_total counter\n")
	for _, k := range sortedReqKeys() {
		fmt.Fprintf(&b, "opsdeck_http_requests_total{method=%q,path=%q,status=\"%d\"} %d\n",
			k.Method, k.Path, k.Status, requestsTotal[k])
	}

	b.WriteString("# HELP opsdeck_http_request_latency_ms Summed request latency in milliseconds.\n")
	b.WriteString("# TYPE opsdeck_http_request_latency_ms counter\n")
	for _, k := range sortedLatKeys() {
		fmt.Fprintf(&b, "opsdeck_http_request_latency_ms_sum{method=%q,path=%q} %d\n",
			k.Method, k.Path, latencyMsSum[k])
		fmt.Fprintf(&b, "opsdeck_http_request_latency_ms_count{method=%q,path=%q} %d\n",
			k.Method, k.Path, latencyMsCount[k])
	}

	b.WriteString("# HELP opsdeck_health_probe_runs_total Health probe runs by outcome.\n")
	b.WriteString("# TYPE opsdeck_health_probe_runs_total counter\n")
	for _, k := range sortedProbeKeys() {
		fmt.Fprintf(&b, "opsdeck_health_probe_runs_total{probe=%q,status=%q} %d\n",
			k.Probe, k.Status, probeRuns[k])
	}

	b.WriteString("# HELP opsdeck_health_probe_latency_ms Latest probe latency in milliseconds.\n")
	b.WriteString("# TYPE opsdeck_health_probe_latency_ms gauge\n")
	for _, probe := range sortedKeys(probeLatencyMs) {
		fmt.Fprintf(&b, "opsdeck_health_probe_latency_ms{probe=%q} %d\n", probe, probeLatencyMs[probe])
	}

	b.WriteString("# HELP opsdeck_gateway_queries_total Read-only gateway queries by outcome.\n")
	b.WriteString("# TYPE opsdeck_gateway_queries_total counter\n")
	for _, outcome := range sortedKeys(queriesTotal) {
		fmt.Fprintf(&b, "opsdeck_gateway_queries_total{outcome=%q} %d\n", outcome, queriesTotal[outcome])
	}

	b.WriteString("# HELP opsdeck_gateway_rows_read_total Rows returned by gateway queries.\n")
	b.WriteString("# TYPE opsdeck_gateway_rows_read_total counter\n")
	fmt.Fprintf(&b, "opsdeck_gateway_rows_read_total %d\n", queryRowsRead)

	b.WriteString("# HELP opsdeck_job_retries_total Operator job retries by outcome.\n")
	b.WriteString("# TYPE opsdeck_job_retries_total counter\n")
	for _, outcome := range sortedKeys(jobRetriesTotal) {
		fmt.Fprintf(&b, "opsdeck_job_retries_total{outcome=%q} %d\n", outcome, jobRetriesTotal[outcome])
	}

	return b.String()
}

func sortedReqKeys() []reqKey {
	keys := make([]reqKey, 0, len(requestsTotal))
	for k := range requestsTotal {
		keys = append(keys, k)
	}
	sort.Slice(keys, func(i, j int) bool {
		if keys[i].Path != keys[j].Path {
			return keys[i].Path < keys[j].Path
		}
		if keys[i].Method != keys[j].Method {
			return keys[i].Method < keys[j].Method
		}
		return keys[i].Status < keys[j].Status
	})
	return keys
}

func sortedLatKeys() []latKey {
	keys := make([]latKey, 0, len(latencyMsSum))
	for k := range latencyMsSum {
		keys = append(keys, k)
	}
	sort.Slice(keys, func(i, j int) bool {
		if keys[i].Path != keys[j].Path {
			return keys[i].Path < keys[j].Path
		}
		return keys[i].Method < keys[j].Method
	})
	return keys
}

func sortedProbeKeys() []probeKey {
	keys := make([]probeKey, 0, len(probeRuns))
	for k := range probeRuns {
		keys = append(keys, k)
	}
	sort.Slice(keys, func(i, j int) bool {
		if keys[i].Probe != keys[j].Probe {
			return keys[i].Probe < keys[j].Probe
		}
		return keys[i].Status < keys[j].Status
	})
	return keys
}

func sortedKeys(m map[string]int64) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}
