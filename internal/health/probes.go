package health

import (
	"context"
	"database/sql"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/shirou/gopsutil/v4/cpu"
	"github.com/shirou/gopsutil/v4/load"
	"github.com/shirou/gopsutil/v4/mem"

	"opsdeck/internal/config"
	"opsdeck/internal/queue"
)

// QueueLister is the slice of the queue inspector the queue probe needs.
type QueueLister interface {
	ListQueues(ctx context.Context) ([]queue.Snapshot, error)
}

// CacheProbe pings redis and inspects its memory pressure. Critical:
// an unreachable cache makes the overall verdict unhealthy.
func CacheProbe(rdb *redis.Client, cfg config.HealthConfig) Probe {
	return Probe{
		Name:     "cache",
		Critical: true,
		Check: func(ctx context.Context) Result {
			start := time.Now()
			if err := rdb.Ping(ctx).Err(); err != nil {
				return Result{
					Status:    StatusUnhealthy,
					LatencyMs: time.Since(start).Milliseconds(),
					Detail:    "ping failed",
				}
			}
			latency := time.Since(start).Milliseconds()

			info, err := rdb.Info(ctx, "memory").Result()
			if err != nil {
				// Ping succeeded; stats are advisory.
				return Result{Status: StatusHealthy, LatencyMs: latency, Detail: "memory stats unavailable"}
			}

			used, max := parseMemoryInfo(info)
			if max > 0 && float64(used)/float64(max) > cfg.CacheMemoryFraction {
				return Result{
					Status:    StatusDegraded,
					LatencyMs: latency,
					Detail:    fmt.Sprintf("memory pressure: %d of %d bytes used", used, max),
				}
			}
			return Result{Status: StatusHealthy, LatencyMs: latency, Detail: fmt.Sprintf("used_memory=%d", used)}
		},
	}
}

// parseMemoryInfo pulls used_memory and maxmemory out of an INFO
// memory section.
func parseMemoryInfo(info string) (used, max int64) {
	for _, line := range strings.Split(info, "\r\n") {
		if v, ok := strings.CutPrefix(line, "used_memory:"); ok {
			used, _ = strconv.ParseInt(strings.TrimSpace(v), 10, 64)
		}
		if v, ok := strings.CutPrefix(line, "maxmemory:"); ok {
			max, _ = strconv.ParseInt(strings.TrimSpace(v), 10, 64)
		}
	}
	return used, max
}

// DatabaseProbe runs a trivial query and checks pool utilization.
// Critical: an unreachable database makes the overall verdict unhealthy.
func DatabaseProbe(db *sql.DB, cfg config.HealthConfig) Probe {
	return Probe{
		Name:     "database",
		Critical: true,
		Check: func(ctx context.Context) Result {
			start := time.Now()
			var one int
			if err := db.QueryRowContext(ctx, "SELECT 1").Scan(&one); err != nil {
				return Result{
					Status:    StatusUnhealthy,
					LatencyMs: time.Since(start).Milliseconds(),
					Detail:    "query failed",
				}
			}
			latency := time.Since(start).Milliseconds()

			stats := db.Stats()
			if stats.MaxOpenConnections > 0 {
				frac := float64(stats.InUse) / float64(stats.MaxOpenConnections)
				if frac > cfg.DBPoolFraction {
					return Result{
						Status:    StatusDegraded,
						LatencyMs: latency,
						Detail:    fmt.Sprintf("pool pressure: %d of %d connections in use", stats.InUse, stats.MaxOpenConnections),
					}
				}
			}
			return Result{Status: StatusHealthy, LatencyMs: latency, Detail: fmt.Sprintf("pool in_use=%d open=%d", stats.InUse, stats.OpenConnections)}
		},
	}
}

// QueueProbe reads queue snapshots via the inspector and judges paused
// queues and backlog size. Non-critical: failures degrade but never
// flip the overall verdict to unhealthy.
func QueueProbe(lister QueueLister, cfg config.HealthConfig) Probe {
	return Probe{
		Name:     "queues",
		Critical: false,
		Check: func(ctx context.Context) Result {
			start := time.Now()
			snapshots, err := lister.ListQueues(ctx)
			if err != nil {
				return Result{
					Status:    StatusUnhealthy,
					LatencyMs: time.Since(start).Milliseconds(),
					Detail:    "queue backend unreachable",
				}
			}
			latency := time.Since(start).Milliseconds()

			for _, s := range snapshots {
				if s.Paused {
					return Result{
						Status:    StatusDegraded,
						LatencyMs: latency,
						Detail:    fmt.Sprintf("queue %q is paused", s.Name),
					}
				}
				backlog := s.Counts[queue.StatusWaiting] + s.Counts[queue.StatusDelayed]
				if backlog > cfg.QueueBacklog {
					return Result{
						Status:    StatusDegraded,
						LatencyMs: latency,
						Detail:    fmt.Sprintf("queue %q backlog %d exceeds %d", s.Name, backlog, cfg.QueueBacklog),
					}
				}
			}
			return Result{Status: StatusHealthy, LatencyMs: latency, Detail: fmt.Sprintf("%d queues", len(snapshots))}
		},
	}
}

// ResourceProbe samples host CPU, memory, and load. Best effort and
// non-critical: a sampler error degrades at most.
func ResourceProbe(cfg config.HealthConfig) Probe {
	return Probe{
		Name:     "resources",
		Critical: false,
		Check: func(ctx context.Context) Result {
			start := time.Now()

			vm, err := mem.VirtualMemoryWithContext(ctx)
			if err != nil {
				return Result{
					Status:    StatusDegraded,
					LatencyMs: time.Since(start).Milliseconds(),
					Detail:    "memory sampling unavailable",
				}
			}

			// Instantaneous sample; a measurement interval would block
			// the probe for its full budget.
			cpuPcts, err := cpu.PercentWithContext(ctx, 0, false)
			cpuPct := 0.0
			if err == nil && len(cpuPcts) > 0 {
				cpuPct = cpuPcts[0]
			}

			loadDetail := ""
			if avg, err := load.AvgWithContext(ctx); err == nil {
				loadDetail = fmt.Sprintf(" load1=%.2f", avg.Load1)
			}

			latency := time.Since(start).Milliseconds()
			detail := fmt.Sprintf("cpu=%.1f%% mem=%.1f%%%s", cpuPct, vm.UsedPercent, loadDetail)

			if vm.UsedPercent > cfg.MemoryPercent || cpuPct > cfg.CPUPercent {
				return Result{Status: StatusDegraded, LatencyMs: latency, Detail: detail}
			}
			return Result{Status: StatusHealthy, LatencyMs: latency, Detail: detail}
		},
	}
}
