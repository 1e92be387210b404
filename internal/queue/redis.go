package queue

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strconv"
	"time"

	"github.com/redis/go-redis/v9"
)

// Sentinel errors the inspector translates into taxonomy errors.
var (
	// ErrJobNotFound means the job id has no record in the backend.
	ErrJobNotFound = errors.New("job not found")
	// ErrJobNotFailed means a retry was attempted on a job that is not
	// (or no longer) in the failed state.
	ErrJobNotFailed = errors.New("job is not in the failed state")
	// ErrBadJobState means the backend holds the job in a state outside
	// the closed status set.
	ErrBadJobState = errors.New("job is in an unrecognized state")
)

// Client reads and mutates queue state in the work-queue backend. It is
// an interface so the inspector can be tested against a fake and so a
// different backend can be slotted in without touching the inspector.
type Client interface {
	// Counts returns per-status job counts and the paused flag for one queue.
	Counts(ctx context.Context, queueName string) (map[Status]int64, bool, error)

	// Jobs returns records in the given status, offset/limit paginated.
	// Ordering within a status is the backend's insertion order.
	Jobs(ctx context.Context, queueName string, status Status, offset, limit int64) ([]JobRecord, error)

	// Job returns a single record with its current status. Returns
	// ErrJobNotFound for unknown ids and ErrBadJobState when the backend
	// holds the job outside the closed status set.
	Job(ctx context.Context, queueName, jobID string) (JobRecord, error)

	// Retry atomically moves a failed job back to waiting and clears its
	// failure metadata, returning the updated record. Returns
	// ErrJobNotFound or ErrJobNotFailed when the transition is invalid.
	Retry(ctx context.Context, queueName, jobID string) (JobRecord, error)
}

// RedisClient talks to a BullMQ-style redis key layout:
//
//	<prefix>:<queue>:wait       list of waiting job ids
//	<prefix>:<queue>:active     list of ids being processed
//	<prefix>:<queue>:delayed    zset scored by promotion time
//	<prefix>:<queue>:completed  zset scored by finish time
//	<prefix>:<queue>:failed     zset scored by failure time
//	<prefix>:<queue>:meta       hash; field "paused" set when paused
//	<prefix>:<queue>:<jobID>    hash holding the job record fields
type RedisClient struct {
	rdb    *redis.Client
	prefix string
}

func NewRedisClient(rdb *redis.Client, prefix string) *RedisClient {
	return &RedisClient{rdb: rdb, prefix: prefix}
}

func (c *RedisClient) key(queueName string, parts ...string) string {
	k := c.prefix + ":" + queueName
	for _, p := range parts {
		k += ":" + p
	}
	return k
}

// retryScript performs the failed→waiting transition atomically so a
// concurrent second retry observes the job already gone from the failed
// set and reports a state conflict instead of double-transitioning.
//
// KEYS[1] = failed zset, KEYS[2] = wait list, KEYS[3] = job hash
// ARGV[1] = job id
var retryScript = redis.NewScript(`
if redis.call('EXISTS', KEYS[3]) == 0 then
  return 'notfound'
end
if redis.call('ZREM', KEYS[1], ARGV[1]) == 0 then
  return 'notfailed'
end
redis.call('HDEL', KEYS[3], 'failedReason', 'stacktrace', 'processedOn', 'finishedOn')
redis.call('LPUSH', KEYS[2], ARGV[1])
return 'ok'
`)

func (c *RedisClient) Counts(ctx context.Context, queueName string) (map[Status]int64, bool, error) {
	pipe := c.rdb.Pipeline()
	wait := pipe.LLen(ctx, c.key(queueName, "wait"))
	active := pipe.LLen(ctx, c.key(queueName, "active"))
	delayed := pipe.ZCard(ctx, c.key(queueName, "delayed"))
	completed := pipe.ZCard(ctx, c.key(queueName, "completed"))
	failed := pipe.ZCard(ctx, c.key(queueName, "failed"))
	paused := pipe.HGet(ctx, c.key(queueName, "meta"), "paused")

	if _, err := pipe.Exec(ctx); err != nil && err != redis.Nil {
		return nil, false, fmt.Errorf("read queue counts: %w", err)
	}

	counts := map[Status]int64{
		StatusWaiting:   wait.Val(),
		StatusActive:    active.Val(),
		StatusDelayed:   delayed.Val(),
		StatusCompleted: completed.Val(),
		StatusFailed:    failed.Val(),
	}
	return counts, paused.Val() != "", nil
}

func (c *RedisClient) Jobs(ctx context.Context, queueName string, status Status, offset, limit int64) ([]JobRecord, error) {
	if limit <= 0 {
		return []JobRecord{}, nil
	}
	stop := offset + limit - 1

	var ids []string
	var err error
	switch status {
	case StatusWaiting:
		ids, err = c.rdb.LRange(ctx, c.key(queueName, "wait"), offset, stop).Result()
	case StatusActive:
		ids, err = c.rdb.LRange(ctx, c.key(queueName, "active"), offset, stop).Result()
	case StatusDelayed:
		ids, err = c.rdb.ZRange(ctx, c.key(queueName, "delayed"), offset, stop).Result()
	case StatusCompleted:
		ids, err = c.rdb.ZRange(ctx, c.key(queueName, "completed"), offset, stop).Result()
	case StatusFailed:
		ids, err = c.rdb.ZRange(ctx, c.key(queueName, "failed"), offset, stop).Result()
	default:
		return nil, ErrBadJobState
	}
	if err != nil {
		return nil, fmt.Errorf("list %s jobs: %w", status, err)
	}

	records := make([]JobRecord, 0, len(ids))
	for _, id := range ids {
		rec, err := c.readJob(ctx, queueName, id, status)
		if err != nil {
			if errors.Is(err, ErrJobNotFound) {
				// The job moved or expired between the index read and the
				// hash read; skip rather than failing the whole page.
				continue
			}
			return nil, err
		}
		records = append(records, rec)
	}
	return records, nil
}

func (c *RedisClient) Job(ctx context.Context, queueName, jobID string) (JobRecord, error) {
	status, err := c.findStatus(ctx, queueName, jobID)
	if err != nil {
		return JobRecord{}, err
	}
	return c.readJob(ctx, queueName, jobID, status)
}

func (c *RedisClient) Retry(ctx context.Context, queueName, jobID string) (JobRecord, error) {
	res, err := retryScript.Run(ctx, c.rdb,
		[]string{
			c.key(queueName, "failed"),
			c.key(queueName, "wait"),
			c.key(queueName, jobID),
		},
		jobID,
	).Text()
	if err != nil {
		return JobRecord{}, fmt.Errorf("retry job: %w", err)
	}

	switch res {
	case "notfound":
		return JobRecord{}, ErrJobNotFound
	case "notfailed":
		return JobRecord{}, ErrJobNotFailed
	}

	return c.readJob(ctx, queueName, jobID, StatusWaiting)
}

// findStatus locates which status structure holds the given job id.
// A job whose hash exists but that sits in none of the known structures
// is in a state outside the closed set.
func (c *RedisClient) findStatus(ctx context.Context, queueName, jobID string) (Status, error) {
	if n, err := c.rdb.Exists(ctx, c.key(queueName, jobID)).Result(); err != nil {
		return "", err
	} else if n == 0 {
		return "", ErrJobNotFound
	}

	for _, st := range []Status{StatusFailed, StatusCompleted, StatusDelayed} {
		_, err := c.rdb.ZScore(ctx, c.key(queueName, string(st)), jobID).Result()
		if err == nil {
			return st, nil
		}
		if err != redis.Nil {
			return "", err
		}
	}
	for _, st := range []Status{StatusWaiting, StatusActive} {
		listKey := c.key(queueName, "wait")
		if st == StatusActive {
			listKey = c.key(queueName, "active")
		}
		if _, err := c.rdb.LPos(ctx, listKey, jobID, redis.LPosArgs{}).Result(); err == nil {
			return st, nil
		} else if err != redis.Nil {
			return "", err
		}
	}
	return "", ErrBadJobState
}

// readJob materializes a JobRecord from the job hash. The caller
// supplies the status it observed the id under.
func (c *RedisClient) readJob(ctx context.Context, queueName, jobID string, status Status) (JobRecord, error) {
	fields, err := c.rdb.HGetAll(ctx, c.key(queueName, jobID)).Result()
	if err != nil {
		return JobRecord{}, fmt.Errorf("read job %s: %w", jobID, err)
	}
	if len(fields) == 0 {
		return JobRecord{}, ErrJobNotFound
	}

	rec := JobRecord{ID: jobID, Status: status}

	if data, ok := fields["data"]; ok && json.Valid([]byte(data)) {
		rec.Payload = json.RawMessage(data)
	}
	if raw, ok := fields["attemptsMade"]; ok {
		if n, err := strconv.Atoi(raw); err == nil && n >= 0 {
			rec.AttemptsMade = n
		}
	}
	if status == StatusFailed {
		rec.FailedReason = fields["failedReason"]
	}
	if ms, ok := parseMillis(fields["timestamp"]); ok {
		rec.CreatedAt = ms
	}
	if ms, ok := parseMillis(fields["processedOn"]); ok {
		rec.ProcessedAt = &ms
	}
	return rec, nil
}

func parseMillis(raw string) (time.Time, bool) {
	if raw == "" {
		return time.Time{}, false
	}
	ms, err := strconv.ParseInt(raw, 10, 64)
	if err != nil || ms <= 0 {
		return time.Time{}, false
	}
	return time.UnixMilli(ms).UTC(), true
}
