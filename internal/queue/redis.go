// Package queue implements the operation-request queue contract
// (spec.md §6) on top of Redis lists and sorted sets: a ready list the
// Doer drains with BRPOPLPUSH, a processing list backing the
// visibility-timeout/redelivery discipline (with ReclaimExpired sweeping
// it, grounded on the teacher's worker.StartLeaseReaper ticker), and a
// dead-letter sorted set keyed by insertion time so retention can be
// enforced without Redis key-level TTL granularity surprises. Adapted
// from the teacher's internal/queue/redis.go, generalized from an
// arbitrary job payload to the fixed OperationRequest shape.
package queue

import (
	"context"
	"encoding/json"
	"fmt"
	"strconv"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/sqlxpert/lights-off-aws/internal/domain"
)

// ErrMessageTooLarge is returned by Enqueue when a marshaled
// OperationRequest exceeds maxBytes (spec.md §6, "Size cap").
type ErrMessageTooLarge struct {
	Bytes, MaxBytes int
}

func (e *ErrMessageTooLarge) Error() string {
	return fmt.Sprintf("queue: message is %d bytes, exceeds max %d", e.Bytes, e.MaxBytes)
}

func ReadyKey(queueName string) string { return "opqueue:" + queueName + ":ready" }

func ProcessingKey(queueName string) string { return "opqueue:" + queueName + ":processing" }

func DLQKey(queueName string) string { return "opqueue:" + queueName + ":dlq" }

// processingTimesKey is a hash of payload -> unix-nanosecond receive
// time, alongside the processing list: BRPOPLPUSH's destination list
// carries no timestamp of its own, and ReclaimExpired needs one to find
// entries a crashed or budget-exceeding worker never resolved.
func processingTimesKey(queueName string) string { return "opqueue:" + queueName + ":processing_times" }

// Connect dials Redis and verifies reachability with PING, the way the
// teacher's queue.Connect did.
func Connect(ctx context.Context, url string) (*redis.Client, error) {
	opt, err := redis.ParseURL(url)
	if err != nil {
		return nil, err
	}
	rdb := redis.NewClient(opt)
	if err := rdb.Ping(ctx).Err(); err != nil {
		rdb.Close()
		return nil, err
	}
	return rdb, nil
}

// Enqueue marshals req and RPUSHes it onto the named queue's ready list,
// rejecting anything over maxBytes before it ever reaches Redis.
func Enqueue(ctx context.Context, rdb *redis.Client, queueName string, req domain.OperationRequest, maxBytes int) error {
	payload, err := req.Marshal()
	if err != nil {
		return err
	}
	if maxBytes > 0 && len(payload) > maxBytes {
		return &ErrMessageTooLarge{Bytes: len(payload), MaxBytes: maxBytes}
	}
	return rdb.RPush(ctx, ReadyKey(queueName), payload).Err()
}

// Receive long-polls the ready list with BRPOPLPUSH, atomically moving
// the message into the processing list, then stamps its receive time
// with a separate HSET (ReclaimExpired stamps any entry it finds
// without one), so
// a crashed or budget-exceeding worker's in-flight message survives for
// ReclaimExpired to recover (spec.md §6, "Queue properties": visibility
// timeout + redelivery). waitFor is the long-poll duration (default 20s
// per spec.md §6); a timeout returns ("", nil), not an error.
func Receive(ctx context.Context, rdb *redis.Client, queueName string, waitFor time.Duration) (string, error) {
	payload, err := rdb.BRPopLPush(ctx, ReadyKey(queueName), ProcessingKey(queueName), waitFor).Result()
	if err == redis.Nil {
		return "", nil
	}
	if err != nil {
		return "", err
	}
	if err := rdb.HSet(ctx, processingTimesKey(queueName), payload, time.Now().UnixNano()).Err(); err != nil {
		return "", err
	}
	return payload, nil
}

// Ack removes a successfully (or terminally, e.g. expired) handled
// message from the processing list. Redis LREM by value is safe here
// because two OperationRequests are never byte-identical across cycles
// (cycle_start differs every 10 minutes).
func Ack(ctx context.Context, rdb *redis.Client, queueName, payload string) error {
	pipe := rdb.TxPipeline()
	pipe.LRem(ctx, ProcessingKey(queueName), 1, payload)
	pipe.HDel(ctx, processingTimesKey(queueName), payload)
	_, err := pipe.Exec(ctx)
	return err
}

// Requeue moves a message from processing back onto the ready list for
// another delivery attempt — used for a Transient outcome (spec.md §4.4)
// before the cycle's expiration threshold is reached.
func Requeue(ctx context.Context, rdb *redis.Client, queueName, payload string) error {
	pipe := rdb.TxPipeline()
	pipe.LRem(ctx, ProcessingKey(queueName), 1, payload)
	pipe.HDel(ctx, processingTimesKey(queueName), payload)
	pipe.RPush(ctx, ReadyKey(queueName), payload)
	_, err := pipe.Exec(ctx)
	return err
}

// DeadLetter moves a message from processing into the dead-letter sorted
// set, scored by arrival time so TrimDLQ can enforce retention (spec.md
// §4.4, "routes failures to dead-letter channel"; §6, "dead-letter
// retention configurable").
func DeadLetter(ctx context.Context, rdb *redis.Client, queueName, payload string, at time.Time) error {
	pipe := rdb.TxPipeline()
	pipe.LRem(ctx, ProcessingKey(queueName), 1, payload)
	pipe.HDel(ctx, processingTimesKey(queueName), payload)
	pipe.ZAdd(ctx, DLQKey(queueName), redis.Z{Score: float64(at.Unix()), Member: payload})
	_, err := pipe.Exec(ctx)
	return err
}

// ReclaimExpired scans the processing list for entries whose visibility
// timeout has elapsed — a worker that crashed or exceeded its
// wall-clock budget between Receive and Ack/Requeue/DeadLetter — and
// moves them back onto the ready list for redelivery (spec.md §5,
// "Cancellation & timeouts": "the queue's visibility timeout ensures the
// message is redelivered once"). A payload with no recorded receive time
// (e.g. left over from before this field existed) is stamped now rather
// than reclaimed immediately, so it gets one full visibility window
// before being swept up. It returns the number of messages reclaimed.
func ReclaimExpired(ctx context.Context, rdb *redis.Client, queueName string, visibilityTimeout time.Duration, now time.Time) (int, error) {
	payloads, err := rdb.LRange(ctx, ProcessingKey(queueName), 0, -1).Result()
	if err != nil {
		return 0, err
	}
	if len(payloads) == 0 {
		return 0, nil
	}

	times, err := rdb.HMGet(ctx, processingTimesKey(queueName), payloads...).Result()
	if err != nil {
		return 0, err
	}

	reclaimed := 0
	for i, payload := range payloads {
		raw, _ := times[i].(string)
		if raw == "" {
			if err := rdb.HSet(ctx, processingTimesKey(queueName), payload, now.UnixNano()).Err(); err != nil {
				return reclaimed, err
			}
			continue
		}
		receivedNano, err := strconv.ParseInt(raw, 10, 64)
		if err != nil {
			continue
		}
		if now.Sub(time.Unix(0, receivedNano)) < visibilityTimeout {
			continue
		}
		pipe := rdb.TxPipeline()
		pipe.LRem(ctx, ProcessingKey(queueName), 1, payload)
		pipe.HDel(ctx, processingTimesKey(queueName), payload)
		pipe.RPush(ctx, ReadyKey(queueName), payload)
		if _, err := pipe.Exec(ctx); err != nil {
			return reclaimed, err
		}
		reclaimed++
	}
	return reclaimed, nil
}

// ListDLQ returns up to limit dead-letter entries, newest first, for
// inspection via the HTTP API.
func ListDLQ(ctx context.Context, rdb *redis.Client, queueName string, limit int64) ([]string, error) {
	if limit <= 0 {
		limit = 100
	}
	return rdb.ZRevRange(ctx, DLQKey(queueName), 0, limit-1).Result()
}

// ReplayDLQ moves up to count dead-letter entries back onto the ready
// list, oldest first, for operator-initiated retry after a fix.
func ReplayDLQ(ctx context.Context, rdb *redis.Client, queueName string, count int64) (int, error) {
	items, err := rdb.ZRangeWithScores(ctx, DLQKey(queueName), 0, count-1).Result()
	if err != nil {
		return 0, err
	}
	moved := 0
	for _, item := range items {
		member := item.Member.(string)
		pipe := rdb.TxPipeline()
		pipe.ZRem(ctx, DLQKey(queueName), member)
		pipe.RPush(ctx, ReadyKey(queueName), member)
		if _, err := pipe.Exec(ctx); err != nil {
			return moved, err
		}
		moved++
	}
	return moved, nil
}

// TrimDLQ removes dead-letter entries older than retention, enforcing
// the configurable dead-letter retention spec.md §6 names.
func TrimDLQ(ctx context.Context, rdb *redis.Client, queueName string, retention time.Duration, now time.Time) (int64, error) {
	cutoff := now.Add(-retention).Unix()
	return rdb.ZRemRangeByScore(ctx, DLQKey(queueName), "-inf", fmt.Sprintf("%d", cutoff)).Result()
}

// DecodeOperationRequest is a thin wrapper so callers don't import
// encoding/json directly at every Receive/Ack call site.
func DecodeOperationRequest(payload string) (domain.OperationRequest, error) {
	var req domain.OperationRequest
	if err := json.Unmarshal([]byte(payload), &req); err != nil {
		return domain.OperationRequest{}, err
	}
	return req, nil
}
