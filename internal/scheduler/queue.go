package scheduler

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
)

// Backend is the durable delayed-task store the scheduling service writes to.
type Backend interface {
	ScheduleSingle(ctx context.Context, at time.Time, operation, payload, queue string) (string, error)
	ListPending(ctx context.Context, operation, payloadFilter, queue string) ([]string, error)
	Delete(ctx context.Context, taskID string) error
}

// Queue adds the consumer side used by the dispatcher and the recovery sweep.
type Queue interface {
	Backend
	Claim(ctx context.Context, queue string, now time.Time, visibility time.Duration, limit int) ([]Task, error)
	Ack(ctx context.Context, taskID string) error
	Release(ctx context.Context, queue, taskID string, at time.Time) error
	Extend(ctx context.Context, queue, taskID string, deadline time.Time) error
	RecoverExpired(ctx context.Context, queue string, now time.Time) (int, error)
}

// Task is one single-fire delayed task.
type Task struct {
	ID        string
	Operation string
	Payload   string
	Queue     string
	FireAt    time.Time
}

// ErrTaskNotFound is returned by Delete and Ack for unknown task ids.
var ErrTaskNotFound = errors.New("scheduler: task not found")

// claimScript moves due members of the pending set to the inflight set with a
// visibility deadline. Running it as one script keeps two dispatchers from
// claiming the same task.
var claimScript = redis.NewScript(`
local due = redis.call('ZRANGEBYSCORE', KEYS[1], '-inf', ARGV[1], 'LIMIT', 0, tonumber(ARGV[3]))
for _, id in ipairs(due) do
	redis.call('ZREM', KEYS[1], id)
	redis.call('ZADD', KEYS[2], ARGV[2], id)
end
return due
`)

// recoverScript returns inflight tasks whose deadline passed to the pending set.
var recoverScript = redis.NewScript(`
local expired = redis.call('ZRANGEBYSCORE', KEYS[1], '-inf', ARGV[1])
for _, id in ipairs(expired) do
	redis.call('ZREM', KEYS[1], id)
	redis.call('ZADD', KEYS[2], ARGV[1], id)
end
return #expired
`)

// releaseScript moves one inflight task back to pending.
var releaseScript = redis.NewScript(`
if redis.call('ZREM', KEYS[1], ARGV[1]) == 0 then
	return 0
end
redis.call('ZADD', KEYS[2], ARGV[2], ARGV[1])
return 1
`)

// extendScript pushes an inflight deadline out, only while the task is still inflight.
var extendScript = redis.NewScript(`
if not redis.call('ZSCORE', KEYS[1], ARGV[1]) then
	return 0
end
redis.call('ZADD', KEYS[1], ARGV[2], ARGV[1])
return 1
`)

// RedisQueue implements Queue on Redis sorted sets. Pending tasks are scored
// by fire time in milliseconds; claimed tasks sit in an inflight set until
// they are acknowledged or their visibility deadline passes.
type RedisQueue struct {
	client *redis.Client
	prefix string
}

// NewRedisQueue creates a queue whose keys live under prefix ("sched" if empty).
func NewRedisQueue(client *redis.Client, prefix string) *RedisQueue {
	if prefix == "" {
		prefix = "sched"
	}
	return &RedisQueue{client: client, prefix: prefix}
}

func (q *RedisQueue) pendingKey(queue string) string  { return q.prefix + ":" + queue + ":pending" }
func (q *RedisQueue) inflightKey(queue string) string { return q.prefix + ":" + queue + ":inflight" }
func (q *RedisQueue) taskKey(id string) string        { return q.prefix + ":task:" + id }

func (q *RedisQueue) indexKey(queue, operation, payload string) string {
	return q.prefix + ":" + queue + ":idx:" + operation + ":" + payload
}

// ScheduleSingle stores a task that fires once at the given instant.
func (q *RedisQueue) ScheduleSingle(ctx context.Context, at time.Time, operation, payload, queue string) (string, error) {
	id := uuid.New().String()
	_, err := q.client.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		pipe.HSet(ctx, q.taskKey(id), map[string]interface{}{
			"operation": operation,
			"payload":   payload,
			"queue":     queue,
			"fire_at":   at.UTC().UnixMilli(),
		})
		pipe.ZAdd(ctx, q.pendingKey(queue), redis.Z{Score: float64(at.UnixMilli()), Member: id})
		pipe.SAdd(ctx, q.indexKey(queue, operation, payload), id)
		return nil
	})
	if err != nil {
		return "", fmt.Errorf("schedule task: %w", err)
	}
	return id, nil
}

// ListPending returns ids of unfired tasks for operation and payload. Tasks
// already claimed by a dispatcher are not pending.
func (q *RedisQueue) ListPending(ctx context.Context, operation, payloadFilter, queue string) ([]string, error) {
	ids, err := q.client.SMembers(ctx, q.indexKey(queue, operation, payloadFilter)).Result()
	if err != nil {
		return nil, fmt.Errorf("list pending: %w", err)
	}
	if len(ids) == 0 {
		return nil, nil
	}

	pipe := q.client.Pipeline()
	scores := make([]*redis.FloatCmd, len(ids))
	for i, id := range ids {
		scores[i] = pipe.ZScore(ctx, q.pendingKey(queue), id)
	}
	if _, err := pipe.Exec(ctx); err != nil && !errors.Is(err, redis.Nil) {
		return nil, fmt.Errorf("list pending: %w", err)
	}

	pending := make([]string, 0, len(ids))
	for i, cmd := range scores {
		if cmd.Err() == nil {
			pending = append(pending, ids[i])
		}
	}
	return pending, nil
}

// Delete removes a task from every set it belongs to.
func (q *RedisQueue) Delete(ctx context.Context, taskID string) error {
	task, err := q.load(ctx, taskID)
	if err != nil {
		return err
	}
	_, err = q.client.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		pipe.ZRem(ctx, q.pendingKey(task.Queue), taskID)
		pipe.ZRem(ctx, q.inflightKey(task.Queue), taskID)
		pipe.SRem(ctx, q.indexKey(task.Queue, task.Operation, task.Payload), taskID)
		pipe.Del(ctx, q.taskKey(taskID))
		return nil
	})
	if err != nil {
		return fmt.Errorf("delete task %s: %w", taskID, err)
	}
	return nil
}

// Claim atomically takes up to limit due tasks. A claimed task is invisible
// to other dispatchers until now+visibility.
func (q *RedisQueue) Claim(ctx context.Context, queue string, now time.Time, visibility time.Duration, limit int) ([]Task, error) {
	if limit <= 0 {
		limit = 10
	}
	res, err := claimScript.Run(ctx, q.client,
		[]string{q.pendingKey(queue), q.inflightKey(queue)},
		now.UnixMilli(), now.Add(visibility).UnixMilli(), limit,
	).StringSlice()
	if err != nil && !errors.Is(err, redis.Nil) {
		return nil, fmt.Errorf("claim tasks: %w", err)
	}

	tasks := make([]Task, 0, len(res))
	for _, id := range res {
		task, err := q.load(ctx, id)
		if errors.Is(err, ErrTaskNotFound) {
			q.client.ZRem(ctx, q.inflightKey(queue), id)
			continue
		}
		if err != nil {
			return tasks, err
		}
		tasks = append(tasks, *task)
	}
	return tasks, nil
}

// Ack marks a claimed task done. It will never fire again.
func (q *RedisQueue) Ack(ctx context.Context, taskID string) error {
	return q.Delete(ctx, taskID)
}

// Release returns a claimed task to the pending set, due at at. It is used
// for tasks claimed but never started.
func (q *RedisQueue) Release(ctx context.Context, queue, taskID string, at time.Time) error {
	n, err := releaseScript.Run(ctx, q.client,
		[]string{q.inflightKey(queue), q.pendingKey(queue)},
		taskID, at.UnixMilli(),
	).Int()
	if err != nil {
		return fmt.Errorf("release task %s: %w", taskID, err)
	}
	if n == 0 {
		return ErrTaskNotFound
	}
	return nil
}

// Extend moves the visibility deadline of a claimed task. It returns
// ErrTaskNotFound once the task is no longer inflight.
func (q *RedisQueue) Extend(ctx context.Context, queue, taskID string, deadline time.Time) error {
	n, err := extendScript.Run(ctx, q.client,
		[]string{q.inflightKey(queue)},
		taskID, deadline.UnixMilli(),
	).Int()
	if err != nil {
		return fmt.Errorf("extend task %s: %w", taskID, err)
	}
	if n == 0 {
		return ErrTaskNotFound
	}
	return nil
}

// RecoverExpired re-queues claimed tasks whose visibility deadline passed.
func (q *RedisQueue) RecoverExpired(ctx context.Context, queue string, now time.Time) (int, error) {
	n, err := recoverScript.Run(ctx, q.client,
		[]string{q.inflightKey(queue), q.pendingKey(queue)},
		now.UnixMilli(),
	).Int()
	if err != nil {
		return 0, fmt.Errorf("recover tasks: %w", err)
	}
	return n, nil
}

func (q *RedisQueue) load(ctx context.Context, id string) (*Task, error) {
	fields, err := q.client.HGetAll(ctx, q.taskKey(id)).Result()
	if err != nil {
		return nil, fmt.Errorf("load task %s: %w", id, err)
	}
	if len(fields) == 0 {
		return nil, ErrTaskNotFound
	}
	ms, _ := strconv.ParseInt(fields["fire_at"], 10, 64)
	return &Task{
		ID:        id,
		Operation: fields["operation"],
		Payload:   fields["payload"],
		Queue:     fields["queue"],
		FireAt:    time.UnixMilli(ms).UTC(),
	}, nil
}
