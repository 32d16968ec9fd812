package services

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/streadway/amqp"
)

// TaskTypeDispatchMessage is the only task type in the queue today
const TaskTypeDispatchMessage = "dispatch_message"

// Task is one unit of work for the dispatch workers. ID is deterministic
// per message so duplicate enqueues collapse into one task.
type Task struct {
	ID        string `json:"id"`
	Type      string `json:"type"`
	MessageID uint   `json:"message_id"`
	Attempt   int    `json:"attempt"`
}

// TaskDispatcher is the queue between the enqueue transaction and the
// dispatch workers. Enqueue is best-effort deduplicated by task ID while a
// task is in flight; Complete releases the ID after a terminal outcome.
type TaskDispatcher interface {
	Enqueue(ctx context.Context, task Task, delay time.Duration) error
	Consume(ctx context.Context) (<-chan Task, error)
	Complete(ctx context.Context, task Task) error
	Close() error
}

// ---------------------------------------------------------------------------
// Redis implementation

const (
	redisTaskSetKey     = "dispatch:tasks"
	redisDedupePrefix   = "dispatch:dedupe:"
	redisDedupeTTL      = 24 * time.Hour
	redisPollInterval   = 250 * time.Millisecond
	redisClaimBatchSize = 64
)

// RedisTaskDispatcher stores due tasks in a sorted set scored by ready time.
// A SETNX key per task ID drops duplicate first enqueues; retries bypass the
// dedupe because the worker owns the task at that point.
type RedisTaskDispatcher struct {
	client *redis.Client
	prefix string

	mu     sync.Mutex
	closed bool
	stop   chan struct{}
}

// NewRedisTaskDispatcher creates a dispatcher on an existing redis client
func NewRedisTaskDispatcher(client *redis.Client, prefix string) *RedisTaskDispatcher {
	return &RedisTaskDispatcher{
		client: client,
		prefix: prefix,
		stop:   make(chan struct{}),
	}
}

func (d *RedisTaskDispatcher) setKey() string {
	return d.prefix + redisTaskSetKey
}

func (d *RedisTaskDispatcher) dedupeKey(taskID string) string {
	return d.prefix + redisDedupePrefix + taskID
}

// Enqueue schedules a task. First enqueues of an in-flight task ID are
// silently dropped; the pending task already covers the work.
func (d *RedisTaskDispatcher) Enqueue(ctx context.Context, task Task, delay time.Duration) error {
	if task.Attempt == 0 {
		set, err := d.client.SetNX(ctx, d.dedupeKey(task.ID), "1", redisDedupeTTL).Result()
		if err != nil {
			return fmt.Errorf("failed to reserve task id: %w", err)
		}
		if !set {
			return nil // duplicate, already in flight
		}
	}

	payload, err := json.Marshal(task)
	if err != nil {
		return fmt.Errorf("failed to marshal task: %w", err)
	}

	readyAt := time.Now().Add(delay)
	err = d.client.ZAdd(ctx, d.setKey(), redis.Z{
		Score:  float64(readyAt.UnixMilli()),
		Member: string(payload),
	}).Err()
	if err != nil {
		return fmt.Errorf("failed to enqueue task: %w", err)
	}
	return nil
}

// Consume starts a polling loop that claims due tasks and delivers them on
// the returned channel. The channel closes when ctx is done or the
// dispatcher is closed.
func (d *RedisTaskDispatcher) Consume(ctx context.Context) (<-chan Task, error) {
	out := make(chan Task)

	go func() {
		defer close(out)
		ticker := time.NewTicker(redisPollInterval)
		defer ticker.Stop()

		for {
			select {
			case <-ctx.Done():
				return
			case <-d.stop:
				return
			case <-ticker.C:
			}

			now := float64(time.Now().UnixMilli())
			members, err := d.client.ZRangeByScore(ctx, d.setKey(), &redis.ZRangeBy{
				Min:   "-inf",
				Max:   fmt.Sprintf("%f", now),
				Count: redisClaimBatchSize,
			}).Result()
			if err != nil {
				continue
			}

			for _, member := range members {
				// ZREM is the claim: only one consumer removes a member
				removed, err := d.client.ZRem(ctx, d.setKey(), member).Result()
				if err != nil || removed == 0 {
					continue
				}

				var task Task
				if err := json.Unmarshal([]byte(member), &task); err != nil {
					continue
				}

				select {
				case out <- task:
				case <-ctx.Done():
					return
				case <-d.stop:
					return
				}
			}
		}
	}()

	return out, nil
}

// Complete releases the dedupe reservation after a terminal outcome
func (d *RedisTaskDispatcher) Complete(ctx context.Context, task Task) error {
	return d.client.Del(ctx, d.dedupeKey(task.ID)).Err()
}

// Close stops the consume loop
func (d *RedisTaskDispatcher) Close() error {
	d.mu.Lock()
	defer d.mu.Unlock()
	if !d.closed {
		d.closed = true
		close(d.stop)
	}
	return nil
}

// ---------------------------------------------------------------------------
// AMQP implementation

// AMQPTaskDispatcher publishes tasks to a durable queue. Deduplication is
// left to the conditional status updates in the worker; AMQP redelivery is
// harmless for the same reason.
type AMQPTaskDispatcher struct {
	conn      *amqp.Connection
	channel   *amqp.Channel
	queueName string
}

// NewAMQPTaskDispatcher dials the broker and declares the task queue
func NewAMQPTaskDispatcher(url, queueName string) (*AMQPTaskDispatcher, error) {
	conn, err := amqp.Dial(url)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to broker: %w", err)
	}

	channel, err := conn.Channel()
	if err != nil {
		conn.Close()
		return nil, fmt.Errorf("failed to open channel: %w", err)
	}

	_, err = channel.QueueDeclare(queueName, true, false, false, false, nil)
	if err != nil {
		channel.Close()
		conn.Close()
		return nil, fmt.Errorf("failed to declare queue: %w", err)
	}

	return &AMQPTaskDispatcher{
		conn:      conn,
		channel:   channel,
		queueName: queueName,
	}, nil
}

// Enqueue publishes a task; delays are approximated with a timer
func (d *AMQPTaskDispatcher) Enqueue(ctx context.Context, task Task, delay time.Duration) error {
	payload, err := json.Marshal(task)
	if err != nil {
		return fmt.Errorf("failed to marshal task: %w", err)
	}

	publish := func() error {
		return d.channel.Publish("", d.queueName, false, false, amqp.Publishing{
			ContentType:  "application/json",
			DeliveryMode: amqp.Persistent,
			MessageId:    task.ID,
			Body:         payload,
		})
	}

	if delay <= 0 {
		return publish()
	}
	time.AfterFunc(delay, func() { _ = publish() })
	return nil
}

// Consume delivers tasks from the queue
func (d *AMQPTaskDispatcher) Consume(ctx context.Context) (<-chan Task, error) {
	deliveries, err := d.channel.Consume(d.queueName, "", true, false, false, false, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to consume queue: %w", err)
	}

	out := make(chan Task)
	go func() {
		defer close(out)
		for {
			select {
			case <-ctx.Done():
				return
			case delivery, ok := <-deliveries:
				if !ok {
					return
				}
				var task Task
				if err := json.Unmarshal(delivery.Body, &task); err != nil {
					continue
				}
				select {
				case out <- task:
				case <-ctx.Done():
					return
				}
			}
		}
	}()
	return out, nil
}

// Complete is a no-op for AMQP; deliveries are acked on receipt
func (d *AMQPTaskDispatcher) Complete(ctx context.Context, task Task) error {
	return nil
}

// Close tears down the channel and connection
func (d *AMQPTaskDispatcher) Close() error {
	if d.channel != nil {
		d.channel.Close()
	}
	if d.conn != nil {
		return d.conn.Close()
	}
	return nil
}

// ---------------------------------------------------------------------------
// In-memory implementation

// InMemoryTaskDispatcher is a single-process dispatcher for tests and local
// development
type InMemoryTaskDispatcher struct {
	mu       sync.Mutex
	pending  map[string]bool
	tasks    chan Task
	closed   bool
	Enqueued []Task
}

// NewInMemoryTaskDispatcher creates an in-memory dispatcher
func NewInMemoryTaskDispatcher(buffer int) *InMemoryTaskDispatcher {
	if buffer <= 0 {
		buffer = 1024
	}
	return &InMemoryTaskDispatcher{
		pending: make(map[string]bool),
		tasks:   make(chan Task, buffer),
	}
}

// Enqueue adds a task, dropping duplicate first enqueues
func (d *InMemoryTaskDispatcher) Enqueue(ctx context.Context, task Task, delay time.Duration) error {
	d.mu.Lock()
	if d.closed {
		d.mu.Unlock()
		return fmt.Errorf("dispatcher closed")
	}
	if task.Attempt == 0 {
		if d.pending[task.ID] {
			d.mu.Unlock()
			return nil
		}
		d.pending[task.ID] = true
	}
	d.Enqueued = append(d.Enqueued, task)
	d.mu.Unlock()

	deliver := func() {
		defer func() { recover() }() // tolerate Close during a delayed delivery
		d.tasks <- task
	}
	if delay <= 0 {
		deliver()
		return nil
	}
	time.AfterFunc(delay, deliver)
	return nil
}

// Consume returns the task channel
func (d *InMemoryTaskDispatcher) Consume(ctx context.Context) (<-chan Task, error) {
	return d.tasks, nil
}

// Complete releases the dedupe reservation
func (d *InMemoryTaskDispatcher) Complete(ctx context.Context, task Task) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	delete(d.pending, task.ID)
	return nil
}

// Close shuts the task channel
func (d *InMemoryTaskDispatcher) Close() error {
	d.mu.Lock()
	defer d.mu.Unlock()
	if !d.closed {
		d.closed = true
		close(d.tasks)
	}
	return nil
}
