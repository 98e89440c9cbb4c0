package queue

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/hibiken/asynq"
	"github.com/rs/zerolog"

	"github.com/mysellum/marketplace-api/internal/events"
	"github.com/mysellum/marketplace-api/internal/store"
)

// TypeActivationEvaluate is the asynq task type for store activation
// re-evaluation.
const TypeActivationEvaluate = "activation:evaluate"

// QueueActivation is the asynq queue activation tasks run on.
const QueueActivation = "activation"

// ActivationPayload is the task payload.
type ActivationPayload struct {
	StoreID string `json:"storeId"`
}

// NewActivationTask builds an activation task for the store.
func NewActivationTask(storeID string) (*asynq.Task, error) {
	payload, err := json.Marshal(ActivationPayload{StoreID: storeID})
	if err != nil {
		return nil, fmt.Errorf("queue: marshal activation payload: %w", err)
	}
	return asynq.NewTask(TypeActivationEvaluate, payload), nil
}

// Enqueuer is the slice of asynq.Client the scheduler uses.
type Enqueuer interface {
	EnqueueContext(ctx context.Context, task *asynq.Task, opts ...asynq.Option) (*asynq.TaskInfo, error)
}

// Scheduler is an event notifier that turns activation-relevant domain
// events into queued re-evaluation tasks. Tasks are deduplicated per store
// for a short window since bursts of mutations need only one evaluation.
type Scheduler struct {
	Client Enqueuer
	Topics map[string]struct{}
	Logger zerolog.Logger
}

// NewScheduler builds a scheduler reacting to the given topics.
func NewScheduler(client Enqueuer, topics []string, logger zerolog.Logger) *Scheduler {
	set := make(map[string]struct{}, len(topics))
	for _, t := range topics {
		set[t] = struct{}{}
	}
	return &Scheduler{Client: client, Topics: set, Logger: logger}
}

// Notify enqueues an activation task when the event's topic requires one.
func (s *Scheduler) Notify(ctx context.Context, ev events.Event) error {
	if _, ok := s.Topics[ev.Topic]; !ok {
		return nil
	}
	task, err := NewActivationTask(ev.StoreID)
	if err != nil {
		return err
	}
	_, err = s.Client.EnqueueContext(ctx, task,
		asynq.Queue(QueueActivation),
		asynq.MaxRetry(5),
		asynq.Unique(30*time.Second),
	)
	if err != nil {
		return fmt.Errorf("queue: enqueue activation for store %s: %w", ev.StoreID, err)
	}
	s.Logger.Debug().Str("store_id", ev.StoreID).Str("topic", ev.Topic).Msg("activation evaluation queued")
	return nil
}

// Guard serialises work holding a distributed lock, matching lock.Locker.
type Guard interface {
	WithLock(ctx context.Context, key string, ttl time.Duration, fn func(context.Context) error) error
}

// ActivationHandler processes activation tasks by running the evaluator.
// When Lock is set, evaluations for the same store are serialised across
// worker instances.
type ActivationHandler struct {
	Evaluator *store.Evaluator
	Lock      Guard
}

// ProcessTask implements asynq.Handler.
func (h *ActivationHandler) ProcessTask(ctx context.Context, t *asynq.Task) error {
	var payload ActivationPayload
	if err := json.Unmarshal(t.Payload(), &payload); err != nil {
		return fmt.Errorf("queue: decode activation payload: %w", err)
	}
	if payload.StoreID == "" {
		return fmt.Errorf("queue: activation payload missing store id")
	}
	run := func(ctx context.Context) error {
		return h.Evaluator.Evaluate(ctx, payload.StoreID)
	}
	if h.Lock == nil {
		return run(ctx)
	}
	return h.Lock.WithLock(ctx, "activation:lock:"+payload.StoreID, 30*time.Second, run)
}
