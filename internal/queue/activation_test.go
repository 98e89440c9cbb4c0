package queue

import (
	"context"
	"encoding/json"
	"testing"
	"time"

	"github.com/hibiken/asynq"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mysellum/marketplace-api/internal/events"
	"github.com/mysellum/marketplace-api/internal/store"
)

type stubEnqueuer struct {
	tasks []*asynq.Task
	err   error
}

func (s *stubEnqueuer) EnqueueContext(_ context.Context, task *asynq.Task, _ ...asynq.Option) (*asynq.TaskInfo, error) {
	if s.err != nil {
		return nil, s.err
	}
	s.tasks = append(s.tasks, task)
	return &asynq.TaskInfo{}, nil
}

func TestSchedulerEnqueuesActivationTopics(t *testing.T) {
	enq := &stubEnqueuer{}
	s := NewScheduler(enq, events.ActivationTopics(), zerolog.Nop())

	err := s.Notify(context.Background(), events.Event{
		Topic:   events.TopicProductCreated,
		StoreID: "store1",
	})
	require.NoError(t, err)
	require.Len(t, enq.tasks, 1)
	assert.Equal(t, TypeActivationEvaluate, enq.tasks[0].Type())

	var payload ActivationPayload
	require.NoError(t, json.Unmarshal(enq.tasks[0].Payload(), &payload))
	assert.Equal(t, "store1", payload.StoreID)
}

func TestSchedulerIgnoresOtherTopics(t *testing.T) {
	enq := &stubEnqueuer{}
	s := NewScheduler(enq, events.ActivationTopics(), zerolog.Nop())

	err := s.Notify(context.Background(), events.Event{
		Topic:   events.TopicOrderBodyBuilt,
		StoreID: "store1",
	})
	require.NoError(t, err)
	assert.Empty(t, enq.tasks)
}

func TestActivationHandlerRejectsEmptyStoreID(t *testing.T) {
	h := &ActivationHandler{}
	task := asynq.NewTask(TypeActivationEvaluate, []byte(`{}`))
	err := h.ProcessTask(context.Background(), task)
	require.Error(t, err)
}

type stubGuard struct {
	keys []string
}

func (g *stubGuard) WithLock(ctx context.Context, key string, _ time.Duration, fn func(context.Context) error) error {
	g.keys = append(g.keys, key)
	return fn(ctx)
}

type stubStores struct{ st store.Store }

func (s stubStores) Find(context.Context, string) (store.Store, error) { return s.st, nil }
func (s stubStores) UpdateActivation(context.Context, string, store.ActivationSteps, bool) error {
	return nil
}

type stubProducts struct{}

func (stubProducts) StoreHasProduct(context.Context, string) (bool, error) { return true, nil }

func TestActivationHandlerLocksPerStore(t *testing.T) {
	guard := &stubGuard{}
	h := &ActivationHandler{
		Evaluator: &store.Evaluator{Stores: stubStores{}, Products: stubProducts{}, Logger: zerolog.Nop()},
		Lock:      guard,
	}

	task, err := NewActivationTask("store1")
	require.NoError(t, err)
	require.NoError(t, h.ProcessTask(context.Background(), task))
	require.Equal(t, []string{"activation:lock:store1"}, guard.keys)
}
