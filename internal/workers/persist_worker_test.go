package workers

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/yoockh/scholarchat/internal/logger"
	"github.com/yoockh/scholarchat/internal/models"
	"github.com/yoockh/scholarchat/internal/services"
)

type fakeConversations struct {
	services.ConversationService

	mu    sync.Mutex
	saved []services.SaveInput
	err   error
	gate  chan struct{}
}

func (f *fakeConversations) Save(ctx context.Context, in services.SaveInput) (*models.Conversation, error) {
	if f.gate != nil {
		<-f.gate
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.err != nil {
		return nil, f.err
	}
	f.saved = append(f.saved, in)
	return &models.Conversation{ID: in.ConversationID, Messages: in.Messages}, nil
}

func (f *fakeConversations) count() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.saved)
}

type fakeRuns struct {
	services.NopRunRecorder

	mu       sync.Mutex
	statuses map[string]models.RunStatus
}

func (f *fakeRuns) SetStatus(_ context.Context, runID string, status models.RunStatus, _ string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.statuses == nil {
		f.statuses = map[string]models.RunStatus{}
	}
	f.statuses[runID] = status
	return nil
}

func (f *fakeRuns) status(runID string) models.RunStatus {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.statuses[runID]
}

func job(id string) services.PersistJob {
	return services.PersistJob{
		RunID: "run-" + id,
		Input: services.SaveInput{
			UserID:         "u1",
			ConversationID: id,
			Messages:       []models.Message{{Role: models.RoleUser, Content: "hi"}},
		},
	}
}

func TestPersistWorkerPool_SavesAndRecords(t *testing.T) {
	convs := &fakeConversations{}
	runs := &fakeRuns{}
	p := &PersistWorkerPool{Conversations: convs, Runs: runs, NumWorkers: 2, Logger: logger.Discard()}
	require.NoError(t, p.Start(context.Background()))

	assert.True(t, p.Enqueue(job("a")))
	assert.True(t, p.Enqueue(job("b")))
	p.Stop()

	assert.Equal(t, 2, convs.count())
	assert.Equal(t, models.RunPersisted, runs.status("run-a"))
	assert.Equal(t, models.RunPersisted, runs.status("run-b"))
}

func TestPersistWorkerPool_SaveFailureIsRecorded(t *testing.T) {
	convs := &fakeConversations{err: errors.New("db down")}
	runs := &fakeRuns{}
	p := &PersistWorkerPool{Conversations: convs, Runs: runs, NumWorkers: 1, Logger: logger.Discard()}
	require.NoError(t, p.Start(context.Background()))

	require.True(t, p.Enqueue(job("a")))
	p.Stop()

	assert.Equal(t, models.RunPersistFailed, runs.status("run-a"))
}

func TestPersistWorkerPool_FullQueueDropsWithoutBlocking(t *testing.T) {
	convs := &fakeConversations{gate: make(chan struct{})}
	p := &PersistWorkerPool{Conversations: convs, NumWorkers: 1, QueueSize: 1, Logger: logger.Discard()}
	require.NoError(t, p.Start(context.Background()))

	require.True(t, p.Enqueue(job("busy")))
	// wait until the worker holds "busy" so the queue slot is free again
	assert.Eventually(t, func() bool { return p.Enqueue(job("queued")) }, time.Second, 5*time.Millisecond)

	done := make(chan bool)
	go func() { done <- p.Enqueue(job("dropped")) }()
	select {
	case ok := <-done:
		assert.False(t, ok)
	case <-time.After(time.Second):
		t.Fatal("Enqueue blocked")
	}

	close(convs.gate)
	p.Stop()
	assert.Equal(t, 2, convs.count())
}

func TestPersistWorkerPool_Lifecycle(t *testing.T) {
	p := &PersistWorkerPool{Logger: logger.Discard()}
	assert.Error(t, p.Start(context.Background()))
	assert.False(t, p.Enqueue(job("x")))

	p = &PersistWorkerPool{Conversations: &fakeConversations{}, Logger: logger.Discard()}
	require.NoError(t, p.Start(context.Background()))
	assert.Error(t, p.Start(context.Background()))

	p.Stop()
	p.Stop()
	assert.False(t, p.Enqueue(job("late")))
}
