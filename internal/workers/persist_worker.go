package workers

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/sirupsen/logrus"
	"github.com/yoockh/scholarchat/internal/models"
	"github.com/yoockh/scholarchat/internal/services"
)

// PersistWorkerPool writes finished chat exchanges to the conversation store
// off the request path.
type PersistWorkerPool struct {
	Conversations services.ConversationService
	Runs          services.RunRecorder
	NumWorkers    int
	QueueSize     int
	SaveTimeout   time.Duration

	Logger *logrus.Logger

	mu     sync.RWMutex
	jobs   chan services.PersistJob
	closed bool
	wg     sync.WaitGroup
}

func (p *PersistWorkerPool) Start(ctx context.Context) error {
	if p.Conversations == nil {
		return errors.New("PersistWorkerPool missing dependency: Conversations must be set")
	}
	if p.Runs == nil {
		p.Runs = services.NopRunRecorder{}
	}
	if p.NumWorkers <= 0 {
		p.NumWorkers = 2
	}
	if p.QueueSize <= 0 {
		p.QueueSize = 64
	}
	if p.SaveTimeout <= 0 {
		p.SaveTimeout = 30 * time.Second
	}
	if p.Logger == nil {
		p.Logger = logrus.New()
	}

	p.mu.Lock()
	if p.jobs != nil {
		p.mu.Unlock()
		return errors.New("PersistWorkerPool already started")
	}
	p.jobs = make(chan services.PersistJob, p.QueueSize)
	p.mu.Unlock()

	for i := 0; i < p.NumWorkers; i++ {
		p.wg.Add(1)
		go p.runWorker(ctx, i+1)
	}
	return nil
}

// Enqueue never blocks. It returns false when the pool is stopped or the queue is full.
func (p *PersistWorkerPool) Enqueue(job services.PersistJob) bool {
	p.mu.RLock()
	defer p.mu.RUnlock()

	if p.jobs == nil || p.closed {
		return false
	}
	select {
	case p.jobs <- job:
		return true
	default:
		p.Logger.WithFields(logrus.Fields{
			"run_id":          job.RunID,
			"conversation_id": job.Input.ConversationID,
		}).Warn("persist queue full; dropping job")
		return false
	}
}

// Stop refuses new jobs and waits for queued ones to finish.
func (p *PersistWorkerPool) Stop() {
	p.mu.Lock()
	if p.jobs == nil || p.closed {
		p.mu.Unlock()
		return
	}
	p.closed = true
	close(p.jobs)
	p.mu.Unlock()

	p.wg.Wait()
}

func (p *PersistWorkerPool) runWorker(ctx context.Context, n int) {
	defer p.wg.Done()
	for {
		select {
		case <-ctx.Done():
			return
		case job, ok := <-p.jobs:
			if !ok {
				return
			}
			p.handle(job, n)
		}
	}
}

func (p *PersistWorkerPool) handle(job services.PersistJob, worker int) {
	log := p.Logger.WithFields(logrus.Fields{
		"worker":          worker,
		"run_id":          job.RunID,
		"conversation_id": job.Input.ConversationID,
		"user_id":         job.Input.UserID,
	})

	// saves outlive the request that produced them
	ctx, cancel := context.WithTimeout(context.Background(), p.SaveTimeout)
	defer cancel()

	start := time.Now()
	saved, err := p.Conversations.Save(ctx, job.Input)
	if err != nil {
		log.WithError(err).Error("failed to persist conversation")
		_ = p.Runs.SetStatus(ctx, job.RunID, models.RunPersistFailed, err.Error())
		return
	}

	log.WithFields(logrus.Fields{
		"messages":   len(saved.Messages),
		"elapsed_ms": time.Since(start).Milliseconds(),
	}).Info("conversation persisted")
	_ = p.Runs.SetStatus(ctx, job.RunID, models.RunPersisted, "")
}
