package services

import (
	"context"
	"errors"
	"strings"
	"sync"

	"github.com/yoockh/scholarchat/internal/models"
	"github.com/yoockh/scholarchat/internal/providers/llm"
	"github.com/yoockh/scholarchat/internal/research"
	"github.com/yoockh/scholarchat/internal/utils"
)

// fakeConversationRepo is an in-memory ConversationRepo.
type fakeConversationRepo struct {
	mu        sync.Mutex
	rows      map[string]models.Conversation
	upsertErr error
}

func newFakeConversationRepo() *fakeConversationRepo {
	return &fakeConversationRepo{rows: map[string]models.Conversation{}}
}

func (f *fakeConversationRepo) Upsert(_ context.Context, c *models.Conversation) (*models.Conversation, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.upsertErr != nil {
		return nil, f.upsertErr
	}
	if cur, ok := f.rows[c.ID]; ok {
		if cur.UserID != c.UserID {
			return nil, utils.ErrNotFound
		}
		cur.Messages = c.Messages
		cur.UpdatedAt = c.UpdatedAt
		f.rows[c.ID] = cur
		out := cur
		return &out, nil
	}
	f.rows[c.ID] = *c
	out := *c
	return &out, nil
}

func (f *fakeConversationRepo) ListByUser(_ context.Context, userID string, limit int) ([]models.ConversationSummary, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []models.ConversationSummary
	for _, c := range f.rows {
		if c.UserID == userID {
			out = append(out, models.ConversationSummary{ID: c.ID, Title: c.Title, Model: c.Model, CreatedAt: c.CreatedAt, UpdatedAt: c.UpdatedAt})
		}
	}
	if len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

func (f *fakeConversationRepo) GetForUser(_ context.Context, id, userID string) (*models.Conversation, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	c, ok := f.rows[id]
	if !ok || c.UserID != userID {
		return nil, utils.ErrNotFound
	}
	return &c, nil
}

func (f *fakeConversationRepo) SearchText(_ context.Context, userID, query string, limit int) ([]models.Conversation, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	q := strings.ToLower(query)
	var out []models.Conversation
	for _, c := range f.rows {
		if c.UserID != userID {
			continue
		}
		hit := strings.Contains(strings.ToLower(c.Title), q)
		for _, m := range c.Messages {
			hit = hit || strings.Contains(strings.ToLower(m.Content), q)
		}
		if hit {
			out = append(out, c)
		}
	}
	if len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

// keywordEmbedder maps text onto a tiny bag-of-words space so similarity is predictable.
type keywordEmbedder struct {
	vocab []string
	fail  func(text string) bool
}

func (k keywordEmbedder) Embed(_ context.Context, text string) ([]float32, error) {
	if k.fail != nil && k.fail(text) {
		return nil, utils.E(utils.CodeEmbedding, "test", "embedding failed", utils.ErrEmbedding)
	}
	lower := strings.ToLower(text)
	vec := make([]float32, len(k.vocab)+1)
	vec[len(k.vocab)] = 0.01
	for i, w := range k.vocab {
		if strings.Contains(lower, w) {
			vec[i] = 1
		}
	}
	return vec, nil
}

// stubConversations is a scripted ConversationService for context tests.
type stubConversations struct {
	matches   []models.ConversationMatch
	searchErr error
	convs     map[string]*models.Conversation
	gets      []string
	searches  int
	searchK   int
}

func (s *stubConversations) Save(context.Context, SaveInput) (*models.Conversation, error) {
	return nil, errors.New("not implemented")
}

func (s *stubConversations) History(context.Context, string, int) ([]models.ConversationSummary, error) {
	return nil, nil
}

func (s *stubConversations) Get(_ context.Context, id, _ string) (*models.Conversation, error) {
	s.gets = append(s.gets, id)
	c, ok := s.convs[id]
	if !ok {
		return nil, utils.E(utils.CodeNotFound, "stub", "not found", utils.ErrNotFound)
	}
	return c, nil
}

func (s *stubConversations) Search(_ context.Context, _, _ string, topK int) ([]models.ConversationMatch, error) {
	s.searches++
	s.searchK = topK
	return s.matches, s.searchErr
}

// scriptedLLM streams fixed chunks, then err. With hold set it keeps the
// stream open until ctx ends.
type scriptedLLM struct {
	chunks []string
	err    error
	hold   bool

	mu   sync.Mutex
	reqs []llm.Request
}

func (s *scriptedLLM) StreamChat(ctx context.Context, req llm.Request) (<-chan string, <-chan error) {
	s.mu.Lock()
	s.reqs = append(s.reqs, req)
	s.mu.Unlock()

	out := make(chan string)
	errs := make(chan error, 1)
	go func() {
		defer close(errs)
		defer close(out)
		for _, c := range s.chunks {
			select {
			case out <- c:
			case <-ctx.Done():
				errs <- ctx.Err()
				return
			}
		}
		if s.hold {
			<-ctx.Done()
			errs <- ctx.Err()
			return
		}
		if s.err != nil {
			errs <- s.err
		}
	}()
	return out, errs
}

func (s *scriptedLLM) Close() error { return nil }

func (s *scriptedLLM) lastRequest() llm.Request {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.reqs[len(s.reqs)-1]
}

type recordingPersister struct {
	mu     sync.Mutex
	jobs   []PersistJob
	reject bool
	done   chan struct{}
}

func newRecordingPersister() *recordingPersister {
	return &recordingPersister{done: make(chan struct{}, 8)}
}

func (p *recordingPersister) Enqueue(job PersistJob) bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.reject {
		p.done <- struct{}{}
		return false
	}
	p.jobs = append(p.jobs, job)
	p.done <- struct{}{}
	return true
}

type statusUpdate struct {
	runID  string
	status models.RunStatus
}

type recordingRuns struct {
	mu       sync.Mutex
	created  []models.ChatRun
	statuses []statusUpdate
	finished chan struct{}
}

func newRecordingRuns() *recordingRuns {
	return &recordingRuns{finished: make(chan struct{}, 8)}
}

func (r *recordingRuns) Create(_ context.Context, run *models.ChatRun) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.created = append(r.created, *run)
	return nil
}

func (r *recordingRuns) Finish(_ context.Context, runID string, status models.RunStatus, _, _, _ int64, _ string) error {
	r.mu.Lock()
	r.statuses = append(r.statuses, statusUpdate{runID, status})
	r.mu.Unlock()
	r.finished <- struct{}{}
	return nil
}

func (r *recordingRuns) SetStatus(_ context.Context, runID string, status models.RunStatus, _ string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.statuses = append(r.statuses, statusUpdate{runID, status})
	return nil
}

func (r *recordingRuns) snapshot() []statusUpdate {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]statusUpdate(nil), r.statuses...)
}

type fixedAugmenter struct {
	result research.Result
	got    []research.Request
	mu     sync.Mutex
}

func (f *fixedAugmenter) Augment(_ context.Context, req research.Request) research.Result {
	f.mu.Lock()
	f.got = append(f.got, req)
	f.mu.Unlock()
	return f.result
}

type fixedContext struct {
	bundle *models.ContextBundle
}

func (f fixedContext) GetContext(context.Context, []models.Message, string, string) *models.ContextBundle {
	return f.bundle
}
