package services

import (
	"context"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"
	"github.com/yoockh/scholarchat/internal/models"
	"github.com/yoockh/scholarchat/internal/providers/llm"
	"github.com/yoockh/scholarchat/internal/research"
	"github.com/yoockh/scholarchat/internal/utils"
	"golang.org/x/sync/errgroup"
)

const auditTimeout = 5 * time.Second

// Augmenter selects research papers for a message.
type Augmenter interface {
	Augment(ctx context.Context, req research.Request) research.Result
}

// PersistJob is a completed exchange waiting to be written to the conversation store.
type PersistJob struct {
	RunID string
	Input SaveInput
}

// Persister accepts save jobs without blocking. Enqueue reports false when the job was dropped.
type Persister interface {
	Enqueue(job PersistJob) bool
}

type ChatInput struct {
	UserID         string
	ConversationID string // empty starts a new conversation
	Messages       []models.Message
	Model          string
	UseResearch    bool
	NumPapers      int
}

// ChatStream is a live reply. Chunks is closed when the reply ends; Errs then
// carries at most one error and is closed.
type ChatStream struct {
	ConversationID string
	RunID          string
	Papers         []models.ResearchPaper
	Chunks         <-chan string
	Errs           <-chan error
}

type ChatService interface {
	Chat(ctx context.Context, in ChatInput) (*ChatStream, error)
}

type ChatDeps struct {
	LLM          llm.Provider
	Context      ContextService
	Research     Augmenter
	Persist      Persister
	Runs         RunRecorder
	SystemPrompt string
	DefaultModel string
	Logger       logrus.FieldLogger
}

type chatService struct {
	ChatDeps
}

func NewChatService(d ChatDeps) ChatService {
	if d.Runs == nil {
		d.Runs = NopRunRecorder{}
	}
	if d.Logger == nil {
		d.Logger = logrus.StandardLogger()
	}
	return &chatService{ChatDeps: d}
}

func (s *chatService) Chat(ctx context.Context, in ChatInput) (*ChatStream, error) {
	const op = "ChatService.Chat"

	if in.UserID == "" {
		return nil, utils.E(utils.CodeUnauthorized, op, "unauthorized", nil)
	}
	if len(in.Messages) == 0 {
		return nil, utils.E(utils.CodeInvalidArgument, op, "messages are required", nil)
	}
	for _, m := range in.Messages {
		if !m.Role.Valid() {
			return nil, utils.E(utils.CodeInvalidArgument, op, "invalid message role: "+string(m.Role), nil)
		}
	}
	last, ok := models.LastUserMessage(in.Messages)
	if !ok || strings.TrimSpace(last.Content) == "" {
		return nil, utils.E(utils.CodeInvalidArgument, op, "a user message is required", nil)
	}

	convID := in.ConversationID
	if convID == "" {
		convID = uuid.NewString()
	}
	model := in.Model
	if model == "" {
		model = s.DefaultModel
	}
	runID := uuid.NewString()
	log := s.Logger.WithFields(logrus.Fields{
		"run_id":          runID,
		"user_id":         in.UserID,
		"conversation_id": convID,
	})

	var (
		bundle *models.ContextBundle
		papers research.Result
	)
	g, gctx := errgroup.WithContext(ctx)
	if s.Context != nil {
		g.Go(func() error {
			bundle = s.Context.GetContext(gctx, in.Messages, in.UserID, in.ConversationID)
			return nil
		})
	}
	if s.Research != nil {
		g.Go(func() error {
			papers = s.Research.Augment(gctx, research.Request{
				Query:     last.Content,
				Force:     in.UseResearch,
				NumPapers: in.NumPapers,
			})
			return nil
		})
	}
	_ = g.Wait()

	system := BuildSystemPrompt(s.SystemPrompt, research.PromptBlock(papers), FormatContextForPrompt(bundle))

	run := &models.ChatRun{
		RunID:          runID,
		UserID:         in.UserID,
		ConversationID: convID,
		Model:          model,
		ResearchUsed:   papers.Used(),
		Status:         models.RunStreaming,
	}
	for _, p := range papers.Papers {
		run.PaperIDs = append(run.PaperIDs, p.PaperID)
	}
	if bundle != nil {
		run.ContextTokens = bundle.TotalTokens
		for _, c := range bundle.Conversations {
			run.ContextConversationIDs = append(run.ContextConversationIDs, c.ConversationID)
		}
	}
	if err := s.Runs.Create(ctx, run); err != nil {
		log.WithError(err).Warn("failed to record chat run")
	}

	log.WithFields(logrus.Fields{
		"research_papers":  len(papers.Papers),
		"context_convos":   len(run.ContextConversationIDs),
		"history_messages": len(in.Messages),
	}).Info("chat stream starting")

	chunks, errs := s.LLM.StreamChat(ctx, llm.Request{
		System:   system,
		Messages: in.Messages,
		Model:    model,
	})

	out := make(chan string, 32)
	outErr := make(chan error, 1)
	go s.relay(ctx, log, chunks, errs, out, outErr, PersistJob{
		RunID: runID,
		Input: SaveInput{
			UserID:         in.UserID,
			ConversationID: convID,
			Messages:       in.Messages,
			Model:          model,
		},
	})

	return &ChatStream{
		ConversationID: convID,
		RunID:          runID,
		Papers:         papers.Papers,
		Chunks:         out,
		Errs:           outErr,
	}, nil
}

// relay forwards the provider stream to the caller and, once it completes,
// hands the full exchange to the persister. A cancelled or failed stream is not persisted.
func (s *chatService) relay(ctx context.Context, log logrus.FieldLogger, chunks <-chan string, errs <-chan error, out chan<- string, outErr chan<- error, job PersistJob) {
	defer close(outErr)
	start := time.Now()

	var (
		full     strings.Builder
		count    int64
		detached bool
	)
	for c := range chunks {
		full.WriteString(c)
		count++
		if detached {
			continue
		}
		select {
		case out <- c:
		case <-ctx.Done():
			detached = true
		}
	}
	close(out)
	streamErr := <-errs

	auditCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), auditTimeout)
	defer cancel()
	latency := time.Since(start).Milliseconds()
	chars := int64(len([]rune(full.String())))

	switch {
	case ctx.Err() != nil:
		log.WithError(ctx.Err()).Warn("client went away; reply not persisted")
		_ = s.Runs.Finish(auditCtx, job.RunID, models.RunFailed, count, chars, latency, ctx.Err().Error())
		return
	case streamErr != nil:
		log.WithError(streamErr).Error("llm stream failed")
		_ = s.Runs.Finish(auditCtx, job.RunID, models.RunFailed, count, chars, latency, streamErr.Error())
		outErr <- utils.E(utils.CodeExternalService, "ChatService.Chat", "the model failed to respond", streamErr)
		return
	}

	if err := s.Runs.Finish(auditCtx, job.RunID, models.RunDone, count, chars, latency, ""); err != nil {
		log.WithError(err).Warn("failed to update chat run")
	}

	msgs := make([]models.Message, 0, len(job.Input.Messages)+1)
	msgs = append(msgs, job.Input.Messages...)
	msgs = append(msgs, models.Message{Role: models.RoleAssistant, Content: full.String()})
	job.Input.Messages = msgs

	if s.Persist == nil || !s.Persist.Enqueue(job) {
		log.Error("persist queue unavailable; conversation not saved")
		_ = s.Runs.SetStatus(auditCtx, job.RunID, models.RunPersistFailed, "persist queue full")
	}
}

// BuildSystemPrompt joins the base instructions with the optional research and history sections.
func BuildSystemPrompt(base, researchBlock, contextBlock string) string {
	parts := []string{strings.TrimSpace(base)}
	if researchBlock != "" {
		parts = append(parts, researchBlock)
	}
	if contextBlock != "" {
		parts = append(parts, contextBlock)
	}
	return strings.Join(parts, "\n\n")
}
