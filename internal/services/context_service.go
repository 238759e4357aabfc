package services

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"unicode/utf16"

	"github.com/sirupsen/logrus"
	"github.com/yoockh/scholarchat/internal/models"
	"github.com/yoockh/scholarchat/internal/utils"
)

const (
	DefaultContextTokens     = 1500
	defaultContextCandidates = 5
	defaultContextMaxConvos  = 3

	contextTailMessages = 4
	contextMessageChars = 200
	charsPerToken       = 4
)

type ContextOptions struct {
	MaxTokens        int
	Candidates       int // conversations requested from search
	MaxConversations int // transcripts considered for the bundle
}

type ContextService interface {
	// GetContext returns nil when no past conversation fits.
	GetContext(ctx context.Context, current []models.Message, userID, currentConversationID string) *models.ContextBundle
}

type contextService struct {
	convos ConversationService
	opts   ContextOptions
	logger logrus.FieldLogger
}

func NewContextService(convos ConversationService, opts ContextOptions, logger logrus.FieldLogger) ContextService {
	if opts.MaxTokens <= 0 {
		opts.MaxTokens = DefaultContextTokens
	}
	if opts.Candidates <= 0 {
		opts.Candidates = defaultContextCandidates
	}
	if opts.MaxConversations <= 0 {
		opts.MaxConversations = defaultContextMaxConvos
	}
	if logger == nil {
		logger = logrus.StandardLogger()
	}
	return &contextService{convos: convos, opts: opts, logger: logger}
}

func (s *contextService) GetContext(ctx context.Context, current []models.Message, userID, currentConversationID string) *models.ContextBundle {
	last, ok := models.LastUserMessage(current)
	if !ok || strings.TrimSpace(last.Content) == "" || userID == "" {
		return nil
	}
	log := s.logger.WithFields(logrus.Fields{"user_id": userID, "conversation_id": currentConversationID})

	matches, err := s.convos.Search(ctx, userID, last.Content, s.opts.Candidates)
	if err != nil {
		log.WithError(err).Warn("context search failed; continuing without history")
		return nil
	}

	candidates := make([]models.ConversationMatch, 0, len(matches))
	for _, m := range matches {
		if m.ConversationID == currentConversationID {
			continue
		}
		candidates = append(candidates, m)
	}
	if len(candidates) > s.opts.MaxConversations {
		candidates = candidates[:s.opts.MaxConversations]
	}

	bundle := &models.ContextBundle{}
	for _, m := range candidates {
		conv, err := s.convos.Get(ctx, m.ConversationID, userID)
		if err != nil {
			log.WithError(err).WithField("candidate_id", m.ConversationID).Warn("context transcript unavailable")
			continue
		}
		msgs := []models.Message(conv.Messages)
		cost := EstimateTokens(msgs)
		if bundle.TotalTokens+cost > s.opts.MaxTokens {
			break
		}
		bundle.TotalTokens += cost
		bundle.Conversations = append(bundle.Conversations, models.ContextConversation{
			ConversationID: conv.ID,
			Title:          conv.Title,
			Messages:       msgs,
			RelevanceScore: m.MaxScore,
			Timestamp:      conv.UpdatedAt,
		})
	}

	if bundle.Empty() {
		return nil
	}
	log.WithFields(logrus.Fields{
		"conversations": len(bundle.Conversations),
		"tokens":        bundle.TotalTokens,
	}).Debug("context bundle built")
	return bundle
}

// EstimateTokens approximates prompt cost as a quarter of the serialized length, rounded up.
// Length is measured in UTF-16 code units.
func EstimateTokens(msgs []models.Message) int {
	var buf bytes.Buffer
	enc := json.NewEncoder(&buf)
	enc.SetEscapeHTML(false)
	if msgs == nil {
		msgs = []models.Message{}
	}
	if err := enc.Encode(msgs); err != nil {
		return 0
	}
	// length in UTF-16 code units, so characters outside the BMP count twice
	n := 0
	for _, r := range string(bytes.TrimRight(buf.Bytes(), "\n")) {
		n += utf16.RuneLen(r)
	}
	return (n + charsPerToken - 1) / charsPerToken
}

// FormatContextForPrompt renders a bundle as a system prompt section. A nil or
// empty bundle renders as "".
func FormatContextForPrompt(b *models.ContextBundle) string {
	if b.Empty() {
		return ""
	}

	var sb strings.Builder
	sb.WriteString("Relevant context from the user's previous conversations:\n")
	for i, c := range b.Conversations {
		title := c.Title
		if title == "" {
			title = untitled
		}
		fmt.Fprintf(&sb, "\n--- Conversation %d: %s (relevance: %.2f, %s) ---\n",
			i+1, title, c.RelevanceScore, c.Timestamp.UTC().Format("Jan 2, 2006"))

		for _, m := range tail(dialogue(c.Messages), contextTailMessages) {
			fmt.Fprintf(&sb, "%s: %s\n", speaker(m.Role), utils.Truncate(m.Content, contextMessageChars))
		}
	}
	sb.WriteString("\nUse this context to inform your answer where it is relevant. ")
	sb.WriteString("Do not mention that you are drawing on previous conversations unless the user asks.")
	return sb.String()
}

func dialogue(msgs []models.Message) []models.Message {
	out := make([]models.Message, 0, len(msgs))
	for _, m := range msgs {
		if m.Role == models.RoleUser || m.Role == models.RoleAssistant {
			out = append(out, m)
		}
	}
	return out
}

func tail(msgs []models.Message, n int) []models.Message {
	if len(msgs) <= n {
		return msgs
	}
	return msgs[len(msgs)-n:]
}

func speaker(r models.Role) string {
	if r == models.RoleAssistant {
		return "Assistant"
	}
	return "User"
}
