package services

import (
	"context"
	"errors"
	"sort"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"
	"github.com/yoockh/scholarchat/internal/models"
	"github.com/yoockh/scholarchat/internal/providers/embedding"
	pgrepo "github.com/yoockh/scholarchat/internal/repositories/postgres"
	"github.com/yoockh/scholarchat/internal/utils"
	"github.com/yoockh/scholarchat/internal/vectorindex"
	"gorm.io/datatypes"
)

const (
	defaultHistoryLimit = 50
	defaultSearchTopK   = 10
	titleMaxChars       = 50
	untitled            = "New Conversation"

	// score assigned to keyword fallback hits, which carry no similarity
	textMatchScore = 0.8
)

type SaveInput struct {
	UserID         string
	ConversationID string // empty creates a new conversation
	Messages       []models.Message
	Model          string
}

type ConversationService interface {
	Save(ctx context.Context, in SaveInput) (*models.Conversation, error)
	History(ctx context.Context, userID string, limit int) ([]models.ConversationSummary, error)
	Get(ctx context.Context, conversationID, userID string) (*models.Conversation, error)
	Search(ctx context.Context, userID, query string, topK int) ([]models.ConversationMatch, error)
}

type conversationService struct {
	convos   pgrepo.ConversationRepo
	embedder embedding.Provider
	index    vectorindex.Index
	logger   logrus.FieldLogger
	now      func() time.Time
}

// NewConversationService wires the store. embedder and index may both be nil,
// in which case nothing is indexed and Search falls back to keyword matching.
func NewConversationService(convos pgrepo.ConversationRepo, embedder embedding.Provider, index vectorindex.Index, logger logrus.FieldLogger) ConversationService {
	if logger == nil {
		logger = logrus.StandardLogger()
	}
	return &conversationService{
		convos:   convos,
		embedder: embedder,
		index:    index,
		logger:   logger,
		now:      func() time.Time { return time.Now().UTC() },
	}
}

func (s *conversationService) semantic() bool {
	return s.embedder != nil && s.index != nil
}

func (s *conversationService) Save(ctx context.Context, in SaveInput) (*models.Conversation, error) {
	const op = "ConversationService.Save"

	if in.UserID == "" {
		return nil, utils.E(utils.CodeInvalidArgument, op, "user_id is required", nil)
	}
	if len(in.Messages) == 0 {
		return nil, utils.E(utils.CodeInvalidArgument, op, "messages are required", nil)
	}

	id := in.ConversationID
	if id == "" {
		id = uuid.NewString()
	}
	now := s.now()

	row := &models.Conversation{
		ID:        id,
		UserID:    in.UserID,
		Model:     in.Model,
		Title:     ConversationTitle(in.Messages),
		Messages:  datatypes.NewJSONSlice(in.Messages),
		CreatedAt: now,
		UpdatedAt: now,
	}

	saved, err := s.convos.Upsert(ctx, row)
	if errors.Is(err, utils.ErrNotFound) {
		// the id exists under another user
		return nil, utils.E(utils.CodeForbidden, op, "conversation belongs to another user", err)
	}
	if err != nil {
		return nil, utils.E(utils.CodeInternal, op, "failed to save conversation", err)
	}

	if s.semantic() {
		s.indexMessages(ctx, saved, now)
	}
	return saved, nil
}

// indexMessages embeds every message; failures are logged and never fail the save.
func (s *conversationService) indexMessages(ctx context.Context, c *models.Conversation, ts time.Time) {
	log := s.logger.WithFields(logrus.Fields{"conversation_id": c.ID, "user_id": c.UserID})

	records := make([]vectorindex.Record, 0, len(c.Messages))
	for i, m := range c.Messages {
		vec, err := s.embedder.Embed(ctx, string(m.Role)+": "+m.Content)
		if err != nil {
			log.WithError(err).WithField("message_index", i).Warn("failed to embed message; skipping")
			continue
		}
		records = append(records, vectorindex.Record{
			ID:     vectorindex.RecordID(c.ID, i),
			Vector: vec,
			Metadata: vectorindex.Metadata{
				ConversationID: c.ID,
				UserID:         c.UserID,
				Role:           m.Role,
				Content:        m.Content,
				MessageIndex:   i,
				Timestamp:      ts,
				Model:          c.Model,
			},
		})
	}
	if len(records) == 0 {
		return
	}
	if err := s.index.Upsert(ctx, records); err != nil {
		log.WithError(err).Error("failed to index conversation messages")
		return
	}
	log.WithField("indexed", len(records)).Debug("conversation indexed")
}

func (s *conversationService) History(ctx context.Context, userID string, limit int) ([]models.ConversationSummary, error) {
	const op = "ConversationService.History"

	if userID == "" {
		return nil, utils.E(utils.CodeInvalidArgument, op, "user_id is required", nil)
	}
	if limit <= 0 {
		limit = defaultHistoryLimit
	}

	rows, err := s.convos.ListByUser(ctx, userID, limit)
	if err != nil {
		return nil, utils.E(utils.CodeInternal, op, "failed to list conversations", err)
	}
	return rows, nil
}

func (s *conversationService) Get(ctx context.Context, conversationID, userID string) (*models.Conversation, error) {
	const op = "ConversationService.Get"

	if conversationID == "" || userID == "" {
		return nil, utils.E(utils.CodeInvalidArgument, op, "conversation id and user_id are required", nil)
	}

	row, err := s.convos.GetForUser(ctx, conversationID, userID)
	if err != nil {
		if errors.Is(err, utils.ErrNotFound) {
			return nil, utils.E(utils.CodeNotFound, op, "conversation not found", utils.ErrNotFound)
		}
		return nil, utils.E(utils.CodeInternal, op, "failed to load conversation", err)
	}
	return row, nil
}

func (s *conversationService) Search(ctx context.Context, userID, query string, topK int) ([]models.ConversationMatch, error) {
	const op = "ConversationService.Search"

	query = strings.TrimSpace(query)
	if userID == "" || query == "" {
		return nil, utils.E(utils.CodeInvalidArgument, op, "user_id and query are required", nil)
	}
	if topK <= 0 {
		topK = defaultSearchTopK
	}

	if !s.semantic() {
		return s.searchText(ctx, op, userID, query, topK)
	}

	vec, err := s.embedder.Embed(ctx, query)
	if err != nil {
		return nil, err
	}
	hits, err := s.index.Query(ctx, vec, topK, vectorindex.Filter{UserID: userID})
	if err != nil {
		return nil, utils.E(utils.CodeInternal, op, "vector query failed", err)
	}
	return GroupMatches(hits), nil
}

func (s *conversationService) searchText(ctx context.Context, op, userID, query string, limit int) ([]models.ConversationMatch, error) {
	rows, err := s.convos.SearchText(ctx, userID, query, limit)
	if err != nil {
		return nil, utils.E(utils.CodeInternal, op, "text search failed", err)
	}

	out := make([]models.ConversationMatch, 0, len(rows))
	for _, c := range rows {
		content := c.Title
		if len(c.Messages) > 0 {
			content = c.Messages[0].Content
		}
		out = append(out, models.ConversationMatch{
			ConversationID: c.ID,
			MaxScore:       textMatchScore,
			Matches: []models.MessageMatch{{
				Score:     textMatchScore,
				Role:      models.RoleUser,
				Content:   content,
				Timestamp: c.UpdatedAt,
			}},
		})
	}
	return out, nil
}

// GroupMatches folds message hits into one entry per conversation, ordered by
// best message score. Hits keep their relative order within a conversation.
func GroupMatches(hits []vectorindex.Match) []models.ConversationMatch {
	byID := make(map[string]int)
	var out []models.ConversationMatch
	for _, h := range hits {
		id := h.Metadata.ConversationID
		if id == "" {
			continue
		}
		i, ok := byID[id]
		if !ok {
			i = len(out)
			byID[id] = i
			out = append(out, models.ConversationMatch{ConversationID: id})
		}
		out[i].Matches = append(out[i].Matches, models.MessageMatch{
			Score:        h.Score,
			Role:         h.Metadata.Role,
			Content:      h.Metadata.Content,
			MessageIndex: h.Metadata.MessageIndex,
			Timestamp:    h.Metadata.Timestamp,
		})
		if h.Score > out[i].MaxScore || len(out[i].Matches) == 1 {
			out[i].MaxScore = h.Score
		}
	}
	sort.SliceStable(out, func(a, b int) bool { return out[a].MaxScore > out[b].MaxScore })
	return out
}

// ConversationTitle derives a title from the first user message.
func ConversationTitle(msgs []models.Message) string {
	for _, m := range msgs {
		if m.Role != models.RoleUser {
			continue
		}
		t := strings.TrimSpace(m.Content)
		if t == "" {
			break
		}
		return utils.Truncate(t, titleMaxChars)
	}
	return untitled
}
