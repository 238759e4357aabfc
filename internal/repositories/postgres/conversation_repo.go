package postgres

import (
	"context"
	"errors"
	"strings"

	"github.com/yoockh/scholarchat/internal/models"
	"github.com/yoockh/scholarchat/internal/utils"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

type ConversationRepo interface {
	// Upsert inserts c, or replaces messages and updated_at of the row with the
	// same id owned by c.UserID. It returns the stored row.
	Upsert(ctx context.Context, c *models.Conversation) (*models.Conversation, error)
	ListByUser(ctx context.Context, userID string, limit int) ([]models.ConversationSummary, error)
	GetForUser(ctx context.Context, id, userID string) (*models.Conversation, error)
	SearchText(ctx context.Context, userID, query string, limit int) ([]models.Conversation, error)
}

type conversationRepo struct {
	db *gorm.DB
}

func NewConversationRepo(db *gorm.DB) ConversationRepo {
	return &conversationRepo{db: db}
}

func (r *conversationRepo) Upsert(ctx context.Context, c *models.Conversation) (*models.Conversation, error) {
	err := r.db.WithContext(ctx).
		Clauses(clause.OnConflict{
			Columns:   []clause.Column{{Name: "id"}},
			DoUpdates: clause.AssignmentColumns([]string{"messages", "updated_at"}),
			Where: clause.Where{Exprs: []clause.Expression{
				clause.Eq{Column: clause.Column{Table: "conversations", Name: "user_id"}, Value: c.UserID},
			}},
		}).
		Create(c).Error
	if err != nil {
		return nil, err
	}
	// a conflicting row owned by someone else is left untouched and is not visible here
	return r.GetForUser(ctx, c.ID, c.UserID)
}

func (r *conversationRepo) ListByUser(ctx context.Context, userID string, limit int) ([]models.ConversationSummary, error) {
	if limit <= 0 {
		limit = 50
	}

	var rows []models.ConversationSummary
	err := r.db.WithContext(ctx).
		Model(&models.Conversation{}).
		Select("id, title, model, created_at, updated_at").
		Where("user_id = ?", userID).
		Order("updated_at DESC").
		Limit(limit).
		Scan(&rows).Error
	return rows, err
}

func (r *conversationRepo) GetForUser(ctx context.Context, id, userID string) (*models.Conversation, error) {
	var row models.Conversation
	err := r.db.WithContext(ctx).
		Where("id = ? AND user_id = ?", id, userID).
		Take(&row).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, utils.ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return &row, nil
}

// SearchText is the keyword fallback used when no vector index is configured.
func (r *conversationRepo) SearchText(ctx context.Context, userID, query string, limit int) ([]models.Conversation, error) {
	if limit <= 0 {
		limit = 10
	}
	pattern := "%" + escapeLike(query) + "%"

	var rows []models.Conversation
	err := r.db.WithContext(ctx).
		Where("user_id = ?", userID).
		Where("(title ILIKE ? OR messages::text ILIKE ?)", pattern, pattern).
		Order("updated_at DESC").
		Limit(limit).
		Find(&rows).Error
	return rows, err
}

var likeEscaper = strings.NewReplacer(`\`, `\\`, `%`, `\%`, `_`, `\_`)

func escapeLike(s string) string { return likeEscaper.Replace(s) }
