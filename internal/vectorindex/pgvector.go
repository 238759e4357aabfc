package vectorindex

import (
	"context"

	"github.com/pgvector/pgvector-go"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/yoockh/scholarchat/internal/models"
)

// PGVector stores message embeddings in Postgres and ranks them by cosine similarity.
type PGVector struct {
	db *gorm.DB
}

func NewPGVector(db *gorm.DB) *PGVector {
	return &PGVector{db: db}
}

func (p *PGVector) Upsert(ctx context.Context, records []Record) error {
	if len(records) == 0 {
		return nil
	}

	rows := make([]models.MessageEmbedding, 0, len(records))
	for _, r := range records {
		rows = append(rows, models.MessageEmbedding{
			ID:             r.ID,
			ConversationID: r.Metadata.ConversationID,
			UserID:         r.Metadata.UserID,
			Role:           r.Metadata.Role,
			Content:        r.Metadata.Content,
			MessageIndex:   r.Metadata.MessageIndex,
			Timestamp:      r.Metadata.Timestamp,
			Model:          r.Metadata.Model,
			Embedding:      pgvector.NewVector(r.Vector),
		})
	}

	return p.db.WithContext(ctx).
		Clauses(clause.OnConflict{
			Columns:   []clause.Column{{Name: "id"}},
			UpdateAll: true,
		}).
		Create(&rows).Error
}

type scoredEmbedding struct {
	models.MessageEmbedding
	Score float64 `gorm:"column:score"`
}

func (p *PGVector) Query(ctx context.Context, vector []float32, topK int, filter Filter) ([]Match, error) {
	if topK < 1 {
		return nil, nil
	}
	v := pgvector.NewVector(vector)

	var rows []scoredEmbedding
	err := p.db.WithContext(ctx).
		Model(&models.MessageEmbedding{}).
		Select("message_embeddings.*, 1 - (embedding <=> ?) AS score", v).
		Where("user_id = ?", filter.UserID).
		Clauses(clause.OrderBy{Expression: clause.Expr{SQL: "embedding <=> ?", Vars: []any{v}}}).
		Limit(topK).
		Scan(&rows).Error
	if err != nil {
		return nil, err
	}

	out := make([]Match, 0, len(rows))
	for _, r := range rows {
		out = append(out, Match{
			ID:    r.ID,
			Score: r.Score,
			Metadata: Metadata{
				ConversationID: r.ConversationID,
				UserID:         r.UserID,
				Role:           r.Role,
				Content:        r.Content,
				MessageIndex:   r.MessageIndex,
				Timestamp:      r.Timestamp,
				Model:          r.Model,
			},
		})
	}
	return out, nil
}
