package models

import (
	"time"

	"github.com/pgvector/pgvector-go"
)

// EmbeddingDimensions matches text-embedding-004; the column type below must agree.
const EmbeddingDimensions = 768

// MessageEmbedding is one indexed message. ID is "<conversation id>-msg-<index>".
type MessageEmbedding struct {
	ID             string          `gorm:"column:id;type:text;primaryKey" json:"id"`
	ConversationID string          `gorm:"column:conversation_id;type:text;index" json:"conversation_id"`
	UserID         string          `gorm:"column:user_id;type:text;index" json:"user_id"`
	Role           Role            `gorm:"column:role;type:text" json:"role"`
	Content        string          `gorm:"column:content;type:text" json:"content"`
	MessageIndex   int             `gorm:"column:message_index;type:integer" json:"message_index"`
	Timestamp      time.Time       `gorm:"column:timestamp;type:timestamptz" json:"timestamp"`
	Model          string          `gorm:"column:model;type:text" json:"model"`
	Embedding      pgvector.Vector `gorm:"column:embedding;type:vector(768)" json:"-"`
}

func (MessageEmbedding) TableName() string { return "message_embeddings" }
