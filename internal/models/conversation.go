package models

import (
	"time"

	"gorm.io/datatypes"
)

type Conversation struct {
	ID        string                       `gorm:"column:id;type:text;primaryKey" json:"id"`
	UserID    string                       `gorm:"column:user_id;type:text;index" json:"user_id"`
	Model     string                       `gorm:"column:model;type:text" json:"model"`
	Title     string                       `gorm:"column:title;type:text" json:"title"`
	Messages  datatypes.JSONSlice[Message] `gorm:"column:messages;type:jsonb" json:"messages"`
	CreatedAt time.Time                    `gorm:"column:created_at;type:timestamptz" json:"created_at"`
	UpdatedAt time.Time                    `gorm:"column:updated_at;type:timestamptz;index" json:"updated_at"`
}

func (Conversation) TableName() string { return "conversations" }

// ConversationSummary is the sidebar projection of a Conversation.
type ConversationSummary struct {
	ID        string    `json:"id"`
	Title     string    `json:"title"`
	Model     string    `json:"model"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// MessageMatch is one stored message hit from a semantic search.
type MessageMatch struct {
	Score        float64   `json:"score"`
	Role         Role      `json:"role"`
	Content      string    `json:"content"`
	MessageIndex int       `json:"message_index"`
	Timestamp    time.Time `json:"timestamp"`
}

// ConversationMatch groups message hits by conversation.
type ConversationMatch struct {
	ConversationID string         `json:"conversation_id"`
	Matches        []MessageMatch `json:"matches"`
	MaxScore       float64        `json:"max_score"`
}
