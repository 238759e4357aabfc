package models

import (
	"time"

	"go.mongodb.org/mongo-driver/bson/primitive"
)

type RunStatus string

const (
	RunStreaming     RunStatus = "streaming"
	RunDone          RunStatus = "done"
	RunFailed        RunStatus = "failed"
	RunPersisted     RunStatus = "persisted"
	RunPersistFailed RunStatus = "persist_failed"
)

// ChatRun is the audit record of a single chat exchange.
type ChatRun struct {
	ID             primitive.ObjectID `bson:"_id,omitempty" json:"id"`
	RunID          string             `bson:"run_id" json:"run_id"`
	UserID         string             `bson:"user_id" json:"user_id"`
	ConversationID string             `bson:"conversation_id" json:"conversation_id"`
	Model          string             `bson:"model" json:"model"`

	ResearchUsed           bool     `bson:"research_used" json:"research_used"`
	PaperIDs               []string `bson:"paper_ids,omitempty" json:"paper_ids,omitempty"`
	ContextConversationIDs []string `bson:"context_conversation_ids,omitempty" json:"context_conversation_ids,omitempty"`
	ContextTokens          int      `bson:"context_tokens" json:"context_tokens"`

	Status        RunStatus `bson:"status" json:"status"`
	ChunkCount    int64     `bson:"chunk_count" json:"chunk_count"`
	ResponseChars int64     `bson:"response_chars" json:"response_chars"`
	LatencyMS     int64     `bson:"latency_ms,omitempty" json:"latency_ms,omitempty"`
	Error         string    `bson:"error,omitempty" json:"error,omitempty"`

	CreatedAt time.Time `bson:"created_at" json:"created_at"`
	UpdatedAt time.Time `bson:"updated_at" json:"updated_at"`
	ExpiresAt time.Time `bson:"expires_at" json:"expires_at"` // for TTL index
}
