package vectorindex

import (
	"context"
	"strconv"
	"time"

	"github.com/yoockh/scholarchat/internal/models"
)

// Metadata mirrors the stored message alongside its vector.
type Metadata struct {
	ConversationID string
	UserID         string
	Role           models.Role
	Content        string
	MessageIndex   int
	Timestamp      time.Time
	Model          string
}

type Record struct {
	ID       string
	Vector   []float32
	Metadata Metadata
}

type Match struct {
	ID       string
	Score    float64
	Metadata Metadata
}

// Filter narrows a query. UserID is required.
type Filter struct {
	UserID string
}

// Index is a nearest-neighbour store over message embeddings.
// Upsert replaces records with the same ID wholesale.
type Index interface {
	Upsert(ctx context.Context, records []Record) error
	Query(ctx context.Context, vector []float32, topK int, filter Filter) ([]Match, error)
}

// RecordID is the index key of the i-th message of a conversation.
func RecordID(conversationID string, messageIndex int) string {
	return conversationID + "-msg-" + strconv.Itoa(messageIndex)
}
