package models

import "time"

// ContextConversation is one past conversation selected for the prompt.
type ContextConversation struct {
	ConversationID string    `json:"conversation_id"`
	Title          string    `json:"title"`
	Messages       []Message `json:"messages"`
	RelevanceScore float64   `json:"relevance_score"`
	Timestamp      time.Time `json:"timestamp"`
}

// ContextBundle holds past conversations ordered by relevance, descending.
// TotalTokens never exceeds the budget the bundle was built under.
type ContextBundle struct {
	Conversations []ContextConversation `json:"conversations"`
	TotalTokens   int                   `json:"total_tokens"`
}

func (b *ContextBundle) Empty() bool {
	return b == nil || len(b.Conversations) == 0
}
