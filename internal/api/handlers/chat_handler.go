package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/yoockh/scholarchat/internal/api/middleware"
	"github.com/yoockh/scholarchat/internal/models"
	"github.com/yoockh/scholarchat/internal/research"
	"github.com/yoockh/scholarchat/internal/services"
	"github.com/yoockh/scholarchat/internal/utils"
)

type ChatHandler struct {
	svc services.ChatService
}

func NewChatHandler(svc services.ChatService) *ChatHandler {
	return &ChatHandler{svc: svc}
}

type ChatRequest struct {
	Messages       []models.Message `json:"messages" binding:"required"`
	Model          string           `json:"model"`
	ConversationID string           `json:"conversation_id"`
	UseResearch    bool             `json:"use_research"`
	NumPapers      int              `json:"num_papers"`
}

func (r ChatRequest) input(userID string) services.ChatInput {
	return services.ChatInput{
		UserID:         userID,
		ConversationID: r.ConversationID,
		Messages:       r.Messages,
		Model:          r.Model,
		UseResearch:    r.UseResearch,
		NumPapers:      r.NumPapers,
	}
}

// SourceEvent describes one paper the reply may cite as [Index].
type SourceEvent struct {
	Index         int     `json:"index"`
	PaperID       string  `json:"paper_id"`
	Title         string  `json:"title"`
	Authors       string  `json:"authors"`
	Year          *int    `json:"year,omitempty"`
	CitationCount int     `json:"citation_count"`
	URL           *string `json:"url,omitempty"`
	Citation      string  `json:"citation"`
}

func sourceEvents(papers []models.ResearchPaper) []SourceEvent {
	out := make([]SourceEvent, 0, len(papers))
	for i, p := range papers {
		out = append(out, SourceEvent{
			Index:         i + 1,
			PaperID:       p.PaperID,
			Title:         p.Title,
			Authors:       research.FormatAuthors(p.Authors, 3),
			Year:          p.Year,
			CitationCount: p.CitationCount,
			URL:           p.URL,
			Citation:      research.APACitation(p),
		})
	}
	return out
}

// Stream answers POST /api/chat as server-sent events:
// meta, source (one per paper), text (repeated), then done or error.
func (h *ChatHandler) Stream(c *gin.Context) {
	userID, ok := requireUserID(c)
	if !ok {
		return
	}

	var req ChatRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		writeError(c, utils.E(utils.CodeInvalidArgument, "ChatHandler.Stream", "invalid request body", err))
		return
	}

	stream, err := h.svc.Chat(c.Request.Context(), req.input(userID))
	if err != nil {
		writeError(c, err)
		return
	}
	c.Set(middleware.ConversationIDKey, stream.ConversationID)
	c.Set(middleware.RunIDKey, stream.RunID)

	c.Header("Content-Type", "text/event-stream")
	c.Header("Cache-Control", "no-cache")
	c.Header("Connection", "keep-alive")
	c.Header("X-Accel-Buffering", "no")
	c.Status(http.StatusOK)

	c.SSEvent("meta", gin.H{"conversation_id": stream.ConversationID, "run_id": stream.RunID})
	for _, s := range sourceEvents(stream.Papers) {
		c.SSEvent("source", s)
	}
	c.Writer.Flush()

	ctx := c.Request.Context()
	for {
		select {
		case <-ctx.Done():
			return
		case chunk, ok := <-stream.Chunks:
			if ok {
				c.SSEvent("text", gin.H{"text": chunk})
				c.Writer.Flush()
				continue
			}
			if err := <-stream.Errs; err != nil {
				c.SSEvent("error", errorBody(err))
			} else {
				c.SSEvent("done", gin.H{"conversation_id": stream.ConversationID})
			}
			c.Writer.Flush()
			return
		}
	}
}
