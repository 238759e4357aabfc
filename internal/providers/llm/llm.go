package llm

import (
	"context"
	"strings"

	"github.com/yoockh/scholarchat/internal/models"
)

// Request is one completion: a system prompt plus the ordered message history.
// The last message is the one being answered.
type Request struct {
	System   string
	Messages []models.Message
	Model    string // overrides the provider default when set
}

type Provider interface {
	// StreamChat returns a stream of text chunks (incremental). chunks is closed when
	// the stream ends; errs carries at most one error and is closed after chunks.
	StreamChat(ctx context.Context, req Request) (chunks <-chan string, errs <-chan error)
	Close() error
}

// Collect drains a stream into the full response text.
func Collect(ctx context.Context, p Provider, req Request) (string, error) {
	chunks, errs := p.StreamChat(ctx, req)

	var b strings.Builder
	for c := range chunks {
		b.WriteString(c)
	}
	if err := <-errs; err != nil {
		return "", err
	}
	return b.String(), nil
}

// splitSystem moves system-role messages into the system prompt; chat APIs
// that take a separate system instruction reject them inline.
func splitSystem(req Request) (string, []models.Message) {
	system := req.System
	msgs := make([]models.Message, 0, len(req.Messages))
	for _, m := range req.Messages {
		if m.Role == models.RoleSystem {
			if system != "" {
				system += "\n\n"
			}
			system += m.Content
			continue
		}
		msgs = append(msgs, m)
	}
	return system, msgs
}
