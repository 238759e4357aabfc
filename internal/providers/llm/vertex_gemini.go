package llm

import (
	"context"
	"errors"

	vertexgenai "cloud.google.com/go/vertexai/genai"
	"google.golang.org/api/iterator"

	"github.com/yoockh/scholarchat/internal/models"
)

type VertexGemini struct {
	client       *vertexgenai.Client
	defaultModel string
}

func NewVertexGemini(ctx context.Context, projectID, location, modelName string) (*VertexGemini, error) {
	c, err := vertexgenai.NewClient(ctx, projectID, location)
	if err != nil {
		return nil, err
	}

	if modelName == "" {
		modelName = "gemini-2.0-flash-001"
	}
	return &VertexGemini{client: c, defaultModel: modelName}, nil
}

func (v *VertexGemini) Close() error { return v.client.Close() }

func (v *VertexGemini) StreamChat(ctx context.Context, req Request) (<-chan string, <-chan error) {
	out := make(chan string, 32)
	errs := make(chan error, 1)

	go func() {
		defer close(errs)
		defer close(out)

		system, msgs := splitSystem(req)
		if len(msgs) == 0 {
			errs <- errors.New("no messages to send")
			return
		}

		name := req.Model
		if name == "" {
			name = v.defaultModel
		}
		m := v.client.GenerativeModel(name)
		if system != "" {
			m.SystemInstruction = &vertexgenai.Content{Parts: []vertexgenai.Part{vertexgenai.Text(system)}}
		}

		cs := m.StartChat()
		for _, msg := range msgs[:len(msgs)-1] {
			cs.History = append(cs.History, &vertexgenai.Content{
				Role:  vertexRole(msg.Role),
				Parts: []vertexgenai.Part{vertexgenai.Text(msg.Content)},
			})
		}

		it := cs.SendMessageStream(ctx, vertexgenai.Text(msgs[len(msgs)-1].Content))
		for {
			resp, err := it.Next()
			if err == iterator.Done {
				return
			}
			if err != nil {
				errs <- err
				return
			}

			for _, cand := range resp.Candidates {
				if cand.Content == nil {
					continue
				}
				for _, part := range cand.Content.Parts {
					if t, ok := part.(vertexgenai.Text); ok && string(t) != "" {
						select {
						case out <- string(t):
						case <-ctx.Done():
							errs <- ctx.Err()
							return
						}
					}
				}
			}
		}
	}()

	return out, errs
}

func vertexRole(r models.Role) string {
	if r == models.RoleAssistant {
		return "model"
	}
	return "user"
}
