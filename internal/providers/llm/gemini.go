package llm

import (
	"context"
	"errors"

	"github.com/google/generative-ai-go/genai"
	"google.golang.org/api/iterator"
	"google.golang.org/api/option"

	"github.com/yoockh/scholarchat/internal/models"
)

// Gemini talks to the Gemini API with an API key.
type Gemini struct {
	client       *genai.Client
	defaultModel string
}

func NewGemini(ctx context.Context, apiKey, modelName string) (*Gemini, error) {
	c, err := genai.NewClient(ctx, option.WithAPIKey(apiKey))
	if err != nil {
		return nil, err
	}
	if modelName == "" {
		modelName = "gemini-2.0-flash-001"
	}
	return &Gemini{client: c, defaultModel: modelName}, nil
}

func (g *Gemini) Close() error { return g.client.Close() }

func (g *Gemini) StreamChat(ctx context.Context, req Request) (<-chan string, <-chan error) {
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
			name = g.defaultModel
		}
		m := g.client.GenerativeModel(name)
		m.SystemInstruction = systemContent(system)

		cs := m.StartChat()
		for _, msg := range msgs[:len(msgs)-1] {
			cs.History = append(cs.History, &genai.Content{
				Role:  geminiRole(msg.Role),
				Parts: []genai.Part{genai.Text(msg.Content)},
			})
		}

		it := cs.SendMessageStream(ctx, genai.Text(msgs[len(msgs)-1].Content))
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
					if t, ok := part.(genai.Text); ok && string(t) != "" {
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

// systemContent is nil for an empty prompt so the model runs without a system instruction.
func systemContent(system string) *genai.Content {
	if system == "" {
		return nil
	}
	return &genai.Content{Parts: []genai.Part{genai.Text(system)}}
}

func geminiRole(r models.Role) string {
	if r == models.RoleAssistant {
		return "model"
	}
	return "user"
}
