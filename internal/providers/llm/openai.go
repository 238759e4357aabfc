package llm

import (
	"context"
	"errors"
	"io"

	"github.com/sashabaranov/go-openai"

	"github.com/yoockh/scholarchat/internal/models"
)

type OpenAI struct {
	client       *openai.Client
	defaultModel string
}

func NewOpenAI(apiKey, modelName string) *OpenAI {
	if modelName == "" {
		modelName = openai.GPT4oMini
	}
	return &OpenAI{client: openai.NewClient(apiKey), defaultModel: modelName}
}

func (o *OpenAI) Close() error { return nil }

func (o *OpenAI) StreamChat(ctx context.Context, req Request) (<-chan string, <-chan error) {
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

		model := req.Model
		if model == "" {
			model = o.defaultModel
		}

		wire := make([]openai.ChatCompletionMessage, 0, len(msgs)+1)
		if system != "" {
			wire = append(wire, openai.ChatCompletionMessage{Role: openai.ChatMessageRoleSystem, Content: system})
		}
		for _, m := range msgs {
			role := openai.ChatMessageRoleUser
			if m.Role == models.RoleAssistant {
				role = openai.ChatMessageRoleAssistant
			}
			wire = append(wire, openai.ChatCompletionMessage{Role: role, Content: m.Content})
		}

		stream, err := o.client.CreateChatCompletionStream(ctx, openai.ChatCompletionRequest{
			Model:    model,
			Messages: wire,
			Stream:   true,
		})
		if err != nil {
			errs <- err
			return
		}
		defer stream.Close()

		for {
			resp, err := stream.Recv()
			if errors.Is(err, io.EOF) {
				return
			}
			if err != nil {
				errs <- err
				return
			}
			for _, ch := range resp.Choices {
				if ch.Delta.Content == "" {
					continue
				}
				select {
				case out <- ch.Delta.Content:
				case <-ctx.Done():
					errs <- ctx.Err()
					return
				}
			}
		}
	}()

	return out, errs
}
