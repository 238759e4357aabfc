package embedding

import (
	"context"
	"errors"

	"github.com/google/generative-ai-go/genai"
	"google.golang.org/api/option"
)

type Gemini struct {
	client *genai.Client
	model  string
}

func NewGemini(ctx context.Context, apiKey, model string) (*Gemini, error) {
	c, err := genai.NewClient(ctx, option.WithAPIKey(apiKey))
	if err != nil {
		return nil, err
	}
	if model == "" {
		model = "text-embedding-004"
	}
	return &Gemini{client: c, model: model}, nil
}

func (g *Gemini) Close() error { return g.client.Close() }

func (g *Gemini) Embed(ctx context.Context, text string) ([]float32, error) {
	const op = "GeminiEmbedder.Embed"

	rsp, err := g.client.EmbeddingModel(g.model).EmbedContent(ctx, genai.Text(text))
	if err != nil {
		return nil, embedError(op, err)
	}
	if rsp == nil || rsp.Embedding == nil || len(rsp.Embedding.Values) == 0 {
		return nil, embedError(op, errors.New("no embedding returned"))
	}
	return rsp.Embedding.Values, nil
}
