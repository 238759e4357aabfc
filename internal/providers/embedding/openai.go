package embedding

import (
	"context"
	"errors"

	"github.com/sashabaranov/go-openai"
)

type OpenAI struct {
	client     *openai.Client
	model      string
	dimensions int
}

// NewOpenAI requests vectors of the given dimensions so they fit the index column.
func NewOpenAI(apiKey, model string, dimensions int) *OpenAI {
	if model == "" {
		model = string(openai.SmallEmbedding3)
	}
	return &OpenAI{client: openai.NewClient(apiKey), model: model, dimensions: dimensions}
}

func (o *OpenAI) Embed(ctx context.Context, text string) ([]float32, error) {
	const op = "OpenAIEmbedder.Embed"

	rsp, err := o.client.CreateEmbeddings(ctx, openai.EmbeddingRequest{
		Input:      []string{text},
		Model:      openai.EmbeddingModel(o.model),
		Dimensions: o.dimensions,
	})
	if err != nil {
		return nil, embedError(op, err)
	}
	if len(rsp.Data) == 0 || len(rsp.Data[0].Embedding) == 0 {
		return nil, embedError(op, errors.New("no embedding returned"))
	}
	return rsp.Data[0].Embedding, nil
}
