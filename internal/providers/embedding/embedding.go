package embedding

import (
	"context"
	"fmt"

	"github.com/yoockh/scholarchat/internal/utils"
)

// Provider turns text into a fixed-length vector.
type Provider interface {
	Embed(ctx context.Context, text string) ([]float32, error)
}

func embedError(op string, err error) error {
	return utils.E(utils.CodeEmbedding, op, "embedding provider failed", fmt.Errorf("%w: %v", utils.ErrEmbedding, err))
}
