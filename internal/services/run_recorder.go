package services

import (
	"context"

	"github.com/yoockh/scholarchat/internal/models"
)

// RunRecorder keeps the audit trail of chat exchanges.
type RunRecorder interface {
	Create(ctx context.Context, run *models.ChatRun) error
	Finish(ctx context.Context, runID string, status models.RunStatus, chunks, chars, latencyMS int64, errMsg string) error
	SetStatus(ctx context.Context, runID string, status models.RunStatus, errMsg string) error
}

// NopRunRecorder is used when no audit store is configured.
type NopRunRecorder struct{}

func (NopRunRecorder) Create(context.Context, *models.ChatRun) error { return nil }

func (NopRunRecorder) Finish(context.Context, string, models.RunStatus, int64, int64, int64, string) error {
	return nil
}

func (NopRunRecorder) SetStatus(context.Context, string, models.RunStatus, string) error { return nil }

// RunHistory lists recorded runs, newest first.
type RunHistory interface {
	ListByUser(ctx context.Context, userID string, limit int64) ([]models.ChatRun, error)
}
