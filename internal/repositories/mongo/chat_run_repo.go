package mongo

import (
	"context"
	"time"

	"github.com/yoockh/scholarchat/internal/models"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

type ChatRunRepository interface {
	Create(ctx context.Context, run *models.ChatRun) error
	Finish(ctx context.Context, runID string, status models.RunStatus, chunks, chars, latencyMS int64, errMsg string) error
	SetStatus(ctx context.Context, runID string, status models.RunStatus, errMsg string) error
	ListByUser(ctx context.Context, userID string, limit int64) ([]models.ChatRun, error)
}

type chatRunRepo struct {
	col *mongo.Collection
	ttl time.Duration
}

func NewChatRunRepo(db *mongo.Database, ttl time.Duration) ChatRunRepository {
	if ttl <= 0 {
		ttl = 7 * 24 * time.Hour
	}
	return &chatRunRepo{col: db.Collection("chat_runs"), ttl: ttl}
}

func (r *chatRunRepo) Create(ctx context.Context, run *models.ChatRun) error {
	now := time.Now().UTC()
	if run.CreatedAt.IsZero() {
		run.CreatedAt = now
	}
	run.UpdatedAt = now
	run.ExpiresAt = run.CreatedAt.Add(r.ttl)
	_, err := r.col.InsertOne(ctx, run)
	return err
}

func (r *chatRunRepo) Finish(ctx context.Context, runID string, status models.RunStatus, chunks, chars, latencyMS int64, errMsg string) error {
	_, err := r.col.UpdateOne(ctx,
		bson.M{"run_id": runID},
		bson.M{"$set": bson.M{
			"status":         status,
			"chunk_count":    chunks,
			"response_chars": chars,
			"latency_ms":     latencyMS,
			"error":          errMsg,
			"updated_at":     time.Now().UTC(),
		}},
	)
	return err
}

func (r *chatRunRepo) SetStatus(ctx context.Context, runID string, status models.RunStatus, errMsg string) error {
	set := bson.M{
		"status":     status,
		"updated_at": time.Now().UTC(),
	}
	if errMsg != "" {
		set["error"] = errMsg
	}
	_, err := r.col.UpdateOne(ctx, bson.M{"run_id": runID}, bson.M{"$set": set})
	return err
}

func (r *chatRunRepo) ListByUser(ctx context.Context, userID string, limit int64) ([]models.ChatRun, error) {
	if limit <= 0 {
		limit = 50
	}

	cur, err := r.col.Find(ctx,
		bson.M{"user_id": userID},
		options.Find().
			SetSort(bson.D{{Key: "created_at", Value: -1}}).
			SetLimit(limit),
	)
	if err != nil {
		return nil, err
	}
	defer cur.Close(ctx)

	var out []models.ChatRun
	if err := cur.All(ctx, &out); err != nil {
		return nil, err
	}
	return out, nil
}
