package rating

import (
	"context"

	"go-firestore-ratings/internal/database"
	"go-firestore-ratings/internal/model"
	"go-firestore-ratings/internal/path"
)

type IRepository interface {
	Categories() []model.Category
	Submit(ctx context.Context, entity path.Entity, user model.Identity, scores map[string]int) (model.RatingRecord, error)
	Get(ctx context.Context, entity path.Entity, userID string) (*model.RatingRecord, error)
	Averages(ctx context.Context, entity path.Entity) (model.Scores, error)
	WatchAverages(ctx context.Context, entity path.Entity) (*database.Subscription[model.Scores], error)
}
