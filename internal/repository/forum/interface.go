package forum

import (
	"context"

	"go-firestore-ratings/internal/database"
	"go-firestore-ratings/internal/model"
)

type IRepository interface {
	Create(ctx context.Context, author model.Identity, input Input) (model.Content, error)
	GetById(ctx context.Context, id string) (*model.Content, error)
	Watch(ctx context.Context) (*database.Subscription[[]model.Content], error)
}
