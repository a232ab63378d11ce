package entity

import (
	"context"

	"go-firestore-ratings/internal/database"
	"go-firestore-ratings/internal/model"
)

type IRepository interface {
	Create(ctx context.Context, creator model.Identity, input Input) (model.Entity, error)
	GetById(ctx context.Context, id string) (*model.Entity, error)
	List(ctx context.Context) ([]model.Entity, error)
	Watch(ctx context.Context) (*database.Subscription[[]model.Entity], error)
}
