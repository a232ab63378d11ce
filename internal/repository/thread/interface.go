package thread

import (
	"context"

	"go-firestore-ratings/internal/database"
	"go-firestore-ratings/internal/model"
	"go-firestore-ratings/internal/path"
)

type IRepository interface {
	PostTopLevel(ctx context.Context, container path.Container, author model.Identity, input Input) (model.Content, error)
	PostReview(ctx context.Context, entity path.Entity, author model.Identity, input Input) (model.Content, error)
	PostReply(ctx context.Context, parent path.TopLevel, author model.Identity, body string) (model.Content, error)
	WatchTopLevel(ctx context.Context, container path.Container) (*database.Subscription[[]model.Content], error)
	WatchReplies(ctx context.Context, parent path.TopLevel) (*database.Subscription[[]model.Content], error)
	WatchThread(ctx context.Context, root path.TopLevel) (*database.Subscription[Thread], error)
}
