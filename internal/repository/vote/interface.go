package vote

import (
	"context"

	"go-firestore-ratings/internal/database"
	"go-firestore-ratings/internal/model"
	"go-firestore-ratings/internal/path"
)

type IRepository interface {
	CastVote(ctx context.Context, votable path.Doc, user model.Identity, requested State) (Tally, error)
	State(ctx context.Context, votable path.Doc, userID string) (State, error)
	Watch(ctx context.Context, votable path.Doc) (*database.Subscription[Tally], error)
}
