package vote

import (
	"context"
	"fmt"

	"go-firestore-ratings/internal/database"
	ierr "go-firestore-ratings/internal/errors"
	"go-firestore-ratings/internal/model"
	"go-firestore-ratings/internal/path"
	"go-firestore-ratings/internal/repository/helper"

	"github.com/rs/zerolog/log"
)

type VoteRepository struct {
	db database.Client
}

var _ IRepository = VoteRepository{}

func New(db database.Client) VoteRepository {
	return VoteRepository{
		db: db,
	}
}

// CastVote toggles the vote of user on votable inside a transaction and returns the
// committed tally. Every attempt starts from a fresh read, so retries converge on the same
// state. Failures are logged and returned, the stored ledger is then unchanged.
func (r VoteRepository) CastVote(ctx context.Context, votable path.Doc, user model.Identity, requested State) (Tally, error) {

	if requested != Liked && requested != Disliked {
		return Tally{}, fmt.Errorf("cast vote: %w, requested state %s", ierr.InvalidInput, requested)
	}
	if user.UserID == "" {
		return Tally{}, fmt.Errorf("cast vote: %w, empty user id", ierr.InvalidInput)
	}

	var tally Tally
	err := r.db.Transaction(ctx, func(ctx context.Context, tx database.Transaction) error {
		doc, err := tx.Get(votable)
		if err != nil {
			return err
		}

		current, err := helper.Decode[model.Votable](doc)
		if err != nil {
			return fmt.Errorf("%w: %v", ierr.PreconditionFailed, err)
		}

		next := Toggle(current, user.UserID, requested)
		if err := tx.Update(votable, next.Fields()); err != nil {
			return err
		}

		tally = tallyOf(next)
		return nil
	})

	if err != nil {
		log.Error().Err(err).
			Str("path", votable.String()).
			Str("userId", user.UserID).
			Str("requested", requested.String()).
			Msg("vote repo: failed to cast vote")
		return Tally{}, fmt.Errorf("cast vote: %w, path: %s", err, votable)
	}

	log.Debug().Msgf("vote %s on %s by %s, score %d", requested, votable, user.UserID, tally.Score)
	return tally, nil
}

func (r VoteRepository) State(ctx context.Context, votable path.Doc, userID string) (State, error) {
	doc, err := r.db.Get(ctx, votable)
	if err != nil {
		return None, fmt.Errorf("vote state: %w", err)
	}

	v, err := helper.Decode[model.Votable](doc)
	if err != nil {
		return None, fmt.Errorf("vote state: %w", err)
	}
	return stateOf(v, userID), nil
}

// Watch streams the tally of votable. A missing document yields an empty tally.
func (r VoteRepository) Watch(ctx context.Context, votable path.Doc) (*database.Subscription[Tally], error) {
	sub, err := r.db.Watch(ctx, votable)
	if err != nil {
		return nil, fmt.Errorf("watch votes: %w", err)
	}

	return database.Map(sub, func(snap database.DocumentSnapshot) (Tally, error) {
		if !snap.Exists {
			return Tally{Seq: snap.Seq}, nil
		}

		v, err := helper.Decode[model.Votable](snap.Document)
		if err != nil {
			return Tally{}, err
		}

		t := tallyOf(v)
		t.Seq = snap.Seq
		return t, nil
	}), nil
}
