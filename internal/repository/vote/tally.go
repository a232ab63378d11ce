package vote

import (
	"slices"

	"go-firestore-ratings/internal/model"
)

// Tally is the vote ledger of a document as seen by its readers.
type Tally struct {
	Likes    []string
	Dislikes []string
	Score    int
	// Seq is the store sequence of the snapshot, zero for a tally returned by CastVote
	Seq int64
}

func tallyOf(v model.Votable) Tally {
	return Tally{
		Likes:    v.Likes,
		Dislikes: v.Dislikes,
		Score:    v.VoteScore,
	}
}

func (t Tally) StateOf(userID string) State {
	return stateOf(model.Votable{Likes: t.Likes, Dislikes: t.Dislikes}, userID)
}

func stateOf(v model.Votable, userID string) State {
	switch {
	case slices.Contains(v.Likes, userID):
		return Liked
	case slices.Contains(v.Dislikes, userID):
		return Disliked
	}
	return None
}

// Toggle applies a vote to the ledger. Repeating the current vote withdraws it, the
// opposite vote switches sides. The score is recomputed from the sets.
func Toggle(v model.Votable, userID string, requested State) model.Votable {
	next := requested
	if stateOf(v, userID) == requested {
		next = None
	}

	out := model.Votable{
		Likes:    without(v.Likes, userID),
		Dislikes: without(v.Dislikes, userID),
	}

	switch next {
	case Liked:
		out.Likes = append(out.Likes, userID)
	case Disliked:
		out.Dislikes = append(out.Dislikes, userID)
	}

	out.VoteScore = len(out.Likes) - len(out.Dislikes)
	return out
}

func without(ids []string, userID string) []string {
	out := make([]string, 0, len(ids))
	for _, id := range ids {
		if id != userID {
			out = append(out, id)
		}
	}
	return out
}
