package model

const (
	// Votable field names and paths
	LikesFieldPath     string = "likes"
	DislikesFieldPath  string = "dislikes"
	VoteScoreFieldPath string = "voteScore"
)

// Votable is the like/dislike ledger carried by reviews, comments, posts and replies.
// VoteScore is always len(Likes) - len(Dislikes).
type Votable struct {
	Likes     []string `json:"likes"`
	Dislikes  []string `json:"dislikes"`
	VoteScore int      `json:"voteScore"`
}

// Fields returns the ledger as document fields. Nil sets are written as empty arrays.
func (v Votable) Fields() map[string]interface{} {
	likes, dislikes := v.Likes, v.Dislikes
	if likes == nil {
		likes = []string{}
	}
	if dislikes == nil {
		dislikes = []string{}
	}

	return map[string]interface{}{
		LikesFieldPath:     likes,
		DislikesFieldPath:  dislikes,
		VoteScoreFieldPath: v.VoteScore,
	}
}
