package vote

// State is the derived vote of one user on one votable document.
type State int

const (
	None State = iota
	Liked
	Disliked
)

func (s State) String() string {
	switch s {
	case None:
		return "none"
	case Liked:
		return "liked"
	case Disliked:
		return "disliked"
	}
	return "unknown"
}
