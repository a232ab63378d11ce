package thread

import (
	"sort"

	"go-firestore-ratings/internal/model"
)

// Thread is a top-level item with its replies. The earliest reply is shown inline, the
// rest are shown or hidden together.
type Thread struct {
	Root        model.Content
	FirstReply  *model.Content
	MoreReplies []model.Content
}

// HiddenCount is the number of replies behind the "view more" toggle.
func (t Thread) HiddenCount() int {
	return len(t.MoreReplies)
}

// Replies returns every reply, earliest first.
func (t Thread) Replies() []model.Content {
	if t.FirstReply == nil {
		return []model.Content{}
	}
	return append([]model.Content{*t.FirstReply}, t.MoreReplies...)
}

// BuildThread orders replies by creation time, then id, and splits off the first one.
func BuildThread(root model.Content, replies []model.Content) Thread {
	sorted := make([]model.Content, len(replies))
	copy(sorted, replies)
	sort.SliceStable(sorted, func(i, j int) bool {
		if !sorted[i].CreatedAt.Equal(sorted[j].CreatedAt) {
			return sorted[i].CreatedAt.Before(sorted[j].CreatedAt)
		}
		return sorted[i].Id < sorted[j].Id
	})

	t := Thread{Root: root, MoreReplies: []model.Content{}}
	if len(sorted) > 0 {
		first := sorted[0]
		t.FirstReply = &first
		t.MoreReplies = sorted[1:]
	}
	return t
}
