package thread

import (
	"context"
	"errors"
	"fmt"
	"testing"
	"time"

	"go-firestore-ratings/internal/config"
	"go-firestore-ratings/internal/database"
	ierr "go-firestore-ratings/internal/errors"
	"go-firestore-ratings/internal/model"
	"go-firestore-ratings/internal/path"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var (
	alice = model.Identity{UserID: "alice", DisplayName: "Alice"}
	base  = time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC)
)

// newRepo returns a repository with a clock that advances a minute per document and
// sequential ids.
func newRepo(t *testing.T) (ThreadRepository, database.Client) {
	t.Helper()
	db := database.NewMemoryStore(config.Default().Store, nil)
	t.Cleanup(func() { db.Close() })

	repo := New(db)
	tick, id := 0, 0
	repo.now = func() time.Time {
		tick++
		return base.Add(time.Duration(tick) * time.Minute)
	}
	repo.ids = func() string {
		id++
		return fmt.Sprintf("id-%02d", id)
	}
	return repo, db
}

func waitFor[T any](t *testing.T, sub *database.Subscription[T], cond func(T) bool) T {
	t.Helper()
	timeout := time.After(time.Second * 2)
	for {
		select {
		case v, ok := <-sub.C():
			require.True(t, ok, "subscription closed: %v", sub.Err())
			if cond(v) {
				return v
			}
		case <-timeout:
			require.FailNow(t, "condition not met")
		}
	}
}

func ids(items []model.Content) []string {
	out := make([]string, 0, len(items))
	for _, c := range items {
		out = append(out, c.Id)
	}
	return out
}

func TestBuildThread(t *testing.T) {
	root := model.Content{Id: "root"}

	empty := BuildThread(root, nil)
	assert.Nil(t, empty.FirstReply)
	assert.Equal(t, 0, empty.HiddenCount())
	assert.Empty(t, empty.Replies())

	replies := []model.Content{
		{Id: "c", CreatedAt: base.Add(time.Minute * 2)},
		{Id: "b", CreatedAt: base},
		{Id: "a", CreatedAt: base},
	}
	thread := BuildThread(root, replies)
	require.NotNil(t, thread.FirstReply)
	assert.Equal(t, "a", thread.FirstReply.Id)
	assert.Equal(t, []string{"b", "c"}, ids(thread.MoreReplies))
	assert.Equal(t, 2, thread.HiddenCount())
	assert.Equal(t, []string{"a", "b", "c"}, ids(thread.Replies()))

	// input is left untouched
	assert.Equal(t, "c", replies[0].Id)
}

func TestPostTopLevel(t *testing.T) {
	repo, db := newRepo(t)
	ctx := context.Background()
	entity := path.EntityOf("e1")

	review, err := repo.PostReview(ctx, entity, alice, Input{Title: " Great ", Body: "Loved it", ViewedWorks: "Heat"})
	require.NoError(t, err)
	assert.Equal(t, "Great", review.Title)
	assert.Equal(t, "alice", review.AuthorId)
	assert.Equal(t, "Alice", review.AuthorDisplayName)

	doc, err := db.Get(ctx, entity.Review(review.Id).Doc())
	require.NoError(t, err)
	stored := model.Content{}
	require.NoError(t, doc.DataTo(&stored))
	assert.Empty(t, stored.Likes)
	assert.Empty(t, stored.Dislikes)
	assert.Equal(t, 0, stored.VoteScore)
	assert.Equal(t, "Heat", stored.ViewedWorks)
	assert.Empty(t, stored.ParentId)

	// a title alone is enough
	_, err = repo.PostReview(ctx, entity, alice, Input{Title: "Short"})
	require.NoError(t, err)

	_, err = repo.PostReview(ctx, entity, alice, Input{Title: "  ", Body: " "})
	assert.True(t, errors.Is(err, ierr.InvalidInput))

	_, err = repo.PostReview(ctx, entity, model.Identity{}, Input{Body: "anonymous"})
	assert.True(t, errors.Is(err, ierr.InvalidInput))
}

func TestPostReply(t *testing.T) {
	repo, db := newRepo(t)
	ctx := context.Background()
	post := path.ForumPostOf("p1")

	comment, err := repo.PostTopLevel(ctx, post.Comments(), alice, Input{Body: "first"})
	require.NoError(t, err)

	reply, err := repo.PostReply(ctx, post.Comment(comment.Id), alice, "me too")
	require.NoError(t, err)
	assert.Equal(t, comment.Id, reply.ParentId)

	doc, err := db.Get(ctx, post.Comment(comment.Id).Reply(reply.Id))
	require.NoError(t, err)
	assert.Equal(t, int64(0), doc.Fields[model.VoteScoreFieldPath])

	_, err = repo.PostReply(ctx, post.Comment("missing"), alice, "hello?")
	assert.True(t, errors.Is(err, ierr.NotFound))

	_, err = repo.PostReply(ctx, post.Comment(comment.Id), alice, "  ")
	assert.True(t, errors.Is(err, ierr.InvalidInput))
}

func TestWatchTopLevel_OrdersByScoreThenAge(t *testing.T) {
	repo, db := newRepo(t)
	ctx := context.Background()
	entity := path.EntityOf("e1")

	sub, err := repo.WatchTopLevel(ctx, entity.Reviews())
	require.NoError(t, err)
	defer sub.Cancel()

	waitFor(t, sub, func(items []model.Content) bool { return len(items) == 0 })

	var posted []string
	for _, body := range []string{"a", "b", "c"} {
		c, err := repo.PostReview(ctx, entity, alice, Input{Body: body})
		require.NoError(t, err)
		posted = append(posted, c.Id)
	}

	got := waitFor(t, sub, func(items []model.Content) bool { return len(items) == 3 })
	assert.Equal(t, posted, ids(got))

	require.NoError(t, db.Put(ctx, entity.Review(posted[1]).Doc(), map[string]interface{}{
		model.LikesFieldPath:     []string{"bob"},
		model.VoteScoreFieldPath: 1,
	}))

	got = waitFor(t, sub, func(items []model.Content) bool { return len(items) == 3 && items[0].VoteScore == 1 })
	assert.Equal(t, []string{posted[1], posted[0], posted[2]}, ids(got))
}

func TestWatchThread(t *testing.T) {
	repo, _ := newRepo(t)
	ctx := context.Background()
	entity := path.EntityOf("e1")

	review, err := repo.PostReview(ctx, entity, alice, Input{Body: "root"})
	require.NoError(t, err)
	root := entity.Review(review.Id)

	sub, err := repo.WatchThread(ctx, root)
	require.NoError(t, err)
	defer sub.Cancel()

	initial := waitFor(t, sub, func(th Thread) bool { return true })
	assert.Equal(t, review.Id, initial.Root.Id)
	assert.Nil(t, initial.FirstReply)

	var replies []string
	for _, body := range []string{"one", "two", "three"} {
		r, err := repo.PostReply(ctx, root, alice, body)
		require.NoError(t, err)
		replies = append(replies, r.Id)
	}

	got := waitFor(t, sub, func(th Thread) bool { return th.HiddenCount() == 2 })
	require.NotNil(t, got.FirstReply)
	assert.Equal(t, replies[0], got.FirstReply.Id)
	assert.Equal(t, replies[1:], ids(got.MoreReplies))
}

func TestWatchThread_MissingRoot(t *testing.T) {
	repo, _ := newRepo(t)

	sub, err := repo.WatchThread(context.Background(), path.EntityOf("e1").Review("missing"))
	require.NoError(t, err)

	select {
	case _, ok := <-sub.C():
		assert.False(t, ok)
	case <-time.After(time.Second * 2):
		require.FailNow(t, "subscription not stopped")
	}
	assert.True(t, errors.Is(sub.Err(), ierr.NotFound))
}
