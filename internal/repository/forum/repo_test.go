package forum

import (
	"context"
	"errors"
	"testing"
	"time"

	"go-firestore-ratings/internal/config"
	"go-firestore-ratings/internal/database"
	ierr "go-firestore-ratings/internal/errors"
	"go-firestore-ratings/internal/model"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var alice = model.Identity{UserID: "alice", DisplayName: "Alice"}

func newRepo(t *testing.T) ForumRepository {
	t.Helper()
	db := database.NewMemoryStore(config.Default().Store, nil)
	t.Cleanup(func() { db.Close() })

	repo := New(db)
	tick := 0
	repo.now = func() time.Time {
		tick++
		return time.Date(2024, 1, 1, 0, tick, 0, 0, time.UTC)
	}
	return repo
}

func TestCreateAndGet(t *testing.T) {
	repo := newRepo(t)
	ctx := context.Background()

	post, err := repo.Create(ctx, alice, Input{Title: " Best villain? ", Body: "Discuss."})
	require.NoError(t, err)
	assert.NotEmpty(t, post.Id)

	got, err := repo.GetById(ctx, post.Id)
	require.NoError(t, err)
	assert.Equal(t, "Best villain?", got.Title)
	assert.Equal(t, "Discuss.", got.Body)
	assert.Equal(t, "alice", got.AuthorId)
	assert.Equal(t, 0, got.VoteScore)

	_, err = repo.Create(ctx, alice, Input{Body: "no title"})
	assert.True(t, errors.Is(err, ierr.InvalidInput))

	_, err = repo.GetById(ctx, "missing")
	assert.True(t, errors.Is(err, ierr.NotFound))
}

func TestWatch_NewestFirst(t *testing.T) {
	repo := newRepo(t)
	ctx := context.Background()

	var ids []string
	for _, title := range []string{"one", "two", "three"} {
		post, err := repo.Create(ctx, alice, Input{Title: title, Body: "body"})
		require.NoError(t, err)
		ids = append(ids, post.Id)
	}

	sub, err := repo.Watch(ctx)
	require.NoError(t, err)
	defer sub.Cancel()

	select {
	case posts, ok := <-sub.C():
		require.True(t, ok)
		require.Len(t, posts, 3)
		assert.Equal(t, ids[2], posts[0].Id)
		assert.Equal(t, ids[1], posts[1].Id)
		assert.Equal(t, ids[0], posts[2].Id)
	case <-time.After(time.Second * 2):
		require.FailNow(t, "no posts received")
	}
}
