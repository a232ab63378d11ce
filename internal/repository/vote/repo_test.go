package vote

import (
	"context"
	"errors"
	"fmt"
	"sync"
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
	bob   = model.Identity{UserID: "bob", DisplayName: "Bob"}
)

func newStore(t *testing.T) *database.MemoryStore {
	t.Helper()
	db := database.NewMemoryStore(config.Default().Store, nil)
	t.Cleanup(func() { db.Close() })
	return db
}

func newVotable(t *testing.T, db database.Client) path.Doc {
	t.Helper()
	p := path.EntityOf("e1").Review("r1").Doc()
	require.NoError(t, db.Put(context.Background(), p, model.Votable{}.Fields()))
	return p
}

func readVotable(t *testing.T, db database.Client, p path.Doc) model.Votable {
	t.Helper()
	doc, err := db.Get(context.Background(), p)
	require.NoError(t, err)
	v := model.Votable{}
	require.NoError(t, doc.DataTo(&v))
	return v
}

func assertLedger(t *testing.T, v model.Votable) {
	t.Helper()
	assert.Equal(t, len(v.Likes)-len(v.Dislikes), v.VoteScore)
	for _, id := range v.Likes {
		assert.NotContains(t, v.Dislikes, id)
	}
}

func TestToggle(t *testing.T) {
	empty := model.Votable{}

	liked := Toggle(empty, "alice", Liked)
	assert.Equal(t, []string{"alice"}, liked.Likes)
	assert.Empty(t, liked.Dislikes)
	assert.Equal(t, 1, liked.VoteScore)

	// repeat withdraws
	again := Toggle(liked, "alice", Liked)
	assert.Empty(t, again.Likes)
	assert.Equal(t, 0, again.VoteScore)

	// opposite switches directly
	switched := Toggle(liked, "alice", Disliked)
	assert.Empty(t, switched.Likes)
	assert.Equal(t, []string{"alice"}, switched.Dislikes)
	assert.Equal(t, -1, switched.VoteScore)
	assert.Equal(t, -2, switched.VoteScore-liked.VoteScore)

	// other voters are untouched
	mixed := Toggle(model.Votable{Likes: []string{"bob"}, Dislikes: []string{"carol"}, VoteScore: 0}, "alice", Liked)
	assert.Equal(t, []string{"bob", "alice"}, mixed.Likes)
	assert.Equal(t, []string{"carol"}, mixed.Dislikes)
	assert.Equal(t, 1, mixed.VoteScore)
}

func TestCastVote_ToggleOff(t *testing.T) {
	db := newStore(t)
	p := newVotable(t, db)
	repo := New(db)
	ctx := context.Background()

	tally, err := repo.CastVote(ctx, p, alice, Liked)
	require.NoError(t, err)
	assert.Equal(t, 1, tally.Score)
	assert.Equal(t, Liked, tally.StateOf("alice"))

	tally, err = repo.CastVote(ctx, p, alice, Liked)
	require.NoError(t, err)
	assert.Equal(t, 0, tally.Score)
	assert.Equal(t, None, tally.StateOf("alice"))

	state, err := repo.State(ctx, p, "alice")
	require.NoError(t, err)
	assert.Equal(t, None, state)
	assertLedger(t, readVotable(t, db, p))
}

func TestCastVote_SwitchSides(t *testing.T) {
	db := newStore(t)
	p := newVotable(t, db)
	repo := New(db)
	ctx := context.Background()

	liked, err := repo.CastVote(ctx, p, alice, Liked)
	require.NoError(t, err)

	disliked, err := repo.CastVote(ctx, p, alice, Disliked)
	require.NoError(t, err)
	assert.Equal(t, -2, disliked.Score-liked.Score)

	v := readVotable(t, db, p)
	assert.Empty(t, v.Likes)
	assert.Equal(t, []string{"alice"}, v.Dislikes)
	assertLedger(t, v)
}

func TestCastVote_Errors(t *testing.T) {
	db := newStore(t)
	repo := New(db)
	ctx := context.Background()

	missing := path.EntityOf("e1").Review("nope").Doc()
	_, err := repo.CastVote(ctx, missing, alice, Liked)
	require.Error(t, err)
	assert.True(t, errors.Is(err, ierr.NotFound))

	p := newVotable(t, db)
	_, err = repo.CastVote(ctx, p, alice, None)
	assert.True(t, errors.Is(err, ierr.InvalidInput))

	_, err = repo.CastVote(ctx, p, model.Identity{}, Liked)
	assert.True(t, errors.Is(err, ierr.InvalidInput))

	// nothing was written
	v := readVotable(t, db, p)
	assert.Empty(t, v.Likes)
	assert.Equal(t, 0, v.VoteScore)
}

// racingClient lets a competing write land between the first attempt's read and its commit.
type racingClient struct {
	database.Client
	once     sync.Once
	race     func()
	attempts int
}

func (c *racingClient) Transaction(ctx context.Context, fn database.TxFunc) error {
	return c.Client.Transaction(ctx, func(ctx context.Context, tx database.Transaction) error {
		c.attempts++
		if err := fn(ctx, tx); err != nil {
			return err
		}
		c.once.Do(c.race)
		return nil
	})
}

func TestCastVote_ConflictIsRetriedWithoutLostUpdate(t *testing.T) {
	db := newStore(t)
	p := newVotable(t, db)
	ctx := context.Background()

	var raceErr error
	client := &racingClient{Client: db}
	client.race = func() {
		_, raceErr = New(db).CastVote(ctx, p, bob, Disliked)
	}

	tally, err := New(client).CastVote(ctx, p, alice, Liked)
	require.NoError(t, err)
	require.NoError(t, raceErr)

	assert.Equal(t, 2, client.attempts)
	assert.Equal(t, []string{"alice"}, tally.Likes)
	assert.Equal(t, []string{"bob"}, tally.Dislikes)
	assert.Equal(t, 0, tally.Score)

	v := readVotable(t, db, p)
	assert.Equal(t, []string{"alice"}, v.Likes)
	assert.Equal(t, []string{"bob"}, v.Dislikes)
	assertLedger(t, v)
}

func TestCastVote_ConcurrentUsers(t *testing.T) {
	cnf := config.Default().Store
	cnf.MaxAttempts = 1000
	db := database.NewMemoryStore(cnf, nil)
	defer db.Close()

	p := newVotable(t, db)
	repo := New(db)
	ctx := context.Background()

	const users = 8
	var wg sync.WaitGroup
	errs := make(chan error, users)
	for i := 0; i < users; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			state := Liked
			if i%2 == 1 {
				state = Disliked
			}
			_, err := repo.CastVote(ctx, p, model.Identity{UserID: fmt.Sprintf("user-%d", i)}, state)
			errs <- err
		}(i)
	}
	wg.Wait()
	close(errs)

	for err := range errs {
		require.NoError(t, err)
	}

	v := readVotable(t, db, p)
	assert.Len(t, v.Likes, users/2)
	assert.Len(t, v.Dislikes, users/2)
	assertLedger(t, v)
}

func TestWatch_StreamsTallies(t *testing.T) {
	db := newStore(t)
	p := newVotable(t, db)
	repo := New(db)
	ctx := context.Background()

	sub, err := repo.Watch(ctx, p)
	require.NoError(t, err)
	defer sub.Cancel()

	next := func() Tally {
		select {
		case tally, ok := <-sub.C():
			require.True(t, ok)
			return tally
		case <-time.After(time.Second * 2):
			require.FailNow(t, "no tally received")
		}
		return Tally{}
	}

	initial := next()
	assert.Equal(t, 0, initial.Score)

	_, err = repo.CastVote(ctx, p, alice, Liked)
	require.NoError(t, err)
	first := next()
	assert.Equal(t, 1, first.Score)
	assert.Greater(t, first.Seq, initial.Seq)

	_, err = repo.CastVote(ctx, p, bob, Liked)
	require.NoError(t, err)
	second := next()
	assert.Equal(t, 2, second.Score)
	assert.Greater(t, second.Seq, first.Seq)
}
