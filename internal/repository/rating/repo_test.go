package rating

import (
	"context"
	"errors"
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

var categories = []string{"emotionalRange", "chemistry"}

func newRepo(t *testing.T) (RatingRepository, database.Client) {
	t.Helper()
	cnf := config.Default()
	cnf.Rating.Categories = categories

	db := database.NewMemoryStore(cnf.Store, nil)
	t.Cleanup(func() { db.Close() })
	return New(db, cnf.Rating), db
}

func scores(emotionalRange, chemistry int) map[string]int {
	return map[string]int{"emotionalRange": emotionalRange, "chemistry": chemistry}
}

func TestAverageScores(t *testing.T) {
	empty := AverageScores(nil, categories)
	assert.Equal(t, 0, empty.Count)
	assert.Equal(t, 0.0, empty.Overall)
	assert.Equal(t, map[string]float64{"emotionalRange": 0, "chemistry": 0}, empty.Categories)

	records := []model.RatingRecord{
		{CategoryScores: scores(80, 80), OverallScore: 80},
		{CategoryScores: scores(60, 60), OverallScore: 60},
		{CategoryScores: scores(40, 40), OverallScore: 40},
	}
	avg := AverageScores(records, categories)
	assert.Equal(t, 3, avg.Count)
	assert.Equal(t, 60.0, avg.Overall)
	assert.Equal(t, 60.0, avg.Categories["emotionalRange"])

	// a missing category counts as zero
	partial := AverageScores([]model.RatingRecord{
		{CategoryScores: map[string]int{"emotionalRange": 90}, OverallScore: 90},
		{CategoryScores: scores(10, 30), OverallScore: 20},
	}, categories)
	assert.Equal(t, 50.0, partial.Categories["emotionalRange"])
	assert.Equal(t, 15.0, partial.Categories["chemistry"])
	assert.Equal(t, 55.0, partial.Overall)
}

func TestSubmit_ReplacesPriorRecord(t *testing.T) {
	repo, db := newRepo(t)
	ctx := context.Background()
	entity := path.EntityOf("e1")
	user := model.Identity{UserID: "alice", DisplayName: "Alice"}

	_, err := repo.Submit(ctx, entity, user, scores(10, 20))
	require.NoError(t, err)

	record, err := repo.Submit(ctx, entity, user, scores(90, 70))
	require.NoError(t, err)
	assert.Equal(t, 80.0, record.OverallScore)

	snap, err := db.List(ctx, database.Query{Collection: entity.Ratings()})
	require.NoError(t, err)
	require.Len(t, snap.Docs, 1)

	stored, err := repo.Get(ctx, entity, "alice")
	require.NoError(t, err)
	assert.Equal(t, scores(90, 70), stored.CategoryScores)
	assert.Equal(t, 80.0, stored.OverallScore)
	assert.Equal(t, "Alice", stored.DisplayName)
}

func TestSubmit_Rejects(t *testing.T) {
	repo, _ := newRepo(t)
	ctx := context.Background()
	entity := path.EntityOf("e1")
	user := model.Identity{UserID: "alice"}

	_, err := repo.Submit(ctx, entity, user, scores(0, 50))
	assert.True(t, errors.Is(err, ierr.InvalidInput))

	_, err = repo.Submit(ctx, entity, user, scores(50, 101))
	assert.True(t, errors.Is(err, ierr.InvalidInput))

	_, err = repo.Submit(ctx, entity, user, map[string]int{"emotionalRange": 50})
	assert.True(t, errors.Is(err, ierr.PreconditionFailed))

	_, err = repo.Submit(ctx, entity, user, map[string]int{"emotionalRange": 50, "charisma": 50})
	assert.True(t, errors.Is(err, ierr.PreconditionFailed))

	_, err = repo.Submit(ctx, entity, model.Identity{}, scores(50, 50))
	assert.True(t, errors.Is(err, ierr.InvalidInput))

	_, err = repo.Get(ctx, entity, "alice")
	assert.True(t, errors.Is(err, ierr.NotFound))
}

func TestAverages_OneShot(t *testing.T) {
	repo, _ := newRepo(t)
	ctx := context.Background()
	entity := path.EntityOf("e1")

	for i, s := range []int{80, 60, 40} {
		_, err := repo.Submit(ctx, entity, model.Identity{UserID: string(rune('a' + i))}, scores(s, s))
		require.NoError(t, err)
	}

	avg, err := repo.Averages(ctx, entity)
	require.NoError(t, err)
	assert.Equal(t, 60.0, avg.Overall)
	assert.Equal(t, 3, avg.Count)

	other, err := repo.Averages(ctx, path.EntityOf("e2"))
	require.NoError(t, err)
	assert.Equal(t, 0.0, other.Overall)
	assert.Equal(t, 0, other.Count)
}

func TestWatchAverages_EmitsAfterEverySubmit(t *testing.T) {
	repo, _ := newRepo(t)
	ctx := context.Background()
	entity := path.EntityOf("e1")

	sub, err := repo.WatchAverages(ctx, entity)
	require.NoError(t, err)
	defer sub.Cancel()

	next := func() model.Scores {
		select {
		case s, ok := <-sub.C():
			require.True(t, ok)
			return s
		case <-time.After(time.Second * 2):
			require.FailNow(t, "no scores received")
		}
		return model.Scores{}
	}

	last := next()
	assert.Equal(t, 0, last.Count)
	assert.Equal(t, 0.0, last.Overall)

	submissions := []struct {
		user    string
		score   int
		count   int
		overall float64
	}{
		{"a", 80, 1, 80},
		{"b", 60, 2, 70},
		{"c", 40, 3, 60},
		{"a", 20, 3, 40},
	}

	for _, s := range submissions {
		_, err := repo.Submit(ctx, entity, model.Identity{UserID: s.user}, scores(s.score, s.score))
		require.NoError(t, err)

		got := next()
		assert.Equal(t, s.count, got.Count)
		assert.Equal(t, s.overall, got.Overall)
		assert.Greater(t, got.Seq, last.Seq)
		last = got
	}

	// another entity's ratings do not reach this watcher
	_, err = repo.Submit(ctx, path.EntityOf("e2"), model.Identity{UserID: "a"}, scores(1, 1))
	require.NoError(t, err)
	select {
	case s := <-sub.C():
		t.Fatalf("unexpected scores %+v", s)
	case <-time.After(time.Millisecond * 50):
	}
}

func TestCategories(t *testing.T) {
	cnf := config.Default()
	cnf.Rating.Categories = []string{"chemistry", "stuntWork"}
	repo := New(nil, cnf.Rating)

	got := repo.Categories()
	require.Len(t, got, 2)
	assert.Equal(t, "Chemistry", got[0].Label)
	assert.NotEmpty(t, got[0].Explanation)
	assert.Equal(t, "stuntWork", got[1].Label)

	assert.Equal(t, map[string]int{"chemistry": 50, "stuntWork": 50}, repo.DefaultScores())
}

func TestSubmit_RepeatedConfiguredCategory(t *testing.T) {
	t.Setenv("RATING_CATEGORIES", "emotionalRange,chemistry,chemistry")
	cnf := config.LoadConfigOrPanic()

	db := database.NewMemoryStore(cnf.Store, nil)
	defer db.Close()
	repo := New(db, cnf.Rating)

	record, err := repo.Submit(context.Background(), path.EntityOf("e1"), model.Identity{UserID: "alice"}, scores(80, 60))
	require.NoError(t, err)
	assert.Equal(t, 70.0, record.OverallScore)
}
