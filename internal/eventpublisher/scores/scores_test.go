package scores

import (
	"context"
	"errors"
	"testing"
	"time"

	"go-firestore-ratings/internal/config"
	"go-firestore-ratings/internal/database"
	"go-firestore-ratings/internal/eventpublisher/common"
	"go-firestore-ratings/internal/eventpublisher/event"
	"go-firestore-ratings/internal/model"
	"go-firestore-ratings/internal/path"
	ratingRepo "go-firestore-ratings/internal/repository/rating"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestScoresPublisher_FansOutUpdates(t *testing.T) {
	cnf := config.Default()
	cnf.Rating.Categories = []string{"chemistry"}
	db := database.NewMemoryStore(cnf.Store, nil)
	defer db.Close()
	repo := ratingRepo.New(db, cnf.Rating)

	pub := New(repo, []string{"e1"})
	first, second := make(chan event.Event), make(chan event.Event)
	pub.Subscribe(first)
	pub.Subscribe(second)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- pub.Start(ctx) }()

	receive := func(ch chan event.Event, count int) EntityScores {
		timeout := time.After(time.Second * 2)
		for {
			select {
			case e := <-ch:
				require.NoError(t, e.Err)
				require.Equal(t, event.ScoresUpdated, e.Type)
				msg := e.Message.(EntityScores)
				if msg.Scores.Count == count {
					return msg
				}
			case <-timeout:
				require.FailNow(t, "no scores event")
			}
		}
	}

	assert.Equal(t, "e1", receive(first, 0).EntityId)
	receive(second, 0)

	_, err := repo.Submit(ctx, path.EntityOf("e1"), model.Identity{UserID: "alice"}, map[string]int{"chemistry": 70})
	require.NoError(t, err)

	got := receive(first, 1)
	assert.Equal(t, 70.0, got.Scores.Overall)
	assert.Equal(t, 70.0, receive(second, 1).Scores.Categories["chemistry"])

	cancel()
	select {
	case err := <-done:
		assert.True(t, errors.Is(err, context.Canceled))
	case <-time.After(time.Second * 2):
		require.FailNow(t, "publisher did not stop")
	}
}

func TestScoresPublisher_InvalidEntityFailsStart(t *testing.T) {
	cnf := config.Default()
	db := database.NewMemoryStore(cnf.Store, nil)
	defer db.Close()

	pub := New(ratingRepo.New(db, cnf.Rating), []string{".."})
	err := pub.Start(context.Background())
	require.Error(t, err)
}

func TestScoresPublisher_DroppedSubscriberChannelIsClosed(t *testing.T) {
	cnf := config.Default()
	cnf.Rating.Categories = []string{"chemistry"}
	db := database.NewMemoryStore(cnf.Store, nil)
	defer db.Close()

	pub := New(ratingRepo.New(db, cnf.Rating), []string{"e1"}).(*scoresPublisher)
	pub.publisher = common.NewPublisherWithFailureThreshold[event.Event](time.Millisecond*10, 1)

	slow := make(chan event.Event)
	pub.Subscribe(slow)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go pub.Start(ctx)

	require.Eventually(t, func() bool {
		return pub.submanager.Len() == 0
	}, time.Second*2, time.Millisecond*10)

	select {
	case _, ok := <-slow:
		assert.False(t, ok)
	case <-time.After(time.Second):
		require.FailNow(t, "dropped subscriber channel was not closed")
	}
}

func TestScoresPublisher_StopClosesSubscribers(t *testing.T) {
	cnf := config.Default()
	db := database.NewMemoryStore(cnf.Store, nil)
	defer db.Close()

	pub := New(ratingRepo.New(db, cnf.Rating), nil)
	ch := make(chan event.Event)
	pub.Subscribe(ch)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	require.ErrorIs(t, pub.Start(ctx), context.Canceled)

	_, ok := <-ch
	assert.False(t, ok)
}
