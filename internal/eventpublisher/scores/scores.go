package scores

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go-firestore-ratings/internal/eventpublisher"
	"go-firestore-ratings/internal/eventpublisher/common"
	"go-firestore-ratings/internal/eventpublisher/event"
	"go-firestore-ratings/internal/model"
	"go-firestore-ratings/internal/path"
	ratingRepo "go-firestore-ratings/internal/repository/rating"

	"github.com/rs/zerolog/log"
)

const (
	writeTimeout          = time.Second
	writeFailureThreshold = 3
)

// EntityScores is the message of a ScoresUpdated event.
type EntityScores struct {
	EntityId string
	Scores   model.Scores
}

type ScoresPublisher interface {
	eventpublisher.Publisher
	Start(ctx context.Context) error
}

// scoresPublisher watches the live averages of a fixed set of entities and fans every
// update out to its subscribers. A subscriber that keeps missing writes is dropped.
type scoresPublisher struct {
	repo       ratingRepo.IRepository
	entities   []string
	submanager *common.SubManager[event.EventWChannel]
	publisher  *common.PublisherWithFailureThreshold[event.Event]
}

func New(repo ratingRepo.IRepository, entities []string) ScoresPublisher {
	p := &scoresPublisher{
		repo:      repo,
		entities:  entities,
		publisher: common.NewPublisherWithFailureThreshold[event.Event](writeTimeout, writeFailureThreshold),
	}
	// a removed subscriber gets its channel closed, so its reader learns it was dropped
	p.submanager = common.NewSubManager[event.EventWChannel](func(subscriber event.EventWChannel) {
		p.publisher.Forget(subscriber)
		close(subscriber)
	})
	return p
}

func (p *scoresPublisher) Subscribe(subscriber event.EventWChannel) {
	p.submanager.Subscribe(subscriber)
}

func (p *scoresPublisher) Unsubscribe(subscriber event.EventWChannel) {
	p.submanager.Unsubscribe(subscriber)
}

// publish writes e to every subscriber in turn, so each of them sees the updates of an
// entity in order.
func (p *scoresPublisher) publish(ctx context.Context, e event.Event) {
	p.submanager.OnSubscribers(func(subscriber event.EventWChannel) {
		err := p.publisher.Publish(ctx, subscriber, e)
		if errors.Is(err, common.ErrWriteFailure) {
			log.Warn().Msg("scores publisher: dropping unresponsive subscriber")
			p.Unsubscribe(subscriber)
		}
	})
}

func (p *scoresPublisher) Start(ctx context.Context) error {
	defer p.submanager.UnsubscribeAll()

	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	eventsCh := make(chan event.Event)
	for _, id := range p.entities {
		sub, err := p.repo.WatchAverages(ctx, path.EntityOf(id))
		if err != nil {
			return fmt.Errorf("scores publisher: %w, entity: %s", err, id)
		}
		defer sub.Cancel()
		go forward(ctx, id, sub.C(), sub.Err, eventsCh)
	}

	for {
		select {
		case <-ctx.Done():
			log.Error().Err(ctx.Err()).Msg("ScoresPublisher stopped")
			return ctx.Err()
		case e := <-eventsCh:
			if e.Err != nil {
				log.Error().Err(e.Err).Msg("scores publisher: live averages stopped")
			} else {
				log.Debug().Msgf("publish scores of entity %s", e.Message.(EntityScores).EntityId)
			}
			p.publish(ctx, e)
		}
	}
}

// forward turns the averages of one entity into events until the watch ends. A watch that
// ends on its own is reported as a ScoresFailed event.
func forward(ctx context.Context, id string, in <-chan model.Scores, errFn func() error, out chan<- event.Event) {
	for s := range in {
		select {
		case <-ctx.Done():
			return
		case out <- event.Event{Type: event.ScoresUpdated, Message: EntityScores{EntityId: id, Scores: s}}:
		}
	}

	if ctx.Err() != nil {
		return
	}

	err := errFn()
	if err == nil {
		err = fmt.Errorf("watch ended")
	}
	select {
	case <-ctx.Done():
	case out <- event.Event{Type: event.ScoresFailed, Message: EntityScores{EntityId: id}, Err: fmt.Errorf("entity %s: %w", id, err)}:
	}
}
