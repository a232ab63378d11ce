package scoreboard

import (
	"context"
	"errors"
	"sync"

	"go-firestore-ratings/internal/eventpublisher"
	"go-firestore-ratings/internal/eventpublisher/event"
	"go-firestore-ratings/internal/eventpublisher/scores"
	"go-firestore-ratings/internal/model"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/rs/zerolog/log"
)

// ErrDropped is returned by EventHandler when the publisher closed the subscription.
var ErrDropped = errors.New("scoreboard: dropped by the scores publisher")

// Handler keeps the latest averages of every published entity and exports them as gauges.
type Handler struct {
	scoresEventPublisher eventpublisher.Publisher
	scoresSubscriptionCh event.EventChannel

	subscribeOnce sync.Once

	mu     sync.RWMutex
	latest map[string]model.Scores

	averages *prometheus.GaugeVec
	ratings  *prometheus.GaugeVec
}

func New(scoresEventPublisher eventpublisher.Publisher, reg prometheus.Registerer) *Handler {
	h := &Handler{
		scoresEventPublisher: scoresEventPublisher,
		scoresSubscriptionCh: make(event.EventChannel),
		latest:               make(map[string]model.Scores),
		averages: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Name: "entity_average_score",
			Help: "Live average score of an entity per category, overall included",
		}, []string{"entity", "category"}),
		ratings: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Name: "entity_ratings",
			Help: "Number of users who rated an entity",
		}, []string{"entity"}),
	}

	if reg != nil {
		reg.MustRegister(h.averages, h.ratings)
	}
	return h
}

// Subscribe registers the handler with the publisher. Repeated calls do nothing.
func (h *Handler) Subscribe() {
	h.subscribeOnce.Do(func() {
		h.scoresEventPublisher.Subscribe(h.eventChannel())
	})
}

func (h *Handler) unsubscribeFromEvents() {
	h.scoresEventPublisher.Unsubscribe(h.eventChannel())
}

func (h *Handler) eventChannel() chan<- event.Event {
	return h.scoresSubscriptionCh
}

func (h *Handler) EventHandler(ctx context.Context) error {

	h.Subscribe()
	defer h.unsubscribeFromEvents()

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case e, ok := <-h.scoresSubscriptionCh:
			if !ok {
				if ctx.Err() != nil {
					return ctx.Err()
				}
				log.Error().Msg("scoreboard handler: subscription closed by the publisher")
				return ErrDropped
			}

			if e.Err != nil {
				log.Error().Err(e.Err).Msg("scoreboard handler: error reading events")
				continue
			}

			msg, ok := e.Message.(scores.EntityScores)
			if !ok {
				continue
			}

			h.handle(msg)
		}
	}
}

// handle records msg unless a newer snapshot of the same entity was already recorded.
func (h *Handler) handle(msg scores.EntityScores) {
	h.mu.Lock()
	if prev, ok := h.latest[msg.EntityId]; ok && prev.Seq > msg.Scores.Seq {
		h.mu.Unlock()
		log.Debug().Msgf("stale scores skipped - entityId %s", msg.EntityId)
		return
	}
	h.latest[msg.EntityId] = msg.Scores
	h.mu.Unlock()

	for category, avg := range msg.Scores.Categories {
		h.averages.WithLabelValues(msg.EntityId, category).Set(avg)
	}
	h.averages.WithLabelValues(msg.EntityId, "overall").Set(msg.Scores.Overall)
	h.ratings.WithLabelValues(msg.EntityId).Set(float64(msg.Scores.Count))

	log.Info().
		Str("entityId", msg.EntityId).
		Int("ratings", msg.Scores.Count).
		Float64("overall", msg.Scores.Overall).
		Msg("scores updated")
}

// Latest returns the most recent averages of entityId.
func (h *Handler) Latest(entityId string) (model.Scores, bool) {
	h.mu.RLock()
	defer h.mu.RUnlock()
	s, ok := h.latest[entityId]
	return s, ok
}
