package rating

import (
	"context"
	"fmt"
	"time"

	"go-firestore-ratings/internal/config"
	"go-firestore-ratings/internal/database"
	ierr "go-firestore-ratings/internal/errors"
	"go-firestore-ratings/internal/model"
	"go-firestore-ratings/internal/path"
	"go-firestore-ratings/internal/repository/helper"
	"go-firestore-ratings/internal/utils"

	"github.com/rs/zerolog/log"
)

type RatingRepository struct {
	db         database.Client
	cnf        config.Rating
	scoreRange string
	now        func() time.Time
}

var _ IRepository = RatingRepository{}

func New(db database.Client, cnf config.Rating) RatingRepository {
	return RatingRepository{
		db:         db,
		cnf:        cnf,
		scoreRange: fmt.Sprintf("gte=%d,lte=%d", cnf.MinScore, cnf.MaxScore),
		now:        func() time.Time { return time.Now().UTC() },
	}
}

// Categories describes the configured categories in order. Unknown names are labeled
// with the name itself.
func (r RatingRepository) Categories() []model.Category {
	out := make([]model.Category, 0, len(r.cnf.Categories))
	for _, name := range r.cnf.Categories {
		c, ok := knownCategories[name]
		if !ok {
			c = model.Category{Name: name, Label: name}
		}
		out = append(out, c)
	}
	return out
}

// DefaultScores is the form pre-fill for a user without a record.
func (r RatingRepository) DefaultScores() map[string]int {
	scores := make(map[string]int, len(r.cnf.Categories))
	for _, name := range r.cnf.Categories {
		scores[name] = clamp(DefaultScore, r.cnf.MinScore, r.cnf.MaxScore)
	}
	return scores
}

// Submit replaces the rating record of user on entity. Every configured category must be
// scored exactly once and within bounds.
func (r RatingRepository) Submit(ctx context.Context, entity path.Entity, user model.Identity, scores map[string]int) (model.RatingRecord, error) {

	if err := utils.Validate(user); err != nil {
		return model.RatingRecord{}, fmt.Errorf("submit rating: %w", err)
	}
	if err := r.checkCategories(scores); err != nil {
		return model.RatingRecord{}, fmt.Errorf("submit rating: %w, entity: %s", err, entity.ID())
	}

	total := 0
	for _, name := range r.cnf.Categories {
		score := scores[name]
		if err := utils.ValidateVar(name, score, r.scoreRange); err != nil {
			return model.RatingRecord{}, fmt.Errorf("submit rating: %w, entity: %s", err, entity.ID())
		}
		total += score
	}

	record := model.RatingRecord{
		UserId:         user.UserID,
		DisplayName:    user.DisplayName,
		CategoryScores: copyScores(scores),
		OverallScore:   float64(total) / float64(len(r.cnf.Categories)),
		UpdatedAt:      r.now(),
	}

	if err := r.db.Put(ctx, entity.Rating(user.UserID), record.Fields(), database.Replace()); err != nil {
		log.Error().Err(err).Str("entity", entity.ID()).Str("userId", user.UserID).Msg("rating repo: failed to submit rating")
		return model.RatingRecord{}, fmt.Errorf("submit rating: %w, entity: %s", err, entity.ID())
	}
	return record, nil
}

func (r RatingRepository) checkCategories(scores map[string]int) error {
	if len(scores) != len(r.cnf.Categories) {
		return fmt.Errorf("%w, got %d category scores, want %d", ierr.PreconditionFailed, len(scores), len(r.cnf.Categories))
	}
	for _, name := range r.cnf.Categories {
		if _, ok := scores[name]; !ok {
			return fmt.Errorf("%w, missing category %s", ierr.PreconditionFailed, name)
		}
	}
	return nil
}

func (r RatingRepository) Get(ctx context.Context, entity path.Entity, userID string) (*model.RatingRecord, error) {
	doc, err := r.db.Get(ctx, entity.Rating(userID))
	if err != nil {
		return nil, fmt.Errorf("get rating: %w, entity: %s", err, entity.ID())
	}

	record, err := helper.Decode[model.RatingRecord](doc)
	if err != nil {
		return nil, fmt.Errorf("get rating: %w, entity: %s", err, entity.ID())
	}
	return &record, nil
}

func (r RatingRepository) Averages(ctx context.Context, entity path.Entity) (model.Scores, error) {
	snap, err := r.db.List(ctx, database.Query{Collection: entity.Ratings()})
	if err != nil {
		return model.Scores{}, fmt.Errorf("average scores: %w, entity: %s", err, entity.ID())
	}
	return r.scoresOf(snap), nil
}

// WatchAverages emits the averages of entity after every change to its ratings.
func (r RatingRepository) WatchAverages(ctx context.Context, entity path.Entity) (*database.Subscription[model.Scores], error) {
	sub, err := r.db.WatchQuery(ctx, database.Query{Collection: entity.Ratings()})
	if err != nil {
		return nil, fmt.Errorf("watch averages: %w, entity: %s", err, entity.ID())
	}

	return database.Map(sub, func(snap database.QuerySnapshot) (model.Scores, error) {
		return r.scoresOf(snap), nil
	}), nil
}

func (r RatingRepository) scoresOf(snap database.QuerySnapshot) model.Scores {
	scores := AverageScores(helper.DecodeAll[model.RatingRecord](snap), r.cnf.Categories)
	scores.Seq = snap.Seq
	return scores
}

// AverageScores is the mean of every category and of the overall score across records.
// A category a record did not score counts as zero. Everything is zero without records.
func AverageScores(records []model.RatingRecord, categories []string) model.Scores {
	scores := model.Scores{
		Categories: make(map[string]float64, len(categories)),
		Count:      len(records),
	}
	for _, name := range categories {
		scores.Categories[name] = 0
	}
	if len(records) == 0 {
		return scores
	}

	totals := make(map[string]int, len(categories))
	overall := 0.0
	for _, record := range records {
		for _, name := range categories {
			totals[name] += record.CategoryScores[name]
		}
		overall += record.OverallScore
	}

	n := float64(len(records))
	for _, name := range categories {
		scores.Categories[name] = float64(totals[name]) / n
	}
	scores.Overall = overall / n
	return scores
}

func copyScores(scores map[string]int) map[string]int {
	out := make(map[string]int, len(scores))
	for k, v := range scores {
		out[k] = v
	}
	return out
}

func clamp(v, lo, hi int) int {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}
