package forum

import (
	"context"
	"fmt"
	"strings"
	"time"

	"go-firestore-ratings/internal/database"
	"go-firestore-ratings/internal/model"
	"go-firestore-ratings/internal/path"
	"go-firestore-ratings/internal/repository/filter"
	"go-firestore-ratings/internal/repository/helper"
	"go-firestore-ratings/internal/utils"

	"github.com/google/uuid"
	"github.com/rs/zerolog/log"
)

type Input struct {
	Title string `validate:"required,max=300"`
	Body  string `validate:"required,max=20000"`
}

// ForumRepository stores forum posts. Comments and their replies go through the thread
// repository with path.ForumPost containers.
type ForumRepository struct {
	db  database.Client
	now func() time.Time
}

var _ IRepository = ForumRepository{}

func New(db database.Client) ForumRepository {
	return ForumRepository{
		db:  db,
		now: func() time.Time { return time.Now().UTC() },
	}
}

func (r ForumRepository) Create(ctx context.Context, author model.Identity, input Input) (model.Content, error) {

	input.Title = strings.TrimSpace(input.Title)
	input.Body = strings.TrimSpace(input.Body)

	if err := utils.Validate(author); err != nil {
		return model.Content{}, fmt.Errorf("create post: %w", err)
	}
	if err := utils.Validate(input); err != nil {
		return model.Content{}, fmt.Errorf("create post: %w", err)
	}

	post := model.Content{
		Id:                uuid.NewString(),
		AuthorId:          author.UserID,
		AuthorDisplayName: author.DisplayName,
		Title:             input.Title,
		Body:              input.Body,
		CreatedAt:         r.now(),
		Votable:           model.Votable{Likes: []string{}, Dislikes: []string{}},
	}

	if err := r.db.Put(ctx, path.ForumPostOf(post.Id).Doc(), post.Fields(), database.Replace()); err != nil {
		log.Error().Err(err).Str("authorId", author.UserID).Msg("forum repo: failed to create post")
		return model.Content{}, fmt.Errorf("create post: %w, id: %s", err, post.Id)
	}
	return post, nil
}

func (r ForumRepository) GetById(ctx context.Context, id string) (*model.Content, error) {
	doc, err := r.db.Get(ctx, path.ForumPostOf(id).Doc())
	if err != nil {
		return nil, fmt.Errorf("get post: %w, id: %s", err, id)
	}

	post, err := helper.Decode[model.Content](doc)
	if err != nil {
		return nil, fmt.Errorf("get post: %w, id: %s", err, id)
	}
	return &post, nil
}

// Watch streams every forum post, newest first.
func (r ForumRepository) Watch(ctx context.Context) (*database.Subscription[[]model.Content], error) {
	sub, err := helper.WatchList[model.Content](ctx, r.db, database.Query{
		Collection: path.ForumPosts(),
		OrderBy:    []filter.OrderBy{{Path: model.CreatedAtFieldPath, Direction: filter.Desc}},
	})
	if err != nil {
		return nil, fmt.Errorf("watch posts: %w", err)
	}
	return sub, nil
}
