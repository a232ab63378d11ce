package thread

import (
	"context"
	"fmt"
	"strings"
	"time"

	"go-firestore-ratings/internal/database"
	ierr "go-firestore-ratings/internal/errors"
	"go-firestore-ratings/internal/model"
	"go-firestore-ratings/internal/path"
	"go-firestore-ratings/internal/repository/filter"
	"go-firestore-ratings/internal/repository/helper"
	"go-firestore-ratings/internal/utils"

	"github.com/google/uuid"
	"github.com/rs/zerolog/log"
)

// Input is a new top-level item. A review may carry only a title or only a body, but
// not neither.
type Input struct {
	Title       string `validate:"max=300"`
	Body        string `validate:"required_without=Title,max=20000"`
	ViewedWorks string `validate:"max=1000"`
}

type reply struct {
	Body string `validate:"required,max=20000"`
}

type ThreadRepository struct {
	db  database.Client
	now func() time.Time
	ids func() string
}

var _ IRepository = ThreadRepository{}

func New(db database.Client) ThreadRepository {
	return ThreadRepository{
		db:  db,
		now: func() time.Time { return time.Now().UTC() },
		ids: uuid.NewString,
	}
}

func (r ThreadRepository) newContent(author model.Identity) model.Content {
	return model.Content{
		Id:                r.ids(),
		AuthorId:          author.UserID,
		AuthorDisplayName: author.DisplayName,
		CreatedAt:         r.now(),
		Votable: model.Votable{
			Likes:    []string{},
			Dislikes: []string{},
		},
	}
}

// PostTopLevel adds an item with an empty vote ledger to container.
func (r ThreadRepository) PostTopLevel(ctx context.Context, container path.Container, author model.Identity, input Input) (model.Content, error) {

	input.Title = strings.TrimSpace(input.Title)
	input.Body = strings.TrimSpace(input.Body)
	input.ViewedWorks = strings.TrimSpace(input.ViewedWorks)

	if err := utils.Validate(author); err != nil {
		return model.Content{}, fmt.Errorf("post item: %w", err)
	}
	if err := utils.Validate(input); err != nil {
		return model.Content{}, fmt.Errorf("post item: %w", err)
	}

	content := r.newContent(author)
	content.Title = input.Title
	content.Body = input.Body
	content.ViewedWorks = input.ViewedWorks

	p := container.Item(content.Id).Doc()
	if err := r.db.Put(ctx, p, content.Fields(), database.Replace()); err != nil {
		log.Error().Err(err).Str("path", p.String()).Msg("thread repo: failed to post item")
		return model.Content{}, fmt.Errorf("post item: %w, id: %s", err, content.Id)
	}
	return content, nil
}

func (r ThreadRepository) PostReview(ctx context.Context, entity path.Entity, author model.Identity, input Input) (model.Content, error) {
	return r.PostTopLevel(ctx, entity.Reviews(), author, input)
}

// PostReply adds a reply under parent. The parent must exist; replies never own replies.
func (r ThreadRepository) PostReply(ctx context.Context, parent path.TopLevel, author model.Identity, body string) (model.Content, error) {

	body = strings.TrimSpace(body)
	if err := utils.Validate(author); err != nil {
		return model.Content{}, fmt.Errorf("post reply: %w", err)
	}
	if err := utils.Validate(reply{Body: body}); err != nil {
		return model.Content{}, fmt.Errorf("post reply: %w", err)
	}

	content := r.newContent(author)
	content.Body = body
	content.ParentId = parent.ID()

	err := r.db.Transaction(ctx, func(ctx context.Context, tx database.Transaction) error {
		if _, err := tx.Get(parent.Doc()); err != nil {
			return err
		}
		return tx.Set(parent.Reply(content.Id), content.Fields())
	})

	if err != nil {
		log.Error().Err(err).Str("parent", parent.Doc().String()).Msg("thread repo: failed to post reply")
		return model.Content{}, fmt.Errorf("post reply: %w, parent: %s", err, parent.ID())
	}
	return content, nil
}

func topLevelQuery(container path.Container) database.Query {
	return database.Query{
		Collection: container.Collection(),
		OrderBy: []filter.OrderBy{
			{Path: model.VoteScoreFieldPath, Direction: filter.Desc},
			{Path: model.CreatedAtFieldPath, Direction: filter.Asc},
		},
	}
}

func repliesQuery(parent path.TopLevel) database.Query {
	return database.Query{
		Collection: parent.Replies(),
		OrderBy: []filter.OrderBy{
			{Path: model.CreatedAtFieldPath, Direction: filter.Asc},
		},
	}
}

// WatchTopLevel streams the items of container by vote score, highest first. Ties go to
// the earliest item.
func (r ThreadRepository) WatchTopLevel(ctx context.Context, container path.Container) (*database.Subscription[[]model.Content], error) {
	sub, err := helper.WatchList[model.Content](ctx, r.db, topLevelQuery(container))
	if err != nil {
		return nil, fmt.Errorf("watch items: %w, container: %s", err, container.Collection())
	}
	return sub, nil
}

// WatchReplies streams the replies of parent, earliest first.
func (r ThreadRepository) WatchReplies(ctx context.Context, parent path.TopLevel) (*database.Subscription[[]model.Content], error) {
	sub, err := helper.WatchList[model.Content](ctx, r.db, repliesQuery(parent))
	if err != nil {
		return nil, fmt.Errorf("watch replies: %w, parent: %s", err, parent.ID())
	}
	return sub, nil
}

// WatchThread streams root together with its replies. The stream stops with NotFound if
// root does not exist.
func (r ThreadRepository) WatchThread(ctx context.Context, root path.TopLevel) (*database.Subscription[Thread], error) {
	rootSub, err := r.db.Watch(ctx, root.Doc())
	if err != nil {
		return nil, fmt.Errorf("watch thread: %w, root: %s", err, root.ID())
	}

	repliesSub, err := r.WatchReplies(ctx, root)
	if err != nil {
		rootSub.Cancel()
		return nil, fmt.Errorf("watch thread: %w", err)
	}

	return database.Combine(rootSub, repliesSub, func(snap database.DocumentSnapshot, replies []model.Content) (Thread, error) {
		if !snap.Exists {
			return Thread{}, fmt.Errorf("watch thread: %w, root: %s", ierr.NotFound, root.ID())
		}

		content, err := helper.Decode[model.Content](snap.Document)
		if err != nil {
			return Thread{}, err
		}
		return BuildThread(content, replies), nil
	}), nil
}
