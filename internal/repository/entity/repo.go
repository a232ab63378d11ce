package entity

import (
	"context"
	"errors"
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

	"github.com/rs/zerolog/log"
)

type Input struct {
	Name      string `validate:"required,max=200"`
	Birthdate string `validate:"omitempty,datetime=2006-01-02"`
	ImageUrl  string `validate:"omitempty,url"`
}

type EntityRepository struct {
	db  database.Client
	now func() time.Time
}

var _ IRepository = EntityRepository{}

func New(db database.Client) EntityRepository {
	return EntityRepository{
		db:  db,
		now: func() time.Time { return time.Now().UTC() },
	}
}

// IdOf is the document id of the entity called name. Names differing only in case or
// spacing share an id.
func IdOf(name string) string {
	return utils.Hash(utils.NameKey(name))
}

// Create adds an entity unless one with the same name key exists.
func (r EntityRepository) Create(ctx context.Context, creator model.Identity, input Input) (model.Entity, error) {

	input.Name = strings.Join(strings.Fields(input.Name), " ")
	input.Birthdate = strings.TrimSpace(input.Birthdate)
	input.ImageUrl = strings.TrimSpace(input.ImageUrl)

	if err := utils.Validate(creator); err != nil {
		return model.Entity{}, fmt.Errorf("create entity: %w", err)
	}
	if err := utils.Validate(input); err != nil {
		return model.Entity{}, fmt.Errorf("create entity: %w", err)
	}

	data := model.Entity{
		Id:        IdOf(input.Name),
		Name:      input.Name,
		NameKey:   utils.NameKey(input.Name),
		Birthdate: input.Birthdate,
		ImageUrl:  input.ImageUrl,
		CreatedBy: creator.UserID,
		CreatedAt: r.now(),
	}
	p := path.EntityOf(data.Id).Doc()

	err := r.db.Transaction(ctx, func(ctx context.Context, tx database.Transaction) error {
		_, err := tx.Get(p)
		if err == nil {
			return fmt.Errorf("%w, name: %s", ierr.AlreadyExists, data.Name)
		}
		if !errors.Is(err, ierr.NotFound) {
			return err
		}
		return tx.Set(p, data.Fields())
	})

	if err != nil {
		if !errors.Is(err, ierr.AlreadyExists) {
			log.Error().Err(err).Str("name", data.Name).Msg("entity repo: failed to create entity")
		}
		return model.Entity{}, fmt.Errorf("create entity: %w, id: %s", err, data.Id)
	}
	return data, nil
}

func (r EntityRepository) GetById(ctx context.Context, id string) (*model.Entity, error) {
	doc, err := r.db.Get(ctx, path.EntityOf(id).Doc())
	if err != nil {
		return nil, fmt.Errorf("get entity: %w, id: %s", err, id)
	}

	e, err := helper.Decode[model.Entity](doc)
	if err != nil {
		return nil, fmt.Errorf("get entity: %w, id: %s", err, id)
	}
	return &e, nil
}

func listQuery() database.Query {
	return database.Query{
		Collection: path.Entities(),
		OrderBy:    []filter.OrderBy{{Path: model.NameFieldPath, Direction: filter.Asc}},
	}
}

func (r EntityRepository) List(ctx context.Context) ([]model.Entity, error) {
	snap, err := r.db.List(ctx, listQuery())
	if err != nil {
		return nil, fmt.Errorf("list entities: %w", err)
	}
	return helper.DecodeAll[model.Entity](snap), nil
}

// Watch streams every entity ordered by name.
func (r EntityRepository) Watch(ctx context.Context) (*database.Subscription[[]model.Entity], error) {
	sub, err := helper.WatchList[model.Entity](ctx, r.db, listQuery())
	if err != nil {
		return nil, fmt.Errorf("watch entities: %w", err)
	}
	return sub, nil
}

// FilterByName keeps the entities whose name contains substr, ignoring case.
// An empty substr keeps everything.
func FilterByName(entities []model.Entity, substr string) []model.Entity {
	needle := strings.ToLower(strings.TrimSpace(substr))
	out := make([]model.Entity, 0, len(entities))
	for _, e := range entities {
		if strings.Contains(strings.ToLower(e.Name), needle) {
			out = append(out, e)
		}
	}
	return out
}

// Age is the age in whole years at now of someone born on birthdate.
func Age(birthdate string, now time.Time) (int, error) {
	born, err := time.Parse(birthdateLayout, birthdate)
	if err != nil {
		return 0, fmt.Errorf("age: %w, birthdate: %s", ierr.InvalidInput, birthdate)
	}

	age := now.Year() - born.Year()
	if now.Month() < born.Month() || (now.Month() == born.Month() && now.Day() < born.Day()) {
		age--
	}
	if age < 0 {
		return 0, fmt.Errorf("age: %w, birthdate %s is in the future", ierr.InvalidInput, birthdate)
	}
	return age, nil
}
