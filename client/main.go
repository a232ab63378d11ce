package main

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"os"
	"time"

	"go-firestore-ratings/internal/config"
	"go-firestore-ratings/internal/database"
	"go-firestore-ratings/internal/model"
	"go-firestore-ratings/internal/path"
	entityRepository "go-firestore-ratings/internal/repository/entity"
	forumRepository "go-firestore-ratings/internal/repository/forum"
	ratingRepository "go-firestore-ratings/internal/repository/rating"
	threadRepository "go-firestore-ratings/internal/repository/thread"
	voteRepository "go-firestore-ratings/internal/repository/vote"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"golang.org/x/sync/errgroup"
)

type seedReview struct {
	Author      string   `json:"author"`
	Title       string   `json:"title"`
	Body        string   `json:"body"`
	ViewedWorks string   `json:"viewedWorks"`
	Replies     []reply  `json:"replies"`
	Likes       []string `json:"likes"`
	Dislikes    []string `json:"dislikes"`
}

type reply struct {
	Author string `json:"author"`
	Body   string `json:"body"`
}

type seedEntity struct {
	Name      string                    `json:"name"`
	Birthdate string                    `json:"birthdate"`
	ImageUrl  string                    `json:"imageUrl"`
	Ratings   map[string]map[string]int `json:"ratings"`
	Reviews   []seedReview              `json:"reviews"`
}

type seedPost struct {
	Author   string  `json:"author"`
	Title    string  `json:"title"`
	Body     string  `json:"body"`
	Comments []reply `json:"comments"`
}

type seed struct {
	Users    []model.Identity `json:"users"`
	Entities []seedEntity     `json:"entities"`
	Forum    []seedPost       `json:"forum"`
}

type seeder struct {
	users    map[string]model.Identity
	entities entityRepository.IRepository
	ratings  ratingRepository.IRepository
	threads  threadRepository.IRepository
	votes    voteRepository.IRepository
	forum    forumRepository.IRepository
}

func main() {
	fixture := flag.String("fixture", "./fixtures/seed.json", "seed fixture to load")
	flag.Parse()

	log.Logger = log.Output(zerolog.ConsoleWriter{Out: os.Stderr, TimeFormat: time.RFC3339})

	cnf := config.LoadConfigOrPanic()
	ctx, cancel := context.WithTimeout(context.Background(), time.Minute)
	defer cancel()

	data, err := readSeed(*fixture)
	if err != nil {
		panic(err)
	}

	db, err := database.Open(ctx, cnf, nil)
	if err != nil {
		panic(err)
	}
	defer db.Close()

	s := seeder{
		users:    make(map[string]model.Identity, len(data.Users)),
		entities: entityRepository.New(db),
		ratings:  ratingRepository.New(db, cnf.Rating),
		threads:  threadRepository.New(db),
		votes:    voteRepository.New(db),
		forum:    forumRepository.New(db),
	}
	for _, u := range data.Users {
		s.users[u.UserID] = u
	}

	for _, e := range data.Entities {
		if err := s.seedEntity(ctx, e); err != nil {
			log.Fatal().Err(err).Str("entity", e.Name).Msg("failed to seed entity")
		}
	}
	for _, p := range data.Forum {
		if err := s.seedPost(ctx, p); err != nil {
			log.Fatal().Err(err).Str("post", p.Title).Msg("failed to seed forum post")
		}
	}

	log.Info().Msg("seeding finished")
}

func readSeed(file string) (seed, error) {
	var data seed
	content, err := os.ReadFile(file)
	if err != nil {
		return data, err
	}
	if err := json.Unmarshal(content, &data); err != nil {
		return data, fmt.Errorf("parse %s: %w", file, err)
	}
	return data, nil
}

func (s seeder) user(id string) (model.Identity, error) {
	u, ok := s.users[id]
	if !ok {
		return model.Identity{}, fmt.Errorf("unknown user %q", id)
	}
	return u, nil
}

func (s seeder) seedEntity(ctx context.Context, e seedEntity) error {
	creator := model.Identity{UserID: "seeder", DisplayName: "Seeder"}
	created, err := s.entities.Create(ctx, creator, entityRepository.Input{
		Name:      e.Name,
		Birthdate: e.Birthdate,
		ImageUrl:  e.ImageUrl,
	})
	if err != nil {
		return err
	}
	entity := path.EntityOf(created.Id)

	// ratings of different users never touch the same document
	group, gctx := errgroup.WithContext(ctx)
	for userId, scores := range e.Ratings {
		u, err := s.user(userId)
		if err != nil {
			return err
		}
		scores := scores
		group.Go(func() error {
			_, err := s.ratings.Submit(gctx, entity, u, scores)
			return err
		})
	}
	if err := group.Wait(); err != nil {
		return err
	}

	for _, r := range e.Reviews {
		author, err := s.user(r.Author)
		if err != nil {
			return err
		}
		review, err := s.threads.PostReview(ctx, entity, author, threadRepository.Input{
			Title:       r.Title,
			Body:        r.Body,
			ViewedWorks: r.ViewedWorks,
		})
		if err != nil {
			return err
		}
		root := entity.Review(review.Id)

		if err := s.seedReplies(ctx, root, r.Replies); err != nil {
			return err
		}
		if err := s.seedVotes(ctx, root.Doc(), r.Likes, voteRepository.Liked); err != nil {
			return err
		}
		if err := s.seedVotes(ctx, root.Doc(), r.Dislikes, voteRepository.Disliked); err != nil {
			return err
		}
	}

	averages, err := s.ratings.Averages(ctx, entity)
	if err != nil {
		return err
	}
	log.Info().
		Str("entity", created.Name).
		Int("ratings", averages.Count).
		Float64("overall", averages.Overall).
		Msg("entity seeded")
	return nil
}

func (s seeder) seedReplies(ctx context.Context, parent path.TopLevel, replies []reply) error {
	for _, r := range replies {
		author, err := s.user(r.Author)
		if err != nil {
			return err
		}
		if _, err := s.threads.PostReply(ctx, parent, author, r.Body); err != nil {
			return err
		}
	}
	return nil
}

// seedVotes casts the votes concurrently, the store serializes them on the same document.
func (s seeder) seedVotes(ctx context.Context, votable path.Doc, voters []string, state voteRepository.State) error {
	group, gctx := errgroup.WithContext(ctx)
	for _, id := range voters {
		u, err := s.user(id)
		if err != nil {
			return err
		}
		group.Go(func() error {
			_, err := s.votes.CastVote(gctx, votable, u, state)
			return err
		})
	}
	return group.Wait()
}

func (s seeder) seedPost(ctx context.Context, p seedPost) error {
	author, err := s.user(p.Author)
	if err != nil {
		return err
	}
	post, err := s.forum.Create(ctx, author, forumRepository.Input{Title: p.Title, Body: p.Body})
	if err != nil {
		return err
	}

	comments := path.ForumPostOf(post.Id).Comments()
	for _, c := range p.Comments {
		commenter, err := s.user(c.Author)
		if err != nil {
			return err
		}
		if _, err := s.threads.PostTopLevel(ctx, comments, commenter, threadRepository.Input{Body: c.Body}); err != nil {
			return err
		}
	}

	log.Info().Str("post", post.Title).Int("comments", len(p.Comments)).Msg("forum post seeded")
	return nil
}
