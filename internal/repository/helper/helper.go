package helper

import (
	"context"
	"fmt"

	"go-firestore-ratings/internal/database"

	"github.com/rs/zerolog/log"
)

// Decode converts a document into T.
func Decode[T any](doc database.Document) (T, error) {
	var v T
	if err := doc.DataTo(&v); err != nil {
		return v, fmt.Errorf("decode doc: %w, path: %s", err, doc.Path)
	}
	return v, nil
}

// DecodeAll converts every document of a query snapshot into T keeping the snapshot order.
// Documents that fail to decode are logged and skipped, a single malformed document
// must not hide the rest of a live list.
func DecodeAll[T any](snap database.QuerySnapshot) []T {
	out := make([]T, 0, len(snap.Docs))
	for _, doc := range snap.Docs {
		v, err := Decode[T](doc)
		if err != nil {
			log.Error().Err(err).Msg("helper: skipping malformed document")
			continue
		}
		out = append(out, v)
	}
	return out
}

// WatchList maps a query watch into a watch of decoded lists.
func WatchList[T any](ctx context.Context, db database.Client, q database.Query) (*database.Subscription[[]T], error) {
	sub, err := db.WatchQuery(ctx, q)
	if err != nil {
		return nil, err
	}

	return database.Map(sub, func(snap database.QuerySnapshot) ([]T, error) {
		return DecodeAll[T](snap), nil
	}), nil
}
