package database

import (
	"context"
	"encoding/json"
	"fmt"

	"go-firestore-ratings/internal/config"

	Firestore "firebase.google.com/go/v4"
	"google.golang.org/api/option"
)

// Open creates the Client selected by cnf.Store.Backend.
func Open(ctx context.Context, cnf config.Config, metrics *Metrics) (Client, error) {
	switch cnf.Store.Backend {
	case config.BackendMemory:
		return NewMemoryStore(cnf.Store, metrics), nil
	case config.BackendFirestore:
		app, err := newFirestoreApp(ctx, cnf.Firebase)
		if err != nil {
			return nil, err
		}
		client, err := app.Firestore(ctx)
		if err != nil {
			return nil, fmt.Errorf("create firestore client: %w", err)
		}
		return NewFirestoreClient(client, cnf, metrics), nil
	}
	return nil, fmt.Errorf("unknown store backend %q", cnf.Store.Backend)
}

func newFirestoreApp(ctx context.Context, cnf config.Firebase) (*Firestore.App, error) {
	creds, err := json.Marshal(cnf)
	if err != nil {
		return nil, fmt.Errorf("marshal firebase credentials: %w", err)
	}

	sa := option.WithCredentialsJSON(creds)
	app, err := Firestore.NewApp(ctx, &Firestore.Config{ProjectID: cnf.ProjectId}, sa)
	if err != nil {
		return nil, fmt.Errorf("create firebase app: %w", err)
	}
	return app, nil
}
