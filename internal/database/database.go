package database

import (
	"context"
	"time"

	"go-firestore-ratings/internal/database/utils"
	"go-firestore-ratings/internal/path"
	"go-firestore-ratings/internal/repository/filter"
)

// Document is a point-in-time copy of a stored document.
// Version changes on every successful write and is used for optimistic concurrency.
type Document struct {
	Path       path.Doc
	Fields     map[string]interface{}
	Version    int64
	Exists     bool
	CreateTime time.Time
	UpdateTime time.Time
}

// DataTo decodes the document fields into v, see utils.DataTo.
func (d Document) DataTo(v interface{}) error {
	return utils.DataTo(d.Fields, v)
}

// DocumentSnapshot is emitted by a document watch. Seq increases with every commit the
// watcher observes.
type DocumentSnapshot struct {
	Document
	Seq int64
}

// QuerySnapshot is the full ordered result of a query at one commit.
type QuerySnapshot struct {
	Query Query
	Docs  []Document
	Seq   int64
}

// Query selects documents of a single collection.
type Query struct {
	Collection path.Collection
	Where      []filter.Where
	OrderBy    []filter.OrderBy
	Limit      int
}

type putOptions struct {
	replace bool
}

type PutOption func(*putOptions)

// Replace makes Put overwrite the whole field set instead of merging top-level fields.
func Replace() PutOption {
	return func(o *putOptions) {
		o.replace = true
	}
}

// Transaction is the view handed to a transaction function. Reads are pinned: the first
// Get of a document fixes the version the attempt is validated against.
type Transaction interface {
	// Get returns the pinned document. A missing document is returned with Exists
	// false together with an error wrapping errors.NotFound.
	Get(p path.Doc) (Document, error)
	// Set stages a create-or-overwrite of the whole document.
	Set(p path.Doc, fields map[string]interface{}) error
	// Update stages a merge of top-level fields into an existing document.
	Update(p path.Doc, fields map[string]interface{}) error
}

// TxFunc runs inside a transaction and may be invoked several times.
type TxFunc func(ctx context.Context, tx Transaction) error

// Client is the document store used by every repository.
type Client interface {
	Get(ctx context.Context, p path.Doc) (Document, error)
	Put(ctx context.Context, p path.Doc, fields map[string]interface{}, opts ...PutOption) error
	List(ctx context.Context, q Query) (QuerySnapshot, error)
	Transaction(ctx context.Context, fn TxFunc) error
	// Watch streams the document, starting with its current state. The caller owns the
	// subscription and must cancel it.
	Watch(ctx context.Context, p path.Doc) (*Subscription[DocumentSnapshot], error)
	// WatchQuery streams the full result set of q after every relevant commit. The caller
	// owns the subscription and must cancel it.
	WatchQuery(ctx context.Context, q Query) (*Subscription[QuerySnapshot], error)
	Close() error
}
