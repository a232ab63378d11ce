package database

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"go-firestore-ratings/internal/config"
	ierr "go-firestore-ratings/internal/errors"
	"go-firestore-ratings/internal/path"
	"go-firestore-ratings/internal/repository/filter"

	"cloud.google.com/go/firestore"
	"github.com/rs/zerolog/log"
	"google.golang.org/api/iterator"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"
)

const (
	// number of listener errors tolerated before a watch gives up
	errToleranceCap = 20
	// consecutive undelivered snapshots before a listener is stopped
	listenerTimeoutThreshold = 5
	listenerDeliveryTimeout  = time.Second * 10
)

type snapEvent[S any] struct {
	snap S
	err  error
}

// FirestoreClient is the Client backed by Cloud Firestore. Firestore runs the optimistic
// transaction protocol and the snapshot listeners itself, this type maps them onto the
// store contract.
type FirestoreClient struct {
	*firestore.Client
	writeTimeout time.Duration
	maxAttempts  int
	root         string
	metrics      *Metrics
}

var _ Client = FirestoreClient{}

func NewFirestoreClient(client *firestore.Client, cnf config.Config, metrics *Metrics) FirestoreClient {
	return FirestoreClient{
		Client:       client,
		writeTimeout: cnf.Firebase.WriteTimeoutSecond,
		maxAttempts:  cnf.Store.MaxAttempts,
		root:         strings.Trim(cnf.Firebase.RootPath, "/"),
		metrics:      metrics,
	}
}

func (c FirestoreClient) fullPath(p string) string {
	if c.root == "" {
		return p
	}
	return c.root + "/" + p
}

func (c FirestoreClient) doc(p path.Doc) (*firestore.DocumentRef, error) {
	if err := p.Validate(); err != nil {
		return nil, err
	}
	ref := c.Client.Doc(c.fullPath(p.String()))
	if ref == nil {
		return nil, fmt.Errorf("firestore doc: %w, path: %s", ierr.InvalidInput, p)
	}
	return ref, nil
}

func (c FirestoreClient) query(q Query) (firestore.Query, error) {
	if err := validateQuery(q); err != nil {
		return firestore.Query{}, err
	}

	coll := c.Client.Collection(c.fullPath(q.Collection.String()))
	if coll == nil {
		return firestore.Query{}, fmt.Errorf("firestore collection: %w, path: %s", ierr.InvalidInput, q.Collection)
	}

	query := coll.Query
	for _, w := range q.Where {
		query = query.Where(w.Path, w.Op, w.Value)
	}
	for _, o := range q.OrderBy {
		dir := firestore.Asc
		if o.Direction == filter.Desc {
			dir = firestore.Desc
		}
		query = query.OrderBy(o.Path, dir)
	}
	if q.Limit > 0 {
		query = query.Limit(q.Limit)
	}
	return query, nil
}

func (c FirestoreClient) Get(ctx context.Context, p path.Doc) (Document, error) {
	ref, err := c.doc(p)
	if err != nil {
		return Document{}, fmt.Errorf("get doc: %w", err)
	}

	ctx, cancel := context.WithTimeout(ctx, c.writeTimeout)
	defer cancel()

	snap, err := ref.Get(ctx)
	if err != nil {
		if status.Code(err) == codes.NotFound {
			return Document{Path: p}, fmt.Errorf("get doc: %w, path: %s", ierr.NotFound, p)
		}
		return Document{}, fmt.Errorf("get doc: %w, path: %s", err, p)
	}

	return toDocument(p, snap), nil
}

func (c FirestoreClient) Put(ctx context.Context, p path.Doc, fields map[string]interface{}, opts ...PutOption) error {
	ref, err := c.doc(p)
	if err != nil {
		return fmt.Errorf("put doc: %w", err)
	}

	o := putOptions{}
	for _, opt := range opts {
		opt(&o)
	}

	ctx, cancel := context.WithTimeout(ctx, c.writeTimeout)
	defer cancel()

	if o.replace {
		_, err = ref.Set(ctx, fields)
	} else {
		_, err = ref.Set(ctx, fields, firestore.MergeAll)
	}
	if err != nil {
		return fmt.Errorf("put doc: %w, path: %s", mapStatus(err), p)
	}
	return nil
}

func (c FirestoreClient) List(ctx context.Context, q Query) (QuerySnapshot, error) {
	query, err := c.query(q)
	if err != nil {
		return QuerySnapshot{}, err
	}

	snaps, err := query.Documents(ctx).GetAll()
	if err != nil {
		return QuerySnapshot{}, fmt.Errorf("list docs: %w, collection: %s", mapStatus(err), q.Collection)
	}

	out := QuerySnapshot{Query: q, Docs: make([]Document, 0, len(snaps))}
	for _, snap := range snaps {
		out.Docs = append(out.Docs, toDocument(q.Collection.Doc(snap.Ref.ID), snap))
		if seq := snap.ReadTime.UnixNano(); seq > out.Seq {
			out.Seq = seq
		}
	}
	return out, nil
}

func (c FirestoreClient) Transaction(ctx context.Context, fn TxFunc) error {
	attempts := 0
	err := c.Client.RunTransaction(ctx, func(ctx context.Context, ftx *firestore.Transaction) error {
		attempts++
		c.metrics.retried(attempts)
		return fn(ctx, &firestoreTx{client: c, tx: ftx})
	}, firestore.MaxAttempts(c.maxAttempts))

	if err == nil {
		return nil
	}
	if status.Code(err) == codes.Aborted {
		c.metrics.exhausted()
		return fmt.Errorf("run transaction: %w, after %d attempts", ierr.Conflict, c.maxAttempts)
	}
	return mapStatus(err)
}

func (c FirestoreClient) Watch(ctx context.Context, p path.Doc) (*Subscription[DocumentSnapshot], error) {
	ref, err := c.doc(p)
	if err != nil {
		return nil, fmt.Errorf("watch doc: %w", err)
	}

	lctx, cancel := context.WithCancel(ctx)
	it := ref.Snapshots(lctx)
	sub := newSubscription[DocumentSnapshot](cancel)

	go notifyOnChanges(ctx, sub, registerEventListener(lctx, it.Next, it.Stop),
		func(snap *firestore.DocumentSnapshot) (DocumentSnapshot, error) {
			return DocumentSnapshot{Document: toDocument(p, snap), Seq: snap.ReadTime.UnixNano()}, nil
		})

	c.metrics.watcherAdded()
	go func() {
		<-sub.Done()
		c.metrics.watcherRemoved()
	}()
	return sub, nil
}

func (c FirestoreClient) WatchQuery(ctx context.Context, q Query) (*Subscription[QuerySnapshot], error) {
	query, err := c.query(q)
	if err != nil {
		return nil, err
	}

	lctx, cancel := context.WithCancel(ctx)
	it := query.Snapshots(lctx)
	sub := newSubscription[QuerySnapshot](cancel)

	go notifyOnChanges(ctx, sub, registerEventListener(lctx, it.Next, it.Stop),
		func(snap *firestore.QuerySnapshot) (QuerySnapshot, error) {
			docs, err := snap.Documents.GetAll()
			if err != nil {
				return QuerySnapshot{}, err
			}
			out := QuerySnapshot{Query: q, Docs: make([]Document, 0, len(docs)), Seq: snap.ReadTime.UnixNano()}
			for _, d := range docs {
				out.Docs = append(out.Docs, toDocument(q.Collection.Doc(d.Ref.ID), d))
			}
			return out, nil
		})

	c.metrics.watcherAdded()
	go func() {
		<-sub.Done()
		c.metrics.watcherRemoved()
	}()
	return sub, nil
}

// notifyOnChanges converts listener events and hands them to the subscriber.
// The circuit breaker here defines an error rate tolerance cap. If the listener raises
// errors more than the cap, it stops the subscription with the last error.
func notifyOnChanges[S, T any](parent context.Context, sub *Subscription[T], events <-chan snapEvent[S], convert func(S) (T, error)) {
	defer close(sub.ch)

	errCnt := 0
	for event := range events {
		if event.err != nil {
			if isContextErr(event.err) {
				sub.stop(parent.Err())
				return
			}

			log.Error().Err(event.err).Msg("firestore: error reading snapshots")
			errCnt++
			if errCnt < errToleranceCap {
				continue
			}
			sub.stop(mapStatus(event.err))
			return
		}

		v, err := convert(event.snap)
		if err != nil {
			log.Error().Err(err).Msg("firestore: failed to convert snapshot")
			continue
		}

		if !sub.emit(v) {
			return
		}
	}

	// the listener gave up or the context ended
	sub.stop(parent.Err())
}

// registerEventListener keeps the listener open until context is cancelled
func registerEventListener[S any](ctx context.Context, next func() (S, error), stop func()) <-chan snapEvent[S] {

	retry := 0
	c := make(chan snapEvent[S])
	go func() {
		defer close(c)
		defer stop()

		for {
			snap, err := next()
			if errors.Is(err, iterator.Done) {
				return
			}

			select {
			case <-ctx.Done():
				return
			case c <- snapEvent[S]{snap, err}:
				retry = 0
				continue
			case <-time.After(listenerDeliveryTimeout):
				log.Error().Msg("firestore: timed out delivering a snapshot to the subscriber")
				retry++
				if retry > listenerTimeoutThreshold {
					return
				}
			}
		}
	}()

	return c
}

func toDocument(p path.Doc, snap *firestore.DocumentSnapshot) Document {
	if snap == nil || !snap.Exists() {
		return Document{Path: p}
	}
	return Document{
		Path:       p,
		Fields:     snap.Data(),
		Version:    snap.UpdateTime.UnixNano(),
		Exists:     true,
		CreateTime: snap.CreateTime,
		UpdateTime: snap.UpdateTime,
	}
}

func isContextErr(err error) bool {
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return true
	}
	switch status.Code(err) {
	case codes.Canceled, codes.DeadlineExceeded:
		return true
	}
	// The error is not always wrapped properly, so errors.Is() does not work
	return strings.Contains(err.Error(), "context canceled") || strings.Contains(err.Error(), "context deadline exceeded")
}

// mapStatus translates firestore status codes into the store error taxonomy.
func mapStatus(err error) error {
	switch status.Code(err) {
	case codes.NotFound, codes.FailedPrecondition:
		return fmt.Errorf("%w: %v", ierr.PreconditionFailed, err)
	case codes.Aborted:
		return fmt.Errorf("%w: %v", ierr.Conflict, err)
	case codes.InvalidArgument:
		return fmt.Errorf("%w: %v", ierr.InvalidInput, err)
	case codes.AlreadyExists:
		return fmt.Errorf("%w: %v", ierr.AlreadyExists, err)
	}
	return err
}

type firestoreTx struct {
	client FirestoreClient
	tx     *firestore.Transaction
}

var _ Transaction = (*firestoreTx)(nil)

func (t *firestoreTx) Get(p path.Doc) (Document, error) {
	ref, err := t.client.doc(p)
	if err != nil {
		return Document{}, fmt.Errorf("tx get: %w", err)
	}

	snap, err := t.tx.Get(ref)
	if err != nil {
		if status.Code(err) == codes.NotFound {
			return Document{Path: p}, fmt.Errorf("tx get: %w, path: %s", ierr.NotFound, p)
		}
		return Document{}, fmt.Errorf("tx get: %w, path: %s", err, p)
	}
	return toDocument(p, snap), nil
}

func (t *firestoreTx) Set(p path.Doc, fields map[string]interface{}) error {
	ref, err := t.client.doc(p)
	if err != nil {
		return fmt.Errorf("tx set: %w", err)
	}
	return t.tx.Set(ref, fields)
}

func (t *firestoreTx) Update(p path.Doc, fields map[string]interface{}) error {
	ref, err := t.client.doc(p)
	if err != nil {
		return fmt.Errorf("tx update: %w", err)
	}

	updates := make([]firestore.Update, 0, len(fields))
	for k, v := range fields {
		updates = append(updates, firestore.Update{Path: k, Value: v})
	}
	return t.tx.Update(ref, updates)
}
