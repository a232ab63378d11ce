package database

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"go-firestore-ratings/internal/config"
	ierr "go-firestore-ratings/internal/errors"
	"go-firestore-ratings/internal/eventpublisher/common"
	"go-firestore-ratings/internal/path"

	"github.com/rs/zerolog/log"
)

var ErrClosed = errors.New("store is closed")

type record struct {
	fields     map[string]interface{}
	version    int64
	createTime time.Time
	updateTime time.Time
}

// MemoryStore is the in-process document store. Writes commit under a single mutex that
// is never held while a transaction function runs. Every commit bumps a store wide
// sequence and queues a snapshot to the matching watchers before the mutex is released,
// so all watchers see commits in the same order.
type MemoryStore struct {
	mu          sync.RWMutex
	docs        map[string]*record
	collections map[string]map[string]struct{}
	seq         int64
	closed      bool

	feeds          *common.SubManager[feed]
	docPublisher   *common.PublisherWithFailureThreshold[DocumentSnapshot]
	queryPublisher *common.PublisherWithFailureThreshold[QuerySnapshot]

	cnf     config.Store
	metrics *Metrics
	now     func() time.Time
}

var _ Client = (*MemoryStore)(nil)

func NewMemoryStore(cnf config.Store, metrics *Metrics) *MemoryStore {
	s := &MemoryStore{
		docs:           make(map[string]*record),
		collections:    make(map[string]map[string]struct{}),
		docPublisher:   common.NewPublisherWithFailureThreshold[DocumentSnapshot](cnf.WatchWriteTimeout, cnf.WatchWriteFailureThreshold),
		queryPublisher: common.NewPublisherWithFailureThreshold[QuerySnapshot](cnf.WatchWriteTimeout, cnf.WatchWriteFailureThreshold),
		cnf:            cnf,
		metrics:        metrics,
		now:            func() time.Time { return time.Now().UTC() },
	}

	s.feeds = common.NewSubManager[feed](func(f feed) {
		f.stop(nil)
		s.metrics.watcherRemoved()
	})

	return s
}

func (s *MemoryStore) Get(ctx context.Context, p path.Doc) (Document, error) {
	if err := ctx.Err(); err != nil {
		return Document{}, err
	}
	if err := p.Validate(); err != nil {
		return Document{}, fmt.Errorf("get doc: %w", err)
	}

	s.mu.RLock()
	defer s.mu.RUnlock()

	if s.closed {
		return Document{}, ErrClosed
	}

	doc := s.docOf(p)
	if !doc.Exists {
		return doc, fmt.Errorf("get doc: %w, path: %s", ierr.NotFound, p)
	}
	return doc, nil
}

func (s *MemoryStore) Put(ctx context.Context, p path.Doc, fields map[string]interface{}, opts ...PutOption) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if err := p.Validate(); err != nil {
		return fmt.Errorf("put doc: %w", err)
	}

	o := putOptions{}
	for _, opt := range opts {
		opt(&o)
	}

	normalized, err := normalizeFields(fields)
	if err != nil {
		return fmt.Errorf("put doc: %w, path: %s", err, p)
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return ErrClosed
	}

	s.apply(p, normalized, o.replace, s.now())
	s.seq++
	s.notify([]path.Doc{p})
	return nil
}

func (s *MemoryStore) List(ctx context.Context, q Query) (QuerySnapshot, error) {
	if err := ctx.Err(); err != nil {
		return QuerySnapshot{}, err
	}
	if err := validateQuery(q); err != nil {
		return QuerySnapshot{}, err
	}

	s.mu.RLock()
	defer s.mu.RUnlock()

	if s.closed {
		return QuerySnapshot{}, ErrClosed
	}
	return s.querySnapshot(q, s.seq), nil
}

func (s *MemoryStore) Watch(ctx context.Context, p path.Doc) (*Subscription[DocumentSnapshot], error) {
	if err := p.Validate(); err != nil {
		return nil, fmt.Errorf("watch doc: %w", err)
	}

	key := p.String()
	f := newMemoryFeed(s, ctx, s.docPublisher,
		func(changed path.Doc) bool { return changed.String() == key },
		func(seq int64) DocumentSnapshot { return DocumentSnapshot{Document: s.docOf(p), Seq: seq} })

	if err := s.register(f); err != nil {
		f.cancel()
		return nil, fmt.Errorf("watch doc: %w, path: %s", err, p)
	}
	return f.sub, nil
}

func (s *MemoryStore) WatchQuery(ctx context.Context, q Query) (*Subscription[QuerySnapshot], error) {
	if err := validateQuery(q); err != nil {
		return nil, err
	}

	coll := q.Collection.String()
	f := newMemoryFeed(s, ctx, s.queryPublisher,
		func(changed path.Doc) bool { return changed.Parent().String() == coll },
		func(seq int64) QuerySnapshot { return s.querySnapshot(q, seq) })

	if err := s.register(f); err != nil {
		f.cancel()
		return nil, fmt.Errorf("watch query: %w, collection: %s", err, coll)
	}
	return f.sub, nil
}

// Close stops every watcher. Later calls fail with ErrClosed.
func (s *MemoryStore) Close() error {
	s.mu.Lock()
	s.closed = true
	s.mu.Unlock()

	s.feeds.UnsubscribeAll()
	return nil
}

func (s *MemoryStore) register(f feed) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return ErrClosed
	}

	// the initial snapshot is queued under the same lock as commits, so nothing
	// committed after it can be delivered before it
	f.push(s.seq)
	s.feeds.Subscribe(f)
	s.metrics.watcherAdded()
	f.start()
	return nil
}

// notify queues a snapshot for every watcher matching one of the changed docs.
// s.mu must be held for writing.
func (s *MemoryStore) notify(changed []path.Doc) {
	s.feeds.OnSubscribers(func(f feed) {
		for _, p := range changed {
			if f.matches(p) {
				f.push(s.seq)
				return
			}
		}
	})
}

// apply writes fields into the document at p. s.mu must be held for writing.
func (s *MemoryStore) apply(p path.Doc, fields map[string]interface{}, replace bool, now time.Time) {
	key := p.String()
	rec, ok := s.docs[key]
	if !ok {
		rec = &record{
			fields:     make(map[string]interface{}, len(fields)),
			createTime: now,
		}
		s.docs[key] = rec

		coll := p.Parent().String()
		ids, ok := s.collections[coll]
		if !ok {
			ids = make(map[string]struct{})
			s.collections[coll] = ids
		}
		ids[p.ID()] = struct{}{}
	}

	if replace {
		rec.fields = cloneFields(fields)
	} else {
		for k, v := range fields {
			rec.fields[k] = cloneValue(v)
		}
	}
	rec.version++
	rec.updateTime = now
}

func (s *MemoryStore) version(p path.Doc) int64 {
	if rec, ok := s.docs[p.String()]; ok {
		return rec.version
	}
	return 0
}

// docOf copies the document at p. s.mu must be held.
func (s *MemoryStore) docOf(p path.Doc) Document {
	rec, ok := s.docs[p.String()]
	if !ok {
		return Document{Path: p}
	}
	return Document{
		Path:       p,
		Fields:     cloneFields(rec.fields),
		Version:    rec.version,
		Exists:     true,
		CreateTime: rec.createTime,
		UpdateTime: rec.updateTime,
	}
}

// querySnapshot evaluates q. s.mu must be held.
func (s *MemoryStore) querySnapshot(q Query, seq int64) QuerySnapshot {
	ids := s.collections[q.Collection.String()]
	docs := make([]Document, 0, len(ids))
	for id := range ids {
		docs = append(docs, s.docOf(q.Collection.Doc(id)))
	}

	return QuerySnapshot{
		Query: q,
		Docs:  evaluate(q, docs),
		Seq:   seq,
	}
}

type feed interface {
	matches(changed path.Doc) bool
	// push queues the snapshot at seq. The store mutex must be held.
	push(seq int64)
	start()
	stop(err error)
}

// memoryFeed delivers the snapshots of one watcher in commit order. Committers only
// append to the backlog, a dedicated goroutine writes to the subscriber.
type memoryFeed[T any] struct {
	store     *MemoryStore
	sub       *Subscription[T]
	matchFn   func(path.Doc) bool
	snapshot  func(seq int64) T
	publisher *common.PublisherWithFailureThreshold[T]

	parent context.Context
	ctx    context.Context
	cancel context.CancelFunc

	mu      sync.Mutex
	backlog []T
	signal  chan struct{}
}

func newMemoryFeed[T any](s *MemoryStore, parent context.Context, publisher *common.PublisherWithFailureThreshold[T],
	matchFn func(path.Doc) bool, snapshot func(int64) T) *memoryFeed[T] {

	ctx, cancel := context.WithCancel(parent)
	f := &memoryFeed[T]{
		store:     s,
		matchFn:   matchFn,
		snapshot:  snapshot,
		publisher: publisher,
		parent:    parent,
		ctx:       ctx,
		cancel:    cancel,
		signal:    make(chan struct{}, 1),
	}

	f.sub = newSubscription[T](func() {
		f.cancel()
		f.publisher.Forget(f.sub.ch)
		s.feeds.Unsubscribe(f)
	})
	return f
}

func (f *memoryFeed[T]) matches(changed path.Doc) bool {
	return f.matchFn(changed)
}

func (f *memoryFeed[T]) push(seq int64) {
	if f.sub.stopped() {
		return
	}

	v := f.snapshot(seq)

	f.mu.Lock()
	if len(f.backlog) >= f.store.cnf.WatchMaxBacklog {
		f.mu.Unlock()
		log.Warn().Int("backlog", f.store.cnf.WatchMaxBacklog).Msg("memory store: watcher backlog overflow, dropping watcher")
		f.drop()
		return
	}
	f.backlog = append(f.backlog, v)
	f.mu.Unlock()

	select {
	case f.signal <- struct{}{}:
	default:
	}
}

func (f *memoryFeed[T]) start() {
	go f.run()
}

func (f *memoryFeed[T]) stop(err error) {
	f.sub.stop(err)
}

func (f *memoryFeed[T]) drop() {
	f.store.metrics.watcherDropped()
	f.stop(ierr.SlowConsumer)
}

func (f *memoryFeed[T]) run() {
	defer close(f.sub.ch)

	for {
		v, ok := f.next()
		if !ok {
			return
		}
		if !f.deliver(v) {
			return
		}
	}
}

func (f *memoryFeed[T]) next() (T, bool) {
	var zero T
	for {
		f.mu.Lock()
		if len(f.backlog) > 0 {
			v := f.backlog[0]
			f.backlog[0] = zero
			f.backlog = f.backlog[1:]
			f.mu.Unlock()
			return v, true
		}
		f.mu.Unlock()

		select {
		case <-f.signal:
		case <-f.ctx.Done():
			// a no-op after Cancel, otherwise the watch context ended
			f.stop(f.parent.Err())
			return zero, false
		}
	}
}

func (f *memoryFeed[T]) deliver(v T) bool {
	for {
		err := f.publisher.Publish(f.ctx, f.sub.ch, v)
		switch {
		case err == nil:
			return true
		case errors.Is(err, common.ErrWriteTimeout):
			continue
		case errors.Is(err, common.ErrWriteFailure):
			log.Warn().Msg("memory store: watcher stopped reading, dropping watcher")
			f.drop()
			return false
		default:
			f.stop(f.parent.Err())
			return false
		}
	}
}
