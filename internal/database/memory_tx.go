package database

import (
	"context"
	"errors"
	"fmt"

	ierr "go-firestore-ratings/internal/errors"
	"go-firestore-ratings/internal/path"

	"github.com/rs/zerolog/log"
)

var errStaleRead = errors.New("stale read")

type stagedWrite struct {
	path   path.Doc
	fields map[string]interface{}
	update bool
}

type memoryTx struct {
	store  *MemoryStore
	reads  map[string]Document
	writes []stagedWrite
}

var _ Transaction = (*memoryTx)(nil)

// Transaction runs fn against pinned reads and commits its staged writes if none of the
// documents it read changed meanwhile. A stale attempt is thrown away and fn runs again,
// at most cnf.MaxAttempts times. An error returned by fn aborts without a retry.
func (s *MemoryStore) Transaction(ctx context.Context, fn TxFunc) error {
	for attempt := 1; attempt <= s.cnf.MaxAttempts; attempt++ {
		if err := ctx.Err(); err != nil {
			return err
		}

		s.metrics.attempt()
		tx := &memoryTx{
			store: s,
			reads: make(map[string]Document),
		}

		if err := fn(ctx, tx); err != nil {
			return err
		}

		err := s.commit(tx)
		if err == nil {
			return nil
		}
		if !errors.Is(err, errStaleRead) {
			return err
		}

		s.metrics.conflict()
		log.Debug().Int("attempt", attempt).Msg("memory store: transaction read went stale, retrying")
	}

	s.metrics.exhausted()
	return fmt.Errorf("run transaction: %w, after %d attempts", ierr.Conflict, s.cnf.MaxAttempts)
}

func (s *MemoryStore) commit(tx *memoryTx) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return ErrClosed
	}

	for key, read := range tx.reads {
		if s.version(read.Path) != read.Version {
			log.Debug().Str("path", key).Msg("memory store: version changed since read")
			return errStaleRead
		}
	}

	if len(tx.writes) == 0 {
		return nil
	}

	// every update target must exist before anything is applied
	created := make(map[string]struct{})
	for _, w := range tx.writes {
		key := w.path.String()
		if w.update {
			if _, ok := created[key]; !ok && s.version(w.path) == 0 {
				return fmt.Errorf("commit update: %w, doc does not exist, path: %s", ierr.PreconditionFailed, key)
			}
		}
		created[key] = struct{}{}
	}

	now := s.now()
	changed := make([]path.Doc, 0, len(tx.writes))
	for _, w := range tx.writes {
		s.apply(w.path, w.fields, !w.update, now)
		changed = append(changed, w.path)
	}

	s.seq++
	s.notify(changed)
	return nil
}

func (tx *memoryTx) Get(p path.Doc) (Document, error) {
	if err := p.Validate(); err != nil {
		return Document{}, fmt.Errorf("tx get: %w", err)
	}
	if len(tx.writes) > 0 {
		return Document{}, fmt.Errorf("tx get: %w, read after write, path: %s", ierr.PreconditionFailed, p)
	}

	key := p.String()
	doc, ok := tx.reads[key]
	if !ok {
		tx.store.mu.RLock()
		if tx.store.closed {
			tx.store.mu.RUnlock()
			return Document{}, ErrClosed
		}
		doc = tx.store.docOf(p)
		tx.store.mu.RUnlock()
		tx.reads[key] = doc
	}

	doc.Fields = cloneFields(doc.Fields)
	if !doc.Exists {
		return doc, fmt.Errorf("tx get: %w, path: %s", ierr.NotFound, p)
	}
	return doc, nil
}

func (tx *memoryTx) Set(p path.Doc, fields map[string]interface{}) error {
	return tx.stage(p, fields, false)
}

func (tx *memoryTx) Update(p path.Doc, fields map[string]interface{}) error {
	if read, ok := tx.reads[p.String()]; ok && !read.Exists {
		return fmt.Errorf("tx update: %w, doc does not exist, path: %s", ierr.PreconditionFailed, p)
	}
	return tx.stage(p, fields, true)
}

func (tx *memoryTx) stage(p path.Doc, fields map[string]interface{}, update bool) error {
	if err := p.Validate(); err != nil {
		return fmt.Errorf("tx write: %w", err)
	}

	normalized, err := normalizeFields(fields)
	if err != nil {
		return fmt.Errorf("tx write: %w, path: %s", err, p)
	}

	tx.writes = append(tx.writes, stagedWrite{path: p, fields: normalized, update: update})
	return nil
}
