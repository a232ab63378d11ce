package common

import (
	"context"
	"fmt"
	"sync"
	"time"
)

var (
	ErrWriteFailure = fmt.Errorf("write failure threshold exceeded")
	ErrWriteTimeout = fmt.Errorf("write timed out")
)

// PublisherWithFailureThreshold writes events to subscriber channels with a timeout.
// A subscriber that times out writeFailureThreshold times in a row is reported with ErrWriteFailure.
type PublisherWithFailureThreshold[T any] struct {
	writeTimeout          time.Duration
	writeFailureThreshold int
	failureCount          map[chan<- T]int
	failureMu             sync.Mutex
}

func NewPublisherWithFailureThreshold[T any](writeTimeout time.Duration, writeFailureThreshold int) *PublisherWithFailureThreshold[T] {
	return &PublisherWithFailureThreshold[T]{
		writeTimeout:          writeTimeout,
		writeFailureThreshold: writeFailureThreshold,
		failureCount:          make(map[chan<- T]int),
		failureMu:             sync.Mutex{},
	}
}

// Publish returns nil on delivery, ErrWriteTimeout when the write timed out and the
// subscriber is still under the threshold, ErrWriteFailure once the threshold is reached,
// or the context error if ctx itself is done.
func (p *PublisherWithFailureThreshold[T]) Publish(ctx context.Context, subscriber chan<- T, e T) (err error) {

	defer func() {
		// Since the subscriber channel may be closed after some failures,
		// it may happen that another execution of this func tries to write
		// on a closed subscriber and it causes a panic that should be recovered silently.
		if p := recover(); p != nil {
			err = ErrWriteFailure
		}
	}()

	if err := ctx.Err(); err != nil {
		return err
	}

	wctx, cancel := context.WithTimeout(ctx, p.writeTimeout)
	defer cancel()

	select {
	case subscriber <- e:
		p.failureMu.Lock()
		delete(p.failureCount, subscriber)
		p.failureMu.Unlock()
		return nil
	case <-wctx.Done():
		if ctx.Err() != nil {
			return ctx.Err()
		}

		p.failureMu.Lock()
		count := p.failureCount[subscriber] + 1
		p.failureCount[subscriber] = count
		p.failureMu.Unlock()

		if count >= p.writeFailureThreshold {
			return ErrWriteFailure
		}
		return ErrWriteTimeout
	}
}

// Forget drops the failure bookkeeping of a subscriber that went away.
func (p *PublisherWithFailureThreshold[T]) Forget(subscriber chan<- T) {
	p.failureMu.Lock()
	defer p.failureMu.Unlock()
	delete(p.failureCount, subscriber)
}
