package database

import (
	"errors"
	"strconv"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// source is a hand driven subscription.
func source[T any]() (*Subscription[T], func(T)) {
	sub := newSubscription[T](nil)
	send := func(v T) {
		sub.emit(v)
	}
	return sub, send
}

func TestSubscription_CancelIsIdempotent(t *testing.T) {
	calls := 0
	sub := newSubscription[int](func() { calls++ })

	sub.Cancel()
	sub.Cancel()
	sub.stop(errors.New("late"))

	assert.Equal(t, 1, calls)
	assert.NoError(t, sub.Err())
	assert.False(t, sub.emit(1))

	select {
	case <-sub.Done():
	default:
		t.Fatal("done not closed")
	}
}

func TestMap(t *testing.T) {
	src, send := source[int]()
	dst := Map(src, func(v int) (string, error) {
		if v < 0 {
			return "", errors.New("negative")
		}
		return strconv.Itoa(v * 2), nil
	})

	go send(1)
	assert.Equal(t, "2", receive(t, dst))
	go send(21)
	assert.Equal(t, "42", receive(t, dst))

	go send(-1)
	waitClosed(t, dst)
	assert.EqualError(t, dst.Err(), "negative")

	// the source was cancelled with it
	select {
	case <-src.Done():
	case <-time.After(time.Second):
		t.Fatal("source not cancelled")
	}
}

func TestMap_CancelPropagates(t *testing.T) {
	src, _ := source[int]()
	dst := Map(src, func(v int) (int, error) { return v, nil })

	dst.Cancel()
	waitClosed(t, dst)
	assert.NoError(t, dst.Err())
	assert.NoError(t, src.Err())
	select {
	case <-src.Done():
	default:
		t.Fatal("source not cancelled")
	}
}

func TestMap_SourceErrorPropagates(t *testing.T) {
	src, _ := source[int]()
	dst := Map(src, func(v int) (int, error) { return v, nil })

	boom := errors.New("boom")
	src.stop(boom)
	close(src.ch)

	waitClosed(t, dst)
	assert.ErrorIs(t, dst.Err(), boom)
}

func TestCombine(t *testing.T) {
	a, sendA := source[int]()
	b, sendB := source[string]()
	dst := Combine(a, b, func(x int, y string) (string, error) {
		return strconv.Itoa(x) + y, nil
	})

	// nothing until both sides emitted
	go sendA(1)
	select {
	case v := <-dst.C():
		t.Fatalf("unexpected %q", v)
	case <-time.After(time.Millisecond * 50):
	}

	go sendB("x")
	assert.Equal(t, "1x", receive(t, dst))
	go sendA(2)
	assert.Equal(t, "2x", receive(t, dst))
	go sendB("y")
	assert.Equal(t, "2y", receive(t, dst))

	dst.Cancel()
	waitClosed(t, dst)
	for _, done := range []<-chan struct{}{a.Done(), b.Done()} {
		select {
		case <-done:
		default:
			require.FailNow(t, "source not cancelled")
		}
	}
}
