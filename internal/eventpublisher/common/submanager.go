package common

import (
	"sync"
)

// SubManager keeps a set of subscribers. onRemove runs once for every subscriber
// leaving the set, outside of the manager's lock.
type SubManager[S comparable] struct {
	subscribers    map[S]struct{}
	subscriptionMu sync.RWMutex
	onRemove       func(S)
}

func NewSubManager[S comparable](onRemove func(S)) *SubManager[S] {
	return &SubManager[S]{
		subscribers:    make(map[S]struct{}),
		subscriptionMu: sync.RWMutex{},
		onRemove:       onRemove,
	}
}

func (m *SubManager[S]) Subscribe(subscriber S) {
	m.subscriptionMu.Lock()
	defer m.subscriptionMu.Unlock()

	if _, ok := m.subscribers[subscriber]; !ok {
		m.subscribers[subscriber] = struct{}{}
	}
}

func (m *SubManager[S]) Unsubscribe(subscriber S) {
	m.subscriptionMu.Lock()
	// only act on the subscribed ones
	if _, ok := m.subscribers[subscriber]; !ok {
		m.subscriptionMu.Unlock()
		return
	}
	delete(m.subscribers, subscriber)
	m.subscriptionMu.Unlock()

	if m.onRemove != nil {
		m.onRemove(subscriber)
	}
}

func (m *SubManager[S]) UnsubscribeAll() {
	m.OnSubscribers(m.Unsubscribe)
}

func (m *SubManager[S]) Len() int {
	m.subscriptionMu.RLock()
	defer m.subscriptionMu.RUnlock()
	return len(m.subscribers)
}

func (m *SubManager[S]) OnSubscribers(do func(S)) {
	m.subscriptionMu.RLock()

	// Caution: The 'do' function may modify the 'subscribers' map during iteration.
	// To avoid unexpected bugs caused by deletion on the iterating map,
	// we create a separate list of subscribers for processing.
	subsCopy := make([]S, 0, len(m.subscribers))
	for subscriber := range m.subscribers {
		subsCopy = append(subsCopy, subscriber)
	}
	m.subscriptionMu.RUnlock()

	for _, subscriber := range subsCopy {
		do(subscriber)
	}
}
