package wsfeed

import (
	"sync"

	"github.com/google/uuid"
)

// Unsubscribe removes the handler whose registration produced it. Calling
// it more than once is a no-op after the first call.
type Unsubscribe func()

// MessageHandler consumes one decoded inbound frame.
type MessageHandler func(Message)

// EventHandler observes a connection lifecycle transition. Error handlers
// receive the transport error; connect and disconnect handlers receive nil.
type EventHandler func(err error)

type subscription[T any] struct {
	id uuid.UUID
	fn T
}

// handlerList is an ordered set of handlers. Registration order is
// preserved and each registration gets its own handle, so adding the same
// function twice yields two independent removals.
type handlerList[T any] struct {
	mu   sync.RWMutex
	subs []subscription[T]
}

func (l *handlerList[T]) add(fn T) Unsubscribe {
	id := uuid.New()

	l.mu.Lock()
	l.subs = append(l.subs, subscription[T]{id: id, fn: fn})
	l.mu.Unlock()

	var once sync.Once
	return func() {
		once.Do(func() {
			l.remove(id)
		})
	}
}

func (l *handlerList[T]) remove(id uuid.UUID) {
	l.mu.Lock()
	defer l.mu.Unlock()

	for i, sub := range l.subs {
		if sub.id == id {
			l.subs = append(l.subs[:i], l.subs[i+1:]...)
			return
		}
	}
}

func (l *handlerList[T]) empty() bool {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return len(l.subs) == 0
}

// snapshot copies the current handlers so dispatch never holds the lock
// while user code runs.
func (l *handlerList[T]) snapshot() []T {
	l.mu.RLock()
	defer l.mu.RUnlock()

	out := make([]T, len(l.subs))
	for i, sub := range l.subs {
		out[i] = sub.fn
	}
	return out
}

// topicRegistry maps topic names to handler lists. Entries whose last
// handler was removed are pruned so long-lived clients with churny
// consumers do not leak topic keys.
type topicRegistry struct {
	mu     sync.RWMutex
	topics map[string]*handlerList[MessageHandler]
}

func newTopicRegistry() *topicRegistry {
	return &topicRegistry{
		topics: make(map[string]*handlerList[MessageHandler]),
	}
}

func (r *topicRegistry) subscribe(topic string, fn MessageHandler) Unsubscribe {
	r.mu.Lock()
	list, ok := r.topics[topic]
	if !ok {
		list = &handlerList[MessageHandler]{}
		r.topics[topic] = list
	}
	r.mu.Unlock()

	inner := list.add(fn)

	var once sync.Once
	return func() {
		once.Do(func() {
			inner()
			r.prune(topic)
		})
	}
}

func (r *topicRegistry) prune(topic string) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if list, ok := r.topics[topic]; ok && list.empty() {
		delete(r.topics, topic)
	}
}

func (r *topicRegistry) handlers(topic string) []MessageHandler {
	r.mu.RLock()
	list, ok := r.topics[topic]
	r.mu.RUnlock()

	if !ok {
		return nil
	}
	return list.snapshot()
}

func (r *topicRegistry) has(topic string) bool {
	r.mu.RLock()
	defer r.mu.RUnlock()
	_, ok := r.topics[topic]
	return ok
}
