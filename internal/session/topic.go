package session

import (
	"log/slog"
	"sync"
)

// topic fans values out to subscribers. Each subscriber channel holds one
// value; a newer value replaces an unread one, so slow readers always see
// the latest state.
type topic[T any] struct {
	name string

	mu     sync.Mutex
	subs   map[uint64]chan T
	nextID uint64
}

func (t *topic[T]) subscribe() (<-chan T, func()) {
	t.mu.Lock()
	defer t.mu.Unlock()

	if t.subs == nil {
		t.subs = make(map[uint64]chan T)
	}
	id := t.nextID
	t.nextID++
	ch := make(chan T, 1)
	t.subs[id] = ch
	slog.Debug("session subscriber added", "topic", t.name, "id", id)

	var once sync.Once
	return ch, func() {
		once.Do(func() { t.unsubscribe(id) })
	}
}

func (t *topic[T]) unsubscribe(id uint64) {
	t.mu.Lock()
	defer t.mu.Unlock()

	ch, ok := t.subs[id]
	if !ok {
		return
	}
	delete(t.subs, id)
	close(ch)
	slog.Debug("session subscriber removed", "topic", t.name, "id", id)
}

// publish must be called with t.mu held.
func (t *topic[T]) publishLocked(v T) {
	for _, ch := range t.subs {
		select {
		case ch <- v:
		default:
			select {
			case <-ch:
			default:
			}
			ch <- v
		}
	}
}

func (t *topic[T]) subscribers() int {
	t.mu.Lock()
	defer t.mu.Unlock()
	return len(t.subs)
}
