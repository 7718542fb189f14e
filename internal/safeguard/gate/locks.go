package gate

import (
	"sort"
	"sync"

	id "fundgate/pkg/domain"
)

// scopeLocks serialises check-then-record sequences per quota scope. The
// zero value is ready to use.
type scopeLocks struct {
	mu    sync.Mutex
	locks map[id.Scope]*sync.Mutex
}

func (l *scopeLocks) get(scope id.Scope) *sync.Mutex {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.locks == nil {
		l.locks = make(map[id.Scope]*sync.Mutex)
	}
	m, ok := l.locks[scope]
	if !ok {
		m = &sync.Mutex{}
		l.locks[scope] = m
	}
	return m
}

// lock acquires every scope lock in sorted order and returns the matching
// unlock. Sorted acquisition keeps concurrent multi-scope holders from
// deadlocking each other.
func (l *scopeLocks) lock(scopes []id.Scope) func() {
	ordered := make([]id.Scope, len(scopes))
	copy(ordered, scopes)
	sort.Slice(ordered, func(i, j int) bool { return ordered[i] < ordered[j] })

	held := make([]*sync.Mutex, 0, len(ordered))
	for _, scope := range ordered {
		m := l.get(scope)
		m.Lock()
		held = append(held, m)
	}
	return func() {
		for i := len(held) - 1; i >= 0; i-- {
			held[i].Unlock()
		}
	}
}
