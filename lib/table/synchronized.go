package table

import (
	"sync"

	"github.com/ValentinKolb/dTS/lib/tuple"
)

type synchronized struct {
	mu sync.Mutex
	tb *Table
}

// NewSynchronized wraps tb so that every operation runs under a single mutex.
// Use it when the table is shared by several connections.
func NewSynchronized(tb *Table) TupleStore {
	return &synchronized{tb: tb}
}

func (s *synchronized) Put(t *tuple.Tuple) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.tb.Put(t)
}

func (s *synchronized) Get(template *tuple.Tuple, mode Mode, scope Scope) ([]*tuple.Tuple, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.tb.Get(template, mode, scope)
}

func (s *synchronized) Delete(template *tuple.Tuple, scope Scope) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.tb.Delete(template, scope)
}

func (s *synchronized) Size() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.tb.Size()
}

func (s *synchronized) Slots() int {
	return s.tb.Slots()
}

func (s *synchronized) Info() Info {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.tb.Info()
}
