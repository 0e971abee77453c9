package table

import (
	"errors"
	"fmt"

	"github.com/ValentinKolb/dTS/lib/tuple"
)

var (
	// ErrInvalidSlots is returned when a table is created with a non-positive slot count.
	ErrInvalidSlots = errors.New("table: slot count must be positive")
	// ErrNoSlot is returned when a tuple without a key is stored.
	ErrNoSlot = errors.New("table: tuple has no key")
)

// Mode tells Get whether matching tuples stay in the table.
type Mode int

const (
	// Keep returns copies and leaves the table unchanged.
	Keep Mode = iota
	// Remove detaches matching tuples and returns them.
	Remove
)

func (m Mode) String() string {
	switch m {
	case Keep:
		return "keep"
	case Remove:
		return "remove"
	default:
		return fmt.Sprintf("Mode(%d)", int(m))
	}
}

// Scope tells Get how many tuples to collect.
type Scope int

const (
	// One stops at the first slot that produced a match.
	One Scope = iota
	// All collects every match.
	All
)

func (s Scope) String() string {
	switch s {
	case One:
		return "one"
	case All:
		return "all"
	default:
		return fmt.Sprintf("Scope(%d)", int(s))
	}
}

// TupleStore is the set of operations shared by Table and its synchronized wrapper.
type TupleStore interface {
	// Put stores a copy of t in the slot of its key. Duplicates are allowed.
	Put(t *tuple.Tuple) error
	// Get returns the tuples matching template. See Table.Get for the search order.
	Get(template *tuple.Tuple, mode Mode, scope Scope) ([]*tuple.Tuple, error)
	// Delete removes matching tuples. Deleting nothing is not an error.
	Delete(template *tuple.Tuple, scope Scope) error
	// Size returns the number of stored tuples.
	Size() int
	// Slots returns the number of slots.
	Slots() int
	// Info reports how the tuples are spread across the slots.
	Info() Info
}

// Table is a hash-bucketed store of tuples. Each slot is an ordered slice of entries in
// insertion order. A Table is not safe for concurrent use; see NewSynchronized.
type Table struct {
	slots [][]*tuple.Tuple
	size  int
}

// New creates an empty table with the given number of slots.
func New(slots int) (*Table, error) {
	if slots <= 0 {
		return nil, fmt.Errorf("%w: %d", ErrInvalidSlots, slots)
	}
	return &Table{slots: make([][]*tuple.Tuple, slots)}, nil
}

// Slots returns the number of slots. It never changes.
func (tb *Table) Slots() int {
	return len(tb.slots)
}

// Size returns the number of stored tuples.
func (tb *Table) Size() int {
	return tb.size
}

// Put appends a deep copy of t to the tail of its slot.
func (tb *Table) Put(t *tuple.Tuple) error {
	if t == nil {
		return tuple.ErrNullInput
	}
	idx := tb.slotOf(t)
	if idx == NoSlot {
		return fmt.Errorf("%w: %s", ErrNoSlot, t)
	}
	tb.slots[idx] = append(tb.slots[idx], t.Dup())
	tb.size++
	return nil
}

// Get collects the tuples matching template.
//
// With a concrete key only the slot of that key is searched. With a wildcard key all
// slots are searched in index order; with scope One the search stops after the first
// slot that produced a match. In Keep mode copies are returned, in Remove mode the
// stored tuples themselves are detached and returned. The result is empty, never nil,
// when nothing matched.
func (tb *Table) Get(template *tuple.Tuple, mode Mode, scope Scope) ([]*tuple.Tuple, error) {
	if template == nil {
		return nil, tuple.ErrNullInput
	}

	result := make([]*tuple.Tuple, 0)

	if _, ok := template.Key(); ok {
		idx := tb.slotOf(template)
		if idx == NoSlot {
			// empty concrete key, nothing can be stored there
			return result, nil
		}
		return tb.collect(idx, template, mode, scope, result), nil
	}

	for idx := range tb.slots {
		before := len(result)
		result = tb.collect(idx, template, mode, scope, result)
		if scope == One && len(result) > before {
			break
		}
	}
	return result, nil
}

// Delete removes the tuples matching template and discards them.
func (tb *Table) Delete(template *tuple.Tuple, scope Scope) error {
	_, err := tb.Get(template, Remove, scope)
	return err
}

// Info reports the slot distribution of the table.
func (tb *Table) Info() Info {
	return newInfo(tb.slots, tb.size)
}

// collect appends matches of slot idx to result. With scope One only the first match of
// the slot is taken.
func (tb *Table) collect(idx int, template *tuple.Tuple, mode Mode, scope Scope, result []*tuple.Tuple) []*tuple.Tuple {
	slot := tb.slots[idx]

	if mode == Keep {
		for _, t := range slot {
			if t.Matches(template) {
				result = append(result, t.Dup())
				if scope == One {
					break
				}
			}
		}
		return result
	}

	// compact the slot in place, preserving the order of the remaining entries
	kept := slot[:0]
	taken := false
	for _, t := range slot {
		if !(scope == One && taken) && t.Matches(template) {
			result = append(result, t)
			taken = true
			tb.size--
			continue
		}
		kept = append(kept, t)
	}
	clear(slot[len(kept):])
	tb.slots[idx] = kept
	return result
}

func (tb *Table) slotOf(t *tuple.Tuple) int {
	key, ok := t.Key()
	if !ok {
		return NoSlot
	}
	return SlotIndex(&key, len(tb.slots))
}
