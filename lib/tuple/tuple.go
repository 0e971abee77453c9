package tuple

import (
	"encoding/json"
	"errors"
	"fmt"
)

// --------------------------------------------------------------------------
// Errors
// --------------------------------------------------------------------------

var (
	// ErrInvalidArity is returned when a tuple is created with a non-positive dimension
	// or when the number of values does not match the requested dimension.
	ErrInvalidArity = errors.New("tuple: invalid arity")
	// ErrNullInput is returned when a nil tuple or nil value list is passed where one is required.
	ErrNullInput = errors.New("tuple: null input")
	// ErrSerialization is returned when a tuple cannot be encoded.
	ErrSerialization = errors.New("tuple: serialization error")
	// ErrTruncatedBuffer is returned when a buffer ends before the data it announces.
	ErrTruncatedBuffer = errors.New("tuple: truncated buffer")
)

// DefaultDimension is the arity used by the CLI and the servers unless configured otherwise.
const DefaultDimension = 3

// --------------------------------------------------------------------------
// Tuple Type
// --------------------------------------------------------------------------

// Tuple is an ordered sequence of a fixed number of optional strings.
// Element 0 is the key. A nil element is the null value when the tuple is stored
// and a wildcard when the tuple is used as a template.
//
// The dimension is set on creation and never changes.
type Tuple struct {
	elems []*string
}

// New creates a tuple with dim null elements.
func New(dim int) (*Tuple, error) {
	if dim <= 0 {
		return nil, fmt.Errorf("%w: dimension %d", ErrInvalidArity, dim)
	}
	return &Tuple{elems: make([]*string, dim)}, nil
}

// NewFrom creates a tuple of dimension dim holding deep copies of values.
func NewFrom(dim int, values []*string) (*Tuple, error) {
	if values == nil {
		return nil, ErrNullInput
	}
	if dim <= 0 || len(values) != dim {
		return nil, fmt.Errorf("%w: dimension %d with %d values", ErrInvalidArity, dim, len(values))
	}
	t := &Tuple{elems: make([]*string, dim)}
	for i, v := range values {
		t.elems[i] = copyElem(v)
	}
	return t, nil
}

// Of creates a tuple whose dimension is the number of values given.
func Of(values ...*string) (*Tuple, error) {
	if values == nil {
		return nil, ErrNullInput
	}
	return NewFrom(len(values), values)
}

// MustOf is like Of but panics on error. Intended for literals and tests.
func MustOf(values ...*string) *Tuple {
	t, err := Of(values...)
	if err != nil {
		panic(err)
	}
	return t
}

// Strings creates a tuple without null elements.
func Strings(values ...string) (*Tuple, error) {
	elems := make([]*string, len(values))
	for i := range values {
		elems[i] = &values[i]
	}
	return Of(elems...)
}

// Val returns a pointer to a copy of s, handy for building tuples with Of.
func Val(s string) *string {
	return &s
}

// Dup returns an independent deep copy of t.
func Dup(t *Tuple) (*Tuple, error) {
	if t == nil {
		return nil, ErrNullInput
	}
	return t.Dup(), nil
}

// Dup returns an independent deep copy of the tuple.
func (t *Tuple) Dup() *Tuple {
	c := &Tuple{elems: make([]*string, len(t.elems))}
	for i, v := range t.elems {
		c.elems[i] = copyElem(v)
	}
	return c
}

// Dim returns the dimension of the tuple.
func (t *Tuple) Dim() int {
	return len(t.elems)
}

// Key returns element 0 and whether it is set.
func (t *Tuple) Key() (string, bool) {
	return t.Element(0)
}

// Element returns element i and whether it is set (non-null).
func (t *Tuple) Element(i int) (string, bool) {
	if i < 0 || i >= len(t.elems) || t.elems[i] == nil {
		return "", false
	}
	return *t.elems[i], true
}

// Set stores a copy of v at position i.
func (t *Tuple) Set(i int, v string) {
	t.elems[i] = &v
}

// SetNull clears position i.
func (t *Tuple) SetNull(i int) {
	t.elems[i] = nil
}

// Equal reports whether both tuples have the same dimension and the same elements.
// A null element is only equal to a null element.
func (t *Tuple) Equal(o *Tuple) bool {
	if t == nil || o == nil {
		return t == o
	}
	if len(t.elems) != len(o.elems) {
		return false
	}
	for i := range t.elems {
		a, b := t.elems[i], o.elems[i]
		if (a == nil) != (b == nil) {
			return false
		}
		if a != nil && *a != *b {
			return false
		}
	}
	return true
}

// Matches reports whether t matches template: every non-null template element must
// equal the element of t at the same position. Null template elements match anything.
func (t *Tuple) Matches(template *Tuple) bool {
	if template == nil || len(t.elems) != len(template.elems) {
		return false
	}
	for i, want := range template.elems {
		if want == nil {
			continue
		}
		got := t.elems[i]
		if got == nil || *got != *want {
			return false
		}
	}
	return true
}

// --------------------------------------------------------------------------
// JSON (used by the debug serializer)
// --------------------------------------------------------------------------

// MarshalJSON encodes the tuple as an array of strings and nulls.
func (t *Tuple) MarshalJSON() ([]byte, error) {
	return json.Marshal(t.elems)
}

// UnmarshalJSON decodes an array of strings and nulls.
func (t *Tuple) UnmarshalJSON(data []byte) error {
	var elems []*string
	if err := json.Unmarshal(data, &elems); err != nil {
		return err
	}
	if len(elems) == 0 {
		return fmt.Errorf("%w: empty tuple", ErrInvalidArity)
	}
	t.elems = elems
	return nil
}

func copyElem(v *string) *string {
	if v == nil {
		return nil
	}
	c := *v
	return &c
}
