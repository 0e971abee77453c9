package tuple

import (
	"fmt"
	"strconv"
	"strings"
)

// NullLiteral is the unquoted token that stands for a null element in the textual form.
const NullLiteral = "*"

// String renders the tuple in its textual form, e.g. `"a" "b" *`. Elements are quoted
// with Go escaping rules, so Parse reads them back unchanged.
func (t *Tuple) String() string {
	if t == nil {
		return "<nil>"
	}
	var sb strings.Builder
	for i, e := range t.elems {
		if i > 0 {
			sb.WriteByte(' ')
		}
		if e == nil {
			sb.WriteString(NullLiteral)
		} else {
			sb.WriteString(strconv.Quote(*e))
		}
	}
	return sb.String()
}

// Parse reads a tuple from its textual form. Elements are double quoted strings (with
// backslash escapes, e.g. "say \"hi\"") or the bare null literal and are separated by
// whitespace. The number of elements must equal dim.
func Parse(text string, dim int) (*Tuple, error) {
	t, err := New(dim)
	if err != nil {
		return nil, err
	}

	s := text
	for i := 0; i < dim; i++ {
		s = strings.TrimLeft(s, " \t\r\n")
		switch {
		case s == "":
			return nil, fmt.Errorf("%w: expected %d elements in %q, got %d", ErrInvalidArity, dim, text, i)
		case strings.HasPrefix(s, NullLiteral):
			t.SetNull(i)
			s = s[len(NullLiteral):]
		case s[0] == '"':
			quoted, err := strconv.QuotedPrefix(s)
			if err != nil {
				return nil, fmt.Errorf("unterminated or malformed element %d in %q", i, text)
			}
			v, err := strconv.Unquote(quoted)
			if err != nil {
				return nil, fmt.Errorf("element %d in %q: %w", i, text, err)
			}
			t.Set(i, v)
			s = s[len(quoted):]
		default:
			return nil, fmt.Errorf("element %d in %q must be quoted or %s", i, text, NullLiteral)
		}
	}

	if rest := strings.TrimSpace(s); rest != "" {
		return nil, fmt.Errorf("%w: unexpected trailing input %q", ErrInvalidArity, rest)
	}
	return t, nil
}
