package tuple

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNew(t *testing.T) {
	for _, dim := range []int{-1, 0} {
		_, err := New(dim)
		assert.ErrorIs(t, err, ErrInvalidArity, "dim %d", dim)
	}

	tup, err := New(3)
	require.NoError(t, err)
	assert.Equal(t, 3, tup.Dim())
	_, ok := tup.Key()
	assert.False(t, ok, "fresh tuple should only hold nulls")
}

func TestNewFrom(t *testing.T) {
	_, err := NewFrom(3, nil)
	assert.ErrorIs(t, err, ErrNullInput)

	_, err = NewFrom(2, []*string{Val("a")})
	assert.ErrorIs(t, err, ErrInvalidArity)

	src := []*string{Val("a"), nil, Val("c")}
	tup, err := NewFrom(3, src)
	require.NoError(t, err)

	// mutating the source must not leak into the tuple
	*src[0] = "changed"
	k, ok := tup.Key()
	assert.True(t, ok)
	assert.Equal(t, "a", k)

	_, ok = tup.Element(1)
	assert.False(t, ok)
}

func TestDupIsDeep(t *testing.T) {
	_, err := Dup(nil)
	assert.ErrorIs(t, err, ErrNullInput)

	orig := MustOf(Val("a"), Val("b"), nil)
	cp, err := Dup(orig)
	require.NoError(t, err)
	assert.True(t, orig.Equal(cp))

	cp.Set(1, "x")
	v, _ := orig.Element(1)
	assert.Equal(t, "b", v)
	assert.False(t, orig.Equal(cp))
}

func TestMatches(t *testing.T) {
	stored := MustOf(Val("a"), Val("b"), nil)

	testCases := []struct {
		name     string
		template *Tuple
		want     bool
	}{
		{"all wildcards", MustOf(nil, nil, nil), true},
		{"key only", MustOf(Val("a"), nil, nil), true},
		{"exact", MustOf(Val("a"), Val("b"), nil), true},
		{"wrong key", MustOf(Val("z"), nil, nil), false},
		{"concrete against stored null", MustOf(nil, nil, Val("c")), false},
		{"empty string is not null", MustOf(nil, Val(""), nil), false},
		{"other arity", MustOf(Val("a"), nil), false},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			assert.Equal(t, tc.want, stored.Matches(tc.template))
		})
	}
}

func TestTextualForm(t *testing.T) {
	tup := MustOf(Val("a b"), nil, Val(""))
	assert.Equal(t, `"a b" * ""`, tup.String())

	parsed, err := Parse(tup.String(), 3)
	require.NoError(t, err)
	assert.True(t, tup.Equal(parsed))

	_, err = Parse(`"a" "b"`, 3)
	assert.ErrorIs(t, err, ErrInvalidArity)

	_, err = Parse(`"a" "b" "c" "d"`, 3)
	assert.ErrorIs(t, err, ErrInvalidArity)

	_, err = Parse(`"a" b "c"`, 3)
	assert.Error(t, err)

	_, err = Parse(`"a" "b" "c`, 3)
	assert.Error(t, err)

	_, err = Parse(`"a" "b\q" "c"`, 3)
	assert.Error(t, err)
}

func TestTextualFormEscapes(t *testing.T) {
	tup := MustOf(Val(`say "hi"`), Val(`back\slash`), Val("tab\there\n"))
	assert.Equal(t, `"say \"hi\"" "back\\slash" "tab\there\n"`, tup.String())

	parsed, err := Parse(tup.String(), 3)
	require.NoError(t, err)
	assert.True(t, tup.Equal(parsed), "got %s", parsed)

	parsed, err = Parse(`"\"" * "x"`, 3)
	require.NoError(t, err)
	v, ok := parsed.Element(0)
	assert.True(t, ok)
	assert.Equal(t, `"`, v)
}

func TestJSON(t *testing.T) {
	tup := MustOf(Val("k"), nil, Val("v"))
	data, err := json.Marshal(tup)
	require.NoError(t, err)
	assert.JSONEq(t, `["k", null, "v"]`, string(data))

	var back Tuple
	require.NoError(t, json.Unmarshal(data, &back))
	assert.True(t, tup.Equal(&back))

	assert.Error(t, json.Unmarshal([]byte(`[]`), &back))
}
