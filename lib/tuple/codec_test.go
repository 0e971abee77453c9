package tuple

import (
	"encoding/binary"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// TestRoundTrip tests that tuples survive Serialize followed by Deserialize
func TestRoundTrip(t *testing.T) {
	tuples := []*Tuple{
		MustOf(Val("a")),
		MustOf(Val("a"), Val("b"), Val("c")),
		MustOf(nil, nil, nil),
		MustOf(Val(""), nil, Val("")),
		MustOf(Val("key"), Val("with \"quotes\" and spaces"), Val("äöü")),
		MustOf(Val("\x00\x00"), Val("*"), nil, Val("x"), Val("long-element-value-0123456789")),
	}

	for i, tup := range tuples {
		data, err := Serialize(tup)
		require.NoError(t, err, "tuple %d", i)
		assert.Len(t, data, tup.SizeBytes())

		back, err := Deserialize(data, len(data))
		require.NoError(t, err, "tuple %d", i)
		assert.True(t, tup.Equal(back), "tuple %d: %s != %s", i, tup, back)
	}
}

func TestSerializeLayout(t *testing.T) {
	data, err := Serialize(MustOf(Val("ab"), nil))
	require.NoError(t, err)

	want := []byte{
		0, 0, 0, 2, // dim
		0, 0, 0, 2, 'a', 'b', // e0
		0, 0, 0, 1, nullSentinel, // e1 = null
	}
	assert.Equal(t, want, data)
}

func TestSerializeErrors(t *testing.T) {
	_, err := Serialize(nil)
	assert.ErrorIs(t, err, ErrSerialization)

	_, err = Serialize(MustOf(Val("\x00")))
	assert.ErrorIs(t, err, ErrSerialization)
}

func TestDeserializeInvalid(t *testing.T) {
	valid, err := Serialize(MustOf(Val("abc"), Val("de")))
	require.NoError(t, err)

	testCases := []struct {
		name string
		data []byte
		size int
		err  error
	}{
		{"nil buffer", nil, 0, ErrNullInput},
		{"too short for dim", []byte{0, 0}, 2, ErrTruncatedBuffer},
		{"zero dimension", []byte{0, 0, 0, 0}, 4, ErrInvalidArity},
		{"negative dimension", []byte{0xff, 0xff, 0xff, 0xff}, 4, ErrInvalidArity},
		{"huge dimension", []byte{0x7f, 0xff, 0xff, 0xff}, 4, ErrTruncatedBuffer},
		{"declared size cuts element", valid, len(valid) - 1, ErrTruncatedBuffer},
		{"element length past end", []byte{0, 0, 0, 1, 0, 0, 0, 9, 'a'}, 9, ErrTruncatedBuffer},
		{"negative element length", []byte{0, 0, 0, 1, 0xff, 0xff, 0xff, 0xff}, 8, ErrTruncatedBuffer},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			_, err := Deserialize(tc.data, tc.size)
			assert.ErrorIs(t, err, tc.err)
		})
	}
}

func TestDeserializePrefix(t *testing.T) {
	a, _ := Serialize(MustOf(Val("a"), nil))
	b, _ := Serialize(MustOf(Val("b"), Val("c")))
	buf := append(append([]byte{}, a...), b...)

	first, n, err := DeserializePrefix(buf)
	require.NoError(t, err)
	assert.Equal(t, len(a), n)
	assert.True(t, first.Equal(MustOf(Val("a"), nil)))

	second, _, err := DeserializePrefix(buf[n:])
	require.NoError(t, err)
	assert.True(t, second.Equal(MustOf(Val("b"), Val("c"))))
}

func TestAppendSerialized(t *testing.T) {
	prefix := binary.BigEndian.AppendUint32(nil, 7)
	out, err := AppendSerialized(prefix, MustOf(Val("x")))
	require.NoError(t, err)
	assert.Equal(t, uint32(7), binary.BigEndian.Uint32(out[:4]))

	back, err := Deserialize(out[4:], len(out)-4)
	require.NoError(t, err)
	assert.True(t, back.Equal(MustOf(Val("x"))))

	out, err = AppendSerialized(prefix, MustOf(Val("\x00")))
	assert.ErrorIs(t, err, ErrSerialization)
	assert.Len(t, out, 4, "failed append must not leave partial data")
}
