package serializer

import (
	"encoding/binary"
	"testing"

	"github.com/ValentinKolb/dTS/lib/tuple"
	"github.com/ValentinKolb/dTS/rpc/common"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// testSerializers is a map of serializer name to factory function
var testSerializers = map[string]func() IRPCSerializer{
	"JSON":   NewJSONSerializer,
	"Binary": NewBinarySerializer,
}

func tup(values ...*string) *tuple.Tuple {
	return tuple.MustOf(values...)
}

var v = tuple.Val

// testMessages creates a set of test messages covering every content type
func testMessages() []common.Message {
	return []common.Message{
		*common.NewSizeRequest(),
		*common.NewQuitRequest(),
		*common.NewErrorResponse(),
		*common.NewResultResponse(common.OpSize, 42),
		*common.NewResultResponse(common.OpOut, 0),
		*common.NewOutRequest(tup(v("a"), v("b"), v("c"))),
		*common.NewInRequest(tup(v("a"), nil, nil)),
		*common.NewInAllRequest(tup(nil, v(""), nil)),
		*common.NewCopyRequest(tup(v("key"), v("*"), v("\x00\x01"))),
		*common.NewCopyAllRequest(tup(v("x"))),
		*common.NewTuplesResponse(common.OpCopyAll, nil),
		*common.NewTuplesResponse(common.OpIn, []*tuple.Tuple{tup(v("a"), v("b"), nil)}),
		*common.NewTuplesResponse(common.OpInAll, []*tuple.Tuple{
			tup(v("x"), v("1"), nil),
			tup(v("x"), v("2"), v("long value with spaces")),
		}),
	}
}

func assertSameMessage(t *testing.T, want, got common.Message) {
	t.Helper()
	assert.Equal(t, want.OpCode, got.OpCode)
	assert.Equal(t, want.CType, got.CType)
	switch want.CType {
	case common.CTTuple:
		assert.True(t, want.Tuple.Equal(got.Tuple), "tuple %s != %s", want.Tuple, got.Tuple)
	case common.CTResult:
		assert.Equal(t, want.Result, got.Result)
	case common.CTTuples:
		require.NotNil(t, got.Tuples)
		require.Len(t, got.Tuples, len(want.Tuples))
		for i := range want.Tuples {
			assert.True(t, want.Tuples[i].Equal(got.Tuples[i]), "tuple %d", i)
		}
	}
}

// TestSerializerRoundTrip tests that messages can be serialized and deserialized correctly
func TestSerializerRoundTrip(t *testing.T) {
	for name, factory := range testSerializers {
		t.Run(name, func(t *testing.T) {
			serializer := factory()

			for i, msg := range testMessages() {
				data, err := serializer.Serialize(msg)
				require.NoError(t, err, "message %d", i)

				var result common.Message
				require.NoError(t, serializer.Deserialize(data, &result), "message %d", i)
				assertSameMessage(t, msg, result)
			}
		})
	}
}

func TestSerializeRejectsBadPayload(t *testing.T) {
	bad := []common.Message{
		{OpCode: common.OpOut, CType: common.CTTuple},
		{OpCode: common.OpOut, CType: common.ContentType(17)},
		{OpCode: common.OpInAll + 1, CType: common.CTTuples, Tuples: []*tuple.Tuple{nil}},
	}

	for name, factory := range testSerializers {
		t.Run(name, func(t *testing.T) {
			for i, msg := range bad {
				_, err := factory().Serialize(msg)
				assert.ErrorIs(t, err, tuple.ErrSerialization, "message %d", i)
			}
		})
	}

	// the null sentinel only matters for the binary format
	_, err := NewBinarySerializer().Serialize(*common.NewOutRequest(tup(v("\x00"))))
	assert.ErrorIs(t, err, tuple.ErrSerialization)
}

// TestBinaryLayout checks the exact bytes of the envelope
func TestBinaryLayout(t *testing.T) {
	s := NewBinarySerializer()

	data, err := s.Serialize(*common.NewResultResponse(common.OpSize, 7))
	require.NoError(t, err)
	assert.Equal(t, []byte{
		0, 0, 0, 11, // SIZE+1
		0, 0, 0, byte(common.CTResult),
		0, 0, 0, 7,
	}, data)

	data, err = s.Serialize(*common.NewErrorResponse())
	require.NoError(t, err)
	assert.Equal(t, []byte{0, 0, 0, 99, 0, 0, 0, byte(common.CTResult), 0xff, 0xff, 0xff, 0xff}, data)

	out := tup(v("a"), nil)
	data, err = s.Serialize(*common.NewOutRequest(out))
	require.NoError(t, err)
	tupleBytes, _ := tuple.Serialize(out)
	assert.Equal(t, uint32(common.OpOut), binary.BigEndian.Uint32(data[0:4]))
	assert.Equal(t, uint32(common.CTTuple), binary.BigEndian.Uint32(data[4:8]))
	assert.Equal(t, tupleBytes, data[8:])
}

// TestBinaryMalformed tests that broken input is rejected with ErrMalformedMessage
func TestBinaryMalformed(t *testing.T) {
	s := NewBinarySerializer()

	valid, err := s.Serialize(*common.NewOutRequest(tup(v("a"), v("b"))))
	require.NoError(t, err)
	list, err := s.Serialize(*common.NewTuplesResponse(common.OpCopyAll, []*tuple.Tuple{tup(v("a"))}))
	require.NoError(t, err)

	header := func(ct common.ContentType, payload ...byte) []byte {
		b := binary.BigEndian.AppendUint32(nil, uint32(common.OpOut))
		b = binary.BigEndian.AppendUint32(b, uint32(ct))
		return append(b, payload...)
	}

	testCases := []struct {
		name string
		data []byte
	}{
		{"empty", []byte{}},
		{"short header", []byte{0, 0, 0, 20, 0, 0}},
		{"unknown content type", header(9, 0, 0, 0, 0)},
		{"missing tuple", header(common.CTTuple)},
		{"truncated tuple", valid[:len(valid)-1]},
		{"trailing garbage", append(append([]byte{}, valid...), 0xAA)},
		{"short result", header(common.CTResult, 0, 0)},
		{"long result", header(common.CTResult, 0, 0, 0, 0, 0)},
		{"missing count", header(common.CTTuples)},
		{"negative count", header(common.CTTuples, 0xff, 0xff, 0xff, 0xff)},
		{"count too large", header(common.CTTuples, 0, 0, 0, 9)},
		{"truncated list", list[:len(list)-1]},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			var msg common.Message
			err := s.Deserialize(tc.data, &msg)
			assert.ErrorIs(t, err, ErrMalformedMessage)
		})
	}

	// codec errors stay visible
	var msg common.Message
	err = s.Deserialize(valid[:len(valid)-1], &msg)
	assert.ErrorIs(t, err, tuple.ErrTruncatedBuffer)
}

func TestJSONMalformed(t *testing.T) {
	s := NewJSONSerializer()
	var msg common.Message

	for _, data := range []string{
		`not json`,
		`{"op":"out","content_type":"tuple"}`,
		`{"op":"out","content_type":"nope","result":0}`,
		`{"op":"bogus","content_type":"result","result":0}`,
		`{"op":"out","content_type":"tuple","tuple":[]}`,
	} {
		assert.ErrorIs(t, s.Deserialize([]byte(data), &msg), ErrMalformedMessage, data)
	}

	require.NoError(t, s.Deserialize([]byte(`{"op":"copy_all+1","content_type":"tuples","result":0}`), &msg))
	assert.Equal(t, common.OpCopyAll.Response(), msg.OpCode)
	assert.NotNil(t, msg.Tuples)
	assert.Empty(t, msg.Tuples)
}
