package transport

import (
	"bytes"
	"encoding/binary"
	"errors"
	"io"
	"net"
	"syscall"
	"testing"

	"github.com/ValentinKolb/dTS/lib/tuple"
	"github.com/ValentinKolb/dTS/rpc/common"
	"github.com/ValentinKolb/dTS/rpc/serializer"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// flakyWriter fails with EINTR every other call and writes at most chunk bytes
type flakyWriter struct {
	buf       bytes.Buffer
	chunk     int
	calls     int
	failAfter int // fail with EPIPE once this many bytes were written, <0 never
}

func (w *flakyWriter) Write(p []byte) (int, error) {
	w.calls++
	if w.calls%2 == 1 {
		return 0, syscall.EINTR
	}
	if w.failAfter >= 0 && w.buf.Len() >= w.failAfter {
		return 0, syscall.EPIPE
	}
	if len(p) > w.chunk {
		p = p[:w.chunk]
	}
	return w.buf.Write(p)
}

// flakyReader returns EINTR every other call and at most chunk bytes per read
type flakyReader struct {
	r     io.Reader
	chunk int
	calls int
	reads int
}

func (r *flakyReader) Read(p []byte) (int, error) {
	r.calls++
	if r.calls%2 == 1 {
		return 0, syscall.EINTR
	}
	r.reads++
	if len(p) > r.chunk {
		p = p[:r.chunk]
	}
	return r.r.Read(p)
}

func TestWriteAllRetriesInterrupts(t *testing.T) {
	w := &flakyWriter{chunk: 3, failAfter: -1}
	data := []byte("hello tuple space")

	n, err := WriteAll(w, data)
	require.NoError(t, err)
	assert.Equal(t, len(data), n)
	assert.Equal(t, data, w.buf.Bytes())
}

func TestWriteAllReportsProgress(t *testing.T) {
	w := &flakyWriter{chunk: 4, failAfter: 8}
	n, err := WriteAll(w, make([]byte, 20))

	assert.Equal(t, 8, n)
	assert.ErrorIs(t, err, ErrConnectionBroken)
	assert.ErrorIs(t, err, syscall.EPIPE)

	var ioErr *IOError
	require.True(t, errors.As(err, &ioErr))
	assert.Equal(t, "write", ioErr.Op)
	assert.Equal(t, 8, ioErr.Done)
	assert.Equal(t, 20, ioErr.Want)
}

func TestReadAll(t *testing.T) {
	r := &flakyReader{r: bytes.NewReader([]byte("0123456789")), chunk: 3}
	buf := make([]byte, 10)
	n, err := ReadAll(r, buf)
	require.NoError(t, err)
	assert.Equal(t, 10, n)
	assert.Equal(t, "0123456789", string(buf))

	// short stream
	n, err = ReadAll(bytes.NewReader([]byte("abc")), make([]byte, 5))
	assert.Equal(t, 3, n)
	assert.ErrorIs(t, err, ErrConnectionBroken)
	assert.ErrorIs(t, err, io.ErrUnexpectedEOF)

	// closed before anything arrived
	_, err = ReadAll(bytes.NewReader(nil), make([]byte, 4))
	assert.ErrorIs(t, err, ErrConnectionBroken)
	assert.ErrorIs(t, err, io.EOF)
}

func TestSendReceive(t *testing.T) {
	for name, s := range map[string]serializer.IRPCSerializer{
		"binary": serializer.NewBinarySerializer(),
		"json":   serializer.NewJSONSerializer(),
	} {
		t.Run(name, func(t *testing.T) {
			var buf bytes.Buffer
			out := common.NewOutRequest(tuple.MustOf(tuple.Val("a"), tuple.Val("b"), nil))
			require.NoError(t, SendMessage(&buf, s, out))
			require.NoError(t, SendMessage(&buf, s, common.NewQuitRequest()))

			// length prefix matches the body
			size := binary.BigEndian.Uint32(buf.Bytes()[:4])
			body, _ := s.Serialize(*out)
			assert.Equal(t, uint32(len(body)), size)

			r := &flakyReader{r: &buf, chunk: 2}
			got, err := ReceiveMessage(r, s, common.DefaultMaxMessageSize)
			require.NoError(t, err)
			assert.Equal(t, common.OpOut, got.OpCode)
			assert.True(t, out.Tuple.Equal(got.Tuple))

			got, err = ReceiveMessage(r, s, common.DefaultMaxMessageSize)
			require.NoError(t, err)
			assert.Equal(t, common.OpQuit, got.OpCode)

			_, err = ReceiveMessage(r, s, common.DefaultMaxMessageSize)
			assert.ErrorIs(t, err, io.EOF)
			assert.False(t, StreamIntact(err))
		})
	}
}

// countingWriter records the size of every Write call
type countingWriter struct {
	bytes.Buffer
	writes []int
}

func (w *countingWriter) Write(p []byte) (int, error) {
	w.writes = append(w.writes, len(p))
	return w.Buffer.Write(p)
}

func TestSendMessageSingleWrite(t *testing.T) {
	s := serializer.NewBinarySerializer()
	msg := common.NewOutRequest(tuple.MustOf(tuple.Val("x"), tuple.Val("y"), nil))
	body, err := s.Serialize(*msg)
	require.NoError(t, err)

	w := &countingWriter{}
	require.NoError(t, SendMessage(w, s, msg))
	assert.Equal(t, []int{lengthPrefixSize + len(body)}, w.writes, "prefix and body must go out together")

	got, err := ReceiveMessage(&w.Buffer, s, common.DefaultMaxMessageSize)
	require.NoError(t, err)
	assert.True(t, msg.Tuple.Equal(got.Tuple))
}

func TestSendMessageShortWrite(t *testing.T) {
	w := &flakyWriter{chunk: 3, failAfter: 6}
	err := SendMessage(w, serializer.NewBinarySerializer(), common.NewSizeRequest())
	assert.ErrorIs(t, err, ErrConnectionBroken)

	var ioErr *IOError
	require.True(t, errors.As(err, &ioErr))
	assert.Equal(t, 6, ioErr.Done)
	assert.Equal(t, lengthPrefixSize+12, ioErr.Want)
}

func TestSendMessageSerializationError(t *testing.T) {
	var buf bytes.Buffer
	err := SendMessage(&buf, serializer.NewBinarySerializer(), &common.Message{OpCode: common.OpOut, CType: common.CTTuple})
	assert.ErrorIs(t, err, tuple.ErrSerialization)
	assert.Zero(t, buf.Len(), "nothing may be written for a message that cannot be encoded")
}

// TestReceiveRejectsBadLength checks that an out of range length prefix fails without
// allocating or reading a body.
func TestReceiveRejectsBadLength(t *testing.T) {
	allocations := 0
	orig := newFrameBuffer
	newFrameBuffer = func(n int) []byte {
		allocations++
		return orig(n)
	}
	defer func() { newFrameBuffer = orig }()

	for _, length := range []int32{-1, 0, common.DefaultMaxMessageSize + 1, 1<<31 - 1} {
		var buf bytes.Buffer
		_ = binary.Write(&buf, binary.BigEndian, length)
		buf.WriteString("payload that must not be read")
		before := buf.Len()

		msg, err := ReceiveMessage(&buf, serializer.NewBinarySerializer(), common.DefaultMaxMessageSize)
		assert.Nil(t, msg)
		assert.ErrorIs(t, err, ErrFrameSize, "length %d", length)
		assert.ErrorIs(t, err, serializer.ErrMalformedMessage)
		assert.False(t, StreamIntact(err))
		assert.Equal(t, before, buf.Len(), "body was read for length %d", length)
	}
	assert.Zero(t, allocations)
}

func TestReceiveMalformedBodyKeepsStream(t *testing.T) {
	var buf bytes.Buffer
	body := []byte{0, 0, 0, 20, 0, 0, 0, 42} // unknown content type
	_ = binary.Write(&buf, binary.BigEndian, int32(len(body)))
	buf.Write(body)
	s := serializer.NewBinarySerializer()
	require.NoError(t, SendMessage(&buf, s, common.NewSizeRequest()))

	_, err := ReceiveMessage(&buf, s, common.DefaultMaxMessageSize)
	assert.ErrorIs(t, err, serializer.ErrMalformedMessage)
	assert.True(t, StreamIntact(err))

	// the next frame is still readable
	msg, err := ReceiveMessage(&buf, s, common.DefaultMaxMessageSize)
	require.NoError(t, err)
	assert.Equal(t, common.OpSize, msg.OpCode)
}

func TestReceiveOnClosedConn(t *testing.T) {
	a, b := net.Pipe()
	require.NoError(t, b.Close())
	_, err := ReceiveMessage(a, serializer.NewBinarySerializer(), 16)
	assert.ErrorIs(t, err, ErrConnectionBroken)
	_ = a.Close()
}
