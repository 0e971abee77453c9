package transport

import (
	"encoding/binary"
	"errors"
	"fmt"
	"io"
	"syscall"

	"github.com/ValentinKolb/dTS/rpc/common"
	"github.com/ValentinKolb/dTS/rpc/serializer"
	"github.com/lni/dragonboat/v4/logger"
)

var Logger = logger.GetLogger("transport/rpc")

// lengthPrefixSize is the size of the big endian frame length
const lengthPrefixSize = 4

// newFrameBuffer allocates the body buffer of a received frame
var newFrameBuffer = func(n int) []byte {
	return make([]byte, n)
}

// WriteAll writes the whole buffer. Interrupted system calls are retried, every other
// failure (including a write that makes no progress) is reported as an *IOError
// wrapping ErrConnectionBroken. It returns the number of bytes written.
func WriteAll(w io.Writer, buf []byte) (int, error) {
	done := 0
	for done < len(buf) {
		n, err := w.Write(buf[done:])
		done += n
		if err != nil {
			if errors.Is(err, syscall.EINTR) {
				continue
			}
			return done, &IOError{Op: "write", Done: done, Want: len(buf), Err: err}
		}
		if n == 0 {
			return done, &IOError{Op: "write", Done: done, Want: len(buf), Err: io.ErrShortWrite}
		}
	}
	return done, nil
}

// ReadAll fills buf completely. Interrupted system calls are retried, a closed
// connection or any other failure is reported as an *IOError wrapping
// ErrConnectionBroken. It returns the number of bytes read.
func ReadAll(r io.Reader, buf []byte) (int, error) {
	done := 0
	for done < len(buf) {
		n, err := r.Read(buf[done:])
		done += n
		if done == len(buf) {
			break
		}
		if err != nil {
			if errors.Is(err, syscall.EINTR) {
				continue
			}
			if err == io.EOF && done > 0 {
				err = io.ErrUnexpectedEOF
			}
			return done, &IOError{Op: "read", Done: done, Want: len(buf), Err: err}
		}
	}
	return done, nil
}

// SendMessage serializes msg and writes it as one frame: a 4 byte big endian length
// followed by the message bytes. Prefix and body go out in a single write.
func SendMessage(w io.Writer, s serializer.IRPCSerializer, msg *common.Message) error {
	if msg == nil {
		return fmt.Errorf("transport: cannot send nil message")
	}
	data, err := s.Serialize(*msg)
	if err != nil {
		return err
	}

	frame := make([]byte, 0, lengthPrefixSize+len(data))
	frame = binary.BigEndian.AppendUint32(frame, uint32(len(data)))
	frame = append(frame, data...)

	_, err = WriteAll(w, frame)
	return err
}

// ReceiveMessage reads one frame and decodes it. A length prefix that is not positive
// or larger than maxFrame is rejected with ErrFrameSize before any body buffer is
// allocated. On error no message is returned.
func ReceiveMessage(r io.Reader, s serializer.IRPCSerializer, maxFrame int) (*common.Message, error) {
	var prefix [lengthPrefixSize]byte
	if _, err := ReadAll(r, prefix[:]); err != nil {
		return nil, err
	}

	n := int(int32(binary.BigEndian.Uint32(prefix[:])))
	if n <= 0 || n > maxFrame {
		Logger.Warningf("Rejecting frame of length %d (max %d)", n, maxFrame)
		return nil, fmt.Errorf("%w: %d not in (0, %d]", ErrFrameSize, n, maxFrame)
	}

	body := newFrameBuffer(n)
	if _, err := ReadAll(r, body); err != nil {
		return nil, err
	}

	msg := &common.Message{}
	if err := s.Deserialize(body, msg); err != nil {
		return nil, err
	}
	return msg, nil
}
