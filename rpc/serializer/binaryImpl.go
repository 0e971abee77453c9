package serializer

import (
	"encoding/binary"
	"fmt"

	"github.com/ValentinKolb/dTS/lib/tuple"
	"github.com/ValentinKolb/dTS/rpc/common"
)

// NewBinarySerializer creates a new serializer using the binary wire format:
//
//	[opCode:int32][contentType:int32][payload]
//
// where payload is one serialized tuple (CTTuple), a 4 byte integer (CTResult) or
// [count:int32] followed by count times [len:int32][tuple bytes] (CTTuples).
// All integers are big endian.
func NewBinarySerializer() IRPCSerializer {
	return &binarySerializerImpl{}
}

// binarySerializerImpl implements IRPCSerializer using the binary wire format
type binarySerializerImpl struct {
}

const (
	intSize    = 4
	headerSize = 2 * intSize
)

// --------------------------------------------------------------------------
// Interface Methods (docu see serializer.IRPCSerializer)
// --------------------------------------------------------------------------

func (b binarySerializerImpl) Serialize(msg common.Message) ([]byte, error) {
	if err := checkPayload(&msg); err != nil {
		return nil, serializeError(err)
	}

	result := make([]byte, headerSize, b.sizeBytes(msg))
	binary.BigEndian.PutUint32(result[0:intSize], uint32(msg.OpCode))
	binary.BigEndian.PutUint32(result[intSize:headerSize], uint32(msg.CType))

	var err error
	switch msg.CType {
	case common.CTTuple:
		result, err = tuple.AppendSerialized(result, msg.Tuple)
		if err != nil {
			return nil, err
		}

	case common.CTResult:
		result = binary.BigEndian.AppendUint32(result, uint32(msg.Result))

	case common.CTTuples:
		result = binary.BigEndian.AppendUint32(result, uint32(len(msg.Tuples)))
		for _, t := range msg.Tuples {
			result = binary.BigEndian.AppendUint32(result, uint32(t.SizeBytes()))
			result, err = tuple.AppendSerialized(result, t)
			if err != nil {
				return nil, err
			}
		}
	}

	return result, nil
}

func (b binarySerializerImpl) Deserialize(data []byte, msg *common.Message) error {
	if len(data) < headerSize {
		return malformed(fmt.Errorf("%d bytes cannot hold a message header", len(data)))
	}

	m := common.Message{
		OpCode: common.OpCode(int32(binary.BigEndian.Uint32(data[0:intSize]))),
		CType:  common.ContentType(int32(binary.BigEndian.Uint32(data[intSize:headerSize]))),
	}
	payload := data[headerSize:]

	switch m.CType {
	case common.CTTuple:
		t, n, err := tuple.DeserializePrefix(payload)
		if err != nil {
			return malformed(err)
		}
		if n != len(payload) {
			return malformed(fmt.Errorf("%d trailing bytes after tuple", len(payload)-n))
		}
		m.Tuple = t

	case common.CTResult:
		if len(payload) != intSize {
			return malformed(fmt.Errorf("result payload has %d bytes, want %d", len(payload), intSize))
		}
		m.Result = int32(binary.BigEndian.Uint32(payload))

	case common.CTTuples:
		tuples, err := b.decodeTuples(payload)
		if err != nil {
			return malformed(err)
		}
		m.Tuples = tuples

	default:
		return malformed(fmt.Errorf("unknown content type %d", int32(m.CType)))
	}

	*msg = m
	return nil
}

// --------------------------------------------------------------------------
// Helper Methods
// --------------------------------------------------------------------------

// sizeBytes returns the exact size of the encoded message
func (b binarySerializerImpl) sizeBytes(msg common.Message) int {
	size := headerSize
	switch msg.CType {
	case common.CTTuple:
		size += msg.Tuple.SizeBytes()
	case common.CTResult:
		size += intSize
	case common.CTTuples:
		size += intSize
		for _, t := range msg.Tuples {
			size += intSize + t.SizeBytes()
		}
	}
	return size
}

func (b binarySerializerImpl) decodeTuples(payload []byte) ([]*tuple.Tuple, error) {
	if len(payload) < intSize {
		return nil, fmt.Errorf("%w: missing tuple count", tuple.ErrTruncatedBuffer)
	}
	count := int(int32(binary.BigEndian.Uint32(payload[0:intSize])))
	pos := intSize

	// every entry needs at least its length prefix and a tuple header
	if count < 0 || count > (len(payload)-pos)/(2*intSize) {
		return nil, fmt.Errorf("%w: tuple count %d does not fit in %d bytes", tuple.ErrTruncatedBuffer, count, len(payload))
	}

	tuples := make([]*tuple.Tuple, 0, count)
	for i := 0; i < count; i++ {
		if pos+intSize > len(payload) {
			return nil, fmt.Errorf("%w: missing length of tuple %d", tuple.ErrTruncatedBuffer, i)
		}
		n := int(int32(binary.BigEndian.Uint32(payload[pos : pos+intSize])))
		pos += intSize
		if n < 0 || pos+n > len(payload) {
			return nil, fmt.Errorf("%w: tuple %d announces %d bytes", tuple.ErrTruncatedBuffer, i, n)
		}

		t, used, err := tuple.DeserializePrefix(payload[pos : pos+n])
		if err != nil {
			return nil, fmt.Errorf("tuple %d: %w", i, err)
		}
		if used != n {
			return nil, fmt.Errorf("tuple %d: %d trailing bytes", i, n-used)
		}
		tuples = append(tuples, t)
		pos += n
	}

	if pos != len(payload) {
		return nil, fmt.Errorf("%d trailing bytes after tuple list", len(payload)-pos)
	}
	return tuples, nil
}
