package serializer

import (
	"errors"
	"fmt"

	"github.com/ValentinKolb/dTS/lib/tuple"
	"github.com/ValentinKolb/dTS/rpc/common"
)

// ErrMalformedMessage is returned by Deserialize when the bytes do not form a valid message.
// Errors from the tuple codec are wrapped as well, so errors.Is works for both.
var ErrMalformedMessage = errors.New("serializer: malformed message")

// IRPCSerializer is the interface for all Message Serializers
type IRPCSerializer interface {
	// Serialize serializes a Message into a byte array
	// It returns the serialized byte array and an error wrapping tuple.ErrSerialization if any
	Serialize(msg common.Message) ([]byte, error)
	// Deserialize deserializes a byte array into a Message
	// It takes a byte array and a pointer to a Message as parameters
	// It returns an error wrapping ErrMalformedMessage if any
	Deserialize(b []byte, msg *common.Message) error
}

// checkPayload verifies that the payload fields of msg agree with its content type.
func checkPayload(msg *common.Message) error {
	switch msg.CType {
	case common.CTTuple:
		if msg.Tuple == nil {
			return fmt.Errorf("%s message without tuple", msg.OpCode)
		}
	case common.CTTuples:
		for i, t := range msg.Tuples {
			if t == nil {
				return fmt.Errorf("%s message with nil tuple at %d", msg.OpCode, i)
			}
		}
	case common.CTResult:
	default:
		return fmt.Errorf("unknown content type %d", int32(msg.CType))
	}
	return nil
}

func serializeError(err error) error {
	return fmt.Errorf("%w: %w", tuple.ErrSerialization, err)
}

func malformed(err error) error {
	return fmt.Errorf("%w: %w", ErrMalformedMessage, err)
}
