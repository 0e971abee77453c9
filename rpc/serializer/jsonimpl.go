package serializer

import (
	"encoding/json"

	"github.com/ValentinKolb/dTS/lib/tuple"
	"github.com/ValentinKolb/dTS/rpc/common"
)

// NewJSONSerializer creates a new serializer using json encoding.
// The format is meant for debugging, both peers must use the same serializer.
func NewJSONSerializer() IRPCSerializer {
	return &jsonSerializerImpl{}
}

// jsonSerializerImpl implements the IRPCSerializer interface using json encoding
type jsonSerializerImpl struct {
}

// --------------------------------------------------------------------------
// Interface Methods (docu see serializer.IRPCSerializer)
// --------------------------------------------------------------------------

func (j jsonSerializerImpl) Serialize(msg common.Message) ([]byte, error) {
	if err := checkPayload(&msg); err != nil {
		return nil, serializeError(err)
	}
	b, err := json.Marshal(msg)
	if err != nil {
		return nil, serializeError(err)
	}
	return b, nil
}

func (j jsonSerializerImpl) Deserialize(b []byte, msg *common.Message) error {
	var m common.Message
	if err := json.Unmarshal(b, &m); err != nil {
		return malformed(err)
	}
	if err := checkPayload(&m); err != nil {
		return malformed(err)
	}
	if m.CType == common.CTTuples && m.Tuples == nil {
		m.Tuples = []*tuple.Tuple{}
	}
	*msg = m
	return nil
}
