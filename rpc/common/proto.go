package common

import (
	"encoding/json"
	"fmt"

	"github.com/ValentinKolb/dTS/lib/tuple"
)

// --------------------------------------------------------------------------
// Message Structure
// --------------------------------------------------------------------------

// Message represents a single message used for both requests and responses.
// Which payload field is used depends on the content type:
//
//	CTTuple  -> Tuple
//	CTResult -> Result
//	CTTuples -> Tuples
type Message struct {
	OpCode OpCode      `json:"op"`
	CType  ContentType `json:"content_type"`

	Tuple  *tuple.Tuple   `json:"tuple,omitempty"`
	Tuples []*tuple.Tuple `json:"tuples,omitempty"`
	Result int32          `json:"result"`
}

// Succeeded reports whether the message is a regular (non error) response.
func (m *Message) Succeeded() bool {
	return m != nil && m.OpCode != OpError
}

// String returns a short human readable description used in log lines.
func (m *Message) String() string {
	if m == nil {
		return "<nil message>"
	}
	switch m.CType {
	case CTTuple:
		return fmt.Sprintf("%s(%s)", m.OpCode, m.Tuple)
	case CTTuples:
		return fmt.Sprintf("%s(%d tuples)", m.OpCode, len(m.Tuples))
	default:
		return fmt.Sprintf("%s(%d)", m.OpCode, m.Result)
	}
}

// CheckRequest verifies that m is a request a replica can execute: a known request
// code and, for every operation except SIZE and QUIT, a tuple payload.
func (m *Message) CheckRequest() error {
	if m == nil {
		return fmt.Errorf("no message")
	}
	switch m.OpCode {
	case OpSize, OpQuit:
		return nil
	case OpOut, OpIn, OpInAll, OpCopy, OpCopyAll:
		if m.CType != CTTuple || m.Tuple == nil {
			return fmt.Errorf("%s request needs a tuple, got %s", m.OpCode, m.CType)
		}
		return nil
	default:
		if !m.OpCode.Known() {
			return fmt.Errorf("unknown operation code %d", int32(m.OpCode))
		}
		return fmt.Errorf("%s is not a request", m.OpCode)
	}
}

// --------------------------------------------------------------------------
// Message Factory Functions
// --------------------------------------------------------------------------

// NewSizeRequest creates a SIZE request. The result field carries no meaning.
func NewSizeRequest() *Message {
	return &Message{OpCode: OpSize, CType: CTResult}
}

// NewOutRequest creates an OUT request inserting t.
func NewOutRequest(t *tuple.Tuple) *Message {
	return &Message{OpCode: OpOut, CType: CTTuple, Tuple: t}
}

// NewInRequest creates an IN request removing one tuple matching template.
func NewInRequest(template *tuple.Tuple) *Message {
	return &Message{OpCode: OpIn, CType: CTTuple, Tuple: template}
}

// NewInAllRequest creates an IN_ALL request removing every tuple matching template.
func NewInAllRequest(template *tuple.Tuple) *Message {
	return &Message{OpCode: OpInAll, CType: CTTuple, Tuple: template}
}

// NewCopyRequest creates a COPY request reading one tuple matching template.
func NewCopyRequest(template *tuple.Tuple) *Message {
	return &Message{OpCode: OpCopy, CType: CTTuple, Tuple: template}
}

// NewCopyAllRequest creates a COPY_ALL request reading every tuple matching template.
func NewCopyAllRequest(template *tuple.Tuple) *Message {
	return &Message{OpCode: OpCopyAll, CType: CTTuple, Tuple: template}
}

// NewQuitRequest creates a QUIT request.
func NewQuitRequest() *Message {
	return &Message{OpCode: OpQuit, CType: CTResult}
}

// NewResultResponse creates the response to op carrying a scalar result.
func NewResultResponse(op OpCode, result int32) *Message {
	return &Message{OpCode: op.Response(), CType: CTResult, Result: result}
}

// NewTuplesResponse creates the response to op carrying a list of tuples.
func NewTuplesResponse(op OpCode, tuples []*tuple.Tuple) *Message {
	if tuples == nil {
		tuples = []*tuple.Tuple{}
	}
	return &Message{OpCode: op.Response(), CType: CTTuples, Tuples: tuples}
}

// NewErrorResponse creates the failure response: ERROR with result -1.
func NewErrorResponse() *Message {
	return &Message{OpCode: OpError, CType: CTResult, Result: ErrorResult}
}

// --------------------------------------------------------------------------
// Operation Codes
// --------------------------------------------------------------------------

// OpCode identifies the operation of a message. A response uses the code of its
// request plus one.
type OpCode int32

const (
	OpSize    OpCode = 10 // Number of stored tuples
	OpOut     OpCode = 20 // Insert a tuple
	OpIn      OpCode = 30 // Remove one matching tuple
	OpInAll   OpCode = 40 // Remove all matching tuples
	OpCopy    OpCode = 50 // Read one matching tuple
	OpCopyAll OpCode = 60 // Read all matching tuples
	OpQuit    OpCode = 70 // End the session
	OpError   OpCode = 99 // Failure response
)

// ErrorResult is the result value carried by an OpError response.
const ErrorResult int32 = -1

var opNames = map[OpCode]string{
	OpSize:    "size",
	OpOut:     "out",
	OpIn:      "in",
	OpInAll:   "in_all",
	OpCopy:    "copy",
	OpCopyAll: "copy_all",
	OpQuit:    "quit",
	OpError:   "error",
}

// Response returns the op code of the response to op.
func (op OpCode) Response() OpCode {
	return op + 1
}

// IsResponse reports whether op is the response code of a known request.
func (op OpCode) IsResponse() bool {
	if op == OpError {
		return true
	}
	_, ok := opNames[op-1]
	return ok && op-1 != OpError
}

// IsWrite reports whether op mutates the store and must reach every replica.
func (op OpCode) IsWrite() bool {
	return op == OpOut || op == OpIn || op == OpInAll
}

// IsRead reports whether op only reads from the store.
func (op OpCode) IsRead() bool {
	return op == OpSize || op == OpCopy || op == OpCopyAll
}

// Known reports whether op is a request or response code of the protocol.
func (op OpCode) Known() bool {
	_, ok := opNames[op]
	return ok || op.IsResponse()
}

// Label returns the name of op for metric labels. Unknown codes share one label so
// a peer cannot create arbitrary series.
func (op OpCode) Label() string {
	if !op.Known() {
		return "unknown"
	}
	return op.String()
}

// String returns the string representation of an OpCode.
func (op OpCode) String() string {
	if name, ok := opNames[op]; ok {
		return name
	}
	if op.IsResponse() {
		return opNames[op-1] + "+1"
	}
	return fmt.Sprintf("unknown(%d)", int32(op))
}

// MarshalJSON implements the json.Marshaller interface for OpCode.
func (op OpCode) MarshalJSON() ([]byte, error) {
	return json.Marshal(op.String())
}

// UnmarshalJSON implements the json.Unmarshaler interface for OpCode.
func (op *OpCode) UnmarshalJSON(data []byte) error {
	var s string
	if err := json.Unmarshal(data, &s); err != nil {
		return err
	}
	for code, name := range opNames {
		switch s {
		case name:
			*op = code
			return nil
		case name + "+1":
			*op = code.Response()
			return nil
		}
	}
	return fmt.Errorf("unknown op code: %s", s)
}

// --------------------------------------------------------------------------
// Content Types
// --------------------------------------------------------------------------

// ContentType tells which payload a message carries.
type ContentType int32

const (
	CTTuple  ContentType = 1 // One serialized tuple
	CTResult ContentType = 2 // A 4 byte big endian integer
	CTTuples ContentType = 3 // A counted list of serialized tuples
)

// Valid reports whether t is a known content type.
func (t ContentType) Valid() bool {
	return t == CTTuple || t == CTResult || t == CTTuples
}

// String returns the string representation of a ContentType.
func (t ContentType) String() string {
	switch t {
	case CTTuple:
		return "tuple"
	case CTResult:
		return "result"
	case CTTuples:
		return "tuples"
	default:
		return fmt.Sprintf("unknown(%d)", int32(t))
	}
}

// MarshalJSON implements the json.Marshaller interface for ContentType.
func (t ContentType) MarshalJSON() ([]byte, error) {
	return json.Marshal(t.String())
}

// UnmarshalJSON implements the json.Unmarshaler interface for ContentType.
func (t *ContentType) UnmarshalJSON(data []byte) error {
	var s string
	if err := json.Unmarshal(data, &s); err != nil {
		return err
	}
	switch s {
	case "tuple":
		*t = CTTuple
	case "result":
		*t = CTResult
	case "tuples":
		*t = CTTuples
	default:
		return fmt.Errorf("unknown content type: %s", s)
	}
	return nil
}
