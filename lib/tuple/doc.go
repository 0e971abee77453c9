// Package tuple implements the fixed-arity tuple type of the tuple space together with
// its binary wire encoding and its textual form.
//
// A tuple holds a fixed number of optional strings. Element 0 is the key. A nil element
// is an explicit null when the tuple is stored and a wildcard when the tuple is used as a
// template for matching.
//
// Wire Format:
//
//	[dim:int32][len(e0):int32][bytes(e0)]...[len(eN):int32][bytes(eN)]
//
// All integers are big endian. A null element is written with length 1 followed by the
// reserved sentinel byte 0x00; this is the only element encoding of that shape, so the
// sentinel can never be confused with the empty string (length 0) or any data value.
//
// Textual Form:
//
//	"key" "value" *
//
// Elements are double quoted; the bare * stands for null.
//
// Thread Safety:
//
//	A Tuple is not safe for concurrent mutation. Tuples handed across goroutines in this
//	module are either freshly decoded or deep copies made with Dup.
package tuple
