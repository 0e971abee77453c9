// Package serializer turns common.Message values into bytes and back. It defines a
// common interface and two implementations that peers select with --serializer.
//
// Key Components:
//
//   - IRPCSerializer: Core interface that all serializer implementations must satisfy.
//
//   - binarySerializerImpl: The wire format of the tuple space,
//     [opCode:int32][contentType:int32][payload], big endian. The payload is one
//     serialized tuple, a 4 byte result or a counted list of length prefixed tuples.
//     Recommended for production use.
//
//   - jsonSerializerImpl: JSON encoding of the same message, useful for debugging.
//
// Both implementations verify that the payload matches the content type. Decoding
// failures wrap ErrMalformedMessage (and the tuple codec error if there is one),
// encoding failures wrap tuple.ErrSerialization.
//
// Thread Safety:
//
//	All serializer implementations are stateless and safe for concurrent use
//	across multiple goroutines without additional synchronization.
//
// Usage:
//
//	serializer := serializer.NewBinarySerializer()
//	data, err := serializer.Serialize(message)
//	// ... send data ...
//	var receivedMsg common.Message
//	err = serializer.Deserialize(receivedData, &receivedMsg)
package serializer
