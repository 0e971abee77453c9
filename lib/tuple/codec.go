package tuple

import (
	"encoding/binary"
	"fmt"
)

const (
	intSize = 4

	// nullSentinel is the single byte written in place of a null element.
	nullSentinel byte = 0x00
)

// SizeBytes returns the number of bytes Serialize produces for t.
//
// Layout: [dim][len e0][bytes e0]...[len eN][bytes eN], every integer is 4 bytes.
func (t *Tuple) SizeBytes() int {
	size := intSize
	for _, e := range t.elems {
		if e == nil {
			size += intSize + 1
		} else {
			size += intSize + len(*e)
		}
	}
	return size
}

// Serialize encodes t into the wire format. All integers are big endian.
// A null element is written with length 1 and the sentinel byte. The one byte string
// equal to the sentinel has no encoding and is rejected.
func Serialize(t *Tuple) ([]byte, error) {
	if t == nil {
		return nil, fmt.Errorf("%w: nil tuple", ErrSerialization)
	}
	buf := make([]byte, t.SizeBytes())
	if _, err := t.serializeInto(buf); err != nil {
		return nil, err
	}
	return buf, nil
}

// AppendSerialized appends the encoding of t to dst.
func AppendSerialized(dst []byte, t *Tuple) ([]byte, error) {
	if t == nil {
		return dst, fmt.Errorf("%w: nil tuple", ErrSerialization)
	}
	start := len(dst)
	dst = append(dst, make([]byte, t.SizeBytes())...)
	if _, err := t.serializeInto(dst[start:]); err != nil {
		return dst[:start], err
	}
	return dst, nil
}

func (t *Tuple) serializeInto(buf []byte) (int, error) {
	binary.BigEndian.PutUint32(buf[0:intSize], uint32(len(t.elems)))
	pos := intSize

	for i, e := range t.elems {
		if e == nil {
			binary.BigEndian.PutUint32(buf[pos:pos+intSize], 1)
			pos += intSize
			buf[pos] = nullSentinel
			pos++
			continue
		}

		v := *e
		if len(v) == 1 && v[0] == nullSentinel {
			return 0, fmt.Errorf("%w: element %d collides with the null sentinel", ErrSerialization, i)
		}

		binary.BigEndian.PutUint32(buf[pos:pos+intSize], uint32(len(v)))
		pos += intSize
		pos += copy(buf[pos:], v)
	}

	return pos, nil
}

// Deserialize decodes a tuple from the first declaredSize bytes of buf.
func Deserialize(buf []byte, declaredSize int) (*Tuple, error) {
	t, _, err := decode(buf, declaredSize)
	return t, err
}

// DeserializePrefix decodes a tuple from the start of buf and reports how many bytes
// were consumed.
func DeserializePrefix(buf []byte) (*Tuple, int, error) {
	return decode(buf, len(buf))
}

func decode(buf []byte, declaredSize int) (*Tuple, int, error) {
	if buf == nil {
		return nil, 0, ErrNullInput
	}
	if declaredSize > len(buf) {
		declaredSize = len(buf)
	}
	if declaredSize < intSize {
		return nil, 0, fmt.Errorf("%w: %d bytes cannot hold a dimension", ErrTruncatedBuffer, declaredSize)
	}

	dim := int(int32(binary.BigEndian.Uint32(buf[0:intSize])))
	if dim <= 0 {
		return nil, 0, fmt.Errorf("%w: decoded dimension %d", ErrInvalidArity, dim)
	}
	// every element needs at least its length prefix
	if dim > (declaredSize-intSize)/intSize {
		return nil, 0, fmt.Errorf("%w: dimension %d does not fit in %d bytes", ErrTruncatedBuffer, dim, declaredSize)
	}

	t := &Tuple{elems: make([]*string, dim)}
	pos := intSize

	for i := 0; i < dim; i++ {
		if pos+intSize > declaredSize {
			return nil, 0, fmt.Errorf("%w: missing length of element %d", ErrTruncatedBuffer, i)
		}
		n := int(int32(binary.BigEndian.Uint32(buf[pos : pos+intSize])))
		pos += intSize

		if n < 0 || pos+n > declaredSize {
			return nil, 0, fmt.Errorf("%w: element %d announces %d bytes", ErrTruncatedBuffer, i, n)
		}

		if n == 1 && buf[pos] == nullSentinel {
			t.elems[i] = nil
		} else {
			v := string(buf[pos : pos+n])
			t.elems[i] = &v
		}
		pos += n
	}

	return t, pos, nil
}
