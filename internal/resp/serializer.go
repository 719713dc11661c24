package resp

import (
	"fmt"
	"io"
	"strconv"

	"github.com/valyala/bytebufferpool"
)

type Serializer struct {
	writer io.Writer
}

func NewSerializer(w io.Writer) *Serializer {
	return &Serializer{writer: w}
}

func (s *Serializer) Serialize(v Value) error {
	buf := bytebufferpool.Get()
	defer bytebufferpool.Put(buf)

	if err := appendValue(buf, v); err != nil {
		return err
	}
	_, err := s.writer.Write(buf.B)
	return err
}

// Encode returns the wire form of v. The returned slice is owned by the
// caller.
func Encode(v Value) ([]byte, error) {
	buf := bytebufferpool.Get()
	defer bytebufferpool.Put(buf)

	if err := appendValue(buf, v); err != nil {
		return nil, err
	}
	return append([]byte(nil), buf.B...), nil
}

// AppendEncode appends the wire form of every value in vs to dst.
func AppendEncode(dst []byte, vs ...Value) ([]byte, error) {
	buf := bytebufferpool.Get()
	defer bytebufferpool.Put(buf)

	for _, v := range vs {
		if err := appendValue(buf, v); err != nil {
			return dst, err
		}
	}
	return append(dst, buf.B...), nil
}

func appendValue(buf *bytebufferpool.ByteBuffer, v Value) error {
	switch v.Type {
	case SimpleString, Error:
		buf.WriteByte(byte(v.Type))
		buf.WriteString(v.Str)
	case Integer:
		buf.WriteByte(':')
		buf.B = strconv.AppendInt(buf.B, v.Int, 10)
	case BulkString:
		if v.Null {
			buf.WriteString("$-1\r\n")
			return nil
		}
		buf.WriteByte('$')
		buf.B = strconv.AppendInt(buf.B, int64(len(v.Str)), 10)
		buf.WriteString("\r\n")
		buf.WriteString(v.Str)
	case Array:
		if v.Null {
			buf.WriteString("*-1\r\n")
			return nil
		}
		buf.WriteByte('*')
		buf.B = strconv.AppendInt(buf.B, int64(len(v.Array)), 10)
		buf.WriteString("\r\n")
		for _, elem := range v.Array {
			if err := appendValue(buf, elem); err != nil {
				return err
			}
		}
		return nil
	default:
		return fmt.Errorf("%w: %c", ErrInvalidType, v.Type)
	}
	buf.WriteString("\r\n")
	return nil
}
