package resp

import (
	"bytes"
	"fmt"
	"strconv"
)

// Decode parses one value from the front of buf and returns it with the
// number of bytes it occupied.
//
// ErrIncomplete means buf holds only a prefix of a frame. Nothing is
// consumed in that case and the returned count is a lower bound on the
// frame's total length, so callers can wait until at least that many bytes
// are buffered before decoding again.
func Decode(buf []byte) (Value, int, error) {
	return decode(buf, 0)
}

func decode(buf []byte, depth int) (Value, int, error) {
	if len(buf) == 0 {
		return Value{}, 1, ErrIncomplete
	}

	switch Type(buf[0]) {
	case SimpleString, Error, Integer, BulkString, Array:
	default:
		return Value{}, 0, fmt.Errorf("%w: %c", ErrInvalidType, buf[0])
	}

	line, n, err := decodeLine(buf[1:])
	if err == ErrIncomplete {
		return Value{}, len(buf) + 1, err
	}
	if err != nil {
		return Value{}, 0, err
	}
	n++

	switch t := Type(buf[0]); t {
	case SimpleString, Error:
		return Value{Type: t, Str: string(line)}, n, nil
	case Integer:
		num, err := strconv.ParseInt(string(line), 10, 64)
		if err != nil {
			return Value{}, 0, fmt.Errorf("%w: invalid integer", ErrInvalidFormat)
		}
		return IntegerValue(num), n, nil
	case BulkString:
		length, err := decodeLength(line, "bulk string", MaxBulkLen)
		if err != nil {
			return Value{}, 0, err
		}
		if length == -1 {
			return NullBulkStringValue(), n, nil
		}
		if len(buf)-n < length+2 {
			return Value{}, n + length + 2, ErrIncomplete
		}
		if buf[n+length] != '\r' || buf[n+length+1] != '\n' {
			return Value{}, 0, fmt.Errorf("%w: missing CRLF after bulk string", ErrInvalidFormat)
		}
		return BulkStringValue(string(buf[n : n+length])), n + length + 2, nil
	case Array:
		count, err := decodeLength(line, "array", MaxArrayLen)
		if err != nil {
			return Value{}, 0, err
		}
		if count == -1 {
			return Value{Type: Array, Null: true}, n, nil
		}
		if depth >= MaxDepth {
			return Value{}, 0, fmt.Errorf("%w: arrays nested deeper than %d", ErrInvalidFormat, MaxDepth)
		}
		array := make([]Value, 0, min(count, 1024))
		for range count {
			v, used, err := decode(buf[n:], depth+1)
			if err == ErrIncomplete {
				return Value{}, n + used, err
			}
			if err != nil {
				return Value{}, 0, err
			}
			array = append(array, v)
			n += used
		}
		return Value{Type: Array, Array: array}, n, nil
	}
	return Value{}, 0, fmt.Errorf("%w: %c", ErrInvalidType, buf[0])
}

func decodeLine(buf []byte) ([]byte, int, error) {
	i := bytes.IndexByte(buf, '\n')
	if i < 0 {
		return nil, 0, ErrIncomplete
	}
	if i == 0 || buf[i-1] != '\r' {
		return nil, 0, fmt.Errorf("%w: missing CRLF", ErrInvalidFormat)
	}
	return buf[:i-1], i + 1, nil
}

func decodeLength(line []byte, what string, limit int) (int, error) {
	n, err := strconv.Atoi(string(line))
	if err != nil || n < -1 {
		return 0, fmt.Errorf("%w: invalid %s length", ErrInvalidFormat, what)
	}
	if n > limit {
		return 0, fmt.Errorf("%w: %s length %d exceeds %d", ErrTooLarge, what, n, limit)
	}
	return n, nil
}
