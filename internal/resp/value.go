package resp

import "errors"

type Type byte

const (
	SimpleString Type = '+'
	Error        Type = '-'
	Integer      Type = ':'
	BulkString   Type = '$'
	Array        Type = '*'
)

var (
	ErrInvalidType   = errors.New("invalid RESP type")
	ErrInvalidFormat = errors.New("invalid RESP format")
	ErrIncomplete    = errors.New("incomplete RESP frame")
	ErrTooLarge      = errors.New("RESP length too large")
)

// Limits on what a peer may declare. MaxBulkLen matches Redis's default
// proto-max-bulk-len.
const (
	MaxBulkLen  = 512 << 20
	MaxArrayLen = 1 << 20
	MaxDepth    = 32
)

type Value struct {
	Type  Type
	Str   string
	Int   int64
	Array []Value
	Null  bool
}

func SimpleStringValue(str string) Value {
	return Value{Type: SimpleString, Str: str}
}

func ErrorValue(str string) Value {
	return Value{Type: Error, Str: str}
}

func IntegerValue(num int64) Value {
	return Value{Type: Integer, Int: num}
}

func BulkStringValue(str string) Value {
	return Value{Type: BulkString, Str: str}
}

func NullBulkStringValue() Value {
	return Value{Type: BulkString, Null: true}
}

func ArrayValue(values ...Value) Value {
	return Value{Type: Array, Array: values}
}

func OKValue() Value {
	return SimpleStringValue("OK")
}

func PongValue() Value {
	return SimpleStringValue("PONG")
}

// Command builds the array-of-bulk-strings form clients send.
func Command(name string, args ...string) Value {
	values := make([]Value, 0, len(args)+1)
	values = append(values, BulkStringValue(name))
	for _, arg := range args {
		values = append(values, BulkStringValue(arg))
	}
	return ArrayValue(values...)
}
