package resp

import (
	"bufio"
	"fmt"
	"io"
	"strconv"
)

type Parser struct {
	reader *bufio.Reader
}

func NewParser(r io.Reader) *Parser {
	br, ok := r.(*bufio.Reader)
	if !ok {
		br = bufio.NewReader(r)
	}
	return &Parser{reader: br}
}

func (p *Parser) Parse() (Value, error) {
	return p.parse(0)
}

func (p *Parser) parse(depth int) (Value, error) {
	typeByte, err := p.reader.ReadByte()
	if err != nil {
		return Value{}, err
	}

	switch t := Type(typeByte); t {
	case SimpleString, Error:
		line, err := p.readLine()
		if err != nil {
			return Value{}, err
		}
		return Value{Type: t, Str: line}, nil
	case Integer:
		line, err := p.readLine()
		if err != nil {
			return Value{}, err
		}
		num, err := strconv.ParseInt(line, 10, 64)
		if err != nil {
			return Value{}, fmt.Errorf("%w: invalid integer", ErrInvalidFormat)
		}
		return Value{Type: Integer, Int: num}, nil
	case BulkString:
		return p.parseBulkString()
	case Array:
		return p.parseArray(depth)
	default:
		return Value{}, fmt.Errorf("%w: %c", ErrInvalidType, typeByte)
	}
}

func (p *Parser) parseBulkString() (Value, error) {
	length, err := p.readLength("bulk string", MaxBulkLen)
	if err != nil {
		return Value{}, err
	}
	if length == -1 {
		return NullBulkStringValue(), nil
	}

	buf := make([]byte, length+2)
	if _, err := io.ReadFull(p.reader, buf); err != nil {
		return Value{}, err
	}
	if buf[length] != '\r' || buf[length+1] != '\n' {
		return Value{}, fmt.Errorf("%w: missing CRLF after bulk string", ErrInvalidFormat)
	}

	return BulkStringValue(string(buf[:length])), nil
}

func (p *Parser) parseArray(depth int) (Value, error) {
	count, err := p.readLength("array", MaxArrayLen)
	if err != nil {
		return Value{}, err
	}
	if count == -1 {
		return Value{Type: Array, Null: true}, nil
	}
	if depth >= MaxDepth {
		return Value{}, fmt.Errorf("%w: arrays nested deeper than %d", ErrInvalidFormat, MaxDepth)
	}

	array := make([]Value, 0, min(count, 1024))
	for range count {
		val, err := p.parse(depth + 1)
		if err != nil {
			return Value{}, err
		}
		array = append(array, val)
	}

	return Value{Type: Array, Array: array}, nil
}

func (p *Parser) readLength(what string, limit int) (int, error) {
	line, err := p.readLine()
	if err != nil {
		return 0, err
	}
	n, err := strconv.Atoi(line)
	if err != nil || n < -1 {
		return 0, fmt.Errorf("%w: invalid %s length", ErrInvalidFormat, what)
	}
	if n > limit {
		return 0, fmt.Errorf("%w: %s length %d exceeds %d", ErrTooLarge, what, n, limit)
	}
	return n, nil
}

func (p *Parser) readLine() (string, error) {
	line, err := p.reader.ReadString('\n')
	if err != nil {
		return "", err
	}

	if len(line) < 2 || line[len(line)-2] != '\r' {
		return "", fmt.Errorf("%w: missing CRLF", ErrInvalidFormat)
	}

	return line[:len(line)-2], nil
}
