package resp

import (
	"errors"
	"io"
	"reflect"
	"strings"
	"testing"
)

func TestParse(t *testing.T) {
	tests := []struct {
		name     string
		input    string
		expected Value
		wantErr  bool
	}{
		{
			name:     "simple string",
			input:    "+OK\r\n",
			expected: Value{Type: SimpleString, Str: "OK"},
		},
		{
			name:     "empty simple string",
			input:    "+\r\n",
			expected: Value{Type: SimpleString, Str: ""},
		},
		{
			name:     "error",
			input:    "-ERR unknown command\r\n",
			expected: Value{Type: Error, Str: "ERR unknown command"},
		},
		{
			name:     "negative integer",
			input:    ":-42\r\n",
			expected: Value{Type: Integer, Int: -42},
		},
		{
			name:     "bulk string",
			input:    "$5\r\nhello\r\n",
			expected: Value{Type: BulkString, Str: "hello"},
		},
		{
			name:     "empty bulk string",
			input:    "$0\r\n\r\n",
			expected: Value{Type: BulkString, Str: ""},
		},
		{
			name:     "null bulk string",
			input:    "$-1\r\n",
			expected: Value{Type: BulkString, Null: true},
		},
		{
			name:     "bulk string with CRLF inside",
			input:    "$4\r\na\r\nb\r\n",
			expected: Value{Type: BulkString, Str: "a\r\nb"},
		},
		{
			name:  "command array",
			input: "*2\r\n$3\r\nGET\r\n$3\r\nkey\r\n",
			expected: Value{Type: Array, Array: []Value{
				{Type: BulkString, Str: "GET"},
				{Type: BulkString, Str: "key"},
			}},
		},
		{
			name:     "null array",
			input:    "*-1\r\n",
			expected: Value{Type: Array, Null: true},
		},
		{
			name:    "invalid type",
			input:   "?what\r\n",
			wantErr: true,
		},
		{
			name:    "invalid integer",
			input:   ":abc\r\n",
			wantErr: true,
		},
		{
			name:    "missing CR",
			input:   "+OK\n",
			wantErr: true,
		},
		{
			name:    "bulk string without trailing CRLF",
			input:   "$3\r\nabcXY",
			wantErr: true,
		},
		{
			name:    "bulk length near MaxInt64",
			input:   "$9223372036854775807\r\nabc\r\n",
			wantErr: true,
		},
		{
			name:    "array count near MaxInt64",
			input:   "*9223372036854775807\r\n",
			wantErr: true,
		},
		{
			name:    "negative bulk length",
			input:   "$-5\r\n",
			wantErr: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			parser := NewParser(strings.NewReader(tt.input))
			got, err := parser.Parse()

			if (err != nil) != tt.wantErr {
				t.Errorf("Parse() error = %v, wantErr %v", err, tt.wantErr)
				return
			}

			if !tt.wantErr && !reflect.DeepEqual(got, tt.expected) {
				t.Errorf("Parse() = %+v, want %+v", got, tt.expected)
			}
		})
	}
}

func TestParseMultipleValues(t *testing.T) {
	parser := NewParser(strings.NewReader("+OK\r\n:1\r\n"))

	first, err := parser.Parse()
	if err != nil || first.Str != "OK" {
		t.Fatalf("Expected OK, got %+v (%v)", first, err)
	}

	second, err := parser.Parse()
	if err != nil || second.Int != 1 {
		t.Fatalf("Expected 1, got %+v (%v)", second, err)
	}

	if _, err := parser.Parse(); err != io.EOF {
		t.Errorf("Expected io.EOF, got %v", err)
	}
}

func TestParseInvalidTypeIsSentinel(t *testing.T) {
	_, err := NewParser(strings.NewReader("!x\r\n")).Parse()
	if !errors.Is(err, ErrInvalidType) {
		t.Errorf("Expected ErrInvalidType, got %v", err)
	}
}

func TestParseRejectsOversizedLengths(t *testing.T) {
	tests := []struct {
		name  string
		input string
		want  error
	}{
		{"bulk length near MaxInt64", "$9223372036854775807\r\nabc\r\n", ErrTooLarge},
		{"bulk length overflowing int64", "$9223372036854775808\r\n", ErrInvalidFormat},
		{"bulk length over limit", "$536870913\r\n", ErrTooLarge},
		{"array count over limit", "*1048577\r\n", ErrTooLarge},
		{"nested oversized bulk", "*1\r\n$9223372036854775807\r\nx\r\n", ErrTooLarge},
		{"arrays nested too deep", strings.Repeat("*1\r\n", MaxDepth+1) + ":1\r\n", ErrInvalidFormat},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := NewParser(strings.NewReader(tt.input)).Parse()
			if !errors.Is(err, tt.want) {
				t.Errorf("Parse() error = %v, want %v", err, tt.want)
			}
		})
	}
}
