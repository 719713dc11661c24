package command

import (
	"strings"
	"testing"

	"github.com/lojhan/chainhash/internal/hashtable"
	"github.com/lojhan/chainhash/internal/resp"
)

func newTable(t *testing.T, capacity int, opts ...hashtable.Option) *hashtable.SyncTable[string] {
	t.Helper()
	tbl, err := hashtable.NewSync[string](capacity, opts...)
	if err != nil {
		t.Fatalf("Failed to create table: %v", err)
	}
	return tbl
}

func args(strs ...string) []resp.Value {
	values := make([]resp.Value, len(strs))
	for i, s := range strs {
		values[i] = resp.BulkStringValue(s)
	}
	return values
}

func TestSetGetCommand(t *testing.T) {
	tbl := newTable(t, 16)
	set := SetCommand(tbl)
	get := GetCommand(tbl)

	result := set(args("key1", "value1"))
	if result.Type != resp.SimpleString || result.Str != "OK" {
		t.Errorf("Expected OK, got %+v", result)
	}

	result = get(args("key1"))
	if result.Type != resp.BulkString || result.Str != "value1" {
		t.Errorf("Expected value1, got %+v", result)
	}

	set(args("key1", "value2"))
	result = get(args("key1"))
	if result.Str != "value2" {
		t.Errorf("Expected value2 after overwrite, got %q", result.Str)
	}
	if tbl.Len() != 1 {
		t.Errorf("Expected 1 key, got %d", tbl.Len())
	}

	result = get(args("nonexistent"))
	if result.Type != resp.BulkString || !result.Null {
		t.Errorf("Expected null bulk string, got %+v", result)
	}
}

func TestSetCommandArguments(t *testing.T) {
	set := SetCommand(newTable(t, 4))

	if result := set(args("only-key")); result.Type != resp.Error {
		t.Errorf("Expected error for missing value, got %+v", result)
	}

	result := set([]resp.Value{resp.BulkStringValue("k"), resp.IntegerValue(1)})
	if result.Type != resp.Error || result.Str != "ERR invalid argument type" {
		t.Errorf("Expected invalid argument type error, got %+v", result)
	}

	result = set([]resp.Value{resp.BulkStringValue("k"), resp.NullBulkStringValue()})
	if result.Type != resp.Error {
		t.Errorf("Expected error for null value, got %+v", result)
	}
}

func TestSetCommandOutOfMemory(t *testing.T) {
	limit := hashtable.EstimateSize(hashtable.KindBuckets, 4)
	tbl := newTable(t, 4, hashtable.WithAllocator(hashtable.NewLimitAllocator(limit)))

	result := SetCommand(tbl)(args("k", "v"))
	if result.Type != resp.Error || !strings.HasPrefix(result.Str, "OOM") {
		t.Errorf("Expected OOM error, got %+v", result)
	}
	if tbl.Len() != 0 {
		t.Errorf("Expected empty table, got %d", tbl.Len())
	}
}

func TestDelExistsCommand(t *testing.T) {
	tbl := newTable(t, 1)
	set := SetCommand(tbl)
	del := DelCommand(tbl)
	exists := ExistsCommand(tbl)

	set(args("a", "1"))
	set(args("b", "2"))
	set(args("c", "3"))

	if result := exists(args("a", "b", "z")); result.Int != 2 {
		t.Errorf("Expected 2 existing keys, got %d", result.Int)
	}

	if result := del(args("a", "z")); result.Type != resp.Integer || result.Int != 1 {
		t.Errorf("Expected 1 key removed, got %+v", result)
	}
	if result := del(args("a")); result.Int != 0 {
		t.Errorf("Expected second delete to remove nothing, got %d", result.Int)
	}
	if result := exists(args("a")); result.Int != 0 {
		t.Errorf("Expected a to be gone, got %d", result.Int)
	}

	if result := del(nil); result.Type != resp.Error {
		t.Errorf("Expected error for DEL without keys, got %+v", result)
	}
	if result := exists(nil); result.Type != resp.Error {
		t.Errorf("Expected error for EXISTS without keys, got %+v", result)
	}
}

func TestDBSizeAndFlushCommand(t *testing.T) {
	tbl := newTable(t, 10)
	set := SetCommand(tbl)
	dbsize := DBSizeCommand(tbl)
	flush := FlushCommand(tbl)

	set(args("x", "1"))
	set(args("y", "2"))

	if result := dbsize(nil); result.Int != 2 {
		t.Errorf("Expected dbsize 2, got %d", result.Int)
	}

	if result := flush(nil); result.Str != "OK" {
		t.Errorf("Expected OK, got %+v", result)
	}
	if result := dbsize(nil); result.Int != 0 {
		t.Errorf("Expected dbsize 0 after flush, got %d", result.Int)
	}
	if tbl.Cap() != 10 {
		t.Errorf("Expected capacity to survive flush, got %d", tbl.Cap())
	}

	if result := dbsize(args("extra")); result.Type != resp.Error {
		t.Errorf("Expected error for DBSIZE with arguments, got %+v", result)
	}
}

func TestFlushCommandAtMemoryLimit(t *testing.T) {
	limit := hashtable.EstimateSize(hashtable.KindBuckets, 4) +
		hashtable.EstimateSize(hashtable.KindEntry, 1) +
		hashtable.EstimateSize(hashtable.KindKey, 1)
	tbl := newTable(t, 4, hashtable.WithAllocator(hashtable.NewLimitAllocator(limit)))
	set := SetCommand(tbl)

	if result := set(args("a", "1")); result.Str != "OK" {
		t.Fatalf("Expected OK, got %+v", result)
	}
	if result := FlushCommand(tbl)(nil); result.Str != "OK" {
		t.Errorf("Expected OK, got %+v", result)
	}
	if result := set(args("b", "2")); result.Str != "OK" {
		t.Errorf("Expected OK after flush freed memory, got %+v", result)
	}
	if result := GetCommand(tbl)(args("b")); result.Str != "2" {
		t.Errorf("Expected b=2, got %+v", result)
	}
}

func TestHashCommand(t *testing.T) {
	tbl := newTable(t, 10)

	result := HashCommand(tbl)(args(""))
	if result.Type != resp.Array || len(result.Array) != 2 {
		t.Fatalf("Expected 2-element array, got %+v", result)
	}
	if result.Array[0].Str != "5381" {
		t.Errorf("Expected hash 5381, got %s", result.Array[0].Str)
	}
	if result.Array[1].Int != 5381%10 {
		t.Errorf("Expected bucket %d, got %d", 5381%10, result.Array[1].Int)
	}
}

func TestKeysAndDumpCommand(t *testing.T) {
	tbl := newTable(t, 1)
	set := SetCommand(tbl)
	set(args("a", "1"))
	set(args("b", "2"))
	set(args("c", "3"))

	keys := KeysCommand(tbl)(nil)
	var got []string
	for _, v := range keys.Array {
		got = append(got, v.Str)
	}
	if strings.Join(got, ",") != "c,b,a" {
		t.Errorf("Expected keys c,b,a, got %v", got)
	}

	dump := DumpCommand(tbl)(nil)
	want := "Hash Table (size: 3, capacity: 1)\n  Bucket 0: [c]-> [b]-> [a]->NULL\n"
	if dump.Str != want {
		t.Errorf("Expected %q, got %q", want, dump.Str)
	}
}

func TestStatsCommand(t *testing.T) {
	tbl := newTable(t, 4)
	SetCommand(tbl)(args("a", "1"))
	GetCommand(tbl)(args("a"))
	GetCommand(tbl)(args("missing"))

	result := StatsCommand(tbl)(nil)
	if result.Type != resp.Array || len(result.Array)%2 != 0 {
		t.Fatalf("Expected name/value pairs, got %+v", result)
	}

	stats := make(map[string]string)
	for i := 0; i < len(result.Array); i += 2 {
		stats[result.Array[i].Str] = result.Array[i+1].Str
	}

	expected := map[string]string{
		"size":        "1",
		"capacity":    "4",
		"load_factor": "0.2500",
		"hits":        "1",
		"misses":      "1",
		"inserts":     "1",
	}
	for name, want := range expected {
		if stats[name] != want {
			t.Errorf("Expected %s=%s, got %s", name, want, stats[name])
		}
	}
}

type registry map[string]Handler

func (r registry) RegisterCommand(name string, h Handler) {
	r[name] = h
}

func TestRegister(t *testing.T) {
	r := registry{}
	Register(r, newTable(t, 4))

	for _, name := range []string{"PING", "ECHO", "INFO", "SET", "GET", "DEL", "EXISTS", "DBSIZE", "FLUSHDB", "HASH", "KEYS", "DUMP", "STATS"} {
		if r[name] == nil {
			t.Errorf("Expected %s to be registered", name)
		}
	}
}
