package command

import (
	"errors"
	"strconv"
	"strings"

	"github.com/lojhan/chainhash/internal/hashtable"
	"github.com/lojhan/chainhash/internal/resp"
)

type Handler = func(args []resp.Value) resp.Value

func wrongArgs(name string) resp.Value {
	return resp.ErrorValue("ERR wrong number of arguments for '" + name + "' command")
}

func bulkArgs(args []resp.Value) ([]string, bool) {
	strs := make([]string, len(args))
	for i, arg := range args {
		if arg.Type != resp.BulkString || arg.Null {
			return nil, false
		}
		strs[i] = arg.Str
	}
	return strs, true
}

func SetCommand(t *hashtable.SyncTable[string]) Handler {
	return func(args []resp.Value) resp.Value {
		if len(args) != 2 {
			return wrongArgs("set")
		}
		strs, ok := bulkArgs(args)
		if !ok {
			return resp.ErrorValue("ERR invalid argument type")
		}

		if err := t.Insert(strs[0], strs[1]); err != nil {
			if errors.Is(err, hashtable.ErrAllocationFailed) {
				return resp.ErrorValue("OOM command not allowed when used memory > 'maxmemory'")
			}
			return resp.ErrorValue("ERR " + err.Error())
		}
		return resp.OKValue()
	}
}

func GetCommand(t *hashtable.SyncTable[string]) Handler {
	return func(args []resp.Value) resp.Value {
		if len(args) != 1 {
			return wrongArgs("get")
		}
		strs, ok := bulkArgs(args)
		if !ok {
			return resp.ErrorValue("ERR invalid argument type")
		}

		value, exists := t.Lookup(strs[0])
		if !exists {
			return resp.NullBulkStringValue()
		}
		return resp.BulkStringValue(value)
	}
}

func DelCommand(t *hashtable.SyncTable[string]) Handler {
	return func(args []resp.Value) resp.Value {
		if len(args) == 0 {
			return wrongArgs("del")
		}
		keys, ok := bulkArgs(args)
		if !ok {
			return resp.ErrorValue("ERR invalid argument type")
		}

		var removed int64
		for _, key := range keys {
			if t.Delete(key) {
				removed++
			}
		}
		return resp.IntegerValue(removed)
	}
}

func ExistsCommand(t *hashtable.SyncTable[string]) Handler {
	return func(args []resp.Value) resp.Value {
		if len(args) == 0 {
			return wrongArgs("exists")
		}
		keys, ok := bulkArgs(args)
		if !ok {
			return resp.ErrorValue("ERR invalid argument type")
		}

		var found int64
		for _, key := range keys {
			if _, exists := t.Lookup(key); exists {
				found++
			}
		}
		return resp.IntegerValue(found)
	}
}

func DBSizeCommand(t *hashtable.SyncTable[string]) Handler {
	return func(args []resp.Value) resp.Value {
		if len(args) != 0 {
			return wrongArgs("dbsize")
		}
		return resp.IntegerValue(int64(t.Len()))
	}
}

func FlushCommand(t *hashtable.SyncTable[string]) Handler {
	return func(args []resp.Value) resp.Value {
		if len(args) != 0 {
			return wrongArgs("flushdb")
		}
		t.Reset()
		return resp.OKValue()
	}
}

// HashCommand reports the djb2 hash of a key and the bucket it maps to.
func HashCommand(t *hashtable.SyncTable[string]) Handler {
	return func(args []resp.Value) resp.Value {
		if len(args) != 1 {
			return wrongArgs("hash")
		}
		strs, ok := bulkArgs(args)
		if !ok {
			return resp.ErrorValue("ERR invalid argument type")
		}

		h := hashtable.Hash(strs[0])
		return resp.ArrayValue(
			resp.BulkStringValue(strconv.FormatUint(h, 10)),
			resp.IntegerValue(int64(h%uint64(t.Cap()))),
		)
	}
}

func KeysCommand(t *hashtable.SyncTable[string]) Handler {
	return func(args []resp.Value) resp.Value {
		if len(args) != 0 {
			return wrongArgs("keys")
		}
		keys := t.Keys()
		values := make([]resp.Value, len(keys))
		for i, key := range keys {
			values[i] = resp.BulkStringValue(key)
		}
		return resp.ArrayValue(values...)
	}
}

func DumpCommand(t *hashtable.SyncTable[string]) Handler {
	return func(args []resp.Value) resp.Value {
		if len(args) != 0 {
			return wrongArgs("dump")
		}
		var sb strings.Builder
		if err := t.Fprint(&sb); err != nil {
			return resp.ErrorValue("ERR " + err.Error())
		}
		return resp.BulkStringValue(sb.String())
	}
}

func StatsCommand(t *hashtable.SyncTable[string]) Handler {
	return func(args []resp.Value) resp.Value {
		if len(args) != 0 {
			return wrongArgs("stats")
		}
		s := t.Stats()
		c := t.Counters()

		pairs := []struct {
			name  string
			value string
		}{
			{"size", strconv.Itoa(s.Size)},
			{"capacity", strconv.Itoa(s.Capacity)},
			{"load_factor", strconv.FormatFloat(s.LoadFactor, 'f', 4, 64)},
			{"empty_buckets", strconv.Itoa(s.EmptyBuckets)},
			{"longest_chain", strconv.Itoa(s.LongestChain)},
			{"hits", strconv.FormatInt(c.Hits, 10)},
			{"misses", strconv.FormatInt(c.Misses, 10)},
			{"inserts", strconv.FormatInt(c.Inserts, 10)},
			{"deletes", strconv.FormatInt(c.Deletes, 10)},
		}

		values := make([]resp.Value, 0, len(pairs)*2)
		for _, p := range pairs {
			values = append(values, resp.BulkStringValue(p.name), resp.BulkStringValue(p.value))
		}
		return resp.ArrayValue(values...)
	}
}

// Register binds every table command to t on r.
func Register(r interface{ RegisterCommand(string, Handler) }, t *hashtable.SyncTable[string]) {
	r.RegisterCommand("PING", PingCommand)
	r.RegisterCommand("ECHO", EchoCommand)
	r.RegisterCommand("INFO", InfoCommand(t))
	r.RegisterCommand("SET", SetCommand(t))
	r.RegisterCommand("GET", GetCommand(t))
	r.RegisterCommand("DEL", DelCommand(t))
	r.RegisterCommand("EXISTS", ExistsCommand(t))
	r.RegisterCommand("DBSIZE", DBSizeCommand(t))
	r.RegisterCommand("FLUSHDB", FlushCommand(t))
	r.RegisterCommand("HASH", HashCommand(t))
	r.RegisterCommand("KEYS", KeysCommand(t))
	r.RegisterCommand("DUMP", DumpCommand(t))
	r.RegisterCommand("STATS", StatsCommand(t))
}
