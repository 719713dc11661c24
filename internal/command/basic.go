package command

import (
	"fmt"
	"strings"

	"github.com/lojhan/chainhash/internal/hashtable"
	"github.com/lojhan/chainhash/internal/resp"
)

func PingCommand(args []resp.Value) resp.Value {
	if len(args) == 0 {
		return resp.PongValue()
	}

	if len(args) > 1 {
		return wrongArgs("ping")
	}

	if args[0].Type != resp.BulkString {
		return resp.ErrorValue("ERR invalid argument type")
	}

	return args[0]
}

func EchoCommand(args []resp.Value) resp.Value {
	if len(args) != 1 {
		return wrongArgs("echo")
	}

	if args[0].Type != resp.BulkString {
		return resp.ErrorValue("ERR invalid argument type")
	}

	return args[0]
}

func InfoCommand(t *hashtable.SyncTable[string]) Handler {
	return func(args []resp.Value) resp.Value {
		section := "all"
		if len(args) > 0 && args[0].Type == resp.BulkString {
			section = strings.ToLower(args[0].Str)
		}

		var sb strings.Builder
		if section == "all" || section == "server" {
			sb.WriteString("# Server\r\n")
			sb.WriteString("chainhash_mode:standalone\r\n")
			sb.WriteString("hash_function:djb2\r\n")
		}
		if section == "all" || section == "table" {
			s := t.Stats()
			sb.WriteString("# Table\r\n")
			fmt.Fprintf(&sb, "size:%d\r\n", s.Size)
			fmt.Fprintf(&sb, "capacity:%d\r\n", s.Capacity)
			fmt.Fprintf(&sb, "load_factor:%.4f\r\n", s.LoadFactor)
		}

		return resp.BulkStringValue(sb.String())
	}
}
