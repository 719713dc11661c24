package main

import (
	"flag"
	"fmt"
	"io"
	"os"

	"github.com/lojhan/chainhash/internal/hashtable"
)

func main() {
	capacity := flag.Int("capacity", 10, "Number of buckets")
	flag.Parse()

	if err := run(os.Stdout, *capacity); err != nil {
		fmt.Fprintf(os.Stderr, "chainhash-demo: %v\n", err)
		os.Exit(1)
	}
}

func run(w io.Writer, capacity int) error {
	ht, err := hashtable.New[*int](capacity)
	if err != nil {
		return err
	}
	defer ht.Close()

	value1, value2, value3 := 100, 200, 300
	for _, kv := range []struct {
		key   string
		value *int
	}{
		{"key1", &value1},
		{"key2", &value2},
		{"key3", &value3},
	} {
		if err := ht.Insert(kv.key, kv.value); err != nil {
			return err
		}
	}

	if err := ht.Fprint(w); err != nil {
		return err
	}

	if v, ok := ht.Lookup("key2"); ok {
		fmt.Fprintf(w, "Value for key2: %d\n", *v)
	}

	if ht.Delete("key1") {
		fmt.Fprintln(w, "Deleted key1")
	}

	return ht.Fprint(w)
}
