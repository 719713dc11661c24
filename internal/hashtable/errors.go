package hashtable

import (
	"errors"
	"fmt"
)

var (
	ErrInvalidCapacity  = errors.New("capacity must be a positive integer")
	ErrAllocationFailed = errors.New("allocation failed")
	ErrClosed           = errors.New("hash table used after Close")
)

// OpError records the operation and key that failed.
type OpError struct {
	Op  string
	Key string
	Err error
}

func (e *OpError) Error() string {
	if e.Key != "" {
		return fmt.Sprintf("%s %q: %v", e.Op, e.Key, e.Err)
	}
	return fmt.Sprintf("%s: %v", e.Op, e.Err)
}

func (e *OpError) Unwrap() error {
	return e.Err
}
