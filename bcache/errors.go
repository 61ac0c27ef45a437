package bcache

import "errors"

var (
	// ErrPoolExhausted is returned by Acquire when every slot in every shard
	// is referenced. The pool is a hard fixed capacity; this is not retried
	// internally, since the holders blocking the pool may themselves be
	// waiting on the caller. Treat it as a sizing bug, not a transient
	// condition.
	ErrPoolExhausted = errors.New("bcache: no unreferenced slot available")

	// ErrClosed is returned by Acquire after Close.
	ErrClosed = errors.New("bcache: cache is closed")
)
