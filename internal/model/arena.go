package model

import (
	"sync"

	"github.com/cespare/xxhash/v2"
)

// arena holds the weight blob shared by a primary context and its
// duplicates. The primary frees it, and only once no duplicate holds a
// reference.
type arena struct {
	mu     sync.Mutex
	data   []byte
	digest uint64
	dups   int
	freed  bool
	// frees counts free calls that released data; tests assert it is 1.
	frees int
}

func newArena(data []byte) *arena {
	return &arena{data: data, digest: xxhash.Sum64(data)}
}

func (a *arena) bytes() []byte {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.data
}

func (a *arena) acquire() error {
	a.mu.Lock()
	defer a.mu.Unlock()
	if a.freed {
		return ErrPoolClosed
	}
	a.dups++
	return nil
}

func (a *arena) release() {
	a.mu.Lock()
	defer a.mu.Unlock()
	if a.dups > 0 {
		a.dups--
	}
}

func (a *arena) live() int {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.dups
}

func (a *arena) free() error {
	a.mu.Lock()
	defer a.mu.Unlock()
	if a.dups > 0 {
		return ErrDuplicatesAlive
	}
	if a.freed {
		return nil
	}
	a.freed = true
	a.data = nil
	a.frees++
	return nil
}
