package core

import (
	"fmt"
	"sync"
)

// Identifiers hands out small integer ids bound to an owner and recycles
// released slots. The renderer backends use it for opaque buffer handles.
type Identifiers struct {
	mu     sync.Mutex
	owners []interface{}
}

func NewIdentifiers(capacity int) *Identifiers {
	return &Identifiers{owners: make([]interface{}, 0, capacity)}
}

// Acquire returns the first free id, growing the table if none is free.
func (ids *Identifiers) Acquire(owner interface{}) uint32 {
	ids.mu.Lock()
	defer ids.mu.Unlock()

	for i := range ids.owners {
		// Existing free spot. Take it.
		if ids.owners[i] == nil {
			ids.owners[i] = owner
			return uint32(i)
		}
	}

	// If here, no existing free slots. Need a new id, so push one.
	ids.owners = append(ids.owners, owner)
	return uint32(len(ids.owners) - 1)
}

// Owner returns the owner bound to id, or nil if the slot is free.
func (ids *Identifiers) Owner(id uint32) interface{} {
	ids.mu.Lock()
	defer ids.mu.Unlock()

	if int(id) >= len(ids.owners) {
		return nil
	}
	return ids.owners[id]
}

func (ids *Identifiers) Release(id uint32) error {
	ids.mu.Lock()
	defer ids.mu.Unlock()

	if len(ids.owners) == 0 {
		return fmt.Errorf("identifier release called before any acquire. Nothing was done")
	}
	if int(id) >= len(ids.owners) {
		return fmt.Errorf("identifier release: id '%d' out of range (max=%d). Nothing was done", id, len(ids.owners))
	}
	if ids.owners[id] == nil {
		return fmt.Errorf("identifier release: id '%d' is not in use", id)
	}

	// Just zero out the entry, making it available for use.
	ids.owners[id] = nil
	return nil
}

// Count returns the number of ids currently in use.
func (ids *Identifiers) Count() int {
	ids.mu.Lock()
	defer ids.mu.Unlock()

	n := 0
	for _, o := range ids.owners {
		if o != nil {
			n++
		}
	}
	return n
}
