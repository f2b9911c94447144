package state

import (
	"errors"
	"sync"

	"bazaar/storage"
)

// overlayDB buffers writes and deletes on top of a base database. Nothing
// touches the base until flush.
type overlayDB struct {
	mu      sync.Mutex
	base    storage.Database
	writes  map[string][]byte
	deletes map[string]struct{}
}

func newOverlayDB(base storage.Database) *overlayDB {
	return &overlayDB{
		base:    base,
		writes:  make(map[string][]byte),
		deletes: make(map[string]struct{}),
	}
}

func (o *overlayDB) Put(key []byte, value []byte) error {
	o.mu.Lock()
	defer o.mu.Unlock()
	buf := make([]byte, len(value))
	copy(buf, value)
	o.writes[string(key)] = buf
	delete(o.deletes, string(key))
	return nil
}

func (o *overlayDB) Get(key []byte) ([]byte, error) {
	o.mu.Lock()
	if _, gone := o.deletes[string(key)]; gone {
		o.mu.Unlock()
		return nil, storage.ErrKeyNotFound
	}
	if value, ok := o.writes[string(key)]; ok {
		buf := make([]byte, len(value))
		copy(buf, value)
		o.mu.Unlock()
		return buf, nil
	}
	o.mu.Unlock()
	return o.base.Get(key)
}

func (o *overlayDB) Delete(key []byte) error {
	o.mu.Lock()
	defer o.mu.Unlock()
	delete(o.writes, string(key))
	o.deletes[string(key)] = struct{}{}
	return nil
}

func (o *overlayDB) Has(key []byte) (bool, error) {
	_, err := o.Get(key)
	if errors.Is(err, storage.ErrKeyNotFound) {
		return false, nil
	}
	if err != nil {
		return false, err
	}
	return true, nil
}

func (o *overlayDB) Close() {}

// flush applies the buffered mutations to the base store.
func (o *overlayDB) flush() error {
	o.mu.Lock()
	defer o.mu.Unlock()
	for key := range o.deletes {
		if err := o.base.Delete([]byte(key)); err != nil {
			return err
		}
	}
	for key, value := range o.writes {
		if err := o.base.Put([]byte(key), value); err != nil {
			return err
		}
	}
	return nil
}

// Execute runs fn against a buffered copy of the state. The buffer commits
// only when fn returns nil; any error discards every mutation fn made, which
// is what gives instruction handlers their all-or-nothing semantics.
func (m *Manager) Execute(fn func(*Manager) error) error {
	overlay := newOverlayDB(m.db)
	scoped := NewManager(overlay)
	if err := fn(scoped); err != nil {
		return err
	}
	return overlay.flush()
}
