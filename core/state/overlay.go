package state

import (
	"clearcore/storage"
)

// Overlay buffers writes against a base database so a mutating operation can
// be applied all-or-nothing: every Put and Delete lands in the pending map,
// Reads consult the pending map first, and nothing reaches the base until
// Commit. Discarding the overlay (dropping it without Commit) rolls the whole
// operation back.
type Overlay struct {
	base    storage.Database
	pending map[string][]byte
	deleted map[string]struct{}
}

// NewOverlay creates a write overlay on top of the provided base database.
func NewOverlay(base storage.Database) *Overlay {
	return &Overlay{
		base:    base,
		pending: make(map[string][]byte),
		deleted: make(map[string]struct{}),
	}
}

func (o *Overlay) Put(key []byte, value []byte) error {
	k := string(key)
	delete(o.deleted, k)
	o.pending[k] = append([]byte(nil), value...)
	return nil
}

func (o *Overlay) Get(key []byte) ([]byte, error) {
	k := string(key)
	if _, gone := o.deleted[k]; gone {
		return nil, storage.ErrNotFound
	}
	if value, ok := o.pending[k]; ok {
		return append([]byte(nil), value...), nil
	}
	return o.base.Get(key)
}

func (o *Overlay) Delete(key []byte) error {
	k := string(key)
	delete(o.pending, k)
	o.deleted[k] = struct{}{}
	return nil
}

// Close satisfies the Database interface; the base remains open.
func (o *Overlay) Close() {}

// Commit flushes buffered writes to the base database. On error the base may
// hold a prefix of the writes; callers treat a failed commit as fatal.
func (o *Overlay) Commit() error {
	for k := range o.deleted {
		if err := o.base.Delete([]byte(k)); err != nil {
			return err
		}
	}
	for k, value := range o.pending {
		if err := o.base.Put([]byte(k), value); err != nil {
			return err
		}
	}
	o.pending = make(map[string][]byte)
	o.deleted = make(map[string]struct{})
	return nil
}
