package inmemory

import (
	"cmp"
	"context"
	"errors"
	"slices"
	"sync"

	"github.com/docweave/weave/pkg/storage"
)

// Driver implements storage.Driver using an in-memory map.
type Driver struct {
	// mu is a read write sync mutex for locking the mapping of records
	mu sync.RWMutex

	// records is the in memory map of records keyed by session ID
	records map[string]*storage.Record
}

// NewDriver creates a new in-memory driver.
func NewDriver() *Driver {
	return &Driver{
		records: make(map[string]*storage.Record),
	}
}

// Save stores a copy of the record, replacing any record with the same ID.
func (d *Driver) Save(_ context.Context, r *storage.Record) error {
	if r == nil {
		return errors.New("cannot store nil record")
	}
	if r.ID == "" {
		return errors.New("cannot store record without id")
	}

	d.mu.Lock()
	defer d.mu.Unlock()

	d.records[r.ID] = clone(r)
	return nil
}

// Get retrieves a record by ID.
func (d *Driver) Get(_ context.Context, id string) (*storage.Record, error) {
	d.mu.RLock()
	defer d.mu.RUnlock()

	r, ok := d.records[id]
	if !ok {
		return nil, storage.NotFoundError{ID: id}
	}
	return clone(r), nil
}

// List returns records newest first, without payloads.
func (d *Driver) List(_ context.Context, opts storage.ListOptions) ([]*storage.Record, error) {
	d.mu.RLock()
	defer d.mu.RUnlock()

	out := make([]*storage.Record, 0, len(d.records))
	for _, r := range d.records {
		if opts.Kind != "" && r.Kind != opts.Kind {
			continue
		}
		out = append(out, &storage.Record{Summary: r.Summary})
	}

	slices.SortFunc(out, func(a, b *storage.Record) int {
		if c := b.StartedAt.Compare(a.StartedAt); c != 0 {
			return c
		}
		return cmp.Compare(a.ID, b.ID)
	})

	if opts.Limit > 0 && len(out) > opts.Limit {
		out = out[:opts.Limit]
	}
	return out, nil
}

// Delete removes a record by ID.
func (d *Driver) Delete(_ context.Context, id string) error {
	d.mu.Lock()
	defer d.mu.Unlock()

	if _, ok := d.records[id]; !ok {
		return storage.NotFoundError{ID: id}
	}
	delete(d.records, id)
	return nil
}

// Close is a no-op for the in-memory driver.
func (d *Driver) Close() error {
	return nil
}

func clone(r *storage.Record) *storage.Record {
	c := *r
	c.Payload = slices.Clone(r.Payload)
	return &c
}
