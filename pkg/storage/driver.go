// Package storage keeps the history of finished sessions.
package storage

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"github.com/docweave/weave/pkg/session"
)

// Record is one stored session: its summary plus the JSON snapshot of its
// state (transcript, research timeline or comparison results).
type Record struct {
	session.Summary

	Payload json.RawMessage `json:"payload,omitempty"`
}

// NewRecord captures the current summary and snapshot of s.
func NewRecord(s session.Recordable) (*Record, error) {
	payload, err := json.Marshal(s.Snapshot())
	if err != nil {
		return nil, fmt.Errorf("marshaling %s snapshot: %w", s.Summary().Kind, err)
	}
	return &Record{Summary: s.Summary(), Payload: payload}, nil
}

// Decode unmarshals the payload into v.
func (r *Record) Decode(v any) error {
	if len(r.Payload) == 0 {
		return fmt.Errorf("record %s has no payload", r.ID)
	}
	return json.Unmarshal(r.Payload, v)
}

// ListOptions filters List.
type ListOptions struct {
	// Kind limits the result to one session kind. Empty lists every kind.
	Kind session.Kind

	// Limit caps the number of records. Zero means no limit.
	Limit int
}

// Driver defines the interface for persisting and retrieving session records
// in a storage backend.
type Driver interface {
	// Save inserts the record or replaces the stored record with the same ID.
	Save(ctx context.Context, r *Record) error

	// Get retrieves a record by ID. It returns a NotFoundError when no such
	// record exists.
	Get(ctx context.Context, id string) (*Record, error)

	// List returns records newest first, without their payloads.
	List(ctx context.Context, opts ListOptions) ([]*Record, error)

	// Delete removes a record. It returns a NotFoundError when no such record
	// exists.
	Delete(ctx context.Context, id string) error

	// Close closes the store and releases any resources.
	Close() error
}

// Resolve finds the record named by id or by a unique prefix of its ID. A
// prefix shared by several records returns an error matching ErrAmbiguousID.
func Resolve(ctx context.Context, d Driver, id string) (*Record, error) {
	rec, err := d.Get(ctx, id)
	if err == nil || !errors.Is(err, ErrNotFound) {
		return rec, err
	}

	all, err := d.List(ctx, ListOptions{})
	if err != nil {
		return nil, err
	}

	var match string
	for _, r := range all {
		if !strings.HasPrefix(r.ID, id) {
			continue
		}
		if match != "" {
			return nil, fmt.Errorf("%w: %s", ErrAmbiguousID, id)
		}
		match = r.ID
	}
	if match == "" {
		return nil, NotFoundError{ID: id}
	}
	return d.Get(ctx, match)
}
