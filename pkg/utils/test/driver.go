package testutils

import (
	"context"
	"errors"

	"github.com/docweave/weave/pkg/storage"
)

// ErrMockSave is returned by FailingDriver.Save.
var ErrMockSave = errors.New("mock save failure")

// FailingDriver wraps a storage driver and fails every Save.
type FailingDriver struct {
	storage.Driver
}

func (d *FailingDriver) Save(_ context.Context, _ *storage.Record) error {
	return ErrMockSave
}
