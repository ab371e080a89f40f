// Package blob is the entry point for export artifact storage. It re-exports
// the core contract and selects a backend from configuration.
package blob

import (
	"strmatch/internal/blob/core"
)

type (
	// Driver identifies a blob backend driver.
	Driver = core.Driver
	// PutOptions configures a blob write.
	PutOptions = core.PutOptions
	// SignedURLOptions configures URL pre-signing.
	SignedURLOptions = core.SignedURLOptions
	// Info describes stored blob metadata.
	Info = core.Info
	// Store is the interface for blob storage backends.
	Store = core.Store
	// ErrNotFound reports a missing key.
	ErrNotFound = core.ErrNotFound
)

const (
	DriverFilesystem = core.DriverFilesystem
	DriverS3         = core.DriverS3
	DriverMemory     = core.DriverMemory
)

var (
	// ErrUnsupported indicates an operation isn't supported by a driver.
	ErrUnsupported = core.ErrUnsupported
	// ErrExists is returned when writing an existing key.
	ErrExists = core.ErrExists
)

// IsNotFound reports whether err signals a missing key.
func IsNotFound(err error) bool { return core.IsNotFound(err) }
