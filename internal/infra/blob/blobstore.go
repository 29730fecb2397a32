// Package blob exposes the blob storage facade: shared types re-exported from
// the core abstractions plus the environment-driven backend factory. Spectrum
// artifacts produced by synthesis runs are stored and served through a Store.
package blob

import (
	"context"
	"fmt"
	"os"
	"path"

	"stellarsynth/internal/infra/blob/core"
	"stellarsynth/internal/infra/blob/fs"
	"stellarsynth/internal/infra/blob/memory"
	"stellarsynth/internal/infra/blob/s3"
)

// Re-exported blob abstractions.
type (
	Store            = core.Store
	Driver           = core.Driver
	Info             = core.Info
	PutOptions       = core.PutOptions
	SignedURLOptions = core.SignedURLOptions
)

// Supported drivers.
const (
	DriverFilesystem = core.DriverFilesystem
	DriverS3         = core.DriverS3
	DriverMemory     = core.DriverMemory
)

// ErrUnsupported mirrors core.ErrUnsupported.
var ErrUnsupported = core.ErrUnsupported

// NewFilesystem returns a filesystem-backed store rooted at root.
func NewFilesystem(root string) (Store, error) { return fs.New(root) }

// NewMemory returns an in-memory store.
func NewMemory() Store { return memory.New() }

// Open selects a Store implementation using environment variables.
//
//	STELLARSYNTH_BLOB_DRIVER: fs|s3|memory (default fs)
//	STELLARSYNTH_BLOB_FS_ROOT: directory root when driver=fs (default ./spectra)
//	(S3 specific variables documented in the s3 package)
func Open(ctx context.Context) (Store, error) {
	driver := os.Getenv("STELLARSYNTH_BLOB_DRIVER")
	if driver == "" {
		driver = string(DriverFilesystem)
	}
	switch Driver(driver) {
	case DriverFilesystem:
		root := os.Getenv("STELLARSYNTH_BLOB_FS_ROOT")
		return NewFilesystem(root)
	case DriverS3:
		return s3.OpenFromEnv(ctx)
	case DriverMemory:
		return NewMemory(), nil
	default:
		return nil, fmt.Errorf("unknown blob driver %s", driver)
	}
}

// ArtifactKey builds the canonical storage key for a run output file.
func ArtifactKey(runID, filename string) string {
	return path.Join("runs", runID, path.Base(filename))
}
