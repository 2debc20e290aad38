package assetviewer

import (
	"errors"
	"fmt"

	"github.com/chalkpe/assetviewer/internal/batch"
)

// Sentinel errors for store and manifest handling.
var (
	// ErrInvalidStore is returned when a directory is not an asset store.
	ErrInvalidStore = errors.New("assetviewer: invalid asset store")

	// ErrNoVersions is returned when a store has no manifests.
	ErrNoVersions = errors.New("assetviewer: no versions found")

	// ErrInvalidVersion is returned for an empty or path-like version identifier.
	ErrInvalidVersion = errors.New("assetviewer: invalid version")

	// ErrManifest matches every *ManifestError via errors.Is.
	ErrManifest = errors.New("assetviewer: invalid manifest")

	// ErrMalformedEntry is returned for a manifest entry without a usable hash.
	ErrMalformedEntry = errors.New("assetviewer: malformed entry")

	// ErrUnsafeName is returned for a logical name that would escape the destination.
	ErrUnsafeName = errors.New("assetviewer: unsafe logical name")

	// ErrDuplicateName is returned for a logical name that resolves to the same
	// destination as an earlier name in sorted order.
	ErrDuplicateName = errors.New("assetviewer: duplicate logical name")
)

// Errors re-exported from the copy engine.
var (
	// ErrBlobMissing is returned when an entry's object file does not exist.
	ErrBlobMissing = batch.ErrSourceMissing

	// ErrHashMismatch is returned when verified content does not match its hash.
	ErrHashMismatch = batch.ErrHashMismatch

	// ErrSizeMismatch is returned when verified content does not match its size.
	ErrSizeMismatch = batch.ErrSizeMismatch
)

// ManifestError is a fatal error loading or parsing a manifest.
// No files are copied when an export fails with a ManifestError.
type ManifestError struct {
	Version string
	Path    string
	Err     error
}

func (e *ManifestError) Error() string {
	if e.Path == "" {
		return fmt.Sprintf("assetviewer: manifest %q: %v", e.Version, e.Err)
	}
	return fmt.Sprintf("assetviewer: manifest %q (%s): %v", e.Version, e.Path, e.Err)
}

func (e *ManifestError) Unwrap() error { return e.Err }

// Is reports whether target is ErrManifest.
func (e *ManifestError) Is(target error) bool {
	return target == ErrManifest
}

// FailureKind classifies a per-entry failure.
type FailureKind uint8

const (
	// KindEntry is a malformed manifest entry or unsafe logical name.
	KindEntry FailureKind = iota + 1

	// KindIO is a filesystem failure: missing object, permissions, disk full,
	// or failed verification.
	KindIO
)

func (k FailureKind) String() string {
	switch k {
	case KindEntry:
		return "entry"
	case KindIO:
		return "io"
	default:
		return "unknown"
	}
}

// Failure records one entry that was not exported.
type Failure struct {
	LogicalName string
	Kind        FailureKind
	Err         error
}

func (f Failure) Error() string {
	return fmt.Sprintf("%s: %v", f.LogicalName, f.Err)
}

func (f Failure) Unwrap() error { return f.Err }
