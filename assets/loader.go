// Package assets acquires the external inputs of a graph solution: the engine
// WASM binary, the bundled data pack, and the compiled graph descriptor.
//
// A Loader produces the bytes of a single asset from some backing source
// (disk, HTTP, S3-compatible storage, or memory). The Fetcher layers a
// checksum-verified local cache over a set of loaders so assets are
// downloaded once and validated on every run.
package assets

import (
	"context"
	"errors"
	"io"
	"net/url"
)

var (
	// ErrSchemeUnsupported is returned when a source URL scheme does not
	// match the loader being constructed.
	ErrSchemeUnsupported = errors.New("unsupported source scheme")

	// ErrNotAvailable is returned when the asset cannot be read from its
	// source.
	ErrNotAvailable = errors.New("asset not available")
)

// Loader reads one asset from a backing source.
type Loader interface {
	// GetReader opens the asset for reading. The caller closes the reader.
	GetReader(ctx context.Context) (io.ReadCloser, error)

	// SourceURL identifies the source location for logging and errors.
	SourceURL() *url.URL
}
