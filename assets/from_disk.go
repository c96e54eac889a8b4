package assets

import (
	"context"
	"fmt"
	"io"
	"net/url"
	"os"
	"path/filepath"
	"strings"
)

// FromDisk loads an asset from the local filesystem.
type FromDisk struct {
	path      string
	sourceURL *url.URL
}

// NewFromDisk creates a disk loader. Relative paths are rejected so the
// source is unambiguous regardless of working directory.
func NewFromDisk(path string) (*FromDisk, error) {
	path = strings.TrimPrefix(path, "file://")

	if strings.HasPrefix(path, "http://") || strings.HasPrefix(path, "https://") {
		return nil, fmt.Errorf("%w: %s", ErrSchemeUnsupported, path)
	}
	if !filepath.IsAbs(path) {
		return nil, fmt.Errorf("%w: relative paths are not supported", ErrNotAvailable)
	}

	path = filepath.Clean(path)

	sourceURL := &url.URL{Scheme: "file", Path: filepath.ToSlash(path)}

	return &FromDisk{path: path, sourceURL: sourceURL}, nil
}

func (l *FromDisk) GetReader(_ context.Context) (io.ReadCloser, error) {
	f, err := os.Open(l.path)
	if err != nil {
		return nil, fmt.Errorf("%w: %s", ErrNotAvailable, err)
	}
	return f, nil
}

func (l *FromDisk) SourceURL() *url.URL {
	return l.sourceURL
}

func (l *FromDisk) String() string {
	return fmt.Sprintf("assets.FromDisk{Path: %s}", l.path)
}
