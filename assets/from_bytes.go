package assets

import (
	"bytes"
	"context"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"io"
	"net/url"
)

// FromBytes serves an in-memory asset. Useful for tests and for callers that
// embed assets in the binary.
type FromBytes struct {
	content   []byte
	sourceURL *url.URL
}

// NewFromBytes creates a loader over a byte slice. The slice is copied.
func NewFromBytes(content []byte) (*FromBytes, error) {
	if len(content) == 0 {
		return nil, fmt.Errorf("%w: empty content", ErrNotAvailable)
	}

	sum := sha256.Sum256(content)
	sourceURL, err := url.Parse("bytes://" + hex.EncodeToString(sum[:8]))
	if err != nil {
		return nil, err
	}

	copied := make([]byte, len(content))
	copy(copied, content)

	return &FromBytes{content: copied, sourceURL: sourceURL}, nil
}

func (l *FromBytes) GetReader(_ context.Context) (io.ReadCloser, error) {
	return io.NopCloser(bytes.NewReader(l.content)), nil
}

func (l *FromBytes) SourceURL() *url.URL {
	return l.sourceURL
}

func (l *FromBytes) String() string {
	return fmt.Sprintf("assets.FromBytes{Size: %d}", len(l.content))
}
