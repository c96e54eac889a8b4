package assets

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/visionpipe/graph-runtime/errors"
)

// File names one asset in a Manifest. SHA256 is the lowercase hex digest the
// fetched bytes must match; empty skips verification.
type File struct {
	Name   string
	SHA256 string
}

// Manifest lists the assets a solution needs before it can initialize.
type Manifest struct {
	Files []File
}

// Fetcher resolves manifest entries to local files. Each entry is loaded via
// its Loader, verified against its digest, and written into the cache
// directory with a temp-file-plus-rename so a crash never leaves a partial
// asset behind. Files already present with a matching digest are not
// refetched.
type Fetcher struct {
	cacheDir string
	resolve  func(name string) (Loader, error)

	// Concurrency bounds parallel fetches. Defaults to 4.
	Concurrency int
}

// NewFetcher creates a fetcher writing into cacheDir. resolve maps a manifest
// file name to the loader that produces it.
func NewFetcher(cacheDir string, resolve func(name string) (Loader, error)) (*Fetcher, error) {
	if cacheDir == "" {
		return nil, errors.InvalidInput(errors.PhaseFetch, "cache directory is required")
	}
	if resolve == nil {
		return nil, errors.InvalidInput(errors.PhaseFetch, "resolver is required")
	}
	if err := os.MkdirAll(cacheDir, 0o755); err != nil {
		return nil, errors.Wrap(errors.PhaseFetch, errors.KindNotFound, err, "create cache dir")
	}
	return &Fetcher{cacheDir: cacheDir, resolve: resolve, Concurrency: 4}, nil
}

// Path returns where a fetched file lives in the cache.
func (f *Fetcher) Path(name string) string {
	return filepath.Join(f.cacheDir, filepath.FromSlash(name))
}

// Fetch ensures every manifest file is present and verified in the cache.
// Files are fetched concurrently; the first failure cancels the rest.
func (f *Fetcher) Fetch(ctx context.Context, manifest Manifest) error {
	g, ctx := errgroup.WithContext(ctx)

	limit := f.Concurrency
	if limit <= 0 {
		limit = 4
	}
	g.SetLimit(limit)

	for _, file := range manifest.Files {
		g.Go(func() error {
			return f.fetchOne(ctx, file)
		})
	}
	return g.Wait()
}

// FetchBytes fetches a single named asset and returns its contents.
func (f *Fetcher) FetchBytes(ctx context.Context, file File) ([]byte, error) {
	if err := f.fetchOne(ctx, file); err != nil {
		return nil, err
	}
	data, err := os.ReadFile(f.Path(file.Name))
	if err != nil {
		return nil, errors.Wrap(errors.PhaseFetch, errors.KindNotFound, err, "read cached asset")
	}
	return data, nil
}

func (f *Fetcher) fetchOne(ctx context.Context, file File) error {
	if file.Name == "" {
		return errors.InvalidInput(errors.PhaseFetch, "manifest entry has no name")
	}
	if strings.Contains(file.Name, "..") {
		return errors.InvalidInput(errors.PhaseFetch, "manifest entry escapes cache dir: "+file.Name)
	}

	expected := strings.ToLower(file.SHA256)
	localPath := f.Path(file.Name)

	if ok, err := existingMatches(localPath, expected); err != nil {
		return err
	} else if ok {
		Logger().Debug("asset cached",
			zap.String("name", file.Name),
			zap.String("path", localPath))
		return nil
	}

	loader, err := f.resolve(file.Name)
	if err != nil {
		return errors.Wrap(errors.PhaseFetch, errors.KindNotFound, err, "resolve loader for "+file.Name)
	}

	if err := os.MkdirAll(filepath.Dir(localPath), 0o755); err != nil {
		return errors.Wrap(errors.PhaseFetch, errors.KindNotFound, err, "create cache subdir")
	}

	actual, err := downloadToFile(ctx, loader, localPath)
	if err != nil {
		return err
	}

	if expected != "" && actual != expected {
		_ = os.Remove(localPath)
		return errors.ChecksumMismatch(file.Name, expected, actual)
	}

	Logger().Info("asset fetched",
		zap.String("name", file.Name),
		zap.String("source", loader.SourceURL().String()),
		zap.String("sha256", actual))
	return nil
}

// downloadToFile streams the loader into path via a temp file, returning the
// sha256 hex digest of the written bytes.
func downloadToFile(ctx context.Context, loader Loader, path string) (string, error) {
	rc, err := loader.GetReader(ctx)
	if err != nil {
		return "", errors.Wrap(errors.PhaseFetch, errors.KindNotFound, err, "open "+loader.SourceURL().String())
	}
	defer rc.Close()

	tmp, err := os.CreateTemp(filepath.Dir(path), filepath.Base(path)+".tmp*")
	if err != nil {
		return "", errors.Wrap(errors.PhaseFetch, errors.KindNotFound, err, "create temp file")
	}
	tmpName := tmp.Name()

	h := sha256.New()
	if _, err := io.Copy(io.MultiWriter(tmp, h), rc); err != nil {
		tmp.Close()
		_ = os.Remove(tmpName)
		return "", errors.Wrap(errors.PhaseFetch, errors.KindAborted, err, "write temp file")
	}
	if err := tmp.Close(); err != nil {
		_ = os.Remove(tmpName)
		return "", errors.Wrap(errors.PhaseFetch, errors.KindAborted, err, "close temp file")
	}
	if err := os.Rename(tmpName, path); err != nil {
		_ = os.Remove(tmpName)
		return "", errors.Wrap(errors.PhaseFetch, errors.KindAborted, err, "finalize asset")
	}

	return hex.EncodeToString(h.Sum(nil)), nil
}

func existingMatches(path, expected string) (bool, error) {
	if expected == "" {
		// Without a digest the only signal is presence.
		if _, err := os.Stat(path); err == nil {
			return true, nil
		}
		return false, nil
	}

	fi, err := os.Stat(path)
	if err != nil {
		if os.IsNotExist(err) {
			return false, nil
		}
		return false, errors.Wrap(errors.PhaseFetch, errors.KindNotFound, err, "stat cached asset")
	}
	if fi.IsDir() {
		return false, errors.InvalidInput(errors.PhaseFetch, "expected file, found directory: "+path)
	}

	actual, err := fileSHA256(path)
	if err != nil {
		return false, err
	}
	return actual == expected, nil
}

func fileSHA256(path string) (string, error) {
	fh, err := os.Open(path)
	if err != nil {
		return "", errors.Wrap(errors.PhaseFetch, errors.KindNotFound, err, "open cached asset")
	}
	defer fh.Close()

	h := sha256.New()
	if _, err := io.Copy(h, fh); err != nil {
		return "", errors.Wrap(errors.PhaseFetch, errors.KindAborted, err, "hash cached asset")
	}
	return hex.EncodeToString(h.Sum(nil)), nil
}

// ReadAll drains a loader into memory. Convenience for callers that do not
// need the cache.
func ReadAll(ctx context.Context, loader Loader) ([]byte, error) {
	rc, err := loader.GetReader(ctx)
	if err != nil {
		return nil, err
	}
	defer rc.Close()

	data, err := io.ReadAll(rc)
	if err != nil {
		return nil, fmt.Errorf("read %s: %w", loader.SourceURL(), err)
	}
	return data, nil
}
