package assets

import (
	"archive/tar"
	"context"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/klauspost/compress/gzip"
	"go.uber.org/zap"

	"github.com/visionpipe/graph-runtime/errors"
)

// Unpack extracts a gzip-compressed tar data pack into destDir. The pack
// carries the graph's bundled resources (model blobs, calculator side data).
// Entries that would escape destDir are rejected. Returns the extracted file
// names relative to destDir.
func Unpack(ctx context.Context, loader Loader, destDir string) ([]string, error) {
	rc, err := loader.GetReader(ctx)
	if err != nil {
		return nil, errors.Wrap(errors.PhaseFetch, errors.KindNotFound, err, "open data pack")
	}
	defer rc.Close()

	return unpackStream(rc, destDir)
}

func unpackStream(r io.Reader, destDir string) ([]string, error) {
	gz, err := gzip.NewReader(r)
	if err != nil {
		return nil, errors.Wrap(errors.PhaseFetch, errors.KindInvalidData, err, "data pack is not gzip")
	}
	defer gz.Close()

	if err := os.MkdirAll(destDir, 0o755); err != nil {
		return nil, errors.Wrap(errors.PhaseFetch, errors.KindNotFound, err, "create unpack dir")
	}

	var names []string
	tr := tar.NewReader(gz)
	for {
		hdr, err := tr.Next()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, errors.Wrap(errors.PhaseFetch, errors.KindInvalidData, err, "read data pack entry")
		}

		target, err := safeJoin(destDir, hdr.Name)
		if err != nil {
			return nil, err
		}

		switch hdr.Typeflag {
		case tar.TypeDir:
			if err := os.MkdirAll(target, 0o755); err != nil {
				return nil, errors.Wrap(errors.PhaseFetch, errors.KindAborted, err, "create pack dir")
			}
		case tar.TypeReg:
			if err := writeEntry(target, tr); err != nil {
				return nil, err
			}
			names = append(names, filepath.ToSlash(hdr.Name))
			Logger().Debug("unpacked entry",
				zap.String("name", hdr.Name),
				zap.Int64("size", hdr.Size))
		default:
			// Symlinks and special files have no place in a data pack.
			return nil, errors.InvalidData(errors.PhaseFetch, []string{hdr.Name},
				"unsupported entry type in data pack")
		}
	}

	return names, nil
}

func writeEntry(target string, r io.Reader) error {
	if err := os.MkdirAll(filepath.Dir(target), 0o755); err != nil {
		return errors.Wrap(errors.PhaseFetch, errors.KindAborted, err, "create pack subdir")
	}
	fh, err := os.OpenFile(target, os.O_CREATE|os.O_TRUNC|os.O_WRONLY, 0o644)
	if err != nil {
		return errors.Wrap(errors.PhaseFetch, errors.KindAborted, err, "create pack file")
	}
	if _, err := io.Copy(fh, r); err != nil {
		fh.Close()
		_ = os.Remove(target)
		return errors.Wrap(errors.PhaseFetch, errors.KindAborted, err, "write pack file")
	}
	return fh.Close()
}

// safeJoin resolves an archive entry name under dir, rejecting absolute paths
// and traversal.
func safeJoin(dir, name string) (string, error) {
	if name == "" || strings.HasPrefix(name, "/") || strings.Contains(name, "..") {
		return "", errors.InvalidData(errors.PhaseFetch, []string{name},
			"data pack entry escapes destination")
	}
	target := filepath.Join(dir, filepath.FromSlash(name))
	if !strings.HasPrefix(target, filepath.Clean(dir)+string(os.PathSeparator)) {
		return "", errors.InvalidData(errors.PhaseFetch, []string{name},
			"data pack entry escapes destination")
	}
	return target, nil
}
