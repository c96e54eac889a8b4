package main

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/minio/minio-go/v7"
	"github.com/minio/minio-go/v7/pkg/credentials"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/visionpipe/graph-runtime/assets"
	"github.com/visionpipe/graph-runtime/pose"
)

func newFetchCmd() *cobra.Command {
	var manifestPath string
	var unpack bool

	cmd := &cobra.Command{
		Use:   "fetch",
		Short: "Download and verify the pose asset bundle",
		RunE: func(cmd *cobra.Command, _ []string) error {
			manifest, err := loadManifest(manifestPath)
			if err != nil {
				return err
			}

			resolve, err := newResolver(activeCfg.Assets)
			if err != nil {
				return err
			}

			fetcher, err := assets.NewFetcher(activeCfg.Assets.Dir, resolve)
			if err != nil {
				return err
			}

			if err := fetcher.Fetch(cmd.Context(), manifest); err != nil {
				return err
			}
			logger.Info("assets ready",
				zap.Int("files", len(manifest.Files)),
				zap.String("dir", activeCfg.Assets.Dir))

			if unpack {
				packLoader, err := assets.NewFromDisk(mustAbs(fetcher.Path(pose.DataPackFile)))
				if err != nil {
					return err
				}
				dest := filepath.Join(activeCfg.Assets.Dir, "pack")
				names, err := assets.Unpack(cmd.Context(), packLoader, dest)
				if err != nil {
					return err
				}
				logger.Info("data pack unpacked",
					zap.Int("entries", len(names)),
					zap.String("dir", dest))
			}

			return nil
		},
	}

	cmd.Flags().StringVar(&manifestPath, "manifest", "", "JSON manifest with pinned sha256 digests")
	cmd.Flags().BoolVar(&unpack, "unpack", true, "Extract the data pack after download")
	return cmd
}

// loadManifest reads a pinned manifest, or falls back to the default file
// list without digests.
func loadManifest(path string) (assets.Manifest, error) {
	if path == "" {
		return pose.DefaultManifest(), nil
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return assets.Manifest{}, fmt.Errorf("read manifest: %w", err)
	}

	var manifest struct {
		Files []struct {
			Name   string `json:"name"`
			SHA256 string `json:"sha256"`
		} `json:"files"`
	}
	if err := json.Unmarshal(data, &manifest); err != nil {
		return assets.Manifest{}, fmt.Errorf("decode manifest: %w", err)
	}

	out := assets.Manifest{}
	for _, f := range manifest.Files {
		out.Files = append(out.Files, assets.File{Name: f.Name, SHA256: f.SHA256})
	}
	if len(out.Files) == 0 {
		return assets.Manifest{}, fmt.Errorf("manifest %s lists no files", path)
	}
	return out, nil
}

// newResolver maps manifest names to loaders: object storage when a bucket is
// configured, HTTP otherwise.
func newResolver(cfg AssetsConfig) (func(name string) (assets.Loader, error), error) {
	if cfg.S3Bucket != "" {
		opts := &minio.Options{Secure: !cfg.S3Insecure}
		if cfg.S3AccessKey != "" {
			opts.Creds = credentials.NewStaticV4(cfg.S3AccessKey, cfg.S3SecretKey, "")
		}
		client, err := minio.New(cfg.S3Endpoint, opts)
		if err != nil {
			return nil, fmt.Errorf("s3 client: %w", err)
		}
		return func(name string) (assets.Loader, error) {
			key := name
			if cfg.S3Prefix != "" {
				key = cfg.S3Prefix + "/" + name
			}
			return assets.NewFromMinio(client, cfg.S3Bucket, key)
		}, nil
	}

	base := strings.TrimSuffix(cfg.BaseURL, "/")
	httpOpts := assets.DefaultHTTPOptions()
	httpOpts.BearerToken = cfg.Token
	return func(name string) (assets.Loader, error) {
		return assets.NewFromHTTPWithOptions(base+"/"+name, httpOpts)
	}, nil
}

func mustAbs(path string) string {
	abs, err := filepath.Abs(path)
	if err != nil {
		return path
	}
	return abs
}
