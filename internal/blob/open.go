// Copyright (c) 2026 Yomira. All rights reserved.
// Author: tai.buivan.jp@gmail.com

package blob

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/taibuivan/inkshelf/internal/platform/config"
)

// Open builds the [Store] selected by cfg.BlobBackend.
func Open(ctx context.Context, cfg *config.Config, logger *slog.Logger) (Store, error) {
	switch cfg.BlobBackend {
	case config.BlobBackendFilesystem:
		store, err := NewFileStore(cfg.UploadDir, logger)
		if err != nil {
			return nil, err
		}
		return store, nil

	case config.BlobBackendS3:
		store, err := NewS3Store(ctx, S3Options{
			Bucket:   cfg.S3Bucket,
			Region:   cfg.S3Region,
			Endpoint: cfg.S3Endpoint,
			Prefix:   cfg.S3Prefix,
		}, logger)
		if err != nil {
			return nil, err
		}
		return store, nil

	default:
		return nil, fmt.Errorf("blob: unknown backend %q", cfg.BlobBackend)
	}
}
