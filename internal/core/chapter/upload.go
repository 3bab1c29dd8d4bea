// Copyright (c) 2026 Yomira. All rights reserved.
// Author: tai.buivan.jp@gmail.com

package chapter

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"mime/multipart"
	"path"
	"strings"

	"github.com/taibuivan/inkshelf/internal/blob"
	"github.com/taibuivan/inkshelf/internal/platform/apperr"
	"github.com/taibuivan/inkshelf/internal/platform/ctxutil"
	"github.com/taibuivan/inkshelf/pkg/slug"
	"github.com/taibuivan/inkshelf/pkg/uuid"
)

// allowedExtensions lists the page image formats accepted on upload.
var allowedExtensions = map[string]struct{}{
	".jpg":  {},
	".jpeg": {},
	".png":  {},
	".webp": {},
	".gif":  {},
	".avif": {},
}

// # Upload Step

// Uploader streams multipart page images into the blob store before the
// chapter service runs. It hands over the stored paths in submission order.
type Uploader struct {
	store  blob.Store
	limits UploadLimits
}

// UploadLimits bounds one upload request.
type UploadLimits struct {
	MaxFileBytes    int64 // per file
	MaxFiles        int   // per request
	MaxRequestBytes int64 // whole multipart body, text fields included
}

// NewUploader constructs an [Uploader] enforcing limits.
func NewUploader(store blob.Store, limits UploadLimits) *Uploader {
	return &Uploader{store: store, limits: limits}
}

// MaxRequestBytes is the cap applied to the multipart body before parsing.
func (uploader *Uploader) MaxRequestBytes() int64 {
	return uploader.limits.MaxRequestBytes
}

/*
Store validates every file first, then writes them one by one.

Description: Each file lands at works/{workID}/{uuidv7}-{slug}{ext}, so two
requests never share a destination. If any write fails, the files already
written for this request are deleted before the error is returned.

Returns:
  - []UploadedFile: Stored files in submission order
  - error: ValidationError for rejected files, Internal for storage failures
*/
func (uploader *Uploader) Store(ctx context.Context, workID string, headers []*multipart.FileHeader) ([]UploadedFile, error) {
	if err := uploader.check(headers); err != nil {
		return nil, err
	}

	stored := make([]UploadedFile, 0, len(headers))
	for _, header := range headers {
		file, err := uploader.write(ctx, workID, header)
		if err != nil {
			uploader.discard(ctx, stored)
			return nil, apperr.Internal(err)
		}
		stored = append(stored, file)
	}

	return stored, nil
}

// discard deletes files stored earlier in a failed request.
func (uploader *Uploader) discard(ctx context.Context, files []UploadedFile) {
	cleanupCtx := context.WithoutCancel(ctx)
	logger := ctxutil.GetLogger(ctx)

	for _, file := range files {
		if err := uploader.store.Delete(cleanupCtx, file.RelativePath); err != nil {
			logger.Error("blob_cleanup_failed",
				slog.String("path", file.RelativePath),
				slog.Any("error", err),
			)
		}
	}
}

func (uploader *Uploader) check(headers []*multipart.FileHeader) error {
	if len(headers) > uploader.limits.MaxFiles {
		return apperr.ValidationError("Validation failed", apperr.FieldError{
			Field:   FieldPages,
			Message: fmt.Sprintf("At most %d page images per request", uploader.limits.MaxFiles),
		})
	}

	var details []apperr.FieldError
	for _, header := range headers {
		name := originalName(header.Filename)

		if _, ok := allowedExtensions[strings.ToLower(path.Ext(name))]; !ok {
			details = append(details, apperr.FieldError{Field: FieldPages, Message: fmt.Sprintf("%s: unsupported image type", name)})
			continue
		}
		if header.Size > uploader.limits.MaxFileBytes {
			details = append(details, apperr.FieldError{Field: FieldPages, Message: fmt.Sprintf("%s: exceeds %d bytes", name, uploader.limits.MaxFileBytes)})
		}
	}

	if len(details) > 0 {
		return apperr.ValidationError("Validation failed", details...)
	}
	return nil
}

func (uploader *Uploader) write(ctx context.Context, workID string, header *multipart.FileHeader) (UploadedFile, error) {
	source, err := header.Open()
	if err != nil {
		return UploadedFile{}, fmt.Errorf("upload: open %s: %w", header.Filename, err)
	}
	defer source.Close()

	name := originalName(header.Filename)
	relativePath, err := uploader.store.Put(ctx, blobPath(workID, name), io.LimitReader(source, uploader.limits.MaxFileBytes))
	if err != nil {
		return UploadedFile{}, fmt.Errorf("upload: store %s: %w", name, err)
	}

	return UploadedFile{RelativePath: relativePath, OriginalFilename: name}, nil
}

// blobPath builds works/{workID}/{uuidv7}-{slug(basename)}{ext}.
func blobPath(workID, filename string) string {
	extension := strings.ToLower(path.Ext(filename))

	base := slug.Or(strings.TrimSuffix(filename, path.Ext(filename)), "page")

	return fmt.Sprintf("works/%s/%s-%s%s", workID, uuid.New(), base, extension)
}

// originalName strips any client supplied directory from a filename.
func originalName(filename string) string {
	return path.Base(strings.ReplaceAll(filename, `\`, "/"))
}
