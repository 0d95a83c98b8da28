package storage

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"path"
	"strings"

	"github.com/golang/snappy"
	"go.uber.org/zap"

	"github.com/arkilian/spatialbench/internal/config"
	spatialerrors "github.com/arkilian/spatialbench/internal/errors"
	"github.com/arkilian/spatialbench/internal/logging"
)

// ReportsPrefix is the key prefix of archived reports.
const ReportsPrefix = "reports"

// snappyExt marks snappy-compressed objects.
const snappyExt = ".sz"

// Archive stores benchmark reports under reports/<run id>.<format>.csv,
// optionally snappy-compressed.
type Archive struct {
	store    ObjectStorage
	compress bool
	logger   *zap.Logger
}

// NewArchive wraps store.
func NewArchive(store ObjectStorage, compress bool, logger *zap.Logger) *Archive {
	return &Archive{
		store:    store,
		compress: compress,
		logger:   logging.OrNop(logger).Named("archive"),
	}
}

// OpenArchive builds the archive described by cfg. It returns nil for type none.
func OpenArchive(ctx context.Context, cfg config.ArchiveConfig, logger *zap.Logger) (*Archive, error) {
	var store ObjectStorage
	switch cfg.Type {
	case "", "none":
		return nil, nil
	case "local":
		local, err := NewLocalStorage(cfg.Path)
		if err != nil {
			return nil, spatialerrors.NewStorageError(spatialerrors.CodeUploadFailed, "failed to open local archive", err)
		}
		store = local
	case "s3":
		s3store, err := NewS3Storage(ctx, cfg.S3.Bucket, S3Config{Region: cfg.S3.Region, Endpoint: cfg.S3.Endpoint})
		if err != nil {
			return nil, spatialerrors.NewStorageError(spatialerrors.CodeUploadFailed, "failed to open s3 archive", err)
		}
		store = NewPrefixedStorage(s3store, cfg.S3.Prefix)
	default:
		return nil, spatialerrors.NewValidationError(spatialerrors.CodeInvalidConfig,
			fmt.Sprintf("unknown archive type %q", cfg.Type))
	}
	return NewArchive(store, cfg.Compress, logger), nil
}

// ReportKey returns the key a report is stored under.
func (a *Archive) ReportKey(runID, format string) string {
	key := path.Join(ReportsPrefix, fmt.Sprintf("%s.%s.csv", runID, format))
	if a.compress {
		key += snappyExt
	}
	return key
}

// Store archives a report and returns its key.
func (a *Archive) Store(ctx context.Context, runID, format string, report []byte) (string, error) {
	if runID == "" {
		return "", spatialerrors.NewValidationError(spatialerrors.CodeMissingParameter, "run id is required")
	}

	key := a.ReportKey(runID, format)
	body := report
	if a.compress {
		body = snappy.Encode(nil, report)
	}

	if err := a.store.Put(ctx, key, bytes.NewReader(body)); err != nil {
		return "", spatialerrors.NewStorageError(spatialerrors.CodeUploadFailed, fmt.Sprintf("failed to archive %s", key), err)
	}

	a.logger.Info("report archived",
		zap.String("key", key),
		zap.Int("bytes", len(report)),
		zap.Int("stored_bytes", len(body)),
	)
	return key, nil
}

// Load reads an archived report, decompressing it when the key says so.
func (a *Archive) Load(ctx context.Context, key string) ([]byte, error) {
	r, err := a.store.Get(ctx, key)
	if err != nil {
		if errors.Is(err, ErrObjectNotFound) {
			return nil, spatialerrors.NewStorageError(spatialerrors.CodeObjectNotFound, fmt.Sprintf("report %s not found", key), err)
		}
		return nil, spatialerrors.NewStorageError(spatialerrors.CodeUnexpected, fmt.Sprintf("failed to read %s", key), err)
	}
	defer r.Close()

	data, err := io.ReadAll(r)
	if err != nil {
		return nil, spatialerrors.NewStorageError(spatialerrors.CodeUnexpected, fmt.Sprintf("failed to read %s", key), err)
	}

	if strings.HasSuffix(key, snappyExt) {
		data, err = snappy.Decode(nil, data)
		if err != nil {
			return nil, spatialerrors.NewStorageError(spatialerrors.CodeUnexpected, fmt.Sprintf("failed to decompress %s", key), err)
		}
	}
	return data, nil
}

// List returns the keys of every archived report.
func (a *Archive) List(ctx context.Context) ([]string, error) {
	keys, err := a.store.ListObjects(ctx, ReportsPrefix)
	if err != nil {
		return nil, spatialerrors.NewStorageError(spatialerrors.CodeUnexpected, "failed to list reports", err)
	}
	return keys, nil
}
