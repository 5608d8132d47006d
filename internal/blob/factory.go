// Package blob selects a blob storage backend for traceability archives.
package blob

import (
	"context"
	"fmt"
	"os"

	"lottrace/internal/blob/core"
	"lottrace/internal/blob/fs"
	"lottrace/internal/blob/memory"
	"lottrace/internal/blob/s3"
)

// Open selects a backend using environment variables. Defaults to the local
// filesystem when unset.
//
//	LOTTRACE_BLOB_DRIVER: fs|s3|memory (default fs)
//	LOTTRACE_BLOB_FS_ROOT: filesystem root (default ./lottrace-archive)
func Open(ctx context.Context) (core.Store, error) {
	driver := os.Getenv("LOTTRACE_BLOB_DRIVER")
	if driver == "" {
		driver = string(core.DriverFilesystem)
	}
	switch core.Driver(driver) {
	case core.DriverFilesystem:
		return fs.New(os.Getenv("LOTTRACE_BLOB_FS_ROOT"))
	case core.DriverS3:
		return s3.OpenFromEnv(ctx)
	case core.DriverMemory:
		return memory.New(), nil
	default:
		return nil, fmt.Errorf("unknown blob driver %s", driver)
	}
}
