package blob

import (
	"context"
	"fmt"
	"os"
)

// Open selects a Store implementation using environment variables.
//
//	NEUROLEARN_BLOB_DRIVER: fs|s3|memory (default fs)
//	NEUROLEARN_BLOB_FS_ROOT: directory root when driver=fs (default ./blobdata)
//	(S3 specific variables documented in s3.go)
func Open(ctx context.Context) (Store, error) {
	driver := os.Getenv("NEUROLEARN_BLOB_DRIVER")
	if driver == "" {
		driver = string(DriverFilesystem)
	}
	return OpenDriver(ctx, Driver(driver))
}

// OpenDriver opens the named driver, reading any remaining settings from the
// environment.
func OpenDriver(ctx context.Context, driver Driver) (Store, error) {
	switch driver {
	case DriverFilesystem:
		return NewFilesystem(os.Getenv("NEUROLEARN_BLOB_FS_ROOT"))
	case DriverS3:
		return OpenS3FromEnv(ctx)
	case DriverMemory:
		return NewMemory(), nil
	default:
		return nil, fmt.Errorf("unknown blob driver %s", driver)
	}
}
