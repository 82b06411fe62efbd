package storage

import (
	"context"
	"fmt"

	"github.com/shashiranjanraj/webstart/config"
)

// New returns the disk selected by cfg.StaticDisk, rooted at the public
// directory for the local driver.
func New(ctx context.Context, cfg config.App) (Disk, error) {
	switch cfg.StaticDisk {
	case "", "local":
		return NewLocal(cfg.PublicDir), nil
	case "s3":
		return NewS3(ctx, cfg.S3)
	default:
		return nil, fmt.Errorf("storage: unknown disk driver %q", cfg.StaticDisk)
	}
}
