package archive

import (
	"context"
	"fmt"
	"strings"

	"github.com/joseph-ayodele/submissions-tracker/internal/common"
)

// Open builds the store selected by cfg. It returns a nil Store for the
// "none" driver.
func Open(ctx context.Context, cfg common.ArchiveConfig) (Store, error) {
	switch Driver(strings.ToLower(cfg.Driver)) {
	case DriverNone, "":
		return nil, nil
	case DriverFilesystem:
		return NewFSStore(cfg.Dir)
	case DriverS3:
		return NewS3Store(ctx, S3Config{
			Bucket:    cfg.S3Bucket,
			Region:    cfg.S3Region,
			Endpoint:  cfg.S3Endpoint,
			PathStyle: cfg.PathStyle,
		})
	default:
		return nil, fmt.Errorf("archive: unknown driver %q", cfg.Driver)
	}
}
