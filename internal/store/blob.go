package store

import (
	"context"
	"errors"
	"strings"

	"remindbot/internal/config"
	"remindbot/internal/dates"
	"remindbot/pkg/logx"
)

// ErrMirrorWrite marks a save where the primary copy was written but the
// mirror was not. Callers report it and carry on; the run stays valid.
var ErrMirrorWrite = errors.New("mirror write failed")

// Blob is the opaque persistence collaborator: whole-collection bytes in,
// whole-collection bytes out. Implementations own backup and mirror
// semantics so the Store never touches the filesystem directly.
type Blob interface {
	// Load returns the raw collection bytes, or ok=false when no
	// collection has ever been saved.
	Load(ctx context.Context) (data []byte, ok bool, err error)

	// Save replaces the collection. The civil date keys the once-per-day
	// backup of the previous contents.
	Save(ctx context.Context, data []byte, today dates.CivilDate) error

	// LoadState / SaveState carry the small collection-level state blob.
	LoadState(ctx context.Context) (data []byte, ok bool, err error)
	SaveState(ctx context.Context, data []byte) error

	Close() error
}

// OpenBlob initializes the configured persistence driver.
func OpenBlob(cfg config.StoreConfig, log logx.Logger) (Blob, error) {
	if log.IsZero() {
		log = logx.Nop()
	}
	switch strings.ToLower(strings.TrimSpace(cfg.Driver)) {
	case "", "file":
		return openFileBlob(cfg, log)
	case "sqlite", "sqlite3":
		return openSQLiteBlob(cfg, log)
	default:
		return nil, errors.New("unknown store driver: " + cfg.Driver)
	}
}
