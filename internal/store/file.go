package store

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"remindbot/internal/config"
	"remindbot/internal/dates"
	"remindbot/pkg/logx"
)

// fileBlob persists the collection as plain JSON files.
//
// Files:
//   - <path>                     primary collection (array of records)
//   - <mirror_path>              byte-identical public copy (optional)
//   - <backup_dir>/<base>-<day>.<ext>  at most one backup per civil day
//   - <prefix>.state.json        collection-level state
//
// All writes go through a tmp file and a rename, so an interrupted run can
// never corrupt the previous on-disk state.
type fileBlob struct {
	log logx.Logger

	path       string
	mirrorPath string
	backupDir  string
	backupOn   bool
	statePath  string
}

func openFileBlob(cfg config.StoreConfig, log logx.Logger) (Blob, error) {
	path := strings.TrimSpace(cfg.Path)
	if path == "" {
		return nil, errors.New("store.path is required for file driver")
	}

	dir := filepath.Dir(path)
	base := filepath.Base(path)
	prefix := filepath.Join(dir, strings.TrimSuffix(base, filepath.Ext(base)))

	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, err
	}

	return &fileBlob{
		log:        log,
		path:       path,
		mirrorPath: strings.TrimSpace(cfg.MirrorPath),
		backupDir:  cfg.BackupDir,
		backupOn:   cfg.BackupOn(),
		statePath:  prefix + ".state.json",
	}, nil
}

func (b *fileBlob) Close() error { return nil }

func (b *fileBlob) Load(ctx context.Context) ([]byte, bool, error) {
	_ = ctx
	data, err := os.ReadFile(b.path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, false, nil
		}
		return nil, false, err
	}
	return data, true, nil
}

func (b *fileBlob) Save(ctx context.Context, data []byte, today dates.CivilDate) error {
	_ = ctx
	if b.backupOn {
		if err := b.backupOnce(today); err != nil {
			// Backup failure must not block the save itself.
			b.log.Warn("daily backup failed", logx.Err(err), logx.String("dir", b.backupDir))
		}
	}

	if err := writeAtomic(b.path, data); err != nil {
		return err
	}

	if b.mirrorPath != "" {
		if err := os.MkdirAll(filepath.Dir(b.mirrorPath), 0o755); err != nil {
			return fmt.Errorf("%w: %v", ErrMirrorWrite, err)
		}
		if err := writeAtomic(b.mirrorPath, data); err != nil {
			return fmt.Errorf("%w: %v", ErrMirrorWrite, err)
		}
	}
	return nil
}

// backupOnce copies the current primary into a dated backup file. The date
// in the filename is the dedup key: reruns on the same day are no-ops.
func (b *fileBlob) backupOnce(today dates.CivilDate) error {
	cur, err := os.ReadFile(b.path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil // nothing to back up yet
		}
		return err
	}

	base := filepath.Base(b.path)
	ext := filepath.Ext(base)
	name := strings.TrimSuffix(base, ext) + "-" + today.String() + ext
	target := filepath.Join(b.backupDir, name)

	if _, err := os.Stat(target); err == nil {
		return nil // already backed up today
	} else if !os.IsNotExist(err) {
		return err
	}

	if err := os.MkdirAll(b.backupDir, 0o755); err != nil {
		return err
	}
	if err := writeAtomic(target, cur); err != nil {
		return err
	}
	b.log.Debug("backup created", logx.String("file", target))
	return nil
}

func (b *fileBlob) LoadState(ctx context.Context) ([]byte, bool, error) {
	_ = ctx
	data, err := os.ReadFile(b.statePath)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, false, nil
		}
		return nil, false, err
	}
	return data, true, nil
}

func (b *fileBlob) SaveState(ctx context.Context, data []byte) error {
	_ = ctx
	return writeAtomic(b.statePath, data)
}

func writeAtomic(path string, data []byte) error {
	tmp := path + ".tmp"
	f, err := os.OpenFile(tmp, os.O_CREATE|os.O_TRUNC|os.O_WRONLY, 0o644)
	if err != nil {
		return err
	}
	if _, err := f.Write(data); err != nil {
		_ = f.Close()
		_ = os.Remove(tmp)
		return err
	}
	if err := f.Close(); err != nil {
		_ = os.Remove(tmp)
		return err
	}
	return os.Rename(tmp, path)
}
