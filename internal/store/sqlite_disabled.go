//go:build !sqlite
// +build !sqlite

package store

import (
	"errors"

	"remindbot/internal/config"
	"remindbot/pkg/logx"
)

func openSQLiteBlob(cfg config.StoreConfig, log logx.Logger) (Blob, error) {
	_ = cfg
	_ = log
	return nil, errors.New("sqlite store not built: build with -tags sqlite")
}
