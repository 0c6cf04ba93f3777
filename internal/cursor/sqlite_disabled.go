//go:build !sqlite
// +build !sqlite

package cursor

import (
	"errors"

	logx "h1mon/pkg/logx"
)

func openSQLite(cfg Config, log logx.Logger) (Store, error) {
	_ = cfg
	_ = log
	return nil, errors.New("sqlite cursor store not built: build with -tags sqlite")
}
