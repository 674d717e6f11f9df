package cmd

import (
	"fmt"
	"path/filepath"
	"strings"

	"github.com/spf13/cobra"

	"github.com/block-replay/block-replay/internal/config"
	"github.com/block-replay/block-replay/internal/store"
)

var (
	storeKindFlag string
	storePathFlag string
)

// addStoreFlags registers --store and --path on cmd.
func addStoreFlags(cmd *cobra.Command) {
	flags := cmd.Flags()
	flags.StringVar(&storeKindFlag, "store", "", "Session store: file, sqlite (default from config)")
	flags.StringVar(&storePathFlag, "path", "", "Store directory (file) or database (sqlite)")
}

// openStore opens the store selected by flags, falling back to config. The
// returned close function is always safe to call.
func openStore() (store.Store, func() error, error) {
	kind := storeKindFlag
	if kind == "" {
		kind = cfg.Store.Kind
	}
	path := storePathFlag
	if path == "" {
		path = cfg.Store.Path
	}
	if path == "" {
		return nil, nil, fmt.Errorf("no store path: pass --path or set store.path in the config")
	}

	switch kind {
	case config.StoreFile, "":
		logger.Debug("using file store", "dir", path)
		return store.NewFileStore(path), func() error { return nil }, nil
	case config.StoreSQLite:
		logger.Debug("using sqlite store", "db", path)
		db, err := store.OpenSQLite(path)
		if err != nil {
			return nil, nil, err
		}
		return db, db.Close, nil
	default:
		return nil, nil, fmt.Errorf("invalid store %q: valid values are file, sqlite", kind)
	}
}

// sessionName derives a session name from a log file path such as
// dir/1700000000000-logs.json.
func sessionName(path string) string {
	base := filepath.Base(path)
	if name, ok := strings.CutSuffix(base, store.LogSuffix); ok {
		return name
	}
	return strings.TrimSuffix(base, filepath.Ext(base))
}
