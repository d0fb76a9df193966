package store

import (
	"fmt"
	"strings"

	"github.com/stellarlinkco/ab-eval/internal/catalog"
	"github.com/stellarlinkco/ab-eval/internal/config"
)

const DefaultSQLitePath = "data/ab-eval.db"

func Open(cfg *config.Config, cat *catalog.Catalog) (Store, error) {
	if cfg == nil {
		return nil, fmt.Errorf("store: missing config")
	}
	if cat == nil {
		return nil, fmt.Errorf("store: missing catalog")
	}

	storageType := strings.ToLower(strings.TrimSpace(cfg.Storage.Type))
	if storageType == "" {
		storageType = "sqlite"
	}

	switch storageType {
	case "sqlite":
		path := strings.TrimSpace(cfg.Storage.Path)
		if path == "" {
			path = DefaultSQLitePath
		}
		return NewSQLiteStore(path, cat)
	case "memory":
		return NewSQLiteStore(":memory:", cat)
	default:
		return nil, fmt.Errorf("store: unsupported type %q", storageType)
	}
}
