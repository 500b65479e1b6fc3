package main

import (
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"voxeltherm/internal/persistence/indexdb"
)

// openIndex opens the shared run index under dataDir. It returns nil when indexing is off.
func openIndex(dataDir, runID string, queue int, disableDB bool) (*indexdb.SQLiteIndex, error) {
	if disableDB {
		return nil, nil
	}

	backend := strings.ToLower(strings.TrimSpace(os.Getenv("VT_INDEX_BACKEND")))
	if backend == "" {
		backend = "sqlite"
	}

	switch backend {
	case "none", "off", "disabled":
		return nil, nil
	case "sqlite":
		if q := envInt("VT_INDEX_QUEUE", 0); q > 0 {
			queue = q
		}
		return indexdb.OpenSQLite(filepath.Join(dataDir, "index.sqlite"), runID, queue)
	default:
		return nil, fmt.Errorf("unsupported VT_INDEX_BACKEND: %s", backend)
	}
}

func envBool(key string, def bool) bool {
	v := strings.TrimSpace(os.Getenv(key))
	if v == "" {
		return def
	}
	b, err := strconv.ParseBool(v)
	if err != nil {
		return def
	}
	return b
}

func envInt(key string, def int) int {
	v := strings.TrimSpace(os.Getenv(key))
	if v == "" {
		return def
	}
	n, err := strconv.Atoi(v)
	if err != nil || n <= 0 {
		return def
	}
	return n
}
