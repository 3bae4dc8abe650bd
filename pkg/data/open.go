package data

import (
	"io"
	"log/slog"
)

type StoreOptions struct {
	Path             string
	FallbackToMemory bool
}

// StoreBackend is a Store that also hosts key/value slots.
type StoreBackend interface {
	Store
	KV
}

// OpenStore opens the DuckDB store at opts.Path. When that fails and
// FallbackToMemory is set, it logs the failure and returns a MemoryStore with
// degraded set; nothing written to it survives the process.
func OpenStore(opts StoreOptions, logger *slog.Logger) (store StoreBackend, degraded bool, err error) {
	if logger == nil {
		logger = slog.New(slog.NewTextHandler(io.Discard, nil))
	}

	repo, err := OpenRepository(opts.Path)
	if err == nil {
		logger.Debug("opened cache store", "path", opts.Path)
		return repo, false, nil
	}
	if !opts.FallbackToMemory {
		return nil, false, err
	}

	logger.Warn("cache store unavailable, running in degraded in-memory mode",
		"path", opts.Path,
		"error", err,
	)
	return NewMemoryStore(), true, nil
}
