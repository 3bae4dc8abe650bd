package services

import (
	"fmt"
	"log/slog"
	"time"

	"github.com/kerbaras/mangacache/pkg/config"
	"github.com/kerbaras/mangacache/pkg/data"
	"github.com/kerbaras/mangacache/pkg/events"
	"github.com/kerbaras/mangacache/pkg/ledger"
	"github.com/kerbaras/mangacache/pkg/sources"
	"github.com/kerbaras/mangacache/pkg/utils"
)

// NewControllerFromConfig opens the cache store and ledger described by cfg
// and assembles the download pipeline against the Digiman API.
func NewControllerFromConfig(cfg *config.Config, logger *slog.Logger) (*MangaController, error) {
	if logger == nil {
		logger = slog.Default()
	}

	store, degraded, err := data.OpenStore(data.StoreOptions{
		Path:             cfg.Storage.Path,
		FallbackToMemory: cfg.Storage.FallbackToMemory,
	}, logger)
	if err != nil {
		return nil, fmt.Errorf("failed to open cache store: %w", err)
	}

	slot, err := newLedgerSlot(cfg.Storage, store)
	if err != nil {
		store.Close()
		return nil, err
	}

	bus := events.NewBus()
	downloads := ledger.New(slot, bus, logger.With("component", "ledger"))

	source := NewSourceFromConfig(cfg)
	images := sources.NewImageFetcher(time.Duration(cfg.Downloads.ImageTimeoutSeconds)*time.Second,
		RetryPolicyFromConfig(cfg.Downloads).FetcherOption(),
	)

	downloader := NewDownloader(source, images, store, downloads, bus,
		WithLogger(logger.With("component", "downloader")),
	)
	handles := NewHandleRegistry(HandleBase(cfg.Server.Bind))
	handles.SetLimit(cfg.Server.MaxHandles)
	reader := NewReader(store, handles, logger.With("component", "reader"))
	maintenance := NewMaintenance(store, downloads, bus, logger.With("component", "maintenance"))

	c := NewMangaController(downloader, reader, maintenance, downloads, bus, ControllerOptions{
		MaxConcurrent: cfg.Downloads.MaxConcurrent,
		Logger:        logger.With("component", "controller"),
	})
	c.degraded = degraded
	c.closers = append(c.closers, store)
	return c, nil
}

// NewSourceFromConfig returns the Digiman API source described by [api].
func NewSourceFromConfig(cfg *config.Config) *sources.Digiman {
	api := utils.NewAPI(cfg.API.BaseURL,
		utils.WithAccessToken(cfg.API.AccessToken),
		utils.WithRefreshPath(cfg.API.RefreshPath),
		utils.WithTimeout(time.Duration(cfg.API.TimeoutSeconds)*time.Second),
	)
	return sources.NewDigiman(api)
}

// HandleBase is the URL prefix of page handles served at bind.
func HandleBase(bind string) string {
	if bind == "" {
		return DefaultHandleBase
	}
	return "http://" + bind + "/blobs"
}

func newLedgerSlot(cfg config.Storage, kv data.KV) (ledger.Slot, error) {
	switch cfg.LedgerBackend {
	case config.LedgerBackendFile:
		slot, err := ledger.NewFileSlot(cfg.LedgerPath)
		if err != nil {
			return nil, fmt.Errorf("failed to open download ledger: %w", err)
		}
		return slot, nil
	default:
		return ledger.NewStoreSlot(kv, ledger.DefaultKey), nil
	}
}
