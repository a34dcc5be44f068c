package main

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"sync"
	"syscall"
	"time"

	"go.uber.org/zap"

	"wormhole-tracker/internal/app"
	"wormhole-tracker/internal/authsvc"
	"wormhole-tracker/internal/config"
	"wormhole-tracker/internal/esiclient"
	"wormhole-tracker/internal/vault"
	"wormhole-tracker/pkg/ids"
)

func main() {
	logger, _ := zap.NewProduction()
	defer logger.Sync()

	cfg, err := config.Load()
	if err != nil {
		logger.Fatal("invalid configuration", zap.Error(err))
	}

	// ── Event store ──────────────────────────────────────────────────────
	runtime, err := app.Connect(context.Background(), cfg.DatabasePath)
	if err != nil {
		logger.Fatal("failed to open event store", zap.Error(err))
	}
	defer runtime.Close()
	logger.Info("event store opened and projection replayed", zap.String("path", cfg.DatabasePath))

	// ── Credential vault ─────────────────────────────────────────────────
	tokenStore, err := vault.NewStore(cfg.VaultAddr, cfg.VaultToken, cfg.VaultKvMount)
	if err != nil {
		logger.Fatal("failed to construct vault token store", zap.Error(err))
	}

	// ── Auth service ─────────────────────────────────────────────────────
	ssoClient, err := authsvc.NewPKCEClient(cfg.EsiClientConfig(), &http.Client{Timeout: 10 * time.Second})
	if err != nil {
		logger.Fatal("failed to construct SSO client", zap.Error(err))
	}
	authService := authsvc.NewService(ssoClient, tokenStore, cfg.EveScopes,
		authsvc.WithRefreshSkewSeconds(cfg.RefreshSkewSeconds))

	// ── Per-character managed clients and ingestors ─────────────────────
	shutdownCh := make(chan struct{})
	var wg sync.WaitGroup

	for _, characterID := range trackedCharacterIDs() {
		client, err := esiclient.Connect(authService, characterID, &http.Client{Timeout: 10 * time.Second}, cfg.EveUserAgent, logger)
		if err != nil {
			logger.Warn("skipping character: no usable session", zap.Uint64("character_id", uint64(characterID)), zap.Error(err))
			continue
		}

		wg.Add(1)
		go func(client *esiclient.Client) {
			defer wg.Done()
			defer client.Close()
			if err := runtime.RunIngestionUntilShutdown(context.Background(), client, cfg.Poll, shutdownCh); err != nil {
				logger.Warn("ingestion stopped", zap.Uint64("character_id", uint64(client.CharacterID())), zap.Error(err))
			}
		}(client)
	}

	logger.Info("wormhole-tracker running")

	// ── Graceful shutdown ────────────────────────────────────────────────
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, os.Interrupt, syscall.SIGTERM)
	<-quit
	logger.Info("initiating graceful shutdown")

	close(shutdownCh)
	wg.Wait()
	logger.Info("wormhole-tracker shut down cleanly")
}

// trackedCharacterIDs reads the set of characters to ingest for at
// startup from the comma-separated EVE_TRACKED_CHARACTER_IDS
// environment variable. It does not consult the token store; a listed
// character without a usable session is skipped when its client fails
// to connect.
func trackedCharacterIDs() []ids.CharacterID {
	raw := os.Getenv("EVE_TRACKED_CHARACTER_IDS")
	if raw == "" {
		return nil
	}
	return parseCharacterIDList(raw)
}
