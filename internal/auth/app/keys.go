package app

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/aussiebroadwan/schoolgate/internal/auth/store"
	"github.com/aussiebroadwan/schoolgate/pkg/cryptox"
	"github.com/aussiebroadwan/schoolgate/pkg/jwtx"
)

// InitAuthKeys creates the session KeyManager for the configured storage mode.
//
// Storage modes:
//   - "ephemeral": Keys are generated on startup and stored only in memory.
//     Every session becomes invalid when the service restarts.
//   - "persistent": Keys are sealed with the master key and stored in the
//     database. Sessions survive restarts and keys rotate during housekeeping.
//
// The returned *jwtx.PersistentKeyManager is nil in ephemeral mode.
func InitAuthKeys(ctx context.Context, cfg Config, db store.Store, logger *slog.Logger) (*jwtx.KeyManager, *jwtx.PersistentKeyManager, error) {
	opts := jwtx.KeyManagerOptions{
		Issuer:   cfg.Issuer,
		Audience: []string{cfg.Issuer},
		NumKeys:  cfg.NumKeys,
	}

	switch cfg.KeyStorageMode {
	case "persistent":
		sealer, err := cryptox.LoadSealer(cfg.MasterKeyPath)
		if err != nil {
			return nil, nil, fmt.Errorf("failed to load master key: %w", err)
		}
		if sealer.Ephemeral {
			logger.Warn("no master key configured, persisted signing keys will be unreadable after restart",
				"hint", "set AUTH_MASTER_KEY_PATH or "+cryptox.MasterKeyEnv)
		}

		pkm, err := jwtx.NewPersistentKeyManager(ctx, jwtx.PersistentKeyManagerOptions{
			KeyManagerOptions: opts,
			Store:             store.NewKeyStoreAdapter(db),
			Sealer:            sealer,
			GracePeriod:       cfg.KeyGracePeriod,
		}, time.Now().UTC())
		if err != nil {
			return nil, nil, fmt.Errorf("failed to initialize persistent key manager: %w", err)
		}

		logger.Info("persistent signing keys loaded",
			"algorithm", pkm.Algorithm(),
			"num_keys", pkm.NumSigners(),
			"issuer", cfg.Issuer,
			"grace_period", cfg.KeyGracePeriod,
		)
		return pkm.KeyManager, pkm, nil

	default:
		km, err := jwtx.NewEphemeralKeyManager(opts)
		if err != nil {
			return nil, nil, fmt.Errorf("failed to initialize ephemeral key manager: %w", err)
		}

		logger.Info("generated ephemeral signing keys",
			"algorithm", km.Algorithm(),
			"num_keys", km.NumSigners(),
			"issuer", cfg.Issuer,
		)
		logger.Warn("all existing sessions are now invalid due to key rotation on startup")
		return km, nil, nil
	}
}
