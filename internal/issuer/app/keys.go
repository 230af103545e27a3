package app

import (
	"fmt"
	"log/slog"

	"github.com/agrilink/agrilink/pkg/jwtx"
)

// InitSigningKeys creates the RS256 KeyManager for the process.
//
// Keys are generated on startup and live only in memory. All outstanding
// access tokens become invalid when the service restarts, which doubles as
// stateless key rotation: edges pick up the new key set through JWKS and
// clients recover by refreshing.
//
// By default two signing keys are generated with random identifiers so the
// published key set always carries more than one live kid. Use
// ISSUER_NUM_KEYS to customize.
func InitSigningKeys(cfg Config, logger *slog.Logger) (*jwtx.KeyManager, error) {
	logger.Info("initializing ephemeral key manager",
		"num_keys", cfg.NumKeys,
		"rsa_bits", cfg.RSABits,
	)

	keyManager, err := jwtx.NewEphemeralKeyManager(jwtx.KeyManagerOptions{
		Issuer:  cfg.Issuer,
		RSABits: cfg.RSABits,
		NumKeys: cfg.NumKeys,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to initialize ephemeral key manager: %w", err)
	}

	logger.Info("generated ephemeral signing keys",
		"algorithm", keyManager.Algorithm(),
		"num_keys", keyManager.NumSigners(),
		"issuer", cfg.Issuer,
	)
	logger.Warn("all existing tokens are now invalid due to key rotation on startup")

	return keyManager, nil
}
