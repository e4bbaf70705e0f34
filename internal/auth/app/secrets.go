package app

import (
	"fmt"
	"log/slog"

	"github.com/aussiebroadwan/quackwell/pkg/cryptox"
)

// EnsureSecrets fills in missing signing secrets.
//
// Modes:
//   - dev: each missing secret is generated at startup and held only in
//     memory. Every token becomes invalid when the service restarts.
//   - anything else: secrets must be configured, nothing is generated.
//
// The OAuth state secret falls back to one derived from the access secret,
// so state cookies never share a key with access tokens.
func EnsureSecrets(cfg *Config, logger *slog.Logger) error {
	if cfg.Env == "dev" {
		for name, secret := range map[string]*string{
			"access":  &cfg.JWT.AccessSecret,
			"refresh": &cfg.JWT.RefreshSecret,
			"reset":   &cfg.JWT.ResetSecret,
		} {
			if *secret != "" {
				continue
			}

			generated, err := cryptox.GenerateToken(cryptox.TokenSize256)
			if err != nil {
				return fmt.Errorf("generate %s secret: %w", name, err)
			}
			*secret = generated

			logger.Warn("using an ephemeral jwt secret, tokens will not survive a restart", "kind", name)
		}
	}

	if cfg.StateSecret == "" && cfg.JWT.AccessSecret != "" {
		cfg.StateSecret = "oauth-state:" + cfg.JWT.AccessSecret
	}

	return cfg.Validate()
}
