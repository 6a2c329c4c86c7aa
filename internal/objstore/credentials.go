package objstore

import (
	"github.com/minio/minio-go/v7/pkg/credentials"

	"github.com/hma-data/mba-ingest/internal/config"
	"github.com/hma-data/mba-ingest/pkg/logx"
)

// resolveCredentials picks the credential source in strict priority order:
// named profile first, then an explicit key pair, then the default ambient
// chain (environment, shared credentials file, IAM role). Partial sources
// are never mixed; ValidateStoreConfig rejects half a key pair upfront.
func resolveCredentials(cfg config.StoreConfig) *credentials.Credentials {
	if cfg.Profile != "" {
		logx.As().Debug().
			Str("profile", cfg.Profile).
			Msg("Resolving store credentials from named profile")
		return credentials.NewFileAWSCredentials("", cfg.Profile)
	}

	if cfg.AccessKey != "" && cfg.SecretKey != "" {
		// only the strategy is logged, never the key material
		logx.As().Debug().Msg("Resolving store credentials from explicit access keys")
		return credentials.NewStaticV4(cfg.AccessKey, cfg.SecretKey, "")
	}

	logx.As().Debug().Msg("Resolving store credentials from default chain")
	return credentials.NewChainCredentials([]credentials.Provider{
		&credentials.EnvAWS{},
		&credentials.FileAWSCredentials{},
		&credentials.IAM{},
	})
}
