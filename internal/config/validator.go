package config

import (
	"github.com/pkg/errors"
)

// ValidateStoreConfig validates the object store configuration. Explicit
// credentials are optional (a profile or the default chain may supply them),
// but a partial key pair is always a mistake.
func ValidateStoreConfig(storeConfig StoreConfig) error {
	if storeConfig.Endpoint == "" {
		return errors.New("missing Endpoint in configuration")
	}
	if storeConfig.Region == "" {
		return errors.New("missing Region in configuration")
	}
	if (storeConfig.AccessKey == "") != (storeConfig.SecretKey == "") {
		return errors.New("AccessKey and SecretKey must be provided together")
	}
	return nil
}

// ValidateScopeConfig validates a single scope destination.
func ValidateScopeConfig(scopeConfig ScopeConfig) error {
	if scopeConfig.Bucket == "" {
		return errors.New("missing Bucket in configuration")
	}
	if scopeConfig.Prefix == "" {
		return errors.New("missing Prefix in configuration")
	}
	return nil
}
