package config

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestValidateStoreConfig(t *testing.T) {
	tests := []struct {
		name        string
		config      StoreConfig
		expectedErr string
	}{
		{
			name: "Valid configuration",
			config: StoreConfig{
				Endpoint:  "s3.amazonaws.com",
				Region:    "us-east-1",
				AccessKey: "test-access-key",
				SecretKey: "test-secret-key",
			},
			expectedErr: "",
		},
		{
			name: "Valid without explicit keys",
			config: StoreConfig{
				Endpoint: "s3.amazonaws.com",
				Region:   "us-east-1",
				Profile:  "ingest",
			},
			expectedErr: "",
		},
		{
			name: "Missing Endpoint",
			config: StoreConfig{
				Region: "us-east-1",
			},
			expectedErr: "missing Endpoint in configuration",
		},
		{
			name: "Missing Region",
			config: StoreConfig{
				Endpoint: "s3.amazonaws.com",
			},
			expectedErr: "missing Region in configuration",
		},
		{
			name: "Partial key pair",
			config: StoreConfig{
				Endpoint:  "s3.amazonaws.com",
				Region:    "us-east-1",
				AccessKey: "test-access-key",
			},
			expectedErr: "AccessKey and SecretKey must be provided together",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := ValidateStoreConfig(tt.config)
			if tt.expectedErr == "" {
				assert.NoError(t, err)
			} else {
				assert.EqualError(t, err, tt.expectedErr)
			}
		})
	}
}

func TestValidateScopeConfig(t *testing.T) {
	tests := []struct {
		name        string
		config      ScopeConfig
		expectedErr string
	}{
		{
			name:        "Valid configuration",
			config:      ScopeConfig{Bucket: "mba-bucket", Prefix: "mba/"},
			expectedErr: "",
		},
		{
			name:        "Missing Bucket",
			config:      ScopeConfig{Prefix: "mba/"},
			expectedErr: "missing Bucket in configuration",
		},
		{
			name:        "Missing Prefix",
			config:      ScopeConfig{Bucket: "mba-bucket"},
			expectedErr: "missing Prefix in configuration",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := ValidateScopeConfig(tt.config)
			if tt.expectedErr == "" {
				assert.NoError(t, err)
			} else {
				assert.EqualError(t, err, tt.expectedErr)
			}
		})
	}
}
