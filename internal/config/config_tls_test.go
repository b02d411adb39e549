package config

import (
	"strings"
	"testing"
)

func TestValidateTLSConfig(t *testing.T) {
	tests := []struct {
		name        string
		tls         TLSConfig
		expectError bool
		errorMsg    string
	}{
		{
			name: "disabled mode",
			tls:  TLSConfig{Mode: "disabled"},
		},
		{
			name: "server mode with files",
			tls:  TLSConfig{Mode: "server", CertFile: "/certs/server.crt", KeyFile: "/certs/server.key", MinVersion: "1.3"},
		},
		{
			name:        "server mode missing key",
			tls:         TLSConfig{Mode: "server", CertFile: "/certs/server.crt"},
			expectError: true,
			errorMsg:    "certFile and keyFile are required",
		},
		{
			name:        "mutual mode is not supported",
			tls:         TLSConfig{Mode: "mutual", CertFile: "a", KeyFile: "b"},
			expectError: true,
			errorMsg:    "invalid TLS mode",
		},
		{
			name:        "unknown min version",
			tls:         TLSConfig{Mode: "disabled", MinVersion: "1.1"},
			expectError: true,
			errorMsg:    "invalid TLS minVersion",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := &Config{Server: ServerConfig{TLS: tt.tls}}
			err := cfg.ValidateTLSConfig()

			if tt.expectError {
				if err == nil {
					t.Fatal("Expected error but got none")
				}
				if !strings.Contains(err.Error(), tt.errorMsg) {
					t.Errorf("Expected error containing %q, got %q", tt.errorMsg, err.Error())
				}
				return
			}
			if err != nil {
				t.Errorf("Expected no error, got %v", err)
			}
		})
	}
}
