package config

import (
	"errors"
	"testing"
	"time"
)

func validConfig() *Config {
	return &Config{
		BaseURL:        "https://api.example.com",
		Environment:    EnvDev,
		RequestTimeout: DefaultRequestTimeout,
		PageSize:       DefaultPageSize,
	}
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name    string
		mutate  func(*Config)
		wantErr error
	}{
		{
			name:   "valid config",
			mutate: func(c *Config) {},
		},
		{
			name:    "missing base URL",
			mutate:  func(c *Config) { c.BaseURL = "" },
			wantErr: ErrMissingBaseURL,
		},
		{
			name:    "unparseable base URL",
			mutate:  func(c *Config) { c.BaseURL = "not a url" },
			wantErr: ErrInvalidBaseURL,
		},
		{
			name:    "base URL without scheme",
			mutate:  func(c *Config) { c.BaseURL = "api.example.com" },
			wantErr: ErrInvalidBaseURL,
		},
		{
			name:    "environment with slash",
			mutate:  func(c *Config) { c.Environment = "dev/extra" },
			wantErr: ErrInvalidEnvironment,
		},
		{
			name:    "zero timeout",
			mutate:  func(c *Config) { c.RequestTimeout = 0 },
			wantErr: ErrInvalidTimeout,
		},
		{
			name:    "excessive timeout",
			mutate:  func(c *Config) { c.RequestTimeout = time.Hour },
			wantErr: ErrInvalidTimeout,
		},
		{
			name:    "zero page size",
			mutate:  func(c *Config) { c.PageSize = 0 },
			wantErr: ErrInvalidPageSize,
		},
		{
			name:    "page size above maximum",
			mutate:  func(c *Config) { c.PageSize = MaxPageSize + 1 },
			wantErr: ErrInvalidPageSize,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := validConfig()
			tt.mutate(cfg)

			err := cfg.Validate()
			if tt.wantErr == nil {
				if err != nil {
					t.Fatalf("Validate() error = %v, want nil", err)
				}
				return
			}
			if !errors.Is(err, tt.wantErr) {
				t.Errorf("Validate() error = %v, want %v", err, tt.wantErr)
			}
		})
	}
}

func TestAPIRoot(t *testing.T) {
	tests := []struct {
		name    string
		baseURL string
		env     string
		want    string
	}{
		{
			name:    "joins base and environment",
			baseURL: "https://api.example.com",
			env:     "dev",
			want:    "https://api.example.com/dev",
		},
		{
			name:    "trims trailing slash",
			baseURL: "https://api.example.com/",
			env:     "prod",
			want:    "https://api.example.com/prod",
		},
		{
			name:    "empty environment",
			baseURL: "https://api.example.com",
			env:     "",
			want:    "https://api.example.com",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := &Config{BaseURL: tt.baseURL, Environment: tt.env}
			if got := cfg.APIRoot(); got != tt.want {
				t.Errorf("APIRoot() = %q, want %q", got, tt.want)
			}
		})
	}
}
