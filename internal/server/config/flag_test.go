package config

import (
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseFlags(t *testing.T) {
	tests := []struct {
		expected  *Config
		name      string
		args      []string
		expectErr bool
	}{
		{
			name: "all flags",
			args: []string{
				"-a", "127.0.0.1:9090", "-g", ":6000", "-d", "db", "-s", "secret",
				"-t", "60", "-k", "12", "-r", "redis://r", "-o", "http://app", "-l", "debug",
			},
			expected: &Config{
				HTTPAddr:                    "127.0.0.1:9090",
				GRPCAddr:                    ":6000",
				DatabaseDSN:                 "db",
				SecretKey:                   "secret",
				AccessTokenValidityDuration: time.Hour,
				BcryptCost:                  12,
				RedisURL:                    "redis://r",
				CORSOrigin:                  "http://app",
				LogLevel:                    "debug",
			},
		},
		{
			name: "foreign flags are ignored",
			args: []string{"-c", "cfg.json", "-s", "secret", "--verbose"},
			expected: &Config{
				SecretKey: "secret",
			},
		},
		{
			name:      "bad int",
			args:      []string{"-t", "ten"},
			expectErr: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c := &Config{}
			err := parseFlags(c, tt.args)
			if tt.expectErr {
				require.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Empty(t, cmp.Diff(tt.expected, c))
		})
	}
}
