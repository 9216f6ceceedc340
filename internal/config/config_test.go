package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const testKey = "0123456789abcdef0123456789abcdef"

func TestLoadDefaults(t *testing.T) {
	t.Setenv("ENCRYPTION_KEY", testKey)

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, 90*24*time.Hour, cfg.SyncLookback)
	assert.Equal(t, 20*time.Second, cfg.IMAPDialTimeout)
	assert.Equal(t, 15*time.Second, cfg.IMAPAuthTimeout)
	assert.Equal(t, 993, cfg.IMAPPort)
	assert.True(t, cfg.IMAPTLS)
	assert.False(t, cfg.TelegramEnabled())
	assert.False(t, cfg.BootstrapAccountEnabled())
}

func TestLoadValidation(t *testing.T) {
	tests := []struct {
		name    string
		env     map[string]string
		wantErr string
	}{
		{
			name:    "missing encryption key",
			env:     map[string]string{},
			wantErr: "ENCRYPTION_KEY",
		},
		{
			name:    "short encryption key",
			env:     map[string]string{"ENCRYPTION_KEY": "short"},
			wantErr: "exactly 32 bytes",
		},
		{
			name: "telegram token without chat",
			env: map[string]string{
				"ENCRYPTION_KEY":     testKey,
				"TELEGRAM_BOT_TOKEN": "123:abc",
			},
			wantErr: "TELEGRAM_CHAT_ID",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Setenv("ENCRYPTION_KEY", "")
			for k, v := range tt.env {
				t.Setenv(k, v)
			}

			_, err := Load()
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.wantErr)
		})
	}
}

func TestBootstrapAccount(t *testing.T) {
	t.Setenv("ENCRYPTION_KEY", testKey)
	t.Setenv("IMAP_USER", "ops@example.com")
	t.Setenv("IMAP_HOST", "imap.example.com")
	t.Setenv("IMAP_TLS", "false")

	cfg, err := Load()
	require.NoError(t, err)
	assert.True(t, cfg.BootstrapAccountEnabled())
	assert.False(t, cfg.IMAPTLS)
}
