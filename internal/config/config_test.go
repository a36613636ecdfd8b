package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeConfig(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
	return path
}

func TestLoadDefaults(t *testing.T) {
	path := writeConfig(t, `
database:
  path: /tmp/salonbook-test.db
`)

	cfg, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, "salonbook", cfg.App.Name)
	assert.Equal(t, 8080, cfg.Server.Port)
	assert.Equal(t, 20, cfg.Server.ThrottleBurst)
	assert.Equal(t, 3, cfg.Booking.MaxPerIP)
	assert.Equal(t, 3600, cfg.Booking.WindowSeconds)
	assert.Equal(t, 2, cfg.Booking.MaxPendingPerPhone)
	assert.Equal(t, 60, cfg.Booking.SameDayLeadMinutes)
	assert.Equal(t, 0.5, cfg.Recaptcha.MinScore)
	assert.Equal(t, "https://www.google.com/recaptcha/api/siteverify", cfg.Recaptcha.VerifyURL)
	assert.Equal(t, 14, cfg.Backup.RetentionDays)
}

func TestLoadExpandsEnv(t *testing.T) {
	t.Setenv("SALONBOOK_TEST_DB", "/tmp/expanded.db")
	t.Setenv("SALONBOOK_TEST_SECRET", "shh")

	path := writeConfig(t, `
database:
  path: ${SALONBOOK_TEST_DB}
recaptcha:
  secret: ${SALONBOOK_TEST_SECRET}
`)

	cfg, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, "/tmp/expanded.db", cfg.Database.Path)
	assert.Equal(t, "shh", cfg.Recaptcha.Secret)
}

func TestLoadMissingDatabasePath(t *testing.T) {
	path := writeConfig(t, `
app:
  name: test
`)

	_, err := Load(path)
	assert.Error(t, err)
}

func TestLoadInvalidValues(t *testing.T) {
	tests := []struct {
		name string
		yaml string
	}{
		{"negative max_per_ip", "database:\n  path: /tmp/x.db\nbooking:\n  max_per_ip: -1\n"},
		{"negative window", "database:\n  path: /tmp/x.db\nbooking:\n  window_seconds: -5\n"},
		{"score out of range", "database:\n  path: /tmp/x.db\nrecaptcha:\n  min_score: 1.5\n"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Load(writeConfig(t, tt.yaml))
			assert.Error(t, err)
		})
	}
}

func TestLoadMissingFile(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "nope.yaml"))
	assert.Error(t, err)
}
