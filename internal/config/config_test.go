package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoad_CreatesDefaultOnFirstRun(t *testing.T) {
	path := filepath.Join(t.TempDir(), "nested", "config.yaml")

	cfg, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, DefaultConfig(), cfg)

	info, err := os.Stat(path)
	require.NoError(t, err)
	assert.Equal(t, os.FileMode(0o600), info.Mode().Perm())

	again, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, cfg, again)
}

func TestLoad_NormalizesPartialConfig(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	body := []byte(`
timezone: America/New_York
preview_limit: 100000
ics:
  - name: school
    url: https://example.com/school.ics
`)
	require.NoError(t, os.WriteFile(path, body, 0o600))

	cfg, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, "America/New_York", cfg.Timezone)
	assert.Equal(t, defaultListen, cfg.Listen)
	assert.Equal(t, defaultRefreshCron, cfg.RefreshCron)
	assert.Equal(t, maxPreviewLimit, cfg.PreviewLimit)
	require.Len(t, cfg.ICS, 1)
	assert.Equal(t, "school", cfg.ICS[0].SourceID())

	loc, err := cfg.Location()
	require.NoError(t, err)
	assert.Equal(t, "America/New_York", loc.String())
}

func TestLoad_RejectsInvalid(t *testing.T) {
	tests := []struct {
		name string
		body string
	}{
		{"bad timezone", "timezone: Nowhere/City\n"},
		{"bad cron", "refresh: every now and then\n"},
		{"source without url", "ics:\n  - id: empty\n"},
		{"not yaml", "listen: [\n"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			path := filepath.Join(t.TempDir(), "config.yaml")
			require.NoError(t, os.WriteFile(path, []byte(tt.body), 0o600))
			_, err := Load(path)
			assert.Error(t, err)
		})
	}
}

func TestSave_RoundTrip(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	cfg := DefaultConfig()
	cfg.BasicAuth = &BasicAuthConfig{Username: "admin", Password: "secret"}
	cfg.ICS = append(cfg.ICS, ICSConfig{ID: "a", URL: "https://example.com/a.ics"})
	require.NoError(t, cfg.Save(path))

	got, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, cfg, got)

	assert.Error(t, Save("", cfg))
	assert.Error(t, Save(path, nil))
}

func TestICSConfigSourceID(t *testing.T) {
	assert.Equal(t, "id", ICSConfig{ID: "id", Name: "n", URL: "u"}.SourceID())
	assert.Equal(t, "n", ICSConfig{Name: "n", URL: "u"}.SourceID())
	assert.Equal(t, "u", ICSConfig{URL: "u"}.SourceID())
}
