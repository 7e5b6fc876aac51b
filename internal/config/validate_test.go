package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNormalizeAppliesDefaults(t *testing.T) {
	cfg, v := NormalizeAndValidate(Config{})
	assert.True(t, v.OK(), "empty config should only warn: %v", v.Errors)

	assert.Equal(t, 0.85, cfg.Dedupe.FuzzyThreshold)
	assert.Equal(t, 0.70, cfg.Dedupe.FlagThreshold)
	assert.Equal(t, 500, cfg.Dedupe.Window)
	assert.Equal(t, 2, cfg.Actions.Workers)
	assert.Equal(t, 3, cfg.Actions.MaxAttempts)
	assert.Equal(t, 5, cfg.Actions.BackoffBaseSeconds)
	assert.Equal(t, 300, cfg.Actions.BackoffMaxSeconds)
}

func TestValidateSources(t *testing.T) {
	cfg := Config{Sources: []Source{
		{ID: "a", Kind: "httpjson", URL: "https://x.example"},
		{ID: "a", Kind: "board", URL: "https://y.example"},
		{ID: "b", Kind: "csvfile"},
		{ID: "c", Kind: "fax"},
		{Kind: "httpjson"},
	}}
	_, v := NormalizeAndValidate(cfg)
	require.False(t, v.OK())

	joined := ""
	for _, e := range v.Errors {
		joined += e + "\n"
	}
	assert.Contains(t, joined, "duplicate id")
	assert.Contains(t, joined, "path is required")
	assert.Contains(t, joined, "unknown kind")
	assert.Contains(t, joined, "id is required")
}

func TestValidateThresholdOrdering(t *testing.T) {
	cfg := Config{Dedupe: Dedupe{FuzzyThreshold: 0.6, FlagThreshold: 0.7}}
	_, v := NormalizeAndValidate(cfg)
	assert.False(t, v.OK())
}

func TestValidatePlans(t *testing.T) {
	cfg := Config{Plans: []Plan{
		{Code: "monthly", Amount: 500, Currency: "USD", DurationDays: 30},
		{Code: "monthly", Amount: 900, Currency: "USD", DurationDays: 90},
		{Code: "free", Amount: 0, Currency: "USD", DurationDays: 30},
	}}
	_, v := NormalizeAndValidate(cfg)
	require.False(t, v.OK())

	joined := ""
	for _, e := range v.Errors {
		joined += e + "\n"
	}
	assert.Contains(t, joined, "duplicate code")
	assert.Contains(t, joined, "amount must be > 0")
}

func TestNormalizeDedupesKeywordLists(t *testing.T) {
	cfg := Config{Filters: Filters{
		IncludeKeywords: []string{" go ", "Go", "", "rust"},
	}}
	out, _ := NormalizeAndValidate(cfg)
	assert.Equal(t, []string{"go", "rust"}, out.Filters.IncludeKeywords)
}

func TestLoadRoundTrip(t *testing.T) {
	path := filepath.Join(t.TempDir(), "engine.yml")
	require.NoError(t, os.WriteFile(path, []byte(`
app:
  port: 38471
sources:
  - id: feed
    kind: httpjson
    enabled: true
    url: "https://x.example/api"
    fields:
      items: "jobs"
plans:
  - code: monthly
    amount: 500
    currency: USD
    duration_days: 30
`), 0o644))

	cfg, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, 38471, cfg.App.Port)
	require.Len(t, cfg.Sources, 1)
	assert.Equal(t, "jobs", cfg.Sources[0].Fields["items"])
	require.Len(t, cfg.Plans, 1)
	assert.Equal(t, int64(500), cfg.Plans[0].Amount)
}

func TestEnsureUserConfigCopiesDefault(t *testing.T) {
	dir := t.TempDir()
	defaultPath := filepath.Join(dir, "default.yml")
	require.NoError(t, os.WriteFile(defaultPath, []byte("app:\n  port: 1\n"), 0o644))

	dataDir := t.TempDir()
	userPath, err := EnsureUserConfig(dataDir, defaultPath)
	require.NoError(t, err)
	assert.Equal(t, filepath.Join(dataDir, "engine.yml"), userPath)

	// second call must not clobber user edits
	require.NoError(t, os.WriteFile(userPath, []byte("app:\n  port: 2\n"), 0o644))
	again, err := EnsureUserConfig(dataDir, defaultPath)
	require.NoError(t, err)
	cfg, err := Load(again)
	require.NoError(t, err)
	assert.Equal(t, 2, cfg.App.Port)
}
