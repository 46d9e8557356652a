package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"gopattern/domain/discovery"
	"gopattern/internal/errors"
)

func clearEnv(t *testing.T) {
	t.Helper()
	for _, key := range []string{
		"DATABASE_URL", "PORT", "LOG_LEVEL", "READ_TIMEOUT", "DATA_DIR",
		"DISCOVERY_SEED", "DISCOVERY_MAX_RESULTS", "DISCOVERY_FOLDS", "DISCOVERY_OPTIONS_FILE",
	} {
		t.Setenv(key, "")
	}
}

func writeFile(t *testing.T, name, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), name)
	require.NoError(t, os.WriteFile(path, []byte(content), 0o600))
	return path
}

func TestLoad_Defaults(t *testing.T) {
	clearEnv(t)
	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, "8080", cfg.Server.Port)
	assert.Equal(t, 30*time.Second, cfg.Server.ReadTimeout)
	assert.Equal(t, "INFO", cfg.Log.Level)
	assert.Equal(t, "data", cfg.Server.DataDir)
	assert.Equal(t, int64(42), cfg.Discovery.Seed)
	assert.Error(t, cfg.RequireDatabase())
}

func TestLoad_FromEnvironment(t *testing.T) {
	clearEnv(t)
	t.Setenv("DATABASE_URL", "postgres://localhost/patterns")
	t.Setenv("PORT", "9090")
	t.Setenv("DISCOVERY_SEED", "7")
	t.Setenv("DISCOVERY_MAX_RESULTS", "5")
	t.Setenv("DISCOVERY_FOLDS", "10")
	t.Setenv("READ_TIMEOUT", "1m")
	t.Setenv("DATA_DIR", "/srv/datasets")

	cfg, err := Load()
	require.NoError(t, err)
	assert.NoError(t, cfg.RequireDatabase())
	assert.Equal(t, "/srv/datasets", cfg.Server.DataDir)
	assert.Equal(t, "9090", cfg.Server.Port)
	assert.Equal(t, time.Minute, cfg.Server.ReadTimeout)

	opts, err := cfg.Options()
	require.NoError(t, err)
	require.NotNil(t, opts.RandomSeed)
	assert.Equal(t, int64(7), *opts.RandomSeed)
	assert.Equal(t, 5, opts.MaxResults)
	assert.Equal(t, 10, opts.CrossValidationFolds)
	require.NotNil(t, opts.ApplyCorrection)
	assert.True(t, *opts.ApplyCorrection)
}

func TestLoad_InvalidFolds(t *testing.T) {
	clearEnv(t)
	t.Setenv("DISCOVERY_FOLDS", "1")
	_, err := Load()
	assert.True(t, errors.IsConfigInvalid(err))
}

func TestOptions_FileOverridesEnvironment(t *testing.T) {
	clearEnv(t)
	path := writeFile(t, "options.yaml", `
random_seed: 99
max_results: 3
apply_multiple_comparison_correction: false
threshold_percentiles: [10, 90]
max_polynomial_degree: 3
`)
	t.Setenv("DISCOVERY_OPTIONS_FILE", path)
	t.Setenv("DISCOVERY_MAX_RESULTS", "50")
	t.Setenv("DISCOVERY_FOLDS", "4")

	cfg, err := Load()
	require.NoError(t, err)
	opts, err := cfg.Options()
	require.NoError(t, err)

	assert.Equal(t, int64(99), *opts.RandomSeed)
	assert.Equal(t, 3, opts.MaxResults)
	assert.False(t, *opts.ApplyCorrection)
	assert.Equal(t, []float64{10, 90}, opts.ThresholdPercentiles)
	assert.Equal(t, 3, opts.MaxPolynomialDegree)
	assert.Equal(t, 4, opts.CrossValidationFolds)
}

func TestLoadOptionsFile_RejectsUnknownKeys(t *testing.T) {
	path := writeFile(t, "options.yaml", "max_resluts: 3\n")
	_, err := LoadOptionsFile(path)
	assert.True(t, errors.IsConfigInvalid(err))
}

func TestSchemaFile_RoundTrip(t *testing.T) {
	path := writeFile(t, "schema.yaml", `
outcome: revenue
features:
  - name: spend
    kind: numeric
  - name: member
    kind: bool
  - name: region
    kind: categorical
contexts: [channel]
`)
	schema, err := LoadSchemaFile(path)
	require.NoError(t, err)
	assert.Equal(t, discovery.Schema{
		Outcome: "revenue",
		Features: []discovery.Feature{
			{Name: "spend", Kind: discovery.FeatureContinuous},
			{Name: "member", Kind: discovery.FeatureBoolean},
			{Name: "region", Kind: discovery.FeatureCategorical},
		},
		Contexts: []string{"channel"},
	}, schema)

	out := filepath.Join(t.TempDir(), "out.yaml")
	require.NoError(t, WriteSchemaFile(out, schema))
	again, err := LoadSchemaFile(out)
	require.NoError(t, err)
	assert.Equal(t, schema, again)
}

func TestLoadSchemaFile_UnknownKind(t *testing.T) {
	path := writeFile(t, "schema.yaml", "outcome: y\nfeatures:\n  - name: x\n    kind: ordinal\n")
	_, err := LoadSchemaFile(path)
	assert.True(t, errors.IsConfigInvalid(err))
}

func TestLoadDotEnv(t *testing.T) {
	clearEnv(t)
	path := writeFile(t, ".env", "DISCOVERY_SEED=123\nPORT=7000\n")
	require.NoError(t, os.Unsetenv("DISCOVERY_SEED"))
	t.Setenv("PORT", "7001")

	require.NoError(t, LoadDotEnv(path, filepath.Join(t.TempDir(), "missing.env")))
	cfg, err := Load()
	require.NoError(t, err)
	assert.Equal(t, int64(123), cfg.Discovery.Seed)
	assert.Equal(t, "7001", cfg.Server.Port, "existing variables win over .env")
}
