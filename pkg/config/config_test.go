package config

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type testConfig struct {
	Port      int      `env:"TEST_CFG_PORT" envDefault:"8080"`
	Host      string   `env:"TEST_CFG_HOST" envDefault:"localhost"`
	Debug     bool     `env:"TEST_CFG_DEBUG" envDefault:"false"`
	Brokers   []string `env:"TEST_CFG_BROKERS" envDefault:"a:1,b:2" envSeparator:","`
	TimeoutMs int      `env:"TEST_CFG_TIMEOUT_MS" envDefault:"25000"`
}

func TestLoad_Defaults(t *testing.T) {
	var cfg testConfig
	err := Load(&cfg)

	require.NoError(t, err)
	assert.Equal(t, 8080, cfg.Port)
	assert.Equal(t, "localhost", cfg.Host)
	assert.False(t, cfg.Debug)
	assert.Equal(t, []string{"a:1", "b:2"}, cfg.Brokers)
	assert.Equal(t, 25000, cfg.TimeoutMs)
}

func TestLoad_FromEnvVars(t *testing.T) {
	t.Setenv("TEST_CFG_PORT", "9090")
	t.Setenv("TEST_CFG_DEBUG", "true")

	var cfg testConfig
	err := Load(&cfg)

	require.NoError(t, err)
	assert.Equal(t, 9090, cfg.Port)
	assert.True(t, cfg.Debug)
}

func TestLoadFrom_UsesGivenEnvironment(t *testing.T) {
	t.Setenv("TEST_CFG_HOST", "from-process")

	var cfg testConfig
	err := LoadFrom(&cfg, map[string]string{
		"TEST_CFG_HOST":    "from-map",
		"TEST_CFG_BROKERS": "k1:9092",
	})

	require.NoError(t, err)
	assert.Equal(t, "from-map", cfg.Host)
	assert.Equal(t, []string{"k1:9092"}, cfg.Brokers)
}

type requiredConfig struct {
	Secret string `env:"TEST_CFG_SECRET,required"`
}

func TestLoadFrom_RequiredFieldMissing(t *testing.T) {
	var cfg requiredConfig
	err := LoadFrom(&cfg, map[string]string{})

	require.Error(t, err)
	assert.Contains(t, err.Error(), "parse config")
}

func TestLoadFrom_InvalidValue(t *testing.T) {
	var cfg testConfig
	err := LoadFrom(&cfg, map[string]string{"TEST_CFG_PORT": "not-a-number"})

	require.Error(t, err)
}
