package config

import (
	"os"
	"testing"

	"github.com/spf13/viper"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func resetViper() {
	viper.Reset()
}

func TestLoadRequiresPort(t *testing.T) {
	resetViper()
	defer resetViper()

	_, err := Load()
	assert.Error(t, err)
}

func TestLoadAppliesDefaults(t *testing.T) {
	resetViper()
	defer resetViper()

	os.Setenv("PORT", "8887")
	defer os.Unsetenv("PORT")

	cfg, err := Load()
	require.NoError(t, err)
	assert.Equal(t, "0.0.0.0", cfg.Addr)
	assert.Equal(t, 8887, cfg.Port)
	assert.Equal(t, "info", cfg.LogLevel)
	assert.Equal(t, "", cfg.AllowedSerialNumbers)
	assert.Equal(t, ":9090", cfg.MetricsAddr)
}

func TestLoadReadsAllowedSerialNumbers(t *testing.T) {
	resetViper()
	defer resetViper()

	os.Setenv("PORT", "9000")
	os.Setenv("ALLOWED_SERIAL_NUMBERS", "SN-1,SN-2")
	defer os.Unsetenv("PORT")
	defer os.Unsetenv("ALLOWED_SERIAL_NUMBERS")

	cfg, err := Load()
	require.NoError(t, err)
	assert.Equal(t, "SN-1,SN-2", cfg.AllowedSerialNumbers)
}

func TestLoadSplitsKafkaBrokers(t *testing.T) {
	resetViper()
	defer resetViper()

	os.Setenv("PORT", "9000")
	os.Setenv("KAFKA_BROKERS", "broker-a:9092, broker-b:9092")
	defer os.Unsetenv("PORT")
	defer os.Unsetenv("KAFKA_BROKERS")

	cfg, err := Load()
	require.NoError(t, err)
	assert.Equal(t, []string{"broker-a:9092", "broker-b:9092"}, cfg.KafkaBrokers)
}

func TestServerAddr(t *testing.T) {
	cfg := &Config{Addr: "0.0.0.0", Port: 8080}
	assert.Equal(t, "0.0.0.0:8080", cfg.ServerAddr())
}
