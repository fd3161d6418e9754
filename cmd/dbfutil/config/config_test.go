package config

import (
	"os"
	"path/filepath"
	"testing"

	log "github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	dbf "github.com/Ulysses-Xu/go-xbase"
)

func TestDefaultConfig(t *testing.T) {
	config := DefaultConfig()

	assert.Equal(t, "", config.Encoding)
	assert.Equal(t, "end", config.Trim)
	assert.False(t, config.Strict)
	assert.Equal(t, "warn", config.LogLevel)

	level, err := config.Level()
	require.NoError(t, err)
	assert.Equal(t, log.WarnLevel, level)
}

func TestLoadConfig(t *testing.T) {
	t.Run("load existing config", func(t *testing.T) {
		configPath := filepath.Join(t.TempDir(), "dbfutil.yaml")
		require.NoError(t, os.WriteFile(configPath, []byte("encoding: gbk\nstrict: true\nlog_level: debug\n"), 0644))

		config, err := LoadConfig(configPath)
		require.NoError(t, err)
		assert.Equal(t, "gbk", config.Encoding)
		assert.True(t, config.Strict)
		assert.Equal(t, "end", config.Trim, "missing keys keep defaults")

		level, err := config.Level()
		require.NoError(t, err)
		assert.Equal(t, log.DebugLevel, level)
	})

	t.Run("missing file", func(t *testing.T) {
		_, err := LoadConfig(filepath.Join(t.TempDir(), "nope.yaml"))
		assert.Error(t, err)
	})

	t.Run("invalid yaml", func(t *testing.T) {
		configPath := filepath.Join(t.TempDir(), "bad.yaml")
		require.NoError(t, os.WriteFile(configPath, []byte("strict: [unclosed\n"), 0644))
		_, err := LoadConfig(configPath)
		assert.Error(t, err)
	})
}

func TestSaveConfig(t *testing.T) {
	configPath := filepath.Join(t.TempDir(), "dbfutil.yaml")
	config := DefaultConfig()
	config.Trim = "both"
	require.NoError(t, SaveConfig(config, configPath))

	loaded, err := LoadConfig(configPath)
	require.NoError(t, err)
	assert.Equal(t, config, loaded)
}

func TestOptions(t *testing.T) {
	logger := log.New()

	opts, err := DefaultConfig().Options(logger)
	require.NoError(t, err)
	assert.Equal(t, dbf.TrimEnd, opts.Trim)
	assert.Nil(t, opts.Encoding)
	assert.Equal(t, logger, opts.Logger)

	config := &Config{Trim: "none", Encoding: "windows-1252", Strict: true}
	opts, err = config.Options(logger)
	require.NoError(t, err)
	assert.Equal(t, dbf.TrimNone, opts.Trim)
	assert.True(t, opts.Strict)
	require.NotNil(t, opts.Encoding)

	_, err = (&Config{Trim: "sideways"}).Options(logger)
	assert.Error(t, err)
	_, err = (&Config{Encoding: "no-such-charset"}).Options(logger)
	assert.Error(t, err)
	_, err = (&Config{LogLevel: "loud"}).Level()
	assert.Error(t, err)
}
