package config

import (
	"testing"

	"github.com/spf13/viper"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSetDefaults(t *testing.T) {
	v := viper.New()
	setDefaults(v)

	var c Config
	require.NoError(t, v.Unmarshal(&c))

	assert.Equal(t, 0, c.Server.Port)
	assert.Equal(t, "", c.Server.Host)
	assert.Equal(t, "us-east-1", c.DefaultRegion)
	assert.Equal(t, "info", c.Logging.Level)
	assert.Equal(t, "json", c.Logging.Format)
	assert.False(t, c.Metrics.Enabled)
	assert.Equal(t, 9090, c.Metrics.Port)
	assert.False(t, c.Spy.Enabled)
	assert.Equal(t, 256, c.Spy.BufferSize)
}

func TestValidate(t *testing.T) {
	t.Run("valid config passes through unchanged", func(t *testing.T) {
		c := Config{DefaultRegion: "eu-west-1"}
		c.Spy.BufferSize = 64
		require.NoError(t, validate(&c))
		assert.Equal(t, 64, c.Spy.BufferSize)
	})

	t.Run("negative port is rejected", func(t *testing.T) {
		c := Config{DefaultRegion: "us-east-1"}
		c.Server.Port = -1
		assert.Error(t, validate(&c))
	})

	t.Run("empty default region is rejected", func(t *testing.T) {
		c := Config{DefaultRegion: ""}
		assert.Error(t, validate(&c))
	})

	t.Run("non-positive spy buffer size is corrected to 256", func(t *testing.T) {
		c := Config{DefaultRegion: "us-east-1"}
		require.NoError(t, validate(&c))
		assert.Equal(t, 256, c.Spy.BufferSize)
	})
}
