package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func lookupMap(m map[string]string) LookupFunc {
	return func(key string) (string, bool) {
		v, ok := m[key]
		return v, ok
	}
}

func TestApplyEnv(t *testing.T) {
	cfg := NewConfig()
	err := cfg.ApplyEnv(lookupMap(map[string]string{
		EnvJoinIPFS:          "true",
		EnvPort:              "4100",
		EnvSecretKey:         "ab",
		EnvMetricsAddr:       "0.0.0.0:9000",
		EnvBootstrapInterval: "1m",
	}))
	require.NoError(t, err)

	assert.True(t, cfg.JoinIPFS)
	assert.Equal(t, uint16(4100), cfg.Transport.Port)
	assert.Equal(t, "ab", cfg.Identity.SecretKey)
	assert.True(t, cfg.Metrics.Enable)
	assert.Equal(t, "0.0.0.0:9000", cfg.Metrics.ListenAddr)
	assert.Equal(t, time.Minute, cfg.Discovery.BootstrapInterval.Duration())
}

func TestApplyEnv_Unset(t *testing.T) {
	cfg := NewConfig()
	require.NoError(t, cfg.ApplyEnv(lookupMap(nil)))
	assert.Equal(t, NewConfig(), cfg)
}

func TestApplyEnv_Invalid(t *testing.T) {
	cases := map[string]string{
		EnvJoinIPFS:          "maybe",
		EnvPort:              "70000",
		EnvBootstrapInterval: "soon",
	}
	for key, v := range cases {
		t.Run(key, func(t *testing.T) {
			err := NewConfig().ApplyEnv(lookupMap(map[string]string{key: v}))
			require.Error(t, err)
			assert.Contains(t, err.Error(), key)
		})
	}
}

func TestParsePort(t *testing.T) {
	p, err := ParsePort("0")
	require.NoError(t, err)
	assert.Equal(t, uint16(0), p)

	p, err = ParsePort("65535")
	require.NoError(t, err)
	assert.Equal(t, uint16(65535), p)

	for _, s := range []string{"", "-1", "65536", "abc"} {
		_, err := ParsePort(s)
		assert.Error(t, err, s)
	}
}
