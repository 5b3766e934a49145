package config

import (
	"encoding/base64"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func setKeys(t *testing.T) {
	t.Helper()
	t.Setenv("MASTER_KEY", base64.StdEncoding.EncodeToString([]byte("master-secret")))
	t.Setenv("SECRET_LINK_KEY", base64.StdEncoding.EncodeToString([]byte("link-secret")))
}

func TestLoad_Defaults(t *testing.T) {
	setKeys(t)

	c, err := Load(nil)
	require.NoError(t, err)

	assert.Equal(t, ":8080", c.Addr)
	assert.Equal(t, "127.0.0.1:8081", c.AdminAddr)
	assert.Equal(t, "http://localhost:8080", c.BaseURL)
	assert.Equal(t, "user_data", c.DataDir)
	assert.Equal(t, 1, c.MaxDownloads)
	assert.True(t, c.DeleteOnExhaustion)
	assert.Equal(t, 5, c.OTPAttemptLimit)
	assert.Equal(t, 10, c.OTPLength)
	assert.Equal(t, []byte("master-secret"), c.MasterKey)
	assert.Equal(t, []byte("link-secret"), c.LinkSigningKey)
}

func TestLoad_EnvOverridesDefaults(t *testing.T) {
	setKeys(t)
	t.Setenv("ADDR", ":9090")
	t.Setenv("BASE_URL", "https://vault.example.com")
	t.Setenv("MAX_DOWNLOADS", "3")
	t.Setenv("OTP_ATTEMPT_LIMIT", "2")
	t.Setenv("DELETE_AFTER_DOWNLOAD", "false")

	c, err := Load(nil)
	require.NoError(t, err)

	assert.Equal(t, ":9090", c.Addr)
	assert.Equal(t, "https://vault.example.com", c.BaseURL)
	assert.Equal(t, 3, c.MaxDownloads)
	assert.Equal(t, 2, c.OTPAttemptLimit)
	assert.False(t, c.DeleteOnExhaustion)
}

func TestLoad_FlagsOverrideEnv(t *testing.T) {
	setKeys(t)
	t.Setenv("ADDR", ":9090")

	c, err := Load([]string{"-addr", ":7070", "-max-downloads", "5"})
	require.NoError(t, err)

	assert.Equal(t, ":7070", c.Addr)
	assert.Equal(t, 5, c.MaxDownloads)
}

func TestLoad_RequiresBothSecrets(t *testing.T) {
	t.Setenv("MASTER_KEY", base64.StdEncoding.EncodeToString([]byte("master-secret")))

	_, err := Load(nil)
	require.Error(t, err)
}

func TestLoad_RejectsUndecodableSecret(t *testing.T) {
	setKeys(t)
	t.Setenv("MASTER_KEY", "%%% not base64 %%%")

	_, err := Load(nil)
	require.Error(t, err)
}

func TestLoad_KeysViaFlags(t *testing.T) {
	c, err := Load([]string{
		"-master-key", base64.StdEncoding.EncodeToString([]byte("m")),
		"-link-key", base64.StdEncoding.EncodeToString([]byte("l")),
	})
	require.NoError(t, err)
	assert.Equal(t, []byte("m"), c.MasterKey)
	assert.Equal(t, []byte("l"), c.LinkSigningKey)
}
