package logging

import (
	"bytes"
	"encoding/json"
	"os"
	"path/filepath"
	"testing"

	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestConfigureJSONComponent(t *testing.T) {
	t.Setenv("LOG_LEVEL", "")
	_, err := Configure(Config{Level: "debug", Format: "json"})
	require.NoError(t, err)

	var buf bytes.Buffer
	SetOutput(&buf)
	Component("edgar").WithField("cik", "0000320193").Debug("fetched")

	var line map[string]interface{}
	require.NoError(t, json.Unmarshal(buf.Bytes(), &line))
	assert.Equal(t, "edgar", line["component"])
	assert.Equal(t, "fetched", line["message"])
	assert.Equal(t, "debug", line["level"])
}

func TestEnvLevelOverrides(t *testing.T) {
	t.Setenv("LOG_LEVEL", "error")
	_, err := Configure(Config{Level: "debug"})
	require.NoError(t, err)
	assert.Equal(t, logrus.ErrorLevel, L().GetLevel())
}

func TestFileOutputRotates(t *testing.T) {
	t.Setenv("LOG_LEVEL", "")
	path := filepath.Join(t.TempDir(), "secdash.log")
	closer, err := Configure(Config{Output: path})
	require.NoError(t, err)

	L().Info("hello")
	require.NoError(t, closer.Close())

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Contains(t, string(data), "hello")

	_, err = Configure(Config{})
	require.NoError(t, err)
}
