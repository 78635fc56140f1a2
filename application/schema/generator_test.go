package schema

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestGenerateSchema_NestedStruct(t *testing.T) {
	type ServerConfig struct {
		Host string `json:"host"`
		Port int    `json:"port"`
	}

	type Config struct {
		Server  ServerConfig `json:"server"`
		Timeout int          `json:"timeout"`
	}

	schema, err := GenerateSchema(Config{})
	require.NoError(t, err)

	var decoded map[string]any
	require.NoError(t, json.Unmarshal(schema, &decoded))
	assert.Contains(t, string(schema), "server")
	assert.Contains(t, string(schema), "host")
	assert.Contains(t, string(schema), "timeout")
}

func TestConfigSchema(t *testing.T) {
	raw, err := ConfigSchema()
	require.NoError(t, err)

	var decoded struct {
		Properties map[string]json.RawMessage `json:"properties"`
	}
	require.NoError(t, json.Unmarshal(raw, &decoded))
	for _, key := range []string{"device_id", "base_topic", "loop_interval", "broker", "compiler", "storage", "bundle", "logging"} {
		assert.Contains(t, decoded.Properties, key)
	}
	assert.Contains(t, string(raw), `"mqtt"`)
	assert.Contains(t, string(raw), "memory_pages")
}
