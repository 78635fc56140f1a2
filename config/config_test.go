package config

import (
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"

	domainerrors "github.com/reglet-dev/edge-agent/domain/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeFile(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "agent.yaml")
	require.NoError(t, os.WriteFile(path, []byte(content), 0o600))
	return path
}

func TestLoad_YAML(t *testing.T) {
	path := writeFile(t, `
device_id: dev-1
base_topic: acme
loop_interval: 250ms
broker:
  transport: p2p
  listen_addrs: ["/ip4/127.0.0.1/tcp/4001"]
compiler:
  trace_level: 1
storage:
  path: /data/storage.txt
bundle:
  path: /data/bundle.wasm
  gzip: true
  topic_buffer_length: 128
  payload_buffer_length: 2048
logging:
  format: json
  level: debug
`)

	cfg, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, "dev-1", cfg.DeviceID)
	assert.Equal(t, 250*time.Millisecond, cfg.LoopInterval)
	assert.Equal(t, TransportP2P, cfg.Broker.Transport)
	assert.Equal(t, []string{"/ip4/127.0.0.1/tcp/4001"}, cfg.Broker.ListenAddrs)
	assert.Equal(t, "dev-1", cfg.Broker.ClientID, "client id defaults to the device id")
	assert.Equal(t, 1, cfg.Compiler.TraceLevel)
	assert.Equal(t, 32768, cfg.Compiler.StackSize, "unset fields keep defaults")
	assert.True(t, cfg.Bundle.Gzip)
	assert.Equal(t, uint32(5), cfg.Bundle.MemoryPages)
	assert.Equal(t, int32(128), cfg.Bundle.TopicBufferLength)
	assert.Equal(t, int32(2048), cfg.Bundle.PayloadBufferLength)
	assert.Equal(t, "json", cfg.Logging.Format)

	assert.Equal(t, "acme/dev-1/command", cfg.Topics().Command())
	assert.True(t, cfg.CompilerOptions().Gzip)
	assert.Equal(t, 1, cfg.CompilerOptions().TraceLevel)
}

func TestLoad_EnvOverridesFile(t *testing.T) {
	path := writeFile(t, "device_id: from-file\n")
	t.Setenv("EEA_DEVICE_ID", "from-env")
	t.Setenv("EEA_BROKER_URL", "tcp://localhost:1883")
	t.Setenv("EEA_TRACE_LEVEL", "0")
	t.Setenv("EEA_BUNDLE_PATH", "/tmp/b.wasm")
	t.Setenv("EEA_LOG_LEVEL", "warn")
	t.Setenv("EEA_LOOP_INTERVAL", "2s")

	cfg, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, "from-env", cfg.DeviceID)
	assert.Equal(t, "tcp://localhost:1883", cfg.Broker.URL)
	assert.Equal(t, 0, cfg.Compiler.TraceLevel)
	assert.Equal(t, "/tmp/b.wasm", cfg.Bundle.Path)
	assert.Equal(t, "warn", cfg.Logging.Level)
	assert.Equal(t, 2*time.Second, cfg.LoopInterval)
}

func TestLoad_EnvOnly(t *testing.T) {
	t.Setenv("EEA_DEVICE_ID", "dev")
	cfg, err := Load("")
	require.NoError(t, err)
	assert.Equal(t, "dev", cfg.DeviceID)
}

func TestLoad_Errors(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "missing.yaml"))
	assert.ErrorContains(t, err, "failed to read config file")

	_, err = Load(writeFile(t, "device_id: [unterminated"))
	assert.ErrorContains(t, err, "failed to parse config file")
}

func TestValidate(t *testing.T) {
	valid := Default()
	valid.DeviceID = "dev"
	require.NoError(t, Validate(valid))

	tests := []struct {
		name   string
		mutate func(*Config)
		field  string
	}{
		{"missing device id", func(c *Config) { c.DeviceID = "" }, "DeviceID"},
		{"bad transport", func(c *Config) { c.Broker.Transport = "amqp" }, "Broker.Transport"},
		{"mqtt without url", func(c *Config) { c.Broker.URL = "" }, "Broker.URL"},
		{"trace level out of range", func(c *Config) { c.Compiler.TraceLevel = 3 }, "Compiler.TraceLevel"},
		{"zero loop interval", func(c *Config) { c.LoopInterval = 0 }, "LoopInterval"},
		{"zero memory pages", func(c *Config) { c.Bundle.MemoryPages = 0 }, "Bundle.MemoryPages"},
		{"negative payload buffer", func(c *Config) { c.Bundle.PayloadBufferLength = -1 }, "Bundle.PayloadBufferLength"},
		{"bad log format", func(c *Config) { c.Logging.Format = "xml" }, "Logging.Format"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := valid
			tt.mutate(&cfg)

			err := Validate(cfg)
			var ce *domainerrors.ConfigError
			require.True(t, errors.As(err, &ce), "got %v", err)
			assert.Equal(t, tt.field, ce.Field)
		})
	}

	p2p := valid
	p2p.Broker.Transport = TransportP2P
	p2p.Broker.URL = ""
	assert.NoError(t, Validate(p2p), "url is only required for mqtt")
}
