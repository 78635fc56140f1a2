// Package config loads the agent configuration: defaults, then an optional
// YAML file, then EEA_* environment variables, then validation.
package config

import (
	stdErrors "errors"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/caarlos0/env/v11"
	"github.com/go-playground/validator/v10"
	"github.com/reglet-dev/edge-agent/domain/entities"
	"github.com/reglet-dev/edge-agent/domain/errors"
	"github.com/reglet-dev/edge-agent/log"
	"gopkg.in/yaml.v3"
)

// Broker transports.
const (
	TransportMQTT   = "mqtt"
	TransportP2P    = "p2p"
	TransportMemory = "memory"
)

// Config is the complete agent configuration.
type Config struct {
	DeviceID     string        `yaml:"device_id" env:"EEA_DEVICE_ID" validate:"required" json:"device_id" jsonschema:"description=Device id used in topics and returned by eea_get_device_id"`
	BaseTopic    string        `yaml:"base_topic" env:"EEA_BASE_TOPIC" validate:"required" json:"base_topic"`
	Version      string        `yaml:"version" env:"EEA_VERSION" validate:"required" json:"version"`
	LoopInterval time.Duration `yaml:"loop_interval" env:"EEA_LOOP_INTERVAL" validate:"gt=0" json:"loop_interval" jsonschema:"description=Pause between ticks (nanoseconds in JSON; Go duration string in YAML)"`
	Broker       BrokerConfig  `yaml:"broker" envPrefix:"EEA_BROKER_" json:"broker"`
	Compiler     Compiler      `yaml:"compiler" envPrefix:"EEA_" json:"compiler"`
	Storage      Storage       `yaml:"storage" envPrefix:"EEA_STORAGE_" json:"storage"`
	Bundle       Bundle        `yaml:"bundle" envPrefix:"EEA_BUNDLE_" json:"bundle"`
	Logging      log.Config    `yaml:"logging" envPrefix:"EEA_LOG_" json:"logging"`
}

// BrokerConfig selects and configures the broker transport.
type BrokerConfig struct {
	Transport   string        `yaml:"transport" env:"TRANSPORT" validate:"oneof=mqtt p2p memory" json:"transport" jsonschema:"enum=mqtt,enum=p2p,enum=memory"`
	URL         string        `yaml:"url" env:"URL" validate:"required_if=Transport mqtt" json:"url,omitempty"`
	ClientID    string        `yaml:"client_id" env:"CLIENT_ID" json:"client_id,omitempty"`
	Username    string        `yaml:"username" env:"USERNAME" json:"username,omitempty"`
	Password    string        `yaml:"password" env:"PASSWORD" json:"password,omitempty"`
	KeepAlive   time.Duration `yaml:"keep_alive" env:"KEEP_ALIVE" validate:"gte=0" json:"keep_alive,omitempty"`
	ListenAddrs []string      `yaml:"listen_addrs" env:"LISTEN_ADDRS" json:"listen_addrs,omitempty"`
	Bootstrap   []string      `yaml:"bootstrap" env:"BOOTSTRAP" json:"bootstrap,omitempty"`
	Topic       string        `yaml:"topic" env:"GOSSIP_TOPIC" json:"topic,omitempty" jsonschema:"description=Gossip topic for the p2p transport"`
}

// Compiler holds the values pushed into bundles and announced in hello as
// compilerOptions.
type Compiler struct {
	TraceLevel          int  `yaml:"trace_level" env:"TRACE_LEVEL" validate:"gte=0,lte=2" json:"trace_level"`
	StackSize           int  `yaml:"stack_size" env:"STACK_SIZE" validate:"gt=0" json:"stack_size"`
	ExportMemory        bool `yaml:"export_memory" env:"EXPORT_MEMORY" json:"export_memory"`
	DisableDebugMessage bool `yaml:"disable_debug_message" env:"DISABLE_DEBUG_MESSAGE" json:"disable_debug_message"`
	DebugSymbols        bool `yaml:"debug_symbols" env:"DEBUG_SYMBOLS" json:"debug_symbols"`
}

// Storage configures the bundle's persistent storage file.
type Storage struct {
	Path     string `yaml:"path" env:"PATH" validate:"required" json:"path"`
	Size     int32  `yaml:"size" env:"SIZE" validate:"gte=0" json:"size"`
	Interval int32  `yaml:"interval" env:"INTERVAL" validate:"gte=0" json:"interval"`
}

// Bundle configures where bundles are stored and how they are loaded.
type Bundle struct {
	Path        string `yaml:"path" env:"PATH" validate:"required" json:"path"`
	Gzip        bool   `yaml:"gzip" env:"GZIP" json:"gzip"`
	MemoryPages uint32 `yaml:"memory_pages" env:"MEMORY_PAGES" validate:"gt=0" json:"memory_pages"`

	// Message buffer sizes announced to bundles that ask for them. Zero
	// leaves the bundle's own sizes in place.
	TopicBufferLength   int32 `yaml:"topic_buffer_length" env:"TOPIC_BUFFER_LENGTH" validate:"gte=0" json:"topic_buffer_length"`
	PayloadBufferLength int32 `yaml:"payload_buffer_length" env:"PAYLOAD_BUFFER_LENGTH" validate:"gte=0" json:"payload_buffer_length"`
}

// Default returns the built-in configuration.
func Default() Config {
	return Config{
		BaseTopic:    "losant",
		Version:      "1.0.0",
		LoopInterval: time.Second,
		Broker: BrokerConfig{
			Transport: TransportMQTT,
			URL:       "tcp://broker.losant.com:1883",
			KeepAlive: 30 * time.Second,
		},
		Compiler: Compiler{
			TraceLevel: 2,
			StackSize:  32768,
		},
		Storage: Storage{
			Path:     "storage.txt",
			Size:     4096,
			Interval: 30,
		},
		Bundle: Bundle{
			Path:        "bundle.wasm",
			MemoryPages: 5,
		},
		Logging: log.Config{Format: log.FormatText, Level: "info"},
	}
}

// validate is a package-level singleton; validators cache struct metadata.
var validate = validator.New()

// Load builds the configuration. path may be empty, in which case only
// defaults and the environment are used.
func Load(path string) (Config, error) {
	cfg := Default()

	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return Config{}, fmt.Errorf("failed to read config file: %w", err)
		}
		if err := yaml.Unmarshal(data, &cfg); err != nil {
			return Config{}, fmt.Errorf("failed to parse config file %s: %w", path, err)
		}
	}

	if err := env.Parse(&cfg); err != nil {
		return Config{}, fmt.Errorf("parse env: %w", err)
	}

	if cfg.Broker.ClientID == "" {
		cfg.Broker.ClientID = cfg.DeviceID
	}

	if err := Validate(cfg); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

// Validate checks cfg against its validation tags. The first failing field is
// reported as an *errors.ConfigError.
func Validate(cfg Config) error {
	err := validate.Struct(cfg)
	if err == nil {
		return nil
	}
	var verrs validator.ValidationErrors
	if stdErrors.As(err, &verrs) && len(verrs) > 0 {
		fe := verrs[0]
		return &errors.ConfigError{
			Field: strings.TrimPrefix(fe.Namespace(), "Config."),
			Err:   fmt.Errorf("failed on '%s' rule", fe.Tag()),
		}
	}
	return &errors.ConfigError{Err: err}
}

// Topics returns the topic layout for this device.
func (c Config) Topics() entities.Topics {
	return entities.Topics{Base: c.BaseTopic, DeviceID: c.DeviceID}
}

// CompilerOptions returns the options announced in hello messages.
func (c Config) CompilerOptions() entities.CompilerOptions {
	return entities.CompilerOptions{
		ExportMemory:        c.Compiler.ExportMemory,
		DisableDebugMessage: c.Compiler.DisableDebugMessage,
		TraceLevel:          c.Compiler.TraceLevel,
		DebugSymbols:        c.Compiler.DebugSymbols,
		StackSize:           c.Compiler.StackSize,
		Gzip:                c.Bundle.Gzip,
	}
}
