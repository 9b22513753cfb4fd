package config

import (
	"errors"
	"time"

	"github.com/spf13/viper"
)

// Defaults shared by both peers. Sender and receiver builds must agree on the
// ports, so they are only overridden deliberately through config or env.
const (
	DefaultPort          uint16 = 8370 // concat('S', 'F')
	DefaultSignalingPort uint16 = 8369
	DefaultBroadcastPort uint16 = 38369
	DefaultChunkSize            = 4 * 1024 * 1024
	DefaultSignalDelay          = 2 * time.Second
	DefaultDiscoveryTTL         = 1
)

var (
	ErrInvalidPort          = errors.New("transfer port must be set")
	ErrInvalidSignalingPort = errors.New("discovery signaling port must be set")
	ErrInvalidBroadcastPort = errors.New("discovery broadcast port must be set")
	ErrPortCollision        = errors.New("discovery signaling and broadcast ports must differ")
	ErrInvalidChunkSize     = errors.New("chunk size must be greater than 0")
	ErrInvalidSignalDelay   = errors.New("signal delay must be greater than 0")
	ErrInvalidTimeout       = errors.New("discovery timeout must not be negative")
	ErrInvalidDialAttempts  = errors.New("dial attempts must be at least 1")
	ErrInvalidLogLevel      = errors.New("log level must be one of debug, info, warn, error")
	ErrInvalidLogFormat     = errors.New("log format must be console or json")
)

// Config holds all application configuration
type Config struct {
	Transfer  TransferConfig  `mapstructure:"transfer"`
	Discovery DiscoveryConfig `mapstructure:"discovery"`
	Dial      DialConfig      `mapstructure:"dial"`
	Log       LogConfig       `mapstructure:"log"`
	Metrics   MetricsConfig   `mapstructure:"metrics"`
}

// TransferConfig holds the stream protocol settings
type TransferConfig struct {
	Port      uint16 `mapstructure:"port"`
	ChunkSize int    `mapstructure:"chunk_size"`
}

// DiscoveryConfig holds the UDP broadcast/listen settings
type DiscoveryConfig struct {
	SignalingPort uint16        `mapstructure:"signaling_port"`
	BroadcastPort uint16        `mapstructure:"broadcast_port"`
	SignalDelay   time.Duration `mapstructure:"signal_delay"`
	Timeout       time.Duration `mapstructure:"timeout"` // sender wait, 0 waits forever
	TTL           int           `mapstructure:"ttl"`
}

// DialConfig controls retries of a direct-mode connection attempt
type DialConfig struct {
	Attempts    int           `mapstructure:"attempts"`
	InitialWait time.Duration `mapstructure:"initial_wait"`
}

// LogConfig selects the zap logger flavour
type LogConfig struct {
	Level  string `mapstructure:"level"`
	Format string `mapstructure:"format"`
}

// MetricsConfig enables the prometheus endpoint when Addr is non-empty
type MetricsConfig struct {
	Addr string `mapstructure:"addr"`
}

// NewDefaultConfig returns a configuration with sensible defaults
func NewDefaultConfig() *Config {
	return &Config{
		Transfer: TransferConfig{
			Port:      DefaultPort,
			ChunkSize: DefaultChunkSize,
		},
		Discovery: DiscoveryConfig{
			SignalingPort: DefaultSignalingPort,
			BroadcastPort: DefaultBroadcastPort,
			SignalDelay:   DefaultSignalDelay,
			Timeout:       time.Minute,
			TTL:           DefaultDiscoveryTTL,
		},
		Dial: DialConfig{
			Attempts:    3,
			InitialWait: 500 * time.Millisecond,
		},
		Log: LogConfig{
			Level:  "info",
			Format: "console",
		},
	}
}

// SetDefaults registers every default on v so that env variables and config
// files can override individual keys.
func SetDefaults(v *viper.Viper) {
	d := NewDefaultConfig()
	v.SetDefault("transfer.port", d.Transfer.Port)
	v.SetDefault("transfer.chunk_size", d.Transfer.ChunkSize)
	v.SetDefault("discovery.signaling_port", d.Discovery.SignalingPort)
	v.SetDefault("discovery.broadcast_port", d.Discovery.BroadcastPort)
	v.SetDefault("discovery.signal_delay", d.Discovery.SignalDelay)
	v.SetDefault("discovery.timeout", d.Discovery.Timeout)
	v.SetDefault("discovery.ttl", d.Discovery.TTL)
	v.SetDefault("dial.attempts", d.Dial.Attempts)
	v.SetDefault("dial.initial_wait", d.Dial.InitialWait)
	v.SetDefault("log.level", d.Log.Level)
	v.SetDefault("log.format", d.Log.Format)
	v.SetDefault("metrics.addr", d.Metrics.Addr)
}

// Load builds a Config from v, falling back to defaults for unset keys
func Load(v *viper.Viper) (*Config, error) {
	SetDefaults(v)

	cfg := &Config{
		Transfer: TransferConfig{
			Port:      v.GetUint16("transfer.port"),
			ChunkSize: v.GetInt("transfer.chunk_size"),
		},
		Discovery: DiscoveryConfig{
			SignalingPort: v.GetUint16("discovery.signaling_port"),
			BroadcastPort: v.GetUint16("discovery.broadcast_port"),
			SignalDelay:   v.GetDuration("discovery.signal_delay"),
			Timeout:       v.GetDuration("discovery.timeout"),
			TTL:           v.GetInt("discovery.ttl"),
		},
		Dial: DialConfig{
			Attempts:    v.GetInt("dial.attempts"),
			InitialWait: v.GetDuration("dial.initial_wait"),
		},
		Log: LogConfig{
			Level:  v.GetString("log.level"),
			Format: v.GetString("log.format"),
		},
		Metrics: MetricsConfig{
			Addr: v.GetString("metrics.addr"),
		},
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Validate ensures the configuration is valid
func (c *Config) Validate() error {
	if c.Transfer.Port == 0 {
		return ErrInvalidPort
	}
	if c.Transfer.ChunkSize <= 0 {
		return ErrInvalidChunkSize
	}
	if c.Discovery.SignalingPort == 0 {
		return ErrInvalidSignalingPort
	}
	if c.Discovery.BroadcastPort == 0 {
		return ErrInvalidBroadcastPort
	}
	if c.Discovery.SignalingPort == c.Discovery.BroadcastPort {
		return ErrPortCollision
	}
	if c.Discovery.SignalDelay <= 0 {
		return ErrInvalidSignalDelay
	}
	if c.Discovery.Timeout < 0 {
		return ErrInvalidTimeout
	}
	if c.Dial.Attempts < 1 {
		return ErrInvalidDialAttempts
	}
	switch c.Log.Level {
	case "debug", "info", "warn", "error":
	default:
		return ErrInvalidLogLevel
	}
	switch c.Log.Format {
	case "console", "json":
	default:
		return ErrInvalidLogFormat
	}
	return nil
}
