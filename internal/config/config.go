// Package config loads the TOML configuration files for the relay and the
// chat client.
package config

import (
	"errors"
	"fmt"
	"os"
	"time"

	"github.com/BurntSushi/toml"

	"sealrelay/internal/crypto"
	"sealrelay/internal/logging"
	"sealrelay/internal/protocol/wire"
)

const (
	defaultListen        = ":8080"
	defaultMetricsPath   = "/metrics"
	defaultSendBuffer    = 256
	defaultMaxFrameBytes = 64 << 10
	defaultWriteTimeout  = 10 * time.Second
	defaultRelayURL      = "ws://127.0.0.1:8080/ws"
	defaultAuditLines    = 200
)

// Relay is the configuration of the relay server.
type Relay struct {
	Listen      string
	LogLevel    string
	LogFile     string
	MetricsPath string

	// SendBuffer bounds each connection's outbound queue. Frames that do not
	// fit are dropped.
	SendBuffer    int
	MaxFrameBytes int64
	WriteTimeout  Duration

	// RateLimit is the sustained inbound frames per second allowed per
	// connection; 0 disables limiting.
	RateLimit float64
	RateBurst int

	// AllowedOrigins lists acceptable Origin headers for the WebSocket
	// upgrade. Empty allows any origin.
	AllowedOrigins []string
}

// Client is the configuration of the chat client.
type Client struct {
	RelayURL     string
	DisplayName  string
	Cipher       string
	Codec        string
	LogLevel     string
	LogFile      string
	IdentityFile string
	AuditLines   int
}

// Duration decodes TOML strings such as "10s".
type Duration struct {
	time.Duration
}

func (d *Duration) UnmarshalText(text []byte) error {
	v, err := time.ParseDuration(string(text))
	if err != nil {
		return err
	}
	d.Duration = v
	return nil
}

// DefaultRelay returns a relay configuration with every default applied.
func DefaultRelay() *Relay {
	cfg := new(Relay)
	cfg.applyDefaults()
	return cfg
}

// DefaultClient returns a client configuration with every default applied.
func DefaultClient() *Client {
	cfg := new(Client)
	cfg.applyDefaults()
	return cfg
}

func (cfg *Relay) applyDefaults() {
	if cfg.Listen == "" {
		cfg.Listen = defaultListen
	}
	if cfg.MetricsPath == "" {
		cfg.MetricsPath = defaultMetricsPath
	}
	if cfg.SendBuffer == 0 {
		cfg.SendBuffer = defaultSendBuffer
	}
	if cfg.MaxFrameBytes == 0 {
		cfg.MaxFrameBytes = defaultMaxFrameBytes
	}
	if cfg.WriteTimeout.Duration == 0 {
		cfg.WriteTimeout.Duration = defaultWriteTimeout
	}
}

func (cfg *Client) applyDefaults() {
	if cfg.RelayURL == "" {
		cfg.RelayURL = defaultRelayURL
	}
	if cfg.AuditLines == 0 {
		cfg.AuditLines = defaultAuditLines
	}
}

// Validate returns nil if the config is valid and otherwise an error is
// returned.
func (cfg *Relay) Validate() error {
	if cfg.Listen == "" {
		return errors.New("config: Listen is not set")
	}
	if cfg.SendBuffer < 1 {
		return fmt.Errorf("config: SendBuffer must be positive, got %d", cfg.SendBuffer)
	}
	if cfg.MaxFrameBytes < 1 {
		return fmt.Errorf("config: MaxFrameBytes must be positive, got %d", cfg.MaxFrameBytes)
	}
	if cfg.RateLimit < 0 {
		return errors.New("config: RateLimit must not be negative")
	}
	if cfg.RateLimit > 0 && cfg.RateBurst < 1 {
		return errors.New("config: RateBurst must be positive when RateLimit is set")
	}
	if _, err := logging.ParseLevel(cfg.LogLevel); err != nil {
		return fmt.Errorf("config: %w", err)
	}
	return nil
}

// Validate returns nil if the config is valid and otherwise an error is
// returned.
func (cfg *Client) Validate() error {
	if cfg.RelayURL == "" {
		return errors.New("config: RelayURL is not set")
	}
	if _, err := crypto.ParseSuite(cfg.Cipher); err != nil {
		return fmt.Errorf("config: %w", err)
	}
	if _, err := wire.ParseCodec(cfg.Codec); err != nil {
		return fmt.Errorf("config: %w", err)
	}
	if _, err := logging.ParseLevel(cfg.LogLevel); err != nil {
		return fmt.Errorf("config: %w", err)
	}
	if cfg.AuditLines < 0 {
		return errors.New("config: AuditLines must not be negative")
	}
	return nil
}

// decode parses b into cfg, rejecting keys the struct does not know.
func decode(b []byte, cfg any) error {
	md, err := toml.Decode(string(b), cfg)
	if err != nil {
		return err
	}
	if undecoded := md.Undecoded(); len(undecoded) != 0 {
		return fmt.Errorf("config: Undecoded keys in config file: %v", undecoded)
	}
	return nil
}

// LoadRelay parses and validates the provided buffer b as a relay config
// file body and returns the Config.
func LoadRelay(b []byte) (*Relay, error) {
	cfg := new(Relay)
	if err := decode(b, cfg); err != nil {
		return nil, err
	}
	cfg.applyDefaults()
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// LoadClient parses and validates the provided buffer b as a client config
// file body and returns the Config.
func LoadClient(b []byte) (*Client, error) {
	cfg := new(Client)
	if err := decode(b, cfg); err != nil {
		return nil, err
	}
	cfg.applyDefaults()
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// LoadRelayFile loads, parses and validates the provided file. An empty path
// returns the defaults.
func LoadRelayFile(f string) (*Relay, error) {
	if f == "" {
		return DefaultRelay(), nil
	}
	b, err := os.ReadFile(f)
	if err != nil {
		return nil, err
	}
	return LoadRelay(b)
}

// LoadClientFile loads, parses and validates the provided file. An empty
// path returns the defaults.
func LoadClientFile(f string) (*Client, error) {
	if f == "" {
		return DefaultClient(), nil
	}
	b, err := os.ReadFile(f)
	if err != nil {
		return nil, err
	}
	return LoadClient(b)
}
