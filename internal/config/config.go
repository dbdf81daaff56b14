// Package config manages the SDK's own configuration, distinct from any
// per-host app preferences: data directory, server endpoints, timeouts, and
// the retry/queue/event knobs threaded through to internal/queue and
// internal/events. Settings are stored as JSON at data_dir/sdk_config.json.
package config

import (
	"encoding/json"
	"os"
	"path/filepath"
	"time"

	"github.com/privchat/privchat-sdk-sub000/internal/queue"
	"github.com/privchat/privchat-sdk-sub000/internal/transport"
)

// SDKConfig holds every host-tunable setting named in §6's options table.
type SDKConfig struct {
	DataDir   string `json:"data_dir"`
	AssetsDir string `json:"assets_dir"`

	Servers []ServerEndpoint `json:"servers"`

	ConnectionTimeoutMs int64 `json:"connection_timeout_ms"`
	HeartbeatIntervalMs int64 `json:"heartbeat_interval_ms"`

	RetryConfig QueueRetryConfig `json:"retry_config"`
	QueueConfig QueueConfig      `json:"queue_config"`
	EventConfig EventConfig      `json:"event_config"`

	DebugMode bool `json:"debug_mode"`
}

// ServerEndpoint is one entry in the ordered failover list Dial tries in
// sequence (§4.4).
type ServerEndpoint struct {
	Protocol string `json:"protocol"` // "quic", "tcp", or "websocket"
	Addr     string `json:"addr"`
}

// QueueRetryConfig mirrors internal/queue.RetryConfig's JSON shape.
type QueueRetryConfig struct {
	MaxRetries    int     `json:"max_retries"`
	BaseDelayMs   int64   `json:"base_delay_ms"`
	MaxDelayMs    int64   `json:"max_delay_ms"`
	BackoffFactor float64 `json:"backoff_factor"`
}

// QueueConfig controls the send consumer pool (§5).
type QueueConfig struct {
	Workers int `json:"workers"`
}

// EventConfig controls the Event Manager's poll FIFO sizing
// (PollQueueCapacity). BusBufferSize is not read: the Event Manager's raw
// bus subscription buffer is fixed at 256 entries.
type EventConfig struct {
	BusBufferSize     int `json:"bus_buffer_size"`
	PollQueueCapacity int `json:"poll_queue_capacity"`
}

// Default returns an SDKConfig populated with sensible defaults: loopback
// QUIC, TCP and WebSocket endpoints (tried in that order), property-8's
// retry envelope, and a 4-worker send pool.
func Default() SDKConfig {
	return SDKConfig{
		DataDir:             "./data",
		ConnectionTimeoutMs: 10_000,
		HeartbeatIntervalMs: 30_000,
		Servers: []ServerEndpoint{
			{Protocol: "quic", Addr: "localhost:7443"},
			{Protocol: "tcp", Addr: "localhost:7443"},
			{Protocol: "websocket", Addr: "localhost:7443"},
		},
		RetryConfig: QueueRetryConfig{MaxRetries: 3, BaseDelayMs: 100, MaxDelayMs: 1000, BackoffFactor: 2.0},
		QueueConfig: QueueConfig{Workers: 4},
		EventConfig: EventConfig{BusBufferSize: 256, PollQueueCapacity: 1000},
	}
}

// Path returns the path to the config file under dataDir (relative when
// dataDir is relative).
func Path(dataDir string) string {
	return filepath.Join(dataDir, "sdk_config.json")
}

// Load reads the config file under dataDir. If it is missing or
// unreadable, the default config (with DataDir set to dataDir) is returned
// — never an error, matching the teacher's "config can't fail" contract.
func Load(dataDir string) SDKConfig {
	cfg := Default()
	cfg.DataDir = dataDir

	data, err := os.ReadFile(Path(dataDir))
	if err != nil {
		return cfg
	}
	loaded := cfg
	if err := json.Unmarshal(data, &loaded); err != nil {
		return cfg
	}
	return loaded
}

// Save writes cfg to disk under cfg.DataDir, creating the directory if
// needed.
func Save(cfg SDKConfig) error {
	if err := os.MkdirAll(cfg.DataDir, 0o750); err != nil {
		return err
	}
	data, err := json.MarshalIndent(cfg, "", "  ")
	if err != nil {
		return err
	}
	return os.WriteFile(Path(cfg.DataDir), data, 0o600)
}

// ToRetryConfig adapts the JSON-facing shape to internal/queue's type.
func (c QueueRetryConfig) ToRetryConfig() queue.RetryConfig {
	return queue.RetryConfig{
		MaxRetries:    c.MaxRetries,
		BaseDelayMs:   c.BaseDelayMs,
		MaxDelayMs:    c.MaxDelayMs,
		BackoffFactor: c.BackoffFactor,
	}
}

// ConnectionTimeout is ConnectionTimeoutMs as a time.Duration.
func (c SDKConfig) ConnectionTimeout() time.Duration {
	return time.Duration(c.ConnectionTimeoutMs) * time.Millisecond
}

// HeartbeatInterval is HeartbeatIntervalMs as a time.Duration.
func (c SDKConfig) HeartbeatInterval() time.Duration {
	return time.Duration(c.HeartbeatIntervalMs) * time.Millisecond
}

// Endpoints adapts Servers to internal/transport's Dial input, in the
// configured failover order.
func (c SDKConfig) Endpoints() []transport.Endpoint {
	out := make([]transport.Endpoint, 0, len(c.Servers))
	for _, s := range c.Servers {
		out = append(out, transport.Endpoint{Protocol: transport.Protocol(s.Protocol), Addr: s.Addr})
	}
	return out
}
