package config

import "time"

// Config represents the main configuration structure
type Config struct {
	StoreURL           string     `json:"storeUrl"`
	RealtimeURL        string     `json:"realtimeUrl"`
	APIKey             string     `json:"apiKey"`
	LogLevel           string     `json:"logLevel"`
	MetricsPort        int        `json:"metricsPort"`
	StatsLogInterval   int        `json:"statsLogInterval"`   // ms - interval for logging access-layer statistics
	RequestTimeout     int        `json:"requestTimeout"`     // ms - HTTP timeout for store requests
	ReconnectInterval  int        `json:"reconnectInterval"`  // ms - interval between realtime reconnection attempts
	PingInterval       int        `json:"pingInterval"`       // ms - realtime WebSocket keepalive interval
	MaxConcurrent      int        `json:"maxConcurrent"`      // simultaneous in-flight store calls
	BatchWindow        int        `json:"batchWindow"`        // ms - coalescing window, armed by the first call
	SlowQueryThreshold int        `json:"slowQueryThreshold"` // ms - durations above this are flagged slow
	SampleWindow       int        `json:"sampleWindow"`       // rolling sample count kept per traced operation
	QueryRegistrySize  int        `json:"queryRegistrySize"`  // max tracked query states
	TTL                *TTLConfig `json:"ttl,omitempty"`
}

// TTLConfig holds the cache TTL tiers in milliseconds
type TTLConfig struct {
	Short  int `json:"short"`
	Medium int `json:"medium"`
	Long   int `json:"long"`
	Static int `json:"static"`
}

// Default values
const (
	DefaultLogLevel           = "info"
	DefaultMetricsPort        = 9090
	DefaultStatsLogInterval   = 60000 // ms
	DefaultRequestTimeout     = 5000  // ms
	DefaultReconnectInterval  = 5000  // ms
	DefaultPingInterval       = 30000 // ms
	DefaultMaxConcurrent      = 6
	DefaultBatchWindow        = 10   // ms
	DefaultSlowQueryThreshold = 1000 // ms
	DefaultSampleWindow       = 100
	DefaultQueryRegistrySize  = 1024
	DefaultTTLShort           = 30000    // ms - 30s, volatile compliance data
	DefaultTTLMedium          = 300000   // ms - 5m, pilot profiles
	DefaultTTLLong            = 3600000  // ms - 1h, fleet rosters
	DefaultTTLStatic          = 86400000 // ms - 24h, check-type reference data
)

// GetStatsLogIntervalDuration returns stats log interval as time.Duration
func (c *Config) GetStatsLogIntervalDuration() time.Duration {
	return time.Duration(c.StatsLogInterval) * time.Millisecond
}

// GetRequestTimeoutDuration returns request timeout as time.Duration
func (c *Config) GetRequestTimeoutDuration() time.Duration {
	return time.Duration(c.RequestTimeout) * time.Millisecond
}

// GetReconnectIntervalDuration returns realtime reconnect interval as time.Duration
func (c *Config) GetReconnectIntervalDuration() time.Duration {
	return time.Duration(c.ReconnectInterval) * time.Millisecond
}

// GetPingIntervalDuration returns realtime ping interval as time.Duration
func (c *Config) GetPingIntervalDuration() time.Duration {
	return time.Duration(c.PingInterval) * time.Millisecond
}

// GetBatchWindowDuration returns the coalescing window as time.Duration
func (c *Config) GetBatchWindowDuration() time.Duration {
	return time.Duration(c.BatchWindow) * time.Millisecond
}

// GetSlowQueryThresholdDuration returns the slow-query threshold as time.Duration
func (c *Config) GetSlowQueryThresholdDuration() time.Duration {
	return time.Duration(c.SlowQueryThreshold) * time.Millisecond
}

// GetShortDuration returns the short TTL tier as time.Duration
func (t *TTLConfig) GetShortDuration() time.Duration {
	return time.Duration(t.Short) * time.Millisecond
}

// GetMediumDuration returns the medium TTL tier as time.Duration
func (t *TTLConfig) GetMediumDuration() time.Duration {
	return time.Duration(t.Medium) * time.Millisecond
}

// GetLongDuration returns the long TTL tier as time.Duration
func (t *TTLConfig) GetLongDuration() time.Duration {
	return time.Duration(t.Long) * time.Millisecond
}

// GetStaticDuration returns the static TTL tier as time.Duration
func (t *TTLConfig) GetStaticDuration() time.Duration {
	return time.Duration(t.Static) * time.Millisecond
}

// HasRealtime returns true if a realtime change-feed endpoint is configured
func (c *Config) HasRealtime() bool {
	return c.RealtimeURL != ""
}
