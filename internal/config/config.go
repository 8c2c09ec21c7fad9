// Package config decodes and validates twotier's YAML configuration
// surface, using gopkg.in/yaml.v3. Enum fields reject unrecognized values
// at decode time (UnmarshalYAML), not on first use.
package config

import (
	"fmt"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/kirky-x/twotier/internal/cerror"
	"github.com/kirky-x/twotier/internal/redact"
)

// SerializerKind selects the default wire encoding.
type SerializerKind int

const (
	SerializerJSON SerializerKind = iota
	SerializerBinary
)

func (k SerializerKind) String() string {
	if k == SerializerBinary {
		return "binary"
	}
	return "json"
}

func (k *SerializerKind) UnmarshalYAML(value *yaml.Node) error {
	var s string
	if err := value.Decode(&s); err != nil {
		return err
	}
	switch s {
	case "json":
		*k = SerializerJSON
	case "binary":
		*k = SerializerBinary
	default:
		return cerror.Wrap(cerror.ErrConfigInvalid, "config: unknown serialization kind", fmt.Errorf("%q", s))
	}
	return nil
}

// CacheType selects which tiers a service exercises.
type CacheType int

const (
	CacheTypeL1 CacheType = iota
	CacheTypeL2
	CacheTypeTwoLevel
)

func (t *CacheType) UnmarshalYAML(value *yaml.Node) error {
	var s string
	if err := value.Decode(&s); err != nil {
		return err
	}
	switch s {
	case "l1":
		*t = CacheTypeL1
	case "l2":
		*t = CacheTypeL2
	case "two-level", "two_level":
		*t = CacheTypeTwoLevel
	default:
		return cerror.Wrap(cerror.ErrConfigInvalid, "config: unknown cache_type", fmt.Errorf("%q", s))
	}
	return nil
}

// L2Mode selects the Redis topology.
type L2Mode int

const (
	L2ModeStandalone L2Mode = iota
	L2ModeSentinel
	L2ModeCluster
)

func (m *L2Mode) UnmarshalYAML(value *yaml.Node) error {
	var s string
	if err := value.Decode(&s); err != nil {
		return err
	}
	switch s {
	case "standalone":
		*m = L2ModeStandalone
	case "sentinel":
		*m = L2ModeSentinel
	case "cluster":
		*m = L2ModeCluster
	default:
		return cerror.Wrap(cerror.ErrConfigInvalid, "config: unknown l2 mode", fmt.Errorf("%q", s))
	}
	return nil
}

// Duration decodes a YAML scalar as a duration string ("30s", "50ms"),
// since yaml.v3 has no built-in notion of time.Duration. Every duration
// option in the configuration surface is expressed this way rather than as
// bare seconds/milliseconds integers.
type Duration time.Duration

func (d *Duration) UnmarshalYAML(value *yaml.Node) error {
	var s string
	if err := value.Decode(&s); err != nil {
		return err
	}
	parsed, err := time.ParseDuration(s)
	if err != nil {
		return cerror.Wrap(cerror.ErrConfigInvalid, "config: invalid duration", err)
	}
	*d = Duration(parsed)
	return nil
}

// AsDuration converts to a time.Duration for use against the rest of the
// module's APIs.
func (d Duration) AsDuration() time.Duration { return time.Duration(d) }

// Config is the root of the decoded YAML document.
type Config struct {
	Global   GlobalConfig             `yaml:"global"`
	Services map[string]ServiceConfig `yaml:"services"`
}

// GlobalConfig holds process-wide defaults.
type GlobalConfig struct {
	DefaultTTL          Duration       `yaml:"default_ttl"`
	HealthCheckInterval Duration       `yaml:"health_check_interval"`
	Serialization       SerializerKind `yaml:"serialization"`
	EnableMetrics       bool           `yaml:"enable_metrics"`
}

// ServiceConfig is one named cache instance's configuration.
type ServiceConfig struct {
	CacheType CacheType      `yaml:"cache_type"`
	TTL       Duration       `yaml:"ttl"`
	L1        L1Config       `yaml:"l1"`
	L2        L2Config       `yaml:"l2"`
	TwoLevel  TwoLevelConfig `yaml:"two_level"`
}

// L1Config configures the local tier.
type L1Config struct {
	MaxCapacity     int      `yaml:"max_capacity"`
	CleanupInterval Duration `yaml:"cleanup_interval_secs"`
}

// SentinelConfig configures Redis Sentinel HA discovery.
type SentinelConfig struct {
	MasterName string   `yaml:"master_name"`
	Nodes      []string `yaml:"nodes"`
}

// ClusterConfig configures Redis Cluster topology.
type ClusterConfig struct {
	Nodes []string `yaml:"nodes"`
}

// L2Config configures the remote tier's connection and quotas.
type L2Config struct {
	Mode              L2Mode         `yaml:"mode"`
	ConnectionString  string         `yaml:"connection_string"`
	ConnectionTimeout Duration       `yaml:"connection_timeout_ms"`
	CommandTimeout    Duration       `yaml:"command_timeout_ms"`
	Password          string         `yaml:"password"`
	EnableTLS         bool           `yaml:"enable_tls"`
	Sentinel          SentinelConfig `yaml:"sentinel"`
	Cluster           ClusterConfig  `yaml:"cluster"`
	DefaultTTL        Duration       `yaml:"default_ttl"`
	MaxKeyLength      int            `yaml:"max_key_length"`
	MaxValueSize      int            `yaml:"max_value_size"`
}

// String redacts the connection string and password, since L2Config ends up
// embedded in log lines and error messages.
func (c L2Config) String() string {
	return fmt.Sprintf(
		"L2Config{mode=%d, connection_string=%s, password=%s, enable_tls=%t}",
		c.Mode, redact.ConnectionString(c.ConnectionString), redact.Value(c.Password, 0), c.EnableTLS,
	)
}

// GoString matches String, so %#v in a log or panic never leaks secrets.
func (c L2Config) GoString() string { return c.String() }

// BloomFilterConfig tunes the optional existence-check prefilter in front of
// L2 reads.
type BloomFilterConfig struct {
	Enabled           bool    `yaml:"enabled"`
	ExpectedItems     uint64  `yaml:"expected_items"`
	FalsePositiveRate float64 `yaml:"false_positive_rate"`
}

// WarmupConfig tunes the startup loader.
type WarmupConfig struct {
	Enabled    bool     `yaml:"enabled"`
	Keys       []string `yaml:"keys"`
	Concurrency int     `yaml:"concurrency"`
}

// TwoLevelConfig configures two-tier-specific behavior.
type TwoLevelConfig struct {
	PromoteOnHit       bool              `yaml:"promote_on_hit"`
	EnableBatchWrite   bool              `yaml:"enable_batch_write"`
	BatchSize          int               `yaml:"batch_size"`
	BatchInterval      Duration          `yaml:"batch_interval_ms"`
	InvalidationChannel string           `yaml:"invalidation_channel"`
	BloomFilter        BloomFilterConfig `yaml:"bloom_filter"`
	Warmup             WarmupConfig      `yaml:"warmup"`
}

// Load decodes a YAML document into a validated Config.
func Load(data []byte) (*Config, error) {
	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, cerror.Wrap(cerror.ErrConfigInvalid, "config: decode", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// Validate checks cross-field invariants the yaml tags alone can't express:
// L1 TTL must not outlive L2 TTL (a promoted entry must never survive in L1
// longer than its authoritative copy would on L2), and every referenced
// service must carry the sub-config its cache_type requires.
func (c *Config) Validate() error {
	for name, svc := range c.Services {
		if svc.TTL > 0 && svc.L2.DefaultTTL > 0 && svc.TTL > svc.L2.DefaultTTL {
			return configErr("service %q: ttl exceeds l2 default_ttl", name)
		}
		switch svc.CacheType {
		case CacheTypeL2, CacheTypeTwoLevel:
			if svc.L2.ConnectionString == "" {
				return configErr("service %q: l2.connection_string required", name)
			}
			if svc.L2.Mode == L2ModeSentinel && svc.L2.Sentinel.MasterName == "" {
				return configErr("service %q: sentinel.master_name required", name)
			}
			if svc.L2.Mode == L2ModeCluster && len(svc.L2.Cluster.Nodes) == 0 {
				return configErr("service %q: cluster.nodes required", name)
			}
		}
	}
	return nil
}

func configErr(format string, args ...any) error {
	return fmt.Errorf("twotier: %s: %w", fmt.Sprintf(format, args...), cerror.ErrConfigInvalid)
}

// InvalidationChannel returns the service's configured channel, or a
// derived default.
func (svc ServiceConfig) InvalidationChannel(service string) string {
	if svc.TwoLevel.InvalidationChannel != "" {
		return svc.TwoLevel.InvalidationChannel
	}
	return fmt.Sprintf("cache:invalidate:%s", service)
}

// PrefixKey returns the effective remote key for a user key under service,
// joined as "<service>:<user-key>".
func PrefixKey(service, userKey string) string {
	return service + ":" + userKey
}
