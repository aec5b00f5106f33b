// Package config loads the client settings from defaults, an optional YAML
// file and UNIVERSE_* environment variables.
package config

import (
	"errors"
	"fmt"
	"io"
	"time"

	"github.com/YaganovValera/universe-client/common/backoff"
	"github.com/YaganovValera/universe-client/common/configloader"
	"github.com/YaganovValera/universe-client/common/httpserver"
	producer "github.com/YaganovValera/universe-client/common/kafka/producer"
	"github.com/YaganovValera/universe-client/common/logger"
	"github.com/YaganovValera/universe-client/common/telemetry"
	"github.com/YaganovValera/universe-client/internal/fetch"
	"github.com/YaganovValera/universe-client/internal/protocol/command"
	"github.com/YaganovValera/universe-client/internal/schema"
	"github.com/YaganovValera/universe-client/pkg/wsconn"
)

// EnvPrefix prefixes every environment override, e.g. UNIVERSE_GATEWAY_TOKEN.
const EnvPrefix = "UNIVERSE"

// Config is the whole client configuration.
type Config struct {
	ServiceName    string          `mapstructure:"service_name"`
	ServiceVersion string          `mapstructure:"service_version"`
	Logging        logger.Config   `mapstructure:"logging"`
	Telemetry      TelemetryConfig `mapstructure:"telemetry"`
	HTTP           HTTPConfig      `mapstructure:"http"`
	Gateway        GatewayConfig   `mapstructure:"gateway"`
	Protocol       ProtocolConfig  `mapstructure:"protocol"`
	Fetch          FetchConfig     `mapstructure:"fetch"`
	Kafka          KafkaConfig     `mapstructure:"kafka"`
}

// TelemetryConfig enables the OTLP trace exporter.
type TelemetryConfig struct {
	Enabled      bool          `mapstructure:"enabled"`
	OTLPEndpoint string        `mapstructure:"otlp_endpoint"`
	Insecure     bool          `mapstructure:"insecure"`
	Timeout      time.Duration `mapstructure:"timeout"`
	SamplerRatio float64       `mapstructure:"sampler_ratio"`
}

// HTTPConfig holds the metrics and probes server settings.
type HTTPConfig struct {
	Enabled         bool          `mapstructure:"enabled"`
	Port            int           `mapstructure:"port"`
	ReadTimeout     time.Duration `mapstructure:"read_timeout"`
	WriteTimeout    time.Duration `mapstructure:"write_timeout"`
	IdleTimeout     time.Duration `mapstructure:"idle_timeout"`
	ShutdownTimeout time.Duration `mapstructure:"shutdown_timeout"`
	MetricsPath     string        `mapstructure:"metrics_path"`
	HealthzPath     string        `mapstructure:"healthz_path"`
	ReadyzPath      string        `mapstructure:"readyz_path"`
}

// GatewayConfig is the websocket endpoint plus the session token.
type GatewayConfig struct {
	wsconn.Config `mapstructure:",squash"`
	Token         string `mapstructure:"token"`
}

// ProtocolConfig holds the deployment-specific protocol parameters.
type ProtocolConfig struct {
	ProtocolVersion int32         `mapstructure:"protocol_version"`
	MarketMetaID    int32         `mapstructure:"market_meta_id"`
	Commands        command.Table `mapstructure:"commands"`
}

// FetchConfig lists the queries issued once the universe is known.
// LogRecords adds a sink that logs every mapped record as JSON.
type FetchConfig struct {
	DisplayLimit int           `mapstructure:"display_limit"`
	LogRecords   bool          `mapstructure:"log_records"`
	Queries      []QueryConfig `mapstructure:"queries"`
}

// QueryConfig is one fetch query as written in YAML.
// A nil Revision asks for the latest one.
type QueryConfig struct {
	Mode          string    `mapstructure:"mode"`
	Namespace     string    `mapstructure:"namespace"`
	QualifiedName string    `mapstructure:"qualified_name"`
	Market        string    `mapstructure:"market"`
	Code          string    `mapstructure:"code"`
	Granularity   int32     `mapstructure:"granularity"`
	Revision      *int64    `mapstructure:"revision"`
	From          time.Time `mapstructure:"from"`
	To            time.Time `mapstructure:"to"`
}

// KafkaConfig enables the Kafka record sink.
type KafkaConfig struct {
	Enabled        bool           `mapstructure:"enabled"`
	Brokers        []string       `mapstructure:"brokers"`
	Topic          string         `mapstructure:"topic"`
	RequiredAcks   string         `mapstructure:"required_acks"`
	Timeout        time.Duration  `mapstructure:"timeout"`
	Compression    string         `mapstructure:"compression"`
	FlushFrequency time.Duration  `mapstructure:"flush_frequency"`
	FlushMessages  int            `mapstructure:"flush_messages"`
	Backoff        backoff.Config `mapstructure:"backoff"`
}

func registerDefaults() {
	configloader.RegisterDefaults("service_name", "universe-client")
	configloader.RegisterDefaults("service_version", "v1.0.0")

	configloader.RegisterDefaults("logging.level", "info")
	configloader.RegisterDefaults("logging.dev_mode", false)

	configloader.RegisterDefaults("telemetry.enabled", false)
	configloader.RegisterDefaults("telemetry.otlp_endpoint", "otel-collector:4317")
	configloader.RegisterDefaults("telemetry.insecure", true)
	configloader.RegisterDefaults("telemetry.timeout", "5s")
	configloader.RegisterDefaults("telemetry.sampler_ratio", 1.0)

	configloader.RegisterDefaults("http.enabled", true)
	configloader.RegisterDefaults("http.port", 8090)
	configloader.RegisterDefaults("http.read_timeout", "10s")
	configloader.RegisterDefaults("http.write_timeout", "15s")
	configloader.RegisterDefaults("http.idle_timeout", "60s")
	configloader.RegisterDefaults("http.shutdown_timeout", "5s")
	configloader.RegisterDefaults("http.metrics_path", "/metrics")
	configloader.RegisterDefaults("http.healthz_path", "/healthz")
	configloader.RegisterDefaults("http.readyz_path", "/readyz")

	configloader.RegisterDefaults("gateway.url", "")
	configloader.RegisterDefaults("gateway.token", "")
	configloader.RegisterDefaults("gateway.dial_timeout", "10s")
	configloader.RegisterDefaults("gateway.read_timeout", "60s")
	configloader.RegisterDefaults("gateway.write_timeout", "5s")
	configloader.RegisterDefaults("gateway.ping_interval", "0s")
	configloader.RegisterDefaults("gateway.buffer_size", 256)
	configloader.RegisterDefaults("gateway.compression", false)
	configloader.RegisterDefaults("gateway.backoff.initial_interval", "1s")
	configloader.RegisterDefaults("gateway.backoff.max_interval", "30s")
	configloader.RegisterDefaults("gateway.backoff.max_elapsed_time", "2m")

	configloader.RegisterDefaults("protocol.protocol_version", 1)
	configloader.RegisterDefaults("protocol.market_meta_id", 0)
	for key, id := range command.Default().Keys() {
		configloader.RegisterDefaults("protocol.commands."+key, id)
	}

	configloader.RegisterDefaults("fetch.display_limit", 20)
	configloader.RegisterDefaults("fetch.log_records", false)

	configloader.RegisterDefaults("kafka.enabled", false)
	configloader.RegisterDefaults("kafka.brokers", []string{"kafka:9092"})
	configloader.RegisterDefaults("kafka.topic", "universe.records")
	configloader.RegisterDefaults("kafka.required_acks", "all")
	configloader.RegisterDefaults("kafka.timeout", "15s")
	configloader.RegisterDefaults("kafka.compression", "none")
	configloader.RegisterDefaults("kafka.flush_frequency", "0s")
	configloader.RegisterDefaults("kafka.flush_messages", 0)
}

// Load reads the configuration. An empty path uses defaults and env only.
func Load(path string) (*Config, error) {
	registerDefaults()
	var cfg Config
	if err := configloader.Load(path, EnvPrefix, &cfg); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// Validate checks the fields the client cannot run without.
func (c *Config) Validate() error {
	var errs []error
	if c.ServiceName == "" {
		errs = append(errs, errors.New("service_name is required"))
	}
	if c.Gateway.URL == "" {
		errs = append(errs, errors.New("gateway.url is required"))
	}
	if c.Gateway.Token == "" {
		errs = append(errs, errors.New("gateway.token is required"))
	}
	if c.Protocol.ProtocolVersion <= 0 {
		errs = append(errs, fmt.Errorf("protocol.protocol_version must be positive, got %d", c.Protocol.ProtocolVersion))
	}
	if err := c.Protocol.Commands.Validate(); err != nil {
		errs = append(errs, err)
	}
	if c.Fetch.DisplayLimit < 0 {
		errs = append(errs, errors.New("fetch.display_limit must not be negative"))
	}
	if _, err := c.Queries(); err != nil {
		errs = append(errs, err)
	}
	if c.HTTP.Enabled && (c.HTTP.Port <= 0 || c.HTTP.Port > 65535) {
		errs = append(errs, fmt.Errorf("http.port %d out of range", c.HTTP.Port))
	}
	if c.Telemetry.Enabled && c.Telemetry.OTLPEndpoint == "" {
		errs = append(errs, errors.New("telemetry.otlp_endpoint is required when telemetry is enabled"))
	}
	if c.Telemetry.SamplerRatio < 0 || c.Telemetry.SamplerRatio > 1 {
		errs = append(errs, fmt.Errorf("telemetry.sampler_ratio %v not in [0,1]", c.Telemetry.SamplerRatio))
	}
	if c.Kafka.Enabled {
		if len(c.Kafka.Brokers) == 0 {
			errs = append(errs, errors.New("kafka.brokers is required when kafka is enabled"))
		}
		if c.Kafka.Topic == "" {
			errs = append(errs, errors.New("kafka.topic is required when kafka is enabled"))
		}
	}
	return errors.Join(errs...)
}

// Queries converts the configured queries into fetch queries.
func (c *Config) Queries() ([]fetch.Query, error) {
	out := make([]fetch.Query, 0, len(c.Fetch.Queries))
	for i, q := range c.Fetch.Queries {
		fq, err := q.toQuery()
		if err != nil {
			return nil, fmt.Errorf("fetch.queries[%d]: %w", i, err)
		}
		out = append(out, fq)
	}
	return out, nil
}

func (q QueryConfig) toQuery() (fetch.Query, error) {
	mode, err := fetch.ParseMode(q.Mode)
	if err != nil {
		return fetch.Query{}, err
	}
	token := q.Namespace
	if token == "" {
		token = "global"
	}
	ns, err := schema.ParseNamespace(token)
	if err != nil {
		return fetch.Query{}, err
	}
	if q.QualifiedName == "" {
		return fetch.Query{}, errors.New("qualified_name is required")
	}
	if mode == fetch.ByCode && q.Code == "" {
		return fetch.Query{}, errors.New("code is required in code mode")
	}
	if !q.From.IsZero() && !q.To.IsZero() && q.To.Before(q.From) {
		return fetch.Query{}, fmt.Errorf("to %s is before from %s", q.To.Format(time.RFC3339), q.From.Format(time.RFC3339))
	}
	rev := fetch.LatestRevision
	if q.Revision != nil {
		rev = *q.Revision
	}
	return fetch.Query{
		Mode:          mode,
		Namespace:     ns,
		QualifiedName: q.QualifiedName,
		Revision:      rev,
		Market:        q.Market,
		Code:          q.Code,
		Granularity:   q.Granularity,
		From:          q.From,
		To:            q.To,
	}, nil
}

// HTTPServer returns the httpserver settings.
func (c *Config) HTTPServer() httpserver.Config {
	return httpserver.Config{
		Addr:            fmt.Sprintf(":%d", c.HTTP.Port),
		ReadTimeout:     c.HTTP.ReadTimeout,
		WriteTimeout:    c.HTTP.WriteTimeout,
		IdleTimeout:     c.HTTP.IdleTimeout,
		ShutdownTimeout: c.HTTP.ShutdownTimeout,
		MetricsPath:     c.HTTP.MetricsPath,
		HealthzPath:     c.HTTP.HealthzPath,
		ReadyzPath:      c.HTTP.ReadyzPath,
	}
}

// Tracer returns the telemetry settings stamped with the service identity.
func (c *Config) Tracer() telemetry.Config {
	return telemetry.Config{
		Endpoint:       c.Telemetry.OTLPEndpoint,
		ServiceName:    c.ServiceName,
		ServiceVersion: c.ServiceVersion,
		Insecure:       c.Telemetry.Insecure,
		Timeout:        c.Telemetry.Timeout,
		SamplerRatio:   c.Telemetry.SamplerRatio,
	}
}

// Producer returns the Kafka producer settings.
func (c *Config) Producer() producer.Config {
	return producer.Config{
		Brokers:        c.Kafka.Brokers,
		RequiredAcks:   c.Kafka.RequiredAcks,
		Timeout:        c.Kafka.Timeout,
		Compression:    c.Kafka.Compression,
		FlushFrequency: c.Kafka.FlushFrequency,
		FlushMessages:  c.Kafka.FlushMessages,
		Backoff:        c.Kafka.Backoff,
	}
}

// Print writes the configuration as JSON with the token masked.
func (c Config) Print(w io.Writer) error {
	if c.Gateway.Token != "" {
		c.Gateway.Token = "***"
	}
	return configloader.PrintConfig(w, c)
}
