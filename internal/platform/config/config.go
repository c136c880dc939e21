package config

import (
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/caarlos0/env/v11"
	"gopkg.in/yaml.v3"

	"evfeed/pkg/platform/sentinel"
)

// Sink backends.
const (
	SinkKafka = "kafka"
	SinkRedis = "redis"
)

// Producer captures everything a publish run needs.
type Producer struct {
	CSVPath          string  `yaml:"csv_path" env:"EVFEED_CSV_PATH"`
	Topic            string  `yaml:"topic" env:"EVFEED_TOPIC"`
	Sink             string  `yaml:"sink" env:"EVFEED_SINK"`
	ProgressEvery    int     `yaml:"progress_every" env:"EVFEED_PROGRESS_EVERY"`
	RatePerSecond    float64 `yaml:"rate_per_second" env:"EVFEED_RATE_PER_SECOND"`
	FailurePolicy    string  `yaml:"failure_policy" env:"EVFEED_FAILURE_POLICY"`
	BreakerThreshold int     `yaml:"breaker_threshold" env:"EVFEED_BREAKER_THRESHOLD"`
	MetricsAddr      string  `yaml:"metrics_addr" env:"EVFEED_METRICS_ADDR"`
	LogLevel         string  `yaml:"log_level" env:"EVFEED_LOG_LEVEL"`
	LogFormat        string  `yaml:"log_format" env:"EVFEED_LOG_FORMAT"`

	Kafka KafkaConfig `yaml:"kafka"`
	Redis RedisConfig `yaml:"redis"`
}

// KafkaConfig configures the franz-go producer.
type KafkaConfig struct {
	Brokers           []string      `yaml:"brokers" env:"EVFEED_BROKERS"`
	ClientID          string        `yaml:"client_id" env:"EVFEED_KAFKA_CLIENT_ID"`
	Linger            time.Duration `yaml:"linger" env:"EVFEED_KAFKA_LINGER"`
	DeliveryTimeout   time.Duration `yaml:"delivery_timeout" env:"EVFEED_KAFKA_DELIVERY_TIMEOUT"`
	CreateTopic       bool          `yaml:"create_topic" env:"EVFEED_KAFKA_CREATE_TOPIC"`
	Partitions        int32         `yaml:"partitions" env:"EVFEED_KAFKA_PARTITIONS"`
	ReplicationFactor int16         `yaml:"replication_factor" env:"EVFEED_KAFKA_REPLICATION_FACTOR"`
}

// RedisConfig configures the Redis Streams sink.
type RedisConfig struct {
	URL          string        `yaml:"url" env:"EVFEED_REDIS_URL"`
	PoolSize     int           `yaml:"pool_size" env:"EVFEED_REDIS_POOL_SIZE"`
	MinIdleConns int           `yaml:"min_idle_conns" env:"EVFEED_REDIS_MIN_IDLE_CONNS"`
	DialTimeout  time.Duration `yaml:"dial_timeout" env:"EVFEED_REDIS_DIAL_TIMEOUT"`
	ReadTimeout  time.Duration `yaml:"read_timeout" env:"EVFEED_REDIS_READ_TIMEOUT"`
	WriteTimeout time.Duration `yaml:"write_timeout" env:"EVFEED_REDIS_WRITE_TIMEOUT"`
	StreamMaxLen int64         `yaml:"stream_max_len" env:"EVFEED_REDIS_STREAM_MAX_LEN"`
}

// Default returns the settings a bare run uses: the registration export in
// ./input, published to a local broker.
func Default() Producer {
	return Producer{
		CSVPath:          "input/Electric_Vehicle_Population_Data.csv",
		Topic:            "electric-cars",
		Sink:             SinkKafka,
		ProgressEvery:    100,
		FailurePolicy:    "continue",
		BreakerThreshold: 5,
		LogLevel:         "info",
		LogFormat:        "text",
		Kafka: KafkaConfig{
			Brokers:           []string{"localhost:9092"},
			ClientID:          "evfeed-producer",
			Linger:            10 * time.Millisecond,
			DeliveryTimeout:   2 * time.Minute,
			Partitions:        1,
			ReplicationFactor: 1,
		},
		Redis: RedisConfig{
			URL:          "redis://localhost:6379/0",
			PoolSize:     10,
			MinIdleConns: 1,
			DialTimeout:  5 * time.Second,
			ReadTimeout:  3 * time.Second,
			WriteTimeout: 3 * time.Second,
		},
	}
}

// Load layers defaults, the optional YAML file at path, then EVFEED_*
// environment variables. Only variables that are set override a field.
func Load(path string) (Producer, error) {
	cfg := Default()
	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return cfg, fmt.Errorf("read config %s: %w", path, err)
		}
		if err := yaml.Unmarshal(data, &cfg); err != nil {
			return cfg, fmt.Errorf("parse config %s: %w: %w", path, sentinel.ErrInvalidConfig, err)
		}
	}
	if err := applyEnv(&cfg); err != nil {
		return cfg, err
	}
	return cfg, nil
}

func applyEnv(cfg *Producer) error {
	if err := env.Parse(cfg); err != nil {
		return fmt.Errorf("%w: environment: %w", sentinel.ErrInvalidConfig, err)
	}
	cfg.Kafka.Brokers = compact(cfg.Kafka.Brokers)
	return nil
}

// compact trims list entries and drops the empty ones, so "a, ,b" is [a b].
func compact(list []string) []string {
	out := list[:0]
	for _, item := range list {
		if item = strings.TrimSpace(item); item != "" {
			out = append(out, item)
		}
	}
	return out
}

// Validate rejects configurations a run cannot start with.
func (c Producer) Validate() error {
	var problems []string
	if strings.TrimSpace(c.CSVPath) == "" {
		problems = append(problems, "csv path is required")
	}
	if strings.TrimSpace(c.Topic) == "" {
		problems = append(problems, "topic is required")
	}
	switch c.Sink {
	case SinkKafka:
		if len(c.Kafka.Brokers) == 0 {
			problems = append(problems, "at least one kafka broker is required")
		}
	case SinkRedis:
		if c.Redis.URL == "" {
			problems = append(problems, "redis url is required")
		}
	default:
		problems = append(problems, fmt.Sprintf("unknown sink %q", c.Sink))
	}
	switch c.FailurePolicy {
	case "", "continue", "abort":
	default:
		problems = append(problems, fmt.Sprintf("unknown failure policy %q", c.FailurePolicy))
	}
	if c.RatePerSecond < 0 {
		problems = append(problems, "rate per second cannot be negative")
	}
	if c.ProgressEvery < 0 {
		problems = append(problems, "progress interval cannot be negative")
	}
	if len(problems) > 0 {
		return fmt.Errorf("%w: %s", sentinel.ErrInvalidConfig, strings.Join(problems, "; "))
	}
	return nil
}
