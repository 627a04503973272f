package config

import (
	"time"

	"github.com/caarlos0/env/v11"
	"github.com/diznq/core-se/pkg/redis"
	"github.com/joho/godotenv"
)

// MustLoad loads the configuration from environment variables and .env file.
func MustLoad[T any](cfg T) {
	_ = godotenv.Load()

	env.Must(cfg, env.Parse(cfg))
}

// Load loads the configuration from environment variables and .env file.
func Load[T any](cfg T) error {
	_ = godotenv.Load()

	return env.Parse(cfg)
}

// Config holds the configuration for the venue server.
type Config struct {
	LogLevel string `env:"LOG_LEVEL" envDefault:"info"`

	// TickInterval is how often the engine advances simulated time and
	// matches every order book.
	TickInterval time.Duration `env:"TICK_INTERVAL" envDefault:"1s"`

	// SnapshotInterval is how often the venue state is written to Redis.
	SnapshotInterval time.Duration `env:"SNAPSHOT_INTERVAL" envDefault:"30s"`
	SnapshotKey      string        `env:"SNAPSHOT_KEY" envDefault:"venue:snapshot"`

	Kafka KafkaConfig  `envPrefix:"KAFKA_"`
	Redis redis.Config `envPrefix:"REDIS_"`
}

// KafkaConfig holds the configuration for the order consumer and trade publisher.
type KafkaConfig struct {
	OrderTopic string   `env:"ORDER_TOPIC" envDefault:"venue.orders"`
	TradeTopic string   `env:"TRADE_TOPIC" envDefault:"venue.trades"`
	GroupID    string   `env:"GROUP_ID" envDefault:"venue"`
	Brokers    []string `env:"BROKER" envDefault:"localhost:9092"`
}
