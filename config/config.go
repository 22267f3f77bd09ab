package config

import (
	"os"

	"go.uber.org/zap"
	"gopkg.in/yaml.v3"

	postgres_wrapper "github.com/x5500/QUIKSharp-sub001/pkg/infra/postgres"
	redis_wrapper "github.com/x5500/QUIKSharp-sub001/pkg/infra/redis"
	kafkawrapper "github.com/x5500/QUIKSharp-sub001/pkg/kafka_wrapper"
	"github.com/x5500/QUIKSharp-sub001/pkg/quik"
)

type KafkaConfig struct {
	Brokers        []string                     `yaml:"brokers"`
	LifecycleTopic string                       `yaml:"lifecycle_topic"`
	Consumer       *kafkawrapper.ConsumerConfig `yaml:"consumer"`
}

type CandleConfig struct {
	Depth int64 `yaml:"depth"`
}

type AppConfig struct {
	ServiceName string                           `yaml:"service_name"`
	Quik        *quik.Config                     `yaml:"quik"`
	JournalDB   *postgres_wrapper.PostgresConfig `yaml:"journal_db"`
	Redis       *redis_wrapper.RedisConfig       `yaml:"redis"`
	Kafka       *KafkaConfig                     `yaml:"kafka"`
	Candles     *CandleConfig                    `yaml:"candles"`
}

// Load reads config from file, expanding environment variables.
func Load(filePath string) (*AppConfig, error) {
	if len(filePath) == 0 {
		filePath = os.Getenv("CONFIG_FILE")
	}

	sugar := zap.S().With("func", "config.Load", "filePath", filePath)
	sugar.Debug("Load config...")

	configBytes, err := os.ReadFile(filePath)
	if err != nil {
		sugar.Error("Failed to load config file")
		return nil, err
	}
	configBytes = []byte(os.ExpandEnv(string(configBytes)))

	cfg := &AppConfig{}
	if err := yaml.Unmarshal(configBytes, cfg); err != nil {
		sugar.Error("Failed to parse config file")
		return nil, err
	}

	zap.S().Debugf("config: %+v", cfg)
	return cfg, nil
}
