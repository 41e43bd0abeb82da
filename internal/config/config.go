package config

import (
	"errors"
	"fmt"
	"log"
	"os"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

const (
	BackendMemory = "memory"
	BackendRedis  = "redis"
	BackendMongo  = "mongo"
	BackendFile   = "file"
)

var ErrInvalidBackend = errors.New("unknown storage backend")

type Config struct {
	Server   ServerConfig   `mapstructure:"server"`
	Storage  StorageConfig  `mapstructure:"storage"`
	Catalog  CatalogConfig  `mapstructure:"catalog"`
	Checkout CheckoutConfig `mapstructure:"checkout"`
	Auth     AuthConfig     `mapstructure:"auth"`
	Visitor  VisitorConfig  `mapstructure:"visitor"`
}

type ServerConfig struct {
	Port            string        `mapstructure:"port"`
	RequestTimeout  time.Duration `mapstructure:"request_timeout"`
	ShutdownTimeout time.Duration `mapstructure:"shutdown_timeout"`
}

type StorageConfig struct {
	Backend       string `mapstructure:"backend"`
	RedisAddr     string `mapstructure:"redis_addr"`
	RedisPassword string `mapstructure:"redis_password"`
	MongoURI      string `mapstructure:"mongo_uri"`
	MongoDatabase string `mapstructure:"mongo_db"`
	FileDir       string `mapstructure:"file_dir"`
}

type CatalogConfig struct {
	DBPath         string `mapstructure:"db_path"`
	MigrationsPath string `mapstructure:"migrations_path"`
}

type CheckoutConfig struct {
	Delay        time.Duration `mapstructure:"delay"`
	OrderTTL     time.Duration `mapstructure:"order_ttl"`
	KafkaBrokers []string      `mapstructure:"kafka_brokers"`
	OrderTopic   string        `mapstructure:"order_topic"`
}

type AuthConfig struct {
	JWTSecret string `mapstructure:"jwt_secret"`
}

type VisitorConfig struct {
	IdleTTL time.Duration `mapstructure:"idle_ttl"`
}

// settings maps every key to its environment variable and default.
var settings = []struct {
	key, env string
	def      any
}{
	{"server.port", "HTTP_PORT", ":8080"},
	{"server.request_timeout", "REQUEST_TIMEOUT", 30 * time.Second},
	{"server.shutdown_timeout", "SHUTDOWN_TIMEOUT", 10 * time.Second},
	{"storage.backend", "STORAGE_BACKEND", BackendMemory},
	{"storage.redis_addr", "REDIS_ADDR", "localhost:6379"},
	{"storage.redis_password", "REDIS_PASSWORD", ""},
	{"storage.mongo_uri", "MONGO_URI", "mongodb://localhost:27017"},
	{"storage.mongo_db", "MONGO_DB_NAME", "storefront"},
	{"storage.file_dir", "FILE_STORAGE_DIR", "./data/snapshots"},
	{"catalog.db_path", "CATALOG_DB_PATH", "./data/catalog.db"},
	{"catalog.migrations_path", "MIGRATIONS_PATH", "./internal/catalog/migrations"},
	{"checkout.delay", "CHECKOUT_DELAY", 1500 * time.Millisecond},
	{"checkout.order_ttl", "ORDER_TTL", 30 * time.Minute},
	{"checkout.kafka_brokers", "KAFKA_BROKERS", []string{}},
	{"checkout.order_topic", "ORDER_TOPIC", "orders-completed"},
	{"auth.jwt_secret", "AUTH_JWT_SECRET", ""},
	{"visitor.idle_ttl", "VISITOR_IDLE_TTL", 30 * time.Minute},
}

// Load reads an optional .env file, an optional config file and the environment,
// in increasing order of precedence. An empty configFile looks for storefront.yaml
// in the working directory.
func Load(configFile string) (*Config, error) {
	if err := godotenv.Load(); err != nil && !errors.Is(err, os.ErrNotExist) {
		log.Println(".env not loaded:", err)
	}

	v := viper.New()
	for _, s := range settings {
		v.SetDefault(s.key, s.def)
		if err := v.BindEnv(s.key, s.env); err != nil {
			return nil, fmt.Errorf("bind %s: %w", s.env, err)
		}
	}

	if configFile != "" {
		v.SetConfigFile(configFile)
	} else {
		v.SetConfigName("storefront")
		v.SetConfigType("yaml")
		v.AddConfigPath("./")
	}
	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if configFile != "" || !errors.As(err, &notFound) {
			return nil, fmt.Errorf("failed to read config file: %w", err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

func (c *Config) Validate() error {
	switch c.Storage.Backend {
	case BackendMemory, BackendRedis, BackendMongo, BackendFile:
	default:
		return fmt.Errorf("%w: %q", ErrInvalidBackend, c.Storage.Backend)
	}
	if c.Checkout.OrderTTL <= 0 {
		return fmt.Errorf("checkout.order_ttl must be positive, got %s", c.Checkout.OrderTTL)
	}
	if c.Checkout.Delay < 0 {
		return fmt.Errorf("checkout.delay must not be negative, got %s", c.Checkout.Delay)
	}
	return nil
}
