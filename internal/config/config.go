package config

import (
	"errors"
	"fmt"
	"log"
	"time"

	"github.com/spf13/viper"
)

// Config holds the application configuration.
type Config struct {
	ServerAddr    string        `mapstructure:"SERVER_ADDR"`
	StoreBackend  string        `mapstructure:"STORE_BACKEND"`
	DBDriver      string        `mapstructure:"DB_DRIVER"`
	DatabaseURL   string        `mapstructure:"DATABASE_URL"`
	MongoURI      string        `mapstructure:"MONGO_URI"`
	MongoDatabase string        `mapstructure:"MONGO_DATABASE"`
	JWTSecret     string        `mapstructure:"JWT_SECRET"`
	JWTTTL        time.Duration `mapstructure:"JWT_TTL"`
	LogLevel      string        `mapstructure:"LOG_LEVEL"`
	LogFormat     string        `mapstructure:"LOG_FORMAT"`
	GinMode       string        `mapstructure:"GIN_MODE"`
}

const (
	BackendSQL   = "sql"
	BackendMongo = "mongo"
)

var AppConfig *Config

var defaults = map[string]any{
	"SERVER_ADDR":    ":8080",
	"STORE_BACKEND":  BackendSQL,
	"DB_DRIVER":      "postgres",
	"DATABASE_URL":   "",
	"MONGO_URI":      "mongodb://localhost:27017/?replicaSet=rs0",
	"MONGO_DATABASE": "quadrant",
	"JWT_SECRET":     "",
	"JWT_TTL":        "168h",
	"LOG_LEVEL":      "info",
	"LOG_FORMAT":     "json",
	"GIN_MODE":       "release",
}

// LoadConfig loads the configuration from a .env file and environment variables.
func LoadConfig() {
	cfg, err := Load(".")
	if err != nil {
		log.Fatalf("Unable to load config: %v", err)
	}
	AppConfig = cfg
}

// Load reads <dir>/.env (if present) overlaid by the environment and validates the result.
func Load(dir string) (*Config, error) {
	v := viper.New()
	v.AddConfigPath(dir)
	v.SetConfigName(".env")
	v.SetConfigType("env")

	for key, value := range defaults {
		v.SetDefault(key, value)
	}
	v.AutomaticEnv()

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) {
			return nil, fmt.Errorf("read config: %w", err)
		}
		log.Println("Warning: .env file not found, loading from environment variables")
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("decode config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// Validate reports settings the server cannot start without.
func (c *Config) Validate() error {
	if c.JWTSecret == "" {
		return errors.New("JWT_SECRET is required")
	}
	if c.JWTTTL <= 0 {
		return fmt.Errorf("JWT_TTL must be positive, got %s", c.JWTTTL)
	}

	switch c.StoreBackend {
	case BackendSQL:
		switch c.DBDriver {
		case "postgres", "mysql", "sqlite":
		default:
			return fmt.Errorf("unsupported DB_DRIVER %q", c.DBDriver)
		}
		if c.DatabaseURL == "" {
			return errors.New("DATABASE_URL is required for the sql backend")
		}
	case BackendMongo:
		if c.MongoURI == "" || c.MongoDatabase == "" {
			return errors.New("MONGO_URI and MONGO_DATABASE are required for the mongo backend")
		}
	default:
		return fmt.Errorf("unsupported STORE_BACKEND %q", c.StoreBackend)
	}
	return nil
}
