package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strconv"

	"github.com/joho/godotenv"
)

const (
	StoreDriverMemory   = "memory"
	StoreDriverPostgres = "postgres"
)

// Config holds the service-level settings.
type Config struct {
	Port            string
	StoreDriver     string
	EventBufferSize int
	SeedSampleData  bool
}

type DBConfig struct {
	Host         string
	Port         int
	User         string
	Password     string
	Name         string
	MaxOpenConns int
	MaxIdleConns int
}

func LoadConfig() (*Config, error) {
	_ = godotenv.Load(filepath.Join("config.env"))

	cfg := &Config{
		Port:            ":8080",
		StoreDriver:     StoreDriverMemory,
		EventBufferSize: 256,
	}

	if port := os.Getenv("APP_PORT"); port != "" {
		cfg.Port = ":" + port
	}

	switch driver := os.Getenv("STORE_DRIVER"); driver {
	case "", StoreDriverMemory:
	case StoreDriverPostgres:
		cfg.StoreDriver = StoreDriverPostgres
	default:
		return nil, fmt.Errorf("unknown STORE_DRIVER: %s", driver)
	}

	if size := os.Getenv("EVENT_BUFFER_SIZE"); size != "" {
		n, err := strconv.Atoi(size)
		if err != nil || n <= 0 {
			return nil, fmt.Errorf("invalid EVENT_BUFFER_SIZE: %s", size)
		}
		cfg.EventBufferSize = n
	}

	cfg.SeedSampleData = os.Getenv("SEED_SAMPLE_DATA") == "true"

	return cfg, nil
}

func LoadConfigDB() (*DBConfig, error) {
	_ = godotenv.Load(filepath.Join("config.env"))

	port, err := strconv.Atoi(os.Getenv("DB_PORT"))
	if err != nil {
		return nil, fmt.Errorf("invalid DB_PORT: %w", err)
	}

	maxOpen, err := strconv.Atoi(os.Getenv("DB_MAX_OPEN_CONNS"))
	if err != nil {
		return nil, fmt.Errorf("invalid DB_MAX_OPEN_CONNS: %w", err)
	}

	maxIdle, err := strconv.Atoi(os.Getenv("DB_MAX_IDLE_CONNS"))
	if err != nil {
		return nil, fmt.Errorf("invalid DB_MAX_IDLE_CONNS: %w", err)
	}

	return &DBConfig{
		Host:         os.Getenv("DB_HOST"),
		Port:         port,
		User:         os.Getenv("DB_USER"),
		Password:     os.Getenv("DB_PASSWORD"),
		Name:         os.Getenv("DB_NAME"),
		MaxOpenConns: maxOpen,
		MaxIdleConns: maxIdle,
	}, nil
}
