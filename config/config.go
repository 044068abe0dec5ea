package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

// Store drivers.
const (
	StoreDriverDynamoDB = "dynamodb"
	StoreDriverLocal    = "local"
)

// Config holds all application configuration
type Config struct {
	// Server configuration
	Port        string `yaml:"port"`
	Environment string `yaml:"environment"`

	// Storage configuration
	AWSRegion       string `yaml:"awsRegion"`
	StoreDriver     string `yaml:"storeDriver"`
	TableName       string `yaml:"tableName"`
	EntityTypeIndex string `yaml:"entityTypeIndex"` // GSI on GSI1PK/GSI1SK; empty falls back to a filtered scan
	DynamoEndpoint  string `yaml:"dynamoEndpoint"`  // DynamoDB Local, e.g. http://localhost:8000
	LocalStorePath  string `yaml:"localStorePath"`  // badger directory; empty keeps the local store in memory
	S3BucketName    string `yaml:"s3BucketName"`

	// Lambda configuration
	IsLambda bool `yaml:"-"`

	// Logging
	LogLevel string `yaml:"logLevel"`

	// HTTP surface
	CORSAllowedOrigins []string `yaml:"corsAllowedOrigins"`
	EnableSocket       bool     `yaml:"enableSocket"`

	CardSearch CardSearchConfig `yaml:"cardSearch"`
}

// CardSearchConfig configures the catalog providers queried by card search.
type CardSearchConfig struct {
	Timeout   time.Duration    `yaml:"timeout"`
	Providers []ProviderConfig `yaml:"providers"`
}

// ProviderConfig describes one card catalog provider.
type ProviderConfig struct {
	Name    string `yaml:"name"`
	BaseURL string `yaml:"baseUrl"`
	APIKey  string `yaml:"apiKey"`
	Enabled bool   `yaml:"enabled"`
}

// Provider names understood by the card search service.
const (
	ProviderPokemonTCG = "pokemontcg"
	ProviderScryfall   = "scryfall"
	ProviderYGOProDeck = "ygoprodeck"
)

// DefaultProviders returns the public catalog endpoints.
func DefaultProviders() []ProviderConfig {
	return []ProviderConfig{
		{Name: ProviderPokemonTCG, BaseURL: "https://api.pokemontcg.io", Enabled: true},
		{Name: ProviderScryfall, BaseURL: "https://api.scryfall.com", Enabled: true},
		{Name: ProviderYGOProDeck, BaseURL: "https://db.ygoprodeck.com", Enabled: true},
	}
}

// LoadConfig loads configuration from environment variables, then overlays CONFIG_FILE if set
func LoadConfig() (*Config, error) {
	cfg := &Config{
		Port:            getEnv("PORT", "8080"),
		Environment:     getEnv("ENVIRONMENT", "development"),
		AWSRegion:       getEnv("AWS_REGION", "us-east-1"),
		StoreDriver:     getEnv("STORE_DRIVER", StoreDriverDynamoDB),
		TableName:       getEnv("TABLE_NAME", "CardVault"),
		EntityTypeIndex: getEnv("ENTITY_TYPE_INDEX", ""),
		DynamoEndpoint:  getEnv("DYNAMODB_ENDPOINT", ""),
		LocalStorePath:  getEnv("LOCAL_STORE_PATH", ""),
		S3BucketName:    getEnv("S3_BUCKET_NAME", ""),

		IsLambda: os.Getenv("AWS_LAMBDA_FUNCTION_NAME") != "",

		LogLevel: getEnv("LOG_LEVEL", "info"),

		CORSAllowedOrigins: getEnvList("CORS_ALLOWED_ORIGINS", []string{"*"}),
		EnableSocket:       getEnvBool("ENABLE_SOCKET", true),

		CardSearch: CardSearchConfig{
			Timeout:   getEnvDuration("CARD_SEARCH_TIMEOUT", 5*time.Second),
			Providers: DefaultProviders(),
		},
	}

	if key := os.Getenv("POKEMON_TCG_API_KEY"); key != "" {
		for i := range cfg.CardSearch.Providers {
			if cfg.CardSearch.Providers[i].Name == ProviderPokemonTCG {
				cfg.CardSearch.Providers[i].APIKey = key
			}
		}
	}

	if path := os.Getenv("CONFIG_FILE"); path != "" {
		if err := cfg.overlayFile(path); err != nil {
			return nil, err
		}
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	return cfg, nil
}

// overlayFile merges non-zero values from a YAML file on top of cfg.
func (c *Config) overlayFile(path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("failed to read config file '%s': %w", path, err)
	}
	return c.overlay(data)
}

func (c *Config) overlay(data []byte) error {
	// Unmarshal onto the current values so keys missing from the file keep their env/default value.
	// Provider lists are replaced wholesale when present.
	if err := yaml.Unmarshal(data, c); err != nil {
		return fmt.Errorf("failed to parse config file: %w", err)
	}
	return nil
}

// Validate checks that the configuration is usable
func (c *Config) Validate() error {
	switch c.StoreDriver {
	case StoreDriverDynamoDB:
		if c.TableName == "" {
			return fmt.Errorf("TABLE_NAME is required when STORE_DRIVER is %q", StoreDriverDynamoDB)
		}
	case StoreDriverLocal:
		if c.IsProduction() {
			return fmt.Errorf("STORE_DRIVER %q is not allowed in production", StoreDriverLocal)
		}
	default:
		return fmt.Errorf("unknown STORE_DRIVER %q", c.StoreDriver)
	}

	if c.CardSearch.Timeout <= 0 {
		return fmt.Errorf("card search timeout must be positive")
	}
	for _, p := range c.CardSearch.Providers {
		if p.Enabled && p.BaseURL == "" {
			return fmt.Errorf("card provider %q has no baseUrl", p.Name)
		}
	}

	return nil
}

// IsDevelopment checks if running in development mode
func (c *Config) IsDevelopment() bool {
	return c.Environment == "development"
}

// IsProduction checks if running in production mode
func (c *Config) IsProduction() bool {
	return c.Environment == "production"
}

// getEnv gets an environment variable with a default value
func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

// getEnvBool gets a boolean environment variable with a default value
func getEnvBool(key string, defaultValue bool) bool {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue
	}
	return value == "true" || value == "1" || value == "yes"
}

// getEnvDuration accepts Go durations ("3s") or plain milliseconds
func getEnvDuration(key string, defaultValue time.Duration) time.Duration {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue
	}
	if d, err := time.ParseDuration(value); err == nil {
		return d
	}
	if ms, err := strconv.Atoi(value); err == nil {
		return time.Duration(ms) * time.Millisecond
	}
	return defaultValue
}

// getEnvList splits a comma separated variable
func getEnvList(key string, defaultValue []string) []string {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue
	}
	var out []string
	for _, part := range strings.Split(value, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}
