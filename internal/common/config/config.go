// internal/common/config/config.go
package config

import "fmt"

// Config is the main application configuration struct.
type Config struct {
	App       AppConfig       `mapstructure:"app"`
	Server    ServerConfig    `mapstructure:"server"`
	Database  DatabaseConfig  `mapstructure:"database"`
	Security  SecurityConfig  `mapstructure:"security"`
	Provider  ProviderConfig  `mapstructure:"provider"`
	APIs      APIsConfig      `mapstructure:"apis"`
	Storage   StorageConfig   `mapstructure:"storage"`
	Scoring   ScoringConfig   `mapstructure:"scoring"`
	Logging   LoggingConfig   `mapstructure:"logging"`
}

// --- Core App/Infrastructure Config ---

type AppConfig struct {
	Name        string `mapstructure:"name"`
	Version     string `mapstructure:"version"`
	Environment string `mapstructure:"environment"`
}

// ServerConfig holds webhook server and background worker settings.
type ServerConfig struct {
	Port              int `mapstructure:"port"`
	ReadTimeout       int `mapstructure:"read_timeout"`       // milliseconds
	WriteTimeout      int `mapstructure:"write_timeout"`      // milliseconds
	ProcessingTimeout int `mapstructure:"processing_timeout"` // milliseconds, per inbound event
	WorkerPoolSize    int `mapstructure:"worker_pool_size"`
	QueueSize         int `mapstructure:"queue_size"`
}

type DatabaseConfig struct {
	Postgres PostgresConfig `mapstructure:"postgres"`
	Redis    RedisConfig    `mapstructure:"redis"`
}

type PostgresConfig struct {
	Host           string `mapstructure:"host"`
	Port           int    `mapstructure:"port"`
	Database       string `mapstructure:"database"`
	User           string `mapstructure:"user"`
	Password       string `mapstructure:"password"`
	MaxConnections int    `mapstructure:"max_connections"`
	MaxIdle        int    `mapstructure:"max_idle"`
	SSLMode        string `mapstructure:"sslmode"`
}

// GetDSN returns the PostgreSQL connection string.
func (p PostgresConfig) GetDSN() string {
	return fmt.Sprintf(
		"host=%s port=%d user=%s password=%s dbname=%s sslmode=%s",
		p.Host, p.Port, p.User, p.Password, p.Database, p.SSLMode,
	)
}

type RedisConfig struct {
	Address  string `mapstructure:"address"`
	Password string `mapstructure:"password"`
	DB       int    `mapstructure:"db"`
}

// SecurityConfig holds the secret used by the identity vault.
type SecurityConfig struct {
	EncryptionKey string `mapstructure:"encryption_key"`
}

// ProviderConfig holds default messaging-provider credentials.
// Organizations may override these per job owner (see credentials.Resolver).
type ProviderConfig struct {
	BaseURL        string `mapstructure:"base_url"`
	AccountSID     string `mapstructure:"account_sid"`
	AuthToken      string `mapstructure:"auth_token"`
	WhatsAppNumber string `mapstructure:"whatsapp_number"`
	SendTimeout    int    `mapstructure:"send_timeout"`  // milliseconds
	MediaTimeout   int    `mapstructure:"media_timeout"` // milliseconds
}

// APIsConfig holds settings for external API integrations.
type APIsConfig struct {
	GenAI struct {
		APIKey  string `mapstructure:"api_key"`
		Model   string `mapstructure:"model"`
		Timeout int    `mapstructure:"timeout"` // milliseconds
	} `mapstructure:"genai"`
}

// StorageConfig holds default blob-archival settings.
type StorageConfig struct {
	AWS struct {
		Region          string `mapstructure:"region"`
		AccessKeyID     string `mapstructure:"access_key_id"`
		SecretAccessKey string `mapstructure:"secret_access_key"`
		S3Bucket        string `mapstructure:"s3_bucket"`
	} `mapstructure:"aws"`
}

// ScoringConfig holds finalization settings.
type ScoringConfig struct {
	MaxConcurrentEvaluations int `mapstructure:"max_concurrent_evaluations"`
	Timeout                  int `mapstructure:"timeout"` // milliseconds, per criterion
}

// LoggingConfig holds logging settings.
type LoggingConfig struct {
	Level  string `mapstructure:"level"`
	Format string `mapstructure:"format"`
	Output string `mapstructure:"output"`
}
