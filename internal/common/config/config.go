package config

import "fmt"

// Config is the main application configuration struct.
type Config struct {
	App           AppConfig          `mapstructure:"app"`
	Server        ServerConfig       `mapstructure:"server"`
	Database      DatabaseConfig     `mapstructure:"database"`
	Extraction    ExtractionConfig   `mapstructure:"extraction"`
	Handover      HandoverConfig     `mapstructure:"handover"`
	Notifications NotificationConfig `mapstructure:"notifications"`
	Logging       LoggingConfig      `mapstructure:"logging"`
}

type AppConfig struct {
	Name        string `mapstructure:"name"`
	Version     string `mapstructure:"version"`
	Environment string `mapstructure:"environment"`
}

type ServerConfig struct {
	ListenAddress   string `mapstructure:"listen_address"`
	ReadTimeout     int    `mapstructure:"read_timeout"`     // seconds
	WriteTimeout    int    `mapstructure:"write_timeout"`    // seconds
	ShutdownTimeout int    `mapstructure:"shutdown_timeout"` // seconds
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

// Enabled reports whether a Postgres catalog source is configured at all.
// When false the embedded default catalog is used.
func (p PostgresConfig) Enabled() bool {
	return p.Host != ""
}

type RedisConfig struct {
	Address  string `mapstructure:"address"`
	Password string `mapstructure:"password"`
	DB       int    `mapstructure:"db"`
}

// Enabled reports whether a Redis store is configured. When false the
// conversation runs on the in-memory store only.
func (r RedisConfig) Enabled() bool {
	return r.Address != ""
}

// ExtractionConfig holds settings for the structured-extraction collaborator.
type ExtractionConfig struct {
	BaseURL    string `mapstructure:"base_url"`
	Timeout    int    `mapstructure:"timeout"` // milliseconds
	MaxRetries int    `mapstructure:"max_retries"`
}

// HandoverConfig holds settings for the human-handover side channel.
type HandoverConfig struct {
	// WhatsAppNumber is the destination number baked into the
	// wa.me contact link, digits only with country code.
	WhatsAppNumber string `mapstructure:"whatsapp_number"`
}

// NotificationConfig holds settings for notifying the sales channel when a
// handover completes.
type NotificationConfig struct {
	AWSRegion     string `mapstructure:"aws_region"`
	SNSTopicARN   string `mapstructure:"sns_topic_arn"`
	SESFromEmail  string `mapstructure:"ses_from_email"`
	SESSalesEmail string `mapstructure:"ses_sales_email"`
}

// Enabled reports whether any delivery channel is configured.
func (n NotificationConfig) Enabled() bool {
	return n.SNSTopicARN != "" || n.SESSalesEmail != ""
}

type LoggingConfig struct {
	Level  string `mapstructure:"level"`
	Format string `mapstructure:"format"`
}
