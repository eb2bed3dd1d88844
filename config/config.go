package config

import (
	"context"
	"fmt"
	"net/url"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

// Config represents the complete application configuration
type Config struct {
	Server        ServerConfig
	Firebase      FirebaseConfig
	Identity      IdentityConfig
	Database      *DatabaseConfig // Optional: auth audit trail. When nil, audit events are only logged.
	Audit         AuditConfig
	Observability ObservabilityConfig
	Environment   string
}

// ServerConfig holds HTTP server configuration
type ServerConfig struct {
	Host            string
	Port            int
	ReadTimeout     time.Duration
	WriteTimeout    time.Duration
	ShutdownTimeout time.Duration
	AllowedOrigins  []string
}

// FirebaseConfig holds the Admin SDK credentials used to verify ID tokens.
// Either ClientEmail and PrivateKey or CredentialsFile must be set unless
// EmulatorHost points at the Auth emulator.
type FirebaseConfig struct {
	ProjectID       string
	ClientEmail     string
	PrivateKey      string // PEM; literal "\n" sequences from the environment are expanded
	CredentialsFile string
	EmulatorHost    string
	CheckRevoked    bool
}

// HasCredentials reports whether service account material is configured
func (c *FirebaseConfig) HasCredentials() bool {
	return c.CredentialsFile != "" || (c.ClientEmail != "" && c.PrivateKey != "")
}

// IdentityConfig holds the Identity RPC service client settings
type IdentityConfig struct {
	Address     string
	CallTimeout time.Duration
	DialTimeout time.Duration
	TLS         bool
}

// DatabaseConfig holds PostgreSQL connection settings for the audit trail
type DatabaseConfig struct {
	ConnectionString string
	MaxOpenConns     int
	MaxIdleConns     int
	ConnMaxLifetime  time.Duration
}

// AuditConfig holds the async audit recorder settings
type AuditConfig struct {
	Enabled     bool
	BufferSize  int
	WorkerCount int
}

// ObservabilityConfig holds monitoring and logging configuration
type ObservabilityConfig struct {
	LogLevel       string
	LogFormat      string // json or console
	MetricsEnabled bool
}

// New creates a new Config instance by loading environment variables
func New(ctx context.Context) (*Config, error) {
	_ = godotenv.Load(".env")

	environment := getEnv("ENVIRONMENT", "development")

	cfg := &Config{
		Environment: environment,
		Server: ServerConfig{
			Host:            getEnv("SERVER_HOST", "0.0.0.0"),
			Port:            getPort(),
			ReadTimeout:     getEnvAsDuration("SERVER_READ_TIMEOUT", 15*time.Second),
			WriteTimeout:    getEnvAsDuration("SERVER_WRITE_TIMEOUT", 15*time.Second),
			ShutdownTimeout: getEnvAsDuration("SERVER_SHUTDOWN_TIMEOUT", 10*time.Second),
			AllowedOrigins:  getEnvAsList("CORS_ALLOWED_ORIGINS", defaultAllowedOrigins(environment)),
		},
		Firebase: FirebaseConfig{
			ProjectID:       getEnv("FIREBASE_PROJECT_ID", ""),
			ClientEmail:     getEnv("FIREBASE_CLIENT_EMAIL", ""),
			PrivateKey:      strings.ReplaceAll(getEnv("FIREBASE_PRIVATE_KEY", ""), `\n`, "\n"),
			CredentialsFile: getEnv("FIREBASE_CREDENTIALS_FILE", ""),
			EmulatorHost:    getEnv("FIREBASE_AUTH_EMULATOR_HOST", ""),
			CheckRevoked:    getEnvAsBool("FIREBASE_CHECK_REVOKED", false),
		},
		Identity: IdentityConfig{
			Address:     getEnv("IDENTITY_SERVICE_ADDR", ""),
			CallTimeout: getEnvAsDuration("IDENTITY_CALL_TIMEOUT", 3*time.Second),
			DialTimeout: getEnvAsDuration("IDENTITY_DIAL_TIMEOUT", 5*time.Second),
			TLS:         getEnvAsBool("IDENTITY_TLS", false),
		},
		Database: loadDatabaseConfig(),
		Audit: AuditConfig{
			Enabled:     getEnvAsBool("AUDIT_ENABLED", true),
			BufferSize:  getEnvAsInt("AUDIT_BUFFER_SIZE", 1000),
			WorkerCount: getEnvAsInt("AUDIT_WORKERS", 2),
		},
		Observability: ObservabilityConfig{
			LogLevel:       getEnv("LOG_LEVEL", "info"),
			LogFormat:      getEnv("LOG_FORMAT", "json"),
			MetricsEnabled: getEnvAsBool("METRICS_ENABLED", true),
		},
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("config validation failed: %w", err)
	}

	return cfg, nil
}

// Validate checks if all required configuration fields are set
func (c *Config) Validate() error {
	if c.Firebase.ProjectID == "" {
		return fmt.Errorf("firebase project ID is required (FIREBASE_PROJECT_ID)")
	}
	if c.Firebase.EmulatorHost == "" && !c.Firebase.HasCredentials() {
		return fmt.Errorf("firebase credentials not fully configured; required: " +
			"FIREBASE_PRIVATE_KEY, FIREBASE_CLIENT_EMAIL, FIREBASE_PROJECT_ID (or FIREBASE_CREDENTIALS_FILE)")
	}

	if c.Identity.Address == "" {
		return fmt.Errorf("identity service address is required (IDENTITY_SERVICE_ADDR)")
	}
	if c.Identity.CallTimeout <= 0 {
		return fmt.Errorf("identity call timeout must be positive")
	}
	if c.Identity.DialTimeout <= 0 {
		return fmt.Errorf("identity dial timeout must be positive")
	}

	if c.Server.Port <= 0 || c.Server.Port > 65535 {
		return fmt.Errorf("invalid server port: %d", c.Server.Port)
	}

	if c.Audit.Enabled && c.Database != nil {
		if c.Audit.BufferSize <= 0 || c.Audit.WorkerCount <= 0 {
			return fmt.Errorf("audit buffer size and worker count must be positive")
		}
	}

	switch strings.ToLower(c.Observability.LogLevel) {
	case "debug", "info", "warn", "error":
	default:
		return fmt.Errorf("unknown log level: %q", c.Observability.LogLevel)
	}

	return nil
}

// IsProduction returns true if running in production environment
func (c *Config) IsProduction() bool {
	return c.Environment == "production" || c.Environment == "prod"
}

// IsDevelopment returns true if running in development environment
func (c *Config) IsDevelopment() bool {
	return isDevelopment(c.Environment)
}

func isDevelopment(environment string) bool {
	return environment == "development" || environment == "dev"
}

// defaultAllowedOrigins permits local frontends in development and nothing elsewhere
func defaultAllowedOrigins(environment string) []string {
	if isDevelopment(environment) {
		return []string{"http://localhost:*", "http://127.0.0.1:*"}
	}
	return nil
}

// Address returns the HTTP server address
func (c *ServerConfig) Address() string {
	return fmt.Sprintf("%s:%d", c.Host, c.Port)
}

// LogString returns a safe string for logging (no password)
func (c *DatabaseConfig) LogString() string {
	u, err := url.Parse(c.ConnectionString)
	if err != nil || u.Host == "" {
		return "host=<from DATABASE_URL>"
	}
	port := u.Port()
	if port == "" {
		port = "5432"
	}
	return fmt.Sprintf("host=%s port=%s database=%s", u.Hostname(), port, strings.TrimPrefix(u.Path, "/"))
}

// loadDatabaseConfig returns nil when DATABASE_URL is not set
func loadDatabaseConfig() *DatabaseConfig {
	dbURL := getEnv("DATABASE_URL", "")
	if dbURL == "" {
		return nil
	}
	return &DatabaseConfig{
		ConnectionString: dbURL,
		MaxOpenConns:     getEnvAsInt("DB_MAX_OPEN_CONNS", 10),
		MaxIdleConns:     getEnvAsInt("DB_MAX_IDLE_CONNS", 2),
		ConnMaxLifetime:  getEnvAsDuration("DB_CONN_MAX_LIFETIME", 5*time.Minute),
	}
}

// Helper functions

// getPort returns the server port from PORT or SERVER_PORT env vars (default: 3000)
func getPort() int {
	for _, key := range []string{"PORT", "SERVER_PORT"} {
		if value := os.Getenv(key); value != "" {
			if p, err := strconv.Atoi(value); err == nil {
				return p
			}
		}
	}
	return 3000
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvAsInt(key string, defaultValue int) int {
	valueStr := os.Getenv(key)
	if valueStr == "" {
		return defaultValue
	}
	value, err := strconv.Atoi(valueStr)
	if err != nil {
		return defaultValue
	}
	return value
}

func getEnvAsBool(key string, defaultValue bool) bool {
	valueStr := os.Getenv(key)
	if valueStr == "" {
		return defaultValue
	}
	value, err := strconv.ParseBool(valueStr)
	if err != nil {
		return defaultValue
	}
	return value
}

func getEnvAsDuration(key string, defaultValue time.Duration) time.Duration {
	valueStr := os.Getenv(key)
	if valueStr == "" {
		return defaultValue
	}
	value, err := time.ParseDuration(valueStr)
	if err != nil {
		return defaultValue
	}
	return value
}

func getEnvAsList(key string, defaultValue []string) []string {
	valueStr := os.Getenv(key)
	if valueStr == "" {
		return defaultValue
	}
	var out []string
	for _, part := range strings.Split(valueStr, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	if len(out) == 0 {
		return defaultValue
	}
	return out
}
