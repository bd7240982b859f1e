// Package config loads process configuration from defaults, an optional
// config file and the environment.
package config

import (
	"fmt"
	"net/url"
	"os"
	"slices"
	"strconv"
	"strings"
	"time"

	"github.com/spf13/viper"

	"kharcha/internal/auth"
)

// ConfigFileEnv names an optional config file (any format viper reads).
const ConfigFileEnv = "KHARCHA_CONFIG"

type Config struct {
	// HTTP server
	Port              string
	CORSAllowedOrigin string
	RateLimitPerMin   int
	ShutdownTimeout   time.Duration

	// Logging
	LogLevel  string
	LogFormat string

	// Local ledger
	LocalBackend string
	LedgerFile   string
	SQLiteDBPath string

	// Remote ledger
	RemoteBackend            string
	GoogleSpreadsheetID      string
	GoogleSheetName          string
	GoogleServiceAccountJSON string
	GoogleServiceAccountFile string
	SheetMetadataTTL         time.Duration

	// AMQP, optional
	AMQPURL      string
	AMQPExchange string

	// Auth
	AuthUsers string

	// Reports
	ReportTitle string
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("PORT", "5000")
	v.SetDefault("CORS_ALLOWED_ORIGIN", "*")
	v.SetDefault("RATE_LIMIT_PER_MINUTE", 60)
	v.SetDefault("SHUTDOWN_TIMEOUT", 10*time.Second)

	v.SetDefault("LOG_LEVEL", "info")
	v.SetDefault("LOG_FORMAT", "text")

	v.SetDefault("LOCAL_BACKEND", "file")
	v.SetDefault("LEDGER_FILE", "./data/expenses.json")
	v.SetDefault("SQLITE_DB_PATH", "./data/kharcha.db")

	v.SetDefault("REMOTE_BACKEND", "sheets")
	v.SetDefault("GOOGLE_SPREADSHEET_ID", "")
	v.SetDefault("GOOGLE_SHEET_NAME", "")
	v.SetDefault("GOOGLE_SERVICE_ACCOUNT_JSON", "")
	v.SetDefault("GOOGLE_SERVICE_ACCOUNT_FILE", "service_account.json")
	v.SetDefault("SHEET_METADATA_TTL", 5*time.Minute)

	v.SetDefault("AMQP_URL", "")
	v.SetDefault("AMQP_EXCHANGE", "kharcha")

	v.SetDefault("AUTH_USERS", "")
	v.SetDefault("REPORT_TITLE", "Monthly Expense Report")
}

// Load builds a Config. Values come from defaults, then the file named by
// KHARCHA_CONFIG if set, then the environment.
func Load() (*Config, error) {
	v := viper.New()
	setDefaults(v)

	if file := strings.TrimSpace(os.Getenv(ConfigFileEnv)); file != "" {
		v.SetConfigFile(file)
		if err := v.ReadInConfig(); err != nil {
			return nil, fmt.Errorf("read config file %s: %w", file, err)
		}
	}
	v.AutomaticEnv()

	return &Config{
		Port:              strings.TrimSpace(v.GetString("PORT")),
		CORSAllowedOrigin: v.GetString("CORS_ALLOWED_ORIGIN"),
		RateLimitPerMin:   v.GetInt("RATE_LIMIT_PER_MINUTE"),
		ShutdownTimeout:   v.GetDuration("SHUTDOWN_TIMEOUT"),

		LogLevel:  v.GetString("LOG_LEVEL"),
		LogFormat: v.GetString("LOG_FORMAT"),

		LocalBackend: strings.ToLower(v.GetString("LOCAL_BACKEND")),
		LedgerFile:   v.GetString("LEDGER_FILE"),
		SQLiteDBPath: v.GetString("SQLITE_DB_PATH"),

		RemoteBackend:            strings.ToLower(v.GetString("REMOTE_BACKEND")),
		GoogleSpreadsheetID:      strings.TrimSpace(v.GetString("GOOGLE_SPREADSHEET_ID")),
		GoogleSheetName:          strings.TrimSpace(v.GetString("GOOGLE_SHEET_NAME")),
		GoogleServiceAccountJSON: v.GetString("GOOGLE_SERVICE_ACCOUNT_JSON"),
		GoogleServiceAccountFile: v.GetString("GOOGLE_SERVICE_ACCOUNT_FILE"),
		SheetMetadataTTL:         v.GetDuration("SHEET_METADATA_TTL"),

		AMQPURL:      strings.TrimSpace(v.GetString("AMQP_URL")),
		AMQPExchange: v.GetString("AMQP_EXCHANGE"),

		AuthUsers: v.GetString("AUTH_USERS"),

		ReportTitle: v.GetString("REPORT_TITLE"),
	}, nil
}

// Users parses the AUTH_USERS credential table.
func (c *Config) Users() (map[string]auth.Credential, error) {
	return auth.ParseUsers(c.AuthUsers)
}

// Validate validates the configuration and returns an error listing every
// problem found.
func (c *Config) Validate() error {
	var errors []string

	if port, err := strconv.Atoi(c.Port); err != nil {
		errors = append(errors, fmt.Sprintf("invalid port '%s': must be a number", c.Port))
	} else if port < 1 || port > 65535 {
		errors = append(errors, fmt.Sprintf("invalid port %d: must be between 1 and 65535", port))
	}

	validLocal := []string{"file", "sqlite", "memory"}
	if !slices.Contains(validLocal, c.LocalBackend) {
		errors = append(errors, fmt.Sprintf("invalid local backend '%s': must be one of %v", c.LocalBackend, validLocal))
	}
	if c.LocalBackend == "file" && strings.TrimSpace(c.LedgerFile) == "" {
		errors = append(errors, "ledger file path cannot be empty when using file backend")
	}
	if c.LocalBackend == "sqlite" && strings.TrimSpace(c.SQLiteDBPath) == "" {
		errors = append(errors, "SQLite database path cannot be empty when using sqlite backend")
	}

	validRemote := []string{"sheets", "memory", "none"}
	if !slices.Contains(validRemote, c.RemoteBackend) {
		errors = append(errors, fmt.Sprintf("invalid remote backend '%s': must be one of %v", c.RemoteBackend, validRemote))
	}
	if c.RemoteBackend == "sheets" && c.SheetMetadataTTL <= 0 {
		errors = append(errors, fmt.Sprintf("invalid sheet metadata TTL %v: must be positive", c.SheetMetadataTTL))
	}

	if c.AMQPURL != "" {
		if parsedURL, err := url.Parse(c.AMQPURL); err != nil {
			errors = append(errors, fmt.Sprintf("invalid AMQP URL '%s': %v", c.AMQPURL, err))
		} else if parsedURL.Scheme != "amqp" && parsedURL.Scheme != "amqps" {
			errors = append(errors, fmt.Sprintf("invalid AMQP URL scheme '%s': must be 'amqp' or 'amqps'", parsedURL.Scheme))
		}
		if c.AMQPExchange == "" {
			errors = append(errors, "AMQP exchange name cannot be empty when AMQP URL is provided")
		}
	}

	if _, err := c.Users(); err != nil {
		errors = append(errors, fmt.Sprintf("invalid AUTH_USERS: %v", err))
	}

	if c.RateLimitPerMin < 1 {
		errors = append(errors, fmt.Sprintf("invalid rate limit %d: must be at least 1 per minute", c.RateLimitPerMin))
	}
	if c.ShutdownTimeout <= 0 {
		errors = append(errors, fmt.Sprintf("invalid shutdown timeout %v: must be positive", c.ShutdownTimeout))
	}

	validFormats := []string{"text", "json"}
	if !slices.Contains(validFormats, strings.ToLower(c.LogFormat)) {
		errors = append(errors, fmt.Sprintf("invalid log format '%s': must be one of %v", c.LogFormat, validFormats))
	}

	if len(errors) > 0 {
		return fmt.Errorf("configuration validation failed:\n- %s", strings.Join(errors, "\n- "))
	}
	return nil
}
