// Package config loads the settlement-books configuration from environment
// variables, an optional .env file and the YAML rates file.
package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"

	"github.com/joho/godotenv"
)

// Config represents the application configuration.
type Config struct {
	Ledger   LedgerConfig
	Books    BooksConfig
	Currency string
	Debug    bool
}

// LedgerConfig configures the HTTP ledger sink.
type LedgerConfig struct {
	APIURL       string
	ClientID     string
	ClientSecret string
	AccessToken  string
	CompanyID    int64
}

// BooksConfig locates local files.
type BooksConfig struct {
	Root           string
	DBPath         string
	ExtractDir     string
	AccountMapPath string
	RatesPath      string
}

// Load loads configuration from environment variables.
// It loads .env from the current directory when present, or the given file.
func Load(envPath ...string) (*Config, error) {
	if len(envPath) > 0 && envPath[0] != "" {
		if err := godotenv.Load(envPath[0]); err != nil {
			return nil, fmt.Errorf("failed to load .env file: %w", err)
		}
	} else {
		_ = godotenv.Load()
	}

	companyID, err := parseInt64Env("LEDGER_COMPANY_ID", 0)
	if err != nil {
		return nil, fmt.Errorf("invalid LEDGER_COMPANY_ID: %w", err)
	}

	return &Config{
		Ledger: LedgerConfig{
			APIURL:       getEnvOrDefault("LEDGER_API_URL", "http://localhost:8080"),
			ClientID:     os.Getenv("LEDGER_CLIENT_ID"),
			ClientSecret: os.Getenv("LEDGER_CLIENT_SECRET"),
			AccessToken:  os.Getenv("LEDGER_ACCESS_TOKEN"),
			CompanyID:    companyID,
		},
		Books: BooksConfig{
			Root:           getEnvOrDefault("BOOKS_ROOT", "./books"),
			DBPath:         os.Getenv("BOOKS_DB_PATH"),
			ExtractDir:     os.Getenv("BOOKS_EXTRACT_DIR"),
			AccountMapPath: getEnvOrDefault("ACCOUNT_MAP_PATH", "./config/account-map.yaml"),
			RatesPath:      getEnvOrDefault("RATES_PATH", "./config/rates.yaml"),
		},
		Currency: getEnvOrDefault("CURRENCY", "JPY"),
		Debug:    os.Getenv("DEBUG") == "true",
	}, nil
}

// Validate checks that the named settings are set, e.g.
// Validate([]string{"ledger", "companyId"}).
func (c *Config) Validate(required ...[]string) error {
	var missing []string
	for _, path := range required {
		if len(path) < 2 {
			continue
		}
		if c.lookup(path[0], path[1]) == "" {
			missing = append(missing, strings.Join(path, "."))
		}
	}
	if len(missing) > 0 {
		return fmt.Errorf("missing required configuration: %v\nPlease check your .env file or environment variables", missing)
	}
	return nil
}

// HasLedgerCredentials reports whether the ledger sink can authenticate,
// either with a static token or client credentials.
func (c *Config) HasLedgerCredentials() bool {
	return c.Ledger.AccessToken != "" || (c.Ledger.ClientID != "" && c.Ledger.ClientSecret != "")
}

func (c *Config) lookup(section, key string) string {
	switch section {
	case "ledger":
		switch key {
		case "apiUrl":
			return c.Ledger.APIURL
		case "clientId":
			return c.Ledger.ClientID
		case "clientSecret":
			return c.Ledger.ClientSecret
		case "accessToken":
			return c.Ledger.AccessToken
		case "companyId":
			if c.Ledger.CompanyID != 0 {
				return "set"
			}
		}
	case "books":
		switch key {
		case "root":
			return c.Books.Root
		case "dbPath":
			return c.Books.DBPath
		case "extractDir":
			return c.Books.ExtractDir
		case "accountMapPath":
			return c.Books.AccountMapPath
		case "ratesPath":
			return c.Books.RatesPath
		}
	}
	return ""
}

// getEnvOrDefault returns the value of the environment variable or a default value if not set.
func getEnvOrDefault(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

// parseInt64Env parses an int64 from an environment variable.
func parseInt64Env(key string, defaultValue int64) (int64, error) {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue, nil
	}
	parsed, err := strconv.ParseInt(value, 10, 64)
	if err != nil {
		return 0, fmt.Errorf("invalid integer value for %s: %s", key, value)
	}
	return parsed, nil
}
