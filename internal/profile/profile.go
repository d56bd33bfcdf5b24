package profile

import (
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/pkg/errors"
)

// Profile is the configuration to start the scheduling server.
type Profile struct {
	// Mode can be "prod" or "dev" or "demo"
	Mode string
	// Addr is the binding address for server
	Addr string
	// Port is the binding port for server
	Port int
	// Data is the data directory
	Data string
	// Version is the current version of server
	Version string

	// Timezone is the reference timezone all time expressions resolve in.
	Timezone string
	// Users are the calendar owners the agent schedules for. The first
	// user is the organizer for new events.
	Users []string
	// TokenDir holds per-user OAuth token files (token_<user>.json).
	TokenDir string
	// CredentialsFile is the Google OAuth client secrets file.
	CredentialsFile string

	// HistoryDriver is the session history backend ("memory" or "sqlite").
	HistoryDriver string
	// DSN points to the sqlite session history database.
	DSN string

	// Oracle configuration. The oracle is optional; without an API key,
	// ambiguous inputs fail fast instead of being clarified.
	AIAPIKey  string // SCHEDAGENT_AI_API_KEY
	AIBaseURL string // SCHEDAGENT_AI_BASE_URL (default: https://api.openai.com/v1)
	AIModel   string // SCHEDAGENT_AI_MODEL (default: gpt-4o-mini)
}

func (p *Profile) IsDev() bool {
	return p.Mode != "prod"
}

// IsOracleEnabled returns true if an oracle API key is configured.
func (p *Profile) IsOracleEnabled() bool {
	return p.AIAPIKey != ""
}

// Location resolves the configured timezone.
func (p *Profile) Location() (*time.Location, error) {
	if p.Timezone == "" {
		return time.UTC, nil
	}
	loc, err := time.LoadLocation(p.Timezone)
	if err != nil {
		return nil, errors.Wrapf(err, "invalid timezone %q", p.Timezone)
	}
	return loc, nil
}

// getEnvOrDefault returns the environment variable value or the default value.
func getEnvOrDefault(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

// FromEnv loads configuration from SCHEDAGENT_* environment variables.
func (p *Profile) FromEnv() {
	p.Mode = getEnvOrDefault("SCHEDAGENT_MODE", "demo")
	p.Addr = getEnvOrDefault("SCHEDAGENT_ADDR", "")
	if port, err := strconv.Atoi(getEnvOrDefault("SCHEDAGENT_PORT", "8230")); err == nil {
		p.Port = port
	}
	p.Data = os.Getenv("SCHEDAGENT_DATA")

	p.Timezone = getEnvOrDefault("SCHEDAGENT_TIMEZONE", "UTC")
	if users := os.Getenv("SCHEDAGENT_USERS"); users != "" {
		for _, u := range strings.Split(users, ",") {
			if u = strings.TrimSpace(u); u != "" {
				p.Users = append(p.Users, u)
			}
		}
	}
	p.TokenDir = getEnvOrDefault("SCHEDAGENT_TOKEN_DIR", "tokens")
	p.CredentialsFile = getEnvOrDefault("SCHEDAGENT_CREDENTIALS_FILE", "credentials.json")

	p.HistoryDriver = getEnvOrDefault("SCHEDAGENT_HISTORY_DRIVER", "memory")
	p.DSN = os.Getenv("SCHEDAGENT_DSN")

	p.AIAPIKey = os.Getenv("SCHEDAGENT_AI_API_KEY")
	p.AIBaseURL = getEnvOrDefault("SCHEDAGENT_AI_BASE_URL", "https://api.openai.com/v1")
	p.AIModel = getEnvOrDefault("SCHEDAGENT_AI_MODEL", "gpt-4o-mini")
}

func checkDataDir(dataDir string) (string, error) {
	// Convert to absolute path if relative path is supplied.
	if !filepath.IsAbs(dataDir) {
		relativeDir := filepath.Join(filepath.Dir(os.Args[0]), dataDir)
		absDir, err := filepath.Abs(relativeDir)
		if err != nil {
			return "", err
		}
		dataDir = absDir
	}

	// Trim trailing \ or / in case user supplies
	dataDir = strings.TrimRight(dataDir, "\\/")
	if _, err := os.Stat(dataDir); err != nil {
		return "", errors.Wrapf(err, "unable to access data folder %s", dataDir)
	}
	return dataDir, nil
}

func (p *Profile) Validate() error {
	if p.Mode != "demo" && p.Mode != "dev" && p.Mode != "prod" {
		p.Mode = "demo"
	}

	if p.Port <= 0 || p.Port > 65535 {
		return errors.Errorf("invalid port %d", p.Port)
	}

	if _, err := p.Location(); err != nil {
		return err
	}

	if p.HistoryDriver != "memory" && p.HistoryDriver != "sqlite" {
		return errors.Errorf("unknown history driver %q (valid: memory, sqlite)", p.HistoryDriver)
	}

	if p.HistoryDriver == "sqlite" {
		if p.Data == "" {
			p.Data = "."
		}
		dataDir, err := checkDataDir(p.Data)
		if err != nil {
			return err
		}
		p.Data = dataDir
		if p.DSN == "" {
			dbFile := fmt.Sprintf("schedagent_%s.db", p.Mode)
			p.DSN = filepath.Join(dataDir, dbFile)
		}
	}

	return nil
}
