package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

type Config struct {
	DBPath     string
	RawMailDir string
	OutputDir  string
	CacheFile  string
	LogLevel   string

	TrackerBackend          string
	NotionToken             string
	NotionDatabaseID        string
	NotionReportsDatabaseID string

	OpenRouterKey     string
	OpenRouterModel   string
	OpenRouterBaseURL string
	LLMTimeoutMs      int
	LLMRateLimitRPS   int
	LLMRetryDelays    []time.Duration
	LLMMaxInputChars  int

	MailProvider      string
	MailLabel         string
	MailFetchMax      int
	MailNewerThanDays int

	GmailClientID     string
	GmailClientSecret string
	GmailRedirectURI  string
	GmailRefreshToken string

	IMAPHost     string
	IMAPPort     int
	IMAPSecure   bool
	IMAPUser     string
	IMAPPassword string
	IMAPMarkSeen bool

	ListenerIntervalSec int
	ReportWindowDays    int
	ReportIntervalDays  int
}

// DefaultRetryDelays is the fixed rate-limit backoff schedule.
var DefaultRetryDelays = []time.Duration{10 * time.Second, 20 * time.Second, 30 * time.Second}

func Load() (Config, error) {
	_ = godotenv.Load()

	cwd, err := os.Getwd()
	if err != nil {
		return Config{}, err
	}

	cfg := Config{
		DBPath:     getEnv("DB_PATH", filepath.Join(cwd, "data", "jobsync.db")),
		RawMailDir: getEnv("MAIL_RAW_DIR", filepath.Join(cwd, "data", "raw")),
		OutputDir:  getEnv("OUTPUT_DIR", filepath.Join(cwd, "out")),
		CacheFile:  getEnv("CACHE_FILE", ""),
		LogLevel:   getEnv("LOG_LEVEL", "info"),

		TrackerBackend:          strings.ToLower(getEnv("TRACKER_BACKEND", "notion")),
		NotionToken:             getEnv("NOTION_TOKEN", ""),
		NotionDatabaseID:        normalizeNotionID(getEnv("NOTION_DATABASE_ID", "")),
		NotionReportsDatabaseID: normalizeNotionID(getEnv("NOTION_WEEKLY_REPORTS_DB_ID", "")),

		OpenRouterKey:     getEnv("OPENROUTER_KEY", ""),
		OpenRouterModel:   getEnv("OPENROUTER_MODEL", "mistralai/mistral-small-3.2-24b-instruct:free"),
		OpenRouterBaseURL: getEnv("OPENROUTER_BASE_URL", "https://openrouter.ai/api/v1"),
		LLMTimeoutMs:      getEnvInt("LLM_TIMEOUT_MS", 60000),
		LLMRateLimitRPS:   getEnvInt("LLM_RATE_LIMIT_RPS", 1),
		LLMRetryDelays:    getEnvDurations("LLM_RETRY_DELAYS", DefaultRetryDelays),
		LLMMaxInputChars:  getEnvInt("LLM_MAX_INPUT_CHARS", 3000),

		MailProvider:      strings.ToLower(getEnv("MAIL_PROVIDER", "gmail")),
		MailLabel:         getEnv("MAIL_LABEL", "INBOX"),
		MailFetchMax:      getEnvInt("MAIL_FETCH_MAX", 10),
		MailNewerThanDays: getEnvInt("MAIL_NEWER_THAN_DAYS", 7),

		GmailClientID:     getEnv("GMAIL_CLIENT_ID", ""),
		GmailClientSecret: getEnv("GMAIL_CLIENT_SECRET", ""),
		GmailRedirectURI:  getEnv("GMAIL_REDIRECT_URI", "https://developers.google.com/oauthplayground"),
		GmailRefreshToken: getEnv("GMAIL_REFRESH_TOKEN", ""),

		IMAPHost:     getEnv("IMAP_HOST", ""),
		IMAPPort:     getEnvInt("IMAP_PORT", 993),
		IMAPSecure:   getEnvBool("IMAP_SECURE", true),
		IMAPUser:     getEnv("IMAP_USER", ""),
		IMAPPassword: getEnv("IMAP_PASSWORD", ""),
		IMAPMarkSeen: getEnvBool("IMAP_MARK_SEEN", false),

		ListenerIntervalSec: getEnvInt("LISTENER_INTERVAL_SEC", 3600),
		ReportWindowDays:    getEnvInt("REPORT_WINDOW_DAYS", 7),
		ReportIntervalDays:  getEnvInt("REPORT_INTERVAL_DAYS", 7),
	}

	return cfg, nil
}

func (c Config) Require(name, value string) error {
	if strings.TrimSpace(value) == "" {
		return fmt.Errorf("missing required env var: %s", name)
	}
	return nil
}

// normalizeNotionID strips the dashes Notion shows in share links.
func normalizeNotionID(id string) string {
	return strings.ReplaceAll(strings.TrimSpace(id), "-", "")
}

func getEnv(key, fallback string) string {
	if value, ok := os.LookupEnv(key); ok {
		return value
	}
	return fallback
}

func getEnvInt(key string, fallback int) int {
	value := getEnv(key, "")
	if value == "" {
		return fallback
	}
	parsed, err := strconv.Atoi(value)
	if err != nil {
		return fallback
	}
	return parsed
}

func getEnvBool(key string, fallback bool) bool {
	value := strings.ToLower(strings.TrimSpace(getEnv(key, "")))
	if value == "" {
		return fallback
	}
	if value == "1" || value == "true" || value == "yes" || value == "on" {
		return true
	}
	if value == "0" || value == "false" || value == "no" || value == "off" {
		return false
	}
	return fallback
}

// getEnvDurations parses a comma separated list such as "10s,20s,30s".
// Any malformed entry falls back to the whole default list.
func getEnvDurations(key string, fallback []time.Duration) []time.Duration {
	value := strings.TrimSpace(getEnv(key, ""))
	if value == "" {
		return append([]time.Duration(nil), fallback...)
	}
	out := []time.Duration{}
	for _, part := range strings.Split(value, ",") {
		d, err := time.ParseDuration(strings.TrimSpace(part))
		if err != nil || d < 0 {
			return append([]time.Duration(nil), fallback...)
		}
		out = append(out, d)
	}
	return out
}
