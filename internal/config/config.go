package config

import (
	"fmt"
	"log/slog"
	"os"
	"strconv"
	"strings"

	"github.com/joho/godotenv"
)

// Config holds configuration for the graphview server and graphctl.
type Config struct {
	AppTitle  string
	AppPrefix string

	BindAddr         string
	PortCandidates   []string
	PortAutoFallback bool

	PageLen          int
	DatabaseURL      string
	SeedDemo         bool
	ChartOptionsFile string

	// CDP connection settings
	CDPAddress     string
	CDPPort        int
	TabURLFilter   string
	EvalTimeoutMS  int
	FetchTimeoutMS int

	BrowserLaunch     bool
	BrowserHeadless   bool
	BrowserProfileDir string
	BrowserPath       string

	SnapshotDir  string
	SnapshotKeep int
	JournalDir   string
	NotifyURL    string

	LogLevel string
	LogFile  string
}

// Load reads configuration from environment variables and an optional .env file.
func Load() (*Config, error) {
	if err := godotenv.Load(); err != nil {
		slog.Debug("failed to load .env file", "error", err)
	}

	cfg := &Config{
		AppTitle:          getEnvOrDefault("APP_TITLE", "Lakota"),
		AppPrefix:         strings.TrimRight(getEnvOrDefault("APP_PREFIX", ""), "/"),
		BindAddr:          getEnvOrDefault("GRAPHVIEW_BIND_ADDR", "127.0.0.1:8190"),
		PortCandidates:    getEnvListOrDefault("GRAPHVIEW_PORT_CANDIDATES", []string{"127.0.0.1:8191", "127.0.0.1:8192"}),
		PortAutoFallback:  getEnvBoolOrDefault("GRAPHVIEW_PORT_AUTO_FALLBACK", true),
		PageLen:           getEnvIntOrDefault("PAGE_LEN", 20000),
		DatabaseURL:       getEnvOrDefault("DATABASE_URL", ""),
		SeedDemo:          getEnvBoolOrDefault("SEED_DEMO", true),
		ChartOptionsFile:  getEnvOrDefault("CHART_OPTIONS_FILE", ""),
		CDPAddress:        getEnvOrDefault("CHROMIUM_CDP_ADDRESS", "127.0.0.1"),
		CDPPort:           getEnvIntOrDefault("CHROMIUM_CDP_PORT", 9220),
		TabURLFilter:      getEnvOrDefault("GRAPHVIEW_TAB_URL_FILTER", "/graph/"),
		EvalTimeoutMS:     getEnvIntOrDefault("GRAPHVIEW_EVAL_TIMEOUT_MS", 5000),
		FetchTimeoutMS:    getEnvIntOrDefault("FETCH_TIMEOUT_MS", 0),
		BrowserLaunch:     getEnvBoolOrDefault("BROWSER_LAUNCH", false),
		BrowserHeadless:   getEnvBoolOrDefault("BROWSER_HEADLESS", true),
		BrowserProfileDir: getEnvOrDefault("BROWSER_PROFILE_DIR", "./browser_profile"),
		BrowserPath:       getEnvOrDefault("BROWSER_PATH", ""),
		SnapshotDir:       getEnvOrDefault("SNAPSHOT_DIR", "./snapshots"),
		SnapshotKeep:      getEnvIntOrDefault("SNAPSHOT_KEEP", 200),
		JournalDir:        getEnvOrDefault("JOURNAL_DIR", "./journal"),
		NotifyURL:         getEnvOrDefault("NOTIFY_URL", ""),
		LogLevel:          strings.ToLower(getEnvOrDefault("LOG_LEVEL", "info")),
		LogFile:           getEnvOrDefault("LOG_FILE", "logs/graphview.log"),
	}
	if cfg.EvalTimeoutMS < 1000 {
		cfg.EvalTimeoutMS = 1000
	}
	if cfg.FetchTimeoutMS < 0 {
		cfg.FetchTimeoutMS = 0
	}
	if cfg.PageLen <= 0 {
		return nil, fmt.Errorf("PAGE_LEN must be positive, got %d", cfg.PageLen)
	}
	return cfg, nil
}

// CDPURL returns the browser's HTTP debugging endpoint.
func (c *Config) CDPURL() string {
	return "http://" + c.CDPAddress + ":" + strconv.Itoa(c.CDPPort)
}

func getEnvOrDefault(key, defaultVal string) string {
	if val := os.Getenv(key); val != "" {
		return val
	}
	return defaultVal
}

func getEnvIntOrDefault(key string, defaultVal int) int {
	if val := os.Getenv(key); val != "" {
		if i, err := strconv.Atoi(val); err == nil {
			return i
		}
	}
	return defaultVal
}

func getEnvBoolOrDefault(key string, defaultVal bool) bool {
	if val := os.Getenv(key); val != "" {
		if b, err := strconv.ParseBool(val); err == nil {
			return b
		}
	}
	return defaultVal
}

func getEnvListOrDefault(key string, defaultVal []string) []string {
	val := os.Getenv(key)
	if val == "" {
		return defaultVal
	}
	var out []string
	for _, part := range strings.Split(val, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}
