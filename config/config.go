package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"finnsync/models"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

const DefaultMaxPrice = 8500000

type Config struct {
	Dir       string
	DBPath    string
	LogFile   string
	LogLevel  string
	Filters   FilterConfig
	Reconcile ReconcileConfig
	Commute   CommuteConfig
	Sheets    SheetsConfig
	Scraper   ScraperConfig
	Scheduler SchedulerConfig
	Mirror    MirrorConfig
	S3        S3Config
	Sites     map[models.Kind]*SiteConfig
}

type FilterConfig struct {
	MaxPrice        *int
	IncludeUnlisted bool
}

type ReconcileConfig struct {
	// MinSnapshotRatio guards deactivation against truncated crawls.
	// Zero disables the check.
	MinSnapshotRatio float64
}

type CommuteConfig struct {
	APIKey      string
	RPS         float64
	AutoConfirm bool
	Anchors     map[string]string `yaml:"anchors"`
	Morning     DepartureConfig   `yaml:"morning"`
	ReturnHour  int               `yaml:"return_hour"`
	Timezone    string            `yaml:"timezone"`
}

type DepartureConfig struct {
	Weekday string `yaml:"weekday"`
	Hour    int    `yaml:"hour"`
}

type SheetsConfig struct {
	SpreadsheetID   string
	CredentialsFile string
}

type ScraperConfig struct {
	FetchMode string
	ProxyURL  string
	DelayMS   int
}

type SchedulerConfig struct {
	Interval time.Duration
	Cron     string
}

type MirrorConfig struct {
	DatabaseURL string
}

type S3Config struct {
	Bucket          string
	Region          string
	Endpoint        string
	AccessKeyID     string
	SecretAccessKey string
}

func (c S3Config) Enabled() bool {
	return c.Bucket != ""
}

type SiteConfig struct {
	ID            models.Kind `yaml:"id"`
	Name          string      `yaml:"name"`
	SearchURL     string      `yaml:"search_url"`
	LinkPattern   string      `yaml:"link_pattern"`
	BaseURL       string      `yaml:"base_url"`
	PageParam     string      `yaml:"page_param"`
	DelayMS       int         `yaml:"delay_ms"`
	Sheet         string      `yaml:"sheet"`
	UnlistedSheet string      `yaml:"unlisted_sheet"`
	Commute       bool        `yaml:"commute"`
}

// Load reads .env, the environment and the YAML files under dir.
func Load(dir string) (*Config, error) {
	_ = godotenv.Load()

	if dir == "" {
		dir = getEnv("CONFIG_DIR", "config")
	}

	maxPrice, err := parseMaxPrice(os.Getenv("MAX_PRICE"))
	if err != nil {
		return nil, err
	}

	cfg := &Config{
		Dir:      dir,
		DBPath:   getEnv("DB_PATH", "properties.db"),
		LogFile:  getEnv("LOG_FILE", "finnsync.log"),
		LogLevel: getEnv("LOG_LEVEL", "info"),
		Filters: FilterConfig{
			MaxPrice:        maxPrice,
			IncludeUnlisted: getEnvBool("INCLUDE_UNLISTED", true),
		},
		Reconcile: ReconcileConfig{
			MinSnapshotRatio: getEnvFloat("MIN_SNAPSHOT_RATIO", 0),
		},
		Commute: CommuteConfig{
			APIKey:      os.Getenv("GOOGLE_MAPS_API_KEY"),
			RPS:         getEnvFloat("COMMUTE_RPS", 0),
			AutoConfirm: getEnvBool("COMMUTE_AUTO_CONFIRM", false),
			Morning:     DepartureConfig{Weekday: "monday", Hour: 8},
			ReturnHour:  16,
			Timezone:    "Europe/Oslo",
		},
		Sheets: SheetsConfig{
			SpreadsheetID:   os.Getenv("SPREADSHEET_ID"),
			CredentialsFile: getEnv("GOOGLE_CREDENTIALS_FILE", filepath.Join(dir, "credentials.json")),
		},
		Scraper: ScraperConfig{
			FetchMode: getEnv("FETCH_MODE", "http"),
			ProxyURL:  os.Getenv("HTTP_PROXY_URL"),
			DelayMS:   getEnvInt("SCRAPE_DELAY_MS", 300),
		},
		Scheduler: SchedulerConfig{
			Cron: os.Getenv("SCRAPE_CRON"),
		},
		Mirror: MirrorConfig{
			DatabaseURL: os.Getenv("MIRROR_DATABASE_URL"),
		},
		S3: S3Config{
			Bucket:          os.Getenv("S3_BUCKET"),
			Region:          getEnv("S3_REGION", "eu-north-1"),
			Endpoint:        os.Getenv("S3_ENDPOINT"),
			AccessKeyID:     os.Getenv("S3_ACCESS_KEY_ID"),
			SecretAccessKey: os.Getenv("S3_SECRET_ACCESS_KEY"),
		},
		Sites: make(map[models.Kind]*SiteConfig),
	}

	if interval := os.Getenv("SCRAPE_INTERVAL"); interval != "" {
		d, err := time.ParseDuration(interval)
		if err != nil {
			return nil, fmt.Errorf("SCRAPE_INTERVAL: %w", err)
		}
		cfg.Scheduler.Interval = d
	}

	if err := cfg.loadSiteConfigs(); err != nil {
		return nil, err
	}
	if err := cfg.loadCommuteConfig(); err != nil {
		return nil, err
	}

	return cfg, nil
}

// ExportFilter returns the filter used for export and enrichment.
func (c *Config) ExportFilter() models.ExportFilter {
	return models.ExportFilter{
		MaxPrice:        c.Filters.MaxPrice,
		IncludeUnlisted: c.Filters.IncludeUnlisted,
	}
}

// Site returns the site definition for kind, falling back to defaults when
// no YAML file was found.
func (c *Config) Site(kind models.Kind) *SiteConfig {
	if s, ok := c.Sites[kind]; ok {
		return s
	}
	return defaultSite(kind)
}

func (c *Config) loadSiteConfigs() error {
	siteDir := filepath.Join(c.Dir, "sites")
	entries, err := os.ReadDir(siteDir)
	if err != nil {
		if os.IsNotExist(err) {
			return nil
		}
		return err
	}

	for _, entry := range entries {
		if entry.IsDir() || filepath.Ext(entry.Name()) != ".yaml" {
			continue
		}

		path := filepath.Join(siteDir, entry.Name())
		data, err := os.ReadFile(path)
		if err != nil {
			return err
		}

		site := &SiteConfig{}
		if err := yaml.Unmarshal(data, site); err != nil {
			return fmt.Errorf("parse %s: %w", path, err)
		}
		if _, err := models.ParseKind(string(site.ID)); err != nil {
			return fmt.Errorf("%s: %w", path, err)
		}
		applySiteDefaults(site)
		c.Sites[site.ID] = site
	}

	return nil
}

func (c *Config) loadCommuteConfig() error {
	path := filepath.Join(c.Dir, "commute.yaml")
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil
		}
		return err
	}
	if err := yaml.Unmarshal(data, &c.Commute); err != nil {
		return fmt.Errorf("parse %s: %w", path, err)
	}
	return nil
}

func defaultSite(kind models.Kind) *SiteConfig {
	site := &SiteConfig{ID: kind, Name: string(kind)}
	applySiteDefaults(site)
	return site
}

func applySiteDefaults(site *SiteConfig) {
	if site.BaseURL == "" {
		site.BaseURL = "https://www.finn.no"
	}
	if site.PageParam == "" {
		site.PageParam = "page"
	}
	if site.Sheet == "" {
		switch site.ID {
		case models.KindEiendom:
			site.Sheet = "Eie"
		case models.KindRental:
			site.Sheet = "Leie"
		case models.KindJobs:
			site.Sheet = "Jobb"
		}
	}
	if site.UnlistedSheet == "" && site.Sheet != "" {
		site.UnlistedSheet = site.Sheet + "(unlisted)"
	}
}

func parseMaxPrice(val string) (*int, error) {
	switch strings.ToLower(strings.TrimSpace(val)) {
	case "":
		return models.IntPtr(DefaultMaxPrice), nil
	case "0", "none", "off", "false":
		return nil, nil
	}
	i, err := strconv.Atoi(strings.TrimSpace(val))
	if err != nil {
		return nil, fmt.Errorf("MAX_PRICE: %w", err)
	}
	return &i, nil
}

func getEnv(key, defaultVal string) string {
	if val := os.Getenv(key); val != "" {
		return val
	}
	return defaultVal
}

func getEnvInt(key string, defaultVal int) int {
	if val := os.Getenv(key); val != "" {
		if i, err := strconv.Atoi(val); err == nil {
			return i
		}
	}
	return defaultVal
}

func getEnvBool(key string, defaultVal bool) bool {
	if val := os.Getenv(key); val != "" {
		if b, err := strconv.ParseBool(val); err == nil {
			return b
		}
	}
	return defaultVal
}

func getEnvFloat(key string, defaultVal float64) float64 {
	if val := os.Getenv(key); val != "" {
		if f, err := strconv.ParseFloat(val, 64); err == nil {
			return f
		}
	}
	return defaultVal
}
