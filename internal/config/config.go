package config

import (
	"fmt"
	"log/slog"
	"os"
	"strings"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/udisondev/pagelock/internal/constants"
)

// Pagelock holds all configuration for the page proxy and the batch CLI.
type Pagelock struct {
	LogLevel string `yaml:"log_level"` // debug, info, warn, error

	HTTP     HTTPConfig     `yaml:"http"`
	Output   OutputConfig   `yaml:"output"`
	Cache    CacheConfig    `yaml:"cache"`
	Database DatabaseConfig `yaml:"database"`

	// Site rules
	GigaViewer     GigaViewerConfig `yaml:"gigaviewer"`
	MagazinePocket SiteConfig       `yaml:"magazinepocket"`
	SpeedBinb      SiteConfig       `yaml:"speedbinb"`
	ColaManga      ColaMangaConfig  `yaml:"colamanga"`
	ComicFuz       SiteConfig       `yaml:"comicfuz"`
	EgoToons       EgoToonsConfig   `yaml:"egotoons"`
	KadoComi       KadoComiConfig   `yaml:"kadocomi"`
	Nicovideo      SiteConfig       `yaml:"nicovideo"`
}

// HTTPConfig holds the proxy listener and upstream client settings.
type HTTPConfig struct {
	ListenAddress  string        `yaml:"listen_address"`
	RequestTimeout time.Duration `yaml:"request_timeout"` // one page fetch, upstream included
	KeyTimeout     time.Duration `yaml:"key_timeout"`     // one auxiliary key request
	UserAgent      string        `yaml:"user_agent"`
}

// OutputConfig controls re-encoding of descrambled pages.
type OutputConfig struct {
	JPEGQuality int  `yaml:"jpeg_quality"`
	KeepPNG     bool `yaml:"keep_png"`
	MaxWidth    int  `yaml:"max_width"` // 0 = no scaling
}

// CacheConfig controls the key material cache.
type CacheConfig struct {
	TTL     time.Duration `yaml:"ttl"`     // 0 = process lifetime
	Persist bool          `yaml:"persist"` // write through to PostgreSQL
}

// DatabaseConfig holds PostgreSQL connection parameters.
type DatabaseConfig struct {
	Host     string `yaml:"host"`
	Port     int    `yaml:"port"`
	User     string `yaml:"user"`
	Password string `yaml:"password"`
	DBName   string `yaml:"dbname"`
	SSLMode  string `yaml:"sslmode"`
}

// DSN returns the PostgreSQL connection string.
func (d DatabaseConfig) DSN() string {
	return fmt.Sprintf(
		"postgres://%s:%s@%s:%d/%s?sslmode=%s",
		d.User, d.Password, d.Host, d.Port, d.DBName, d.SSLMode,
	)
}

// SiteConfig toggles a rule that needs no extra settings.
type SiteConfig struct {
	Enabled bool `yaml:"enabled"`
}

// GigaViewerConfig lists CDN prefixes whose pages are grid transposed.
type GigaViewerConfig struct {
	Enabled     bool     `yaml:"enabled"`
	CDNPrefixes []string `yaml:"cdn_prefixes"`
}

// ColaMangaConfig points at the reader script holding the keyType mapping.
type ColaMangaConfig struct {
	Enabled   bool   `yaml:"enabled"`
	ScriptURL string `yaml:"script_url"`
}

// EgoToonsConfig holds AES-GCM key derivation parameters.
type EgoToonsConfig struct {
	Enabled    bool   `yaml:"enabled"`
	URLPattern string `yaml:"url_pattern"` // regexp matched against the page URL
	Passphrase string `yaml:"passphrase"`
	Salt       string `yaml:"salt"`
	Iterations int    `yaml:"iterations"`
}

// KadoComiConfig restricts the XOR rule to one CDN, empty prefix matches any host.
type KadoComiConfig struct {
	Enabled   bool   `yaml:"enabled"`
	CDNPrefix string `yaml:"cdn_prefix"`
}

// DefaultPagelock returns Pagelock config with sensible defaults.
func DefaultPagelock() Pagelock {
	return Pagelock{
		LogLevel: "info",
		HTTP: HTTPConfig{
			ListenAddress:  "127.0.0.1:8089",
			RequestTimeout: 60 * time.Second,
			KeyTimeout:     constants.KeyFetchTimeout,
			UserAgent:      "Mozilla/5.0 (Linux; Android 13) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/120.0 Mobile Safari/537.36",
		},
		Output: OutputConfig{
			JPEGQuality: constants.DefaultJPEGQuality,
		},
		Cache: CacheConfig{
			TTL: 6 * time.Hour,
		},
		Database: DatabaseConfig{
			Host:     "127.0.0.1",
			Port:     5432,
			User:     "pagelock",
			Password: "pagelock",
			DBName:   "pagelock",
			SSLMode:  "disable",
		},
		GigaViewer: GigaViewerConfig{
			Enabled: true,
			CDNPrefixes: []string{
				"https://cdn-img.shonenjumpplus.com/public/page",
				"https://cdn-img.comic-days.com/public/page",
				"https://cdn-img.tonarinoyj.jp/public/page",
			},
		},
		MagazinePocket: SiteConfig{Enabled: true},
		SpeedBinb:      SiteConfig{Enabled: true},
		ColaManga:      ColaMangaConfig{},
		ComicFuz:       SiteConfig{Enabled: true},
		EgoToons: EgoToonsConfig{
			Iterations: constants.PBKDF2Iterations,
		},
		KadoComi:  KadoComiConfig{Enabled: true},
		Nicovideo: SiteConfig{Enabled: true},
	}
}

// LoadPagelock loads config from a YAML file.
// If the file doesn't exist, returns defaults.
func LoadPagelock(path string) (Pagelock, error) {
	cfg := DefaultPagelock()

	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return cfg, nil
		}
		return cfg, fmt.Errorf("reading config %s: %w", path, err)
	}

	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return cfg, fmt.Errorf("parsing config %s: %w", path, err)
	}

	if err := cfg.Validate(); err != nil {
		return cfg, fmt.Errorf("validating config %s: %w", path, err)
	}

	return cfg, nil
}

// Validate checks settings that would otherwise fail on the first page.
func (c Pagelock) Validate() error {
	if c.Output.JPEGQuality < 0 || c.Output.JPEGQuality > 100 {
		return fmt.Errorf("output.jpeg_quality %d out of range 0..100", c.Output.JPEGQuality)
	}
	if c.ColaManga.Enabled && c.ColaManga.ScriptURL == "" {
		return fmt.Errorf("colamanga.script_url is required when colamanga is enabled")
	}
	if c.EgoToons.Enabled && (c.EgoToons.URLPattern == "" || c.EgoToons.Passphrase == "") {
		return fmt.Errorf("egotoons.url_pattern and egotoons.passphrase are required when egotoons is enabled")
	}
	if _, err := ParseLogLevel(c.LogLevel); err != nil {
		return err
	}
	return nil
}

// ParseLogLevel maps log_level to a slog level. Empty means info.
func ParseLogLevel(s string) (slog.Level, error) {
	switch strings.ToLower(s) {
	case "debug":
		return slog.LevelDebug, nil
	case "", "info":
		return slog.LevelInfo, nil
	case "warn", "warning":
		return slog.LevelWarn, nil
	case "error":
		return slog.LevelError, nil
	default:
		return slog.LevelInfo, fmt.Errorf("unknown log_level %q", s)
	}
}
