package config

import (
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

type Config struct {
	Server    ServerConfig    `mapstructure:"server"`
	Database  DatabaseConfig  `mapstructure:"database"`
	Fetcher   FetcherConfig   `mapstructure:"fetcher"`
	Proxy     ProxyConfig     `mapstructure:"proxy"`
	Browser   BrowserConfig   `mapstructure:"browser"`
	Archive   ArchiveConfig   `mapstructure:"archive"`
	Scheduler SchedulerConfig `mapstructure:"scheduler"`
	Sources   SourcesConfig   `mapstructure:"sources"`
}

type ServerConfig struct {
	Port int    `mapstructure:"port"`
	Mode string `mapstructure:"mode"`
}

type DatabaseConfig struct {
	Driver   string `mapstructure:"driver"`
	Path     string `mapstructure:"path"`
	URL      string `mapstructure:"url"`
	Host     string `mapstructure:"host"`
	Port     int    `mapstructure:"port"`
	User     string `mapstructure:"user"`
	Password string `mapstructure:"password"`
	DBName   string `mapstructure:"dbname"`
	SSLMode  string `mapstructure:"sslmode"`

	MaxIdleConns    int           `mapstructure:"max_idle_conns"`
	MaxOpenConns    int           `mapstructure:"max_open_conns"`
	ConnMaxLifetime time.Duration `mapstructure:"conn_max_lifetime"`
	AutoMigrate     bool          `mapstructure:"auto_migrate"`
}

// DSN returns the connection string for the configured driver.
// DATABASE_URL, when set, wins for postgres.
func (c *DatabaseConfig) DSN() string {
	if c.Driver == "postgres" {
		if c.URL != "" {
			return c.URL
		}
		return fmt.Sprintf("host=%s port=%d user=%s password=%s dbname=%s sslmode=%s",
			c.Host, c.Port, c.User, c.Password, c.DBName, c.SSLMode)
	}
	return c.Path
}

type FetcherConfig struct {
	RequestDelay   time.Duration `mapstructure:"request_delay"`
	MaxRetries     int           `mapstructure:"max_retries"`
	RetryBaseDelay time.Duration `mapstructure:"retry_base_delay"`
	Timeout        time.Duration `mapstructure:"timeout"`
	UserAgent      string        `mapstructure:"user_agent"`
}

// ProxyConfig describes the optional outbound proxy.
// Port is resolved after unmarshalling since HTTPS_PROXY may hold a URL instead of a port.
type ProxyConfig struct {
	Enabled  bool   `mapstructure:"enabled"`
	Host     string `mapstructure:"host"`
	Port     int    `mapstructure:"-"`
	Username string `mapstructure:"username"`
	Password string `mapstructure:"password"`
}

type BrowserConfig struct {
	Headless bool          `mapstructure:"headless"`
	ExecPath string        `mapstructure:"exec_path"`
	Timeout  time.Duration `mapstructure:"timeout"`
	Settle   time.Duration `mapstructure:"settle"`
}

// ArchiveConfig configures the raw payload archive on S3-compatible storage.
type ArchiveConfig struct {
	Enabled   bool   `mapstructure:"enabled"`
	Endpoint  string `mapstructure:"endpoint"`
	AccessKey string `mapstructure:"access_key"`
	SecretKey string `mapstructure:"secret_key"`
	UseSSL    bool   `mapstructure:"use_ssl"`
	Bucket    string `mapstructure:"bucket"`
	Region    string `mapstructure:"region"`
	Prefix    string `mapstructure:"prefix"`
}

type SchedulerConfig struct {
	Enabled    bool `mapstructure:"enabled"`
	RunOnStart bool `mapstructure:"run_on_start"`
}

// SourceConfig is shared by every remote adapter.
type SourceConfig struct {
	Enabled  bool          `mapstructure:"enabled"`
	Interval time.Duration `mapstructure:"interval"`
	URL      string        `mapstructure:"url"`
}

type PeerlistConfig struct {
	SourceConfig `mapstructure:",squash"`
	// Years to scrape; empty means the previous two calendar years.
	Years []int `mapstructure:"years"`
}

type StagingConfig struct {
	SourceConfig `mapstructure:",squash"`
	Path         string `mapstructure:"path"`
	Name         string `mapstructure:"name"`
}

type SourcesConfig struct {
	// Scraping=false disables every source regardless of its own flag.
	Scraping              bool           `mapstructure:"scraping"`
	LayoffsFyi            SourceConfig   `mapstructure:"layoffs_fyi"`
	LayoffsFyiFederal     SourceConfig   `mapstructure:"layoffs_fyi_federal"`
	LayoffsTracker        SourceConfig   `mapstructure:"layoffstracker"`
	LayoffsTrackerNonTech SourceConfig   `mapstructure:"layoffstracker_nontech"`
	Peerlist              PeerlistConfig `mapstructure:"peerlist"`
	OfficePulse           SourceConfig   `mapstructure:"officepulse"`
	Staging               StagingConfig  `mapstructure:"staging"`
}

// IsEnabled reports whether src should be registered.
func (s *SourcesConfig) IsEnabled(src SourceConfig) bool {
	return s.Scraping && src.Enabled
}

// Load reads configuration from an optional .env file, a YAML config file and the environment.
func Load(configPath string) (*Config, error) {
	_ = godotenv.Load()

	v := viper.New()
	if configPath != "" {
		v.SetConfigFile(configPath)
	} else {
		v.SetConfigName("config")
		v.SetConfigType("yaml")
		v.AddConfigPath("./configs")
		v.AddConfigPath(".")
	}

	v.AutomaticEnv()
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))

	setDefaults(v)

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) {
			return nil, fmt.Errorf("failed to read config file: %w", err)
		}
	}

	v.BindEnv("database.url", "DATABASE_URL")
	v.BindEnv("proxy.enabled", "USE_PROXY")
	v.BindEnv("proxy.host", "HTTP_PROXY")
	v.BindEnv("proxy.port", "HTTPS_PROXY")
	v.BindEnv("proxy.username", "PROXY_USERNAME")
	v.BindEnv("proxy.password", "PROXY_PASSWORD")
	v.BindEnv("sources.scraping", "SCRAPING_ENABLED")
	v.BindEnv("archive.access_key", "ARCHIVE_ACCESS_KEY")
	v.BindEnv("archive.secret_key", "ARCHIVE_SECRET_KEY")

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}
	cfg.Proxy.Host = parseProxyHost(cfg.Proxy.Host)
	cfg.Proxy.Port = parseProxyPort(v.GetString("proxy.port"))

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("server.port", 5001)
	v.SetDefault("server.mode", "release")

	v.SetDefault("database.driver", "sqlite")
	v.SetDefault("database.path", "./data/layoffs.db")
	v.SetDefault("database.host", "localhost")
	v.SetDefault("database.port", 5432)
	v.SetDefault("database.sslmode", "disable")
	v.SetDefault("database.max_idle_conns", 5)
	v.SetDefault("database.max_open_conns", 10)
	v.SetDefault("database.conn_max_lifetime", time.Hour)
	v.SetDefault("database.auto_migrate", true)

	v.SetDefault("fetcher.request_delay", 2*time.Second)
	v.SetDefault("fetcher.max_retries", 3)
	v.SetDefault("fetcher.retry_base_delay", 2*time.Second)
	v.SetDefault("fetcher.timeout", 30*time.Second)
	v.SetDefault("fetcher.user_agent", "LayoffTracker/1.0")

	v.SetDefault("proxy.enabled", false)
	v.SetDefault("proxy.port", "80")

	v.SetDefault("browser.headless", true)
	v.SetDefault("browser.timeout", 90*time.Second)
	v.SetDefault("browser.settle", 5*time.Second)

	v.SetDefault("archive.enabled", false)
	v.SetDefault("archive.bucket", "layoff-raw")
	v.SetDefault("archive.prefix", "raw")

	v.SetDefault("scheduler.enabled", true)
	v.SetDefault("scheduler.run_on_start", false)

	v.SetDefault("sources.scraping", true)
	v.SetDefault("sources.layoffs_fyi.enabled", true)
	v.SetDefault("sources.layoffs_fyi.interval", 6*time.Hour)
	v.SetDefault("sources.layoffs_fyi.url", "https://airtable.com/app1PaujS9zxVGUZ4/shroKsHx3SdYYOzeh")
	v.SetDefault("sources.layoffs_fyi_federal.enabled", true)
	v.SetDefault("sources.layoffs_fyi_federal.interval", 12*time.Hour)
	v.SetDefault("sources.layoffs_fyi_federal.url", "https://airtable.com/app1PaujS9zxVGUZ4/shrJatoY0sANFEG3C")
	v.SetDefault("sources.layoffstracker.enabled", true)
	v.SetDefault("sources.layoffstracker.interval", 6*time.Hour)
	v.SetDefault("sources.layoffstracker.url", "https://airtable.com/shrclnXK0pfoGjtih")
	v.SetDefault("sources.layoffstracker_nontech.enabled", true)
	v.SetDefault("sources.layoffstracker_nontech.interval", 12*time.Hour)
	v.SetDefault("sources.layoffstracker_nontech.url", "https://airtable.com/shr7MSwwevBnoS5fV")
	v.SetDefault("sources.peerlist.enabled", true)
	v.SetDefault("sources.peerlist.interval", 12*time.Hour)
	v.SetDefault("sources.peerlist.url", "https://peerlist.io/layoffs-tracker")
	v.SetDefault("sources.officepulse.enabled", true)
	v.SetDefault("sources.officepulse.interval", 12*time.Hour)
	v.SetDefault("sources.officepulse.url", "https://officepulse.live/wp-admin/admin-ajax.php")
	v.SetDefault("sources.staging.enabled", false)
	v.SetDefault("sources.staging.path", "./data/staging")
	v.SetDefault("sources.staging.name", "manual")
}

// parseProxyHost reduces HTTP_PROXY to a bare host: "http://proxy.internal/"
// becomes "proxy.internal".
func parseProxyHost(raw string) string {
	host := strings.TrimSpace(raw)
	for _, scheme := range []string{"http://", "https://"} {
		if len(host) >= len(scheme) && strings.EqualFold(host[:len(scheme)], scheme) {
			host = host[len(scheme):]
			break
		}
	}
	if i := strings.IndexByte(host, '/'); i >= 0 {
		host = host[:i]
	}
	return host
}

// parseProxyPort accepts a bare port number; anything else (a URL, empty) means 80.
func parseProxyPort(raw string) int {
	p, err := strconv.Atoi(strings.TrimSpace(raw))
	if err != nil || p <= 0 || p > 65535 {
		return 80
	}
	return p
}

// Validate rejects settings the pipeline cannot run with.
func (c *Config) Validate() error {
	switch c.Database.Driver {
	case "sqlite", "postgres":
	default:
		return fmt.Errorf("unsupported database driver: %q", c.Database.Driver)
	}
	if c.Fetcher.RequestDelay < 0 {
		return errors.New("fetcher.request_delay must not be negative")
	}
	if c.Fetcher.RetryBaseDelay < 0 {
		return errors.New("fetcher.retry_base_delay must not be negative")
	}
	if c.Fetcher.MaxRetries < 1 {
		return errors.New("fetcher.max_retries must be at least 1")
	}
	if c.Proxy.Enabled && c.Proxy.Host == "" {
		return errors.New("proxy enabled but no proxy host configured")
	}
	if c.Archive.Enabled && c.Archive.Bucket == "" {
		return errors.New("archive enabled but no bucket configured")
	}
	return nil
}
