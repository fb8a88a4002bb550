// Package config loads and validates crawler configuration via Viper.
package config

import (
	"errors"
	"fmt"
	"net/url"
	"strings"
	"time"

	"github.com/spf13/viper"

	"github.com/JakeFAU/hn-crawler/internal/crawler"
	collyfetcher "github.com/JakeFAU/hn-crawler/internal/fetcher/colly"
	"github.com/JakeFAU/hn-crawler/internal/logging"
)

// EnvPrefix prefixes every environment override, e.g.
// HNCRAWLER_CRAWLER_POLL_INTERVAL=1m.
const EnvPrefix = "HNCRAWLER"

// Config captures all crawler configuration knobs loaded via Viper.
type Config struct {
	Crawler CrawlerConfig           `mapstructure:"crawler"`
	Fetch   collyfetcher.Config     `mapstructure:"fetch"`
	Extract crawler.ExtractorConfig `mapstructure:"extract"`
	Output  OutputConfig            `mapstructure:"output"`
	Logging logging.Config          `mapstructure:"logging"`
	Metrics MetricsConfig           `mapstructure:"metrics"`
}

// CrawlerConfig governs discovery and the worker pools.
type CrawlerConfig struct {
	FrontPageURL   string        `mapstructure:"front_page_url"`
	PollInterval   time.Duration `mapstructure:"poll_interval"`
	PostWorkers    int           `mapstructure:"post_workers"`
	CommentWorkers int           `mapstructure:"comment_workers"`
	DrainTimeout   time.Duration `mapstructure:"drain_timeout"`
	MaxPolls       int           `mapstructure:"max_polls"`
}

// OutputConfig controls where pages land on disk.
type OutputConfig struct {
	RootDir           string `mapstructure:"root_dir"`
	MaxFilenameLength int    `mapstructure:"max_filename_length"`
}

// MetricsConfig controls the ops endpoint. An empty Addr disables it.
type MetricsConfig struct {
	Addr string `mapstructure:"addr"`
}

// Load builds a Config from defaults, an optional file and the environment.
func Load(path string) (Config, error) {
	v := viper.New()
	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	setDefaults(v)

	if path != "" {
		v.SetConfigFile(path)
		if err := v.ReadInConfig(); err != nil {
			return Config{}, fmt.Errorf("read config: %w", err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return Config{}, fmt.Errorf("unmarshal config: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}

	return cfg, nil
}

// Every key needs a default so AutomaticEnv can override it.
func setDefaults(v *viper.Viper) {
	v.SetDefault("crawler.front_page_url", crawler.DefaultBaseURL)
	v.SetDefault("crawler.poll_interval", 30*time.Second)
	v.SetDefault("crawler.post_workers", 4)
	v.SetDefault("crawler.comment_workers", 8)
	v.SetDefault("crawler.drain_timeout", 10*time.Second)
	v.SetDefault("crawler.max_polls", 0)

	v.SetDefault("fetch.timeout", collyfetcher.DefaultTimeout)
	v.SetDefault("fetch.user_agent", collyfetcher.DefaultUserAgent)
	v.SetDefault("fetch.accept", collyfetcher.DefaultAccept)
	v.SetDefault("fetch.accept_language", collyfetcher.DefaultAcceptLanguage)
	v.SetDefault("fetch.ignored_suffixes", crawler.DefaultIgnoredSuffixes)
	v.SetDefault("fetch.max_redirects", collyfetcher.DefaultMaxRedirects)
	v.SetDefault("fetch.max_body_bytes", collyfetcher.DefaultMaxBodyBytes)
	v.SetDefault("fetch.max_in_flight", 0)
	v.SetDefault("fetch.per_host_rps", 0.0)
	v.SetDefault("fetch.per_host_burst", 1)

	v.SetDefault("extract.base_url", crawler.DefaultBaseURL)
	v.SetDefault("extract.item_prefix", crawler.DefaultItemPrefix)
	v.SetDefault("extract.headline_selector", crawler.DefaultHeadlineSelector)
	v.SetDefault("extract.subtext_selector", crawler.DefaultSubtextSelector)
	v.SetDefault("extract.comment_selector", crawler.DefaultCommentSelector)
	v.SetDefault("extract.reply_marker", crawler.DefaultReplyMarker)

	v.SetDefault("output.root_dir", "hacker_news")
	v.SetDefault("output.max_filename_length", crawler.DefaultMaxFilenameLength)

	v.SetDefault("logging.development", false)
	v.SetDefault("logging.level", "")

	v.SetDefault("metrics.addr", "")
}

// Validate enforces required values and reasonable limits.
func (c Config) Validate() error {
	var errs []error
	if err := validateAbsoluteURL("crawler.front_page_url", c.Crawler.FrontPageURL); err != nil {
		errs = append(errs, err)
	}
	if err := validateAbsoluteURL("extract.base_url", c.Extract.BaseURL); err != nil {
		errs = append(errs, err)
	}
	if c.Crawler.PollInterval <= 0 {
		errs = append(errs, errors.New("crawler.poll_interval must be > 0"))
	}
	if c.Crawler.PostWorkers <= 0 {
		errs = append(errs, errors.New("crawler.post_workers must be > 0"))
	}
	if c.Crawler.CommentWorkers <= 0 {
		errs = append(errs, errors.New("crawler.comment_workers must be > 0"))
	}
	if c.Crawler.DrainTimeout < 0 {
		errs = append(errs, errors.New("crawler.drain_timeout must be >= 0"))
	}
	if c.Crawler.MaxPolls < 0 {
		errs = append(errs, errors.New("crawler.max_polls must be >= 0"))
	}
	if c.Fetch.Timeout <= 0 {
		errs = append(errs, errors.New("fetch.timeout must be > 0"))
	}
	if c.Fetch.MaxRedirects <= 0 {
		errs = append(errs, errors.New("fetch.max_redirects must be > 0"))
	}
	if c.Fetch.MaxInFlight < 0 {
		errs = append(errs, errors.New("fetch.max_in_flight must be >= 0"))
	}
	if c.Fetch.PerHostRPS < 0 {
		errs = append(errs, errors.New("fetch.per_host_rps must be >= 0"))
	}
	if strings.TrimSpace(c.Output.RootDir) == "" {
		errs = append(errs, errors.New("output.root_dir is required"))
	}
	if c.Output.MaxFilenameLength <= 0 {
		errs = append(errs, errors.New("output.max_filename_length must be > 0"))
	}
	return errors.Join(errs...)
}

func validateAbsoluteURL(key, raw string) error {
	u, err := url.Parse(raw)
	if err != nil || !u.IsAbs() || u.Host == "" {
		return fmt.Errorf("%s must be an absolute URL, got %q", key, raw)
	}
	return nil
}
