// Package collyfetcher implements crawler.Fetcher using gocolly.
package collyfetcher

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net"
	"net/http"
	"syscall"
	"time"
	"unicode/utf8"

	"github.com/gocolly/colly/v2"
	"go.uber.org/zap"
	"golang.org/x/sync/semaphore"

	"github.com/JakeFAU/hn-crawler/internal/crawler"
	"github.com/JakeFAU/hn-crawler/internal/metrics"
	"github.com/JakeFAU/hn-crawler/internal/policy/ratelimit"
)

// Defaults mirror a desktop browser so pages render the same markup they
// would for a person.
const (
	DefaultTimeout        = 10 * time.Second
	DefaultMaxRedirects   = 10
	DefaultMaxBodyBytes   = 10 * 1024 * 1024
	DefaultUserAgent      = "Mozilla/5.0 (X11; Linux x86_64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/124.0 Safari/537.36"
	DefaultAccept         = "text/html,application/xhtml+xml,application/xml;q=0.9,*/*;q=0.8"
	DefaultAcceptLanguage = "en-US,en;q=0.9"
)

var errTooManyRedirects = errors.New("too many redirects")

// Config controls collector behavior.
type Config struct {
	UserAgent       string        `mapstructure:"user_agent"`
	Accept          string        `mapstructure:"accept"`
	AcceptLanguage  string        `mapstructure:"accept_language"`
	Timeout         time.Duration `mapstructure:"timeout"`
	IgnoredSuffixes []string      `mapstructure:"ignored_suffixes"`
	MaxRedirects    int           `mapstructure:"max_redirects"`
	MaxBodyBytes    int           `mapstructure:"max_body_bytes"`
	MaxInFlight     int64         `mapstructure:"max_in_flight"`
	PerHostRPS      float64       `mapstructure:"per_host_rps"`
	PerHostBurst    int           `mapstructure:"per_host_burst"`
}

// Fetcher implements crawler.Fetcher using the Colly collector.
type Fetcher struct {
	cfg           Config
	logger        *zap.Logger
	blocklist     *crawler.SuffixBlocklist
	inFlight      *semaphore.Weighted
	limiter       *ratelimit.Limiter
	baseCollector *colly.Collector
}

type collectorHooks interface {
	OnRequest(colly.RequestCallback)
	OnResponse(colly.ResponseCallback)
	OnError(colly.ErrorCallback)
}

// New builds a Fetcher. Zero values in cfg fall back to the defaults above.
func New(cfg Config, logger *zap.Logger) *Fetcher {
	if logger == nil {
		logger = zap.NewNop()
	}
	cfg = withDefaults(cfg)

	c := colly.NewCollector(
		colly.Async(false),
		colly.AllowURLRevisit(),
		colly.ParseHTTPErrorResponse(),
		colly.MaxBodySize(cfg.MaxBodyBytes),
		colly.UserAgent(cfg.UserAgent),
	)
	c.WithTransport(newHTTPTransport())
	c.SetRequestTimeout(cfg.Timeout)
	maxRedirects := cfg.MaxRedirects
	c.SetRedirectHandler(func(_ *http.Request, via []*http.Request) error {
		if len(via) >= maxRedirects {
			return errTooManyRedirects
		}
		return nil
	})

	f := &Fetcher{
		cfg:           cfg,
		logger:        logger.Named("fetcher"),
		blocklist:     crawler.NewSuffixBlocklist(cfg.IgnoredSuffixes),
		limiter:       ratelimit.New(ratelimit.Config{PerHostRPS: cfg.PerHostRPS, PerHostBurst: cfg.PerHostBurst}),
		baseCollector: c,
	}
	if cfg.MaxInFlight > 0 {
		f.inFlight = semaphore.NewWeighted(cfg.MaxInFlight)
	}
	return f
}

func withDefaults(cfg Config) Config {
	if cfg.UserAgent == "" {
		cfg.UserAgent = DefaultUserAgent
	}
	if cfg.Accept == "" {
		cfg.Accept = DefaultAccept
	}
	if cfg.AcceptLanguage == "" {
		cfg.AcceptLanguage = DefaultAcceptLanguage
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = DefaultTimeout
	}
	if cfg.MaxRedirects <= 0 {
		cfg.MaxRedirects = DefaultMaxRedirects
	}
	if cfg.MaxBodyBytes <= 0 {
		cfg.MaxBodyBytes = DefaultMaxBodyBytes
	}
	if cfg.IgnoredSuffixes == nil {
		cfg.IgnoredSuffixes = crawler.DefaultIgnoredSuffixes
	}
	return cfg
}

// Fetch downloads rawURL and returns its text. It never returns an error:
// every outcome is described by the result.
func (f *Fetcher) Fetch(ctx context.Context, rawURL string) crawler.FetchResult {
	if f.blocklist.IsBlocked(rawURL) {
		return f.finish(crawler.Skipped(rawURL, crawler.SkipReasonIgnoredSuffix), 0)
	}
	if !crawler.IsFetchableURL(rawURL) {
		return f.finish(crawler.Skipped(rawURL, crawler.SkipReasonUnsupportedScheme), 0)
	}

	if f.inFlight != nil {
		if err := f.inFlight.Acquire(ctx, 1); err != nil {
			return f.finish(crawler.Failed(rawURL, crawler.FailureCanceled, err), 0)
		}
		defer f.inFlight.Release(1)
	}
	if err := f.limiter.Wait(ctx, rawURL); err != nil {
		return f.finish(crawler.Failed(rawURL, crawler.FailureCanceled, err), 0)
	}

	start := time.Now()
	var (
		result   crawler.FetchResult
		fetchErr error
	)
	collector := f.buildCollector(ctx, rawURL, &result, &fetchErr)
	if err := f.runCollector(ctx, collector, rawURL, &fetchErr); err != nil {
		return f.finish(crawler.Failed(rawURL, classify(ctx, err), err), time.Since(start))
	}
	if result.Status == "" {
		err := fmt.Errorf("no response received for %s", rawURL)
		return f.finish(crawler.Failed(rawURL, crawler.FailureOther, err), time.Since(start))
	}
	if !utf8.ValidString(result.Body) {
		err := fmt.Errorf("body of %s is not valid utf-8", rawURL)
		return f.finish(crawler.Failed(rawURL, crawler.FailureDecode, err), time.Since(start))
	}
	return f.finish(result, time.Since(start))
}

func (f *Fetcher) finish(result crawler.FetchResult, elapsed time.Duration) crawler.FetchResult {
	metrics.ObserveFetch(result.URL, result.Outcome(), len(result.Body), elapsed)
	switch result.Status {
	case crawler.FetchStatusFailed:
		f.logger.Warn("fetch failed",
			zap.String("url", result.URL),
			zap.String("kind", string(result.Failure)),
			zap.Error(result.Err),
		)
	case crawler.FetchStatusSkipped:
		f.logger.Debug("fetch skipped",
			zap.String("url", result.URL),
			zap.String("reason", string(result.SkipReason)),
		)
	default:
		f.logger.Debug("fetched",
			zap.String("url", result.URL),
			zap.String("final_url", result.FinalURL),
			zap.Int("status", result.StatusCode),
			zap.Int("bytes", len(result.Body)),
			zap.Duration("elapsed", elapsed),
		)
	}
	return result
}

func (f *Fetcher) buildCollector(
	ctx context.Context,
	rawURL string,
	result *crawler.FetchResult,
	fetchErr *error,
) *colly.Collector {
	collector := f.baseCollector.Clone()
	collector.Context = ctx
	f.configureCollectorHooks(collector, rawURL, result, fetchErr)
	return collector
}

func (f *Fetcher) configureCollectorHooks(
	hooks collectorHooks,
	rawURL string,
	result *crawler.FetchResult,
	fetchErr *error,
) {
	hooks.OnRequest(func(r *colly.Request) {
		r.Headers.Set("User-Agent", f.cfg.UserAgent)
		r.Headers.Set("Accept", f.cfg.Accept)
		r.Headers.Set("Accept-Language", f.cfg.AcceptLanguage)
		r.Headers.Set("Connection", "keep-alive")
	})

	hooks.OnResponse(func(r *colly.Response) {
		*result = crawler.Fetched(rawURL, string(r.Body))
		result.StatusCode = r.StatusCode
		if r.Request != nil && r.Request.URL != nil {
			result.FinalURL = r.Request.URL.String()
		}
	})

	hooks.OnError(func(_ *colly.Response, err error) {
		*fetchErr = err
	})
}

func (f *Fetcher) runCollector(ctx context.Context, collector *colly.Collector, url string, fetchErr *error) error {
	done := make(chan error, 1)
	go func() {
		done <- collector.Visit(url)
	}()

	select {
	case <-ctx.Done():
		return fmt.Errorf("colly fetch canceled: %w", ctx.Err())
	case err := <-done:
		if err != nil {
			return fmt.Errorf("colly visit failed: %w", err)
		}
		if *fetchErr != nil {
			return fmt.Errorf("colly response failed: %w", *fetchErr)
		}
		return nil
	}
}

// classify maps a transport error onto a failure kind. Order matters:
// redirect and cancellation errors also satisfy the broader checks below.
func classify(ctx context.Context, err error) crawler.FailureKind {
	if errors.Is(err, errTooManyRedirects) {
		return crawler.FailureTooManyRedirects
	}
	if ctx.Err() != nil || errors.Is(err, context.Canceled) {
		return crawler.FailureCanceled
	}
	var netErr net.Error
	if errors.Is(err, context.DeadlineExceeded) || (errors.As(err, &netErr) && netErr.Timeout()) {
		return crawler.FailureTimeout
	}
	var dnsErr *net.DNSError
	if errors.As(err, &dnsErr) {
		return crawler.FailureConnection
	}
	var opErr *net.OpError
	if errors.As(err, &opErr) && opErr.Op == "dial" {
		return crawler.FailureConnection
	}
	if errors.Is(err, io.EOF) || errors.Is(err, io.ErrUnexpectedEOF) ||
		errors.Is(err, syscall.ECONNRESET) || errors.Is(err, syscall.EPIPE) {
		return crawler.FailureDisconnect
	}
	return crawler.FailureOther
}

func newHTTPTransport() *http.Transport {
	return &http.Transport{
		Proxy: http.ProxyFromEnvironment,
		DialContext: (&net.Dialer{
			Timeout:   10 * time.Second,
			KeepAlive: 30 * time.Second,
		}).DialContext,
		TLSHandshakeTimeout:   15 * time.Second,
		ExpectContinueTimeout: 1 * time.Second,
		MaxIdleConns:          100,
		MaxIdleConnsPerHost:   8,
		IdleConnTimeout:       90 * time.Second,
	}
}
