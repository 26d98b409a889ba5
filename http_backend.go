// Copyright 2025 Agentic World, LLC (Sherin Thomas)
//
// This file includes modifications to code originally developed by Adam Tauber,
// licensed under the Apache License, Version 2.0.
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

package covenant

import (
	"compress/gzip"
	"context"
	"errors"
	"fmt"
	"io"
	"net"
	"net/http"
	"regexp"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/saintfish/chardet"
	"go.uber.org/zap"
	"golang.org/x/net/html/charset"
	"golang.org/x/time/rate"
)

// ErrFetchStatus is wrapped by FetchError for responses outside 200-399.
var ErrFetchStatus = errors.New("unexpected response status")

// FetchError is returned for a response whose status is not 2xx/3xx. The
// body and headers are kept because error pages are sometimes useful.
type FetchError struct {
	URL     string
	Status  int
	Body    []byte
	Headers http.Header
}

func (e *FetchError) Error() string {
	return fmt.Sprintf("fetch %s: status %d", e.URL, e.Status)
}

func (e *FetchError) Unwrap() error {
	return ErrFetchStatus
}

// ContentType returns the response Content-Type header.
func (e *FetchError) ContentType() string {
	if e.Headers == nil {
		return ""
	}
	return e.Headers.Get("Content-Type")
}

// FetchConfig configures the Fetcher.
type FetchConfig struct {
	Timeout        time.Duration
	UserAgent      string
	Accept         string
	AcceptLanguage string
	// MaxRedirects caps followed redirects. Zero means the default of 5.
	MaxRedirects int
	// RequestsPerSecond caps the request rate across the whole fetcher.
	// Zero means no limit.
	RequestsPerSecond float64
	// Transport overrides http.DefaultTransport (tests use MockTransport).
	Transport http.RoundTripper
}

// DefaultFetchConfig returns the browser-like defaults used for every crawl.
func DefaultFetchConfig() FetchConfig {
	return FetchConfig{
		Timeout:        20 * time.Second,
		UserAgent:      "Mozilla/5.0 (X11; Linux x86_64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/121.0.0.0 Safari/537.36",
		Accept:         "text/html,application/xhtml+xml,application/xml;q=0.9,*/*;q=0.8",
		AcceptLanguage: "es-ES,es;q=0.9,en;q=0.8",
		MaxRedirects:   5,
	}
}

// Response is a successful fetch.
type Response struct {
	// URL is the URL that was requested, after any host fallback.
	URL string
	// FinalURL is the URL after redirects.
	FinalURL string
	Status   int
	Headers  http.Header
	Body     []byte
}

// ContentType returns the Content-Type header.
func (r *Response) ContentType() string {
	return r.Headers.Get("Content-Type")
}

// Text returns the body decoded to UTF-8.
func (r *Response) Text() string {
	return DecodeBody(r.Body, r.ContentType())
}

// Observer receives fetch outcomes. internal/metrics implements it.
type Observer interface {
	PageFetched(outcome string, elapsed time.Duration)
	ImageHandled(result string)
}

type nopObserver struct{}

func (nopObserver) PageFetched(string, time.Duration) {}
func (nopObserver) ImageHandled(string)               {}

// Fetcher performs GET requests with the crawl's headers, timeout and the
// www/bare host fallback on DNS failures.
type Fetcher struct {
	client   *http.Client
	config   FetchConfig
	hosts    AllowedHosts
	logger   *zap.Logger
	observer Observer
	limiter  *rate.Limiter
}

// NewFetcher creates a Fetcher. hosts drives the DNS fallback; a zero
// AllowedHosts disables it.
func NewFetcher(config FetchConfig, hosts AllowedHosts, logger *zap.Logger) *Fetcher {
	defaults := DefaultFetchConfig()
	if config.Timeout <= 0 {
		config.Timeout = defaults.Timeout
	}
	if config.UserAgent == "" {
		config.UserAgent = defaults.UserAgent
	}
	if config.Accept == "" {
		config.Accept = defaults.Accept
	}
	if config.AcceptLanguage == "" {
		config.AcceptLanguage = defaults.AcceptLanguage
	}
	if config.MaxRedirects <= 0 {
		config.MaxRedirects = defaults.MaxRedirects
	}
	if logger == nil {
		logger = zap.NewNop()
	}

	maxRedirects := config.MaxRedirects
	client := &http.Client{
		Transport: config.Transport,
		Timeout:   config.Timeout,
		CheckRedirect: func(req *http.Request, via []*http.Request) error {
			if len(via) > maxRedirects {
				return fmt.Errorf("stopped after %d redirects", maxRedirects)
			}
			return nil
		},
	}
	f := &Fetcher{
		client:   client,
		config:   config,
		hosts:    hosts,
		logger:   logger,
		observer: nopObserver{},
	}
	if config.RequestsPerSecond > 0 {
		burst := int(config.RequestsPerSecond)
		if burst < 1 {
			burst = 1
		}
		f.limiter = rate.NewLimiter(rate.Limit(config.RequestsPerSecond), burst)
	}
	return f
}

// SetObserver installs an Observer. Nil restores the no-op observer.
func (f *Fetcher) SetObserver(o Observer) {
	if o == nil {
		o = nopObserver{}
	}
	f.observer = o
}

// Fetch retrieves rawURL. Non 2xx/3xx statuses return a *FetchError. When
// the host cannot be resolved, every other allowed host variant is tried
// once, in order, until one resolves.
func (f *Fetcher) Fetch(ctx context.Context, rawURL string) (*Response, error) {
	start := time.Now()
	resp, err := f.fetchWithFallback(ctx, rawURL)

	outcome := "ok"
	var fetchErr *FetchError
	switch {
	case errors.As(err, &fetchErr):
		outcome = "http_error"
	case err != nil:
		outcome = "transport_error"
	}
	f.observer.PageFetched(outcome, time.Since(start))
	return resp, err
}

func (f *Fetcher) fetchWithFallback(ctx context.Context, rawURL string) (*Response, error) {
	resp, err := f.do(ctx, rawURL)
	if err == nil || !IsDNSError(err) {
		return resp, err
	}

	u, parseErr := ParseURL(rawURL, "")
	if parseErr != nil {
		return nil, err
	}
	for _, host := range f.hosts.Variants(u.Hostname()) {
		alt := *u
		if port := u.Port(); port != "" {
			alt.Host = net.JoinHostPort(host, port)
		} else {
			alt.Host = host
		}
		f.logger.Debug("retrying with host variant",
			zap.String("url", rawURL),
			zap.String("host", host),
			zap.Error(err))

		resp, err = f.do(ctx, alt.String())
		if err == nil || !IsDNSError(err) {
			return resp, err
		}
	}
	return nil, err
}

// Get fetches rawURL and returns the raw body. It uses the same headers and
// fallback as Fetch but does not report page metrics.
func (f *Fetcher) Get(ctx context.Context, rawURL string) ([]byte, http.Header, error) {
	resp, err := f.fetchWithFallback(ctx, rawURL)
	if err != nil {
		return nil, nil, err
	}
	return resp.Body, resp.Headers, nil
}

// Open issues a GET and hands back the live response so callers can stream
// and bound the body themselves. The caller must close the body.
func (f *Fetcher) Open(ctx context.Context, rawURL string) (*http.Response, error) {
	req, err := f.newRequest(ctx, rawURL)
	if err != nil {
		return nil, err
	}
	res, err := f.client.Do(req)
	if err != nil {
		return nil, err
	}
	if res.StatusCode < 200 || res.StatusCode >= 400 {
		res.Body.Close()
		return nil, &FetchError{URL: rawURL, Status: res.StatusCode, Headers: res.Header}
	}
	return res, nil
}

func (f *Fetcher) newRequest(ctx context.Context, rawURL string) (*http.Request, error) {
	if f.limiter != nil {
		if err := f.limiter.Wait(ctx); err != nil {
			return nil, err
		}
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, rawURL, nil)
	if err != nil {
		return nil, err
	}
	req.Header.Set("User-Agent", f.config.UserAgent)
	req.Header.Set("Accept", f.config.Accept)
	req.Header.Set("Accept-Language", f.config.AcceptLanguage)
	return req, nil
}

func (f *Fetcher) do(ctx context.Context, rawURL string) (*Response, error) {
	req, err := f.newRequest(ctx, rawURL)
	if err != nil {
		return nil, err
	}
	res, err := f.client.Do(req)
	if err != nil {
		return nil, err
	}
	defer res.Body.Close()

	var bodyReader io.Reader = res.Body
	finalURL := rawURL
	if res.Request != nil && res.Request.URL != nil {
		finalURL = res.Request.URL.String()
	}
	contentEncoding := strings.ToLower(res.Header.Get("Content-Encoding"))
	if !res.Uncompressed && (strings.Contains(contentEncoding, "gzip") ||
		(contentEncoding == "" && strings.Contains(strings.ToLower(res.Header.Get("Content-Type")), "gzip")) ||
		strings.HasSuffix(strings.ToLower(req.URL.Path), ".xml.gz")) {
		gz, err := gzip.NewReader(bodyReader)
		if err != nil {
			return nil, err
		}
		defer gz.Close()
		bodyReader = gz
	}
	body, err := io.ReadAll(bodyReader)
	if err != nil {
		return nil, err
	}

	if res.StatusCode < 200 || res.StatusCode >= 400 {
		return nil, &FetchError{
			URL:     rawURL,
			Status:  res.StatusCode,
			Body:    body,
			Headers: res.Header,
		}
	}
	return &Response{
		URL:      rawURL,
		FinalURL: finalURL,
		Status:   res.StatusCode,
		Headers:  res.Header,
		Body:     body,
	}, nil
}

// IsDNSError reports whether err is a "host not found" or "try again" name
// resolution failure.
func IsDNSError(err error) bool {
	var dnsErr *net.DNSError
	if !errors.As(err, &dnsErr) {
		return false
	}
	return dnsErr.IsNotFound || dnsErr.IsTemporary
}

// DecodeBody converts body to UTF-8. The charset comes from the Content-Type
// header or a <meta> declaration; undeclared bodies that are not valid UTF-8
// are run through chardet.
func DecodeBody(body []byte, contentType string) string {
	if len(body) == 0 {
		return ""
	}
	enc, name, certain := charset.DetermineEncoding(body, contentType)
	if !certain && !declaresCharset(body) {
		if utf8.Valid(body) {
			return string(body)
		}
		if result, err := chardet.NewHtmlDetector().DetectBest(body); err == nil && result.Confidence >= 50 {
			if guessed, guessedName := charset.Lookup(result.Charset); guessed != nil {
				enc, name = guessed, guessedName
			}
		}
	}
	if name == "utf-8" || enc == nil {
		return string(body)
	}
	decoded, err := enc.NewDecoder().Bytes(body)
	if err != nil {
		return string(body)
	}
	return string(decoded)
}

var metaCharsetPattern = regexp.MustCompile(`(?i)<meta[^>]+charset`)

func declaresCharset(body []byte) bool {
	if len(body) > 1024 {
		body = body[:1024]
	}
	return metaCharsetPattern.Match(body)
}
