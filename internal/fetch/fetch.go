// Package fetch hardens and normalizes HTTP fetches for the crawler (C6):
// a hardened http.Client (bounded redirects, dial/TLS timeouts, capped
// body size), user-agent rotation, and charset-to-UTF8 normalization. It
// surfaces the raw HTML alongside the normalized body, since the
// crawler's link-discovery step needs the original document, and
// classifies failures into model.ErrorKind instead of bare errors.
package fetch

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"mime"
	"net"
	"net/http"
	"net/url"
	"strings"
	"time"

	"golang.org/x/net/html/charset"

	"ptolemies/internal/model"
)

// Result is one fetched page, prior to extraction/chunking.
type Result struct {
	InputURL    string
	FinalURL    string
	Status      int
	ContentType string
	Charset     string
	RawHTML     string // present only for HTML content types
	Body        []byte // raw, UTF-8 normalized bytes
	FetchedAt   time.Time
}

// Options tunes the fetcher. The zero value is not directly usable; use
// New() for hardened defaults.
type Options struct {
	Timeout      time.Duration
	MaxBytes     int64
	UserAgent    string
	MaxRedirects int
}

// Option configures a fetch via the functional-options pattern.
type Option func(*Options)

func WithTimeout(d time.Duration) Option      { return func(o *Options) { o.Timeout = d } }
func WithMaxBytes(n int64) Option             { return func(o *Options) { o.MaxBytes = n } }
func WithUserAgent(ua string) Option          { return func(o *Options) { o.UserAgent = ua } }
func WithMaxRedirects(n int) Option           { return func(o *Options) { o.MaxRedirects = n } }

// Fetcher performs hardened HTTP GETs.
type Fetcher struct {
	client *http.Client
	opts   Options
	uaList []string
}

// New constructs a Fetcher with hardened defaults: bounded redirects, a
// capped response body, and dial/TLS timeouts tight enough that a dead
// host fails fast rather than hanging a crawl.
func New(opts ...Option) *Fetcher {
	o := Options{
		Timeout:      20 * time.Second,
		MaxBytes:     8 * 1000 * 1000,
		MaxRedirects: 10,
	}
	for _, fn := range opts {
		fn(&o)
	}

	dialer := &net.Dialer{Timeout: 7 * time.Second, KeepAlive: 30 * time.Second}
	transport := &http.Transport{
		Proxy:                 http.ProxyFromEnvironment,
		DialContext:           dialer.DialContext,
		ForceAttemptHTTP2:     true,
		TLSHandshakeTimeout:   7 * time.Second,
		MaxIdleConns:          100,
		MaxIdleConnsPerHost:   10,
		IdleConnTimeout:       90 * time.Second,
		ResponseHeaderTimeout: 10 * time.Second,
		ExpectContinueTimeout: 1 * time.Second,
	}

	checkRedirect := func(req *http.Request, via []*http.Request) error {
		if o.MaxRedirects <= 0 {
			if len(via) >= 10 {
				return errors.New("stopped after 10 redirects")
			}
			return nil
		}
		if len(via) > o.MaxRedirects {
			return fmt.Errorf("stopped after %d redirects", o.MaxRedirects)
		}
		return nil
	}

	client := &http.Client{Transport: transport, CheckRedirect: checkRedirect, Timeout: o.Timeout}

	uaList := []string{
		"Mozilla/5.0 (Macintosh; Intel Mac OS X 10_15_7) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/115.0.0.0 Safari/537.36",
		"Mozilla/5.0 (Macintosh; Intel Mac OS X 10.15; rv:102.0) Gecko/20100101 Firefox/102.0",
		"Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/115.0.0.0 Safari/537.36 Edg/115.0.0.0",
	}
	return &Fetcher{client: client, opts: o, uaList: uaList}
}

// Fetch performs a GET and returns the normalized, capped, UTF-8 body.
// Errors are classified: an invalid URL or non-HTTP(S) scheme is
// ErrPolicyBlocked; transport failures, body read failures and bodies
// over MaxBytes are ErrSourceUnreachable (retryable per §4.1's contract);
// a charset decode failure is ErrUnsupportedContentType. HTTP error
// statuses are not errors: they are returned in Result.Status.
func (f *Fetcher) Fetch(ctx context.Context, rawURL string) (*Result, error) {
	u, err := url.Parse(rawURL)
	if err != nil {
		return nil, model.NewError(model.ErrPolicyBlocked, "invalid url", err)
	}
	if u.Scheme != "http" && u.Scheme != "https" {
		return nil, model.NewError(model.ErrPolicyBlocked, "unsupported scheme: "+u.Scheme, nil)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u.String(), nil)
	if err != nil {
		return nil, model.NewError(model.ErrSourceUnreachable, "build request", err)
	}
	ua := f.opts.UserAgent
	if ua == "" && len(f.uaList) > 0 {
		ua = f.uaList[int(time.Now().UnixNano())%len(f.uaList)]
	}
	req.Header.Set("User-Agent", ua)
	req.Header.Set("Accept", "text/html,application/xhtml+xml,application/xml;q=0.9,*/*;q=0.8")
	req.Header.Set("Accept-Language", "en-US,en;q=0.9")

	resp, err := f.client.Do(req)
	if err != nil {
		var netErr net.Error
		if errors.As(err, &netErr) || errors.Is(ctx.Err(), context.DeadlineExceeded) {
			return nil, model.NewError(model.ErrSourceUnreachable, "fetch "+rawURL, err)
		}
		return nil, model.NewError(model.ErrSourceUnreachable, "fetch "+rawURL, err)
	}
	defer resp.Body.Close()

	finalURL := resp.Request.URL.String()
	ct, cs := parseContentType(resp.Header.Get("Content-Type"))

	limited := io.LimitReader(resp.Body, f.opts.MaxBytes+1)
	body, err := io.ReadAll(limited)
	if err != nil {
		return nil, model.NewError(model.ErrSourceUnreachable, "read body", err)
	}
	if int64(len(body)) > f.opts.MaxBytes {
		return nil, model.NewError(model.ErrSourceUnreachable, fmt.Sprintf("response exceeds max bytes (%d)", f.opts.MaxBytes), nil)
	}

	utf8Body, err := toUTF8(body, cs)
	if err != nil {
		return nil, model.NewError(model.ErrUnsupportedContentType, "charset decode", err)
	}

	res := &Result{
		InputURL:    rawURL,
		FinalURL:    finalURL,
		Status:      resp.StatusCode,
		ContentType: ct,
		Charset:     cs,
		Body:        utf8Body,
		FetchedAt:   time.Now(),
	}
	if isHTML(ct) {
		res.RawHTML = string(utf8Body)
	}
	return res, nil
}

func parseContentType(h string) (ctype, cs string) {
	if h == "" {
		return "", ""
	}
	mt, params, err := mime.ParseMediaType(h)
	if err != nil {
		return h, ""
	}
	return strings.ToLower(mt), strings.ToLower(params["charset"])
}

func isHTML(ct string) bool {
	return ct == "text/html" || ct == "application/xhtml+xml" || strings.HasSuffix(ct, "html")
}

func toUTF8(b []byte, charsetLabel string) ([]byte, error) {
	if charsetLabel == "" || strings.EqualFold(charsetLabel, "utf-8") || strings.EqualFold(charsetLabel, "utf8") {
		return b, nil
	}
	r, err := charset.NewReaderLabel(charsetLabel, bytes.NewReader(b))
	if err != nil {
		return nil, err
	}
	return io.ReadAll(r)
}
