// Package crawler implements C6: a per-source breadth-first crawl that
// fetches pages, extracts clean Markdown text, discovers outbound links for
// frontier expansion, and emits model.Document values. Built around a
// BFS frontier, per-host politeness, and robots.txt handling on top of the
// single-page fetch+extract pipeline in internal/fetch.
package crawler

import (
	"context"
	"strings"
	"sync"
	"time"

	htmltomarkdown "github.com/JohannesKaufmann/html-to-markdown/v2"
	"github.com/JohannesKaufmann/html-to-markdown/v2/converter"
	readability "github.com/go-shiori/go-readability"
	"golang.org/x/time/rate"

	"ptolemies/internal/config"
	"ptolemies/internal/fetch"
	"ptolemies/internal/logging"
	"ptolemies/internal/model"
	"ptolemies/internal/obs"
	"ptolemies/internal/retry"
)

// Crawler runs BFS crawls across a set of configured sources.
type Crawler struct {
	fetcher *fetch.Fetcher
	metrics obs.Metrics

	mu       sync.Mutex
	limiters map[string]*rate.Limiter // per-host token bucket
	robots   map[string]*robotsRules  // per-host cache

	retryOpts retry.Options
}

// New constructs a Crawler with a hardened fetcher.
func New(metrics obs.Metrics) *Crawler {
	return &Crawler{
		fetcher:   fetch.New(),
		metrics:   metrics,
		limiters:  make(map[string]*rate.Limiter),
		robots:    make(map[string]*robotsRules),
		retryOpts: retry.DefaultOptions(),
	}
}

// Progress is emitted at a bounded rate while a crawl runs, per §6's
// ingestion-progress-events shape (scoped here to crawl-level counts; the
// ingestion orchestrator emits no progress of its own and reports each
// document's committed/skipped/failed outcome in ingest.Result).
type Progress struct {
	SourceID      string
	PagesSeen     int
	PagesFetched  int
	PagesFailed   int
	LastErrorKind model.ErrorKind
}

// CrawlSource runs a single source's BFS crawl to completion or
// cancellation, streaming documents on the returned channel. The channel
// is closed when the crawl ends. progress, if non-nil, receives rate
// limited updates and is never blocked on (sends are non-blocking, per
// §6: "emitted at a bounded rate").
func (c *Crawler) CrawlSource(ctx context.Context, src config.SourceConfig, progress chan<- Progress) (<-chan *model.Document, <-chan error) {
	docs := make(chan *model.Document, 8)
	errs := make(chan error, 1)

	go func() {
		defer close(docs)
		defer close(errs)

		logger := logging.Named("crawler")
		frontier := newFrontier(src.RootURL)
		visited := make(map[string]bool)
		fetched := 0
		lastProgress := time.Now()
		var prog Progress
		prog.SourceID = src.ID

		emit := func(force bool) {
			if progress == nil {
				return
			}
			if !force && time.Since(lastProgress) < 250*time.Millisecond {
				return
			}
			lastProgress = time.Now()
			select {
			case progress <- prog:
			default:
			}
		}

		for !frontier.empty() {
			if ctx.Err() != nil {
				errs <- model.NewError(model.ErrDeadlineExceeded, "crawl cancelled", ctx.Err())
				emit(true)
				return
			}
			if fetched >= src.MaxPages {
				break
			}
			item, depth, ok := frontier.pop()
			if !ok {
				break
			}
			norm := normalizeURL(item)
			if visited[norm] {
				continue
			}
			visited[norm] = true
			prog.PagesSeen++

			if depth > src.MaxDepth {
				continue
			}

			if src.RespectRobots {
				allowed, err := c.robotsAllowed(ctx, item)
				if err != nil {
					logger.Warn().Err(err).Str("url", item).Msg("robots.txt fetch failed, allowing by default")
				} else if !allowed {
					prog.LastErrorKind = model.ErrPolicyBlocked
					emit(false)
					continue
				}
			}

			if err := c.wait(ctx, item, src.DelayMS); err != nil {
				errs <- err
				emit(true)
				return
			}

			var result *fetch.Result
			err := retry.Do(ctx, c.retryOpts, func(ctx context.Context) error {
				r, ferr := c.fetcher.Fetch(ctx, item)
				if ferr != nil {
					return ferr
				}
				result = r
				return nil
			})
			if err != nil {
				prog.PagesFailed++
				prog.LastErrorKind = model.KindOf(err)
				c.metrics.IncCounter("crawler_fetch_failed_total", map[string]string{"source": src.ID})
				emit(false)
				continue
			}

			doc, links := c.toDocument(src, result)
			fetched++
			prog.PagesFetched++
			c.metrics.IncCounter("crawler_fetch_ok_total", map[string]string{"source": src.ID})
			emit(false)

			select {
			case docs <- doc:
			case <-ctx.Done():
				errs <- model.NewError(model.ErrDeadlineExceeded, "crawl cancelled", ctx.Err())
				emit(true)
				return
			}

			for _, link := range links {
				frontier.push(link, depth+1)
			}
		}
		emit(true)
	}()

	return docs, errs
}

func (c *Crawler) toDocument(src config.SourceConfig, r *fetch.Result) (*model.Document, []string) {
	var content, title string
	var links []string

	if r.RawHTML != "" {
		art, rerr := readability.FromReader(strings.NewReader(r.RawHTML), mustParseURL(r.FinalURL))
		articleHTML := r.RawHTML
		if rerr == nil && strings.TrimSpace(art.Content) != "" {
			articleHTML = art.Content
			title = strings.TrimSpace(art.Title)
		}
		md, mErr := htmltomarkdown.ConvertString(articleHTML, converter.WithDomain(baseOrigin(r.FinalURL)))
		if mErr == nil {
			content = strings.TrimSpace(md)
		} else {
			content = articleHTML
		}
		links = extractLinks(r.RawHTML, r.FinalURL)
	} else {
		content = string(r.Body)
	}

	doc := &model.Document{
		ID:          documentID(src.ID, r.FinalURL),
		SourceID:    src.ID,
		URL:         r.FinalURL,
		Title:       title,
		FetchedAt:   r.FetchedAt,
		ContentType: r.ContentType,
		Content:     content,
	}
	doc.RawHash = computeRawHash(doc.Content, doc.SourceID, doc.URL)
	return doc, links
}

func (c *Crawler) wait(ctx context.Context, rawURL string, delayMS int) error {
	host := hostOf(rawURL)
	limiter := c.limiterFor(host, delayMS)
	if err := limiter.Wait(ctx); err != nil {
		return model.NewError(model.ErrDeadlineExceeded, "politeness wait", err)
	}
	return nil
}

func (c *Crawler) limiterFor(host string, delayMS int) *rate.Limiter {
	c.mu.Lock()
	defer c.mu.Unlock()
	if l, ok := c.limiters[host]; ok {
		return l
	}
	if delayMS <= 0 {
		delayMS = 1
	}
	every := time.Duration(delayMS) * time.Millisecond
	l := rate.NewLimiter(rate.Every(every), 1)
	c.limiters[host] = l
	return l
}

func baseOrigin(raw string) string {
	u := mustParseURL(raw)
	if u == nil || u.Scheme == "" || u.Host == "" {
		return ""
	}
	return u.Scheme + "://" + u.Host
}
