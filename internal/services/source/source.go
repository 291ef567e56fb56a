package source

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/PuerkitoBio/goquery"
	"github.com/mmcdole/gofeed"

	"clipmill/internal/config"
	"clipmill/internal/logging"
	"clipmill/internal/services"
)

const stageName = "ingest"

// RawItem is one post as published by the source, before normalization.
type RawItem struct {
	Title  string
	Author string
	Body   string
}

// Batch is the result of fetching one collection.
type Batch struct {
	Collection string
	Items      []RawItem
	// Skipped counts entries that could not be parsed into a RawItem.
	Skipped int
}

// Source produces raw items for a named collection.
type Source interface {
	Fetch(ctx context.Context, collection string) (Batch, error)
}

// Client fetches collections over HTTP.
type Client struct {
	baseURL   string
	userAgent string
	kinds     map[string]string
	http      *http.Client
	logger    *slog.Logger
}

// Option customizes a Client.
type Option func(*Client)

// WithHTTPClient overrides the HTTP client used for requests.
func WithHTTPClient(client *http.Client) Option {
	return func(c *Client) {
		if client != nil {
			c.http = client
		}
	}
}

// WithBaseURL overrides the listing host.
func WithBaseURL(base string) Option {
	return func(c *Client) {
		c.baseURL = strings.TrimRight(strings.TrimSpace(base), "/")
	}
}

// NewClient builds a Client from the sources section of cfg.
func NewClient(cfg config.Sources, logger *slog.Logger, opts ...Option) *Client {
	if logger == nil {
		logger = logging.NewNop()
	}
	timeout := time.Duration(cfg.Timeout) * time.Second
	if timeout <= 0 {
		timeout = 30 * time.Second
	}
	kinds := make(map[string]string, len(cfg.Collections))
	for name, kind := range cfg.Collections {
		kinds[name] = kind
	}
	client := &Client{
		baseURL:   strings.TrimRight(cfg.BaseURL, "/"),
		userAgent: cfg.UserAgent,
		kinds:     kinds,
		http:      &http.Client{Timeout: timeout},
		logger:    logging.NewComponentLogger(logger, "source"),
	}
	for _, opt := range opts {
		opt(client)
	}
	return client
}

// Fetch reads the top listing of collection using the kind configured for it.
func (c *Client) Fetch(ctx context.Context, collection string) (Batch, error) {
	kind, ok := c.kinds[collection]
	if !ok {
		return Batch{}, services.Wrap(services.ErrConfiguration, stageName, "fetch",
			fmt.Sprintf("collection %q is not configured", collection), nil)
	}

	var (
		batch Batch
		err   error
	)
	switch kind {
	case config.SourceKindRSS:
		batch, err = c.fetchRSS(ctx, collection)
	case config.SourceKindWeb:
		batch, err = c.fetchWeb(ctx, collection)
	default:
		return Batch{}, services.Wrap(services.ErrConfiguration, stageName, "fetch",
			fmt.Sprintf("collection %q has unsupported kind %q", collection, kind), nil)
	}
	if err != nil {
		return Batch{}, err
	}
	batch.Collection = collection
	c.logger.Info("collection fetched",
		logging.String("collection", collection),
		logging.String("kind", kind),
		logging.Int("items", len(batch.Items)),
		logging.Int("skipped", batch.Skipped),
	)
	return batch, nil
}

func (c *Client) listingURL(collection, suffix string) string {
	return c.baseURL + "/r/" + url.PathEscape(collection) + suffix
}

func (c *Client) get(ctx context.Context, target string) (io.ReadCloser, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, target, nil)
	if err != nil {
		return nil, services.Wrap(services.ErrConfiguration, stageName, "build request", target, err)
	}
	if c.userAgent != "" {
		req.Header.Set("User-Agent", c.userAgent)
	}
	resp, err := c.http.Do(req)
	if err != nil {
		if errors.Is(err, context.DeadlineExceeded) {
			return nil, services.Wrap(services.ErrTimeout, stageName, "fetch", target, err)
		}
		return nil, services.Wrap(services.ErrTransient, stageName, "fetch", target, err)
	}
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		snippet, _ := io.ReadAll(io.LimitReader(resp.Body, 256))
		resp.Body.Close()
		return nil, services.Wrap(services.ErrExternalTool, stageName, "fetch",
			fmt.Sprintf("%s returned %s", target, resp.Status), errors.New(strings.TrimSpace(string(snippet))))
	}
	return resp.Body, nil
}

func (c *Client) fetchRSS(ctx context.Context, collection string) (Batch, error) {
	body, err := c.get(ctx, c.listingURL(collection, "/top.rss"))
	if err != nil {
		return Batch{}, err
	}
	defer body.Close()

	feed, err := gofeed.NewParser().Parse(body)
	if err != nil {
		return Batch{}, services.Wrap(services.ErrValidation, stageName, "parse feed", collection, err)
	}

	var batch Batch
	for idx, entry := range feed.Items {
		item, err := rawFromFeedItem(entry)
		if err != nil {
			batch.Skipped++
			c.logger.Debug("feed entry skipped",
				logging.String("collection", collection),
				logging.Int("index", idx),
				logging.Error(err),
			)
			continue
		}
		batch.Items = append(batch.Items, item)
	}
	return batch, nil
}

func rawFromFeedItem(entry *gofeed.Item) (RawItem, error) {
	if entry == nil {
		return RawItem{}, errors.New("empty entry")
	}
	title := strings.TrimSpace(entry.Title)
	if title == "" {
		return RawItem{}, errors.New("entry has no title")
	}
	author := feedAuthor(entry)
	if author == "" {
		return RawItem{}, errors.New("entry has no author")
	}
	html := entry.Content
	if strings.TrimSpace(html) == "" {
		html = entry.Description
	}
	body, err := paragraphText(html)
	if err != nil {
		return RawItem{}, err
	}
	return RawItem{Title: title, Author: author, Body: body}, nil
}

func feedAuthor(entry *gofeed.Item) string {
	for _, person := range entry.Authors {
		if person != nil && strings.TrimSpace(person.Name) != "" {
			return strings.TrimSpace(person.Name)
		}
	}
	return ""
}

// paragraphText joins the text of every <p> element in fragment.
func paragraphText(fragment string) (string, error) {
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(fragment))
	if err != nil {
		return "", fmt.Errorf("parse entry html: %w", err)
	}
	var parts []string
	doc.Find("p").Each(func(_ int, sel *goquery.Selection) {
		if text := strings.TrimSpace(sel.Text()); text != "" {
			parts = append(parts, text)
		}
	})
	return strings.Join(parts, " "), nil
}

func (c *Client) fetchWeb(ctx context.Context, collection string) (Batch, error) {
	body, err := c.get(ctx, c.listingURL(collection, "/top"))
	if err != nil {
		return Batch{}, err
	}
	defer body.Close()

	doc, err := goquery.NewDocumentFromReader(body)
	if err != nil {
		return Batch{}, services.Wrap(services.ErrValidation, stageName, "parse listing", collection, err)
	}

	var batch Batch
	doc.Find("shreddit-post").Each(func(idx int, post *goquery.Selection) {
		item, err := rawFromPost(post)
		if err != nil {
			batch.Skipped++
			c.logger.Debug("listing post skipped",
				logging.String("collection", collection),
				logging.Int("index", idx),
				logging.Error(err),
			)
			return
		}
		batch.Items = append(batch.Items, item)
	})
	return batch, nil
}

func rawFromPost(post *goquery.Selection) (RawItem, error) {
	title := strings.TrimSpace(post.Find(`a[id*="post-title"]`).First().Text())
	if title == "" {
		title = strings.TrimSpace(post.AttrOr("post-title", ""))
	}
	if title == "" {
		return RawItem{}, errors.New("post has no title")
	}
	author := strings.TrimSpace(post.Find(`span[slot="authorName"]`).First().Text())
	if author == "" {
		author = strings.TrimSpace(post.AttrOr("author", ""))
	}
	if author == "" {
		return RawItem{}, errors.New("post has no author")
	}
	content := post.Find(`div[id*="post-rtjson-content"]`).First()
	if content.Length() == 0 {
		return RawItem{}, errors.New("post has no body")
	}
	return RawItem{Title: title, Author: author, Body: strings.TrimSpace(content.Text())}, nil
}
