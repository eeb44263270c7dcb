// Package stackexchange fetches question and user listings from the Stack
// Exchange API for one site and page.
package stackexchange

import (
	"context"
	"errors"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/sirupsen/logrus"

	"hipster-exchange/httpjson"
)

const (
	defaultBaseURL = "https://api.stackexchange.com"
	defaultVersion = "2.3"
)

var (
	// ErrInvalidSite is returned by New for an empty site.
	ErrInvalidSite = errors.New("stackexchange: site is required")
	// ErrInvalidPage is returned by New for a page below 1.
	ErrInvalidPage = errors.New("stackexchange: page must be >= 1")
)

// Client is bound to one site and page. It keeps no state between calls.
type Client struct {
	site    string
	page    int
	baseURL string
	version string
	key     string
	http    httpjson.Doer
	log     logrus.FieldLogger
}

// Option configures the Client.
type Option func(*Client)

// WithBaseURL overrides the API host (useful for testing).
func WithBaseURL(u string) Option {
	return func(c *Client) { c.baseURL = strings.TrimRight(u, "/") }
}

// WithVersion sets the API version path segment.
func WithVersion(v string) Option {
	return func(c *Client) { c.version = strings.Trim(v, "/") }
}

// WithKey sends an app key, which raises the daily quota.
func WithKey(key string) Option {
	return func(c *Client) { c.key = key }
}

// WithHTTPClient sets the client used for requests.
func WithHTTPClient(h httpjson.Doer) Option {
	return func(c *Client) { c.http = h }
}

// WithLogger sets the logger. Defaults to logrus.StandardLogger().
func WithLogger(l logrus.FieldLogger) Option {
	return func(c *Client) { c.log = l }
}

// New constructs a Client for site (e.g. "stackoverflow") and a 1-based page.
func New(site string, page int, opts ...Option) (*Client, error) {
	if strings.TrimSpace(site) == "" {
		return nil, ErrInvalidSite
	}
	if page < 1 {
		return nil, ErrInvalidPage
	}
	c := &Client{
		site:    site,
		page:    page,
		baseURL: defaultBaseURL,
		version: defaultVersion,
		http:    &http.Client{Timeout: 10 * time.Second},
		log:     logrus.StandardLogger(),
	}
	for _, o := range opts {
		o(c)
	}
	return c, nil
}

// Site returns the configured site name.
func (c *Client) Site() string { return c.site }

// Page returns the configured 1-based page.
func (c *Client) Page() int { return c.page }

// Questions fetches the questions listing.
func (c *Client) Questions(ctx context.Context) (*httpjson.Response, error) {
	return c.get(ctx, "questions")
}

// Users fetches the users listing.
func (c *Client) Users(ctx context.Context) (*httpjson.Response, error) {
	return c.get(ctx, "users")
}

func (c *Client) endpoint(resource string) string {
	q := url.Values{}
	q.Set("site", c.site)
	q.Set("page", strconv.Itoa(c.page))
	if c.key != "" {
		q.Set("key", c.key)
	}
	return c.baseURL + "/" + c.version + "/" + resource + "?" + q.Encode()
}

func (c *Client) get(ctx context.Context, resource string) (*httpjson.Response, error) {
	log := c.log.WithFields(logrus.Fields{
		"site":     c.site,
		"page":     c.page,
		"resource": resource,
	})
	resp, err := httpjson.Get(ctx, c.http, c.endpoint(resource), log)
	if resp != nil {
		reportQuota(log, resp)
	}
	return resp, err
}

// reportQuota logs the quota and backoff fields the API attaches to every
// reply. Honouring a backoff is left to the caller.
func reportQuota(log logrus.FieldLogger, resp *httpjson.Response) {
	if remaining, err := resp.Int("quota_remaining"); err == nil {
		log.WithField("quota_remaining", remaining).Debug("stackexchange quota")
	}
	if backoff, err := resp.Int("backoff"); err == nil {
		log.WithField("backoff_seconds", backoff).Warn("stackexchange requested backoff")
	}
}
