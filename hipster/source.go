package hipster

import (
	"context"
	"net/http"
	"strings"
	"time"

	"github.com/sirupsen/logrus"

	"hipster-exchange/httpjson"
)

const defaultBaseURL = "http://hipsterjesus.com"

// Source is anything that can produce a hipster text reply.
type Source interface {
	FetchData(ctx context.Context) (*httpjson.Response, error)
}

// RemoteSource fetches text from the hipsterjesus API.
type RemoteSource struct {
	baseURL string
	http    httpjson.Doer
	log     logrus.FieldLogger
}

// Option configures a RemoteSource.
type Option func(*RemoteSource)

// WithBaseURL overrides the API host.
func WithBaseURL(u string) Option {
	return func(s *RemoteSource) { s.baseURL = strings.TrimRight(u, "/") }
}

// WithHTTPClient sets the client used for requests.
func WithHTTPClient(c httpjson.Doer) Option {
	return func(s *RemoteSource) { s.http = c }
}

// WithLogger sets the logger.
func WithLogger(l logrus.FieldLogger) Option {
	return func(s *RemoteSource) { s.log = l }
}

// NewRemoteSource targets hipsterjesus.com with a 10s client timeout.
func NewRemoteSource(opts ...Option) *RemoteSource {
	s := &RemoteSource{
		baseURL: defaultBaseURL,
		http:    &http.Client{Timeout: 10 * time.Second},
		log:     logrus.StandardLogger(),
	}
	for _, o := range opts {
		o(s)
	}
	return s
}

// FetchData issues GET /api. A non-2xx reply is returned together with a
// *httpjson.StatusError.
func (s *RemoteSource) FetchData(ctx context.Context) (*httpjson.Response, error) {
	return httpjson.Get(ctx, s.http, s.baseURL+"/api", s.log.WithField("source", "hipsterjesus"))
}

// Text fetches once and returns the body text, without memoizing.
func (s *RemoteSource) Text(ctx context.Context) (string, error) {
	return textOf(s.FetchData(ctx))
}

// FakeSource returns a fixed reply without touching the network.
type FakeSource struct{}

func (FakeSource) FetchData(context.Context) (*httpjson.Response, error) {
	return httpjson.Wrap(map[string]interface{}{
		"text": "blarg",
		"params": map[string]interface{}{
			"type": "hipster-greek",
		},
	}), nil
}

func (f FakeSource) Text(ctx context.Context) (string, error) {
	return textOf(f.FetchData(ctx))
}

func textOf(resp *httpjson.Response, err error) (string, error) {
	if err != nil {
		return "", err
	}
	return resp.String("text")
}
