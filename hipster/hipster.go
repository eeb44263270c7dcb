// Package hipster wraps the hipsterjesus placeholder text API.
package hipster

import (
	"context"
	"sync"

	"hipster-exchange/httpjson"
)

// Text reads placeholder text from a Source. The first accessor call fetches;
// every later call, successful or not, reuses that outcome.
type Text struct {
	source Source

	once sync.Once
	resp *httpjson.Response
	err  error
}

// New returns a Text backed by source, or by a default RemoteSource when
// source is nil.
func New(source Source) *Text {
	if source == nil {
		source = NewRemoteSource()
	}
	return &Text{source: source}
}

// Response returns the memoized reply.
func (t *Text) Response(ctx context.Context) (*httpjson.Response, error) {
	t.once.Do(func() {
		t.resp, t.err = t.source.FetchData(ctx)
	})
	return t.resp, t.err
}

// Text returns the generated body text.
func (t *Text) Text(ctx context.Context) (string, error) {
	resp, err := t.Response(ctx)
	if err != nil {
		return "", err
	}
	return resp.String("text")
}

// Type returns the text-style variant, e.g. "hipster-latin".
func (t *Text) Type(ctx context.Context) (string, error) {
	resp, err := t.Response(ctx)
	if err != nil {
		return "", err
	}
	return resp.String("params.type")
}
