// Package httpjson issues single JSON GET requests and keeps the decoded body
// as a generic structure alongside the HTTP status.
package httpjson

import (
	"context"
	"errors"
	"fmt"
	"io"
	"mime"
	"net/http"
	"strings"

	"github.com/Jeffail/gabs/v2"
	"github.com/sirupsen/logrus"
	"golang.org/x/net/html/charset"
)

var (
	// ErrMissingField is returned when a path is absent from the decoded body.
	ErrMissingField = errors.New("missing field")
	// ErrFieldType is returned when a path exists but holds an unexpected type.
	ErrFieldType = errors.New("unexpected field type")
)

// Doer is the subset of *http.Client used here.
type Doer interface {
	Do(req *http.Request) (*http.Response, error)
}

// StatusError reports a non-2xx reply. The Response is still returned
// next to it.
type StatusError struct {
	StatusCode int
	Status     string
	Body       []byte
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("unexpected status: %s", e.Status)
}

// Response is a decoded upstream reply.
type Response struct {
	StatusCode int
	Header     http.Header
	Body       []byte
	// Data is nil when a non-2xx body is not JSON.
	Data *gabs.Container
}

// OK reports whether the status is 2xx.
func (r *Response) OK() bool {
	return r.StatusCode >= 200 && r.StatusCode < 300
}

func (r *Response) lookup(path string) (*gabs.Container, error) {
	if r == nil || r.Data == nil || !r.Data.ExistsP(path) {
		return nil, fmt.Errorf("%w: %s", ErrMissingField, path)
	}
	return r.Data.Path(path), nil
}

// String returns the string at the dotted path.
func (r *Response) String(path string) (string, error) {
	c, err := r.lookup(path)
	if err != nil {
		return "", err
	}
	s, ok := c.Data().(string)
	if !ok {
		return "", fmt.Errorf("%w: %s is %T", ErrFieldType, path, c.Data())
	}
	return s, nil
}

// Array returns the elements of the array at the dotted path.
func (r *Response) Array(path string) ([]*gabs.Container, error) {
	c, err := r.lookup(path)
	if err != nil {
		return nil, err
	}
	if _, ok := c.Data().([]interface{}); !ok {
		return nil, fmt.Errorf("%w: %s is %T", ErrFieldType, path, c.Data())
	}
	return c.Children(), nil
}

// Int returns the number at the dotted path truncated to an int.
func (r *Response) Int(path string) (int, error) {
	c, err := r.lookup(path)
	if err != nil {
		return 0, err
	}
	f, ok := c.Data().(float64)
	if !ok {
		return 0, fmt.Errorf("%w: %s is %T", ErrFieldType, path, c.Data())
	}
	return int(f), nil
}

// Wrap builds a 200 Response around an in-memory value, for sources that do
// no I/O.
func Wrap(v interface{}) *Response {
	data := gabs.Wrap(v)
	return &Response{
		StatusCode: http.StatusOK,
		Header:     http.Header{"Content-Type": []string{"application/json"}},
		Body:       data.Bytes(),
		Data:       data,
	}
}

// Get performs one GET against url and decodes the body.
//
// Transport errors are returned as the client produced them. A non-2xx reply
// yields both the Response and a *StatusError.
func Get(ctx context.Context, client Doer, url string, log logrus.FieldLogger) (*Response, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, fmt.Errorf("build request: %w", err)
	}
	req.Header.Set("Accept", "application/json")

	log.WithField("url", url).Debug("GET")
	resp, err := client.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	body, err := readBody(resp, log)
	if err != nil {
		return nil, fmt.Errorf("read body of %s: %w", url, err)
	}

	out := &Response{
		StatusCode: resp.StatusCode,
		Header:     resp.Header,
		Body:       body,
	}
	log.WithFields(logrus.Fields{
		"url":    url,
		"status": resp.StatusCode,
		"bytes":  len(body),
	}).Debug("response")

	data, decodeErr := gabs.ParseJSON(body)
	if decodeErr == nil {
		out.Data = data
	}

	if !out.OK() {
		return out, &StatusError{
			StatusCode: resp.StatusCode,
			Status:     resp.Status,
			Body:       body,
		}
	}
	if decodeErr != nil {
		return out, fmt.Errorf("decode %s: %w", url, decodeErr)
	}
	return out, nil
}

// readBody converts a body declared in a non-UTF-8 charset to UTF-8. A label
// x/net does not know leaves the bytes as they are.
func readBody(resp *http.Response, log logrus.FieldLogger) ([]byte, error) {
	label := declaredCharset(resp.Header.Get("Content-Type"))
	if label == "" || strings.EqualFold(label, "utf-8") || strings.EqualFold(label, "utf8") {
		return io.ReadAll(resp.Body)
	}
	reader, err := charset.NewReaderLabel(label, resp.Body)
	if err != nil {
		log.WithField("charset", label).Warn("unknown charset, keeping raw body")
		return io.ReadAll(resp.Body)
	}
	return io.ReadAll(reader)
}

func declaredCharset(contentType string) string {
	if contentType == "" {
		return ""
	}
	_, params, err := mime.ParseMediaType(contentType)
	if err != nil {
		return ""
	}
	return params["charset"]
}
