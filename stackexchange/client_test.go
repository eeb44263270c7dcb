package stackexchange

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"os"
	"sync/atomic"
	"testing"

	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"hipster-exchange/httpjson"
)

func quietLogger() logrus.FieldLogger {
	l := logrus.New()
	l.SetLevel(logrus.PanicLevel)
	return l
}

// recordedAPI replays the recorded listings keyed by path.
func recordedAPI(t *testing.T) (*httptest.Server, *int32) {
	t.Helper()
	fixtures := map[string]string{
		"/2.3/questions": "testdata/stack_exchange_questions.json",
		"/2.3/users":     "testdata/stack_exchange_users.json",
	}
	var hits int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(&hits, 1)
		file, ok := fixtures[r.URL.Path]
		if !ok || r.URL.Query().Get("site") != "stackoverflow" || r.URL.Query().Get("page") != "1" {
			w.Header().Set("Content-Type", "application/json; charset=utf-8")
			w.WriteHeader(http.StatusBadRequest)
			w.Write([]byte(`{"error_id":400,"error_message":"site","error_name":"bad_parameter"}`))
			return
		}
		body, err := os.ReadFile(file)
		if err != nil {
			http.Error(w, err.Error(), http.StatusInternalServerError)
			return
		}
		w.Header().Set("Content-Type", "application/json; charset=utf-8")
		w.Write(body)
	}))
	t.Cleanup(srv.Close)
	return srv, &hits
}

func newTestClient(t *testing.T, srv *httptest.Server, site string, page int, opts ...Option) *Client {
	t.Helper()
	opts = append([]Option{
		WithBaseURL(srv.URL),
		WithHTTPClient(srv.Client()),
		WithLogger(quietLogger()),
	}, opts...)
	c, err := New(site, page, opts...)
	require.NoError(t, err)
	return c
}

func TestClient_Questions(t *testing.T) {
	srv, _ := recordedAPI(t)
	c := newTestClient(t, srv, "stackoverflow", 1)

	questions, err := c.Questions(context.Background())
	require.NoError(t, err)
	require.NotNil(t, questions)
	assert.Equal(t, http.StatusOK, questions.StatusCode)

	items, err := questions.Array("items")
	require.NoError(t, err)
	assert.Len(t, items, 30)
}

func TestClient_Users(t *testing.T) {
	srv, _ := recordedAPI(t)
	c := newTestClient(t, srv, "stackoverflow", 1)

	users, err := c.Users(context.Background())
	require.NoError(t, err)
	require.NotNil(t, users)

	items, err := users.Array("items")
	require.NoError(t, err)
	assert.NotNil(t, items)
	assert.Len(t, items, 30)
}

func TestClient_CallsAreIndependent(t *testing.T) {
	srv, hits := recordedAPI(t)
	c := newTestClient(t, srv, "stackoverflow", 1)
	ctx := context.Background()

	_, err := c.Users(ctx)
	require.NoError(t, err)
	_, err = c.Questions(ctx)
	require.NoError(t, err)
	_, err = c.Questions(ctx)
	require.NoError(t, err)

	assert.EqualValues(t, 3, atomic.LoadInt32(hits))
}

func TestClient_RequestShape(t *testing.T) {
	var got *http.Request
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		got = r
		w.Write([]byte(`{"items":[]}`))
	}))
	defer srv.Close()

	c := newTestClient(t, srv, "superuser", 3, WithVersion("/2.2/"), WithKey("abc"))
	resp, err := c.Users(context.Background())
	require.NoError(t, err)

	require.NotNil(t, got)
	assert.Equal(t, http.MethodGet, got.Method)
	assert.Equal(t, "/2.2/users", got.URL.Path)
	assert.Equal(t, "superuser", got.URL.Query().Get("site"))
	assert.Equal(t, "3", got.URL.Query().Get("page"))
	assert.Equal(t, "abc", got.URL.Query().Get("key"))

	items, err := resp.Array("items")
	require.NoError(t, err)
	assert.Empty(t, items)
}

func TestClient_NonSuccessReturnsResponse(t *testing.T) {
	srv, _ := recordedAPI(t)
	c := newTestClient(t, srv, "nosuchsite", 1)

	resp, err := c.Questions(context.Background())
	require.NotNil(t, resp)
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)

	var statusErr *httpjson.StatusError
	require.True(t, errors.As(err, &statusErr))

	name, err := resp.String("error_name")
	require.NoError(t, err)
	assert.Equal(t, "bad_parameter", name)
}

func TestNew_Validation(t *testing.T) {
	_, err := New("", 1)
	assert.ErrorIs(t, err, ErrInvalidSite)

	_, err = New("stackoverflow", 0)
	assert.ErrorIs(t, err, ErrInvalidPage)

	c, err := New("stackoverflow", 2)
	require.NoError(t, err)
	assert.Equal(t, "stackoverflow", c.Site())
	assert.Equal(t, 2, c.Page())
	assert.Equal(t, "https://api.stackexchange.com/2.3/questions?page=2&site=stackoverflow", c.endpoint("questions"))
}
