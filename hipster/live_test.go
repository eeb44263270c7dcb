//go:build integration
// +build integration

package hipster

import (
	"context"
	"net/http"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRemoteSource_Live(t *testing.T) {
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	resp, err := NewRemoteSource().FetchData(ctx)
	require.NoError(t, err)
	assert.Equal(t, http.StatusOK, resp.StatusCode)

	text, err := New(nil).Text(ctx)
	require.NoError(t, err)
	assert.NotEmpty(t, text)
}
