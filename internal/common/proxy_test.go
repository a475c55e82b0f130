package common

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestProxy(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case "/ok":
			w.Write([]byte(r.Header.Get("Client-ID") + " " + r.Header.Get("Authorization")))
		case "/limited":
			w.WriteHeader(http.StatusTooManyRequests)
		default:
			w.WriteHeader(http.StatusNotFound)
		}
	}))
	defer server.Close()

	ctx := context.Background()
	proxy := NewProxy(map[string]string{"Client-ID": "id", "Authorization": "default"}, []Restriction{{Requests: 10, Duration: time.Second}}, time.Second)

	// Headers already set are kept
	request, err := http.NewRequest(http.MethodGet, server.URL+"/ok", nil)
	require.NoError(t, err)
	request.Header.Set("Authorization", "Bearer token")
	body, err := proxy.Do(ctx, request, false)
	require.NoError(t, err)
	assert.Equal(t, "id Bearer token", string(body))

	request, err = http.NewRequest(http.MethodGet, server.URL+"/missing", nil)
	require.NoError(t, err)
	_, err = proxy.Do(ctx, request, false)
	var statusErr *StatusError
	require.ErrorAs(t, err, &statusErr)
	assert.Equal(t, http.StatusNotFound, statusErr.StatusCode)

	// A rate limit answer stops the next requests
	request, err = http.NewRequest(http.MethodGet, server.URL+"/limited", nil)
	require.NoError(t, err)
	_, err = proxy.Do(ctx, request, false)
	require.ErrorAs(t, err, &statusErr)
	assert.Equal(t, http.StatusTooManyRequests, statusErr.StatusCode)

	request, err = http.NewRequest(http.MethodGet, server.URL+"/ok", nil)
	require.NoError(t, err)
	_, err = proxy.Do(ctx, request, false)
	assert.ErrorIs(t, err, ErrRateLimited)
}
