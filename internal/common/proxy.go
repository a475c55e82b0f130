package common

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/hashicorp/go-retryablehttp"
	"github.com/rs/zerolog/log"
)

// Error returned when a request finished with a status
// code other than 200
type StatusError struct {
	Url        string
	StatusCode int
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("request to %s returned %d %s", e.Url, e.StatusCode, http.StatusText(e.StatusCode))
}

type Proxy struct {
	header      map[string]string
	client      *retryablehttp.Client
	rateLimiter *RateLimiter
}

func NewProxy(header map[string]string, restrictions []Restriction, timeout time.Duration) *Proxy {
	client := retryablehttp.NewClient()
	client.RetryMax = 2
	client.HTTPClient.Timeout = timeout
	client.Logger = nil
	// 429 is handled by the rate limiter, so do not retry it here
	client.CheckRetry = func(ctx context.Context, resp *http.Response, err error) (bool, error) {
		if resp != nil && resp.StatusCode == http.StatusTooManyRequests {
			return false, nil
		}
		return retryablehttp.DefaultRetryPolicy(ctx, resp, err)
	}
	return &Proxy{header: header, client: client, rateLimiter: NewRateLimiter(restrictions, time.Minute)}
}

// Perform the provided request, indicating if it is vital.
// The request will be performed depending on the status of the rate limiter.
// Headers given when creating the proxy are added unless already present
func (proxy *Proxy) Do(ctx context.Context, request *http.Request, vital bool) ([]byte, error) {

	// ask for permission to execute the request
	// and wait if necessary
	if err := proxy.rateLimiter.Allow(ctx, vital); err != nil {
		return nil, err
	}

	// Add the header
	for key, value := range proxy.header {
		if request.Header.Get(key) == "" {
			request.Header.Set(key, value)
		}
	}
	retryable, err := retryablehttp.FromRequest(request.WithContext(ctx))
	if err != nil {
		return nil, fmt.Errorf("could not create request for url %s: %w", request.URL, err)
	}

	// Perform the request
	url := request.URL.String()
	log.Debug().Str("url", url).Msg("Requesting")
	res, err := proxy.client.Do(retryable)
	if err != nil {
		return nil, fmt.Errorf("could not perform request to %s: %w", url, err)
	}
	defer res.Body.Close()
	log.Debug().Int("status", res.StatusCode).Str("url", url).Msg(http.StatusText(res.StatusCode))

	switch res.StatusCode {
	case http.StatusOK:
		// Read the response
		stream, err := io.ReadAll(res.Body)
		if err != nil {
			return nil, fmt.Errorf("could not extract the response for url %s: %w", url, err)
		}
		return stream, nil
	case http.StatusTooManyRequests:
		proxy.rateLimiter.ReceivedRateLimit()
		return nil, &StatusError{Url: url, StatusCode: res.StatusCode}
	default:
		return nil, &StatusError{Url: url, StatusCode: res.StatusCode}
	}
}
