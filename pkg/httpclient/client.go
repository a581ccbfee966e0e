// Package httpclient builds the retrying, throttled HTTP client used to talk
// to the GitHub API.
package httpclient

import (
	"context"
	"fmt"
	"net/http"
	"net/url"
	"os"
	"sync/atomic"
	"time"

	"github.com/hashicorp/go-retryablehttp"
	"github.com/rs/zerolog/log"
	"golang.org/x/time/rate"
)

// ignoreProxy controls whether the HTTP_PROXY environment variable is ignored.
var ignoreProxy atomic.Bool

// SetIgnoreProxy sets whether to ignore the HTTP_PROXY environment variable.
func SetIgnoreProxy(ignore bool) {
	ignoreProxy.Store(ignore)
}

// HeaderRoundTripper is an http.RoundTripper that adds default headers to requests.
// Headers are only added if they're not already present in the request.
type HeaderRoundTripper struct {
	Headers map[string]string
	Next    http.RoundTripper
}

func (hrt *HeaderRoundTripper) RoundTrip(req *http.Request) (*http.Response, error) {
	if hrt.Next == nil {
		return nil, http.ErrNotSupported
	}

	for k, v := range hrt.Headers {
		if req.Header.Get(k) == "" {
			req.Header.Set(k, v)
		}
	}

	return hrt.Next.RoundTrip(req)
}

// ThrottleRoundTripper spaces requests according to Limiter.
type ThrottleRoundTripper struct {
	Limiter *rate.Limiter
	Next    http.RoundTripper
}

func (trt *ThrottleRoundTripper) RoundTrip(req *http.Request) (*http.Response, error) {
	if trt.Next == nil {
		return nil, http.ErrNotSupported
	}
	if err := trt.Limiter.Wait(req.Context()); err != nil {
		return nil, err
	}
	return trt.Next.RoundTrip(req)
}

type Options struct {
	Headers map[string]string
	// RequestsPerMinute throttles outgoing requests. Zero disables throttling.
	RequestsPerMinute int
	RetryMax          int
}

// DefaultOptions matches the secret scanning API budget of 30 calls per minute.
func DefaultOptions() Options {
	return Options{
		Headers:           map[string]string{"User-Agent": "custompatterns"},
		RequestsPerMinute: 30,
		RetryMax:          4,
	}
}

// CheckRetry retries on transport errors, 429 and 5xx except 501.
func CheckRetry(ctx context.Context, resp *http.Response, err error) (bool, error) {
	if ctx != nil && ctx.Err() != nil {
		return false, ctx.Err()
	}

	if err != nil {
		log.Error().Err(err).Msg("Retrying HTTP request, error occurred")
		return true, nil
	}

	if resp == nil {
		log.Error().Msg("Retrying HTTP request, no response")
		return false, nil
	}

	if resp.StatusCode == http.StatusTooManyRequests || (resp.StatusCode >= 500 && resp.StatusCode != http.StatusNotImplemented) {
		url := ""
		if resp.Request != nil && resp.Request.URL != nil {
			url = resp.Request.URL.String()
		}
		log.Trace().Str("url", url).Int("statusCode", resp.StatusCode).Msg("Retrying HTTP request")
		return true, nil
	}

	return false, nil
}

// New creates a retryable HTTP client. HTTP_PROXY is honoured unless
// SetIgnoreProxy(true) was called.
func New(opts Options) (*retryablehttp.Client, error) {
	client := retryablehttp.NewClient()
	client.Logger = nil
	client.RetryMax = opts.RetryMax
	client.CheckRetry = CheckRetry

	tr := http.DefaultTransport.(*http.Transport).Clone()
	if !ignoreProxy.Load() {
		proxyServer, useHttpProxy := os.LookupEnv("HTTP_PROXY")
		if useHttpProxy {
			proxyUrl, err := url.Parse(proxyServer)
			if err != nil {
				return nil, fmt.Errorf("invalid proxy URL in HTTP_PROXY: %w", err)
			}
			log.Info().Str("proxy", proxyUrl.String()).Msg("Using HTTP_PROXY")
			tr.Proxy = http.ProxyURL(proxyUrl)
		}
	}

	var next http.RoundTripper = tr
	if opts.RequestsPerMinute > 0 {
		limit := rate.Every(time.Minute / time.Duration(opts.RequestsPerMinute))
		next = &ThrottleRoundTripper{Limiter: rate.NewLimiter(limit, 1), Next: next}
	}

	client.HTTPClient.Transport = &HeaderRoundTripper{Headers: opts.Headers, Next: next}
	return client, nil
}
