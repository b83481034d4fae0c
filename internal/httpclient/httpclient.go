// Package httpclient builds the HTTP clients shared by the scraper and the
// REST-backed stores, and retries transient failures with bounded
// exponential backoff.
package httpclient

import (
	"context"
	"fmt"
	"io"
	"net"
	"net/http"
	"time"

	"github.com/cenkalti/backoff/v4"

	"github.com/pfrederiksen/insead-events/internal/logger"
)

// New returns an http.Client with the given overall request timeout
func New(timeout time.Duration) *http.Client {
	tr := &http.Transport{
		Proxy:               http.ProxyFromEnvironment,
		DialContext:         (&net.Dialer{Timeout: 5 * time.Second, KeepAlive: 60 * time.Second}).DialContext,
		MaxIdleConns:        100,
		IdleConnTimeout:     90 * time.Second,
		TLSHandshakeTimeout: 5 * time.Second,
	}
	return &http.Client{Timeout: timeout, Transport: tr}
}

// StatusError reports a response whose status stayed retryable after every attempt
type StatusError struct {
	URL        string
	StatusCode int
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("unexpected status code %d from %s", e.StatusCode, e.URL)
}

// Retryable reports whether a status code is worth another attempt
func Retryable(status int) bool {
	return status == http.StatusTooManyRequests || status >= 500
}

// Policy bounds the retries of a single logical request.
// MaxRetries is the number of attempts after the first one.
type Policy struct {
	MaxRetries  int
	Initial     time.Duration
	MaxInterval time.Duration
	Log         *logger.Logger
}

func (p Policy) backOff(ctx context.Context) backoff.BackOff {
	b := backoff.NewExponentialBackOff()
	if p.Initial > 0 {
		b.InitialInterval = p.Initial
	}
	if p.MaxInterval > 0 {
		b.MaxInterval = p.MaxInterval
	}
	b.MaxElapsedTime = 0
	retries := p.MaxRetries
	if retries < 0 {
		retries = 0
	}
	return backoff.WithContext(backoff.WithMaxRetries(b, uint64(retries)), ctx)
}

// Do sends the request produced by build, rebuilding it for every attempt.
// Transport errors and 429/5xx responses are retried; any other response is
// returned to the caller, who owns its body.
func Do(ctx context.Context, client *http.Client, p Policy, build func(context.Context) (*http.Request, error)) (*http.Response, error) {
	var resp *http.Response

	op := func() error {
		req, err := build(ctx)
		if err != nil {
			return backoff.Permanent(fmt.Errorf("creating request: %w", err))
		}

		r, err := client.Do(req)
		if err != nil {
			if ctx.Err() != nil {
				return backoff.Permanent(ctx.Err())
			}
			return err
		}

		if Retryable(r.StatusCode) {
			drain(r)
			return &StatusError{URL: req.URL.String(), StatusCode: r.StatusCode}
		}

		resp = r
		return nil
	}

	notify := func(err error, wait time.Duration) {
		log := p.Log
		if log == nil {
			log = logger.Default()
		}
		log.Debug("Retrying request", logger.Fields{
			"error": err.Error(),
			"wait":  wait.String(),
		})
	}

	if err := backoff.RetryNotify(op, p.backOff(ctx), notify); err != nil {
		return nil, err
	}
	return resp, nil
}

func drain(r *http.Response) {
	_, _ = io.Copy(io.Discard, io.LimitReader(r.Body, 64<<10))
	r.Body.Close()
}
