// Package transport implements the outbound HTTP layer: GET only, a fixed
// per-attempt timeout and a bounded retry budget for connection-level
// failures. HTTP status codes are never retried here; interpreting them is
// the classifier's job.
package transport

import (
	"context"
	"errors"
	"io"
	"net"
	"net/http"
	"time"

	"github.com/cenkalti/backoff/v4"

	"github.com/dtroode/weibofetch/internal/model"
)

var _ model.Transport = (*Client)(nil)

type Client struct {
	http    *http.Client
	retries int

	// initialInterval seeds the exponential backoff between attempts.
	initialInterval time.Duration
}

// NewClient creates a transport with a per-attempt timeout and a retry count
// for connection failures.
func NewClient(timeout time.Duration, retries int) *Client {
	if retries < 0 {
		retries = 0
	}
	return &Client{
		http:            &http.Client{Timeout: timeout},
		retries:         retries,
		initialInterval: 500 * time.Millisecond,
	}
}

// Get issues a GET request with the given headers. Connection failures are
// retried up to the configured count; exhausted retries surface as
// *model.ConnError categorized as socket, timeout or unknown.
func (c *Client) Get(ctx context.Context, url string, headers map[string]string) (*model.Response, error) {
	var resp *model.Response

	operation := func() error {
		req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
		if err != nil {
			return backoff.Permanent(err)
		}
		for k, v := range headers {
			req.Header.Set(k, v)
		}

		res, err := c.http.Do(req)
		if err != nil {
			return err
		}
		defer res.Body.Close()

		body, err := io.ReadAll(res.Body)
		if err != nil {
			return err
		}

		resp = &model.Response{Status: res.StatusCode, Header: res.Header, Body: body}
		return nil
	}

	policy := backoff.NewExponentialBackOff()
	policy.InitialInterval = c.initialInterval

	err := backoff.Retry(operation, backoff.WithMaxRetries(policy, uint64(c.retries)))
	if err != nil {
		return nil, categorize(url, err)
	}
	return resp, nil
}

func categorize(url string, err error) *model.ConnError {
	category := model.ConnUnknown

	var netErr net.Error
	switch {
	case errors.As(err, &netErr) && netErr.Timeout(),
		errors.Is(err, context.DeadlineExceeded):
		category = model.ConnTimeout
	case errors.As(err, new(*net.OpError)):
		category = model.ConnSocket
	}

	return &model.ConnError{Category: category, URL: url, Err: err}
}
