package model

import (
	"context"
	"net/http"
)

// Response is a raw transport response.
type Response struct {
	Status int
	Header http.Header
	Body   []byte
}

// Transport issues outbound GET requests. Timeout and retry count are fixed
// at construction; exhausted retries surface as *ConnError.
type Transport interface {
	Get(ctx context.Context, url string, headers map[string]string) (*Response, error)
}
