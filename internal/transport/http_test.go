package transport

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dtroode/weibofetch/internal/model"
)

func TestClient_Get_PassesHeaders(t *testing.T) {
	var gotUA, gotCookie string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotUA = r.Header.Get("User-Agent")
		gotCookie = r.Header.Get("Cookie")
		w.WriteHeader(http.StatusOK)
		w.Write([]byte(`{"ok":1}`))
	}))
	defer srv.Close()

	c := NewClient(time.Second, 0)
	resp, err := c.Get(context.Background(), srv.URL, map[string]string{
		"user-agent": "test-agent",
		"cookie":     "SUB=abc",
	})
	require.NoError(t, err)
	assert.Equal(t, 200, resp.Status)
	assert.Equal(t, []byte(`{"ok":1}`), resp.Body)
	assert.Equal(t, "test-agent", gotUA)
	assert.Equal(t, "SUB=abc", gotCookie)
}

func TestClient_Get_NoRetryOnErrorStatus(t *testing.T) {
	var calls int
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls++
		w.WriteHeader(http.StatusBadGateway)
	}))
	defer srv.Close()

	c := NewClient(time.Second, 3)
	c.initialInterval = time.Millisecond

	resp, err := c.Get(context.Background(), srv.URL, nil)
	require.NoError(t, err)
	assert.Equal(t, 502, resp.Status)
	assert.Equal(t, 1, calls)
}

func TestClient_Get_RetriesConnectionFailure(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {}))
	addr := srv.URL
	srv.Close() // nothing listening: every attempt fails

	c := NewClient(time.Second, 2)
	c.initialInterval = time.Millisecond

	start := time.Now()
	_, err := c.Get(context.Background(), addr, nil)
	require.Error(t, err)

	var connErr *model.ConnError
	require.True(t, errors.As(err, &connErr))
	assert.Equal(t, addr, connErr.URL)
	// Two retries mean at least two backoff waits happened.
	assert.GreaterOrEqual(t, time.Since(start), 2*time.Millisecond)
}

func TestClient_Get_TimeoutCategory(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		time.Sleep(200 * time.Millisecond)
	}))
	defer srv.Close()

	c := NewClient(10*time.Millisecond, 0)

	_, err := c.Get(context.Background(), srv.URL, nil)
	var connErr *model.ConnError
	require.True(t, errors.As(err, &connErr))
	assert.Equal(t, model.ConnTimeout, connErr.Category)
}
