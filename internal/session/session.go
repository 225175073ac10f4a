// Package session holds one account's authenticated state: an ordered cookie
// jar plus the account's external numeric identifier, bound to a transport.
// Sessions round-trip byte-for-byte through snapshot payloads.
package session

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"slices"
	"strings"
	"sync"

	"github.com/dtroode/weibofetch/internal/model"
)

// Session is an in-memory authenticated session. It is constructed from a
// snapshot (or a fresh login), used for some number of requests, and
// discarded when superseded by a newer cached version.
type Session struct {
	account   string
	uid       string
	transport model.Transport
	userAgent string

	// mu guards the jar: fan-out operations issue concurrent requests
	// through one session.
	mu      sync.Mutex
	cookies []model.Cookie
}

// payload is the persisted form. The identity travels with the credential
// snapshot but is kept apart from the cookie records, so it can never be
// emitted as a request header.
type payload struct {
	Identity identity       `json:"identity"`
	Cookies  []model.Cookie `json:"cookies"`
}

type identity struct {
	UID string `json:"uid"`
}

// New creates an anonymous session for account.
func New(account string, transport model.Transport, userAgent string) *Session {
	return &Session{
		account:   account,
		transport: transport,
		userAgent: userAgent,
	}
}

// Restore reconstructs a session from a snapshot payload.
func Restore(account string, data []byte, transport model.Transport, userAgent string) (*Session, error) {
	var p payload
	if err := json.Unmarshal(data, &p); err != nil {
		return nil, fmt.Errorf("failed to decode snapshot payload: %w", err)
	}

	s := New(account, transport, userAgent)
	s.uid = p.Identity.UID
	s.cookies = p.Cookies
	return s, nil
}

// Account returns the account name the session belongs to.
func (s *Session) Account() string { return s.account }

// UID returns the account's external numeric identifier.
func (s *Session) UID() string { return s.uid }

// GetJSON issues an authenticated GET against an ajax endpoint.
func (s *Session) GetJSON(ctx context.Context, rawURL, referer string) (*model.Response, error) {
	return s.do(ctx, rawURL, acceptJSON, referer, true)
}

// Marshal serializes the session into a snapshot payload. Restoring the
// result reproduces an identical session.
func (s *Session) Marshal() ([]byte, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	data, err := json.Marshal(payload{
		Identity: identity{UID: s.uid},
		Cookies:  s.cookies,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to encode snapshot payload: %w", err)
	}
	return data, nil
}

// Get issues an authenticated GET through the session's transport and merges
// any Set-Cookie responses back into the jar.
func (s *Session) Get(ctx context.Context, rawURL, accept, referer string) (*model.Response, error) {
	return s.do(ctx, rawURL, accept, referer, true)
}

func (s *Session) do(ctx context.Context, rawURL, accept, referer string, recordCookies bool) (*model.Response, error) {
	host, err := requestHost(rawURL)
	if err != nil {
		return nil, err
	}

	headers := map[string]string{
		"user-agent":      s.userAgent,
		"accept":          accept,
		"accept-language": "en-US,en;q=0.9,zh-CN;q=0.8,zh;q=0.7",
	}
	if referer != "" {
		headers["referer"] = referer
	}
	if cookie := s.cookieHeader(host); cookie != "" {
		headers["cookie"] = cookie
	}

	resp, err := s.transport.Get(ctx, rawURL, headers)
	if err != nil {
		return nil, err
	}

	if recordCookies {
		s.mergeSetCookies(resp.Header, host)
	}
	return resp, nil
}

// cookieHeader assembles the cookie header for host from matching records,
// preserving jar order.
func (s *Session) cookieHeader(host string) string {
	s.mu.Lock()
	defer s.mu.Unlock()

	var parts []string
	for _, c := range s.cookies {
		if c.Matches(host) {
			parts = append(parts, c.Name+"="+c.Value)
		}
	}
	return strings.Join(parts, "; ")
}

// mergeSetCookies upserts cookies from a response into the jar. A cookie with
// an explicit Domain attribute becomes a domain cookie; otherwise it is bound
// to the responding host only.
func (s *Session) mergeSetCookies(header http.Header, host string) {
	s.mu.Lock()
	defer s.mu.Unlock()

	parsed := (&http.Response{Header: header}).Cookies()
	for _, c := range parsed {
		record := model.Cookie{
			Name:      c.Name,
			Value:     c.Value,
			Domain:    strings.TrimPrefix(c.Domain, "."),
			Path:      c.Path,
			ForDomain: c.Domain != "",
			MaxAge:    int64(c.MaxAge),
		}
		if record.Domain == "" {
			record.Domain = host
		}
		if record.Path == "" {
			record.Path = "/"
		}

		idx := slices.IndexFunc(s.cookies, func(existing model.Cookie) bool {
			return existing.Name == record.Name && existing.Domain == record.Domain
		})
		if idx >= 0 {
			s.cookies[idx] = record
			continue
		}
		s.cookies = append(s.cookies, record)
	}
}

func requestHost(rawURL string) (string, error) {
	u, err := url.Parse(rawURL)
	if err != nil {
		return "", fmt.Errorf("failed to parse request url %q: %w", rawURL, err)
	}
	return u.Hostname(), nil
}
