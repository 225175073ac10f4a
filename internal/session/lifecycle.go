package session

import (
	"bytes"
	"context"
	"slices"
	"strconv"
	"strings"

	"github.com/buger/jsonparser"

	"github.com/dtroode/weibofetch/internal/model"
)

// redirectMarker precedes the re-authentication target inside the entry
// page body. The service bounces anonymous and expired visitors through a
// scripted redirect rather than an HTTP one.
const redirectMarker = `location.replace("`

// Login drives the authentication sequence for a seeded session: the seed
// cookies come from a browser export, the entry walk picks up visitor state,
// and the config endpoint resolves the account's numeric identifier.
func (s *Session) Login(ctx context.Context, seed []model.Cookie) error {
	s.cookies = slices.Clone(seed)

	if err := s.walkEntry(ctx); err != nil {
		return err
	}

	uid, err := s.resolveIdentity(ctx)
	if err != nil {
		return err
	}
	s.uid = uid
	return nil
}

// ProbeActive issues one cheap request addressed by the stored identifier and
// reports whether the service still honors the session. It never mutates
// session state.
func (s *Session) ProbeActive(ctx context.Context) (bool, error) {
	if s.uid == "" {
		return false, &model.InternalError{Code: model.CodeIdentityMissing, Message: "session has no resolved identity"}
	}

	resp, err := s.do(ctx, InfoURL(s.uid), acceptJSON, RefererURL(s.uid), false)
	if err != nil {
		return false, err
	}
	// The probe endpoint answers 200 for any session state and 400 for an
	// invalid uid; anything else means the contract changed.
	if resp.Status != 200 && resp.Status != 400 {
		return false, &model.ProtocolError{Reason: model.ProtocolUnknownStatus, Status: resp.Status, Body: resp.Body}
	}

	return probeUID(resp.Body) == s.uid, nil
}

// Renew re-establishes an expired session by walking the scripted redirect
// chain from the entry page. With skipInitialCheck false, an initial probe
// short-circuits when the session is still active (returns false, nothing
// renewed). A renewal that still probes inactive is fatal.
func (s *Session) Renew(ctx context.Context, skipInitialCheck bool) (bool, error) {
	if !skipInitialCheck {
		active, err := s.ProbeActive(ctx)
		if err != nil {
			return false, err
		}
		if active {
			return false, nil
		}
	}

	if err := s.walkEntry(ctx); err != nil {
		return false, err
	}

	active, err := s.ProbeActive(ctx)
	if err != nil {
		return false, err
	}
	if !active {
		return false, &model.InternalError{Code: model.CodeRenewalInactive, Message: "renewal produced an inactive session"}
	}
	return true, nil
}

// walkEntry fetches the entry page and follows the scripted redirect, if
// present, collecting cookies along the way.
func (s *Session) walkEntry(ctx context.Context) error {
	resp, err := s.do(ctx, entryURL, acceptHTML, "", true)
	if err != nil {
		return err
	}

	if target := extractRedirect(resp.Body); target != "" {
		if _, err := s.do(ctx, target, acceptHTML, entryURL, true); err != nil {
			return err
		}
	}
	return nil
}

// resolveIdentity asks the config endpoint who the session is logged in as.
func (s *Session) resolveIdentity(ctx context.Context) (string, error) {
	resp, err := s.do(ctx, configURL, acceptJSON, entryURL, true)
	if err != nil {
		return "", err
	}

	loggedIn, err := jsonparser.GetBoolean(resp.Body, "data", "login")
	if err != nil || !loggedIn {
		return "", &model.InternalError{Code: model.CodeIdentityMissing, Message: "config endpoint reports no logged-in identity"}
	}

	if uid, err := jsonparser.GetString(resp.Body, "data", "uid"); err == nil && uid != "" {
		return uid, nil
	}
	if n, err := jsonparser.GetInt(resp.Body, "data", "uid"); err == nil {
		return strconv.FormatInt(n, 10), nil
	}
	return "", &model.InternalError{Code: model.CodeIdentityMissing, Message: "config endpoint returned no uid"}
}

// probeUID extracts the identity field from a probe response body; empty when
// absent.
func probeUID(body []byte) string {
	if idstr, err := jsonparser.GetString(body, "data", "user", "idstr"); err == nil && idstr != "" {
		return idstr
	}
	if id, err := jsonparser.GetInt(body, "data", "user", "id"); err == nil {
		return strconv.FormatInt(id, 10)
	}
	return ""
}

// extractRedirect pulls the scripted redirect target out of an entry page
// body; empty when the marker is absent.
func extractRedirect(body []byte) string {
	idx := bytes.Index(body, []byte(redirectMarker))
	if idx < 0 {
		return ""
	}
	rest := body[idx+len(redirectMarker):]
	end := bytes.IndexByte(rest, '"')
	if end < 0 {
		return ""
	}
	return strings.ReplaceAll(string(rest[:end]), `\/`, "/")
}
