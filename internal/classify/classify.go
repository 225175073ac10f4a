// Package classify maps raw responses from the external ajax endpoint family
// into a closed set of outcomes. The endpoint has no stable error contract:
// stale-session bodies, error bodies and malformed success bodies are not
// mutually exclusive by shallow inspection, so predicates are evaluated in a
// fixed precedence and the first match wins.
package classify

import (
	"encoding/json"
	"strconv"
	"strings"

	"github.com/buger/jsonparser"
)

// Kind is one classified outcome.
type Kind string

const (
	// KindSuccess is a well-formed success body containing the required field.
	KindSuccess Kind = "success"
	// KindUserNotFound means the addressed entity does not exist.
	KindUserNotFound Kind = "user_not_found"
	// KindAccountPrivate means the relation list is hidden by the owner.
	KindAccountPrivate Kind = "account_private"
	// KindStaleSession means the service no longer honors the session and
	// redirects to the login page. Control signal, not an error.
	KindStaleSession Kind = "stale_session"
	// KindParseError means the body is not structured data.
	KindParseError Kind = "parse_error"
	// KindUnknownStatus is an HTTP status outside the known set.
	KindUnknownStatus Kind = "unknown_status"
	// KindUnknownBody is a body matching no known shape.
	KindUnknownBody Kind = "unknown_body"
)

// Result is a classified response. Body carries the raw bytes for every kind;
// for KindSuccess it is the payload callers extract fields from.
type Result struct {
	Kind   Kind
	Status int
	Body   []byte
}

const (
	okSuccess      = 1
	okAuthRequired = -100

	// notFoundCode appears in 400 bodies for nonexistent uids, either inside
	// the message text or as the numeric errno.
	notFoundCode = "20003"

	// loginPageMarker appears in the redirect url of auth-required bodies.
	loginPageMarker = "passport.weibo.com"
)

// Classify maps (status, body) to exactly one outcome. requiredField is a
// dotted path (e.g. "data.user") that must be present and non-null for a
// success body to classify as KindSuccess; empty means the ok flag alone
// decides.
func Classify(status int, body []byte, requiredField string) Result {
	if !json.Valid(body) {
		return Result{Kind: KindParseError, Status: status, Body: body}
	}

	if status == 400 && hasNotFoundCode(body) {
		return Result{Kind: KindUserNotFound, Status: status, Body: body}
	}

	if status != 200 && status != 400 {
		return Result{Kind: KindUnknownStatus, Status: status, Body: body}
	}

	ok, okPresent := intField(body, "ok")

	if okPresent && ok == okAuthRequired {
		if url, err := jsonparser.GetString(body, "url"); err == nil && strings.Contains(url, loginPageMarker) {
			return Result{Kind: KindStaleSession, Status: status, Body: body}
		}
	}

	if okPresent && ok == okSuccess && hasField(body, requiredField) {
		return Result{Kind: KindSuccess, Status: status, Body: body}
	}

	if okPresent && ok == 0 {
		inner, innerPresent := intField(body, "statusCode")
		hidden, hiddenPresent := intField(body, "relation_display")
		if innerPresent && inner == 200 && hiddenPresent && hidden == 1 {
			return Result{Kind: KindAccountPrivate, Status: status, Body: body}
		}
	}

	return Result{Kind: KindUnknownBody, Status: status, Body: body}
}

func hasField(body []byte, path string) bool {
	if path == "" {
		return true
	}
	_, dataType, _, err := jsonparser.Get(body, strings.Split(path, ".")...)
	return err == nil && dataType != jsonparser.Null
}

func hasNotFoundCode(body []byte) bool {
	if msg, err := jsonparser.GetString(body, "message"); err == nil && strings.Contains(msg, notFoundCode) {
		return true
	}
	if n, err := jsonparser.GetInt(body, "errno"); err == nil && strconv.FormatInt(n, 10) == notFoundCode {
		return true
	}
	if s, err := jsonparser.GetString(body, "errno"); err == nil && s == notFoundCode {
		return true
	}
	return false
}

func intField(body []byte, key string) (int64, bool) {
	n, err := jsonparser.GetInt(body, key)
	if err != nil {
		return 0, false
	}
	return n, true
}
