package service

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"regexp"
	"strconv"
	"sync"

	"github.com/buger/jsonparser"

	"github.com/dtroode/weibofetch/internal/classify"
	"github.com/dtroode/weibofetch/internal/logger"
	"github.com/dtroode/weibofetch/internal/model"
	"github.com/dtroode/weibofetch/internal/session"
)

// staleAttempts bounds the stale-session loop: one detection, one
// renew-and-retry. A still-stale second attempt means the external contract
// changed or the credentials are fully invalidated.
const staleAttempts = 2

// Fetcher is the public operation surface. It is bound to one account whose
// session authenticates the uid-addressed requests; KeepAlive spans all
// provisioned accounts.
type Fetcher struct {
	sessions *Sessions
	sink     model.DiagnosticSink
	logger   *logger.Logger
	account  string
}

func NewFetcher(sessions *Sessions, sink model.DiagnosticSink, logger *logger.Logger, account string) *Fetcher {
	return &Fetcher{
		sessions: sessions,
		sink:     sink,
		logger:   logger,
		account:  account,
	}
}

// Profile is the joined result of the info and detail sub-requests.
type Profile struct {
	Info   json.RawMessage `json:"info"`
	Detail json.RawMessage `json:"detail"`
}

// RelationPage is one page of a friends or fans listing. Private is the
// sentinel for relation lists hidden by their owner; it is a defined result,
// not an error.
type RelationPage struct {
	Users          json.RawMessage `json:"users"`
	TotalNumber    int64           `json:"total_number"`
	PreviousCursor int64           `json:"previous_cursor,omitempty"`
	NextCursor     int64           `json:"next_cursor,omitempty"`
	Private        bool            `json:"private,omitempty"`
}

// StatusPage is one page of a timeline. An empty SinceID signals the last
// page.
type StatusPage struct {
	List    json.RawMessage `json:"list"`
	SinceID string          `json:"since_id"`
}

// Profile fetches the info and detail endpoints concurrently and joins them.
// Both must succeed independently; if either reports a stale session the
// pair is retried together after one renewal.
func (f *Fetcher) Profile(ctx context.Context, uid string) (*Profile, error) {
	if err := model.ValidateUID(uid); err != nil {
		return nil, f.fail(ctx, "profile", err)
	}

	var result Profile
	err := f.run(ctx, "profile", func(ctx context.Context, sess *session.Session) (bool, error) {
		requests := []struct {
			url   string
			field string
		}{
			{url: session.InfoURL(uid), field: "data.user"},
			{url: session.DetailURL(uid), field: "data"},
		}

		outcomes := make([]classify.Result, len(requests))
		errs := make([]error, len(requests))

		var wg sync.WaitGroup
		for i, req := range requests {
			wg.Add(1)
			go func(i int, url, field string) {
				defer wg.Done()
				outcomes[i], errs[i] = f.classified(ctx, sess, uid, url, field)
			}(i, req.url, req.field)
		}
		wg.Wait()

		for _, err := range errs {
			if err != nil {
				return false, err
			}
		}
		for _, outcome := range outcomes {
			if err := domainError(uid, outcome); err != nil {
				return false, err
			}
		}
		for _, outcome := range outcomes {
			if outcome.Kind == classify.KindStaleSession {
				return true, nil
			}
		}

		info, _, _, err := jsonparser.Get(outcomes[0].Body, "data")
		if err != nil {
			return false, unknownBody(outcomes[0])
		}
		detail, _, _, err := jsonparser.Get(outcomes[1].Body, "data")
		if err != nil {
			return false, unknownBody(outcomes[1])
		}

		result = Profile{Info: json.RawMessage(info), Detail: json.RawMessage(detail)}
		return false, nil
	})
	if err != nil {
		return nil, err
	}
	return &result, nil
}

// Friends fetches one page of the followed-users list.
func (f *Fetcher) Friends(ctx context.Context, uid string, page int) (*RelationPage, error) {
	return f.relations(ctx, "friends", uid, session.FriendsURL(uid, page))
}

// Fans fetches one page of the follower list.
func (f *Fetcher) Fans(ctx context.Context, uid string, page int) (*RelationPage, error) {
	return f.relations(ctx, "fans", uid, session.FansURL(uid, page))
}

func (f *Fetcher) relations(ctx context.Context, op, uid, url string) (*RelationPage, error) {
	if err := model.ValidateUID(uid); err != nil {
		return nil, f.fail(ctx, op, err)
	}

	var result RelationPage
	err := f.run(ctx, op, func(ctx context.Context, sess *session.Session) (bool, error) {
		outcome, err := f.classified(ctx, sess, uid, url, "users")
		if err != nil {
			return false, err
		}

		switch outcome.Kind {
		case classify.KindStaleSession:
			return true, nil
		case classify.KindAccountPrivate:
			result = RelationPage{Users: json.RawMessage("[]"), Private: true}
			return false, nil
		case classify.KindSuccess:
		default:
			return false, domainError(uid, outcome)
		}

		users, _, _, err := jsonparser.Get(outcome.Body, "users")
		if err != nil {
			return false, unknownBody(outcome)
		}

		result = RelationPage{Users: json.RawMessage(users)}
		result.TotalNumber, _ = jsonparser.GetInt(outcome.Body, "total_number")
		result.PreviousCursor, _ = jsonparser.GetInt(outcome.Body, "previous_cursor")
		result.NextCursor, _ = jsonparser.GetInt(outcome.Body, "next_cursor")
		return false, nil
	})
	if err != nil {
		return nil, err
	}
	return &result, nil
}

// sinceIDRe is the cursor literal: status id prefix, "kp", page number.
var sinceIDRe = regexp.MustCompile(`^([0-9]+)kp([0-9]+)$`)

// ParseCursor splits a since_id cursor into its status-id prefix and page
// number. An empty cursor means page 1.
func ParseCursor(sinceID string) (prefix, page string, err error) {
	if sinceID == "" {
		return "", "1", nil
	}
	m := sinceIDRe.FindStringSubmatch(sinceID)
	if m == nil {
		return "", "", fmt.Errorf("%w: %q", model.ErrInvalidCursor, sinceID)
	}
	return m[1], m[2], nil
}

// Statuses fetches one page of the timeline. sinceID is the cursor from the
// previous page; empty means the first page.
func (f *Fetcher) Statuses(ctx context.Context, uid, sinceID string) (*StatusPage, error) {
	if err := model.ValidateUID(uid); err != nil {
		return nil, f.fail(ctx, "statuses", err)
	}
	_, page, err := ParseCursor(sinceID)
	if err != nil {
		return nil, f.fail(ctx, "statuses", err)
	}

	var result StatusPage
	err = f.run(ctx, "statuses", func(ctx context.Context, sess *session.Session) (bool, error) {
		outcome, err := f.classified(ctx, sess, uid, session.StatusesURL(uid, page, sinceID), "data.list")
		if err != nil {
			return false, err
		}
		if outcome.Kind == classify.KindStaleSession {
			return true, nil
		}
		if err := domainError(uid, outcome); err != nil {
			return false, err
		}

		list, _, _, err := jsonparser.Get(outcome.Body, "data", "list")
		if err != nil {
			return false, unknownBody(outcome)
		}

		result = StatusPage{List: json.RawMessage(list), SinceID: nextCursor(outcome.Body)}
		return false, nil
	})
	if err != nil {
		return nil, err
	}
	return &result, nil
}

// ResolveUID returns the external numeric identifier of a managed account.
func (f *Fetcher) ResolveUID(ctx context.Context, account string) (string, error) {
	if err := model.ValidateAccountName(account); err != nil {
		return "", f.fail(ctx, "resolve_uid", err)
	}

	_, sess, err := f.sessions.Get(ctx, account)
	if err != nil {
		return "", f.fail(ctx, "resolve_uid", err)
	}
	return sess.UID(), nil
}

// KeepAlive probes every provisioned account in name-sorted order and renews
// the ones the service no longer honors. Returns the renewed account names in
// iteration order.
func (f *Fetcher) KeepAlive(ctx context.Context) ([]string, error) {
	accounts, err := f.sessions.Accounts()
	if err != nil {
		return nil, f.fail(ctx, "keep_alive", err)
	}

	renewed := []string{}
	for _, name := range accounts {
		version, sess, err := f.sessions.Get(ctx, name)
		if err != nil {
			return nil, f.fail(ctx, "keep_alive", err)
		}

		active, err := sess.ProbeActive(ctx)
		if err != nil {
			return nil, f.fail(ctx, "keep_alive", err)
		}
		if active {
			continue
		}

		if _, _, err := f.sessions.GetRenewed(ctx, name, version); err != nil {
			return nil, f.fail(ctx, "keep_alive", err)
		}
		renewed = append(renewed, name)

		f.logger.Info("Fetcher service: keep-alive renewed account",
			"account", name)
	}
	return renewed, nil
}

// run executes one operation attempt under the bounded stale-session loop:
// attempt, renew once on staleness, attempt again. attempt reports staleness
// via its bool; any error aborts immediately.
func (f *Fetcher) run(ctx context.Context, op string, attempt func(context.Context, *session.Session) (bool, error)) error {
	version, sess, err := f.sessions.Get(ctx, f.account)
	if err != nil {
		return f.fail(ctx, op, err)
	}

	for i := 1; i <= staleAttempts; i++ {
		stale, err := attempt(ctx, sess)
		if err != nil {
			return f.fail(ctx, op, err)
		}
		if !stale {
			return nil
		}
		if i == staleAttempts {
			return f.fail(ctx, op, &model.InternalError{
				Code:    model.CodeStaleAfterRenewal,
				Message: fmt.Sprintf("session for %s still stale after renewal", f.account),
			})
		}

		f.logger.Info("Fetcher service: stale session detected, renewing",
			"operation", op,
			"account", f.account,
			"version", version)

		version, sess, err = f.sessions.GetRenewed(ctx, f.account, version)
		if err != nil {
			return f.fail(ctx, op, err)
		}
	}
	return nil
}

// classified issues one authenticated request and classifies the response.
func (f *Fetcher) classified(ctx context.Context, sess *session.Session, uid, url, field string) (classify.Result, error) {
	resp, err := sess.GetJSON(ctx, url, session.RefererURL(uid))
	if err != nil {
		return classify.Result{}, err
	}
	return classify.Classify(resp.Status, resp.Body, field), nil
}

// fail records a diagnostic for err and returns it unchanged. The sink write
// is best-effort and never replaces the original error.
func (f *Fetcher) fail(ctx context.Context, op string, err error) error {
	f.logger.Error("Fetcher service: operation failed",
		"operation", op,
		"account", f.account,
		"error", err.Error())

	if f.sink != nil {
		f.sink.Record(ctx, op, diagnosticText(err), err)
	}
	return err
}

// domainError maps a classification that is neither success nor a control
// signal to its domain error; nil otherwise.
func domainError(uid string, res classify.Result) error {
	switch res.Kind {
	case classify.KindUserNotFound:
		return &model.NotFoundError{UID: uid}
	case classify.KindParseError:
		return &model.ProtocolError{Reason: model.ProtocolParseError, Status: res.Status, Body: res.Body}
	case classify.KindUnknownStatus:
		return &model.ProtocolError{Reason: model.ProtocolUnknownStatus, Status: res.Status, Body: res.Body}
	case classify.KindUnknownBody:
		return unknownBody(res)
	}
	return nil
}

func unknownBody(res classify.Result) error {
	return &model.ProtocolError{Reason: model.ProtocolUnknownBody, Status: res.Status, Body: res.Body}
}

// nextCursor extracts the follow-up since_id from a timeline body; empty on
// the last page. The field arrives as either a string or a number.
func nextCursor(body []byte) string {
	if s, err := jsonparser.GetString(body, "data", "since_id"); err == nil {
		return s
	}
	if n, err := jsonparser.GetInt(body, "data", "since_id"); err == nil {
		return strconv.FormatInt(n, 10)
	}
	return ""
}

// diagnosticText renders the triage payload for an error: protocol errors
// carry the raw body that defeated the classifier.
func diagnosticText(err error) string {
	var protoErr *model.ProtocolError
	if errors.As(err, &protoErr) {
		return fmt.Sprintf("status=%d body=%s", protoErr.Status, protoErr.Body)
	}
	return err.Error()
}
