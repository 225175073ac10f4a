package model

import (
	"errors"
	"fmt"
)

var (
	// ErrInvalidAccountName is returned for account names outside the allowed charset.
	ErrInvalidAccountName = errors.New("invalid account name")
	// ErrUnknownAccount is returned when an account has never been provisioned.
	ErrUnknownAccount = errors.New("unknown account")
	// ErrNoSnapshot is returned when an account's store holds no snapshot.
	ErrNoSnapshot = errors.New("no snapshot")
	// ErrInvalidUID is returned for non-numeric uid arguments.
	ErrInvalidUID = errors.New("invalid uid")
	// ErrInvalidCursor is returned for a since_id cursor outside the
	// "<digits>kp<digits>" literal format.
	ErrInvalidCursor = errors.New("invalid since_id cursor")
)

// NotFoundError means the addressed external entity does not exist.
type NotFoundError struct {
	UID string
}

func (e *NotFoundError) Error() string {
	return fmt.Sprintf("user %s not found", e.UID)
}

// ProtocolError means a response did not match any known shape: the external
// contract has changed. It carries the raw material for triage.
type ProtocolError struct {
	Reason string
	Status int
	Body   []byte
}

func (e *ProtocolError) Error() string {
	return fmt.Sprintf("unexpected response (%s): status=%d", e.Reason, e.Status)
}

// Protocol error reasons.
const (
	ProtocolParseError    = "parse error"
	ProtocolUnknownStatus = "unknown status"
	ProtocolUnknownBody   = "unknown body"
)

// ConnCategory classifies a transport-level connection failure.
type ConnCategory string

const (
	ConnSocket  ConnCategory = "socket"
	ConnTimeout ConnCategory = "timeout"
	ConnUnknown ConnCategory = "unknown"
)

// ConnError is a connection failure after the transport's retries are exhausted.
type ConnError struct {
	Category ConnCategory
	URL      string
	Err      error
}

func (e *ConnError) Error() string {
	return fmt.Sprintf("connection failure (%s) requesting %s: %v", e.Category, e.URL, e.Err)
}

func (e *ConnError) Unwrap() error { return e.Err }

// InternalError signals a violated invariant or an exhausted retry budget.
// Code is a stable diagnostic identifier for triage.
type InternalError struct {
	Code    string
	Message string
}

func (e *InternalError) Error() string {
	return fmt.Sprintf("internal error [%s]: %s", e.Code, e.Message)
}

// Internal error codes.
const (
	CodeStaleAfterRenewal = "stale_after_renewal"
	CodeRenewalInactive   = "renewal_inactive"
	CodeIdentityMissing   = "identity_missing"
)

// StorageError is a local disk failure in the snapshot store. Always fatal.
type StorageError struct {
	Op   string
	Path string
	Err  error
}

func (e *StorageError) Error() string {
	return fmt.Sprintf("storage %s %s: %v", e.Op, e.Path, e.Err)
}

func (e *StorageError) Unwrap() error { return e.Err }
