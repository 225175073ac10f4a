package service

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"github.com/dtroode/weibofetch/internal/logger"
	"github.com/dtroode/weibofetch/internal/model"
	"github.com/dtroode/weibofetch/internal/session"
)

// Sessions is the process-wide session cache. A cached entry is valid only
// while its version equals the store's current version for the account; a
// mismatch means another writer superseded it and the entry is reloaded.
type Sessions struct {
	store     model.SnapshotStore
	transport model.Transport
	userAgent string
	logger    *logger.Logger

	// mu serializes read-check-then-write on the cache, including the
	// renewal path. Concurrent renewals from other processes are tolerated
	// by the store (renewal is idempotent); within this process they are
	// simply serialized.
	mu    sync.Mutex
	cache map[string]cacheEntry
}

type cacheEntry struct {
	version int64
	session *session.Session
}

func NewSessions(store model.SnapshotStore, transport model.Transport, userAgent string, logger *logger.Logger) *Sessions {
	return &Sessions{
		store:     store,
		transport: transport,
		userAgent: userAgent,
		logger:    logger,
		cache:     make(map[string]cacheEntry),
	}
}

// Get returns the current session for account, reloading from disk when the
// cached entry is missing or superseded.
func (s *Sessions) Get(ctx context.Context, account string) (int64, *session.Session, error) {
	return s.get(ctx, account, 0, false)
}

// GetRenewed forces a renewal if fromVersion is still current. The caller
// observed staleness at fromVersion; if someone else already renewed past it
// the forced renewal falls through to a normal load, and each caller that
// observed the same version independently re-establishes validity.
func (s *Sessions) GetRenewed(ctx context.Context, account string, fromVersion int64) (int64, *session.Session, error) {
	return s.get(ctx, account, fromVersion, true)
}

func (s *Sessions) get(ctx context.Context, account string, fromVersion int64, renew bool) (int64, *session.Session, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	current, err := s.store.CurrentVersion(account)
	if errors.Is(err, model.ErrNoSnapshot) {
		return 0, nil, fmt.Errorf("%w: %s", model.ErrUnknownAccount, account)
	}
	if err != nil {
		return 0, nil, err
	}

	if renew && fromVersion == current {
		return s.renewLocked(ctx, account, current)
	}

	if entry, ok := s.cache[account]; ok && entry.version == current {
		return entry.version, entry.session, nil
	}

	snap, err := s.store.ReadVersion(account, current)
	if err != nil {
		return 0, nil, err
	}

	sess, err := session.Restore(account, snap.Payload, s.transport, s.userAgent)
	if err != nil {
		return 0, nil, fmt.Errorf("failed to restore session for %s: %w", account, err)
	}

	s.cache[account] = cacheEntry{version: current, session: sess}
	return current, sess, nil
}

// renewLocked renews from the exact snapshot the staleness was observed at
// and persists the result as a new snapshot.
func (s *Sessions) renewLocked(ctx context.Context, account string, version int64) (int64, *session.Session, error) {
	s.logger.Info("Sessions service: renewing session",
		"account", account,
		"version", version)

	snap, err := s.store.ReadVersion(account, version)
	if err != nil {
		return 0, nil, err
	}

	sess, err := session.Restore(account, snap.Payload, s.transport, s.userAgent)
	if err != nil {
		return 0, nil, fmt.Errorf("failed to restore session for %s: %w", account, err)
	}

	if _, err := sess.Renew(ctx, true); err != nil {
		return 0, nil, fmt.Errorf("failed to renew session for %s: %w", account, err)
	}

	payload, err := sess.Marshal()
	if err != nil {
		return 0, nil, err
	}

	newVersion, err := s.store.Write(account, payload)
	if err != nil {
		return 0, nil, err
	}

	s.cache[account] = cacheEntry{version: newVersion, session: sess}

	s.logger.Info("Sessions service: session renewed",
		"account", account,
		"version", newVersion)

	return newVersion, sess, nil
}

// AddAccount provisions a new account: fresh session, login with the seeded
// cookies, initial snapshot. The cache is left untouched.
func (s *Sessions) AddAccount(ctx context.Context, name string, seed []model.Cookie) (int64, error) {
	if err := model.ValidateAccountName(name); err != nil {
		return 0, err
	}

	sess := session.New(name, s.transport, s.userAgent)
	if err := sess.Login(ctx, seed); err != nil {
		return 0, fmt.Errorf("failed to log in account %s: %w", name, err)
	}

	payload, err := sess.Marshal()
	if err != nil {
		return 0, err
	}

	version, err := s.store.Write(name, payload)
	if err != nil {
		return 0, err
	}

	s.logger.Info("Sessions service: account added",
		"account", name,
		"uid", sess.UID(),
		"version", version)

	return version, nil
}

// Accounts lists provisioned account names, sorted.
func (s *Sessions) Accounts() ([]string, error) {
	return s.store.Accounts()
}
