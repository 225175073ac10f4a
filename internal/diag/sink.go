// Package diag persists error diagnostics. Writes are strictly best-effort:
// a failure to record never surfaces to the operation that produced the
// original error.
package diag

import (
	"bytes"
	"context"
	"encoding/json"
	"os"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/dtroode/weibofetch/internal/logger"
	"github.com/dtroode/weibofetch/internal/model"
)

var _ model.DiagnosticSink = (*FileSink)(nil)

// FileSink appends one JSON line per diagnostic to a local log file and,
// when an archive is configured, uploads the diagnostic text (typically the
// raw body that defeated the classifier) for offline triage.
type FileSink struct {
	path    string
	archive model.Archive
	logger  *logger.Logger

	mu sync.Mutex
}

type entry struct {
	ID        string `json:"id"`
	Timestamp string `json:"ts"`
	Operation string `json:"operation"`
	Error     string `json:"error"`
	Diag      string `json:"diag"`
}

// NewFileSink creates a sink writing to path. archive may be nil.
func NewFileSink(path string, archive model.Archive, logger *logger.Logger) *FileSink {
	return &FileSink{
		path:    path,
		archive: archive,
		logger:  logger,
	}
}

// Record persists one diagnostic. Failures are logged and swallowed.
func (s *FileSink) Record(ctx context.Context, op string, diag string, cause error) {
	id := uuid.NewString()

	e := entry{
		ID:        id,
		Timestamp: time.Now().UTC().Format(time.RFC3339),
		Operation: op,
		Error:     cause.Error(),
		Diag:      diag,
	}

	line, err := json.Marshal(e)
	if err != nil {
		s.logger.Error("Diag sink: failed to encode entry",
			"operation", op,
			"error", err.Error())
		return
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	f, err := os.OpenFile(s.path, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o600)
	if err != nil {
		s.logger.Error("Diag sink: failed to open log file",
			"path", s.path,
			"error", err.Error())
		return
	}
	defer f.Close()

	if _, err := f.Write(append(line, '\n')); err != nil {
		s.logger.Error("Diag sink: failed to append entry",
			"path", s.path,
			"error", err.Error())
		return
	}

	if s.archive != nil {
		key := op + "/" + id
		if err := s.archive.Upload(ctx, key, bytes.NewReader([]byte(diag))); err != nil {
			s.logger.Error("Diag sink: failed to archive diagnostic",
				"key", key,
				"error", err.Error())
		}
	}
}
