package model

import (
	"context"
	"io"
)

// DiagnosticSink persists error diagnostics. Writes are best-effort: a sink
// failure must never suppress or replace the error being recorded.
type DiagnosticSink interface {
	Record(ctx context.Context, op string, diag string, cause error)
}

// Archive stores raw response bodies for offline triage of protocol-unknown
// responses.
type Archive interface {
	Upload(ctx context.Context, key string, reader io.Reader) error
	Download(ctx context.Context, key string) (io.ReadCloser, error)
	Exists(ctx context.Context, key string) (bool, error)
}
