package diag

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/dtroode/weibofetch/internal/mocks"
	"github.com/dtroode/weibofetch/internal/testutil"
)

func readEntries(t *testing.T, path string) []entry {
	t.Helper()
	data, err := os.ReadFile(path)
	require.NoError(t, err)

	var entries []entry
	dec := json.NewDecoder(bytes.NewReader(data))
	for dec.More() {
		var e entry
		require.NoError(t, dec.Decode(&e))
		entries = append(entries, e)
	}
	return entries
}

func TestFileSink_Record_AppendsLines(t *testing.T) {
	path := filepath.Join(t.TempDir(), "diag.log")
	s := NewFileSink(path, nil, testutil.MakeNoopLogger())

	s.Record(context.Background(), "profile", `{"ok":2}`, errors.New("unknown body"))
	s.Record(context.Background(), "fans", `{"x":1}`, errors.New("unknown body"))

	entries := readEntries(t, path)
	require.Len(t, entries, 2)
	assert.Equal(t, "profile", entries[0].Operation)
	assert.Equal(t, `{"ok":2}`, entries[0].Diag)
	assert.Equal(t, "unknown body", entries[0].Error)
	assert.NotEmpty(t, entries[0].ID)
	assert.NotEmpty(t, entries[0].Timestamp)
	assert.Equal(t, "fans", entries[1].Operation)
	assert.NotEqual(t, entries[0].ID, entries[1].ID)
}

func TestFileSink_Record_UploadsToArchive(t *testing.T) {
	path := filepath.Join(t.TempDir(), "diag.log")
	archive := &mocks.Archive{}
	archive.On("Upload", mock.Anything, mock.MatchedBy(func(key string) bool {
		return strings.HasPrefix(key, "statuses/")
	}), mock.Anything).Return(nil).Once()

	s := NewFileSink(path, archive, testutil.MakeNoopLogger())
	s.Record(context.Background(), "statuses", `{"ok":9}`, errors.New("unknown body"))

	archive.AssertExpectations(t)
}

func TestFileSink_Record_SwallowsArchiveFailure(t *testing.T) {
	path := filepath.Join(t.TempDir(), "diag.log")
	archive := &mocks.Archive{}
	archive.On("Upload", mock.Anything, mock.Anything, mock.Anything).
		Return(errors.New("minio down")).Once()

	s := NewFileSink(path, archive, testutil.MakeNoopLogger())
	s.Record(context.Background(), "profile", "body", errors.New("cause"))

	// The local line still landed.
	entries := readEntries(t, path)
	require.Len(t, entries, 1)
	assert.Equal(t, "profile", entries[0].Operation)
}

func TestFileSink_Record_SwallowsFileFailure(t *testing.T) {
	// The path is a directory: the append fails, but Record must not panic
	// and must not create anything.
	dir := t.TempDir()
	s := NewFileSink(dir, nil, testutil.MakeNoopLogger())

	s.Record(context.Background(), "profile", "body", errors.New("cause"))
}
