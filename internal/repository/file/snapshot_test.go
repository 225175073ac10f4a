package file

import (
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dtroode/weibofetch/internal/model"
)

func TestSnapshotRepository_WriteRead(t *testing.T) {
	repo := NewSnapshotRepository(t.TempDir())

	v1, err := repo.Write("alice", []byte("first"))
	require.NoError(t, err)

	snap, err := repo.Read("alice")
	require.NoError(t, err)
	assert.Equal(t, v1, snap.Version)
	assert.Equal(t, []byte("first"), snap.Payload)
}

func TestSnapshotRepository_VersionsMonotonic(t *testing.T) {
	repo := NewSnapshotRepository(t.TempDir())

	var last int64
	for i := 0; i < 5; i++ {
		v, err := repo.Write("alice", []byte{byte(i)})
		require.NoError(t, err)
		assert.Greater(t, v, last)
		last = v
	}

	cur, err := repo.CurrentVersion("alice")
	require.NoError(t, err)
	assert.Equal(t, last, cur)
}

func TestSnapshotRepository_NeverProvisioned(t *testing.T) {
	repo := NewSnapshotRepository(t.TempDir())

	_, err := repo.CurrentVersion("ghost")
	assert.ErrorIs(t, err, model.ErrNoSnapshot)
	assert.False(t, repo.Provisioned("ghost"))
}

func TestSnapshotRepository_IgnoresForeignFiles(t *testing.T) {
	dir := t.TempDir()
	repo := NewSnapshotRepository(dir)

	v, err := repo.Write("alice", []byte("real"))
	require.NoError(t, err)

	accountDir := filepath.Join(dir, "alice")
	require.NoError(t, os.WriteFile(filepath.Join(accountDir, "notes.txt"), []byte("x"), 0o600))
	require.NoError(t, os.WriteFile(filepath.Join(accountDir, "abc.snapshot"), []byte("x"), 0o600))
	require.NoError(t, os.WriteFile(filepath.Join(accountDir, "99999999999999999999999999.snapshot"), []byte("x"), 0o600))

	cur, err := repo.CurrentVersion("alice")
	require.NoError(t, err)
	assert.Equal(t, v, cur)
}

func TestSnapshotRepository_ReadVersionMissingIsFatal(t *testing.T) {
	repo := NewSnapshotRepository(t.TempDir())

	_, err := repo.ReadVersion("alice", 12345)
	var storageErr *model.StorageError
	assert.True(t, errors.As(err, &storageErr))
}

func TestSnapshotRepository_RetentionWithinGrace(t *testing.T) {
	repo := NewSnapshotRepository(t.TempDir())
	clock := time.Now()
	repo.now = func() time.Time { return clock }

	for i := 0; i < 5; i++ {
		clock = clock.Add(time.Millisecond)
		_, err := repo.Write("alice", []byte{byte(i)})
		require.NoError(t, err)
	}

	// Second-newest is milliseconds old: nothing may be deleted yet.
	vs, err := repo.versions("alice")
	require.NoError(t, err)
	assert.Len(t, vs, 5)
}

func TestSnapshotRepository_RetentionAfterGrace(t *testing.T) {
	repo := NewSnapshotRepository(t.TempDir())
	clock := time.Now()
	repo.now = func() time.Time { return clock }

	for i := 0; i < 5; i++ {
		clock = clock.Add(time.Millisecond)
		_, err := repo.Write("alice", []byte{byte(i)})
		require.NoError(t, err)
	}

	clock = clock.Add(10 * time.Second)
	latest, err := repo.Write("alice", []byte("new"))
	require.NoError(t, err)

	vs, err := repo.versions("alice")
	require.NoError(t, err)
	assert.GreaterOrEqual(t, len(vs), 1)
	assert.LessOrEqual(t, len(vs), 3)
	assert.Equal(t, latest, vs[0])

	// The newest snapshot always survives.
	snap, err := repo.Read("alice")
	require.NoError(t, err)
	assert.Equal(t, []byte("new"), snap.Payload)
}

func TestSnapshotRepository_Accounts(t *testing.T) {
	dir := t.TempDir()
	repo := NewSnapshotRepository(dir)

	for _, name := range []string{"charlie", "alice", "bob"} {
		_, err := repo.Write(name, []byte(name))
		require.NoError(t, err)
	}
	// Directory without a valid snapshot is not provisioned.
	require.NoError(t, os.MkdirAll(filepath.Join(dir, "empty"), 0o700))

	accounts, err := repo.Accounts()
	require.NoError(t, err)
	assert.Equal(t, []string{"alice", "bob", "charlie"}, accounts)
}
