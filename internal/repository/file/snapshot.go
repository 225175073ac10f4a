// Package file implements the snapshot store on the local filesystem. One
// directory per account; each snapshot is a file named by its millisecond
// version. Write concurrency safety rests entirely on rename atomicity;
// there is no cross-process locking.
package file

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/dtroode/weibofetch/internal/model"
)

const snapshotSuffix = ".snapshot"

// retentionGrace defers deletion of superseded snapshots long enough that a
// concurrent reader who already resolved the current version can still open
// the file.
const retentionGrace = 3 * time.Second

var _ model.SnapshotStore = (*SnapshotRepository)(nil)

type SnapshotRepository struct {
	root string
	now  func() time.Time
}

func NewSnapshotRepository(root string) *SnapshotRepository {
	return &SnapshotRepository{
		root: root,
		now:  time.Now,
	}
}

// Write persists payload as a new snapshot and returns its version. The
// payload lands in a temp file first and is renamed into place, so readers
// never observe a partial snapshot.
func (r *SnapshotRepository) Write(account string, payload []byte) (int64, error) {
	dir := filepath.Join(r.root, account)
	if err := os.MkdirAll(dir, 0o700); err != nil {
		return 0, &model.StorageError{Op: "mkdir", Path: dir, Err: err}
	}

	version := r.now().UnixMilli()
	if latest, err := r.versions(account); err == nil && len(latest) > 0 && version <= latest[0] {
		// Same-millisecond write (or clock step); keep versions totally ordered.
		version = latest[0] + 1
	}

	tmp, err := os.CreateTemp(dir, ".snapshot-*")
	if err != nil {
		return 0, &model.StorageError{Op: "create", Path: dir, Err: err}
	}
	tmpName := tmp.Name()

	if _, err := tmp.Write(payload); err != nil {
		tmp.Close()
		os.Remove(tmpName)
		return 0, &model.StorageError{Op: "write", Path: tmpName, Err: err}
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmpName)
		return 0, &model.StorageError{Op: "close", Path: tmpName, Err: err}
	}

	target := filepath.Join(dir, strconv.FormatInt(version, 10)+snapshotSuffix)
	if err := os.Rename(tmpName, target); err != nil {
		os.Remove(tmpName)
		return 0, &model.StorageError{Op: "rename", Path: target, Err: err}
	}

	if err := r.prune(account); err != nil {
		return 0, err
	}

	return version, nil
}

// CurrentVersion returns the highest snapshot version for the account, or
// model.ErrNoSnapshot if the account has never logged in.
func (r *SnapshotRepository) CurrentVersion(account string) (int64, error) {
	vs, err := r.versions(account)
	if err != nil {
		return 0, err
	}
	if len(vs) == 0 {
		return 0, model.ErrNoSnapshot
	}
	return vs[0], nil
}

// Read returns the snapshot at the current version.
func (r *SnapshotRepository) Read(account string) (model.Snapshot, error) {
	version, err := r.CurrentVersion(account)
	if err != nil {
		return model.Snapshot{}, err
	}
	return r.ReadVersion(account, version)
}

// ReadVersion reads the snapshot at an exact version. A read failure here is
// fatal: the caller derived the version from a listing, so the file existed.
func (r *SnapshotRepository) ReadVersion(account string, version int64) (model.Snapshot, error) {
	path := filepath.Join(r.root, account, strconv.FormatInt(version, 10)+snapshotSuffix)
	payload, err := os.ReadFile(path)
	if err != nil {
		return model.Snapshot{}, &model.StorageError{Op: "read", Path: path, Err: err}
	}
	return model.Snapshot{Version: version, Payload: payload}, nil
}

// Provisioned reports whether at least one valid snapshot exists.
func (r *SnapshotRepository) Provisioned(account string) bool {
	vs, err := r.versions(account)
	return err == nil && len(vs) > 0
}

// Accounts lists provisioned account names, sorted.
func (r *SnapshotRepository) Accounts() ([]string, error) {
	entries, err := os.ReadDir(r.root)
	if errors.Is(err, fs.ErrNotExist) {
		return nil, nil
	}
	if err != nil {
		return nil, &model.StorageError{Op: "list", Path: r.root, Err: err}
	}

	var accounts []string
	for _, e := range entries {
		if e.IsDir() && r.Provisioned(e.Name()) {
			accounts = append(accounts, e.Name())
		}
	}
	sort.Strings(accounts)
	return accounts, nil
}

// versions lists snapshot versions for the account, newest first. Filenames
// that are not all-digits plus the snapshot suffix are ignored.
func (r *SnapshotRepository) versions(account string) ([]int64, error) {
	dir := filepath.Join(r.root, account)
	entries, err := os.ReadDir(dir)
	if errors.Is(err, fs.ErrNotExist) {
		return nil, nil
	}
	if err != nil {
		return nil, &model.StorageError{Op: "list", Path: dir, Err: err}
	}

	var vs []int64
	for _, e := range entries {
		name, ok := strings.CutSuffix(e.Name(), snapshotSuffix)
		if !ok || e.IsDir() {
			continue
		}
		v, err := strconv.ParseInt(name, 10, 64)
		if err != nil || v < 0 || fmt.Sprintf("%d", v) != name {
			continue
		}
		vs = append(vs, v)
	}
	sort.Slice(vs, func(i, j int) bool { return vs[i] > vs[j] })
	return vs, nil
}

// prune deletes superseded snapshots. Nothing is deleted while fewer than
// three snapshots exist, and nothing is deleted until the second-newest has
// been in place longer than the grace window.
func (r *SnapshotRepository) prune(account string) error {
	vs, err := r.versions(account)
	if err != nil {
		return err
	}
	if len(vs) < 3 {
		return nil
	}

	secondNewest := time.UnixMilli(vs[1])
	if r.now().Sub(secondNewest) <= retentionGrace {
		return nil
	}

	for _, v := range vs[2:] {
		path := filepath.Join(r.root, account, strconv.FormatInt(v, 10)+snapshotSuffix)
		if err := os.Remove(path); err != nil && !errors.Is(err, fs.ErrNotExist) {
			return &model.StorageError{Op: "remove", Path: path, Err: err}
		}
	}
	return nil
}
