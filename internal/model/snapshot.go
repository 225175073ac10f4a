package model

// Snapshot is one immutable persisted credential payload. Version is the
// millisecond timestamp assigned at write time; within one account's store
// versions are totally ordered and the highest is current.
type Snapshot struct {
	Version int64
	Payload []byte
}

// SnapshotStore persists credential snapshots per account, append-only.
type SnapshotStore interface {
	Write(account string, payload []byte) (int64, error)
	CurrentVersion(account string) (int64, error)
	Read(account string) (Snapshot, error)
	ReadVersion(account string, version int64) (Snapshot, error)
	Provisioned(account string) bool
	Accounts() ([]string, error)
}
