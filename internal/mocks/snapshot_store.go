package mocks

import (
	"github.com/stretchr/testify/mock"

	"github.com/dtroode/weibofetch/internal/model"
)

// SnapshotStore is a mock implementation of model.SnapshotStore.
type SnapshotStore struct {
	mock.Mock
}

func (m *SnapshotStore) Write(account string, payload []byte) (int64, error) {
	args := m.Called(account, payload)
	return args.Get(0).(int64), args.Error(1)
}

func (m *SnapshotStore) CurrentVersion(account string) (int64, error) {
	args := m.Called(account)
	return args.Get(0).(int64), args.Error(1)
}

func (m *SnapshotStore) Read(account string) (model.Snapshot, error) {
	args := m.Called(account)
	return args.Get(0).(model.Snapshot), args.Error(1)
}

func (m *SnapshotStore) ReadVersion(account string, version int64) (model.Snapshot, error) {
	args := m.Called(account, version)
	return args.Get(0).(model.Snapshot), args.Error(1)
}

func (m *SnapshotStore) Provisioned(account string) bool {
	args := m.Called(account)
	return args.Bool(0)
}

func (m *SnapshotStore) Accounts() ([]string, error) {
	args := m.Called()
	var accounts []string
	if args.Get(0) != nil {
		accounts = args.Get(0).([]string)
	}
	return accounts, args.Error(1)
}
