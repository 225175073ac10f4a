package mocks

import (
	"context"

	"github.com/stretchr/testify/mock"

	"github.com/dtroode/weibofetch/internal/model"
)

// Transport is a mock implementation of model.Transport.
type Transport struct {
	mock.Mock
}

func (m *Transport) Get(ctx context.Context, url string, headers map[string]string) (*model.Response, error) {
	args := m.Called(ctx, url, headers)
	var resp *model.Response
	if args.Get(0) != nil {
		resp = args.Get(0).(*model.Response)
	}
	return resp, args.Error(1)
}
