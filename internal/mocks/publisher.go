package mocks

import (
	"context"

	"github.com/stretchr/testify/mock"

	"inbox-service/internal/observability"
	"inbox-service/internal/telemetry"
)

type PublisherMock struct {
	mock.Mock
}

var (
	_ telemetry.Publisher     = (*PublisherMock)(nil)
	_ observability.Publisher = (*PublisherMock)(nil)
)

func (m *PublisherMock) Publish(ctx context.Context, routingKey string, event any, headers map[string]string) error {
	args := m.Called(ctx, routingKey, event, headers)
	return args.Error(0)
}

func (m *PublisherMock) Close() error {
	args := m.Called()
	return args.Error(0)
}
