package broker

import (
	"context"

	amqp "github.com/rabbitmq/amqp091-go"
	"github.com/stretchr/testify/mock"
)

type AmqpMock struct {
	mock.Mock
}

func (m *AmqpMock) Start(ctx context.Context) error {
	args := m.Called(ctx)
	return args.Error(0)
}

func (m *AmqpMock) Stop() {
	m.Called()
}

func (m *AmqpMock) PublishPersistentMessage(exchange, exchangeType, key string, data interface{}) error {
	args := m.Called(exchange, exchangeType, key, data)
	return args.Error(0)
}

type ChannelMock struct {
	mock.Mock
}

func (m *ChannelMock) ExchangeDeclare(name, kind string, durable, autoDelete, internal, noWait bool, args amqp.Table) error {
	called := m.Called(name, kind, durable, autoDelete, internal, noWait, args)
	return called.Error(0)
}

func (m *ChannelMock) PublishWithContext(ctx context.Context, exchange, key string, mandatory, immediate bool, msg amqp.Publishing) error {
	called := m.Called(exchange, key, mandatory, immediate, msg)
	return called.Error(0)
}

func (m *ChannelMock) Close() error {
	called := m.Called()
	return called.Error(0)
}
