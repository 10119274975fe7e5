package broker

import (
	"context"
	"encoding/json"
	"sync"
	"time"

	"github.com/cenkalti/backoff"
	"github.com/pkg/errors"
	amqp "github.com/rabbitmq/amqp091-go"
	"github.com/sirupsen/logrus"
)

const (
	EXCHANGE_TYPE_TOPIC  = "topic"
	EXCHANGE_TYPE_FANOUT = "fanout"
	CONTENT_TYPE_JSON    = "application/json"
	PUBLISH_TIMEOUT      = 5 * time.Second

	durable          = true
	deleteWhenUnused = false
	internal         = false
	noWait           = false
	mandatory        = false
	immediate        = false

	reconnectInitialInterval = 30 * time.Second
	reconnectMaxInterval     = 5 * time.Minute
	reconnectMultiplier      = 1.7
)

// Channel is the part of *amqp.Channel the broker publishes through.
type Channel interface {
	ExchangeDeclare(name, kind string, durable, autoDelete, internal, noWait bool, args amqp.Table) error
	PublishWithContext(ctx context.Context, exchange, key string, mandatory, immediate bool, msg amqp.Publishing) error
	Close() error
}

// Messaging is implemented by AMQP and by test doubles.
type Messaging interface {
	Start(ctx context.Context) error
	Stop()
	PublishPersistentMessage(exchange, exchangeType, key string, data interface{}) error
}

type AMQP struct {
	url               string
	conn              *amqp.Connection
	channel           Channel
	channelMutex      sync.RWMutex
	declaredExchanges map[string]struct{}
	exchangeMutex     sync.Mutex
	logger            *logrus.Entry

	// stopped is cancelled by Stop and ends any reconnection in progress.
	stopped context.Context
	stop    context.CancelFunc
}

func NewAMQP(url string, logger *logrus.Entry) *AMQP {
	stopped, stop := context.WithCancel(context.Background())

	return &AMQP{
		url:               url,
		declaredExchanges: make(map[string]struct{}),
		logger:            logger,
		stopped:           stopped,
		stop:              stop,
	}
}

func (a *AMQP) log(level logrus.Level, msg string, fields logrus.Fields) {
	if a.logger == nil {
		return
	}
	a.logger.WithFields(fields).Log(level, msg)
}

// Start blocks until the broker accepts a connection, the exponential
// backoff gives up or ctx is cancelled.
func (a *AMQP) Start(ctx context.Context) error {
	retry := backoff.WithContext(backoff.NewExponentialBackOff(), ctx)
	if err := backoff.Retry(a.connect, retry); err != nil {
		return errors.Wrap(err, "failed to connect to broker")
	}

	go a.notifyWhenClosed()

	return nil
}

func (a *AMQP) Stop() {
	a.stop()

	a.channelMutex.Lock()
	defer a.channelMutex.Unlock()

	if a.channel != nil {
		a.channel.Close()
		a.channel = nil
	}

	if a.conn != nil && !a.conn.IsClosed() {
		a.conn.Close()
	}
}

func (a *AMQP) PublishPersistentMessage(exchange, exchangeType, key string, data interface{}) error {
	body, err := json.Marshal(data)
	if err != nil {
		return errors.Wrap(err, "failed to encode message")
	}

	a.channelMutex.RLock()
	defer a.channelMutex.RUnlock()

	if a.channel == nil {
		return errors.New("broker is not connected")
	}

	if err := a.declareExchangeOnce(exchange, exchangeType); err != nil {
		return err
	}

	ctx, cancel := context.WithTimeout(context.Background(), PUBLISH_TIMEOUT)
	defer cancel()

	err = a.channel.PublishWithContext(
		ctx,
		exchange,
		key,
		mandatory,
		immediate,
		amqp.Publishing{
			ContentType:  CONTENT_TYPE_JSON,
			DeliveryMode: amqp.Persistent,
			Timestamp:    time.Now(),
			Body:         body,
		},
	)
	if err != nil {
		return errors.Wrapf(err, "failed to publish to %s", exchange)
	}

	return nil
}

func (a *AMQP) declareExchangeOnce(name, exchangeType string) error {
	a.exchangeMutex.Lock()
	defer a.exchangeMutex.Unlock()

	if _, ok := a.declaredExchanges[name]; ok {
		return nil
	}

	err := a.channel.ExchangeDeclare(name, exchangeType, durable, deleteWhenUnused, internal, noWait, nil)
	if err != nil {
		return errors.Wrapf(err, "failed to declare exchange %s", name)
	}

	a.declaredExchanges[name] = struct{}{}

	return nil
}

func (a *AMQP) connect() error {
	if err := a.stopped.Err(); err != nil {
		return err
	}

	conn, err := amqp.Dial(a.url)
	if err != nil {
		a.log(logrus.WarnLevel, "Broker dial failed", logrus.Fields{"error": err})
		return err
	}

	channel, err := conn.Channel()
	if err != nil {
		conn.Close()
		return err
	}

	a.channelMutex.Lock()
	if err := a.stopped.Err(); err != nil {
		a.channelMutex.Unlock()
		channel.Close()
		conn.Close()
		return err
	}
	a.conn = conn
	a.channel = channel
	a.channelMutex.Unlock()

	// A new channel has not declared anything yet.
	a.exchangeMutex.Lock()
	a.declaredExchanges = make(map[string]struct{})
	a.exchangeMutex.Unlock()

	return nil
}

func (a *AMQP) notifyWhenClosed() {
	a.channelMutex.RLock()
	conn := a.conn
	a.channelMutex.RUnlock()

	reason, ok := <-conn.NotifyClose(make(chan *amqp.Error, 1))
	if !ok || reason == nil {
		return
	}

	a.log(logrus.WarnLevel, "Broker connection lost", logrus.Fields{"reason": reason.Error()})

	if err := a.reconnect(); err != nil {
		a.log(logrus.InfoLevel, "Broker reconnection stopped", logrus.Fields{"error": err})
		return
	}

	a.log(logrus.InfoLevel, "Broker reconnected", nil)
	go a.notifyWhenClosed()
}

// reconnect retries without a deadline until it succeeds or Stop is called.
func (a *AMQP) reconnect() error {
	reconnection := backoff.NewExponentialBackOff()
	reconnection.InitialInterval = reconnectInitialInterval
	reconnection.MaxInterval = reconnectMaxInterval
	reconnection.Multiplier = reconnectMultiplier
	reconnection.MaxElapsedTime = 0

	return backoff.Retry(a.connect, backoff.WithContext(reconnection, a.stopped))
}
