package events

import (
	"context"
	"encoding/json"
	"sync"
	"time"

	"github.com/pkg/errors"
	amqp "github.com/rabbitmq/amqp091-go"
	log "github.com/sirupsen/logrus"
)

// DefaultQueue is the queue events are published to if none is configured
const DefaultQueue = "ltiprovider.events"

// Defaults of the AMQPPublisher
const (
	DefaultBufferSize     = 256
	DefaultPublishTimeout = 5 * time.Second
)

// Errors returned by AMQPPublisher.Publish
var (
	ErrPublisherClosed = errors.New("publisher is closed")
	ErrBufferFull      = errors.New("event buffer is full")
)

// session is an open connection with a channel on which the queue is
// declared
type session interface {
	publish(ctx context.Context, queue string, msg amqp.Publishing) error
	close()
}

type dialFunc func(url, queue string) (session, error)

// AMQPPublisher publishes events as persistent JSON messages to a durable
// queue on the default exchange. Publish only enqueues the event. A single
// background worker sends the buffered events over one connection, which is
// reopened after a failure. Close flushes the buffer.
type AMQPPublisher struct {
	URL   string
	Queue string

	dial    dialFunc
	timeout time.Duration

	mu     sync.RWMutex
	closed bool
	queue  chan amqp.Publishing
	done   chan struct{}
}

// NewAMQPPublisher returns a started AMQPPublisher; an empty queue selects
// DefaultQueue
func NewAMQPPublisher(url, queue string) *AMQPPublisher {
	return newAMQPPublisher(url, queue, dialAMQP, DefaultBufferSize)
}

func newAMQPPublisher(url, queue string, dial dialFunc, buffer int) *AMQPPublisher {
	if queue == "" {
		queue = DefaultQueue
	}
	p := &AMQPPublisher{
		URL:     url,
		Queue:   queue,
		dial:    dial,
		timeout: DefaultPublishTimeout,
		queue:   make(chan amqp.Publishing, buffer),
		done:    make(chan struct{}),
	}
	go p.run()
	return p
}

// Publish implements Publisher. It does not wait for the broker; an error is
// only returned if the event cannot be buffered.
func (p *AMQPPublisher) Publish(_ context.Context, e Event) error {
	body, err := json.Marshal(e)
	if err != nil {
		return errors.Wrap(err, "could not encode event")
	}
	ts := e.Time
	if ts.IsZero() {
		ts = time.Now()
	}
	msg := amqp.Publishing{
		ContentType:  "application/json",
		DeliveryMode: amqp.Persistent,
		Timestamp:    ts.UTC(),
		Type:         string(e.Type),
		Body:         body,
	}

	p.mu.RLock()
	defer p.mu.RUnlock()
	if p.closed {
		return ErrPublisherClosed
	}
	select {
	case p.queue <- msg:
		return nil
	default:
		log.WithField("queue", p.Queue).WithField("event", e.Type).Warn("amqp: dropping event, buffer full")
		return ErrBufferFull
	}
}

// Close stops accepting events, sends the buffered ones and closes the
// connection
func (p *AMQPPublisher) Close() error {
	p.mu.Lock()
	if !p.closed {
		p.closed = true
		close(p.queue)
	}
	p.mu.Unlock()
	<-p.done
	return nil
}

func (p *AMQPPublisher) run() {
	defer close(p.done)
	var s session
	for msg := range p.queue {
		s = p.send(s, msg)
	}
	if s != nil {
		s.close()
	}
}

// send publishes msg over s, reconnecting once if s is missing or broken. It
// returns the session to use for the next message.
func (p *AMQPPublisher) send(s session, msg amqp.Publishing) session {
	logger := log.WithField("queue", p.Queue).WithField("event", msg.Type)
	for attempt := 0; attempt < 2; attempt++ {
		if s == nil {
			var err error
			if s, err = p.dial(p.URL, p.Queue); err != nil {
				logger.WithError(err).Error("amqp: connect failed, dropping event")
				return nil
			}
		}
		ctx, cancel := context.WithTimeout(context.Background(), p.timeout)
		err := s.publish(ctx, p.Queue, msg)
		cancel()
		if err == nil {
			return s
		}
		logger.WithError(err).Warn("amqp: publish failed")
		s.close()
		s = nil
	}
	logger.Error("amqp: dropping event")
	return nil
}

type amqpSession struct {
	conn *amqp.Connection
	ch   *amqp.Channel
}

func dialAMQP(url, queue string) (session, error) {
	conn, err := amqp.Dial(url)
	if err != nil {
		return nil, errors.Wrap(err, "could not connect to broker")
	}
	ch, err := conn.Channel()
	if err != nil {
		_ = conn.Close()
		return nil, errors.Wrap(err, "could not open channel")
	}
	if _, err = ch.QueueDeclare(queue, true, false, false, false, nil); err != nil {
		_ = conn.Close()
		return nil, errors.Wrap(err, "could not declare queue")
	}
	return &amqpSession{
		conn: conn,
		ch:   ch,
	}, nil
}

func (s *amqpSession) publish(ctx context.Context, queue string, msg amqp.Publishing) error {
	return errors.Wrap(s.ch.PublishWithContext(ctx, "", queue, false, false, msg), "could not publish event")
}

func (s *amqpSession) close() {
	_ = s.ch.Close()
	_ = s.conn.Close()
}
