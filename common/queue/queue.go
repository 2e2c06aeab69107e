package queue

import (
	"context"
	"sync"

	"github.com/lyzr/adstudio/common/logger"
)

// Queue interface for message passing
type Queue interface {
	Publish(ctx context.Context, topic string, key string, message []byte) error
	Subscribe(ctx context.Context, topic string, handler MessageHandler) error
	Close() error
}

// MessageHandler processes messages
type MessageHandler func(ctx context.Context, key string, value []byte) error

// Message represents a queue message
type Message struct {
	Topic string
	Key   string
	Value []byte
}

// MemoryQueue is an in-process queue; messages to a full topic are dropped with a warning
type MemoryQueue struct {
	topics     map[string]chan *Message
	bufferSize int
	closed     bool
	mu         sync.RWMutex
	log        *logger.Logger
}

// NewMemoryQueue creates a new in-memory queue
func NewMemoryQueue(log *logger.Logger, bufferSize int) *MemoryQueue {
	if bufferSize <= 0 {
		bufferSize = 1000
	}
	return &MemoryQueue{
		topics:     make(map[string]chan *Message),
		bufferSize: bufferSize,
		log:        log,
	}
}

func (q *MemoryQueue) topic(name string) chan *Message {
	ch, exists := q.topics[name]
	if !exists {
		ch = make(chan *Message, q.bufferSize)
		q.topics[name] = ch
	}
	return ch
}

// Publish publishes a message to a topic
func (q *MemoryQueue) Publish(ctx context.Context, topic string, key string, message []byte) error {
	q.mu.Lock()
	defer q.mu.Unlock()

	if q.closed {
		return nil
	}

	msg := &Message{
		Topic: topic,
		Key:   key,
		Value: message,
	}

	select {
	case q.topic(topic) <- msg:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	default:
		q.log.Warn("queue full", "topic", topic)
		return nil
	}
}

// Subscribe subscribes to a topic and processes messages until ctx ends or the queue closes
func (q *MemoryQueue) Subscribe(ctx context.Context, topic string, handler MessageHandler) error {
	q.mu.Lock()
	ch := q.topic(topic)
	q.mu.Unlock()

	q.log.Info("subscribing to topic", "topic", topic)

	go func() {
		for {
			select {
			case <-ctx.Done():
				q.log.Info("subscription cancelled", "topic", topic)
				return
			case msg, ok := <-ch:
				if !ok {
					return
				}
				if err := handler(ctx, msg.Key, msg.Value); err != nil {
					q.log.Error("message handler error", "topic", topic, "key", msg.Key, "error", err)
				}
			}
		}
	}()

	return nil
}

// Close closes the queue
func (q *MemoryQueue) Close() error {
	q.mu.Lock()
	defer q.mu.Unlock()

	if q.closed {
		return nil
	}
	q.closed = true

	for topic, ch := range q.topics {
		close(ch)
		q.log.Info("closed topic", "topic", topic)
	}

	return nil
}
