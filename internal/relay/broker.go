package relay

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"sync"

	"github.com/collabtext/collabtext/pkg/logger"
	"github.com/collabtext/collabtext/pkg/metrics"
)

// Publisher is what services use to announce events.
type Publisher interface {
	Publish(ctx context.Context, topic string, payload any) error
}

// Message is one published event as delivered to subscribers.
type Message struct {
	Topic   string
	Payload []byte
}

// Subscription receives messages for one topic through a bounded buffer.
// When the buffer is full new messages are dropped for this subscriber only.
type Subscription struct {
	id    uint64
	topic string
	ch    chan Message
	b     *Broker
	once  sync.Once
}

// C is closed when the subscription is closed.
func (s *Subscription) C() <-chan Message { return s.ch }

func (s *Subscription) Topic() string { return s.topic }

// Close detaches the subscription. Safe to call more than once.
func (s *Subscription) Close() {
	s.once.Do(func() { s.b.remove(s) })
}

// Broker is an in-process topic pub/sub. Delivery never blocks the publisher
// and there is no replay: subscribers only see messages published after they joined.
type Broker struct {
	mu     sync.RWMutex
	subs   map[string]map[uint64]*Subscription
	next   uint64
	buffer int
}

func NewBroker(buffer int) *Broker {
	if buffer <= 0 {
		buffer = 256
	}
	return &Broker{subs: make(map[string]map[uint64]*Subscription), buffer: buffer}
}

func (b *Broker) Subscribe(topic string) *Subscription {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.next++
	s := &Subscription{id: b.next, topic: topic, ch: make(chan Message, b.buffer), b: b}
	if b.subs[topic] == nil {
		b.subs[topic] = make(map[uint64]*Subscription)
	}
	b.subs[topic][s.id] = s
	return s
}

func (b *Broker) remove(s *Subscription) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if m, ok := b.subs[s.topic]; ok {
		delete(m, s.id)
		if len(m) == 0 {
			delete(b.subs, s.topic)
		}
	}
	close(s.ch)
}

// Subscribers returns the number of live subscriptions on topic.
func (b *Broker) Subscribers(topic string) int {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return len(b.subs[topic])
}

// Publish JSON-encodes payload and delivers it to the topic's subscribers.
func (b *Broker) Publish(ctx context.Context, topic string, payload any) error {
	data, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("encode %s payload: %w", topic, err)
	}
	metrics.RelayPublished.WithLabelValues(TopicKind(topic)).Inc()
	b.PublishRaw(topic, data)
	return nil
}

// PublishRaw delivers already-encoded bytes.
func (b *Broker) PublishRaw(topic string, data []byte) {
	kind := TopicKind(topic)
	b.mu.RLock()
	defer b.mu.RUnlock()
	for _, s := range b.subs[topic] {
		select {
		case s.ch <- Message{Topic: topic, Payload: data}:
			metrics.RelayDelivered.WithLabelValues(kind).Inc()
		default:
			metrics.RelayDropped.WithLabelValues(kind).Inc()
			logger.Warnf("relay: subscriber %d on %s is full, dropping message", s.id, topic)
		}
	}
}

// TopicKind strips ids so metric labels stay bounded:
// "/topic/updates/5" -> "updates".
func TopicKind(topic string) string {
	parts := strings.Split(strings.TrimPrefix(topic, "/topic/"), "/")
	if len(parts) == 0 || parts[0] == "" {
		return "unknown"
	}
	return parts[0]
}
