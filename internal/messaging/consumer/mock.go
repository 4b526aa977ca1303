package consumer

import (
	"context"
	"fmt"
	"log"
	"strconv"
	"sync"

	"tdp/internal/messaging"
	"tdp/internal/messaging/producer"
)

// MockStats is a snapshot of the mock broker counters
type MockStats struct {
	Published    int
	Acked        int
	Nacked       int
	DeadLettered int
	Pending      int
	InFlight     int
}

type mockMessage struct {
	id      string
	data    []byte
	attrs   map[string]string
	attempt int
}

// MockBroker is an in-process queue implementing both Producer and Consumer.
// Nacked messages go to the back of the queue with their attempt incremented.
type MockBroker struct {
	logger      *log.Logger
	maxAttempts int

	mu          sync.Mutex
	pending     []*mockMessage
	signal      chan struct{} // closed and replaced whenever pending grows
	seq         int
	closed      bool
	stats       MockStats
	deadLetters []*Delivery
}

// NewMockBroker creates an empty broker. maxAttempts > 0 enables dead-lettering.
func NewMockBroker(logger *log.Logger, maxAttempts int) *MockBroker {
	return &MockBroker{
		logger:      logger,
		maxAttempts: maxAttempts,
		signal:      make(chan struct{}),
	}
}

func (b *MockBroker) wakeLocked() {
	close(b.signal)
	b.signal = make(chan struct{})
}

// Publish implements producer.Producer
func (b *MockBroker) Publish(ctx context.Context, msg *messaging.Message) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}
	attrs := make(map[string]string, len(msg.Attributes))
	for k, v := range msg.Attributes {
		attrs[k] = v
	}
	data := append([]byte(nil), msg.Data...)

	b.mu.Lock()
	defer b.mu.Unlock()
	if b.closed {
		return "", ErrClosed
	}
	b.seq++
	m := &mockMessage{id: "mock-" + strconv.Itoa(b.seq), data: data, attrs: attrs, attempt: 1}
	b.pending = append(b.pending, m)
	b.stats.Published++
	b.wakeLocked()
	b.logger.Printf("[MockBroker] Published message: id=%s, key=%s", m.id, msg.Key)
	return m.id, nil
}

// Consume implements Consumer
func (b *MockBroker) Consume(ctx context.Context) (msg *Delivery, ack func(success bool), err error) {
	for {
		b.mu.Lock()
		if len(b.pending) > 0 {
			m := b.pending[0]
			b.pending[0] = nil
			b.pending = b.pending[1:]
			b.stats.InFlight++
			b.mu.Unlock()
			return b.deliver(m)
		}
		if b.closed {
			b.mu.Unlock()
			return nil, nil, ErrClosed
		}
		wait := b.signal
		b.mu.Unlock()

		select {
		case <-ctx.Done():
			return nil, nil, ctx.Err()
		case <-wait:
		}
	}
}

func (b *MockBroker) deliver(m *mockMessage) (*Delivery, func(bool), error) {
	attrs := make(map[string]string, len(m.attrs)+1)
	for k, v := range m.attrs {
		attrs[k] = v
	}
	attrs[messaging.AttrDeliveryAttempt] = strconv.Itoa(m.attempt)
	d := &Delivery{MessageID: m.id, Data: m.data, Attributes: attrs, Attempt: m.attempt}

	var once sync.Once
	ackCallback := func(success bool) {
		once.Do(func() {
			b.mu.Lock()
			defer b.mu.Unlock()
			b.stats.InFlight--
			if success {
				b.stats.Acked++
				b.logger.Printf("[MockBroker] ACK received for message: id=%s", m.id)
				return
			}
			b.stats.Nacked++
			if ShouldDeadLetter(m.attempt, b.maxAttempts) {
				b.stats.DeadLettered++
				b.deadLetters = append(b.deadLetters, d)
				b.logger.Printf("[MockBroker] Message dead-lettered after %d attempts: id=%s", m.attempt, m.id)
				return
			}
			// Requeued even after Close so Consume can drain it
			b.logger.Printf("[MockBroker] NACK received for message: id=%s. Re-queueing (attempt %d)", m.id, m.attempt+1)
			b.pending = append(b.pending, &mockMessage{id: m.id, data: m.data, attrs: m.attrs, attempt: m.attempt + 1})
			b.wakeLocked()
		})
	}
	return d, ackCallback, nil
}

// Stats returns a snapshot of the broker counters
func (b *MockBroker) Stats() MockStats {
	b.mu.Lock()
	defer b.mu.Unlock()
	s := b.stats
	s.Pending = len(b.pending)
	return s
}

// DeadLetters returns the deliveries that exhausted their attempts
func (b *MockBroker) DeadLetters() []*Delivery {
	b.mu.Lock()
	defer b.mu.Unlock()
	return append([]*Delivery(nil), b.deadLetters...)
}

// Close rejects further publishes. Consume drains what is already queued and
// then returns ErrClosed.
func (b *MockBroker) Close() error {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.closed {
		return nil
	}
	b.logger.Println("[MockBroker] Closing...")
	b.closed = true
	b.wakeLocked()
	return nil
}

func (s MockStats) String() string {
	return fmt.Sprintf("published=%d acked=%d nacked=%d dead_lettered=%d pending=%d in_flight=%d",
		s.Published, s.Acked, s.Nacked, s.DeadLettered, s.Pending, s.InFlight)
}

var (
	_ Consumer          = (*MockBroker)(nil)
	_ producer.Producer = (*MockBroker)(nil)
)
