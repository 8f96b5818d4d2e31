package publisher

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync"
	"testing"
	"time"

	kafkaGo "github.com/segmentio/kafka-go"
	"github.com/soragold/giftshop/internal/orders/domain"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/testcontainers/testcontainers-go/modules/kafka"
	"go.uber.org/zap"
)

type MockRepository struct {
	mu           sync.Mutex
	OutboxEvents []*domain.OutboxEvent
	FetchErr     error
	MarkErr      error
	ProcessedIDs []int64
}

func (m *MockRepository) GetUnprocessedEvents(context.Context, int) ([]*domain.OutboxEvent, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.FetchErr != nil {
		return nil, m.FetchErr
	}
	var out []*domain.OutboxEvent
	for _, e := range m.OutboxEvents {
		if e.ProcessedAt == nil {
			out = append(out, e)
		}
	}
	return out, nil
}

func (m *MockRepository) MarkEventAsProcessed(_ context.Context, id int64) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.MarkErr != nil {
		return m.MarkErr
	}
	now := time.Now()
	for _, e := range m.OutboxEvents {
		if e.ID == id {
			e.ProcessedAt = &now
		}
	}
	m.ProcessedIDs = append(m.ProcessedIDs, id)
	return nil
}

func (m *MockRepository) processed() []int64 {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]int64(nil), m.ProcessedIDs...)
}

type recordingWriter struct {
	mu       sync.Mutex
	messages []kafkaGo.Message
	failOn   string
}

func (w *recordingWriter) WriteMessages(_ context.Context, msgs ...kafkaGo.Message) error {
	w.mu.Lock()
	defer w.mu.Unlock()
	for _, m := range msgs {
		if string(m.Key) == w.failOn {
			return errors.New("broker unavailable")
		}
		w.messages = append(w.messages, m)
	}
	return nil
}

func (w *recordingWriter) Close() error { return nil }

func newEvent(id int64, checkoutID string) *domain.OutboxEvent {
	return &domain.OutboxEvent{
		ID:          id,
		AggregateID: checkoutID,
		EventType:   domain.EventCheckoutCompleted,
		Payload:     json.RawMessage(fmt.Sprintf(`{"checkout_id":%q,"customer_id":"user-456"}`, checkoutID)),
		CreatedAt:   time.Now(),
	}
}

func newTestPoller(repo *MockRepository, w messageWriter) *OutboxPoller {
	return &OutboxPoller{
		timeout:   time.Second,
		eventTick: 10 * time.Millisecond,
		batch:     100,
		repo:      repo,
		writer:    w,
		log:       zap.NewNop(),
	}
}

func TestProcessUnpublishedEvents_PublishesAndMarks(t *testing.T) {
	repo := &MockRepository{OutboxEvents: []*domain.OutboxEvent{newEvent(1, "checkout-1"), newEvent(2, "checkout-2")}}
	w := &recordingWriter{}

	newTestPoller(repo, w).processUnpublishedEvents(context.Background())

	assert.Equal(t, []int64{1, 2}, repo.processed())
	require.Len(t, w.messages, 2)
	assert.Equal(t, "checkout-1", string(w.messages[0].Key))
	assert.Equal(t, "event_type", w.messages[0].Headers[0].Key)
	assert.Equal(t, domain.EventCheckoutCompleted, string(w.messages[0].Headers[0].Value))
}

func TestProcessUnpublishedEvents_StopsAtFirstPublishFailure(t *testing.T) {
	repo := &MockRepository{OutboxEvents: []*domain.OutboxEvent{
		newEvent(1, "checkout-1"), newEvent(2, "checkout-2"), newEvent(3, "checkout-3"),
	}}
	w := &recordingWriter{failOn: "checkout-2"}

	newTestPoller(repo, w).processUnpublishedEvents(context.Background())

	assert.Equal(t, []int64{1}, repo.processed())
	assert.Len(t, w.messages, 1)
}

func TestProcessUnpublishedEvents_FetchError(t *testing.T) {
	repo := &MockRepository{FetchErr: errors.New("db down")}
	w := &recordingWriter{}

	newTestPoller(repo, w).processUnpublishedEvents(context.Background())

	assert.Empty(t, w.messages)
}

func TestRun_StopsOnContextCancel(t *testing.T) {
	repo := &MockRepository{OutboxEvents: []*domain.OutboxEvent{newEvent(1, "checkout-1")}}
	p := newTestPoller(repo, &recordingWriter{})

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		p.Run(ctx)
		close(done)
	}()

	assert.Eventually(t, func() bool { return len(repo.processed()) == 1 }, time.Second, 10*time.Millisecond)
	cancel()
	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("poller did not stop")
	}
}

func setupKafka(t *testing.T) (string, func()) {
	if testing.Short() {
		t.Skip("skipping kafka container test in short mode")
	}
	ctx := context.Background()

	kafkaContainer, err := kafka.Run(ctx, "confluentinc/confluent-local:7.5.0")
	require.NoError(t, err)

	brokers, err := kafkaContainer.Brokers(ctx)
	require.NoError(t, err)
	require.NotEmpty(t, brokers, "broker address should not be empty")

	cleanup := func() {
		if err := kafkaContainer.Terminate(ctx); err != nil {
			t.Logf("failed to terminate kafka container: %v", err)
		}
	}

	return brokers[0], cleanup
}

func createTopic(t *testing.T, brokerAddr, topic string) {
	conn, err := kafkaGo.Dial("tcp", brokerAddr)
	require.NoError(t, err)
	defer conn.Close()

	controller, err := conn.Controller()
	require.NoError(t, err)

	controllerConn, err := kafkaGo.Dial("tcp", fmt.Sprintf("%s:%d", controller.Host, controller.Port))
	require.NoError(t, err)
	defer controllerConn.Close()

	err = controllerConn.CreateTopics(kafkaGo.TopicConfig{
		Topic:             topic,
		NumPartitions:     1,
		ReplicationFactor: 1,
	})
	if err != nil {
		t.Logf("topic creation error (may already exist): %v", err)
	}
}

func TestOutboxPoller_PublishesEventsToKafka(t *testing.T) {
	brokerAddr, cleanup := setupKafka(t)
	defer cleanup()

	createTopic(t, brokerAddr, Topic)
	time.Sleep(5 * time.Second)

	repo := &MockRepository{OutboxEvents: []*domain.OutboxEvent{newEvent(1, "checkout-123")}}

	writer := &kafkaGo.Writer{
		Addr:         kafkaGo.TCP(brokerAddr),
		Topic:        Topic,
		Balancer:     &kafkaGo.LeastBytes{},
		WriteTimeout: 10 * time.Second,
		ReadTimeout:  10 * time.Second,
	}
	defer writer.Close()

	poller := newTestPoller(repo, writer)
	poller.timeout = 10 * time.Second
	poller.eventTick = time.Second

	ctx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()
	go poller.Run(ctx)

	reader := kafkaGo.NewReader(kafkaGo.ReaderConfig{
		Brokers:  []string{brokerAddr},
		Topic:    Topic,
		GroupID:  "test-consumer",
		MinBytes: 1,
		MaxBytes: 10e6,
	})
	defer reader.Close()

	msg, err := reader.ReadMessage(ctx)
	require.NoError(t, err)

	assert.Equal(t, "checkout-123", string(msg.Key))
	assert.JSONEq(t, `{"checkout_id":"checkout-123","customer_id":"user-456"}`, string(msg.Value))
	assert.Eventually(t, func() bool { return len(repo.processed()) == 1 }, 5*time.Second, 100*time.Millisecond)
}
