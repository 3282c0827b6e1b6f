package producers

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"os"
	"testing"

	"github.com/segmentio/kafka-go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

// MockKafkaWriter mocks KafkaWriter interface
type MockKafkaWriter struct {
	mock.Mock
}

func (m *MockKafkaWriter) WriteMessages(ctx context.Context, msgs ...kafka.Message) error {
	args := m.Called(ctx, msgs)
	return args.Error(0)
}

func (m *MockKafkaWriter) Close() error {
	args := m.Called()
	return args.Error(0)
}

func testLogger() *slog.Logger {
	return slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{Level: slog.LevelDebug}))
}

func TestTopicProducer_Publish(t *testing.T) {
	ctx := context.Background()

	t.Run("SuccessfulPublish", func(t *testing.T) {
		mockWriter := new(MockKafkaWriter)
		producer := &TopicProducer{logger: testLogger(), writer: mockWriter, topic: "processor-events"}

		value := map[string]any{"type": "settlement", "authorization_code": "ABCDEF0123456789"}
		expected, _ := json.Marshal(value)

		mockWriter.On("WriteMessages", ctx, mock.MatchedBy(func(msgs []kafka.Message) bool {
			return len(msgs) == 1 && string(msgs[0].Key) == "ABCDEF0123456789" && string(msgs[0].Value) == string(expected)
		})).Return(nil).Once()

		require.NoError(t, producer.Publish(ctx, "ABCDEF0123456789", value))
		mockWriter.AssertExpectations(t)
	})

	t.Run("MarshalError", func(t *testing.T) {
		mockWriter := new(MockKafkaWriter)
		producer := &TopicProducer{logger: testLogger(), writer: mockWriter, topic: "processor-events"}

		err := producer.Publish(ctx, "k", make(chan int))
		require.Error(t, err)
		mockWriter.AssertNotCalled(t, "WriteMessages", mock.Anything, mock.Anything)
	})

	t.Run("WriterError", func(t *testing.T) {
		mockWriter := new(MockKafkaWriter)
		producer := &TopicProducer{logger: testLogger(), writer: mockWriter, topic: "processor-events"}
		writerError := errors.New("kafka write error")

		mockWriter.On("WriteMessages", ctx, mock.AnythingOfType("[]kafka.Message")).Return(writerError).Once()

		err := producer.Publish(ctx, "k", map[string]string{"a": "b"})
		assert.ErrorIs(t, err, writerError)
		mockWriter.AssertExpectations(t)
	})
}

func TestTopicProducer_PublishRawHeaders(t *testing.T) {
	ctx := context.Background()
	mockWriter := new(MockKafkaWriter)
	producer := &TopicProducer{logger: testLogger(), writer: mockWriter, topic: "domain-events"}

	mockWriter.On("WriteMessages", ctx, mock.MatchedBy(func(msgs []kafka.Message) bool {
		if len(msgs) != 1 || len(msgs[0].Headers) != 2 {
			return false
		}
		return msgs[0].Headers[0].Key == "correlation-id" && msgs[0].Headers[1].Key == "event-type" &&
			string(msgs[0].Value) == `{"id":1}`
	})).Return(nil).Once()

	err := producer.PublishRaw(ctx, "agg-1", []byte(`{"id":1}`), map[string]string{
		"event-type":     "card.frozen",
		"correlation-id": "corr-1",
	})
	require.NoError(t, err)
	assert.Equal(t, "domain-events", producer.Topic())
	mockWriter.AssertExpectations(t)
}

func TestTopicProducer_Close(t *testing.T) {
	mockWriter := new(MockKafkaWriter)
	producer := &TopicProducer{logger: testLogger(), writer: mockWriter, topic: "t"}
	closeError := errors.New("kafka close error")

	mockWriter.On("Close").Return(closeError).Once()
	assert.ErrorIs(t, producer.Close(), closeError)
	mockWriter.AssertExpectations(t)
}

// Verify interface implementation
var (
	_ KafkaWriter         = (*MockKafkaWriter)(nil)
	_ MessagePublisher    = (*TopicProducer)(nil)
	_ DeadLetterPublisher = (*DLQProducer)(nil)
)
