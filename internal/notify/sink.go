package notify

import (
	"context"
	"encoding/json"
	"time"

	"github.com/segmentio/kafka-go"
	"go.uber.org/zap"
)

// Sink pushes out-of-band notices (follow/like/comment) to the notification
// topic. Push is fire-and-forget: failures are logged, never surfaced, so a
// broken broker can not abort the primary write that triggered the notice.
type Sink struct {
	writer *kafka.Writer
	log    *zap.SugaredLogger
}

func NewSink(brokers []string, topic string, log *zap.SugaredLogger) *Sink {
	w := kafka.NewWriter(kafka.WriterConfig{
		Brokers:  brokers,
		Topic:    topic,
		Balancer: &kafka.LeastBytes{},
	})
	return &Sink{writer: w, log: log}
}

func (s *Sink) Push(recipientID string, event any) {
	b, err := json.Marshal(event)
	if err != nil {
		s.log.Warnw("notify: marshal failed", "recipient", recipientID, "err", err)
		return
	}
	go func() {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		msg := kafka.Message{Key: []byte(recipientID), Value: b, Time: time.Now()}
		if err := s.writer.WriteMessages(ctx, msg); err != nil {
			s.log.Warnw("notify: push failed", "recipient", recipientID, "err", err)
		}
	}()
}

func (s *Sink) Close() error { return s.writer.Close() }
