package audit

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/segmentio/kafka-go"
	"go.uber.org/zap"

	"github.com/andyyue2024/signal-transceiver-sub001/internal/auth"
	"github.com/andyyue2024/signal-transceiver-sub001/internal/config"
)

type Event struct {
	ID        string         `json:"id"`
	Action    string         `json:"action"`
	Level     string         `json:"level"`
	AccountID uint64         `json:"account_id,omitempty"`
	Username  string         `json:"username,omitempty"`
	Scheme    string         `json:"scheme,omitempty"`
	Details   map[string]any `json:"details,omitempty"`
	At        time.Time      `json:"at"`
}

type Sink interface {
	Write(ctx context.Context, e Event) error
	Close() error
}

type NopSink struct{}

func (NopSink) Write(context.Context, Event) error { return nil }
func (NopSink) Close() error                       { return nil }

// KafkaSink publishes events as JSON, keyed by account so one account's
// events stay ordered within a partition.
type KafkaSink struct {
	writer *kafka.Writer
	Topic  string
}

func NewKafkaSink(cfg config.AuditConfig) *KafkaSink {
	writer := &kafka.Writer{
		Addr:                   kafka.TCP(cfg.Brokers...),
		Topic:                  cfg.Topic,
		RequiredAcks:           kafka.RequireOne,
		Balancer:               &kafka.Hash{},
		AllowAutoTopicCreation: true,
	}
	return &KafkaSink{writer: writer, Topic: cfg.Topic}
}

func (s *KafkaSink) Write(ctx context.Context, e Event) error {
	value, err := json.Marshal(e)
	if err != nil {
		return fmt.Errorf("marshal audit event: %w", err)
	}
	key := []byte(e.Username)
	if len(key) == 0 {
		key = []byte(e.Action)
	}
	if err := s.writer.WriteMessages(ctx, kafka.Message{Key: key, Value: value, Time: e.At}); err != nil {
		return fmt.Errorf("kafka write: %w", err)
	}
	return nil
}

func (s *KafkaSink) Close() error {
	return s.writer.Close()
}

// Recorder writes audit events best effort: failures are logged, never returned.
type Recorder struct {
	sink    Sink
	log     *zap.Logger
	timeout time.Duration
	now     func() time.Time
}

func NewRecorder(sink Sink, log *zap.Logger) *Recorder {
	if sink == nil {
		sink = NopSink{}
	}
	if log == nil {
		log = zap.NewNop()
	}
	return &Recorder{sink: sink, log: log, timeout: 2 * time.Second, now: func() time.Time { return time.Now().UTC() }}
}

// Record attaches the request's principal, if any, to the event.
func (r *Recorder) Record(ctx context.Context, action, level string, details map[string]any) {
	if r == nil {
		return
	}
	e := Event{
		ID:      uuid.NewString(),
		Action:  action,
		Level:   level,
		Details: details,
		At:      r.now(),
	}
	if p, ok := auth.PrincipalFromContext(ctx); ok {
		e.AccountID = p.AccountID
		e.Username = p.Username
		e.Scheme = string(p.Scheme)
	}
	wctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), r.timeout)
	defer cancel()
	if err := r.sink.Write(wctx, e); err != nil {
		r.log.Debug("audit write failed", zap.String("action", action), zap.Error(err))
	}
}

func (r *Recorder) Close() error {
	if r == nil {
		return nil
	}
	return r.sink.Close()
}

func LevelFromStatus(status int) string {
	if status >= 500 {
		return "error"
	}
	if status >= 400 {
		return "warn"
	}
	return "info"
}
