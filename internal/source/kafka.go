package source

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"time"

	"github.com/segmentio/kafka-go"

	srcherr "github.com/rpopa-dp/srch/internal/errors"
	"github.com/rpopa-dp/srch/internal/store"
)

// KafkaConfig configures a KafkaSource.
type KafkaConfig struct {
	Brokers []string
	Topic   string
	GroupID string

	// MaxDocuments stops the source after this many documents (0 = unlimited).
	MaxDocuments int

	// IdleTimeout ends the source when no message arrives for this long
	// (0 = wait forever).
	IdleTimeout time.Duration
}

// Message is the JSON payload expected on the topic.
type Message struct {
	Title string `json:"title"`
	Body  string `json:"body"`
}

// messageReader is the subset of *kafka.Reader used by KafkaSource.
type messageReader interface {
	FetchMessage(ctx context.Context) (kafka.Message, error)
	CommitMessages(ctx context.Context, msgs ...kafka.Message) error
	Close() error
}

// KafkaSource consumes documents from a Kafka topic. Offsets are committed
// only through Commit, so a document is acknowledged after it is indexed.
type KafkaSource struct {
	reader  messageReader
	logger  *slog.Logger
	cfg     KafkaConfig
	pending *kafka.Message
	emitted int
}

// NewKafkaSource creates a consumer-group reader for cfg.Topic.
func NewKafkaSource(cfg KafkaConfig) (*KafkaSource, error) {
	if len(cfg.Brokers) == 0 || cfg.Topic == "" {
		return nil, srcherr.New(srcherr.ErrCodeConfigInvalid, "kafka.brokers and kafka.topic are required", nil)
	}
	if cfg.GroupID == "" {
		cfg.GroupID = "srch-indexer"
	}

	r := kafka.NewReader(kafka.ReaderConfig{
		Brokers:     cfg.Brokers,
		Topic:       cfg.Topic,
		GroupID:     cfg.GroupID,
		MinBytes:    1,
		MaxBytes:    10e6,
		StartOffset: kafka.FirstOffset,
	})
	return newKafkaSource(r, cfg), nil
}

func newKafkaSource(r messageReader, cfg KafkaConfig) *KafkaSource {
	return &KafkaSource{
		reader: r,
		logger: slog.Default().With("component", "kafka-source", "topic", cfg.Topic),
		cfg:    cfg,
	}
}

// Next implements Source.
func (s *KafkaSource) Next(ctx context.Context) (*store.Document, error) {
	for {
		if s.cfg.MaxDocuments > 0 && s.emitted >= s.cfg.MaxDocuments {
			return nil, io.EOF
		}

		msg, err := s.fetch(ctx)
		if err != nil {
			return nil, err
		}

		payload, err := DecodeJSON[Message](msg.Value)
		if err != nil {
			// Poison messages are skipped and committed so they are not redelivered.
			s.logger.Warn("kafka_message_skipped",
				slog.Int("partition", msg.Partition),
				slog.Int64("offset", msg.Offset),
				slog.String("error", err.Error()))
			if err := s.reader.CommitMessages(ctx, msg); err != nil {
				return nil, srcherr.SourceReadError("failed to commit skipped message", err)
			}
			continue
		}

		title := payload.Title
		if title == "" {
			title = string(msg.Key)
		}

		s.pending = &msg
		s.emitted++
		s.logger.Debug("kafka_message_received",
			slog.Int("partition", msg.Partition),
			slog.Int64("offset", msg.Offset),
			slog.Int("value_size", len(msg.Value)))
		return &store.Document{Title: title, Body: payload.Body}, nil
	}
}

func (s *KafkaSource) fetch(ctx context.Context) (kafka.Message, error) {
	fetchCtx := ctx
	if s.cfg.IdleTimeout > 0 {
		var cancel context.CancelFunc
		fetchCtx, cancel = context.WithTimeout(ctx, s.cfg.IdleTimeout)
		defer cancel()
	}

	msg, err := s.reader.FetchMessage(fetchCtx)
	if err == nil {
		return msg, nil
	}
	if ctx.Err() != nil {
		return kafka.Message{}, ctx.Err()
	}
	if errors.Is(err, context.DeadlineExceeded) || errors.Is(err, io.EOF) {
		s.logger.Info("kafka_source_idle", slog.Int("documents", s.emitted))
		return kafka.Message{}, io.EOF
	}
	return kafka.Message{}, srcherr.SourceReadError("failed to fetch message", err)
}

// Commit implements Committer.
func (s *KafkaSource) Commit(ctx context.Context) error {
	if s.pending == nil {
		return nil
	}
	if err := s.reader.CommitMessages(ctx, *s.pending); err != nil {
		return srcherr.SourceReadError("failed to commit message", err).
			WithDetail("offset", fmt.Sprint(s.pending.Offset))
	}
	s.pending = nil
	return nil
}

// Close implements Source.
func (s *KafkaSource) Close() error {
	return s.reader.Close()
}

// DecodeJSON unmarshals a Kafka message value into T.
func DecodeJSON[T any](value []byte) (T, error) {
	var result T
	if err := json.Unmarshal(value, &result); err != nil {
		return result, fmt.Errorf("decoding kafka message: %w", err)
	}
	return result, nil
}

// PingKafka dials the first reachable broker and returns the partition count
// of topic.
func PingKafka(ctx context.Context, brokers []string, topic string) (int, error) {
	var lastErr error
	for _, broker := range brokers {
		conn, err := kafka.DialContext(ctx, "tcp", broker)
		if err != nil {
			lastErr = err
			continue
		}
		partitions, err := conn.ReadPartitions(topic)
		_ = conn.Close()
		if err != nil {
			return 0, srcherr.SourceReadError("failed to read topic partitions", err).WithDetail("topic", topic)
		}
		return len(partitions), nil
	}
	if lastErr == nil {
		lastErr = errors.New("no brokers configured")
	}
	return 0, srcherr.SourceReadError("no kafka broker reachable", lastErr)
}
