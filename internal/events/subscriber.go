package events

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/segmentio/kafka-go"
	"go.uber.org/zap"
)

const (
	DefaultTopic   = "product-events"
	DefaultGroupID = "cart-service-group"

	fetchRetryDelay = time.Second
)

type MessageReader interface {
	FetchMessage(ctx context.Context) (kafka.Message, error)
	CommitMessages(ctx context.Context, msgs ...kafka.Message) error
	Close() error
}

type MessageWriter interface {
	WriteMessages(ctx context.Context, msgs ...kafka.Message) error
	Close() error
}

type EventHandler interface {
	Handle(ctx context.Context, ev ProductEvent)
}

type SubscriberConfig struct {
	Brokers       []string
	Topic         string
	GroupID       string
	DLQTopic      string // empty disables dead-lettering
	HandleTimeout time.Duration
}

type Subscriber struct {
	reader        MessageReader
	dlq           MessageWriter
	handler       EventHandler
	handleTimeout time.Duration
	logger        *zap.Logger
}

func NewSubscriber(cfg SubscriberConfig, handler EventHandler, logger *zap.Logger) *Subscriber {
	if cfg.Topic == "" {
		cfg.Topic = DefaultTopic
	}
	if cfg.GroupID == "" {
		cfg.GroupID = DefaultGroupID
	}

	// LastOffset only applies to a group with no committed offset yet.
	reader := kafka.NewReader(kafka.ReaderConfig{
		Brokers:     cfg.Brokers,
		Topic:       cfg.Topic,
		GroupID:     cfg.GroupID,
		StartOffset: kafka.LastOffset,
		MaxBytes:    10e6, // 10MB
	})

	var dlq MessageWriter
	if cfg.DLQTopic != "" {
		dlq = &kafka.Writer{
			Addr:                   kafka.TCP(cfg.Brokers...),
			Topic:                  cfg.DLQTopic,
			Balancer:               &kafka.Hash{},
			AllowAutoTopicCreation: true,
		}
	}

	return newSubscriber(reader, dlq, handler, cfg.HandleTimeout, logger)
}

func newSubscriber(reader MessageReader, dlq MessageWriter, handler EventHandler, timeout time.Duration, logger *zap.Logger) *Subscriber {
	return &Subscriber{
		reader:        reader,
		dlq:           dlq,
		handler:       handler,
		handleTimeout: timeout,
		logger:        logger,
	}
}

// Run consumes until ctx is cancelled. Offsets are committed only after a
// message has been handled, so delivery is at least once.
func (s *Subscriber) Run(ctx context.Context) error {
	s.logger.Info("catalog event subscriber started")
	for {
		m, err := s.reader.FetchMessage(ctx)
		if err != nil {
			if ctx.Err() != nil {
				s.logger.Info("catalog event subscriber stopped")
				return nil
			}
			s.logger.Error("error fetching message", zap.Error(err))
			select {
			case <-ctx.Done():
				return nil
			case <-time.After(fetchRetryDelay):
			}
			continue
		}

		s.process(ctx, m)

		if err := s.reader.CommitMessages(ctx, m); err != nil {
			s.logger.Error("failed to commit message",
				zap.Int("partition", m.Partition),
				zap.Int64("offset", m.Offset),
				zap.Error(err))
		}
	}
}

func (s *Subscriber) process(ctx context.Context, m kafka.Message) {
	log := s.logger.With(zap.Int("partition", m.Partition), zap.Int64("offset", m.Offset))

	defer func() {
		if r := recover(); r != nil {
			log.Error("panic while handling catalog event", zap.Any("panic", r), zap.Stack("stack"))
		}
	}()

	ev, err := Decode(m.Key, m.Value)
	if err != nil {
		log.Warn("dropping undecodable catalog event", zap.ByteString("key", m.Key), zap.Error(err))
		s.deadLetter(ctx, m, err)
		return
	}

	hctx := ctx
	if s.handleTimeout > 0 {
		var cancel context.CancelFunc
		hctx, cancel = context.WithTimeout(ctx, s.handleTimeout)
		defer cancel()
	}
	s.handler.Handle(hctx, ev)
}

func (s *Subscriber) deadLetter(ctx context.Context, m kafka.Message, cause error) {
	if s.dlq == nil {
		return
	}
	msg := kafka.Message{
		Key:   m.Key,
		Value: m.Value,
		Headers: append(m.Headers,
			kafka.Header{Key: "dlq_reason", Value: []byte(cause.Error())},
			kafka.Header{Key: "dlq_source", Value: []byte(fmt.Sprintf("%s/%d/%d", m.Topic, m.Partition, m.Offset))},
		),
	}
	if err := s.dlq.WriteMessages(ctx, msg); err != nil {
		s.logger.Error("failed to forward message to dead-letter topic", zap.Error(err))
	}
}

func (s *Subscriber) Close() error {
	var errs []error
	if err := s.reader.Close(); err != nil {
		errs = append(errs, fmt.Errorf("error closing reader: %w", err))
	}
	if s.dlq != nil {
		if err := s.dlq.Close(); err != nil {
			errs = append(errs, fmt.Errorf("error closing dead-letter writer: %w", err))
		}
	}
	return errors.Join(errs...)
}
