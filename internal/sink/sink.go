// Package sink exports mapped records. Records are encoded as
// google.protobuf.Struct: JSON for the log, wire format for Kafka.
package sink

import (
	"context"
	"errors"
	"fmt"

	"go.uber.org/zap"
	"google.golang.org/protobuf/encoding/protojson"
	"google.golang.org/protobuf/proto"
	"google.golang.org/protobuf/types/known/structpb"

	commonkafka "github.com/YaganovValera/universe-client/common/kafka"
	"github.com/YaganovValera/universe-client/common/logger"
	"github.com/YaganovValera/universe-client/internal/fetch"
	"github.com/YaganovValera/universe-client/internal/model"
)

// Encode renders rec as a Struct with its name, key and attributes.
func Encode(rec model.Record) (*structpb.Struct, error) {
	st, err := structpb.NewStruct(map[string]any{
		"qualified_name": rec.QualifiedName(),
		"key":            rec.Key(),
		"attributes":     rec.Attributes(),
	})
	if err != nil {
		return nil, fmt.Errorf("sink: encode %s: %w", rec.QualifiedName(), err)
	}
	return st, nil
}

// LogSink logs every record as one JSON line.
type LogSink struct {
	log *logger.Logger
}

var _ fetch.Sink = (*LogSink)(nil)

func NewLogSink(log *logger.Logger) *LogSink {
	return &LogSink{log: log.Named("sink")}
}

func (s *LogSink) Write(ctx context.Context, records []model.Record) error {
	log := s.log.WithContext(ctx)
	for _, rec := range records {
		st, err := Encode(rec)
		if err != nil {
			return err
		}
		b, err := protojson.Marshal(st)
		if err != nil {
			return fmt.Errorf("sink: json %s: %w", rec.QualifiedName(), err)
		}
		log.Info("record", zap.String("qualified_name", rec.QualifiedName()), zap.ByteString("json", b))
	}
	return nil
}

// KafkaSink publishes every record to one topic, keyed by
// "<qualified name>/<record key>".
type KafkaSink struct {
	prod  commonkafka.Producer
	topic string
	log   *logger.Logger
}

var _ fetch.Sink = (*KafkaSink)(nil)

func NewKafkaSink(prod commonkafka.Producer, topic string, log *logger.Logger) *KafkaSink {
	return &KafkaSink{prod: prod, topic: topic, log: log.Named("sink")}
}

// Write stops at the first record that cannot be published.
func (s *KafkaSink) Write(ctx context.Context, records []model.Record) error {
	for _, rec := range records {
		st, err := Encode(rec)
		if err != nil {
			return err
		}
		value, err := proto.Marshal(st)
		if err != nil {
			return fmt.Errorf("sink: marshal %s: %w", rec.QualifiedName(), err)
		}
		key := []byte(rec.QualifiedName() + "/" + rec.Key())
		if err := s.prod.Publish(ctx, s.topic, key, value); err != nil {
			return fmt.Errorf("sink: publish %s: %w", key, err)
		}
	}
	s.log.WithContext(ctx).Debug("published", zap.String("topic", s.topic), zap.Int("records", len(records)))
	return nil
}

// Multi writes to every sink and joins their errors.
type Multi []fetch.Sink

var _ fetch.Sink = Multi(nil)

func (m Multi) Write(ctx context.Context, records []model.Record) error {
	var errs []error
	for _, s := range m {
		if err := s.Write(ctx, records); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}
