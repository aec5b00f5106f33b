// Package fetch issues code and time range queries and maps their results
// into business records.
package fetch

import (
	"context"
	"errors"
	"fmt"

	"go.uber.org/zap"

	"github.com/YaganovValera/universe-client/common/logger"
	"github.com/YaganovValera/universe-client/internal/mapper"
	"github.com/YaganovValera/universe-client/internal/metrics"
	"github.com/YaganovValera/universe-client/internal/model"
	"github.com/YaganovValera/universe-client/internal/protocol/envelope"
	"github.com/YaganovValera/universe-client/internal/protocol/message"
	"github.com/YaganovValera/universe-client/internal/schema"
	"github.com/YaganovValera/universe-client/internal/structvalue"
)

// Sender transmits one fetch request with the command matching mode.
type Sender func(ctx context.Context, mode Mode, req message.FetchRequest) error

// Sink receives the records of every fetch response.
type Sink interface {
	Write(ctx context.Context, records []model.Record) error
}

// Result is what a fetch cycle produced.
type Result struct {
	Sent     int
	Received int
	Skipped  int
	Records  []model.Record
}

// CompleteFunc is called once when every sent query has been answered.
type CompleteFunc func(ctx context.Context, res Result) error

// Config carries the session token and logging limits.
type Config struct {
	Token string
	// DisplayLimit caps how many records are logged one by one.
	DisplayLimit int
}

// Fetcher is one in-flight query bound to its decoder.
type Fetcher struct {
	Query   Query
	Decoder Decoder
}

// Orchestrator runs one fetch cycle. Like the seeds orchestrator it is
// driven from the session's dispatch goroutine only.
type Orchestrator struct {
	cfg        Config
	reg        *schema.Registry
	codec      structvalue.Codec
	catalog    *Catalog
	seq        *envelope.Sequencer
	send       Sender
	sink       Sink
	onComplete CompleteFunc
	log        *logger.Logger

	pending   map[int32]*Fetcher
	res       Result
	displayed int
	started   bool
	completed bool
}

// Deps groups the collaborators of an Orchestrator. Sink and OnComplete
// may be nil.
type Deps struct {
	Registry   *schema.Registry
	Codec      structvalue.Codec
	Catalog    *Catalog
	Sequencer  *envelope.Sequencer
	Send       Sender
	Sink       Sink
	OnComplete CompleteFunc
}

func New(cfg Config, deps Deps, log *logger.Logger) *Orchestrator {
	catalog := deps.Catalog
	if catalog == nil {
		catalog = DefaultCatalog()
	}
	return &Orchestrator{
		cfg:        cfg,
		reg:        deps.Registry,
		codec:      deps.Codec,
		catalog:    catalog,
		seq:        deps.Sequencer,
		send:       deps.Send,
		sink:       deps.Sink,
		onComplete: deps.OnComplete,
		log:        log.Named("fetch"),
		pending:    make(map[int32]*Fetcher),
	}
}

// Result returns what has been accumulated so far.
func (o *Orchestrator) Result() Result { return o.res }

// Completed reports whether the completion callback has fired.
func (o *Orchestrator) Completed() bool { return o.completed }

// Start sends every query. Queries whose record type cannot be bound are
// logged and skipped. When nothing is sent the cycle completes at once.
func (o *Orchestrator) Start(ctx context.Context, queries []Query) (int, error) {
	if o.started {
		return 0, errors.New("fetch: already started")
	}
	o.started = true
	log := o.log.WithContext(ctx)

	for _, q := range queries {
		dec, err := o.catalog.Resolve(o.reg, o.codec, q.Namespace, q.QualifiedName)
		if err != nil {
			if !skippable(err) {
				return o.res.Sent, err
			}
			o.res.Skipped++
			log.Warn("skip query",
				zap.String("qualified_name", q.QualifiedName),
				zap.String("namespace", schema.NamespaceName(q.Namespace)),
				zap.Error(err),
			)
			continue
		}

		seq := o.seq.Next()
		req := message.FetchRequest{
			BaseRequest:   message.BaseRequest{Token: o.cfg.Token, Seq: seq},
			Namespace:     schema.NamespaceName(q.Namespace),
			QualifiedName: dec.Meta().Name,
			Revision:      q.Revision,
			Market:        q.Market,
			Code:          q.Code,
			Granularity:   q.Granularity,
			Fields:        dec.Fields(),
			FromTimeTag:   TimeTag(q.From),
			ToTimeTag:     TimeTag(q.To),
		}
		if err := o.send(ctx, q.Mode, req); err != nil {
			return o.res.Sent, err
		}
		o.pending[seq] = &Fetcher{Query: q, Decoder: dec}
		o.res.Sent++
		metrics.FetchRequests.WithLabelValues(string(q.Mode)).Inc()
		log.Debug("fetch request",
			zap.Int32("seq", seq),
			zap.String("mode", string(q.Mode)),
			zap.String("qualified_name", req.QualifiedName),
			zap.String("market", q.Market),
			zap.String("code", q.Code),
		)
	}

	log.Info("fetch requests sent", zap.Int("sent", o.res.Sent), zap.Int("skipped", o.res.Skipped))
	if o.res.Sent == 0 {
		return 0, o.complete(ctx)
	}
	return o.res.Sent, nil
}

func skippable(err error) bool {
	var (
		nf *schema.SchemaNotFoundError
		be *mapper.BindingError
		ur *UnknownRecordError
	)
	return errors.As(err, &nf) || errors.As(err, &be) || errors.As(err, &ur)
}

// HandleResult maps one fetch response and releases its values. Responses
// to unknown sequences are dropped without counting.
func (o *Orchestrator) HandleResult(ctx context.Context, base message.BaseResponse, values []*structvalue.Value) error {
	log := o.log.WithContext(ctx)
	f, ok := o.pending[base.Seq]
	if !ok {
		structvalue.ReleaseAll(values)
		log.Warn("fetch response for unknown sequence", zap.Int32("seq", base.Seq))
		return nil
	}
	delete(o.pending, base.Seq)
	if err := base.Err(); err != nil {
		log.Warn("fetch response error", zap.Error(err), zap.String("qualified_name", f.Query.QualifiedName))
	}

	name := f.Decoder.Meta().Name
	records := make([]model.Record, 0, len(values))
	err := structvalue.Each(values, func(i int, v *structvalue.Value) error {
		if err := ctx.Err(); err != nil {
			return err
		}
		rec, err := f.Decoder.Decode(v)
		if err != nil {
			metrics.DecodeErrors.WithLabelValues("record").Inc()
			log.Warn("map record", zap.String("qualified_name", name), zap.Int("index", i), zap.Error(err))
			return nil
		}
		records = append(records, rec)
		return nil
	})
	if err != nil {
		return fmt.Errorf("fetch %s seq %d: %w", name, base.Seq, err)
	}

	metrics.FetchRecords.WithLabelValues(name).Add(float64(len(records)))
	for _, rec := range records {
		if o.displayed >= o.cfg.DisplayLimit {
			break
		}
		o.displayed++
		log.Info("record", zap.String("qualified_name", rec.QualifiedName()), zap.Any("attributes", rec.Attributes()))
	}
	log.Info("fetch response",
		zap.Int32("seq", base.Seq),
		zap.String("qualified_name", name),
		zap.Int("records", len(records)),
	)

	if o.sink != nil && len(records) > 0 {
		if err := o.sink.Write(ctx, records); err != nil {
			metrics.SinkErrors.WithLabelValues("fetch").Inc()
			log.Error("sink write", zap.Error(err))
		}
	}

	o.res.Records = append(o.res.Records, records...)
	o.res.Received++
	if o.res.Received == o.res.Sent {
		return o.complete(ctx)
	}
	return nil
}

func (o *Orchestrator) complete(ctx context.Context) error {
	if o.completed {
		return nil
	}
	o.completed = true
	o.log.WithContext(ctx).Info("fetch complete",
		zap.Int("sent", o.res.Sent),
		zap.Int("records", len(o.res.Records)),
		zap.Int("skipped", o.res.Skipped),
	)
	if o.onComplete == nil {
		return nil
	}
	return o.onComplete(ctx, o.res)
}
