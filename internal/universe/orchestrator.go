// Package universe negotiates per-market revisions and fans out the seed
// requests that follow from them.
package universe

import (
	"context"
	"encoding/json"
	"fmt"
	"math"
	"sort"

	"go.uber.org/zap"

	"github.com/YaganovValera/universe-client/common/logger"
	"github.com/YaganovValera/universe-client/internal/metrics"
	"github.com/YaganovValera/universe-client/internal/protocol/envelope"
	"github.com/YaganovValera/universe-client/internal/protocol/message"
	"github.com/YaganovValera/universe-client/internal/structvalue"
)

// Declared field indexes of the Market definition.
const (
	FieldTradeDay    = 0
	FieldDisplayName = 1
	FieldRevisions   = 7
)

// Entry is one seed request to issue.
type Entry struct {
	Namespace     string
	Market        string
	QualifiedName string
	Revision      uint32
	TradeDay      int32
}

// Sender transmits one seed request.
type Sender func(ctx context.Context, req message.SeedsRequest) error

// CompleteFunc is called once when every seed response of the cycle has
// arrived.
type CompleteFunc func(ctx context.Context, st SeedState) error

// Config carries what the orchestrator needs from the session.
type Config struct {
	Token        string
	MarketMetaID int32
}

// Orchestrator runs one revision cycle. It is driven from the session's
// dispatch goroutine and is not safe for concurrent use.
type Orchestrator struct {
	cfg        Config
	seq        *envelope.Sequencer
	send       Sender
	onComplete CompleteFunc
	log        *logger.Logger

	state   SeedState
	pending map[int32]Entry
}

// New returns an orchestrator drawing sequence numbers from seq.
func New(cfg Config, seq *envelope.Sequencer, send Sender, onComplete CompleteFunc, log *logger.Logger) *Orchestrator {
	return &Orchestrator{
		cfg:        cfg,
		seq:        seq,
		send:       send,
		onComplete: onComplete,
		log:        log.Named("universe"),
		pending:    make(map[int32]Entry),
	}
}

// State returns a copy of the seed counters.
func (o *Orchestrator) State() SeedState { return o.state }

// HandleRevision reads the Market records of every namespace, sends one
// seed request per (market, qualified name) and fixes the expected count.
// Every value is released. The returned error comes from the sender or
// from the completion callback.
func (o *Orchestrator) HandleRevision(ctx context.Context, resp map[string][]*structvalue.Value) (int, error) {
	defer func() {
		for _, values := range resp {
			structvalue.ReleaseAll(values)
		}
	}()
	log := o.log.WithContext(ctx)

	namespaces := make([]string, 0, len(resp))
	for ns := range resp {
		namespaces = append(namespaces, ns)
	}
	sort.Strings(namespaces)

	sent := 0
	for _, ns := range namespaces {
		var entries []Entry
		err := structvalue.Each(resp[ns], func(_ int, v *structvalue.Value) error {
			if v.MetaID() != o.cfg.MarketMetaID {
				return nil
			}
			es, err := o.entries(ns, v)
			if err != nil {
				metrics.FieldParseErrors.Inc()
				log.Warn("skip market", zap.Error(err))
				return nil
			}
			entries = append(entries, es...)
			return nil
		})
		if err != nil {
			return sent, err
		}

		sort.SliceStable(entries, func(i, j int) bool {
			if entries[i].Market != entries[j].Market {
				return entries[i].Market < entries[j].Market
			}
			return entries[i].QualifiedName < entries[j].QualifiedName
		})
		for _, e := range entries {
			if err := o.request(ctx, e); err != nil {
				return sent, err
			}
			sent++
		}
	}

	metrics.SeedsExpected.Set(float64(sent))
	metrics.SeedsInFlight.Set(float64(sent))
	log.Info("seed requests sent", zap.Int("count", sent))

	done, err := o.state.SetExpected(sent)
	if err != nil {
		return sent, err
	}
	if done {
		return sent, o.complete(ctx)
	}
	return sent, nil
}

func (o *Orchestrator) entries(ns string, v *structvalue.Value) ([]Entry, error) {
	tradeDay, err := v.GetInt32(FieldTradeDay)
	if err != nil {
		return nil, &FieldParseError{Namespace: ns, Market: v.Market(), Field: FieldTradeDay, Err: err}
	}
	display, err := v.GetString(FieldDisplayName)
	if err != nil {
		return nil, &FieldParseError{Namespace: ns, Market: v.Market(), Field: FieldDisplayName, Err: err}
	}
	market := v.Market()
	if market == "" {
		market = display
	}
	if _, ok := v.Meta().FieldAt(FieldRevisions); !ok {
		return nil, &FieldParseError{Namespace: ns, Market: market, Field: FieldRevisions, Err: structvalue.ErrFieldIndex}
	}
	if v.IsEmpty(FieldRevisions) {
		return nil, nil
	}
	raw, err := v.GetString(FieldRevisions)
	if err != nil {
		return nil, &FieldParseError{Namespace: ns, Market: market, Field: FieldRevisions, Err: err}
	}

	var table map[string]int64
	if err := json.Unmarshal([]byte(raw), &table); err != nil {
		return nil, &FieldParseError{Namespace: ns, Market: market, Field: FieldRevisions, Err: err}
	}
	out := make([]Entry, 0, len(table))
	for name, rev := range table {
		if rev < 0 || rev > math.MaxUint32 {
			return nil, &FieldParseError{Namespace: ns, Market: market, Field: FieldRevisions,
				Err: fmt.Errorf("revision %d of %s out of range", rev, name)}
		}
		out = append(out, Entry{
			Namespace:     ns,
			Market:        market,
			QualifiedName: name,
			Revision:      uint32(rev),
			TradeDay:      tradeDay,
		})
	}
	return out, nil
}

func (o *Orchestrator) request(ctx context.Context, e Entry) error {
	seq := o.seq.Next()
	req := message.SeedsRequest{
		BaseRequest:   message.BaseRequest{Token: o.cfg.Token, Seq: seq},
		Revision:      e.Revision,
		Namespace:     e.Namespace,
		QualifiedName: e.QualifiedName,
		Market:        e.Market,
		TradeDay:      e.TradeDay,
	}
	if err := o.send(ctx, req); err != nil {
		return err
	}
	o.pending[seq] = e
	metrics.SeedRequests.Inc()
	o.log.Debug("seed request",
		zap.Int32("seq", seq),
		zap.String("namespace", e.Namespace),
		zap.String("market", e.Market),
		zap.String("qualified_name", e.QualifiedName),
		zap.Uint32("revision", e.Revision),
	)
	return nil
}

// HandleSeeds counts one seed response and releases its values. Responses
// with an error status or an unknown sequence still count.
func (o *Orchestrator) HandleSeeds(ctx context.Context, base message.BaseResponse, values []*structvalue.Value) error {
	defer structvalue.ReleaseAll(values)
	log := o.log.WithContext(ctx)

	e, known := o.pending[base.Seq]
	delete(o.pending, base.Seq)
	switch {
	case base.Err() != nil:
		log.Warn("seed response error", zap.Error(base.Err()), zap.String("market", e.Market))
	case !known:
		log.Warn("seed response for unknown sequence", zap.Int32("seq", base.Seq))
	default:
		log.Debug("seed response",
			zap.Int32("seq", base.Seq),
			zap.String("market", e.Market),
			zap.String("qualified_name", e.QualifiedName),
			zap.Int("values", len(values)),
		)
	}

	metrics.SeedsReceived.Inc()
	done := o.state.Receive()
	metrics.SeedsInFlight.Set(float64(o.state.InFlight()))
	if !done {
		return nil
	}
	return o.complete(ctx)
}

func (o *Orchestrator) complete(ctx context.Context) error {
	o.log.WithContext(ctx).Info("seeds complete",
		zap.Int("expected", o.state.Expected),
		zap.Int("received", o.state.Received),
	)
	if o.onComplete == nil {
		return nil
	}
	return o.onComplete(ctx, o.state)
}
