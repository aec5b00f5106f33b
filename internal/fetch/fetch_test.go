package fetch_test

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zaptest/observer"

	"github.com/YaganovValera/universe-client/common/logger"
	"github.com/YaganovValera/universe-client/internal/fetch"
	"github.com/YaganovValera/universe-client/internal/mapper"
	"github.com/YaganovValera/universe-client/internal/model"
	"github.com/YaganovValera/universe-client/internal/protocol/envelope"
	"github.com/YaganovValera/universe-client/internal/protocol/message"
	"github.com/YaganovValera/universe-client/internal/schema"
	"github.com/YaganovValera/universe-client/internal/schema/schematest"
	"github.com/YaganovValera/universe-client/internal/structvalue"
)

type sentReq struct {
	mode fetch.Mode
	req  message.FetchRequest
}

type recordingSink struct {
	batches [][]model.Record
	err     error
}

func (s *recordingSink) Write(_ context.Context, records []model.Record) error {
	s.batches = append(s.batches, records)
	return s.err
}

type harness struct {
	reg     *schema.Registry
	codec   *structvalue.CBORCodec
	sent    []sentReq
	results []fetch.Result
	sink    *recordingSink
	orch    *fetch.Orchestrator
}

func newHarness(t *testing.T, limit int, log *logger.Logger) *harness {
	t.Helper()
	h := &harness{reg: schematest.Registry(t), sink: &recordingSink{}}
	c, err := structvalue.NewCBORCodec()
	require.NoError(t, err)
	require.NoError(t, c.Bind(h.reg))
	h.codec = c

	h.orch = fetch.New(fetch.Config{Token: "tok", DisplayLimit: limit}, fetch.Deps{
		Registry:  h.reg,
		Codec:     c,
		Sequencer: envelope.NewSequencer(10),
		Send: func(_ context.Context, mode fetch.Mode, req message.FetchRequest) error {
			h.sent = append(h.sent, sentReq{mode, req})
			return nil
		},
		Sink: h.sink,
		OnComplete: func(_ context.Context, res fetch.Result) error {
			h.results = append(h.results, res)
			return nil
		},
	}, log)
	return h
}

func (h *harness) quotes(t *testing.T, n int) []*structvalue.Value {
	t.Helper()
	m, err := mapper.New(h.reg, h.codec, schema.NamespaceGlobal, "SampleQuote", model.SampleQuote{}.Bindings()...)
	require.NoError(t, err)
	out := make([]*structvalue.Value, n)
	for i := range out {
		v, err := m.ToRecord(model.SampleQuote{
			TimeTag: int64(1700000000000 + i*60000), Market: "DCE", Code: "A2409",
			Open: 10, Close: 11, Volume: int64(i),
		})
		require.NoError(t, err)
		out[i] = v
	}
	return out
}

func quoteQuery(mode fetch.Mode) fetch.Query {
	return fetch.Query{
		Mode:          mode,
		Namespace:     schema.NamespaceGlobal,
		QualifiedName: "SampleQuote",
		Revision:      fetch.LatestRevision,
		Market:        "DCE",
		Code:          "A2409",
		Granularity:   60,
		From:          time.UnixMilli(1700000000000),
		To:            time.UnixMilli(1700003600000),
	}
}

func TestTimeTag(t *testing.T) {
	assert.Equal(t, "0", fetch.TimeTag(time.Time{}))
	assert.Equal(t, "1700000000123", fetch.TimeTag(time.UnixMilli(1700000000123)))
}

func TestParseMode(t *testing.T) {
	m, err := fetch.ParseMode("time")
	require.NoError(t, err)
	assert.Equal(t, fetch.ByTime, m)
	_, err = fetch.ParseMode("range")
	assert.Error(t, err)
}

func TestStart_BuildsRequests(t *testing.T) {
	h := newHarness(t, 0, logger.Nop())
	n, err := h.orch.Start(context.Background(), []fetch.Query{quoteQuery(fetch.ByTime), quoteQuery(fetch.ByCode)})
	require.NoError(t, err)
	assert.Equal(t, 2, n)

	require.Len(t, h.sent, 2)
	first := h.sent[0]
	assert.Equal(t, fetch.ByTime, first.mode)
	assert.Equal(t, int32(10), first.req.Seq)
	assert.Equal(t, int32(11), h.sent[1].req.Seq)
	assert.Equal(t, "tok", first.req.Token)
	assert.Equal(t, "global", first.req.Namespace)
	assert.Equal(t, "global::SampleQuote", first.req.QualifiedName)
	assert.Equal(t, int64(-1), first.req.Revision)
	assert.Equal(t, []string{"open", "close", "high", "low", "volume", "turnover"}, first.req.Fields)
	assert.Equal(t, "1700000000000", first.req.FromTimeTag)
	assert.Equal(t, "1700003600000", first.req.ToTimeTag)
	assert.Empty(t, h.results)
}

func TestStart_SkipsUnboundQueries(t *testing.T) {
	core, logs := observer.New(zap.WarnLevel)
	h := newHarness(t, 0, logger.FromZap(zap.New(core)))

	private := quoteQuery(fetch.ByCode)
	private.Namespace = schema.NamespacePrivate // definition lacks "open"
	missing := quoteQuery(fetch.ByCode)
	missing.QualifiedName = "Market"
	missing.Namespace = schema.NamespacePrivate
	unknown := quoteQuery(fetch.ByCode)
	unknown.QualifiedName = "global::AllTypes"

	n, err := h.orch.Start(context.Background(), []fetch.Query{private, missing, unknown})
	require.NoError(t, err)
	assert.Zero(t, n)
	assert.Empty(t, h.sent)
	assert.Equal(t, 3, logs.FilterMessage("skip query").Len())

	require.Len(t, h.results, 1)
	assert.Equal(t, 3, h.results[0].Skipped)
	assert.Zero(t, h.results[0].Sent)
}

func TestHandleResult_EmptyResultCompletes(t *testing.T) {
	h := newHarness(t, 0, logger.Nop())
	ctx := context.Background()
	_, err := h.orch.Start(ctx, []fetch.Query{quoteQuery(fetch.ByTime)})
	require.NoError(t, err)

	require.NoError(t, h.orch.HandleResult(ctx, message.BaseResponse{Seq: 10}, nil))
	require.Len(t, h.results, 1)
	assert.Equal(t, 1, h.results[0].Received)
	assert.Empty(t, h.results[0].Records)
	assert.Empty(t, h.sink.batches)
}

func TestHandleResult_AccumulatesAndCompletesOnce(t *testing.T) {
	h := newHarness(t, 0, logger.Nop())
	ctx := context.Background()
	_, err := h.orch.Start(ctx, []fetch.Query{quoteQuery(fetch.ByTime), quoteQuery(fetch.ByCode)})
	require.NoError(t, err)

	first := h.quotes(t, 2)
	require.NoError(t, h.orch.HandleResult(ctx, message.BaseResponse{Seq: 10}, first))
	assert.Empty(t, h.results)

	stray := h.quotes(t, 1)
	require.NoError(t, h.orch.HandleResult(ctx, message.BaseResponse{Seq: 99}, stray))
	assert.Empty(t, h.results)
	assert.True(t, stray[0].Released())

	second := h.quotes(t, 3)
	require.NoError(t, h.orch.HandleResult(ctx, message.BaseResponse{Seq: 11}, second))
	require.Len(t, h.results, 1)
	res := h.results[0]
	assert.Equal(t, 2, res.Sent)
	assert.Equal(t, 2, res.Received)
	require.Len(t, res.Records, 5)

	q, ok := res.Records[0].(model.SampleQuote)
	require.True(t, ok)
	assert.Equal(t, "DCE", q.Market)
	assert.InDelta(t, 0.1, q.ChangeRatio(), 1e-9)

	for _, v := range append(first, second...) {
		assert.True(t, v.Released())
	}
	assert.Len(t, h.sink.batches, 2)

	// duplicate after completion is unknown now
	require.NoError(t, h.orch.HandleResult(ctx, message.BaseResponse{Seq: 11}, nil))
	assert.Len(t, h.results, 1)
}

func TestHandleResult_DisplayLimit(t *testing.T) {
	core, logs := observer.New(zap.InfoLevel)
	h := newHarness(t, 2, logger.FromZap(zap.New(core)))
	ctx := context.Background()
	_, err := h.orch.Start(ctx, []fetch.Query{quoteQuery(fetch.ByTime)})
	require.NoError(t, err)

	require.NoError(t, h.orch.HandleResult(ctx, message.BaseResponse{Seq: 10}, h.quotes(t, 5)))
	assert.Equal(t, 2, logs.FilterMessage("record").Len())
	assert.Len(t, h.orch.Result().Records, 5)
}

func TestHandleResult_SinkErrorIsNotFatal(t *testing.T) {
	h := newHarness(t, 0, logger.Nop())
	h.sink.err = errors.New("broker down")
	ctx := context.Background()
	_, err := h.orch.Start(ctx, []fetch.Query{quoteQuery(fetch.ByTime)})
	require.NoError(t, err)

	require.NoError(t, h.orch.HandleResult(ctx, message.BaseResponse{Seq: 10}, h.quotes(t, 1)))
	assert.True(t, h.orch.Completed())
}

func TestHandleResult_CancelledContextStopsMapping(t *testing.T) {
	h := newHarness(t, 0, logger.Nop())
	_, err := h.orch.Start(context.Background(), []fetch.Query{quoteQuery(fetch.ByTime)})
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	values := h.quotes(t, 3)
	err = h.orch.HandleResult(ctx, message.BaseResponse{Seq: 10}, values)
	assert.ErrorIs(t, err, context.Canceled)
	assert.False(t, h.orch.Completed())
	assert.Empty(t, h.orch.Result().Records)
	assert.Empty(t, h.sink.batches)
	for _, v := range values {
		assert.True(t, v.Released())
	}
}

func TestStart_SendErrorIsReturned(t *testing.T) {
	reg := schematest.Registry(t)
	c, err := structvalue.NewCBORCodec()
	require.NoError(t, err)
	require.NoError(t, c.Bind(reg))
	boom := errors.New("closed")
	orch := fetch.New(fetch.Config{}, fetch.Deps{
		Registry: reg, Codec: c, Sequencer: envelope.NewSequencer(1),
		Send: func(context.Context, fetch.Mode, message.FetchRequest) error { return boom },
	}, logger.Nop())

	_, err = orch.Start(context.Background(), []fetch.Query{quoteQuery(fetch.ByCode)})
	assert.ErrorIs(t, err, boom)
	assert.False(t, orch.Completed())
}

func TestCatalog(t *testing.T) {
	c := fetch.DefaultCatalog()
	assert.Equal(t, []string{"Market", "SampleQuote"}, c.Types())

	reg := schematest.Registry(t)
	codec, err := structvalue.NewCBORCodec()
	require.NoError(t, err)
	require.NoError(t, codec.Bind(reg))

	dec, err := c.Resolve(reg, codec, schema.NamespaceGlobal, "global::Market")
	require.NoError(t, err)
	assert.Equal(t, schematest.MarketID, dec.Meta().ID)

	_, err = c.Resolve(reg, codec, schema.NamespaceGlobal, "Signal")
	var ur *fetch.UnknownRecordError
	assert.ErrorAs(t, err, &ur)
}
