package session_test

import (
	"context"
	"encoding/json"
	"errors"
	"sync"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/YaganovValera/universe-client/internal/mapper"
	"github.com/YaganovValera/universe-client/internal/model"
	"github.com/YaganovValera/universe-client/internal/protocol/command"
	"github.com/YaganovValera/universe-client/internal/protocol/envelope"
	"github.com/YaganovValera/universe-client/internal/protocol/message"
	"github.com/YaganovValera/universe-client/internal/schema"
	"github.com/YaganovValera/universe-client/internal/schema/schematest"
	"github.com/YaganovValera/universe-client/internal/structvalue"
)

// fakeGateway answers every request synchronously by queueing the reply
// for the next Receive.
type fakeGateway struct {
	t     *testing.T
	cmds  command.Table
	codec *structvalue.CBORCodec
	reg   *schema.Registry

	// revisions is the Market revision table announced for DCE.
	revisions string
	quotes    int

	mu    sync.Mutex
	sent  []envelope.Envelope
	inbox chan []byte
}

func newFakeGateway(t *testing.T) *fakeGateway {
	t.Helper()
	reg := schematest.Registry(t)
	c, err := structvalue.NewCBORCodec()
	require.NoError(t, err)
	require.NoError(t, c.Bind(reg))
	return &fakeGateway{
		t:         t,
		cmds:      command.Default(),
		codec:     c,
		reg:       reg,
		revisions: `{"global::SampleQuote":2}`,
		quotes:    2,
		inbox:     make(chan []byte, 64),
	}
}

func (g *fakeGateway) push(cmd, seq int32, payload []byte) {
	g.inbox <- envelope.Encode(envelope.Envelope{Cmd: cmd, Sequence: seq, Payload: payload})
}

func (g *fakeGateway) pushBody(cmd, seq int32, body any) {
	b, err := message.Marshal(body)
	require.NoError(g.t, err)
	g.push(cmd, seq, b)
}

func (g *fakeGateway) Frames() []envelope.Envelope {
	g.mu.Lock()
	defer g.mu.Unlock()
	return append([]envelope.Envelope(nil), g.sent...)
}

func (g *fakeGateway) Send(_ context.Context, frame []byte) error {
	env, err := envelope.Decode(frame)
	if err != nil {
		return err
	}
	g.mu.Lock()
	g.sent = append(g.sent, env)
	g.mu.Unlock()

	switch env.Cmd {
	case g.cmds.Handshake:
		var hs message.Handshake
		if err := json.Unmarshal(env.Payload, &hs); err != nil {
			return err
		}
		g.push(g.cmds.RouteKeepalive, 0, nil)
		g.push(g.cmds.SchemaDefinition, hs.Seq, schematest.Payload(g.t))
	case g.cmds.UniverseRevisionReq:
		var req message.RevisionRequest
		if err := message.Unmarshal(env.Payload, &req); err != nil {
			return err
		}
		g.pushBody(g.cmds.UniverseRevisionRes, req.Seq, message.RevisionResponse{
			BaseResponse: message.BaseResponse{Seq: req.Seq},
			Revisions:    map[string][]byte{"global": g.marketPayload()},
		})
	case g.cmds.UniverseSeedsReq:
		var req message.SeedsRequest
		if err := message.Unmarshal(env.Payload, &req); err != nil {
			return err
		}
		g.push(g.cmds.MarketStatus, 0, nil)
		g.pushBody(g.cmds.UniverseSeedsRes, req.Seq, message.SeedsResponse{
			BaseResponse: message.BaseResponse{Seq: req.Seq},
		})
	case g.cmds.FetchByTimeReq, g.cmds.FetchByCodeReq:
		var req message.FetchRequest
		if err := message.Unmarshal(env.Payload, &req); err != nil {
			return err
		}
		res := g.cmds.FetchByTimeRes
		if env.Cmd == g.cmds.FetchByCodeReq {
			res = g.cmds.FetchByCodeRes
		}
		g.pushBody(res, req.Seq, message.FetchResponse{
			BaseResponse: message.BaseResponse{Seq: req.Seq},
			Namespace:    req.Namespace,
			Fields:       req.Fields,
			Results:      g.quotePayload(req.Market, req.Code),
		})
	default:
		return errors.New("fake gateway: unknown command")
	}
	return nil
}

func (g *fakeGateway) Receive(ctx context.Context) ([]byte, error) {
	select {
	case f := <-g.inbox:
		return f, nil
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}

func (g *fakeGateway) marketPayload() []byte {
	v, err := g.codec.New(schema.NamespaceGlobal, schematest.MarketID)
	require.NoError(g.t, err)
	defer v.Release()
	v.SetMarket("DCE")
	require.NoError(g.t, v.SetInt32(0, 20240102))
	require.NoError(g.t, v.SetString(1, "Dalian"))
	require.NoError(g.t, v.SetString(7, g.revisions))
	b, err := g.codec.Encode(v)
	require.NoError(g.t, err)
	return b
}

func (g *fakeGateway) quotePayload(market, code string) []byte {
	m, err := mapper.New(g.reg, g.codec, schema.NamespaceGlobal, "SampleQuote", model.SampleQuote{}.Bindings()...)
	require.NoError(g.t, err)
	values := make([]*structvalue.Value, g.quotes)
	for i := range values {
		v, err := m.ToRecord(model.SampleQuote{
			TimeTag: int64(1700000000000 + 60000*i), Market: market, Code: code,
			Open: 100, Close: 101, High: 102, Low: 99, Volume: 10, Turnover: 1000,
		})
		require.NoError(g.t, err)
		values[i] = v
	}
	defer structvalue.ReleaseAll(values)
	b, err := g.codec.Encode(values...)
	require.NoError(g.t, err)
	return b
}
