package app_test

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/YaganovValera/universe-client/common/backoff"
	"github.com/YaganovValera/universe-client/common/logger"
	"github.com/YaganovValera/universe-client/internal/app"
	"github.com/YaganovValera/universe-client/internal/config"
	"github.com/YaganovValera/universe-client/internal/protocol/command"
	"github.com/YaganovValera/universe-client/internal/protocol/envelope"
	"github.com/YaganovValera/universe-client/internal/protocol/message"
	"github.com/YaganovValera/universe-client/internal/schema"
	"github.com/YaganovValera/universe-client/internal/schema/schematest"
	"github.com/YaganovValera/universe-client/internal/structvalue"
	"github.com/YaganovValera/universe-client/pkg/wsconn"
)

// gateway serves one websocket session that announces a single market with
// an empty revision table.
type gateway struct {
	schema  []byte
	markets []byte

	mu     sync.Mutex
	tokens []string
}

func newGateway(t *testing.T) *gateway {
	t.Helper()
	codec, err := structvalue.NewCBORCodec()
	require.NoError(t, err)
	require.NoError(t, codec.Bind(schematest.Registry(t)))

	v, err := codec.New(schema.NamespaceGlobal, schematest.MarketID)
	require.NoError(t, err)
	defer v.Release()
	v.SetMarket("DCE")
	require.NoError(t, v.SetString(1, "Dalian"))
	require.NoError(t, v.SetString(7, "{}"))
	markets, err := codec.Encode(v)
	require.NoError(t, err)

	return &gateway{schema: schematest.Payload(t), markets: markets}
}

func (g *gateway) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	upg := websocket.Upgrader{}
	conn, err := upg.Upgrade(w, r, nil)
	if err != nil {
		return
	}
	defer conn.Close()

	cmds := command.Default()
	reply := func(cmd, seq int32, payload []byte) error {
		frame := envelope.Encode(envelope.Envelope{Cmd: cmd, Sequence: seq, Payload: payload})
		return conn.WriteMessage(websocket.BinaryMessage, frame)
	}
	for {
		_, msg, err := conn.ReadMessage()
		if err != nil {
			return
		}
		env, err := envelope.Decode(msg)
		if err != nil {
			return
		}
		switch env.Cmd {
		case cmds.Handshake:
			var hs message.Handshake
			if json.Unmarshal(env.Payload, &hs) != nil {
				return
			}
			g.mu.Lock()
			g.tokens = append(g.tokens, hs.Token)
			g.mu.Unlock()
			if reply(cmds.SchemaDefinition, hs.Seq, g.schema) != nil {
				return
			}
		case cmds.UniverseRevisionReq:
			var req message.RevisionRequest
			if message.Unmarshal(env.Payload, &req) != nil {
				return
			}
			body, err := message.Marshal(message.RevisionResponse{
				BaseResponse: message.BaseResponse{Seq: req.Seq},
				Revisions:    map[string][]byte{"global": g.markets},
			})
			if err != nil || reply(cmds.UniverseRevisionRes, req.Seq, body) != nil {
				return
			}
		}
	}
}

func (g *gateway) Tokens() []string {
	g.mu.Lock()
	defer g.mu.Unlock()
	return append([]string(nil), g.tokens...)
}

func baseConfig(url string) *config.Config {
	return &config.Config{
		ServiceName:    "universe-client-test",
		ServiceVersion: "test",
		Gateway: config.GatewayConfig{
			Config: wsconn.Config{
				URL: url,
				Backoff: backoff.Config{
					InitialInterval: 5 * time.Millisecond,
					MaxInterval:     5 * time.Millisecond,
					MaxElapsedTime:  50 * time.Millisecond,
				},
			},
			Token: "secret",
		},
		Protocol: config.ProtocolConfig{
			ProtocolVersion: 1,
			Commands:        command.Default(),
		},
		Fetch: config.FetchConfig{LogRecords: true},
	}
}

func TestRun_CompletesAgainstGateway(t *testing.T) {
	gw := newGateway(t)
	srv := httptest.NewServer(gw)
	defer srv.Close()

	cfg := baseConfig("ws" + strings.TrimPrefix(srv.URL, "http"))
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	require.NoError(t, app.Run(ctx, cfg, logger.Nop()))
	assert.Equal(t, []string{"secret"}, gw.Tokens())
}

func TestRun_DialFailure(t *testing.T) {
	srv := httptest.NewServer(http.NotFoundHandler())
	cfg := baseConfig("ws" + strings.TrimPrefix(srv.URL, "http"))
	srv.Close()

	err := app.Run(context.Background(), cfg, logger.Nop())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "gateway connect")
}

func TestRun_BadQuery(t *testing.T) {
	cfg := baseConfig("ws://127.0.0.1:1")
	cfg.Fetch.Queries = []config.QueryConfig{{Mode: "tick", QualifiedName: "global::SampleQuote"}}

	err := app.Run(context.Background(), cfg, logger.Nop())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "fetch.queries[0]")
}
