package wsconn

import (
	"bytes"
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"go.uber.org/goleak"

	"github.com/YaganovValera/universe-client/common/backoff"
	"github.com/YaganovValera/universe-client/common/logger"
)

func TestMain(m *testing.M) {
	goleak.VerifyTestMain(m)
}

func TestConfigDefaultsAndValidate(t *testing.T) {
	cases := []struct {
		name     string
		input    Config
		wantErr  bool
		wantRead time.Duration
		wantPing time.Duration
	}{
		{"empty", Config{}, true, 60 * time.Second, 20 * time.Second},
		{"http scheme", Config{URL: "http://gw"}, true, 60 * time.Second, 20 * time.Second},
		{"ok", Config{URL: "ws://gw"}, false, 60 * time.Second, 20 * time.Second},
		{"ping too slow", Config{URL: "wss://gw", ReadTimeout: time.Second, PingInterval: 2 * time.Second}, true, time.Second, 2 * time.Second},
	}
	for _, c := range cases {
		t.Run(c.name, func(t *testing.T) {
			cfg := c.input
			cfg.applyDefaults()
			if cfg.ReadTimeout != c.wantRead {
				t.Errorf("ReadTimeout = %v; want %v", cfg.ReadTimeout, c.wantRead)
			}
			if cfg.PingInterval != c.wantPing {
				t.Errorf("PingInterval = %v; want %v", cfg.PingInterval, c.wantPing)
			}
			if err := cfg.validate(); (err != nil) != c.wantErr {
				t.Errorf("validate() error = %v; wantErr %v", err, c.wantErr)
			}
		})
	}
}

// echoServer replies to every binary message with the same payload,
// preceded by one text message that the client must skip.
func echoServer(t *testing.T, compressed bool) *httptest.Server {
	upg := websocket.Upgrader{}
	return httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		conn, err := upg.Upgrade(w, r, nil)
		if err != nil {
			t.Errorf("upgrade: %v", err)
			return
		}
		defer conn.Close()
		for {
			_, msg, err := conn.ReadMessage()
			if err != nil {
				return
			}
			if compressed {
				if msg, err = inflate(msg); err != nil {
					t.Errorf("server inflate: %v", err)
					return
				}
				if msg, err = deflate(append([]byte("re:"), msg...)); err != nil {
					t.Errorf("server deflate: %v", err)
					return
				}
			} else {
				msg = append([]byte("re:"), msg...)
			}
			_ = conn.WriteMessage(websocket.TextMessage, []byte("noise"))
			if err := conn.WriteMessage(websocket.BinaryMessage, msg); err != nil {
				return
			}
		}
	}))
}

func wsURL(srv *httptest.Server) string {
	return "ws" + strings.TrimPrefix(srv.URL, "http")
}

func fastBackoff() backoff.Config {
	return backoff.Config{
		InitialInterval:     time.Millisecond,
		RandomizationFactor: 0.01,
		Multiplier:          1,
		MaxInterval:         time.Millisecond,
		MaxElapsedTime:      50 * time.Millisecond,
	}
}

func TestConn_RoundTrip(t *testing.T) {
	for _, compressed := range []bool{false, true} {
		name := "plain"
		if compressed {
			name = "zlib"
		}
		t.Run(name, func(t *testing.T) {
			srv := echoServer(t, compressed)
			defer srv.Close()

			ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
			defer cancel()
			c, err := Dial(ctx, Config{URL: wsURL(srv), Compression: compressed, Backoff: fastBackoff()}, logger.Nop())
			if err != nil {
				t.Fatalf("Dial: %v", err)
			}
			defer c.Close()

			for _, frame := range [][]byte{[]byte("one"), bytes.Repeat([]byte{7}, 4096)} {
				if err := c.Send(ctx, frame); err != nil {
					t.Fatalf("Send: %v", err)
				}
				got, err := c.Receive(ctx)
				if err != nil {
					t.Fatalf("Receive: %v", err)
				}
				if want := append([]byte("re:"), frame...); !bytes.Equal(got, want) {
					t.Errorf("Receive = %d bytes; want %d", len(got), len(want))
				}
			}
		})
	}
}

func TestConn_CloseStopsReceive(t *testing.T) {
	srv := echoServer(t, false)
	defer srv.Close()

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	c, err := Dial(ctx, Config{URL: wsURL(srv), Backoff: fastBackoff()}, logger.Nop())
	if err != nil {
		t.Fatalf("Dial: %v", err)
	}
	if err := c.Close(); err != nil {
		t.Errorf("Close: %v", err)
	}
	_ = c.Close()

	if _, err := c.Receive(ctx); err == nil {
		t.Error("expected error after Close")
	}
	if err := c.Send(ctx, []byte("x")); !errors.Is(err, ErrClosed) {
		t.Errorf("Send after Close = %v; want ErrClosed", err)
	}
}

func TestConn_ReceiveHonoursContext(t *testing.T) {
	srv := echoServer(t, false)
	defer srv.Close()

	c, err := Dial(context.Background(), Config{URL: wsURL(srv), Backoff: fastBackoff()}, logger.Nop())
	if err != nil {
		t.Fatalf("Dial: %v", err)
	}
	defer c.Close()

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()
	if _, err := c.Receive(ctx); !errors.Is(err, context.DeadlineExceeded) {
		t.Errorf("Receive = %v; want deadline exceeded", err)
	}
}

func TestDial_GivesUp(t *testing.T) {
	srv := httptest.NewServer(http.NotFoundHandler())
	url := wsURL(srv)
	srv.Close()

	_, err := Dial(context.Background(), Config{URL: url, Backoff: fastBackoff()}, logger.Nop())
	var maxErr *backoff.ErrMaxRetries
	if !errors.As(err, &maxErr) {
		t.Fatalf("Dial = %v; want ErrMaxRetries", err)
	}
}

func TestDial_RejectedHandshakeIsPermanent(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		http.Error(w, "bad token", http.StatusUnauthorized)
	}))
	defer srv.Close()

	_, err := Dial(context.Background(), Config{URL: wsURL(srv), Backoff: fastBackoff()}, logger.Nop())
	var maxErr *backoff.ErrMaxRetries
	if !errors.As(err, &maxErr) {
		t.Fatalf("Dial = %v; want ErrMaxRetries", err)
	}
	if maxErr.Attempts != 1 {
		t.Errorf("attempts = %d; want 1", maxErr.Attempts)
	}
}
