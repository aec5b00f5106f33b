// Package wsconn carries protocol frames over a websocket, one binary
// message per frame.
package wsconn

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"github.com/klauspost/compress/zlib"
	"go.uber.org/zap"

	"github.com/YaganovValera/universe-client/common/backoff"
	"github.com/YaganovValera/universe-client/common/logger"
)

// ErrClosed is returned after Close.
var ErrClosed = errors.New("wsconn: connection closed")

// Conn is a dialled gateway connection. A single reader goroutine feeds
// Receive; Send may be called from any goroutine.
type Conn struct {
	cfg Config
	log *logger.Logger
	ws  *websocket.Conn

	frames chan []byte
	done   chan struct{}
	wg     sync.WaitGroup

	writeMu   sync.Mutex
	errMu     sync.Mutex
	readErr   error
	closeOnce sync.Once
}

// Dial connects with back-off. A handshake rejected with a 4xx status is
// not retried.
func Dial(ctx context.Context, cfg Config, log *logger.Logger) (*Conn, error) {
	cfg.applyDefaults()
	if err := cfg.validate(); err != nil {
		return nil, err
	}
	log = log.Named("wsconn")

	dialer := websocket.Dialer{
		Proxy:            http.ProxyFromEnvironment,
		HandshakeTimeout: cfg.DialTimeout,
	}
	var ws *websocket.Conn
	err := backoff.Execute(ctx, cfg.Backoff, log, func(ctx context.Context) error {
		conn, resp, err := dialer.DialContext(ctx, cfg.URL, nil)
		if err != nil {
			if resp != nil && resp.StatusCode >= 400 && resp.StatusCode < 500 {
				return backoff.Permanent(fmt.Errorf("handshake status %d: %w", resp.StatusCode, err))
			}
			return err
		}
		ws = conn
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("wsconn: dial %s: %w", cfg.URL, err)
	}
	log.Info("connected", zap.String("url", cfg.URL), zap.Bool("compression", cfg.Compression))

	c := &Conn{
		cfg:    cfg,
		log:    log,
		ws:     ws,
		frames: make(chan []byte, cfg.BufferSize),
		done:   make(chan struct{}),
	}
	_ = ws.SetReadDeadline(time.Now().Add(cfg.ReadTimeout))
	ws.SetPongHandler(func(string) error {
		return ws.SetReadDeadline(time.Now().Add(cfg.ReadTimeout))
	})

	c.wg.Add(2)
	go c.readLoop()
	go c.pingLoop()
	return c, nil
}

func (c *Conn) readLoop() {
	defer c.wg.Done()
	defer close(c.frames)
	for {
		mt, data, err := c.ws.ReadMessage()
		if err != nil {
			c.setErr(err)
			return
		}
		_ = c.ws.SetReadDeadline(time.Now().Add(c.cfg.ReadTimeout))
		if mt != websocket.BinaryMessage {
			c.log.Debug("skip non-binary message", zap.Int("type", mt))
			continue
		}
		if c.cfg.Compression {
			if data, err = inflate(data); err != nil {
				c.setErr(fmt.Errorf("inflate: %w", err))
				return
			}
		}
		select {
		case c.frames <- data:
		case <-c.done:
			return
		}
	}
}

func (c *Conn) pingLoop() {
	defer c.wg.Done()
	ticker := time.NewTicker(c.cfg.PingInterval)
	defer ticker.Stop()
	for {
		select {
		case <-c.done:
			return
		case <-ticker.C:
			if err := c.ws.WriteControl(websocket.PingMessage, nil, time.Now().Add(c.cfg.WriteTimeout)); err != nil {
				c.log.Warn("ping failed", zap.Error(err))
			}
		}
	}
}

func (c *Conn) setErr(err error) {
	c.errMu.Lock()
	defer c.errMu.Unlock()
	if c.readErr == nil {
		c.readErr = err
	}
}

func (c *Conn) err() error {
	c.errMu.Lock()
	defer c.errMu.Unlock()
	select {
	case <-c.done:
		return ErrClosed
	default:
	}
	if c.readErr == nil {
		return io.EOF
	}
	return c.readErr
}

// Send writes one frame as a binary message.
func (c *Conn) Send(ctx context.Context, frame []byte) error {
	select {
	case <-c.done:
		return ErrClosed
	case <-ctx.Done():
		return ctx.Err()
	default:
	}
	data := frame
	if c.cfg.Compression {
		var err error
		if data, err = deflate(frame); err != nil {
			return fmt.Errorf("wsconn: deflate: %w", err)
		}
	}

	c.writeMu.Lock()
	defer c.writeMu.Unlock()
	deadline := time.Now().Add(c.cfg.WriteTimeout)
	if d, ok := ctx.Deadline(); ok && d.Before(deadline) {
		deadline = d
	}
	_ = c.ws.SetWriteDeadline(deadline)
	if err := c.ws.WriteMessage(websocket.BinaryMessage, data); err != nil {
		return fmt.Errorf("wsconn: write: %w", err)
	}
	return nil
}

// Receive returns the next frame. After the reader stops, frames already
// buffered are still returned before the read error.
func (c *Conn) Receive(ctx context.Context) ([]byte, error) {
	select {
	case f, ok := <-c.frames:
		if !ok {
			return nil, c.err()
		}
		return f, nil
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}

// Close sends a close message, closes the socket and waits for the
// goroutines to exit. It is safe to call more than once.
func (c *Conn) Close() error {
	var err error
	c.closeOnce.Do(func() {
		close(c.done)
		c.writeMu.Lock()
		_ = c.ws.WriteControl(websocket.CloseMessage,
			websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""),
			time.Now().Add(c.cfg.WriteTimeout))
		c.writeMu.Unlock()
		err = c.ws.Close()
		c.wg.Wait()
		c.log.Info("closed")
	})
	return err
}

func inflate(data []byte) ([]byte, error) {
	r, err := zlib.NewReader(bytes.NewReader(data))
	if err != nil {
		return nil, err
	}
	defer r.Close()
	return io.ReadAll(r)
}

func deflate(data []byte) ([]byte, error) {
	var buf bytes.Buffer
	w := zlib.NewWriter(&buf)
	if _, err := w.Write(data); err != nil {
		return nil, err
	}
	if err := w.Close(); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}
