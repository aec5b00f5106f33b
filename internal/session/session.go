// Package session drives one protocol session from handshake to the end of
// the fetch cycle. All inbound frames go through Dispatch on the goroutine
// that called Run.
package session

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"

	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"

	"github.com/YaganovValera/universe-client/common/logger"
	"github.com/YaganovValera/universe-client/common/telemetry"
	"github.com/YaganovValera/universe-client/internal/fetch"
	"github.com/YaganovValera/universe-client/internal/metrics"
	"github.com/YaganovValera/universe-client/internal/protocol/command"
	"github.com/YaganovValera/universe-client/internal/protocol/envelope"
	"github.com/YaganovValera/universe-client/internal/protocol/message"
	"github.com/YaganovValera/universe-client/internal/schema"
	"github.com/YaganovValera/universe-client/internal/structvalue"
	"github.com/YaganovValera/universe-client/internal/universe"
)

// Transport moves complete frames. Receive blocks until a frame arrives,
// ctx ends or the connection fails.
type Transport interface {
	Send(ctx context.Context, frame []byte) error
	Receive(ctx context.Context) ([]byte, error)
}

// Config holds the protocol parameters of a session.
type Config struct {
	Token           string
	ProtocolVersion int32
	// MarketMetaID is used when the schema has no global Market definition.
	MarketMetaID int32
	Commands     command.Table
	Queries      []fetch.Query
	DisplayLimit int
}

// Deps are the injected collaborators. Catalog, Sink and Tracer may be nil.
type Deps struct {
	Transport Transport
	Codec     structvalue.Codec
	Parser    schema.Parser
	Catalog   *fetch.Catalog
	Sink      fetch.Sink
	Tracer    trace.Tracer
}

// TransitionFunc observes state changes.
type TransitionFunc func(from, to State)

// Session is one protocol session.
type Session struct {
	cfg    Config
	deps   Deps
	names  command.Names
	tracer trace.Tracer
	log    *logger.Logger

	state        atomic.Int32
	seq          *envelope.Sequencer
	onTransition TransitionFunc

	reg   *schema.Registry
	seeds *universe.Orchestrator
	fetch *fetch.Orchestrator

	mu     sync.Mutex
	result fetch.Result
	err    error
}

// New validates the dependencies and returns a disconnected session.
func New(cfg Config, deps Deps, log *logger.Logger) (*Session, error) {
	if deps.Transport == nil || deps.Codec == nil || deps.Parser == nil {
		return nil, errors.New("session: transport, codec and parser are required")
	}
	if err := cfg.Commands.Validate(); err != nil {
		return nil, fmt.Errorf("session: %w", err)
	}
	if cfg.ProtocolVersion == 0 {
		cfg.ProtocolVersion = message.ProtocolVersion
	}
	if deps.Catalog == nil {
		deps.Catalog = fetch.DefaultCatalog()
	}
	tracer := deps.Tracer
	if tracer == nil {
		tracer = telemetry.Tracer("universe-client/session")
	}
	return &Session{
		cfg:    cfg,
		deps:   deps,
		names:  cfg.Commands.Names(),
		tracer: tracer,
		log:    log.Named("session"),
		seq:    envelope.NewSequencer(1),
	}, nil
}

// OnTransition installs fn. Call it before Run.
func (s *Session) OnTransition(fn TransitionFunc) { s.onTransition = fn }

// State returns the current state. Safe from any goroutine.
func (s *Session) State() State { return State(s.state.Load()) }

// Ready reports nil once the schema is loaded and the session has not failed.
func (s *Session) Ready() error {
	switch st := s.State(); {
	case st == Failed:
		return fmt.Errorf("session: failed: %w", s.Err())
	case st < SchemaLoaded:
		return fmt.Errorf("session: %s", st)
	}
	return nil
}

// Result returns the fetch outcome once the session is done.
func (s *Session) Result() fetch.Result {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.result
}

// Err returns the error that failed the session, if any.
func (s *Session) Err() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.err
}

// Run performs the handshake and dispatches inbound frames until the
// session is done, fails or ctx ends.
func (s *Session) Run(ctx context.Context) error {
	if st := s.State(); st != Disconnected {
		return fmt.Errorf("session: run in state %s", st)
	}
	log := s.log.WithContext(ctx)

	seq := s.seq.Next()
	body, err := message.EncodeHandshake(message.Handshake{
		Cmd:      s.cfg.Commands.Handshake,
		Token:    s.cfg.Token,
		Protocol: s.cfg.ProtocolVersion,
		Seq:      seq,
	})
	if err != nil {
		return s.fail(ctx, err)
	}
	if err := s.send(ctx, s.cfg.Commands.Handshake, seq, body); err != nil {
		return s.fail(ctx, err)
	}
	s.transition(ctx, Disconnected, Handshaking)

	for {
		if st := s.State(); st.Terminal() {
			if st == Failed {
				return s.Err()
			}
			log.Info("session done")
			return nil
		}
		frame, err := s.deps.Transport.Receive(ctx)
		if err != nil {
			if ctx.Err() != nil {
				return ctx.Err()
			}
			return s.fail(ctx, &TransportError{Op: "receive", Err: err})
		}
		env, err := envelope.Decode(frame)
		if err != nil {
			metrics.DecodeErrors.WithLabelValues("frame").Inc()
			return s.fail(ctx, err)
		}
		if err := s.Dispatch(ctx, env); err != nil {
			return err
		}
	}
}

func (s *Session) send(ctx context.Context, cmd, seq int32, body []byte) error {
	frame := envelope.Encode(envelope.Envelope{Cmd: cmd, Sequence: seq, Payload: body})
	if err := s.deps.Transport.Send(ctx, frame); err != nil {
		return &TransportError{Op: "send", Err: err}
	}
	metrics.FramesOut.WithLabelValues(s.names.Name(cmd)).Inc()
	return nil
}

func (s *Session) sendBody(ctx context.Context, cmd, seq int32, body any) error {
	b, err := message.Marshal(body)
	if err != nil {
		return err
	}
	return s.send(ctx, cmd, seq, b)
}

func (s *Session) transition(ctx context.Context, from, to State) {
	s.state.Store(int32(to))
	metrics.SessionState.Set(float64(to))
	metrics.Transitions.WithLabelValues(from.String(), to.String()).Inc()
	s.log.WithContext(ctx).Info("state", zap.Stringer("from", from), zap.Stringer("to", to))
	if s.onTransition != nil {
		s.onTransition(from, to)
	}
}

func (s *Session) enter(ctx context.Context, to State) {
	s.transition(ctx, s.State(), to)
}

func (s *Session) fail(ctx context.Context, err error) error {
	s.mu.Lock()
	if s.err == nil {
		s.err = err
	}
	s.mu.Unlock()
	if s.State() != Failed {
		s.enter(ctx, Failed)
	}
	s.log.WithContext(ctx).Error("session failed", zap.Error(err))
	return err
}
