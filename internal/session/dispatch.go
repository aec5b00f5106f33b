package session

import (
	"context"
	"errors"
	"fmt"
	"sort"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.uber.org/zap"

	"github.com/YaganovValera/universe-client/internal/fetch"
	"github.com/YaganovValera/universe-client/internal/metrics"
	"github.com/YaganovValera/universe-client/internal/protocol/envelope"
	"github.com/YaganovValera/universe-client/internal/protocol/message"
	"github.com/YaganovValera/universe-client/internal/schema"
	"github.com/YaganovValera/universe-client/internal/structvalue"
	"github.com/YaganovValera/universe-client/internal/universe"
)

// Dispatch applies one inbound envelope to the state machine. A non-nil
// error is fatal and leaves the session Failed; everything else is
// logged and absorbed.
func (s *Session) Dispatch(ctx context.Context, env envelope.Envelope) error {
	c := s.cfg.Commands
	name := s.names.Name(env.Cmd)
	state := s.State()

	ctx, span := s.tracer.Start(ctx, "session.dispatch")
	defer span.End()
	span.SetAttributes(
		attribute.String("command", name),
		attribute.Int("seq", int(env.Sequence)),
		attribute.String("state", state.String()),
	)
	metrics.FramesIn.WithLabelValues(name).Inc()

	var err error
	switch env.Cmd {
	case c.RouteKeepalive, c.MarketStatus:
		s.log.Debug("ignored", zap.String("command", name))
	case c.SchemaDefinition:
		if state != Handshaking {
			return s.unexpected(ctx, env.Cmd, name, state)
		}
		err = s.onSchema(ctx, env.Payload)
	case c.UniverseRevisionRes:
		if state != RevisionRequested {
			return s.unexpected(ctx, env.Cmd, name, state)
		}
		err = s.onRevision(ctx, env.Payload)
	case c.UniverseSeedsRes:
		if state < SeedsInFlight || state == Failed {
			return s.unexpected(ctx, env.Cmd, name, state)
		}
		err = s.onSeeds(ctx, env)
	case c.FetchByCodeRes, c.FetchByTimeRes:
		if state != FetchInFlight {
			return s.unexpected(ctx, env.Cmd, name, state)
		}
		err = s.onFetch(ctx, env)
	default:
		return s.unexpected(ctx, env.Cmd, name, state)
	}

	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return s.fail(ctx, err)
	}
	return nil
}

func (s *Session) unexpected(ctx context.Context, cmd int32, name string, state State) error {
	err := &UnexpectedCommandError{Cmd: cmd, Name: name, State: state}
	metrics.UnexpectedCommands.WithLabelValues(name, state.String()).Inc()
	s.log.WithContext(ctx).Warn("unexpected command", zap.Error(err))
	return nil
}

func (s *Session) onSchema(ctx context.Context, payload []byte) error {
	reg, err := schema.Load(payload, s.deps.Parser)
	if err != nil {
		return fmt.Errorf("session: load schema: %w", err)
	}
	if err := s.deps.Codec.Bind(reg); err != nil {
		return fmt.Errorf("session: bind codec: %w", err)
	}
	s.reg = reg
	s.log.WithContext(ctx).Info("schema loaded",
		zap.Int("definitions", reg.Len()),
		zap.Int("namespaces", len(reg.Namespaces())),
	)
	s.enter(ctx, SchemaLoaded)

	marketID := s.cfg.MarketMetaID
	if m, ok := reg.LookupByQualifiedName(schema.NamespaceGlobal, "Market"); ok {
		marketID = m.ID
	}
	s.seeds = universe.New(
		universe.Config{Token: s.cfg.Token, MarketMetaID: marketID},
		s.seq,
		func(ctx context.Context, req message.SeedsRequest) error {
			return s.sendBody(ctx, s.cfg.Commands.UniverseSeedsReq, req.Seq, req)
		},
		s.onSeedsComplete,
		s.log,
	)

	seq := s.seq.Next()
	req := message.RevisionRequest{
		BaseRequest:     message.BaseRequest{Token: s.cfg.Token, Seq: seq},
		ProtocolVersion: s.cfg.ProtocolVersion,
	}
	if err := s.sendBody(ctx, s.cfg.Commands.UniverseRevisionReq, seq, req); err != nil {
		return err
	}
	s.enter(ctx, RevisionRequested)
	return nil
}

func (s *Session) onRevision(ctx context.Context, payload []byte) error {
	var resp message.RevisionResponse
	if err := message.Unmarshal(payload, &resp); err != nil {
		metrics.DecodeErrors.WithLabelValues("revision").Inc()
		return fmt.Errorf("session: revision response: %w", err)
	}
	if err := resp.Err(); err != nil {
		s.log.WithContext(ctx).Warn("revision response error", zap.Error(err))
	}
	s.enter(ctx, SeedsInFlight)

	namespaces := make([]string, 0, len(resp.Revisions))
	for ns := range resp.Revisions {
		namespaces = append(namespaces, ns)
	}
	sort.Strings(namespaces)

	values := make(map[string][]*structvalue.Value, len(resp.Revisions))
	for _, ns := range namespaces {
		vs, err := s.deps.Codec.Decode(resp.Revisions[ns])
		if err != nil {
			if errors.Is(err, structvalue.ErrUnboundCodec) {
				for _, done := range values {
					structvalue.ReleaseAll(done)
				}
				return err
			}
			metrics.DecodeErrors.WithLabelValues("revision").Inc()
			s.log.WithContext(ctx).Warn("skip namespace", zap.String("namespace", ns), zap.Error(err))
			continue
		}
		values[ns] = vs
	}

	_, err := s.seeds.HandleRevision(ctx, values)
	return err
}

func (s *Session) onSeedsComplete(ctx context.Context, st universe.SeedState) error {
	s.enter(ctx, SeedsComplete)
	if len(s.cfg.Queries) == 0 {
		s.finish(ctx, fetch.Result{})
		return nil
	}

	s.fetch = fetch.New(
		fetch.Config{Token: s.cfg.Token, DisplayLimit: s.cfg.DisplayLimit},
		fetch.Deps{
			Registry:  s.reg,
			Codec:     s.deps.Codec,
			Catalog:   s.deps.Catalog,
			Sequencer: s.seq,
			Send: func(ctx context.Context, mode fetch.Mode, req message.FetchRequest) error {
				cmd := s.cfg.Commands.FetchByCodeReq
				if mode == fetch.ByTime {
					cmd = s.cfg.Commands.FetchByTimeReq
				}
				return s.sendBody(ctx, cmd, req.Seq, req)
			},
			Sink: s.deps.Sink,
			OnComplete: func(ctx context.Context, res fetch.Result) error {
				s.finish(ctx, res)
				return nil
			},
		},
		s.log,
	)
	s.enter(ctx, FetchInFlight)
	_, err := s.fetch.Start(ctx, s.cfg.Queries)
	return err
}

func (s *Session) finish(ctx context.Context, res fetch.Result) {
	s.mu.Lock()
	s.result = res
	s.mu.Unlock()
	s.enter(ctx, Done)
}

// responseValues decodes the struct-value payload of a seeds or fetch
// response. Body and payload failures other than an unbound codec yield
// no values so that the response still counts.
func (s *Session) responseValues(ctx context.Context, stage string, env envelope.Envelope, body any, base *message.BaseResponse, data func() []byte) ([]*structvalue.Value, error) {
	if err := message.Unmarshal(env.Payload, body); err != nil {
		metrics.DecodeErrors.WithLabelValues(stage).Inc()
		s.log.WithContext(ctx).Warn("response body", zap.String("stage", stage), zap.Error(err))
		base.Seq = env.Sequence
		return nil, nil
	}
	if base.Seq == 0 {
		base.Seq = env.Sequence
	}
	values, err := s.deps.Codec.Decode(data())
	if err != nil {
		if errors.Is(err, structvalue.ErrUnboundCodec) {
			return nil, err
		}
		metrics.DecodeErrors.WithLabelValues(stage).Inc()
		s.log.WithContext(ctx).Warn("response payload", zap.String("stage", stage), zap.Error(err))
		return nil, nil
	}
	return values, nil
}

func (s *Session) onSeeds(ctx context.Context, env envelope.Envelope) error {
	var resp message.SeedsResponse
	values, err := s.responseValues(ctx, "seeds", env, &resp, &resp.BaseResponse, func() []byte { return resp.Data })
	if err != nil {
		return err
	}
	return s.seeds.HandleSeeds(ctx, resp.BaseResponse, values)
}

func (s *Session) onFetch(ctx context.Context, env envelope.Envelope) error {
	var resp message.FetchResponse
	values, err := s.responseValues(ctx, "fetch", env, &resp, &resp.BaseResponse, func() []byte { return resp.Results })
	if err != nil {
		return err
	}
	return s.fetch.HandleResult(ctx, resp.BaseResponse, values)
}
