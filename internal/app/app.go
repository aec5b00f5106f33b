package app

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/YaganovValera/universe-client/common"
	"github.com/YaganovValera/universe-client/common/httpserver"
	producer "github.com/YaganovValera/universe-client/common/kafka/producer"
	"github.com/YaganovValera/universe-client/common/logger"
	"github.com/YaganovValera/universe-client/common/middleware"
	"github.com/YaganovValera/universe-client/common/shutdown"
	"github.com/YaganovValera/universe-client/common/telemetry"
	"github.com/YaganovValera/universe-client/internal/config"
	"github.com/YaganovValera/universe-client/internal/metrics"
	"github.com/YaganovValera/universe-client/internal/schema"
	"github.com/YaganovValera/universe-client/internal/session"
	"github.com/YaganovValera/universe-client/internal/sink"
	"github.com/YaganovValera/universe-client/internal/structvalue"
	"github.com/YaganovValera/universe-client/pkg/wsconn"
)

const shutdownTimeout = 5 * time.Second

// Run connects to the gateway and drives one session to completion.
// It returns nil when the session is done or ctx is cancelled.
func Run(ctx context.Context, cfg *config.Config, log *logger.Logger) error {
	common.InitServiceName(cfg.ServiceName)
	metrics.Register(nil)

	ctx = logger.ContextWithSession(ctx, uuid.NewString())
	log = log.WithContext(ctx)

	if cfg.Telemetry.Enabled {
		shutdownTracer, err := telemetry.InitTracer(ctx, cfg.Tracer(), log)
		if err != nil {
			return fmt.Errorf("init tracer: %w", err)
		}
		defer shutdown.GracefulShutdown("telemetry", shutdownTimeout, shutdownTracer, log)
	}

	sinks, closeSinks, err := buildSinks(ctx, cfg, log)
	if err != nil {
		return err
	}
	defer closeSinks()

	queries, err := cfg.Queries()
	if err != nil {
		return err
	}
	codec, err := structvalue.NewCBORCodec()
	if err != nil {
		return fmt.Errorf("codec init: %w", err)
	}
	parser, err := schema.NewCBORParser()
	if err != nil {
		return fmt.Errorf("schema parser init: %w", err)
	}

	conn, err := wsconn.Dial(ctx, cfg.Gateway.Config, log)
	if err != nil {
		return fmt.Errorf("gateway connect: %w", err)
	}
	defer shutdown.GracefulShutdown("gateway-conn", shutdownTimeout, shutdown.Closer(conn.Close), log)

	sess, err := session.New(session.Config{
		Token:           cfg.Gateway.Token,
		ProtocolVersion: cfg.Protocol.ProtocolVersion,
		MarketMetaID:    cfg.Protocol.MarketMetaID,
		Commands:        cfg.Protocol.Commands,
		Queries:         queries,
		DisplayLimit:    cfg.Fetch.DisplayLimit,
	}, session.Deps{
		Transport: conn,
		Codec:     codec,
		Parser:    parser,
		Sink:      sinks,
	}, log)
	if err != nil {
		return fmt.Errorf("session init: %w", err)
	}

	runCtx, cancel := context.WithCancel(ctx)
	defer cancel()
	g, runCtx := errgroup.WithContext(runCtx)

	if cfg.HTTP.Enabled {
		srv, err := httpserver.New(cfg.HTTPServer(), sess.Ready, log,
			httpserver.RecoverMiddleware(log),
			middleware.RequestID(),
			middleware.Metrics(),
			httpserver.CORSMiddleware(),
		)
		if err != nil {
			return fmt.Errorf("httpserver init: %w", err)
		}
		g.Go(func() error { return srv.Start(runCtx) })
	}

	g.Go(func() error {
		// The session is one-shot; its end stops the HTTP server too.
		defer cancel()
		return sess.Run(runCtx)
	})

	err = g.Wait()
	res := sess.Result()
	log.Info("session finished",
		zap.Stringer("state", sess.State()),
		zap.Int("sent", res.Sent),
		zap.Int("received", res.Received),
		zap.Int("skipped", res.Skipped),
		zap.Int("records", len(res.Records)),
	)
	if err != nil && errors.Is(err, context.Canceled) && sess.Err() == nil {
		log.Info("client stopped by context")
		return nil
	}
	return err
}

func buildSinks(ctx context.Context, cfg *config.Config, log *logger.Logger) (sink.Multi, func(), error) {
	var sinks sink.Multi
	if cfg.Fetch.LogRecords {
		sinks = append(sinks, sink.NewLogSink(log))
	}
	if !cfg.Kafka.Enabled {
		return sinks, func() {}, nil
	}
	prod, err := producer.New(ctx, cfg.Producer(), log)
	if err != nil {
		return nil, nil, fmt.Errorf("kafka producer init: %w", err)
	}
	sinks = append(sinks, sink.NewKafkaSink(prod, cfg.Kafka.Topic, log))
	return sinks, func() {
		shutdown.GracefulShutdown("kafka-producer", shutdownTimeout, shutdown.Closer(prod.Close), log)
	}, nil
}
