package metrics

import (
	"sync"

	"github.com/prometheus/client_golang/prometheus"
)

var (
	once sync.Once

	// FramesIn counts inbound frames by command name.
	FramesIn = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: "universe",
		Subsystem: "session",
		Name:      "frames_in_total",
		Help:      "Inbound frames by command",
	}, []string{"command"})

	// FramesOut counts outbound frames by command name.
	FramesOut = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: "universe",
		Subsystem: "session",
		Name:      "frames_out_total",
		Help:      "Outbound frames by command",
	}, []string{"command"})

	UnexpectedCommands = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: "universe",
		Subsystem: "session",
		Name:      "unexpected_commands_total",
		Help:      "Commands received in a state that does not accept them",
	}, []string{"command", "state"})

	// SessionState holds the numeric session state.
	SessionState = prometheus.NewGauge(prometheus.GaugeOpts{
		Namespace: "universe",
		Subsystem: "session",
		Name:      "state",
		Help:      "Current session state (0=disconnected .. 7=done, 8=failed)",
	})

	Transitions = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: "universe",
		Subsystem: "session",
		Name:      "transitions_total",
		Help:      "Session state transitions",
	}, []string{"from", "to"})

	DecodeErrors = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: "universe",
		Subsystem: "session",
		Name:      "decode_errors_total",
		Help:      "Bodies or payloads that failed to decode, by stage",
	}, []string{"stage"})

	SeedsExpected = prometheus.NewGauge(prometheus.GaugeOpts{
		Namespace: "universe",
		Subsystem: "seeds",
		Name:      "expected",
		Help:      "Seed responses expected in the current cycle",
	})

	SeedsInFlight = prometheus.NewGauge(prometheus.GaugeOpts{
		Namespace: "universe",
		Subsystem: "seeds",
		Name:      "in_flight",
		Help:      "Seed requests sent and not yet answered",
	})

	SeedRequests = prometheus.NewCounter(prometheus.CounterOpts{
		Namespace: "universe",
		Subsystem: "seeds",
		Name:      "requests_total",
		Help:      "Seed requests sent",
	})

	SeedsReceived = prometheus.NewCounter(prometheus.CounterOpts{
		Namespace: "universe",
		Subsystem: "seeds",
		Name:      "received_total",
		Help:      "Seed responses received",
	})

	FieldParseErrors = prometheus.NewCounter(prometheus.CounterOpts{
		Namespace: "universe",
		Subsystem: "seeds",
		Name:      "field_parse_errors_total",
		Help:      "Markets skipped because their revision table did not parse",
	})

	FetchRequests = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: "universe",
		Subsystem: "fetch",
		Name:      "requests_total",
		Help:      "Fetch requests sent by mode",
	}, []string{"mode"})

	FetchRecords = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: "universe",
		Subsystem: "fetch",
		Name:      "records_total",
		Help:      "Records mapped from fetch results",
	}, []string{"qualified_name"})

	SinkErrors = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: "universe",
		Subsystem: "sink",
		Name:      "errors_total",
		Help:      "Record batches a sink failed to write",
	}, []string{"sink"})
)

// Register registers every collector in reg, or in the default registerer
// when reg is nil. Only the first call has an effect.
func Register(reg prometheus.Registerer) {
	once.Do(func() {
		if reg == nil {
			reg = prometheus.DefaultRegisterer
		}
		reg.MustRegister(
			FramesIn,
			FramesOut,
			UnexpectedCommands,
			SessionState,
			Transitions,
			DecodeErrors,
			SeedsExpected,
			SeedsInFlight,
			SeedRequests,
			SeedsReceived,
			FieldParseErrors,
			FetchRequests,
			FetchRecords,
			SinkErrors,
		)
	})
}
