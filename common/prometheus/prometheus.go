package prometheus

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	// DefaultRegistry is the process-wide registerer.
	DefaultRegistry = prometheus.DefaultRegisterer

	// DefaultGatherer backs Handler.
	DefaultGatherer = prometheus.DefaultGatherer
)

// Handler serves the default gatherer; mounted by common/httpserver.
func Handler() http.Handler {
	return promhttp.HandlerFor(DefaultGatherer, promhttp.HandlerOpts{})
}

// Register registers c in the default registry.
func Register(c prometheus.Collector) {
	DefaultRegistry.MustRegister(c)
}

// MustRegisterMany registers several collectors at once.
func MustRegisterMany(cs ...prometheus.Collector) {
	for _, c := range cs {
		DefaultRegistry.MustRegister(c)
	}
}
