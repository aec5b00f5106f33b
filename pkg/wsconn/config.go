package wsconn

import (
	"fmt"
	"strings"
	"time"

	"github.com/YaganovValera/universe-client/common/backoff"
)

// Config holds the websocket connection settings of the gateway.
type Config struct {
	URL          string         `mapstructure:"url"`
	DialTimeout  time.Duration  `mapstructure:"dial_timeout"`
	ReadTimeout  time.Duration  `mapstructure:"read_timeout"`
	WriteTimeout time.Duration  `mapstructure:"write_timeout"`
	PingInterval time.Duration  `mapstructure:"ping_interval"`
	BufferSize   int            `mapstructure:"buffer_size"`
	Compression  bool           `mapstructure:"compression"`
	Backoff      backoff.Config `mapstructure:"backoff"`
}

func (c *Config) applyDefaults() {
	if c.DialTimeout <= 0 {
		c.DialTimeout = 10 * time.Second
	}
	if c.ReadTimeout <= 0 {
		c.ReadTimeout = 60 * time.Second
	}
	if c.WriteTimeout <= 0 {
		c.WriteTimeout = 5 * time.Second
	}
	if c.PingInterval <= 0 {
		c.PingInterval = c.ReadTimeout / 3
	}
	if c.BufferSize <= 0 {
		c.BufferSize = 256
	}
}

func (c Config) validate() error {
	switch {
	case c.URL == "":
		return fmt.Errorf("wsconn: URL is required")
	case !strings.HasPrefix(c.URL, "ws://") && !strings.HasPrefix(c.URL, "wss://"):
		return fmt.Errorf("wsconn: URL %q must use ws:// or wss://", c.URL)
	case c.PingInterval >= c.ReadTimeout:
		return fmt.Errorf("wsconn: ping interval %s must be below read timeout %s", c.PingInterval, c.ReadTimeout)
	default:
		return nil
	}
}
