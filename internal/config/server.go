package config

import (
	"fmt"
	"net"
	"os"
	"strconv"
	"strings"
	"time"
)

const (
	EnvServerHost            = "ROSTER_SERVER_HOST"
	EnvServerPort            = "ROSTER_SERVER_PORT"
	EnvServerReadTimeout     = "ROSTER_SERVER_READ_TIMEOUT"
	EnvServerWriteTimeout    = "ROSTER_SERVER_WRITE_TIMEOUT"
	EnvServerShutdownTimeout = "ROSTER_SERVER_SHUTDOWN_TIMEOUT"
	EnvServerMetricsPath     = "ROSTER_SERVER_METRICS_PATH"
)

// ServerConfig holds the listener, its timeouts, and where Prometheus
// scrapes run metrics. Write timeout covers an upload of the largest
// accepted spreadsheet, so it defaults well above the read timeout.
type ServerConfig struct {
	Host            string `toml:"host"`
	Port            int    `toml:"port"`
	ReadTimeout     string `toml:"read_timeout"`
	WriteTimeout    string `toml:"write_timeout"`
	ShutdownTimeout string `toml:"shutdown_timeout"`
	MetricsPath     string `toml:"metrics_path"`

	read, write, drain time.Duration
}

// Addr returns the host:port listen address.
func (c *ServerConfig) Addr() string {
	return net.JoinHostPort(c.Host, strconv.Itoa(c.Port))
}

func (c *ServerConfig) ReadTimeoutDuration() time.Duration     { return c.read }
func (c *ServerConfig) WriteTimeoutDuration() time.Duration    { return c.write }
func (c *ServerConfig) ShutdownTimeoutDuration() time.Duration { return c.drain }

// MetricsPattern returns the mux pattern serving the metrics registry.
func (c *ServerConfig) MetricsPattern() string {
	return "GET " + c.MetricsPath
}

// Finalize applies defaults, environment variable overrides, and validation.
// Timeouts are parsed once here.
func (c *ServerConfig) Finalize() error {
	c.loadDefaults()
	c.loadEnv()
	return c.validate()
}

// Merge overwrites non-zero fields from overlay.
func (c *ServerConfig) Merge(overlay *ServerConfig) {
	if overlay.Host != "" {
		c.Host = overlay.Host
	}
	if overlay.Port != 0 {
		c.Port = overlay.Port
	}
	if overlay.MetricsPath != "" {
		c.MetricsPath = overlay.MetricsPath
	}
	dst := c.timeouts()
	for i, t := range overlay.timeouts() {
		if *t.value != "" {
			*dst[i].value = *t.value
		}
	}
}

type serverTimeout struct {
	name   string
	env    string
	def    string
	value  *string
	parsed *time.Duration
}

func (c *ServerConfig) timeouts() []serverTimeout {
	return []serverTimeout{
		{"read_timeout", EnvServerReadTimeout, "1m", &c.ReadTimeout, &c.read},
		{"write_timeout", EnvServerWriteTimeout, "15m", &c.WriteTimeout, &c.write},
		{"shutdown_timeout", EnvServerShutdownTimeout, "30s", &c.ShutdownTimeout, &c.drain},
	}
}

func (c *ServerConfig) loadDefaults() {
	if c.Host == "" {
		c.Host = "0.0.0.0"
	}
	if c.Port == 0 {
		c.Port = 8080
	}
	if c.MetricsPath == "" {
		c.MetricsPath = "/metrics"
	}
	for _, t := range c.timeouts() {
		if *t.value == "" {
			*t.value = t.def
		}
	}
}

func (c *ServerConfig) loadEnv() {
	if v := os.Getenv(EnvServerHost); v != "" {
		c.Host = v
	}
	if v := os.Getenv(EnvServerPort); v != "" {
		if port, err := strconv.Atoi(v); err == nil {
			c.Port = port
		}
	}
	if v := os.Getenv(EnvServerMetricsPath); v != "" {
		c.MetricsPath = v
	}
	for _, t := range c.timeouts() {
		if v := os.Getenv(t.env); v != "" {
			*t.value = v
		}
	}
}

func (c *ServerConfig) validate() error {
	if c.Port < 1 || c.Port > 65535 {
		return fmt.Errorf("invalid port: %d", c.Port)
	}
	if !strings.HasPrefix(c.MetricsPath, "/") || strings.ContainsAny(c.MetricsPath, " {}") {
		return fmt.Errorf("invalid metrics_path: %q", c.MetricsPath)
	}
	for _, t := range c.timeouts() {
		d, err := time.ParseDuration(*t.value)
		if err != nil {
			return fmt.Errorf("invalid %s: %w", t.name, err)
		}
		if d <= 0 {
			return fmt.Errorf("%s must be positive: %s", t.name, *t.value)
		}
		*t.parsed = d
	}
	return nil
}
