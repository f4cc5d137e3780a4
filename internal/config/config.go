// Package config parses the relay's command line.
package config

import (
	"flag"
	"fmt"
	"io"
)

type Config struct {
	Addr        string
	MetricsAddr string
	CertFile    string
	KeyFile     string
	LogFormat   string
	Debug       bool
	Outbox      int
	Rate        float64
	Burst       int
}

const (
	FormatJSON    = "json"
	FormatConsole = "console"
)

var (
	ErrMissingCert   = errorString("cert and key paths are required")
	ErrBadLogFormat  = errorString("log format must be json or console")
	ErrBadOutbox     = errorString("outbox must be positive")
	ErrBadRateLimits = errorString("rate and burst must not be negative")
)

type errorString string

func (e errorString) Error() string { return string(e) }

// Load parses args (without the program name). Flag output goes to out.
func Load(args []string, out io.Writer) (Config, error) {
	var cfg Config
	fs := flag.NewFlagSet("chat-relay", flag.ContinueOnError)
	if out != nil {
		fs.SetOutput(out)
	}
	fs.StringVar(&cfg.Addr, "addr", "127.0.0.1:12346", "chat listen address")
	fs.StringVar(&cfg.MetricsAddr, "metrics-addr", ":9090", "metrics listen address, empty disables it")
	fs.StringVar(&cfg.CertFile, "cert", "cert.pem", "TLS certificate file (PEM)")
	fs.StringVar(&cfg.KeyFile, "key", "key.pem", "TLS private key file (PEM)")
	fs.StringVar(&cfg.LogFormat, "log-format", FormatJSON, "log output: json or console")
	fs.BoolVar(&cfg.Debug, "debug", false, "enable debug logging")
	fs.IntVar(&cfg.Outbox, "outbox", 64, "outbound buffer per session, in messages")
	fs.Float64Var(&cfg.Rate, "rate", 0, "inbound chat lines per second per session, 0 for unlimited")
	fs.IntVar(&cfg.Burst, "burst", 5, "inbound burst allowance when -rate is set")

	if err := fs.Parse(args); err != nil {
		return cfg, err
	}
	if err := cfg.Validate(); err != nil {
		return cfg, fmt.Errorf("invalid config: %w", err)
	}
	return cfg, nil
}

func (c Config) Validate() error {
	switch {
	case c.CertFile == "" || c.KeyFile == "":
		return ErrMissingCert
	case c.LogFormat != FormatJSON && c.LogFormat != FormatConsole:
		return ErrBadLogFormat
	case c.Outbox <= 0:
		return ErrBadOutbox
	case c.Rate < 0 || c.Burst < 0:
		return ErrBadRateLimits
	}
	return nil
}
