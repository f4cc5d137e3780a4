package config

import (
	"errors"
	"io"
	"testing"
)

func TestLoad_Defaults(t *testing.T) {
	cfg, err := Load(nil, io.Discard)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.Addr != "127.0.0.1:12346" {
		t.Errorf("addr = %q", cfg.Addr)
	}
	if cfg.CertFile != "cert.pem" || cfg.KeyFile != "key.pem" {
		t.Errorf("cert/key = %q/%q", cfg.CertFile, cfg.KeyFile)
	}
	if cfg.LogFormat != FormatJSON || cfg.Debug {
		t.Errorf("log format = %q debug = %v", cfg.LogFormat, cfg.Debug)
	}
	if cfg.Outbox != 64 || cfg.Rate != 0 || cfg.Burst != 5 {
		t.Errorf("outbox/rate/burst = %d/%v/%d", cfg.Outbox, cfg.Rate, cfg.Burst)
	}
}

func TestLoad_Overrides(t *testing.T) {
	cfg, err := Load([]string{
		"-addr", ":7000", "-metrics-addr", "", "-log-format", "console",
		"-debug", "-rate", "2.5", "-burst", "3", "-outbox", "8",
	}, io.Discard)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.Addr != ":7000" || cfg.MetricsAddr != "" || cfg.LogFormat != FormatConsole || !cfg.Debug {
		t.Fatalf("unexpected config: %+v", cfg)
	}
	if cfg.Rate != 2.5 || cfg.Burst != 3 || cfg.Outbox != 8 {
		t.Fatalf("unexpected limits: %+v", cfg)
	}
}

func TestLoad_Rejects(t *testing.T) {
	tests := []struct {
		args []string
		want error
	}{
		{[]string{"-cert", ""}, ErrMissingCert},
		{[]string{"-log-format", "xml"}, ErrBadLogFormat},
		{[]string{"-outbox", "0"}, ErrBadOutbox},
		{[]string{"-rate", "-1"}, ErrBadRateLimits},
	}
	for _, tt := range tests {
		_, err := Load(tt.args, io.Discard)
		if !errors.Is(err, tt.want) {
			t.Errorf("Load(%v) error = %v, want %v", tt.args, err, tt.want)
		}
	}

	if _, err := Load([]string{"-nope"}, io.Discard); err == nil {
		t.Error("expected error for unknown flag")
	}
}
