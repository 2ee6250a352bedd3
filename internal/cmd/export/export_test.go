package export

import (
	"context"
	"flag"
	"testing"
)

func TestParseConfigDefaults(t *testing.T) {
	fs := flag.NewFlagSet("export", flag.ContinueOnError)
	cfg, err := ParseConfig(fs, nil)
	if err != nil {
		t.Fatalf("parse config: %v", err)
	}
	if cfg.StorePath != "nightfall.db" {
		t.Errorf("expected default store path, got %q", cfg.StorePath)
	}
	if cfg.PublicOnly {
		t.Error("expected public-only off by default")
	}
}

func TestParseConfigFlags(t *testing.T) {
	fs := flag.NewFlagSet("export", flag.ContinueOnError)
	cfg, err := ParseConfig(fs, []string{"-session", "s1", "-out", "/tmp/s1.jsonl", "-public-only"})
	if err != nil {
		t.Fatalf("parse config: %v", err)
	}
	if cfg.SessionID != "s1" || cfg.OutPath != "/tmp/s1.jsonl" || !cfg.PublicOnly {
		t.Errorf("unexpected config: %+v", cfg)
	}
}

func TestRunRequiresSession(t *testing.T) {
	if err := run(context.Background(), Config{StorePath: t.TempDir() + "/x.db"}); err == nil {
		t.Error("expected error without session id")
	}
}
