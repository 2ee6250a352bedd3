// Package export wires configuration for the export command: a one-shot tool
// that reads a finished session's journal from storage and writes it out as
// line-delimited JSON.
package export

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"log"
	"os"

	arenaexport "github.com/louisbranch/nightfall/internal/arena/export"
	"github.com/louisbranch/nightfall/internal/arena/storage/sqlite"
	platformcmd "github.com/louisbranch/nightfall/internal/platform/cmd"
)

// Config holds export command configuration. Environment variables provide
// defaults; flags override.
type Config struct {
	StorePath  string `env:"NIGHTFALL_STORE_PATH" envDefault:"nightfall.db"`
	SessionID  string `env:"NIGHTFALL_SESSION_ID"`
	OutPath    string `env:"NIGHTFALL_EXPORT_PATH"`
	PublicOnly bool   `env:"NIGHTFALL_EXPORT_PUBLIC_ONLY"`
}

// ParseConfig parses environment and flags into a Config.
func ParseConfig(fs *flag.FlagSet, args []string) (Config, error) {
	var cfg Config
	if err := platformcmd.ParseConfig(&cfg); err != nil {
		return Config{}, err
	}
	fs.StringVar(&cfg.StorePath, "store-path", cfg.StorePath, "sqlite database path")
	fs.StringVar(&cfg.SessionID, "session", cfg.SessionID, "session to export")
	fs.StringVar(&cfg.OutPath, "out", cfg.OutPath, "output file, defaults to stdout")
	fs.BoolVar(&cfg.PublicOnly, "public-only", cfg.PublicOnly, "export only PUBLIC events")
	if err := platformcmd.ParseArgs(fs, args); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

// Run exports one session's journal under the configured telemetry.
func Run(ctx context.Context, cfg Config) error {
	return platformcmd.RunWithTelemetry(ctx, platformcmd.ServiceExport, func(ctx context.Context) error {
		return run(ctx, cfg)
	})
}

func run(ctx context.Context, cfg Config) error {
	if cfg.SessionID == "" {
		return errors.New("session id is required")
	}

	store, err := sqlite.Open(cfg.StorePath)
	if err != nil {
		return err
	}
	defer store.Close()

	var w io.Writer = os.Stdout
	if cfg.OutPath != "" {
		f, err := os.Create(cfg.OutPath)
		if err != nil {
			return fmt.Errorf("create output file: %w", err)
		}
		defer f.Close()
		w = f
	}

	written, err := arenaexport.WriteLog(ctx, w, store, cfg.SessionID, arenaexport.Options{PublicOnly: cfg.PublicOnly})
	if err != nil {
		return err
	}
	if written == 0 {
		return fmt.Errorf("session %q has no events in %s", cfg.SessionID, cfg.StorePath)
	}
	log.Printf("exported %d events from session %s", written, cfg.SessionID)
	return nil
}
