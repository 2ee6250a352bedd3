// Package arena wires configuration and dependencies for the arena service:
// one process that creates a session, drives it to a terminal state, and
// optionally exports the journal.
package arena

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"log"
	"os"
	"strings"
	"time"

	"github.com/louisbranch/nightfall/internal/arena/controller"
	"github.com/louisbranch/nightfall/internal/arena/export"
	"github.com/louisbranch/nightfall/internal/arena/hub"
	"github.com/louisbranch/nightfall/internal/arena/oracle"
	"github.com/louisbranch/nightfall/internal/arena/resolver"
	"github.com/louisbranch/nightfall/internal/arena/snapshot"
	"github.com/louisbranch/nightfall/internal/arena/storage"
	"github.com/louisbranch/nightfall/internal/arena/storage/memory"
	"github.com/louisbranch/nightfall/internal/arena/storage/sqlite"
	platformcmd "github.com/louisbranch/nightfall/internal/platform/cmd"
	apperrors "github.com/louisbranch/nightfall/internal/platform/errors"
)

// Config holds arena service configuration. Environment variables provide
// defaults; flags override.
type Config struct {
	Store     string `env:"NIGHTFALL_STORE" envDefault:"sqlite"`
	StorePath string `env:"NIGHTFALL_STORE_PATH" envDefault:"nightfall.db"`

	Players     string `env:"NIGHTFALL_PLAYERS"`
	PlayerCount int    `env:"NIGHTFALL_PLAYER_COUNT" envDefault:"7"`
	Seed        uint64 `env:"NIGHTFALL_SEED"`
	MaxRounds   int    `env:"NIGHTFALL_MAX_ROUNDS" envDefault:"30"`

	ConsensusRounds     int  `env:"NIGHTFALL_CONSENSUS_ROUNDS" envDefault:"3"`
	ForbidRepeatProtect bool `env:"NIGHTFALL_FORBID_REPEAT_PROTECT"`
	SnapshotRounds      int  `env:"NIGHTFALL_SNAPSHOT_ROUNDS"`

	RingCapacity      int           `env:"NIGHTFALL_RING_CAPACITY" envDefault:"1000"`
	HeartbeatInterval time.Duration `env:"NIGHTFALL_HEARTBEAT_INTERVAL" envDefault:"15s"`

	OracleModel    string        `env:"NIGHTFALL_ORACLE_MODEL" envDefault:"gpt-4o-mini"`
	OracleBaseURL  string        `env:"NIGHTFALL_ORACLE_BASE_URL"`
	OracleAPIKey   string        `env:"NIGHTFALL_ORACLE_API_KEY"`
	OracleTimeout  time.Duration `env:"NIGHTFALL_ORACLE_TIMEOUT" envDefault:"30s"`
	OracleMaxTries uint          `env:"NIGHTFALL_ORACLE_MAX_TRIES" envDefault:"3"`
	OracleRate     float64       `env:"NIGHTFALL_ORACLE_RATE" envDefault:"2"`
	OracleBurst    int           `env:"NIGHTFALL_ORACLE_BURST" envDefault:"4"`

	ExportPath       string `env:"NIGHTFALL_EXPORT_PATH"`
	ExportPublicOnly bool   `env:"NIGHTFALL_EXPORT_PUBLIC_ONLY"`
}

// ParseConfig parses environment and flags into a Config.
func ParseConfig(fs *flag.FlagSet, args []string) (Config, error) {
	var cfg Config
	if err := platformcmd.ParseConfig(&cfg); err != nil {
		return Config{}, err
	}
	fs.StringVar(&cfg.Store, "store", cfg.Store, "store kind: sqlite or memory")
	fs.StringVar(&cfg.StorePath, "store-path", cfg.StorePath, "sqlite database path")
	fs.StringVar(&cfg.Players, "players", cfg.Players, "comma-separated persona names")
	fs.IntVar(&cfg.PlayerCount, "player-count", cfg.PlayerCount, "roster size when no names are given")
	fs.Uint64Var(&cfg.Seed, "seed", cfg.Seed, "role shuffle seed, 0 for time-based")
	fs.IntVar(&cfg.MaxRounds, "max-rounds", cfg.MaxRounds, "cancel sessions that outlive this many rounds")
	fs.StringVar(&cfg.ExportPath, "export", cfg.ExportPath, "write the journal to this file after the game")
	if err := platformcmd.ParseArgs(fs, args); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

// defaultPersonas seeds roster names when none are configured.
var defaultPersonas = []string{
	"Ada", "Brice", "Cleo", "Dmitri", "Eve", "Femi",
	"Greta", "Hakan", "Ines", "Jun", "Kofi", "Lena",
}

// rosterNames resolves the roster from config: explicit names win, otherwise
// PlayerCount names are drawn from the persona pool.
func rosterNames(cfg Config) ([]string, error) {
	if trimmed := strings.TrimSpace(cfg.Players); trimmed != "" {
		parts := strings.Split(trimmed, ",")
		names := make([]string, 0, len(parts))
		for _, part := range parts {
			if name := strings.TrimSpace(part); name != "" {
				names = append(names, name)
			}
		}
		return names, nil
	}
	if cfg.PlayerCount > len(defaultPersonas) {
		return nil, fmt.Errorf("player count %d exceeds persona pool of %d; set NIGHTFALL_PLAYERS", cfg.PlayerCount, len(defaultPersonas))
	}
	return defaultPersonas[:cfg.PlayerCount], nil
}

func openStore(cfg Config) (storage.Store, func(), error) {
	switch cfg.Store {
	case "memory":
		return memory.New(), func() {}, nil
	case "sqlite":
		s, err := sqlite.Open(cfg.StorePath)
		if err != nil {
			return nil, nil, err
		}
		return s, func() { s.Close() }, nil
	default:
		return nil, nil, fmt.Errorf("unknown store kind %q", cfg.Store)
	}
}

func buildOracle(cfg Config) oracle.Oracle {
	var inner oracle.Oracle
	if cfg.OracleAPIKey != "" {
		inner = oracle.NewOpenAI(cfg.OracleAPIKey, cfg.OracleBaseURL, cfg.OracleModel)
	} else {
		log.Print("no oracle api key configured; every decision degrades to the deterministic fallback")
		inner = oracle.Func(func(context.Context, oracle.Request) (oracle.Decision, error) {
			return oracle.Decision{}, apperrors.New(apperrors.CodeOracleUnavailable, "no oracle configured")
		})
	}
	return oracle.NewClient(inner,
		oracle.WithTimeout(cfg.OracleTimeout),
		oracle.WithMaxTries(cfg.OracleMaxTries),
		oracle.WithRateLimit(cfg.OracleRate, cfg.OracleBurst),
	)
}

// Run executes one full session under the configured telemetry.
func Run(ctx context.Context, cfg Config) error {
	return platformcmd.RunWithTelemetry(ctx, platformcmd.ServiceArena, func(ctx context.Context) error {
		return run(ctx, cfg)
	})
}

func run(ctx context.Context, cfg Config) error {
	names, err := rosterNames(cfg)
	if err != nil {
		return err
	}

	store, closeStore, err := openStore(cfg)
	if err != nil {
		return err
	}
	defer closeStore()

	h := hub.New(
		hub.WithRingCapacity(cfg.RingCapacity),
		hub.WithHeartbeatInterval(cfg.HeartbeatInterval),
	)
	defer h.Stop()

	snapshotOpts := []snapshot.Option{}
	if cfg.SnapshotRounds > 0 {
		snapshotOpts = append(snapshotOpts, snapshot.WithRoundInterval(cfg.SnapshotRounds))
	}
	snapshots, err := snapshot.NewManager(store, snapshotOpts...)
	if err != nil {
		return err
	}

	r := resolver.New(buildOracle(cfg),
		resolver.WithConsensusRounds(cfg.ConsensusRounds),
		resolver.WithForbidRepeatProtect(cfg.ForbidRepeatProtect),
	)
	ctrl, err := controller.New(store, r,
		controller.WithPublisher(h),
		controller.WithSnapshotManager(snapshots),
	)
	if err != nil {
		return err
	}

	seed := cfg.Seed
	if seed == 0 {
		seed = uint64(time.Now().UnixNano())
	}
	sessionID, err := ctrl.Create(ctx, controller.CreateParams{PlayerNames: names, Seed: seed})
	if err != nil {
		return err
	}
	log.Printf("session %s created with %d players (seed %d)", sessionID, len(names), seed)
	if err := ctrl.Start(ctx, sessionID); err != nil {
		return err
	}

	if err := drive(ctx, ctrl, h, sessionID, cfg.MaxRounds); err != nil {
		return err
	}

	if cfg.ExportPath != "" {
		if err := exportJournal(ctx, store, sessionID, cfg); err != nil {
			return err
		}
	}
	return nil
}

// drive steps the session to a terminal state, cancelling runaway games.
func drive(ctx context.Context, ctrl *controller.Controller, h *hub.Hub, sessionID string, maxRounds int) error {
	lastPhase := ""
	for {
		if err := ctx.Err(); err != nil {
			return err
		}
		status, err := ctrl.Status(ctx, sessionID)
		if err != nil {
			return err
		}
		if status.Status.Terminal() {
			log.Printf("session %s finished: status=%s winner=%s day=%d round=%d",
				sessionID, status.Status, status.Winner, status.Day, status.Round)
			return nil
		}
		if phase := string(status.Phase); phase != lastPhase {
			log.Printf("session %s: phase=%s day=%d round=%d alive=%d",
				sessionID, phase, status.Day, status.Round, status.AliveCount)
			lastPhase = phase
		}
		if maxRounds > 0 && status.Round > maxRounds {
			log.Printf("session %s exceeded %d rounds, cancelling", sessionID, maxRounds)
			if err := ctrl.Cancel(ctx, sessionID); err != nil {
				return err
			}
			continue
		}
		if err := ctrl.Step(ctx, sessionID); err != nil {
			if fatal(err) {
				h.Fail(sessionID, err)
			}
			return err
		}
	}
}

func fatal(err error) bool {
	for _, code := range []apperrors.Code{
		apperrors.CodeEventSequenceGap,
		apperrors.CodeEventDuplicateSeq,
		apperrors.CodeEventChainBroken,
	} {
		if errors.Is(err, apperrors.New(code, "")) {
			return true
		}
	}
	return false
}

func exportJournal(ctx context.Context, store storage.Store, sessionID string, cfg Config) error {
	f, err := os.Create(cfg.ExportPath)
	if err != nil {
		return fmt.Errorf("create export file: %w", err)
	}
	defer f.Close()

	written, err := export.WriteLog(ctx, f, store, sessionID, export.Options{PublicOnly: cfg.ExportPublicOnly})
	if err != nil {
		return err
	}
	log.Printf("exported %d events to %s", written, cfg.ExportPath)
	return f.Close()
}
