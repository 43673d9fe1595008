package main

import (
	"context"
	"fmt"
	"log/slog"
	"net"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/KirkDiggler/rpg-toolkit/events"
	"github.com/spf13/cobra"
	"google.golang.org/grpc"
	"google.golang.org/grpc/health"
	"google.golang.org/grpc/health/grpc_health_v1"
	"google.golang.org/grpc/reflection"

	grpc_logging "github.com/grpc-ecosystem/go-grpc-middleware/v2/interceptors/logging"
	grpc_recovery "github.com/grpc-ecosystem/go-grpc-middleware/v2/interceptors/recovery"

	"github.com/nonamep-p/rpg-core/internal/catalog"
	enginecore "github.com/nonamep-p/rpg-core/internal/engine/core"
	"github.com/nonamep-p/rpg-core/internal/orchestrators/achievement"
	"github.com/nonamep-p/rpg-core/internal/orchestrators/character"
	"github.com/nonamep-p/rpg-core/internal/orchestrators/combat"
	"github.com/nonamep-p/rpg-core/internal/orchestrators/crafting"
	"github.com/nonamep-p/rpg-core/internal/orchestrators/dungeon"
	"github.com/nonamep-p/rpg-core/internal/orchestrators/economy"
	"github.com/nonamep-p/rpg-core/internal/orchestrators/faction"
	"github.com/nonamep-p/rpg-core/internal/orchestrators/party"
	"github.com/nonamep-p/rpg-core/internal/pkg/clock"
	"github.com/nonamep-p/rpg-core/internal/pkg/idgen"
	"github.com/nonamep-p/rpg-core/internal/redis"
	"github.com/nonamep-p/rpg-core/internal/repositories/characters"
	"github.com/nonamep-p/rpg-core/internal/repositories/craftjobs"
	"github.com/nonamep-p/rpg-core/internal/repositories/factions"
	"github.com/nonamep-p/rpg-core/internal/repositories/leaderboard"
	"github.com/nonamep-p/rpg-core/internal/repositories/market"
	"github.com/nonamep-p/rpg-core/internal/repositories/parties"
)

const (
	// sweepInterval is how often idle sessions are checked.
	sweepInterval = time.Minute

	// sessionMaxAge is how long a battle or dungeon run may sit idle
	// before the sweeper drops it.
	sessionMaxAge = 30 * time.Minute
)

var (
	grpcPort     int
	redisAddress string
	dataDir      string
)

var serverCmd = &cobra.Command{
	Use:   "server",
	Short: "Start the game core server",
	Long:  `Start the rpg-core gRPC server with all game subsystems wired.`,
	RunE:  runServer,
}

func init() {
	serverCmd.Flags().IntVar(&grpcPort, "port", 50051, "gRPC server port")
	serverCmd.Flags().StringVar(&redisAddress, "redis-address", envOr("REDIS_ADDRESS", "localhost:6379"), "redis endpoint")
	serverCmd.Flags().StringVar(&dataDir, "data-dir", envOr("DATA_DIR", "data"), "game content directory")
}

func envOr(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

// game bundles every wired subsystem.
type game struct {
	characters   character.Service
	combat       combat.Service
	dungeons     dungeon.Service
	crafting     crafting.Service
	economy      economy.Service
	factions     faction.Service
	parties      party.Service
	achievements achievement.Service
}

func runServer(cmd *cobra.Command, args []string) error {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)

	go func() {
		<-sigChan
		slog.Info("received shutdown signal, gracefully stopping")
		cancel()
	}()

	g, err := wireGame(ctx)
	if err != nil {
		return err
	}
	defer g.crafting.Close()

	lis, err := net.Listen("tcp", fmt.Sprintf(":%d", grpcPort))
	if err != nil {
		return fmt.Errorf("failed to listen: %w", err)
	}

	srv := grpc.NewServer(
		grpc.ChainUnaryInterceptor(
			grpc_logging.UnaryServerInterceptor(grpc_logging.LoggerFunc(logFunc)),
			grpc_recovery.UnaryServerInterceptor(),
		),
		grpc.ChainStreamInterceptor(
			grpc_logging.StreamServerInterceptor(grpc_logging.LoggerFunc(logFunc)),
			grpc_recovery.StreamServerInterceptor(),
		),
	)

	healthServer := health.NewServer()
	grpc_health_v1.RegisterHealthServer(srv, healthServer)
	healthServer.SetServingStatus("", grpc_health_v1.HealthCheckResponse_SERVING)
	for _, subsystem := range []string{
		"rpgcore.Character",
		"rpgcore.Combat",
		"rpgcore.Dungeon",
		"rpgcore.Crafting",
		"rpgcore.Economy",
		"rpgcore.Faction",
		"rpgcore.Party",
		"rpgcore.Achievement",
	} {
		healthServer.SetServingStatus(subsystem, grpc_health_v1.HealthCheckResponse_SERVING)
	}

	reflection.Register(srv)

	go sweepSessions(ctx, g)

	errChan := make(chan error, 1)
	go func() {
		slog.Info("gRPC server starting", "port", grpcPort)
		if err := srv.Serve(lis); err != nil {
			errChan <- fmt.Errorf("failed to serve: %w", err)
		}
	}()

	select {
	case <-ctx.Done():
		slog.Info("shutting down gRPC server")

		shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 30*time.Second)
		defer shutdownCancel()

		stopped := make(chan struct{})
		go func() {
			srv.GracefulStop()
			close(stopped)
		}()

		select {
		case <-shutdownCtx.Done():
			slog.Warn("graceful shutdown timeout exceeded, forcing stop")
			srv.Stop()
		case <-stopped:
			slog.Info("server stopped gracefully")
		}

		return nil
	case err := <-errChan:
		return err
	}
}

// wireGame builds every repository and orchestrator against one redis
// client, one catalog, and one event bus, then runs the startup tasks:
// seeding the default factions and re-arming pending craft jobs.
func wireGame(ctx context.Context) (*game, error) {
	redisClient, err := redis.NewClient(redisAddress, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to redis: %w", err)
	}

	cat, err := catalog.Load(dataDir)
	if err != nil {
		return nil, fmt.Errorf("failed to load game content: %w", err)
	}
	slog.Info("game content loaded", "dir", dataDir, "stats", cat.Stats())

	eng, err := enginecore.NewEngine(&enginecore.Config{Catalog: cat})
	if err != nil {
		return nil, err
	}

	bus := events.NewBus()
	clk := clock.New()

	characterRepo, err := characters.NewRedis(&characters.RedisConfig{Client: redisClient})
	if err != nil {
		return nil, err
	}
	jobRepo, err := craftjobs.NewRedis(&craftjobs.RedisConfig{Client: redisClient})
	if err != nil {
		return nil, err
	}
	factionRepo, err := factions.NewRedis(&factions.RedisConfig{Client: redisClient})
	if err != nil {
		return nil, err
	}
	partyRepo, err := parties.NewRedis(&parties.RedisConfig{Client: redisClient})
	if err != nil {
		return nil, err
	}
	marketRepo, err := market.NewRedis(&market.RedisConfig{Client: redisClient})
	if err != nil {
		return nil, err
	}
	boards, err := leaderboard.NewRedis(&leaderboard.RedisConfig{Client: redisClient})
	if err != nil {
		return nil, err
	}

	characterSvc, err := character.NewOrchestrator(&character.Config{
		CharacterRepo: characterRepo,
		FactionRepo:   factionRepo,
		Leaderboard:   boards,
		Catalog:       cat,
		Engine:        eng,
		EventBus:      bus,
		IDGenerator:   idgen.NewUUID("char"),
		Clock:         clk,
	})
	if err != nil {
		return nil, err
	}

	combatSvc, err := combat.NewOrchestrator(&combat.Config{
		CharacterService: characterSvc,
		Catalog:          cat,
		Engine:           eng,
		EventBus:         bus,
		IDGenerator:      idgen.NewUUID("battle"),
		Clock:            clk,
	})
	if err != nil {
		return nil, err
	}

	dungeonSvc, err := dungeon.NewOrchestrator(&dungeon.Config{
		CharacterService: characterSvc,
		Catalog:          cat,
		EventBus:         bus,
		IDGenerator:      idgen.NewUUID("run"),
		Clock:            clk,
	})
	if err != nil {
		return nil, err
	}

	craftingSvc, err := crafting.NewOrchestrator(&crafting.Config{
		CharacterRepo: characterRepo,
		JobRepo:       jobRepo,
		Catalog:       cat,
		Engine:        eng,
		EventBus:      bus,
		IDGenerator:   idgen.NewUUID("craft"),
		Clock:         clk,
	})
	if err != nil {
		return nil, err
	}

	economySvc, err := economy.NewOrchestrator(&economy.Config{
		CharacterRepo: characterRepo,
		MarketRepo:    marketRepo,
		Leaderboard:   boards,
		Catalog:       cat,
		EventBus:      bus,
		IDGenerator:   idgen.NewUUID("listing"),
		Clock:         clk,
	})
	if err != nil {
		return nil, err
	}

	factionSvc, err := faction.NewOrchestrator(&faction.Config{
		CharacterService: characterSvc,
		FactionRepo:      factionRepo,
		Catalog:          cat,
		IDGenerator:      idgen.NewUUID("faction"),
		Clock:            clk,
	})
	if err != nil {
		return nil, err
	}

	partySvc, err := party.NewOrchestrator(&party.Config{
		PartyRepo:        partyRepo,
		CharacterService: characterSvc,
		IDGenerator:      idgen.NewUUID("party"),
		Clock:            clk,
	})
	if err != nil {
		return nil, err
	}

	achievementSvc, err := achievement.NewOrchestrator(&achievement.Config{
		CharacterRepo:    characterRepo,
		CharacterService: characterSvc,
		Catalog:          cat,
		EventBus:         bus,
		Clock:            clk,
	})
	if err != nil {
		return nil, err
	}

	if err := factionSvc.SeedDefaults(ctx); err != nil {
		return nil, fmt.Errorf("failed to seed factions: %w", err)
	}
	resumed, err := craftingSvc.ResumeJobs(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to resume craft jobs: %w", err)
	}
	if resumed > 0 {
		slog.Info("craft jobs resumed", "count", resumed)
	}

	return &game{
		characters:   characterSvc,
		combat:       combatSvc,
		dungeons:     dungeonSvc,
		crafting:     craftingSvc,
		economy:      economySvc,
		factions:     factionSvc,
		parties:      partySvc,
		achievements: achievementSvc,
	}, nil
}

// sweepSessions drops idle battles and dungeon runs on a fixed tick.
func sweepSessions(ctx context.Context, g *game) {
	ticker := time.NewTicker(sweepInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if n := g.combat.EvictStale(ctx, sessionMaxAge); n > 0 {
				slog.Info("evicted stale battles", "count", n)
			}
			if n := g.dungeons.EvictStale(ctx, sessionMaxAge); n > 0 {
				slog.Info("evicted stale dungeon runs", "count", n)
			}
		}
	}
}

func logFunc(ctx context.Context, level grpc_logging.Level, msg string, fields ...any) {
	switch level {
	case grpc_logging.LevelDebug:
		slog.DebugContext(ctx, msg, fields...)
	case grpc_logging.LevelWarn:
		slog.WarnContext(ctx, msg, fields...)
	case grpc_logging.LevelError:
		slog.ErrorContext(ctx, msg, fields...)
	default:
		slog.InfoContext(ctx, msg, fields...)
	}
}
