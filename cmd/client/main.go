package main

import (
	"context"
	"encoding/json"
	"errors"
	"flag"
	"fmt"
	"log/slog"
	"os"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"

	"github.com/voxnote/tasksync/internal/client/broadcast"
	"github.com/voxnote/tasksync/internal/client/cli"
	"github.com/voxnote/tasksync/internal/client/engine"
	"github.com/voxnote/tasksync/internal/client/metrics"
	"github.com/voxnote/tasksync/internal/client/notify"
	"github.com/voxnote/tasksync/internal/client/queue"
	"github.com/voxnote/tasksync/internal/client/render"
	"github.com/voxnote/tasksync/internal/client/scheduler"
	"github.com/voxnote/tasksync/internal/client/storage"
	"github.com/voxnote/tasksync/internal/client/storage/boltdb"
	"github.com/voxnote/tasksync/internal/client/transport"
	"github.com/voxnote/tasksync/internal/crdt"
)

var (
	// Version information set via ldflags during build
	Version   = "dev"
	BuildDate = "unknown"
	GitCommit = "unknown"
)

func main() {
	// Глобальные флаги
	showVersion := flag.Bool("version", false, "Show version information")
	serverURL := flag.String("server", "http://localhost:8080", "Server URL")
	wsURL := flag.String("ws", "", "WebSocket URL for event delivery (used instead of --server)")
	dbPath := flag.String("db", "tasksync-client.db", "Path to local database")
	workspaceID := flag.String("workspace", "default", "Workspace identifier")
	nodeID := flag.String("node", "", "Override the node id used for vector clocks")
	redisAddr := flag.String("redis", "", "Redis address for cross-process tab sync (optional)")

	flag.Parse()

	if *showVersion {
		printVersion()
		os.Exit(0)
	}

	args := flag.Args()
	if len(args) == 0 {
		cli.PrintUsage()
		os.Exit(1)
	}
	command := args[0]

	ctx := context.Background()
	logger := slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{
		Level: slog.LevelWarn,
	}))

	// Идентификатор узла стабилен между запусками: он хранится в
	// metadata и определяет, чей счетчик двигают векторные часы
	node, err := resolveNodeID(ctx, *dbPath, *nodeID)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to open database: %v\n", err)
		os.Exit(1)
	}

	store := boltdb.New(*dbPath, node)
	defer func() {
		if err := store.Close(); err != nil {
			logger.Error("failed to close database", "error", err)
		}
	}()

	clock, err := restoreClock(ctx, store, node)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to restore vector clock: %v\n", err)
		os.Exit(1)
	}

	// Websocket держит одно соединение с подтверждениями по id,
	// HTTP шлет каждое событие отдельным запросом
	var tr transport.Transport
	if *wsURL != "" {
		ws, err := transport.DialWS(ctx, *wsURL)
		if err != nil {
			fmt.Fprintf(os.Stderr, "Failed to connect websocket: %v\n", err)
			os.Exit(1)
		}
		defer func() {
			_ = ws.Close()
		}()
		tr = ws
	} else {
		tr = transport.NewHTTPClient(*serverURL)
	}

	// Межвкладочная шина: Redis связывает процессы, иначе локальный hub
	var channel broadcast.Channel
	if *redisAddr != "" {
		channel = broadcast.NewRedisChannel(redis.NewClient(&redis.Options{
			Addr: *redisAddr,
		}), *workspaceID, logger)
	} else {
		channel = broadcast.NewHub()
	}
	defer func() {
		_ = channel.Close()
	}()

	bsync := broadcast.NewService(channel, *workspaceID, logger)
	if err := bsync.Start(ctx); err != nil {
		logger.Warn("broadcast unavailable, continuing local-only", "error", err)
	}
	defer func() {
		_ = bsync.Close(ctx)
	}()

	collector := metrics.NewCollector()
	renderer := render.NewMemory()
	queueManager := queue.NewManager(store, clock, tr, collector, *workspaceID, logger,
		queue.WithRenderer(renderer),
		queue.WithBroadcast(bsync))

	stopWatch := queueManager.WatchConnectivity(ctx)
	defer stopWatch()

	sched := scheduler.New()
	schedCtx, cancelSched := context.WithCancel(ctx)
	defer cancelSched()
	go sched.Run(schedCtx)

	eng := engine.NewService(store, queueManager, tr,
		renderer, notify.NewStdio(), bsync,
		collector, *workspaceID, logger,
		engine.WithScheduler(sched))

	c := cli.New(eng, store, queueManager, tr)
	c.Run(ctx, command, args[1:])
}

// resolveNodeID loads or creates the persistent node id.
// An explicit --node flag always wins and is persisted for next runs.
func resolveNodeID(ctx context.Context, dbPath, override string) (string, error) {
	bootstrap := boltdb.New(dbPath, "bootstrap")
	defer func() {
		_ = bootstrap.Close()
	}()

	if override != "" {
		if err := bootstrap.SetMetadata(ctx, "node_id", []byte(override)); err != nil {
			return "", err
		}
		return override, nil
	}

	stored, err := bootstrap.GetMetadata(ctx, "node_id")
	if err == nil {
		return string(stored), nil
	}
	if !errors.Is(err, storage.ErrKeyNotFound) {
		return "", err
	}

	node := uuid.New().String()
	if err := bootstrap.SetMetadata(ctx, "node_id", []byte(node)); err != nil {
		return "", err
	}

	return node, nil
}

// restoreClock восстанавливает векторные часы из metadata
func restoreClock(ctx context.Context, store storage.Storage, nodeID string) (*crdt.Clock, error) {
	raw, err := store.GetMetadata(ctx, "vector_clock")
	if err != nil {
		if errors.Is(err, storage.ErrKeyNotFound) {
			return crdt.NewClockWithNodeID(nodeID), nil
		}
		return nil, err
	}

	var pairs []crdt.Pair
	if err := json.Unmarshal(raw, &pairs); err != nil {
		return nil, fmt.Errorf("failed to decode persisted clock: %w", err)
	}

	return crdt.RestoreClock(nodeID, pairs), nil
}

func printVersion() {
	fmt.Printf("TaskSync Client\n")
	fmt.Printf("Version:    %s\n", Version)
	fmt.Printf("Build Date: %s\n", BuildDate)
	fmt.Printf("Git Commit: %s\n", GitCommit)
}
