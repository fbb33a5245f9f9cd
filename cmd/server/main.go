package main

import (
	"context"
	"flag"
	"os"
	"os/signal"
	"strconv"
	"strings"
	"syscall"

	"github.com/joho/godotenv"
	"github.com/mdobak/go-xerrors"

	"github.com/himanishpuri/landmark/internal/storage"
	"github.com/himanishpuri/landmark/pkg/landmark"
	"github.com/himanishpuri/landmark/pkg/logger"
)

var (
	port           int
	dbPath         string
	backend        string
	tempDir        string
	workers        int
	allowedOrigins string
)

func init() {
	_ = godotenv.Load()
	env := storage.OptionsFromEnv()

	flag.IntVar(&port, "port", envInt("PORT", 8080), "HTTP server port (env: PORT)")
	flag.StringVar(&dbPath, "db", env.Path, "Database file or directory (env: LANDMARK_DB_PATH)")
	flag.StringVar(&backend, "backend", env.Backend, "Storage backend: sqlite, badger or memory (env: LANDMARK_BACKEND)")
	flag.StringVar(&tempDir, "temp", os.TempDir(), "Directory for spooled uploads")
	flag.IntVar(&workers, "workers", envInt("LANDMARK_WORKERS", 4), "Lookup and fingerprint workers (env: LANDMARK_WORKERS)")
	flag.StringVar(&allowedOrigins, "origins", "*", "Comma-separated list of allowed CORS origins (use * for all)")
}

func envInt(key string, def int) int {
	if v, err := strconv.Atoi(os.Getenv(key)); err == nil {
		return v
	}
	return def
}

func main() {
	flag.Parse()
	log := logger.GetLogger()

	if backend == "" {
		backend = storage.BackendSQLite
	}
	if dbPath == "" && backend == storage.BackendBadger {
		dbPath = storage.DefaultBadgerDir
	} else if dbPath == "" {
		dbPath = storage.DefaultDBFile
	}

	var origins []string
	for _, o := range strings.Split(allowedOrigins, ",") {
		if o = strings.TrimSpace(o); o != "" {
			origins = append(origins, o)
		}
	}

	service, err := landmark.NewService(
		landmark.WithDBPath(dbPath),
		landmark.WithBackend(backend),
		landmark.WithWorkers(workers),
		landmark.WithLogger(log),
	)
	if err != nil {
		log.Fatalf("Failed to create service: %s", xerrors.Sprint(xerrors.New(err)))
	}
	defer service.Close()

	server := NewServer(service, &ServerConfig{
		Port:           port,
		DBPath:         dbPath,
		Backend:        backend,
		TempDir:        tempDir,
		AllowedOrigins: origins,
	})

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := server.Run(ctx); err != nil {
		log.Errorf("Server failed: %s", xerrors.Sprint(xerrors.New(err)))
		service.Close()
		os.Exit(1)
	}
}
