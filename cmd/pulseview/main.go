package main

import (
	"flag"
	"fmt"
	"log"
	"os"
	"time"
	_ "time/tzdata"

	"github.com/pulseview/pulseview/internal/config"
	"github.com/pulseview/pulseview/internal/dashboard"
	"github.com/pulseview/pulseview/internal/db"
	"github.com/pulseview/pulseview/internal/ingest"
	"github.com/pulseview/pulseview/internal/server"
	"github.com/pulseview/pulseview/internal/timeutil"
)

var (
	version   = "dev"
	commit    = "unknown"
	buildDate = ""
)

const (
	periodicIngestInterval = 15 * time.Minute
	watcherDebounce        = 500 * time.Millisecond
)

func main() {
	if len(os.Args) > 1 {
		switch os.Args[1] {
		case "ingest":
			runIngest(os.Args[2:])
			return
		case "update":
			runUpdate(os.Args[2:])
			return
		case "serve":
			runServe(os.Args[2:])
			return
		case "version", "--version", "-v":
			fmt.Printf("pulseview %s (commit %s, built %s)\n",
				version, commit, buildDate)
			return
		case "help", "--help", "-h":
			printUsage()
			return
		}
	}

	runServe(os.Args[1:])
}

func printUsage() {
	fmt.Printf(`pulseview %s - local heartbeat activity dashboard

Ingests editor heartbeat spool files into SQLite and serves
filterable coding-time aggregates via a local REST API.

Usage:
  pulseview [flags]          Start the server (default command)
  pulseview serve [flags]    Start the server (explicit)
  pulseview ingest [flags]   Ingest spool files once and exit
  pulseview update [flags]   Check for a newer release
  pulseview version          Show version information
  pulseview help             Show this help

Server flags:
  -host string        Host to bind to (default "127.0.0.1")
  -port int           Port to listen on (default 8090)
  -spool-dir string   Heartbeat spool directory to ingest
  -timezone string    IANA timezone for week and day bucketing

Update flags:
  -force              Force check (ignore cache)

Environment variables:
  PULSEVIEW_SPOOL_DIR     Heartbeat spool directory
  PULSEVIEW_DATA_DIR      Data directory (database, config)
  PULSEVIEW_TIMEZONE      IANA timezone override
  PULSEVIEW_IDLE_CUTOFF   Idle cutoff duration (e.g. 2m)

Data is stored in ~/.pulseview/ by default.
`, version)
}

func runServe(args []string) {
	cfg := mustLoadConfig(args)
	database := mustOpenDB(cfg)
	defer database.Close()

	engine := ingest.NewEngine(database, cfg.ResolveSpoolDirs())

	runInitialIngest(engine)

	stopWatcher := startSpoolWatcher(cfg, engine)
	defer stopWatcher()

	go startPeriodicIngest(engine)

	port := server.FindAvailablePort(cfg.Host, cfg.Port)
	if port != cfg.Port {
		fmt.Printf("Port %d in use, using %d\n", cfg.Port, port)
	}
	cfg.Port = port

	svc := dashboard.New(database,
		dashboard.WithLocation(timeutil.LocationOrUTC(cfg.Timezone)),
	)
	srv := server.New(cfg, database, svc, engine,
		server.WithVersion(server.VersionInfo{
			Version:   version,
			Commit:    commit,
			BuildDate: buildDate,
		}),
	)

	fmt.Printf("pulseview %s listening at http://%s:%d\n",
		version, cfg.Host, cfg.Port)

	if err := srv.ListenAndServe(); err != nil {
		log.Fatalf("server error: %v", err)
	}
}

func runIngest(args []string) {
	fs := flag.NewFlagSet("ingest", flag.ExitOnError)
	fs.Usage = func() {
		fmt.Fprintln(fs.Output(), "Usage: pulseview ingest [flags]")
		fmt.Fprintln(fs.Output(), "\nFlags:")
		fs.PrintDefaults()
	}
	config.RegisterServeFlags(fs)
	if err := fs.Parse(args); err != nil {
		log.Fatalf("parsing flags: %v", err)
	}

	cfg, err := config.Load(fs)
	if err != nil {
		log.Fatalf("loading config: %v", err)
	}
	if err := os.MkdirAll(cfg.DataDir, 0o755); err != nil {
		log.Fatalf("creating data dir: %v", err)
	}

	database := mustOpenDB(cfg)
	defer database.Close()

	engine := ingest.NewEngine(database, cfg.ResolveSpoolDirs())
	stats := engine.IngestAll()
	fmt.Printf(
		"Ingest complete: %d file(s), %d heartbeat(s) "+
			"(%d inserted, %d skipped, %d errors)\n",
		stats.Files, stats.Heartbeats,
		stats.Inserted, stats.Skipped, stats.Errors,
	)
}

func mustLoadConfig(args []string) config.Config {
	fs := flag.NewFlagSet("pulseview", flag.ExitOnError)
	fs.Usage = func() {
		fmt.Fprintf(fs.Output(),
			"Usage: pulseview [serve] [flags]\n\nFlags:\n")
		fs.PrintDefaults()
	}
	config.RegisterServeFlags(fs)
	if err := fs.Parse(args); err != nil {
		log.Fatalf("parsing flags: %v", err)
	}

	cfg, err := config.Load(fs)
	if err != nil {
		log.Fatalf("loading config: %v", err)
	}

	if err := os.MkdirAll(cfg.DataDir, 0o755); err != nil {
		log.Fatalf("creating data dir: %v", err)
	}
	return cfg
}

func mustOpenDB(cfg config.Config) *db.DB {
	database, err := db.Open(cfg.DBPath)
	if err != nil {
		log.Fatalf("opening database: %v", err)
	}
	if cfg.IdleCutoff > 0 {
		database.SetIdleCutoff(cfg.IdleCutoff)
	}
	if cfg.Timezone != "" {
		database.SetDefaultLocation(timeutil.LocationOrUTC(cfg.Timezone))
	}
	return database
}

func runInitialIngest(engine *ingest.Engine) {
	fmt.Println("Running initial ingest...")
	stats := engine.IngestAll()
	fmt.Printf(
		"Ingest complete: %d heartbeat(s) from %d file(s) "+
			"(%d new, %d skipped)\n",
		stats.Heartbeats, stats.Files,
		stats.Inserted, stats.Skipped,
	)
}

func startSpoolWatcher(
	cfg config.Config, engine *ingest.Engine,
) func() {
	onChange := func(paths []string) {
		engine.IngestPaths(paths)
	}
	watcher, err := ingest.NewWatcher(watcherDebounce, onChange)
	if err != nil {
		log.Printf("warning: file watcher unavailable: %v", err)
		return func() {}
	}

	for _, dir := range cfg.ResolveSpoolDirs() {
		if _, err := os.Stat(dir); err == nil {
			_ = watcher.Watch(dir)
		}
	}
	watcher.Start()
	return watcher.Stop
}

func startPeriodicIngest(engine *ingest.Engine) {
	ticker := time.NewTicker(periodicIngestInterval)
	defer ticker.Stop()
	for range ticker.C {
		log.Println("Running scheduled ingest...")
		engine.IngestAll()
	}
}
