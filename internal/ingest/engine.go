package ingest

import (
	"io/fs"
	"log"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/pulseview/pulseview/internal/db"
)

// Stats summarizes one ingest run.
type Stats struct {
	Files      int `json:"files"`
	Heartbeats int `json:"heartbeats"`
	Inserted   int `json:"inserted"`
	Skipped    int `json:"skipped"`
	Errors     int `json:"errors"`
}

// Engine scans spool directories for heartbeat JSONL files and
// loads them into the store.
type Engine struct {
	db        *db.DB
	spoolDirs []string

	runMu sync.Mutex // serializes full runs

	mu        sync.RWMutex
	lastRun   time.Time
	lastStats Stats
}

// NewEngine creates an ingest engine over the given spool
// directories.
func NewEngine(database *db.DB, spoolDirs []string) *Engine {
	return &Engine{db: database, spoolDirs: spoolDirs}
}

// LastRun returns the completion time of the last ingest run.
func (e *Engine) LastRun() time.Time {
	e.mu.RLock()
	defer e.mu.RUnlock()
	return e.lastRun
}

// LastStats returns statistics from the last ingest run.
func (e *Engine) LastStats() Stats {
	e.mu.RLock()
	defer e.mu.RUnlock()
	return e.lastStats
}

// IngestAll walks every spool directory and ingests all .jsonl
// files found.
func (e *Engine) IngestAll() Stats {
	var paths []string
	for _, dir := range e.spoolDirs {
		err := filepath.WalkDir(dir,
			func(path string, d fs.DirEntry, err error) error {
				if err != nil {
					return nil // skip inaccessible entries
				}
				if !d.IsDir() && isSpoolFile(path) {
					paths = append(paths, path)
				}
				return nil
			})
		if err != nil {
			log.Printf("walking spool dir %s: %v", dir, err)
		}
	}
	return e.IngestPaths(paths)
}

// IngestPaths ingests the given files. Paths that are not spool
// files are silently ignored, so the watcher can feed raw event
// paths straight through.
func (e *Engine) IngestPaths(paths []string) Stats {
	e.runMu.Lock()
	defer e.runMu.Unlock()

	var stats Stats
	for _, path := range paths {
		if !isSpoolFile(path) {
			continue
		}
		hbs, skipped, err := ParseSpoolFile(path)
		if err != nil {
			log.Printf("ingest: %v", err)
			stats.Errors++
			continue
		}
		stats.Files++
		stats.Heartbeats += len(hbs)
		stats.Skipped += skipped

		if len(hbs) == 0 {
			continue
		}
		inserted, err := e.db.InsertHeartbeats(hbs)
		if err != nil {
			log.Printf("ingest: inserting %s: %v", path, err)
			stats.Errors++
			continue
		}
		stats.Inserted += inserted
	}

	e.mu.Lock()
	e.lastRun = time.Now()
	e.lastStats = stats
	e.mu.Unlock()

	if stats.Inserted > 0 {
		log.Printf("ingest: %d heartbeat(s) from %d file(s)",
			stats.Inserted, stats.Files)
	}
	return stats
}

func isSpoolFile(path string) bool {
	return strings.HasSuffix(path, ".jsonl")
}
