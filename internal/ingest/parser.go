// Package ingest loads heartbeat spool files into the store.
// Editors and plugins drop JSONL files into spool directories;
// the engine parses them with a skip-bad-lines policy and batch
// inserts. Inserts are idempotent, so a file can be re-ingested
// after a crash without double counting.
package ingest

import (
	"bufio"
	"fmt"
	"os"
	"strings"

	"github.com/tidwall/gjson"

	"github.com/pulseview/pulseview/internal/db"
)

const (
	initialScanBufSize = 64 * 1024       // 64KB
	maxScanTokenSize   = 4 * 1024 * 1024 // 4MB
)

// ParseSpoolFile reads one heartbeat JSONL file. Lines that are
// not valid JSON or lack a user and timestamp are counted in
// skipped and otherwise ignored; a heartbeat feed keeps flowing
// around one bad line.
func ParseSpoolFile(path string) (hbs []db.Heartbeat, skipped int, err error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, 0, fmt.Errorf("open %s: %w", path, err)
	}
	defer f.Close()

	scanner := bufio.NewScanner(f)
	scanner.Buffer(
		make([]byte, 0, initialScanBufSize), maxScanTokenSize,
	)

	for scanner.Scan() {
		line := scanner.Text()
		if strings.TrimSpace(line) == "" {
			continue
		}
		hb, ok := parseLine(line)
		if !ok {
			skipped++
			continue
		}
		hbs = append(hbs, hb)
	}
	if err := scanner.Err(); err != nil {
		return nil, 0, fmt.Errorf("reading %s: %w", path, err)
	}
	return hbs, skipped, nil
}

// parseLine extracts one heartbeat from a JSON line. user_id and
// a positive time are required; dimension labels default to "".
func parseLine(line string) (db.Heartbeat, bool) {
	if !gjson.Valid(line) {
		return db.Heartbeat{}, false
	}

	userID := gjson.Get(line, "user_id").Str
	ts := gjson.Get(line, "time").Num
	if userID == "" || ts <= 0 {
		return db.Heartbeat{}, false
	}

	source := db.SourceType(gjson.Get(line, "source_type").Str)
	switch source {
	case db.SourceDirectEntry, db.SourceTestEntry:
	default:
		source = db.SourceDirectEntry
	}

	return db.Heartbeat{
		UserID:          userID,
		Time:            ts,
		Project:         gjson.Get(line, "project").Str,
		Language:        gjson.Get(line, "language").Str,
		Editor:          gjson.Get(line, "editor").Str,
		OperatingSystem: gjson.Get(line, "operating_system").Str,
		Category:        gjson.Get(line, "category").Str,
		Entity:          gjson.Get(line, "entity").Str,
		SourceType:      source,
	}, true
}
