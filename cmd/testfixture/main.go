// Command testfixture writes a synthetic heartbeat spool for
// manual testing. Output is one JSONL file per day that pulseview
// can ingest directly.
package main

import (
	"encoding/json"
	"flag"
	"fmt"
	"log"
	"os"
	"path/filepath"
	"time"
)

type daySpec struct {
	project  string
	language string
	editor   string
	pings    int
	gap      time.Duration
}

var specs = []daySpec{
	{"project-alpha", "Go", "vim", 60, 45 * time.Second},
	{"project-alpha", "Go", "vim", 120, 30 * time.Second},
	{"project-beta", "Python", "emacs", 40, 60 * time.Second},
	{"project-beta", "Python", "emacs", 200, 25 * time.Second},
	{"project-gamma", "TypeScript", "vscode", 15, 90 * time.Second},
	{"project-gamma", "TypeScript", "vscode", 350, 20 * time.Second},
	{"project-delta", "Rust", "helix", 500, 15 * time.Second},
}

type beat struct {
	UserID          string  `json:"user_id"`
	Time            float64 `json:"time"`
	Project         string  `json:"project,omitempty"`
	Language        string  `json:"language,omitempty"`
	Editor          string  `json:"editor,omitempty"`
	OperatingSystem string  `json:"operating_system,omitempty"`
	Category        string  `json:"category,omitempty"`
	Entity          string  `json:"entity,omitempty"`
	SourceType      string  `json:"source_type,omitempty"`
}

func main() {
	out := flag.String("out", "", "output spool directory")
	user := flag.String("user", "fixture-user", "user id for the beats")
	flag.Parse()
	if *out == "" {
		fmt.Fprintln(os.Stderr, "usage: testfixture -out <dir>")
		os.Exit(1)
	}

	if err := os.MkdirAll(*out, 0o755); err != nil {
		log.Fatalf("creating spool dir: %v", err)
	}

	base := time.Now().UTC().AddDate(0, 0, -len(specs)).
		Truncate(24 * time.Hour).Add(10 * time.Hour)

	for i, spec := range specs {
		day := base.AddDate(0, 0, i)
		path := filepath.Join(
			*out, day.Format("2006-01-02")+".jsonl",
		)
		if err := writeDay(path, *user, spec, day); err != nil {
			log.Fatalf("writing %s: %v", path, err)
		}
		fmt.Printf("  %s: %d beats (%s)\n",
			filepath.Base(path), spec.pings, spec.project)
	}

	// A handful of fresh anonymous test beats so the social
	// proof windows have something to count.
	proofPath := filepath.Join(*out, "proof.jsonl")
	if err := writeProofBeats(proofPath); err != nil {
		log.Fatalf("writing %s: %v", proofPath, err)
	}
	fmt.Printf("  %s: test-entry beats for social proof\n",
		filepath.Base(proofPath))

	fmt.Printf("Spool fixture written to %s\n", *out)
}

func writeDay(
	path, user string, spec daySpec, start time.Time,
) error {
	f, err := os.Create(path)
	if err != nil {
		return err
	}
	defer f.Close()

	enc := json.NewEncoder(f)
	for i := 0; i < spec.pings; i++ {
		ts := start.Add(time.Duration(i) * spec.gap)
		b := beat{
			UserID:          user,
			Time:            float64(ts.UnixNano()) / 1e9,
			Project:         spec.project,
			Language:        spec.language,
			Editor:          spec.editor,
			OperatingSystem: "linux",
			Category:        "coding",
			Entity:          fmt.Sprintf("src/file%d.go", i%7),
		}
		if err := enc.Encode(b); err != nil {
			return err
		}
	}
	return nil
}

func writeProofBeats(path string) error {
	f, err := os.Create(path)
	if err != nil {
		return err
	}
	defer f.Close()

	enc := json.NewEncoder(f)
	now := time.Now().UTC()
	for i := 0; i < 5; i++ {
		b := beat{
			UserID:     fmt.Sprintf("tester-%d", i),
			Time:       float64(now.Add(-time.Duration(i)*time.Minute).UnixNano()) / 1e9,
			Entity:     "welcome.txt",
			SourceType: "test_entry",
		}
		if err := enc.Encode(b); err != nil {
			return err
		}
	}
	return nil
}
