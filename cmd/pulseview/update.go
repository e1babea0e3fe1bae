package main

import (
	"flag"
	"fmt"
	"log"

	"github.com/pulseview/pulseview/internal/config"
	"github.com/pulseview/pulseview/internal/update"
)

func runUpdate(args []string) {
	fs := flag.NewFlagSet("update", flag.ExitOnError)
	force := fs.Bool("force", false,
		"Force check (ignore cache)")
	fs.Usage = func() {
		fmt.Fprintln(fs.Output(),
			"Usage: pulseview update [flags]")
		fmt.Fprintln(fs.Output(), "\nFlags:")
		fs.PrintDefaults()
	}
	if err := fs.Parse(args); err != nil {
		log.Fatalf("parsing flags: %v", err)
	}

	dataDir, err := config.ResolveDataDir()
	if err != nil {
		log.Fatalf("resolving data dir: %v", err)
	}

	info, err := update.Check(version, *force, dataDir)
	if err != nil {
		log.Fatalf("checking for updates: %v", err)
	}

	if info == nil {
		fmt.Printf("pulseview %s is up to date.\n", version)
		return
	}

	if update.IsDevBuild(info.CurrentVersion) {
		fmt.Printf(
			"Running dev build (%s). Latest release: %s\n",
			info.CurrentVersion, info.LatestVersion,
		)
	} else {
		fmt.Printf(
			"Update available: %s -> %s",
			info.CurrentVersion, info.LatestVersion,
		)
		if info.Size > 0 {
			fmt.Printf(" (%s)", update.FormatSize(info.Size))
		}
		fmt.Println()
	}
	if info.DownloadURL != "" {
		fmt.Printf("Download: %s\n", info.DownloadURL)
	}
}
