// Package update checks GitHub releases for a newer pulseview
// build. Checks are cached on disk so repeated invocations don't
// hammer the API.
package update

import (
	"encoding/json"
	"fmt"
	"net/http"
	"os"
	"path/filepath"
	"runtime"
	"strings"
	"time"

	"golang.org/x/mod/semver"
)

// apiURL is a variable so tests can point the checker at a stub
// server.
var apiURL = "https://api.github.com/repos/pulseview/pulseview/releases/latest"

const (
	cacheFileName = "update_check.json"
	cacheDuration = time.Hour
)

// Release is the subset of the GitHub release payload we read.
type Release struct {
	TagName string  `json:"tag_name"`
	Body    string  `json:"body"`
	Assets  []Asset `json:"assets"`
}

// Asset is one downloadable artifact of a release.
type Asset struct {
	Name               string `json:"name"`
	Size               int64  `json:"size"`
	BrowserDownloadURL string `json:"browser_download_url"`
}

// Info describes an available update.
type Info struct {
	CurrentVersion string
	LatestVersion  string
	DownloadURL    string
	AssetName      string
	Size           int64
}

type cachedCheck struct {
	CheckedAt time.Time `json:"checked_at"`
	Version   string    `json:"version"`
}

// IsDevBuild reports whether version looks like a development
// build rather than a tagged release.
func IsDevBuild(version string) bool {
	v := strings.TrimPrefix(version, "v")
	return v == "" || v == "dev" || strings.Contains(v, "-")
}

// Check returns update info when a newer release exists, nil when
// current is up to date. Unless force is set, a cached result
// younger than an hour short-circuits the API call.
func Check(currentVersion string, force bool, cacheDir string) (*Info, error) {
	if !force {
		if info, done := fromCache(currentVersion, cacheDir); done {
			return info, nil
		}
	}

	rel, err := fetchLatest()
	if err != nil {
		return nil, err
	}
	writeCache(cacheDir, rel.TagName)

	if !isNewer(rel.TagName, currentVersion) {
		return nil, nil
	}

	info := &Info{
		CurrentVersion: currentVersion,
		LatestVersion:  rel.TagName,
	}
	assetName := assetNameFor(rel.TagName, runtime.GOOS, runtime.GOARCH)
	for _, a := range rel.Assets {
		if a.Name == assetName {
			info.DownloadURL = a.BrowserDownloadURL
			info.AssetName = a.Name
			info.Size = a.Size
			break
		}
	}
	return info, nil
}

// fromCache consults the on-disk check cache. The second return
// is true when the cache settles the question.
func fromCache(currentVersion, cacheDir string) (*Info, bool) {
	data, err := os.ReadFile(filepath.Join(cacheDir, cacheFileName))
	if err != nil {
		return nil, false
	}
	var c cachedCheck
	if err := json.Unmarshal(data, &c); err != nil {
		return nil, false
	}
	if time.Since(c.CheckedAt) > cacheDuration {
		return nil, false
	}
	if !isNewer(c.Version, currentVersion) {
		return nil, true
	}
	// Cached version is newer but lacks download metadata; force
	// a real fetch.
	return nil, false
}

func writeCache(cacheDir, version string) {
	if cacheDir == "" {
		return
	}
	data, err := json.Marshal(cachedCheck{
		CheckedAt: time.Now(),
		Version:   version,
	})
	if err != nil {
		return
	}
	// Best effort; a failed cache write just means another API
	// call next time.
	_ = os.WriteFile(
		filepath.Join(cacheDir, cacheFileName), data, 0o644,
	)
}

func fetchLatest() (*Release, error) {
	client := &http.Client{Timeout: 10 * time.Second}
	resp, err := client.Get(apiURL)
	if err != nil {
		return nil, fmt.Errorf("fetching latest release: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf(
			"fetching latest release: status %d", resp.StatusCode,
		)
	}

	var rel Release
	if err := json.NewDecoder(resp.Body).Decode(&rel); err != nil {
		return nil, fmt.Errorf("decoding release: %w", err)
	}
	if rel.TagName == "" {
		return nil, fmt.Errorf("release has no tag name")
	}
	return &rel, nil
}

// isNewer reports whether candidate is a strictly newer semver
// than current. Dev builds are always considered outdated so a
// release can replace them.
func isNewer(candidate, current string) bool {
	if IsDevBuild(current) {
		return true
	}
	c := "v" + strings.TrimPrefix(candidate, "v")
	cur := "v" + strings.TrimPrefix(current, "v")
	if !semver.IsValid(c) || !semver.IsValid(cur) {
		return false
	}
	return semver.Compare(c, cur) > 0
}

// FormatSize renders a byte count for humans.
func FormatSize(bytes int64) string {
	const unit = 1024
	if bytes < unit {
		return fmt.Sprintf("%d B", bytes)
	}
	div, exp := int64(unit), 0
	for n := bytes / unit; n >= unit; n /= unit {
		div *= unit
		exp++
	}
	return fmt.Sprintf("%.1f %ciB",
		float64(bytes)/float64(div), "KMGTPE"[exp])
}

// assetNameFor builds the conventional release asset name for a
// platform.
func assetNameFor(tag, goos, goarch string) string {
	version := strings.TrimPrefix(tag, "v")
	ext := "tar.gz"
	if goos == "windows" {
		ext = "zip"
	}
	return fmt.Sprintf(
		"pulseview_%s_%s_%s.%s", version, goos, goarch, ext,
	)
}
