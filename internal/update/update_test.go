package update

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"runtime"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func stubRelease(t *testing.T, rel Release) {
	t.Helper()
	srv := httptest.NewServer(http.HandlerFunc(
		func(w http.ResponseWriter, _ *http.Request) {
			_ = json.NewEncoder(w).Encode(rel)
		}))
	t.Cleanup(srv.Close)
	old := apiURL
	apiURL = srv.URL
	t.Cleanup(func() { apiURL = old })
}

func TestIsNewer(t *testing.T) {
	tests := []struct {
		candidate, current string
		want               bool
	}{
		{"v1.2.0", "1.1.0", true},
		{"v1.1.0", "1.1.0", false},
		{"v1.0.0", "1.1.0", false},
		{"v1.0.0", "dev", true},
		{"v1.0.0", "0.9.0-rc1", true},
		{"garbage", "1.0.0", false},
	}
	for _, tt := range tests {
		got := isNewer(tt.candidate, tt.current)
		assert.Equal(t, tt.want, got,
			"isNewer(%q, %q)", tt.candidate, tt.current)
	}
}

func TestIsDevBuild(t *testing.T) {
	assert.True(t, IsDevBuild("dev"))
	assert.True(t, IsDevBuild(""))
	assert.True(t, IsDevBuild("1.0.0-beta"))
	assert.False(t, IsDevBuild("1.0.0"))
	assert.False(t, IsDevBuild("v2.3.4"))
}

func TestCheckFindsUpdate(t *testing.T) {
	asset := assetNameFor("v2.0.0", runtime.GOOS, runtime.GOARCH)
	stubRelease(t, Release{
		TagName: "v2.0.0",
		Assets: []Asset{{
			Name:               asset,
			Size:               1234,
			BrowserDownloadURL: "https://example.com/" + asset,
		}},
	})

	info, err := Check("1.0.0", true, t.TempDir())
	require.NoError(t, err)
	require.NotNil(t, info)
	assert.Equal(t, "v2.0.0", info.LatestVersion)
	assert.Equal(t, asset, info.AssetName)
	assert.Equal(t, int64(1234), info.Size)
}

func TestCheckUpToDate(t *testing.T) {
	stubRelease(t, Release{TagName: "v1.0.0"})

	info, err := Check("1.0.0", true, t.TempDir())
	require.NoError(t, err)
	assert.Nil(t, info)
}

func TestCheckUsesCache(t *testing.T) {
	cacheDir := t.TempDir()
	data, err := json.Marshal(cachedCheck{
		CheckedAt: time.Now(),
		Version:   "v1.0.0",
	})
	require.NoError(t, err)
	require.NoError(t, os.WriteFile(
		filepath.Join(cacheDir, cacheFileName), data, 0o644,
	))

	// No stub server: a cache hit must not touch the network.
	old := apiURL
	apiURL = "http://127.0.0.1:0/unreachable"
	t.Cleanup(func() { apiURL = old })

	info, err := Check("1.0.0", false, cacheDir)
	require.NoError(t, err)
	assert.Nil(t, info)
}

func TestCheckWritesCache(t *testing.T) {
	stubRelease(t, Release{TagName: "v1.0.0"})
	cacheDir := t.TempDir()

	_, err := Check("1.0.0", true, cacheDir)
	require.NoError(t, err)

	data, err := os.ReadFile(filepath.Join(cacheDir, cacheFileName))
	require.NoError(t, err)
	var c cachedCheck
	require.NoError(t, json.Unmarshal(data, &c))
	assert.Equal(t, "v1.0.0", c.Version)
}

func TestFormatSize(t *testing.T) {
	assert.Equal(t, "512 B", FormatSize(512))
	assert.Equal(t, "1.5 KiB", FormatSize(1536))
	assert.Equal(t, "2.0 MiB", FormatSize(2*1024*1024))
}

func TestAssetNameFor(t *testing.T) {
	assert.Equal(t, "pulseview_1.2.0_linux_amd64.tar.gz",
		assetNameFor("v1.2.0", "linux", "amd64"))
	assert.Equal(t, "pulseview_1.2.0_windows_amd64.zip",
		assetNameFor("v1.2.0", "windows", "amd64"))
}
