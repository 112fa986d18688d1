package startup

import (
	"net/http"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/gorilla/mux"
	"golang.org/x/crypto/bcrypt"

	"video-rewrite/internal/memory"
)

var configEnv = []string{
	"SOURCE_DIR", "OUTPUT_DIR", "DATABASE_DIR", "PORT", "METRICS_PORT", "METRICS_ENABLED",
	"FFMPEG_PATH", "FFPROBE_PATH", "VIDEO_PRESET", "VIDEO_CRF", "AUDIO_BITRATE",
	"VERIFY_OUTPUT", "JOB_TIMEOUT", "TRANSCODE_WORKERS", "DEFAULT_FILTER", "USE_VIPS",
	"API_PASSWORD", "API_PASSWORD_HASH",
}

func clearConfigEnv(t *testing.T) {
	t.Helper()
	for _, key := range configEnv {
		t.Setenv(key, "")
	}
}

func TestGetBuildInfo(t *testing.T) {
	info := GetBuildInfo()

	if info.Version == "" {
		t.Error("Expected Version to be set")
	}
	if info.GoVersion != GoVersion {
		t.Errorf("Expected GoVersion=%s, got %s", GoVersion, info.GoVersion)
	}
	if info.OS == "" || info.Arch == "" {
		t.Error("Expected OS and Arch to be set")
	}
}

func TestReadConfigDefaults(t *testing.T) {
	clearConfigEnv(t)

	cfg, err := ReadConfig()
	if err != nil {
		t.Fatalf("ReadConfig failed: %v", err)
	}
	if cfg.OutputDir != DefaultOutputDir {
		t.Errorf("Expected output dir %s, got %s", DefaultOutputDir, cfg.OutputDir)
	}
	if cfg.DatabasePath != filepath.Join(DefaultDatabaseDir, "jobs.db") {
		t.Errorf("Unexpected database path %s", cfg.DatabasePath)
	}
	if cfg.VideoCRF != 20 || cfg.VideoPreset != "medium" {
		t.Errorf("Unexpected encoder defaults: crf=%d preset=%s", cfg.VideoCRF, cfg.VideoPreset)
	}
	if cfg.JobTimeout != DefaultJobTimeout {
		t.Errorf("Expected job timeout %v, got %v", DefaultJobTimeout, cfg.JobTimeout)
	}
	if !cfg.VerifyOutput || !cfg.MetricsEnabled {
		t.Error("Expected verification and metrics to default to enabled")
	}
	if cfg.SourceDir != DefaultSourceDir {
		t.Errorf("Expected source dir %s, got %s", DefaultSourceDir, cfg.SourceDir)
	}
	if cfg.APIPasswordHash != nil {
		t.Error("Expected the API to be open without a password")
	}
	if cfg.DefaultFilter != "normal" {
		t.Errorf("Expected default filter normal, got %s", cfg.DefaultFilter)
	}
	if cfg.Workers < 1 {
		t.Errorf("Expected at least one worker, got %d", cfg.Workers)
	}
}

func TestReadConfigOverrides(t *testing.T) {
	clearConfigEnv(t)
	dir := t.TempDir()
	t.Setenv("OUTPUT_DIR", dir)
	t.Setenv("VIDEO_CRF", "28")
	t.Setenv("VIDEO_PRESET", "veryfast")
	t.Setenv("JOB_TIMEOUT", "90s")
	t.Setenv("VERIFY_OUTPUT", "false")
	t.Setenv("TRANSCODE_WORKERS", "3")
	t.Setenv("FFMPEG_PATH", "/opt/ffmpeg/bin/ffmpeg")

	cfg, err := ReadConfig()
	if err != nil {
		t.Fatalf("ReadConfig failed: %v", err)
	}
	if cfg.OutputDir != dir {
		t.Errorf("Expected output dir %s, got %s", dir, cfg.OutputDir)
	}
	if cfg.JobTimeout != 90*time.Second {
		t.Errorf("Expected 90s timeout, got %v", cfg.JobTimeout)
	}
	if cfg.Workers != 3 {
		t.Errorf("Expected 3 workers, got %d", cfg.Workers)
	}

	fc := cfg.FFmpegConfig()
	if fc.CRF != 28 || fc.Preset != "veryfast" || fc.Verify {
		t.Errorf("Unexpected ffmpeg config: %+v", fc)
	}
	if fc.FFmpegPath != "/opt/ffmpeg/bin/ffmpeg" {
		t.Errorf("Expected ffmpeg path override, got %s", fc.FFmpegPath)
	}
	if fc.QueueDepth == 0 || fc.PoolSize == 0 {
		t.Error("Expected pipeline buffer defaults to be kept")
	}
}

func TestReadConfigErrors(t *testing.T) {
	tests := []struct {
		name  string
		key   string
		value string
	}{
		{"non-numeric CRF", "VIDEO_CRF", "high"},
		{"CRF out of range", "VIDEO_CRF", "60"},
		{"CRF zero", "VIDEO_CRF", "0"},
		{"password hash not bcrypt", "API_PASSWORD_HASH", "secret"},
		{"bad timeout", "JOB_TIMEOUT", "soon"},
		{"negative timeout", "JOB_TIMEOUT", "-1m"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			clearConfigEnv(t)
			t.Setenv(tt.key, tt.value)
			if _, err := ReadConfig(); err == nil {
				t.Errorf("Expected error for %s=%q", tt.key, tt.value)
			}
		})
	}
}

func TestReadConfigAPIPassword(t *testing.T) {
	clearConfigEnv(t)
	t.Setenv("API_PASSWORD", "hunter2")

	cfg, err := ReadConfig()
	if err != nil {
		t.Fatalf("ReadConfig failed: %v", err)
	}
	if err := bcrypt.CompareHashAndPassword(cfg.APIPasswordHash, []byte("hunter2")); err != nil {
		t.Errorf("Expected the hash to match API_PASSWORD: %v", err)
	}

	hash, err := bcrypt.GenerateFromPassword([]byte("s3cret"), bcrypt.MinCost)
	if err != nil {
		t.Fatal(err)
	}
	t.Setenv("API_PASSWORD", "")
	t.Setenv("API_PASSWORD_HASH", string(hash))
	if cfg, err = ReadConfig(); err != nil {
		t.Fatalf("ReadConfig failed: %v", err)
	}
	if string(cfg.APIPasswordHash) != string(hash) {
		t.Errorf("Expected API_PASSWORD_HASH to be used as is, got %q", cfg.APIPasswordHash)
	}

	t.Setenv("API_PASSWORD", "hunter2")
	if _, err := ReadConfig(); err == nil {
		t.Error("Expected an error when both API_PASSWORD and API_PASSWORD_HASH are set")
	}
}

func TestLoadConfigCreatesDirectories(t *testing.T) {
	clearConfigEnv(t)
	root := t.TempDir()
	t.Setenv("OUTPUT_DIR", filepath.Join(root, "out"))
	t.Setenv("DATABASE_DIR", filepath.Join(root, "db"))

	cfg, err := LoadConfig()
	if err != nil {
		t.Fatalf("LoadConfig failed: %v", err)
	}
	for _, dir := range []string{cfg.OutputDir, cfg.DatabaseDir} {
		info, err := os.Stat(dir)
		if err != nil || !info.IsDir() {
			t.Errorf("Expected directory %s to exist", dir)
		}
	}
}

func TestLoadConfigRejectsFileAsDirectory(t *testing.T) {
	clearConfigEnv(t)
	root := t.TempDir()
	file := filepath.Join(root, "file")
	if err := os.WriteFile(file, []byte("x"), 0o644); err != nil {
		t.Fatal(err)
	}
	t.Setenv("OUTPUT_DIR", file)
	t.Setenv("DATABASE_DIR", filepath.Join(root, "db"))

	if _, err := LoadConfig(); err == nil {
		t.Error("Expected error when OUTPUT_DIR is a regular file")
	}
}

func TestGetEnvBool(t *testing.T) {
	tests := []struct {
		value    string
		def      bool
		expected bool
	}{
		{"", true, true},
		{"true", false, true},
		{"0", true, false},
		{"nope", true, true},
	}
	for _, tt := range tests {
		t.Setenv("TEST_BOOL_VAR", tt.value)
		if got := getEnvBool("TEST_BOOL_VAR", tt.def); got != tt.expected {
			t.Errorf("getEnvBool(%q, %v) = %v, want %v", tt.value, tt.def, got, tt.expected)
		}
	}
}

func TestGetRouteGroup(t *testing.T) {
	tests := map[string]string{
		"/api/jobs":             "api/jobs",
		"/api/jobs/{id}/output": "api/jobs",
		"/healthz":              "healthz",
		"/":                     "",
	}
	for path, want := range tests {
		if got := getRouteGroup(path); got != want {
			t.Errorf("getRouteGroup(%q) = %q, want %q", path, got, want)
		}
	}
}

func TestGetRoutes(t *testing.T) {
	r := mux.NewRouter()
	r.HandleFunc("/api/jobs", func(_ http.ResponseWriter, _ *http.Request) {}).Methods("GET", "POST")
	r.HandleFunc("/healthz", func(_ http.ResponseWriter, _ *http.Request) {})

	routes, err := GetRoutes(r)
	if err != nil {
		t.Fatalf("GetRoutes failed: %v", err)
	}
	if len(routes) != 3 {
		t.Fatalf("Expected 3 routes, got %d: %+v", len(routes), routes)
	}
	if routes[2].Method != "*" {
		t.Errorf("Expected wildcard method for route without methods, got %s", routes[2].Method)
	}
	LogHTTPRoutes(r)
}

func TestLogMemoryConfig(_ *testing.T) {
	LogMemoryConfig(memory.ConfigResult{})
	LogMemoryConfig(memory.ConfigResult{Configured: true, Source: "MEMORY_LIMIT", ContainerLimit: 1 << 30, GoMemLimit: 3 << 28, Ratio: 0.75})
}

func TestLogTranscoderInitMissingBinary(t *testing.T) {
	cfg := &Config{FFmpegPath: "/nonexistent/ffmpeg", FFprobePath: "/nonexistent/ffprobe"}
	if err := LogTranscoderInit(cfg); err == nil {
		t.Error("Expected error for missing ffmpeg")
	}
}
