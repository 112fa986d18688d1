package startup

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"runtime"
	"sort"
	"strconv"
	"strings"
	"time"

	"video-rewrite/internal/ffmpeg"
	"video-rewrite/internal/filesystem"
	"video-rewrite/internal/logging"
	"video-rewrite/internal/memory"
	"video-rewrite/internal/workers"

	"github.com/gorilla/mux"
	"golang.org/x/crypto/bcrypt"
)

// Build-time variables (injected via -ldflags)
var (
	Version   = "dev"
	Commit    = "unknown"
	BuildTime = "unknown"
	GoVersion = runtime.Version()
)

// BuildInfo contains version and build information
type BuildInfo struct {
	Version   string `json:"version"`
	Commit    string `json:"commit"`
	BuildTime string `json:"buildTime"`
	GoVersion string `json:"goVersion"`
	OS        string `json:"os"`
	Arch      string `json:"arch"`
}

// GetBuildInfo returns the current build information
func GetBuildInfo() BuildInfo {
	return BuildInfo{
		Version:   Version,
		Commit:    Commit,
		BuildTime: BuildTime,
		GoVersion: GoVersion,
		OS:        runtime.GOOS,
		Arch:      runtime.GOARCH,
	}
}

// RouteInfo contains information about a registered route
type RouteInfo struct {
	Method string
	Path   string
	Name   string
}

// Config holds all application configuration
type Config struct {
	SourceDir       string
	OutputDir       string
	DatabaseDir     string
	Port            string
	MetricsPort     string
	MetricsEnabled  bool
	LogHealthChecks bool

	FFmpegPath   string
	FFprobePath  string
	VideoPreset  string
	VideoCRF     int
	AudioBitrate string
	VerifyOutput bool
	UseVips      bool

	// APIPasswordHash is the bcrypt hash guarding /api. Nil leaves the API open.
	APIPasswordHash []byte

	// JobTimeout bounds each service job; zero means no limit.
	JobTimeout    time.Duration
	Workers       int
	DefaultFilter string

	// Derived paths
	DatabasePath string
}

// Defaults used when the environment does not say otherwise.
const (
	DefaultSourceDir   = "/input"
	DefaultOutputDir   = "/output"
	DefaultDatabaseDir = "/database"
	DefaultJobTimeout  = 2 * time.Hour
	maxWorkers         = 8
)

// ReadConfig reads the configuration from the environment without touching
// the filesystem or logging a summary.
func ReadConfig() (*Config, error) {
	defaults := ffmpeg.DefaultConfig()

	cfg := &Config{
		SourceDir:       getEnv("SOURCE_DIR", DefaultSourceDir),
		OutputDir:       getEnv("OUTPUT_DIR", DefaultOutputDir),
		DatabaseDir:     getEnv("DATABASE_DIR", DefaultDatabaseDir),
		Port:            getEnv("PORT", "8080"),
		MetricsPort:     getEnv("METRICS_PORT", "9090"),
		MetricsEnabled:  getEnvBool("METRICS_ENABLED", true),
		LogHealthChecks: getEnvBool("LOG_HEALTH_CHECKS", false),
		FFmpegPath:      getEnv("FFMPEG_PATH", defaults.FFmpegPath),
		FFprobePath:     getEnv("FFPROBE_PATH", defaults.FFprobePath),
		VideoPreset:     getEnv("VIDEO_PRESET", defaults.Preset),
		AudioBitrate:    getEnv("AUDIO_BITRATE", defaults.AudioBitrate),
		VerifyOutput:    getEnvBool("VERIFY_OUTPUT", defaults.Verify),
		UseVips:         getEnvBool("USE_VIPS", true),
		Workers:         workers.ForTranscode(maxWorkers),
		DefaultFilter:   getEnv("DEFAULT_FILTER", "normal"),
	}

	crf, err := getEnvInt("VIDEO_CRF", defaults.CRF)
	if err != nil {
		return nil, err
	}
	if crf < 1 || crf > 51 {
		return nil, fmt.Errorf("VIDEO_CRF must be between 1 and 51, got %d", crf)
	}
	cfg.VideoCRF = crf

	timeout, err := getEnvDuration("JOB_TIMEOUT", DefaultJobTimeout)
	if err != nil {
		return nil, err
	}
	if timeout < 0 {
		return nil, fmt.Errorf("JOB_TIMEOUT must not be negative, got %v", timeout)
	}
	cfg.JobTimeout = timeout

	if cfg.APIPasswordHash, err = readAPIPassword(); err != nil {
		return nil, err
	}

	if cfg.SourceDir, err = filepath.Abs(cfg.SourceDir); err != nil {
		return nil, fmt.Errorf("failed to resolve source directory path: %w", err)
	}
	if cfg.OutputDir, err = filepath.Abs(cfg.OutputDir); err != nil {
		return nil, fmt.Errorf("failed to resolve output directory path: %w", err)
	}
	if cfg.DatabaseDir, err = filepath.Abs(cfg.DatabaseDir); err != nil {
		return nil, fmt.Errorf("failed to resolve database directory path: %w", err)
	}
	cfg.DatabasePath = filepath.Join(cfg.DatabaseDir, "jobs.db")
	return cfg, nil
}

// readAPIPassword takes API_PASSWORD_HASH as an existing bcrypt hash, or
// hashes API_PASSWORD. Setting both is an error.
func readAPIPassword() ([]byte, error) {
	hash, password := os.Getenv("API_PASSWORD_HASH"), os.Getenv("API_PASSWORD")
	switch {
	case hash != "" && password != "":
		return nil, errors.New("set only one of API_PASSWORD and API_PASSWORD_HASH")
	case hash != "":
		if _, err := bcrypt.Cost([]byte(hash)); err != nil {
			return nil, fmt.Errorf("API_PASSWORD_HASH is not a bcrypt hash: %w", err)
		}
		return []byte(hash), nil
	case password != "":
		generated, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
		if err != nil {
			return nil, fmt.Errorf("failed to hash API_PASSWORD: %w", err)
		}
		return generated, nil
	}
	return nil, nil
}

// FFmpegConfig maps the settings onto the ffmpeg backend configuration.
func (c *Config) FFmpegConfig() ffmpeg.Config {
	fc := ffmpeg.DefaultConfig()
	fc.FFmpegPath = c.FFmpegPath
	fc.FFprobePath = c.FFprobePath
	fc.Preset = c.VideoPreset
	fc.CRF = c.VideoCRF
	fc.AudioBitrate = c.AudioBitrate
	fc.Verify = c.VerifyOutput
	return fc
}

// LoadConfig prints the banner, reads the configuration and prepares the
// output and database directories. Both must be writable.
func LoadConfig() (*Config, error) {
	printBanner()
	logSystemInfo()

	cfg, err := ReadConfig()
	if err != nil {
		return nil, err
	}

	logSection("CONFIGURATION")
	logging.Info("  SOURCE_DIR:          %s", cfg.SourceDir)
	logging.Info("  OUTPUT_DIR:          %s", cfg.OutputDir)
	logging.Info("  DATABASE_DIR:        %s", cfg.DatabaseDir)
	logging.Info("  PORT:                %s", cfg.Port)
	logging.Info("  METRICS_PORT:        %s", cfg.MetricsPort)
	logging.Info("  METRICS_ENABLED:     %v", cfg.MetricsEnabled)
	logging.Info("  FFMPEG_PATH:         %s", cfg.FFmpegPath)
	logging.Info("  FFPROBE_PATH:        %s", cfg.FFprobePath)
	logging.Info("  VIDEO_PRESET:        %s", cfg.VideoPreset)
	logging.Info("  VIDEO_CRF:           %d", cfg.VideoCRF)
	logging.Info("  AUDIO_BITRATE:       %s", cfg.AudioBitrate)
	logging.Info("  VERIFY_OUTPUT:       %v", cfg.VerifyOutput)
	logging.Info("  JOB_TIMEOUT:         %v", cfg.JobTimeout)
	logging.Info("  TRANSCODE_WORKERS:   %d", cfg.Workers)
	logging.Info("  DEFAULT_FILTER:      %s", cfg.DefaultFilter)
	logging.Info("  API_AUTH:            %v", cfg.APIPasswordHash != nil)
	logging.Info("  LOG_LEVEL:           %s", logging.GetLevel())

	logSection("DIRECTORY SETUP")
	for _, dir := range []struct{ path, name string }{
		{cfg.OutputDir, "output"},
		{cfg.DatabaseDir, "database"},
	} {
		if err := ensureDirectory(dir.path, dir.name); err != nil {
			return nil, fmt.Errorf("%s directory error: %w", dir.name, err)
		}
		if err := filesystem.CheckWritable(dir.path); err != nil {
			return nil, fmt.Errorf("%s directory is not writable: %w", dir.name, err)
		}
		logging.Info("  [OK] %s directory is writable: %s", dir.name, dir.path)
	}

	if info, err := os.Stat(cfg.SourceDir); err != nil || !info.IsDir() {
		logging.Warn("  [WARN] source directory is not available: %s", cfg.SourceDir)
	} else {
		logging.Info("  [OK] source directory: %s", cfg.SourceDir)
	}
	if cfg.APIPasswordHash == nil {
		logging.Warn("  [WARN] API_PASSWORD is not set; the job API accepts unauthenticated requests")
	}

	filesystem.SetDefaultVolumeResolver(filesystem.NewVolumeResolver(map[string]string{
		"output":   cfg.OutputDir,
		"database": cfg.DatabaseDir,
	}))
	return cfg, nil
}

func logSection(title string) {
	logging.Info("")
	logging.Info("------------------------------------------------------------")
	logging.Info("%s", title)
	logging.Info("------------------------------------------------------------")
}

// LogMemoryConfig logs how GOMEMLIMIT was configured.
func LogMemoryConfig(result memory.ConfigResult) {
	logSection("MEMORY")
	if !result.Configured {
		logging.Info("  GOMEMLIMIT not configured (set MEMORY_LIMIT to enable)")
		return
	}
	logging.Info("  Source:          %s", result.Source)
	logging.Info("  GOMEMLIMIT:      %d bytes", result.GoMemLimit)
	if result.ContainerLimit > 0 {
		logging.Info("  Container limit: %d bytes (ratio %.2f)", result.ContainerLimit, result.Ratio)
	}
}

// LogDatabaseInit logs database initialization
func LogDatabaseInit(duration time.Duration) {
	logSection("DATABASE INITIALIZATION")
	logging.Info("  [OK] Job database initialized in %v", duration)
}

// LogTranscoderInit checks the ffmpeg binaries and logs their versions.
// It returns an error when either is missing.
func LogTranscoderInit(cfg *Config) error {
	logSection("TRANSCODER INITIALIZATION")

	for _, bin := range []string{cfg.FFmpegPath, cfg.FFprobePath} {
		version, err := checkBinary(bin)
		if err != nil {
			logging.Error("  %v", err)
			return err
		}
		logging.Info("  [OK] %s", version)
	}
	logging.Info("  Workers:     %d concurrent jobs", cfg.Workers)
	return nil
}

// LogFilterInit logs the filter variants that were registered.
func LogFilterInit(names []string, vips bool) {
	logging.Info("  Filters:     %s", strings.Join(names, ", "))
	if vips {
		logging.Info("  libvips:     ENABLED")
	} else {
		logging.Info("  libvips:     DISABLED (vips-* filters unavailable)")
	}
}

// GetRoutes extracts all registered routes from a mux.Router
func GetRoutes(router *mux.Router) ([]RouteInfo, error) {
	var routes []RouteInfo

	err := router.Walk(func(route *mux.Route, _ *mux.Router, _ []*mux.Route) error {
		pathTemplate, err := route.GetPathTemplate()
		if err != nil {
			return err
		}

		methods, err := route.GetMethods()
		if err != nil {
			methods = []string{"*"}
		}

		for _, method := range methods {
			routes = append(routes, RouteInfo{
				Method: method,
				Path:   pathTemplate,
				Name:   route.GetName(),
			})
		}
		return nil
	})

	return routes, err
}

// LogHTTPRoutes logs the registered routes at debug level, grouped by prefix.
func LogHTTPRoutes(router *mux.Router) {
	logSection("HTTP SERVER SETUP")
	if !logging.IsDebugEnabled() {
		return
	}

	routes, err := GetRoutes(router)
	if err != nil {
		logging.Warn("error walking routes: %v", err)
	}

	groups := make(map[string][]RouteInfo)
	for _, route := range routes {
		prefix := getRouteGroup(route.Path)
		groups[prefix] = append(groups[prefix], route)
	}
	keys := make([]string, 0, len(groups))
	for k := range groups {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	logging.Debug("  Registered routes (%d total):", len(routes))
	for _, group := range keys {
		name := group
		if name == "" {
			name = "root"
		}
		logging.Debug("  [%s]", name)
		for _, route := range groups[group] {
			logging.Debug("    %-6s %s", route.Method, route.Path)
		}
	}
}

// getRouteGroup extracts a group name from a route path
func getRouteGroup(path string) string {
	parts := strings.SplitN(strings.TrimPrefix(path, "/"), "/", 3)
	if parts[0] == "api" && len(parts) > 1 {
		return "api/" + parts[1]
	}
	return parts[0]
}

// ServerConfig holds configuration for the server startup log
type ServerConfig struct {
	Port            string
	MetricsPort     string
	MetricsEnabled  bool
	StartupDuration time.Duration
}

// LogServerStarted logs successful server start with all endpoint information
func LogServerStarted(config ServerConfig) {
	logSection("SERVER STARTED")
	logging.Info("  Startup time:    %v", config.StartupDuration)
	logging.Info("  Job API:         http://0.0.0.0:%s/api/jobs", config.Port)
	if config.MetricsEnabled {
		logging.Info("  Metrics:         http://0.0.0.0:%s/metrics", config.MetricsPort)
	} else {
		logging.Info("  Metrics:         DISABLED")
	}
	logging.Info("")
	logging.Info("  Press Ctrl+C to stop the server")
	logging.Info("------------------------------------------------------------")
}

// LogShutdownInitiated logs shutdown start
func LogShutdownInitiated(signal string) {
	logSection(fmt.Sprintf("SHUTDOWN INITIATED (received %s)", signal))
}

// LogShutdownStep logs a shutdown step
func LogShutdownStep(step string) {
	logging.Debug("  %s...", step)
}

// LogShutdownStepComplete logs a completed shutdown step
func LogShutdownStepComplete(step string) {
	logging.Info("  [OK] %s", step)
}

// LogShutdownComplete logs shutdown completion
func LogShutdownComplete() {
	logging.Info("  [OK] Shutdown complete")
}

func printBanner() {
	banner := `
------------------------------------------------------------
        _     _                                _ _
 __   _(_) __| | ___  ___    _ __ _____      _(_) |_ ___
 \ \ / / |/ _' |/ _ \/ _ \  | '__/ _ \ \ /\ / / | __/ _ \
  \ V /| | (_| |  __/ (_) | | | |  __/\ V  V /| | ||  __/
   \_/ |_|\__,_|\___|\___/  |_|  \___| \_/\_/ |_|\__\___|

------------------------------------------------------------`
	fmt.Println(banner)
	logging.Info("  Version:    %s", Version)
	logging.Info("  Commit:     %s", Commit)
	logging.Info("  Build Time: %s", BuildTime)
	logging.Info("  Started:    %s", time.Now().Format(time.RFC1123))
}

func logSystemInfo() {
	logSection("SYSTEM INFORMATION")
	logging.Info("  Go version:      %s", runtime.Version())
	logging.Info("  OS/Arch:         %s/%s", runtime.GOOS, runtime.GOARCH)
	logging.Info("  CPUs available:  %d", runtime.NumCPU())
	logging.Info("  GOMAXPROCS:      %d", runtime.GOMAXPROCS(0))
	if runtime.GOMAXPROCS(0) < runtime.NumCPU() {
		logging.Info("  (Container CPU limit detected)")
	}
	if hostname, err := os.Hostname(); err == nil {
		logging.Debug("  Hostname:        %s", hostname)
	}
}

func ensureDirectory(path, name string) error {
	logging.Debug("  Checking %s directory: %s", name, path)

	info, err := os.Stat(path)
	if os.IsNotExist(err) {
		if err := os.MkdirAll(path, 0o755); err != nil {
			return fmt.Errorf("failed to create directory: %w", err)
		}
		logging.Debug("    [OK] Created directory: %s", path)
		return nil
	}
	if err != nil {
		return fmt.Errorf("failed to stat directory: %w", err)
	}
	if !info.IsDir() {
		return fmt.Errorf("%s exists but is not a directory", path)
	}
	return nil
}

// checkBinary runs "<bin> -version" and returns its first line.
func checkBinary(bin string) (string, error) {
	path, err := exec.LookPath(bin)
	if err != nil {
		return "", fmt.Errorf("%s not found in PATH", bin)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	output, err := exec.CommandContext(ctx, path, "-version").Output()
	if err != nil {
		return "", fmt.Errorf("failed to get %s version: %w", bin, err)
	}
	first, _, _ := strings.Cut(string(output), "\n")
	return strings.TrimSpace(first), nil
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvBool(key string, defaultValue bool) bool {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue
	}
	parsed, err := strconv.ParseBool(value)
	if err != nil {
		logging.Warn("Invalid boolean value for %s: %q, using default: %v", key, value, defaultValue)
		return defaultValue
	}
	return parsed
}

func getEnvInt(key string, defaultValue int) (int, error) {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue, nil
	}
	parsed, err := strconv.Atoi(value)
	if err != nil {
		return 0, fmt.Errorf("invalid %s %q: %w", key, value, err)
	}
	return parsed, nil
}

func getEnvDuration(key string, defaultValue time.Duration) (time.Duration, error) {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue, nil
	}
	parsed, err := time.ParseDuration(value)
	if err != nil {
		return 0, fmt.Errorf("invalid %s %q: %w", key, value, err)
	}
	return parsed, nil
}
