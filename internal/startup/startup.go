package startup

import (
	"fmt"
	"image/color"
	"os"
	"path/filepath"
	"runtime"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/gorilla/mux"

	"media-ingest/internal/ingest"
	"media-ingest/internal/logging"
	"media-ingest/internal/media"
	"media-ingest/internal/verify"
	"media-ingest/internal/workers"
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

// maxTranscodeWorkers caps automatic sizing on large hosts.
const maxTranscodeWorkers = 8

// minSweepAge keeps the sweeper away from files of uploads still running.
const minSweepAge = time.Minute

// DatabaseFile is the sqlite file name inside DatabaseDir.
const DatabaseFile = "ingest.db"

// Config holds all application configuration
type Config struct {
	StorageDir      string
	DatabaseDir     string
	Port            string
	MetricsPort     string
	MetricsEnabled  bool
	LogHealthChecks bool
	ShutdownTimeout time.Duration

	MaxUploadBytes   int64
	MaxImagePixels   int
	OriginalQuality  int
	ResizeQuality    int
	AssetCeiling     int
	TranscodeWorkers int
	Letterbox        color.NRGBA
	RenditionsFile   string

	SweepEnabled  bool
	SweepInterval time.Duration
	SweepMinAge   time.Duration
	SweepWorkers  int
	SweepDryRun   bool

	// Derived
	DatabasePath string
	Profiles     *Profiles
}

// LoadConfig loads and validates configuration from environment variables
func LoadConfig() (*Config, error) {
	printBanner()
	logSystemInfo()

	section("CONFIGURATION")

	storageDir := getEnv("STORAGE_DIR", "/storage")
	databaseDir := getEnv("DATABASE_DIR", "/database")
	port := getEnv("PORT", "8080")
	metricsPort := getEnv("METRICS_PORT", "9090")
	metricsEnabled := getEnvBool("METRICS_ENABLED", true)
	logHealthChecks := getEnvBool("LOG_HEALTH_CHECKS", true)
	shutdownTimeoutStr := getEnv("SHUTDOWN_TIMEOUT", "30s")
	maxUploadBytes := getEnvInt64("MAX_UPLOAD_BYTES", ingest.DefaultMaxUploadBytes)
	maxImagePixels := getEnvInt("MAX_IMAGE_PIXELS", verify.DefaultMaxPixels)
	originalQuality := getEnvInt("ORIGINAL_QUALITY", media.DefaultOriginalQuality)
	resizeQuality := getEnvInt("RESIZE_QUALITY", media.DefaultResizeQuality)
	assetCeiling := getEnvInt("USER_ASSET_CEILING", 0)
	letterboxStr := getEnv("LETTERBOX_COLOR", "#ffffff")
	renditionsFile := getEnv("RENDITIONS_FILE", "")
	transcodeWorkers := workers.ForCPU(maxTranscodeWorkers)
	sweepEnabled := getEnvBool("SWEEP_ENABLED", true)
	sweepIntervalStr := getEnv("SWEEP_INTERVAL", "6h")
	sweepMinAgeStr := getEnv("SWEEP_MIN_AGE", "1h")
	sweepWorkers := getEnvInt("SWEEP_WORKERS", 3)
	sweepDryRun := getEnvBool("SWEEP_DRY_RUN", false)

	logging.Info("  STORAGE_DIR:         %s", storageDir)
	logging.Info("  DATABASE_DIR:        %s", databaseDir)
	logging.Info("  PORT:                %s", port)
	logging.Info("  METRICS_PORT:        %s", metricsPort)
	logging.Info("  METRICS_ENABLED:     %v", metricsEnabled)
	logging.Info("  LOG_HEALTH_CHECKS:   %v", logHealthChecks)
	logging.Info("  LOG_LEVEL:           %s", logging.GetLevel())
	logging.Info("  MAX_UPLOAD_BYTES:    %d", maxUploadBytes)
	logging.Info("  MAX_IMAGE_PIXELS:    %d", maxImagePixels)
	logging.Info("  ORIGINAL_QUALITY:    %d", originalQuality)
	logging.Info("  RESIZE_QUALITY:      %d", resizeQuality)
	logging.Info("  USER_ASSET_CEILING:  %s", ceilingString(assetCeiling))
	logging.Info("  LETTERBOX_COLOR:     %s", letterboxStr)
	logging.Info("  RENDITIONS_FILE:     %s", valueOrNone(renditionsFile))
	logging.Info("  TRANSCODE_WORKERS:   %d", transcodeWorkers)
	logging.Info("  SWEEP_ENABLED:       %v", sweepEnabled)
	logging.Info("  SWEEP_INTERVAL:      %s", sweepIntervalStr)
	logging.Info("  SWEEP_MIN_AGE:       %s", sweepMinAgeStr)
	logging.Info("  SWEEP_WORKERS:       %d", sweepWorkers)
	logging.Info("  SWEEP_DRY_RUN:       %v", sweepDryRun)

	shutdownTimeout, err := time.ParseDuration(shutdownTimeoutStr)
	if err != nil || shutdownTimeout <= 0 {
		logging.Warn("  Invalid SHUTDOWN_TIMEOUT, using default: 30s")
		shutdownTimeout = 30 * time.Second
	}

	sweepInterval, err := time.ParseDuration(sweepIntervalStr)
	if err != nil || sweepInterval < 0 {
		logging.Warn("  Invalid SWEEP_INTERVAL, using default: 6h")
		sweepInterval = 6 * time.Hour
	}
	sweepMinAge, err := time.ParseDuration(sweepMinAgeStr)
	if err != nil || sweepMinAge < minSweepAge {
		logging.Warn("  SWEEP_MIN_AGE must be at least %v, using default: 1h", minSweepAge)
		sweepMinAge = time.Hour
	}
	if sweepWorkers < 1 {
		sweepWorkers = 1
	}

	if maxUploadBytes <= 0 {
		logging.Warn("  Invalid MAX_UPLOAD_BYTES, using default: %d", ingest.DefaultMaxUploadBytes)
		maxUploadBytes = ingest.DefaultMaxUploadBytes
	}
	if maxImagePixels <= 0 {
		logging.Warn("  Invalid MAX_IMAGE_PIXELS, using default: %d", verify.DefaultMaxPixels)
		maxImagePixels = verify.DefaultMaxPixels
	}
	if assetCeiling < 0 {
		assetCeiling = 0
	}
	originalQuality = validQuality("ORIGINAL_QUALITY", originalQuality, media.DefaultOriginalQuality)
	resizeQuality = validQuality("RESIZE_QUALITY", resizeQuality, media.DefaultResizeQuality)

	letterbox, err := ParseHexColor(letterboxStr)
	if err != nil {
		logging.Warn("  Invalid LETTERBOX_COLOR %q, using default: #ffffff", letterboxStr)
		letterbox = media.White
	}

	profiles := DefaultProfiles()
	if renditionsFile != "" {
		profiles, err = LoadProfiles(renditionsFile)
		if err != nil {
			return nil, err
		}
	}
	logging.Info("  Rendition profiles:  %s (default %q)", strings.Join(profiles.Names(), ", "), profiles.Default())

	section("DIRECTORY SETUP")

	storageDir, err = filepath.Abs(storageDir)
	if err != nil {
		return nil, fmt.Errorf("failed to resolve storage directory path: %w", err)
	}
	logging.Info("  Storage directory (absolute):  %s", storageDir)

	databaseDir, err = filepath.Abs(databaseDir)
	if err != nil {
		return nil, fmt.Errorf("failed to resolve database directory path: %w", err)
	}
	logging.Info("  Database directory (absolute): %s", databaseDir)

	for _, dir := range []struct{ path, name string }{
		{storageDir, "storage"},
		{databaseDir, "database"},
	} {
		if err := ensureDirectory(dir.path, dir.name); err != nil {
			return nil, fmt.Errorf("%s directory error: %w", dir.name, err)
		}
		logging.Debug("  Testing %s directory write access...", dir.name)
		if err := testWriteAccess(dir.path); err != nil {
			return nil, fmt.Errorf("%s directory is not writable: %w", dir.name, err)
		}
		logging.Info("  [OK] %s directory is writable", dir.name)
	}

	config := &Config{
		StorageDir:       storageDir,
		DatabaseDir:      databaseDir,
		Port:             port,
		MetricsPort:      metricsPort,
		MetricsEnabled:   metricsEnabled,
		LogHealthChecks:  logHealthChecks,
		ShutdownTimeout:  shutdownTimeout,
		MaxUploadBytes:   maxUploadBytes,
		MaxImagePixels:   maxImagePixels,
		OriginalQuality:  originalQuality,
		ResizeQuality:    resizeQuality,
		AssetCeiling:     assetCeiling,
		TranscodeWorkers: transcodeWorkers,
		Letterbox:        letterbox,
		RenditionsFile:   renditionsFile,
		DatabasePath:     filepath.Join(databaseDir, DatabaseFile),
		Profiles:         profiles,
		SweepEnabled:     sweepEnabled,
		SweepInterval:    sweepInterval,
		SweepMinAge:      sweepMinAge,
		SweepWorkers:     sweepWorkers,
		SweepDryRun:      sweepDryRun,
	}

	logging.Info("")
	logging.Info("  Feature availability:")
	logging.Info("    Database:    ENABLED (required)")
	logging.Info("    Quota:       %s", enabledString(assetCeiling > 0))
	logging.Info("    Metrics:     %s", enabledString(metricsEnabled))
	logging.Info("    Sweeper:     %s", enabledString(sweepEnabled))

	return config, nil
}

// ParseHexColor parses "#rrggbb" (leading '#' optional) into an opaque colour.
func ParseHexColor(s string) (color.NRGBA, error) {
	hex := strings.TrimPrefix(strings.TrimSpace(s), "#")
	if len(hex) != 6 {
		return color.NRGBA{}, fmt.Errorf("invalid colour %q: want #rrggbb", s)
	}
	v, err := strconv.ParseUint(hex, 16, 32)
	if err != nil {
		return color.NRGBA{}, fmt.Errorf("invalid colour %q: %w", s, err)
	}
	return color.NRGBA{R: uint8(v >> 16), G: uint8(v >> 8), B: uint8(v), A: 255}, nil
}

func validQuality(key string, value, fallback int) int {
	if value < 1 || value > 100 {
		logging.Warn("  Invalid %s %d, using default: %d", key, value, fallback)
		return fallback
	}
	return value
}

func ceilingString(n int) string {
	if n <= 0 {
		return "unlimited"
	}
	return strconv.Itoa(n)
}

func valueOrNone(s string) string {
	if s == "" {
		return "(built-in profiles)"
	}
	return s
}

func enabledString(enabled bool) string {
	if enabled {
		return "ENABLED"
	}
	return "DISABLED"
}

// LogDatabaseInit logs database initialization
func LogDatabaseInit(duration time.Duration) {
	section("DATABASE INITIALIZATION")
	logging.Info("  [OK] Database initialized in %v", duration)
}

// LogVipsInit logs the libvips startup result. Uploads fail with an encode
// error until libvips is available.
func LogVipsInit(err error) {
	section("IMAGE ENCODER INITIALIZATION")
	if err != nil {
		logging.Warn("  libvips unavailable: %v", err)
		logging.Warn("  WebP encoding will fail until libvips is installed")
		return
	}
	logging.Info("  [OK] libvips ready (WebP encoder)")
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
			// Route might not have methods specified (e.g., file server prefix)
			methods = []string{"*"}
		}

		name := route.GetName()

		for _, method := range methods {
			routes = append(routes, RouteInfo{
				Method: method,
				Path:   pathTemplate,
				Name:   name,
			})
		}

		return nil
	})

	return routes, err
}

// LogHTTPRoutes logs the route table at debug level, grouped by the first
// path segment, plus the access-log settings.
func LogHTTPRoutes(router *mux.Router, logHealthChecks bool) {
	section("HTTP SERVER SETUP")

	if logging.IsDebugEnabled() {
		routes, err := GetRoutes(router)
		if err != nil {
			logging.Warn("error walking routes: %v", err)
		}

		groups := make(map[string][]RouteInfo)
		for _, route := range routes {
			group := getRouteGroup(route.Path)
			groups[group] = append(groups[group], route)
		}
		names := make([]string, 0, len(groups))
		for name := range groups {
			names = append(names, name)
		}
		sort.Strings(names)

		logging.Debug("  Registered routes (%d total):", len(routes))
		for _, name := range names {
			label := name
			if label == "" {
				label = "root"
			}
			logging.Debug("  [%s]", label)
			for _, route := range groups[name] {
				logging.Debug("    %-6s %s", route.Method, route.Path)
			}
		}
	}

	logging.Info("  Access log: W3C extended format with request ids")
	if logHealthChecks {
		logging.Info("    Health check logging: ON")
	} else {
		logging.Info("    Health check logging: OFF (set LOG_HEALTH_CHECKS=true to enable)")
	}
}

// getRouteGroup returns the first path segment, or "api/<resource>" for
// API routes.
func getRouteGroup(path string) string {
	first, rest, _ := strings.Cut(strings.TrimPrefix(path, "/"), "/")
	if first == "api" && rest != "" {
		resource, _, _ := strings.Cut(rest, "/")
		return "api/" + resource
	}
	return first
}

// ServerConfig holds configuration for the server startup log
type ServerConfig struct {
	Port            string
	MetricsPort     string
	MetricsEnabled  bool
	StartupDuration time.Duration
}

// LogServerStarted logs the listening addresses once the server is up.
func LogServerStarted(config ServerConfig) {
	section("SERVER STARTED")
	logging.Info("  Startup time:    %v", config.StartupDuration)
	logging.Info("")
	logging.Info("  Endpoints:")
	logging.Info("    Upload API:    POST http://0.0.0.0:%s/api/assets", config.Port)
	logging.Info("    Renditions:    GET  http://0.0.0.0:%s/files/{relativePath}", config.Port)
	logging.Info("    Probes:        GET  http://0.0.0.0:%s/readyz", config.Port)
	if config.MetricsEnabled {
		logging.Info("    Metrics:       GET  http://0.0.0.0:%s/metrics", config.MetricsPort)
	} else {
		logging.Info("    Metrics:       DISABLED")
	}
	logging.Info("")
	logging.Info("  Issue API tokens with: issuetoken create <user-id> [label]")
	logging.Info(rule)
	logging.Info("")
}

// LogShutdownInitiated logs shutdown start
func LogShutdownInitiated(signal string) {
	section(fmt.Sprintf("SHUTDOWN INITIATED (received %s)", signal))
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

// LogFatal logs a fatal error and exits
func LogFatal(format string, args ...interface{}) {
	logging.Fatal(format, args...)
}

const rule = "------------------------------------------------------------"

// section starts a titled block in the startup log.
func section(title string) {
	logging.Info("")
	logging.Info(rule)
	logging.Info(title)
	logging.Info(rule)
}

// Helper functions

func printBanner() {
	banner := `
------------------------------------------------------------
    __  ___         ___          ____                      __
   /  |/  /__  ____/ (_)___ _   /  _/___  ____ ____  _____/ /_
  / /|_/ / _ \/ __  / / __ '/   / // __ \/ __ '/ _ \/ ___/ __/
 / /  / /  __/ /_/ / / /_/ /  _/ // / / / /_/ /  __(__  ) /_
/_/  /_/\___/\__,_/_/\__,_/  /___/_/ /_/\__, /\___/____/\__/
                                       /____/
------------------------------------------------------------`
	fmt.Println(banner)
	logging.Info("  Version:    %s", Version)
	logging.Info("  Commit:     %s", Commit)
	logging.Info("  Build Time: %s", BuildTime)
	logging.Info("  Started:    %s", time.Now().Format(time.RFC1123))
	logging.Info("")
}

func logSystemInfo() {
	section("SYSTEM INFORMATION")
	logging.Info("  Go version:      %s", runtime.Version())
	logging.Info("  OS/Arch:         %s/%s", runtime.GOOS, runtime.GOARCH)
	logging.Info("  CPUs available:  %d", runtime.NumCPU())
	logging.Info("  GOMAXPROCS:      %d", runtime.GOMAXPROCS(0))

	if runtime.GOMAXPROCS(0) < runtime.NumCPU() {
		logging.Info("  (Container CPU limit detected)")
	}

	if logging.IsDebugEnabled() {
		logging.Debug("  Goroutines:      %d", runtime.NumGoroutine())

		if wd, err := os.Getwd(); err == nil {
			logging.Debug("  Working dir:     %s", wd)
		}

		if hostname, err := os.Hostname(); err == nil {
			logging.Debug("  Hostname:        %s", hostname)
		}
	}

	logging.Info("")
}

func ensureDirectory(path, name string) error {
	logging.Debug("  Checking %s directory: %s", name, path)

	info, err := os.Stat(path)
	if os.IsNotExist(err) {
		logging.Debug("    Directory does not exist, creating...")
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
		return fmt.Errorf("path exists but is not a directory")
	}

	logging.Debug("    [OK] Directory exists")
	return nil
}

func testWriteAccess(dir string) error {
	testFile := filepath.Join(dir, ".write-test")
	if err := os.WriteFile(testFile, []byte("test"), 0o644); err != nil {
		return err
	}
	if err := os.Remove(testFile); err != nil {
		logging.Warn("failed to remove write test file %s: %v", testFile, err)
	}
	return nil
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

func getEnvInt(key string, defaultValue int) int {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue
	}
	parsed, err := strconv.Atoi(value)
	if err != nil {
		logging.Warn("Invalid integer value for %s: %q, using default: %d", key, value, defaultValue)
		return defaultValue
	}
	return parsed
}

func getEnvInt64(key string, defaultValue int64) int64 {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue
	}
	parsed, err := strconv.ParseInt(value, 10, 64)
	if err != nil {
		logging.Warn("Invalid integer value for %s: %q, using default: %d", key, value, defaultValue)
		return defaultValue
	}
	return parsed
}
