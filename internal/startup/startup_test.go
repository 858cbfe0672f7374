package startup

import (
	"image/color"
	"net/http"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/gorilla/mux"

	"media-ingest/internal/ingest"
	"media-ingest/internal/media"
)

func TestGetEnv(t *testing.T) {
	t.Setenv("STARTUP_TEST_STRING", "value")

	if got := getEnv("STARTUP_TEST_STRING", "fallback"); got != "value" {
		t.Errorf("getEnv() = %q, want %q", got, "value")
	}
	if got := getEnv("STARTUP_TEST_UNSET", "fallback"); got != "fallback" {
		t.Errorf("getEnv() = %q, want %q", got, "fallback")
	}
}

func TestGetEnvBool(t *testing.T) {
	tests := []struct {
		name  string
		value string
		def   bool
		want  bool
	}{
		{"true", "true", false, true},
		{"one", "1", false, true},
		{"false", "false", true, false},
		{"empty uses default", "", true, true},
		{"invalid uses default", "maybe", true, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Setenv("STARTUP_TEST_BOOL", tt.value)
			if got := getEnvBool("STARTUP_TEST_BOOL", tt.def); got != tt.want {
				t.Errorf("getEnvBool(%q) = %v, want %v", tt.value, got, tt.want)
			}
		})
	}
}

func TestGetEnvInt(t *testing.T) {
	tests := []struct {
		name  string
		value string
		want  int
	}{
		{"number", "42", 42},
		{"negative", "-3", -3},
		{"empty uses default", "", 7},
		{"invalid uses default", "seven", 7},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Setenv("STARTUP_TEST_INT", tt.value)
			if got := getEnvInt("STARTUP_TEST_INT", 7); got != tt.want {
				t.Errorf("getEnvInt(%q) = %d, want %d", tt.value, got, tt.want)
			}
		})
	}
}

func TestGetEnvInt64(t *testing.T) {
	t.Setenv("STARTUP_TEST_INT64", "21474836480")
	if got := getEnvInt64("STARTUP_TEST_INT64", 1); got != 21474836480 {
		t.Errorf("getEnvInt64() = %d, want 21474836480", got)
	}

	t.Setenv("STARTUP_TEST_INT64", "1.5")
	if got := getEnvInt64("STARTUP_TEST_INT64", 1); got != 1 {
		t.Errorf("getEnvInt64() with invalid value = %d, want 1", got)
	}
}

func TestParseHexColor(t *testing.T) {
	tests := []struct {
		input   string
		want    color.NRGBA
		wantErr bool
	}{
		{input: "#ffffff", want: color.NRGBA{255, 255, 255, 255}},
		{input: "000000", want: color.NRGBA{0, 0, 0, 255}},
		{input: " #1a2B3c ", want: color.NRGBA{0x1a, 0x2b, 0x3c, 255}},
		{input: "#fff", wantErr: true},
		{input: "#gggggg", wantErr: true},
		{input: "", wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.input, func(t *testing.T) {
			got, err := ParseHexColor(tt.input)
			if tt.wantErr {
				if err == nil {
					t.Errorf("ParseHexColor(%q) expected error, got %v", tt.input, got)
				}
				return
			}
			if err != nil {
				t.Fatalf("ParseHexColor(%q) unexpected error: %v", tt.input, err)
			}
			if got != tt.want {
				t.Errorf("ParseHexColor(%q) = %v, want %v", tt.input, got, tt.want)
			}
		})
	}
}

func setConfigDirs(t *testing.T) (storage, database string) {
	t.Helper()
	root := t.TempDir()
	storage = filepath.Join(root, "storage")
	database = filepath.Join(root, "database")
	t.Setenv("STORAGE_DIR", storage)
	t.Setenv("DATABASE_DIR", database)
	return storage, database
}

func TestLoadConfigDefaults(t *testing.T) {
	storage, database := setConfigDirs(t)
	for _, key := range []string{
		"PORT", "METRICS_PORT", "METRICS_ENABLED", "MAX_UPLOAD_BYTES", "USER_ASSET_CEILING",
		"ORIGINAL_QUALITY", "RESIZE_QUALITY", "LETTERBOX_COLOR", "RENDITIONS_FILE", "SHUTDOWN_TIMEOUT",
		"SWEEP_ENABLED", "SWEEP_INTERVAL", "SWEEP_MIN_AGE", "SWEEP_WORKERS", "SWEEP_DRY_RUN",
	} {
		t.Setenv(key, "")
	}

	cfg, err := LoadConfig()
	if err != nil {
		t.Fatalf("LoadConfig() error: %v", err)
	}

	if cfg.StorageDir != storage {
		t.Errorf("StorageDir = %q, want %q", cfg.StorageDir, storage)
	}
	if cfg.DatabasePath != filepath.Join(database, DatabaseFile) {
		t.Errorf("DatabasePath = %q", cfg.DatabasePath)
	}
	if cfg.Port != "8080" || cfg.MetricsPort != "9090" {
		t.Errorf("ports = %s/%s, want 8080/9090", cfg.Port, cfg.MetricsPort)
	}
	if !cfg.MetricsEnabled {
		t.Error("MetricsEnabled should default to true")
	}
	if cfg.MaxUploadBytes != ingest.DefaultMaxUploadBytes {
		t.Errorf("MaxUploadBytes = %d, want %d", cfg.MaxUploadBytes, ingest.DefaultMaxUploadBytes)
	}
	if cfg.AssetCeiling != 0 {
		t.Errorf("AssetCeiling = %d, want 0", cfg.AssetCeiling)
	}
	if cfg.OriginalQuality != media.DefaultOriginalQuality || cfg.ResizeQuality != media.DefaultResizeQuality {
		t.Errorf("qualities = %d/%d", cfg.OriginalQuality, cfg.ResizeQuality)
	}
	if cfg.Letterbox != media.White {
		t.Errorf("Letterbox = %v, want white", cfg.Letterbox)
	}
	if cfg.ShutdownTimeout != 30*time.Second {
		t.Errorf("ShutdownTimeout = %v, want 30s", cfg.ShutdownTimeout)
	}
	if cfg.TranscodeWorkers < 1 {
		t.Errorf("TranscodeWorkers = %d, want >= 1", cfg.TranscodeWorkers)
	}
	if cfg.Profiles.Default() != DefaultProfileName {
		t.Errorf("default profile = %q", cfg.Profiles.Default())
	}
	if !cfg.SweepEnabled || cfg.SweepDryRun {
		t.Errorf("sweep enabled = %v, dry run = %v", cfg.SweepEnabled, cfg.SweepDryRun)
	}
	if cfg.SweepInterval != 6*time.Hour || cfg.SweepMinAge != time.Hour || cfg.SweepWorkers != 3 {
		t.Errorf("sweep = %v / %v / %d workers", cfg.SweepInterval, cfg.SweepMinAge, cfg.SweepWorkers)
	}

	for _, dir := range []string{storage, database} {
		if info, err := os.Stat(dir); err != nil || !info.IsDir() {
			t.Errorf("expected %s to be created", dir)
		}
	}
}

func TestLoadConfigOverrides(t *testing.T) {
	setConfigDirs(t)
	t.Setenv("MAX_UPLOAD_BYTES", "2048")
	t.Setenv("USER_ASSET_CEILING", "5")
	t.Setenv("ORIGINAL_QUALITY", "150")
	t.Setenv("RESIZE_QUALITY", "70")
	t.Setenv("LETTERBOX_COLOR", "#000000")
	t.Setenv("SHUTDOWN_TIMEOUT", "5s")
	t.Setenv("RENDITIONS_FILE", "")
	t.Setenv("SWEEP_INTERVAL", "0")
	t.Setenv("SWEEP_MIN_AGE", "10s")
	t.Setenv("SWEEP_WORKERS", "-2")
	t.Setenv("SWEEP_DRY_RUN", "true")

	cfg, err := LoadConfig()
	if err != nil {
		t.Fatalf("LoadConfig() error: %v", err)
	}

	if cfg.MaxUploadBytes != 2048 {
		t.Errorf("MaxUploadBytes = %d, want 2048", cfg.MaxUploadBytes)
	}
	if cfg.AssetCeiling != 5 {
		t.Errorf("AssetCeiling = %d, want 5", cfg.AssetCeiling)
	}
	if cfg.OriginalQuality != media.DefaultOriginalQuality {
		t.Errorf("out-of-range ORIGINAL_QUALITY should fall back, got %d", cfg.OriginalQuality)
	}
	if cfg.ResizeQuality != 70 {
		t.Errorf("ResizeQuality = %d, want 70", cfg.ResizeQuality)
	}
	if cfg.Letterbox != (color.NRGBA{0, 0, 0, 255}) {
		t.Errorf("Letterbox = %v, want black", cfg.Letterbox)
	}
	if cfg.ShutdownTimeout != 5*time.Second {
		t.Errorf("ShutdownTimeout = %v, want 5s", cfg.ShutdownTimeout)
	}
	if cfg.SweepInterval != 0 {
		t.Errorf("SweepInterval = %v, want 0", cfg.SweepInterval)
	}
	if cfg.SweepMinAge != time.Hour {
		t.Errorf("SWEEP_MIN_AGE below the minimum should fall back, got %v", cfg.SweepMinAge)
	}
	if cfg.SweepWorkers != 1 || !cfg.SweepDryRun {
		t.Errorf("SweepWorkers = %d, SweepDryRun = %v", cfg.SweepWorkers, cfg.SweepDryRun)
	}
}

func TestLoadConfigRenditionsFile(t *testing.T) {
	setConfigDirs(t)
	path := filepath.Join(t.TempDir(), "renditions.yaml")
	content := `
default: web
profiles:
  web:
    - {name: thumbnail, width: 100, height: 100, mode: cover}
`
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatalf("failed to write profiles: %v", err)
	}
	t.Setenv("RENDITIONS_FILE", path)

	cfg, err := LoadConfig()
	if err != nil {
		t.Fatalf("LoadConfig() error: %v", err)
	}
	if cfg.Profiles.Default() != "web" {
		t.Errorf("default profile = %q, want web", cfg.Profiles.Default())
	}

	t.Setenv("RENDITIONS_FILE", filepath.Join(t.TempDir(), "missing.yaml"))
	if _, err := LoadConfig(); err == nil {
		t.Error("LoadConfig() with missing renditions file should fail")
	}
}

func TestLoadConfigStorageIsFile(t *testing.T) {
	storage, _ := setConfigDirs(t)
	if err := os.WriteFile(storage, []byte("not a dir"), 0o644); err != nil {
		t.Fatalf("failed to write file: %v", err)
	}

	if _, err := LoadConfig(); err == nil {
		t.Error("LoadConfig() should fail when STORAGE_DIR is a file")
	}
}

func TestGetRouteGroup(t *testing.T) {
	tests := []struct {
		path string
		want string
	}{
		{"/api/assets", "api/assets"},
		{"/api/assets/{id}", "api/assets"},
		{"/api/quota", "api/quota"},
		{"/files/", "files"},
		{"/healthz", "healthz"},
		{"/", ""},
	}

	for _, tt := range tests {
		t.Run(tt.path, func(t *testing.T) {
			if got := getRouteGroup(tt.path); got != tt.want {
				t.Errorf("getRouteGroup(%q) = %q, want %q", tt.path, got, tt.want)
			}
		})
	}
}

func TestGetRoutes(t *testing.T) {
	router := mux.NewRouter()
	noop := func(_ http.ResponseWriter, _ *http.Request) {}
	router.HandleFunc("/api/assets", noop).Methods("GET", "POST")
	router.HandleFunc("/healthz", noop).Methods("GET").Name("health")
	router.PathPrefix("/files/").HandlerFunc(noop)

	routes, err := GetRoutes(router)
	if err != nil {
		t.Fatalf("GetRoutes() error: %v", err)
	}
	if len(routes) != 4 {
		t.Fatalf("GetRoutes() returned %d routes, want 4: %+v", len(routes), routes)
	}

	var sawHealth, sawWildcard bool
	for _, r := range routes {
		if r.Path == "/healthz" && r.Name == "health" {
			sawHealth = true
		}
		if r.Path == "/files/" && r.Method == "*" {
			sawWildcard = true
		}
	}
	if !sawHealth {
		t.Error("named health route missing")
	}
	if !sawWildcard {
		t.Error("method-less prefix route should be reported as *")
	}
}

func TestGetBuildInfo(t *testing.T) {
	info := GetBuildInfo()
	if info.Version != Version || info.GoVersion == "" || info.OS == "" {
		t.Errorf("unexpected build info: %+v", info)
	}
}
