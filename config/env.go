package config

import (
	"errors"
	"fmt"
	"log/slog"
	"os"
	"strconv"
	"strings"
	"sync"

	"github.com/bytedance/sonic"
	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

const (
	defaultAppEnv       = "development"
	defaultAppPort      = "3000"
	defaultViewsDir     = "views"
	defaultViewEngine   = "html"
	defaultPublicDir    = "public"
	defaultMaxBodyBytes = 50 << 20 // 50 MB
	defaultStaticDisk   = "local"
)

var (
	loadOnce sync.Once
	loadErr  error

	mu     sync.RWMutex
	values = defaultValues()
)

// Load reads config/app.json, config/app.yaml and .env once. Process
// environment variables always win over file values, including when a file
// fails to parse; that failure is logged and returned.
func Load() error {
	loadOnce.Do(func() {
		loadErr = loadFromFiles("config/app.json", "config/app.yaml", ".env")
		if loadErr != nil {
			slog.Warn("config: skipped unreadable sources", "error", loadErr.Error())
		}
	})
	return loadErr
}

func defaultValues() map[string]string {
	return map[string]string{
		"APP_ENV":              defaultAppEnv,
		"APP_PORT":             defaultAppPort,
		"VIEWS_DIR":            defaultViewsDir,
		"VIEW_ENGINE":          defaultViewEngine,
		"PUBLIC_DIR":           defaultPublicDir,
		"MAX_BODY_BYTES":       strconv.Itoa(defaultMaxBodyBytes),
		"LOG_FORMAT":           "",
		"METRICS_ENABLED":      "true",
		"STATIC_DISK":          defaultStaticDisk,
		"S3_BUCKET":            "",
		"S3_PREFIX":            "",
		"S3_REGION":            "us-east-1",
		"S3_KEY":               "",
		"S3_SECRET":            "",
		"S3_ENDPOINT":          "",
		"LOG_MONGO_URI":        "",
		"LOG_MONGO_DB":         "webstart",
		"LOG_MONGO_COLLECTION": "logs",
	}
}

func AppEnv() string {
	_ = Load()
	return get("APP_ENV", defaultAppEnv)
}

func AppPort() string {
	_ = Load()
	return get("APP_PORT", defaultAppPort)
}

// ── Snapshot ─────────────────────────────────────────────────────────────────

// App is an immutable snapshot of the settings the application is assembled
// from. Build it once at startup with Current and pass it by value.
type App struct {
	Env            string
	Port           string
	ViewsDir       string
	ViewEngine     string
	PublicDir      string
	MaxBodyBytes   int64
	LogFormat      string
	MetricsEnabled bool
	StaticDisk     string
	S3             S3
	Mongo          Mongo
}

// S3 holds the object storage settings used when STATIC_DISK=s3.
type S3 struct {
	Bucket   string
	Prefix   string
	Region   string
	Key      string
	Secret   string
	Endpoint string
}

// Mongo holds the optional log sink settings.
type Mongo struct {
	URI        string
	Database   string
	Collection string
}

// IsDevelopment reports whether verbose error rendering is enabled.
func (a App) IsDevelopment() bool { return a.Env == "development" }

// Current returns the settings built from defaults, config files and the
// process environment. A malformed file is reported once by Load; the
// remaining sources still apply.
func Current() App {
	_ = Load()

	return App{
		Env:            get("APP_ENV", defaultAppEnv),
		Port:           get("APP_PORT", defaultAppPort),
		ViewsDir:       get("VIEWS_DIR", defaultViewsDir),
		ViewEngine:     strings.ToLower(get("VIEW_ENGINE", defaultViewEngine)),
		PublicDir:      get("PUBLIC_DIR", defaultPublicDir),
		MaxBodyBytes:   getInt64("MAX_BODY_BYTES", defaultMaxBodyBytes),
		LogFormat:      get("LOG_FORMAT", ""),
		MetricsEnabled: getBool("METRICS_ENABLED", true),
		StaticDisk:     strings.ToLower(get("STATIC_DISK", defaultStaticDisk)),
		S3: S3{
			Bucket:   get("S3_BUCKET", ""),
			Prefix:   get("S3_PREFIX", ""),
			Region:   get("S3_REGION", "us-east-1"),
			Key:      get("S3_KEY", ""),
			Secret:   get("S3_SECRET", ""),
			Endpoint: get("S3_ENDPOINT", ""),
		},
		Mongo: Mongo{
			URI:        get("LOG_MONGO_URI", ""),
			Database:   get("LOG_MONGO_DB", "webstart"),
			Collection: get("LOG_MONGO_COLLECTION", "logs"),
		},
	}
}

// Defaults returns the built-in settings without touching files or the
// environment. Handy in tests.
func Defaults() App {
	return App{
		Env:            defaultAppEnv,
		Port:           defaultAppPort,
		ViewsDir:       defaultViewsDir,
		ViewEngine:     defaultViewEngine,
		PublicDir:      defaultPublicDir,
		MaxBodyBytes:   defaultMaxBodyBytes,
		MetricsEnabled: true,
		StaticDisk:     defaultStaticDisk,
		S3:             S3{Region: "us-east-1"},
		Mongo:          Mongo{Database: "webstart", Collection: "logs"},
	}
}

// ── Loading ──────────────────────────────────────────────────────────────────

// loadFromFiles merges every readable source even when one of them is
// malformed; the process environment is always applied last. The returned
// error joins the failures of the sources that were skipped.
func loadFromFiles(jsonPath, yamlPath, envPath string) error {
	loaded := defaultValues()

	var errs []error
	merge := func(err error) {
		if err != nil && !os.IsNotExist(err) {
			errs = append(errs, err)
		}
	}

	merge(mergeJSONConfig(jsonPath, loaded))
	merge(mergeYAMLConfig(yamlPath, loaded))
	merge(mergeDotEnv(envPath, loaded))
	mergeProcessEnv(loaded)

	mu.Lock()
	values = loaded
	mu.Unlock()

	return errors.Join(errs...)
}

func mergeJSONConfig(path string, out map[string]string) error {
	file, err := os.Open(path)
	if err != nil {
		return err
	}
	defer file.Close()

	var raw map[string]interface{}
	if err := sonic.ConfigDefault.NewDecoder(file).Decode(&raw); err != nil {
		return fmt.Errorf("decode %s: %w", path, err)
	}

	mergeRaw(raw, out)
	return nil
}

func mergeYAMLConfig(path string, out map[string]string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return err
	}

	var raw map[string]interface{}
	if err := yaml.Unmarshal(data, &raw); err != nil {
		return fmt.Errorf("decode %s: %w", path, err)
	}

	mergeRaw(raw, out)
	return nil
}

// mergeRaw copies scalar values; nested objects are ignored.
func mergeRaw(raw map[string]interface{}, out map[string]string) {
	for key, val := range raw {
		k := strings.ToUpper(strings.TrimSpace(key))
		if k == "" {
			continue
		}

		switch v := val.(type) {
		case string:
			out[k] = strings.TrimSpace(v)
		case bool, int, int64, float64:
			out[k] = fmt.Sprint(v)
		}
	}
}

func mergeDotEnv(path string, out map[string]string) error {
	env, err := godotenv.Read(path)
	if err != nil {
		if os.IsNotExist(err) {
			return err
		}
		return fmt.Errorf("read %s: %w", path, err)
	}

	for key, value := range env {
		k := strings.ToUpper(strings.TrimSpace(key))
		if k == "" {
			continue
		}
		out[k] = strings.TrimSpace(value)
	}
	return nil
}

func mergeProcessEnv(out map[string]string) {
	for key := range out {
		if v, ok := os.LookupEnv(key); ok {
			out[key] = strings.TrimSpace(v)
		}
	}
}

func get(key, fallback string) string {
	mu.RLock()
	defer mu.RUnlock()

	if value := strings.TrimSpace(values[key]); value != "" {
		return value
	}

	return fallback
}

func getInt64(key string, fallback int64) int64 {
	n, err := strconv.ParseInt(get(key, ""), 10, 64)
	if err != nil || n <= 0 {
		return fallback
	}
	return n
}

func getBool(key string, fallback bool) bool {
	b, err := strconv.ParseBool(get(key, ""))
	if err != nil {
		return fallback
	}
	return b
}

// Get reads any config key by name with an optional fallback.
// Keys from .env, app.json and app.yaml are available after config.Load().
func Get(key, fallback string) string {
	_ = Load()
	return get(key, fallback)
}
