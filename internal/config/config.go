package config

import (
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"
)

// placeholderAPIKeys are values shipped in example configs. They are treated
// the same as an empty key: the server runs in demo mode.
var placeholderAPIKeys = map[string]bool{
	"demo":                                  true,
	"your_openweathermap_api_key_here":      true,
	"put you own api from open weather app": true,
}

type Config struct {
	AppEnv   string
	LogLevel slog.Level
	HTTPAddr string

	// StaticDir is the absolute path to the directory served at /static/.
	// Set via STATIC_DIR (relative paths are resolved against the process working directory at startup).
	StaticDir string

	// OWMAPIKey is the single credential shared by the geocoding and air
	// pollution gateways. Empty means demo mode.
	OWMAPIKey       string
	OWMBaseURL      string
	OWMCountry      string
	UpstreamTimeout time.Duration

	DefaultLat  float64
	DefaultLon  float64
	DefaultName string

	MapDefaultZoom   int
	MapResultZoom    int
	MapMaxZoom       int
	MapMinZoom       int
	MapReadyInterval time.Duration
	MapReadyAttempts int
	NeighborPoints   int

	SQLiteDriver          string
	SQLiteDSN             string
	SQLitePath            string
	SQLiteMaxOpenConns    int
	SQLiteMaxIdleConns    int
	SQLiteConnMaxLifetime time.Duration

	MQTTEnabled  bool
	MQTTBroker   string
	MQTTPort     int
	MQTTClientID string
	MQTTTopic    string

	TracingEnabled     bool
	TracingExporter    string
	OTLPEndpoint       string
	TracingSampleRatio float64
}

// DemoMode reports whether no usable upstream credential is configured.
func (c Config) DemoMode() bool {
	return c.OWMAPIKey == ""
}

func LoadFromEnv() (Config, error) {
	appEnv := strings.TrimSpace(os.Getenv("APP_ENV"))
	if appEnv == "" {
		appEnv = "dev"
	}
	switch appEnv {
	case "dev", "prod":
	default:
		return Config{}, fmt.Errorf("invalid APP_ENV %q (allowed: dev, prod)", appEnv)
	}

	logLevelStr := strings.TrimSpace(os.Getenv("LOG_LEVEL"))
	if logLevelStr == "" {
		logLevelStr = "info"
	}
	level, err := parseLogLevel(logLevelStr)
	if err != nil {
		return Config{}, err
	}

	httpAddr := envOr("HTTP_ADDR", ":8080")

	staticDir := envOr("STATIC_DIR", "static")
	staticDir, err = filepath.Abs(staticDir)
	if err != nil {
		return Config{}, fmt.Errorf("STATIC_DIR %q: %w", staticDir, err)
	}

	apiKey := strings.TrimSpace(os.Getenv("OWM_API_KEY"))
	if placeholderAPIKeys[apiKey] {
		apiKey = ""
	}
	baseURL := strings.TrimRight(envOr("OWM_BASE_URL", "https://api.openweathermap.org"), "/")
	country := strings.ToUpper(envOr("OWM_COUNTRY", "IN"))

	upstreamTimeout, err := durationEnv("UPSTREAM_TIMEOUT", "10s")
	if err != nil {
		return Config{}, err
	}
	if upstreamTimeout <= 0 {
		return Config{}, fmt.Errorf("UPSTREAM_TIMEOUT must be > 0, got %s", upstreamTimeout)
	}

	defaultLat, err := floatEnv("DEFAULT_LAT", "28.6139")
	if err != nil {
		return Config{}, err
	}
	defaultLon, err := floatEnv("DEFAULT_LON", "77.2090")
	if err != nil {
		return Config{}, err
	}
	if defaultLat < -90 || defaultLat > 90 || defaultLon < -180 || defaultLon > 180 {
		return Config{}, fmt.Errorf("DEFAULT_LAT/DEFAULT_LON out of range: %v, %v", defaultLat, defaultLon)
	}
	defaultName := envOr("DEFAULT_NAME", "New Delhi, India")

	mapDefaultZoom, err := intEnv("MAP_DEFAULT_ZOOM", "10")
	if err != nil {
		return Config{}, err
	}
	mapResultZoom, err := intEnv("MAP_RESULT_ZOOM", "12")
	if err != nil {
		return Config{}, err
	}
	mapMaxZoom, err := intEnv("MAP_MAX_ZOOM", "18")
	if err != nil {
		return Config{}, err
	}
	mapMinZoom, err := intEnv("MAP_MIN_ZOOM", "3")
	if err != nil {
		return Config{}, err
	}
	if mapMinZoom > mapMaxZoom {
		return Config{}, fmt.Errorf("MAP_MIN_ZOOM (%d) must be <= MAP_MAX_ZOOM (%d)", mapMinZoom, mapMaxZoom)
	}
	mapReadyInterval, err := durationEnv("MAP_READY_INTERVAL", "100ms")
	if err != nil {
		return Config{}, err
	}
	mapReadyAttempts, err := intEnv("MAP_READY_ATTEMPTS", "50")
	if err != nil {
		return Config{}, err
	}
	if mapReadyAttempts <= 0 {
		return Config{}, fmt.Errorf("MAP_READY_ATTEMPTS must be > 0, got %d", mapReadyAttempts)
	}
	neighborPoints, err := intEnv("NEIGHBOR_POINTS", "8")
	if err != nil {
		return Config{}, err
	}
	if neighborPoints < 0 {
		return Config{}, fmt.Errorf("NEIGHBOR_POINTS must be >= 0, got %d", neighborPoints)
	}

	driver := envOr("DB_DRIVER", "sqlite3")
	dsn := strings.TrimSpace(os.Getenv("DB_DSN"))
	path := envOr("SQLITE_PATH", "../dev/sqlite/app.db")

	maxOpenConns, err := intEnv("DB_MAX_OPEN_CONNS", "1")
	if err != nil {
		return Config{}, err
	}
	maxIdleConns, err := intEnv("DB_MAX_IDLE_CONNS", "1")
	if err != nil {
		return Config{}, err
	}
	connMaxLifetime, err := durationEnv("DB_CONN_MAX_LIFETIME", "0s")
	if err != nil {
		return Config{}, err
	}

	mqttEnabled, err := boolEnv("MQTT_ENABLED", "false")
	if err != nil {
		return Config{}, err
	}
	mqttBroker := envOr("MQTT_BROKER", "localhost")
	mqttPort, err := intEnv("MQTT_PORT", "1883")
	if err != nil {
		return Config{}, err
	}
	mqttClientID := envOr("MQTT_CLIENT_ID", "aqi-explorer")
	mqttTopic := envOr("MQTT_TOPIC", "aqi/readings")

	tracingEnabled, err := boolEnv("TRACING_ENABLED", "false")
	if err != nil {
		return Config{}, err
	}
	tracingExporter := strings.ToLower(envOr("TRACING_EXPORTER", "stdout"))
	switch tracingExporter {
	case "stdout", "otlp":
	default:
		return Config{}, fmt.Errorf("invalid TRACING_EXPORTER %q (allowed: stdout, otlp)", tracingExporter)
	}
	otlpEndpoint := envOr("OTLP_ENDPOINT", "localhost:4317")
	sampleRatio, err := floatEnv("TRACING_SAMPLE_RATIO", "1")
	if err != nil {
		return Config{}, err
	}
	if sampleRatio < 0 || sampleRatio > 1 {
		return Config{}, fmt.Errorf("TRACING_SAMPLE_RATIO must be within [0,1], got %v", sampleRatio)
	}

	return Config{
		AppEnv:    appEnv,
		LogLevel:  level,
		HTTPAddr:  httpAddr,
		StaticDir: staticDir,

		OWMAPIKey:       apiKey,
		OWMBaseURL:      baseURL,
		OWMCountry:      country,
		UpstreamTimeout: upstreamTimeout,

		DefaultLat:  defaultLat,
		DefaultLon:  defaultLon,
		DefaultName: defaultName,

		MapDefaultZoom:   mapDefaultZoom,
		MapResultZoom:    mapResultZoom,
		MapMaxZoom:       mapMaxZoom,
		MapMinZoom:       mapMinZoom,
		MapReadyInterval: mapReadyInterval,
		MapReadyAttempts: mapReadyAttempts,
		NeighborPoints:   neighborPoints,

		SQLiteDriver:          driver,
		SQLiteDSN:             dsn,
		SQLitePath:            path,
		SQLiteMaxOpenConns:    maxOpenConns,
		SQLiteMaxIdleConns:    maxIdleConns,
		SQLiteConnMaxLifetime: connMaxLifetime,

		MQTTEnabled:  mqttEnabled,
		MQTTBroker:   mqttBroker,
		MQTTPort:     mqttPort,
		MQTTClientID: mqttClientID,
		MQTTTopic:    mqttTopic,

		TracingEnabled:     tracingEnabled,
		TracingExporter:    tracingExporter,
		OTLPEndpoint:       otlpEndpoint,
		TracingSampleRatio: sampleRatio,
	}, nil
}

func envOr(key, def string) string {
	v := strings.TrimSpace(os.Getenv(key))
	if v == "" {
		return def
	}
	return v
}

func intEnv(key, def string) (int, error) {
	s := envOr(key, def)
	n, err := strconv.Atoi(s)
	if err != nil {
		return 0, fmt.Errorf("invalid %s %q: %w", key, s, err)
	}
	return n, nil
}

func floatEnv(key, def string) (float64, error) {
	s := envOr(key, def)
	f, err := strconv.ParseFloat(s, 64)
	if err != nil {
		return 0, fmt.Errorf("invalid %s %q: %w", key, s, err)
	}
	return f, nil
}

func durationEnv(key, def string) (time.Duration, error) {
	s := envOr(key, def)
	d, err := time.ParseDuration(s)
	if err != nil {
		return 0, fmt.Errorf("invalid %s %q: %w", key, s, err)
	}
	return d, nil
}

func boolEnv(key, def string) (bool, error) {
	s := envOr(key, def)
	b, err := strconv.ParseBool(s)
	if err != nil {
		return false, fmt.Errorf("invalid %s %q: %w", key, s, err)
	}
	return b, nil
}

func parseLogLevel(s string) (slog.Level, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "debug":
		return slog.LevelDebug, nil
	case "info":
		return slog.LevelInfo, nil
	case "warn", "warning":
		return slog.LevelWarn, nil
	case "error":
		return slog.LevelError, nil
	default:
		return slog.LevelInfo, fmt.Errorf("invalid LOG_LEVEL %q (allowed: debug, info, warn, error)", s)
	}
}
