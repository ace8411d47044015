package config

import (
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

// Config holds process configuration for the poller, exporter and API
type Config struct {
	// Database
	DatabasePath      string
	RetentionDuration time.Duration

	// Inputs
	OperatorConfig  string
	StationsGeoJSON string
	StateDir        string

	// Timetable backend
	HafasBaseURL string
	HafasTimeout time.Duration
	MaxTrips     int

	// Publishing
	OutputDir     string
	Publish       bool
	PublishMaxAge time.Duration

	// Serving
	MetricsAddr    string
	Port           string
	AllowedOrigins []string
}

// LoadEnvFiles loads .env and then .env.local, the latter overriding.
// Missing files are ignored.
func LoadEnvFiles() {
	_ = godotenv.Load(".env")
	_ = godotenv.Overload(".env.local")
}

// Load reads configuration from environment variables with sensible defaults
func Load() *Config {
	return &Config{
		// Database
		DatabasePath:      getEnv("SQLITE_DATABASE", "gtfs.sqlite"),
		RetentionDuration: time.Duration(getEnvInt("RUN_RETENTION_DAYS", 30)) * 24 * time.Hour,

		// Inputs
		OperatorConfig:  getEnv("OPERATOR_CONFIG", "operator.yml"),
		StationsGeoJSON: getEnv("STATIONS_GEOJSON", "stations.geojson"),
		StateDir:        getEnv("STATE_DIR", "."),

		// Timetable backend
		HafasBaseURL: getEnv("HAFAS_BASE_URL", "https://v6.db.transport.rest"),
		HafasTimeout: time.Duration(getEnvInt("HAFAS_TIMEOUT_SECONDS", 30)) * time.Second,
		MaxTrips:     getEnvInt("MAX_TRIPS", 600),

		// Publishing
		OutputDir:     getEnv("OUTPUT_DIR", "out"),
		Publish:       getEnvBool("PUBLISH", false),
		PublishMaxAge: time.Duration(getEnvInt("PUBLISH_MAX_AGE_HOURS", 0)) * time.Hour,

		// Serving
		MetricsAddr:    getEnv("METRICS_ADDR", ""),
		Port:           getEnv("PORT", "8081"),
		AllowedOrigins: getEnvList("ALLOWED_ORIGINS", []string{"http://localhost:5173"}),
	}
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvInt(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if intValue, err := strconv.Atoi(value); err == nil {
			return intValue
		}
	}
	return defaultValue
}

func getEnvBool(key string, defaultValue bool) bool {
	if value := os.Getenv(key); value != "" {
		if b, err := strconv.ParseBool(value); err == nil {
			return b
		}
	}
	return defaultValue
}

func getEnvList(key string, defaultValue []string) []string {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue
	}
	var out []string
	for _, part := range strings.Split(value, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}
