package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

// Storage drivers.
const (
	StorageLocal      = "local"
	StorageCloudinary = "cloudinary"
)

// Database drivers.
const (
	DatabasePostgres = "postgres"
	DatabaseSQLite   = "sqlite"
)

// Config holds runtime configuration values for the API service.
type Config struct {
	AppName                string
	AppEnv                 string
	AppPort                string
	CORSAllowOrigins       string
	DatabaseDriver         string
	DatabaseURL            string
	RedisURL               string
	NATSURL                string
	EventsChannel          string
	EventsKeepAlive        time.Duration
	JWTSecret              string
	StorageDriver          string
	StorageLocalDir        string
	CloudinaryCloudName    string
	CloudinaryAPIKey       string
	CloudinaryAPISecret    string
	CloudinaryUploadFolder string
	UploadMaxMB            int
	FaceVerifierURL        string
	FaceVerifierTimeout    time.Duration
	FaceVerifierRetries    int
	FaceVerifierStatic     bool
	SeatingCacheTTL        time.Duration
	CheckinRateLimit       int
}

// HTTPAddress returns the address the HTTP server should listen on.
func (c Config) HTTPAddress() string {
	if strings.HasPrefix(c.AppPort, ":") {
		return c.AppPort
	}

	return fmt.Sprintf(":%s", c.AppPort)
}

// Load reads configuration values from environment variables and optional .env file.
func Load() (Config, error) {
	_ = godotenv.Load()

	v := viper.New()
	v.SetEnvPrefix("EXAMGUARD")
	v.AutomaticEnv()
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))

	return fromViper(v)
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("app.name", "ExamGuard API")
	v.SetDefault("app.env", "development")
	v.SetDefault("app.port", "8080")
	v.SetDefault("cors.allow_origins", "*")
	v.SetDefault("database.driver", DatabasePostgres)
	v.SetDefault("events.channel", "examguard")
	v.SetDefault("events.keepalive", "30s")
	v.SetDefault("storage.driver", StorageLocal)
	v.SetDefault("storage.local_dir", "uploads")
	v.SetDefault("cloudinary.folder", "examguard")
	v.SetDefault("upload.max_mb", 10)
	v.SetDefault("face_verifier.timeout", "5s")
	v.SetDefault("face_verifier.retries", 1)
	v.SetDefault("face_verifier.static_match", true)
	v.SetDefault("seating.cache_ttl", "5m")
	v.SetDefault("checkin.rate_limit", 30)
}

func fromViper(v *viper.Viper) (Config, error) {
	setDefaults(v)

	keepAlive, err := parseDuration(v, "events.keepalive")
	if err != nil {
		return Config{}, err
	}
	verifierTimeout, err := parseDuration(v, "face_verifier.timeout")
	if err != nil {
		return Config{}, err
	}
	cacheTTL, err := parseDuration(v, "seating.cache_ttl")
	if err != nil {
		return Config{}, err
	}

	cfg := Config{
		AppName:                v.GetString("app.name"),
		AppEnv:                 v.GetString("app.env"),
		AppPort:                v.GetString("app.port"),
		CORSAllowOrigins:       v.GetString("cors.allow_origins"),
		DatabaseDriver:         strings.ToLower(v.GetString("database.driver")),
		DatabaseURL:            v.GetString("database.url"),
		RedisURL:               v.GetString("redis.url"),
		NATSURL:                v.GetString("nats.url"),
		EventsChannel:          v.GetString("events.channel"),
		EventsKeepAlive:        keepAlive,
		JWTSecret:              v.GetString("jwt.secret"),
		StorageDriver:          strings.ToLower(v.GetString("storage.driver")),
		StorageLocalDir:        v.GetString("storage.local_dir"),
		CloudinaryCloudName:    v.GetString("cloudinary.cloud_name"),
		CloudinaryAPIKey:       v.GetString("cloudinary.api_key"),
		CloudinaryAPISecret:    v.GetString("cloudinary.api_secret"),
		CloudinaryUploadFolder: v.GetString("cloudinary.folder"),
		UploadMaxMB:            v.GetInt("upload.max_mb"),
		FaceVerifierURL:        v.GetString("face_verifier.url"),
		FaceVerifierTimeout:    verifierTimeout,
		FaceVerifierRetries:    v.GetInt("face_verifier.retries"),
		FaceVerifierStatic:     v.GetBool("face_verifier.static_match"),
		SeatingCacheTTL:        cacheTTL,
		CheckinRateLimit:       v.GetInt("checkin.rate_limit"),
	}

	if cfg.JWTSecret == "" {
		return Config{}, fmt.Errorf("jwt secret must be provided")
	}

	switch cfg.DatabaseDriver {
	case DatabasePostgres, DatabaseSQLite:
	default:
		return Config{}, fmt.Errorf("unsupported database driver %q", cfg.DatabaseDriver)
	}

	switch cfg.StorageDriver {
	case StorageLocal, StorageCloudinary:
	default:
		return Config{}, fmt.Errorf("unsupported storage driver %q", cfg.StorageDriver)
	}

	if cfg.UploadMaxMB <= 0 {
		cfg.UploadMaxMB = 10
	}

	if cfg.CheckinRateLimit <= 0 {
		cfg.CheckinRateLimit = 30
	}

	return cfg, nil
}

func parseDuration(v *viper.Viper, key string) (time.Duration, error) {
	raw := strings.TrimSpace(v.GetString(key))
	if raw == "" {
		return 0, nil
	}
	value, err := time.ParseDuration(raw)
	if err != nil {
		return 0, fmt.Errorf("invalid %s: %w", key, err)
	}
	return value, nil
}
