package pipeline

import (
	"log"
	"log/slog"
	"os"

	"github.com/joho/godotenv"
)

// Setup installs the default logger and loads .env files. Commands call it
// first thing in main.
func Setup() {
	logger := slog.New(slog.NewJSONHandler(os.Stdout, nil))
	if os.Getenv("APP_ENV") == "development" {
		logger = slog.New(slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{
			Level: slog.LevelDebug,
		}))
	}
	slog.SetDefault(logger)

	err := godotenv.Load(".env", ".env.local")
	if err != nil {
		slog.Info("no dotenv", "err", err)
	}
}

func MustGetEnv(key string) string {
	value := os.Getenv(key)
	if value == "" {
		log.Fatalf("%s not set", key)
	}
	return value
}

// Env holds the secrets read from the environment. Empty values disable the
// service that needs them.
type Env struct {
	EEProject      string
	EEAccessToken  string
	StreetViewKey  string
	DatabaseURL    string
	RedisAddr      string
	MinIOEndpoint  string
	MinIOAccessKey string
	MinIOSecretKey string
}

func EnvFromOS() Env {
	return Env{
		EEProject:      os.Getenv("EE_PROJECT"),
		EEAccessToken:  os.Getenv("EE_ACCESS_TOKEN"),
		StreetViewKey:  os.Getenv("GOOGLE_STREETVIEW_KEY"),
		DatabaseURL:    os.Getenv("DATABASE_URL"),
		RedisAddr:      os.Getenv("REDIS_ADDR"),
		MinIOEndpoint:  os.Getenv("MINIO_ENDPOINT"),
		MinIOAccessKey: os.Getenv("MINIO_ACCESS_KEY"),
		MinIOSecretKey: os.Getenv("MINIO_SECRET_KEY"),
	}
}
