package config

import (
	"log"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

const (
	StoreBackendPostgres = "postgres"
	StoreBackendMemory   = "memory"
)

type Config struct {
	APIPort     string
	CORSOrigins []string
	JWTKey      []byte
	JWTExp      time.Duration

	LogLevel  string
	LogFormat string

	StoreBackend  string
	DBHost        string
	DBPort        string
	DBUser        string
	DBPassword    string
	DBName        string
	DBSslMode     string
	DBConnStr     string
	DBAutoMigrate bool

	RedisAddr     string
	RedisPassword string
	RedisDB       int

	JudgeQueueName      string
	JudgeLockTTLSeconds int
	JudgeWorkers        int
	JudgeMaxAttempts    int
	JudgeBaseURL        string
	JudgeAPIKey         string
	JudgeAPIHost        string
	JudgePollInterval   time.Duration
	JudgeTimeout        time.Duration

	RoomCodeAttempts       int
	QuickplayClaimAttempts int
	DraftTTL               time.Duration
	ScoreClampNegative     bool
}

var AppConfig *Config

func Load() {
	if err := godotenv.Load(); err != nil {
		log.Println("No .env file found, relying on environment variables")
	}

	AppConfig = &Config{
		APIPort:     getEnv("API_PORT", "8080"),
		CORSOrigins: getEnvAsList("CORS_ALLOWED_ORIGINS"),
		JWTKey:      []byte(getEnv("JWT_SECRET", "defaultsecret")),
		JWTExp:      time.Duration(getEnvAsInt("JWT_EXPIRATION_HOURS", 72)) * time.Hour,
		LogLevel:    getEnv("LOG_LEVEL", "info"),
		LogFormat:   getEnv("LOG_FORMAT", "json"),

		StoreBackend:  strings.ToLower(getEnv("STORE_BACKEND", StoreBackendPostgres)),
		DBHost:        getEnv("DB_HOST", "localhost"),
		DBPort:        getEnv("DB_PORT", "5432"),
		DBUser:        getEnv("DB_USER", "user"),
		DBPassword:    getEnv("DB_PASSWORD", "password"),
		DBName:        getEnv("DB_NAME", "code_duel_db"),
		DBSslMode:     getEnv("DB_SSLMODE", "disable"),
		DBAutoMigrate: getEnvAsBool("DB_AUTO_MIGRATE", false),

		RedisAddr:     getEnv("REDIS_ADDR", "localhost:6379"),
		RedisPassword: getEnv("REDIS_PASSWORD", ""),
		RedisDB:       getEnvAsInt("REDIS_DB", 0),

		JudgeQueueName:      getEnv("JUDGE_QUEUE_NAME", "judge_submissions_queue"),
		JudgeLockTTLSeconds: getEnvAsInt("JUDGE_LOCK_TTL_SECONDS", 300),
		JudgeWorkers:        getEnvAsInt("JUDGE_WORKERS", 8),
		JudgeMaxAttempts:    getEnvAsInt("JUDGE_MAX_ATTEMPTS", 5),
		JudgeBaseURL:        getEnv("JUDGE_BASE_URL", "https://judge0-ce.p.rapidapi.com"),
		JudgeAPIKey:         getEnv("JUDGE_API_KEY", ""),
		JudgeAPIHost:        getEnv("JUDGE_API_HOST", "judge0-ce.p.rapidapi.com"),
		JudgePollInterval:   time.Duration(getEnvAsInt("JUDGE_POLL_INTERVAL_MS", 1000)) * time.Millisecond,
		JudgeTimeout:        time.Duration(getEnvAsInt("JUDGE_TIMEOUT_SECONDS", 120)) * time.Second,

		RoomCodeAttempts:       getEnvAsInt("ROOM_CODE_ATTEMPTS", 5),
		QuickplayClaimAttempts: getEnvAsInt("QUICKPLAY_CLAIM_ATTEMPTS", 3),
		DraftTTL:               time.Duration(getEnvAsInt("DRAFT_TTL_HOURS", 24)) * time.Hour,
		ScoreClampNegative:     getEnvAsBool("SCORE_CLAMP_NEGATIVE", false),
	}

	AppConfig.DBConnStr = "host=" + AppConfig.DBHost +
		" port=" + AppConfig.DBPort +
		" user=" + AppConfig.DBUser +
		" password=" + AppConfig.DBPassword +
		" dbname=" + AppConfig.DBName +
		" sslmode=" + AppConfig.DBSslMode
}

func getEnv(key, fallback string) string {
	if value, exists := os.LookupEnv(key); exists {
		return value
	}
	return fallback
}

func getEnvAsInt(key string, fallback int) int {
	valueStr := getEnv(key, "")
	if value, err := strconv.Atoi(valueStr); err == nil {
		return value
	}
	return fallback
}

// getEnvAsList splits a comma separated value, dropping empty entries.
func getEnvAsList(key string) []string {
	var out []string
	for _, part := range strings.Split(getEnv(key, ""), ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}

func getEnvAsBool(key string, fallback bool) bool {
	valueStr := getEnv(key, "")
	if value, err := strconv.ParseBool(valueStr); err == nil {
		return value
	}
	return fallback
}
