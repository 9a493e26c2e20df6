package config

import (
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/sirupsen/logrus"
)

// Config holds every setting the server needs. Values come from the
// environment, optionally seeded from a .env file.
type Config struct {
	Port     string
	LogLevel string

	MongoURI string
	DBName   string

	JWTSecret   string
	TokenExpiry time.Duration
	// Emails allowed to trigger sweeps over HTTP. Empty disables the admin routes.
	OperatorEmails []string

	AllowedOrigins []string
	AppBaseURL     string

	// SMTP
	SMTPHost     string
	SMTPPort     string
	SMTPUsername string
	SMTPPassword string
	SMTPSender   string
	EmailTimeout time.Duration

	// Media storage: "local" or "s3"
	StorageDriver string
	UploadDir     string
	S3Bucket      string
	S3Region      string
	S3Endpoint    string
	MaxUploadSize int64

	// Emotion classification
	OpenAIAPIKey    string
	OpenAIModel     string
	ClassifyTimeout time.Duration

	// Sweeps
	UnlockSchedule   string
	ReminderSchedule string
	ReminderLeadDays []int
	UnlockBatchSize  int64
	Location         *time.Location
}

// LoadConfig reads the .env file (if present) and the process environment.
func LoadConfig() *Config {
	if err := godotenv.Load(); err != nil {
		logrus.Info("No .env file found, using environment variables")
	}

	cfg := &Config{
		Port:     getEnv("PORT", "8080"),
		LogLevel: getEnv("LOG_LEVEL", "info"),

		MongoURI: getEnv("MONGO_URI", "mongodb://localhost:27017/?replicaSet=rs0"),
		DBName:   getEnv("DB_NAME", "time_capsule"),

		JWTSecret:   getEnv("JWT_SECRET", "change-me"),
		TokenExpiry: getDuration("TOKEN_EXPIRY", 72*time.Hour),

		OperatorEmails: getList("OPERATOR_EMAILS", nil),

		AllowedOrigins: getList("ALLOWED_ORIGINS", []string{"http://localhost:3000"}),
		AppBaseURL:     getEnv("APP_BASE_URL", "http://localhost:3000"),

		SMTPHost:     os.Getenv("SMTP_HOST"),
		SMTPPort:     getEnv("SMTP_PORT", "587"),
		SMTPUsername: os.Getenv("SMTP_USERNAME"),
		SMTPPassword: os.Getenv("SMTP_PASSWORD"),
		SMTPSender:   getEnv("SMTP_SENDER", "no-reply@timecapsule.local"),
		EmailTimeout: getDuration("EMAIL_TIMEOUT", 15*time.Second),

		StorageDriver: getEnv("STORAGE_DRIVER", "local"),
		UploadDir:     getEnv("UPLOAD_DIR", "./uploads"),
		S3Bucket:      getEnv("S3_BUCKET", "capsule-media"),
		S3Region:      getEnv("S3_REGION", "us-east-1"),
		S3Endpoint:    os.Getenv("S3_ENDPOINT"),
		MaxUploadSize: getInt64("MAX_UPLOAD_SIZE", 50<<20),

		OpenAIAPIKey:    os.Getenv("OPENAI_API_KEY"),
		OpenAIModel:     getEnv("OPENAI_MODEL", "gpt-3.5-turbo"),
		ClassifyTimeout: getDuration("CLASSIFY_TIMEOUT", 10*time.Second),

		UnlockSchedule:   getEnv("UNLOCK_SCHEDULE", "@hourly"),
		ReminderSchedule: getEnv("REMINDER_SCHEDULE", "0 */6 * * *"),
		ReminderLeadDays: getIntList("REMINDER_LEAD_DAYS", []int{1, 3, 7}),
		UnlockBatchSize:  getInt64("UNLOCK_BATCH_SIZE", 500),
		Location:         getLocation("TIMEZONE"),
	}

	return cfg
}

func getEnv(key, fallback string) string {
	if v, ok := os.LookupEnv(key); ok && v != "" {
		return v
	}
	return fallback
}

func getDuration(key string, fallback time.Duration) time.Duration {
	v := os.Getenv(key)
	if v == "" {
		return fallback
	}
	d, err := time.ParseDuration(v)
	if err != nil {
		logrus.WithField("key", key).Warnf("Invalid duration %q, using default %s", v, fallback)
		return fallback
	}
	return d
}

func getInt64(key string, fallback int64) int64 {
	v := os.Getenv(key)
	if v == "" {
		return fallback
	}
	n, err := strconv.ParseInt(v, 10, 64)
	if err != nil || n <= 0 {
		logrus.WithField("key", key).Warnf("Invalid number %q, using default %d", v, fallback)
		return fallback
	}
	return n
}

func getList(key string, fallback []string) []string {
	v := os.Getenv(key)
	if v == "" {
		return fallback
	}
	var out []string
	for _, part := range strings.Split(v, ",") {
		if p := strings.TrimSpace(part); p != "" {
			out = append(out, p)
		}
	}
	if len(out) == 0 {
		return fallback
	}
	return out
}

func getIntList(key string, fallback []int) []int {
	v := os.Getenv(key)
	if v == "" {
		return fallback
	}
	var out []int
	for _, part := range strings.Split(v, ",") {
		n, err := strconv.Atoi(strings.TrimSpace(part))
		if err != nil || n <= 0 {
			logrus.WithField("key", key).Warnf("Invalid list %q, using default %v", v, fallback)
			return fallback
		}
		out = append(out, n)
	}
	return out
}

func getLocation(key string) *time.Location {
	name := os.Getenv(key)
	if name == "" {
		return time.UTC
	}
	loc, err := time.LoadLocation(name)
	if err != nil {
		logrus.WithField("key", key).Warnf("Unknown timezone %q, using UTC", name)
		return time.UTC
	}
	return loc
}
