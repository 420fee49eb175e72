package config

import (
	"errors"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

const (
	EnvDevelopment = "development"
	EnvProduction  = "production"
)

// Storage drivers.
const (
	StorageDriverLocal = "local"
	StorageDriverB2    = "b2"
)

type Config struct {
	Env       string
	Port      int
	APIPrefix string

	Database     DatabaseConfig
	Redis        RedisConfig
	Cache        CacheConfig
	JWT          JWTConfig
	CORS         CORSConfig
	Log          LogConfig
	Storage      StorageConfig
	Uploads      UploadConfig
	Submissions  SubmissionConfig
	Payroll      PayrollConfig
	Enrollments  EnrollmentConfig
	Compensation CompensationConfig
}

type DatabaseConfig struct {
	Host         string
	Port         int
	User         string
	Password     string
	Name         string
	SSLMode      string
	MaxOpenConns int
	MaxIdleConns int
	// SessionRole is applied with SET LOCAL ROLE on the scoped submission write path.
	SessionRole string
}

type RedisConfig struct {
	Host     string
	Port     int
	Password string
	DB       int
}

// CacheConfig governs view-model caching.
type CacheConfig struct {
	Enabled bool
	TTL     time.Duration
}

type JWTConfig struct {
	Secret            string
	Expiration        time.Duration
	RefreshExpiration time.Duration
	CookieName        string
	Issuer            string
	Audience          []string
	// SingleSession revokes older refresh tokens on every login.
	SingleSession bool
}

type CORSConfig struct {
	AllowedOrigins []string
}

type LogConfig struct {
	Level  string
	Format string
}

// StorageConfig selects and configures the object store.
type StorageConfig struct {
	Driver        string
	Dir           string
	PublicBaseURL string
	SigningSecret string
	URLTTL        time.Duration
	B2KeyID       string
	B2AppKey      string
	B2Bucket      string
}

// UploadConfig bounds uploaded files and the chunked path.
type UploadConfig struct {
	MaxFileSizeBytes  int64
	ChunkThreshold    int64
	ChunkSizeBytes    int64
	AllowedExtensions []string
}

// SubmissionConfig toggles the secondary write endpoint.
type SubmissionConfig struct {
	FallbackEnabled bool
	FallbackURL     string
	FallbackTimeout time.Duration
}

// PayrollConfig sets lecture pay amounts.
type PayrollConfig struct {
	BaseAmount float64
	Currency   string
}

// EnrollmentConfig holds approval policy switches.
type EnrollmentConfig struct {
	EnforceCapacity bool
}

// CompensationConfig sizes the orphaned-upload cleanup worker pool.
type CompensationConfig struct {
	Workers    int
	MaxRetries int
	RetryDelay time.Duration
}

func Load() (*Config, error) {
	_ = godotenv.Load()

	v := viper.New()
	v.SetConfigFile(".env")
	v.SetConfigType("env")
	v.AutomaticEnv()
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))

	setDefaults(v)

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) && !isMissingFile(err) {
			return nil, err
		}
	}

	cfg := &Config{}

	cfg.Env = v.GetString("ENV")
	cfg.Port = v.GetInt("PORT")
	cfg.APIPrefix = v.GetString("API_PREFIX")

	cfg.Database = DatabaseConfig{
		Host:         v.GetString("DB_HOST"),
		Port:         v.GetInt("DB_PORT"),
		User:         v.GetString("DB_USER"),
		Password:     v.GetString("DB_PASSWORD"),
		Name:         v.GetString("DB_NAME"),
		SSLMode:      v.GetString("DB_SSL_MODE"),
		MaxOpenConns: v.GetInt("DB_MAX_OPEN_CONNS"),
		MaxIdleConns: v.GetInt("DB_MAX_IDLE_CONNS"),
		SessionRole:  v.GetString("DB_SESSION_ROLE"),
	}

	cfg.Redis = RedisConfig{
		Host:     v.GetString("REDIS_HOST"),
		Port:     v.GetInt("REDIS_PORT"),
		Password: v.GetString("REDIS_PASSWORD"),
		DB:       v.GetInt("REDIS_DB"),
	}

	cfg.Cache = CacheConfig{
		Enabled: v.GetBool("ENABLE_CACHE"),
		TTL:     parseDuration(v.GetString("CACHE_TTL"), 5*time.Minute),
	}

	cfg.JWT = JWTConfig{
		Secret:            v.GetString("JWT_SECRET"),
		Expiration:        parseDuration(v.GetString("JWT_EXPIRATION"), 24*time.Hour),
		RefreshExpiration: parseDuration(v.GetString("REFRESH_TOKEN_EXPIRATION"), 7*24*time.Hour),
		CookieName:        v.GetString("JWT_COOKIE_NAME"),
		Issuer:            v.GetString("JWT_ISSUER"),
		Audience:          splitAndTrim(v.GetString("JWT_AUDIENCE")),
		SingleSession:     v.GetBool("JWT_SINGLE_SESSION"),
	}

	cfg.CORS = CORSConfig{AllowedOrigins: splitAndTrim(v.GetString("ALLOWED_ORIGINS"))}

	cfg.Log = LogConfig{
		Level:  v.GetString("LOG_LEVEL"),
		Format: v.GetString("LOG_FORMAT"),
	}

	cfg.Storage = StorageConfig{
		Driver:        strings.ToLower(v.GetString("STORAGE_DRIVER")),
		Dir:           v.GetString("STORAGE_DIR"),
		PublicBaseURL: v.GetString("STORAGE_PUBLIC_BASE_URL"),
		SigningSecret: v.GetString("STORAGE_SIGNING_SECRET"),
		URLTTL:        parseDuration(v.GetString("STORAGE_URL_TTL"), 7*24*time.Hour),
		B2KeyID:       v.GetString("B2_KEY_ID"),
		B2AppKey:      v.GetString("B2_APP_KEY"),
		B2Bucket:      v.GetString("B2_BUCKET"),
	}

	maxUpload := v.GetInt64("UPLOAD_MAX_FILE_SIZE")
	if maxUpload <= 0 {
		maxUpload = 50 * 1024 * 1024
	}
	chunkSize := v.GetInt64("UPLOAD_CHUNK_SIZE")
	if chunkSize <= 0 {
		chunkSize = 5 * 1024 * 1024
	}
	cfg.Uploads = UploadConfig{
		MaxFileSizeBytes:  maxUpload,
		ChunkThreshold:    v.GetInt64("UPLOAD_CHUNK_THRESHOLD"),
		ChunkSizeBytes:    chunkSize,
		AllowedExtensions: splitAndTrim(v.GetString("UPLOAD_ALLOWED_EXTENSIONS")),
	}

	cfg.Submissions = SubmissionConfig{
		FallbackEnabled: v.GetBool("ENABLE_SUBMISSION_FALLBACK"),
		FallbackURL:     v.GetString("SUBMISSION_FALLBACK_URL"),
		FallbackTimeout: parseDuration(v.GetString("SUBMISSION_FALLBACK_TIMEOUT"), 15*time.Second),
	}

	cfg.Payroll = PayrollConfig{
		BaseAmount: v.GetFloat64("PAYROLL_BASE_AMOUNT"),
		Currency:   v.GetString("PAYROLL_CURRENCY"),
	}

	cfg.Enrollments = EnrollmentConfig{
		EnforceCapacity: v.GetBool("ENFORCE_COURSE_CAPACITY"),
	}

	cfg.Compensation = CompensationConfig{
		Workers:    v.GetInt("COMPENSATION_WORKERS"),
		MaxRetries: v.GetInt("COMPENSATION_RETRIES"),
		RetryDelay: parseDuration(v.GetString("COMPENSATION_RETRY_DELAY"), 5*time.Second),
	}

	return cfg, nil
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("ENV", EnvDevelopment)
	v.SetDefault("PORT", 8080)
	v.SetDefault("API_PREFIX", "/api/v1")

	v.SetDefault("DB_HOST", "localhost")
	v.SetDefault("DB_PORT", 5432)
	v.SetDefault("DB_USER", "postgres")
	v.SetDefault("DB_PASSWORD", "postgres")
	v.SetDefault("DB_NAME", "lms")
	v.SetDefault("DB_SSL_MODE", "disable")
	v.SetDefault("DB_MAX_OPEN_CONNS", 10)
	v.SetDefault("DB_MAX_IDLE_CONNS", 5)
	v.SetDefault("DB_SESSION_ROLE", "")

	v.SetDefault("REDIS_HOST", "localhost")
	v.SetDefault("REDIS_PORT", 6379)
	v.SetDefault("REDIS_PASSWORD", "")
	v.SetDefault("REDIS_DB", 0)
	v.SetDefault("ENABLE_CACHE", false)
	v.SetDefault("CACHE_TTL", "5m")

	v.SetDefault("JWT_SECRET", "dev_secret")
	v.SetDefault("JWT_EXPIRATION", "24h")
	v.SetDefault("REFRESH_TOKEN_EXPIRATION", "168h")
	v.SetDefault("JWT_COOKIE_NAME", "access_token")
	v.SetDefault("JWT_ISSUER", "lms-api")
	v.SetDefault("JWT_AUDIENCE", "lms-web")
	v.SetDefault("JWT_SINGLE_SESSION", false)

	v.SetDefault("ALLOWED_ORIGINS", "")
	v.SetDefault("LOG_LEVEL", "info")
	v.SetDefault("LOG_FORMAT", "json")

	v.SetDefault("STORAGE_DRIVER", StorageDriverLocal)
	v.SetDefault("STORAGE_DIR", "./uploads")
	v.SetDefault("STORAGE_PUBLIC_BASE_URL", "http://localhost:8080")
	v.SetDefault("STORAGE_SIGNING_SECRET", "dev_storage_secret")
	v.SetDefault("STORAGE_URL_TTL", "168h")

	v.SetDefault("UPLOAD_MAX_FILE_SIZE", 50*1024*1024)
	v.SetDefault("UPLOAD_CHUNK_THRESHOLD", 10*1024*1024)
	v.SetDefault("UPLOAD_CHUNK_SIZE", 5*1024*1024)
	v.SetDefault("UPLOAD_ALLOWED_EXTENSIONS", ".pdf,.doc,.docx,.txt,.zip,.png,.jpg,.jpeg,.ppt,.pptx")

	v.SetDefault("ENABLE_SUBMISSION_FALLBACK", true)
	v.SetDefault("SUBMISSION_FALLBACK_URL", "http://localhost:8080/api/v1/submit-assignment")
	v.SetDefault("SUBMISSION_FALLBACK_TIMEOUT", "15s")

	v.SetDefault("PAYROLL_BASE_AMOUNT", 150)
	v.SetDefault("PAYROLL_CURRENCY", "USD")

	v.SetDefault("ENFORCE_COURSE_CAPACITY", false)

	v.SetDefault("COMPENSATION_WORKERS", 1)
	v.SetDefault("COMPENSATION_RETRIES", 3)
	v.SetDefault("COMPENSATION_RETRY_DELAY", "5s")
}

func isMissingFile(err error) bool {
	return err != nil && strings.Contains(err.Error(), "no such file or directory")
}

func parseDuration(raw string, fallback time.Duration) time.Duration {
	if raw == "" {
		return fallback
	}

	d, err := time.ParseDuration(raw)
	if err != nil {
		return fallback
	}

	return d
}

func splitAndTrim(raw string) []string {
	if raw == "" {
		return nil
	}

	parts := strings.Split(raw, ",")
	result := make([]string, 0, len(parts))
	for _, part := range parts {
		trimmed := strings.TrimSpace(part)
		if trimmed != "" {
			result = append(result, trimmed)
		}
	}

	return result
}
