package config

import (
	"errors"
	"io/fs"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

const (
	EnvDevelopment = "development"
	EnvProduction  = "production"
)

// Folder layouts for teacher uploads.
const (
	FolderLayoutDated      = "dated"
	FolderLayoutPerTeacher = "per_teacher"
)

// Storage backends.
const (
	StorageDriverDrive = "drive"
	StorageDriverLocal = "local"
)

// PDF engines.
const (
	PDFEngineGofpdf   = "gofpdf"
	PDFEngineChromium = "chromium"
)

type Config struct {
	Env           string
	Port          int
	APIPrefix     string
	PublicBaseURL string

	Monday    MondayConfig
	Storage   StorageConfig
	Documents DocumentConfig
	Mail      MailConfig
	Ledger    LedgerConfig
	Redis     RedisConfig
	Admin     AdminConfig
	CORS      CORSConfig
	Log       LogConfig
}

// MondayConfig points the record client at a board.
type MondayConfig struct {
	APIURL       string
	APIToken     string
	APIVersion   string
	BoardID      string
	GroupID      string
	BoardURL     string
	ColumnsFile  string
	Timeout      time.Duration
	DocumentCol  string
	CalendarCol  string
	BellCol      string
	ScheduleCol  string
	CreateLabels bool
}

// StorageConfig selects and configures the file store backend.
type StorageConfig struct {
	Driver             string
	RootFolderID       string
	ShareSourceID      string
	FolderLayout       string
	CredentialsFile    string
	LocalDir           string
	SignedURLSecret    string
	SignedURLTTL       time.Duration
	FolderCacheEnabled bool
	FolderCacheTTL     time.Duration
}

// DocumentConfig controls the rendered partnership summary.
type DocumentConfig struct {
	Engine       string
	ChromiumBin  string
	BrandName    string
	LogoURL      string
	FetchTimeout time.Duration
}

// MailConfig configures the notification email. Empty From or Recipients disables sending.
type MailConfig struct {
	SMTPHost   string
	SMTPPort   int
	Username   string
	Password   string
	From       string
	FromName   string
	Recipients []string
	Subject    string
}

// LedgerConfig configures submission run persistence.
type LedgerConfig struct {
	Enabled      bool
	Driver       string
	DSN          string
	Host         string
	Port         int
	User         string
	Password     string
	Name         string
	SSLMode      string
	MaxOpenConns int
	MaxIdleConns int

	// Retention of zero keeps runs forever.
	Retention     time.Duration
	PruneInterval time.Duration
}

type RedisConfig struct {
	Host     string
	Port     int
	Password string
	DB       int
}

// AdminConfig protects ledger endpoints.
type AdminConfig struct {
	JWTSecret  string
	Issuer     string
	Expiration time.Duration
}

type CORSConfig struct {
	AllowedOrigins []string
}

type LogConfig struct {
	Level  string
	Format string
}

// Load reads .env and the process environment once.
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

	return fromViper(v), nil
}

func fromViper(v *viper.Viper) *Config {
	cfg := &Config{}

	cfg.Env = v.GetString("ENV")
	cfg.Port = v.GetInt("PORT")
	cfg.APIPrefix = v.GetString("API_PREFIX")
	cfg.PublicBaseURL = strings.TrimRight(v.GetString("PUBLIC_BASE_URL"), "/")

	cfg.Monday = MondayConfig{
		APIURL:       v.GetString("MONDAY_API_URL"),
		APIToken:     v.GetString("MONDAY_API_TOKEN"),
		APIVersion:   v.GetString("MONDAY_API_VERSION"),
		BoardID:      v.GetString("MONDAY_BOARD_ID"),
		GroupID:      v.GetString("MONDAY_GROUP_ID"),
		BoardURL:     strings.TrimRight(v.GetString("MONDAY_BOARD_URL"), "/"),
		ColumnsFile:  v.GetString("MONDAY_COLUMNS_FILE"),
		Timeout:      parseDuration(v.GetString("MONDAY_TIMEOUT"), 30*time.Second),
		DocumentCol:  v.GetString("MONDAY_DOCUMENT_COLUMN"),
		CalendarCol:  v.GetString("MONDAY_CALENDAR_COLUMN"),
		BellCol:      v.GetString("MONDAY_BELL_SCHEDULE_COLUMN"),
		ScheduleCol:  v.GetString("MONDAY_TEACHER_SCHEDULE_COLUMN"),
		CreateLabels: v.GetBool("MONDAY_CREATE_LABELS"),
	}

	cfg.Storage = StorageConfig{
		Driver:             strings.ToLower(v.GetString("STORAGE_DRIVER")),
		RootFolderID:       v.GetString("STORAGE_ROOT_FOLDER_ID"),
		ShareSourceID:      v.GetString("STORAGE_SHARE_SOURCE_ID"),
		FolderLayout:       strings.ToLower(v.GetString("FOLDER_LAYOUT")),
		CredentialsFile:    v.GetString("GOOGLE_CREDENTIALS_FILE"),
		LocalDir:           v.GetString("STORAGE_LOCAL_DIR"),
		SignedURLSecret:    v.GetString("STORAGE_SIGNED_URL_SECRET"),
		SignedURLTTL:       parseDuration(v.GetString("STORAGE_SIGNED_URL_TTL"), 30*24*time.Hour),
		FolderCacheEnabled: v.GetBool("ENABLE_FOLDER_CACHE"),
		FolderCacheTTL:     parseDuration(v.GetString("FOLDER_CACHE_TTL"), 6*time.Hour),
	}
	if cfg.Storage.ShareSourceID == "" {
		cfg.Storage.ShareSourceID = cfg.Storage.RootFolderID
	}

	cfg.Documents = DocumentConfig{
		Engine:       strings.ToLower(v.GetString("PDF_ENGINE")),
		ChromiumBin:  v.GetString("CHROMIUM_BIN"),
		BrandName:    v.GetString("BRAND_NAME"),
		LogoURL:      v.GetString("BRAND_LOGO_URL"),
		FetchTimeout: parseDuration(v.GetString("BRAND_LOGO_TIMEOUT"), 10*time.Second),
	}

	cfg.Mail = MailConfig{
		SMTPHost:   v.GetString("SMTP_HOST"),
		SMTPPort:   v.GetInt("SMTP_PORT"),
		Username:   v.GetString("SMTP_USERNAME"),
		Password:   v.GetString("SMTP_PASSWORD"),
		From:       v.GetString("MAIL_FROM"),
		FromName:   v.GetString("MAIL_FROM_NAME"),
		Recipients: splitAndTrim(v.GetString("MAIL_RECIPIENTS")),
		Subject:    v.GetString("MAIL_SUBJECT"),
	}

	cfg.Ledger = LedgerConfig{
		Enabled:      v.GetBool("ENABLE_LEDGER"),
		Driver:       strings.ToLower(v.GetString("DB_DRIVER")),
		DSN:          v.GetString("DB_DSN"),
		Host:         v.GetString("DB_HOST"),
		Port:         v.GetInt("DB_PORT"),
		User:         v.GetString("DB_USER"),
		Password:     v.GetString("DB_PASSWORD"),
		Name:         v.GetString("DB_NAME"),
		SSLMode:      v.GetString("DB_SSL_MODE"),
		MaxOpenConns: v.GetInt("DB_MAX_OPEN_CONNS"),
		MaxIdleConns: v.GetInt("DB_MAX_IDLE_CONNS"),

		Retention:     parseDuration(v.GetString("LEDGER_RETENTION"), 0),
		PruneInterval: parseDuration(v.GetString("LEDGER_PRUNE_INTERVAL"), 24*time.Hour),
	}

	cfg.Redis = RedisConfig{
		Host:     v.GetString("REDIS_HOST"),
		Port:     v.GetInt("REDIS_PORT"),
		Password: v.GetString("REDIS_PASSWORD"),
		DB:       v.GetInt("REDIS_DB"),
	}

	cfg.Admin = AdminConfig{
		JWTSecret:  v.GetString("ADMIN_JWT_SECRET"),
		Issuer:     v.GetString("ADMIN_JWT_ISSUER"),
		Expiration: parseDuration(v.GetString("ADMIN_JWT_EXPIRATION"), 12*time.Hour),
	}

	cfg.CORS = CORSConfig{AllowedOrigins: splitAndTrim(v.GetString("ALLOWED_ORIGINS"))}

	cfg.Log = LogConfig{
		Level:  v.GetString("LOG_LEVEL"),
		Format: v.GetString("LOG_FORMAT"),
	}

	return cfg
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("ENV", EnvDevelopment)
	v.SetDefault("PORT", 8080)
	v.SetDefault("API_PREFIX", "/api/v1")
	v.SetDefault("PUBLIC_BASE_URL", "http://localhost:8080")

	v.SetDefault("MONDAY_API_URL", "https://api.monday.com/v2")
	v.SetDefault("MONDAY_API_TOKEN", "")
	v.SetDefault("MONDAY_API_VERSION", "2024-10")
	v.SetDefault("MONDAY_BOARD_ID", "")
	v.SetDefault("MONDAY_GROUP_ID", "")
	v.SetDefault("MONDAY_BOARD_URL", "")
	v.SetDefault("MONDAY_COLUMNS_FILE", "")
	v.SetDefault("MONDAY_TIMEOUT", "30s")
	v.SetDefault("MONDAY_DOCUMENT_COLUMN", "link_summary_pdf")
	v.SetDefault("MONDAY_CALENDAR_COLUMN", "long_text_calendar")
	v.SetDefault("MONDAY_BELL_SCHEDULE_COLUMN", "long_text_bell_schedule")
	v.SetDefault("MONDAY_TEACHER_SCHEDULE_COLUMN", "long_text_schedule")
	v.SetDefault("MONDAY_CREATE_LABELS", true)

	v.SetDefault("STORAGE_DRIVER", StorageDriverLocal)
	v.SetDefault("STORAGE_ROOT_FOLDER_ID", "")
	v.SetDefault("STORAGE_SHARE_SOURCE_ID", "")
	v.SetDefault("FOLDER_LAYOUT", FolderLayoutDated)
	v.SetDefault("GOOGLE_CREDENTIALS_FILE", "")
	v.SetDefault("STORAGE_LOCAL_DIR", "./uploads")
	v.SetDefault("STORAGE_SIGNED_URL_SECRET", "dev_storage_secret")
	v.SetDefault("STORAGE_SIGNED_URL_TTL", "720h")
	v.SetDefault("ENABLE_FOLDER_CACHE", false)
	v.SetDefault("FOLDER_CACHE_TTL", "6h")

	v.SetDefault("PDF_ENGINE", PDFEngineGofpdf)
	v.SetDefault("CHROMIUM_BIN", "")
	v.SetDefault("BRAND_NAME", "School Partnerships")
	v.SetDefault("BRAND_LOGO_URL", "")
	v.SetDefault("BRAND_LOGO_TIMEOUT", "10s")

	v.SetDefault("SMTP_HOST", "localhost")
	v.SetDefault("SMTP_PORT", 587)
	v.SetDefault("SMTP_USERNAME", "")
	v.SetDefault("SMTP_PASSWORD", "")
	v.SetDefault("MAIL_FROM", "")
	v.SetDefault("MAIL_FROM_NAME", "School Partnerships")
	v.SetDefault("MAIL_RECIPIENTS", "")
	v.SetDefault("MAIL_SUBJECT", "New school partnership inquiry")

	v.SetDefault("ENABLE_LEDGER", false)
	v.SetDefault("DB_DRIVER", "postgres")
	v.SetDefault("DB_DSN", "")
	v.SetDefault("DB_HOST", "localhost")
	v.SetDefault("DB_PORT", 5432)
	v.SetDefault("DB_USER", "postgres")
	v.SetDefault("DB_PASSWORD", "postgres")
	v.SetDefault("DB_NAME", "school_intake")
	v.SetDefault("DB_SSL_MODE", "disable")
	v.SetDefault("DB_MAX_OPEN_CONNS", 5)
	v.SetDefault("DB_MAX_IDLE_CONNS", 2)
	v.SetDefault("LEDGER_RETENTION", "2160h")
	v.SetDefault("LEDGER_PRUNE_INTERVAL", "24h")

	v.SetDefault("REDIS_HOST", "localhost")
	v.SetDefault("REDIS_PORT", 6379)
	v.SetDefault("REDIS_PASSWORD", "")
	v.SetDefault("REDIS_DB", 0)

	v.SetDefault("ADMIN_JWT_SECRET", "dev_admin_secret")
	v.SetDefault("ADMIN_JWT_ISSUER", "school-intake-api")
	v.SetDefault("ADMIN_JWT_EXPIRATION", "12h")

	v.SetDefault("ALLOWED_ORIGINS", "")
	v.SetDefault("LOG_LEVEL", "info")
	v.SetDefault("LOG_FORMAT", "json")
}

func isMissingFile(err error) bool {
	return errors.Is(err, fs.ErrNotExist)
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
