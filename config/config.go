package config

import (
	"errors"
	"fmt"
	"io/fs"
	"net/url"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

const defaultPassportEndpoint = "https://api.aigen.online/aiscript/passport-ocr/v2"

type Config struct {
	LogLevel string
	Server   ServerConfig
	Database DatabaseConfig
	OCR      OCRConfig
	Uploads  UploadConfig
	CORS     CORSConfig
}

type ServerConfig struct {
	Port            string
	ReadTimeout     time.Duration
	WriteTimeout    time.Duration
	ShutdownTimeout time.Duration
}

type DatabaseConfig struct {
	DSN     string
	Name    string
	Verbose bool
}

type OCRConfig struct {
	APIKey           string
	CardEndpoint     string
	PassportEndpoint string
	Timeout          time.Duration
}

type UploadConfig struct {
	Dir      string
	MaxBytes int64
}

type CORSConfig struct {
	Origins []string
}

// AllowCredentials is false when any origin is a wildcard.
func (c CORSConfig) AllowCredentials() bool {
	for _, o := range c.Origins {
		if o == "*" {
			return false
		}
	}
	return true
}

// Load reads an optional .env file, then the process environment.
func Load(files ...string) (*Config, error) {
	if err := godotenv.Load(files...); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return nil, fmt.Errorf("config: load env file: %w", err)
	}

	dsn, dbName, err := resolveMySQLDSN()
	if err != nil {
		return nil, fmt.Errorf("config: database url: %w", err)
	}
	maxBytes, err := strconv.ParseInt(envOrDefault("UPLOAD_MAX_BYTES", "10485760"), 10, 64)
	if err != nil {
		return nil, fmt.Errorf("config: UPLOAD_MAX_BYTES: %w", err)
	}
	ocrTimeout, err := time.ParseDuration(envOrDefault("AIGEN_TIMEOUT", "30s"))
	if err != nil {
		return nil, fmt.Errorf("config: AIGEN_TIMEOUT: %w", err)
	}

	return &Config{
		LogLevel: envOrDefault("LOG_LEVEL", "info"),
		Server: ServerConfig{
			Port:            envOrDefault("PORT", "8080"),
			ReadTimeout:     10 * time.Second,
			WriteTimeout:    30 * time.Second,
			ShutdownTimeout: 15 * time.Second,
		},
		Database: DatabaseConfig{
			DSN:     dsn,
			Name:    dbName,
			Verbose: envOrDefault("DB_LOG", "") == "verbose",
		},
		OCR: OCRConfig{
			APIKey:           envOrDefault("AIGEN_API_KEY", ""),
			CardEndpoint:     envOrDefault("AIGEN_ENDPOINT", ""),
			PassportEndpoint: envOrDefault("AIGEN_ENDPOINT_PASSPORT", defaultPassportEndpoint),
			Timeout:          ocrTimeout,
		},
		Uploads: UploadConfig{
			Dir:      envOrDefault("UPLOAD_DIR", "uploads"),
			MaxBytes: maxBytes,
		},
		CORS: CORSConfig{Origins: parseCorsOrigins(os.Getenv("CORS_ORIGINS"))},
	}, nil
}

func envOrDefault(key, def string) string {
	value := strings.TrimSpace(os.Getenv(key))
	if value == "" {
		return def
	}
	return value
}

func parseCorsOrigins(raw string) []string {
	var origins []string
	for _, part := range strings.Split(raw, ",") {
		if origin := strings.TrimSpace(part); origin != "" {
			origins = append(origins, origin)
		}
	}
	if len(origins) == 0 {
		return []string{"*"}
	}
	return origins
}

func mysqlDSNFromURL(raw string) (string, string, error) {
	u, err := url.Parse(raw)
	if err != nil {
		return "", "", err
	}

	user := u.User.Username()
	pass, _ := u.User.Password()
	host := u.Hostname()
	port := u.Port()
	if port == "" {
		port = "3306"
	}

	dbName := strings.TrimPrefix(u.Path, "/")
	if dbName == "" {
		return "", "", errors.New("mysql url missing database name")
	}

	q := u.Query()
	if q.Get("charset") == "" {
		q.Set("charset", "utf8mb4")
	}
	if q.Get("parseTime") == "" {
		q.Set("parseTime", "True")
	}
	if q.Get("loc") == "" {
		q.Set("loc", "Local")
	}

	return fmt.Sprintf("%s:%s@tcp(%s:%s)/%s?%s", user, pass, host, port, dbName, q.Encode()), dbName, nil
}

func resolveMySQLDSN() (string, string, error) {
	raw := strings.TrimSpace(os.Getenv("MYSQL_URL"))
	if raw == "" {
		raw = strings.TrimSpace(os.Getenv("DATABASE_URL"))
	}
	if raw != "" {
		if strings.HasPrefix(raw, "mysql://") {
			return mysqlDSNFromURL(raw)
		}
		return raw, strings.TrimSpace(os.Getenv("DB_NAME")), nil
	}

	user := envOrDefault("DB_USER", "root")
	pass := envOrDefault("DB_PASS", "")
	host := envOrDefault("DB_HOST", "127.0.0.1")
	port := envOrDefault("DB_PORT", "3306")
	dbName := envOrDefault("DB_NAME", "guest_intake")

	dsn := fmt.Sprintf("%s:%s@tcp(%s:%s)/%s?charset=utf8mb4&parseTime=True&loc=Local",
		user, pass, host, port, dbName,
	)
	return dsn, dbName, nil
}
