// Package config reads process-level configuration for sheetplot from the
// environment (optionally seeded from a .env file).
package config

import (
	_ "embed"
	"fmt"
	"os"
	"strconv"
	"strings"

	"github.com/joho/godotenv"
)

//go:embed version
var version string

//go:embed name
var name string

type LogLevel string

const (
	Debug  LogLevel = "debug"
	Info   LogLevel = "info"
	Notice LogLevel = "notice"
	Warn   LogLevel = "warn"
	Error  LogLevel = "error"
)

// SessionStoreType selects the backend used for login sessions.
type SessionStoreType string

const (
	SessionStoreCookie SessionStoreType = "cookie"
	SessionStoreRedis  SessionStoreType = "redis"
)

const defaultMaxUploadMB = 32

// LoadEnv loads variables from the given .env files into the process
// environment. Missing files are ignored, existing variables win.
func LoadEnv(files ...string) error {
	if len(files) == 0 {
		files = []string{".env"}
	}
	for _, f := range files {
		if _, err := os.Stat(f); err != nil {
			continue
		}
		if err := godotenv.Load(f); err != nil {
			return fmt.Errorf("load %s: %w", f, err)
		}
	}
	return nil
}

func GetVersion() string {
	return strings.TrimSpace(version)
}

func GetName() string {
	return strings.TrimSpace(name)
}

func GetLogLevel() LogLevel {
	if IsDebug() {
		return Debug
	}
	logLevel := os.Getenv("SHEETPLOT_LOG_LEVEL")
	if logLevel == "" {
		return Info
	}
	return LogLevel(logLevel)
}

func IsDebug() bool {
	return os.Getenv("SHEETPLOT_DEBUG") == "true"
}

func GetDBFolderPath() string {
	dbFolderPath := os.Getenv("SHEETPLOT_DB_FOLDER")
	if dbFolderPath == "" {
		if IsDebug() {
			return "db"
		}
		dbFolderPath = "/etc/sheetplot"
	}
	return dbFolderPath
}

func GetDBPath() string {
	return fmt.Sprintf("%s/%s.db", GetDBFolderPath(), GetName())
}

func GetLogFolder() string {
	logFolderPath := os.Getenv("SHEETPLOT_LOG_FOLDER")
	if logFolderPath == "" {
		logFolderPath = "/var/log"
	}
	return logFolderPath
}

func GetSessionStore() SessionStoreType {
	if SessionStoreType(os.Getenv("SHEETPLOT_SESSION_STORE")) == SessionStoreRedis {
		return SessionStoreRedis
	}
	return SessionStoreCookie
}

// GetRedisAddr returns the Redis address used for sessions and rate
// limiting; empty means Redis is not configured.
func GetRedisAddr() string {
	return os.Getenv("SHEETPLOT_REDIS_ADDR")
}

func GetRedisPassword() string {
	return os.Getenv("SHEETPLOT_REDIS_PASSWORD")
}

// GetLoginRateLimit is the number of POSTs per minute allowed to the login
// and register forms from a single client. Zero disables the limiter.
func GetLoginRateLimit() int {
	n, err := strconv.Atoi(os.Getenv("SHEETPLOT_LOGIN_RATE_LIMIT"))
	if err != nil || n < 0 {
		return 0
	}
	return n
}

// GetMaxUploadBytes returns the cap applied to upload request bodies.
func GetMaxUploadBytes() int64 {
	mb, err := strconv.Atoi(os.Getenv("SHEETPLOT_MAX_UPLOAD_MB"))
	if err != nil || mb <= 0 {
		mb = defaultMaxUploadMB
	}
	return int64(mb) << 20
}
