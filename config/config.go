// Package config reads process settings from the environment.
package config

import (
	"crypto/tls"
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/redis/go-redis/v9"
)

// Store backends.
const (
	BackendMemory    = "memory"
	BackendTables    = "tables"
	BackendFirestore = "firestore"
)

type Config struct {
	Debug   bool
	Port    string
	BoardID string
	Backend string

	// Azure Table Storage + Redis
	StorageConnectionString string
	TasksTable              string
	ConfigTable             string
	RedisConnectionString   string
	SnapshotCacheTTL        time.Duration

	// Cloud Firestore
	FirestoreProjectID string
	CredentialsFile    string

	// Magic add
	GeminiAPIKey string
	MagicModel   string
	MagicTimeout time.Duration

	// Store write pool
	PersistWorkers        int
	PersistBuffer         int
	PersistTimeout        time.Duration
	PersistHandoffTimeout time.Duration
}

// LoadDotEnv loads variables from the given files (".env" when none) without
// overriding ones already set. It reports whether any file was read.
func LoadDotEnv(files ...string) bool {
	return godotenv.Load(files...) == nil
}

func Load() Config {
	return Config{
		Debug:   getenvBool("DEBUG", false),
		Port:    getenv("BOARD_API_PORT", "8080"),
		BoardID: getenv("BOARD_ID", "default"),
		Backend: strings.ToLower(getenv("STORE_BACKEND", BackendMemory)),

		StorageConnectionString: getenv("STORAGE_CONNECTION_STRING", ""),
		TasksTable:              getenv("TASKS_TABLE", "BoardTasks"),
		ConfigTable:             getenv("CONFIG_TABLE", "BoardConfig"),
		RedisConnectionString:   getenv("REDIS_CONNECTION_STRING", ""),
		SnapshotCacheTTL:        getenvDuration("SNAPSHOT_CACHE_TTL", time.Minute),

		FirestoreProjectID: getenv("FIRESTORE_PROJECT_ID", ""),
		CredentialsFile:    getenv("GOOGLE_APPLICATION_CREDENTIALS", ""),

		GeminiAPIKey: getenv("GEMINI_API_KEY", ""),
		MagicModel:   getenv("MAGIC_MODEL", ""),
		MagicTimeout: getenvDuration("MAGIC_TIMEOUT", 15*time.Second),

		PersistWorkers:        getenvInt("PERSIST_WORKERS", 1),
		PersistBuffer:         getenvInt("PERSIST_BUFFER", 256),
		PersistTimeout:        getenvDuration("PERSIST_TIMEOUT", 30*time.Second),
		PersistHandoffTimeout: getenvDuration("PERSIST_HANDOFF_TIMEOUT", 15*time.Millisecond),
	}
}

// Validate reports settings the selected backend cannot run without.
func (c Config) Validate() error {
	var errs []error
	switch c.Backend {
	case BackendMemory:
	case BackendTables:
		if c.StorageConnectionString == "" {
			errs = append(errs, errors.New("missing STORAGE_CONNECTION_STRING"))
		}
		if c.TasksTable == "" || c.ConfigTable == "" {
			errs = append(errs, errors.New("missing TASKS_TABLE or CONFIG_TABLE"))
		}
		if c.RedisConnectionString == "" {
			errs = append(errs, errors.New("missing REDIS_CONNECTION_STRING"))
		}
	case BackendFirestore:
		if c.FirestoreProjectID == "" && c.CredentialsFile == "" {
			errs = append(errs, errors.New("missing FIRESTORE_PROJECT_ID or GOOGLE_APPLICATION_CREDENTIALS"))
		}
	default:
		errs = append(errs, fmt.Errorf("unknown STORE_BACKEND %q", c.Backend))
	}
	if c.BoardID == "" || strings.ContainsAny(c.BoardID, "'/\\#?") {
		errs = append(errs, fmt.Errorf("invalid BOARD_ID %q", c.BoardID))
	}
	if c.PersistWorkers <= 0 {
		errs = append(errs, errors.New("invalid PERSIST_WORKERS: must be greater than zero"))
	}
	return errors.Join(errs...)
}

// RedisOptions accepts redis:// URLs as well as the Azure Cache form
// "host:port,password=...,ssl=true".
func RedisOptions(conn string) (*redis.Options, error) {
	if conn == "" {
		return nil, errors.New("missing redis config")
	}
	if opts, err := redis.ParseURL(conn); err == nil {
		return opts, nil
	}
	parts := strings.Split(conn, ",")
	if strings.Contains(parts[0], "=") {
		return nil, fmt.Errorf("invalid redis connection string: missing host")
	}
	opts := &redis.Options{Addr: strings.TrimSpace(parts[0])}
	for _, p := range parts[1:] {
		kv := strings.SplitN(p, "=", 2)
		if len(kv) != 2 {
			continue
		}
		switch strings.ToLower(strings.TrimSpace(kv[0])) {
		case "password":
			opts.Password = kv[1]
		case "ssl":
			if strings.EqualFold(strings.TrimSpace(kv[1]), "true") {
				opts.TLSConfig = &tls.Config{MinVersion: tls.VersionTLS12}
			}
		}
	}
	return opts, nil
}

func getenv(key, fallback string) string {
	value := os.Getenv(key)
	if value == "" {
		return fallback
	}
	return value
}

func getenvInt(key string, fallback int) int {
	value := os.Getenv(key)
	if value == "" {
		return fallback
	}
	parsed, err := strconv.Atoi(value)
	if err != nil {
		return fallback
	}
	return parsed
}

func getenvBool(key string, fallback bool) bool {
	parsed, err := strconv.ParseBool(os.Getenv(key))
	if err != nil {
		return fallback
	}
	return parsed
}

func getenvDuration(key string, fallback time.Duration) time.Duration {
	value := os.Getenv(key)
	if value == "" {
		return fallback
	}
	parsed, err := time.ParseDuration(value)
	if err != nil || parsed < 0 {
		return fallback
	}
	return parsed
}
