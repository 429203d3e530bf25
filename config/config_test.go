package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"
)

func TestLoadDefaults(t *testing.T) {
	for _, k := range []string{"DEBUG", "BOARD_API_PORT", "BOARD_ID", "STORE_BACKEND", "SNAPSHOT_CACHE_TTL", "MAGIC_TIMEOUT", "PERSIST_WORKERS", "PERSIST_HANDOFF_TIMEOUT"} {
		t.Setenv(k, "")
	}
	c := Load()
	if c.Debug || c.Port != "8080" || c.BoardID != "default" || c.Backend != BackendMemory {
		t.Fatalf("unexpected defaults %+v", c)
	}
	if c.SnapshotCacheTTL != time.Minute || c.MagicTimeout != 15*time.Second {
		t.Fatalf("unexpected durations %+v", c)
	}
	if c.PersistWorkers != 1 || c.PersistHandoffTimeout != 15*time.Millisecond {
		t.Fatalf("unexpected persist settings %+v", c)
	}
	if err := c.Validate(); err != nil {
		t.Fatalf("defaults should validate: %v", err)
	}
}

func TestLoadOverrides(t *testing.T) {
	t.Setenv("DEBUG", "true")
	t.Setenv("STORE_BACKEND", "Tables")
	t.Setenv("PERSIST_WORKERS", "4")
	t.Setenv("MAGIC_TIMEOUT", "2s")
	t.Setenv("SNAPSHOT_CACHE_TTL", "not-a-duration")

	c := Load()
	if !c.Debug || c.Backend != BackendTables || c.PersistWorkers != 4 || c.MagicTimeout != 2*time.Second {
		t.Fatalf("overrides not applied: %+v", c)
	}
	if c.SnapshotCacheTTL != time.Minute {
		t.Fatalf("invalid duration should fall back, got %v", c.SnapshotCacheTTL)
	}
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name    string
		cfg     Config
		wantErr bool
	}{
		{name: "memory", cfg: Config{Backend: BackendMemory, BoardID: "b", PersistWorkers: 1}},
		{name: "tables missing conn", cfg: Config{Backend: BackendTables, BoardID: "b", PersistWorkers: 1, TasksTable: "t", ConfigTable: "c"}, wantErr: true},
		{name: "tables ok", cfg: Config{Backend: BackendTables, BoardID: "b", PersistWorkers: 1, StorageConnectionString: "x", TasksTable: "t", ConfigTable: "c", RedisConnectionString: "localhost:6379"}},
		{name: "firestore missing project", cfg: Config{Backend: BackendFirestore, BoardID: "b", PersistWorkers: 1}, wantErr: true},
		{name: "firestore ok", cfg: Config{Backend: BackendFirestore, BoardID: "b", PersistWorkers: 1, FirestoreProjectID: "p"}},
		{name: "unknown backend", cfg: Config{Backend: "sqlite", BoardID: "b", PersistWorkers: 1}, wantErr: true},
		{name: "quote in board id", cfg: Config{Backend: BackendMemory, BoardID: "a'b", PersistWorkers: 1}, wantErr: true},
		{name: "no workers", cfg: Config{Backend: BackendMemory, BoardID: "b"}, wantErr: true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.cfg.Validate()
			if (err != nil) != tt.wantErr {
				t.Fatalf("Validate() = %v, wantErr %v", err, tt.wantErr)
			}
		})
	}
}

func TestRedisOptions(t *testing.T) {
	tests := []struct {
		name     string
		conn     string
		addr     string
		password string
		tls      bool
		wantErr  bool
	}{
		{name: "url", conn: "redis://:secret@cache:6380/0", addr: "cache:6380", password: "secret"},
		{name: "azure", conn: "board.redis.cache.windows.net:6380,password=pw=,ssl=True,abortConnect=False", addr: "board.redis.cache.windows.net:6380", password: "pw=", tls: true},
		{name: "plain host", conn: "localhost:6379", addr: "localhost:6379"},
		{name: "empty", conn: "", wantErr: true},
		{name: "no host", conn: "password=x", wantErr: true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			opts, err := RedisOptions(tt.conn)
			if tt.wantErr {
				if err == nil {
					t.Fatalf("expected error, got %+v", opts)
				}
				return
			}
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			if opts.Addr != tt.addr || opts.Password != tt.password || (opts.TLSConfig != nil) != tt.tls {
				t.Fatalf("unexpected options addr=%s password=%s tls=%v", opts.Addr, opts.Password, opts.TLSConfig != nil)
			}
		})
	}
}

func TestLoadDotEnv(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "test.env")
	if err := os.WriteFile(path, []byte("BOARD_ID=from-file\n"), 0o600); err != nil {
		t.Fatalf("write env file: %v", err)
	}
	t.Setenv("BOARD_ID", "")
	os.Unsetenv("BOARD_ID")

	if !LoadDotEnv(path) {
		t.Fatal("expected env file to load")
	}
	if got := Load().BoardID; got != "from-file" {
		t.Fatalf("expected BOARD_ID from file, got %q", got)
	}
	if LoadDotEnv(filepath.Join(dir, "missing.env")) {
		t.Fatal("missing file should report false")
	}
}
