package config

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"
)

func TestDefaultConfig(t *testing.T) {
	cfg := DefaultConfig()

	if cfg.Version != 1 {
		t.Errorf("Version = %d, want 1", cfg.Version)
	}
	if cfg.Datastore.Driver != DriverSQLite || cfg.Bus.Kind != BusLocal {
		t.Errorf("default stack = %s/%s, want sqlite/local", cfg.Datastore.Driver, cfg.Bus.Kind)
	}
	if cfg.Instance.Name == "" {
		t.Error("Instance.Name should default to something")
	}
	if err := cfg.Validate(); err != nil {
		t.Errorf("DefaultConfig().Validate() = %v", err)
	}
}

func TestParseAppliesDefaults(t *testing.T) {
	cfg, err := Parse([]byte(`
datastore:
  uri: neo4j://localhost:7687
databases: [movies, people]
bus:
  publish_endpoint: tcp://broker:5557
  subscribe_endpoint: tcp://broker:5558
`))
	if err != nil {
		t.Fatalf("Parse() error: %v", err)
	}

	if cfg.Datastore.Driver != DriverNeo4j {
		t.Errorf("Driver = %s, want neo4j", cfg.Datastore.Driver)
	}
	if cfg.Bus.Kind != BusZMQ || cfg.Bus.Codec != "msgpack" {
		t.Errorf("Bus = %+v", cfg.Bus)
	}
	if cfg.Transaction.PublishScope != "commit" {
		t.Errorf("PublishScope = %s, want commit", cfg.Transaction.PublishScope)
	}
	if got := cfg.Health.Interval.Duration(); got != 10*time.Second {
		t.Errorf("Health.Interval = %s, want 10s", got)
	}
	if cfg.Transaction.Timeout.Or(time.Minute) != time.Minute {
		t.Error("unset Transaction.Timeout should fall back")
	}
	if err := cfg.Validate(); err != nil {
		t.Errorf("Validate() = %v", err)
	}
}

func TestParseDurations(t *testing.T) {
	cfg, err := Parse([]byte(`
transaction:
  timeout: 750ms
health:
  interval: 1m
`))
	if err != nil {
		t.Fatalf("Parse() error: %v", err)
	}
	if got := cfg.Transaction.Timeout.Or(0); got != 750*time.Millisecond {
		t.Errorf("Transaction.Timeout = %s", got)
	}
	if got := cfg.Health.Interval.Duration(); got != time.Minute {
		t.Errorf("Health.Interval = %s", got)
	}

	if _, err := Parse([]byte("health:\n  interval: soon\n")); err == nil {
		t.Error("expected error for invalid duration")
	}
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name    string
		mutate  func(c *Config)
		wantErr string
	}{
		{"defaults", func(c *Config) {}, ""},
		{"unknown driver", func(c *Config) { c.Datastore.Driver = "mysql" }, "datastore.driver"},
		{"neo4j without uri", func(c *Config) { c.Datastore.Driver = DriverNeo4j }, "datastore.uri"},
		{"sqlite without dir", func(c *Config) { c.Datastore.Dir = "" }, "datastore.dir"},
		{"zmq without endpoints", func(c *Config) { c.Bus.Kind = BusZMQ }, "bus.publish_endpoint"},
		{"unknown bus", func(c *Config) { c.Bus.Kind = "kafka" }, "bus.kind"},
		{"unknown codec", func(c *Config) { c.Bus.Codec = "xml" }, "bus.codec"},
		{"unknown scope", func(c *Config) { c.Transaction.PublishScope = "all" }, "publish_scope"},
		{"bad database name", func(c *Config) { c.Databases = []string{"../x"} }, "invalid name"},
		{"duplicate database", func(c *Config) { c.Databases = []string{"a", "a"} }, "listed twice"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := DefaultConfig()
			tt.mutate(cfg)
			err := cfg.Validate()

			if tt.wantErr == "" {
				if err != nil {
					t.Errorf("Validate() = %v, want nil", err)
				}
				return
			}
			if err == nil || !strings.Contains(err.Error(), tt.wantErr) {
				t.Errorf("Validate() = %v, want error containing %q", err, tt.wantErr)
			}
		})
	}
}

func TestApplyEnv(t *testing.T) {
	env := map[string]string{
		"BOOKMARKSYNC_INSTANCE":            "app-2",
		"BOOKMARKSYNC_DATASTORE_PASSWORD":  "secret",
		"BOOKMARKSYNC_DATABASES":           " movies, people ,,",
		"BOOKMARKSYNC_TRANSACTION_TIMEOUT": "3s",
	}
	cfg := DefaultConfig()
	cfg.ApplyEnv(func(k string) string { return env[k] })

	if cfg.Instance.Name != "app-2" {
		t.Errorf("Instance.Name = %s", cfg.Instance.Name)
	}
	if cfg.Datastore.Password != "secret" {
		t.Errorf("Datastore.Password not applied")
	}
	if len(cfg.Databases) != 2 || cfg.Databases[0] != "movies" || cfg.Databases[1] != "people" {
		t.Errorf("Databases = %v", cfg.Databases)
	}
	if got := cfg.Transaction.Timeout.Or(0); got != 3*time.Second {
		t.Errorf("Transaction.Timeout = %s", got)
	}
	// untouched values survive
	if cfg.HTTP.Addr != ":3000" {
		t.Errorf("HTTP.Addr = %s", cfg.HTTP.Addr)
	}
}

func TestNewLogger(t *testing.T) {
	for _, lc := range []LogConfig{{Level: "debug", Format: "console"}, {Level: "warn", Format: "json"}} {
		logger, err := lc.NewLogger()
		if err != nil {
			t.Fatalf("NewLogger(%+v) error: %v", lc, err)
		}
		logger.Sync()
	}
	if _, err := (LogConfig{Level: "loud"}).NewLogger(); err == nil {
		t.Error("expected error for unknown level")
	}
	if _, err := (LogConfig{Level: "info", Format: "xml"}).NewLogger(); err == nil {
		t.Error("expected error for unknown format")
	}
}

func TestSaveAndLoad(t *testing.T) {
	tmpDir := t.TempDir()
	configPath := filepath.Join(tmpDir, "config.yaml")

	cfg := DefaultConfig()
	cfg.Databases = []string{"movies", "people"}
	cfg.Bus.TopicPrefix = "bm"
	cfg.Transaction.Timeout = durationPtr(4 * time.Second)

	if err := cfg.Save(configPath); err != nil {
		t.Fatalf("Save() error: %v", err)
	}

	loaded, path, err := LoadFromPath(configPath)
	if err != nil {
		t.Fatalf("LoadFromPath() error: %v", err)
	}
	if path != configPath {
		t.Errorf("path = %s, want %s", path, configPath)
	}
	if len(loaded.Databases) != 2 || loaded.Databases[1] != "people" {
		t.Errorf("Databases = %v", loaded.Databases)
	}
	if loaded.Bus.TopicPrefix != "bm" {
		t.Errorf("TopicPrefix = %s", loaded.Bus.TopicPrefix)
	}
	if loaded.Transaction.Timeout.Or(0) != 4*time.Second {
		t.Errorf("Transaction.Timeout = %v", loaded.Transaction.Timeout)
	}
}

func TestFindConfigPath(t *testing.T) {
	tmpDir := t.TempDir()
	configPath := filepath.Join(tmpDir, ConfigFileName)

	cfg := DefaultConfig()
	if err := cfg.Save(configPath); err != nil {
		t.Fatalf("Save() error: %v", err)
	}

	oldWd, _ := os.Getwd()
	os.Chdir(tmpDir)
	defer os.Chdir(oldWd)

	if found := FindConfigPath(); found == "" {
		t.Error("FindConfigPath() should find config in working directory")
	}

	// explicit path that doesn't exist falls back
	t.Setenv(EnvConfigPath, "/nonexistent/path.yaml")
	if found := FindConfigPath(); found == "" {
		t.Error("FindConfigPath() should fall back when env path doesn't exist")
	}

	explicit := filepath.Join(tmpDir, "explicit.yaml")
	if err := cfg.Save(explicit); err != nil {
		t.Fatalf("Save() error: %v", err)
	}
	t.Setenv(EnvConfigPath, explicit)
	if found := FindConfigPath(); found != explicit {
		t.Errorf("FindConfigPath() = %s, want %s", found, explicit)
	}
}

func TestSearchPathsOrder(t *testing.T) {
	env := map[string]string{EnvConfigPath: "/srv/sync.yaml"}
	paths := SearchPaths(func(k string) string { return env[k] })

	if len(paths) < 3 {
		t.Fatalf("SearchPaths() = %v", paths)
	}
	if paths[0] != "/srv/sync.yaml" {
		t.Errorf("first = %s, want the explicit path", paths[0])
	}
	if filepath.Base(paths[1]) != ConfigFileName {
		t.Errorf("second = %s, want the working directory file", paths[1])
	}
	if last := paths[len(paths)-1]; last != filepath.Join("/etc", ConfigDirName, ConfigFileName) {
		t.Errorf("last = %s", last)
	}

	for _, path := range paths[1:] {
		if filepath.Base(path) != ConfigFileName {
			t.Errorf("candidate %s does not use %s", path, ConfigFileName)
		}
	}

	without := SearchPaths(func(string) string { return "" })
	if len(without) != len(paths)-1 {
		t.Errorf("unset %s should drop one candidate: %v", EnvConfigPath, without)
	}
}

func TestDuration(t *testing.T) {
	d := Duration(5 * time.Minute)

	if d.Duration() != 5*time.Minute {
		t.Errorf("Duration() = %s, want 5m", d.Duration())
	}

	marshaled, err := d.MarshalYAML()
	if err != nil {
		t.Fatalf("MarshalYAML() error: %v", err)
	}
	if marshaled != "5m0s" {
		t.Errorf("MarshalYAML() = %v, want 5m0s", marshaled)
	}

	var unset *Duration
	if unset.Or(time.Second) != time.Second {
		t.Error("nil Duration should use fallback")
	}
}
