package configloader

import (
	"os"
	"path/filepath"
	"testing"
	"time"
)

type testConfig struct {
	Name    string        `mapstructure:"name"`
	Timeout time.Duration `mapstructure:"timeout"`
	Enabled bool          `mapstructure:"enabled"`
	From    time.Time     `mapstructure:"from"`
	Tags    []string      `mapstructure:"tags"`
}

func (c *testConfig) Validate() error { return nil }

func TestLoad_DefaultsFileAndEnv(t *testing.T) {
	RegisterDefaults("name", "default")
	RegisterDefaults("timeout", "5s")
	RegisterDefaults("enabled", false)

	dir := t.TempDir()
	path := filepath.Join(dir, "cfg.yaml")
	yaml := "name: from-file\nfrom: \"2024-01-02T03:04:05Z\"\ntags: [a, b]\n"
	if err := os.WriteFile(path, []byte(yaml), 0o600); err != nil {
		t.Fatal(err)
	}
	t.Setenv("CLTEST_ENABLED", "true")

	var cfg testConfig
	if err := Load(path, "CLTEST", &cfg); err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.Name != "from-file" {
		t.Errorf("Name = %q", cfg.Name)
	}
	if cfg.Timeout != 5*time.Second {
		t.Errorf("Timeout = %v", cfg.Timeout)
	}
	if !cfg.Enabled {
		t.Error("Enabled should come from env")
	}
	want := time.Date(2024, 1, 2, 3, 4, 5, 0, time.UTC)
	if !cfg.From.Equal(want) {
		t.Errorf("From = %v; want %v", cfg.From, want)
	}
	if len(cfg.Tags) != 2 {
		t.Errorf("Tags = %v", cfg.Tags)
	}
}

func TestLoad_MissingFile(t *testing.T) {
	var cfg testConfig
	if err := Load("/nonexistent/cfg.yaml", "CLTEST", &cfg); err == nil {
		t.Fatal("expected error for missing file")
	}
}
