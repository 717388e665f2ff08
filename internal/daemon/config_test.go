package daemon

import (
	"bytes"
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/taskbay/taskbay/internal/domain"
)

func TestDefaultConfig(t *testing.T) {
	t.Setenv("TASKBAY_HOME", "/tmp/taskbay-test")
	cfg := DefaultConfig()

	if cfg.API.Host != "127.0.0.1" {
		t.Errorf("API.Host = %q, want %q", cfg.API.Host, "127.0.0.1")
	}
	if cfg.API.Port != 8545 {
		t.Errorf("API.Port = %d, want %d", cfg.API.Port, 8545)
	}
	if cfg.Platform.FeePercentage != 1 {
		t.Errorf("Platform.FeePercentage = %d, want 1", cfg.Platform.FeePercentage)
	}
	if cfg.Platform.Owner != string(domain.Unassigned) {
		t.Errorf("Platform.Owner = %q, want zero address", cfg.Platform.Owner)
	}
	if cfg.Store.Dir != "/tmp/taskbay-test" {
		t.Errorf("Store.Dir = %q, want TASKBAY_HOME", cfg.Store.Dir)
	}
	if err := cfg.Validate(); err != nil {
		t.Errorf("default config invalid: %v", err)
	}
}

func TestLoadConfig_MissingFile(t *testing.T) {
	t.Setenv("TASKBAY_HOME", t.TempDir())
	cfg, err := LoadConfig()
	if err != nil {
		t.Fatalf("LoadConfig() error: %v", err)
	}
	if cfg.API.Port != 8545 {
		t.Errorf("API.Port = %d, want default", cfg.API.Port)
	}
}

func TestSaveAndLoadConfig(t *testing.T) {
	home := t.TempDir()
	t.Setenv("TASKBAY_HOME", home)

	cfg := DefaultConfig()
	cfg.Platform.Owner = "0xOwner"
	cfg.Platform.FeePercentage = 3
	cfg.API.Port = 9000
	cfg.Health.Interval = "15s"
	if err := SaveConfig(cfg); err != nil {
		t.Fatalf("SaveConfig() error: %v", err)
	}
	if _, err := os.Stat(filepath.Join(home, "config.toml")); err != nil {
		t.Fatalf("config.toml not written: %v", err)
	}

	got, err := LoadConfig()
	if err != nil {
		t.Fatalf("LoadConfig() error: %v", err)
	}
	if got.Platform.Owner != "0xOwner" || got.Platform.FeePercentage != 3 {
		t.Errorf("Platform = %+v", got.Platform)
	}
	if got.API.Port != 9000 || got.Health.Interval != "15s" {
		t.Errorf("API.Port = %d, Health.Interval = %q", got.API.Port, got.Health.Interval)
	}
}

func TestLoadConfig_Invalid(t *testing.T) {
	tests := []struct {
		name string
		toml string
		want string
	}{
		{"fee above 100", "[platform]\nfee_percentage = 150\n", "FeePercentage"},
		{"bad port", "[api]\nport = 70000\n", "Port"},
		{"bad level", "[logging]\nlevel = \"loud\"\n", "Level"},
		{"bad interval", "[health]\ninterval = \"soon\"\n", "health.interval"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			home := t.TempDir()
			t.Setenv("TASKBAY_HOME", home)
			if err := os.WriteFile(filepath.Join(home, "config.toml"), []byte(tt.toml), 0600); err != nil {
				t.Fatal(err)
			}
			_, err := LoadConfig()
			if err == nil {
				t.Fatal("LoadConfig() should reject the config")
			}
			if !strings.Contains(err.Error(), tt.want) {
				t.Errorf("error %q should mention %q", err, tt.want)
			}
		})
	}
}

func TestParseDuration(t *testing.T) {
	if got := parseDuration("15s", time.Minute); got != 15*time.Second {
		t.Errorf("parseDuration(15s) = %v", got)
	}
	if got := parseDuration("", time.Minute); got != time.Minute {
		t.Errorf("parseDuration(\"\") = %v, want fallback", got)
	}
	if got := parseDuration("nope", time.Minute); got != time.Minute {
		t.Errorf("parseDuration(nope) = %v, want fallback", got)
	}
}

func TestNewLogger_Level(t *testing.T) {
	var buf bytes.Buffer
	log := NewLogger("warn", &buf)
	log.Info("hidden")
	log.Warn("shown")

	out := buf.String()
	if strings.Contains(out, "hidden") {
		t.Error("info record should be filtered at warn level")
	}
	if !strings.Contains(out, "shown") {
		t.Error("warn record should be written")
	}
}

func TestNewWithConfig(t *testing.T) {
	home := t.TempDir()
	t.Setenv("TASKBAY_HOME", home)
	cfg := DefaultConfig()
	cfg.Platform.Owner = "0xOwner"
	cfg.Logging.Level = "error"

	d, err := NewWithConfig(cfg)
	if err != nil {
		t.Fatalf("NewWithConfig() error: %v", err)
	}
	defer d.Close()

	if d.Engine.Owner() != "0xOwner" {
		t.Errorf("Owner() = %s, want 0xOwner", d.Engine.Owner())
	}
	if d.Server == nil || d.Health == nil {
		t.Fatal("server and health checker should be wired")
	}
	if err := d.Engine.CheckSolvency(); err != nil {
		t.Errorf("CheckSolvency() error: %v", err)
	}
	if _, err := os.Stat(filepath.Join(home, "state.db")); err != nil {
		t.Errorf("state.db not created in store dir: %v", err)
	}
}

func TestServe_ShutsDownOnCancel(t *testing.T) {
	t.Setenv("TASKBAY_HOME", t.TempDir())
	cfg := DefaultConfig()
	cfg.API.Port = 0
	cfg.Logging.Level = "error"
	// Port 0 fails validation for config files but lets the kernel pick a port here.
	d, err := NewWithConfig(cfg)
	if err != nil {
		t.Fatalf("NewWithConfig() error: %v", err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	errCh := make(chan error, 1)
	go func() { errCh <- d.Serve(ctx) }()

	time.Sleep(50 * time.Millisecond)
	cancel()
	select {
	case err := <-errCh:
		if err != nil {
			t.Errorf("Serve() error: %v", err)
		}
	case <-time.After(5 * time.Second):
		t.Fatal("Serve() did not return after cancel")
	}
}
