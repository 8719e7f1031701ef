package config

import (
	"flag"
	"os"
	"path/filepath"
	"testing"
)

func TestRegisterFlagsDefaults(t *testing.T) {
	c := &Config{}
	fs := flag.NewFlagSet("test", flag.ContinueOnError)
	c.RegisterFlags(fs)
	if err := fs.Parse(nil); err != nil {
		t.Fatalf("Parse: %v", err)
	}
	if c.LogDir != "/var/log/upstart" {
		t.Fatalf("LogDir = %q, want default", c.LogDir)
	}
	if c.StartupEvent != "startup" {
		t.Fatalf("StartupEvent = %q, want %q", c.StartupEvent, "startup")
	}
	if c.StateFD != -1 {
		t.Fatalf("StateFD = %d, want -1", c.StateFD)
	}
}

func TestRegisterFlagsConfdirRepeatable(t *testing.T) {
	c := &Config{}
	fs := flag.NewFlagSet("test", flag.ContinueOnError)
	c.RegisterFlags(fs)
	if err := fs.Parse([]string{"-confdir", "/etc/init", "-confdir", "/etc/init2"}); err != nil {
		t.Fatalf("Parse: %v", err)
	}
	if len(c.ConfDirs) != 2 || c.ConfDirs[0] != "/etc/init" || c.ConfDirs[1] != "/etc/init2" {
		t.Fatalf("ConfDirs = %v, want both entries in order", c.ConfDirs)
	}
}

func TestLoadFileDefaultsMissingFileIsNotAnError(t *testing.T) {
	c := &Config{LogDir: "/var/log/upstart"}
	if err := LoadFileDefaults(c, "/no/such/path/upstart.toml"); err != nil {
		t.Fatalf("LoadFileDefaults: %v", err)
	}
	if c.LogDir != "/var/log/upstart" {
		t.Fatalf("LogDir was mutated despite a missing file: %q", c.LogDir)
	}
}

func TestLoadFileDefaultsAppliesSetFields(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "upstart.toml")
	if err := os.WriteFile(path, []byte("log_dir = \"/custom/log\"\n"), 0o644); err != nil {
		t.Fatalf("WriteFile: %v", err)
	}
	c := &Config{LogDir: "/var/log/upstart", StartupEvent: "startup"}
	if err := LoadFileDefaults(c, path); err != nil {
		t.Fatalf("LoadFileDefaults: %v", err)
	}
	if c.LogDir != "/custom/log" {
		t.Fatalf("LogDir = %q, want /custom/log", c.LogDir)
	}
	if c.StartupEvent != "startup" {
		t.Fatalf("StartupEvent = %q, want unchanged default", c.StartupEvent)
	}
}

func TestDefaultFilePathSystemVsUser(t *testing.T) {
	if got := DefaultFilePath(false, "/home/foo"); got != "/etc/upstart/upstart.toml" {
		t.Fatalf("DefaultFilePath(system) = %q", got)
	}
	os.Unsetenv("XDG_CONFIG_HOME")
	if got := DefaultFilePath(true, "/home/foo"); got != "/home/foo/.config/upstart/upstart.toml" {
		t.Fatalf("DefaultFilePath(user) = %q", got)
	}
}
