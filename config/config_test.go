package config

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"
)

func writeConfig(t *testing.T, path, body string) {
	t.Helper()
	if err := os.WriteFile(path, []byte(body), 0644); err != nil {
		t.Fatal(err)
	}
}

func TestDefaultIsValid(t *testing.T) {
	if err := Default().Validate(); err != nil {
		t.Fatalf("Default().Validate() = %v", err)
	}
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name   string
		modify func(c *Config)
	}{
		{"zero fps", func(c *Config) { c.FPS = 0 }},
		{"short fourcc", func(c *Config) { c.FourCC = "mp4" }},
		{"unknown encoder", func(c *Config) { c.Encoder = "gstreamer" }},
		{"unknown key mode", func(c *Config) { c.KeyMode = "release" }},
		{"negative device", func(c *Config) { c.Device = -1 }},
		{"empty base path", func(c *Config) { c.BasePath = "" }},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			c := Default()
			tc.modify(c)
			if err := c.Validate(); err == nil {
				t.Errorf("Validate() = nil, want error")
			}
		})
	}
}

func TestConfigFromFileMergesDefaults(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.json")
	writeConfig(t, path, `{"Device": 2, "FPS": 30}`)

	c, err := configFromFile(path)
	if err != nil {
		t.Fatal(err)
	}
	if c.Device != 2 || c.FPS != 30 {
		t.Errorf("file values not applied: %+v", c)
	}
	if c.FourCC != "mp4v" || c.Encoder != EncoderOpenCV {
		t.Errorf("defaults not kept: %+v", c)
	}
}

func TestConfigFromFileRejects(t *testing.T) {
	dir := t.TempDir()
	for name, body := range map[string]string{
		"unknown field": `{"Devise": 1}`,
		"invalid":       `{"FPS": -1}`,
		"syntax":        `{"FPS": `,
	} {
		path := filepath.Join(dir, "config.json")
		writeConfig(t, path, body)
		if _, err := configFromFile(path); err == nil {
			t.Errorf("%s: expected error", name)
		}
	}
	if _, err := configFromFile(filepath.Join(dir, "missing.json")); err == nil {
		t.Errorf("missing file: expected error")
	}
}

func TestLoadReloadsOnChange(t *testing.T) {
	defer Set(Default())

	path := filepath.Join(t.TempDir(), "config.json")
	writeConfig(t, path, `{"FPS": 10}`)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	if err := Load(ctx, path); err != nil {
		t.Fatal(err)
	}
	if got := Get().FPS; got != 10 {
		t.Fatalf("FPS = %v, want 10", got)
	}

	// Keep rewriting until the watcher, which may not be armed yet, sees it.
	deadline := time.Now().Add(5 * time.Second)
	for Get().FPS != 25 {
		if time.Now().After(deadline) {
			t.Fatalf("config was not reloaded, FPS = %v", Get().FPS)
		}
		writeConfig(t, path, `{"FPS": 25}`)
		time.Sleep(50 * time.Millisecond)
	}

	// An invalid update keeps the previous configuration.
	writeConfig(t, path, `{"FPS": 0}`)
	time.Sleep(300 * time.Millisecond)
	if got := Get().FPS; got != 25 {
		t.Errorf("invalid update applied, FPS = %v", got)
	}
}
