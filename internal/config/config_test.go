package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"
)

func writeConfig(t *testing.T, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.yml")
	if err := os.WriteFile(path, []byte(body), 0o600); err != nil {
		t.Fatalf("write config: %v", err)
	}
	return path
}

func TestLoadFile_AppliesDefaults(t *testing.T) {
	path := writeConfig(t, "auth:\n  signing_key: secret\n")

	cfg, err := LoadFile(path)
	if err != nil {
		t.Fatalf("LoadFile: %v", err)
	}
	if cfg.Port != "8080" {
		t.Errorf("port: got %q", cfg.Port)
	}
	if cfg.Poller.StatusInterval != 500*time.Millisecond {
		t.Errorf("status interval: got %v", cfg.Poller.StatusInterval)
	}
	if cfg.Rig.WSMaxReconnect != 30*time.Second {
		t.Errorf("ws max reconnect: got %v", cfg.Rig.WSMaxReconnect)
	}
	if cfg.Auth.TokenTTL != time.Hour {
		t.Errorf("token ttl: got %v", cfg.Auth.TokenTTL)
	}
}

func TestLoadFile_OverridesFromFileAndEnv(t *testing.T) {
	path := writeConfig(t, `
port: "9090"
rig:
  base_url: http://rig.local:5000
  request_timeout: 2s
poller:
  status_interval: 250ms
auth:
  signing_key: from-file
`)
	t.Setenv("CALIB_AUTH_SIGNING_KEY", "from-env")

	cfg, err := LoadFile(path)
	if err != nil {
		t.Fatalf("LoadFile: %v", err)
	}
	if cfg.Port != "9090" || cfg.Rig.BaseURL != "http://rig.local:5000" {
		t.Fatalf("file values not applied: %+v", cfg)
	}
	if cfg.Rig.RequestTimeout != 2*time.Second || cfg.Poller.StatusInterval != 250*time.Millisecond {
		t.Fatalf("durations not decoded: %+v", cfg)
	}
	if cfg.Auth.SigningKey != "from-env" {
		t.Fatalf("env override not applied: %q", cfg.Auth.SigningKey)
	}
}

func TestLoadFile_Validation(t *testing.T) {
	cases := map[string]string{
		"missing signing key": "port: \"1\"\n",
		"influx without host": "auth:\n  signing_key: k\narchive:\n  influx:\n    enabled: true\n    database: d\n",
		"zero interval":       "auth:\n  signing_key: k\npoller:\n  status_interval: 0s\n",
	}
	for name, body := range cases {
		t.Run(name, func(t *testing.T) {
			if _, err := LoadFile(writeConfig(t, body)); err == nil {
				t.Fatalf("expected validation error")
			}
		})
	}
}

func TestLoad_EnvOnlyWithoutConfigFile(t *testing.T) {
	wd, err := os.Getwd()
	if err != nil {
		t.Fatalf("getwd: %v", err)
	}
	if err := os.Chdir(t.TempDir()); err != nil {
		t.Fatalf("chdir: %v", err)
	}
	t.Cleanup(func() { _ = os.Chdir(wd) })
	t.Setenv("CALIB_AUTH_SIGNING_KEY", "env-key")
	t.Setenv("CALIB_ARCHIVE_INFLUX_ENABLED", "true")
	t.Setenv("CALIB_ARCHIVE_INFLUX_HOST", "http://influx.local:8181")
	t.Setenv("CALIB_ARCHIVE_INFLUX_TOKEN", "tok")
	t.Setenv("CALIB_ARCHIVE_INFLUX_DATABASE", "calibration")

	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.Auth.SigningKey != "env-key" {
		t.Errorf("signing key: got %q", cfg.Auth.SigningKey)
	}
	influx := cfg.Archive.Influx
	if !influx.Enabled || influx.Host != "http://influx.local:8181" || influx.Token != "tok" || influx.Database != "calibration" {
		t.Errorf("influx from env: got %+v", influx)
	}
	if cfg.Port != "8080" {
		t.Errorf("port default: got %q", cfg.Port)
	}
}
