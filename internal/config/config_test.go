package config

import (
	"bytes"
	"os"
	"path/filepath"
	"testing"
)

func TestManager_ReadWrite_RoundTrip(t *testing.T) {
	original := &Config{
		DeviceID: "test-device-abc",
		CenterID: "CENTER-07",
		AgentID:  "AGENT-42",
		BaseDir:  "/home/user/.local/share/pav",
		LogDir:   "/home/user/.local/share/pav/log",
		Database: DatabaseConfig{Type: "sqlite", DataDir: "/home/user/.local/share/pav/data"},
		Sink: SinkConfig{
			Type:         "mqtt",
			MQTTBroker:   "tcp://broker.example.com:1883",
			MQTTTopic:    "pav/arrivals",
			MQTTClientID: "pav-test-device-abc",
		},
		Network: NetworkConfig{ProbeAddr: "broker.example.com:1883", TimeoutSeconds: 5},
		Backup:  BackupConfig{Dir: "/home/user/.local/share/pav/backups"},
		Encryption: EncryptionConfig{
			PublicKeyPath:  "/home/user/.local/share/pav/keys/pav.pub",
			PrivateKeyPath: "/home/user/.local/share/pav/keys/pav.key",
		},
	}

	var buf bytes.Buffer
	m := &Manager{}

	if err := m.Write(&buf, original); err != nil {
		t.Fatalf("Write() error = %v", err)
	}

	got, err := m.Read(&buf)
	if err != nil {
		t.Fatalf("Read() error = %v", err)
	}

	if got.DeviceID != original.DeviceID {
		t.Errorf("DeviceID = %q, want %q", got.DeviceID, original.DeviceID)
	}
	if got.CenterID != original.CenterID {
		t.Errorf("CenterID = %q, want %q", got.CenterID, original.CenterID)
	}
	if got.AgentID != original.AgentID {
		t.Errorf("AgentID = %q, want %q", got.AgentID, original.AgentID)
	}
	if got.Database.Type != "sqlite" {
		t.Errorf("Database.Type = %q, want %q", got.Database.Type, "sqlite")
	}
	if got.Sink.Type != "mqtt" {
		t.Errorf("Sink.Type = %q, want %q", got.Sink.Type, "mqtt")
	}
	if got.Sink.MQTTBroker != original.Sink.MQTTBroker {
		t.Errorf("Sink.MQTTBroker = %q, want %q", got.Sink.MQTTBroker, original.Sink.MQTTBroker)
	}
	if got.Network.ProbeAddr != original.Network.ProbeAddr {
		t.Errorf("Network.ProbeAddr = %q, want %q", got.Network.ProbeAddr, original.Network.ProbeAddr)
	}
	if got.Network.TimeoutSeconds != 5 {
		t.Errorf("Network.TimeoutSeconds = %d, want 5", got.Network.TimeoutSeconds)
	}
	if got.Backup.Dir != original.Backup.Dir {
		t.Errorf("Backup.Dir = %q, want %q", got.Backup.Dir, original.Backup.Dir)
	}
	if got.Encryption.PrivateKeyPath != original.Encryption.PrivateKeyPath {
		t.Errorf("Encryption.PrivateKeyPath = %q, want %q", got.Encryption.PrivateKeyPath, original.Encryption.PrivateKeyPath)
	}
}

func TestNewConfig(t *testing.T) {
	cfg := NewConfig("device-1", "/data/pav")

	if cfg.DeviceID != "device-1" {
		t.Errorf("DeviceID = %q, want %q", cfg.DeviceID, "device-1")
	}
	if cfg.BaseDir != "/data/pav" {
		t.Errorf("BaseDir = %q, want %q", cfg.BaseDir, "/data/pav")
	}
	if cfg.LogDir != "/data/pav/log" {
		t.Errorf("LogDir = %q, want %q", cfg.LogDir, "/data/pav/log")
	}
	if cfg.Database.DataDir != "/data/pav/data" {
		t.Errorf("Database.DataDir = %q, want %q", cfg.Database.DataDir, "/data/pav/data")
	}
	if cfg.Sink.Type != "http" {
		t.Errorf("Sink.Type = %q, want %q", cfg.Sink.Type, "http")
	}
	if cfg.Backup.Dir != "/data/pav/backups" {
		t.Errorf("Backup.Dir = %q, want %q", cfg.Backup.Dir, "/data/pav/backups")
	}
	if cfg.Encryption.PublicKeyPath != "/data/pav/keys/pav.pub" {
		t.Errorf("Encryption.PublicKeyPath = %q, want %q", cfg.Encryption.PublicKeyPath, "/data/pav/keys/pav.pub")
	}
}

func TestInit(t *testing.T) {
	t.Run("creates config file", func(t *testing.T) {
		dir := t.TempDir()
		path := filepath.Join(dir, "pav.toml")
		cfg := NewConfig("d1", dir)

		if err := Init(path, cfg); err != nil {
			t.Fatalf("Init() error = %v", err)
		}

		if _, err := os.Stat(path); err != nil {
			t.Fatalf("config file not created: %v", err)
		}

		got, err := ReadFromFile(path)
		if err != nil {
			t.Fatalf("ReadFromFile() error = %v", err)
		}
		if got.DeviceID != "d1" {
			t.Errorf("DeviceID = %q, want %q", got.DeviceID, "d1")
		}
	})

	t.Run("fails if file already exists", func(t *testing.T) {
		dir := t.TempDir()
		path := filepath.Join(dir, "pav.toml")
		cfg := NewConfig("d1", dir)

		if err := Init(path, cfg); err != nil {
			t.Fatalf("first Init() error = %v", err)
		}

		if err := Init(path, cfg); err == nil {
			t.Error("second Init() error = nil, want error")
		}
	})
}
