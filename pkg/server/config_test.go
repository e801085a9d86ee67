package server

import (
	"os"
	"path/filepath"
	"testing"
	"time"
)

func TestDefaultConfig(t *testing.T) {
	cfg := DefaultConfig()
	if cfg.TCPHost != "127.0.0.1" {
		t.Errorf("TCPHost = %q, want loopback", cfg.TCPHost)
	}
	if cfg.TCPPort != 60000 {
		t.Errorf("TCPPort = %d, want 60000", cfg.TCPPort)
	}
	if cfg.HTTPAddr != ":8080" {
		t.Errorf("HTTPAddr = %q, want :8080", cfg.HTTPAddr)
	}
	if cfg.MaxMessageLength != 8192 {
		t.Errorf("MaxMessageLength = %d, want 8192", cfg.MaxMessageLength)
	}
	if cfg.OutboundQueueSize != 256 {
		t.Errorf("OutboundQueueSize = %d, want 256", cfg.OutboundQueueSize)
	}
	if cfg.TakeoverCloseDelay != 100*time.Millisecond {
		t.Errorf("TakeoverCloseDelay = %v, want 100ms", cfg.TakeoverCloseDelay)
	}
}

func TestLoadConfigCreatesDefault(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.toml")

	cfg, err := LoadConfig(path)
	if err != nil {
		t.Fatalf("LoadConfig: %v", err)
	}
	if cfg.Server.TCPPort != 60000 {
		t.Errorf("TCPPort = %d, want 60000", cfg.Server.TCPPort)
	}
	if cfg.Server.DataDir != "~/.messenger/data" {
		t.Errorf("DataDir = %q", cfg.Server.DataDir)
	}

	// The file now exists and round-trips
	if _, err := os.Stat(path); err != nil {
		t.Fatalf("config file not written: %v", err)
	}
	again, err := LoadConfig(path)
	if err != nil {
		t.Fatalf("LoadConfig (second): %v", err)
	}
	if again != cfg {
		t.Errorf("reloaded config differs: %+v vs %+v", again, cfg)
	}
}

func TestLoadConfigParsesFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.toml")
	content := `
[server]
tcp_host = "0.0.0.0"
tcp_port = 50000
http_addr = ":9090"
data_dir = "/var/lib/messenger"

[limits]
max_message_length = 4096
outbound_queue_size = 64
`
	if err := os.WriteFile(path, []byte(content), 0644); err != nil {
		t.Fatalf("write config: %v", err)
	}

	cfg, err := LoadConfig(path)
	if err != nil {
		t.Fatalf("LoadConfig: %v", err)
	}
	if cfg.Server.TCPHost != "0.0.0.0" || cfg.Server.TCPPort != 50000 || cfg.Server.HTTPAddr != ":9090" {
		t.Errorf("unexpected server section: %+v", cfg.Server)
	}
	if cfg.Limits.MaxMessageLength != 4096 || cfg.Limits.OutboundQueueSize != 64 {
		t.Errorf("unexpected limits section: %+v", cfg.Limits)
	}
}

func TestToServerConfig(t *testing.T) {
	cfg := TOMLConfig{
		Server: TOMLServerSection{TCPPort: 50000, HTTPAddr: ":9090"},
		Limits: TOMLLimitsSection{MaxMessageLength: 4096, OutboundQueueSize: 64},
	}

	sc := cfg.ToServerConfig()
	if sc.TCPPort != 50000 || sc.HTTPAddr != ":9090" {
		t.Errorf("unexpected server config: %+v", sc)
	}
	if sc.MaxMessageLength != 4096 || sc.OutboundQueueSize != 64 {
		t.Errorf("unexpected limits: %+v", sc)
	}
}

func TestToServerConfigZeroValuesKeepDefaults(t *testing.T) {
	var cfg TOMLConfig

	sc := cfg.ToServerConfig()
	if sc.TCPHost != "127.0.0.1" || sc.TCPPort != 60000 || sc.HTTPAddr != ":8080" {
		t.Errorf("zero config did not fall back to defaults: %+v", sc)
	}
	if sc.MaxMessageLength != 8192 || sc.OutboundQueueSize != 256 {
		t.Errorf("zero limits did not fall back to defaults: %+v", sc)
	}
}
