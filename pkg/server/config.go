package server

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/BurntSushi/toml"
)

// TOMLConfig represents the structure of the server config file
type TOMLConfig struct {
	Server TOMLServerSection `toml:"server"`
	Limits TOMLLimitsSection `toml:"limits"`
}

type TOMLServerSection struct {
	TCPHost  string `toml:"tcp_host"`
	TCPPort  int    `toml:"tcp_port"`
	HTTPAddr string `toml:"http_addr"`
	DataDir  string `toml:"data_dir"`
}

type TOMLLimitsSection struct {
	MaxMessageLength  int `toml:"max_message_length"`
	OutboundQueueSize int `toml:"outbound_queue_size"`
}

// DefaultTOMLConfig returns the default TOML configuration
func DefaultTOMLConfig() TOMLConfig {
	return TOMLConfig{
		Server: TOMLServerSection{
			TCPHost:  "127.0.0.1",
			TCPPort:  60000,
			HTTPAddr: ":8080",
			DataDir:  "~/.messenger/data",
		},
		Limits: TOMLLimitsSection{
			MaxMessageLength:  8192,
			OutboundQueueSize: 256,
		},
	}
}

// LoadConfig loads configuration from a TOML file, creates default if not found
func LoadConfig(path string) (TOMLConfig, error) {
	path, err := expandHome(path)
	if err != nil {
		return TOMLConfig{}, err
	}

	if _, err := os.Stat(path); os.IsNotExist(err) {
		config := DefaultTOMLConfig()
		if err := writeDefaultConfig(path, config); err != nil {
			// If we can't write, just return defaults without error
			// (might be a permissions issue, but we can still run)
			return config, nil
		}
		return config, nil
	}

	var config TOMLConfig
	if _, err := toml.DecodeFile(path, &config); err != nil {
		return TOMLConfig{}, fmt.Errorf("failed to parse config file: %w", err)
	}

	return config, nil
}

// writeDefaultConfig writes the default config to a file
func writeDefaultConfig(path string, config TOMLConfig) error {
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return fmt.Errorf("failed to create config directory: %w", err)
	}

	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("failed to create config file: %w", err)
	}
	defer f.Close()

	header := `# Messenger Server Configuration
# This file was auto-generated with default values
# Edit as needed and restart the server for changes to take effect

`
	if _, err := f.WriteString(header); err != nil {
		return err
	}

	encoder := toml.NewEncoder(f)
	if err := encoder.Encode(config); err != nil {
		return fmt.Errorf("failed to write config: %w", err)
	}

	return nil
}

// ToServerConfig converts TOMLConfig to ServerConfig
func (c *TOMLConfig) ToServerConfig() ServerConfig {
	cfg := DefaultConfig()

	if strings.TrimSpace(c.Server.TCPHost) != "" {
		cfg.TCPHost = c.Server.TCPHost
	}

	if c.Server.TCPPort != 0 {
		cfg.TCPPort = c.Server.TCPPort
	}

	if strings.TrimSpace(c.Server.HTTPAddr) != "" {
		cfg.HTTPAddr = c.Server.HTTPAddr
	}

	if c.Limits.MaxMessageLength != 0 {
		cfg.MaxMessageLength = uint32(c.Limits.MaxMessageLength)
	}

	if c.Limits.OutboundQueueSize != 0 {
		cfg.OutboundQueueSize = c.Limits.OutboundQueueSize
	}

	return cfg
}

// GetDataDir returns the data directory with ~ expanded
func (c *TOMLConfig) GetDataDir() (string, error) {
	return expandHome(c.Server.DataDir)
}

func expandHome(path string) (string, error) {
	if strings.HasPrefix(path, "~/") {
		homeDir, err := os.UserHomeDir()
		if err != nil {
			return "", fmt.Errorf("failed to get home directory: %w", err)
		}
		path = filepath.Join(homeDir, path[2:])
	}
	return path, nil
}
