package config

import (
	"os"
	"path/filepath"

	"github.com/BurntSushi/toml"
	"gitlab.com/tozd/go/errors"
	"gopkg.in/yaml.v3"
)

// Config represents the optional mtpsync configuration file.
type Config struct {
	Defaults DefaultsConfig `toml:"defaults" yaml:"defaults"`
	SFTP     SFTPConfig     `toml:"sftp"     yaml:"sftp"`
}

// DefaultsConfig holds persistent flag defaults. Nil means unset.
type DefaultsConfig struct {
	Verify         *bool   `toml:"verify"          yaml:"verify"`
	Recursive      *bool   `toml:"recursive"       yaml:"recursive"`
	BWLimit        *string `toml:"bwlimit"         yaml:"bwlimit"`
	StorageObjects *bool   `toml:"storage_objects" yaml:"storage_objects"`
	Device         *string `toml:"device"          yaml:"device"`
	TUI            *bool   `toml:"tui"             yaml:"tui"`
}

// SFTPConfig holds defaults for sftp:// devices.
type SFTPConfig struct {
	User       *string `toml:"user"        yaml:"user"`
	Port       *int    `toml:"port"        yaml:"port"`
	KeyFile    *string `toml:"key_file"    yaml:"key_file"`
	KnownHosts *string `toml:"known_hosts" yaml:"known_hosts"`
}

// Dir returns the mtpsync config directory.
func Dir() string {
	dir := os.Getenv("XDG_CONFIG_HOME")
	if dir == "" {
		home, err := os.UserHomeDir()
		if err != nil {
			return ""
		}
		dir = filepath.Join(home, ".config")
	}
	return filepath.Join(dir, "mtpsync")
}

// Path returns the config file that Load reads: config.toml, or
// config.yaml when only that exists. It returns the TOML path when
// neither exists.
func Path() string {
	dir := Dir()
	if dir == "" {
		return ""
	}
	tomlPath := filepath.Join(dir, "config.toml")
	if _, err := os.Stat(tomlPath); err == nil {
		return tomlPath
	}
	yamlPath := filepath.Join(dir, "config.yaml")
	if _, err := os.Stat(yamlPath); err == nil {
		return yamlPath
	}
	return tomlPath
}

// Load reads the config file from the XDG path. Returns a zero Config
// (no error) if the file does not exist. Config is always optional.
func Load() (Config, error) {
	path := Path()
	if path == "" {
		return Config{}, nil
	}
	return LoadFile(path)
}

// LoadFile reads the config file at path, decoding YAML for .yaml and .yml
// files and TOML otherwise. A missing file yields a zero Config.
func LoadFile(path string) (Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return Config{}, nil
		}
		return Config{}, errors.WithStack(err)
	}

	var cfg Config
	switch filepath.Ext(path) {
	case ".yaml", ".yml":
		err = yaml.Unmarshal(data, &cfg)
	default:
		err = toml.Unmarshal(data, &cfg)
	}
	if err != nil {
		return Config{}, errors.Errorf("parse %s: %w", path, err)
	}
	return cfg, nil
}
