package config

import (
	"fmt"
	"io"
	"os"
	"path/filepath"

	"github.com/BurntSushi/toml"
)

// Config represents the main configuration for docwallet.
type Config struct {
	BaseDir      string           `toml:"base_dir"`
	LogDir       string           `toml:"log_dir"`
	LogLevel     string           `toml:"log_level"` // debug, info, warn or error
	DocumentsDir string           `toml:"documents_dir"`
	IndexPath    string           `toml:"index_path"`
	ProfilePath  string           `toml:"profile_path"`
	BackupsDir   string           `toml:"backups_dir"`
	Vaults       []VaultConfig    `toml:"vaults"`
	Encryption   EncryptionConfig `toml:"encryption"`
	Database     DatabaseConfig   `toml:"database"`
	Filesystem   FilesystemConfig `toml:"filesystem"`
}

// EncryptionConfig holds paths to the age key pair used for backup encryption.
type EncryptionConfig struct {
	Type           string `toml:"type"` // "age" (default) or "test"
	PublicKeyPath  string `toml:"public_key_path"`
	PrivateKeyPath string `toml:"private_key_path"`
}

// FilesystemConfig holds filesystem-related settings.
type FilesystemConfig struct {
	// Ignore lists extra patterns for files in the document folder that are
	// neither listed, checked nor backed up.
	Ignore []string `toml:"ignore"`
}

// VaultConfig represents configuration for a backup vault.
// This uses a tagged union pattern - the Type field determines which other fields are relevant.
type VaultConfig struct {
	Type string `toml:"type"` // "memory", "s3", or "filesystem"
	Name string `toml:"name"`

	// S3-specific fields (only used when Type == "s3")
	S3Bucket   string `toml:"s3_bucket,omitempty"`
	S3Prefix   string `toml:"s3_prefix,omitempty"`
	S3Region   string `toml:"s3_region,omitempty"`
	S3Endpoint string `toml:"s3_endpoint,omitempty"` // for S3-compatible services
	// Static credentials; when empty the default AWS credential chain is used.
	S3AccessKeyID     string `toml:"s3_access_key_id,omitempty"`
	S3SecretAccessKey string `toml:"s3_secret_access_key,omitempty"`

	// FileSystem-specific fields (only used when Type == "filesystem")
	FSVaultRoot string `toml:"fs_vault_root,omitempty"`
}

// DatabaseConfig represents configuration for the history database.
// This uses a tagged union pattern - the Type field determines which other fields are relevant.
type DatabaseConfig struct {
	Type    string `toml:"type"`               // "sqlite" or "memory"
	DataDir string `toml:"data_dir,omitempty"` // only used for type=sqlite
}

// NewConfig creates a new Config rooted at baseDir with default paths.
func NewConfig(baseDir string) *Config {
	cfg := &Config{BaseDir: baseDir}
	cfg.fillDefaults()
	return cfg
}

// fillDefaults sets every empty path relative to BaseDir.
func (c *Config) fillDefaults() {
	set := func(field *string, parts ...string) {
		if *field == "" {
			*field = filepath.Join(append([]string{c.BaseDir}, parts...)...)
		}
	}
	set(&c.LogDir, "log")
	if c.LogLevel == "" {
		c.LogLevel = "info"
	}
	set(&c.DocumentsDir, "documentos")
	set(&c.IndexPath, "archivos.json")
	set(&c.ProfilePath, "perfil.json")
	set(&c.BackupsDir, "backups")
	set(&c.Encryption.PublicKeyPath, "keys", "docwallet.pub")
	set(&c.Encryption.PrivateKeyPath, "keys", "docwallet.key")
	if c.Database.Type == "" {
		c.Database.Type = "sqlite"
	}
	if c.Database.Type == "sqlite" {
		set(&c.Database.DataDir, "db")
	}
}

// Manager handles reading and writing configuration.
type Manager struct{}

// Read decodes a Config from the provided reader. Paths left out are
// derived from base_dir.
func (m *Manager) Read(r io.Reader) (*Config, error) {
	var cfg Config
	if _, err := toml.NewDecoder(r).Decode(&cfg); err != nil {
		return nil, fmt.Errorf("failed to decode config: %w", err)
	}
	if cfg.BaseDir == "" {
		return nil, fmt.Errorf("config is missing base_dir")
	}
	cfg.fillDefaults()
	return &cfg, nil
}

// Write encodes a Config to the provided writer.
func (m *Manager) Write(w io.Writer, cfg *Config) error {
	if err := toml.NewEncoder(w).Encode(cfg); err != nil {
		return fmt.Errorf("failed to encode config: %w", err)
	}
	return nil
}

// ReadFromFile reads a Config from the specified file path.
func ReadFromFile(path string) (*Config, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open config file: %w", err)
	}
	defer f.Close()

	m := &Manager{}
	cfg, err := m.Read(f)
	if err != nil {
		return nil, fmt.Errorf("reading config from %s: %w", path, err)
	}
	return cfg, nil
}

// writeToFile writes a Config to the specified file path.
func writeToFile(path string, cfg *Config) error {
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return fmt.Errorf("failed to create config directory: %w", err)
	}

	f, err := os.OpenFile(path, os.O_WRONLY|os.O_CREATE|os.O_TRUNC, 0600)
	if err != nil {
		return fmt.Errorf("failed to create config file: %w", err)
	}
	defer f.Close()

	m := &Manager{}
	if err := m.Write(f, cfg); err != nil {
		return fmt.Errorf("writing config to %s: %w", path, err)
	}
	return nil
}

// Init initializes a new config file at the specified path with the provided Config.
func Init(path string, cfg *Config) error {
	if _, err := os.Stat(path); err == nil {
		return fmt.Errorf("config file already exists at %s", path)
	}

	if err := writeToFile(path, cfg); err != nil {
		return fmt.Errorf("initializing config: %w", err)
	}
	return nil
}
