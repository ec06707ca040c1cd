package config

import (
	"fmt"
	"io"
	"os"
	"path/filepath"

	"github.com/BurntSushi/toml"
)

// Config represents the main configuration for reel.
type Config struct {
	HostID     string            `toml:"host_id"`
	BaseDir    string            `toml:"base_dir"`
	LogDir     string            `toml:"log_dir"`
	Workspace  WorkspaceConfig   `toml:"workspace"`
	Vaults     []VaultConfig     `toml:"vaults"`
	Encryption EncryptionConfig  `toml:"encryption"`
	Database   DatabaseConfig    `toml:"database"`
	Worker     WorkerConfig      `toml:"worker"`
	Generators []GeneratorConfig `toml:"generators"`
	Filesystem FilesystemConfig  `toml:"filesystem"`
	Watch      WatchConfig       `toml:"watch"`
}

// WorkspaceConfig locates the documents. Each document is a directory under
// Root holding unit directories whose names start with one of UnitPrefixes.
type WorkspaceConfig struct {
	Root         string   `toml:"root"`
	UnitPrefixes []string `toml:"unit_prefixes,omitempty"`
}

// EncryptionConfig holds paths to the age key pair used to encrypt vault objects.
type EncryptionConfig struct {
	Type           string `toml:"type"` // "none" (default), "age" or "test"
	PublicKeyPath  string `toml:"public_key_path,omitempty"`
	PrivateKeyPath string `toml:"private_key_path,omitempty"`
}

// FilesystemConfig holds filesystem-related settings.
type FilesystemConfig struct {
	Ignore []string `toml:"ignore"`
}

// VaultConfig represents configuration for a vault backend.
// This uses a tagged union pattern - the Type field determines which other fields are relevant.
type VaultConfig struct {
	Type string `toml:"type"` // "memory", "s3", or "filesystem"
	Name string `toml:"name"`

	// S3-specific fields (only used when Type == "s3")
	S3Bucket          string `toml:"s3_bucket,omitempty"`
	S3Prefix          string `toml:"s3_prefix,omitempty"`
	S3Region          string `toml:"s3_region,omitempty"`
	S3Endpoint        string `toml:"s3_endpoint,omitempty"`
	S3AccessKeyID     string `toml:"s3_access_key_id,omitempty"`
	S3SecretAccessKey string `toml:"s3_secret_access_key,omitempty"`

	// FileSystem-specific fields (only used when Type == "filesystem")
	FSVaultRoot string `toml:"fs_vault_root,omitempty"`
}

// DatabaseConfig represents configuration for the journal database.
// This uses a tagged union pattern - the Type field determines which other fields are relevant.
type DatabaseConfig struct {
	Type    string `toml:"type"`               // "sqlite" or "memory"
	DataDir string `toml:"data_dir,omitempty"` // only used for type=sqlite
}

// WorkerConfig controls the queue worker loop.
type WorkerConfig struct {
	PollIntervalSeconds int     `toml:"poll_interval_seconds"`
	RequestsPerMinute   float64 `toml:"requests_per_minute"` // 0 means unlimited
}

// GeneratorConfig binds a content type to an external command. Command
// arguments may contain {input}, {output}, {prompt}, {version}, {type} and
// {dir} placeholders.
type GeneratorConfig struct {
	ContentType    string   `toml:"content_type"`
	Name           string   `toml:"name"`
	Command        []string `toml:"command"`
	TimeoutSeconds int      `toml:"timeout_seconds,omitempty"`
}

// WatchConfig controls the filesystem watcher.
type WatchConfig struct {
	DebounceMillis int `toml:"debounce_ms"`
}

// DefaultIgnore excludes ledger locks, claim sidecars and temp files from sync.
var DefaultIgnore = []string{
	"versions.json.lock",
	"*.processing",
	".*",
}

// NewConfig creates a new Config with the provided values and defaults
// rooted at baseDir.
func NewConfig(hostID, baseDir string) *Config {
	return &Config{
		HostID:  hostID,
		BaseDir: baseDir,
		LogDir:  filepath.Join(baseDir, "log"),
		Workspace: WorkspaceConfig{
			Root:         filepath.Join(baseDir, "output"),
			UnitPrefixes: []string{"scene_", "page_"},
		},
		Vaults: []VaultConfig{
			{Type: "filesystem", Name: "local", FSVaultRoot: filepath.Join(baseDir, "vault")},
		},
		Encryption: EncryptionConfig{
			Type:           "none",
			PublicKeyPath:  filepath.Join(baseDir, "keys", "reel.pub"),
			PrivateKeyPath: filepath.Join(baseDir, "keys", "reel.key"),
		},
		Database: DatabaseConfig{
			Type:    "sqlite",
			DataDir: filepath.Join(baseDir, "db"),
		},
		Worker: WorkerConfig{
			PollIntervalSeconds: 60,
		},
		Filesystem: FilesystemConfig{
			Ignore: append([]string(nil), DefaultIgnore...),
		},
		Watch: WatchConfig{
			DebounceMillis: 500,
		},
	}
}

// Validate checks the fields every command relies on.
func (c *Config) Validate() error {
	if c.HostID == "" {
		return fmt.Errorf("host_id is required")
	}
	if c.Workspace.Root == "" {
		return fmt.Errorf("workspace.root is required")
	}
	if c.Worker.PollIntervalSeconds < 0 {
		return fmt.Errorf("worker.poll_interval_seconds must not be negative")
	}
	if c.Worker.RequestsPerMinute < 0 {
		return fmt.Errorf("worker.requests_per_minute must not be negative")
	}
	seen := make(map[string]bool)
	for i, g := range c.Generators {
		if g.ContentType == "" {
			return fmt.Errorf("generators[%d]: content_type is required", i)
		}
		if len(g.Command) == 0 {
			return fmt.Errorf("generators[%d]: command is required", i)
		}
		if seen[g.ContentType] {
			return fmt.Errorf("generators[%d]: duplicate generator for %s", i, g.ContentType)
		}
		seen[g.ContentType] = true
	}
	return nil
}

// Manager handles reading and writing configuration.
type Manager struct{}

// Read decodes a Config from the provided reader.
func (m *Manager) Read(r io.Reader) (*Config, error) {
	var cfg Config
	if _, err := toml.NewDecoder(r).Decode(&cfg); err != nil {
		return nil, fmt.Errorf("failed to decode config: %w", err)
	}
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

func writeToFile(path string, cfg *Config) error {
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return fmt.Errorf("failed to create config directory: %w", err)
	}

	f, err := os.Create(path)
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

// Init writes cfg to path, refusing to overwrite an existing file.
func Init(path string, cfg *Config) error {
	if _, err := os.Stat(path); err == nil {
		return fmt.Errorf("config file already exists at %s", path)
	}

	if err := writeToFile(path, cfg); err != nil {
		return fmt.Errorf("initializing config: %w", err)
	}
	return nil
}
