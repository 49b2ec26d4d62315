package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"gopkg.in/yaml.v3"
)

const (
	envDataDir         = "STATIONBOOK_DATA_DIR"
	envBackend         = "STATIONBOOK_BACKEND"
	envMailboxAddress  = "STATIONBOOK_MAILBOX_ADDRESS"
	envMailboxPassword = "STATIONBOOK_MAILBOX_PASSWORD"
)

// Mailbox holds the credentials for the account that receives bounce
// notices. The password is never written back to disk.
type Mailbox struct {
	Address     string `yaml:"address"`
	Password    string `yaml:"password"`
	IMAPAddress string `yaml:"imapAddress"`
}

// Config is the on-disk configuration. Zero values mean defaults.
type Config struct {
	// DataDir holds the database files. Defaults to the user config dir.
	DataDir string `yaml:"dataDir"`
	// Backend forces a storage backend: "sqlite" or "docstore".
	// Empty means probe sqlite first and fall back.
	Backend string `yaml:"backend"`
	// BulkChunkSize overrides the bulk import transaction size.
	BulkChunkSize int `yaml:"bulkChunkSize"`
	// VerifyHeloDomain is announced when probing mail hosts.
	VerifyHeloDomain string `yaml:"verifyHeloDomain"`
	// Mailbox is the bounce-notice account.
	Mailbox Mailbox `yaml:"mailbox"`
}

// Load reads the config file at path, or defaults when path is empty and
// no file exists at the default location. Environment variables override
// file values: STATIONBOOK_DATA_DIR, STATIONBOOK_BACKEND,
// STATIONBOOK_MAILBOX_ADDRESS, STATIONBOOK_MAILBOX_PASSWORD.
func Load(path string) (Config, error) {
	var cfg Config
	resolved, explicit := path, path != ""
	if !explicit {
		resolved = defaultPath()
	}
	raw, err := os.ReadFile(resolved)
	switch {
	case err == nil:
		if err := yaml.Unmarshal(raw, &cfg); err != nil {
			return Config{}, fmt.Errorf("config: parsing %s failed: %w", resolved, err)
		}
	case os.IsNotExist(err) && !explicit:
		// no file, defaults apply
	default:
		return Config{}, fmt.Errorf("config: reading %s failed: %w", resolved, err)
	}

	applyEnv(&cfg)
	if cfg.DataDir == "" {
		cfg.DataDir = defaultDataDir()
	}
	if cfg.Backend != "" && cfg.Backend != "sqlite" && cfg.Backend != "docstore" {
		return Config{}, fmt.Errorf("config: unknown backend %q", cfg.Backend)
	}
	return cfg, nil
}

func applyEnv(cfg *Config) {
	if dir := strings.TrimSpace(os.Getenv(envDataDir)); dir != "" {
		cfg.DataDir = dir
	}
	if backend := strings.TrimSpace(os.Getenv(envBackend)); backend != "" {
		cfg.Backend = backend
	}
	if address := strings.TrimSpace(os.Getenv(envMailboxAddress)); address != "" {
		cfg.Mailbox.Address = address
	}
	if password := os.Getenv(envMailboxPassword); password != "" {
		cfg.Mailbox.Password = strings.ReplaceAll(password, " ", "")
	}
}

// SQLitePath is the relational database file under the data dir.
func (c Config) SQLitePath() string {
	return filepath.Join(c.DataDir, "stationbook.db")
}

// DocstorePath is the document database file under the data dir.
func (c Config) DocstorePath() string {
	return filepath.Join(c.DataDir, "stationbook.bolt")
}

func defaultPath() string {
	base, err := os.UserConfigDir()
	if err != nil {
		return "stationbook.yaml"
	}
	return filepath.Join(base, "stationbook", "config.yaml")
}

func defaultDataDir() string {
	base, err := os.UserConfigDir()
	if err != nil {
		return "."
	}
	return filepath.Join(base, "stationbook")
}
