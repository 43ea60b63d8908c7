package cli

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/spf13/viper"
	"gopkg.in/yaml.v3"

	"github.com/mesh-intelligence/teashelf/internal/backup"
)

const (
	configFileName = "config"
	configFileType = "yaml"
	configFileExt  = "config.yaml"

	envPrefix = "TEASHELF"

	cfgKeyDataDir        = "data_dir"
	cfgKeyLogLevel       = "log_level"
	cfgKeyBackupInterval = "backup_interval"
	cfgKeyBackupOnStart  = "backup_on_start"
	cfgKeySeedSamples    = "seed_samples"
)

// configFile is the structure written to a fresh config.yaml.
type configFile struct {
	DataDir        string `yaml:"data_dir,omitempty"`
	LogLevel       string `yaml:"log_level"`
	BackupInterval string `yaml:"backup_interval"`
	BackupOnStart  bool   `yaml:"backup_on_start"`
	SeedSamples    bool   `yaml:"seed_samples"`
}

func defaultConfigFile() configFile {
	return configFile{
		LogLevel:       "warn",
		BackupInterval: backup.DefaultInterval.String(),
		BackupOnStart:  false,
		SeedSamples:    true,
	}
}

const configHeader = "# teashelf configuration\n" +
	"# data_dir may be set here; --data-dir and TEASHELF_DATA_DIR also apply.\n\n"

// settings are the effective configuration values for one invocation.
type settings struct {
	DataDir        string
	LogLevel       string
	BackupInterval time.Duration
	BackupOnStart  bool
	SeedSamples    bool
}

// loadConfig reads config.yaml from configDir using Viper. It creates the
// directory and a default config.yaml on first run. log_level,
// backup_interval, backup_on_start, and seed_samples may be overridden by
// TEASHELF_-prefixed environment variables; data_dir is resolved separately
// so the config file outranks TEASHELF_DATA_DIR.
func loadConfig(configDir string) (*viper.Viper, error) {
	if err := os.MkdirAll(configDir, 0o755); err != nil {
		return nil, fmt.Errorf("creating config dir: %w", err)
	}
	if err := ensureDefaultConfigFile(configDir); err != nil {
		return nil, fmt.Errorf("writing default config: %w", err)
	}

	defaults := defaultConfigFile()
	v := viper.New()
	v.SetDefault(cfgKeyLogLevel, defaults.LogLevel)
	v.SetDefault(cfgKeyBackupInterval, defaults.BackupInterval)
	v.SetDefault(cfgKeyBackupOnStart, defaults.BackupOnStart)
	v.SetDefault(cfgKeySeedSamples, defaults.SeedSamples)
	v.SetDefault(cfgKeyDataDir, "")

	v.SetEnvPrefix(envPrefix)
	for _, key := range []string{cfgKeyLogLevel, cfgKeyBackupInterval, cfgKeyBackupOnStart, cfgKeySeedSamples} {
		if err := v.BindEnv(key); err != nil {
			return nil, fmt.Errorf("binding %s: %w", key, err)
		}
	}

	v.SetConfigName(configFileName)
	v.SetConfigType(configFileType)
	v.AddConfigPath(configDir)
	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if errors.As(err, &notFound) {
			return v, nil
		}
		return nil, fmt.Errorf("reading config: %w", err)
	}
	return v, nil
}

// readSettings extracts and checks the configured values.
func readSettings(v *viper.Viper) (settings, error) {
	interval, err := time.ParseDuration(v.GetString(cfgKeyBackupInterval))
	if err != nil {
		return settings{}, fmt.Errorf("%s: %w", cfgKeyBackupInterval, err)
	}
	if interval <= 0 {
		return settings{}, fmt.Errorf("%s must be positive, got %s", cfgKeyBackupInterval, interval)
	}
	return settings{
		DataDir:        v.GetString(cfgKeyDataDir),
		LogLevel:       v.GetString(cfgKeyLogLevel),
		BackupInterval: interval,
		BackupOnStart:  v.GetBool(cfgKeyBackupOnStart),
		SeedSamples:    v.GetBool(cfgKeySeedSamples),
	}, nil
}

// ensureDefaultConfigFile creates config.yaml with default values if it does
// not exist. An existing file is left alone.
func ensureDefaultConfigFile(configDir string) error {
	return writeConfigIfMissing(filepath.Join(configDir, configFileExt), defaultConfigFile())
}

// writeConfigIfMissing writes cfg to path unless the file already exists.
func writeConfigIfMissing(path string, cfg configFile) error {
	_, err := os.Stat(path)
	if err == nil {
		return nil
	}
	if !os.IsNotExist(err) {
		return fmt.Errorf("stat config file: %w", err)
	}

	data, err := yaml.Marshal(&cfg)
	if err != nil {
		return fmt.Errorf("marshal config: %w", err)
	}
	return os.WriteFile(path, append([]byte(configHeader), data...), 0o644)
}
