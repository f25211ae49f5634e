package config

import (
	"fmt"
	"os"
	"path/filepath"
	"sync"

	"gopkg.in/yaml.v3"
)

// AccountEnvVar is the environment variable that supplies the SLURM account
// code written into every generated submission script.
const AccountEnvVar = "SLURM_PROJECT_ID"

// StageDefaults holds the resource request written into one stage's script.
type StageDefaults struct {
	TimeLimit string  `yaml:"time_limit"`
	MemoryGB  float64 `yaml:"memory_gb"`
	GPUs      int     `yaml:"gpus"`
}

// Config holds the application configuration for foldsub.
type Config struct {
	LogLevel         string `yaml:"log_level"`
	DefaultPartition string `yaml:"default_partition"`
	GPUPartition     string `yaml:"gpu_partition"`

	SearchScriptName  string `yaml:"search_script_name"`
	PredictScriptName string `yaml:"predict_script_name"`

	Search  StageDefaults `yaml:"search"`
	Predict StageDefaults `yaml:"predict"`
}

// LoadConfig reads configuration from the given YAML file path.
// It creates a default config file if it doesn't exist.
func LoadConfig(path string) (*Config, error) {
	defaultConfig := &Config{
		LogLevel:          "info",
		DefaultPartition:  "normal",
		GPUPartition:      "accel",
		SearchScriptName:  "run_colabfold_search.sh",
		PredictScriptName: "run_colabfold_batch.sh",
		Search: StageDefaults{
			TimeLimit: "08:00:00",
			MemoryGB:  10,
		},
		Predict: StageDefaults{
			TimeLimit: "04:00:00",
			MemoryGB:  8,
			GPUs:      1,
		},
	}

	_, err := os.Stat(path)
	if os.IsNotExist(err) {
		data, marshalErr := yaml.Marshal(defaultConfig)
		if marshalErr != nil {
			return nil, fmt.Errorf("failed to marshal default config: %w", marshalErr)
		}
		if mkdirErr := os.MkdirAll(filepath.Dir(path), 0755); mkdirErr != nil {
			return nil, fmt.Errorf("failed to create config directory: %w", mkdirErr)
		}
		if writeErr := os.WriteFile(path, data, 0644); writeErr != nil {
			return nil, fmt.Errorf("failed to write default config file: %w", writeErr)
		}
		return defaultConfig, nil
	} else if err != nil {
		return nil, fmt.Errorf("failed to check config file: %w", err)
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config data: %w", err)
	}

	applyDefaultsIfNotSet(&cfg, defaultConfig)

	return &cfg, nil
}

// applyDefaultsIfNotSet applies default values to cfg fields if they are zero-valued.
func applyDefaultsIfNotSet(cfg *Config, defaults *Config) {
	if cfg.LogLevel == "" {
		cfg.LogLevel = defaults.LogLevel
	}
	if cfg.DefaultPartition == "" {
		cfg.DefaultPartition = defaults.DefaultPartition
	}
	if cfg.GPUPartition == "" {
		cfg.GPUPartition = defaults.GPUPartition
	}
	if cfg.SearchScriptName == "" {
		cfg.SearchScriptName = defaults.SearchScriptName
	}
	if cfg.PredictScriptName == "" {
		cfg.PredictScriptName = defaults.PredictScriptName
	}
	if cfg.Search.TimeLimit == "" {
		cfg.Search.TimeLimit = defaults.Search.TimeLimit
	}
	if cfg.Search.MemoryGB == 0 {
		cfg.Search.MemoryGB = defaults.Search.MemoryGB
	}
	if cfg.Predict.TimeLimit == "" {
		cfg.Predict.TimeLimit = defaults.Predict.TimeLimit
	}
	if cfg.Predict.MemoryGB == 0 {
		cfg.Predict.MemoryGB = defaults.Predict.MemoryGB
	}
	if cfg.Predict.GPUs == 0 {
		cfg.Predict.GPUs = defaults.Predict.GPUs
	}
}

var (
	accountOnce sync.Once
	accountCode string
	accountErr  error
)

// AccountCode returns the SLURM account code from the environment. The value
// is read once and cached for the lifetime of the process.
func AccountCode() (string, error) {
	accountOnce.Do(func() {
		accountCode, accountErr = readAccountCode()
	})
	return accountCode, accountErr
}

func readAccountCode() (string, error) {
	code, ok := os.LookupEnv(AccountEnvVar)
	if !ok || code == "" {
		return "", fmt.Errorf(
			"environment variable %s is not set; define it with the account code to be used when submitting jobs to SLURM",
			AccountEnvVar,
		)
	}
	return code, nil
}
