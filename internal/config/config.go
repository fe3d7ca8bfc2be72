package config

import (
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/go-playground/validator/v10"
	"gopkg.in/yaml.v3"
)

// Config represents the keeper configuration
type Config struct {
	// Inference settings
	Inference InferenceConfig `json:"inference" yaml:"inference"`

	// Output settings
	Output OutputConfig `json:"output" yaml:"output"`
}

// InferenceConfig controls how references are loaded and resolved
type InferenceConfig struct {
	// strict fails on unresolved references, permissive only warns
	Policy string `json:"policy" yaml:"policy" validate:"oneof=strict permissive"`

	// Doublestar patterns of root containers to skip
	Exclude []string `json:"exclude" yaml:"exclude"`

	// Library containers used only to resolve hierarchies
	Library []string `json:"library" yaml:"library"`

	// Parallel workers; 0 uses every available CPU
	Workers int `json:"workers" yaml:"workers" validate:"gte=0"`

	// Abort the run after this long; 0 disables the limit
	Timeout time.Duration `json:"timeout" yaml:"timeout" validate:"gte=0"`
}

// OutputConfig contains rule file settings
type OutputConfig struct {
	// Emit -keep,allowobfuscation rules
	AllowObfuscation bool `json:"allow_obfuscation" yaml:"allow_obfuscation"`

	// Rule blocks appended verbatim after the synthesized rules
	ExtraRules []string `json:"extra_rules" yaml:"extra_rules"`

	// Files whose contents are appended after ExtraRules
	ExtraRuleFiles []string `json:"extra_rule_files" yaml:"extra_rule_files"`

	// Directory for inputs.txt, references.txt and unresolved.txt
	DebugDir string `json:"debug_dir" yaml:"debug_dir"`
}

// DefaultConfig returns the default configuration
func DefaultConfig() *Config {
	return &Config{
		Inference: InferenceConfig{
			Policy:  "permissive",
			Exclude: []string{},
			Library: []string{},
		},
		Output: OutputConfig{
			ExtraRules:     []string{},
			ExtraRuleFiles: []string{},
		},
	}
}

var validate = validator.New()

// Validate checks field constraints
func (c *Config) Validate() error {
	if err := validate.Struct(c); err != nil {
		return fmt.Errorf("invalid configuration: %w", err)
	}
	return nil
}

// LoadConfig loads configuration from a file. JSON files are read as YAML.
func LoadConfig(configPath string) (*Config, error) {
	// Start with default config
	config := DefaultConfig()

	// If no config file specified, try to find one
	if configPath == "" {
		configPath = findConfigFile()
	}

	// If still no config file, return default
	if configPath == "" {
		return config, nil
	}

	// Check if config file exists
	if _, err := os.Stat(configPath); os.IsNotExist(err) {
		return config, nil
	}

	data, err := os.ReadFile(configPath)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	if err := yaml.Unmarshal(data, config); err != nil {
		return nil, fmt.Errorf("failed to parse config file %s: %w", configPath, err)
	}

	if err := config.Validate(); err != nil {
		return nil, fmt.Errorf("%s: %w", configPath, err)
	}

	return config, nil
}

// Marshal renders the configuration as YAML
func Marshal(config *Config) ([]byte, error) {
	data, err := yaml.Marshal(config)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal config: %w", err)
	}
	return data, nil
}

// SaveConfig saves configuration to a file
func SaveConfig(config *Config, configPath string) error {
	// Create directory if it doesn't exist
	if err := os.MkdirAll(filepath.Dir(configPath), 0755); err != nil {
		return fmt.Errorf("failed to create config directory: %w", err)
	}

	data, err := Marshal(config)
	if err != nil {
		return err
	}

	if err := os.WriteFile(configPath, data, 0644); err != nil {
		return fmt.Errorf("failed to write config file: %w", err)
	}

	return nil
}

var configNames = []string{
	".keeper.yaml",
	".keeper.yml",
	".keeper.json",
}

// findConfigFile looks for config files in the working directory, then home
func findConfigFile() string {
	for _, candidate := range configNames {
		if _, err := os.Stat(candidate); err == nil {
			return candidate
		}
	}

	homeDir, err := os.UserHomeDir()
	if err == nil {
		for _, name := range configNames {
			candidate := filepath.Join(homeDir, name)
			if _, err := os.Stat(candidate); err == nil {
				return candidate
			}
		}
	}

	return ""
}

// GetConfigPath returns the config file path to use
func GetConfigPath(explicitPath string) string {
	if explicitPath != "" {
		return explicitPath
	}

	found := findConfigFile()
	if found != "" {
		return found
	}

	return configNames[0]
}
