package config

import (
	"bytes"
	"fmt"
	"os"
	"path/filepath"

	"gopkg.in/yaml.v3"

	"stratline/internal/domain"
)

// Config models stratline.yml.
type Config struct {
	Workspace struct {
		ID   string `yaml:"id"`
		Name string `yaml:"name"`
	} `yaml:"workspace"`
	Planning struct {
		Rhythm           domain.PlanningRhythm `yaml:"rhythm"`
		CycleLengthWeeks int                   `yaml:"cycle_length_weeks"`
	} `yaml:"planning"`
	Scoring struct {
		StaleAfterDays int `yaml:"stale_after_days"`
	} `yaml:"scoring"`
}

// LoadOptional returns nil,nil if the config file does not exist.
func LoadOptional(workspace string) (*Config, error) {
	data, err := os.ReadFile(Path(workspace))
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, err
	}
	return FromYAML(data)
}

// Validate ensures the config meets required structure.
func (c *Config) Validate() error {
	if c.Workspace.ID == "" {
		return fmt.Errorf("config.workspace.id is required")
	}
	if !domain.ValidRhythm(c.Planning.Rhythm) {
		return fmt.Errorf("config.planning.rhythm must be quarters, cycles or custom")
	}
	if c.Planning.Rhythm == domain.RhythmCycles && c.Planning.CycleLengthWeeks <= 0 {
		return fmt.Errorf("config.planning.cycle_length_weeks is required for the cycles rhythm")
	}
	if c.Planning.CycleLengthWeeks < 0 {
		return fmt.Errorf("config.planning.cycle_length_weeks must not be negative")
	}
	if c.Scoring.StaleAfterDays < 0 {
		return fmt.Errorf("config.scoring.stale_after_days must not be negative")
	}
	return nil
}

// Path returns the config file path for a workspace directory.
func Path(workspace string) string {
	if workspace == "" {
		workspace = "."
	}
	return filepath.Join(workspace, "stratline.yml")
}

// Default returns the default Config struct for a workspace.
func Default(workspaceID string) *Config {
	var cfg Config
	cfg.Workspace.ID = workspaceID
	_ = yaml.NewDecoder(bytes.NewBufferString(fmt.Sprintf(defaultTemplate, workspaceID, workspaceID))).Decode(&cfg)
	return &cfg
}

// GenerateDefault returns default config YAML.
func GenerateDefault(workspaceID string) string {
	return fmt.Sprintf(defaultTemplate, workspaceID, workspaceID)
}

// FromYAML parses and validates config from raw YAML bytes.
func FromYAML(data []byte) (*Config, error) {
	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("invalid config yaml: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

const defaultTemplate = `workspace:
  id: %s
  name: %s

planning:
  rhythm: quarters
  cycle_length_weeks: 6

scoring:
  stale_after_days: 30
`
