package ai

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"
)

// ModelConfig defines the configuration for a single LLM.
type ModelConfig struct {
	Name        string  `json:"name" yaml:"name"`                             // e.g., "gpt-4o"
	Provider    string  `json:"provider" yaml:"provider"`                     // currently "openai"
	APIKey      string  `json:"api_key" yaml:"api_key"`                       // "env:VAR" reference or direct key
	BaseURL     string  `json:"base_url,omitempty" yaml:"base_url,omitempty"` // optional custom endpoint
	ModelName   string  `json:"model_name" yaml:"model_name"`                 // provider-side model ID
	Temperature float64 `json:"temperature" yaml:"temperature"`
}

// AgentConfig bounds the control loop.
type AgentConfig struct {
	MaxSteps        int `json:"max_steps" yaml:"max_steps"`                 // hard cap on decide/dispatch cycles per turn
	MaxHistoryTurns int `json:"max_history_turns" yaml:"max_history_turns"` // short-term memory window (user+assistant pairs)
}

// SQLToolConfig controls the structured query tool.
type SQLToolConfig struct {
	Model       string  `json:"model" yaml:"model"`
	Temperature float64 `json:"temperature" yaml:"temperature"`
	TopK        int     `json:"top_k" yaml:"top_k"`
	MaxAttempts int     `json:"max_attempts" yaml:"max_attempts"`
}

// ServerConfig configures the HTTP boundary.
type ServerConfig struct {
	Addr           string   `json:"addr" yaml:"addr"`
	AllowedOrigins []string `json:"allowed_origins" yaml:"allowed_origins"`
}

// DataConfig points at the on-disk collaborators.
type DataConfig struct {
	ProductDB       string `json:"product_db" yaml:"product_db"`
	ShopInfo        string `json:"shop_info" yaml:"shop_info"`
	Recommendations string `json:"recommendations" yaml:"recommendations"`
	IndexDir        string `json:"index_dir" yaml:"index_dir"`
}

// Config holds the full application configuration.
type Config struct {
	DefaultModel   string        `json:"default_model" yaml:"default_model"`
	Models         []ModelConfig `json:"models" yaml:"models"`
	EmbeddingModel string        `json:"embedding_model" yaml:"embedding_model"`
	Agent          AgentConfig   `json:"agent" yaml:"agent"`
	SQLTool        SQLToolConfig `json:"sql_tool" yaml:"sql_tool"`
	Server         ServerConfig  `json:"server" yaml:"server"`
	Data           DataConfig    `json:"data" yaml:"data"`
	HistoryDir     string        `json:"history_dir,omitempty" yaml:"history_dir,omitempty"` // empty = in-memory sessions
}

// LoadConfig reads and parses the configuration from a YAML file.
func LoadConfig(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config file: %w", err)
	}
	cfg.applyDefaults()

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}
	return &cfg, nil
}

// applyDefaults fills unset fields with the documented defaults.
func (c *Config) applyDefaults() {
	if c.EmbeddingModel == "" {
		c.EmbeddingModel = "text-embedding-3-small"
	}
	if c.Agent.MaxSteps <= 0 {
		c.Agent.MaxSteps = 8
	}
	if c.Agent.MaxHistoryTurns <= 0 {
		c.Agent.MaxHistoryTurns = 10
	}
	if c.SQLTool.TopK <= 0 {
		c.SQLTool.TopK = 10
	}
	if c.SQLTool.MaxAttempts <= 0 {
		c.SQLTool.MaxAttempts = 3
	}
	if c.SQLTool.Model == "" {
		c.SQLTool.Model = c.DefaultModel
	}
	if c.Server.Addr == "" {
		c.Server.Addr = ":8000"
	}
}

// Validate checks that the configuration is usable.
func (c *Config) Validate() error {
	if c.DefaultModel == "" {
		return fmt.Errorf("default_model must be set")
	}
	if len(c.Models) == 0 {
		return fmt.Errorf("at least one model must be configured")
	}
	names := make(map[string]bool, len(c.Models))
	for _, m := range c.Models {
		if m.Name == "" {
			return fmt.Errorf("model entries must have a name")
		}
		if names[m.Name] {
			return fmt.Errorf("duplicate model name %q", m.Name)
		}
		names[m.Name] = true
	}
	if !names[c.DefaultModel] {
		return fmt.Errorf("default_model %q is not defined in models", c.DefaultModel)
	}
	if !names[c.SQLTool.Model] {
		return fmt.Errorf("sql_tool.model %q is not defined in models", c.SQLTool.Model)
	}
	if c.Data.ProductDB == "" {
		return fmt.Errorf("data.product_db must be set")
	}
	if c.Data.ShopInfo == "" || c.Data.Recommendations == "" {
		return fmt.Errorf("data.shop_info and data.recommendations must be set")
	}
	if c.Data.IndexDir == "" {
		return fmt.Errorf("data.index_dir must be set")
	}
	return nil
}
