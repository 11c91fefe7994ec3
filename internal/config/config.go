package config

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v2"
)

// Config represents the application configuration
type Config struct {
	LLM       LLMConfig       `yaml:"llm"`
	Retriever RetrieverConfig `yaml:"retriever"`
	Jira      JiraConfig      `yaml:"jira"`
	Server    ServerConfig    `yaml:"server"`
	Audio     AudioConfig     `yaml:"audio"`
	Storage   StorageConfig   `yaml:"storage"`
}

// LLMConfig represents the generation model API configuration
type LLMConfig struct {
	APIKey            string  `yaml:"api_key"`
	Model             string  `yaml:"model"`
	BaseURL           string  `yaml:"base_url"`
	TimeoutSeconds    int     `yaml:"timeout_seconds"`
	MaxTokens         int     `yaml:"max_tokens"`
	Temperature       float64 `yaml:"temperature"`
	RetryCount        int     `yaml:"retry_count"`
	RetryDelaySeconds int     `yaml:"retry_delay_seconds"`
	// OutputFormat selects the parse strategy for generated requirements:
	// "marker" for the delimited text format, "json" for structured output.
	OutputFormat string `yaml:"output_format"`
}

// RetrieverConfig represents the vector-store query service configuration.
// An empty base URL disables retrieval; prompts are then sent without context.
type RetrieverConfig struct {
	BaseURL        string `yaml:"base_url"`
	Collection     string `yaml:"collection"`
	TopK           int    `yaml:"top_k"`
	TimeoutSeconds int    `yaml:"timeout_seconds"`
}

// JiraConfig represents JIRA API configuration
type JiraConfig struct {
	BaseURL                 string `yaml:"base_url"`
	Username                string `yaml:"username"`
	APIToken                string `yaml:"api_token"`
	ProjectKey              string `yaml:"project_key"`
	BoardID                 int    `yaml:"board_id"`
	Timeout                 int    `yaml:"timeout_seconds"`
	Concurrency             int    `yaml:"concurrency"`
	SprintStartDelaySeconds int    `yaml:"sprint_start_delay_seconds"`
}

// ServerConfig represents the HTTP server configuration
type ServerConfig struct {
	Host string `yaml:"host"`
	Port int    `yaml:"port"`
}

// AudioConfig represents audio transcription configuration
type AudioConfig struct {
	MaxSeconds     float64 `yaml:"max_seconds"`
	TranscriberURL string  `yaml:"transcriber_url"`
	TimeoutSeconds int     `yaml:"timeout_seconds"`
}

// StorageConfig represents conversation persistence configuration.
// An empty database path disables persistence.
type StorageConfig struct {
	DatabasePath string `yaml:"database_path"`
}

// LoadConfig loads configuration from a YAML file
func LoadConfig(configPath string) (*Config, error) {
	data, err := os.ReadFile(configPath)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	var config Config
	if err := yaml.Unmarshal(data, &config); err != nil {
		return nil, fmt.Errorf("failed to parse config file: %w", err)
	}

	config.applyDefaults()

	if err := config.Validate(); err != nil {
		return nil, fmt.Errorf("config validation failed: %w", err)
	}

	return &config, nil
}

func (c *Config) applyDefaults() {
	if c.LLM.BaseURL == "" {
		c.LLM.BaseURL = "https://api.anthropic.com"
	}
	if c.LLM.TimeoutSeconds == 0 {
		c.LLM.TimeoutSeconds = 120
	}
	if c.LLM.MaxTokens == 0 {
		c.LLM.MaxTokens = 4000
	}
	if c.LLM.RetryCount == 0 {
		c.LLM.RetryCount = 3
	}
	if c.LLM.RetryDelaySeconds == 0 {
		c.LLM.RetryDelaySeconds = 5
	}
	if c.LLM.OutputFormat == "" {
		c.LLM.OutputFormat = "marker"
	}
	if c.Retriever.TopK == 0 {
		c.Retriever.TopK = 6
	}
	if c.Retriever.TimeoutSeconds == 0 {
		c.Retriever.TimeoutSeconds = 30
	}
	if c.Jira.Timeout == 0 {
		c.Jira.Timeout = 30
	}
	if c.Jira.Concurrency == 0 {
		c.Jira.Concurrency = 4
	}
	if c.Jira.SprintStartDelaySeconds == 0 {
		c.Jira.SprintStartDelaySeconds = 2
	}
	if c.Server.Host == "" {
		c.Server.Host = "127.0.0.1"
	}
	if c.Server.Port == 0 {
		c.Server.Port = 8000
	}
	if c.Audio.MaxSeconds == 0 {
		c.Audio.MaxSeconds = 120
	}
	if c.Audio.TimeoutSeconds == 0 {
		c.Audio.TimeoutSeconds = 60
	}
}

// Validate validates the configuration. A failure here is fatal: the process
// must not start serving traffic with incomplete credentials.
func (c *Config) Validate() error {
	if c.LLM.APIKey == "" {
		return fmt.Errorf("llm API key is required")
	}

	if c.LLM.OutputFormat != "marker" && c.LLM.OutputFormat != "json" {
		return fmt.Errorf("llm output_format must be \"marker\" or \"json\", got %q", c.LLM.OutputFormat)
	}

	if c.LLM.RetryCount < 1 {
		return fmt.Errorf("llm retry_count must be at least 1")
	}

	if c.Jira.BaseURL == "" {
		return fmt.Errorf("JIRA base URL is required")
	}

	if c.Jira.Username == "" {
		return fmt.Errorf("JIRA username is required")
	}

	if c.Jira.APIToken == "" {
		return fmt.Errorf("JIRA API token is required")
	}

	if c.Jira.ProjectKey == "" {
		return fmt.Errorf("JIRA project key is required")
	}

	if c.Jira.Concurrency < 1 {
		return fmt.Errorf("JIRA concurrency must be at least 1")
	}

	return nil
}
