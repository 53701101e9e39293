package llm

import (
	"fmt"
)

// Config holds the configuration for the local inference server client.
//
// Environment Variables (see internal/config):
// - OLLAMA_URL: server base URL (default: http://localhost:11434)
// - OLLAMA_MODEL: model to generate with (default: llama3.2)
// - OLLAMA_TIMEOUT: request timeout in seconds (default: 120)
type Config struct {
	APIURL  string `json:"api_url"`
	Model   string `json:"model"`
	Timeout int    `json:"timeout"`
}

func (c *Config) Validate() error {
	if c.APIURL == "" {
		return fmt.Errorf("API URL is required")
	}
	if c.Model == "" {
		return fmt.Errorf("model is required")
	}
	if c.Timeout < 1 {
		return fmt.Errorf("timeout must be greater than 0")
	}
	return nil
}

func (c *Config) GetHeaders() map[string]string {
	return map[string]string{
		"Content-Type": "application/json",
		"Accept":       "application/json",
	}
}
