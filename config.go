package main

import (
	"encoding/json"
	"fmt"
	"os"
	"strings"
)

// LoadConfig loads configuration from file, expands environment variables
// and applies defaults
func (a *App) LoadConfig(configFile string) error {
	if configFile == "" {
		configFile = "pixvault.json"
	}

	data, err := os.ReadFile(configFile)
	if err != nil {
		return fmt.Errorf("failed to read config file: %w", err)
	}

	if err := json.Unmarshal(data, &a.Config); err != nil {
		return fmt.Errorf("failed to parse config file: %w", err)
	}

	// Expand environment variables in config
	a.Config.Embeddings.APIKey = expandEnvVars(a.Config.Embeddings.APIKey)
	a.Config.Embeddings.ImageAPIKey = expandEnvVars(a.Config.Embeddings.ImageAPIKey)
	a.Config.Embeddings.BaseURL = expandEnvVars(a.Config.Embeddings.BaseURL)
	a.Config.Embeddings.DBPath = expandEnvVars(a.Config.Embeddings.DBPath)

	// Defaults
	if a.Config.Title == "" {
		a.Config.Title = "PixVault"
	}
	if a.Config.Embeddings.DBPath == "" {
		a.Config.Embeddings.DBPath = "pixvault.db"
	}
	if a.Config.Embeddings.TextProvider == "" {
		a.Config.Embeddings.TextProvider = "voyage"
	}
	if a.Config.Embeddings.ImageProvider == "" {
		a.Config.Embeddings.ImageProvider = "voyage"
	}
	if a.Config.Embeddings.ImageAPIKey == "" {
		a.Config.Embeddings.ImageAPIKey = a.Config.Embeddings.APIKey
	}
	if a.Config.Server.Port == "" {
		a.Config.Server.Port = "8080"
	}

	return nil
}

// expandEnvVars expands environment variables in a string
// Supports ${VAR} and $VAR syntax
func expandEnvVars(s string) string {
	if s == "" {
		return s
	}

	// Handle ${VAR} syntax
	result := os.Expand(s, func(key string) string {
		return os.Getenv(key)
	})

	// Also handle $VAR syntax without braces (for simple cases)
	if strings.HasPrefix(result, "$") && !strings.HasPrefix(result, "${") {
		varName := strings.TrimPrefix(result, "$")
		if val := os.Getenv(varName); val != "" {
			return val
		}
	}

	return result
}
