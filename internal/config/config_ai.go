package config

import (
	"fmt"
	"log"
	"os"
	"strings"
)

// applyOperationDefaults applies global defaults to operation-specific configuration
func (c *Config) applyOperationDefaults(opCfg *OperationAIConfig) {
	if opCfg.Provider == "" {
		opCfg.Provider = c.AI.Provider
	}
	if opCfg.Model == "" {
		opCfg.Model = c.AI.Model
	}
	if opCfg.Timeout == nil {
		opCfg.Timeout = &c.AI.Timeout
	}
	if opCfg.APIKey == "" {
		opCfg.APIKey = c.AI.APIKey
	}
	if opCfg.MaxRetries == nil {
		opCfg.MaxRetries = &c.AI.MaxRetries
	}
	if opCfg.Temperature == nil {
		opCfg.Temperature = &c.AI.Temperature
	}
	if opCfg.UseSystemPrompts == nil {
		opCfg.UseSystemPrompts = &c.AI.UseSystemPrompts
	}
	if opCfg.CustomPrompts.System == "" {
		opCfg.CustomPrompts.System = c.AI.CustomPrompts.System
	}
	if opCfg.CustomPrompts.User == "" {
		opCfg.CustomPrompts.User = c.AI.CustomPrompts.User
	}
}

// GetClassifyConfig returns the AI configuration for chunk classification with fallback to global config
func (c *Config) GetClassifyConfig() OperationAIConfig {
	config := c.AI.Classify
	c.applyOperationDefaults(&config)
	return config
}

// loadPromptFiles replaces inline prompts with the contents of any configured prompt files
func (c *Config) loadPromptFiles() error {
	targets := []struct {
		name string
		cfg  *PromptConfig
	}{
		{"ai.customPrompts", &c.AI.CustomPrompts},
		{"ai.classify.customPrompts", &c.AI.Classify.CustomPrompts},
	}

	for _, target := range targets {
		if err := loadPromptFile(target.cfg.SystemFile, &target.cfg.System, target.name+".systemFile"); err != nil {
			return err
		}
		if err := loadPromptFile(target.cfg.UserFile, &target.cfg.User, target.name+".userFile"); err != nil {
			return err
		}
	}
	return nil
}

func loadPromptFile(path string, target *string, key string) error {
	if path == "" {
		return nil
	}
	content, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("%s: failed to read prompt file %s: %w", key, path, err)
	}
	prompt := strings.TrimSpace(string(content))
	if prompt == "" {
		return fmt.Errorf("%s: prompt file %s is empty", key, path)
	}
	*target = prompt
	log.Printf("[CONFIG] Loaded prompt from %s (%d chars)", path, len(prompt))
	return nil
}
