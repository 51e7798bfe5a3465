package chat

import (
	"context"
	_ "embed"
	"fmt"
	"os"

	"gopkg.in/yaml.v3"
)

//go:embed default_script.yaml
var defaultScriptYAML []byte

// DefaultScript returns the built-in maintenance troubleshooting script.
func DefaultScript() (*Script, error) {
	return parseScript(defaultScriptYAML)
}

// LoadScriptFile reads a script definition from a YAML or JSON file.
func LoadScriptFile(path string) (*Script, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read script file: %w", err)
	}
	return parseScript(data)
}

func parseScript(data []byte) (*Script, error) {
	var script Script
	if err := yaml.Unmarshal(data, &script); err != nil {
		return nil, fmt.Errorf("decode script: %w", err)
	}
	if err := script.Validate(); err != nil {
		return nil, err
	}
	return &script, nil
}

// SeedScript stores script unless a script with the same id already exists.
// It reports whether the script was written.
func SeedScript(ctx context.Context, repo ScriptRepository, script *Script) (bool, error) {
	existing, err := repo.GetScript(ctx, script.ScriptID)
	if err != nil {
		return false, fmt.Errorf("check script %s: %w", script.ScriptID, err)
	}
	if existing != nil {
		return false, nil
	}
	if err = repo.SaveScript(ctx, script); err != nil {
		return false, fmt.Errorf("seed script %s: %w", script.ScriptID, err)
	}
	return true, nil
}
