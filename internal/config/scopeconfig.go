package config

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
)

// ScopeConfigFile is the working-directory default for the scope-config
// file when TSUISEKI_SCOPE_CONFIG_PATH is unset.
const ScopeConfigFile = "tsuiseki_scopes.json"

// ScopeMethod is one entry of the scope-config file. Entries come in two
// shapes: an HTTP header mapping (HTTPHeader + ScopeName), or a
// scope-producing method (Package/Object/Method + ScopeName) that the
// instrumentor turns into a catalog entry.
type ScopeMethod struct {
	Package    string `json:"package,omitempty"`
	Object     string `json:"object,omitempty"`
	Method     string `json:"method,omitempty"`
	ScopeName  string `json:"scope_name"`
	ScopeValue string `json:"scope_value,omitempty"`
	HTTPHeader string `json:"http_header,omitempty"`
	Async      bool   `json:"async,omitempty"`
}

// ScopeConfig is the parsed scope-config file split by entry shape.
type ScopeConfig struct {
	Methods      []ScopeMethod
	HeaderScopes map[string]string // HTTP header -> scope name
}

// LoadScopeConfig reads the scope-config JSON file. A missing or malformed
// file degrades to an empty config; the error is returned only so the
// caller can log it at debug level — it must never abort setup.
func LoadScopeConfig(path string) (ScopeConfig, error) {
	cfg := ScopeConfig{HeaderScopes: map[string]string{}}
	if path == "" {
		cwd, err := os.Getwd()
		if err != nil {
			return cfg, fmt.Errorf("config: resolve working directory: %w", err)
		}
		path = filepath.Join(cwd, ScopeConfigFile)
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return cfg, fmt.Errorf("config: read scope config: %w", err)
	}
	var entries []ScopeMethod
	if err := json.Unmarshal(data, &entries); err != nil {
		return cfg, fmt.Errorf("config: parse scope config %s: %w", path, err)
	}
	for _, e := range entries {
		if e.HTTPHeader != "" {
			if e.ScopeName != "" {
				cfg.HeaderScopes[e.HTTPHeader] = e.ScopeName
			}
			continue
		}
		if e.ScopeName != "" {
			cfg.Methods = append(cfg.Methods, e)
		}
	}
	return cfg, nil
}
