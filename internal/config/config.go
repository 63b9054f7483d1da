package config

import (
	"encoding/json"
	"os"
	"path/filepath"
	"regexp"
	"strconv"
	"strings"

	"github.com/tidwall/jsonc"
	"gopkg.in/yaml.v3"
)

// Config holds rift-host settings.
type Config struct {
	// BackendAddr is the Rift agent backend address, host:port.
	BackendAddr string `json:"backendAddr,omitempty" yaml:"backendAddr"`
	// Port is the HTTP port the webview surfaces connect to.
	Port int `json:"port,omitempty" yaml:"port"`
	// LogLevel is one of DEBUG, INFO, WARN, ERROR, FATAL.
	LogLevel string `json:"logLevel,omitempty" yaml:"logLevel"`
	// DefaultAgent is the agent type started automatically on connect.
	DefaultAgent string `json:"defaultAgent,omitempty" yaml:"defaultAgent"`
	// AutoStartChat creates the default session when the backend comes up.
	AutoStartChat *bool `json:"autoStartChat,omitempty" yaml:"autoStartChat"`
	// IgnoreGlobs filters the workspace file list (doublestar patterns).
	IgnoreGlobs []string `json:"ignoreGlobs,omitempty" yaml:"ignoreGlobs"`
	// PersistTranscripts writes chat history to local storage.
	PersistTranscripts *bool `json:"persistTranscripts,omitempty" yaml:"persistTranscripts"`
}

// Default returns the built-in configuration.
func Default() *Config {
	yes := true
	return &Config{
		BackendAddr:        "127.0.0.1:7797",
		Port:               7787,
		LogLevel:           "INFO",
		DefaultAgent:       "rift_chat",
		AutoStartChat:      &yes,
		IgnoreGlobs:        []string{"**/node_modules/**", "**/.git/**", "**/dist/**", "**/out/**"},
		PersistTranscripts: &yes,
	}
}

// Load loads configuration from multiple sources (priority order):
//  1. Global config (~/.config/rift/)
//  2. Project config (rift.json / rift.jsonc / rift.yaml)
//  3. RIFT_CONFIG file
//  4. Environment variables
func Load(directory string) (*Config, error) {
	config := Default()

	loaded := make(map[string]bool)
	loadOnce := func(path string) {
		absPath, err := filepath.Abs(path)
		if err != nil {
			return
		}
		if loaded[absPath] {
			return
		}
		if loadConfigFile(path, config) == nil {
			loaded[absPath] = true
		}
	}

	// 1. Global config
	globalPath := GetPaths().Config
	loadOnce(filepath.Join(globalPath, "rift.json"))
	loadOnce(filepath.Join(globalPath, "rift.jsonc"))
	loadOnce(filepath.Join(globalPath, "rift.yaml"))

	// 2. Project config
	if directory != "" {
		loadOnce(filepath.Join(directory, "rift.json"))
		loadOnce(filepath.Join(directory, "rift.jsonc"))
		loadOnce(filepath.Join(directory, "rift.yaml"))
	}

	// 3. RIFT_CONFIG file override
	if configPath := os.Getenv("RIFT_CONFIG"); configPath != "" {
		loadOnce(configPath)
	}

	// 4. Environment variables (highest priority)
	applyEnvOverrides(config)

	return config, nil
}

// loadConfigFile loads a single config file with interpolation support.
// YAML files are detected by extension; everything else is parsed as JSONC.
func loadConfigFile(path string, config *Config) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return err // File doesn't exist, skip
	}

	data = interpolate(data)

	var fileConfig Config
	switch filepath.Ext(path) {
	case ".yaml", ".yml":
		if err := yaml.Unmarshal(data, &fileConfig); err != nil {
			return err
		}
	default:
		data = jsonc.ToJSON(data)
		if err := json.Unmarshal(data, &fileConfig); err != nil {
			return err
		}
	}

	mergeConfig(config, &fileConfig)
	return nil
}

// interpolate processes {env:VAR} placeholders.
func interpolate(data []byte) []byte {
	envPattern := regexp.MustCompile(`\{env:([^}]+)\}`)
	str := envPattern.ReplaceAllStringFunc(string(data), func(match string) string {
		varName := envPattern.FindStringSubmatch(match)[1]
		return os.Getenv(varName)
	})
	return []byte(str)
}

// mergeConfig merges source config into target. Zero values do not
// overwrite.
func mergeConfig(target, source *Config) {
	if source.BackendAddr != "" {
		target.BackendAddr = source.BackendAddr
	}
	if source.Port != 0 {
		target.Port = source.Port
	}
	if source.LogLevel != "" {
		target.LogLevel = source.LogLevel
	}
	if source.DefaultAgent != "" {
		target.DefaultAgent = source.DefaultAgent
	}
	if source.AutoStartChat != nil {
		target.AutoStartChat = source.AutoStartChat
	}
	if len(source.IgnoreGlobs) > 0 {
		target.IgnoreGlobs = source.IgnoreGlobs
	}
	if source.PersistTranscripts != nil {
		target.PersistTranscripts = source.PersistTranscripts
	}
}

// applyEnvOverrides applies environment variable overrides.
func applyEnvOverrides(config *Config) {
	if addr := os.Getenv("RIFT_BACKEND_ADDR"); addr != "" {
		config.BackendAddr = addr
	}
	if port := os.Getenv("RIFT_PORT"); port != "" {
		if n, err := strconv.Atoi(port); err == nil {
			config.Port = n
		}
	}
	if level := os.Getenv("RIFT_LOG_LEVEL"); level != "" {
		config.LogLevel = level
	}
	if agent := os.Getenv("RIFT_DEFAULT_AGENT"); agent != "" {
		config.DefaultAgent = agent
	}
	if globs := os.Getenv("RIFT_IGNORE_GLOBS"); globs != "" {
		config.IgnoreGlobs = strings.Split(globs, ",")
	}
}

// Save saves the configuration to a file.
func Save(config *Config, path string) error {
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return err
	}

	data, err := json.MarshalIndent(config, "", "  ")
	if err != nil {
		return err
	}

	return os.WriteFile(path, data, 0644)
}
