package config

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"time"

	"github.com/joho/godotenv"
)

// Settings holds everything supplied through the environment. JSON settings
// files (model, agent budgets, langfuse flushing) are read separately via
// LoadJSONSetting so they stay hot-reloadable from disk.
type Settings struct {
	MistralAPIKey     string
	LangfusePublicKey string
	LangfuseSecretKey string
	LangfuseHost      string
	LogLevel          string
	Port              int
	SettingsDir       string
	PromptsDir        string
}

// Load reads the optional .env file and builds validated Settings.
func Load() (*Settings, error) {
	// Missing .env is fine, the environment may already be populated.
	_ = godotenv.Load(".env")

	s := &Settings{
		MistralAPIKey:     os.Getenv("MISTRAL_API_KEY"),
		LangfusePublicKey: os.Getenv("LANGFUSE_PUBLIC_KEY"),
		LangfuseSecretKey: os.Getenv("LANGFUSE_SECRET_KEY"),
		LangfuseHost:      getEnv("LANGFUSE_HOST", "https://cloud.langfuse.com"),
		LogLevel:          getEnv("LOG_LEVEL", "INFO"),
		Port:              getEnvInt("PORT", 8000),
		SettingsDir:       getEnv("SETTINGS_DIR", "settings"),
		PromptsDir:        getEnv("PROMPTS_DIR", "prompts"),
	}

	if s.MistralAPIKey == "" {
		return nil, fmt.Errorf("missing required configuration field: MISTRAL_API_KEY")
	}

	return s, nil
}

// LangfuseEnabled reports whether both Langfuse keys are present.
func (s *Settings) LangfuseEnabled() bool {
	return s.LangfusePublicKey != "" && s.LangfuseSecretKey != ""
}

// Debug reports whether debug-level detail may be exposed to callers.
func (s *Settings) Debug() bool {
	return s.LogLevel == "DEBUG" || s.LogLevel == "debug"
}

func getEnv(key, defaultValue string) string {
	if val := os.Getenv(key); val != "" {
		return val
	}
	return defaultValue
}

func getEnvInt(key string, defaultValue int) int {
	val := os.Getenv(key)
	if val == "" {
		return defaultValue
	}
	parsed, err := strconv.Atoi(val)
	if err != nil {
		return defaultValue
	}
	return parsed
}

// ModelConfig mirrors settings/model_config.json.
type ModelConfig struct {
	ModelName   string  `json:"model_name"`
	Temperature float32 `json:"temperature"`
	MaxTokens   int     `json:"max_tokens"`
	Timeout     int     `json:"timeout"`
}

// LoopBudget is one loop's iteration and wall-clock budget.
type LoopBudget struct {
	MaxIterations        int `json:"max_iterations"`
	MaxExecutionTimeSecs int `json:"max_execution_time"`
}

// MaxExecutionTime returns the wall-clock budget as a duration.
func (b LoopBudget) MaxExecutionTime() time.Duration {
	return time.Duration(b.MaxExecutionTimeSecs) * time.Second
}

// AgentConfig mirrors settings/agent_config.json.
type AgentConfig struct {
	Orchestrator LoopBudget `json:"orchestrator"`
	Operator     LoopBudget `json:"operator"`
}

// LangfuseConfig mirrors settings/langfuse_config.json.
type LangfuseConfig struct {
	FlushAt       int     `json:"flush_at"`
	FlushInterval float64 `json:"flush_interval"`
}

// LoadJSONSetting reads one JSON settings file from disk. It always reads the
// file again so edits take effect without a restart.
func LoadJSONSetting(settingsDir, filename string, out any) error {
	if filepath.Ext(filename) != ".json" {
		filename += ".json"
	}

	path := filepath.Join(settingsDir, filename)
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("read settings file %s: %w", path, err)
	}

	if err := json.Unmarshal(data, out); err != nil {
		return fmt.Errorf("invalid JSON in %s: %w", path, err)
	}

	return nil
}

// LoadModelConfig returns the model configuration, falling back to defaults
// when the settings file is absent.
func LoadModelConfig(settingsDir string) ModelConfig {
	cfg := ModelConfig{
		ModelName:   "mistral-medium-latest",
		Temperature: 0.1,
		MaxTokens:   1024,
		Timeout:     60,
	}
	_ = LoadJSONSetting(settingsDir, "model_config", &cfg)
	return cfg
}

// LoadAgentConfig returns loop budgets, falling back to defaults when the
// settings file is absent.
func LoadAgentConfig(settingsDir string) AgentConfig {
	cfg := AgentConfig{
		Orchestrator: LoopBudget{MaxIterations: 10, MaxExecutionTimeSecs: 300},
		Operator:     LoopBudget{MaxIterations: 5, MaxExecutionTimeSecs: 120},
	}
	_ = LoadJSONSetting(settingsDir, "agent_config", &cfg)
	return cfg
}

// LoadLangfuseConfig returns tracer flush settings, falling back to defaults
// when the settings file is absent.
func LoadLangfuseConfig(settingsDir string) LangfuseConfig {
	cfg := LangfuseConfig{FlushAt: 10, FlushInterval: 1.0}
	_ = LoadJSONSetting(settingsDir, "langfuse_config", &cfg)
	return cfg
}
