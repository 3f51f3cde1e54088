// Package config loads and watches the agent configuration.
package config

import (
	"github.com/moltagent/moltagent/internal/logger"
)

// Config is the full agent configuration, resolved once at startup.
type Config struct {
	// DataDir holds the state document, snapshots, archive, and logs.
	DataDir string `json:"data_dir" mapstructure:"data_dir"`

	// StatePath overrides the state document location.
	StatePath string `json:"state_path" mapstructure:"state_path"`

	Moltbook  MoltbookConfig  `json:"moltbook" mapstructure:"moltbook"`
	LLM       LLMConfig       `json:"llm" mapstructure:"llm"`
	Agent     AgentConfig     `json:"agent" mapstructure:"agent"`
	Prompts   PromptsConfig   `json:"prompts" mapstructure:"prompts"`
	Dashboard DashboardConfig `json:"dashboard" mapstructure:"dashboard"`
	Snapshot  SnapshotConfig  `json:"snapshot" mapstructure:"snapshot"`
	Archive   ArchiveConfig   `json:"archive" mapstructure:"archive"`
	Logging   LoggingConfig   `json:"logging" mapstructure:"logging"`
}

// MoltbookConfig configures the platform collaborator.
type MoltbookConfig struct {
	BaseURL string `json:"base_url" mapstructure:"base_url"`
	Submolt string `json:"submolt" mapstructure:"submolt"`
}

// LLMConfig configures provider selection. Providers is a comma-separated
// allow-list or "auto"; LegacyProvider is the old single-provider override.
type LLMConfig struct {
	Providers      string `json:"providers" mapstructure:"providers"`
	LegacyProvider string `json:"legacy_provider" mapstructure:"legacy_provider"`
	MaxAttempts    int    `json:"max_attempts" mapstructure:"max_attempts"`
}

// AgentConfig is the persona configuration (hot-reloadable).
type AgentConfig struct {
	Name        string   `json:"name" mapstructure:"name"`
	Description string   `json:"description" mapstructure:"description"`
	Keywords    []string `json:"keywords" mapstructure:"keywords"`
}

// PromptsConfig holds the prompt templates. Placeholders use {{name}}
// syntax; empty entries fall back to the built-in templates.
type PromptsConfig struct {
	DecideNextAction string `json:"decide_next_action" mapstructure:"decide_next_action"`
	Comment          string `json:"comment" mapstructure:"comment"`
	CommentOffTopic  string `json:"comment_off_topic" mapstructure:"comment_off_topic"`
	Classify         string `json:"classify" mapstructure:"classify"`
	ReplyToComment   string `json:"reply_to_comment" mapstructure:"reply_to_comment"`
	PersonaSummary   string `json:"persona_summary" mapstructure:"persona_summary"`
	Verification     string `json:"verification" mapstructure:"verification"`
}

// DashboardConfig configures the read-only HTTP dashboard.
type DashboardConfig struct {
	Enabled bool   `json:"enabled" mapstructure:"enabled"`
	Addr    string `json:"addr" mapstructure:"addr"`
}

// SnapshotConfig configures periodic state backups.
type SnapshotConfig struct {
	Enabled  bool   `json:"enabled" mapstructure:"enabled"`
	Schedule string `json:"schedule" mapstructure:"schedule"`
	Dir      string `json:"dir" mapstructure:"dir"`
}

// ArchiveConfig configures the sqlite action archive.
type ArchiveConfig struct {
	Enabled bool   `json:"enabled" mapstructure:"enabled"`
	Path    string `json:"path" mapstructure:"path"`
}

// LoggingConfig mirrors logger.Config in the config file.
type LoggingConfig struct {
	Level     string `json:"level" mapstructure:"level"`
	File      string `json:"file" mapstructure:"file"`
	Console   bool   `json:"console" mapstructure:"console"`
	Pretty    bool   `json:"pretty" mapstructure:"pretty"`
	Redaction bool   `json:"redaction" mapstructure:"redaction"`
	MaxSizeMB int    `json:"max_size_mb" mapstructure:"max_size_mb"`
}

// ToLoggerConfig converts the file representation.
func (l LoggingConfig) ToLoggerConfig() logger.Config {
	return logger.Config{
		Level:     l.Level,
		File:      l.File,
		Console:   l.Console,
		Pretty:    l.Pretty,
		Redaction: l.Redaction,
		MaxSizeMB: l.MaxSizeMB,
	}
}

// DefaultConfig returns the built-in defaults.
func DefaultConfig() *Config {
	lg := logger.DefaultConfig()
	return &Config{
		Moltbook: MoltbookConfig{
			Submolt: "general",
		},
		LLM: LLMConfig{
			Providers: "auto",
		},
		Agent: AgentConfig{
			Name:        "MoltbookAgent",
			Description: "An agentic AI on Moltbook. Edit the config file to set your agent name and prompts.",
			Keywords:    []string{},
		},
		Dashboard: DashboardConfig{
			Enabled: true,
			Addr:    ":3000",
		},
		Snapshot: SnapshotConfig{
			Enabled:  true,
			Schedule: "@hourly",
		},
		Archive: ArchiveConfig{
			Enabled: true,
		},
		Logging: LoggingConfig{
			Level:     lg.Level,
			Console:   lg.Console,
			Pretty:    lg.Pretty,
			Redaction: lg.Redaction,
			MaxSizeMB: lg.MaxSizeMB,
		},
	}
}
