// Package config handles livedesk configuration loading and validation.
package config

import (
	"fmt"
	"time"
)

// Config is the root configuration structure for livedesk.
type Config struct {
	// Session holds the per-session engine settings.
	Session SessionConfig `yaml:"session" mapstructure:"session"`

	// Logging settings
	Logging LoggingConfig `yaml:"logging" mapstructure:"logging"`
}

// SessionConfig contains the timing and sizing knobs of a chat session.
// Every value may be overridden per session.
type SessionConfig struct {
	// TypingTimeout is how long a typing signal lives without a refresh.
	TypingTimeout time.Duration `yaml:"typing_timeout" mapstructure:"typing_timeout"`

	// NotificationDuration is how long a notification stays before auto-dismiss.
	NotificationDuration time.Duration `yaml:"notification_duration" mapstructure:"notification_duration"`

	// NotificationSampleInterval is how often notification progress is recomputed.
	NotificationSampleInterval time.Duration `yaml:"notification_sample_interval" mapstructure:"notification_sample_interval"`

	// NotificationCloseGrace is the delay between closing and removing a notification.
	NotificationCloseGrace time.Duration `yaml:"notification_close_grace" mapstructure:"notification_close_grace"`

	// MaxTypingUsersShown is how many names the typing line lists.
	MaxTypingUsersShown int `yaml:"max_typing_users_shown" mapstructure:"max_typing_users_shown"`

	// ReplyPreviewLength is the rune count kept in a reply preview.
	ReplyPreviewLength int `yaml:"reply_preview_length" mapstructure:"reply_preview_length"`

	// MessageMaxLength bounds the draft, in runes.
	MessageMaxLength int `yaml:"message_max_length" mapstructure:"message_max_length"`

	// RequireConnection blocks sends while the realtime link is down.
	RequireConnection bool `yaml:"require_connection" mapstructure:"require_connection"`
}

// LoggingConfig contains logging settings.
type LoggingConfig struct {
	// Level is the minimum log level (trace, debug, info, warn, error).
	Level string `yaml:"level" mapstructure:"level"`

	// Format is the output format (json, console).
	Format string `yaml:"format" mapstructure:"format"`

	// EnableCaller adds caller information to logs.
	EnableCaller bool `yaml:"enable_caller" mapstructure:"enable_caller"`
}

// DefaultSessionConfig returns the default session settings.
func DefaultSessionConfig() SessionConfig {
	return SessionConfig{
		TypingTimeout:              3 * time.Second,
		NotificationDuration:       3 * time.Second,
		NotificationSampleInterval: 50 * time.Millisecond,
		NotificationCloseGrace:     300 * time.Millisecond,
		MaxTypingUsersShown:        3,
		ReplyPreviewLength:         80,
		MessageMaxLength:           2000,
		RequireConnection:          true,
	}
}

// DefaultConfig returns the default configuration.
func DefaultConfig() *Config {
	return &Config{
		Session: DefaultSessionConfig(),
		Logging: LoggingConfig{
			Level:  "info",
			Format: "console",
		},
	}
}

// Validate checks if the configuration is valid.
func (c *Config) Validate() error {
	if err := c.Session.Validate(); err != nil {
		return fmt.Errorf("session: %w", err)
	}
	switch c.Logging.Format {
	case "console", "json":
	default:
		return fmt.Errorf("logging.format must be one of console, json")
	}
	return nil
}

// Validate checks if the session settings are usable.
func (s SessionConfig) Validate() error {
	if s.TypingTimeout <= 0 {
		return fmt.Errorf("typing_timeout must be positive")
	}
	if s.NotificationDuration < 0 {
		return fmt.Errorf("notification_duration must not be negative")
	}
	if s.NotificationSampleInterval < time.Millisecond {
		return fmt.Errorf("notification_sample_interval must be at least 1ms")
	}
	if s.NotificationDuration > 0 && s.NotificationSampleInterval > s.NotificationDuration {
		return fmt.Errorf("notification_sample_interval must not exceed notification_duration")
	}
	if s.NotificationCloseGrace < 0 {
		return fmt.Errorf("notification_close_grace must not be negative")
	}
	if s.MaxTypingUsersShown < 1 {
		return fmt.Errorf("max_typing_users_shown must be at least 1")
	}
	if s.ReplyPreviewLength < 1 {
		return fmt.Errorf("reply_preview_length must be at least 1")
	}
	if s.MessageMaxLength < 1 {
		return fmt.Errorf("message_max_length must be at least 1")
	}
	return nil
}
