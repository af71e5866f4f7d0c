// Package config loads and validates the agent configuration.
package config

import (
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v3"
)

type Config struct {
	// Local collaborator files.
	NodeIDFile  string `yaml:"node_id_file"`
	TokenFile   string `yaml:"token_file"`
	MetricsFile string `yaml:"metrics_file"`
	JournalDB   string `yaml:"journal_db_path"`

	// Remote coordination service.
	ServerURL        string `yaml:"server_url"`
	SyncPath         string `yaml:"sync_path"`
	AuthCodePath     string `yaml:"auth_code_path"`
	TaskPath         string `yaml:"task_path"`
	TaskCompletePath string `yaml:"task_complete_path"`

	// Sync scheduling policy, in seconds.
	BaseIntervalSec   int     `yaml:"base_interval"`
	MinDelaySec       int     `yaml:"min_delay"`
	MaxDelaySec       int     `yaml:"max_delay"`
	SafetyBufferSec   int     `yaml:"safety_buffer"`
	BackoffMultiplier float64 `yaml:"backoff_multiplier"`
	ErrorCap          int     `yaml:"error_cap"`

	// Task polling.
	PollIntervalSec int `yaml:"poll_interval"`

	// Network.
	RequestTimeoutSec int `yaml:"request_timeout"`
	RequestsPerMin    int `yaml:"requests_per_minute"`

	StatusLogIntervalSec int `yaml:"status_log_interval"`
}

// LoadConfig loads configuration from a YAML file and sets default values.
func LoadConfig(path string) (*Config, error) {
	var cfg Config
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, err
	}
	cfg.applyDefaults()
	if err := cfg.validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

func (c *Config) applyDefaults() {
	if c.NodeIDFile == "" {
		c.NodeIDFile = "node_id"
	}
	if c.TokenFile == "" {
		c.TokenFile = "mining_token"
	}
	if c.MetricsFile == "" {
		c.MetricsFile = "speedtest_result"
	}
	if c.SyncPath == "" {
		c.SyncPath = "/api/node/sync"
	}
	if c.AuthCodePath == "" {
		c.AuthCodePath = "/api/node/auth-code"
	}
	if c.TaskPath == "" {
		c.TaskPath = "/api/node/task"
	}
	if c.TaskCompletePath == "" {
		c.TaskCompletePath = "/api/node/task/complete"
	}
	if c.BaseIntervalSec == 0 {
		c.BaseIntervalSec = 60
	}
	if c.MinDelaySec == 0 {
		c.MinDelaySec = 5
	}
	if c.MaxDelaySec == 0 {
		c.MaxDelaySec = 900
	}
	if c.SafetyBufferSec == 0 {
		c.SafetyBufferSec = 2
	}
	if c.BackoffMultiplier == 0 {
		c.BackoffMultiplier = 2.0
	}
	if c.ErrorCap == 0 {
		c.ErrorCap = 6
	}
	if c.PollIntervalSec == 0 {
		c.PollIntervalSec = 5
	}
	if c.RequestTimeoutSec == 0 {
		c.RequestTimeoutSec = 30
	}
	if c.RequestsPerMin == 0 {
		c.RequestsPerMin = 60
	}
	if c.StatusLogIntervalSec == 0 {
		c.StatusLogIntervalSec = 300
	}
}

func (c *Config) validate() error {
	if c.ServerURL == "" {
		return fmt.Errorf("server_url is required")
	}
	if c.MinDelaySec > c.BaseIntervalSec || c.BaseIntervalSec > c.MaxDelaySec {
		return fmt.Errorf("delay bounds must satisfy min_delay <= base_interval <= max_delay (got %d <= %d <= %d)",
			c.MinDelaySec, c.BaseIntervalSec, c.MaxDelaySec)
	}
	if c.BackoffMultiplier <= 1 {
		return fmt.Errorf("backoff_multiplier must be greater than 1 (got %v)", c.BackoffMultiplier)
	}
	if c.ErrorCap < 0 {
		return fmt.Errorf("error_cap must not be negative")
	}
	return nil
}

func (c *Config) BaseInterval() time.Duration { return time.Duration(c.BaseIntervalSec) * time.Second }
func (c *Config) MinDelay() time.Duration     { return time.Duration(c.MinDelaySec) * time.Second }
func (c *Config) MaxDelay() time.Duration     { return time.Duration(c.MaxDelaySec) * time.Second }
func (c *Config) SafetyBuffer() time.Duration { return time.Duration(c.SafetyBufferSec) * time.Second }
func (c *Config) PollInterval() time.Duration { return time.Duration(c.PollIntervalSec) * time.Second }
func (c *Config) RequestTimeout() time.Duration {
	return time.Duration(c.RequestTimeoutSec) * time.Second
}
func (c *Config) StatusLogInterval() time.Duration {
	return time.Duration(c.StatusLogIntervalSec) * time.Second
}

// SyncURL returns the full sync endpoint URL.
func (c *Config) SyncURL() string { return c.ServerURL + c.SyncPath }

// AuthCodeURL returns the full auth-code endpoint URL.
func (c *Config) AuthCodeURL() string { return c.ServerURL + c.AuthCodePath }

// TaskURL returns the full task-provider endpoint URL.
func (c *Config) TaskURL() string { return c.ServerURL + c.TaskPath }

// TaskCompleteURL returns the full task-completion endpoint URL.
func (c *Config) TaskCompleteURL() string { return c.ServerURL + c.TaskCompletePath }
