package config

import (
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/rahul/steptable/internal/table"
)

type Config struct {
	App      AppConfig                `json:"app" yaml:"app"`
	Browser  BrowserConfig            `json:"browser" yaml:"browser"`
	Table    TableConfig              `json:"table" yaml:"table"`
	Bridge   BridgeConfig             `json:"bridge" yaml:"bridge"`
	Gateways map[string]GatewayConfig `json:"gateways" yaml:"gateways"`
	Memory   MemoryConfig             `json:"memory" yaml:"memory"`
	Policy   PolicyConfig             `json:"policy" yaml:"policy"`
}

type AppConfig struct {
	Name   string `json:"name" yaml:"name"`
	LogDir string `json:"log_dir" yaml:"log_dir"`
}

type BrowserConfig struct {
	// RemoteURL attaches to a running Chrome instead of launching one.
	RemoteURL string `json:"remote_url,omitempty" yaml:"remote_url,omitempty"`
	// TargetURL picks the open tab to drive when attached; empty opens a new tab.
	TargetURL            string `json:"target_url,omitempty" yaml:"target_url,omitempty"`
	Headless             bool   `json:"headless" yaml:"headless"`
	UserDataDir          string `json:"user_data_dir,omitempty" yaml:"user_data_dir,omitempty"`
	StartURL             string `json:"start_url,omitempty" yaml:"start_url,omitempty"`
	ActionTimeoutSeconds int    `json:"action_timeout_seconds" yaml:"action_timeout_seconds"`
}

type TableConfig struct {
	ButtonCaptions       []string `json:"button_captions,omitempty" yaml:"button_captions,omitempty"`
	InitialWaitMs        int      `json:"initial_wait_ms" yaml:"initial_wait_ms"`
	ClickIntervalMs      int      `json:"click_interval_ms" yaml:"click_interval_ms"`
	MaxWaitForResponseMs int      `json:"max_wait_for_response_ms" yaml:"max_wait_for_response_ms"`
	RetryTimes           int      `json:"retry_times" yaml:"retry_times"`
	PollIntervalMs       int      `json:"poll_interval_ms" yaml:"poll_interval_ms"`
}

type BridgeConfig struct {
	Addr string `json:"addr" yaml:"addr"`
	// PanelURL is where panel tabs load the panel page from.
	PanelURL string `json:"panel_url,omitempty" yaml:"panel_url,omitempty"`
}

type GatewayConfig struct {
	Token        string  `json:"token" yaml:"token"`
	Enabled      bool    `json:"enabled" yaml:"enabled"`
	AllowedChats []int64 `json:"allowed_chats,omitempty" yaml:"allowed_chats,omitempty"`
}

// MemoryConfig locates the sqlite store.
type MemoryConfig struct {
	Path string `json:"path" yaml:"path"`
}

type PolicyConfig struct {
	DenyActions  []string `json:"deny_actions,omitempty" yaml:"deny_actions,omitempty"`
	DenyPayloads []string `json:"deny_payloads,omitempty" yaml:"deny_payloads,omitempty"`
	// DenyFrom maps a source (panel, cli, telegram) to actions it may not run.
	DenyFrom map[string][]string `json:"deny_from,omitempty" yaml:"deny_from,omitempty"`
}

// Default returns the configuration used when no file is given.
func Default() *Config {
	cfg := &Config{}
	cfg.applyDefaults()
	return cfg
}

func (c *Config) applyDefaults() {
	if c.App.Name == "" {
		c.App.Name = "steptable"
	}
	if c.App.LogDir == "" {
		c.App.LogDir = "logs"
	}
	if c.Browser.ActionTimeoutSeconds <= 0 {
		c.Browser.ActionTimeoutSeconds = 60
	}
	d := table.DefaultGrowOptions()
	if c.Table.InitialWaitMs <= 0 {
		c.Table.InitialWaitMs = int(d.InitialWait / time.Millisecond)
	}
	if c.Table.ClickIntervalMs <= 0 {
		c.Table.ClickIntervalMs = int(d.ClickInterval / time.Millisecond)
	}
	if c.Table.MaxWaitForResponseMs <= 0 {
		c.Table.MaxWaitForResponseMs = int(d.MaxWaitForResponse / time.Millisecond)
	}
	if c.Table.RetryTimes <= 0 {
		c.Table.RetryTimes = d.RetryTimes
	}
	if c.Table.PollIntervalMs <= 0 {
		c.Table.PollIntervalMs = int(d.PollInterval / time.Millisecond)
	}
	if c.Bridge.Addr == "" {
		c.Bridge.Addr = "127.0.0.1:8765"
	}
	if c.Bridge.PanelURL == "" {
		c.Bridge.PanelURL = "http://" + c.Bridge.Addr + "/panel"
	}
	if c.Memory.Path == "" {
		c.Memory.Path = "steptable.db"
	}
}

// LoadConfig reads a JSON or YAML file, chosen by extension. A missing file
// yields the defaults unless required is set.
func LoadConfig(path string, required bool) (*Config, error) {
	data, err := os.ReadFile(path)
	if errors.Is(err, fs.ErrNotExist) && !required {
		return Default(), nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to open config file: %w", err)
	}

	var cfg Config
	switch strings.ToLower(filepath.Ext(path)) {
	case ".yaml", ".yml":
		err = yaml.Unmarshal(data, &cfg)
	default:
		err = json.Unmarshal(data, &cfg)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to decode config file %s: %w", path, err)
	}

	cfg.applyDefaults()
	return &cfg, nil
}

// GrowOptions converts the table timings.
func (c *Config) GrowOptions() table.GrowOptions {
	ms := func(n int) time.Duration { return time.Duration(n) * time.Millisecond }
	return table.GrowOptions{
		InitialWait:        ms(c.Table.InitialWaitMs),
		ClickInterval:      ms(c.Table.ClickIntervalMs),
		MaxWaitForResponse: ms(c.Table.MaxWaitForResponseMs),
		PollInterval:       ms(c.Table.PollIntervalMs),
		RetryTimes:         c.Table.RetryTimes,
	}
}

func (c *Config) ActionTimeout() time.Duration {
	return time.Duration(c.Browser.ActionTimeoutSeconds) * time.Second
}

// GetTelegramConfig returns telegram config if enabled
func (c *Config) GetTelegramConfig() (GatewayConfig, bool) {
	tg, ok := c.Gateways["telegram"]
	if ok && tg.Enabled && tg.Token != "" {
		return tg, true
	}
	return GatewayConfig{}, false
}
