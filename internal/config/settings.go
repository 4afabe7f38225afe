package config

import (
	"errors"
	"fmt"
	"net"
	"os"
	"strings"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/ppiankov/dailyforge/internal/task"
)

// Defaults applied when the config file leaves a field unset.
const (
	DefaultOutputDir      = "daily-automation-output"
	DefaultModel          = "gpt-5"
	DefaultMaxTurns       = 20
	DefaultCredentialEnv  = "OPENAI_API_KEY"
	DefaultToolServerName = "Codex CLI"
	DefaultSessionTimeout = 100 * time.Hour
	DefaultProxyListen    = ":4000"
)

// DefaultToolServerCommand launches the Codex CLI in MCP mode.
var DefaultToolServerCommand = []string{"npx", "-y", "codex", "mcp"}

// ErrMissingCredential is returned when the credential variable is unset or empty.
var ErrMissingCredential = errors.New("credential not set")

// Settings holds the automation configuration loaded from a config file.
type Settings struct {
	OutputDir     string        `yaml:"output_dir"`
	Model         string        `yaml:"model"`
	MaxTurns      int           `yaml:"max_turns"`
	CredentialEnv string        `yaml:"credential_env"`
	APIBaseURL    string        `yaml:"api_base_url,omitempty"` // OpenAI-compatible endpoint for the agent
	RunTimeout    time.Duration `yaml:"run_timeout,omitempty"`  // 0 = wait for the agent indefinitely
	TUI           string        `yaml:"tui,omitempty"`          // auto, full, minimal, off
	Input         string        `yaml:"input,omitempty"`

	ToolServer ToolServerConfig `yaml:"tool_server"`
	Policy     task.Policy      `yaml:"policy"`

	// Responses API → Chat Completions translation proxy for the tool server
	Proxy *ProxyConfig `yaml:"proxy,omitempty"`
}

// ToolServerConfig describes the MCP tool server process.
type ToolServerConfig struct {
	Name           string            `yaml:"name"`
	Command        string            `yaml:"command"`
	Args           []string          `yaml:"args"`
	Dir            string            `yaml:"dir,omitempty"`
	Env            map[string]string `yaml:"env,omitempty"`
	SessionTimeout time.Duration     `yaml:"session_timeout"`
}

// ProxyConfig controls the built-in Responses API → Chat Completions proxy.
type ProxyConfig struct {
	Enabled bool                    `yaml:"enabled"`
	Listen  string                  `yaml:"listen,omitempty"` // default ":4000"
	Targets map[string]*ProxyTarget `yaml:"targets"`
}

// ProxyTarget describes an upstream Chat Completions endpoint.
type ProxyTarget struct {
	BaseURL string `yaml:"base_url"`
	APIKey  string `yaml:"api_key,omitempty"` // literal or "env:VAR_NAME"
}

// Default returns the settings used when no config file exists.
func Default() *Settings {
	s := &Settings{}
	s.applyDefaults()
	return s
}

// LoadSettings reads a YAML config file into Settings and fills unset fields
// with defaults. If the file does not exist, it returns Default() and nil error.
func LoadSettings(path string) (*Settings, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return Default(), nil
		}
		return nil, fmt.Errorf("read config: %w", err)
	}

	var s Settings
	if err := yaml.Unmarshal(data, &s); err != nil {
		return nil, fmt.Errorf("parse config %s: %w", path, err)
	}
	s.applyDefaults()
	if err := s.Validate(); err != nil {
		return nil, fmt.Errorf("config %s: %w", path, err)
	}

	return &s, nil
}

func (s *Settings) applyDefaults() {
	if s.OutputDir == "" {
		s.OutputDir = DefaultOutputDir
	}
	if s.Model == "" {
		s.Model = DefaultModel
	}
	if s.MaxTurns == 0 {
		s.MaxTurns = DefaultMaxTurns
	}
	if s.CredentialEnv == "" {
		s.CredentialEnv = DefaultCredentialEnv
	}
	if s.TUI == "" {
		s.TUI = "auto"
	}
	if s.ToolServer.Name == "" {
		s.ToolServer.Name = DefaultToolServerName
	}
	if s.ToolServer.Command == "" {
		s.ToolServer.Command = DefaultToolServerCommand[0]
		if len(s.ToolServer.Args) == 0 {
			s.ToolServer.Args = append([]string(nil), DefaultToolServerCommand[1:]...)
		}
	}
	if s.ToolServer.SessionTimeout == 0 {
		s.ToolServer.SessionTimeout = DefaultSessionTimeout
	}
	def := task.DefaultPolicy()
	if s.Policy.ApprovalPolicy == "" {
		s.Policy.ApprovalPolicy = def.ApprovalPolicy
	}
	if s.Policy.Sandbox == "" {
		s.Policy.Sandbox = def.Sandbox
	}
	if s.Proxy != nil && s.Proxy.Listen == "" {
		s.Proxy.Listen = DefaultProxyListen
	}
}

// Validate rejects settings no run could succeed with.
func (s *Settings) Validate() error {
	if s.MaxTurns < 1 {
		return fmt.Errorf("max_turns must be positive, got %d", s.MaxTurns)
	}
	if s.RunTimeout < 0 {
		return fmt.Errorf("run_timeout must not be negative, got %v", s.RunTimeout)
	}
	if s.ToolServer.SessionTimeout < 0 {
		return fmt.Errorf("tool_server.session_timeout must not be negative, got %v", s.ToolServer.SessionTimeout)
	}
	switch s.TUI {
	case "auto", "full", "minimal", "off":
	default:
		return fmt.Errorf("tui must be auto, full, minimal or off, got %q", s.TUI)
	}
	return nil
}

// Credential returns the value of the credential variable verbatim, or
// ErrMissingCredential when it is unset or empty.
func (s *Settings) Credential() (string, error) {
	key := os.Getenv(s.CredentialEnv)
	if key == "" {
		return "", fmt.Errorf("%w: %s environment variable not set", ErrMissingCredential, s.CredentialEnv)
	}
	return key, nil
}

// ResolveAPIKey expands an "env:VAR_NAME" reference. Literal keys are
// returned unchanged.
func ResolveAPIKey(apiKey string) (string, error) {
	if !strings.HasPrefix(apiKey, "env:") {
		return apiKey, nil
	}
	envKey := strings.TrimPrefix(apiKey, "env:")
	val := os.Getenv(envKey)
	if val == "" {
		return "", fmt.Errorf("env var %q is not set", envKey)
	}
	return val, nil
}

// BaseURL is the local address clients should use to reach the proxy.
func (p *ProxyConfig) BaseURL() string {
	listen := p.Listen
	if listen == "" {
		listen = DefaultProxyListen
	}
	host, port, err := net.SplitHostPort(listen)
	if err != nil {
		return "http://" + listen + "/v1"
	}
	if host == "" || host == "0.0.0.0" || host == "::" {
		host = "127.0.0.1"
	}
	return "http://" + net.JoinHostPort(host, port) + "/v1"
}
