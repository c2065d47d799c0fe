package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/spf13/viper"
)

// Backend names accepted by the "backend" setting.
const (
	BackendNative     = "native"
	BackendSubprocess = "subprocess"
)

// Config is the fully resolved runtime configuration. Precedence, lowest
// to highest: defaults, config file, SHEEN_* environment variables,
// command-line flags (applied by the CLI after Load).
type Config struct {
	// Prompt is the positional task description. Never read from a
	// file; the CLI sets it.
	Prompt string `mapstructure:"-"`

	Backend  string `mapstructure:"backend"`
	Provider string `mapstructure:"provider"`
	Model    string `mapstructure:"model"`

	// Command and Args configure the subprocess backend.
	Command string   `mapstructure:"command"`
	Args    []string `mapstructure:"args"`

	WorkDir  string `mapstructure:"workdir"`
	PlanFile string `mapstructure:"plan_file"`

	MaxIterations  int           `mapstructure:"max_iterations"`
	ErrorThreshold int           `mapstructure:"error_threshold"`
	StallThreshold int           `mapstructure:"stall_threshold"`
	MaxTaskRetries int           `mapstructure:"max_task_retries"`
	Delay          time.Duration `mapstructure:"delay"`
	Timeout        time.Duration `mapstructure:"timeout"`
	TokenBudget    int           `mapstructure:"token_budget"`

	AutoApprove bool `mapstructure:"auto_approve"`
	Resume      bool `mapstructure:"resume"`
	Verbose     bool `mapstructure:"verbose"`

	// PermissionRules maps tool names to "allow", "deny", or "ask".
	PermissionRules map[string]string `mapstructure:"permission_rules"`
}

// Default returns the built-in configuration.
func Default() *Config {
	return &Config{
		Backend:        BackendNative,
		Provider:       "anthropic",
		PlanFile:       filepath.Join(".sheen", "plan.yaml"),
		MaxIterations:  50,
		ErrorThreshold: 5,
		StallThreshold: 3,
		MaxTaskRetries: 2,
		Delay:          2 * time.Second,
		Timeout:        5 * time.Minute,
		TokenBudget:    100000,
	}
}

// Load resolves configuration from defaults, the config file, and the
// environment. path names an explicit config file; when empty, Load
// searches for sheen.yaml in the working directory and the user config
// directory. A missing file is not an error.
func Load(path string) (*Config, error) {
	v := viper.New()

	def := Default()
	v.SetDefault("backend", def.Backend)
	v.SetDefault("provider", def.Provider)
	v.SetDefault("model", def.Model)
	v.SetDefault("command", def.Command)
	v.SetDefault("args", def.Args)
	v.SetDefault("workdir", def.WorkDir)
	v.SetDefault("plan_file", def.PlanFile)
	v.SetDefault("max_iterations", def.MaxIterations)
	v.SetDefault("error_threshold", def.ErrorThreshold)
	v.SetDefault("stall_threshold", def.StallThreshold)
	v.SetDefault("max_task_retries", def.MaxTaskRetries)
	v.SetDefault("delay", def.Delay)
	v.SetDefault("timeout", def.Timeout)
	v.SetDefault("token_budget", def.TokenBudget)
	v.SetDefault("auto_approve", def.AutoApprove)
	v.SetDefault("verbose", def.Verbose)

	if path != "" {
		v.SetConfigFile(path)
	} else {
		v.SetConfigName("sheen")
		v.SetConfigType("yaml")
		v.AddConfigPath(".")
		if dir, err := os.UserConfigDir(); err == nil {
			v.AddConfigPath(filepath.Join(dir, "sheen"))
		}
	}

	v.SetEnvPrefix("SHEEN")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if err := v.ReadInConfig(); err != nil {
		// An explicit path must exist; a searched file may not.
		if path != "" {
			return nil, fmt.Errorf("read config: %w", err)
		}
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, fmt.Errorf("read config: %w", err)
		}
	}

	cfg := new(Config)
	if err := v.Unmarshal(cfg); err != nil {
		return nil, fmt.Errorf("parse config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Validate rejects configurations the engine cannot run with.
func (c *Config) Validate() error {
	switch c.Backend {
	case BackendNative, BackendSubprocess:
	default:
		return fmt.Errorf("unknown backend %q (want %s or %s)", c.Backend, BackendNative, BackendSubprocess)
	}
	if c.Backend == BackendSubprocess && c.Command == "" {
		return fmt.Errorf("subprocess backend requires a command")
	}
	if c.MaxIterations <= 0 {
		return fmt.Errorf("max_iterations must be positive, got %d", c.MaxIterations)
	}
	if c.ErrorThreshold <= 0 {
		return fmt.Errorf("error_threshold must be positive, got %d", c.ErrorThreshold)
	}
	if c.StallThreshold <= 0 {
		return fmt.Errorf("stall_threshold must be positive, got %d", c.StallThreshold)
	}
	if c.Delay < 0 {
		return fmt.Errorf("delay must not be negative, got %s", c.Delay)
	}
	if c.Timeout < 0 {
		return fmt.Errorf("timeout must not be negative, got %s", c.Timeout)
	}
	for tool, rule := range c.PermissionRules {
		switch rule {
		case "allow", "deny", "ask":
		default:
			return fmt.Errorf("permission rule for %q must be allow, deny, or ask, got %q", tool, rule)
		}
	}
	return nil
}

// APIKey returns the credential for the configured provider from the
// environment, checking <PROVIDER>_API_KEY.
func (c *Config) APIKey() string {
	name := strings.ToUpper(c.Provider) + "_API_KEY"
	return os.Getenv(name)
}
