package dispatch

import (
	"fmt"
	"os"
	"time"

	"github.com/caarlos0/env/v11"
	"gopkg.in/yaml.v3"
)

// Default configuration values applied before file and environment overrides.
const (
	DefaultHostPort  = "localhost:7233"
	DefaultNamespace = "default"
	DefaultTaskQueue = "dispatch"
	DefaultTimeout   = 10 * time.Second
)

// EnvPrefix is the prefix applied to environment variable lookups when loading
// configuration, e.g. DISPATCH_HOST_PORT.
const EnvPrefix = "DISPATCH_"

// Config holds the connection parameters for the orchestration backend. It is
// read-only after construction: executors copy the value at build time and
// never mutate it.
type Config struct {
	// HostPort is the backend frontend address (host:port).
	HostPort string `yaml:"host_port" env:"HOST_PORT"`

	// Namespace scopes all workflow executions started by the executor.
	Namespace string `yaml:"namespace" env:"NAMESPACE"`

	// TaskQueue is the default queue used when a workflow definition and start
	// options both omit one.
	TaskQueue string `yaml:"task_queue" env:"TASK_QUEUE"`

	// Timeout bounds blocking result waits issued by ExecuteWorkflow. Zero
	// means wait indefinitely (bounded only by the caller's context).
	Timeout time.Duration `yaml:"timeout" env:"TIMEOUT"`
}

// DefaultConfig returns a Config populated with package defaults.
func DefaultConfig() Config {
	return Config{
		HostPort:  DefaultHostPort,
		Namespace: DefaultNamespace,
		TaskQueue: DefaultTaskQueue,
		Timeout:   DefaultTimeout,
	}
}

// LoadConfig builds a Config from defaults overlaid with DISPATCH_-prefixed
// environment variables.
func LoadConfig() (Config, error) {
	cfg := DefaultConfig()
	if err := env.ParseWithOptions(&cfg, env.Options{Prefix: EnvPrefix}); err != nil {
		return Config{}, fmt.Errorf("parse environment: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

// LoadConfigFile builds a Config from defaults, overlaid with the YAML file at
// path, overlaid with DISPATCH_-prefixed environment variables. Environment
// values win over file values so deployments can override checked-in files.
func LoadConfigFile(path string) (Config, error) {
	cfg := DefaultConfig()
	data, err := os.ReadFile(path)
	if err != nil {
		return Config{}, fmt.Errorf("read config file: %w", err)
	}
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return Config{}, fmt.Errorf("parse config file %s: %w", path, err)
	}
	if err := env.ParseWithOptions(&cfg, env.Options{Prefix: EnvPrefix}); err != nil {
		return Config{}, fmt.Errorf("parse environment: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

// Validate reports configuration values that no backend can accept.
func (c Config) Validate() error {
	if c.HostPort == "" {
		return fmt.Errorf("config: host_port is required")
	}
	if c.Namespace == "" {
		return fmt.Errorf("config: namespace is required")
	}
	if c.TaskQueue == "" {
		return fmt.Errorf("config: task_queue is required")
	}
	if c.Timeout < 0 {
		return fmt.Errorf("config: timeout cannot be negative")
	}
	return nil
}
