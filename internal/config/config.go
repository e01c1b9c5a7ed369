// Package config loads and validates spider configuration via Viper.
package config

import (
	"fmt"
	"runtime"
	"strings"
	"time"

	"github.com/spf13/pflag"
	"github.com/spf13/viper"
	"go.uber.org/zap/zapcore"
)

// Supported orchestrator profiles.
const (
	ProfileFull    = "full"
	ProfileMinimal = "minimal"
)

// Config captures all spider configuration knobs loaded via Viper.
type Config struct {
	Redis        RedisConfig        `mapstructure:"redis"`
	Frontier     FrontierConfig     `mapstructure:"frontier"`
	Worker       WorkerConfig       `mapstructure:"worker"`
	Fetch        FetchConfig        `mapstructure:"fetch"`
	Orchestrator OrchestratorConfig `mapstructure:"orchestrator"`
	Observer     ObserverConfig     `mapstructure:"observer"`
	Metrics      MetricsConfig      `mapstructure:"metrics"`
	Logging      LoggingConfig      `mapstructure:"logging"`
}

// RedisConfig locates the shared set store.
type RedisConfig struct {
	URL      string `mapstructure:"url"`
	PoolSize int    `mapstructure:"pool_size"`
}

// FrontierConfig names the pending/done sets and bounds store calls.
type FrontierConfig struct {
	PendingKey    string        `mapstructure:"pending_key"`
	DoneKey       string        `mapstructure:"done_key"`
	AtomicEnqueue bool          `mapstructure:"atomic_enqueue"`
	OpTimeout     time.Duration `mapstructure:"op_timeout"`
}

// WorkerConfig governs the tasks inside one worker process.
type WorkerConfig struct {
	Tasks       int           `mapstructure:"tasks"`
	IdleBackoff time.Duration `mapstructure:"idle_backoff"`
	MaxProcs    int           `mapstructure:"max_procs"`
}

// FetchConfig configures the HTTP transport.
type FetchConfig struct {
	Timeout            time.Duration `mapstructure:"timeout"`
	UserAgent          string        `mapstructure:"user_agent"`
	InsecureSkipVerify bool          `mapstructure:"insecure_skip_verify"`
	MaxBodyBytes       int           `mapstructure:"max_body_bytes"`
}

// OrchestratorConfig controls the process pool.
type OrchestratorConfig struct {
	Processes     int    `mapstructure:"processes"`
	StartURL      string `mapstructure:"start_url"`
	Profile       string `mapstructure:"profile"`
	StdinShutdown bool   `mapstructure:"stdin_shutdown"`
}

// ObserverConfig sets the throughput sampling period. Zero disables it.
type ObserverConfig struct {
	Interval time.Duration `mapstructure:"interval"`
}

// MetricsConfig controls the operator HTTP surface. An empty Addr disables
// it. Worker process i listens on WorkerPortBase+i when WorkerPortBase > 0.
type MetricsConfig struct {
	Addr           string `mapstructure:"addr"`
	WorkerPortBase int    `mapstructure:"worker_port_base"`
}

// LoggingConfig toggles zap development features and level.
type LoggingConfig struct {
	Development bool   `mapstructure:"development"`
	Level       string `mapstructure:"level"`
}

// flagKeys maps CLI flag names onto config keys.
var flagKeys = map[string]string{
	"redis-url":        "redis.url",
	"atomic-enqueue":   "frontier.atomic_enqueue",
	"tasks":            "worker.tasks",
	"max-procs":        "worker.max_procs",
	"timeout":          "fetch.timeout",
	"processes":        "orchestrator.processes",
	"start-url":        "orchestrator.start_url",
	"profile":          "orchestrator.profile",
	"stdin-shutdown":   "orchestrator.stdin_shutdown",
	"observe-interval": "observer.interval",
	"metrics-addr":     "metrics.addr",
	"log-level":        "logging.level",
	"development":      "logging.development",
}

// Load builds a Config from disk, environment and, when flags is non-nil,
// any of its flags that the user set. Precedence is flag, env, file, default.
func Load(path string, flags *pflag.FlagSet) (Config, error) {
	v := viper.New()
	v.SetEnvPrefix("SPIDER")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	setDefaults(v)

	if path != "" {
		v.SetConfigFile(path)
		if err := v.ReadInConfig(); err != nil {
			return Config{}, fmt.Errorf("read config: %w", err)
		}
	}

	if flags != nil {
		for name, key := range flagKeys {
			f := flags.Lookup(name)
			if f == nil {
				continue
			}
			if err := v.BindPFlag(key, f); err != nil {
				return Config{}, fmt.Errorf("bind flag %s: %w", name, err)
			}
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return Config{}, fmt.Errorf("unmarshal config: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}

	return cfg, nil
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("redis.url", "redis://localhost")
	v.SetDefault("redis.pool_size", 0)
	v.SetDefault("frontier.pending_key", "asyncspider:pending")
	v.SetDefault("frontier.done_key", "asyncspider:done")
	v.SetDefault("frontier.atomic_enqueue", false)
	v.SetDefault("frontier.op_timeout", 5*time.Second)
	v.SetDefault("worker.tasks", 10)
	v.SetDefault("worker.idle_backoff", 100*time.Millisecond)
	v.SetDefault("worker.max_procs", 1)
	v.SetDefault("fetch.timeout", 60*time.Second)
	v.SetDefault("fetch.user_agent", "")
	v.SetDefault("fetch.insecure_skip_verify", true)
	v.SetDefault("fetch.max_body_bytes", 0)
	v.SetDefault("orchestrator.processes", runtime.NumCPU())
	v.SetDefault("orchestrator.start_url", "")
	v.SetDefault("orchestrator.profile", ProfileFull)
	v.SetDefault("orchestrator.stdin_shutdown", true)
	v.SetDefault("observer.interval", 10*time.Second)
	v.SetDefault("metrics.addr", "")
	v.SetDefault("metrics.worker_port_base", 0)
	v.SetDefault("logging.development", true)
	v.SetDefault("logging.level", "")
}

// Validate enforces required values and reasonable limits.
func (c Config) Validate() error {
	if c.Redis.URL == "" {
		return fmt.Errorf("redis.url must be set")
	}
	if c.Redis.PoolSize < 0 {
		return fmt.Errorf("redis.pool_size must be >= 0")
	}
	if c.Frontier.PendingKey == "" || c.Frontier.DoneKey == "" {
		return fmt.Errorf("frontier.pending_key and frontier.done_key must be set")
	}
	if c.Frontier.PendingKey == c.Frontier.DoneKey {
		return fmt.Errorf("frontier.pending_key and frontier.done_key must differ")
	}
	if c.Frontier.OpTimeout <= 0 {
		return fmt.Errorf("frontier.op_timeout must be > 0")
	}
	if c.Worker.Tasks <= 0 {
		return fmt.Errorf("worker.tasks must be > 0")
	}
	if c.Worker.IdleBackoff <= 0 {
		return fmt.Errorf("worker.idle_backoff must be > 0")
	}
	if c.Worker.MaxProcs < 0 {
		return fmt.Errorf("worker.max_procs must be >= 0")
	}
	if c.Fetch.Timeout <= 0 {
		return fmt.Errorf("fetch.timeout must be > 0")
	}
	if c.Fetch.MaxBodyBytes < 0 {
		return fmt.Errorf("fetch.max_body_bytes must be >= 0")
	}
	if c.Orchestrator.Processes <= 0 {
		return fmt.Errorf("orchestrator.processes must be > 0")
	}
	switch c.Orchestrator.Profile {
	case ProfileFull, ProfileMinimal:
	default:
		return fmt.Errorf("orchestrator.profile must be %q or %q", ProfileFull, ProfileMinimal)
	}
	if c.Observer.Interval < 0 {
		return fmt.Errorf("observer.interval must be >= 0")
	}
	if c.Metrics.WorkerPortBase < 0 || c.Metrics.WorkerPortBase > 65535 {
		return fmt.Errorf("metrics.worker_port_base must be within 0-65535")
	}
	if c.Logging.Level != "" {
		if _, err := zapcore.ParseLevel(c.Logging.Level); err != nil {
			return fmt.Errorf("logging.level: %w", err)
		}
	}
	return nil
}

// Minimal reports whether the orchestrator runs the reduced entry point: one
// task per process, no seeding and no observer.
func (c Config) Minimal() bool {
	return c.Orchestrator.Profile == ProfileMinimal
}
