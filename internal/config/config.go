// Package config loads runtime configuration from a YAML file and
// AGENTFLOW_* environment variables, with sane defaults for everything.
package config

import (
	"fmt"
	"strings"

	"github.com/spf13/viper"

	"github.com/ignatij/agentflow/pkg/budget"
	"github.com/ignatij/agentflow/pkg/window"
)

type DBConfig struct {
	Host     string `mapstructure:"host"`
	Port     string `mapstructure:"port"`
	Username string `mapstructure:"username"`
	Password string `mapstructure:"password"`
	Name     string `mapstructure:"name"`
	SSLMode  string `mapstructure:"sslmode"`
}

// ConnString assembles a lib/pq connection URL.
func (c DBConfig) ConnString() string {
	return fmt.Sprintf("postgres://%s:%s@%s:%s/%s?sslmode=%s",
		c.Username, c.Password, c.Host, c.Port, c.Name, c.SSLMode)
}

type ServerConfig struct {
	Port string `mapstructure:"port"`
}

type BudgetConfig struct {
	WorkflowTokens int64 `mapstructure:"workflow_tokens"`
}

type WindowConfig struct {
	PerDependency int `mapstructure:"per_dependency"`
	TotalContext  int `mapstructure:"total_context"`
	SummaryTarget int `mapstructure:"summary_target"`
}

// Limits converts the raw values into windowing limits, falling back to
// defaults for anything unset.
func (c WindowConfig) Limits() window.Limits {
	l := window.DefaultLimits()
	if c.PerDependency > 0 {
		l.PerDependency = c.PerDependency
	}
	if c.TotalContext > 0 {
		l.TotalContext = c.TotalContext
	}
	if c.SummaryTarget > 0 {
		l.SummaryTarget = c.SummaryTarget
	}
	return l
}

type EngineConfig struct {
	ContinueOnHandlerError bool `mapstructure:"continue_on_handler_error"`
}

type Config struct {
	DB     DBConfig     `mapstructure:"db"`
	Server ServerConfig `mapstructure:"server"`
	Budget BudgetConfig `mapstructure:"budget"`
	Window WindowConfig `mapstructure:"window"`
	Engine EngineConfig `mapstructure:"engine"`
}

// Load reads configuration from the given file (optional) and from
// AGENTFLOW_* environment variables. Nested keys map to env vars with
// underscores, e.g. db.host -> AGENTFLOW_DB_HOST.
func Load(cfgFile string) (Config, error) {
	v := viper.New()

	v.SetDefault("db.host", "localhost")
	v.SetDefault("db.port", "5432")
	v.SetDefault("db.username", "postgres")
	v.SetDefault("db.password", "postgres")
	v.SetDefault("db.name", "agentflow")
	v.SetDefault("db.sslmode", "disable")
	v.SetDefault("server.port", "8080")
	v.SetDefault("budget.workflow_tokens", budget.DefaultWorkflowBudget)
	v.SetDefault("window.per_dependency", window.DefaultMaxCharsPerDependency)
	v.SetDefault("window.total_context", window.DefaultMaxTotalContextChars)
	v.SetDefault("window.summary_target", window.DefaultSummaryTargetChars)
	v.SetDefault("engine.continue_on_handler_error", false)

	v.SetEnvPrefix("AGENTFLOW")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if cfgFile != "" {
		v.SetConfigFile(cfgFile)
	} else {
		v.SetConfigName("agentflow")
		v.SetConfigType("yaml")
		v.AddConfigPath(".")
		v.AddConfigPath("$HOME/.config/agentflow")
	}

	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok && cfgFile != "" {
			return Config{}, fmt.Errorf("read config: %w", err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return Config{}, fmt.Errorf("unmarshal config: %w", err)
	}
	if cfg.Budget.WorkflowTokens <= 0 {
		cfg.Budget.WorkflowTokens = budget.DefaultWorkflowBudget
	}
	return cfg, nil
}
