// Package cmd implements the agentrouter command line.
package cmd

import (
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/randalmurphal/agentrouter/internal/logging"
	"github.com/randalmurphal/agentrouter/pkg/agentrouter/lock"
)

// Settings is the server and CLI configuration.
type Settings struct {
	Listen        string
	LogLevel      string
	LogFormat     string
	StoreDriver   string
	StoreDSN      string
	RedisAddr     string
	RedisLock     bool
	LockTTL       time.Duration
	WorkflowsDir  string
	MaxIterations int
	ToolsBaseURL  string
	ToolsToken    string
	Completion    string
	Metrics       bool
}

type app struct {
	version string
	v       *viper.Viper
	cfgFile string
}

// NewRootCmd builds the command tree with its own viper instance.
func NewRootCmd(version string) *cobra.Command {
	a := &app{version: version, v: viper.New()}

	root := &cobra.Command{
		Use:   "agentrouter",
		Short: "Run supervisor-routed agent workflows",
		Long: `agentrouter runs multi-worker workflows in which a dispatcher picks the
next worker from the shared conversation log until the work is done or a
human approval gate is reached.`,
		Version:       version,
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, _ []string) error {
			return a.initConfig()
		},
	}

	flags := root.PersistentFlags()
	flags.StringVar(&a.cfgFile, "config", "", "config file (default: ./agentrouter.yaml or $HOME/.config/agentrouter/agentrouter.yaml)")
	flags.String("log-level", "info", "log level (debug, info, warn, error)")
	flags.String("log-format", "text", "log format (text, json)")
	flags.String("store", "memory", "checkpoint store (memory, sqlite, file, redis, postgres)")
	flags.String("store-dsn", "", "store path or connection string")
	flags.String("workflows", "configs/workflows", "directory of workflow definitions")

	_ = a.v.BindPFlag("log.level", flags.Lookup("log-level"))
	_ = a.v.BindPFlag("log.format", flags.Lookup("log-format"))
	_ = a.v.BindPFlag("store.driver", flags.Lookup("store"))
	_ = a.v.BindPFlag("store.dsn", flags.Lookup("store-dsn"))
	_ = a.v.BindPFlag("workflows.dir", flags.Lookup("workflows"))

	root.AddCommand(
		a.serveCmd(),
		a.mcpCmd(),
		a.runCmd(),
		a.resumeCmd(),
		a.statusCmd(),
		a.validateCmd(),
	)
	return root
}

func (a *app) initConfig() error {
	v := a.v
	v.SetDefault("listen", ":8080")
	v.SetDefault("redis.addr", "localhost:6379")
	v.SetDefault("lock.redis", false)
	v.SetDefault("lock.ttl", lock.DefaultTTL)
	v.SetDefault("max_iterations", 0)
	v.SetDefault("metrics.enabled", true)

	if a.cfgFile != "" {
		v.SetConfigFile(a.cfgFile)
	} else {
		v.SetConfigName("agentrouter")
		v.SetConfigType("yaml")
		v.AddConfigPath(".")
		v.AddConfigPath("$HOME/.config/agentrouter")
	}

	v.SetEnvPrefix("AGENTROUTER")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) {
			return fmt.Errorf("reading config: %w", err)
		}
	}
	return nil
}

func (a *app) settings() Settings {
	v := a.v
	return Settings{
		Listen:        v.GetString("listen"),
		LogLevel:      v.GetString("log.level"),
		LogFormat:     v.GetString("log.format"),
		StoreDriver:   v.GetString("store.driver"),
		StoreDSN:      v.GetString("store.dsn"),
		RedisAddr:     v.GetString("redis.addr"),
		RedisLock:     v.GetBool("lock.redis"),
		LockTTL:       v.GetDuration("lock.ttl"),
		WorkflowsDir:  v.GetString("workflows.dir"),
		MaxIterations: v.GetInt("max_iterations"),
		ToolsBaseURL:  v.GetString("tools.base_url"),
		ToolsToken:    v.GetString("tools.token"),
		Completion:    v.GetString("completion.command"),
		Metrics:       v.GetBool("metrics.enabled"),
	}
}

func (a *app) logger(cmd *cobra.Command, s Settings) (*slog.Logger, error) {
	return logging.New(cmd.ErrOrStderr(), s.LogLevel, s.LogFormat)
}
