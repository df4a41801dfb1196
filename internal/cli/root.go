// Package cli implements the geocode command-line tool
package cli

import (
	"context"
	"io"
	"os"

	"github.com/evyataryagoni/geocoder/internal/app"
	"github.com/evyataryagoni/geocoder/internal/config"
	"github.com/evyataryagoni/geocoder/internal/logger"
	"github.com/spf13/cobra"
)

// Env is what the commands run against
type Env struct {
	Config *config.Config
	Logger *logger.Logger
	Out    io.Writer
	Err    io.Writer

	// Open assembles the service (app.Build without metrics when nil)
	Open func(ctx context.Context, cfg *config.Config) (*app.App, error)
}

func (e *Env) open(ctx context.Context) (*app.App, error) {
	if e.Open != nil {
		return e.Open(ctx, e.Config)
	}
	return app.Build(ctx, e.Config, nil, e.Logger)
}

// NewRootCommand builds the command tree
func NewRootCommand(env *Env, version string) *cobra.Command {
	if env.Out == nil {
		env.Out = os.Stdout
	}
	if env.Err == nil {
		env.Err = os.Stderr
	}
	if env.Logger == nil {
		env.Logger = logger.Nop()
	}

	root := &cobra.Command{
		Use:   "geocode",
		Short: "resolve addresses to coordinates",
		Long: `
geocode resolves free-form and structured addresses with the same pipeline as
the HTTP server: known-address table, result cache, city table and the
configured providers. Backends are selected with the server's environment
variables (KNOWN_STORE_TYPE, CACHE_TYPE, MYSQL_DSN, REDIS_ADDR, ...).
`,
		Version:       version,
		SilenceUsage:  true,
		SilenceErrors: false,
	}
	root.SetOut(env.Out)
	root.SetErr(env.Err)

	root.AddCommand(
		newResolveCommand(env),
		newReverseCommand(env),
		newBatchCommand(env),
		newLoadKnownCommand(env),
	)
	return root
}

// Execute runs the tool with configuration from the environment
func Execute(version string) {
	cfg := config.Load()
	env := &Env{
		Config: cfg,
		Logger: logger.New(logger.Config{Level: cfg.LogLevel, Pretty: true, Output: os.Stderr}),
	}

	if err := NewRootCommand(env, version).Execute(); err != nil {
		os.Exit(1)
	}
}
