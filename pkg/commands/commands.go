// Package commands provides the cobra commands of the wormhole-connect CLI.
//
// Use the Commands factory to build the whole tree or a single command:
//
//	cmds := commands.New(lggr)
//	root := cmds.Root("wormhole-connect")
//	if err := root.ExecuteContext(ctx); err != nil {
//	    os.Exit(1)
//	}
//
// Every command reads the config file named by --config and the environment. Tests replace
// the network facing parts through Deps.
package commands

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/wormhole-foundation/wormhole-connect-go/config"
	"github.com/wormhole-foundation/wormhole-connect-go/pkg/commands/flags"
	"github.com/wormhole-foundation/wormhole-connect-go/pkg/logger"
	"github.com/wormhole-foundation/wormhole-connect-go/registry"
	"github.com/wormhole-foundation/wormhole-connect-go/wormhole"
)

const (
	// DefaultConfigPath is used when --config is not set.
	DefaultConfigPath = "wormhole.yml"

	serviceName = "wormhole-connect"
)

// Commands provides a factory for creating CLI commands with shared configuration.
type Commands struct {
	lggr logger.Logger
	deps Deps
}

// New creates a new Commands factory. A nil logger is built from the log.level setting of
// each run.
func New(lggr logger.Logger) *Commands {
	c := &Commands{lggr: lggr}
	c.deps.applyDefaults()

	return c
}

// WithDeps returns a copy of the factory using deps. Nil fields keep their defaults.
func (c *Commands) WithDeps(deps Deps) *Commands {
	deps.applyDefaults()

	return &Commands{lggr: c.lggr, deps: deps}
}

// Root creates the root command with every subcommand attached.
func (c *Commands) Root(use string) *cobra.Command {
	root := &cobra.Command{
		Use:           use,
		Short:         "Move tokens between chains through the Wormhole token bridge",
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	flags.Config(root, DefaultConfigPath)
	flags.Environment(root)

	root.AddCommand(
		c.Chains(),
		c.Emitter(),
		c.Sequence(),
		c.VAA(),
		c.Send(),
	)

	return root
}

// session is the state shared by one command run.
type session struct {
	cfg  *config.Config
	wh   *wormhole.Context
	lggr logger.Logger

	shutdown config.ShutdownFunc
}

func (s *session) close(ctx context.Context) {
	if s.shutdown != nil {
		if err := s.shutdown(ctx); err != nil {
			s.lggr.Warnw("Failed to flush traces", "error", err)
		}
	}
}

// open loads the config and the wormhole context of a command run.
func (c *Commands) open(cmd *cobra.Command) (*session, error) {
	path := flags.MustString(cmd.Flags().GetString("config"))
	if path == "" {
		path = DefaultConfigPath
	}
	cfg, err := c.deps.ConfigLoader(path)
	if err != nil {
		return nil, fmt.Errorf("failed to load config: %w", err)
	}
	if env := flags.MustString(cmd.Flags().GetString("environment")); env != "" {
		cfg.Network.Environment = registry.Environment(env)
	}
	if err = cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}

	lggr := c.lggr
	if lggr == nil {
		level, lerr := logger.ParseLevel(cfg.Log.Level)
		if lerr != nil {
			return nil, lerr
		}
		if lggr, err = (&logger.Config{Level: level}).New(); err != nil {
			return nil, fmt.Errorf("failed to create logger: %w", err)
		}
	}

	shutdown, err := config.InitTracer(cmd.Context(), serviceName, cfg.Telemetry.OTLPEndpoint)
	if err != nil {
		lggr.Warnw("Tracing disabled", "error", err)
	}

	wh, err := c.deps.ContextLoader(cmd.Context(), cfg, lggr)
	if err != nil {
		return nil, fmt.Errorf("failed to load wormhole context: %w", err)
	}

	return &session{cfg: cfg, wh: wh, lggr: lggr, shutdown: shutdown}, nil
}

func printJSON(cmd *cobra.Command, v any) error {
	b, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to marshal output: %w", err)
	}
	_, err = fmt.Fprintln(cmd.OutOrStdout(), string(b))

	return err
}
