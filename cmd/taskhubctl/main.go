// Command taskhubctl runs operational tasks against a TaskHub deployment:
// migrations, manual sweeps and local development tokens.
package main

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"os"

	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"

	"github.com/taskhub/taskhub-api/internal/app"
	"github.com/taskhub/taskhub-api/internal/config"
	"github.com/taskhub/taskhub-api/internal/pkg/logger"
)

type cli struct {
	cfg *config.Config
}

func newRootCommand() *cobra.Command {
	c := &cli{}
	root := &cobra.Command{
		Use:           "taskhubctl",
		Short:         "TaskHub operations",
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRun: func(cmd *cobra.Command, args []string) {
			c.cfg = config.Load()
			logger.Init(logger.Config{Level: c.cfg.LogLevel, Environment: c.cfg.Env})
		},
	}

	root.AddCommand(
		c.migrateCommand(),
		c.escrowCommand(),
		c.depositsCommand(),
		c.tokenCommand(),
		c.usersCommand(),
	)
	return root
}

// withApp runs fn against a fully wired service graph.
func (c *cli) withApp(ctx context.Context, fn func(a *app.App) error) error {
	a, err := app.New(ctx, c.cfg, app.Options{})
	if err != nil {
		return err
	}
	defer a.Close()
	return fn(a)
}

func printJSON(w io.Writer, v interface{}) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

func main() {
	if err := newRootCommand().Execute(); err != nil {
		log.Error().Err(err).Msg("Command failed")
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
