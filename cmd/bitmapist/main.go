// Command bitmapist marks and queries event bitmaps stored in Redis and
// moves them to and from cold storage.
package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"
	"go.uber.org/zap"
)

// cli carries the global flags and the resources built from them.
type cli struct {
	configPath string
	redisAddr  string
	verbose    bool

	env    *env
	logger *zap.Logger
}

func newRootCmd() *cobra.Command {
	c := &cli{}

	root := &cobra.Command{
		Use:   "bitmapist",
		Short: "Cohort analytics on Redis bitmaps",
		Long: `bitmapist records which numeric IDs performed an event in hourly, daily,
weekly and monthly buckets, and answers set questions over them.

Bitmaps are addressed as:
  ev:<name>:<month|week|day|hour>[@<time>]   event bucket containing <time> (default now)
  at:<name>                                  attribute bitmap
  key:<raw key>                              any stored key`,
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, _ []string) error {
			return c.setup(cmd.Context())
		},
		PersistentPostRun: func(*cobra.Command, []string) {
			c.teardown()
		},
	}

	root.PersistentFlags().StringVar(&c.configPath, "config", "bitmapist.yaml", "path to the YAML config file")
	root.PersistentFlags().StringVar(&c.redisAddr, "redis", "", "Redis address, overrides the config file")
	root.PersistentFlags().BoolVarP(&c.verbose, "verbose", "v", false, "enable debug logging")

	root.AddCommand(
		newMarkCmd(c),
		newMarkAttrCmd(c),
		newCountCmd(c),
		newContainsCmd(c),
		newOpCmd(c),
		newNamesCmd(c),
		newDeleteCmd(c),
		newArchiveCmd(c),
		newRestoreCmd(c),
		newManifestsCmd(c),
	)
	return root
}

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := newRootCmd().ExecuteContext(ctx); err != nil {
		fmt.Fprintln(os.Stderr, "Error:", err)
		stop()
		os.Exit(1)
	}
}
