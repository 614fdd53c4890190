// Command webreader serves cached, optionally script-rendered web page
// fetches to MCP clients and exposes the same engine on the command line.
package main

import (
	"context"
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"

	"github.com/rs/zerolog"
	"github.com/spf13/cobra"

	"github.com/mredig/mcp-webreader/pkg/config"
	"github.com/mredig/mcp-webreader/pkg/logging"
)

var version = "dev"

// cli carries state shared by every subcommand.
type cli struct {
	configPath string
	logLevel   string
	pretty     bool

	cfg    config.Config
	logger zerolog.Logger
	stderr io.Writer
}

func newRootCmd(stderr io.Writer) *cobra.Command {
	c := &cli{stderr: stderr}

	root := &cobra.Command{
		Use:   "webreader",
		Short: "Cached web page reader for MCP clients",
		Long: `webreader fetches web pages over plain HTTP or through a headless browser,
caches the result on disk and serves it to MCP clients over stdio or
streamable HTTP.`,
		Version:       version,
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			return c.load()
		},
	}

	root.PersistentFlags().StringVar(&c.configPath, "config", "", "path to a YAML config file")
	root.PersistentFlags().StringVar(&c.logLevel, "log-level", "",
		"log level (trace,debug,info,warn,error); overrides the config file")
	root.PersistentFlags().BoolVar(&c.pretty, "pretty", false, "human-readable log output")

	root.AddCommand(
		newServeCmd(c),
		newFetchCmd(c),
		newCacheCmd(c),
	)
	return root
}

func (c *cli) load() error {
	cfg, err := config.Load(c.configPath)
	if err != nil {
		return err
	}
	if c.logLevel != "" {
		cfg.Log.Level = c.logLevel
	}
	if c.pretty {
		cfg.Log.Pretty = true
	}

	c.cfg = cfg
	c.logger = logging.Setup(logging.Config{
		Level:  logging.LogLevel(cfg.Log.Level),
		Pretty: cfg.Log.Pretty,
		Output: c.stderr,
	})
	return nil
}

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := newRootCmd(os.Stderr).ExecuteContext(ctx); err != nil {
		fmt.Fprintln(os.Stderr, "webreader:", err)
		stop()
		os.Exit(1)
	}
}
