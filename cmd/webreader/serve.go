package main

import (
	"context"

	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"

	"github.com/mredig/mcp-webreader/pkg/logging"
	"github.com/mredig/mcp-webreader/pkg/metrics"
	"github.com/mredig/mcp-webreader/pkg/tools"
)

func newServeCmd(c *cli) *cobra.Command {
	var httpAddr string

	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Serve the MCP tools over stdio, or streamable HTTP with --http",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := newApp(c.cfg)
			if err != nil {
				return err
			}
			defer func() {
				if err := a.Close(); err != nil {
					c.logger.Warn().Err(err).Msg("Shutdown incomplete")
				}
			}()

			srv := tools.NewServer(version, a.toolDependencies(logging.NewLogger("mcp")))

			// the metrics listener lives only as long as the MCP transport
			ctx, cancel := context.WithCancel(cmd.Context())
			defer cancel()
			g, ctx := errgroup.WithContext(ctx)

			if c.cfg.Metrics.Addr != "" {
				ms := metrics.NewServer(c.cfg.Metrics.Addr, logging.NewLogger("metrics"))
				g.Go(func() error { return ms.Serve(ctx) })
			}

			g.Go(func() error {
				defer cancel()
				if httpAddr != "" {
					return srv.ServeHTTP(ctx, httpAddr)
				}
				return srv.ServeStdio(ctx, cmd.InOrStdin(), cmd.OutOrStdout())
			})

			c.logger.Info().
				Str("version", version).
				Str("cache_dir", a.store.Dir()).
				Dur("ttl", a.store.TTL()).
				Str("render_mode", c.cfg.Render.Mode).
				Msg("webreader started")

			return g.Wait()
		},
	}

	cmd.Flags().StringVar(&httpAddr, "http", "", "serve streamable HTTP on this address instead of stdio")
	return cmd
}
