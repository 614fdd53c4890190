package main

import (
	"fmt"
	"text/tabwriter"
	"time"

	"github.com/spf13/cobra"
)

func newCacheCmd(c *cli) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "cache",
		Short: "Inspect and maintain the page cache",
	}

	cmd.AddCommand(
		&cobra.Command{
			Use:   "clear",
			Short: "Delete every cached entry",
			Args:  cobra.NoArgs,
			RunE: func(cmd *cobra.Command, args []string) error {
				a, err := newApp(c.cfg)
				if err != nil {
					return err
				}
				defer a.Close()

				if err := a.engine.ClearCache(); err != nil {
					return err
				}
				fmt.Fprintf(cmd.OutOrStdout(), "cleared %s\n", a.store.Dir())
				return nil
			},
		},
		&cobra.Command{
			Use:   "sweep",
			Short: "Remove expired entries now",
			Args:  cobra.NoArgs,
			RunE: func(cmd *cobra.Command, args []string) error {
				a, err := newApp(c.cfg)
				if err != nil {
					return err
				}
				defer a.Close()

				res := a.engine.Sweep()
				fmt.Fprintf(cmd.OutOrStdout(), "scanned %d, removed %d, failed %d\n",
					res.Scanned, res.Removed, res.Failed)
				return nil
			},
		},
		&cobra.Command{
			Use:   "list",
			Short: "List fresh cached entries, newest first",
			Args:  cobra.NoArgs,
			RunE: func(cmd *cobra.Command, args []string) error {
				a, err := newApp(c.cfg)
				if err != nil {
					return err
				}
				defer a.Close()

				entries, err := a.engine.Entries()
				if err != nil {
					return err
				}

				now := a.store.Now()
				tw := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', 0)
				fmt.Fprintln(tw, "AGE\tEXPIRES IN\tSIZE\tURL")
				for _, e := range entries {
					age := now.Sub(e.Timestamp)
					fmt.Fprintf(tw, "%s\t%s\t%d\t%s\n",
						age.Round(time.Second), (a.store.TTL() - age).Round(time.Second), e.Size, e.URL)
				}
				return tw.Flush()
			},
		},
	)
	return cmd
}
