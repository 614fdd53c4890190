package main

import (
	"fmt"
	"io"

	"github.com/spf13/cobra"

	"github.com/mredig/mcp-webreader/pkg/extract"
	"github.com/mredig/mcp-webreader/pkg/fetch"
)

type fetchFlags struct {
	render      bool
	raw         bool
	links       bool
	ignoreCache bool
	userAgent   string
}

func newFetchCmd(c *cli) *cobra.Command {
	var f fetchFlags

	cmd := &cobra.Command{
		Use:   "fetch URL",
		Short: "Fetch one page through the cache and print its text",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := newApp(c.cfg)
			if err != nil {
				return err
			}
			defer a.Close()

			resp, err := a.engine.Fetch(cmd.Context(), fetch.Request{
				URL:         args[0],
				RenderJS:    f.render,
				IgnoreCache: f.ignoreCache,
				UserAgent:   f.userAgent,
			})
			if err != nil {
				return err
			}
			if !resp.OK() {
				return fmt.Errorf("%s returned HTTP %d", resp.URL, resp.StatusCode)
			}

			return printResponse(cmd.OutOrStdout(), resp, f)
		},
	}

	cmd.Flags().BoolVar(&f.render, "render", false, "render the page in a headless browser")
	cmd.Flags().BoolVar(&f.raw, "raw", false, "print the payload unmodified")
	cmd.Flags().BoolVar(&f.links, "links", false, "append the page's links")
	cmd.Flags().BoolVar(&f.ignoreCache, "no-cache", false, "skip the cache lookup (the result is still stored)")
	cmd.Flags().StringVar(&f.userAgent, "user-agent", "", "override the configured User-Agent")
	return cmd
}

func printResponse(w io.Writer, resp *fetch.CacheResponse, f fetchFlags) error {
	if f.raw {
		_, err := w.Write(resp.Data)
		return err
	}

	doc, err := extract.Extract(resp.Data, resp.ContentType, resp.URL)
	if err != nil {
		return err
	}

	if doc.Title != "" {
		fmt.Fprintf(w, "# %s\n\n", doc.Title)
	}
	fmt.Fprintln(w, doc.Text)

	if f.links && len(doc.Links) > 0 {
		fmt.Fprintln(w, "\nLinks:")
		for _, l := range doc.Links {
			if l.Text != "" {
				fmt.Fprintf(w, "- %s (%s)\n", l.Text, l.URL)
			} else {
				fmt.Fprintf(w, "- %s\n", l.URL)
			}
		}
	}
	return nil
}
