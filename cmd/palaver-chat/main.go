// Command palaver-chat is an interactive console client for a palaver
// server.
package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"
)

func main() {
	if err := newRootCommand().ExecuteContext(context.Background()); err != nil {
		fmt.Fprintln(os.Stderr, "Error:", err)
		os.Exit(1)
	}
}

type options struct {
	server       string
	capabilities []string
	timeout      time.Duration
}

func newRootCommand() *cobra.Command {
	opts := options{}

	root := &cobra.Command{
		Use:           "palaver-chat",
		Short:         "Chat with a palaver server from the console",
		SilenceUsage:  true,
		SilenceErrors: true,
		Args:          cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()

			c := newClient(opts.server, opts.timeout)
			return newSession(c, opts.capabilities, cmd.InOrStdin(), cmd.OutOrStdout()).run(ctx)
		},
	}

	flags := root.PersistentFlags()
	flags.StringVarP(&opts.server, "server", "s", envOr("PALAVER_SERVER", "http://localhost:8080"), "palaver server base URL")
	flags.DurationVar(&opts.timeout, "timeout", 3*time.Minute, "per-request timeout")
	root.Flags().StringSliceVar(&opts.capabilities, "capabilities", nil, "capability modules to expose (default: all)")

	root.AddCommand(newCapabilitiesCommand(&opts))
	return root
}

func newCapabilitiesCommand(opts *options) *cobra.Command {
	return &cobra.Command{
		Use:   "capabilities",
		Short: "List the server's capability modules",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			infos, err := newClient(opts.server, opts.timeout).capabilities(cmd.Context())
			if err != nil {
				return err
			}
			out := cmd.OutOrStdout()
			for _, info := range infos {
				fmt.Fprintf(out, "%s\t%s\n", info.Name, info.Description)
				for _, fn := range info.Functions {
					fmt.Fprintf(out, "  - %s\n", fn)
				}
			}
			return nil
		},
	}
}

func envOr(key, def string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return def
}
