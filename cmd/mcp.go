package cmd

import (
	"os"
	"os/signal"

	"github.com/spf13/cobra"

	"github.com/martinemde/deskagent/mcp"
)

func newMCPCmd(_ *app, g *globalOptions) *cobra.Command {
	var workdir string
	cmd := &cobra.Command{
		Use:   "mcp",
		Short: "Serve the tools to an MCP client over stdio",
		Long:  "mcp speaks JSON-RPC 2.0 on stdin/stdout. Every call shares one session, so change_directory persists for the life of the process. Logs go to stderr.",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := g.loadConfig()
			if err != nil {
				return err
			}
			logger := g.logger(cmd, cfg)
			d, err := newDispatcher(cfg, workdir, logger)
			if err != nil {
				return err
			}
			server, err := mcp.NewServer(d, mcp.WithLogger(logger), mcp.WithServerInfo("deskagent", version))
			if err != nil {
				return err
			}

			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt)
			defer stop()
			return server.Serve(ctx, cmd.InOrStdin(), cmd.OutOrStdout())
		},
	}
	cmd.Flags().StringVar(&workdir, "workdir", "", "session working directory (default home)")
	return cmd
}
