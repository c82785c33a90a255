package cmd

import (
	"encoding/json"
	"errors"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/martinemde/deskagent/agentloop"
	"github.com/martinemde/deskagent/config"
	"github.com/martinemde/deskagent/observability"
)

var errToolFailed = errors.New("tool call failed")

func newToolsCmd(_ *app, g *globalOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "tools",
		Short: "Inspect and invoke the agent's tools",
	}
	cmd.AddCommand(newToolsListCmd(), newToolsCallCmd(g))
	return cmd
}

func newToolsListCmd() *cobra.Command {
	var asJSON bool
	cmd := &cobra.Command{
		Use:   "list",
		Short: "List the tools the planner can call",
		RunE: func(cmd *cobra.Command, _ []string) error {
			out := cmd.OutOrStdout()
			if asJSON {
				enc := json.NewEncoder(out)
				enc.SetIndent("", "  ")
				return enc.Encode(agentloop.ToolDefinitions())
			}
			for _, spec := range agentloop.Catalog() {
				fmt.Fprintf(out, "%s\n  %s\n", toolCallStyle.Render(spec.Name), spec.Description)
				for _, p := range spec.Params {
					req := ""
					if p.Required {
						req = " (required)"
					}
					fmt.Fprintf(out, "    %s %s%s: %s\n", p.Name, p.Type, req, p.Description)
				}
			}
			return nil
		},
	}
	cmd.Flags().BoolVar(&asJSON, "json", false, "print the tool definitions sent to the planner")
	return cmd
}

func newToolsCallCmd(g *globalOptions) *cobra.Command {
	var (
		rawArgs string
		workdir string
	)
	cmd := &cobra.Command{
		Use:   "call <tool>",
		Short: "Run one tool against a fresh session",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := g.loadConfig()
			if err != nil {
				return err
			}
			d, err := newDispatcher(cfg, workdir, g.logger(cmd, cfg))
			if err != nil {
				return err
			}

			toolArgs, err := agentloop.ParseToolArguments(json.RawMessage(rawArgs))
			if err != nil {
				return fmt.Errorf("--args: %w", err)
			}
			result := d.Execute(cmd.Context(), args[0], toolArgs)
			fmt.Fprintln(cmd.OutOrStdout(), result.ConversationText())
			if !result.Success {
				return errToolFailed
			}
			return nil
		},
	}
	cmd.Flags().StringVar(&rawArgs, "args", "{}", "tool arguments as a JSON object")
	cmd.Flags().StringVar(&workdir, "workdir", "", "session working directory (default home)")
	return cmd
}

// newDispatcher builds a dispatcher over a fresh session using the
// configured command limits.
func newDispatcher(cfg *config.Config, workdir string, logger *observability.Logger) (*agentloop.Dispatcher, error) {
	var opts []agentloop.SessionOption
	if workdir != "" {
		opts = append(opts, agentloop.WithWorkingDir(workdir))
	}
	session, err := agentloop.NewSession(opts...)
	if err != nil {
		return nil, err
	}

	ac := cfg.AgentConfig()
	return agentloop.NewDispatcher(session,
		agentloop.WithCommandTimeouts(ac.CommandTimeout, ac.MaxCommandTimeout),
		agentloop.WithCommandSafety(cfg.CommandSafety),
		agentloop.WithDispatcherLogger(logger),
	), nil
}
