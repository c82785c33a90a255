package cmd

import (
	"errors"
	"fmt"
	"strings"

	"github.com/charmbracelet/lipgloss"
	"github.com/charmbracelet/lipgloss/table"
	"github.com/spf13/cobra"

	"github.com/martinemde/deskagent/config"
	"github.com/martinemde/deskagent/unifiedllm"
)

var errProbeFailed = errors.New("connection test failed")

func newProvidersCmd(a *app, g *globalOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "providers",
		Short: "Manage and test configured LLM providers",
	}
	cmd.AddCommand(
		newProvidersListCmd(g),
		newProvidersTestCmd(a, g),
		newProvidersModelsCmd(a, g),
	)
	return cmd
}

func newProvidersListCmd(g *globalOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "list",
		Short: "List configured providers",
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := g.loadConfig()
			if err != nil {
				return err
			}
			out := cmd.OutOrStdout()
			if len(cfg.Providers) == 0 {
				_, err := fmt.Fprintln(out, "no providers configured; add a [[providers]] table to the config file")
				return err
			}

			t := table.New().
				Border(lipgloss.NormalBorder()).
				Headers("", "NAME", "TYPE", "ENDPOINT", "MODELS")
			for _, p := range cfg.Providers {
				mark := ""
				if p.Name == cfg.ActiveProvider {
					mark = "*"
				}
				endpoint := p.ResolvedBaseURL()
				if endpoint == "" {
					endpoint = "default"
				}
				t.Row(mark, p.Name, p.Type, endpoint, strings.Join(p.Models, ", "))
			}
			_, err = fmt.Fprintln(out, t.Render())
			return err
		},
	}
}

func newProvidersTestCmd(a *app, g *globalOptions) *cobra.Command {
	var modelFlag string
	cmd := &cobra.Command{
		Use:   "test [provider]",
		Short: "Send one short completion to check a provider works",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := g.loadConfig()
			if err != nil {
				return err
			}
			p, model, err := providerAndModel(cfg, firstArg(args), modelFlag)
			if err != nil {
				return err
			}
			adapter, err := a.newAdapter(p, model)
			if err != nil {
				return fmt.Errorf("provider %s: %w", p.Name, err)
			}

			res := unifiedllm.Probe(cmd.Context(), adapter, model, a.probePolicy)
			out := cmd.OutOrStdout()
			if !res.OK {
				fmt.Fprintln(out, failureStyle.Render("✗ "+res.Message))
				return errProbeFailed
			}
			fmt.Fprintf(out, "%s %s\n", successStyle.Render("✓ "+res.Message), statsStyle.Render(res.Latency.String()))
			return nil
		},
	}
	cmd.Flags().StringVar(&modelFlag, "model", "", "model to probe (default active_model or the provider's first model)")
	return cmd
}

func newProvidersModelsCmd(a *app, g *globalOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "models [provider]",
		Short: "List the models a provider serves",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := g.loadConfig()
			if err != nil {
				return err
			}
			p, err := pickProvider(cfg, firstArg(args))
			if err != nil {
				return err
			}
			adapter, err := a.newAdapter(p, p.DefaultModel())
			if err != nil {
				return fmt.Errorf("provider %s: %w", p.Name, err)
			}

			ids, live, err := unifiedllm.AvailableModels(cmd.Context(), adapter, a.probePolicy)
			if err != nil {
				return err
			}
			out := cmd.OutOrStdout()
			if len(ids) == 0 {
				_, err := fmt.Fprintln(out, "no models found")
				return err
			}
			if !live {
				fmt.Fprintln(out, statsStyle.Render("(from the built-in catalog)"))
			}
			for _, id := range ids {
				fmt.Fprintln(out, id)
			}
			return nil
		},
	}
}

func pickProvider(cfg *config.Config, name string) (config.Provider, error) {
	if name != "" {
		return cfg.Provider(name)
	}
	p, _, err := cfg.Active()
	return p, err
}

func firstArg(args []string) string {
	if len(args) == 0 {
		return ""
	}
	return args[0]
}
