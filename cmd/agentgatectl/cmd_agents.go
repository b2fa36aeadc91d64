package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/actionhost/agentgate/internal/domain"
)

func newAgentsCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "agents",
		Short: "List, create, and rotate agent keys",
	}
	cmd.AddCommand(newAgentsListCmd(), newAgentsCreateCmd(), newAgentsRotateCmd())
	return cmd
}

func newAgentsListCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "list",
		Short: "List registered agents",
		RunE: func(cmd *cobra.Command, args []string) error {
			c, err := newClient(cmd.Context())
			if err != nil {
				return err
			}
			var agents []domain.Agent
			if err := c.getJSON(cmd.Context(), "/api/admin/agents", &agents); err != nil {
				return err
			}
			out := cmd.OutOrStdout()
			for _, a := range agents {
				seen := "never"
				if a.LastSeenAt != nil {
					seen = a.LastSeenAt.Format("2006-01-02T15:04:05Z07:00")
				}
				fmt.Fprintf(out, "%s  %-20s last seen %s\n", a.ID, a.Name, seen)
			}
			return nil
		},
	}
}

func newAgentsCreateCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "create <name>",
		Short: "Register a new agent and print its one-time API key",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			c, err := newClient(cmd.Context())
			if err != nil {
				return err
			}
			var resp struct {
				ID     string `json:"id"`
				Name   string `json:"name"`
				APIKey string `json:"apiKey"`
			}
			if err := c.postJSON(cmd.Context(), "POST", "/api/admin/agents", map[string]string{"name": args[0]}, &resp); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "agent %s created\napi key (shown once): %s\n", resp.ID, resp.APIKey)
			return nil
		},
	}
}

func newAgentsRotateCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "rotate-key <agent-id>",
		Short: "Rotate an agent's API key",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			c, err := newClient(cmd.Context())
			if err != nil {
				return err
			}
			var resp struct {
				APIKey string `json:"apiKey"`
			}
			if err := c.postJSON(cmd.Context(), "POST", "/api/admin/agents/"+args[0]+"/rotate-key", nil, &resp); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "new api key (shown once): %s\n", resp.APIKey)
			return nil
		},
	}
}
