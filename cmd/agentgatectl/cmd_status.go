package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/actionhost/agentgate/internal/domain"
)

func newStatusCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "status",
		Short: "Show safe mode and the pending approval queue",
		RunE: func(cmd *cobra.Command, args []string) error {
			c, err := newClient(cmd.Context())
			if err != nil {
				return err
			}

			var safeMode struct {
				Enabled bool `json:"enabled"`
			}
			if err := c.getJSON(cmd.Context(), "/api/admin/safe-mode", &safeMode); err != nil {
				return err
			}

			var pending []domain.ActionRequest
			if err := c.getJSON(cmd.Context(), "/api/admin/action-requests?status="+string(domain.RequestPlanned), &pending); err != nil {
				return err
			}

			out := cmd.OutOrStdout()
			fmt.Fprintf(out, "safe mode: %v\n", safeMode.Enabled)
			fmt.Fprintf(out, "pending approvals: %d\n", len(pending))
			for _, req := range pending {
				fmt.Fprintf(out, "  %s  %-8s %s\n", req.ID, req.Input.Type, req.Summary)
			}
			return nil
		},
	}
}

func newSafeModeCmd() *cobra.Command {
	var enable, disable bool
	cmd := &cobra.Command{
		Use:   "safe-mode",
		Short: "Show or change safe mode",
		RunE: func(cmd *cobra.Command, args []string) error {
			c, err := newClient(cmd.Context())
			if err != nil {
				return err
			}
			if !enable && !disable {
				var state struct {
					Enabled bool `json:"enabled"`
				}
				if err := c.getJSON(cmd.Context(), "/api/admin/safe-mode", &state); err != nil {
					return err
				}
				fmt.Fprintf(cmd.OutOrStdout(), "safe mode: %v\n", state.Enabled)
				return nil
			}
			req := map[string]bool{"enabled": enable && !disable}
			var resp struct {
				Enabled bool `json:"enabled"`
			}
			if err := c.postJSON(cmd.Context(), "POST", "/api/admin/safe-mode", req, &resp); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "safe mode: %v\n", resp.Enabled)
			return nil
		},
	}
	cmd.Flags().BoolVar(&enable, "enable", false, "turn safe mode on")
	cmd.Flags().BoolVar(&disable, "disable", false, "turn safe mode off")
	return cmd
}

func newLockdownCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "lockdown",
		Short: "Trigger an emergency lockdown: enable safe mode and rotate every agent key",
		RunE: func(cmd *cobra.Command, args []string) error {
			c, err := newClient(cmd.Context())
			if err != nil {
				return err
			}
			var resp struct {
				AgentsAffected int `json:"agentsAffected"`
			}
			if err := c.postJSON(cmd.Context(), "POST", "/api/admin/lockdown", nil, &resp); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "lockdown complete: %d agent keys rotated\n", resp.AgentsAffected)
			return nil
		},
	}
}
