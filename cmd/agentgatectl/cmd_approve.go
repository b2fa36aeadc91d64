package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/actionhost/agentgate/internal/domain"
)

func newApproveCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "approve <plan-id>",
		Short: "Approve a pending plan",
		Args:  cobra.ExactArgs(1),
		RunE:  runDecision(domain.DecisionApproved),
	}
}

func newRejectCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "reject <plan-id>",
		Short: "Reject a pending plan",
		Args:  cobra.ExactArgs(1),
		RunE:  runDecision(domain.DecisionRejected),
	}
}

func runDecision(decision domain.Decision) func(*cobra.Command, []string) error {
	return func(cmd *cobra.Command, args []string) error {
		c, err := newClient(cmd.Context())
		if err != nil {
			return err
		}
		body := map[string]domain.Decision{"decision": decision}
		if err := c.postJSON(cmd.Context(), "POST", "/api/admin/plans/"+args[0]+"/approve", body, nil); err != nil {
			return err
		}
		fmt.Fprintf(cmd.OutOrStdout(), "plan %s: %s\n", args[0], decision)
		return nil
	}
}
