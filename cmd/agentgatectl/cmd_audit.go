package main

import (
	"encoding/json"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/actionhost/agentgate/internal/domain"
)

func newAuditCmd() *cobra.Command {
	var sinceID string
	cmd := &cobra.Command{
		Use:   "audit",
		Short: "Tail the hash-chained audit log",
		RunE: func(cmd *cobra.Command, args []string) error {
			c, err := newClient(cmd.Context())
			if err != nil {
				return err
			}
			path := "/api/admin/audit"
			if sinceID != "" {
				path += "?since_id=" + sinceID
			}
			var events []domain.AuditEvent
			if err := c.getJSON(cmd.Context(), path, &events); err != nil {
				return err
			}
			out := cmd.OutOrStdout()
			for _, e := range events {
				data, _ := json.Marshal(e.Data)
				fmt.Fprintf(out, "%s  %-24s %s  %s\n", e.ID, e.EventType, e.CreatedAt.Format("15:04:05"), string(data))
			}
			return nil
		},
	}
	cmd.Flags().StringVar(&sinceID, "since", "", "only show events after this event ID")
	return cmd
}
