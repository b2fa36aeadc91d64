package main

import (
	"github.com/spf13/cobra"
)

var (
	serverURL string
	username  string
	password  string
)

// newRootCmd creates the root agentgatectl command with every subcommand
// attached.
func newRootCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:           "agentgatectl",
		Short:         "Operator CLI for the agentgate control plane",
		Long:          "agentgatectl talks to a running agentgated's admin API: it lists\nagents, reviews and decides pending plans, toggles safe mode, triggers\nan emergency lockdown, and tails the audit log.",
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	defaultServer := "http://localhost:8080"
	var defaultUsername string
	if fileCfg, err := loadCtlConfig(); err == nil {
		if fileCfg.Server != "" {
			defaultServer = fileCfg.Server
		}
		defaultUsername = fileCfg.Username
	}

	cmd.PersistentFlags().StringVar(&serverURL, "server", defaultServer, "agentgated base URL")
	cmd.PersistentFlags().StringVar(&username, "username", defaultUsername, "admin username (defaults to ~/.agentgatectl.yaml or $AGENTGATE_USERNAME)")
	cmd.PersistentFlags().StringVar(&password, "password", "", "admin password (defaults to $AGENTGATE_PASSWORD)")

	cmd.AddCommand(
		newStatusCmd(),
		newAgentsCmd(),
		newApproveCmd(),
		newRejectCmd(),
		newSafeModeCmd(),
		newLockdownCmd(),
		newAuditCmd(),
		newDashCmd(),
	)

	return cmd
}
