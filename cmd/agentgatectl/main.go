// Command agentgatectl is the operator CLI for agentgated: inspect the
// approval queue, approve or reject plans, manage agents, tail the audit
// log, and watch a live dashboard.
package main

import (
	"fmt"
	"os"
)

func main() {
	if err := newRootCmd().Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
