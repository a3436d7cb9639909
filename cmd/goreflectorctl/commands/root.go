// Package commands implements the goreflectorctl CLI commands.
package commands

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/dantte-lp/goreflector/internal/admin"
)

// serverAddr is the daemon's admin-protocol address (host:port).
var serverAddr string

// dial opens an admin.Client against serverAddr, closed by the caller.
func dial(cmd *cobra.Command) (*admin.Client, error) {
	return admin.Dial(cmd.Context(), serverAddr)
}

// rootCmd is the top-level cobra command for goreflectorctl.
var rootCmd = &cobra.Command{
	Use:   "goreflectorctl",
	Short: "CLI client for the goreflector daemon",
	Long:  "goreflectorctl speaks the goreflector admin protocol (§6) over plain TCP to manage modules, clients, and sessions.",

	// Silence cobra's built-in usage/error printing so we control it.
	SilenceUsage:  true,
	SilenceErrors: true,
}

func init() {
	rootCmd.PersistentFlags().StringVar(&serverAddr, "addr", "localhost:8700",
		"goreflector daemon admin address (host:port)")

	rootCmd.AddCommand(moduleCmd())
	rootCmd.AddCommand(clientsCmd())
	rootCmd.AddCommand(sessionCmd())
	rootCmd.AddCommand(aclCmd())
	rootCmd.AddCommand(versionCmd())
	rootCmd.AddCommand(shellCmd())
}

// Execute runs the root command and exits with code 1 on error.
func Execute() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "Error:", err)
		os.Exit(1)
	}
}
