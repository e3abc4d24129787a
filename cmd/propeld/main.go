package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/propelgov/propelai/internal/cli"
	"github.com/propelgov/propelai/internal/cli/admin"
)

func main() {
	rootCmd := &cobra.Command{
		Use:   "propeld",
		Short: "Propel daemon and CLI",
		Long:  "Propel daemon for running the API server and tuning allocation policies",
	}

	cli.AddHelpJSONFlag(rootCmd)
	rootCmd.AddCommand(admin.ServeCmd())
	rootCmd.AddCommand(admin.PolicyCmd())

	if len(os.Args) == 1 {
		os.Args = append(os.Args, "serve")
	}

	cli.CheckHelpJSON(rootCmd)
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}
