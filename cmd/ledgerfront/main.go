package main

import (
	"os"

	cmd "github.com/mosaicnetworks/ledgerfront/cmd/ledgerfront/commands"
)

func main() {
	rootCmd := cmd.RootCmd

	rootCmd.AddCommand(
		cmd.VersionCmd,
		cmd.NewGatewayCmd(),
		cmd.NewIndexerCmd(),
		cmd.NewReportCmd())

	//Do not print usage when error occurs
	rootCmd.SilenceUsage = true

	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}
