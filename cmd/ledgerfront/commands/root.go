package commands

import (
	"github.com/mosaicnetworks/ledgerfront/src/config"
	"github.com/spf13/cobra"
)

var (
	_config = config.NewDefaultConfig()
)

//RootCmd is the root command for ledgerfront
var RootCmd = &cobra.Command{
	Use:              "ledgerfront",
	Short:            "Gateway and indexer for a cluster of ledger nodes",
	TraverseChildren: true,
}
