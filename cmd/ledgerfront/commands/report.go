package commands

import (
	"context"
	"fmt"

	"github.com/fatih/color"
	"github.com/mosaicnetworks/ledgerfront/src/dispatch"
	"github.com/spf13/cobra"
)

var reportPath = "/nodes/resolve"

//NewReportCmd returns the command that queries every node once
func NewReportCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:     "report",
		Short:   "Query every ledger node and print each answer",
		PreRunE: loadConfig,
		RunE:    runReport,
	}

	addCommonFlags(cmd)
	addNodeFlags(cmd)
	cmd.Flags().String("nodes", _config.Nodes, "Comma-separated ledger node endpoints (nodes.json in datadir when empty)")
	cmd.Flags().StringVar(&reportPath, "path", reportPath, "Path to query on every node")

	return cmd
}

func runReport(cmd *cobra.Command, args []string) error {
	registry, err := _config.Registry()
	if err != nil {
		return err
	}

	d := dispatch.NewDispatcher(registry, _config.DispatchConfig(), _config.Logger())
	report := dispatch.NewConsensusReporter(d).PollAll(context.Background(), reportPath)

	for _, r := range report.Results {
		switch {
		case r.Error != "":
			color.Red("%-30s error  %s", r.Node, r.Error)
		case r.OK():
			color.Green("%-30s %d    %s", r.Node, r.Status, r.Body)
		default:
			color.Yellow("%-30s %d    %s", r.Node, r.Status, r.Body)
		}
	}

	fmt.Printf("%d/%d nodes answered %s\n", report.Succeeded(), len(report.Results), reportPath)

	if report.Succeeded() == 0 {
		return fmt.Errorf("no node answered %s", reportPath)
	}

	return nil
}
