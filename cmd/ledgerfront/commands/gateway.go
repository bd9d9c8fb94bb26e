package commands

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"github.com/mosaicnetworks/ledgerfront/src/dispatch"
	"github.com/mosaicnetworks/ledgerfront/src/indexer"
	"github.com/mosaicnetworks/ledgerfront/src/service"
	"github.com/spf13/cobra"
)

//NewGatewayCmd returns the command that serves the gateway API
func NewGatewayCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:     "gateway",
		Short:   "Serve the gateway API in front of the ledger nodes",
		PreRunE: loadConfig,
		RunE:    runGateway,
	}

	addCommonFlags(cmd)
	addNodeFlags(cmd)
	addIndexerFlags(cmd)
	cmd.Flags().String("nodes", _config.Nodes, "Comma-separated ledger node endpoints (nodes.json in datadir when empty)")
	cmd.Flags().StringP("listen", "l", _config.ServiceAddr, "Listen IP:Port of the gateway API")
	cmd.Flags().Bool("embedded-indexer", _config.EmbeddedIndexer, "Run an indexer polling the nodes directly")

	return cmd
}

func runGateway(cmd *cobra.Command, args []string) error {
	logger := _config.Logger()

	registry, err := _config.Registry()
	if err != nil {
		logger.WithError(err).Error("Cannot load ledger nodes")
		return err
	}

	if _config.Nodes != "" {
		if err := _config.SaveRegistry(registry); err != nil {
			logger.WithError(err).Warn("Cannot save ledger nodes")
		}
	}

	d := dispatch.NewDispatcher(registry, _config.DispatchConfig(), logger)
	gw := service.NewGateway(_config.ServiceAddr, d, logger)

	errCh := make(chan error, 3)

	go func() {
		if err := gw.Serve(); err != nil {
			errCh <- err
		}
	}()

	var proc *indexerProcess
	if _config.EmbeddedIndexer {
		proc, err = newIndexerProcess(indexer.NewDispatchSource(d), logger)
		if err != nil {
			return err
		}
		proc.start(errCh)
	}

	//Prepare sigCh to relay SIGINT and SIGTERM system calls
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, os.Interrupt, syscall.SIGINT, syscall.SIGTERM)

	select {
	case <-sigCh:
		logger.Info("Received signal, stopping gateway")
	case err = <-errCh:
		logger.WithError(err).Error("Gateway failed")
	}

	ctx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	if serr := gw.Shutdown(ctx); serr != nil {
		logger.WithError(serr).Warn("Stopping gateway API")
	}

	if proc != nil {
		if perr := proc.stop(); perr != nil && err == nil {
			err = perr
		}
	}

	return err
}
