package commands

import (
	"context"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/mosaicnetworks/ledgerfront/src/dispatch"
	"github.com/mosaicnetworks/ledgerfront/src/indexer"
	"github.com/mosaicnetworks/ledgerfront/src/service"
	"github.com/mosaicnetworks/ledgerfront/src/store"
	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"
)

const shutdownTimeout = 10 * time.Second

//NewIndexerCmd returns the command that mirrors the chain into a database
func NewIndexerCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:     "indexer",
		Short:   "Mirror the chain served by the gateway into a database",
		PreRunE: loadConfig,
		RunE:    runIndexer,
	}

	addCommonFlags(cmd)
	addNodeFlags(cmd)
	addIndexerFlags(cmd)
	cmd.Flags().String("gateway", _config.GatewayURL, "URL of the gateway to poll")

	return cmd
}

func runIndexer(cmd *cobra.Command, args []string) error {
	logger := _config.Logger()

	d := dispatch.NewDispatcher(_config.GatewayRegistry(), _config.DispatchConfig(), logger)

	proc, err := newIndexerProcess(indexer.NewDispatchSource(d), logger)
	if err != nil {
		return err
	}

	errCh := make(chan error, 2)
	proc.start(errCh)

	//Prepare sigCh to relay SIGINT and SIGTERM system calls
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, os.Interrupt, syscall.SIGINT, syscall.SIGTERM)

	select {
	case <-sigCh:
		logger.Info("Received signal, stopping indexer")
		return proc.stop()
	case err := <-errCh:
		proc.stop()
		return err
	}
}

// indexerProcess groups the components of a running indexer.
type indexerProcess struct {
	store    store.Store
	poller   *indexer.Poller
	notifier indexer.Notifier
	service  *service.IndexService
	logger   *logrus.Entry
}

func newIndexerProcess(source indexer.ChainSource, logger *logrus.Entry) (*indexerProcess, error) {
	s, err := store.NewStore(_config.Store, _config.DatabaseFile(), logger)
	if err != nil {
		logger.WithError(err).Error("Cannot open store")
		return nil, err
	}

	var notifier indexer.Notifier = indexer.NopNotifier{}
	if len(_config.RedisAddrs) > 0 {
		notifier = indexer.NewRedisNotifier(_config.RedisAddrs, _config.RedisChannel, logger)
	}

	poller := indexer.NewPoller(_config.PollInterval, source, s, notifier, logger)

	proc := &indexerProcess{
		store:    s,
		poller:   poller,
		notifier: notifier,
		logger:   logger,
	}

	if _config.IndexerAddr != "" {
		proc.service = service.NewIndexService(_config.IndexerAddr, s, poller, logger)
	}

	return proc, nil
}

// start runs the poller and the index API in the background. Their errors
// are sent to errCh.
func (p *indexerProcess) start(errCh chan<- error) {
	go func() {
		if err := p.poller.Run(); err != nil {
			errCh <- err
		}
	}()

	if p.service != nil {
		go func() {
			if err := p.service.Serve(); err != nil {
				errCh <- err
			}
		}()
	}
}

// stop waits for the current tick, then closes everything.
func (p *indexerProcess) stop() error {
	p.poller.Shutdown()

	select {
	case <-p.poller.Done():
	case <-time.After(shutdownTimeout):
		p.logger.Warn("Timed out waiting for the poller")
	}

	if p.service != nil {
		ctx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		if err := p.service.Shutdown(ctx); err != nil {
			p.logger.WithError(err).Warn("Stopping index API")
		}
	}

	if err := p.notifier.Close(); err != nil {
		p.logger.WithError(err).Warn("Closing notifier")
	}

	return p.store.Close()
}
