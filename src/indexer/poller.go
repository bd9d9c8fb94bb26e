package indexer

import (
	"context"
	"sync"
	"sync/atomic"
	"time"

	"github.com/mosaicnetworks/ledgerfront/src/store"
	"github.com/sirupsen/logrus"
)

// DefaultPollInterval is the time between two ticks of the Poller.
const DefaultPollInterval = 3 * time.Second

// notifyTimeout bounds the delivery of one IngestEvent.
const notifyTimeout = 5 * time.Second

type timerFactory func(time.Duration) <-chan time.Time

// TickResult reports what a single tick did.
type TickResult struct {
	Length   int
	Changed  bool
	Upserted int
	Inserted int
	Balances int
}

// Poller periodically mirrors a ChainSource into a Store.
type Poller struct {
	state

	interval  time.Duration
	source    ChainSource
	store     store.Store
	rebuilder *BalanceRebuilder
	notifier  Notifier
	logger    *logrus.Entry

	timerFactory timerFactory

	// last observed snapshot length, -1 before the first ingestion
	lastLength int64

	shutdownCh   chan struct{}
	shutdownOnce sync.Once
	doneCh       chan struct{}
}

// NewPoller creates a Poller. A zero interval uses DefaultPollInterval and a
// nil notifier uses NopNotifier.
func NewPoller(interval time.Duration,
	source ChainSource,
	s store.Store,
	notifier Notifier,
	logger *logrus.Entry) *Poller {

	if interval <= 0 {
		interval = DefaultPollInterval
	}
	if notifier == nil {
		notifier = NopNotifier{}
	}

	return &Poller{
		interval:     interval,
		source:       source,
		store:        s,
		rebuilder:    NewBalanceRebuilder(s),
		notifier:     notifier,
		logger:       logger.WithField("component", "poller"),
		timerFactory: time.After,
		lastLength:   -1,
		shutdownCh:   make(chan struct{}),
		doneCh:       make(chan struct{}),
	}
}

// State returns the current state of the Poller.
func (p *Poller) State() State {
	return p.getState()
}

// LastLength returns the length of the last ingested snapshot, or -1.
func (p *Poller) LastLength() int {
	return int(atomic.LoadInt64(&p.lastLength))
}

// Tick fetches one snapshot and ingests it if its length differs from the last
// observed length. Any error returned by the store is a *store.StorageFailure;
// other errors come from the source.
func (p *Poller) Tick(ctx context.Context) (TickResult, error) {
	defer p.setState(Idle)

	p.setState(Fetching)

	snapshot, err := p.source.FetchChain(ctx)
	if err != nil {
		return TickResult{}, err
	}

	res := TickResult{Length: snapshot.Length}

	if snapshot.Length == p.LastLength() {
		p.setState(Unchanged)
		p.logger.WithField("length", snapshot.Length).Debug("Chain unchanged")
		return res, nil
	}

	p.setState(Ingesting)
	res.Changed = true

	for _, block := range snapshot.Chain {
		inserted, err := p.store.UpsertBlock(block)
		if err != nil {
			return res, err
		}
		res.Upserted++
		if inserted {
			res.Inserted++
		}
	}

	if res.Upserted > 0 {
		n, err := p.rebuilder.Rebuild()
		if err != nil {
			return res, err
		}
		res.Balances = n
	}

	atomic.StoreInt64(&p.lastLength, int64(snapshot.Length))

	p.logger.WithFields(logrus.Fields{
		"length":   res.Length,
		"upserted": res.Upserted,
		"inserted": res.Inserted,
		"balances": res.Balances,
	}).Info("Ingested chain")

	p.notify(ctx, res)

	return res, nil
}

func (p *Poller) notify(ctx context.Context, res TickResult) {
	ctx, cancel := context.WithTimeout(ctx, notifyTimeout)
	defer cancel()

	ev := IngestEvent{
		Length:    res.Length,
		Upserted:  res.Upserted,
		Inserted:  res.Inserted,
		LastIndex: p.store.LastBlockIndex(),
		Balances:  res.Balances,
		Time:      time.Now().UTC(),
	}

	if err := p.notifier.Notify(ctx, ev); err != nil {
		p.logger.WithError(err).Warn("Failed to notify ingestion")
	}
}

// Run ticks immediately and then once per interval, until Shutdown is called
// or the store fails. A tick in progress is always allowed to finish.
func (p *Poller) Run() error {
	defer close(p.doneCh)
	defer p.setState(Stopped)

	p.logger.WithField("interval", p.interval).Info("Poller started")

	for {
		select {
		case <-p.shutdownCh:
			p.logger.Info("Poller stopped")
			return nil
		default:
		}

		_, err := p.Tick(context.Background())
		if err != nil {
			if store.IsStorageFailure(err) {
				p.logger.WithError(err).Error("Storage failure, stopping poller")
				return err
			}
			p.logger.WithError(err).Error("Poll failed")
		}

		select {
		case <-p.shutdownCh:
			p.logger.Info("Poller stopped")
			return nil
		case <-p.timerFactory(p.interval):
		}
	}
}

// Shutdown asks Run to return after the current tick. It can be called more
// than once.
func (p *Poller) Shutdown() {
	p.shutdownOnce.Do(func() {
		close(p.shutdownCh)
	})
}

// Done is closed when Run returns.
func (p *Poller) Done() <-chan struct{} {
	return p.doneCh
}
