// Package indexer mirrors the chain served by the gateway into a Store.
//
// The Poller fetches the full chain on a fixed interval and compares its
// reported length to the last length it observed. When the length is
// unchanged, nothing is written. When it changed, every block of the snapshot
// is upserted, the balances table is rebuilt from the stored transactions, and
// an IngestEvent is sent to the configured Notifier.
//
// Fetch and decode errors are logged and the Poller waits for the next tick.
// Storage errors stop the Poller.
package indexer
