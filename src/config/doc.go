// Package config defines the configuration of the ledgerfront gateway and
// indexer.
//
// Both processes use the Config object defined in this package, whether the
// values come from flags, environment variables, or a ledgerfront.toml file.
// On top of these options, ledgerfront relies on a data directory, defined by
// Config.DataDir, where it may find:
//
//  nodes.json    // (optional) a JSON list of ledger node endpoints, used when no node list is configured.
//  chain_index   // the default Badger database of the indexer.
//  chain_index.db // the default Bolt database of the indexer.
package config
