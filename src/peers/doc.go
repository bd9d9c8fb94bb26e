// Package peers defines the ledger nodes fronted by ledgerfront and the
// registry that holds them.
//
// A node is identified by its base URL. Entries given as bare host:port are
// prefixed with the http scheme. The registry keeps nodes in the order they
// were configured; that order is the rotation order used by the dispatcher,
// not a priority.
//
// When no node list is given on the command line or in the environment, the
// registry can be loaded from a nodes.json file in the data directory, which
// contains a JSON array of base URLs.
package peers
