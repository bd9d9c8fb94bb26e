package commands

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
)

// Environment variables of the container deployment, and the config
// keys they set.
var legacyEnv = map[string]string{
	"nodes":   "NODE_URLS",
	"gateway": "GATEWAY",
	"db":      "DB_PATH",
}

// pollSecsEnv holds the poll interval as a number of seconds.
const pollSecsEnv = "POLL_SECS"

// addCommonFlags adds the flags shared by every command.
func addCommonFlags(cmd *cobra.Command) {
	cmd.Flags().String("datadir", _config.DataDir, "Top-level directory for configuration and data")
	cmd.Flags().String("log", _config.LogLevel, "debug, info, warn, error, fatal, panic")
	cmd.Flags().String("log-file", _config.LogFile, "Also write logs to this file")
}

// addNodeFlags adds the flags that control how nodes are reached.
func addNodeFlags(cmd *cobra.Command) {
	cmd.Flags().Duration("connect-timeout", _config.ConnectTimeout, "Timeout of a connection to a node")
	cmd.Flags().Duration("read-timeout", _config.ReadTimeout, "Timeout of a node's response")
}

// addIndexerFlags adds the flags of the indexer, standalone or embedded.
func addIndexerFlags(cmd *cobra.Command) {
	cmd.Flags().String("store", _config.Store, "Storage backend: badger, bolt, or inmem")
	cmd.Flags().String("db", _config.DatabasePath, "Database location (default: inside datadir)")
	cmd.Flags().Duration("poll", _config.PollInterval, "Time between two polls")
	cmd.Flags().String("indexer-listen", _config.IndexerAddr, "Listen IP:Port of the index API (disabled when empty)")
	cmd.Flags().StringSlice("redis", _config.RedisAddrs, "Redis addresses on which to publish ingest events")
	cmd.Flags().String("redis-channel", _config.RedisChannel, "Redis channel of ingest events")
}

func loadConfig(cmd *cobra.Command, args []string) error {
	err := bindFlagsLoadViper(cmd)
	if err != nil {
		return err
	}

	_config.SetDataDir(_config.DataDir)

	_config.Logger().WithFields(logrus.Fields{
		"DataDir":         _config.DataDir,
		"LogLevel":        _config.LogLevel,
		"LogFile":         _config.LogFile,
		"Nodes":           _config.Nodes,
		"ServiceAddr":     _config.ServiceAddr,
		"IndexerAddr":     _config.IndexerAddr,
		"GatewayURL":      _config.GatewayURL,
		"EmbeddedIndexer": _config.EmbeddedIndexer,
		"Store":           _config.Store,
		"DatabaseFile":    _config.DatabaseFile(),
		"PollInterval":    _config.PollInterval,
		"ConnectTimeout":  _config.ConnectTimeout,
		"ReadTimeout":     _config.ReadTimeout,
		"RedisAddrs":      _config.RedisAddrs,
		"RedisChannel":    _config.RedisChannel,
	}).Debug("RUN")

	return nil
}

// Bind all flags and environment variables and read the config into viper
func bindFlagsLoadViper(cmd *cobra.Command) error {
	if err := viper.BindPFlags(cmd.Flags()); err != nil {
		return err
	}

	// LEDGERFRONT_NODES, LEDGERFRONT_READ_TIMEOUT, ...
	viper.SetEnvPrefix("ledgerfront")
	viper.SetEnvKeyReplacer(strings.NewReplacer("-", "_"))
	viper.AutomaticEnv()

	for key, env := range legacyEnv {
		if err := viper.BindEnv(key, env); err != nil {
			return err
		}
	}

	// first unmarshal to read from CLI flags and environment
	if err := viper.Unmarshal(_config); err != nil {
		return err
	}

	// look for config file in [datadir]/ledgerfront.toml (.json, .yaml also work)
	viper.SetConfigName("ledgerfront")
	viper.AddConfigPath(_config.DataDir)

	// If a config file is found, read it in.
	if err := viper.ReadInConfig(); err == nil {
		_config.Logger().Debugf("Using config file: %s", viper.ConfigFileUsed())
	} else if _, ok := err.(viper.ConfigFileNotFoundError); ok {
		_config.Logger().Debugf("No config file found in: %s", _config.DataDir)
	} else {
		return err
	}

	// second unmarshal to read from config file
	if err := viper.Unmarshal(_config); err != nil {
		return err
	}

	return applyPollSecs(cmd)
}

// applyPollSecs reads POLL_SECS unless --poll was set explicitly.
func applyPollSecs(cmd *cobra.Command) error {
	raw, ok := os.LookupEnv(pollSecsEnv)
	if !ok || raw == "" {
		return nil
	}
	if f := cmd.Flags().Lookup("poll"); f == nil || f.Changed {
		return nil
	}

	secs, err := strconv.Atoi(raw)
	if err != nil || secs <= 0 {
		return fmt.Errorf("%s should be a positive number of seconds, not %q", pollSecsEnv, raw)
	}

	_config.PollInterval = time.Duration(secs) * time.Second

	return nil
}
