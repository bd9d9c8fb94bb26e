package config

import (
	"fmt"
	"os"
	"os/user"
	"path/filepath"
	"runtime"
	"testing"
	"time"

	"github.com/mosaicnetworks/ledgerfront/src/common"
	"github.com/mosaicnetworks/ledgerfront/src/dispatch"
	"github.com/mosaicnetworks/ledgerfront/src/peers"
	"github.com/rifflock/lfshook"
	"github.com/sirupsen/logrus"
	prefixed "github.com/x-cray/logrus-prefixed-formatter"
)

// Default filenames.
const (
	// DefaultBadgerDir is the default name of the folder containing the Badger
	// database
	DefaultBadgerDir = "chain_index"

	// DefaultBoltFile is the default name of the Bolt database file
	DefaultBoltFile = "chain_index.db"
)

// Default configuration values.
const (
	DefaultLogLevel       = "debug"
	DefaultNodes          = "nodeA:5000,nodeB:5001,nodeC:5002,nodeD:5003,nodeE:5004"
	DefaultServiceAddr    = ":8080"
	DefaultIndexerAddr    = ""
	DefaultGatewayURL     = "http://gateway:8080"
	DefaultStore          = "badger"
	DefaultPollInterval   = 3 * time.Second
	DefaultConnectTimeout = dispatch.DefaultConnectTimeout
	DefaultReadTimeout    = dispatch.DefaultReadTimeout
	DefaultRedisChannel   = "ledgerfront.index"
)

// Config contains all the configuration properties of the gateway and of the
// indexer.
type Config struct {
	// DataDir is the top-level directory containing configuration and data
	DataDir string `mapstructure:"datadir"`

	// LogLevel determines the chattiness of the log output.
	LogLevel string `mapstructure:"log"`

	// LogFile, when set, receives a copy of every log entry at or above
	// LogLevel.
	LogFile string `mapstructure:"log-file"`

	// Nodes is the comma-separated list of ledger node endpoints. When empty,
	// the list is read from nodes.json in DataDir.
	Nodes string `mapstructure:"nodes"`

	// ServiceAddr is the listen address of the gateway API.
	ServiceAddr string `mapstructure:"listen"`

	// IndexerAddr is the listen address of the indexer query API. The API is
	// disabled when it is empty.
	IndexerAddr string `mapstructure:"indexer-listen"`

	// GatewayURL is the gateway polled by a standalone indexer.
	GatewayURL string `mapstructure:"gateway"`

	// EmbeddedIndexer runs an indexer inside the gateway process, polling the
	// nodes through the gateway's own dispatcher.
	EmbeddedIndexer bool `mapstructure:"embedded-indexer"`

	// Store is the storage backend: badger, bolt, or inmem.
	Store string `mapstructure:"store"`

	// DatabasePath overrides the location of the database.
	DatabasePath string `mapstructure:"db"`

	// PollInterval is the time between two polls of the indexer.
	PollInterval time.Duration `mapstructure:"poll"`

	// ConnectTimeout bounds the connection to a node.
	ConnectTimeout time.Duration `mapstructure:"connect-timeout"`

	// ReadTimeout bounds the wait for a node's response.
	ReadTimeout time.Duration `mapstructure:"read-timeout"`

	// RedisAddrs are the Redis servers on which ingest events are published.
	// Notifications are disabled when it is empty.
	RedisAddrs []string `mapstructure:"redis"`

	// RedisChannel is the channel of ingest events.
	RedisChannel string `mapstructure:"redis-channel"`

	logger *logrus.Logger
}

// NewDefaultConfig returns a config object with default values.
func NewDefaultConfig() *Config {
	config := &Config{
		DataDir:        DefaultDataDir(),
		LogLevel:       DefaultLogLevel,
		Nodes:          DefaultNodes,
		ServiceAddr:    DefaultServiceAddr,
		IndexerAddr:    DefaultIndexerAddr,
		GatewayURL:     DefaultGatewayURL,
		Store:          DefaultStore,
		PollInterval:   DefaultPollInterval,
		ConnectTimeout: DefaultConnectTimeout,
		ReadTimeout:    DefaultReadTimeout,
		RedisChannel:   DefaultRedisChannel,
	}

	return config
}

// NewTestConfig returns a config object with default values and a special
// logger for debugging tests.
func NewTestConfig(t testing.TB, level logrus.Level) *Config {
	config := NewDefaultConfig()
	config.Store = "inmem"
	config.logger = common.NewTestLogger(t, level)
	return config
}

// SetDataDir sets the top-level directory.
func (c *Config) SetDataDir(dataDir string) {
	c.DataDir = dataDir
}

// DatabaseFile returns the location of the database of the configured
// backend. An explicit DatabasePath always wins.
func (c *Config) DatabaseFile() string {
	if c.DatabasePath != "" {
		return c.DatabasePath
	}
	if c.Store == "bolt" {
		return filepath.Join(c.DataDir, DefaultBoltFile)
	}
	return filepath.Join(c.DataDir, DefaultBadgerDir)
}

// DispatchConfig returns the timeouts of node attempts.
func (c *Config) DispatchConfig() *dispatch.Config {
	return &dispatch.Config{
		ConnectTimeout: c.ConnectTimeout,
		ReadTimeout:    c.ReadTimeout,
	}
}

// Registry returns the ledger nodes, from Nodes or from nodes.json.
func (c *Config) Registry() (*peers.Registry, error) {
	var (
		registry *peers.Registry
		err      error
	)

	if c.Nodes != "" {
		registry = peers.NewRegistryFromList(c.Nodes)
	} else {
		registry, err = peers.NewJSONNodes(c.DataDir).Registry()
		if err != nil {
			return nil, err
		}
	}

	if registry.Len() == 0 {
		return nil, fmt.Errorf("no ledger nodes configured")
	}

	return registry, nil
}

// SaveRegistry writes the nodes to nodes.json in the data directory, so that
// later runs without Nodes use the same list.
func (c *Config) SaveRegistry(r *peers.Registry) error {
	if err := os.MkdirAll(c.DataDir, 0700); err != nil {
		return err
	}
	return peers.NewJSONNodes(c.DataDir).Write(r)
}

// GatewayRegistry returns a registry with the gateway as its only node.
func (c *Config) GatewayRegistry() *peers.Registry {
	return peers.NewRegistry([]*peers.Node{peers.NewNode(c.GatewayURL)})
}

// Logger returns a formatted logrus Entry, with prefix set to "ledgerfront".
func (c *Config) Logger() *logrus.Entry {
	if c.logger == nil {
		c.logger = logrus.New()
		c.logger.Level = LogLevel(c.LogLevel)
		c.logger.Formatter = new(prefixed.TextFormatter)

		if c.LogFile != "" {
			c.logger.Hooks.Add(lfshook.NewHook(
				filePathMap(c.LogFile, c.logger.Level),
				&logrus.TextFormatter{},
			))
		}
	}
	return c.logger.WithField("prefix", "ledgerfront")
}

// filePathMap sends every level at or above level to path.
func filePathMap(path string, level logrus.Level) lfshook.PathMap {
	pathMap := lfshook.PathMap{}
	for _, l := range logrus.AllLevels {
		if l <= level {
			pathMap[l] = path
		}
	}
	return pathMap
}

// DefaultDataDir return the default directory name for top-level config based
// on the underlying OS, attempting to respect conventions.
func DefaultDataDir() string {
	// Try to place the data folder in the user's home dir
	home := HomeDir()
	if home != "" {
		if runtime.GOOS == "darwin" {
			return filepath.Join(home, ".Ledgerfront")
		} else if runtime.GOOS == "windows" {
			return filepath.Join(home, "AppData", "Roaming", "Ledgerfront")
		} else {
			return filepath.Join(home, ".ledgerfront")
		}
	}
	// As we cannot guess a stable location, return empty and handle later
	return ""
}

// HomeDir returns the user's home directory.
func HomeDir() string {
	if home := os.Getenv("HOME"); home != "" {
		return home
	}
	if usr, err := user.Current(); err == nil {
		return usr.HomeDir
	}
	return ""
}

// LogLevel parses a string into a Logrus log level.
func LogLevel(l string) logrus.Level {
	switch l {
	case "debug":
		return logrus.DebugLevel
	case "info":
		return logrus.InfoLevel
	case "warn":
		return logrus.WarnLevel
	case "error":
		return logrus.ErrorLevel
	case "fatal":
		return logrus.FatalLevel
	case "panic":
		return logrus.PanicLevel
	default:
		return logrus.DebugLevel
	}
}
