package service

import (
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"
	cm "github.com/mosaicnetworks/ledgerfront/src/common"
	"github.com/mosaicnetworks/ledgerfront/src/indexer"
	"github.com/mosaicnetworks/ledgerfront/src/store"
	"github.com/sirupsen/logrus"
)

// PollerStatus is the part of a Poller reported by GET /status.
type PollerStatus interface {
	State() indexer.State
	LastLength() int
}

// IndexService serves the content of an indexer store.
type IndexService struct {
	*server

	store  store.Store
	poller PollerStatus
}

// NewIndexService creates an IndexService. poller may be nil.
func NewIndexService(bindAddress string, s store.Store, poller PollerStatus, logger *logrus.Entry) *IndexService {
	logger = logger.WithField("component", "index-service")

	is := &IndexService{
		server: newServer(bindAddress, logger),
		store:  s,
		poller: poller,
	}

	is.registerHandlers()

	return is
}

func (s *IndexService) registerHandlers() {
	s.logger.Debug("Registering index API handlers")
	s.engine.GET("/status", s.GetStatus)
	s.engine.GET("/blocks", s.GetBlocks)
	s.engine.GET("/blocks/:index", s.GetBlock)
	s.engine.GET("/transactions", s.GetTransactions)
	s.engine.GET("/balances", s.GetBalances)
	s.engine.GET("/balances/:address", s.GetBalance)
}

// GetStatus ...
func (s *IndexService) GetStatus(c *gin.Context) {
	count, err := s.store.BlockCount()
	if err != nil {
		s.internalError(c, err)
		return
	}

	status := gin.H{
		"blocks":     count,
		"last_index": s.store.LastBlockIndex(),
	}

	if s.poller != nil {
		status["state"] = s.poller.State().String()
		status["last_length"] = s.poller.LastLength()
	}

	c.JSON(http.StatusOK, status)
}

// GetBlocks ...
func (s *IndexService) GetBlocks(c *gin.Context) {
	blocks, err := s.store.Blocks()
	if err != nil {
		s.internalError(c, err)
		return
	}
	c.JSON(http.StatusOK, blocks)
}

// GetBlock returns a block row with its transactions.
func (s *IndexService) GetBlock(c *gin.Context) {
	param := c.Param("index")

	index, err := strconv.Atoi(param)
	if err != nil {
		s.logger.WithError(err).Errorf("Parsing index parameter %s", param)
		c.JSON(http.StatusBadRequest, gin.H{"detail": err.Error()})
		return
	}

	block, err := s.store.GetBlock(index)
	if err != nil {
		s.lookupError(c, err)
		return
	}

	txs, err := s.store.BlockTransactions(index)
	if err != nil {
		s.internalError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"block":        block,
		"transactions": txs,
	})
}

// GetTransactions ...
func (s *IndexService) GetTransactions(c *gin.Context) {
	txs, err := s.store.Transactions()
	if err != nil {
		s.internalError(c, err)
		return
	}
	c.JSON(http.StatusOK, txs)
}

// GetBalances ...
func (s *IndexService) GetBalances(c *gin.Context) {
	balances, err := s.store.Balances()
	if err != nil {
		s.internalError(c, err)
		return
	}
	c.JSON(http.StatusOK, balances)
}

// GetBalance ...
func (s *IndexService) GetBalance(c *gin.Context) {
	balance, err := s.store.GetBalance(c.Param("address"))
	if err != nil {
		s.lookupError(c, err)
		return
	}
	c.JSON(http.StatusOK, balance)
}

func (s *IndexService) lookupError(c *gin.Context, err error) {
	if cm.IsStore(err, cm.KeyNotFound) {
		c.JSON(http.StatusNotFound, gin.H{"detail": err.Error()})
		return
	}
	s.internalError(c, err)
}

func (s *IndexService) internalError(c *gin.Context, err error) {
	s.logger.WithError(err).Error("Reading store")
	c.JSON(http.StatusInternalServerError, gin.H{"detail": err.Error()})
}
