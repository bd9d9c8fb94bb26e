package service

import (
	"encoding/json"
	"errors"
	"math"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/mosaicnetworks/ledgerfront/src/dispatch"
	"github.com/sirupsen/logrus"
)

// Node paths behind the gateway routes.
const (
	nodePingPath         = "/ping"
	nodeChainPath        = "/chain"
	nodePeersPath        = "/nodes"
	nodeTransactionsPath = "/transactions/new"
	nodeMinePath         = "/mine"
	nodeResolvePath      = "/nodes/resolve"
)

// Failure messages of the 502 responses.
const (
	allNodesFailedMessage  = "all nodes failed"
	broadcastFailedMessage = "broadcast failed"
)

// Transaction is the body of POST /tx. Every field must be present, but the
// addresses may be empty.
type Transaction struct {
	Sender    *string `json:"sender"`
	Recipient *string `json:"recipient"`
	Amount    *Amount `json:"amount"`
}

func (tx *Transaction) check() error {
	switch {
	case tx.Sender == nil:
		return errors.New("missing sender")
	case tx.Recipient == nil:
		return errors.New("missing recipient")
	case tx.Amount == nil:
		return errors.New("missing amount")
	}
	return nil
}

// Amount is a finite number given either as a JSON number or as a string
// holding one, e.g. 2.5 or "2.5".
type Amount float64

// UnmarshalJSON implements the json.Unmarshaler interface.
func (a *Amount) UnmarshalJSON(data []byte) error {
	var n json.Number
	if err := json.Unmarshal(data, &n); err != nil {
		return err
	}

	f, err := n.Float64()
	if err != nil {
		return err
	}
	if math.IsNaN(f) || math.IsInf(f, 0) {
		return errors.New("amount is not finite")
	}

	*a = Amount(f)
	return nil
}

// Gateway is the single entry point in front of the ledger nodes.
type Gateway struct {
	*server

	dispatcher *dispatch.Dispatcher
	reporter   *dispatch.ConsensusReporter
}

// NewGateway ...
func NewGateway(bindAddress string, d *dispatch.Dispatcher, logger *logrus.Entry) *Gateway {
	logger = logger.WithField("component", "gateway")

	g := &Gateway{
		server:     newServer(bindAddress, logger),
		dispatcher: d,
		reporter:   dispatch.NewConsensusReporter(d),
	}

	g.registerHandlers()

	return g
}

func (g *Gateway) registerHandlers() {
	g.logger.Debug("Registering gateway API handlers")
	g.engine.GET("/health", g.proxyGet(nodePingPath))
	g.engine.GET("/chain", g.proxyGet(nodeChainPath))
	g.engine.GET("/peers", g.proxyGet(nodePeersPath))
	g.engine.POST("/tx", g.CreateTransaction)
	g.engine.POST("/mine", g.proxyGet(nodeMinePath))
	g.engine.POST("/consensus", g.Consensus)
}

// proxyGet returns the body of the first node that answers 200 to a GET on
// path.
func (g *Gateway) proxyGet(path string) gin.HandlerFunc {
	return func(c *gin.Context) {
		resp, err := g.dispatcher.Get(c.Request.Context(), path)
		if err != nil {
			g.fail(c, allNodesFailedMessage, err)
			return
		}
		c.Data(http.StatusOK, "application/json", resp.Body)
	}
}

// CreateTransaction submits a transaction to the first node that accepts it.
func (g *Gateway) CreateTransaction(c *gin.Context) {
	var tx Transaction
	err := c.ShouldBindJSON(&tx)
	if err == nil {
		err = tx.check()
	}
	if err != nil {
		c.JSON(http.StatusUnprocessableEntity, gin.H{"detail": err.Error()})
		return
	}

	payload := map[string]interface{}{
		"sender":    *tx.Sender,
		"recipient": *tx.Recipient,
		"amount":    float64(*tx.Amount),
	}

	resp, err := g.dispatcher.BroadcastFirstSuccess(c.Request.Context(), nodeTransactionsPath, payload)
	if err != nil {
		g.fail(c, broadcastFailedMessage, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"ok":       true,
		"node":     resp.Node,
		"response": resp.Body,
	})
}

// Consensus asks every node to resolve conflicts and reports each answer.
func (g *Gateway) Consensus(c *gin.Context) {
	report := g.reporter.PollAll(c.Request.Context(), nodeResolvePath)

	g.logger.WithFields(logrus.Fields{
		"nodes":     len(report.Results),
		"succeeded": report.Succeeded(),
	}).Debug("Consensus round")

	c.JSON(http.StatusOK, report)
}

func (g *Gateway) fail(c *gin.Context, message string, err error) {
	agg, ok := dispatch.AsAggregateFailure(err)
	if !ok {
		g.logger.WithError(err).Error("Dispatch error")
		c.JSON(http.StatusInternalServerError, gin.H{"detail": err.Error()})
		return
	}

	g.logger.WithError(err).Warn(message)

	c.JSON(http.StatusBadGateway, gin.H{
		"detail": gin.H{
			"message": message,
			"errors":  agg.Failures,
		},
	})
}
