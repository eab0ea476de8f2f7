// Package gateway implements the gateway microservice.
//
// This microservice implements a RESTful API for clients to query Chia full
// nodes: unspent coins, balances, NFT listings, spend submission and a
// restricted raw RPC passthrough.
package gateway

import (
	"context"
	"log"
	"net/http"
	"sync"
	"time"

	"github.com/hashvale/chiagate/lib/cache"
	"github.com/hashvale/chiagate/lib/chain"
	"github.com/hashvale/chiagate/lib/config"
	"github.com/hashvale/chiagate/lib/msg"
	"github.com/hashvale/chiagate/lib/store"
	"github.com/hashvale/chiagate/lib/store/db"
)

// Gateway contains the data necessary to deliver the service.
type Gateway struct {
	dbtype   string
	db       store.DB               // db connection
	bc       map[string]chain.Chain // full-node clients
	mb       msg.MsgBroker
	ca       *cache.Cache // short-TTL response cache
	allow    map[string]bool
	fanout   int
	utxoTTL  time.Duration
	nftTTL   time.Duration
	defChain string
	s        *http.Server  // http server
	ss       *http.Server  // https server
	sc       chan struct{} // http server channel used for graceful shutdowns
}

// New returns a pointer to a new Gateway service.
func New(cfg config.ServiceConfig, dbConn store.DB, mb msg.MsgBroker, bc map[string]chain.Chain) *Gateway {
	allow := make(map[string]bool, len(cfg.RPCAllowList))
	for _, m := range cfg.RPCAllowList {
		allow[m] = true
	}

	defChain := ""
	if len(cfg.Chains) > 0 {
		defChain = cfg.Chains[0].ID
	}

	fanout := cfg.RPCFanout
	if fanout <= 0 {
		fanout = config.RPCFanoutDefault
	}

	return &Gateway{
		dbtype:   cfg.DBType,
		db:       dbConn,
		mb:       mb,
		bc:       bc,
		ca:       cache.New(),
		allow:    allow,
		fanout:   fanout,
		utxoTTL:  time.Duration(cfg.UTXOCacheTTL) * time.Second,
		nftTTL:   time.Duration(cfg.NFTCacheTTL) * time.Second,
		defChain: defChain,
	}
}

// Stop shuts down the http servers implementing the RESTful API and closes
// gracefully the connections to message broker, cache and database.
func (g *Gateway) Stop() {
	var err error
	// shutdown http server
	if g.s != nil {
		if err = g.s.Shutdown(context.Background()); err != nil {
			log.Printf("Error in http server shutdown:%e", err)
		}
	}

	if g.ss != nil {
		if err = g.ss.Shutdown(context.Background()); err != nil {
			log.Printf("Error in https server shutdown:%e", err)
		}
	}

	close(g.sc) // close server channels to indicate shutdowns have finished
	// stop the response cache
	g.ca.Close()
	// close message broker
	if g.mb != nil {
		if err = g.mb.Close(); err != nil {
			log.Printf("Error closing message broker:%e", err)
		}
	}
	// close database
	if g.db != nil {
		err = db.Close(g.dbtype, g.db)
		log.Printf("Disconnecting %v database, err:%e\n", g.dbtype, err)
	}
}

// ManageEvents starts go routines to consume the message broker queues for
// coin events sent by the watcher service. For each connected chain, two
// channels are opened, one for coin events, and one for errors.
func (g *Gateway) ManageEvents() error {
	// for each chain establish a process to read events from the broker queues
	for id := range g.bc {
		mut := new(sync.Mutex)
		mut.Lock()

		eveCh, errCh, err := g.mb.GetEvents(id, mut)
		if err != nil {
			return err
		}

		// launch event channel reader
		go func(chainID string) {
			log.Printf("[%s] Start listening to watcher event channel", chainID)
			for eve := range eveCh {
				log.Printf("[%s] Received coin event %+v", chainID, eve)
				mut.Unlock()
			}
			log.Printf("[%s] Stop listening to watcher event channel", chainID)
		}(id)

		// launch error channel reader
		go func(chainID string) {
			log.Printf("[%s] Start listening to err channel", chainID)
			for e := range errCh {
				log.Printf("[%s] Received error %+v", chainID, e)
			}
			log.Printf("[%s] Stop listening to err channel", chainID)
		}(id)
	}

	return nil
}
